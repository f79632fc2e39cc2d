package models

// StatusTheme is the display theme the portal uses for an order status.
type StatusTheme struct {
	Status string `json:"status"`
	Label  string `json:"label"`
	Color  string `json:"color"`
	Icon   string `json:"icon"`
}

// KnownOrderStatuses lists every status ThemeForOrderStatus maps explicitly.
// Tests use it as a completeness check so a new status cannot silently fall
// back to the default theme.
var KnownOrderStatuses = []string{
	OrderStatusPending,
	OrderStatusConfirmed,
	OrderStatusShipping,
	OrderStatusDelivered,
	OrderStatusCancelled,
}

// ThemeForOrderStatus maps a stored status to its portal theme. Unknown
// statuses get a neutral default instead of breaking the page.
func ThemeForOrderStatus(status string) StatusTheme {
	switch status {
	case OrderStatusPending:
		return StatusTheme{Status: status, Label: "待处理", Color: "orange", Icon: "clock"}
	case OrderStatusConfirmed:
		return StatusTheme{Status: status, Label: "已确认", Color: "blue", Icon: "check"}
	case OrderStatusShipping:
		return StatusTheme{Status: status, Label: "运输中", Color: "cyan", Icon: "truck"}
	case OrderStatusDelivered:
		return StatusTheme{Status: status, Label: "已送达", Color: "green", Icon: "package"}
	case OrderStatusCancelled:
		return StatusTheme{Status: status, Label: "已取消", Color: "red", Icon: "cross"}
	default:
		return StatusTheme{Status: status, Label: status, Color: "gray", Icon: "question"}
	}
}

// KnownTrajectoryStatuses mirrors KnownOrderStatuses for trajectory tags.
var KnownTrajectoryStatuses = []string{
	TrajectoryStatusPickup,
	TrajectoryStatusInTransit,
	TrajectoryStatusOutForDelivery,
	TrajectoryStatusDelivered,
}

func ThemeForTrajectoryStatus(status string) StatusTheme {
	switch status {
	case TrajectoryStatusPickup:
		return StatusTheme{Status: status, Label: "已揽收", Color: "blue", Icon: "box"}
	case TrajectoryStatusInTransit:
		return StatusTheme{Status: status, Label: "运输中", Color: "cyan", Icon: "truck"}
	case TrajectoryStatusOutForDelivery:
		return StatusTheme{Status: status, Label: "派送中", Color: "purple", Icon: "bike"}
	case TrajectoryStatusDelivered:
		return StatusTheme{Status: status, Label: "已签收", Color: "green", Icon: "package"}
	default:
		return StatusTheme{Status: status, Label: status, Color: "gray", Icon: "question"}
	}
}
