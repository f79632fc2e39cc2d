// Package portal_api is the portal's HTTP surface: order search and a
// per-order live update stream (SSE). Handlers drive the tracker service and
// stay thin.
package portal_api

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/evmakov/OrderPort/internal/geo"
	"github.com/evmakov/OrderPort/internal/models"
	"github.com/evmakov/OrderPort/internal/notify"
	"github.com/evmakov/OrderPort/internal/services/tracker"
	"github.com/evmakov/OrderPort/internal/storage/pgorders"
	"github.com/go-chi/chi/v5"
	"github.com/pkg/errors"
)

type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int64, window time.Duration) (bool, int64, error)
}

type PortalAPI struct {
	store     tracker.Store
	subscribe tracker.SubscribeFunc
	rl        RateLimiter

	indicatorDelay      time.Duration
	searchRatePerMinute int64
}

func New(store tracker.Store, subscribe tracker.SubscribeFunc, rl RateLimiter, indicatorDelay time.Duration, searchRatePerMinute int64) *PortalAPI {
	if searchRatePerMinute <= 0 {
		searchRatePerMinute = 30
	}
	return &PortalAPI{
		store:               store,
		subscribe:           subscribe,
		rl:                  rl,
		indicatorDelay:      indicatorDelay,
		searchRatePerMinute: searchRatePerMinute,
	}
}

func (a *PortalAPI) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Get("/api/orders/{number}", a.handleGetOrder)
	r.Get("/api/orders/{number}/live", a.handleLive)
	return r
}

type sessionPayload struct {
	Order      orderView          `json:"order"`
	Theme      models.StatusTheme `json:"theme"`
	Trajectory []trajectoryView   `json:"trajectory"`
	Items      []itemView         `json:"items"`
	Totals     tracker.ItemTotals `json:"totals"`
	MapPoints  []tracker.MapPoint `json:"map_points"`
	Sender     *geo.Point         `json:"sender,omitempty"`
	Receiver   *geo.Point         `json:"receiver,omitempty"`
	Updating   bool               `json:"updating"`
}

type orderView struct {
	ID                uint64     `json:"id"`
	OrderNumber       string     `json:"order_number"`
	Status            string     `json:"status"`
	SenderName        string     `json:"sender_name,omitempty"`
	SenderAddress     string     `json:"sender_address,omitempty"`
	ReceiverName      string     `json:"receiver_name,omitempty"`
	ReceiverAddress   string     `json:"receiver_address,omitempty"`
	EstimatedDelivery *time.Time `json:"estimated_delivery,omitempty"`
	ActualDelivery    *time.Time `json:"actual_delivery,omitempty"`
}

type trajectoryView struct {
	ID          uint64             `json:"id"`
	Status      string             `json:"status"`
	Theme       models.StatusTheme `json:"theme"`
	Description string             `json:"description"`
	Location    string             `json:"location,omitempty"`
	Timestamp   time.Time          `json:"timestamp"`
}

type itemView struct {
	ID          uint64  `json:"id"`
	ProductName string  `json:"product_name"`
	UnitPrice   float64 `json:"unit_price"`
	Quantity    int32   `json:"quantity"`
	Subtotal    float64 `json:"subtotal"`
}

func toPayload(sess *tracker.Session, updating bool) sessionPayload {
	p := sessionPayload{
		Theme:     sess.Theme(),
		Totals:    sess.Totals(),
		MapPoints: sess.MapPoints(),
		Updating:  updating,
	}
	if o := sess.Order; o != nil {
		p.Order = orderView{
			ID: o.ID, OrderNumber: o.OrderNumber, Status: o.Status,
			SenderName: o.SenderName, SenderAddress: o.SenderAddress,
			ReceiverName: o.ReceiverName, ReceiverAddress: o.ReceiverAddress,
			EstimatedDelivery: o.EstimatedDelivery, ActualDelivery: o.ActualDelivery,
		}
	}
	p.Sender, p.Receiver = sess.Endpoints()
	for _, tp := range sess.Trajectory {
		p.Trajectory = append(p.Trajectory, trajectoryView{
			ID: tp.ID, Status: tp.Status, Theme: models.ThemeForTrajectoryStatus(tp.Status),
			Description: tp.Description, Location: tp.Location, Timestamp: tp.Timestamp,
		})
	}
	for _, it := range sess.Items {
		p.Items = append(p.Items, itemView{
			ID: it.ID, ProductName: it.ProductName, UnitPrice: it.UnitPrice,
			Quantity: it.Quantity, Subtotal: it.Subtotal,
		})
	}
	return p
}

func (a *PortalAPI) allowSearch(r *http.Request) bool {
	if a.rl == nil {
		return true
	}
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		ip = r.RemoteAddr
	}
	key := fmt.Sprintf("rl:search:%s:%s", ip, time.Now().UTC().Format("200601021504"))
	allowed, n, err := a.rl.Allow(r.Context(), key, a.searchRatePerMinute, 70*time.Second)
	if err != nil {
		// The limiter is protection, not a dependency: fail open.
		slog.Warn("search rate limiter unavailable", "error", err.Error())
		return true
	}
	if !allowed {
		slog.Warn("search rate limit exceeded", "ip", ip, "count", n)
	}
	return allowed
}

func (a *PortalAPI) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	if !a.allowSearch(r) {
		writeError(w, http.StatusTooManyRequests, "查询过于频繁，请稍后重试")
		return
	}
	number := chi.URLParam(r, "number")

	// One-shot session: no live subscription for a plain search.
	tr := tracker.New(a.store, nil, notify.NewLogNotifier(nil), a.indicatorDelay)
	sess, err := tr.Search(r.Context(), number)
	if err != nil {
		if errors.Is(err, pgorders.ErrOrderNotFound) {
			writeError(w, http.StatusNotFound, "未找到该订单")
			return
		}
		writeError(w, http.StatusInternalServerError, "查询失败，请稍后重试")
		return
	}
	if sess == nil {
		writeError(w, http.StatusBadRequest, "请输入订单号")
		return
	}

	writeJSON(w, http.StatusOK, toPayload(sess, false))
}

// handleLive keeps a tracking session open for the client and streams a
// fresh session snapshot over SSE every time the change feed touches it.
// The subscription is released on every exit path.
func (a *PortalAPI) handleLive(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}
	number := chi.URLParam(r, "number")

	// Wake the stream loop whenever the tracker reports a change.
	wake := make(chan string, 16)
	notifier := notify.Func(func(level notify.Level, text string) {
		select {
		case wake <- text:
		default:
		}
	})

	tr := tracker.New(a.store, a.subscribe, notifier, a.indicatorDelay)
	defer tr.Release()

	sess, err := tr.Search(r.Context(), number)
	if err != nil {
		if errors.Is(err, pgorders.ErrOrderNotFound) {
			writeError(w, http.StatusNotFound, "未找到该订单")
			return
		}
		writeError(w, http.StatusInternalServerError, "查询失败，请稍后重试")
		return
	}
	if sess == nil {
		writeError(w, http.StatusBadRequest, "请输入订单号")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	sendSnapshot := func(event string) {
		snap := tr.Session()
		if snap == nil {
			return
		}
		b, err := json.Marshal(toPayload(snap, tr.Updating()))
		if err != nil {
			return
		}
		fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, b)
		flusher.Flush()
	}

	sendSnapshot("session")

	keepalive := time.NewTicker(25 * time.Second)
	defer keepalive.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-wake:
			sendSnapshot("update")
		case <-keepalive.C:
			fmt.Fprint(w, ": keepalive\n\n")
			flusher.Flush()
		}
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, text string) {
	writeJSON(w, status, map[string]string{"error": text})
}
