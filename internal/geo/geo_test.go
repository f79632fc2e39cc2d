package geo

import (
	"testing"

	"github.com/evmakov/OrderPort/internal/models"
	"github.com/stretchr/testify/require"
)

func TestParseLngLat(t *testing.T) {
	cases := []struct {
		in   string
		want Point
		ok   bool
	}{
		{"116.397428,39.90923", Point{116.397428, 39.90923}, true},
		{" 116.4 , 39.9 ", Point{116.4, 39.9}, true},
		{"116.4;39.9", Point{116.4, 39.9}, true},
		{"-180,90", Point{-180, 90}, true},
		{"0,0", Point{0, 0}, true},
		{"", Point{}, false},
		{"   ", Point{}, false},
		{"116.4", Point{}, false},
		{"116.4,39.9,1", Point{}, false},
		{"abc,39.9", Point{}, false},
		{"116.4,def", Point{}, false},
		{"181,39.9", Point{}, false},
		{"116.4,-91", Point{}, false},
		{"NaN,NaN", Point{}, false},
	}
	for _, c := range cases {
		got, ok := ParseLngLat(c.in)
		require.Equal(t, c.ok, ok, "input %q", c.in)
		if c.ok {
			require.Equal(t, c.want, got, "input %q", c.in)
		}
	}
}

func TestParseLngLat_NaNRejected(t *testing.T) {
	// strconv parses "NaN" fine; the range check must still reject it.
	_, ok := ParseLngLat("NaN,10")
	require.False(t, ok)
}

func TestFromTrajectoryPoint(t *testing.T) {
	lng, lat := 116.4, 39.9

	p, ok := FromTrajectoryPoint(&models.TrajectoryPoint{Longitude: &lng, Latitude: &lat})
	require.True(t, ok)
	require.Equal(t, Point{116.4, 39.9}, p)

	// Structured pair wins over the string.
	p, ok = FromTrajectoryPoint(&models.TrajectoryPoint{Longitude: &lng, Latitude: &lat, Location: "1,1"})
	require.True(t, ok)
	require.Equal(t, Point{116.4, 39.9}, p)

	p, ok = FromTrajectoryPoint(&models.TrajectoryPoint{Location: "121.47,31.23"})
	require.True(t, ok)
	require.Equal(t, Point{121.47, 31.23}, p)

	_, ok = FromTrajectoryPoint(&models.TrajectoryPoint{Location: "somewhere"})
	require.False(t, ok)

	_, ok = FromTrajectoryPoint(nil)
	require.False(t, ok)

	bad := 200.0
	_, ok = FromTrajectoryPoint(&models.TrajectoryPoint{Longitude: &bad, Latitude: &lat})
	require.False(t, ok)
}

func TestFromOrder(t *testing.T) {
	o := &models.Order{
		SenderLocation:   "113.26,23.13",
		ReceiverLocation: "116.40,39.90",
	}

	p, ok := FromOrder(o, Sender)
	require.True(t, ok)
	require.Equal(t, Point{113.26, 23.13}, p)

	p, ok = FromOrder(o, Receiver)
	require.True(t, ok)
	require.Equal(t, Point{116.40, 39.90}, p)

	_, ok = FromOrder(&models.Order{}, Sender)
	require.False(t, ok)

	_, ok = FromOrder(nil, Receiver)
	require.False(t, ok)
}
