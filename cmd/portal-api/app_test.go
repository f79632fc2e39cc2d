package main

import (
	"context"
	"net/http"
	"testing"
	"time"

	portalapi "github.com/evmakov/OrderPort/internal/api/portal_api"
	"github.com/evmakov/OrderPort/internal/ingest"
	"github.com/evmakov/OrderPort/internal/models"
	"github.com/evmakov/OrderPort/internal/storage/pgorders"
	"github.com/stretchr/testify/require"
)

type fakeStore struct{}

func (s *fakeStore) FindOrderByNumber(ctx context.Context, number string) (*models.Order, error) {
	return nil, pgorders.ErrOrderNotFound
}
func (s *fakeStore) ListTrajectories(ctx context.Context, orderID uint64) ([]*models.TrajectoryPoint, error) {
	return nil, nil
}
func (s *fakeStore) ListItems(ctx context.Context, orderID uint64) ([]*models.OrderItem, error) {
	return nil, nil
}

type fakeConsumer struct{}

func (fakeConsumer) Consume(ctx context.Context, handler func(key, value []byte) error) error {
	<-ctx.Done()
	return ctx.Err()
}

func TestRunPortalAPI_ServesAndStops(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	addrCh := make(chan string, 1)
	opts := portalAPIOpts{
		httpAddr:      "127.0.0.1:0",
		topic:         "t",
		consumerGroup: "g",
		onListen:      func(httpAddr string) { addrCh <- httpAddr },
	}

	api := portalapi.New(&fakeStore{}, nil, nil, 10*time.Millisecond, 30)
	applier := ingest.New(nil, nil, nil)

	errCh := make(chan error, 1)
	go func() {
		errCh <- runPortalAPI(ctx, opts, api, applier, fakeConsumer{})
	}()

	httpAddr := <-addrCh

	resp, err := http.Get("http://" + httpAddr + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, 200, resp.StatusCode)

	resp2, err := http.Get("http://" + httpAddr + "/api/orders/NOPE")
	require.NoError(t, err)
	defer resp2.Body.Close()
	require.Equal(t, 404, resp2.StatusCode)

	cancel()

	select {
	case err := <-errCh:
		require.Error(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting server to stop")
	}
}
