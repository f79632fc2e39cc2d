package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/evmakov/OrderPort/config"
	portalapi "github.com/evmakov/OrderPort/internal/api/portal_api"
	"github.com/evmakov/OrderPort/internal/broker/kafka"
	"github.com/evmakov/OrderPort/internal/cache/rediscache"
	"github.com/evmakov/OrderPort/internal/changefeed"
	"github.com/evmakov/OrderPort/internal/ingest"
	"github.com/evmakov/OrderPort/internal/services/orders"
	"github.com/evmakov/OrderPort/internal/services/tracker"
	"github.com/evmakov/OrderPort/internal/storage/pgorders"
)

type portalAPIApp struct {
	ctx    context.Context
	cancel context.CancelFunc
	opts   portalAPIOpts

	api      *portalapi.PortalAPI
	applier  *ingest.Applier
	consumer *kafka.Consumer

	closeDB   func()
	closeFeed func() error
}

func mustBootstrapPortalAPI() *portalAPIApp {
	cfgPath := os.Getenv("configPath")
	if cfgPath == "" {
		panic("configPath env var is required")
	}

	cfg, err := config.LoadConfig(cfgPath)
	if err != nil {
		panic(fmt.Sprintf("failed to parse config, %v", err))
	}

	httpAddr := cfg.Portal.HTTPAddr
	if httpAddr == "" {
		httpAddr = ":8080"
	}
	consumerGroup := cfg.Portal.KafkaConsumerGroup
	if consumerGroup == "" {
		consumerGroup = "portal-api"
	}
	topic := cfg.Kafka.OrderEventsTopicName
	if topic == "" {
		topic = "order.events"
	}
	cacheTTL := time.Duration(cfg.Portal.OrderCacheTTLSeconds) * time.Second
	if cacheTTL <= 0 {
		cacheTTL = 10 * time.Minute
	}
	indicatorDelay := time.Duration(cfg.Portal.UpdatingIndicatorMillis) * time.Millisecond
	searchRate := int64(cfg.Portal.SearchRateLimitPerMinute)

	sslMode := cfg.Database.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	connString := fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		cfg.Database.Username, cfg.Database.Password, cfg.Database.Host, cfg.Database.Port, cfg.Database.DBName, sslMode)
	st := mustOpenPostgresWithRetry(connString, 60*time.Second)

	redisAddr := fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port)
	rc := rediscache.New(redisAddr)
	rl := rediscache.NewRateLimiter(redisAddr)
	feed := changefeed.New(redisAddr)

	store := orders.NewCachedStore(st, rc, cacheTTL)
	subscribe := func(ctx context.Context, orderID uint64) tracker.Subscription {
		return feed.Subscribe(ctx, orderID)
	}

	api := portalapi.New(store, subscribe, rl, indicatorDelay, searchRate)
	applier := ingest.New(st, feed, rc)

	brokers := []string{fmt.Sprintf("%s:%d", cfg.Kafka.Host, cfg.Kafka.Port)}
	consumer := kafka.NewConsumer(brokers, topic, consumerGroup)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	return &portalAPIApp{
		ctx:    ctx,
		cancel: cancel,
		opts: portalAPIOpts{
			httpAddr:      httpAddr,
			topic:         topic,
			consumerGroup: consumerGroup,
		},
		api:       api,
		applier:   applier,
		consumer:  consumer,
		closeDB:   st.Close,
		closeFeed: feed.Close,
	}
}

func mustOpenPostgresWithRetry(connString string, wait time.Duration) *pgorders.Storage {
	deadline := time.Now().Add(wait)
	var lastErr error
	for time.Now().Before(deadline) {
		st, err := pgorders.New(connString)
		if err == nil {
			return st
		}
		lastErr = err
		time.Sleep(1 * time.Second)
	}
	panic(fmt.Sprintf("postgres is not ready after %s: %v", wait, lastErr))
}

func (a *portalAPIApp) Close() {
	if a.cancel != nil {
		a.cancel()
	}
	if a.consumer != nil {
		_ = a.consumer.Close()
	}
	if a.closeFeed != nil {
		_ = a.closeFeed()
	}
	if a.closeDB != nil {
		a.closeDB()
	}
}

func (a *portalAPIApp) Run() error {
	return runPortalAPI(a.ctx, a.opts, a.api, a.applier, a.consumer)
}
