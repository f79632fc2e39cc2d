package main

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"time"

	portalapi "github.com/evmakov/OrderPort/internal/api/portal_api"
	"github.com/evmakov/OrderPort/internal/ingest"
)

type portalAPIOpts struct {
	httpAddr string

	topic         string
	consumerGroup string

	onListen func(httpAddr string)
}

type kafkaConsumer interface {
	Consume(ctx context.Context, handler func(key, value []byte) error) error
}

func runPortalAPI(ctx context.Context, opts portalAPIOpts, api *portalapi.PortalAPI, applier *ingest.Applier, consumer kafkaConsumer) error {
	lis, err := net.Listen("tcp", opts.httpAddr)
	if err != nil {
		return err
	}

	if opts.onListen != nil {
		opts.onListen(lis.Addr().String())
	}

	go func() {
		slog.Info("kafka consumer started", "topic", opts.topic, "group", opts.consumerGroup)
		_ = consumer.Consume(ctx, func(key, value []byte) error {
			return applier.HandleMessage(ctx, key, value)
		})
	}()

	httpErr := make(chan error, 1)
	go func() {
		httpErr <- runHTTPServer(ctx, lis, api)
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-httpErr:
		return err
	}
}

func runHTTPServer(ctx context.Context, lis net.Listener, api *portalapi.PortalAPI) error {
	srv := &http.Server{Handler: api.Routes()}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	slog.Info("HTTP server listening", "addr", lis.Addr().String())
	return srv.Serve(lis)
}
