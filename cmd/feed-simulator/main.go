package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/evmakov/OrderPort/config"
	"github.com/evmakov/OrderPort/internal/broker/kafka"
	"github.com/evmakov/OrderPort/internal/services/simulator"
	"github.com/evmakov/OrderPort/internal/storage/pgorders"
)

func main() {
	cfg, err := config.LoadConfig(os.Getenv("configPath"))
	if err != nil {
		panic(fmt.Sprintf("failed to parse config, %v", err))
	}

	topic := cfg.Kafka.OrderEventsTopicName
	if topic == "" {
		topic = "order.events"
	}
	stepInterval := time.Duration(cfg.Simulator.StepIntervalSeconds) * time.Second
	orderCount := cfg.Simulator.OrderCount

	sslMode := cfg.Database.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	connString := fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		cfg.Database.Username, cfg.Database.Password, cfg.Database.Host, cfg.Database.Port, cfg.Database.DBName, sslMode)
	st, err := pgorders.New(connString)
	if err != nil {
		panic(err)
	}
	defer st.Close()

	brokers := []string{fmt.Sprintf("%s:%d", cfg.Kafka.Host, cfg.Kafka.Port)}
	producer := kafka.NewProducer(brokers)

	sim := simulator.New(st, producer, topic).WithSettings(stepInterval, orderCount)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := sim.Run(ctx); err != nil && err != context.Canceled {
		panic(err)
	}
}
