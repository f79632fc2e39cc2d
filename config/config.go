package config

import (
	"fmt"
	"os"

	"go.yaml.in/yaml/v4"
)

type Config struct {
	Database DatabaseConfig `yaml:"database"`
	Kafka    KafkaConfig    `yaml:"kafka"`
	Redis    RedisConfig    `yaml:"redis"`
	Portal   PortalConfig   `yaml:"portal"`
	Map      MapConfig      `yaml:"map"`

	Simulator SimulatorConfig `yaml:"simulator"`
}

type SimulatorConfig struct {
	StepIntervalSeconds int `yaml:"step_interval_seconds"`
	OrderCount          int `yaml:"order_count"`
}

type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	DBName   string `yaml:"name"`
	SSLMode  string `yaml:"ssl_mode"`
}

type KafkaConfig struct {
	Host                 string `yaml:"host"`
	Port                 int    `yaml:"port"`
	OrderEventsTopicName string `yaml:"order_events_topic_name"`
}

type RedisConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

type PortalConfig struct {
	HTTPAddr           string `yaml:"http_addr"`
	KafkaConsumerGroup string `yaml:"kafka_consumer_group"`

	OrderCacheTTLSeconds int `yaml:"order_cache_ttl_seconds"`

	// Transient "updating" indicator auto-clear delay shown after a live
	// update lands. Purely a UX smoothing knob.
	UpdatingIndicatorMillis int `yaml:"updating_indicator_millis"`

	SearchRateLimitPerMinute int `yaml:"search_rate_limit_per_minute"`
}

type MapConfig struct {
	// Credentials for the external map engine. An empty key is a
	// configuration error surfaced to the user, not a crash.
	APIKey        string `yaml:"api_key"`
	SecurityToken string `yaml:"security_token"`
	Style         string `yaml:"style"`
	DefaultZoom   int    `yaml:"default_zoom"`
}

func LoadConfig(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	err = yaml.Unmarshal(data, &config)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal YAML: %w", err)
	}

	return &config, nil
}
