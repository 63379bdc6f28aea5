package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/zhouzirui/agent-relay/backend/internal/service/upstream"
)

// Config aggregates every setting the relay reads.
type Config struct {
	Server   ServerConfig
	Upstream UpstreamConfig
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	server, err := loadServerConfig()
	if err != nil {
		return nil, err
	}

	up, err := loadUpstreamConfig()
	if err != nil {
		return nil, err
	}

	return &Config{Server: server, Upstream: up}, nil
}

// ServerConfig describes the HTTP listener.
type ServerConfig struct {
	Addr string
}

func loadServerConfig() (ServerConfig, error) {
	port := strings.TrimSpace(os.Getenv("PORT"))
	if port == "" {
		port = "8001"
	}

	if strings.Contains(port, ":") {
		// Accept ":8001" or "127.0.0.1:8001" directly.
		return ServerConfig{Addr: port}, nil
	}

	if strings.Contains(port, " ") {
		return ServerConfig{}, fmt.Errorf("invalid PORT value: %q", port)
	}

	return ServerConfig{Addr: ":" + port}, nil
}

// UpstreamConfig describes the enhanced tier and its call budgets.
// The tier being down or absent is a normal runtime condition, so
// nothing here is required.
type UpstreamConfig struct {
	BaseURL  string
	Timeouts upstream.Timeouts
}

func loadUpstreamConfig() (UpstreamConfig, error) {
	timeouts := upstream.DefaultTimeouts()

	overrides := []struct {
		key    string
		target *time.Duration
	}{
		{"UPSTREAM_CREATE_TIMEOUT", &timeouts.Create},
		{"UPSTREAM_MESSAGE_TIMEOUT", &timeouts.Message},
		{"UPSTREAM_MODE_TIMEOUT", &timeouts.Mode},
		{"UPSTREAM_STATUS_TIMEOUT", &timeouts.Status},
	}
	for _, o := range overrides {
		seconds, err := parseOptionalIntEnv(o.key)
		if err != nil {
			return UpstreamConfig{}, err
		}
		if seconds != nil {
			if *seconds < 1 {
				return UpstreamConfig{}, fmt.Errorf("invalid %s value: %d", o.key, *seconds)
			}
			*o.target = time.Duration(*seconds) * time.Second
		}
	}

	return UpstreamConfig{
		BaseURL:  getEnvOrDefault("ENHANCED_API_URL", "http://localhost:3003"),
		Timeouts: timeouts,
	}, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func parseOptionalIntEnv(key string) (*int, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.Atoi(value)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}
