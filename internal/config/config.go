package config

import (
	"fmt"
	"os"
	"strconv"
)

// Config lists the tunable parameters for the Moreh Radar server.
type Config struct {
	HTTPPort      int
	MQTTBrokerURL string
	DatabasePath  string
	LedgerPath    string
	LogLevel      string
	OperatorToken string
	MaxDistanceKm float64
	MDNSEnabled   bool
}

const (
	defaultHTTPPort      = 8080
	defaultLedgerPath    = "data/claimed.json"
	defaultLogLevel      = "info"
	defaultMaxDistanceKm = 15
)

// Load derives configuration values from environment variables, falling
// back to defaults. An empty MOREHRADAR_DATABASE_PATH selects demo mode
// (in-memory seed data); an empty MOREHRADAR_MQTT_BROKER disables the
// realtime push channel.
func Load() (Config, error) {
	cfg := Config{
		HTTPPort:      defaultHTTPPort,
		LedgerPath:    defaultLedgerPath,
		LogLevel:      defaultLogLevel,
		MaxDistanceKm: defaultMaxDistanceKm,
		MDNSEnabled:   true,
	}

	if v := os.Getenv("MOREHRADAR_HTTP_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid MOREHRADAR_HTTP_PORT: %w", err)
		}
		cfg.HTTPPort = port
	}

	if v := os.Getenv("MOREHRADAR_MQTT_BROKER"); v != "" {
		cfg.MQTTBrokerURL = v
	}

	if v := os.Getenv("MOREHRADAR_DATABASE_PATH"); v != "" {
		cfg.DatabasePath = v
	}

	if v := os.Getenv("MOREHRADAR_LEDGER_PATH"); v != "" {
		cfg.LedgerPath = v
	}

	if v := os.Getenv("MOREHRADAR_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}

	if v := os.Getenv("MOREHRADAR_OPERATOR_TOKEN"); v != "" {
		cfg.OperatorToken = v
	}

	if v := os.Getenv("MOREHRADAR_MAX_DISTANCE_KM"); v != "" {
		km, err := strconv.ParseFloat(v, 64)
		if err != nil || km <= 0 {
			return Config{}, fmt.Errorf("invalid MOREHRADAR_MAX_DISTANCE_KM: %q", v)
		}
		cfg.MaxDistanceKm = km
	}

	if v := os.Getenv("MOREHRADAR_MDNS"); v != "" {
		enabled, err := strconv.ParseBool(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid MOREHRADAR_MDNS: %w", err)
		}
		cfg.MDNSEnabled = enabled
	}

	return cfg, nil
}
