// Package config handles configuration loading from an optional YAML file,
// environment variables and Kubernetes secrets.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Connection types
const (
	ConnectionREST   = "rest_api"
	ConnectionModbus = "modbus_tcp"
)

// Config holds all configuration for the Xtherma bridge.
type Config struct {
	// Connection selects the transport: rest_api or modbus_tcp.
	Connection string       `yaml:"connection"`
	API        APIConfig    `yaml:"api"`
	Modbus     ModbusConfig `yaml:"modbus"`

	// Server configuration
	ListenAddr     string        `yaml:"listen_addr"`
	RequestTimeout time.Duration `yaml:"request_timeout"`

	// Logging configuration
	LogLevel  string `yaml:"log_level"`  // debug, info, warn, error
	LogFormat string `yaml:"log_format"` // text, json

	MQTT     MQTTConfig     `yaml:"mqtt"`
	InfluxDB InfluxDBConfig `yaml:"influxdb"`
	Journal  JournalConfig  `yaml:"journal"`
}

// APIConfig configures the cloud REST transport.
type APIConfig struct {
	URL    string `yaml:"url"`
	Key    string `yaml:"key"`
	Serial string `yaml:"serial"`
}

// ModbusConfig configures the local Modbus/TCP transport.
type ModbusConfig struct {
	Host         string        `yaml:"host"`
	Port         int           `yaml:"port"`
	UnitID       int           `yaml:"unit_id"`
	Timeout      time.Duration `yaml:"timeout"`
	PollInterval time.Duration `yaml:"poll_interval"`
}

// MQTTConfig configures state publishing and command handling over MQTT.
type MQTTConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Broker      string `yaml:"broker"` // tcp://host:1883
	ClientID    string `yaml:"client_id"`
	Username    string `yaml:"username"`
	Password    string `yaml:"password"`
	TopicPrefix string `yaml:"topic_prefix"`
	QoS         int    `yaml:"qos"`
}

// InfluxDBConfig configures the history sink.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"` // seconds
}

// JournalConfig configures the write journal. An empty path disables it.
type JournalConfig struct {
	Path string `yaml:"path"`
}

// defaultConfig returns a Config with defaults for every optional field.
func defaultConfig() *Config {
	return &Config{
		Connection: ConnectionModbus,
		Modbus: ModbusConfig{
			Port:         502,
			UnitID:       1,
			Timeout:      10 * time.Second,
			PollInterval: 30 * time.Second,
		},
		ListenAddr:     ":9809",
		RequestTimeout: 30 * time.Second,
		LogLevel:       "info",
		LogFormat:      "text",
		MQTT: MQTTConfig{
			ClientID:    "xtherma-bridge",
			TopicPrefix: "xtherma",
			QoS:         1,
		},
		InfluxDB: InfluxDBConfig{
			Bucket:        "xtherma",
			BatchSize:     100,
			FlushInterval: 10,
		},
	}
}

// LoadConfig loads configuration in order: defaults, the YAML file named by
// XTHERMA_CONFIG, Kubernetes secrets, then environment variables.
func LoadConfig() (*Config, error) {
	cfg := defaultConfig()

	if path := os.Getenv("XTHERMA_CONFIG"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	// Try to load the API key from Kubernetes secrets first
	apiKey, err := tryLoadFromSecrets()
	if err != nil {
		return nil, fmt.Errorf("reading secrets: %w", err)
	}
	if apiKey != "" {
		cfg.API.Key = apiKey
	} else if key := os.Getenv("XTHERMA_API_KEY"); key != "" {
		cfg.API.Key = key
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// applyEnvOverrides overrides file values with XTHERMA_* environment variables.
func applyEnvOverrides(cfg *Config) error {
	setString := func(name string, dst *string) {
		if v := os.Getenv(name); v != "" {
			*dst = v
		}
	}
	setInt := func(name string, dst *int) error {
		if v := os.Getenv(name); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("%s: %w", name, err)
			}
			*dst = n
		}
		return nil
	}
	setSeconds := func(name string, dst *time.Duration) error {
		if v := os.Getenv(name); v != "" {
			seconds, err := strconv.Atoi(v)
			if err != nil || seconds <= 0 {
				return fmt.Errorf("%s: %q is not a positive number of seconds", name, v)
			}
			*dst = time.Duration(seconds) * time.Second
		}
		return nil
	}

	setString("XTHERMA_CONNECTION", &cfg.Connection)
	setString("XTHERMA_API_URL", &cfg.API.URL)
	setString("XTHERMA_SERIAL", &cfg.API.Serial)

	setString("XTHERMA_MODBUS_HOST", &cfg.Modbus.Host)
	if err := setInt("XTHERMA_MODBUS_PORT", &cfg.Modbus.Port); err != nil {
		return err
	}
	if err := setInt("XTHERMA_MODBUS_UNIT_ID", &cfg.Modbus.UnitID); err != nil {
		return err
	}
	if err := setSeconds("XTHERMA_MODBUS_TIMEOUT", &cfg.Modbus.Timeout); err != nil {
		return err
	}
	if err := setSeconds("XTHERMA_POLL_INTERVAL", &cfg.Modbus.PollInterval); err != nil {
		return err
	}

	setString("XTHERMA_ADDR", &cfg.ListenAddr)
	if err := setSeconds("XTHERMA_REQUEST_TIMEOUT", &cfg.RequestTimeout); err != nil {
		return err
	}
	setString("XTHERMA_LOG_LEVEL", &cfg.LogLevel)
	setString("XTHERMA_LOG_FORMAT", &cfg.LogFormat)

	// Setting a broker or server URL enables the integration.
	if v := os.Getenv("XTHERMA_MQTT_BROKER"); v != "" {
		cfg.MQTT.Broker = v
		cfg.MQTT.Enabled = true
	}
	setString("XTHERMA_MQTT_USERNAME", &cfg.MQTT.Username)
	setString("XTHERMA_MQTT_PASSWORD", &cfg.MQTT.Password)
	setString("XTHERMA_MQTT_TOPIC_PREFIX", &cfg.MQTT.TopicPrefix)

	if v := os.Getenv("XTHERMA_INFLUXDB_URL"); v != "" {
		cfg.InfluxDB.URL = v
		cfg.InfluxDB.Enabled = true
	}
	setString("XTHERMA_INFLUXDB_TOKEN", &cfg.InfluxDB.Token)
	setString("XTHERMA_INFLUXDB_ORG", &cfg.InfluxDB.Org)
	setString("XTHERMA_INFLUXDB_BUCKET", &cfg.InfluxDB.Bucket)

	setString("XTHERMA_JOURNAL_PATH", &cfg.Journal.Path)

	return nil
}

// Validate checks that all required configuration fields are set.
func (c *Config) Validate() error {
	switch c.Connection {
	case ConnectionREST:
		if c.API.Key == "" {
			return errors.New("api key is required (set XTHERMA_API_KEY or mount K8s secret)")
		}
		if c.API.Serial == "" {
			return errors.New("serial number is required for rest_api (set XTHERMA_SERIAL)")
		}
	case ConnectionModbus:
		if c.Modbus.Host == "" {
			return errors.New("modbus host is required (set XTHERMA_MODBUS_HOST)")
		}
		if c.Modbus.Port < 1 || c.Modbus.Port > 65535 {
			return fmt.Errorf("modbus port %d out of range", c.Modbus.Port)
		}
		if c.Modbus.UnitID < 0 || c.Modbus.UnitID > 247 {
			return fmt.Errorf("modbus unit id %d out of range 0..247", c.Modbus.UnitID)
		}
		if c.Modbus.Timeout <= 0 {
			return errors.New("modbus timeout must be positive")
		}
		if c.Modbus.PollInterval < time.Second {
			return errors.New("poll interval must be at least 1 second")
		}
	default:
		return fmt.Errorf("connection must be %s or %s, got %q", ConnectionREST, ConnectionModbus, c.Connection)
	}

	if c.RequestTimeout < time.Second {
		return errors.New("request timeout must be at least 1 second")
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown log level %q", c.LogLevel)
	}
	if c.LogFormat != "text" && c.LogFormat != "json" {
		return fmt.Errorf("unknown log format %q", c.LogFormat)
	}

	if c.MQTT.Enabled {
		if c.MQTT.Broker == "" {
			return errors.New("mqtt broker is required when mqtt is enabled")
		}
		if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
			return fmt.Errorf("mqtt qos %d must be 0, 1 or 2", c.MQTT.QoS)
		}
		if c.MQTT.TopicPrefix == "" {
			return errors.New("mqtt topic prefix cannot be empty")
		}
	}

	if c.InfluxDB.Enabled {
		if c.InfluxDB.URL == "" || c.InfluxDB.Token == "" {
			return errors.New("influxdb url and token are required when influxdb is enabled")
		}
		if c.InfluxDB.Org == "" || c.InfluxDB.Bucket == "" {
			return errors.New("influxdb org and bucket are required when influxdb is enabled")
		}
	}

	return nil
}
