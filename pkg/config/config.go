package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	ServerPort  string
	Environment string
	LogLevel    string

	BackendBaseURL string
	BackendTimeout time.Duration
	BackendRPS     float64

	StoreDriver         string
	StoreNamespace      string
	PebblePath          string
	RedisURL            string
	FirestoreProject    string
	FirestoreCredential string
	FirestoreCollection string

	UnreadPollInterval   time.Duration
	UnreadReconcileDelay time.Duration
	MinTokenLength       int
}

// fileConfig is the optional YAML overlay named by PORTAL_CONFIG_FILE.
// Environment variables win over values read from the file.
type fileConfig struct {
	Server struct {
		Port        string `yaml:"port"`
		Environment string `yaml:"environment"`
		LogLevel    string `yaml:"log_level"`
	} `yaml:"server"`
	Backend struct {
		BaseURL   string  `yaml:"base_url"`
		TimeoutMs int64   `yaml:"timeout_ms"`
		RPS       float64 `yaml:"rps"`
	} `yaml:"backend"`
	Store struct {
		Driver              string `yaml:"driver"`
		Namespace           string `yaml:"namespace"`
		PebblePath          string `yaml:"pebble_path"`
		RedisURL            string `yaml:"redis_url"`
		FirestoreProject    string `yaml:"firestore_project"`
		FirestoreCredential string `yaml:"firestore_credentials"`
		FirestoreCollection string `yaml:"firestore_collection"`
	} `yaml:"store"`
	Unread struct {
		PollIntervalMs   int64 `yaml:"poll_interval_ms"`
		ReconcileDelayMs int64 `yaml:"reconcile_delay_ms"`
	} `yaml:"unread"`
	Session struct {
		MinTokenLength int `yaml:"min_token_length"`
	} `yaml:"session"`
}

func Load() (*Config, error) {
	godotenv.Load()

	config := Default()

	if path := os.Getenv("PORTAL_CONFIG_FILE"); path != "" {
		if err := config.applyFile(path); err != nil {
			return nil, err
		}
	}

	config.ServerPort = getEnv("SERVER_PORT", config.ServerPort)
	config.Environment = getEnv("ENVIRONMENT", config.Environment)
	config.LogLevel = getEnv("LOG_LEVEL", config.LogLevel)
	config.BackendBaseURL = getEnv("BACKEND_BASE_URL", config.BackendBaseURL)
	config.BackendTimeout = getEnvAsMillis("BACKEND_TIMEOUT_MS", config.BackendTimeout)
	config.BackendRPS = getEnvAsFloat("BACKEND_RPS", config.BackendRPS)
	config.StoreDriver = getEnv("STORE_DRIVER", config.StoreDriver)
	config.StoreNamespace = getEnv("STORE_NAMESPACE", config.StoreNamespace)
	config.PebblePath = getEnv("PEBBLE_PATH", config.PebblePath)
	config.RedisURL = getEnv("REDIS_URL", config.RedisURL)
	config.FirestoreProject = getEnv("FIRESTORE_PROJECT_ID", config.FirestoreProject)
	config.FirestoreCredential = getEnv("FIRESTORE_CREDENTIALS_PATH", config.FirestoreCredential)
	config.FirestoreCollection = getEnv("FIRESTORE_COLLECTION", config.FirestoreCollection)
	config.UnreadPollInterval = getEnvAsMillis("UNREAD_POLL_INTERVAL_MS", config.UnreadPollInterval)
	config.UnreadReconcileDelay = getEnvAsMillis("UNREAD_RECONCILE_DELAY_MS", config.UnreadReconcileDelay)
	config.MinTokenLength = int(getEnvAsInt64("MIN_TOKEN_LENGTH", int64(config.MinTokenLength)))

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// Default returns the configuration used when nothing is overridden.
func Default() *Config {
	return &Config{
		ServerPort:           "8090",
		Environment:          "development",
		LogLevel:             "info",
		BackendBaseURL:       "http://localhost:8080/api",
		BackendTimeout:       10 * time.Second,
		BackendRPS:           20,
		StoreDriver:          "memory",
		StoreNamespace:       "rentalportal:",
		PebblePath:           "./data/identities",
		FirestoreCollection:  "portal_storage",
		UnreadPollInterval:   30 * time.Second,
		UnreadReconcileDelay: 500 * time.Millisecond,
		MinTokenLength:       10,
	}
}

func (c *Config) Validate() error {
	switch c.StoreDriver {
	case "memory", "pebble", "redis", "firestore":
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q", c.StoreDriver)
	}
	if c.BackendBaseURL == "" {
		return fmt.Errorf("BACKEND_BASE_URL is required")
	}
	if c.UnreadPollInterval <= 0 {
		return fmt.Errorf("UNREAD_POLL_INTERVAL_MS must be positive")
	}
	if c.UnreadReconcileDelay < 0 {
		return fmt.Errorf("UNREAD_RECONCILE_DELAY_MS must not be negative")
	}
	if c.StoreDriver == "redis" && c.RedisURL == "" {
		return fmt.Errorf("REDIS_URL is required for the redis store")
	}
	if c.StoreDriver == "firestore" && c.FirestoreProject == "" {
		return fmt.Errorf("FIRESTORE_PROJECT_ID is required for the firestore store")
	}
	return nil
}

func (c *Config) applyFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}

	setString(&c.ServerPort, fc.Server.Port)
	setString(&c.Environment, fc.Server.Environment)
	setString(&c.LogLevel, fc.Server.LogLevel)
	setString(&c.BackendBaseURL, fc.Backend.BaseURL)
	if fc.Backend.TimeoutMs > 0 {
		c.BackendTimeout = time.Duration(fc.Backend.TimeoutMs) * time.Millisecond
	}
	if fc.Backend.RPS > 0 {
		c.BackendRPS = fc.Backend.RPS
	}
	setString(&c.StoreDriver, fc.Store.Driver)
	setString(&c.StoreNamespace, fc.Store.Namespace)
	setString(&c.PebblePath, fc.Store.PebblePath)
	setString(&c.RedisURL, fc.Store.RedisURL)
	setString(&c.FirestoreProject, fc.Store.FirestoreProject)
	setString(&c.FirestoreCredential, fc.Store.FirestoreCredential)
	setString(&c.FirestoreCollection, fc.Store.FirestoreCollection)
	if fc.Unread.PollIntervalMs > 0 {
		c.UnreadPollInterval = time.Duration(fc.Unread.PollIntervalMs) * time.Millisecond
	}
	if fc.Unread.ReconcileDelayMs > 0 {
		c.UnreadReconcileDelay = time.Duration(fc.Unread.ReconcileDelayMs) * time.Millisecond
	}
	if fc.Session.MinTokenLength > 0 {
		c.MinTokenLength = fc.Session.MinTokenLength
	}
	return nil
}

func setString(dst *string, value string) {
	if value != "" {
		*dst = value
	}
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsInt64(key string, defaultValue int64) int64 {
	if value, exists := os.LookupEnv(key); exists {
		intValue, err := strconv.ParseInt(value, 10, 64)
		if err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value, exists := os.LookupEnv(key); exists {
		f, err := strconv.ParseFloat(value, 64)
		if err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvAsMillis(key string, defaultValue time.Duration) time.Duration {
	ms := getEnvAsInt64(key, -1)
	if ms < 0 {
		return defaultValue
	}
	return time.Duration(ms) * time.Millisecond
}
