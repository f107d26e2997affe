package config

import (
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Config holds application configuration
type Config struct {
	// Server configuration
	Server ServerConfig `json:"server"`

	// Database configuration
	Database DatabaseConfig `json:"database"`

	// Logging configuration
	Logging LoggingConfig `json:"logging"`

	// Application configuration
	App AppConfig `json:"app"`

	// Billing policy configuration
	Billing BillingConfig `json:"billing"`

	// Janitor configuration
	Janitor JanitorConfig `json:"janitor"`

	// Authentication configuration
	Auth AuthConfig `json:"auth"`

	// Post-transition hook configuration
	Hooks HooksConfig `json:"hooks"`
}

// ServerConfig holds server-specific configuration
type ServerConfig struct {
	Host         string        `json:"host"`
	Port         string        `json:"port"`
	ReadTimeout  time.Duration `json:"read_timeout"`
	WriteTimeout time.Duration `json:"write_timeout"`
	IdleTimeout  time.Duration `json:"idle_timeout"`
}

// DatabaseConfig holds database-specific configuration
type DatabaseConfig struct {
	Path string `json:"path"`
}

// LoggingConfig holds logging-specific configuration
type LoggingConfig struct {
	Level string `json:"level"`
}

// AppConfig holds application-specific configuration
type AppConfig struct {
	Name        string `json:"name"`
	Version     string `json:"version"`
	Environment string `json:"environment"`
	Debug       bool   `json:"debug"`
}

// BillingConfig holds the billing policy for lab usage sessions
type BillingConfig struct {
	UnitSeconds       int           `json:"unit_seconds"`        // Length of one billing unit
	FeePerUnit        float64       `json:"fee_per_unit"`        // Fee charged per billing unit
	MinimumFee        float64       `json:"minimum_fee"`         // Smallest non-zero fee a billed session can post
	MaxBillableTime   time.Duration `json:"max_billable_time"`   // Cap on billable duration per session
	HeartbeatInterval time.Duration `json:"heartbeat_interval"`  // Expected client heartbeat cadence
	PrintFeeUserPage  float64       `json:"print_fee_user_page"` // Per-page rate when the user supplies paper
	PrintFeeLabPage   float64       `json:"print_fee_lab_page"`  // Per-page rate when the lab supplies paper
}

// JanitorConfig holds janitor-specific configuration
type JanitorConfig struct {
	CheckInterval     time.Duration `json:"check_interval"`      // Interval at which idle sessions are checked
	IdleTimeout       time.Duration `json:"idle_timeout"`        // Time after last heartbeat before a session is reaped
	FullCleanInterval time.Duration `json:"full_clean_interval"` // Interval at which soft-deleted rows are purged
}

// AuthConfig holds authentication configuration
type AuthConfig struct {
	JWTSecret      string        `json:"-"` // ENV only
	TokenDuration  time.Duration `json:"token_duration"`
	GoogleClientId string        `json:"google_client_id"`
}

// HooksConfig holds post-transition hook configuration
type HooksConfig struct {
	NetworkToggle    bool   `json:"network_toggle"`    // Whether session start/end toggles the machine network
	NetworkInterface string `json:"network_interface"` // Interface name passed to the OS tooling
}

var (
	instance *Config
	once     sync.Once
	mu       sync.RWMutex
)

// Get returns the singleton configuration instance
func Get() *Config {
	mu.RLock()
	if instance != nil {
		defer mu.RUnlock()
		return instance
	}
	mu.RUnlock()

	once.Do(func() {
		mu.Lock()
		defer mu.Unlock()
		instance = loadConfig()
	})
	return instance
}

// loadConfig loads configuration from environment variables
func loadConfig() *Config {
	cfg := &Config{
		Server: ServerConfig{
			Host:         getEnv("SERVER_HOST", "localhost"),
			Port:         getEnv("SERVER_PORT", "5000"),
			ReadTimeout:  getEnvAsDuration("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout: getEnvAsDuration("SERVER_WRITE_TIMEOUT", 15*time.Second),
			IdleTimeout:  getEnvAsDuration("SERVER_IDLE_TIMEOUT", 60*time.Second),
		},
		Database: DatabaseConfig{
			Path: getEnv("DB_PATH", "data/labtrack.db"),
		},
		Logging: LoggingConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		App: AppConfig{
			Name:        getEnv("APP_NAME", "labtrack-backend"),
			Version:     getEnv("APP_VERSION", "1.0.0"),
			Environment: getEnv("ENV", "development"),
			Debug:       getEnvAsBool("DEBUG", false),
		},
		Billing: BillingConfig{
			UnitSeconds:       getEnvAsInt("BILLING_UNIT_SECONDS", 6),
			FeePerUnit:        getEnvAsFloat("BILLING_FEE_PER_UNIT", 0.01),
			MinimumFee:        getEnvAsFloat("BILLING_MINIMUM_FEE", 0.01),
			MaxBillableTime:   getEnvAsDuration("BILLING_MAX_BILLABLE_TIME", 60*time.Minute),
			HeartbeatInterval: getEnvAsDuration("BILLING_HEARTBEAT_INTERVAL", 6*time.Second),
			PrintFeeUserPage:  getEnvAsFloat("PRINT_FEE_USER_PAGE", 1),
			PrintFeeLabPage:   getEnvAsFloat("PRINT_FEE_LAB_PAGE", 2),
		},
		Janitor: JanitorConfig{
			CheckInterval:     getEnvAsDuration("JANITOR_CHECK_INTERVAL", 30*time.Second),
			IdleTimeout:       getEnvAsDuration("JANITOR_IDLE_TIMEOUT", 2*time.Minute),
			FullCleanInterval: getEnvAsDuration("JANITOR_FULL_CLEAN_INTERVAL", 24*time.Hour),
		},
		Auth: AuthConfig{
			JWTSecret:      getEnv("JWT_SECRET", ""),
			TokenDuration:  getEnvAsDuration("AUTH_TOKEN_DURATION", time.Hour),
			GoogleClientId: getEnv("GOOGLE_CLIENT_ID", ""),
		},
		Hooks: HooksConfig{
			NetworkToggle:    getEnvAsBool("HOOK_NETWORK_TOGGLE", false),
			NetworkInterface: getEnv("HOOK_NETWORK_INTERFACE", "eth0"),
		},
	}

	// Validate configuration
	if err := cfg.validate(); err != nil {
		panic(fmt.Sprintf("Invalid configuration: %v", err))
	}

	return cfg
}

// validate validates the configuration
func (c *Config) validate() error {
	// Validate server port
	if port, err := strconv.Atoi(c.Server.Port); err != nil || port < 1 || port > 65535 {
		return fmt.Errorf("invalid server port: %s", c.Server.Port)
	}

	// Validate environment
	validEnvs := []string{"development", "staging", "production"}
	if !slices.Contains(validEnvs, c.App.Environment) {
		return fmt.Errorf("invalid environment: %s (must be one of: %s)",
			c.App.Environment, strings.Join(validEnvs, ", "))
	}

	// Validate log level
	validLevels := []string{"debug", "info", "warn", "error"}
	if !slices.Contains(validLevels, strings.ToLower(c.Logging.Level)) {
		return fmt.Errorf("invalid log level: %s (must be one of: %s)",
			c.Logging.Level, strings.Join(validLevels, ", "))
	}

	// Validate billing policy
	if c.Billing.UnitSeconds <= 0 {
		return fmt.Errorf("invalid billing unit: %d seconds", c.Billing.UnitSeconds)
	}
	if c.Billing.FeePerUnit < 0 || c.Billing.MinimumFee < 0 {
		return fmt.Errorf("billing fees must not be negative")
	}
	if c.Billing.MaxBillableTime <= 0 {
		return fmt.Errorf("invalid maximum billable time: %s", c.Billing.MaxBillableTime)
	}

	// Validate janitor policy
	if c.Janitor.IdleTimeout < c.Billing.HeartbeatInterval {
		return fmt.Errorf("janitor idle timeout %s is shorter than the heartbeat interval %s",
			c.Janitor.IdleTimeout, c.Billing.HeartbeatInterval)
	}

	if c.IsProduction() && c.Auth.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required in production")
	}

	return nil
}

// IsDevelopment returns true if the app is running in development mode
func (c *Config) IsDevelopment() bool {
	return c.App.Environment == "development"
}

// IsProduction returns true if the app is running in production mode
func (c *Config) IsProduction() bool {
	return c.App.Environment == "production"
}

// GetServerAddress returns the server address in the format "host:port"
func (c *Config) GetServerAddress() string {
	return fmt.Sprintf("%s:%s", c.Server.Host, c.Server.Port)
}

// Reload resets the singleton so the next Get() reloads from the environment
func Reload() {
	mu.Lock()
	defer mu.Unlock()
	once = sync.Once{}
	instance = nil
}

// ForceReload forces an immediate reload of the configuration
func ForceReload() {
	mu.Lock()
	defer mu.Unlock()
	instance = loadConfig()
}

// getEnv gets an environment variable with a fallback value
func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

// getEnvAsBool gets an environment variable as boolean with a fallback value
func getEnvAsBool(key string, fallback bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return fallback
}

// getEnvAsInt gets an environment variable as int with a fallback value
func getEnvAsInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return fallback
}

// getEnvAsFloat gets an environment variable as float64 with a fallback value
func getEnvAsFloat(key string, fallback float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return fallback
}

// getEnvAsDuration gets an environment variable as duration with a fallback value
func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return fallback
}
