package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"parkspot/internal/models"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	App        AppConfig        `yaml:"app"`
	Database   DatabaseConfig   `yaml:"database"`
	Redis      RedisConfig      `yaml:"redis"`
	Kafka      KafkaConfig      `yaml:"kafka"`
	Payment    PaymentConfig    `yaml:"payment"`
	Booking    BookingConfig    `yaml:"booking"`
	Backup     BackupConfig     `yaml:"backup"`
	Monitoring MonitoringConfig `yaml:"monitoring"`
	Logging    LoggingConfig    `yaml:"logging"`
	API        APIConfig        `yaml:"api"`
}

type AppConfig struct {
	Name        string `yaml:"name"`
	Environment string `yaml:"environment"`
	Version     string `yaml:"version"`
}

type DatabaseConfig struct {
	Path string `yaml:"path"`
}

type RedisConfig struct {
	Address  string `yaml:"address"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"pool_size"`
}

type KafkaConfig struct {
	Enabled      bool          `yaml:"enabled"`
	Brokers      []string      `yaml:"brokers"`
	Topic        string        `yaml:"topic"`
	ClientID     string        `yaml:"client_id"`
	RequiredAcks int           `yaml:"required_acks"`
	Compression  string        `yaml:"compression"`
	BatchTimeout time.Duration `yaml:"batch_timeout"`
	MaxAttempts  int           `yaml:"max_attempts"`
}

type PaymentConfig struct {
	KeyID     string        `yaml:"key_id"`
	KeySecret string        `yaml:"key_secret"`
	BaseURL   string        `yaml:"base_url"`
	Currency  string        `yaml:"currency"`
	Timeout   time.Duration `yaml:"timeout"`
}

type BookingConfig struct {
	CouponCode          string        `yaml:"coupon_code"`
	CouponPercent       float64       `yaml:"coupon_percent"`
	SweepInterval       time.Duration `yaml:"sweep_interval"`
	PendingPaymentTTL   time.Duration `yaml:"pending_payment_ttl"`
	MaxCreatesPerWindow int           `yaml:"max_creates_per_window"`
	CreateWindow        time.Duration `yaml:"create_window"`
	LockTTL             time.Duration `yaml:"lock_ttl"`
}

type BackupConfig struct {
	Enabled       bool   `yaml:"enabled"`
	Schedule      string `yaml:"schedule"`
	RetentionDays int    `yaml:"retention_days"`
	StoragePath   string `yaml:"storage_path"`
}

type MonitoringConfig struct {
	PrometheusEnabled bool `yaml:"prometheus_enabled"`
	PrometheusPort    int  `yaml:"prometheus_port"`
}

type LoggingConfig struct {
	Level    string `yaml:"level"`
	Format   string `yaml:"format"`
	Output   string `yaml:"output"`
	FilePath string `yaml:"file_path"`
}

type APIConfig struct {
	HTTP      APIHTTPConfig      `yaml:"http"`
	Auth      APIAuthConfig      `yaml:"auth"`
	RateLimit APIRateLimitConfig `yaml:"rate_limit"`
	CORS      APICORSConfig      `yaml:"cors"`
}

type APIHTTPConfig struct {
	Port              int           `yaml:"port"`
	ReadHeaderTimeout time.Duration `yaml:"read_header_timeout"`
	WriteTimeout      time.Duration `yaml:"write_timeout"`
}

type APIAuthConfig struct {
	JWTSecret    string        `yaml:"jwt_secret"`
	TokenTTL     time.Duration `yaml:"token_ttl"`
	AdminEmails  []string      `yaml:"admin_emails"`
	EnforceAdmin bool          `yaml:"enforce_admin"`
}

type APIRateLimitConfig struct {
	RPS   float64 `yaml:"rps"`
	Burst int     `yaml:"burst"`
}

type APICORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// Load reads the YAML config, expanding ${VAR} references from the
// environment and an optional .env file.
func Load(configPath string) (*Config, error) {
	if err := godotenv.Load(".env"); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, err
	}

	expandedData := []byte(os.ExpandEnv(string(data)))

	// Keys absent from the file keep these values; an explicit 0 disables expiry.
	config := Config{
		Booking: BookingConfig{PendingPaymentTTL: models.PendingPaymentTTLMinutes * time.Minute},
	}
	if err := yaml.Unmarshal(expandedData, &config); err != nil {
		return nil, err
	}

	config.applyDefaults()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return errors.New("database path is required")
	}
	if strings.TrimSpace(c.API.Auth.JWTSecret) == "" {
		return errors.New("api.auth.jwt_secret is required")
	}
	if c.Payment.KeySecret == "" {
		return errors.New("payment.key_secret is required")
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return errors.New("kafka.brokers is required when kafka is enabled")
	}
	if c.Booking.CouponPercent < 0 || c.Booking.CouponPercent > 100 {
		return fmt.Errorf("booking.coupon_percent must be within 0..100, got %v", c.Booking.CouponPercent)
	}
	if c.Booking.PendingPaymentTTL < 0 {
		return errors.New("booking.pending_payment_ttl must not be negative")
	}
	return nil
}

// IsAdmin reports whether the e-mail belongs to a configured administrator.
func (a APIAuthConfig) IsAdmin(email string) bool {
	for _, admin := range a.AdminEmails {
		if strings.EqualFold(strings.TrimSpace(admin), strings.TrimSpace(email)) {
			return true
		}
	}
	return false
}

func (c *Config) applyDefaults() {
	if c.App.Name == "" {
		c.App.Name = "parkspot"
	}
	if c.API.HTTP.Port == 0 {
		c.API.HTTP.Port = 5000
	}
	if c.API.HTTP.ReadHeaderTimeout == 0 {
		c.API.HTTP.ReadHeaderTimeout = 5 * time.Second
	}
	if c.API.HTTP.WriteTimeout == 0 {
		c.API.HTTP.WriteTimeout = 15 * time.Second
	}
	if c.API.Auth.TokenTTL == 0 {
		c.API.Auth.TokenTTL = time.Hour
	}
	if c.Monitoring.PrometheusEnabled && c.Monitoring.PrometheusPort == 0 {
		c.Monitoring.PrometheusPort = 9090
	}

	if c.Payment.Currency == "" {
		c.Payment.Currency = models.DefaultCurrency
	}
	if c.Payment.BaseURL == "" {
		c.Payment.BaseURL = "https://api.razorpay.com/v1"
	}
	if c.Payment.Timeout == 0 {
		c.Payment.Timeout = 10 * time.Second
	}

	if c.Booking.CouponCode == "" {
		c.Booking.CouponCode = models.DefaultCouponCode
	}
	if c.Booking.CouponPercent == 0 {
		c.Booking.CouponPercent = models.DefaultCouponPercent
	}
	if c.Booking.SweepInterval == 0 {
		c.Booking.SweepInterval = models.SweepIntervalSeconds * time.Second
	}
	if c.Booking.LockTTL == 0 {
		c.Booking.LockTTL = 5 * time.Second
	}
	if c.Booking.CreateWindow == 0 {
		c.Booking.CreateWindow = time.Minute
	}

	if c.Kafka.Topic == "" {
		c.Kafka.Topic = "parkspot.bookings"
	}
	if c.Kafka.ClientID == "" {
		c.Kafka.ClientID = c.App.Name
	}
	if c.Kafka.BatchTimeout == 0 {
		c.Kafka.BatchTimeout = 50 * time.Millisecond
	}
	if c.Kafka.MaxAttempts == 0 {
		c.Kafka.MaxAttempts = 3
	}

	if c.Backup.StoragePath == "" {
		c.Backup.StoragePath = "./data/backups"
	}
}
