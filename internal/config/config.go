// Package config provides application configuration loaded from environment variables.
// Use the package-level Get() function to obtain the singleton Config instance.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"sync"
	"time"
)

// ──────────────────────────────────────────────────────────────────────────────
// Sub-config structs
// ──────────────────────────────────────────────────────────────────────────────

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port                 string        // e.g. "8080"
	BackofficePort       string        // e.g. "8081"
	Env                  string        // "development" | "production"
	ReadTimeout          time.Duration // default 10s
	WriteTimeout         time.Duration // default 10s
	BackofficeAllowedIPs string        // comma-separated IPs; "" = allow all
}

// DBConfig holds PostgreSQL connection settings.
type DBConfig struct {
	DSN             string        // full postgres DSN
	MaxOpenConns    int           // default 25
	MaxIdleConns    int           // default 10
	ConnMaxLifetime time.Duration // default 5m
}

// JWTConfig holds JWT verification settings. Tokens are issued by the
// identity service; this core only verifies them.
type JWTConfig struct {
	AccessSecret string // must be set
}

// AuctionConfig holds bidding engine settings.
type AuctionConfig struct {
	DefaultDuration    time.Duration // default auction length, default 90s
	SnipeWindow        time.Duration // anti-snipe window before close, default 15s
	ExtensionDuration  time.Duration // added per extension, default 15s
	MaxTimerExtensions int           // default 10
	CloseSweepInterval time.Duration // scheduler poll for expired auctions, default 1s
}

// EscrowConfig holds escrow and fee settings.
type EscrowConfig struct {
	FeeRate              float64       // platform fee, e.g. 0.08 = 8%
	Currency             string        // ISO currency code, default "USD"
	AutoReleaseWindow    time.Duration // held -> auto release delay, default 72h
	ReleaseSweepInterval time.Duration // scheduler poll for due releases, default 1m
	SweepBatchSize       int           // escrows per auto-release sweep, default 100
}

// PaymentConfig holds payment provider API settings.
type PaymentConfig struct {
	BaseURL       string        // provider API root
	APIKey        string        // must be set in production
	WebhookSecret string        // shared secret for webhook signatures
	Timeout       time.Duration // per-call timeout, default 10s
}

// ──────────────────────────────────────────────────────────────────────────────
// Top-level Config
// ──────────────────────────────────────────────────────────────────────────────

// Config is the root configuration object for the entire application.
type Config struct {
	Server  ServerConfig
	DB      DBConfig
	JWT     JWTConfig
	Auction AuctionConfig
	Escrow  EscrowConfig
	Payment PaymentConfig
}

// IsProd returns true when running in the production environment.
func (c *Config) IsProd() bool {
	return c.Server.Env == "production"
}

// Validate checks that all required configuration values are present and valid.
// Returns the first validation error encountered.
func (c *Config) Validate() error {
	var errs []error

	if c.JWT.AccessSecret == "" {
		errs = append(errs, errors.New("JWT_ACCESS_SECRET must be set"))
	}

	if c.IsProd() {
		if c.DB.DSN == "" {
			errs = append(errs, errors.New("DATABASE_DSN must be set in production"))
		}
		if c.Payment.APIKey == "" {
			errs = append(errs, errors.New("PAYMENT_API_KEY must be set in production"))
		}
	}

	if c.Escrow.FeeRate < 0 || c.Escrow.FeeRate >= 1 {
		errs = append(errs, fmt.Errorf(
			"ESCROW_FEE_RATE must be in [0, 1), got %.4f", c.Escrow.FeeRate))
	}

	if c.Auction.SnipeWindow <= 0 {
		errs = append(errs, errors.New("AUCTION_SNIPE_WINDOW must be positive"))
	}
	if c.Auction.ExtensionDuration <= 0 {
		errs = append(errs, errors.New("AUCTION_EXTENSION_DURATION must be positive"))
	}
	if c.Auction.MaxTimerExtensions < 0 {
		errs = append(errs, errors.New("AUCTION_MAX_EXTENSIONS must not be negative"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// ──────────────────────────────────────────────────────────────────────────────
// Singleton
// ──────────────────────────────────────────────────────────────────────────────

var (
	instance *Config
	once     sync.Once
	loadErr  error
)

// Get returns the singleton Config, loading it once from environment variables.
// Panics if loading fails — call this early in main() to catch misconfigurations
// at startup.
func Get() *Config {
	once.Do(func() {
		instance, loadErr = load()
	})
	if loadErr != nil {
		panic(fmt.Sprintf("config: failed to load: %v", loadErr))
	}
	return instance
}

// MustLoad loads and validates configuration. Intended for use in main().
// Panics on any error so misconfiguration is caught immediately at boot.
func MustLoad() *Config {
	cfg := Get()
	if err := cfg.Validate(); err != nil {
		panic(fmt.Sprintf("config: validation failed: %v", err))
	}
	return cfg
}

// ──────────────────────────────────────────────────────────────────────────────
// Internal loader
// ──────────────────────────────────────────────────────────────────────────────

func load() (*Config, error) {
	cfg := &Config{}

	// ── Server ────────────────────────────────────────────────────────────────
	cfg.Server = ServerConfig{
		Port:                 getEnv("SERVER_PORT", "8080"),
		BackofficePort:       getEnv("BACKOFFICE_PORT", "8081"),
		Env:                  getEnv("ENVIRONMENT", "development"),
		ReadTimeout:          getDuration("SERVER_READ_TIMEOUT", 10*time.Second),
		WriteTimeout:         getDuration("SERVER_WRITE_TIMEOUT", 10*time.Second),
		BackofficeAllowedIPs: getEnv("BACKOFFICE_ALLOWED_IPS", ""),
	}

	// ── Database ──────────────────────────────────────────────────────────────
	dsn := os.Getenv("DATABASE_DSN")
	if dsn == "" {
		// Build DSN from individual components for convenience in dev
		dsn = fmt.Sprintf(
			"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
			getEnv("DB_HOST", "localhost"),
			getEnv("DB_PORT", "5432"),
			getEnv("DB_USER", "postgres"),
			getEnv("DB_PASSWORD", ""),
			getEnv("DB_NAME", "barterdash_auctions"),
			getEnv("DB_SSLMODE", "disable"),
		)
	}

	maxOpen, err := getInt("DB_MAX_OPEN_CONNS", 25)
	if err != nil {
		return nil, fmt.Errorf("DB_MAX_OPEN_CONNS: %w", err)
	}
	maxIdle, err := getInt("DB_MAX_IDLE_CONNS", 10)
	if err != nil {
		return nil, fmt.Errorf("DB_MAX_IDLE_CONNS: %w", err)
	}

	cfg.DB = DBConfig{
		DSN:             dsn,
		MaxOpenConns:    maxOpen,
		MaxIdleConns:    maxIdle,
		ConnMaxLifetime: getDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
	}

	// ── JWT ───────────────────────────────────────────────────────────────────
	cfg.JWT = JWTConfig{
		AccessSecret: getEnv("JWT_ACCESS_SECRET", ""),
	}

	// ── Auction ───────────────────────────────────────────────────────────────
	maxExt, err := getInt("AUCTION_MAX_EXTENSIONS", 10)
	if err != nil {
		return nil, fmt.Errorf("AUCTION_MAX_EXTENSIONS: %w", err)
	}

	cfg.Auction = AuctionConfig{
		DefaultDuration:    getDuration("AUCTION_DEFAULT_DURATION", 90*time.Second),
		SnipeWindow:        getDuration("AUCTION_SNIPE_WINDOW", 15*time.Second),
		ExtensionDuration:  getDuration("AUCTION_EXTENSION_DURATION", 15*time.Second),
		MaxTimerExtensions: maxExt,
		CloseSweepInterval: getDuration("AUCTION_CLOSE_SWEEP_INTERVAL", time.Second),
	}

	// ── Escrow ────────────────────────────────────────────────────────────────
	feeRate, err := getFloat("ESCROW_FEE_RATE", 0.08)
	if err != nil {
		return nil, fmt.Errorf("ESCROW_FEE_RATE: %w", err)
	}
	batch, err := getInt("ESCROW_SWEEP_BATCH_SIZE", 100)
	if err != nil {
		return nil, fmt.Errorf("ESCROW_SWEEP_BATCH_SIZE: %w", err)
	}

	cfg.Escrow = EscrowConfig{
		FeeRate:              feeRate,
		Currency:             getEnv("ESCROW_CURRENCY", "USD"),
		AutoReleaseWindow:    getDuration("ESCROW_AUTO_RELEASE_WINDOW", 72*time.Hour),
		ReleaseSweepInterval: getDuration("ESCROW_RELEASE_SWEEP_INTERVAL", time.Minute),
		SweepBatchSize:       batch,
	}

	// ── Payment provider ──────────────────────────────────────────────────────
	cfg.Payment = PaymentConfig{
		BaseURL:       getEnv("PAYMENT_BASE_URL", "https://api.payments.example.com"),
		APIKey:        getEnv("PAYMENT_API_KEY", ""),
		WebhookSecret: getEnv("PAYMENT_WEBHOOK_SECRET", ""),
		Timeout:       getDuration("PAYMENT_TIMEOUT", 10*time.Second),
	}

	return cfg, nil
}

// ──────────────────────────────────────────────────────────────────────────────
// Helper functions
// ──────────────────────────────────────────────────────────────────────────────

func getEnv(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getInt(key string, defaultVal int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid integer %q", v)
	}
	return n, nil
}

func getFloat(key string, defaultVal float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid float %q", v)
	}
	return f, nil
}

// getDuration parses an env var as a Go duration string (e.g. "15m", "2s").
// Falls back to defaultVal if the variable is unset or empty.
func getDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}
