package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	App       AppConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Log       LogConfig
	HTTP      HTTPConfig
	Telemetry TelemetryConfig
	Recon     ReconConfig
	Payout    PayoutConfig
	Policy    PolicyConfig
	Storage   StorageConfig
	Rail      RailConfig
	Dispute   DisputeConfig
	Profiler  ProfilerConfig
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // json, console
	Output string // stdout, stderr, or file path
}

// AppConfig holds application-specific settings
type AppConfig struct {
	Name string
	Env  string
	Port string
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	DBName          string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime int // in minutes
	ConnMaxIdleTime int // in minutes
}

// RedisConfig holds Redis connection settings
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
	// EventDedupTTL bounds how long webhook event IDs are remembered
	EventDedupTTL time.Duration
}

// HTTPConfig holds HTTP server configuration
type HTTPConfig struct {
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	MaxHeaderBytes    int
	MaxBodySize       int64
	RateLimitEnabled  bool
	RateLimitRequests int
	RateLimitWindow   time.Duration
	CORSAllowOrigins  []string
	CORSAllowMethods  []string
	CORSAllowHeaders  []string
	TrustedProxies    []string
}

// TelemetryConfig holds OpenTelemetry configuration
type TelemetryConfig struct {
	Enabled           bool    // Whether to enable OpenTelemetry
	CollectorEndpoint string  // OTEL Collector endpoint (e.g., "localhost:4317")
	SamplingRatio     float64 // Sampling ratio (0.0-1.0, 1.0 = 100%)
	ServiceName       string  // Service name for traces
	Insecure          bool    // Use insecure (non-TLS) connection (development only)
	// Database tracing options
	DBTraceEnabled    bool          // Enable database query tracing (otelgorm)
	DBLogFullSQL      bool          // Log full SQL statements (dev only, disable in prod for security)
	DBSlowQueryThresh time.Duration // Slow query threshold for warnings (default: 200ms)
}

// ReconConfig tunes the reconciliation matcher and sweeps
type ReconConfig struct {
	WindowDays      int           // Fuzzy match date window
	MinConfidence   float64       // Fuzzy match acceptance threshold
	SweepInterval   time.Duration // How often the aging sweep runs
	MaxUnmatchedAge time.Duration // Age at which an unmatched feed row escalates
	BatchLimit      int           // Max external rows per matching run
}

// PayoutConfig tunes the payout pipeline
type PayoutConfig struct {
	CashAccountCode      string // Ledger account debited when payouts clear
	CreatorAccountPrefix string // Prefix for per-creator payable account codes
	DefaultRiskScore     float64
}

// PolicyConfig tunes the policy governor
type PolicyConfig struct {
	ApprovalTTL         time.Duration // How long a pending approval stays grantable
	CacheTTL            time.Duration // Active policy cache lifetime (0 disables caching)
	ApprovalAmountCents int64         // Amounts at or above this require human approval
	MaxRiskScore        float64       // Payouts scoring at or above this are denied
}

// StorageConfig holds evidence object storage settings
type StorageConfig struct {
	Provider  string // "s3" or "stub"
	Bucket    string
	Region    string
	Endpoint  string // Custom endpoint for S3-compatible stores (empty = AWS)
	AccessKey string
	SecretKey string
	PathStyle bool // Force path-style addressing, required by MinIO
}

// RailConfig holds payment rail client settings
type RailConfig struct {
	BaseURL    string
	APIKey     string
	Timeout    time.Duration
	MaxRetries int
}

// DisputeConfig tunes dispute handling
type DisputeConfig struct {
	ProviderBaseURL string
	ProviderAPIKey  string
	ProviderTimeout time.Duration
	// DeadlineWarning is how far ahead the sweep flags unsubmitted cases
	DeadlineWarning time.Duration
	SweepInterval   time.Duration
}

// ProfilerConfig holds continuous profiling settings
type ProfilerConfig struct {
	Enabled       bool
	ServerAddress string // Pyroscope server address (e.g. "http://pyroscope:4040")
}

// Load loads configuration from TOML file and environment variables
// Priority (highest to lowest):
// 1. Environment variables with STREAMCART_ prefix (e.g., STREAMCART_DATABASE_PASSWORD)
// 2. config.toml
// 3. Built-in defaults
func Load() (*Config, error) {
	v := viper.New()

	// Set config file settings
	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(".")
	v.AddConfigPath("./backend")
	v.AddConfigPath("/app")

	// Read config file
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found is OK, we'll use defaults and env vars
	}

	// Enable environment variable override
	v.SetEnvPrefix("STREAMCART")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Build config struct
	cfg := &Config{
		App: AppConfig{
			Name: v.GetString("app.name"),
			Env:  v.GetString("app.env"),
			Port: v.GetString("app.port"),
		},
		Database: DatabaseConfig{
			Host:            v.GetString("database.host"),
			Port:            v.GetInt("database.port"),
			User:            v.GetString("database.user"),
			Password:        v.GetString("database.password"),
			DBName:          v.GetString("database.dbname"),
			SSLMode:         v.GetString("database.sslmode"),
			MaxOpenConns:    v.GetInt("database.max_open_conns"),
			MaxIdleConns:    v.GetInt("database.max_idle_conns"),
			ConnMaxLifetime: v.GetInt("database.conn_max_lifetime"),
			ConnMaxIdleTime: v.GetInt("database.conn_max_idle_time"),
		},
		Redis: RedisConfig{
			Host:          v.GetString("redis.host"),
			Port:          v.GetInt("redis.port"),
			Password:      v.GetString("redis.password"),
			DB:            v.GetInt("redis.db"),
			EventDedupTTL: v.GetDuration("redis.event_dedup_ttl"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
			Output: v.GetString("log.output"),
		},
		HTTP: HTTPConfig{
			ReadTimeout:       v.GetDuration("http.read_timeout"),
			WriteTimeout:      v.GetDuration("http.write_timeout"),
			IdleTimeout:       v.GetDuration("http.idle_timeout"),
			MaxHeaderBytes:    v.GetInt("http.max_header_bytes"),
			MaxBodySize:       v.GetInt64("http.max_body_size"),
			RateLimitEnabled:  v.GetBool("http.rate_limit_enabled"),
			RateLimitRequests: v.GetInt("http.rate_limit_requests"),
			RateLimitWindow:   v.GetDuration("http.rate_limit_window"),
			CORSAllowOrigins:  v.GetStringSlice("http.cors_allow_origins"),
			CORSAllowMethods:  v.GetStringSlice("http.cors_allow_methods"),
			CORSAllowHeaders:  v.GetStringSlice("http.cors_allow_headers"),
			TrustedProxies:    v.GetStringSlice("http.trusted_proxies"),
		},
		Telemetry: TelemetryConfig{
			Enabled:           v.GetBool("telemetry.enabled"),
			CollectorEndpoint: v.GetString("telemetry.collector_endpoint"),
			SamplingRatio:     v.GetFloat64("telemetry.sampling_ratio"),
			ServiceName:       v.GetString("telemetry.service_name"),
			Insecure:          v.GetBool("telemetry.insecure"),
			DBTraceEnabled:    v.GetBool("telemetry.db_trace_enabled"),
			DBLogFullSQL:      v.GetBool("telemetry.db_log_full_sql"),
			DBSlowQueryThresh: v.GetDuration("telemetry.db_slow_query_threshold"),
		},
		Recon: ReconConfig{
			WindowDays:      v.GetInt("recon.window_days"),
			MinConfidence:   v.GetFloat64("recon.min_confidence"),
			SweepInterval:   v.GetDuration("recon.sweep_interval"),
			MaxUnmatchedAge: v.GetDuration("recon.max_unmatched_age"),
			BatchLimit:      v.GetInt("recon.batch_limit"),
		},
		Payout: PayoutConfig{
			CashAccountCode:      v.GetString("payout.cash_account_code"),
			CreatorAccountPrefix: v.GetString("payout.creator_account_prefix"),
			DefaultRiskScore:     v.GetFloat64("payout.default_risk_score"),
		},
		Policy: PolicyConfig{
			ApprovalTTL:         v.GetDuration("policy.approval_ttl"),
			CacheTTL:            v.GetDuration("policy.cache_ttl"),
			ApprovalAmountCents: v.GetInt64("policy.approval_amount_cents"),
			MaxRiskScore:        v.GetFloat64("policy.max_risk_score"),
		},
		Storage: StorageConfig{
			Provider:  v.GetString("storage.provider"),
			Bucket:    v.GetString("storage.bucket"),
			Region:    v.GetString("storage.region"),
			Endpoint:  v.GetString("storage.endpoint"),
			AccessKey: v.GetString("storage.access_key"),
			SecretKey: v.GetString("storage.secret_key"),
			PathStyle: v.GetBool("storage.path_style"),
		},
		Rail: RailConfig{
			BaseURL:    v.GetString("rail.base_url"),
			APIKey:     v.GetString("rail.api_key"),
			Timeout:    v.GetDuration("rail.timeout"),
			MaxRetries: v.GetInt("rail.max_retries"),
		},
		Dispute: DisputeConfig{
			ProviderBaseURL: v.GetString("dispute.provider_base_url"),
			ProviderAPIKey:  v.GetString("dispute.provider_api_key"),
			ProviderTimeout: v.GetDuration("dispute.provider_timeout"),
			DeadlineWarning: v.GetDuration("dispute.deadline_warning"),
			SweepInterval:   v.GetDuration("dispute.sweep_interval"),
		},
		Profiler: ProfilerConfig{
			Enabled:       v.GetBool("profiler.enabled"),
			ServerAddress: v.GetString("profiler.server_address"),
		},
	}

	// Apply defaults for empty values
	applyDefaults(cfg)

	// Validate configuration
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// applyDefaults sets default values for any empty config fields
func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "streamcart-backend"
	}
	if cfg.App.Env == "" {
		cfg.App.Env = "development"
	}
	if cfg.App.Port == "" {
		cfg.App.Port = "8080"
	}
	if cfg.Database.Host == "" {
		cfg.Database.Host = "localhost"
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = 5432
	}
	if cfg.Database.User == "" {
		cfg.Database.User = "postgres"
	}
	if cfg.Database.DBName == "" {
		cfg.Database.DBName = "streamcart"
	}
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = "disable"
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 25
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = 5
	}
	if cfg.Database.ConnMaxLifetime == 0 {
		cfg.Database.ConnMaxLifetime = 60
	}
	if cfg.Database.ConnMaxIdleTime == 0 {
		cfg.Database.ConnMaxIdleTime = 30
	}
	if cfg.Redis.Host == "" {
		cfg.Redis.Host = "localhost"
	}
	if cfg.Redis.Port == 0 {
		cfg.Redis.Port = 6379
	}
	if cfg.Redis.EventDedupTTL == 0 {
		cfg.Redis.EventDedupTTL = 72 * time.Hour
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "console"
	}
	if cfg.Log.Output == "" {
		cfg.Log.Output = "stdout"
	}
	if cfg.HTTP.ReadTimeout == 0 {
		cfg.HTTP.ReadTimeout = 15 * time.Second
	}
	if cfg.HTTP.WriteTimeout == 0 {
		cfg.HTTP.WriteTimeout = 15 * time.Second
	}
	if cfg.HTTP.IdleTimeout == 0 {
		cfg.HTTP.IdleTimeout = 60 * time.Second
	}
	if cfg.HTTP.MaxHeaderBytes == 0 {
		cfg.HTTP.MaxHeaderBytes = 1 << 20 // 1MB
	}
	if cfg.HTTP.MaxBodySize == 0 {
		cfg.HTTP.MaxBodySize = 10 << 20 // 10MB
	}
	if cfg.HTTP.RateLimitRequests == 0 {
		cfg.HTTP.RateLimitRequests = 100
	}
	if cfg.HTTP.RateLimitWindow == 0 {
		cfg.HTTP.RateLimitWindow = time.Minute
	}
	// NOTE: CORS origins are intentionally not given a default fallback to "*".
	// An empty list means no cross-origin requests are allowed until explicitly configured.
	if len(cfg.HTTP.CORSAllowMethods) == 0 {
		cfg.HTTP.CORSAllowMethods = []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"}
	}
	if len(cfg.HTTP.CORSAllowHeaders) == 0 {
		cfg.HTTP.CORSAllowHeaders = []string{"Content-Type", "Authorization", "X-Request-ID", "Idempotency-Key"}
	}

	// Telemetry defaults
	if cfg.Telemetry.CollectorEndpoint == "" {
		cfg.Telemetry.CollectorEndpoint = "localhost:4317" // Default gRPC endpoint
	}
	if cfg.Telemetry.SamplingRatio == 0 {
		cfg.Telemetry.SamplingRatio = 1.0 // 100% in development
	}
	if cfg.Telemetry.ServiceName == "" {
		cfg.Telemetry.ServiceName = "streamcart-backend"
	}
	if cfg.Telemetry.DBSlowQueryThresh == 0 {
		cfg.Telemetry.DBSlowQueryThresh = 200 * time.Millisecond
	}
	// Note: DBLogFullSQL defaults to false for security (disable in production)

	// Recon defaults
	if cfg.Recon.WindowDays == 0 {
		cfg.Recon.WindowDays = 7
	}
	if cfg.Recon.MinConfidence == 0 {
		cfg.Recon.MinConfidence = 0.75
	}
	if cfg.Recon.SweepInterval == 0 {
		cfg.Recon.SweepInterval = time.Hour
	}
	if cfg.Recon.MaxUnmatchedAge == 0 {
		cfg.Recon.MaxUnmatchedAge = 72 * time.Hour
	}
	if cfg.Recon.BatchLimit == 0 {
		cfg.Recon.BatchLimit = 500
	}

	// Payout defaults
	if cfg.Payout.CashAccountCode == "" {
		cfg.Payout.CashAccountCode = "1000"
	}
	if cfg.Payout.CreatorAccountPrefix == "" {
		cfg.Payout.CreatorAccountPrefix = "2100-creator-"
	}
	if cfg.Payout.DefaultRiskScore == 0 {
		cfg.Payout.DefaultRiskScore = 0.1
	}

	// Policy defaults
	if cfg.Policy.ApprovalTTL == 0 {
		cfg.Policy.ApprovalTTL = 24 * time.Hour
	}
	if cfg.Policy.ApprovalAmountCents == 0 {
		cfg.Policy.ApprovalAmountCents = 100000
	}
	if cfg.Policy.MaxRiskScore == 0 {
		cfg.Policy.MaxRiskScore = 0.8
	}

	// Storage defaults
	if cfg.Storage.Provider == "" {
		cfg.Storage.Provider = "stub"
	}
	if cfg.Storage.Region == "" {
		cfg.Storage.Region = "us-east-1"
	}

	// Rail defaults
	if cfg.Rail.Timeout == 0 {
		cfg.Rail.Timeout = 30 * time.Second
	}
	if cfg.Rail.MaxRetries == 0 {
		cfg.Rail.MaxRetries = 3
	}

	// Dispute defaults
	if cfg.Dispute.ProviderTimeout == 0 {
		cfg.Dispute.ProviderTimeout = 30 * time.Second
	}
	if cfg.Dispute.DeadlineWarning == 0 {
		cfg.Dispute.DeadlineWarning = 48 * time.Hour
	}
	if cfg.Dispute.SweepInterval == 0 {
		cfg.Dispute.SweepInterval = time.Hour
	}

	// Profiler defaults
	if cfg.Profiler.ServerAddress == "" {
		cfg.Profiler.ServerAddress = "http://localhost:4040"
	}
}

// validate performs validation on the configuration
func (c *Config) validate() error {
	// Validate connection pool settings
	if c.Database.MaxOpenConns <= 0 {
		return fmt.Errorf("database.max_open_conns must be positive")
	}
	if c.Database.MaxIdleConns < 0 {
		return fmt.Errorf("database.max_idle_conns cannot be negative")
	}
	if c.Database.MaxIdleConns > c.Database.MaxOpenConns {
		return fmt.Errorf("database.max_idle_conns (%d) cannot exceed database.max_open_conns (%d)",
			c.Database.MaxIdleConns, c.Database.MaxOpenConns)
	}

	// Production-specific validations
	if c.App.Env == "production" {
		if c.Database.Password == "" {
			return fmt.Errorf("database.password is required in production")
		}
		if c.Database.SSLMode == "disable" {
			return fmt.Errorf("database.sslmode cannot be 'disable' in production")
		}
		for _, origin := range c.HTTP.CORSAllowOrigins {
			if origin == "*" {
				return fmt.Errorf("cors_allow_origins cannot be '*' in production (use specific origins)")
			}
		}
		if c.Storage.Provider == "stub" {
			return fmt.Errorf("storage.provider cannot be 'stub' in production")
		}
		if c.Rail.BaseURL == "" {
			return fmt.Errorf("rail.base_url is required in production")
		}
		// Database tracing: full SQL logging is a security risk in production
		if c.Telemetry.DBLogFullSQL {
			return fmt.Errorf("telemetry.db_log_full_sql must be false in production to prevent sensitive data exposure in traces")
		}
	}

	// Validate telemetry configuration (all environments)
	if c.Telemetry.SamplingRatio < 0.0 || c.Telemetry.SamplingRatio > 1.0 {
		return fmt.Errorf("telemetry.sampling_ratio must be between 0.0 and 1.0, got %f", c.Telemetry.SamplingRatio)
	}

	if c.Recon.MinConfidence < 0.0 || c.Recon.MinConfidence > 1.0 {
		return fmt.Errorf("recon.min_confidence must be between 0.0 and 1.0, got %f", c.Recon.MinConfidence)
	}
	if c.Payout.DefaultRiskScore < 0.0 || c.Payout.DefaultRiskScore > 1.0 {
		return fmt.Errorf("payout.default_risk_score must be between 0.0 and 1.0, got %f", c.Payout.DefaultRiskScore)
	}
	if c.Policy.MaxRiskScore < 0.0 || c.Policy.MaxRiskScore > 1.0 {
		return fmt.Errorf("policy.max_risk_score must be between 0.0 and 1.0, got %f", c.Policy.MaxRiskScore)
	}
	if c.Policy.ApprovalAmountCents < 0 {
		return fmt.Errorf("policy.approval_amount_cents cannot be negative, got %d", c.Policy.ApprovalAmountCents)
	}

	return nil
}

// DSN returns the database connection string with properly escaped values
func (d *DatabaseConfig) DSN() string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(d.User, d.Password),
		Host:   fmt.Sprintf("%s:%d", d.Host, d.Port),
		Path:   d.DBName,
	}
	q := u.Query()
	q.Set("sslmode", d.SSLMode)
	u.RawQuery = q.Encode()
	return u.String()
}

// Addr returns the Redis host:port address
func (r *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}
