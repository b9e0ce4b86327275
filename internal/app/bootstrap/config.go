package bootstrap

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the resolved runtime configuration of the accounts service.
type Config struct {
	ServiceID string

	HTTPPort int
	GRPCPort int

	DatabaseURL string
	RedisURL    string
	MaxDBConns  int

	JWTPrivateKeyPEM  string
	JWTPublicKeyPEM   string
	JWTKeyID          string
	AllowEphemeralJWT bool
	JWTIssuer         string
	JWTAudience       string
	AccessTokenTTL    time.Duration
	RefreshTokenTTL   time.Duration

	BcryptCost int

	PublicBaseURL string
	CodeTTL       time.Duration
	LinkTTL       time.Duration

	FailedThreshold          int
	LockoutDuration          time.Duration
	ResetRequestThreshold    int
	ResetRequestWindow       time.Duration
	ConcealUnknownResetEmail bool

	OutboxPollInterval time.Duration
	OutboxBatchSize    int
	OutboxClaimTTL     time.Duration
	OutboxMaxRetries   int

	KafkaBrokers []string
	KafkaTopics  map[string]string

	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	SMTPFrom     string
}

// configFile mirrors configs/default.yaml.
type configFile struct {
	Service struct {
		ID            string `yaml:"id"`
		HTTPPort      int    `yaml:"http_port"`
		GRPCPort      int    `yaml:"grpc_port"`
		PublicBaseURL string `yaml:"public_base_url"`
	} `yaml:"service"`
	Dependencies struct {
		PostgresURL string `yaml:"postgres_url"`
		RedisURL    string `yaml:"redis_url"`
	} `yaml:"dependencies"`
	Tokens struct {
		KeyID             string `yaml:"key_id"`
		Issuer            string `yaml:"issuer"`
		Audience          string `yaml:"audience"`
		AccessTTLMinutes  int    `yaml:"access_ttl_minutes"`
		RefreshTTLDays    int    `yaml:"refresh_ttl_days"`
		AllowEphemeralKey *bool  `yaml:"allow_ephemeral_key"`
	} `yaml:"tokens"`
	Security struct {
		BcryptCost               int   `yaml:"bcrypt_cost"`
		FailedLoginThreshold     int   `yaml:"failed_login_threshold"`
		LockoutMinutes           int   `yaml:"lockout_minutes"`
		ResetRequestThreshold    int   `yaml:"reset_request_threshold"`
		ResetRequestWindowMins   int   `yaml:"reset_request_window_minutes"`
		ConcealUnknownResetEmail *bool `yaml:"conceal_unknown_reset_email"`
	} `yaml:"security"`
	Verification struct {
		CodeTTLHours int `yaml:"code_ttl_hours"`
		LinkTTLHours int `yaml:"link_ttl_hours"`
	} `yaml:"verification"`
	Outbox struct {
		PollSeconds     int `yaml:"poll_seconds"`
		BatchSize       int `yaml:"batch_size"`
		ClaimTTLSeconds int `yaml:"claim_ttl_seconds"`
		MaxRetries      int `yaml:"max_retries"`
	} `yaml:"outbox"`
	Kafka struct {
		Brokers []string          `yaml:"brokers"`
		Topics  map[string]string `yaml:"topics"`
	} `yaml:"kafka"`
	SMTP struct {
		Host     string `yaml:"host"`
		Port     int    `yaml:"port"`
		Username string `yaml:"username"`
		From     string `yaml:"from"`
	} `yaml:"smtp"`
}

func defaultConfig() Config {
	return Config{
		ServiceID:             "invoicing-accounts",
		HTTPPort:              8080,
		GRPCPort:              9090,
		MaxDBConns:            20,
		JWTKeyID:              "invoicing-accounts-key-1",
		AllowEphemeralJWT:     true,
		JWTIssuer:             "Invoice Manager LLC",
		JWTAudience:           "CUSTOMER_MANAGEMENT_SERVICE",
		AccessTokenTTL:        30 * time.Minute,
		RefreshTokenTTL:       5 * 24 * time.Hour,
		BcryptCost:            12,
		PublicBaseURL:         "http://localhost:8080",
		CodeTTL:               24 * time.Hour,
		LinkTTL:               24 * time.Hour,
		FailedThreshold:       5,
		LockoutDuration:       15 * time.Minute,
		ResetRequestThreshold: 5,
		ResetRequestWindow:    time.Hour,
		OutboxPollInterval:    2 * time.Second,
		OutboxBatchSize:       100,
		OutboxClaimTTL:        30 * time.Second,
		OutboxMaxRetries:      5,
		SMTPPort:              587,
	}
}

// LoadConfig resolves configuration in priority order: defaults -> file -> env.
// A missing file is not an error.
func LoadConfig(path string) (Config, error) {
	cfg := defaultConfig()

	raw, err := os.ReadFile(path)
	switch {
	case err == nil:
		var f configFile
		if err := yaml.Unmarshal(raw, &f); err != nil {
			return Config{}, fmt.Errorf("parse config file: %w", err)
		}
		applyFile(&cfg, f)
	case !errors.Is(err, os.ErrNotExist):
		return Config{}, fmt.Errorf("read config file: %w", err)
	}

	applyEnv(&cfg)

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyFile(cfg *Config, f configFile) {
	setString(&cfg.ServiceID, f.Service.ID)
	setInt(&cfg.HTTPPort, f.Service.HTTPPort)
	setInt(&cfg.GRPCPort, f.Service.GRPCPort)
	setString(&cfg.PublicBaseURL, f.Service.PublicBaseURL)
	setString(&cfg.DatabaseURL, f.Dependencies.PostgresURL)
	setString(&cfg.RedisURL, f.Dependencies.RedisURL)

	setString(&cfg.JWTKeyID, f.Tokens.KeyID)
	setString(&cfg.JWTIssuer, f.Tokens.Issuer)
	setString(&cfg.JWTAudience, f.Tokens.Audience)
	setDuration(&cfg.AccessTokenTTL, f.Tokens.AccessTTLMinutes, time.Minute)
	setDuration(&cfg.RefreshTokenTTL, f.Tokens.RefreshTTLDays, 24*time.Hour)
	if f.Tokens.AllowEphemeralKey != nil {
		cfg.AllowEphemeralJWT = *f.Tokens.AllowEphemeralKey
	}

	setInt(&cfg.BcryptCost, f.Security.BcryptCost)
	setInt(&cfg.FailedThreshold, f.Security.FailedLoginThreshold)
	setDuration(&cfg.LockoutDuration, f.Security.LockoutMinutes, time.Minute)
	setInt(&cfg.ResetRequestThreshold, f.Security.ResetRequestThreshold)
	setDuration(&cfg.ResetRequestWindow, f.Security.ResetRequestWindowMins, time.Minute)
	if f.Security.ConcealUnknownResetEmail != nil {
		cfg.ConcealUnknownResetEmail = *f.Security.ConcealUnknownResetEmail
	}

	setDuration(&cfg.CodeTTL, f.Verification.CodeTTLHours, time.Hour)
	setDuration(&cfg.LinkTTL, f.Verification.LinkTTLHours, time.Hour)

	setDuration(&cfg.OutboxPollInterval, f.Outbox.PollSeconds, time.Second)
	setInt(&cfg.OutboxBatchSize, f.Outbox.BatchSize)
	setDuration(&cfg.OutboxClaimTTL, f.Outbox.ClaimTTLSeconds, time.Second)
	setInt(&cfg.OutboxMaxRetries, f.Outbox.MaxRetries)

	if len(f.Kafka.Brokers) > 0 {
		cfg.KafkaBrokers = f.Kafka.Brokers
	}
	if len(f.Kafka.Topics) > 0 {
		cfg.KafkaTopics = f.Kafka.Topics
	}

	setString(&cfg.SMTPHost, f.SMTP.Host)
	setInt(&cfg.SMTPPort, f.SMTP.Port)
	setString(&cfg.SMTPUsername, f.SMTP.Username)
	setString(&cfg.SMTPFrom, f.SMTP.From)
}

func applyEnv(cfg *Config) {
	cfg.DatabaseURL = envOrDefault("DB_URL", envOrDefault("POSTGRES_URL", cfg.DatabaseURL))
	cfg.RedisURL = envOrDefault("REDIS_URL", cfg.RedisURL)
	cfg.PublicBaseURL = envOrDefault("PUBLIC_BASE_URL", cfg.PublicBaseURL)
	cfg.HTTPPort = envInt("HTTP_PORT", cfg.HTTPPort)
	cfg.GRPCPort = envInt("GRPC_PORT", cfg.GRPCPort)
	cfg.MaxDBConns = envInt("DB_MAX_CONNS", cfg.MaxDBConns)

	cfg.JWTPrivateKeyPEM = envOrDefault("JWT_PRIVATE_KEY_PEM", cfg.JWTPrivateKeyPEM)
	cfg.JWTPublicKeyPEM = envOrDefault("JWT_PUBLIC_KEY_PEM", cfg.JWTPublicKeyPEM)
	cfg.JWTKeyID = envOrDefault("JWT_KEY_ID", cfg.JWTKeyID)
	cfg.AllowEphemeralJWT = envBool("JWT_ALLOW_EPHEMERAL", cfg.AllowEphemeralJWT)
	cfg.JWTIssuer = envOrDefault("JWT_ISSUER", cfg.JWTIssuer)
	cfg.JWTAudience = envOrDefault("JWT_AUDIENCE", cfg.JWTAudience)
	cfg.AccessTokenTTL = time.Duration(envInt("ACCESS_TOKEN_MINUTES", int(cfg.AccessTokenTTL.Minutes()))) * time.Minute
	cfg.RefreshTokenTTL = time.Duration(envInt("REFRESH_TOKEN_DAYS", int(cfg.RefreshTokenTTL.Hours()/24))) * 24 * time.Hour

	cfg.BcryptCost = envInt("BCRYPT_ROUNDS", cfg.BcryptCost)
	cfg.FailedThreshold = envInt("FAILED_LOGIN_THRESHOLD", cfg.FailedThreshold)
	cfg.LockoutDuration = time.Duration(envInt("ACCOUNT_LOCKOUT_MINUTES", int(cfg.LockoutDuration.Minutes()))) * time.Minute
	cfg.ResetRequestThreshold = envInt("RESET_RATE_LIMIT_THRESHOLD", cfg.ResetRequestThreshold)
	cfg.ResetRequestWindow = time.Duration(envInt("RESET_RATE_LIMIT_WINDOW_MINUTES", int(cfg.ResetRequestWindow.Minutes()))) * time.Minute
	cfg.ConcealUnknownResetEmail = envBool("RESET_CONCEAL_UNKNOWN_EMAIL", cfg.ConcealUnknownResetEmail)
	cfg.CodeTTL = time.Duration(envInt("VERIFICATION_CODE_TTL_HOURS", int(cfg.CodeTTL.Hours()))) * time.Hour
	cfg.LinkTTL = time.Duration(envInt("VERIFICATION_LINK_TTL_HOURS", int(cfg.LinkTTL.Hours()))) * time.Hour

	cfg.OutboxPollInterval = time.Duration(envInt("OUTBOX_POLL_SECONDS", int(cfg.OutboxPollInterval.Seconds()))) * time.Second
	cfg.OutboxBatchSize = envInt("OUTBOX_BATCH_SIZE", cfg.OutboxBatchSize)
	cfg.OutboxClaimTTL = time.Duration(envInt("OUTBOX_CLAIM_TTL_SECONDS", int(cfg.OutboxClaimTTL.Seconds()))) * time.Second
	cfg.OutboxMaxRetries = envInt("OUTBOX_MAX_RETRIES", cfg.OutboxMaxRetries)

	cfg.KafkaBrokers = envCSV("KAFKA_BROKERS", cfg.KafkaBrokers)

	cfg.SMTPHost = envOrDefault("SMTP_HOST", cfg.SMTPHost)
	cfg.SMTPPort = envInt("SMTP_PORT", cfg.SMTPPort)
	cfg.SMTPUsername = envOrDefault("SMTP_USERNAME", cfg.SMTPUsername)
	cfg.SMTPPassword = envOrDefault("SMTP_PASSWORD", cfg.SMTPPassword)
	cfg.SMTPFrom = envOrDefault("SMTP_FROM", cfg.SMTPFrom)
}

func (c Config) validate() error {
	var errs []error
	if c.DatabaseURL == "" {
		errs = append(errs, errors.New("missing DB_URL/POSTGRES_URL"))
	}
	if c.RedisURL == "" {
		errs = append(errs, errors.New("missing REDIS_URL"))
	}
	if (c.JWTPrivateKeyPEM == "" || c.JWTPublicKeyPEM == "") && !c.AllowEphemeralJWT {
		errs = append(errs, errors.New("missing JWT_PRIVATE_KEY_PEM or JWT_PUBLIC_KEY_PEM"))
	}
	if c.AccessTokenTTL <= 0 || c.RefreshTokenTTL <= 0 {
		errs = append(errs, errors.New("token lifetimes must be positive"))
	}
	if c.SMTPHost != "" && c.SMTPFrom == "" {
		errs = append(errs, errors.New("missing SMTP_FROM for configured SMTP_HOST"))
	}
	return errors.Join(errs...)
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setInt(dst *int, v int) {
	if v > 0 {
		*dst = v
	}
}

func setDuration(dst *time.Duration, v int, unit time.Duration) {
	if v > 0 {
		*dst = time.Duration(v) * unit
	}
}

func envOrDefault(name, fallback string) string {
	if value := os.Getenv(name); value != "" {
		return value
	}
	return fallback
}

// envInt falls back on empty or invalid values.
func envInt(name string, fallback int) int {
	raw := os.Getenv(name)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}

func envBool(name string, fallback bool) bool {
	raw := os.Getenv(name)
	if raw == "" {
		return fallback
	}
	switch strings.ToLower(raw) {
	case "1", "true", "yes":
		return true
	case "0", "false", "no":
		return false
	default:
		return fallback
	}
}

// envCSV parses comma-separated env vars and removes empty segments.
func envCSV(name string, fallback []string) []string {
	raw := os.Getenv(name)
	if raw == "" {
		return fallback
	}
	parts := make([]string, 0)
	for _, part := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			parts = append(parts, trimmed)
		}
	}
	if len(parts) == 0 {
		return fallback
	}
	return parts
}
