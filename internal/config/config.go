package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

const DefaultPath = "config/config.yaml"

type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	RequestTimeout  time.Duration `yaml:"request_timeout"`
	CORSOrigin      string        `yaml:"cors_origin"`
}

type DatabaseConfig struct {
	DSN             string        `yaml:"url"`
	AutoMigrate     bool          `yaml:"auto_migrate"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
	PingTimeout     time.Duration `yaml:"ping_timeout"`
}

type EmailConfig struct {
	SMTPHost     string `yaml:"smtp_host"`
	SMTPPort     int    `yaml:"smtp_port"`
	SMTPUser     string `yaml:"smtp_user"`
	SMTPPassword string `yaml:"smtp_password"`
	FromEmail    string `yaml:"from_email"`
}

type MobizonConfig struct {
	APIKey   string        `yaml:"api_key"`
	SenderID string        `yaml:"sender_id"`
	DryRun   bool          `yaml:"dry_run"`
	Timeout  time.Duration `yaml:"timeout"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"` // empty: in-process limiter
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type AuthConfig struct {
	JWTSecret        string        `yaml:"jwt_secret"`
	AccessTokenTTL   time.Duration `yaml:"access_token_ttl"`
	SignupTokenTTL   time.Duration `yaml:"signup_token_ttl"`
	EmailTokenTTL    time.Duration `yaml:"email_token_ttl"`
	EmailRedirectURL string        `yaml:"email_redirect_url"`
	PublicBaseURL    string        `yaml:"public_base_url"`
	ResetTokenTTL    time.Duration `yaml:"reset_token_ttl"`
	PasswordResetURL string        `yaml:"password_reset_url"`
}

type VerificationConfig struct {
	CodeTTL        time.Duration `yaml:"code_ttl"`
	MaxAttempts    int           `yaml:"max_attempts"`
	ResendWindow   time.Duration `yaml:"resend_window"`
	MaxSends       int           `yaml:"max_sends"`
	ResendCooldown time.Duration `yaml:"resend_cooldown"`
}

type RegistrationConfig struct {
	ProfileRetries int           `yaml:"profile_retries"`
	RetryBackoff   time.Duration `yaml:"retry_backoff"`
}

type CleanupConfig struct {
	Interval           time.Duration `yaml:"interval"`
	VerificationMaxAge time.Duration `yaml:"verification_max_age"`
	IdentityBatchSize  int           `yaml:"identity_batch_size"`
}

type LogConfig struct {
	Level       string `yaml:"level"`
	Environment string `yaml:"environment"`
}

type Config struct {
	Server       ServerConfig       `yaml:"server"`
	Database     DatabaseConfig     `yaml:"database"`
	Email        EmailConfig        `yaml:"email"`
	Mobizon      MobizonConfig      `yaml:"mobizon"`
	Redis        RedisConfig        `yaml:"redis"`
	Auth         AuthConfig         `yaml:"auth"`
	Verification VerificationConfig `yaml:"verification"`
	Registration RegistrationConfig `yaml:"registration"`
	Cleanup      CleanupConfig      `yaml:"cleanup"`
	Log          LogConfig          `yaml:"log"`
}

// LoadConfig reads the YAML file (a missing file is fine), applies env
// overrides and defaults, then validates.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		path = getEnvString("VOTY_CONFIG", DefaultPath)
	}

	var cfg Config
	f, err := os.Open(path)
	switch {
	case err == nil:
		defer f.Close()
		if err := yaml.NewDecoder(f).Decode(&cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist):
		// env only
	default:
		return nil, fmt.Errorf("open %s: %w", path, err)
	}

	cfg.applyEnv()
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyEnv() {
	c.Database.DSN = getEnvString("DATABASE_URL", c.Database.DSN)
	c.Server.Port = getEnvInt("SERVER_PORT", c.Server.Port)
	c.Auth.JWTSecret = getEnvString("JWT_SECRET", c.Auth.JWTSecret)
	c.Auth.EmailRedirectURL = getEnvString("EMAIL_REDIRECT_URL", c.Auth.EmailRedirectURL)
	c.Auth.PublicBaseURL = getEnvString("PUBLIC_BASE_URL", c.Auth.PublicBaseURL)
	c.Mobizon.APIKey = getEnvString("MOBIZON_API_KEY", c.Mobizon.APIKey)
	c.Email.SMTPPassword = getEnvString("SMTP_PASSWORD", c.Email.SMTPPassword)
	c.Redis.Addr = getEnvString("REDIS_ADDR", c.Redis.Addr)
	c.Redis.Password = getEnvString("REDIS_PASSWORD", c.Redis.Password)
	c.Log.Level = getEnvString("LOG_LEVEL", c.Log.Level)
	c.Log.Environment = getEnvString("APP_ENV", c.Log.Environment)
}

func (c *Config) applyDefaults() {
	setDefault(&c.Server.Port, 8080)
	setDefault(&c.Server.ReadTimeout, 15*time.Second)
	setDefault(&c.Server.WriteTimeout, 15*time.Second)
	setDefault(&c.Server.ShutdownTimeout, 30*time.Second)
	setDefault(&c.Server.RequestTimeout, 10*time.Second)
	setDefault(&c.Server.CORSOrigin, "*")

	setDefault(&c.Database.MaxOpenConns, 20)
	setDefault(&c.Database.MaxIdleConns, 5)
	setDefault(&c.Database.ConnMaxLifetime, 30*time.Minute)
	setDefault(&c.Database.PingTimeout, 5*time.Second)

	setDefault(&c.Email.SMTPPort, 587)
	setDefault(&c.Mobizon.Timeout, 10*time.Second)

	setDefault(&c.Auth.AccessTokenTTL, 15*time.Minute)
	setDefault(&c.Auth.SignupTokenTTL, 30*time.Minute)
	setDefault(&c.Auth.EmailTokenTTL, 48*time.Hour)
	setDefault(&c.Auth.ResetTokenTTL, time.Hour)
	setDefault(&c.Auth.PublicBaseURL, "http://localhost:8080")
	setDefault(&c.Auth.EmailRedirectURL, "http://localhost:3000")
	setDefault(&c.Auth.PasswordResetURL, c.Auth.EmailRedirectURL+"/reset-password")

	setDefault(&c.Verification.CodeTTL, 10*time.Minute)
	setDefault(&c.Verification.MaxAttempts, 5)
	setDefault(&c.Verification.ResendWindow, 10*time.Minute)
	setDefault(&c.Verification.MaxSends, 3)
	setDefault(&c.Verification.ResendCooldown, 60*time.Second)

	setDefault(&c.Registration.ProfileRetries, 3)
	setDefault(&c.Registration.RetryBackoff, 200*time.Millisecond)

	setDefault(&c.Cleanup.Interval, 15*time.Minute)
	setDefault(&c.Cleanup.VerificationMaxAge, 24*time.Hour)
	setDefault(&c.Cleanup.IdentityBatchSize, 100)

	setDefault(&c.Log.Level, "info")
	setDefault(&c.Log.Environment, "development")
}

// Validate reports every missing required value at once.
func (c *Config) Validate() error {
	var missing []string
	if c.Database.DSN == "" {
		missing = append(missing, "database.url (DATABASE_URL)")
	}
	if c.Auth.JWTSecret == "" {
		missing = append(missing, "auth.jwt_secret (JWT_SECRET)")
	}
	if len(missing) > 0 {
		return fmt.Errorf("required configuration is not set: %v", missing)
	}
	if len(c.Auth.JWTSecret) < 32 {
		return errors.New("auth.jwt_secret must be at least 32 bytes")
	}
	return nil
}

func setDefault[T comparable](field *T, def T) {
	var zero T
	if *field == zero {
		*field = def
	}
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}
