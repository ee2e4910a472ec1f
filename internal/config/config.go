package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const placeholderSessionSecret = "CHANGE_ME_PRODUCTION_SESSION_SECRET"

type Config struct {
	ListenAddr string
	LogLevel   string

	DatabaseURL       string
	DBMaxOpenConns    int
	DBMaxIdleConns    int
	DBConnMaxLifetime time.Duration

	SessionSecret   string
	SessionTTLHours int

	StaticDir          string
	CORSAllowedOrigins []string
	TrustProxy         bool

	CaptchaEnabled   bool
	CaptchaProvider  string
	CaptchaVerifyURL string
	CaptchaSecret    string

	PasswordMinLength int
	PasswordMaxLength int

	BootstrapAdminUsername string
	BootstrapAdminPassword string

	NotifySender string
	NotifyTo     []string
	NotifyFrom   string
	SMTPHost     string
	SMTPPort     int
	// SMTPTLS dials with implicit TLS; SMTPStartTLS upgrades a plaintext
	// connection when the relay offers it.
	SMTPTLS                bool
	SMTPStartTLS           bool
	SMTPInsecureSkipVerify bool
	SMTPUsername           string
	SMTPPassword           string

	HTTPReadTimeoutSec       int
	HTTPReadHeaderTimeoutSec int
	HTTPWriteTimeoutSec      int
	HTTPIdleTimeoutSec       int

	LambdaPayloadVersion string
}

// Load reads .env (when present) and the process environment. The returned
// Config is always populated with defaults; a non-nil error reports invalid
// values so the caller can decide whether to exit or degrade.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		ListenAddr:               env("LISTEN_ADDR", ":8080"),
		LogLevel:                 env("LOG_LEVEL", "INFO"),
		DatabaseURL:              strings.TrimSpace(os.Getenv("DATABASE_URL")),
		DBMaxOpenConns:           envInt("APP_DB_MAX_OPEN_CONNS", 4),
		DBMaxIdleConns:           envInt("APP_DB_MAX_IDLE_CONNS", 2),
		DBConnMaxLifetime:        time.Duration(envInt("APP_DB_CONN_MAX_LIFETIME_MIN", 30)) * time.Minute,
		SessionSecret:            env("SESSION_SECRET", placeholderSessionSecret),
		SessionTTLHours:          envInt("SESSION_TTL_HOURS", 24),
		StaticDir:                env("STATIC_DIR", "dist/public"),
		CORSAllowedOrigins:       envCSV("CORS_ALLOWED_ORIGINS"),
		TrustProxy:               envBool("TRUST_PROXY", false),
		CaptchaEnabled:           envBool("CAPTCHA_ENABLED", false),
		CaptchaProvider:          strings.ToLower(env("CAPTCHA_PROVIDER", "turnstile")),
		CaptchaVerifyURL:         env("CAPTCHA_VERIFY_URL", ""),
		CaptchaSecret:            env("CAPTCHA_SECRET", ""),
		PasswordMinLength:        envInt("PASSWORD_MIN_LENGTH", 12),
		PasswordMaxLength:        envInt("PASSWORD_MAX_LENGTH", 128),
		BootstrapAdminUsername:   env("BOOTSTRAP_ADMIN_USERNAME", ""),
		BootstrapAdminPassword:   env("BOOTSTRAP_ADMIN_PASSWORD", ""),
		NotifySender:             strings.ToLower(env("NOTIFY_SENDER", "log")),
		NotifyTo:                 envCSV("NOTIFY_TO"),
		NotifyFrom:               env("NOTIFY_FROM", "noreply@localhost"),
		SMTPHost:                 env("SMTP_HOST", "127.0.0.1"),
		SMTPPort:                 envInt("SMTP_PORT", 587),
		SMTPTLS:                  envBool("SMTP_TLS", false),
		SMTPStartTLS:             envBool("SMTP_STARTTLS", true),
		SMTPInsecureSkipVerify:   envBool("SMTP_INSECURE_SKIP_VERIFY", false),
		SMTPUsername:             env("SMTP_USERNAME", ""),
		SMTPPassword:             env("SMTP_PASSWORD", ""),
		HTTPReadTimeoutSec:       envInt("HTTP_READ_TIMEOUT_SEC", 10),
		HTTPReadHeaderTimeoutSec: envInt("HTTP_READ_HEADER_TIMEOUT_SEC", 5),
		HTTPWriteTimeoutSec:      envInt("HTTP_WRITE_TIMEOUT_SEC", 30),
		HTTPIdleTimeoutSec:       envInt("HTTP_IDLE_TIMEOUT_SEC", 60),
		LambdaPayloadVersion:     env("LAMBDA_PAYLOAD_VERSION", "1.0"),
	}
	err := cfg.Validate()
	return cfg, err
}

func (c *Config) Validate() error {
	if c.SessionTTLHours <= 0 {
		return fmt.Errorf("SESSION_TTL_HOURS must be positive")
	}
	if c.DBMaxOpenConns <= 0 || c.DBMaxIdleConns < 0 {
		return fmt.Errorf("invalid DB pool config")
	}
	if c.PasswordMinLength < 8 {
		return fmt.Errorf("password min length must be >= 8")
	}
	if c.PasswordMaxLength < c.PasswordMinLength {
		return fmt.Errorf("password max length must be >= min length")
	}
	if strings.TrimSpace(c.SessionSecret) == "" ||
		c.SessionSecret == placeholderSessionSecret ||
		len(c.SessionSecret) < 32 {
		return fmt.Errorf("SESSION_SECRET must be set to a strong non-default value (>=32 chars)")
	}
	switch c.NotifySender {
	case "", "log", "smtp":
		if c.NotifySender == "" {
			c.NotifySender = "log"
		}
	default:
		return fmt.Errorf("NOTIFY_SENDER must be one of: log, smtp")
	}
	if c.NotifySender == "smtp" && (len(c.NotifyTo) == 0 || c.SMTPPort <= 0) {
		return fmt.Errorf("NOTIFY_TO and a valid SMTP_PORT are required when NOTIFY_SENDER=smtp")
	}
	if c.SMTPUsername != "" && c.SMTPPassword == "" {
		return fmt.Errorf("SMTP_PASSWORD is required when SMTP_USERNAME is set")
	}
	switch c.LambdaPayloadVersion {
	case "1.0", "2.0":
	default:
		return fmt.Errorf("LAMBDA_PAYLOAD_VERSION must be 1.0 or 2.0")
	}
	if c.CaptchaEnabled {
		if strings.TrimSpace(c.CaptchaSecret) == "" {
			return fmt.Errorf("CAPTCHA_SECRET is required when CAPTCHA_ENABLED=true")
		}
		if strings.TrimSpace(c.CaptchaVerifyURL) == "" {
			switch c.CaptchaProvider {
			case "turnstile", "":
				c.CaptchaVerifyURL = "https://challenges.cloudflare.com/turnstile/v0/siteverify"
			case "hcaptcha":
				c.CaptchaVerifyURL = "https://hcaptcha.com/siteverify"
			default:
				return fmt.Errorf("unsupported CAPTCHA_PROVIDER: %s", c.CaptchaProvider)
			}
		}
	}
	return nil
}

func (c Config) SessionTTL() time.Duration {
	return time.Duration(c.SessionTTLHours) * time.Hour
}

func env(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}

func envInt(k string, d int) int {
	v := os.Getenv(k)
	if v == "" {
		return d
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return d
	}
	return n
}

func envBool(k string, d bool) bool {
	v := os.Getenv(k)
	if v == "" {
		return d
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return d
	}
	return b
}

func envCSV(k string) []string {
	v := strings.TrimSpace(os.Getenv(k))
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
