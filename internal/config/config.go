package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

// DefaultJWTSecret is the development signing key. Refused when Env is "prod".
const DefaultJWTSecret = "supersecretkey"

type Config struct {
	Port string `koanf:"port"`

	// Env is "dev" (default) or "prod". When "prod", JWT_SECRET must be set and not the default.
	Env string `koanf:"env"`

	// LogFormat is "text" (default) or "json" for structured logging.
	LogFormat string `koanf:"log_format"`
	// LogLevel is one of debug, info (default), warn, error.
	LogLevel string `koanf:"log_level"`

	DBHost    string `koanf:"db_host"`
	DBPort    string `koanf:"db_port"`
	DBName    string `koanf:"db_name"`
	DBUser    string `koanf:"db_user"`
	DBPass    string `koanf:"db_pass"`
	DBSSLMode string `koanf:"db_sslmode"`

	// DBMaxOpenConns is the maximum number of open connections to the database (default 25).
	DBMaxOpenConns int `koanf:"db_max_open_conns"`
	// DBMaxIdleConns is the maximum number of idle connections (default 5).
	DBMaxIdleConns int `koanf:"db_max_idle_conns"`

	// RedisAddr selects the Redis session store. Empty keeps sessions in process memory.
	RedisAddr     string `koanf:"redis_addr"`
	RedisPassword string `koanf:"redis_password"`
	RedisDB       int    `koanf:"redis_db"`

	SessionTTL   time.Duration `koanf:"session_ttl"`
	CookieSecure bool          `koanf:"cookie_secure"`

	// BcryptCost is the password hashing work factor (default 10).
	BcryptCost int `koanf:"bcrypt_cost"`

	JWTSecret string `koanf:"jwt_secret"`
	// JWTExpireMinutes is the bearer token lifetime for CLI clients (default 30).
	JWTExpireMinutes int `koanf:"jwt_expire_minutes"`

	// ResetTokenTTLMinutes is how long an emailed password reset link stays valid.
	ResetTokenTTLMinutes int `koanf:"reset_token_ttl_minutes"`
	// ResetBaseURL prefixes the reset link: <base>/reset_password.html?token=...
	ResetBaseURL string `koanf:"reset_base_url"`
	// TokenSweepCron schedules deletion of expired reset tokens (robfig/cron syntax).
	TokenSweepCron string `koanf:"token_sweep_cron"`

	// SMTPHost enables SMTP delivery. When empty, reset emails are written to the log.
	SMTPHost string `koanf:"smtp_host"`
	SMTPPort int    `koanf:"smtp_port"`
	SMTPUser string `koanf:"smtp_user"`
	SMTPPass string `koanf:"smtp_pass"`
	MailFrom string `koanf:"mail_from"`

	// UploadDir is where diary images are written when no S3 bucket is configured.
	UploadDir string `koanf:"upload_dir"`
	// UploadPrefix is the URL path prefix images are served under (default "uploads").
	UploadPrefix   string `koanf:"upload_prefix"`
	MaxUploadBytes int64  `koanf:"max_upload_bytes"`

	// S3Bucket switches image storage to an S3-compatible bucket.
	S3Bucket    string `koanf:"s3_bucket"`
	S3Region    string `koanf:"s3_region"`
	S3Endpoint  string `koanf:"s3_endpoint"`
	S3AccessKey string `koanf:"s3_access_key"`
	S3SecretKey string `koanf:"s3_secret_key"`

	// CORSAllowedOrigins is a list of origins allowed for CORS (e.g. https://app.example.com, http://localhost:3000).
	// Set via CORS_ALLOWED_ORIGINS (comma-separated). When empty, no CORS headers are sent (same-origin only).
	CORSAllowedOrigins []string `koanf:"cors_allowed_origins"`

	// TrustProxy keys rate limiting on X-Forwarded-For / X-Real-IP. Only enable behind a proxy that sets them.
	TrustProxy bool `koanf:"trust_proxy"`

	// TLSCertFile and TLSKeyFile enable HTTPS when both are set.
	// When empty, the API listens with plain HTTP.
	TLSCertFile string `koanf:"tls_cert_file"`
	TLSKeyFile  string `koanf:"tls_key_file"`
}

func Load() Config {
	return Config{
		Port:      getEnv("PORT", "8080"),
		Env:       getEnv("ENV", "dev"),
		LogFormat: getEnv("LOG_FORMAT", "text"),
		LogLevel:  getEnv("LOG_LEVEL", "info"),

		DBHost:    getEnv("DB_HOST", "localhost"),
		DBPort:    getEnv("DB_PORT", "5432"),
		DBName:    getEnv("DB_NAME", "mydiary"),
		DBUser:    getEnv("DB_USER", "diary"),
		DBPass:    getEnv("DB_PASS", "diarypass"),
		DBSSLMode: getEnv("DB_SSLMODE", "disable"),

		DBMaxOpenConns: getEnvInt("DB_MAX_OPEN_CONNS", 25),
		DBMaxIdleConns: getEnvInt("DB_MAX_IDLE_CONNS", 5),

		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),

		SessionTTL:   getEnvDuration("SESSION_TTL", 24*time.Hour),
		CookieSecure: getEnvBool("COOKIE_SECURE", false),

		BcryptCost: getEnvInt("BCRYPT_COST", 10),

		JWTSecret:        getEnv("JWT_SECRET", DefaultJWTSecret),
		JWTExpireMinutes: getEnvInt("JWT_EXPIRE_MINUTES", 30),

		ResetTokenTTLMinutes: getEnvInt("RESET_TOKEN_TTL_MINUTES", 30),
		ResetBaseURL:         getEnv("RESET_BASE_URL", "http://localhost:8080"),
		TokenSweepCron:       getEnv("TOKEN_SWEEP_CRON", "@every 1h"),

		SMTPHost: getEnv("SMTP_HOST", ""),
		SMTPPort: getEnvInt("SMTP_PORT", 587),
		SMTPUser: getEnv("SMTP_USER", ""),
		SMTPPass: getEnv("SMTP_PASS", ""),
		MailFrom: getEnv("MAIL_FROM", "noreply@mydiary.local"),

		UploadDir:      getEnv("UPLOAD_DIR", "uploads"),
		UploadPrefix:   getEnv("UPLOAD_PREFIX", "uploads"),
		MaxUploadBytes: int64(getEnvInt("MAX_UPLOAD_BYTES", 10<<20)),

		S3Bucket:    getEnv("S3_BUCKET", ""),
		S3Region:    getEnv("S3_REGION", "us-east-1"),
		S3Endpoint:  getEnv("S3_ENDPOINT", ""),
		S3AccessKey: getEnv("S3_ACCESS_KEY", ""),
		S3SecretKey: getEnv("S3_SECRET_KEY", ""),

		CORSAllowedOrigins: parseCORSOrigins(getEnv("CORS_ALLOWED_ORIGINS", "")),
		TrustProxy:         getEnvBool("TRUST_PROXY", false),

		// Optional TLS configuration for HTTPS.
		TLSCertFile: getEnv("TLS_CERT_FILE", ""),
		TLSKeyFile:  getEnv("TLS_KEY_FILE", ""),
	}
}

// LoadWithOverrides starts from Load() and overlays an optional YAML file and
// then any flags that were explicitly set on fs. Either may be empty/nil.
func LoadWithOverrides(path string, fs *pflag.FlagSet) (Config, error) {
	cfg := Load()
	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return cfg, fmt.Errorf("load config file %s: %w", path, err)
		}
	}
	if fs != nil {
		// Only flags the user changed; defaults must not clobber env or file values.
		if err := k.Load(posflag.ProviderWithFlag(fs, ".", nil, func(f *pflag.Flag) (string, interface{}) {
			if !f.Changed {
				return "", nil
			}
			return strings.ReplaceAll(f.Name, "-", "_"), posflag.FlagVal(fs, f)
		}), nil); err != nil {
			return cfg, fmt.Errorf("load flags: %w", err)
		}
	}

	if err := k.Unmarshal("", &cfg); err != nil {
		return cfg, fmt.Errorf("decode config: %w", err)
	}
	return cfg, nil
}

// Validate rejects settings that are unsafe or unusable.
func (c Config) Validate() error {
	if c.Env == "prod" {
		if c.JWTSecret == "" || c.JWTSecret == DefaultJWTSecret {
			return errors.New("JWT_SECRET must be set to a non-default value when ENV=prod")
		}
		if c.ResetBaseURL == "" {
			return errors.New("RESET_BASE_URL must be set when ENV=prod")
		}
		if c.SMTPHost == "" {
			return errors.New("SMTP_HOST must be set when ENV=prod")
		}
	}
	if c.ResetTokenTTLMinutes <= 0 {
		return errors.New("reset token ttl must be positive")
	}
	if c.BcryptCost != 0 && (c.BcryptCost < 4 || c.BcryptCost > 31) {
		return errors.New("BCRYPT_COST must be between 4 and 31")
	}
	if (c.TLSCertFile == "") != (c.TLSKeyFile == "") {
		return errors.New("TLS_CERT_FILE and TLS_KEY_FILE must be set together")
	}
	return nil
}

// ResetTokenTTL is ResetTokenTTLMinutes as a duration.
func (c Config) ResetTokenTTL() time.Duration {
	return time.Duration(c.ResetTokenTTLMinutes) * time.Minute
}

// JWTExpiry is JWTExpireMinutes as a duration.
func (c Config) JWTExpiry() time.Duration {
	return time.Duration(c.JWTExpireMinutes) * time.Minute
}

// DatabaseURL returns the postgres:// form used by golang-migrate.
func (c Config) DatabaseURL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.DBUser, c.DBPass, c.DBHost, c.DBPort, c.DBName, c.DBSSLMode)
}

// parseCORSOrigins splits a comma-separated list of origins and trims spaces. Empty strings are omitted.
func parseCORSOrigins(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if o := strings.TrimSpace(p); o != "" {
			out = append(out, o)
		}
	}
	return out
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			return d
		}
	}
	return fallback
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
