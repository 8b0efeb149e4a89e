package config

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds the application's configuration values.
// Tags like `envconfig:"APP_ENV"` specify the environment variable name.
// `default:""` provides a default value if the env var is not set.
// `required:"true"` makes an environment variable mandatory.
type Config struct {
	AppEnv     string `envconfig:"APP_ENV" default:"development"` // e.g., development, staging, production
	LogLevel   string `envconfig:"LOG_LEVEL" default:"info"`
	HttpServer ServerConfig
	GrpcServer GrpcServerConfig
	Postgres   PostgresConfig
	Auth       AuthConfig
	Google     GoogleOAuthConfig
	Redis      RedisConfig
	Uploads    UploadsConfig
	Tracing    TracingConfig
}

// ServerConfig holds HTTP server-specific configurations.
type ServerConfig struct {
	Port           string        `envconfig:"HTTP_SERVER_PORT" default:"8080"`
	TimeoutRead    time.Duration `envconfig:"HTTP_SERVER_TIMEOUT_READ" default:"15s"`
	TimeoutWrite   time.Duration `envconfig:"HTTP_SERVER_TIMEOUT_WRITE" default:"30s"`
	TimeoutIdle    time.Duration `envconfig:"HTTP_SERVER_TIMEOUT_IDLE" default:"60s"`
	RequestTimeout time.Duration `envconfig:"HTTP_SERVER_REQUEST_TIMEOUT" default:"60s"`
	// Origins of the storefront and dashboard front ends.
	CORSAllowedOrigins []string `envconfig:"HTTP_CORS_ALLOWED_ORIGINS" default:"http://localhost:3000"`
}

// GrpcServerConfig holds gRPC server-specific configurations.
type GrpcServerConfig struct {
	Port string `envconfig:"GRPC_SERVER_PORT" default:"9090"`
}

// PostgresConfig holds PostgreSQL database connection details.
type PostgresConfig struct {
	Host            string        `envconfig:"POSTGRES_HOST" required:"true"`
	Port            string        `envconfig:"POSTGRES_PORT" default:"5432"`
	User            string        `envconfig:"POSTGRES_USER" required:"true"`
	Password        string        `envconfig:"POSTGRES_PASSWORD" required:"true"`
	DBName          string        `envconfig:"POSTGRES_DBNAME" required:"true"`
	SSLMode         string        `envconfig:"POSTGRES_SSLMODE" default:"disable"`
	MaxOpenConns    int           `envconfig:"POSTGRES_MAX_OPEN_CONNS" default:"25"`
	MaxIdleConns    int           `envconfig:"POSTGRES_MAX_IDLE_CONNS" default:"5"`
	ConnMaxLifetime time.Duration `envconfig:"POSTGRES_CONN_MAX_LIFETIME" default:"30m"`
	AutoMigrate     bool          `envconfig:"AUTO_MIGRATE" default:"false"`
}

// DSN constructs the Data Source Name string for connecting to PostgreSQL.
func (pc *PostgresConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		pc.Host, pc.Port, pc.User, pc.Password, pc.DBName, pc.SSLMode)
}

// AuthConfig controls session tokens and the sign-in redirect.
type AuthConfig struct {
	JWTSecret    string        `envconfig:"AUTH_JWT_SECRET" required:"true"`
	Issuer       string        `envconfig:"AUTH_ISSUER" default:"storefront"`
	TokenTTL     time.Duration `envconfig:"AUTH_TOKEN_TTL" default:"720h"`
	CookieName   string        `envconfig:"AUTH_COOKIE_NAME" default:"storefront_session"`
	SecureCookie bool          `envconfig:"AUTH_SECURE_COOKIE" default:"false"`
	SignInURL    string        `envconfig:"AUTH_SIGNIN_URL" default:"/signin"`
}

// GoogleOAuthConfig enables Google sign-in when ClientID is set.
type GoogleOAuthConfig struct {
	ClientID     string `envconfig:"GOOGLE_CLIENT_ID"`
	ClientSecret string `envconfig:"GOOGLE_CLIENT_SECRET"`
	RedirectURL  string `envconfig:"GOOGLE_REDIRECT_URL" default:"http://localhost:8080/api/v1/auth/oauth/google/callback"`
	AuthURL      string `envconfig:"GOOGLE_AUTH_URL" default:"https://accounts.google.com/o/oauth2/auth"`
	TokenURL     string `envconfig:"GOOGLE_TOKEN_URL" default:"https://oauth2.googleapis.com/token"`
	UserInfoURL  string `envconfig:"GOOGLE_USERINFO_URL" default:"https://openidconnect.googleapis.com/v1/userinfo"`
	// Where the browser lands after a successful callback.
	SuccessURL string `envconfig:"GOOGLE_SUCCESS_URL" default:"/"`
}

// Enabled reports whether Google sign-in is configured.
func (g GoogleOAuthConfig) Enabled() bool {
	return g.ClientID != "" && g.ClientSecret != ""
}

// RedisConfig backs token revocation and rate limiting. Both are skipped when Addr is empty.
type RedisConfig struct {
	Addr            string        `envconfig:"REDIS_ADDR"`
	Password        string        `envconfig:"REDIS_PASSWORD"`
	DB              int           `envconfig:"REDIS_DB" default:"0"`
	RateLimitCount  int64         `envconfig:"RATE_LIMIT_COUNT" default:"10"`
	RateLimitWindow time.Duration `envconfig:"RATE_LIMIT_WINDOW" default:"1m"`
}

// UploadsConfig controls image ingestion.
type UploadsConfig struct {
	Root         string `envconfig:"UPLOAD_ROOT" default:"./uploads"`
	PublicPrefix string `envconfig:"UPLOAD_PUBLIC_PREFIX" default:"/uploads"`
	JPEGQuality  int    `envconfig:"UPLOAD_JPEG_QUALITY" default:"80"`
	MaxBytes     int64  `envconfig:"UPLOAD_MAX_BYTES" default:"10485760"`
	MaxDimension int    `envconfig:"UPLOAD_MAX_DIMENSION" default:"2000"`

	// Decoded size limit; compressed payloads can declare huge canvases.
	MaxPixels int64 `envconfig:"UPLOAD_MAX_PIXELS" default:"40000000"`
}

// TracingConfig toggles the OpenTelemetry stdout exporter.
type TracingConfig struct {
	Enabled     bool   `envconfig:"TRACING_ENABLED" default:"false"`
	ServiceName string `envconfig:"TRACING_SERVICE_NAME" default:"storefront"`
}

var cfg Config

// Load initializes the configuration from environment variables.
// It should be called once during application startup.
func Load() (*Config, error) {
	log.Println("INFO: Loading service configuration...")
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process configuration: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	log.Printf("INFO: Configuration loaded successfully for APP_ENV: %s", cfg.AppEnv)
	return &cfg, nil
}

func (c *Config) validate() error {
	if len(c.Auth.JWTSecret) < 32 {
		return fmt.Errorf("invalid AUTH_JWT_SECRET: must be at least 32 bytes")
	}
	if c.Uploads.JPEGQuality < 1 || c.Uploads.JPEGQuality > 100 {
		return fmt.Errorf("invalid UPLOAD_JPEG_QUALITY: %d", c.Uploads.JPEGQuality)
	}
	if c.Uploads.MaxDimension < 1 {
		return fmt.Errorf("invalid UPLOAD_MAX_DIMENSION: %d", c.Uploads.MaxDimension)
	}
	if c.Uploads.MaxPixels < 1 {
		return fmt.Errorf("invalid UPLOAD_MAX_PIXELS: %d", c.Uploads.MaxPixels)
	}
	c.Uploads.PublicPrefix = "/" + strings.Trim(c.Uploads.PublicPrefix, "/")
	return nil
}

// IsProduction reports whether APP_ENV names a production deployment.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.AppEnv, "production")
}
