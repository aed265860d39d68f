package config

import (
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

type Config struct {
	AppName      string `env:"AUTH_APP_NAME" envDefault:"auth-service"`
	AppEnv       string `env:"AUTH_APP_ENV" envDefault:"local"`
	HTTPHost     string `env:"AUTH_HTTP_HOST" envDefault:"0.0.0.0"`
	HTTPPort     string `env:"AUTH_HTTP_PORT" envDefault:"8081"`
	HTTPBasePath string `env:"AUTH_HTTP_BASE_PATH" envDefault:"/api/v1"`

	CORSAllowOrigins []string `env:"AUTH_CORS_ALLOW_ORIGINS" envSeparator:"," envDefault:"*"`

	// Storage selects the credential store backend: "postgres" or "memory".
	Storage    string        `env:"AUTH_STORAGE" envDefault:"postgres"`
	DBURL      string        `env:"AUTH_DATABASE_URL"`
	DBHost     string        `env:"AUTH_DB_HOST" envDefault:"localhost"`
	DBPort     string        `env:"AUTH_DB_PORT" envDefault:"5432"`
	DBUser     string        `env:"AUTH_DB_USER" envDefault:"app"`
	DBPassword string        `env:"AUTH_DB_PASSWORD" envDefault:"app_password"`
	DBName     string        `env:"AUTH_DB_NAME" envDefault:"authdb"`
	DBSSLMode  string        `env:"AUTH_DB_SSLMODE" envDefault:"disable"`
	DBTimeout  time.Duration `env:"AUTH_DB_TIMEOUT" envDefault:"5s"`

	JWTSecret     string        `env:"AUTH_JWT_SECRET"`
	JWTPrivateKey string        `env:"AUTH_JWT_PRIVATE_KEY"`
	JWTPublicKey  string        `env:"AUTH_JWT_PUBLIC_KEY"`
	JWTAudience   string        `env:"AUTH_JWT_AUDIENCE" envDefault:"mobile"`
	JWTIssuer     string        `env:"AUTH_JWT_ISSUER" envDefault:"auth-service"`
	JWTLeeway     time.Duration `env:"AUTH_JWT_LEEWAY" envDefault:"0s"`
	AccessTTL     time.Duration `env:"AUTH_JWT_ACCESS_TTL" envDefault:"15m"`
	RefreshTTL    time.Duration `env:"AUTH_JWT_REFRESH_TTL" envDefault:"168h"`

	// RefreshReuseGrace is how long after a rotation the old refresh token is
	// rejected without revoking the user's other sessions.
	RefreshReuseGrace time.Duration `env:"AUTH_REFRESH_REUSE_GRACE" envDefault:"10s"`

	BcryptCost        int           `env:"AUTH_BCRYPT_COST" envDefault:"12"`
	ResetTokenTTL     time.Duration `env:"AUTH_RESET_TOKEN_TTL" envDefault:"1h"`
	VerifyTokenTTL    time.Duration `env:"AUTH_VERIFY_TOKEN_TTL" envDefault:"24h"`
	SweepInterval     time.Duration `env:"AUTH_SWEEP_INTERVAL" envDefault:"10m"`
	PublicAppURL      string        `env:"AUTH_PUBLIC_APP_URL" envDefault:"glowup://auth"`
	DefaultRole       string        `env:"AUTH_DEFAULT_ROLE" envDefault:"user"`
	ExposeInternalErr bool          `env:"AUTH_EXPOSE_INTERNAL_ERRORS" envDefault:"false"`

	LoginRateWindow    time.Duration `env:"AUTH_RATE_LOGIN_WINDOW" envDefault:"15m"`
	LoginRateMax       int           `env:"AUTH_RATE_LOGIN_MAX" envDefault:"5"`
	RegisterRateWindow time.Duration `env:"AUTH_RATE_REGISTER_WINDOW" envDefault:"1h"`
	RegisterRateMax    int           `env:"AUTH_RATE_REGISTER_MAX" envDefault:"3"`
	ResetRateWindow    time.Duration `env:"AUTH_RATE_RESET_WINDOW" envDefault:"1h"`
	ResetRateMax       int           `env:"AUTH_RATE_RESET_MAX" envDefault:"3"`
	GeneralRateWindow  time.Duration `env:"AUTH_RATE_GENERAL_WINDOW" envDefault:"15m"`
	GeneralRateMax     int           `env:"AUTH_RATE_GENERAL_MAX" envDefault:"100"`

	NATSURL                   string `env:"NATS_URL" envDefault:"nats://localhost:4222"`
	NATSVerifySubject         string `env:"NATS_SUBJECT_VERIFY_JWT" envDefault:"auth.verifyJWT"`
	NATSUserCreatedSubject    string `env:"NATS_SUBJECT_USER_CREATED" envDefault:"user.created"`
	NATSUserDeactivateSubject string `env:"NATS_SUBJECT_USER_DEACTIVATED" envDefault:"user.deactivated"`

	MailerURL     string        `env:"AUTH_MAILER_URL"`
	MailerTimeout time.Duration `env:"AUTH_MAILER_TIMEOUT" envDefault:"5s"`
}

// RateRule is a window/limit pair for one route class.
type RateRule struct {
	Window time.Duration
	Max    int
}

func (c *Config) LoginRate() RateRule    { return RateRule{Window: c.LoginRateWindow, Max: c.LoginRateMax} }
func (c *Config) RegisterRate() RateRule { return RateRule{Window: c.RegisterRateWindow, Max: c.RegisterRateMax} }
func (c *Config) ResetRate() RateRule    { return RateRule{Window: c.ResetRateWindow, Max: c.ResetRateMax} }
func (c *Config) GeneralRate() RateRule  { return RateRule{Window: c.GeneralRateWindow, Max: c.GeneralRateMax} }

// IsLocal reports whether the service runs on a developer machine.
func (c *Config) IsLocal() bool { return c.AppEnv == "local" }

func Load() (*Config, error) {
	_ = godotenv.Load()
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
