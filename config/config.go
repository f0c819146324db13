package config

import (
	"errors"
	"log"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

const (
	DBDriverPostgres = "postgres"
	DBDriverSQLite   = "sqlite"

	SessionBackendSQL  = "sql"
	SessionBackendBolt = "bolt"
)

type Config struct {
	AppName      string `env:"AUTH_APP_NAME" envDefault:"gastango-api"`
	AppEnv       string `env:"AUTH_APP_ENV" envDefault:"local"`
	LogLevel     string `env:"AUTH_LOG_LEVEL" envDefault:"info"`
	HTTPHost     string `env:"AUTH_HTTP_HOST" envDefault:"0.0.0.0"`
	HTTPPort     string `env:"AUTH_HTTP_PORT" envDefault:"8081"`
	HTTPBasePath string `env:"AUTH_HTTP_BASE_PATH" envDefault:"/api/v1"`

	DBDriver     string `env:"AUTH_DB_DRIVER" envDefault:"postgres"`
	DBHost       string `env:"AUTH_DB_HOST" envDefault:"localhost"`
	DBPort       string `env:"AUTH_DB_PORT" envDefault:"5432"`
	DBUser       string `env:"AUTH_DB_USER" envDefault:"app"`
	DBPassword   string `env:"AUTH_DB_PASSWORD" envDefault:"app_password"`
	DBName       string `env:"AUTH_DB_NAME" envDefault:"gastango"`
	DBSSLMode    string `env:"AUTH_DB_SSLMODE" envDefault:"disable"`
	DBSQLitePath string `env:"AUTH_DB_SQLITE_PATH" envDefault:"gastango.db"`

	SessionBackend       string        `env:"AUTH_SESSION_BACKEND" envDefault:"sql"`
	BoltPath             string        `env:"AUTH_BOLT_PATH" envDefault:"sessions.bolt"`
	SessionTTL           time.Duration `env:"AUTH_SESSION_TTL" envDefault:"1h"`
	SessionPurgeInterval time.Duration `env:"AUTH_SESSION_PURGE_INTERVAL" envDefault:"1h"`

	JWTSecret     string `env:"AUTH_JWT_SECRET"`
	JWTPrivateKey string `env:"AUTH_JWT_PRIVATE_KEY"`
	JWTPublicKey  string `env:"AUTH_JWT_PUBLIC_KEY"`
	JWTAudience   string `env:"AUTH_JWT_AUDIENCE" envDefault:"gastango-clients"`
	JWTIssuer     string `env:"AUTH_JWT_ISSUER" envDefault:"gastango-api"`

	BcryptCost        int           `env:"AUTH_BCRYPT_COST" envDefault:"10"`
	VerifyCodeTTL     time.Duration `env:"AUTH_VERIFY_CODE_TTL" envDefault:"24h"`
	VerifyMaxAttempts int           `env:"AUTH_VERIFY_MAX_ATTEMPTS" envDefault:"5"`
	DefaultRole       string        `env:"AUTH_DEFAULT_ROLE" envDefault:"user"`
	MinPasswordLength int           `env:"AUTH_MIN_PASSWORD_LENGTH" envDefault:"8"`

	NATSURL              string `env:"NATS_URL"`
	NATSAuthorizeSubject string `env:"AUTH_NATS_SUBJECT_AUTHORIZE" envDefault:"auth.authorize"`
	NATSMailSubject      string `env:"AUTH_NATS_SUBJECT_MAIL" envDefault:"mail.send"`

	MailerURL     string        `env:"AUTH_MAILER_URL"`
	MailerTimeout time.Duration `env:"AUTH_MAILER_TIMEOUT" envDefault:"5s"`
}

// Load reads an optional .env file (or the given files) and parses the environment.
func Load(envFiles ...string) (*Config, error) {
	_ = godotenv.Load(envFiles...)
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func MustLoad(envFiles ...string) *Config {
	cfg, err := Load(envFiles...)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	return cfg
}

func (c *Config) Validate() error {
	if c.JWTSecret == "" && (c.JWTPrivateKey == "" || c.JWTPublicKey == "") {
		return errors.New("AUTH_JWT_SECRET or AUTH_JWT_PRIVATE_KEY/AUTH_JWT_PUBLIC_KEY required")
	}
	if c.SessionTTL < time.Second {
		return errors.New("AUTH_SESSION_TTL must be at least 1s")
	}
	if c.VerifyMaxAttempts < 1 {
		return errors.New("AUTH_VERIFY_MAX_ATTEMPTS must be at least 1")
	}
	switch c.DBDriver {
	case DBDriverPostgres, DBDriverSQLite:
	default:
		return errors.New("AUTH_DB_DRIVER must be postgres or sqlite")
	}
	switch c.SessionBackend {
	case SessionBackendSQL, SessionBackendBolt:
	default:
		return errors.New("AUTH_SESSION_BACKEND must be sql or bolt")
	}
	return nil
}
