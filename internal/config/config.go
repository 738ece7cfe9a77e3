package config

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

const (
	DriverMongo    = "mongo"
	DriverPostgres = "postgres"
)

type Config struct {
	Env        string `yaml:"env" env:"ENV" env-default:"local"`
	HTTPServer `yaml:"http_server"`
	Storage    `yaml:"storage"`
	Tokens     `yaml:"tokens"`
	Email      `yaml:"email"`
	RabbitMQ   `yaml:"rabbitmq"`
	Redis      `yaml:"redis"`

	CORSAllowedOrigins []string `yaml:"cors_allowed_origins" env:"CORS_ALLOWED_ORIGINS" env-separator:","`
	FrontendURL        string   `yaml:"frontend_url" env:"FRONTEND_URL" env-default:"http://localhost:3000"`

	// SecretGenerated is set when no SECRET_KEY was configured and a per-process one was made up.
	SecretGenerated bool `yaml:"-" env:"-"`
}

type HTTPServer struct {
	Address     string        `yaml:"address" env:"HTTP_ADDRESS" env-default:"localhost:8080"`
	Timeout     time.Duration `yaml:"timeout" env:"HTTP_TIMEOUT" env-default:"4s"`
	IdleTimeout time.Duration `yaml:"idle_timeout" env:"HTTP_IDLE_TIMEOUT" env-default:"60s"`
}

type Storage struct {
	Driver      string `yaml:"driver" env:"STORAGE_DRIVER" env-default:"mongo"`
	DatabaseURL string `yaml:"database_url" env:"DATABASE_URL"`
	DBName      string `yaml:"db_name" env:"DB_NAME" env-default:"media_tracker"`
}

type Tokens struct {
	SecretKey          string `yaml:"secret_key" env:"SECRET_KEY"`
	AccessTokenMinutes int    `yaml:"access_token_expire_minutes" env:"ACCESS_TOKEN_EXPIRE_MINUTES" env-default:"10080"`
	BcryptCost         int    `yaml:"bcrypt_cost" env:"BCRYPT_COST" env-default:"10"`
}

type Email struct {
	Host     string        `yaml:"host" env:"EMAIL_HOST" env-default:"smtp.gmail.com"`
	Port     int           `yaml:"port" env:"EMAIL_PORT" env-default:"587"`
	Username string        `yaml:"username" env:"EMAIL_USERNAME"`
	Password string        `yaml:"password" env:"EMAIL_PASSWORD"`
	Timeout  time.Duration `yaml:"timeout" env:"EMAIL_TIMEOUT" env-default:"30s"`
}

type RabbitMQ struct {
	URL       string `yaml:"url" env:"RABBITMQ_URL"`
	QueueName string `yaml:"queue_name" env:"RABBITMQ_QUEUE" env-default:"verification_emails"`
}

type Redis struct {
	Addr           string        `yaml:"addr" env:"REDIS_ADDR"`
	Password       string        `yaml:"password" env:"REDIS_PASSWORD"`
	DB             int           `yaml:"db" env:"REDIS_DB" env-default:"0"`
	ResendCooldown time.Duration `yaml:"resend_cooldown" env:"RESEND_COOLDOWN" env-default:"1m"`
}

// MustLoad loads the API configuration and panics if it is unusable.
func MustLoad() *Config {
	cfg, err := Load(fetchConfigPath())
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	if err := cfg.Validate(); err != nil {
		panic("invalid config: " + err.Error())
	}

	return cfg
}

// MustLoadMailSender loads the configuration of the queue consumer, which needs no database.
func MustLoadMailSender() *Config {
	cfg, err := Load(fetchConfigPath())
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	if cfg.RabbitMQ.URL == "" {
		panic("invalid config: RABBITMQ_URL is required")
	}

	return cfg
}

// Load reads .env (if present), then the optional YAML file at path, then the environment.
func Load(path string) (*Config, error) {
	const op = "config.Load"

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%s: failed to read .env: %w", op, err)
	}

	var cfg Config

	if path != "" {
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("%s: config file %q: %w", op, path, err)
		}

		if err := cleanenv.ReadConfig(path, &cfg); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
	} else if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if cfg.SecretKey == "" {
		secret, err := randomSecret()
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}

		cfg.SecretKey = secret
		cfg.SecretGenerated = true
	}

	return &cfg, nil
}

func (c *Config) Validate() error {
	switch c.Storage.Driver {
	case DriverMongo, DriverPostgres:
	default:
		return fmt.Errorf("unknown storage driver %q", c.Storage.Driver)
	}

	if c.Storage.DatabaseURL == "" {
		return errors.New("DATABASE_URL is required")
	}

	if c.Tokens.AccessTokenMinutes <= 0 {
		return fmt.Errorf("ACCESS_TOKEN_EXPIRE_MINUTES must be positive, got %d", c.Tokens.AccessTokenMinutes)
	}

	if c.Email.Timeout <= 0 {
		return fmt.Errorf("EMAIL_TIMEOUT must be positive, got %s", c.Email.Timeout)
	}

	return nil
}

func (c *Config) AccessTokenTTL() time.Duration {
	return time.Duration(c.Tokens.AccessTokenMinutes) * time.Minute
}

// fetchConfigPath takes the -config flag first, then CONFIG_PATH. Empty means environment only.
func fetchConfigPath() string {
	var res string

	flag.StringVar(&res, "config", "", "path to config file")
	flag.Parse()

	if res == "" {
		res = os.Getenv("CONFIG_PATH")
	}

	return res
}

func randomSecret() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate secret: %w", err)
	}

	return hex.EncodeToString(b), nil
}
