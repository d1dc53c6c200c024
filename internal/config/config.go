package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/ulule/limiter/v3"
)

const (
	StorageMongo  = "mongo"
	StorageMemory = "memory"
)

type Config struct {
	Address  string `env:"ADDRESS" envDefault:"0.0.0.0"`
	Port     int    `env:"PORT" envDefault:"5000"`
	BaseURL  string `env:"BASE_URL"`
	Storage  string `env:"STORAGE_DRIVER" envDefault:"mongo"`
	MongoURI string `env:"MONGO_URI" envDefault:"mongodb://localhost:27017/?replicaSet=rs0"`
	MongoDB  string `env:"MONGO_DB" envDefault:"masjidmap"`

	JWTSecret string        `env:"JWT_SECRET"`
	JWTTTL    time.Duration `env:"JWT_TTL" envDefault:"168h"`

	MainAdminName     string `env:"MAIN_ADMIN_NAME" envDefault:"Main Admin"`
	MainAdminEmail    string `env:"MAIN_ADMIN_EMAIL"`
	MainAdminPassword string `env:"MAIN_ADMIN_PASSWORD"`

	OperationTimeout    time.Duration `env:"OPERATION_TIMEOUT" envDefault:"5s"`
	NearbyDefaultRadius float64       `env:"NEARBY_DEFAULT_RADIUS" envDefault:"5000"`
	NearbyMaxRadius     float64       `env:"NEARBY_MAX_RADIUS" envDefault:"100000"`

	LogLevel    string   `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat   string   `env:"LOG_FORMAT" envDefault:"text"`
	RateLimit   string   `env:"RATE_LIMIT" envDefault:"60-M"`
	CORSOrigins []string `env:"CORS_ORIGINS" envSeparator:"," envDefault:"*"`
	SwaggerFile string   `env:"SWAGGER_FILE" envDefault:"docs/swagger.json"`

	TelegramBotToken string `env:"TELEGRAM_BOT_TOKEN"`
	TelegramChatID   int64  `env:"TELEGRAM_CHAT_ID"`
}

// Load reads .env files when present, then the environment.
func Load() (*Config, error) {
	for _, f := range []string{".env.local", ".env"} {
		_ = godotenv.Load(f)
	}

	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = fmt.Sprintf("http://localhost:%d", cfg.Port)
	}
	if cfg.JWTSecret == "" && cfg.Storage == StorageMemory {
		cfg.JWTSecret = "dev-only-secret"
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	var errs []error
	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, errors.New("PORT must be between 1 and 65535"))
	}
	switch c.Storage {
	case StorageMongo:
		if c.MongoURI == "" {
			errs = append(errs, errors.New("MONGO_URI is required for the mongo driver"))
		}
	case StorageMemory:
	default:
		errs = append(errs, fmt.Errorf("STORAGE_DRIVER must be %q or %q", StorageMongo, StorageMemory))
	}
	if c.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET is required"))
	}
	if c.JWTTTL <= 0 {
		errs = append(errs, errors.New("JWT_TTL must be positive"))
	}
	if c.OperationTimeout <= 0 {
		errs = append(errs, errors.New("OPERATION_TIMEOUT must be positive"))
	}
	if c.NearbyDefaultRadius < 0 || c.NearbyMaxRadius <= 0 || c.NearbyDefaultRadius > c.NearbyMaxRadius {
		errs = append(errs, errors.New("NEARBY_DEFAULT_RADIUS must be within [0, NEARBY_MAX_RADIUS]"))
	}
	if _, err := limiter.NewRateFromFormatted(c.RateLimit); err != nil {
		errs = append(errs, fmt.Errorf("RATE_LIMIT: %w", err))
	}
	if c.TelegramBotToken != "" && c.TelegramChatID == 0 {
		errs = append(errs, errors.New("TELEGRAM_CHAT_ID is required when TELEGRAM_BOT_TOKEN is set"))
	}
	switch strings.ToLower(c.LogFormat) {
	case "json", "text":
	default:
		errs = append(errs, errors.New("LOG_FORMAT must be json or text"))
	}
	return errors.Join(errs...)
}

// ListenAddr returns host:port for the HTTP listener.
func (c *Config) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.Address, c.Port)
}
