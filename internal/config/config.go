package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds the service configuration.
type Config struct {
	Port        string `mapstructure:"PORT"`
	GRPCAddr    string `mapstructure:"GRPC_ADDR"`
	ServiceName string `mapstructure:"SERVICE_NAME"`
	Environment string `mapstructure:"ENVIRONMENT"`

	StoreDriver string `mapstructure:"STORE_DRIVER"`
	DSN         string `mapstructure:"DB_DSN"`

	JWTSecret string        `mapstructure:"JWT_SECRET"`
	TokenTTL  time.Duration `mapstructure:"TOKEN_TTL"`

	AMQPURL        string `mapstructure:"AMQP_URL"`
	EventsExchange string `mapstructure:"EVENTS_EXCHANGE"`
	LogsExchange   string `mapstructure:"LOGS_EXCHANGE"`

	BlobDriver     string `mapstructure:"BLOB_DRIVER"`
	UploadDir      string `mapstructure:"UPLOAD_DIR"`
	S3Bucket       string `mapstructure:"S3_BUCKET"`
	S3Region       string `mapstructure:"S3_REGION"`
	S3PublicURL    string `mapstructure:"S3_PUBLIC_URL"`
	MaxUploadBytes int64  `mapstructure:"MAX_UPLOAD_BYTES"`
}

const (
	StoreMemory   = "memory"
	StoreSQLite   = "sqlite"
	StorePostgres = "postgres"

	BlobLocal = "local"
	BlobS3    = "s3"
)

var defaults = map[string]any{
	"PORT":             "8080",
	"GRPC_ADDR":        ":8085",
	"SERVICE_NAME":     "social-service",
	"ENVIRONMENT":      "local",
	"STORE_DRIVER":     StoreSQLite,
	"DB_DSN":           "social.db",
	"JWT_SECRET":       "",
	"TOKEN_TTL":        "168h",
	"AMQP_URL":         "",
	"EVENTS_EXCHANGE":  "app.events",
	"LOGS_EXCHANGE":    "logs.events",
	"BLOB_DRIVER":      BlobLocal,
	"UPLOAD_DIR":       "uploads",
	"S3_BUCKET":        "",
	"S3_REGION":        "us-east-1",
	"S3_PUBLIC_URL":    "",
	"MAX_UPLOAD_BYTES": 50 << 20,
}

// Load reads an optional config file (config.yaml or .env in the working directory,
// or the explicit path) and overlays environment variables.
func Load(path string) (*Config, error) {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName("config")
	}
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.JWTSecret == "" {
		return errors.New("JWT_SECRET must be set")
	}
	switch c.StoreDriver {
	case StoreMemory:
	case StoreSQLite, StorePostgres:
		if c.DSN == "" {
			return fmt.Errorf("DB_DSN must be set for store driver %q", c.StoreDriver)
		}
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q", c.StoreDriver)
	}
	switch c.BlobDriver {
	case BlobLocal:
		if c.UploadDir == "" {
			return errors.New("UPLOAD_DIR must be set for local blob storage")
		}
	case BlobS3:
		if c.S3Bucket == "" {
			return errors.New("S3_BUCKET must be set for s3 blob storage")
		}
	default:
		return fmt.Errorf("unknown BLOB_DRIVER %q", c.BlobDriver)
	}
	if c.TokenTTL <= 0 {
		return errors.New("TOKEN_TTL must be positive")
	}
	return nil
}
