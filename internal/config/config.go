package config

import (
	"os"

	"github.com/ilyakaznacheev/cleanenv"
)

type Config struct {
	LogLevel string `env:"LOG_LEVEL" env-default:"info"`

	RabbitMQHost     string `env:"RABBIT_HOST" env-default:"127.0.0.1"`
	RabbitMQPort     int    `env:"RABBIT_PORT" env-default:"5672"`
	RabbitMQUser     string `env:"RABBIT_USER" env-required:"true"`
	RabbitMQPassword string `env:"RABBIT_PASSWORD" env-required:"true"`

	// Object storage for run logs and artifacts. Optional; empty host
	// disables uploads.
	MinIOHost     string `env:"MINIO_HOST" env-default:""`
	MinIOLogin    string `env:"MINIO_LOGIN" env-default:""`
	MinIOPassword string `env:"MINIO_PASSWORD" env-default:""`
	MinIOBucket   string `env:"MINIO_BUCKET" env-default:"runs"`

	// Local retention directory for run outputs. Optional.
	RetainDir string `env:"RETAIN_DIR" env-default:""`
}

func NewConfig() (*Config, error) {
	cfg := &Config{}

	err := cleanenv.ReadConfig(".env", cfg)
	if os.IsNotExist(err) {
		err = cleanenv.ReadEnv(cfg)
	}
	if err != nil {
		return nil, err
	}

	return cfg, nil
}
