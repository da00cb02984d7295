package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// Duration — длительность в формате time.ParseDuration ("5s", "500ms"),
// читается и из YAML, и из окружения.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	parsed, err := time.ParseDuration(value.Value)
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", value.Value, err)
	}
	*d = Duration(parsed)
	return nil
}

func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", text, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std возвращает значение обычным time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Config структура конфига. Значения читаются из YAML,
// переменные окружения имеют приоритет.
type Config struct {
	Postgres struct {
		DSN string `yaml:"dsn" env:"DATABASE_DSN"`
	} `yaml:"postgres"`

	Minio struct {
		Endpoint       string `yaml:"endpoint" env:"MINIO_ENDPOINT"`
		AccessKey      string `yaml:"access_key" env:"MINIO_ACCESS_KEY"`
		SecretKey      string `yaml:"secret_key" env:"MINIO_SECRET_KEY"`
		MediaBucket    string `yaml:"media_bucket" env:"MEDIA_BUCKET"`
		ArtifactBucket string `yaml:"artifact_bucket" env:"ARTIFACT_BUCKET"`
	} `yaml:"minio"`

	Kafka struct {
		Brokers        []string `yaml:"brokers" env:"KAFKA_BROKERS" envSeparator:","`
		GroupID        string   `yaml:"group_id" env:"KAFKA_GROUP_ID"`
		TaskTopic      string   `yaml:"task_topic" env:"TASK_TOPIC"`
		ReconnectDelay Duration `yaml:"reconnect_delay" env:"KAFKA_RECONNECT_DELAY"`
	} `yaml:"kafka"`

	Detector struct {
		Endpoint string `yaml:"endpoint" env:"DETECTOR_ENDPOINT"`
	} `yaml:"detector"`

	Render struct {
		Enabled bool   `yaml:"enabled" env:"RENDER_ENABLED"`
		FPS     int    `yaml:"fps" env:"RENDER_FPS"`
		FFmpeg  string `yaml:"ffmpeg" env:"FFMPEG_BIN"`
	} `yaml:"render"`

	HTTP struct {
		ListenAddr  string `yaml:"listen_addr" env:"LISTEN_ADDR"`
		MetricsAddr string `yaml:"metrics_addr" env:"METRICS_ADDR"`
	} `yaml:"http"`
}

// LoadConfig читает YAML (если файл задан), затем окружение поверх него.
func LoadConfig(filename string) (*Config, error) {
	cfg := &Config{}

	if filename != "" {
		data, err := os.ReadFile(filename)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", filename, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", filename, err)
		}
	}

	// Парсим переменные окружения с приоритетом
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Minio.MediaBucket == "" {
		c.Minio.MediaBucket = "media"
	}
	if c.Minio.ArtifactBucket == "" {
		c.Minio.ArtifactBucket = "artifacts"
	}
	if c.Kafka.GroupID == "" {
		c.Kafka.GroupID = "watcher-workers"
	}
	if c.Kafka.TaskTopic == "" {
		c.Kafka.TaskTopic = "ingest-tasks"
	}
	if c.Kafka.ReconnectDelay <= 0 {
		c.Kafka.ReconnectDelay = Duration(5 * time.Second)
	}
	if c.Render.FPS <= 0 {
		c.Render.FPS = 3
	}
	if c.Render.FFmpeg == "" {
		c.Render.FFmpeg = "ffmpeg"
	}
	if c.HTTP.ListenAddr == "" {
		c.HTTP.ListenAddr = ":8000"
	}
	if c.HTTP.MetricsAddr == "" {
		c.HTTP.MetricsAddr = ":9091"
	}
}

// ValidateGateway проверяет обязательные опции гейтвея. Отсутствие любой
// из них — фатальная ошибка старта.
func (c *Config) ValidateGateway() error {
	if c.Postgres.DSN == "" {
		return errors.New("config: postgres dsn is required")
	}
	if c.Minio.Endpoint == "" {
		return errors.New("config: minio endpoint is required")
	}
	if len(c.Kafka.Brokers) == 0 {
		return errors.New("config: kafka brokers are required")
	}
	return nil
}

// ValidateWorker — то же для воркера, плюс адрес детектора.
func (c *Config) ValidateWorker() error {
	if err := c.ValidateGateway(); err != nil {
		return err
	}
	if c.Detector.Endpoint == "" {
		return errors.New("config: detector endpoint is required")
	}
	return nil
}
