// Package config загружает настройки бота: .env, затем YAML-файл, затем
// переменные окружения поверх него.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const DefaultPath = "conf/autoreply.yaml"

type Config struct {
	Gateway   GatewayConfig   `yaml:"gateway"`
	Channels  []string        `yaml:"channels"`
	Storage   StorageConfig   `yaml:"storage"`
	OCR       OCRConfig       `yaml:"ocr"`
	Throttle  ThrottleConfig  `yaml:"throttle"`
	Reactions ReactionsConfig `yaml:"reactions"`
	Logging   LoggingConfig   `yaml:"logging"`
	Admin     AdminConfig     `yaml:"admin"`
	Backup    BackupConfig    `yaml:"backup"`
}

type GatewayConfig struct {
	URL          string   `yaml:"url"`
	Token        string   `yaml:"token"`
	PingInterval Duration `yaml:"ping_interval"`
	MaxBackoff   Duration `yaml:"max_backoff"`
	SendRPS      float64  `yaml:"send_rps"`
	SendBurst    int      `yaml:"send_burst"`
}

type StorageConfig struct {
	Driver     string `yaml:"driver"` // file | sqlite
	Dir        string `yaml:"dir"`
	SQLitePath string `yaml:"sqlite_path"`
}

type OCRConfig struct {
	Enabled  bool     `yaml:"enabled"`
	Endpoint string   `yaml:"endpoint"`
	Token    string   `yaml:"token"`
	Timeout  Duration `yaml:"timeout"`
}

type ThrottleConfig struct {
	Window       Duration `yaml:"window"`
	CommandLimit int      `yaml:"command_limit"`
	AuthorLimit  int      `yaml:"author_limit"`
	MuteAfter    int      `yaml:"mute_after"`
}

type ReactionsConfig struct {
	Success string `yaml:"success"`
	Mute    string `yaml:"mute"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
}

type AdminConfig struct {
	Addr string `yaml:"addr"`
}

type BackupConfig struct {
	Cron string `yaml:"cron"`
	Dir  string `yaml:"dir"`
	Keep int    `yaml:"keep"`
}

// Duration понимает "3s", "250ms" и число секунд.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	raw := strings.TrimSpace(node.Value)
	if raw == "" {
		*d = 0
		return nil
	}
	if td, err := time.ParseDuration(raw); err == nil {
		*d = Duration(td)
		return nil
	}
	if f, err := strconv.ParseFloat(raw, 64); err == nil {
		*d = Duration(time.Duration(f * float64(time.Second)))
		return nil
	}
	return fmt.Errorf("invalid duration value: %q", node.Value)
}

func (d Duration) MarshalYAML() (any, error) { return time.Duration(d).String(), nil }

func (d Duration) Duration() time.Duration { return time.Duration(d) }

func Default() *Config {
	return &Config{
		Gateway: GatewayConfig{
			URL:          "ws://127.0.0.1:8765/ws",
			PingInterval: Duration(15 * time.Second),
			MaxBackoff:   Duration(30 * time.Second),
			SendRPS:      5,
			SendBurst:    5,
		},
		Storage: StorageConfig{
			Driver:     "file",
			Dir:        "data",
			SQLitePath: "data/autoreply.db",
		},
		OCR: OCRConfig{
			Timeout: Duration(10 * time.Second),
		},
		Throttle: ThrottleConfig{
			Window:       Duration(3 * time.Second),
			CommandLimit: 1,
			AuthorLimit:  2,
			MuteAfter:    3,
		},
		Reactions: ReactionsConfig{
			Success: "✅",
			Mute:    "🤐",
		},
		Logging: LoggingConfig{Level: "info"},
		Backup: BackupConfig{
			Dir:  "data/backups",
			Keep: 10,
		},
	}
}

// Load читает .env (если есть), YAML по path поверх значений по умолчанию и
// применяет переменные окружения. Отсутствующий файл — не ошибка.
func Load(path string) (*Config, error) {
	_ = godotenv.Load(".env")

	if path == "" {
		path = os.Getenv("AUTOREPLY_CONFIG")
	}
	if path == "" {
		path = DefaultPath
	}

	cfg := Default()
	b, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("read config: %w", err)
	default:
		if err := yaml.Unmarshal(b, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := ApplyEnv(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
