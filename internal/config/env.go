package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

func parseList(v string) []string {
	if v == "" {
		return nil
	}
	parts := []string{}
	for _, p := range strings.Split(v, ",") {
		if s := strings.TrimSpace(p); s != "" {
			parts = append(parts, s)
		}
	}
	return parts
}

// parseChannels принимает и JSON-массив (["1","2"]), и список через запятую.
func parseChannels(v string) ([]string, error) {
	v = strings.TrimSpace(v)
	if strings.HasPrefix(v, "[") {
		var ids []string
		if err := json.Unmarshal([]byte(v), &ids); err != nil {
			return nil, fmt.Errorf("CHANNEL_IDS: %w", err)
		}
		return ids, nil
	}
	return parseList(v), nil
}

// ApplyEnv переписывает поля cfg значениями из окружения.
func ApplyEnv(cfg *Config) error {
	if v := os.Getenv("TOKEN"); v != "" {
		cfg.Gateway.Token = v
	}
	if v := os.Getenv("GATEWAY_URL"); v != "" {
		cfg.Gateway.URL = v
	}
	if v := os.Getenv("CHANNEL_IDS"); v != "" {
		ids, err := parseChannels(v)
		if err != nil {
			return err
		}
		cfg.Channels = ids
	}
	if v := os.Getenv("AUTOREPLY_STORAGE_DRIVER"); v != "" {
		cfg.Storage.Driver = strings.ToLower(strings.TrimSpace(v))
	}
	if v := os.Getenv("AUTOREPLY_DATA_DIR"); v != "" {
		cfg.Storage.Dir = v
	}
	if v := os.Getenv("AUTOREPLY_SQLITE_PATH"); v != "" {
		cfg.Storage.SQLitePath = v
	}
	if v := os.Getenv("AUTOREPLY_OCR_ENDPOINT"); v != "" {
		cfg.OCR.Endpoint = v
		cfg.OCR.Enabled = true
	}
	if v := os.Getenv("AUTOREPLY_OCR_TOKEN"); v != "" {
		cfg.OCR.Token = v
	}
	if v := os.Getenv("AUTOREPLY_ADMIN_ADDR"); v != "" {
		cfg.Admin.Addr = v
	}
	if v := os.Getenv("AUTOREPLY_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("AUTOREPLY_BACKUP_CRON"); v != "" {
		cfg.Backup.Cron = v
	}
	return nil
}
