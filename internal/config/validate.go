package config

import (
	"errors"
	"fmt"
	"net/url"

	"github.com/adhocore/gronx"

	"github.com/EgorLis/autoreply/internal/logger"
)

// Validate проверяет значения, с которыми бот не сможет работать.
func (c *Config) Validate() error {
	var errs []error

	switch c.Storage.Driver {
	case "file":
		if c.Storage.Dir == "" {
			errs = append(errs, errors.New("storage.dir is required for the file driver"))
		}
	case "sqlite":
		if c.Storage.SQLitePath == "" {
			errs = append(errs, errors.New("storage.sqlite_path is required for the sqlite driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("storage.driver: unknown driver %q", c.Storage.Driver))
	}

	if c.Gateway.URL != "" {
		u, err := url.Parse(c.Gateway.URL)
		if err != nil || (u.Scheme != "ws" && u.Scheme != "wss") {
			errs = append(errs, fmt.Errorf("gateway.url must be a ws:// or wss:// url, got %q", c.Gateway.URL))
		}
	}
	if c.Gateway.PingInterval < 0 || c.Gateway.MaxBackoff < 0 {
		errs = append(errs, errors.New("gateway durations must not be negative"))
	}
	if c.Gateway.SendRPS < 0 || c.Gateway.SendBurst < 0 {
		errs = append(errs, errors.New("gateway.send_rps and send_burst must not be negative"))
	}

	t := c.Throttle
	if t.Window <= 0 {
		errs = append(errs, errors.New("throttle.window must be positive"))
	}
	if t.CommandLimit < 1 || t.AuthorLimit < 1 {
		errs = append(errs, errors.New("throttle limits must be at least 1"))
	}
	if t.MuteAfter < t.CommandLimit || t.MuteAfter < t.AuthorLimit {
		errs = append(errs, errors.New("throttle.mute_after must not be below the limits"))
	}

	if c.OCR.Enabled && c.OCR.Endpoint == "" {
		errs = append(errs, errors.New("ocr.endpoint is required when ocr is enabled"))
	}

	if c.Backup.Cron != "" {
		if !gronx.IsValid(c.Backup.Cron) {
			errs = append(errs, fmt.Errorf("backup.cron: invalid expression %q", c.Backup.Cron))
		}
		if c.Backup.Dir == "" {
			errs = append(errs, errors.New("backup.dir is required when backup.cron is set"))
		}
	}
	if c.Backup.Keep < 0 {
		errs = append(errs, errors.New("backup.keep must not be negative"))
	}

	if !logger.KnownLevel(c.Logging.Level) {
		errs = append(errs, fmt.Errorf("logging.level: unknown level %q", c.Logging.Level))
	}

	return errors.Join(errs...)
}
