// Package cli: команды autoreply: запуск бота и офлайн-правка хранилища.
package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/EgorLis/autoreply/internal/config"
	"github.com/EgorLis/autoreply/internal/keywords"
	"github.com/EgorLis/autoreply/internal/keywords/filestore"
	"github.com/EgorLis/autoreply/internal/keywords/sqlitestore"
	"github.com/EgorLis/autoreply/internal/logger"
)

var configPath string

// RootCmd: корневая команда.
var RootCmd = &cobra.Command{
	Use:   "autoreply",
	Short: "Keyword auto-reply chat bot",
	Long:  "Replies to chat messages that match stored keywords. Subcommands edit the keyword store offline.",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logger.Init("")
	},
}

func init() {
	RootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file (default: $AUTOREPLY_CONFIG or "+config.DefaultPath+")")
}

func loadConfig() *config.Config {
	cfg, err := config.Load(configPath)
	if err != nil {
		exitErr("load config", err)
	}
	logger.Init(cfg.Logging.Level)
	return cfg
}

// storage: открытое хранилище и закрытие его backend.
type storage struct {
	*keywords.Store
	close func() error
	sqlite *sqlitestore.Store // nil для файлового драйвера
}

func (s *storage) Close() {
	if err := s.close(); err != nil {
		logger.Warn("storage_close_failed", "err", err)
	}
}

func openStorage(cfg *config.Config) (*storage, error) {
	switch cfg.Storage.Driver {
	case "sqlite":
		db, err := sqlitestore.Open(cfg.Storage.SQLitePath)
		if err != nil {
			return nil, err
		}
		st, err := keywords.Open(db)
		if err != nil {
			db.Close()
			return nil, err
		}
		return &storage{Store: st, close: db.Close, sqlite: db}, nil
	default:
		fs, err := filestore.Open(cfg.Storage.Dir)
		if err != nil {
			return nil, err
		}
		st, err := keywords.Open(fs)
		if err != nil {
			fs.Close()
			return nil, err
		}
		return &storage{Store: st, close: fs.Close}, nil
	}
}

func mustOpenStorage(cfg *config.Config) *storage {
	s, err := openStorage(cfg)
	if errors.Is(err, filestore.ErrLocked) {
		exitErr("open store", fmt.Errorf("%w (stop the running bot first)", err))
	}
	if err != nil {
		exitErr("open store", err)
	}
	return s
}

func exitErr(msg string, err error) {
	fmt.Fprintf(os.Stderr, "error: %s: %v\n", msg, err)
	os.Exit(1)
}
