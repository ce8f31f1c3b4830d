package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/EgorLis/autoreply/internal/admin"
	"github.com/EgorLis/autoreply/internal/bot"
	"github.com/EgorLis/autoreply/internal/config"
	"github.com/EgorLis/autoreply/internal/gateway"
	"github.com/EgorLis/autoreply/internal/logger"
	"github.com/EgorLis/autoreply/internal/metrics"
	"github.com/EgorLis/autoreply/internal/ocr"
	"github.com/EgorLis/autoreply/internal/throttle"
)

func init() {
	RootCmd.AddCommand(&cobra.Command{
		Use:   "run",
		Short: "Connect to the chat gateway and start replying",
		Args:  cobra.NoArgs,
		Run:   runBot,
	})
}

func runBot(cmd *cobra.Command, args []string) {
	cfg := loadConfig()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := serve(ctx, cfg); err != nil {
		exitErr("run", err)
	}
	logger.Info("stopped")
}

// serve собирает бота и блокируется до сигнала или фатальной ошибки.
func serve(ctx context.Context, cfg *config.Config) error {
	st, err := openStorage(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	m := metrics.New()
	m.WatchStore(st.Store)

	gw := gateway.New(gateway.Conf{
		URL:          cfg.Gateway.URL,
		Token:        cfg.Gateway.Token,
		PingInterval: cfg.Gateway.PingInterval.Duration(),
		MaxBackoff:   cfg.Gateway.MaxBackoff.Duration(),
		SendRPS:      cfg.Gateway.SendRPS,
		SendBurst:    cfg.Gateway.SendBurst,
	})

	opts := bot.Options{
		Store:   st.Store,
		Gateway: gw,
		Gate: throttle.New(throttle.Config{
			Window:       cfg.Throttle.Window.Duration(),
			CommandLimit: cfg.Throttle.CommandLimit,
			AuthorLimit:  cfg.Throttle.AuthorLimit,
			MuteAfter:    cfg.Throttle.MuteAfter,
		}, nil),
		Metrics:  m,
		Channels: cfg.Channels,
		Reactions: bot.Reactions{
			Success: cfg.Reactions.Success,
			Mute:    cfg.Reactions.Mute,
		},
	}
	if cfg.OCR.Enabled {
		// nil *ocr.Client в интерфейсе не был бы nil
		if c := ocr.NewClient(ocr.Conf{
			Endpoint: cfg.OCR.Endpoint,
			Token:    cfg.OCR.Token,
			Timeout:  cfg.OCR.Timeout.Duration(),
		}); c != nil {
			opts.OCR = c
		}
	}
	b := bot.New(opts)

	if cfg.Admin.Addr != "" {
		srv := admin.New(cfg.Admin.Addr, st.Store, m, gw.IsConnected)
		if err := srv.Start(); err != nil {
			return err
		}
		defer func() {
			sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(sctx)
		}()
	}

	if cfg.Backup.Cron != "" {
		bk, err := newBackup(cfg, st)
		if err != nil {
			return err
		}
		if err := bk.Start(ctx); err != nil {
			return err
		}
		defer bk.Stop()
	}

	if err := b.Start(ctx); err != nil {
		return err
	}
	defer b.Stop()

	logger.Info("running", "gateway", cfg.Gateway.URL, "storage", cfg.Storage.Driver,
		"channels", len(cfg.Channels), "ocr", opts.OCR != nil)
	return b.Wait(ctx)
}
