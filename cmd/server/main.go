package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/vovakirdan/linechat-server/internal/app"
	"github.com/vovakirdan/linechat-server/internal/config"
	applog "github.com/vovakirdan/linechat-server/internal/log"
)

var (
	configPath string
	overrides  config.Config
)

var rootCmd = &cobra.Command{
	Use:           "linechat-server",
	Short:         "Multi-user line protocol chat server",
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return run(cmd.Context())
	},
}

func init() {
	flags := rootCmd.Flags()
	flags.StringVar(&configPath, "config", "", "path to config.yaml (created with defaults if missing)")
	flags.StringVar(&overrides.TCPAddr, "tcp-addr", "", "TCP listen address for the line protocol")
	flags.StringVar(&overrides.HTTPAddr, "http-addr", "", "HTTP listen address for the admin API and /ws")
	flags.StringVar(&overrides.LogLevel, "log-level", "", "log level (trace, debug, info, warn, error)")
	flags.StringVar(&overrides.Store.Driver, "store", "", "store driver (sqlite, postgres, memory)")
	flags.StringVar(&overrides.Store.SQLitePath, "sqlite-path", "", "SQLite database file")
	flags.StringVar(&overrides.Store.PostgresDSN, "postgres-dsn", "", "PostgreSQL connection string")
	flags.StringVar(&overrides.Session.DuplicateLogin, "duplicate-login", "", "second login of an online user: reject or replace")
	flags.IntVar(&overrides.Session.HistoryLimit, "history", 0, "messages replayed to a user after login")
	flags.DurationVar(&overrides.ShutdownTimeout, "shutdown-timeout", 0, "graceful shutdown timeout")
}

func run(ctx context.Context) error {
	bootLog := applog.NewWithWriter("info", os.Stderr)

	cfg, path, err := config.Load(bootLog, configPath)
	if err != nil {
		return err
	}
	cfg.UpdateFrom(overrides)

	logger := applog.New(cfg.LogLevel)
	logger.Info().Str("config", path).Str("tcp_addr", cfg.TCPAddr).Str("http_addr", cfg.HTTPAddr).Msg("starting linechat server")

	application, err := app.New(ctx, &cfg, logger)
	if err != nil {
		return err
	}
	if err := application.Run(ctx); err != nil {
		return err
	}

	logger.Info().Msg("server stopped")
	return nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "linechat-server: %v\n", err)
		stop()
		os.Exit(1)
	}
}
