package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	cliplugins "mcastguard/internal/cli_plugins"
	"mcastguard/internal/config"
	"mcastguard/internal/util/logger/handlers/slogpretty"
	"mcastguard/pkg/cli"

	"github.com/spf13/cobra"
	"gopkg.in/natefinch/lumberjack.v2"
)

const (
	envLocal = "local"
	envDev   = "dev"
	envProd  = "prod"
)

var version = "dev"

func main() {
	// Контекст отменяется по SIGINT/SIGTERM, чтобы отработали все defer с освобождением
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	app := cliplugins.NewAppContext()

	CLI := cli.NewCLI(ctx, "mcastguard", "Keeps multicast enabled on the Wi-Fi interface while the host app is active")

	var configPath string
	var logCloser io.Closer
	root := CLI.Root()
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config file")
	root.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		// Загружаем конфигурацию
		cfg, err := config.Load(config.ResolvePath(configPath))
		if err != nil {
			return err
		}
		app.Config = cfg

		// Настраиваем логгер
		var writer io.Writer = os.Stderr
		if cfg.LogFile != "" {
			lj := &lumberjack.Logger{
				Filename:   cfg.LogFile,
				MaxSize:    10,
				MaxBackups: 3,
				MaxAge:     28,
			}
			logCloser = lj
			writer = io.MultiWriter(os.Stderr, lj)
		}
		app.Log = setupLogger(cfg.Env, writer)

		app.Log.Debug("configuration loaded",
			slog.String("env", cfg.Env),
			slog.String("interface", cfg.Wifi.Interface),
			slog.String("journal", cfg.Journal.Path),
		)
		return nil
	}

	CLI.RegisterPlugin(cliplugins.NewHoldCommand(app))
	CLI.RegisterPlugin(cliplugins.NewStatusCommand(app))
	CLI.RegisterPlugin(cliplugins.NewRecoverCommand(app))
	CLI.RegisterPlugin(cliplugins.NewProbeCommand(app))
	CLI.RegisterPlugin(&cli.VersionCommand{Version: version})

	err := CLI.Run(os.Args[1:])

	if logCloser != nil {
		logCloser.Close()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		cancel()
		os.Exit(1)
	}
}

func setupLogger(env string, writer io.Writer) *slog.Logger {

	var log *slog.Logger

	switch env {
	case envLocal:
		log = setupPrettySlog(writer)
	case envDev:
		log = slog.New(slog.NewJSONHandler(writer, &slog.HandlerOptions{Level: slog.LevelDebug}))
	case envProd:
		log = slog.New(slog.NewJSONHandler(writer, &slog.HandlerOptions{Level: slog.LevelInfo}))
	default:
		log = slog.New(slog.NewJSONHandler(writer, &slog.HandlerOptions{Level: slog.LevelInfo}))
	}
	return log
}

func setupPrettySlog(writer io.Writer) *slog.Logger {
	opts := slogpretty.PrettyHandlerOptions{
		SlogOpts: &slog.HandlerOptions{
			Level: slog.LevelDebug,
		},
	}

	handler := opts.NewPrettyHandler(writer)

	return slog.New(handler)
}
