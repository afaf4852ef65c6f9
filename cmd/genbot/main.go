package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/alovak/cardgen-bot/genbot"
	"github.com/alovak/cardgen-bot/internal/logging"
	"github.com/alovak/cardgen-bot/internal/telegram"
	"golang.org/x/exp/slog"
)

func main() {
	cfg, err := genbot.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "loading config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(os.Stdout, cfg.LogLevel, cfg.LogFormat)

	if cfg.BotToken == "" {
		logger.Error("BOT_TOKEN is required")
		os.Exit(1)
	}

	bot, err := telegram.New(logger, cfg.BotToken)
	if err != nil {
		logger.Error("starting telegram client", "err", err)
		os.Exit(1)
	}

	app := genbot.NewApp(logger, cfg, bot)
	if err := app.Start(); err != nil {
		logger.Error("starting app", "err", err)
		os.Exit(1)
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	sig := <-stop
	logger.Info("signal received", slog.String("signal", sig.String()))

	app.Shutdown()
}
