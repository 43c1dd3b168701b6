package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/keepmind9/featurebot/internal/bot"
	"github.com/keepmind9/featurebot/internal/core"
	"github.com/keepmind9/featurebot/internal/format"
	"github.com/keepmind9/featurebot/internal/logger"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	configFile string

	startCmd = &cobra.Command{
		Use:   "start",
		Short: "Start featurebot main process",
		Long: `Start featurebot main process, receive messages from the configured
platform and answer them until interrupted.

Without --config the first of ./config.yaml, ~/.config/featurebot/config.yaml and
/etc/featurebot/config.yaml is used. When none exists the configuration is read
from the environment only, so TELEGRAM_BOT_TOKEN alone is enough to run.`,
		Run: func(cmd *cobra.Command, args []string) {
			path := resolveConfigFile(configFile)

			config, err := core.LoadConfig(path)
			if err != nil {
				log.Fatalf("Failed to load config: %v", err)
			}

			if err := logger.InitLogger(config.LoggerConfig()); err != nil {
				log.Fatalf("Failed to initialize logger: %v", err)
			}

			logger.WithFields(logrus.Fields{
				"config_file":    path,
				"transport":      config.Transport,
				"command_prefix": config.CommandPrefix,
				"log_level":      config.Logging.Level,
				"log_file":       config.Logging.File,
			}).Info("logger-initialized")

			transport, markup := newTransport(config)
			engine, err := newEngine(config, transport, markup)
			if err != nil {
				log.Fatalf("Failed to create engine: %v", err)
			}

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			fmt.Printf("featurebot %s starting on %s\n", Version, transport.Name())
			fmt.Println("Press Ctrl+C to stop")

			if err := engine.Run(ctx); err != nil {
				logger.WithField("error", err).Error("engine-stopped-with-error")
				stop()
				os.Exit(1)
			}

			logger.Info("featurebot-stopped")
		},
	}
)

func init() {
	startCmd.Flags().StringVarP(&configFile, "config", "c", "", "Configuration file path")
}

// defaultConfigLocations lists where a configuration file is looked up
func defaultConfigLocations() []string {
	return []string{
		"config.yaml",
		filepath.Join(os.Getenv("HOME"), ".config/featurebot/config.yaml"),
		"/etc/featurebot/config.yaml",
	}
}

// resolveConfigFile returns the explicit path, else the first default location
// that exists, else "" to read the environment only
func resolveConfigFile(explicit string) string {
	if explicit != "" {
		return explicit
	}
	for _, loc := range defaultConfigLocations() {
		if _, err := os.Stat(loc); err == nil {
			return loc
		}
	}
	return ""
}

// newTransport builds the transport selected by the configuration and the
// markup dialect its replies are rendered in
func newTransport(config *core.Config) (core.Transport, format.Markup) {
	if config.Transport == core.TransportDiscord {
		return bot.NewDiscordBot(config.Discord.Token, config.CommandPrefix), format.DiscordMarkdown{}
	}

	telegram := bot.NewTelegramBot(config.Telegram.Token, config.CommandPrefix, config.PollTimeout())
	telegram.SetDebug(config.Telegram.Debug)
	return telegram, format.TelegramMarkdown{}
}

// newEngine wires the command registry, dispatcher and engine around a transport
func newEngine(config *core.Config, transport core.Transport, markup format.Markup) (*core.Engine, error) {
	registry := core.NewRegistry()
	if err := core.RegisterDefaults(registry); err != nil {
		return nil, fmt.Errorf("failed to register commands: %w", err)
	}

	deps := core.Deps{
		Log:    logger.Component("dispatcher"),
		Format: format.New(markup, config.CommandPrefix, Version),
		Calc:   config.Evaluator(),
	}
	if files, ok := transport.(core.FileInspector); ok {
		deps.Files = files
	}

	dispatcher := core.NewDispatcher(registry, deps, config.DispatchTimeout())

	opts := config.EngineOptions()
	opts.Log = logger.Component("engine")
	return core.NewEngine(transport, dispatcher, opts), nil
}
