package main

import (
	"fmt"
	"os"

	"tip-ledger/internal/config"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

var _FlagConfig = &cli.StringFlag{
	Name:    "config",
	Aliases: []string{"c"},
	Usage:   "path to config.yaml (defaults to CONFIG_PATH or ./config.yaml)",
	EnvVars: []string{"CONFIG_PATH"},
}

var _FlagEnvFile = &cli.StringFlag{
	Name:  "env-file",
	Usage: "optional .env file loaded before the config",
	Value: ".env",
}

func main() {
	app := &cli.App{
		Name:  "tipledger",
		Usage: "social tipping ledger",
		Flags: []cli.Flag{
			_FlagConfig,
			_FlagEnvFile,
		},
		Before: func(ctx *cli.Context) error {
			if path := ctx.String("env-file"); path != "" {
				if err := godotenv.Load(path); err != nil && !os.IsNotExist(err) {
					return fmt.Errorf("load %s: %w", path, err)
				}
			}
			return nil
		},
		Commands: []*cli.Command{
			ServeCommand,
			MigrateCommand,
			ExportCommand,
			TOTPSecretCommand,
		},
	}

	if err := app.Run(os.Args); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "[Error] %s\n", err.Error())
		os.Exit(1)
	}
}

// loadConfig reads the config file and applies logging settings.
func loadConfig(ctx *cli.Context) (*config.Config, error) {
	if err := config.LoadConfig(ctx.String("config")); err != nil {
		return nil, err
	}
	cfg := config.AppConfig
	setupLogging(cfg.Logging)
	return cfg, nil
}

func setupLogging(cfg config.LoggingConfig) {
	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		logrus.Warnf("unknown log level %q, using info", cfg.Level)
		level = logrus.InfoLevel
	}
	logrus.SetLevel(level)
	if cfg.Format == "json" {
		logrus.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
}
