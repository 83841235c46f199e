package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/pflag"

	corecmd "github.com/m3rciful/kinobot/core/cmd"
	coreconfig "github.com/m3rciful/kinobot/core/config"
	"github.com/m3rciful/kinobot/internal/app"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var configPath string

	flagSet := pflag.NewFlagSet("kinobot", pflag.ContinueOnError)
	flagSet.StringVarP(&configPath, "config", "c", "", "path to the YAML config file (default: $CONFIG_PATH, environment only when unset)")
	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if err == pflag.ErrHelp {
			return nil
		}
		return err
	}
	if args := flagSet.Args(); len(args) > 0 {
		return fmt.Errorf("unexpected argument: %s", args[0])
	}

	return corecmd.Run(corecmd.Options{
		ConfigPath:   configPath,
		ConfigEnvVar: "CONFIG_PATH",
		LoadConfig: func(path string) (corecmd.ConfigCarrier, error) {
			cfg, err := coreconfig.Load(path)
			if err != nil {
				return nil, err
			}
			return cfg, nil
		},
		Bootstrap: func(cfg corecmd.ConfigCarrier) (corecmd.TelegramApp, error) {
			a, err := app.New(context.Background(), cfg.CoreConfig())
			if err != nil {
				return nil, err
			}
			return a, nil
		},
	})
}
