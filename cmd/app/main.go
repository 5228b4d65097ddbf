package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/starford/sowilo/internal"
	pkgconfig "github.com/starford/sowilo/pkg/config"
)

func loadConfig(cmd *cli.Command) (*internal.Config, string, error) {
	configPath := cmd.Root().String("config")

	cfg := internal.NewDefaultConfig()
	if err := pkgconfig.Load(configPath, cfg); err != nil {
		return nil, "", fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, configPath, nil
}

func run(ctx context.Context, cmd *cli.Command) error {
	cfg, configPath, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	opts := []internal.Option{
		internal.WithConfig(cfg),
		internal.WithConfigPath(configPath),
	}

	if err := internal.Run(ctx, opts...); err != nil {
		return fmt.Errorf("app run error: %w", err)
	}

	return nil
}

func main() {
	cmd := &cli.Command{
		Name:   "sowilo",
		Usage:  "Sync, search and export a file inventory published as a spreadsheet",
		Action: run,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "Path to config file (.yaml or .toml)",
				DefaultText: "config/config.yaml",
				Value:       "config/config.yaml",
				Sources:     cli.EnvVars("APP_CONFIG_FILE"),
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Run the HTTP API with scheduled refresh (default)",
				Action: run,
			},
			fetchCommand(),
			searchCommand(),
			exportCommand(),
			mcpCommand(),
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
