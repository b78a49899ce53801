package cmd

import (
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"

	"github.com/givddul/issuerelay/internal/api"
	"github.com/givddul/issuerelay/internal/config"
	"github.com/givddul/issuerelay/internal/gitlab"
	"github.com/givddul/issuerelay/internal/hub"
)

// ServeCommand returns the CLI command for starting the relay server
func ServeCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Start the issue relay server",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "Port for the server (overrides config)",
			},
		},
		Action: func(c *cli.Context) error {
			cfg, err := config.LoadConfig(c.String("config"))
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			if port := c.Int("port"); port != 0 {
				cfg.Port = port
			}
			if err := config.Validate(cfg); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}

			client, err := gitlab.NewClient(gitlab.Config{
				URL:     cfg.GitLab.URL,
				Token:   cfg.GitLab.Token,
				Project: cfg.GitLab.Project,
			})
			if err != nil {
				return err
			}

			log.Info().Int("port", cfg.Port).Str("project", cfg.GitLab.Project).Msg("starting issue relay")

			server := api.NewServer(cfg, client, hub.New())
			return server.Start()
		},
	}
}
