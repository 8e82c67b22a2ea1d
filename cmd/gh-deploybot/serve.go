package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/kehao95/gh-deploybot/internal/config"
	"github.com/kehao95/gh-deploybot/internal/dashboard"
	"github.com/kehao95/gh-deploybot/internal/deploy"
	"github.com/kehao95/gh-deploybot/internal/github"
	"github.com/kehao95/gh-deploybot/internal/server"
	"github.com/kehao95/gh-deploybot/internal/webhook"
	"github.com/spf13/cobra"
)

func newServeCmd(logLevel *string) *cobra.Command {
	var (
		port      int
		envFile   string
		rulesFile string
		smeeURL   string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the webhook server, REST API and dashboard",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(envFile, rulesFile)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("port") {
				cfg.Port = port
			}
			if cmd.Flags().Changed("smee-url") {
				cfg.SmeeURL = smeeURL
			}
			if cmd.Flags().Changed("log-level") {
				cfg.LogLevel = *logLevel
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}

			logger, err := newLogger(cfg.LogLevel, true)
			if err != nil {
				return err
			}
			if cfg.Token == "" {
				logger.Warn("BOT_TOKEN is not set; GitHub will reject dispatches")
			}

			gh, err := github.NewClient(github.Config{BaseURL: cfg.APIURL, Token: cfg.Token, Logger: logger})
			if err != nil {
				return err
			}
			service := deploy.NewService(gh, gh, cfg.Rules, logger)
			dash, err := dashboard.New(service, logger)
			if err != nil {
				return err
			}

			return runWithSignals(func(ctx context.Context) error {
				err := server.Run(ctx, server.Config{Port: cfg.Port, SmeeURL: cfg.SmeeURL}, server.Deps{
					Service:   service,
					Mapper:    webhook.NewMapper(cfg.Rules),
					Verifier:  webhook.NewVerifier(cfg.WebhookSecret, logger),
					Dashboard: dash,
					Logger:    logger,
				})
				if errors.Is(err, context.Canceled) {
					return nil
				}
				return err
			})
		},
	}

	cmd.Flags().IntVar(&port, "port", config.DefaultPort, "Port to listen on (overrides PORT)")
	cmd.Flags().StringVar(&envFile, "env-file", "", "Env file to load (default .env when present)")
	cmd.Flags().StringVar(&rulesFile, "rules", "", "YAML file with dispatch rules")
	cmd.Flags().StringVar(&smeeURL, "smee-url", "", "Relay deliveries from this smee.io channel (overrides SMEE_URL)")
	return cmd
}
