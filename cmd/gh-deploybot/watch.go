package main

import (
	"context"
	"errors"
	"time"

	"github.com/kehao95/gh-deploybot/internal/assertion"
	"github.com/kehao95/gh-deploybot/internal/client"
	"github.com/spf13/cobra"
)

func newWatchCmd(logLevel *string) *cobra.Command {
	var (
		serverURL string
		events    []string
		successOn []string
		failureOn []string
		timeout   time.Duration
	)

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Follow the bot's activity feed as JSON lines",
		Long: `Follow the bot's activity feed as JSON lines.

Deliveries arrive as {"type":"event",...} and dispatch outcomes as
{"type":"dispatch",...}. Assertions end the watch: --success-on exits 0,
--failure-on exits 1 and --timeout exits 124. For example

  gh-deploybot watch --event workflow_run \
    --success-on payload.workflow_run.conclusion=success \
    --failure-on payload.workflow_run.conclusion=~failure|cancelled`,
		RunE: func(cmd *cobra.Command, args []string) error {
			successAssertions, err := assertion.ParseAll(successOn, client.ExitSuccess)
			if err != nil {
				return err
			}
			failureAssertions, err := assertion.ParseAll(failureOn, client.ExitFailure)
			if err != nil {
				return err
			}
			logger, err := newLogger(*logLevel, false)
			if err != nil {
				return err
			}

			return runWithSignals(func(ctx context.Context) error {
				err := client.Run(ctx, client.Config{
					ServerURL:         serverURL,
					Events:            events,
					SuccessAssertions: successAssertions,
					FailureAssertions: failureAssertions,
					Timeout:           timeout,
					Out:               cmd.OutOrStdout(),
					Logger:            logger,
				})
				if errors.Is(err, context.Canceled) {
					return nil
				}
				return err
			})
		},
	}

	cmd.Flags().StringVar(&serverURL, "server", "ws://localhost:8080/ws", "Activity feed WebSocket URL")
	cmd.Flags().StringArrayVar(&events, "event", nil, "Only receive these event types (repeatable; dispatch outcomes are \"dispatch\")")
	cmd.Flags().StringArrayVar(&successOn, "success-on", nil, "Exit 0 when assertion matches")
	cmd.Flags().StringArrayVar(&failureOn, "failure-on", nil, "Exit 1 when assertion matches")
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "Exit 124 after this long (0 waits forever)")
	return cmd
}
