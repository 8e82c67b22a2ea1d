package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"github.com/kehao95/gh-deploybot/internal/apiclient"
	"github.com/kehao95/gh-deploybot/internal/dashboard"
	"github.com/kehao95/gh-deploybot/internal/deploy"
	"github.com/spf13/cobra"
)

const defaultServer = "http://localhost:8080"

func newTriggerCmd() *cobra.Command {
	var (
		serverURL string
		req       deploy.TriggerRequest
	)

	cmd := &cobra.Command{
		Use:   "trigger",
		Short: "Dispatch the deployment workflow through a running bot",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := apiclient.New(serverURL)
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()

			result, err := client.Trigger(ctx, req)
			if err != nil {
				return requestError(err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %s/%s %s@%s\n", result.Message, result.Owner, result.Repo, result.Workflow, result.Ref)
			return nil
		},
	}

	cmd.Flags().StringVar(&serverURL, "server", defaultServer, "Bot base URL")
	cmd.Flags().StringVar(&req.Owner, "owner", "", "Repository owner")
	cmd.Flags().StringVar(&req.Repo, "repo", "", "Repository name")
	cmd.Flags().StringVar(&req.Ref, "ref", "", "Branch or tag to deploy (default main)")
	cmd.Flags().StringVar(&req.Workflow, "workflow", "", "Workflow file or ID (default from rules)")
	_ = cmd.MarkFlagRequired("owner")
	_ = cmd.MarkFlagRequired("repo")
	return cmd
}

func newStatusCmd() *cobra.Command {
	var serverURL, owner, repo string

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the latest deployment runs of a repository",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := apiclient.New(serverURL)
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()

			runs, err := client.Status(ctx, owner, repo)
			if err != nil {
				return requestError(err)
			}
			renderRuns(cmd.OutOrStdout(), owner+"/"+repo, runs, time.Now())
			return nil
		},
	}

	cmd.Flags().StringVar(&serverURL, "server", defaultServer, "Bot base URL")
	cmd.Flags().StringVar(&owner, "owner", "", "Repository owner")
	cmd.Flags().StringVar(&repo, "repo", "", "Repository name")
	_ = cmd.MarkFlagRequired("owner")
	_ = cmd.MarkFlagRequired("repo")
	return cmd
}

// exitRejected is the exit code when the bot refuses a request (4xx), as
// opposed to 1 for bot, GitHub or network failures.
const exitRejected = 2

func requestError(err error) error {
	if code := apiclient.StatusCode(err); code >= 400 && code < 500 {
		return exitError{code: exitRejected, err: err}
	}
	return err
}

var badgeColors = map[string]lipgloss.Color{
	"running":   lipgloss.Color("3"),
	"success":   lipgloss.Color("2"),
	"failure":   lipgloss.Color("1"),
	"cancelled": lipgloss.Color("8"),
	"neutral":   lipgloss.Color("7"),
}

var (
	headerStyle = lipgloss.NewStyle().Bold(true)
	mutedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

func renderRuns(w io.Writer, repo string, runs []deploy.Run, now time.Time) {
	if len(runs) == 0 {
		fmt.Fprintf(w, "No deployment runs found for %s\n", repo)
		return
	}

	fmt.Fprintln(w, headerStyle.Render("Recent deployments for "+repo))
	for _, run := range runs {
		badge := dashboard.StatusBadge(run.Status, run.Conclusion)
		label := lipgloss.NewStyle().
			Foreground(badgeColors[badge.Class]).
			Bold(true).
			Width(11).
			Render(badge.Label)

		line := strings.Join([]string{
			label,
			fmt.Sprintf("%s (%s)", run.HeadBranch, run.HeadSHA),
			mutedStyle.Render(humanize.RelTime(run.CreatedAt, now, "ago", "from now")),
			mutedStyle.Render(run.HTMLURL),
		}, "  ")
		fmt.Fprintln(w, line)
	}
}
