// Package deploy implements the manual trigger and status operations shared
// by the REST API and the dashboard.
package deploy

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/kehao95/gh-deploybot/internal/config"
	"github.com/kehao95/gh-deploybot/internal/github"
	"github.com/kehao95/gh-deploybot/internal/message"
)

// DefaultRef is used when a trigger request names no ref.
const DefaultRef = "main"

// statusPageSize is how many runs are fetched before filtering by name.
const statusPageSize = 10

// Sources of a dispatch, reported on the activity feed.
const (
	SourceWebhook   = "webhook"
	SourceAPI       = "api"
	SourceDashboard = "dashboard"
)

// ErrMissingRepo is returned before any GitHub call when owner or repo is empty.
var ErrMissingRepo = errors.New("owner and repo are required")

// TriggerRequest asks for one workflow_dispatch.
type TriggerRequest struct {
	Owner    string `json:"owner"`
	Repo     string `json:"repo"`
	Ref      string `json:"ref,omitempty"`
	Workflow string `json:"workflow,omitempty"`
}

// Run is the reshaped workflow run returned by Status.
type Run struct {
	ID         int64     `json:"id"`
	Status     string    `json:"status"`
	Conclusion *string   `json:"conclusion"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
	HeadBranch string    `json:"head_branch"`
	HeadSHA    string    `json:"head_sha"`
	HTMLURL    string    `json:"html_url"`
}

// Service wires the GitHub client to the dispatch rules.
type Service struct {
	dispatcher github.Dispatcher
	runs       github.RunLister
	rules      config.Rules
	logger     *slog.Logger
	notify     func(message.DispatchMessage)
}

// NewService returns a Service.
func NewService(dispatcher github.Dispatcher, runs github.RunLister, rules config.Rules, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{dispatcher: dispatcher, runs: runs, rules: rules, logger: logger}
}

// OnDispatch registers fn to be called with the outcome of every dispatch.
func (s *Service) OnDispatch(fn func(message.DispatchMessage)) {
	s.notify = fn
}

// Dispatch starts workflow on ref. It makes exactly one GitHub call.
func (s *Service) Dispatch(ctx context.Context, source, owner, repo, workflow, ref string) error {
	err := s.dispatcher.DispatchWorkflow(ctx, owner, repo, workflow, ref)
	if err != nil {
		s.logger.Error("dispatch failed", "source", source, "owner", owner, "repo", repo, "workflow", workflow, "ref", ref, "err", err)
	} else {
		s.logger.Info("dispatch triggered", "source", source, "owner", owner, "repo", repo, "workflow", workflow, "ref", ref)
	}

	if s.notify != nil {
		msg := message.DispatchMessage{
			Type:     message.TypeDispatch,
			Event:    message.TypeDispatch,
			Source:   source,
			Owner:    owner,
			Repo:     repo,
			Workflow: workflow,
			Ref:      ref,
			OK:       err == nil,
		}
		if err != nil {
			msg.Error = err.Error()
		}
		s.notify(msg)
	}
	return err
}

// Trigger fills in the default ref and workflow, then dispatches.
// The returned request holds the values actually used.
func (s *Service) Trigger(ctx context.Context, source string, req TriggerRequest) (TriggerRequest, error) {
	req.Owner = strings.TrimSpace(req.Owner)
	req.Repo = strings.TrimSpace(req.Repo)
	if req.Owner == "" || req.Repo == "" {
		return req, ErrMissingRepo
	}
	if strings.TrimSpace(req.Ref) == "" {
		req.Ref = DefaultRef
	}
	req.Workflow = s.rules.WorkflowFor(strings.TrimSpace(req.Workflow))

	return req, s.Dispatch(ctx, source, req.Owner, req.Repo, req.Workflow, req.Ref)
}

// Status returns the latest deployment runs of owner/repo: one page of
// recent runs, filtered by the configured workflow name and capped at the
// configured limit.
func (s *Service) Status(ctx context.Context, owner, repo string) ([]Run, error) {
	owner = strings.TrimSpace(owner)
	repo = strings.TrimSpace(repo)
	if owner == "" || repo == "" {
		return nil, ErrMissingRepo
	}

	runs, err := s.runs.ListWorkflowRuns(ctx, owner, repo, statusPageSize)
	if err != nil {
		s.logger.Error("status check failed", "owner", owner, "repo", repo, "err", err)
		return nil, err
	}

	latest := make([]Run, 0, s.rules.StatusLimit)
	for _, run := range runs {
		if s.rules.StatusWorkflowName != "" && run.Name != s.rules.StatusWorkflowName {
			continue
		}
		latest = append(latest, Run{
			ID:         run.ID,
			Status:     run.Status,
			Conclusion: run.Conclusion,
			CreatedAt:  run.CreatedAt,
			UpdatedAt:  run.UpdatedAt,
			HeadBranch: run.HeadBranch,
			HeadSHA:    ShortSHA(run.HeadSHA),
			HTMLURL:    run.HTMLURL,
		})
		if len(latest) == s.rules.StatusLimit {
			break
		}
	}
	return latest, nil
}

// ShortSHA abbreviates a commit hash to seven characters.
func ShortSHA(sha string) string {
	if len(sha) > 7 {
		return sha[:7]
	}
	return sha
}
