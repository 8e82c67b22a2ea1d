package github

//go:generate go run go.uber.org/mock/mockgen -destination client_mock.gen.go -package github . Dispatcher,RunLister

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	gh "github.com/google/go-github/v66/github"
	"golang.org/x/oauth2"
)

const defaultBaseURL = "https://api.github.com/"

// Dispatcher starts workflow runs (used by the webhook and trigger handlers).
type Dispatcher interface {
	DispatchWorkflow(ctx context.Context, owner, repo, workflow, ref string) error
}

// RunLister lists recent workflow runs (used by the status handler and dashboard).
type RunLister interface {
	ListWorkflowRuns(ctx context.Context, owner, repo string, perPage int) ([]WorkflowRun, error)
}

// Config configures a Client.
type Config struct {
	// BaseURL replaces https://api.github.com/, e.g. for GitHub
	// Enterprise or an httptest.Server in tests.
	BaseURL string

	// Token is sent as a bearer token. Requests are unauthenticated
	// when empty.
	Token string

	// HTTPClient is the base transport. Defaults to a client with a 30s timeout.
	HTTPClient *http.Client

	Logger *slog.Logger
}

// Client implements Dispatcher and RunLister on top of go-github.
// It never retries: every call is exactly one request.
type Client struct {
	gh  *gh.Client
	log *slog.Logger
}

var (
	_ Dispatcher = (*Client)(nil)
	_ RunLister  = (*Client)(nil)
)

// NewClient returns a GitHub API client.
func NewClient(cfg Config) (*Client, error) {
	base := cfg.HTTPClient
	if base == nil {
		base = &http.Client{Timeout: 30 * time.Second}
	}

	httpClient := base
	if cfg.Token != "" {
		ctx := context.WithValue(context.Background(), oauth2.HTTPClient, base)
		httpClient = oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.Token}))
		httpClient.Timeout = base.Timeout
	}

	rawURL := cfg.BaseURL
	if rawURL == "" {
		rawURL = defaultBaseURL
	}
	if !strings.HasSuffix(rawURL, "/") {
		rawURL += "/"
	}
	baseURL, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("github: invalid base URL %q: %w", cfg.BaseURL, err)
	}
	if baseURL.Scheme != "https" && baseURL.Scheme != "http" {
		return nil, fmt.Errorf("github: base URL must be http(s) (got %q)", cfg.BaseURL)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	client := gh.NewClient(httpClient)
	client.BaseURL = baseURL
	return &Client{gh: client, log: logger}, nil
}

// DispatchWorkflow triggers a workflow_dispatch run of workflow on ref.
// workflow is a file name such as "deploy.yml" or a numeric workflow ID.
// GitHub answers 204 No Content; the run itself must be discovered by
// polling ListWorkflowRuns or through workflow_run webhooks.
func (c *Client) DispatchWorkflow(ctx context.Context, owner, repo, workflow, ref string) error {
	event := gh.CreateWorkflowDispatchEventRequest{Ref: ref}

	var err error
	if id, convErr := strconv.ParseInt(workflow, 10, 64); convErr == nil {
		_, err = c.gh.Actions.CreateWorkflowDispatchEventByID(ctx, owner, repo, id, event)
	} else {
		_, err = c.gh.Actions.CreateWorkflowDispatchEventByFileName(ctx, owner, repo, workflow, event)
	}
	if err != nil {
		c.log.Debug("dispatch failed", "owner", owner, "repo", repo, "workflow", workflow, "ref", ref, "err", err)
		return fmt.Errorf("dispatching workflow %s in %s/%s: %w", workflow, owner, repo, wrapError(err))
	}
	c.log.Debug("dispatch accepted", "owner", owner, "repo", repo, "workflow", workflow, "ref", ref)
	return nil
}

// ListWorkflowRuns returns the most recent workflow runs of the repository,
// newest first, as a single page of at most perPage entries.
func (c *Client) ListWorkflowRuns(ctx context.Context, owner, repo string, perPage int) ([]WorkflowRun, error) {
	opts := &gh.ListWorkflowRunsOptions{ListOptions: gh.ListOptions{PerPage: perPage}}
	result, _, err := c.gh.Actions.ListRepositoryWorkflowRuns(ctx, owner, repo, opts)
	if err != nil {
		return nil, fmt.Errorf("listing workflow runs in %s/%s: %w", owner, repo, wrapError(err))
	}

	runs := make([]WorkflowRun, 0, len(result.WorkflowRuns))
	for _, run := range result.WorkflowRuns {
		runs = append(runs, fromGitHubRun(run))
	}
	return runs, nil
}

func fromGitHubRun(run *gh.WorkflowRun) WorkflowRun {
	return WorkflowRun{
		ID:         run.GetID(),
		Name:       run.GetName(),
		Status:     run.GetStatus(),
		Conclusion: run.Conclusion,
		CreatedAt:  run.GetCreatedAt().Time,
		UpdatedAt:  run.GetUpdatedAt().Time,
		HeadBranch: run.GetHeadBranch(),
		HeadSHA:    run.GetHeadSHA(),
		HTMLURL:    run.GetHTMLURL(),
	}
}

// wrapError turns go-github response errors into *APIError so callers can
// pass the upstream status through. Transport errors are returned as is.
func wrapError(err error) error {
	var errResp *gh.ErrorResponse
	if errors.As(err, &errResp) && errResp.Response != nil {
		return &APIError{
			StatusCode:       errResp.Response.StatusCode,
			Message:          errResp.Message,
			DocumentationURL: errResp.DocumentationURL,
			Errors:           validationErrors(errResp.Errors),
		}
	}
	var rateErr *gh.RateLimitError
	if errors.As(err, &rateErr) && rateErr.Response != nil {
		return &APIError{StatusCode: rateErr.Response.StatusCode, Message: rateErr.Message}
	}
	var abuseErr *gh.AbuseRateLimitError
	if errors.As(err, &abuseErr) && abuseErr.Response != nil {
		return &APIError{StatusCode: abuseErr.Response.StatusCode, Message: abuseErr.Message}
	}
	return err
}

func validationErrors(in []gh.Error) []ValidationError {
	if len(in) == 0 {
		return nil
	}
	out := make([]ValidationError, len(in))
	for i, e := range in {
		out[i] = ValidationError{Resource: e.Resource, Field: e.Field, Code: e.Code, Message: e.Message}
	}
	return out
}
