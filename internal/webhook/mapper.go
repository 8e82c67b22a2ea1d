package webhook

import (
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"

	gh "github.com/google/go-github/v66/github"
	"github.com/kehao95/gh-deploybot/internal/config"
)

// Event types carried in the X-GitHub-Event header.
const (
	EventPush        = "push"
	EventPullRequest = "pull_request"
	EventRelease     = "release"
	EventWorkflowRun = "workflow_run"
)

const noActionMessage = "Event received but no action taken"

// ErrMissingRepository is returned when a delivery that would dispatch does
// not name the repository owner and name.
var ErrMissingRepository = errors.New("repository owner and name are required")

// Dispatch is a workflow_dispatch call the bot should make.
type Dispatch struct {
	Owner    string `json:"owner"`
	Repo     string `json:"repo"`
	Workflow string `json:"workflow"`
	Ref      string `json:"ref"`
}

// Plan is the outcome of mapping one webhook delivery.
type Plan struct {
	Event string

	// Dispatch is nil when the delivery triggers nothing.
	Dispatch *Dispatch

	// Response is the JSON body returned to GitHub when the dispatch
	// succeeds, or right away when there is nothing to dispatch.
	Response map[string]any

	// Summary is a one-line description for the logs.
	Summary string
}

// Mapper turns webhook deliveries into dispatch plans according to Rules.
// It performs no I/O.
type Mapper struct {
	rules config.Rules
}

// NewMapper returns a Mapper for rules.
func NewMapper(rules config.Rules) *Mapper {
	return &Mapper{rules: rules}
}

// Map decodes body as the payload of event and decides what to do with it.
// Unknown event types map to a no-op plan. Malformed JSON is an error, and so
// is a dispatching delivery without a repository (ErrMissingRepository).
func (m *Mapper) Map(event string, body []byte) (Plan, error) {
	switch event {
	case EventPush:
		var payload gh.PushEvent
		if err := json.Unmarshal(body, &payload); err != nil {
			return Plan{}, fmt.Errorf("parsing push payload: %w", err)
		}
		return m.mapPush(&payload)
	case EventPullRequest:
		var payload gh.PullRequestEvent
		if err := json.Unmarshal(body, &payload); err != nil {
			return Plan{}, fmt.Errorf("parsing pull_request payload: %w", err)
		}
		return m.mapPullRequest(&payload)
	case EventRelease:
		var payload gh.ReleaseEvent
		if err := json.Unmarshal(body, &payload); err != nil {
			return Plan{}, fmt.Errorf("parsing release payload: %w", err)
		}
		return m.mapRelease(&payload)
	case EventWorkflowRun:
		var payload gh.WorkflowRunEvent
		if err := json.Unmarshal(body, &payload); err != nil {
			return Plan{}, fmt.Errorf("parsing workflow_run payload: %w", err)
		}
		return m.mapWorkflowRun(&payload), nil
	default:
		if !json.Valid(body) {
			return Plan{}, fmt.Errorf("parsing %s payload: invalid JSON", event)
		}
		return noAction(event, fmt.Sprintf("unhandled event %q", event)), nil
	}
}

func (m *Mapper) mapPush(payload *gh.PushEvent) (Plan, error) {
	ref := payload.GetRef()
	branch, ok := strings.CutPrefix(ref, "refs/heads/")
	if !ok || !slices.Contains(m.rules.Push.Branches, branch) {
		return noAction(EventPush, fmt.Sprintf("push to %s ignored", ref)), nil
	}

	repo := payload.GetRepo()
	owner, name := repo.GetOwner().GetLogin(), repo.GetName()
	if owner == "" || name == "" {
		return Plan{}, fmt.Errorf("push: %w", ErrMissingRepository)
	}
	commit := payload.GetHeadCommit()
	return Plan{
		Event: EventPush,
		Dispatch: &Dispatch{
			Owner:    owner,
			Repo:     name,
			Workflow: m.rules.WorkflowFor(m.rules.Push.Workflow),
			Ref:      branch,
		},
		Response: map[string]any{
			"message": "Deployment triggered",
			"commit":  commit.GetID(),
			"author":  commit.GetAuthor().GetName(),
		},
		Summary: fmt.Sprintf("push to %s branch detected, triggering deployment", branch),
	}, nil
}

func (m *Mapper) mapPullRequest(payload *gh.PullRequestEvent) (Plan, error) {
	action := payload.GetAction()
	if !slices.Contains(m.rules.PullRequest.Actions, action) {
		return noAction(EventPullRequest, fmt.Sprintf("pull_request %s ignored", action)), nil
	}

	repo := payload.GetRepo()
	owner, name := repo.GetOwner().GetLogin(), repo.GetName()
	if owner == "" || name == "" {
		return Plan{}, fmt.Errorf("pull_request: %w", ErrMissingRepository)
	}
	pr := payload.GetPullRequest()
	headRef := pr.GetHead().GetRef()
	return Plan{
		Event: EventPullRequest,
		Dispatch: &Dispatch{
			Owner:    owner,
			Repo:     name,
			Workflow: m.rules.WorkflowFor(m.rules.PullRequest.Workflow),
			Ref:      headRef,
		},
		Response: map[string]any{
			"message":   "Preview deployment triggered",
			"pr_number": pr.GetNumber(),
			"branch":    headRef,
		},
		Summary: fmt.Sprintf("PR %s, triggering preview deployment", action),
	}, nil
}

func (m *Mapper) mapRelease(payload *gh.ReleaseEvent) (Plan, error) {
	action := payload.GetAction()
	if !slices.Contains(m.rules.Release.Actions, action) {
		return noAction(EventRelease, fmt.Sprintf("release %s ignored", action)), nil
	}

	repo := payload.GetRepo()
	owner, name := repo.GetOwner().GetLogin(), repo.GetName()
	if owner == "" || name == "" {
		return Plan{}, fmt.Errorf("release: %w", ErrMissingRepository)
	}
	tag := payload.GetRelease().GetTagName()
	return Plan{
		Event: EventRelease,
		Dispatch: &Dispatch{
			Owner:    owner,
			Repo:     name,
			Workflow: m.rules.WorkflowFor(m.rules.Release.Workflow),
			Ref:      tag,
		},
		Response: map[string]any{
			"message": "Production deployment triggered",
			"release": tag,
		},
		Summary: fmt.Sprintf("release %s %s, triggering production deployment", tag, action),
	}, nil
}

func (m *Mapper) mapWorkflowRun(payload *gh.WorkflowRunEvent) Plan {
	action := payload.GetAction()
	if !slices.Contains(m.rules.WorkflowRun.Actions, action) {
		return noAction(EventWorkflowRun, fmt.Sprintf("workflow_run %s ignored", action))
	}

	run := payload.GetWorkflowRun()
	return Plan{
		Event: EventWorkflowRun,
		Response: map[string]any{
			"message":  "Workflow status received",
			"workflow": run.GetName(),
			"status":   run.GetConclusion(),
		},
		Summary: fmt.Sprintf("workflow %s %s with status: %s", run.GetName(), action, run.GetConclusion()),
	}
}

func noAction(event, summary string) Plan {
	return Plan{
		Event:    event,
		Response: map[string]any{"message": noActionMessage},
		Summary:  summary,
	}
}
