package deploy

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/kehao95/gh-deploybot/internal/config"
	"github.com/kehao95/gh-deploybot/internal/github"
	"github.com/kehao95/gh-deploybot/internal/message"
	"go.uber.org/mock/gomock"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func strPtr(s string) *string { return &s }

func TestService_Trigger_Defaults(t *testing.T) {
	ctrl := gomock.NewController(t)
	dispatcher := github.NewMockDispatcher(ctrl)
	dispatcher.EXPECT().DispatchWorkflow(gomock.Any(), "octo", "app", "deploy.yml", "main").Return(nil)

	svc := NewService(dispatcher, github.NewMockRunLister(ctrl), config.DefaultRules(), discardLogger())
	got, err := svc.Trigger(context.Background(), SourceAPI, TriggerRequest{Owner: "octo", Repo: "app"})
	if err != nil {
		t.Fatalf("Trigger: %v", err)
	}
	if got.Ref != "main" || got.Workflow != "deploy.yml" {
		t.Errorf("defaults want main/deploy.yml got %s/%s", got.Ref, got.Workflow)
	}
}

func TestService_Trigger_Explicit(t *testing.T) {
	ctrl := gomock.NewController(t)
	dispatcher := github.NewMockDispatcher(ctrl)
	dispatcher.EXPECT().DispatchWorkflow(gomock.Any(), "octo", "app", "ship.yml", "v2").Return(nil)

	svc := NewService(dispatcher, github.NewMockRunLister(ctrl), config.DefaultRules(), discardLogger())
	if _, err := svc.Trigger(context.Background(), SourceAPI, TriggerRequest{Owner: "octo", Repo: "app", Ref: "v2", Workflow: "ship.yml"}); err != nil {
		t.Fatalf("Trigger: %v", err)
	}
}

func TestService_Trigger_MissingRepo(t *testing.T) {
	ctrl := gomock.NewController(t)
	// No EXPECT: any outbound call fails the test.
	svc := NewService(github.NewMockDispatcher(ctrl), github.NewMockRunLister(ctrl), config.DefaultRules(), discardLogger())

	for _, req := range []TriggerRequest{{Owner: "octo"}, {Repo: "app"}, {Owner: " ", Repo: "app"}} {
		if _, err := svc.Trigger(context.Background(), SourceAPI, req); !errors.Is(err, ErrMissingRepo) {
			t.Errorf("Trigger(%+v) err = %v, want ErrMissingRepo", req, err)
		}
	}
}

func TestService_Trigger_UpstreamError(t *testing.T) {
	ctrl := gomock.NewController(t)
	dispatcher := github.NewMockDispatcher(ctrl)
	upstream := &github.APIError{StatusCode: 404, Message: "Not Found"}
	dispatcher.EXPECT().DispatchWorkflow(gomock.Any(), "octo", "app", "deploy.yml", "main").Return(upstream).Times(1)

	svc := NewService(dispatcher, github.NewMockRunLister(ctrl), config.DefaultRules(), discardLogger())
	_, err := svc.Trigger(context.Background(), SourceAPI, TriggerRequest{Owner: "octo", Repo: "app"})
	if github.StatusCode(err) != 404 {
		t.Errorf("want upstream 404 got %v", err)
	}
}

func TestService_Dispatch_Notifies(t *testing.T) {
	ctrl := gomock.NewController(t)
	dispatcher := github.NewMockDispatcher(ctrl)
	gomock.InOrder(
		dispatcher.EXPECT().DispatchWorkflow(gomock.Any(), "octo", "app", "deploy.yml", "main").Return(nil),
		dispatcher.EXPECT().DispatchWorkflow(gomock.Any(), "octo", "app", "deploy.yml", "gone").
			Return(&github.APIError{StatusCode: 422, Message: "No ref found for: gone"}),
	)

	svc := NewService(dispatcher, github.NewMockRunLister(ctrl), config.DefaultRules(), discardLogger())
	var got []message.DispatchMessage
	svc.OnDispatch(func(msg message.DispatchMessage) { got = append(got, msg) })

	if err := svc.Dispatch(context.Background(), SourceWebhook, "octo", "app", "deploy.yml", "main"); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if err := svc.Dispatch(context.Background(), SourceWebhook, "octo", "app", "deploy.yml", "gone"); err == nil {
		t.Fatal("expected error")
	}

	if len(got) != 2 {
		t.Fatalf("want 2 notifications got %d", len(got))
	}
	if !got[0].OK || got[0].Source != SourceWebhook || got[0].Ref != "main" || got[0].Type != message.TypeDispatch {
		t.Errorf("first notification got %+v", got[0])
	}
	if got[1].OK || got[1].Error == "" {
		t.Errorf("second notification should carry the failure, got %+v", got[1])
	}
}

func TestService_Status_FiltersAndLimits(t *testing.T) {
	ctrl := gomock.NewController(t)
	lister := github.NewMockRunLister(ctrl)

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	var runs []github.WorkflowRun
	for i := 0; i < 8; i++ {
		name := "Deploy to Production"
		if i%4 == 1 {
			name = "CI"
		}
		runs = append(runs, github.WorkflowRun{
			ID:         int64(100 - i),
			Name:       name,
			Status:     "completed",
			Conclusion: strPtr("success"),
			CreatedAt:  now,
			UpdatedAt:  now,
			HeadBranch: "main",
			HeadSHA:    "0123456789abcdef",
			HTMLURL:    "https://github.com/octo/app/actions/runs/1",
		})
	}
	lister.EXPECT().ListWorkflowRuns(gomock.Any(), "octo", "app", 10).Return(runs, nil)

	svc := NewService(github.NewMockDispatcher(ctrl), lister, config.DefaultRules(), discardLogger())
	latest, err := svc.Status(context.Background(), "octo", "app")
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if len(latest) != 5 {
		t.Fatalf("want 5 runs got %d", len(latest))
	}
	wantIDs := []int64{100, 98, 97, 96, 94}
	for i, run := range latest {
		if run.ID != wantIDs[i] {
			t.Errorf("latest[%d].ID want %d got %d", i, wantIDs[i], run.ID)
		}
		if run.HeadSHA != "0123456" {
			t.Errorf("latest[%d].HeadSHA want 0123456 got %s", i, run.HeadSHA)
		}
	}
}

func TestService_Status_EmptyNameKeepsAll(t *testing.T) {
	ctrl := gomock.NewController(t)
	lister := github.NewMockRunLister(ctrl)
	lister.EXPECT().ListWorkflowRuns(gomock.Any(), "octo", "app", 10).Return([]github.WorkflowRun{
		{ID: 1, Name: "CI", HeadSHA: "abc"},
		{ID: 2, Name: "Lint", HeadSHA: "def"},
	}, nil)

	rules := config.DefaultRules()
	rules.StatusWorkflowName = ""
	svc := NewService(github.NewMockDispatcher(ctrl), lister, rules, discardLogger())
	latest, err := svc.Status(context.Background(), "octo", "app")
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if len(latest) != 2 || latest[0].HeadSHA != "abc" {
		t.Errorf("got %+v", latest)
	}
}

func TestService_Status_MissingRepo(t *testing.T) {
	ctrl := gomock.NewController(t)
	svc := NewService(github.NewMockDispatcher(ctrl), github.NewMockRunLister(ctrl), config.DefaultRules(), discardLogger())

	if _, err := svc.Status(context.Background(), "", "app"); !errors.Is(err, ErrMissingRepo) {
		t.Errorf("err = %v, want ErrMissingRepo", err)
	}
}

func TestService_Status_NotFoundNotRetried(t *testing.T) {
	ctrl := gomock.NewController(t)
	lister := github.NewMockRunLister(ctrl)
	lister.EXPECT().ListWorkflowRuns(gomock.Any(), "octo", "gone", 10).
		Return(nil, &github.APIError{StatusCode: 404, Message: "Not Found"}).Times(1)

	svc := NewService(github.NewMockDispatcher(ctrl), lister, config.DefaultRules(), discardLogger())
	_, err := svc.Status(context.Background(), "octo", "gone")
	if !github.IsNotFound(err) {
		t.Errorf("want not found got %v", err)
	}
}

func TestShortSHA(t *testing.T) {
	tests := map[string]string{
		"0123456789abcdef": "0123456",
		"0123456":          "0123456",
		"abc":              "abc",
		"":                 "",
	}
	for in, want := range tests {
		if got := ShortSHA(in); got != want {
			t.Errorf("ShortSHA(%q) = %q, want %q", in, got, want)
		}
	}
}
