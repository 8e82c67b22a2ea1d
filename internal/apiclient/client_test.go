package apiclient

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/kehao95/gh-deploybot/internal/deploy"
)

func TestNew_RejectsBadScheme(t *testing.T) {
	for _, raw := range []string{"ws://localhost:8080", "localhost:8080", "::"} {
		if _, err := New(raw); err == nil {
			t.Errorf("New(%q) should fail", raw)
		}
	}
}

func TestTrigger(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/trigger" {
			t.Errorf("unexpected %s %s", r.Method, r.URL.Path)
		}
		var req deploy.TriggerRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatal(err)
		}
		if req.Owner != "octo" || req.Repo != "app" || req.Ref != "" {
			t.Errorf("request got %+v", req)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"message":"Deployment triggered successfully","owner":"octo","repo":"app","ref":"main","workflow":"deploy.yml"}`))
	}))
	defer srv.Close()

	client, err := New(srv.URL + "/")
	if err != nil {
		t.Fatal(err)
	}
	got, err := client.Trigger(context.Background(), deploy.TriggerRequest{Owner: "octo", Repo: "app"})
	if err != nil {
		t.Fatalf("Trigger: %v", err)
	}
	if got.Ref != "main" || got.Workflow != "deploy.yml" || got.Message != "Deployment triggered successfully" {
		t.Errorf("result got %+v", got)
	}
}

func TestStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("owner") != "octo" || r.URL.Query().Get("repo") != "app" {
			t.Errorf("query got %s", r.URL.RawQuery)
		}
		_, _ = w.Write([]byte(`{"latest_runs":[{"id":7,"status":"completed","conclusion":"success","head_branch":"main","head_sha":"abc1234","created_at":"2026-03-01T12:00:00Z"}]}`))
	}))
	defer srv.Close()

	client, _ := New(srv.URL)
	runs, err := client.Status(context.Background(), "octo", "app")
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if len(runs) != 1 || runs[0].ID != 7 || *runs[0].Conclusion != "success" || runs[0].CreatedAt.Year() != 2026 {
		t.Errorf("runs got %+v", runs)
	}
}

func TestErrors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantMsg string
	}{
		{"json body", http.StatusNotFound, `{"error":"Failed to fetch status","details":"Not Found"}`, "HTTP 404: Failed to fetch status: Not Found"},
		{"no details", http.StatusBadRequest, `{"error":"Owner and repo are required"}`, "HTTP 400: Owner and repo are required"},
		{"plain text", http.StatusBadGateway, "bad gateway\n", "HTTP 502: bad gateway"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			client, _ := New(srv.URL)
			_, err := client.Status(context.Background(), "octo", "app")
			var apiErr *Error
			if !errors.As(err, &apiErr) {
				t.Fatalf("want *Error got %v", err)
			}
			if err.Error() != tt.wantMsg {
				t.Errorf("message got %q want %q", err.Error(), tt.wantMsg)
			}
			if StatusCode(err) != tt.status {
				t.Errorf("StatusCode got %d", StatusCode(err))
			}
		})
	}
}
