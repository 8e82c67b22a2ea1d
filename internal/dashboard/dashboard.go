// Package dashboard renders the landing page and the deployment dashboard.
// Pages are server-side html/template documents; every piece of state on
// them is fetched from GitHub through deploy.Service.
package dashboard

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/kehao95/gh-deploybot/internal/deploy"
	"github.com/kehao95/gh-deploybot/internal/github"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

//go:embed templates/*.html templates/setup.md
var templateFS embed.FS

const (
	msgMissingRepo = "Please enter owner and repo"
	msgTriggered   = "Deployment triggered successfully!"
)

// Handler serves GET /, GET /dashboard and POST /dashboard/trigger.
type Handler struct {
	service *deploy.Service
	pages   map[string]*template.Template
	setup   template.HTML
	logger  *slog.Logger
}

// New parses the embedded templates and renders the setup instructions.
func New(service *deploy.Service, logger *slog.Logger) (*Handler, error) {
	if logger == nil {
		logger = slog.Default()
	}

	funcs := template.FuncMap{
		"badge": StatusBadge,
		"ago":   humanize.Time,
		"stamp": func(t time.Time) string { return t.UTC().Format(time.RFC1123) },
	}
	pages := make(map[string]*template.Template, 2)
	for _, name := range []string{"landing.html", "dashboard.html"} {
		tmpl, err := template.New("layout.html").Funcs(funcs).ParseFS(templateFS, "templates/layout.html", "templates/"+name)
		if err != nil {
			return nil, fmt.Errorf("parsing %s: %w", name, err)
		}
		pages[name] = tmpl
	}

	source, err := templateFS.ReadFile("templates/setup.md")
	if err != nil {
		return nil, err
	}
	var setup bytes.Buffer
	md := goldmark.New(goldmark.WithExtensions(extension.GFM))
	if err := md.Convert(source, &setup); err != nil {
		return nil, fmt.Errorf("rendering setup instructions: %w", err)
	}

	return &Handler{
		service: service,
		pages:   pages,
		// Rendered from an embedded file, never from user input.
		setup:  template.HTML(setup.String()),
		logger: logger,
	}, nil
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch {
	case r.URL.Path == "/" && r.Method == http.MethodGet:
		h.render(w, http.StatusOK, "landing.html", nil)
	case r.URL.Path == "/dashboard" && r.Method == http.MethodGet:
		h.showDashboard(w, r)
	case r.URL.Path == "/dashboard/trigger" && r.Method == http.MethodPost:
		h.trigger(w, r)
	default:
		http.NotFound(w, r)
	}
}

type dashboardView struct {
	Owner       string
	Repo        string
	Ref         string
	Flash       string
	FlashError  bool
	Runs        []deploy.Run
	StatusError string
	WebhookURL  string
	Setup       template.HTML
}

func (h *Handler) newView(r *http.Request, owner, repo, ref string) dashboardView {
	if ref == "" {
		ref = deploy.DefaultRef
	}
	return dashboardView{
		Owner:      owner,
		Repo:       repo,
		Ref:        ref,
		WebhookURL: WebhookURL(r),
		Setup:      h.setup,
	}
}

func (h *Handler) showDashboard(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	view := h.newView(r, strings.TrimSpace(query.Get("owner")), strings.TrimSpace(query.Get("repo")), strings.TrimSpace(query.Get("ref")))
	view.Flash = query.Get("flash")

	if view.Owner != "" && view.Repo != "" {
		runs, err := h.service.Status(r.Context(), view.Owner, view.Repo)
		if err != nil {
			view.StatusError = "Failed to fetch status: " + describe(err)
		}
		view.Runs = runs
	}
	h.render(w, http.StatusOK, "dashboard.html", view)
}

func (h *Handler) trigger(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}
	req := deploy.TriggerRequest{
		Owner: r.PostForm.Get("owner"),
		Repo:  r.PostForm.Get("repo"),
		Ref:   r.PostForm.Get("ref"),
	}

	used, err := h.service.Trigger(r.Context(), deploy.SourceDashboard, req)
	if err != nil {
		view := h.newView(r, used.Owner, used.Repo, strings.TrimSpace(req.Ref))
		view.FlashError = true
		status := github.StatusCode(err)
		if status < 400 {
			status = http.StatusInternalServerError
		}
		if errors.Is(err, deploy.ErrMissingRepo) {
			view.Flash = msgMissingRepo
			status = http.StatusBadRequest
		} else {
			view.Flash = "Error: Failed to trigger deployment: " + describe(err)
		}
		h.render(w, status, "dashboard.html", view)
		return
	}

	query := url.Values{}
	query.Set("owner", used.Owner)
	query.Set("repo", used.Repo)
	query.Set("ref", used.Ref)
	query.Set("flash", msgTriggered)
	http.Redirect(w, r, "/dashboard?"+query.Encode(), http.StatusSeeOther)
}

func (h *Handler) render(w http.ResponseWriter, status int, page string, data any) {
	var buf bytes.Buffer
	if err := h.pages[page].ExecuteTemplate(&buf, "layout.html", data); err != nil {
		h.logger.Error("render failed", "page", page, "err", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

// describe prefers the upstream explanation of a GitHub error.
func describe(err error) string {
	var apiErr *github.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Detail()
	}
	return err.Error()
}

// WebhookURL is the address GitHub should deliver to, as seen by the
// browser that requested the page. Proxies report the original scheme and
// host in X-Forwarded-Proto and X-Forwarded-Host.
func WebhookURL(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		scheme, _, _ = strings.Cut(proto, ",")
		scheme = strings.TrimSpace(scheme)
	}
	host := r.Host
	if forwarded := r.Header.Get("X-Forwarded-Host"); forwarded != "" {
		host, _, _ = strings.Cut(forwarded, ",")
		host = strings.TrimSpace(host)
	}
	return scheme + "://" + host + "/api/webhook"
}
