package config

import (
	"os"
	"path/filepath"
	"testing"
)

var envKeys = []string{
	"BOT_TOKEN", "GITHUB_TOKEN", "GITHUB_WEBHOOK_SECRET", "GITHUB_API_URL",
	"PORT", "LOG_LEVEL", "SMEE_URL", "DEPLOY_WORKFLOW", "DEPLOY_RUN_NAME",
}

// clearEnv unsets every variable Load reads; t.Setenv restores them afterwards.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range envKeys {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)
	t.Chdir(t.TempDir())

	cfg, err := Load("", "")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Port != DefaultPort {
		t.Errorf("Port want %d got %d", DefaultPort, cfg.Port)
	}
	if cfg.APIURL != DefaultAPIURL {
		t.Errorf("APIURL want %s got %s", DefaultAPIURL, cfg.APIURL)
	}
	if cfg.Rules.Workflow != "deploy.yml" {
		t.Errorf("Workflow want deploy.yml got %s", cfg.Rules.Workflow)
	}
	if cfg.Rules.StatusWorkflowName != "Deploy to Production" {
		t.Errorf("StatusWorkflowName want Deploy to Production got %s", cfg.Rules.StatusWorkflowName)
	}
	if cfg.Rules.StatusLimit != 5 {
		t.Errorf("StatusLimit want 5 got %d", cfg.Rules.StatusLimit)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
}

func TestLoad_FromEnv(t *testing.T) {
	clearEnv(t)
	t.Chdir(t.TempDir())
	t.Setenv("BOT_TOKEN", "secret")
	t.Setenv("GITHUB_WEBHOOK_SECRET", "hook")
	t.Setenv("PORT", "9090")
	t.Setenv("GITHUB_API_URL", "https://ghe.example.com/api/v3/")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("DEPLOY_WORKFLOW", "ship.yml")
	t.Setenv("DEPLOY_RUN_NAME", "")

	cfg, err := Load("", "")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Token != "secret" {
		t.Errorf("Token want secret got %s", cfg.Token)
	}
	if cfg.WebhookSecret != "hook" {
		t.Errorf("WebhookSecret want hook got %s", cfg.WebhookSecret)
	}
	if cfg.Port != 9090 {
		t.Errorf("Port want 9090 got %d", cfg.Port)
	}
	if cfg.APIURL != "https://ghe.example.com/api/v3/" {
		t.Errorf("APIURL want ghe url got %s", cfg.APIURL)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel want debug got %s", cfg.LogLevel)
	}
	if cfg.Rules.Workflow != "ship.yml" {
		t.Errorf("Workflow want ship.yml got %s", cfg.Rules.Workflow)
	}
	if cfg.Rules.StatusWorkflowName != "" {
		t.Errorf("StatusWorkflowName want empty got %s", cfg.Rules.StatusWorkflowName)
	}
}

func TestLoad_GitHubTokenFallback(t *testing.T) {
	clearEnv(t)
	t.Chdir(t.TempDir())
	t.Setenv("GITHUB_TOKEN", "fallback")

	cfg, err := Load("", "")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Token != "fallback" {
		t.Errorf("Token want fallback got %s", cfg.Token)
	}
}

func TestLoad_InvalidPortUsesDefault(t *testing.T) {
	clearEnv(t)
	t.Chdir(t.TempDir())
	t.Setenv("PORT", "invalid")

	cfg, err := Load("", "")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Port != DefaultPort {
		t.Errorf("Port want default %d got %d", DefaultPort, cfg.Port)
	}
}

func TestLoad_EnvFile(t *testing.T) {
	clearEnv(t)
	path := writeFile(t, "bot.env", "BOT_TOKEN=from-file\nGITHUB_WEBHOOK_SECRET=s3cret\n")

	cfg, err := Load(path, "")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Token != "from-file" {
		t.Errorf("Token want from-file got %s", cfg.Token)
	}
	if cfg.WebhookSecret != "s3cret" {
		t.Errorf("WebhookSecret want s3cret got %s", cfg.WebhookSecret)
	}
}

func TestLoad_MissingExplicitEnvFile(t *testing.T) {
	clearEnv(t)
	if _, err := Load(filepath.Join(t.TempDir(), "nope.env"), ""); err == nil {
		t.Fatal("expected error for missing explicit env file")
	}
}

func TestLoad_RulesFile(t *testing.T) {
	clearEnv(t)
	t.Chdir(t.TempDir())
	t.Setenv("DEPLOY_WORKFLOW", "env.yml")
	path := writeFile(t, "rules.yaml", `
status_limit: 3
push:
  branches: [main, release]
pull_request:
  actions: [opened]
  workflow: preview.yml
`)

	cfg, err := Load("", path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	rules := cfg.Rules
	if rules.Workflow != "env.yml" {
		t.Errorf("Workflow want env.yml got %s", rules.Workflow)
	}
	if rules.StatusLimit != 3 {
		t.Errorf("StatusLimit want 3 got %d", rules.StatusLimit)
	}
	if len(rules.Push.Branches) != 2 || rules.Push.Branches[1] != "release" {
		t.Errorf("Push.Branches want [main release] got %v", rules.Push.Branches)
	}
	if len(rules.PullRequest.Actions) != 1 || rules.PullRequest.Actions[0] != "opened" {
		t.Errorf("PullRequest.Actions want [opened] got %v", rules.PullRequest.Actions)
	}
	if got := rules.WorkflowFor(rules.PullRequest.Workflow); got != "preview.yml" {
		t.Errorf("PullRequest workflow want preview.yml got %s", got)
	}
	if len(rules.Release.Actions) != 1 || rules.Release.Actions[0] != "published" {
		t.Errorf("Release.Actions should keep default, got %v", rules.Release.Actions)
	}
}

func TestDecodeRules_ParseError(t *testing.T) {
	path := writeFile(t, "rules.yaml", "push: [unclosed")
	if _, err := decodeRules(path, DefaultRules()); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"port zero", func(c *Config) { c.Port = 0 }},
		{"port too large", func(c *Config) { c.Port = 70000 }},
		{"bad log level", func(c *Config) { c.LogLevel = "loud" }},
		{"empty workflow", func(c *Config) { c.Rules.Workflow = " " }},
		{"zero status limit", func(c *Config) { c.Rules.StatusLimit = 0 }},
		{"no push branches", func(c *Config) { c.Rules.Push.Branches = nil }},
		{"no release actions", func(c *Config) { c.Rules.Release.Actions = nil }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{Port: DefaultPort, LogLevel: DefaultLogLevel, Rules: DefaultRules()}
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}
