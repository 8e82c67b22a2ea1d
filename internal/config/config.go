package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Default values when env vars are unset.
const (
	DefaultPort       = 8080
	DefaultAPIURL     = "https://api.github.com/"
	DefaultEnvFile    = ".env"
	DefaultLogLevel   = "info"
	DefaultWorkflow   = "deploy.yml"
	DefaultRunName    = "Deploy to Production"
	DefaultStatusSize = 5
)

// Config holds the bot configuration.
type Config struct {
	Port          int
	Token         string
	WebhookSecret string
	APIURL        string
	LogLevel      string
	SmeeURL       string
	Rules         Rules
}

// Rules decides which webhook events become workflow dispatches.
type Rules struct {
	Workflow           string     `yaml:"workflow"`
	StatusWorkflowName string     `yaml:"status_workflow_name"`
	StatusLimit        int        `yaml:"status_limit"`
	Push               PushRule   `yaml:"push"`
	PullRequest        ActionRule `yaml:"pull_request"`
	Release            ActionRule `yaml:"release"`
	WorkflowRun        ActionRule `yaml:"workflow_run"`
}

// PushRule matches pushes to the listed branches.
type PushRule struct {
	Branches []string `yaml:"branches"`
	Workflow string   `yaml:"workflow,omitempty"`
}

// ActionRule matches events whose action is listed.
type ActionRule struct {
	Actions  []string `yaml:"actions"`
	Workflow string   `yaml:"workflow,omitempty"`
}

// DefaultRules mirrors the stock deployment bot: deploy main on push,
// preview PR heads, ship published releases.
func DefaultRules() Rules {
	return Rules{
		Workflow:           DefaultWorkflow,
		StatusWorkflowName: DefaultRunName,
		StatusLimit:        DefaultStatusSize,
		Push:               PushRule{Branches: []string{"main"}},
		PullRequest:        ActionRule{Actions: []string{"opened", "synchronize", "reopened"}},
		Release:            ActionRule{Actions: []string{"published"}},
		WorkflowRun:        ActionRule{Actions: []string{"completed"}},
	}
}

// Load reads configuration from an optional .env file, the process
// environment and an optional YAML rules file, in that order.
// An empty envFile means the default ".env", which may be absent.
func Load(envFile, rulesFile string) (*Config, error) {
	if err := loadEnvFile(envFile); err != nil {
		return nil, err
	}

	c := &Config{
		Port:          DefaultPort,
		Token:         os.Getenv("BOT_TOKEN"),
		WebhookSecret: os.Getenv("GITHUB_WEBHOOK_SECRET"),
		APIURL:        DefaultAPIURL,
		LogLevel:      DefaultLogLevel,
		SmeeURL:       os.Getenv("SMEE_URL"),
		Rules:         DefaultRules(),
	}
	if c.Token == "" {
		c.Token = os.Getenv("GITHUB_TOKEN")
	}
	if v := os.Getenv("PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Port = n
		}
	}
	if v := os.Getenv("GITHUB_API_URL"); v != "" {
		c.APIURL = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	if v := os.Getenv("DEPLOY_WORKFLOW"); v != "" {
		c.Rules.Workflow = v
	}
	if v, ok := os.LookupEnv("DEPLOY_RUN_NAME"); ok {
		c.Rules.StatusWorkflowName = v
	}

	if rulesFile != "" {
		rules, err := decodeRules(rulesFile, c.Rules)
		if err != nil {
			return nil, err
		}
		c.Rules = rules
	}
	return c, nil
}

func loadEnvFile(path string) error {
	explicit := path != ""
	if !explicit {
		path = DefaultEnvFile
	}
	if err := godotenv.Load(path); err != nil {
		if !explicit && errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to load env file %s: %w", path, err)
	}
	return nil
}

func decodeRules(path string, base Rules) (Rules, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Rules{}, fmt.Errorf("failed to read rules: %w", err)
	}
	if err := yaml.Unmarshal(data, &base); err != nil {
		return Rules{}, fmt.Errorf("failed to parse rules: %w", err)
	}
	return base, nil
}

// Validate checks the configuration for values the server cannot run with.
func (c *Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("port %d out of range", c.Port)
	}
	if _, err := ParseLogLevel(c.LogLevel); err != nil {
		return err
	}
	return c.Rules.Validate()
}

// Validate checks the dispatch rules.
func (r *Rules) Validate() error {
	if strings.TrimSpace(r.Workflow) == "" {
		return fmt.Errorf("workflow is required")
	}
	if r.StatusLimit <= 0 {
		return fmt.Errorf("status_limit must be positive (got %d)", r.StatusLimit)
	}
	if len(r.Push.Branches) == 0 {
		return fmt.Errorf("push: at least one branch is required")
	}
	for name, rule := range map[string]ActionRule{
		"pull_request": r.PullRequest,
		"release":      r.Release,
		"workflow_run": r.WorkflowRun,
	} {
		if len(rule.Actions) == 0 {
			return fmt.Errorf("%s: at least one action is required", name)
		}
	}
	return nil
}

// WorkflowFor returns the override when set, otherwise the default workflow.
func (r *Rules) WorkflowFor(override string) string {
	if override != "" {
		return override
	}
	return r.Workflow
}

// ParseLogLevel maps a level name onto slog.
func ParseLogLevel(level string) (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		return slog.LevelInfo, fmt.Errorf("invalid log level %q", level)
	}
	return l, nil
}
