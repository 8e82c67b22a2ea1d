package github

import "time"

// WorkflowRun is the part of a GitHub Actions run the bot reports on.
type WorkflowRun struct {
	ID         int64
	Name       string
	Status     string
	Conclusion *string // nil while the run is queued or in progress
	CreatedAt  time.Time
	UpdatedAt  time.Time
	HeadBranch string
	HeadSHA    string
	HTMLURL    string
}
