// Package apiclient calls a running bot's REST API on behalf of the CLI.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/kehao95/gh-deploybot/internal/deploy"
)

// Error is a non-2xx answer from the bot.
type Error struct {
	StatusCode int    `json:"-"`
	Message    string `json:"error"`
	Details    string `json:"details"`
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = http.StatusText(e.StatusCode)
	}
	if e.Details != "" {
		return fmt.Sprintf("HTTP %d: %s: %s", e.StatusCode, msg, e.Details)
	}
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, msg)
}

// TriggerResult echoes the values the bot dispatched with.
type TriggerResult struct {
	Message string `json:"message"`
	deploy.TriggerRequest
}

type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New returns a Client for the bot at baseURL, e.g. http://localhost:8080.
func New(baseURL string) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing server URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("server URL %q must be http or https", baseURL)
	}
	return &Client{
		baseURL:    strings.TrimSuffix(u.String(), "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}, nil
}

// Trigger asks the bot to dispatch the deployment workflow.
func (c *Client) Trigger(ctx context.Context, req deploy.TriggerRequest) (TriggerResult, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return TriggerResult{}, err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/trigger", bytes.NewReader(body))
	if err != nil {
		return TriggerResult{}, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	var result TriggerResult
	if err := c.do(httpReq, &result); err != nil {
		return TriggerResult{}, err
	}
	return result, nil
}

// Status returns the latest deployment runs of owner/repo.
func (c *Client) Status(ctx context.Context, owner, repo string) ([]deploy.Run, error) {
	query := url.Values{}
	query.Set("owner", owner)
	query.Set("repo", repo)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/status?"+query.Encode(), nil)
	if err != nil {
		return nil, err
	}

	var result struct {
		LatestRuns []deploy.Run `json:"latest_runs"`
	}
	if err := c.do(httpReq, &result); err != nil {
		return nil, err
	}
	return result.LatestRuns, nil
}

func (c *Client) do(req *http.Request, out any) error {
	req.Header.Set("Accept", "application/json")
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &Error{StatusCode: resp.StatusCode}
		if err := json.Unmarshal(body, apiErr); err != nil {
			apiErr.Message = strings.TrimSpace(string(body))
		}
		return apiErr
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

// StatusCode returns the bot's HTTP status carried by err, or 0.
func StatusCode(err error) int {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	return 0
}
