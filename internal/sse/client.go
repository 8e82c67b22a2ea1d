// Package sse relays GitHub deliveries from a smee.io channel, so the bot can
// run on a machine GitHub cannot reach.
package sse

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

const maxBackoff = 30 * time.Second

// Delivery is one webhook delivery forwarded by smee.
type Delivery struct {
	Event      string
	DeliveryID string

	// Body is the payload re-encoded by smee. It no longer matches the
	// signature GitHub computed.
	Body []byte
}

type Client struct {
	URL        string
	HTTPClient *http.Client
	Logger     *slog.Logger
}

func NewClient(url string, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{URL: url, HTTPClient: http.DefaultClient, Logger: logger.With("component", "smee")}
}

// Run reads the channel until ctx is cancelled or handle returns an error,
// reconnecting with exponential backoff after each disconnect.
func (c *Client) Run(ctx context.Context, handle func(Delivery) error) error {
	client := c.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	backoff := time.Second

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		c.Logger.Info("connecting", "url", c.URL)
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.URL, nil)
		if err != nil {
			return err
		}
		req.Header.Set("Accept", "text/event-stream")

		resp, err := client.Do(req)
		if err != nil {
			c.Logger.Warn("connect failed", "err", err, "retry_in", backoff)
			backoff = pause(ctx, backoff)
			continue
		}
		if resp.StatusCode != http.StatusOK {
			c.Logger.Warn("unexpected status", "status", resp.Status, "retry_in", backoff)
			_ = resp.Body.Close()
			backoff = pause(ctx, backoff)
			continue
		}

		c.Logger.Info("connected", "url", c.URL)
		backoff = time.Second

		err = c.readStream(ctx, resp.Body, handle)
		_ = resp.Body.Close()

		var streamErr streamError
		switch {
		case errors.Is(err, context.Canceled):
			return err
		case err == nil, errors.As(err, &streamErr):
			c.Logger.Info("disconnected", "err", err)
			backoff = pause(ctx, backoff)
		default:
			return err
		}
	}
}

// streamError marks a read failure on the event stream, which is worth a
// reconnect. Errors from the handler are returned as is.
type streamError struct {
	err error
}

func (e streamError) Error() string {
	return e.err.Error()
}

func (e streamError) Unwrap() error {
	return e.err
}

type smeePayload struct {
	Event      string          `json:"x-github-event"`
	DeliveryID string          `json:"x-github-delivery"`
	Body       json.RawMessage `json:"body"`
}

type event struct {
	name string
	data []string
}

func (c *Client) readStream(ctx context.Context, body io.Reader, handle func(Delivery) error) error {
	reader := bufio.NewReader(body)
	current := event{}

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		line, err := reader.ReadString('\n')
		if err != nil {
			return streamError{err: err}
		}

		line = strings.TrimRight(line, "\r\n")
		if line == "" {
			pending := current
			current = event{}
			if len(pending.data) == 0 || pending.name == "ready" || pending.name == "ping" {
				continue
			}

			delivery, err := decodeSmeeData(strings.Join(pending.data, "\n"))
			if err != nil {
				c.Logger.Warn("dropping smee message", "err", err)
				continue
			}
			if err := handle(delivery); err != nil {
				return err
			}
			continue
		}

		if strings.HasPrefix(line, ":") {
			continue
		}

		field, value := splitLine(line)
		switch field {
		case "event":
			current.name = value
		case "data":
			current.data = append(current.data, value)
		}
	}
}

func splitLine(line string) (string, string) {
	field, value, found := strings.Cut(line, ":")
	if !found {
		return line, ""
	}
	return field, strings.TrimPrefix(value, " ")
}

func decodeSmeeData(raw string) (Delivery, error) {
	var payload smeePayload
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return Delivery{}, fmt.Errorf("decoding smee message: %w", err)
	}
	if payload.Event == "" {
		return Delivery{}, errors.New("missing x-github-event")
	}
	if payload.DeliveryID == "" {
		return Delivery{}, errors.New("missing x-github-delivery")
	}
	if len(payload.Body) == 0 {
		return Delivery{}, errors.New("missing body")
	}

	return Delivery{
		Event:      payload.Event,
		DeliveryID: payload.DeliveryID,
		Body:       payload.Body,
	}, nil
}

// pause waits d or until ctx is done and returns the next backoff.
func pause(ctx context.Context, d time.Duration) time.Duration {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
	return min(d*2, maxBackoff)
}
