// Package client follows the bot's /ws activity feed and prints every
// message as one JSON line.
package client

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/gorilla/websocket"
	"github.com/kehao95/gh-deploybot/internal/assertion"
)

// Exit codes of a watch that ends on its own.
const (
	ExitSuccess = 0
	ExitFailure = 1
	ExitTimeout = 124
)

const maxBackoff = 30 * time.Second

type Config struct {
	ServerURL string

	// Events limits the feed to these event types. Empty means everything.
	Events []string

	SuccessAssertions []assertion.Assertion
	FailureAssertions []assertion.Assertion

	// Timeout bounds the whole watch, reconnects included. Zero waits forever.
	Timeout time.Duration

	Out    io.Writer
	Logger *slog.Logger
}

type exitError struct {
	code int
}

func (e exitError) Error() string {
	return fmt.Sprintf("exit with code %d", e.code)
}

func (e exitError) ExitCode() int {
	return e.code
}

// Run prints the feed until ctx is cancelled, an assertion matches or the
// timeout expires. The last two end with an error carrying ExitCode().
// Lost connections are re-established with exponential backoff.
func Run(ctx context.Context, cfg Config) error {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	out := cfg.Out
	if out == nil {
		out = os.Stdout
	}
	stdout := bufio.NewWriter(out)

	if cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeoutCause(ctx, cfg.Timeout, exitError{code: ExitTimeout})
		defer cancel()
	}

	backoff := time.Second
	for {
		if err := stopCause(ctx); err != nil {
			return err
		}

		logger.Info("connecting", "url", cfg.ServerURL)
		conn, _, err := websocket.DefaultDialer.DialContext(ctx, cfg.ServerURL, nil)
		if err != nil {
			logger.Warn("connect failed", "err", err, "retry_in", backoff)
			backoff = pause(ctx, backoff)
			continue
		}
		logger.Info("connected", "url", cfg.ServerURL)
		backoff = time.Second

		if err := subscribe(conn, cfg.Events); err != nil {
			logger.Warn("subscribe failed", "err", err)
			_ = conn.Close()
			backoff = pause(ctx, backoff)
			continue
		}

		err = readLoop(ctx, conn, stdout, logger, cfg)
		_ = conn.Close()

		var exitErr exitError
		if errors.As(err, &exitErr) {
			return exitErr
		}
		if ctx.Err() != nil {
			return stopCause(ctx)
		}
		logger.Warn("disconnected", "err", err)
	}
}

// stopCause reports why ctx is done: the timeout exit, or the parent's error.
func stopCause(ctx context.Context) error {
	if ctx.Err() == nil {
		return nil
	}
	var exitErr exitError
	if errors.As(context.Cause(ctx), &exitErr) {
		return exitErr
	}
	return ctx.Err()
}

func readLoop(ctx context.Context, conn *websocket.Conn, stdout *bufio.Writer, logger *slog.Logger, cfg Config) error {
	done := make(chan error, 1)
	go func() {
		for {
			_, msg, err := conn.ReadMessage()
			if err != nil {
				done <- err
				return
			}
			if err := writeLine(stdout, msg); err != nil {
				done <- err
				return
			}

			if !json.Valid(msg) {
				logger.Warn("invalid json from server", "message", string(msg))
				continue
			}
			if a, ok := assertion.First(msg, cfg.SuccessAssertions); ok {
				logger.Info("success assertion matched", "assertion", a.String())
				done <- exitError{code: a.ExitCode}
				return
			}
			if a, ok := assertion.First(msg, cfg.FailureAssertions); ok {
				logger.Info("failure assertion matched", "assertion", a.String())
				done <- exitError{code: a.ExitCode}
				return
			}
		}
	}()

	select {
	case <-ctx.Done():
		_ = conn.Close()
		<-done
		return stopCause(ctx)
	case err := <-done:
		return err
	}
}

func writeLine(w *bufio.Writer, msg []byte) error {
	if _, err := w.Write(msg); err != nil {
		return err
	}
	if err := w.WriteByte('\n'); err != nil {
		return err
	}
	return w.Flush()
}

type subscribeMessage struct {
	Type   string   `json:"type"`
	Events []string `json:"events"`
}

func subscribe(conn *websocket.Conn, events []string) error {
	if events == nil {
		events = []string{}
	}
	return conn.WriteJSON(subscribeMessage{Type: "subscribe", Events: events})
}

func pause(ctx context.Context, d time.Duration) time.Duration {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
	return min(d*2, maxBackoff)
}
