package server

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/kehao95/gh-deploybot/internal/deploy"
	"github.com/kehao95/gh-deploybot/internal/message"
	"github.com/kehao95/gh-deploybot/internal/webhook"
)

// GitHub caps webhook payloads at 25 MB.
const maxWebhookBody = 32 << 20

const (
	eventHeader    = "X-GitHub-Event"
	deliveryHeader = "X-GitHub-Delivery"
)

func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody+1))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Failed to read body")
		return
	}
	if len(body) > maxWebhookBody {
		writeError(w, http.StatusRequestEntityTooLarge, "Payload too large")
		return
	}

	event := r.Header.Get(eventHeader)
	delivery := r.Header.Get(deliveryHeader)
	if err := s.verifier.Verify(body, r.Header.Get(webhook.SignatureHeader)); err != nil {
		s.logger.Warn("webhook signature rejected", "event", event, "delivery", delivery, "err", err)
		writeError(w, http.StatusUnauthorized, "Invalid signature")
		return
	}

	status, response := s.processDelivery(r.Context(), event, delivery, body)
	writeJSON(w, status, response)
}

// processDelivery runs one verified delivery through the mapper and, when the
// plan asks for it, a single dispatch. It returns the HTTP status and body to
// answer GitHub with.
func (s *Server) processDelivery(ctx context.Context, event, delivery string, body []byte) (int, any) {
	logger := s.logger.With("event", event, "delivery", delivery)

	plan, err := s.mapper.Map(event, body)
	if errors.Is(err, webhook.ErrMissingRepository) {
		logger.Warn("webhook payload rejected", "bytes", len(body), "err", err)
		return http.StatusBadRequest, errorBody{Error: "Repository owner and name are required"}
	}
	if err != nil {
		logger.Warn("webhook payload rejected", "bytes", len(body), "err", err)
		return http.StatusBadRequest, errorBody{Error: "Invalid JSON payload"}
	}
	logger.Info("webhook received", "bytes", len(body), "summary", plan.Summary)
	s.publishDelivery(event, delivery, body)

	if plan.Dispatch == nil {
		return http.StatusOK, plan.Response
	}

	d := plan.Dispatch
	if err := s.service.Dispatch(ctx, deploy.SourceWebhook, d.Owner, d.Repo, d.Workflow, d.Ref); err != nil {
		return upstreamFailure(err, "Failed to trigger deployment")
	}
	return http.StatusOK, plan.Response
}

func (s *Server) publishDelivery(event, delivery string, body []byte) {
	payload, err := shrinkForFeed(body)
	if err != nil {
		s.logger.Warn("payload truncation failed", "event", event, "delivery", delivery, "err", err)
	}
	if payload.truncated() {
		s.logger.Info("payload truncated for feed", "event", event, "delivery", delivery, "bytes", len(body), "fields", payload.fields())
	}
	s.hub.PublishEvent(message.EventMessage{
		Type:       message.TypeEvent,
		Event:      event,
		DeliveryID: delivery,
		Truncated:  payload.truncated(),
		Payload:    payload.raw,
	})
}

func (s *Server) handleWebhookHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"message":   "GitHub Deployment Bot is running",
		"timestamp": time.Now().UTC().Format(time.RFC3339Nano),
	})
}
