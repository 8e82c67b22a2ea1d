package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"log/slog"
	"strings"
	"sync"
)

// SignatureHeader carries the HMAC-SHA256 of the raw request body.
const SignatureHeader = "X-Hub-Signature-256"

var (
	ErrMissingSignature = errors.New("missing X-Hub-Signature-256 header")
	ErrSignaturePrefix  = errors.New("invalid signature prefix")
	ErrSignatureFormat  = errors.New("invalid signature encoding")
	ErrSignatureInvalid = errors.New("signature mismatch")
)

// Verifier checks GitHub webhook signatures against a shared secret.
// With an empty secret every body is accepted and a warning is logged once.
type Verifier struct {
	secret   []byte
	logger   *slog.Logger
	warnOnce sync.Once
}

// NewVerifier returns a Verifier for secret.
func NewVerifier(secret string, logger *slog.Logger) *Verifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Verifier{secret: []byte(strings.TrimSpace(secret)), logger: logger}
}

// Enabled reports whether a secret is configured.
func (v *Verifier) Enabled() bool {
	return len(v.secret) > 0
}

// Verify returns nil when headerSignature is the hex HMAC-SHA256 of body.
func (v *Verifier) Verify(body []byte, headerSignature string) error {
	if !v.Enabled() {
		v.warnOnce.Do(func() {
			v.logger.Warn("webhook signature verification disabled: GITHUB_WEBHOOK_SECRET is not set")
		})
		return nil
	}
	return VerifySignature(body, headerSignature, v.secret)
}

// VerifySignature checks a "sha256=<hex>" header against the HMAC of body.
// The digests are compared in constant time.
func VerifySignature(body []byte, headerSignature string, secret []byte) error {
	if headerSignature == "" {
		return ErrMissingSignature
	}

	const prefix = "sha256="
	if !strings.HasPrefix(headerSignature, prefix) {
		return ErrSignaturePrefix
	}

	provided, err := hex.DecodeString(strings.TrimPrefix(headerSignature, prefix))
	if err != nil {
		return ErrSignatureFormat
	}

	if !hmac.Equal(Sign(body, secret), provided) {
		return ErrSignatureInvalid
	}
	return nil
}

// Sign returns the raw HMAC-SHA256 of body.
func Sign(body, secret []byte) []byte {
	mac := hmac.New(sha256.New, secret)
	_, _ = mac.Write(body)
	return mac.Sum(nil)
}

// SignatureFor formats the X-Hub-Signature-256 header value for body.
func SignatureFor(body, secret []byte) string {
	return "sha256=" + hex.EncodeToString(Sign(body, secret))
}
