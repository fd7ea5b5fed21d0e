// Package webhook receives asynchronous transfer status updates from the
// custody provider. Webhook-delivered status and polled status are
// equivalent: whichever arrives first wins, the other is a no-op.
package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/velia-labs/settler/internal/core/domain"
	"github.com/velia-labs/settler/internal/custody"
	"github.com/velia-labs/settler/internal/infra/storage"
	"github.com/velia-labs/settler/internal/reconcile/metrics"
)

const maxBodySize = 1 << 20

// SignatureHeader carries the HMAC-SHA256 signature of the raw body.
const SignatureHeader = "X-Custody-Signature"

// Handler processes custody provider webhooks.
type Handler struct {
	secret string
	idem   storage.IdempotencyRepository
	log    *slog.Logger
}

// NewHandler creates a webhook handler. secret is the shared HMAC key.
func NewHandler(secret string, idem storage.IdempotencyRepository, log *slog.Logger) *Handler {
	return &Handler{secret: secret, idem: idem, log: log}
}

type payload struct {
	Reference string `json:"reference"`
	Status    string `json:"status"`
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
	if err != nil {
		http.Error(w, "read body failed", http.StatusBadRequest)
		return
	}

	if err := VerifySignature(body, r.Header.Get(SignatureHeader), h.secret); err != nil {
		h.log.Warn("webhook signature rejected", "error", err)
		metrics.WebhookEvents.WithLabelValues("rejected").Inc()
		http.Error(w, "invalid signature", http.StatusUnauthorized)
		return
	}

	var p payload
	if err := json.Unmarshal(body, &p); err != nil || p.Reference == "" {
		http.Error(w, "bad payload", http.StatusBadRequest)
		return
	}

	var status domain.OpStatus
	switch custody.TransferStatus(p.Status) {
	case custody.TransferSuccess:
		status = domain.OpStatusSuccess
	case custody.TransferFailed:
		status = domain.OpStatusFailed
	default:
		// Intermediate provider states carry no new information.
		metrics.WebhookEvents.WithLabelValues("ignored").Inc()
		w.WriteHeader(http.StatusOK)
		return
	}

	n, err := h.idem.ResolveByProviderRef(r.Context(), p.Reference, status)
	if err != nil {
		h.log.Error("webhook resolution failed", "ref", p.Reference, "error", err)
		// 5xx so the provider redelivers; resolution is idempotent.
		http.Error(w, "resolution failed", http.StatusInternalServerError)
		return
	}
	if n == 0 {
		h.log.Debug("webhook for already-resolved transfer", "ref", p.Reference)
		metrics.WebhookEvents.WithLabelValues("duplicate").Inc()
	} else {
		h.log.Info("transfer resolved via webhook", "ref", p.Reference, "status", status)
		metrics.WebhookEvents.WithLabelValues("applied").Inc()
	}
	w.WriteHeader(http.StatusOK)
}

// VerifySignature checks an HMAC-SHA256 signature over the raw body with
// a constant-time comparison.
func VerifySignature(body []byte, signature, secret string) error {
	if signature == "" {
		return fmt.Errorf("missing signature header")
	}
	signature = strings.TrimPrefix(signature, "sha256=")
	signature = strings.TrimPrefix(signature, "hmac-sha256=")

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))

	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return fmt.Errorf("signature mismatch")
	}
	return nil
}
