package handler

import (
	"io"
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/velvetlane/storefront/internal/domain/order"
	"github.com/velvetlane/storefront/internal/payment"
)

// maxWebhookBody bounds the provider payload size.
const maxWebhookBody = 256 << 10

// PaymentWebhook consumes payment-provider completion events. The signature
// is verified against the raw body before anything else; a mismatch is the
// only non-retriable rejection. Any failure after signature verification
// answers 5xx so the provider's redelivery mechanism resends the event, and
// a redelivered, already-reconciled event answers 200 without side effects.
func (h *Handler) PaymentWebhook(w http.ResponseWriter, r *http.Request) {
	lg := zctx.From(r.Context())

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBody))
	if err != nil {
		respondMessage(w, http.StatusBadRequest, "unreadable body")
		return
	}

	if err := h.verifier.Verify(body, r.Header.Get(payment.SignatureHeader)); err != nil {
		lg.Warn("webhook signature rejected")
		respondMessage(w, http.StatusUnauthorized, "signature mismatch")
		return
	}

	ev, err := payment.ParseEvent(body)
	if err != nil {
		// Authenticated but malformed: not retriable, the provider would
		// resend the same bytes.
		lg.Error("webhook payload rejected", zap.Error(err))
		respondMessage(w, http.StatusBadRequest, "malformed event")
		return
	}

	o, err := h.orderService.Reconcile(r.Context(), ev.Completion())
	if err != nil {
		if errors.Is(err, order.ErrAlreadyProcessed) {
			respondJSON(w, http.StatusOK, map[string]string{"status": "already_processed"})
			return
		}
		if errors.Is(err, order.ErrEmptyItems) {
			lg.Error("webhook event carried no items", zap.String("event_id", ev.ID))
			respondMessage(w, http.StatusBadRequest, "event carried no items")
			return
		}
		lg.Error("webhook reconciliation failed", zap.Error(err))
		respondMessage(w, http.StatusInternalServerError, "reconciliation failed")
		return
	}

	lg.Info("order reconciled from webhook",
		zap.String("order_id", o.ID),
		zap.String("session_id", o.ProviderSessionID),
		zap.Bool("needs_review", o.NeedsReview),
	)
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok", "orderId": o.ID})
}
