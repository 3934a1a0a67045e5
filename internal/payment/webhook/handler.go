// Package webhook is the HTTP entry point for payment provider events. It
// verifies the signature, extracts the session identifiers, and hands off to
// reconciliation. Unknown events are acknowledged so the provider stops
// retrying them.
package webhook

import (
	"encoding/json"
	"io"
	"net/http"

	"datebox-be/internal/logger"
	"datebox-be/internal/payment"
	"datebox-be/internal/reconcile"
	"datebox-be/internal/utils"

	"go.uber.org/zap"
)

// maxPayloadBytes caps the webhook body read.
const maxPayloadBytes = 1 << 20

type event struct {
	Type string `json:"type"`
	Data struct {
		Object struct {
			ID            string            `json:"id"`
			Object        string            `json:"object"`
			PaymentIntent string            `json:"payment_intent"`
			Metadata      map[string]string `json:"metadata"`
		} `json:"object"`
	} `json:"data"`
}

type Handler struct {
	reconciler reconcile.Service
	gateway    payment.Gateway
}

func NewHandler(reconciler reconcile.Service, gateway payment.Gateway) *Handler {
	return &Handler{reconciler: reconciler, gateway: gateway}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		utils.WriteJSONError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	log := logger.FromCtx(r.Context())

	payload, err := io.ReadAll(io.LimitReader(r.Body, maxPayloadBytes))
	if err != nil {
		utils.WriteJSONError(w, "unreadable payload", http.StatusBadRequest)
		return
	}

	if err := h.gateway.VerifyWebhookSignature(payload, r.Header.Get("Stripe-Signature")); err != nil {
		log.Warn("rejected webhook", zap.Error(err))
		utils.WriteJSONError(w, "invalid signature", http.StatusBadRequest)
		return
	}

	var evt event
	if err := json.Unmarshal(payload, &evt); err != nil {
		utils.WriteJSONError(w, "malformed event", http.StatusBadRequest)
		return
	}

	if evt.Data.Object.Object != "checkout.session" {
		h.acknowledge(w)
		return
	}
	session := evt.Data.Object
	pendingID := session.Metadata["orderPendingId"]

	switch evt.Type {
	case "checkout.session.completed":
		err = h.reconciler.HandleSessionCompleted(r.Context(), session.ID, session.PaymentIntent, pendingID)
	case "checkout.session.expired":
		err = h.reconciler.HandleSessionExpired(r.Context(), pendingID)
	default:
		h.acknowledge(w)
		return
	}

	if err != nil {
		// A 5xx makes the provider redeliver; settlement is replay safe.
		log.Error("webhook processing failed",
			zap.String("event_type", evt.Type),
			zap.String("session_id", session.ID),
			zap.Error(err),
		)
		utils.WriteJSONError(w, "processing failed", http.StatusInternalServerError)
		return
	}
	h.acknowledge(w)
}

func (h *Handler) acknowledge(w http.ResponseWriter) {
	utils.WriteJSON(w, http.StatusOK, map[string]bool{"received": true})
}
