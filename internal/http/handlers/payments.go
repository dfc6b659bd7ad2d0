package handlers

import (
	"net/http"
	"strings"

	"github.com/kidshovel/marketplace-back/internal/payment"
)

type webhookRequest struct {
	JobID       string `json:"job_id"`
	Status      string `json:"status"`
	TransferRef string `json:"transfer_ref,omitempty"`
}

// PaymentsWebhook serves POST /v1/payments/webhook, the gateway callback.
func (api *API) PaymentsWebhook(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, r, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}

	var request webhookRequest
	if err := decodeJSON(r, &request); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid_request", "invalid payload")
		return
	}
	if strings.TrimSpace(request.JobID) == "" {
		writeError(w, r, http.StatusBadRequest, "invalid_request", "job_id is required")
		return
	}

	status := payment.EventSucceeded
	if request.Status == "failed" {
		status = payment.EventFailed
	}

	err := api.payments.HandleEvent(r.Context(), payment.WebhookEvent{
		JobID:       request.JobID,
		Status:      status,
		TransferRef: request.TransferRef,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"received": true})
}
