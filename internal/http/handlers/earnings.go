package handlers

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/kidshovel/marketplace-back/internal/domain"
)

type earningPayload struct {
	ID                     string    `json:"id"`
	JobID                  string    `json:"job_id"`
	GrossAmount            float64   `json:"gross_amount"`
	PlatformFee            float64   `json:"platform_fee"`
	FutureFundContribution float64   `json:"future_fund_contribution"`
	NetAmount              float64   `json:"net_amount"`
	PaymentMethod          string    `json:"payment_method"`
	Status                 string    `json:"status"`
	TransferRef            string    `json:"transfer_ref,omitempty"`
	CreatedAt              time.Time `json:"created_at"`
}

func toEarningPayloads(earnings []domain.Earning) []earningPayload {
	payloads := make([]earningPayload, 0, len(earnings))
	for _, earning := range earnings {
		payloads = append(payloads, earningPayload{
			ID:                     earning.ID,
			JobID:                  earning.JobID,
			GrossAmount:            earning.GrossAmount,
			PlatformFee:            earning.PlatformFee,
			FutureFundContribution: earning.FutureFundContribution,
			NetAmount:              earning.NetAmount,
			PaymentMethod:          string(earning.PaymentMethod),
			Status:                 string(earning.Status),
			TransferRef:            earning.TransferRef,
			CreatedAt:              earning.CreatedAt,
		})
	}
	return payloads
}

type bucketPayload struct {
	PeriodStart time.Time `json:"period_start"`
	Amount      float64   `json:"amount"`
}

func toBucketPayloads(buckets []domain.EarningsBucket) []bucketPayload {
	payloads := make([]bucketPayload, 0, len(buckets))
	for _, bucket := range buckets {
		payloads = append(payloads, bucketPayload{PeriodStart: bucket.PeriodStart, Amount: bucket.Amount})
	}
	return payloads
}

// Workers serves the worker dashboard routes: the earnings views under
// /v1/workers/{id}/earnings and the savings goals under
// /v1/workers/{id}/goals.
func (api *API) Workers(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/v1/workers/")
	segments := strings.Split(strings.Trim(rest, "/"), "/")
	workerID := strings.TrimSpace(segments[0])
	if workerID == "" || len(segments) < 2 {
		writeError(w, r, http.StatusNotFound, "not_found", "unknown route")
		return
	}

	switch segments[1] {
	case "earnings":
		api.workerEarnings(w, r, workerID, segments[2:])
	case "goals":
		api.workerGoals(w, r, workerID, segments[2:])
	default:
		writeError(w, r, http.StatusNotFound, "not_found", "unknown route")
	}
}

func (api *API) workerEarnings(w http.ResponseWriter, r *http.Request, workerID string, segments []string) {
	if r.Method != http.MethodGet {
		writeError(w, r, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}

	view := ""
	if len(segments) >= 1 {
		view = segments[0]
	}

	switch view {
	case "":
		earnings, err := api.earnings.List(r.Context(), workerID,
			parseIntParam(r, "limit", 0), parseIntParam(r, "offset", 0))
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"earnings": toEarningPayloads(earnings)})
	case "summary":
		summary, err := api.earnings.Summary(r.Context(), workerID)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"total_earned":          summary.TotalEarned,
			"this_month":            summary.ThisMonth,
			"this_week":             summary.ThisWeek,
			"jobs_completed":        summary.JobsCompleted,
			"average_per_job":       summary.AveragePerJob,
			"future_fund_balance":   summary.FutureFundBalance,
			"future_fund_projected": summary.FutureFundProjected,
		})
	case "weekly":
		buckets, err := api.earnings.WeeklySeries(r.Context(), workerID, parseIntParam(r, "weeks", 0))
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"buckets": toBucketPayloads(buckets)})
	case "monthly":
		buckets, err := api.earnings.MonthlySeries(r.Context(), workerID, parseIntParam(r, "months", 0))
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"buckets": toBucketPayloads(buckets)})
	default:
		writeError(w, r, http.StatusNotFound, "not_found", "unknown route")
	}
}

// GrowthCalculator serves GET /v1/calculator/growth, the what-if compound
// interest endpoint.
func (api *API) GrowthCalculator(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, r, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}

	principal, err := strconv.ParseFloat(r.URL.Query().Get("principal"), 64)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid_request", "principal is required")
		return
	}
	years := parseIntParam(r, "years", -1)
	if years < 0 {
		writeError(w, r, http.StatusBadRequest, "invalid_request", "years is required")
		return
	}
	rate, err := strconv.ParseFloat(r.URL.Query().Get("rate"), 64)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid_request", "rate is required")
		return
	}

	projected, err := api.earnings.ProjectGrowth(principal, years, rate)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"principal": principal,
		"years":     years,
		"rate":      rate,
		"projected": projected,
	})
}
