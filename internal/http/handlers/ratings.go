package handlers

import (
	"net/http"
	"strings"

	"github.com/kidshovel/marketplace-back/internal/service"
)

type submitRatingRequest struct {
	JobID      string `json:"job_id"`
	RaterID    string `json:"rater_id"`
	Rating     int    `json:"rating"`
	ReviewText string `json:"review_text,omitempty"`
	IsPublic   *bool  `json:"is_public,omitempty"`

	QualityRating       int `json:"quality_rating,omitempty"`
	PunctualityRating   int `json:"punctuality_rating,omitempty"`
	CommunicationRating int `json:"communication_rating,omitempty"`
	PaymentRating       int `json:"payment_rating,omitempty"`
	AccuracyRating      int `json:"accuracy_rating,omitempty"`
	TreatmentRating     int `json:"treatment_rating,omitempty"`
}

// Ratings serves POST /v1/ratings.
func (api *API) Ratings(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, r, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}

	var request submitRatingRequest
	if err := decodeJSON(r, &request); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid_request", "invalid payload")
		return
	}
	if strings.TrimSpace(request.JobID) == "" || strings.TrimSpace(request.RaterID) == "" {
		writeError(w, r, http.StatusBadRequest, "invalid_request", "job_id and rater_id are required")
		return
	}

	isPublic := true
	if request.IsPublic != nil {
		isPublic = *request.IsPublic
	}

	rating, err := api.ratings.SubmitRating(r.Context(), service.SubmitRatingInput{
		JobID:               request.JobID,
		RaterID:             request.RaterID,
		Rating:              request.Rating,
		ReviewText:          request.ReviewText,
		IsPublic:            isPublic,
		QualityRating:       request.QualityRating,
		PunctualityRating:   request.PunctualityRating,
		CommunicationRating: request.CommunicationRating,
		PaymentRating:       request.PaymentRating,
		AccuracyRating:      request.AccuracyRating,
		TreatmentRating:     request.TreatmentRating,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toRatingPayload(rating))
}

// Users serves GET /v1/users/{id}/ratings and GET /v1/users/{id}/rating-stats.
func (api *API) Users(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, r, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}

	rest := strings.TrimPrefix(r.URL.Path, "/v1/users/")
	segments := strings.SplitN(strings.Trim(rest, "/"), "/", 2)
	userID := strings.TrimSpace(segments[0])
	if userID == "" || len(segments) < 2 {
		writeError(w, r, http.StatusNotFound, "not_found", "unknown route")
		return
	}

	switch segments[1] {
	case "ratings":
		publicOnly := r.URL.Query().Get("public_only") != "false"
		ratings, err := api.ratings.RatingsForUser(r.Context(), userID, publicOnly,
			parseIntParam(r, "limit", 0), parseIntParam(r, "offset", 0))
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ratings": toRatingPayloads(ratings)})
	case "rating-stats":
		stats, err := api.ratings.StatsForUser(r.Context(), userID)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"avg_rating":    stats.AvgRating,
			"total_ratings": stats.TotalRatings,
			"distribution":  stats.Distribution,
		})
	default:
		writeError(w, r, http.StatusNotFound, "not_found", "unknown route")
	}
}
