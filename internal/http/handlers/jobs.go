package handlers

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/kidshovel/marketplace-back/internal/domain"
	"github.com/kidshovel/marketplace-back/internal/service"
)

type createJobRequest struct {
	HomeownerID         string   `json:"homeowner_id"`
	ServiceType         string   `json:"service_type"`
	Address             string   `json:"address"`
	City                string   `json:"city,omitempty"`
	Zip                 string   `json:"zip,omitempty"`
	Lat                 *float64 `json:"lat,omitempty"`
	Lng                 *float64 `json:"lng,omitempty"`
	Description         string   `json:"description,omitempty"`
	SpecialInstructions string   `json:"special_instructions,omitempty"`
	PriceOffered        float64  `json:"price_offered"`
	PaymentMethod       string   `json:"payment_method"`
	ScheduledFor        string   `json:"scheduled_for,omitempty"`
	IsASAP              bool     `json:"is_asap,omitempty"`
}

// Jobs serves POST /v1/jobs.
func (api *API) Jobs(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, r, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}

	var request createJobRequest
	if err := decodeJSON(r, &request); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid_request", "invalid payload")
		return
	}

	idempotencyKey := strings.TrimSpace(r.Header.Get("Idempotency-Key"))
	payloadHash := hashPayload(request)
	if idempotencyKey != "" {
		if entry, ok := api.idempotency.Get(idempotencyKey); ok {
			if entry.PayloadHash != payloadHash {
				writeError(w, r, http.StatusConflict, "idempotency_conflict", "idempotency key reused with a different payload")
				return
			}
			job, err := api.jobs.GetJob(r.Context(), entry.JobID)
			if err != nil {
				writeServiceError(w, r, err)
				return
			}
			writeJSON(w, http.StatusOK, toJobPayload(job))
			return
		}
	}

	input := service.CreateJobInput{
		HomeownerID:         request.HomeownerID,
		ServiceType:         domain.ServiceType(request.ServiceType),
		Address:             request.Address,
		City:                request.City,
		Zip:                 request.Zip,
		Lat:                 request.Lat,
		Lng:                 request.Lng,
		Description:         request.Description,
		SpecialInstructions: request.SpecialInstructions,
		PriceOffered:        request.PriceOffered,
		PaymentMethod:       domain.PaymentMethod(request.PaymentMethod),
		IsASAP:              request.IsASAP,
	}
	if request.ScheduledFor != "" {
		scheduled, err := time.Parse(time.RFC3339, request.ScheduledFor)
		if err != nil {
			writeError(w, r, http.StatusBadRequest, "invalid_request", "scheduled_for must be RFC 3339")
			return
		}
		input.ScheduledFor = &scheduled
	}

	job, err := api.jobs.CreateJob(r.Context(), input)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	if idempotencyKey != "" {
		api.idempotency.Put(idempotencyKey, payloadHash, job.ID)
	}
	writeJSON(w, http.StatusCreated, toJobPayload(job))
}

// AvailableJobs serves GET /v1/jobs/available.
func (api *API) AvailableJobs(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, r, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}

	query := service.AvailableJobsQuery{
		ServiceType: domain.ServiceType(r.URL.Query().Get("service_type")),
		Limit:       parseIntParam(r, "limit", 0),
		Offset:      parseIntParam(r, "offset", 0),
	}
	query.Lat = parseFloatParam(r, "lat")
	query.Lng = parseFloatParam(r, "lng")
	if radius := parseFloatParam(r, "radius_miles"); radius != nil {
		query.RadiusMiles = *radius
	}
	query.MinPrice = parseFloatParam(r, "min_price")
	query.MaxPrice = parseFloatParam(r, "max_price")

	jobs, err := api.jobs.ListAvailable(r.Context(), query)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"jobs": toJobPayloads(jobs)})
}

// JobByID serves GET /v1/jobs/{id}, GET /v1/jobs/{id}/ratings and the
// lifecycle actions POST /v1/jobs/{id}/{claim|confirm|start|complete|cancel}.
func (api *API) JobByID(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/v1/jobs/")
	segments := strings.SplitN(strings.Trim(rest, "/"), "/", 2)
	jobID := strings.TrimSpace(segments[0])
	if jobID == "" {
		writeError(w, r, http.StatusBadRequest, "invalid_request", "job id is required")
		return
	}

	action := ""
	if len(segments) == 2 {
		action = segments[1]
	}

	switch action {
	case "":
		api.getJob(w, r, jobID)
	case "ratings":
		api.jobRatings(w, r, jobID)
	case "claim", "confirm", "start", "complete", "cancel":
		api.jobAction(w, r, jobID, action)
	default:
		writeError(w, r, http.StatusNotFound, "not_found", "unknown route")
	}
}

func (api *API) getJob(w http.ResponseWriter, r *http.Request, jobID string) {
	if r.Method != http.MethodGet {
		writeError(w, r, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}
	job, err := api.jobs.GetJob(r.Context(), jobID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toJobPayload(job))
}

func (api *API) jobRatings(w http.ResponseWriter, r *http.Request, jobID string) {
	if r.Method != http.MethodGet {
		writeError(w, r, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}
	ratings, err := api.ratings.RatingsForJob(r.Context(), jobID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ratings": toRatingPayloads(ratings)})
}

type jobActionRequest struct {
	ActorID        string  `json:"actor_id,omitempty"`
	WorkerID       string  `json:"worker_id,omitempty"`
	PriceAccepted  float64 `json:"price_accepted,omitempty"`
	BeforePhotoURL string  `json:"before_photo_url,omitempty"`
	AfterPhotoURL  string  `json:"after_photo_url,omitempty"`
	WorkerNotes    string  `json:"worker_notes,omitempty"`
	Reason         string  `json:"reason,omitempty"`
}

func (api *API) jobAction(w http.ResponseWriter, r *http.Request, jobID, action string) {
	if r.Method != http.MethodPost {
		writeError(w, r, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}

	var request jobActionRequest
	if err := decodeJSON(r, &request); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid_request", "invalid payload")
		return
	}

	var (
		ok  bool
		err error
	)
	switch action {
	case "claim":
		ok, err = api.jobs.Claim(r.Context(), jobID, request.WorkerID)
	case "confirm":
		ok, err = api.jobs.Confirm(r.Context(), jobID, request.ActorID, request.PriceAccepted)
	case "start":
		ok, err = api.jobs.Start(r.Context(), jobID, request.WorkerID, request.BeforePhotoURL)
	case "complete":
		ok, err = api.jobs.Complete(r.Context(), jobID, request.WorkerID, request.AfterPhotoURL, request.WorkerNotes)
	case "cancel":
		ok, err = api.jobs.Cancel(r.Context(), jobID, request.ActorID, request.Reason)
	}
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if !ok {
		// Expected race loser or guard miss, not a fault.
		writeError(w, r, http.StatusConflict, "unavailable", "the job is not available for this action")
		return
	}

	job, err := api.jobs.GetJob(r.Context(), jobID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toJobPayload(job))
}

func parseIntParam(r *http.Request, name string, fallback int) int {
	value := r.URL.Query().Get(name)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func parseFloatParam(r *http.Request, name string) *float64 {
	value := r.URL.Query().Get(name)
	if value == "" {
		return nil
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return nil
	}
	return &parsed
}
