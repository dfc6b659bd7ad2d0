package handlers

import (
	"encoding/json"
	"errors"
	"hash/fnv"
	"net/http"
	"sync"
	"time"

	"github.com/kidshovel/marketplace-back/internal/domain"
	"github.com/kidshovel/marketplace-back/internal/http/middleware"
	"github.com/kidshovel/marketplace-back/internal/payment"
	"github.com/kidshovel/marketplace-back/internal/policy"
	"github.com/kidshovel/marketplace-back/internal/repository"
	"github.com/kidshovel/marketplace-back/internal/service"
)

var errInvalidPayload = errors.New("invalid payload")

type API struct {
	jobs        *service.JobsService
	ratings     *service.RatingsService
	earnings    *service.EarningsService
	payments    *payment.Service
	idempotency *idempotencyStore
}

func NewAPI(
	jobs *service.JobsService,
	ratings *service.RatingsService,
	earnings *service.EarningsService,
	payments *payment.Service,
) *API {
	return &API{
		jobs:        jobs,
		ratings:     ratings,
		earnings:    earnings,
		payments:    payments,
		idempotency: newIdempotencyStore(),
	}
}

type errorPayload struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
	RequestID string `json:"request_id"`
}

func writeJSON(w http.ResponseWriter, statusCode int, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(value)
}

func writeError(w http.ResponseWriter, r *http.Request, statusCode int, code, message string) {
	payload := errorPayload{RequestID: middleware.GetRequestID(r.Context())}
	payload.Error.Code = code
	payload.Error.Message = message
	writeJSON(w, statusCode, payload)
}

// writeServiceError maps guard and validation failures to specific 4xx codes
// and everything else to a generic 500. Internal detail never reaches the
// client.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		writeError(w, r, http.StatusNotFound, "not_found", "resource not found")
	case errors.Is(err, service.ErrNotParty):
		writeError(w, r, http.StatusForbidden, "not_a_party", "you are not a party to this job")
	case errors.Is(err, service.ErrNotOwner):
		writeError(w, r, http.StatusForbidden, "access_denied", "this resource belongs to another user")
	case errors.Is(err, service.ErrJobNotCompleted):
		writeError(w, r, http.StatusConflict, "job_not_completed", "the job is not completed yet")
	case errors.Is(err, service.ErrAlreadyRated):
		writeError(w, r, http.StatusConflict, "already_rated", "you already rated this job")
	case errors.Is(err, service.ErrInvalidRating):
		writeError(w, r, http.StatusBadRequest, "invalid_rating", "rating must be an integer between 1 and 5")
	case errors.Is(err, service.ErrValidation):
		writeError(w, r, http.StatusBadRequest, "invalid_request", err.Error())
	case errors.Is(err, policy.ErrContentPolicyViolation):
		writeError(w, r, http.StatusUnprocessableEntity, "review_rejected", err.Error())
	default:
		writeError(w, r, http.StatusInternalServerError, "internal_error", "something went wrong, try again later")
	}
}

func decodeJSON(r *http.Request, value any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(value); err != nil {
		return errInvalidPayload
	}
	return nil
}

type jobPayload struct {
	ID                  string     `json:"id"`
	HomeownerID         string     `json:"homeowner_id"`
	WorkerID            string     `json:"worker_id,omitempty"`
	Status              string     `json:"status"`
	ServiceType         string     `json:"service_type"`
	Address             string     `json:"address"`
	City                string     `json:"city,omitempty"`
	Zip                 string     `json:"zip,omitempty"`
	Lat                 *float64   `json:"lat,omitempty"`
	Lng                 *float64   `json:"lng,omitempty"`
	Description         string     `json:"description,omitempty"`
	SpecialInstructions string     `json:"special_instructions,omitempty"`
	PriceOffered        float64    `json:"price_offered"`
	PriceAccepted       float64    `json:"price_accepted,omitempty"`
	PriceFinal          float64    `json:"price_final,omitempty"`
	PaymentMethod       string     `json:"payment_method"`
	PaymentStatus       string     `json:"payment_status"`
	ScheduledFor        *time.Time `json:"scheduled_for,omitempty"`
	IsASAP              bool       `json:"is_asap"`
	BeforePhotoURL      string     `json:"before_photo_url,omitempty"`
	AfterPhotoURL       string     `json:"after_photo_url,omitempty"`
	WorkerNotes         string     `json:"worker_notes,omitempty"`
	ClaimedAt           *time.Time `json:"claimed_at,omitempty"`
	ConfirmedAt         *time.Time `json:"confirmed_at,omitempty"`
	StartedAt           *time.Time `json:"started_at,omitempty"`
	CompletedAt         *time.Time `json:"completed_at,omitempty"`
	ReviewedAt          *time.Time `json:"reviewed_at,omitempty"`
	CancelledAt         *time.Time `json:"cancelled_at,omitempty"`
	CancelledBy         string     `json:"cancelled_by,omitempty"`
	CancellationReason  string     `json:"cancellation_reason,omitempty"`
	CreatedAt           time.Time  `json:"created_at"`
	UpdatedAt           time.Time  `json:"updated_at"`
}

func toJobPayload(job *domain.Job) jobPayload {
	return jobPayload{
		ID:                  job.ID,
		HomeownerID:         job.HomeownerID,
		WorkerID:            job.WorkerID,
		Status:              string(job.Status),
		ServiceType:         string(job.ServiceType),
		Address:             job.Address,
		City:                job.City,
		Zip:                 job.Zip,
		Lat:                 job.Lat,
		Lng:                 job.Lng,
		Description:         job.Description,
		SpecialInstructions: job.SpecialInstructions,
		PriceOffered:        job.PriceOffered,
		PriceAccepted:       job.PriceAccepted,
		PriceFinal:          job.PriceFinal,
		PaymentMethod:       string(job.PaymentMethod),
		PaymentStatus:       string(job.PaymentStatus),
		ScheduledFor:        job.ScheduledFor,
		IsASAP:              job.IsASAP,
		BeforePhotoURL:      job.BeforePhotoURL,
		AfterPhotoURL:       job.AfterPhotoURL,
		WorkerNotes:         job.WorkerNotes,
		ClaimedAt:           job.ClaimedAt,
		ConfirmedAt:         job.ConfirmedAt,
		StartedAt:           job.StartedAt,
		CompletedAt:         job.CompletedAt,
		ReviewedAt:          job.ReviewedAt,
		CancelledAt:         job.CancelledAt,
		CancelledBy:         job.CancelledBy,
		CancellationReason:  job.CancellationReason,
		CreatedAt:           job.CreatedAt,
		UpdatedAt:           job.UpdatedAt,
	}
}

func toJobPayloads(jobs []domain.Job) []jobPayload {
	payloads := make([]jobPayload, 0, len(jobs))
	for i := range jobs {
		payloads = append(payloads, toJobPayload(&jobs[i]))
	}
	return payloads
}

type ratingPayload struct {
	ID                  string    `json:"id"`
	JobID               string    `json:"job_id"`
	RaterID             string    `json:"rater_id"`
	RatedID             string    `json:"rated_id"`
	RaterType           string    `json:"rater_type"`
	Rating              int       `json:"rating"`
	ReviewText          string    `json:"review_text,omitempty"`
	QualityRating       int       `json:"quality_rating,omitempty"`
	PunctualityRating   int       `json:"punctuality_rating,omitempty"`
	CommunicationRating int       `json:"communication_rating,omitempty"`
	PaymentRating       int       `json:"payment_rating,omitempty"`
	AccuracyRating      int       `json:"accuracy_rating,omitempty"`
	TreatmentRating     int       `json:"treatment_rating,omitempty"`
	IsPublic            bool      `json:"is_public"`
	CreatedAt           time.Time `json:"created_at"`
}

func toRatingPayload(rating *domain.Rating) ratingPayload {
	return ratingPayload{
		ID:                  rating.ID,
		JobID:               rating.JobID,
		RaterID:             rating.RaterID,
		RatedID:             rating.RatedID,
		RaterType:           string(rating.RaterType),
		Rating:              rating.Rating,
		ReviewText:          rating.ReviewText,
		QualityRating:       rating.QualityRating,
		PunctualityRating:   rating.PunctualityRating,
		CommunicationRating: rating.CommunicationRating,
		PaymentRating:       rating.PaymentRating,
		AccuracyRating:      rating.AccuracyRating,
		TreatmentRating:     rating.TreatmentRating,
		IsPublic:            rating.IsPublic,
		CreatedAt:           rating.CreatedAt,
	}
}

func toRatingPayloads(ratings []domain.Rating) []ratingPayload {
	payloads := make([]ratingPayload, 0, len(ratings))
	for i := range ratings {
		payloads = append(payloads, toRatingPayload(&ratings[i]))
	}
	return payloads
}

type idempotencyEntry struct {
	PayloadHash uint64
	JobID       string
	CreatedAt   time.Time
}

type idempotencyStore struct {
	mu      sync.Mutex
	entries map[string]idempotencyEntry
}

func newIdempotencyStore() *idempotencyStore {
	return &idempotencyStore{
		entries: make(map[string]idempotencyEntry),
	}
}

func (s *idempotencyStore) Get(key string) (idempotencyEntry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.entries[key]
	return entry, ok
}

func (s *idempotencyStore) Put(key string, payloadHash uint64, jobID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = idempotencyEntry{
		PayloadHash: payloadHash,
		JobID:       jobID,
		CreatedAt:   time.Now().UTC(),
	}
}

func hashPayload(value any) uint64 {
	payload, _ := json.Marshal(value)
	hasher := fnv.New64a()
	_, _ = hasher.Write(payload)
	return hasher.Sum64()
}
