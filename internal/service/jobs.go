package service

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kidshovel/marketplace-back/internal/domain"
	"github.com/kidshovel/marketplace-back/internal/geo"
	"github.com/kidshovel/marketplace-back/internal/notify"
	"github.com/kidshovel/marketplace-back/internal/repository"
)

// JobsService drives the job lifecycle. Transition guards live in the store;
// this layer validates input, checks party membership where the store cannot
// and emits lifecycle notifications.
type JobsService struct {
	store      repository.Store
	dispatcher *notify.Dispatcher
	logger     *log.Logger
}

func NewJobsService(store repository.Store, dispatcher *notify.Dispatcher, logger *log.Logger) *JobsService {
	return &JobsService{store: store, dispatcher: dispatcher, logger: logger}
}

type CreateJobInput struct {
	HomeownerID         string
	ServiceType         domain.ServiceType
	Address             string
	City                string
	Zip                 string
	Lat                 *float64
	Lng                 *float64
	Description         string
	SpecialInstructions string
	PriceOffered        float64
	PaymentMethod       domain.PaymentMethod
	ScheduledFor        *time.Time
	IsASAP              bool
}

func (input CreateJobInput) validate() error {
	if strings.TrimSpace(input.HomeownerID) == "" {
		return fmt.Errorf("%w: homeowner id is required", ErrValidation)
	}
	if strings.TrimSpace(input.Address) == "" {
		return fmt.Errorf("%w: address is required", ErrValidation)
	}
	switch input.ServiceType {
	case domain.ServiceTypeDriveway, domain.ServiceTypeWalkway, domain.ServiceTypeCarBrushing, domain.ServiceTypeCombo:
	default:
		return fmt.Errorf("%w: unknown service type %q", ErrValidation, input.ServiceType)
	}
	if input.PriceOffered <= 0 {
		return fmt.Errorf("%w: price offered must be positive", ErrValidation)
	}
	switch input.PaymentMethod {
	case domain.PaymentMethodCash, domain.PaymentMethodCard:
	default:
		return fmt.Errorf("%w: unknown payment method %q", ErrValidation, input.PaymentMethod)
	}
	return nil
}

func (s *JobsService) CreateJob(ctx context.Context, input CreateJobInput) (*domain.Job, error) {
	if err := input.validate(); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	job := &domain.Job{
		ID:                  uuid.NewString(),
		HomeownerID:         input.HomeownerID,
		Status:              domain.JobStatusPosted,
		ServiceType:         input.ServiceType,
		Address:             input.Address,
		City:                input.City,
		Zip:                 input.Zip,
		Lat:                 input.Lat,
		Lng:                 input.Lng,
		Description:         input.Description,
		SpecialInstructions: input.SpecialInstructions,
		PriceOffered:        input.PriceOffered,
		PaymentMethod:       input.PaymentMethod,
		PaymentStatus:       domain.PaymentStatusPending,
		ScheduledFor:        input.ScheduledFor,
		IsASAP:              input.IsASAP,
		CreatedAt:           now,
		UpdatedAt:           now,
	}

	if err := s.store.CreateJob(ctx, job); err != nil {
		return nil, fmt.Errorf("create job: %w", err)
	}

	if err := s.store.IncrementJobsPosted(ctx, job.HomeownerID); err != nil && s.logger != nil {
		s.logger.Printf("increment jobs posted failed homeowner_id=%s err=%v", job.HomeownerID, err)
	}

	return job, nil
}

func (s *JobsService) GetJob(ctx context.Context, jobID string) (*domain.Job, error) {
	return s.store.GetJob(ctx, jobID)
}

// Claim lets a worker take a posted job. A false result means the job was no
// longer available, the expected loser outcome when two workers race.
func (s *JobsService) Claim(ctx context.Context, jobID, workerID string) (bool, error) {
	if workerID == "" {
		return false, fmt.Errorf("%w: worker id is required", ErrValidation)
	}

	claimed, err := s.store.ClaimJob(ctx, jobID, workerID)
	if err != nil {
		return false, fmt.Errorf("claim job: %w", err)
	}
	if !claimed {
		return false, nil
	}

	if job, err := s.store.GetJob(ctx, jobID); err == nil {
		s.dispatcher.Dispatch(ctx, job.HomeownerID, domain.NotificationTypeJobClaimed,
			"Your job was claimed", "A worker accepted your snow-removal request.", notify.JobMetadata(jobID))
	}
	return true, nil
}

// Confirm locks in the price. Either party may confirm; a non-party gets a
// false result without touching the job.
func (s *JobsService) Confirm(ctx context.Context, jobID, actorID string, priceAccepted float64) (bool, error) {
	job, err := s.store.GetJob(ctx, jobID)
	if err != nil {
		return false, err
	}
	if !job.IsParty(actorID) {
		return false, nil
	}

	confirmed, err := s.store.ConfirmJob(ctx, jobID, priceAccepted)
	if err != nil {
		return false, fmt.Errorf("confirm job: %w", err)
	}
	if confirmed {
		other := job.WorkerID
		if actorID == job.WorkerID {
			other = job.HomeownerID
		}
		s.dispatcher.Dispatch(ctx, other, domain.NotificationTypeJobConfirmed,
			"Job confirmed", "The job details and price are confirmed.", notify.JobMetadata(jobID))
	}
	return confirmed, nil
}

func (s *JobsService) Start(ctx context.Context, jobID, workerID, beforePhotoURL string) (bool, error) {
	started, err := s.store.StartJob(ctx, jobID, workerID, beforePhotoURL)
	if err != nil {
		return false, fmt.Errorf("start job: %w", err)
	}
	if started {
		if job, err := s.store.GetJob(ctx, jobID); err == nil {
			s.dispatcher.Dispatch(ctx, job.HomeownerID, domain.NotificationTypeJobStarted,
				"Work started", "Your worker is on site and has started shoveling.", notify.JobMetadata(jobID))
		}
	}
	return started, nil
}

func (s *JobsService) Complete(ctx context.Context, jobID, workerID, afterPhotoURL, workerNotes string) (bool, error) {
	completed, err := s.store.CompleteJob(ctx, jobID, workerID, afterPhotoURL, workerNotes)
	if err != nil {
		return false, fmt.Errorf("complete job: %w", err)
	}
	if completed {
		if job, err := s.store.GetJob(ctx, jobID); err == nil {
			s.dispatcher.Dispatch(ctx, job.HomeownerID, domain.NotificationTypeJobCompleted,
				"Job completed", "Your worker finished the job. Take a look and leave a rating.", notify.JobMetadata(jobID))
		}
	}
	return completed, nil
}

// Cancel marks the job cancelled. A non-party actor and a job that already
// reached completed both yield a false result.
func (s *JobsService) Cancel(ctx context.Context, jobID, actorID, reason string) (bool, error) {
	job, err := s.store.GetJob(ctx, jobID)
	if err != nil {
		return false, err
	}
	if !job.IsParty(actorID) {
		return false, nil
	}

	cancelled, err := s.store.CancelJob(ctx, jobID, actorID, reason)
	if err != nil {
		return false, fmt.Errorf("cancel job: %w", err)
	}
	if cancelled {
		other := job.HomeownerID
		if actorID == job.HomeownerID {
			other = job.WorkerID
		}
		if other != "" {
			s.dispatcher.Dispatch(ctx, other, domain.NotificationTypeJobCancelled,
				"Job cancelled", "The other party cancelled this job.", notify.JobMetadata(jobID))
		}
	}
	return cancelled, nil
}

func (s *JobsService) ListForHomeowner(ctx context.Context, homeownerID string, filter domain.JobListFilter) ([]domain.Job, error) {
	return s.store.ListJobsByHomeowner(ctx, homeownerID, filter)
}

func (s *JobsService) ListForWorker(ctx context.Context, workerID string, filter domain.JobListFilter) ([]domain.Job, error) {
	return s.store.ListJobsByWorker(ctx, workerID, filter)
}

// AvailableJobsQuery narrows the open-jobs board. Radius filtering happens in
// two steps: a bounding-box pre-filter in the store, then a precise haversine
// cut here.
type AvailableJobsQuery struct {
	Lat         *float64
	Lng         *float64
	RadiusMiles float64
	ServiceType domain.ServiceType
	MinPrice    *float64
	MaxPrice    *float64
	Limit       int
	Offset      int
}

func (s *JobsService) ListAvailable(ctx context.Context, query AvailableJobsQuery) ([]domain.Job, error) {
	filter := domain.AvailableJobsFilter{
		ServiceType: query.ServiceType,
		MinPrice:    query.MinPrice,
		MaxPrice:    query.MaxPrice,
		Limit:       query.Limit,
		Offset:      query.Offset,
	}

	withRadius := query.Lat != nil && query.Lng != nil && query.RadiusMiles > 0
	if withRadius {
		box := geo.BoxAround(*query.Lat, *query.Lng, query.RadiusMiles)
		filter.MinLat = &box.MinLat
		filter.MaxLat = &box.MaxLat
		filter.MinLng = &box.MinLng
		filter.MaxLng = &box.MaxLng
	}

	jobs, err := s.store.ListAvailableJobs(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list available jobs: %w", err)
	}
	if !withRadius {
		return jobs, nil
	}

	// The box pre-filter admits corners outside the circle.
	filtered := make([]domain.Job, 0, len(jobs))
	for _, job := range jobs {
		if job.Lat == nil || job.Lng == nil {
			continue
		}
		if geo.Distance(*query.Lat, *query.Lng, *job.Lat, *job.Lng) <= query.RadiusMiles {
			filtered = append(filtered, job)
		}
	}
	return filtered, nil
}

func (s *JobsService) CountByStatus(ctx context.Context, userID string, role domain.PartyRole) (map[domain.JobStatus]int, error) {
	return s.store.CountJobsByStatus(ctx, userID, role)
}
