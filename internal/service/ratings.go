package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/kidshovel/marketplace-back/internal/cache"
	"github.com/kidshovel/marketplace-back/internal/domain"
	"github.com/kidshovel/marketplace-back/internal/fees"
	"github.com/kidshovel/marketplace-back/internal/notify"
	"github.com/kidshovel/marketplace-back/internal/policy"
	"github.com/kidshovel/marketplace-back/internal/repository"
)

// RatingsService accepts ratings and owns settlement. The second rating on a
// job triggers the financial close; TrySettle is idempotent so duplicate
// triggers can never double-pay.
type RatingsService struct {
	store      repository.Store
	dispatcher *notify.Dispatcher
	summaries  *cache.SummaryCache
	logger     *log.Logger
}

func NewRatingsService(store repository.Store, dispatcher *notify.Dispatcher, summaries *cache.SummaryCache, logger *log.Logger) *RatingsService {
	return &RatingsService{store: store, dispatcher: dispatcher, summaries: summaries, logger: logger}
}

type SubmitRatingInput struct {
	JobID      string
	RaterID    string
	Rating     int
	ReviewText string
	IsPublic   bool

	// Homeowner-submitted sub-ratings.
	QualityRating       int
	PunctualityRating   int
	CommunicationRating int

	// Worker-submitted sub-ratings.
	PaymentRating   int
	AccuracyRating  int
	TreatmentRating int
}

// SubmitRating enforces the precondition chain, inserts the rating, refreshes
// the rated party's aggregates and attempts settlement when the job now has
// both ratings.
func (s *RatingsService) SubmitRating(ctx context.Context, input SubmitRatingInput) (*domain.Rating, error) {
	if input.Rating < 1 || input.Rating > 5 {
		return nil, ErrInvalidRating
	}
	if err := policy.EnforceReviewPolicy(input.ReviewText); err != nil {
		return nil, err
	}

	job, err := s.store.GetJob(ctx, input.JobID)
	if err != nil {
		return nil, err
	}
	if !job.IsParty(input.RaterID) {
		return nil, ErrNotParty
	}
	if job.Status != domain.JobStatusCompleted && job.Status != domain.JobStatusReviewed {
		return nil, ErrJobNotCompleted
	}

	raterType := domain.RaterTypeHomeowner
	ratedID := job.WorkerID
	ratedRole := domain.PartyRoleWorker
	if input.RaterID == job.WorkerID {
		raterType = domain.RaterTypeWorker
		ratedID = job.HomeownerID
		ratedRole = domain.PartyRoleHomeowner
	}

	rating := &domain.Rating{
		ID:                  uuid.NewString(),
		JobID:               job.ID,
		RaterID:             input.RaterID,
		RatedID:             ratedID,
		RaterType:           raterType,
		Rating:              input.Rating,
		ReviewText:          policy.MaskContactInfo(input.ReviewText),
		QualityRating:       input.QualityRating,
		PunctualityRating:   input.PunctualityRating,
		CommunicationRating: input.CommunicationRating,
		PaymentRating:       input.PaymentRating,
		AccuracyRating:      input.AccuracyRating,
		TreatmentRating:     input.TreatmentRating,
		IsPublic:            input.IsPublic,
		CreatedAt:           time.Now().UTC(),
	}

	if err := s.store.CreateRating(ctx, rating); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrAlreadyRated
		}
		return nil, fmt.Errorf("create rating: %w", err)
	}

	// Aggregates refresh on every rating, not only the settling one.
	if _, err := s.store.RefreshRatingAggregates(ctx, ratedID, ratedRole); err != nil && s.logger != nil {
		s.logger.Printf("refresh rating aggregates failed user_id=%s err=%v", ratedID, err)
	}

	ratings, err := s.store.ListRatingsForJob(ctx, job.ID)
	if err != nil {
		return rating, fmt.Errorf("count job ratings: %w", err)
	}
	if len(ratings) >= 2 {
		if _, err := s.TrySettle(ctx, job.ID); err != nil && s.logger != nil {
			s.logger.Printf("settlement failed job_id=%s err=%v", job.ID, err)
		}
	}

	return rating, nil
}

// TrySettle finalizes the payout for a completed job. It is safe to call from
// any trigger site any number of times: the completed → reviewed transition
// inside the store is the atomic gate, so exactly one caller ever creates the
// earning. A false result means the job was not in a settleable state or was
// already settled.
func (s *RatingsService) TrySettle(ctx context.Context, jobID string) (bool, error) {
	job, err := s.store.GetJob(ctx, jobID)
	if err != nil {
		return false, err
	}
	if job.Status != domain.JobStatusCompleted {
		return false, nil
	}
	if job.WorkerID == "" {
		return false, fmt.Errorf("job %s completed without a worker", jobID)
	}

	gross := job.FinalAmount()
	split := fees.Calculate(gross)
	if job.PaymentMethod == domain.PaymentMethodCash {
		split = fees.CashBreakdown(gross)
	}

	earning := domain.Earning{
		ID:                     uuid.NewString(),
		UserID:                 job.WorkerID,
		JobID:                  job.ID,
		GrossAmount:            fees.RoundCents(gross),
		PlatformFee:            split.PlatformFee,
		FutureFundContribution: split.FutureFund,
		NetAmount:              split.NetAmount,
		PaymentMethod:          job.PaymentMethod,
		Status:                 domain.EarningStatusPending,
		CreatedAt:              time.Now().UTC(),
	}

	settled, err := s.store.SettleJob(ctx, repository.SettleParams{
		JobID:       job.ID,
		WorkerID:    job.WorkerID,
		HomeownerID: job.HomeownerID,
		Earning:     earning,
	})
	if err != nil {
		return false, fmt.Errorf("settle job: %w", err)
	}
	if !settled {
		return false, nil
	}

	if s.summaries != nil {
		s.summaries.Invalidate(job.WorkerID)
	}
	if s.logger != nil {
		s.logger.Printf("job settled job_id=%s worker_id=%s net=%.2f method=%s",
			job.ID, job.WorkerID, earning.NetAmount, job.PaymentMethod)
	}
	s.dispatcher.Dispatch(ctx, job.WorkerID, domain.NotificationTypePaymentReceived,
		"Payment on the way",
		fmt.Sprintf("You earned $%.2f for this job.", earning.NetAmount),
		notify.JobMetadata(job.ID))

	return true, nil
}

func (s *RatingsService) RatingsForJob(ctx context.Context, jobID string) ([]domain.Rating, error) {
	return s.store.ListRatingsForJob(ctx, jobID)
}

func (s *RatingsService) RatingsForUser(ctx context.Context, userID string, publicOnly bool, limit, offset int) ([]domain.Rating, error) {
	return s.store.ListRatingsForUser(ctx, userID, publicOnly, limit, offset)
}

func (s *RatingsService) StatsForUser(ctx context.Context, userID string) (domain.RatingStats, error) {
	return s.store.UserRatingStats(ctx, userID)
}
