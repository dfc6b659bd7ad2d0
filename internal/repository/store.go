package repository

import (
	"context"
	"errors"
	"time"

	"github.com/kidshovel/marketplace-back/internal/domain"
)

var (
	ErrNotFound = errors.New("resource not found")
	// ErrDuplicate is returned when an insert would violate a uniqueness
	// invariant (one rating per rater per job, one earning per job).
	ErrDuplicate = errors.New("resource already exists")
)

// JobStore persists jobs and executes the guarded lifecycle transitions.
// Every transition method pairs its precondition with the write in a single
// atomic operation against the store; a false return means the guard did not
// hold (expected under races), never an infrastructure fault.
type JobStore interface {
	CreateJob(ctx context.Context, job *domain.Job) error
	GetJob(ctx context.Context, jobID string) (*domain.Job, error)

	// ClaimJob succeeds only while the job is still posted and unassigned.
	// Exactly one of N concurrent claimants wins.
	ClaimJob(ctx context.Context, jobID, workerID string) (bool, error)
	// ConfirmJob moves claimed → confirmed and records the accepted price
	// when priceAccepted > 0. The caller verifies the actor is a party.
	ConfirmJob(ctx context.Context, jobID string, priceAccepted float64) (bool, error)
	// StartJob moves confirmed → in_progress for the assigned worker.
	StartJob(ctx context.Context, jobID, workerID, beforePhotoURL string) (bool, error)
	// CompleteJob moves in_progress → completed for the assigned worker.
	CompleteJob(ctx context.Context, jobID, workerID, afterPhotoURL, workerNotes string) (bool, error)
	// CancelJob marks the job cancelled unless it already reached completed
	// or reviewed. Only a party to the job may cancel.
	CancelJob(ctx context.Context, jobID, actorID, reason string) (bool, error)
	// MarkReviewed moves completed → reviewed. Settlement uses this
	// transition as its atomic once-only gate.
	MarkReviewed(ctx context.Context, jobID string) (bool, error)

	UpdatePaymentStatus(ctx context.Context, jobID string, status domain.PaymentStatus, paymentRef string) error

	ListJobsByHomeowner(ctx context.Context, homeownerID string, filter domain.JobListFilter) ([]domain.Job, error)
	ListJobsByWorker(ctx context.Context, workerID string, filter domain.JobListFilter) ([]domain.Job, error)
	ListAvailableJobs(ctx context.Context, filter domain.AvailableJobsFilter) ([]domain.Job, error)
	CountJobsByStatus(ctx context.Context, userID string, role domain.PartyRole) (map[domain.JobStatus]int, error)
}

// RatingStore persists ratings and maintains the rated party's aggregates.
type RatingStore interface {
	// CreateRating inserts the rating; ErrDuplicate when the rater already
	// rated this job.
	CreateRating(ctx context.Context, rating *domain.Rating) error
	GetRatingByJobAndRater(ctx context.Context, jobID, raterID string) (*domain.Rating, error)
	ListRatingsForJob(ctx context.Context, jobID string) ([]domain.Rating, error)
	ListRatingsForUser(ctx context.Context, userID string, publicOnly bool, limit, offset int) ([]domain.Rating, error)
	UserRatingStats(ctx context.Context, userID string) (domain.RatingStats, error)
	// RefreshRatingAggregates recomputes avg_rating/total_ratings from the
	// rating rows and writes them onto the profile in one statement, so
	// concurrent raters cannot lose each other's updates.
	RefreshRatingAggregates(ctx context.Context, userID string, role domain.PartyRole) (domain.RatingStats, error)
}

// EarningsStore is the append-only payout ledger plus its projections.
type EarningsStore interface {
	// CreateEarning inserts the payout record and applies the worker profile
	// increments (total_earnings, future_fund_balance, completed_jobs_count)
	// in the same atomic unit. ErrDuplicate when the job already settled.
	CreateEarning(ctx context.Context, earning *domain.Earning) error
	UpdateEarningStatus(ctx context.Context, earningID string, status domain.EarningStatus, transferRef string) error
	GetEarning(ctx context.Context, earningID string) (*domain.Earning, error)
	GetEarningByJob(ctx context.Context, jobID string) (*domain.Earning, error)
	ListEarningsByUser(ctx context.Context, userID string, limit, offset int) ([]domain.Earning, error)
	EarningsSummary(ctx context.Context, userID string) (domain.EarningsSummary, error)
	WeeklyEarnings(ctx context.Context, userID string, weeks int) ([]domain.EarningsBucket, error)
	MonthlyEarnings(ctx context.Context, userID string, months int) ([]domain.EarningsBucket, error)
}

// SavingsGoalUpdate carries the mutable goal fields for a partial update.
// Nil fields are left untouched.
type SavingsGoalUpdate struct {
	Name         *string
	Description  *string
	TargetAmount *float64
	TargetDate   *time.Time
	Priority     *int
}

// SavingsGoalStore persists workers' savings goals.
type SavingsGoalStore interface {
	CreateSavingsGoal(ctx context.Context, goal *domain.SavingsGoal) error
	GetSavingsGoal(ctx context.Context, goalID string) (*domain.SavingsGoal, error)
	// ListSavingsGoalsByUser orders by priority descending, newest first
	// within a priority.
	ListSavingsGoalsByUser(ctx context.Context, userID string) ([]domain.SavingsGoal, error)
	UpdateSavingsGoal(ctx context.Context, goalID string, update SavingsGoalUpdate) error
	// AddToSavingsGoal increments the saved amount and flips achieved in the
	// same atomic operation once the target is reached. Returns the updated
	// goal.
	AddToSavingsGoal(ctx context.Context, goalID string, amount float64) (*domain.SavingsGoal, error)
	DeleteSavingsGoal(ctx context.Context, goalID string) error
	GoalProgress(ctx context.Context, userID string) (domain.GoalProgress, error)
}

// ProfileStore persists the per-user aggregate counters.
type ProfileStore interface {
	CreateWorkerProfile(ctx context.Context, profile *domain.WorkerProfile) error
	CreateHomeownerProfile(ctx context.Context, profile *domain.HomeownerProfile) error
	GetWorkerProfile(ctx context.Context, userID string) (*domain.WorkerProfile, error)
	GetHomeownerProfile(ctx context.Context, userID string) (*domain.HomeownerProfile, error)
	IncrementJobsPosted(ctx context.Context, homeownerUserID string) error
}

// SettleParams carries everything settlement writes once it wins the
// reviewed gate. The earning's amounts are computed by the coordinator.
type SettleParams struct {
	JobID       string
	WorkerID    string
	HomeownerID string
	Earning     domain.Earning
}

// SettlementStore performs the one-shot financial close of a job: the
// completed → reviewed transition, the earning insert and both parties'
// counter increments happen as a single atomic unit. A false return means
// another caller already settled the job; no state was changed.
type SettlementStore interface {
	SettleJob(ctx context.Context, params SettleParams) (bool, error)
}

// Store is the full persistence surface consumed by the service layer.
type Store interface {
	JobStore
	RatingStore
	EarningsStore
	SavingsGoalStore
	ProfileStore
	SettlementStore
}
