package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kidshovel/marketplace-back/internal/cache"
	"github.com/kidshovel/marketplace-back/internal/domain"
	"github.com/kidshovel/marketplace-back/internal/fees"
	"github.com/kidshovel/marketplace-back/internal/repository"
)

// EarningsService is the read side of the payout ledger plus the what-if
// growth calculator. Summaries are cached briefly; the dashboard polls
// them far more often than the underlying ledger changes.
type EarningsService struct {
	store     repository.Store
	summaries *cache.SummaryCache
}

func NewEarningsService(store repository.Store, summaries *cache.SummaryCache) *EarningsService {
	return &EarningsService{store: store, summaries: summaries}
}

func (s *EarningsService) List(ctx context.Context, workerID string, limit, offset int) ([]domain.Earning, error) {
	return s.store.ListEarningsByUser(ctx, workerID, limit, offset)
}

func (s *EarningsService) Summary(ctx context.Context, workerID string) (domain.EarningsSummary, error) {
	if s.summaries != nil {
		if summary, ok := s.summaries.Get(workerID); ok {
			return summary, nil
		}
	}
	summary, err := s.store.EarningsSummary(ctx, workerID)
	if err != nil {
		return domain.EarningsSummary{}, err
	}
	if s.summaries != nil {
		s.summaries.Set(workerID, summary)
	}
	return summary, nil
}

// InvalidateSummary drops a worker's cached summary after a payout lands.
func (s *EarningsService) InvalidateSummary(workerID string) {
	if s.summaries != nil {
		s.summaries.Invalidate(workerID)
	}
}

func (s *EarningsService) WeeklySeries(ctx context.Context, workerID string, weeks int) ([]domain.EarningsBucket, error) {
	return s.store.WeeklyEarnings(ctx, workerID, weeks)
}

func (s *EarningsService) MonthlySeries(ctx context.Context, workerID string, months int) ([]domain.EarningsBucket, error) {
	return s.store.MonthlyEarnings(ctx, workerID, months)
}

// SavingsGoalInput carries the writable fields of a new goal.
type SavingsGoalInput struct {
	Name         string
	Description  string
	TargetAmount float64
	TargetDate   *time.Time
	Priority     int
}

func (s *EarningsService) CreateGoal(ctx context.Context, workerID string, input SavingsGoalInput) (*domain.SavingsGoal, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: goal name is required", ErrValidation)
	}
	if input.TargetAmount <= 0 {
		return nil, fmt.Errorf("%w: target amount must be positive", ErrValidation)
	}

	now := time.Now().UTC()
	goal := &domain.SavingsGoal{
		ID:           uuid.NewString(),
		UserID:       workerID,
		Name:         name,
		Description:  strings.TrimSpace(input.Description),
		TargetAmount: fees.RoundCents(input.TargetAmount),
		TargetDate:   input.TargetDate,
		Priority:     input.Priority,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.store.CreateSavingsGoal(ctx, goal); err != nil {
		return nil, err
	}
	return goal, nil
}

// ListGoals returns a worker's goals alongside their aggregate progress.
func (s *EarningsService) ListGoals(ctx context.Context, workerID string) ([]domain.SavingsGoal, domain.GoalProgress, error) {
	goals, err := s.store.ListSavingsGoalsByUser(ctx, workerID)
	if err != nil {
		return nil, domain.GoalProgress{}, err
	}
	progress, err := s.store.GoalProgress(ctx, workerID)
	if err != nil {
		return nil, domain.GoalProgress{}, err
	}
	return goals, progress, nil
}

func (s *EarningsService) GetGoal(ctx context.Context, workerID, goalID string) (*domain.SavingsGoal, error) {
	return s.ownedGoal(ctx, workerID, goalID)
}

func (s *EarningsService) UpdateGoal(ctx context.Context, workerID, goalID string, update repository.SavingsGoalUpdate) (*domain.SavingsGoal, error) {
	if _, err := s.ownedGoal(ctx, workerID, goalID); err != nil {
		return nil, err
	}
	if update.Name != nil && strings.TrimSpace(*update.Name) == "" {
		return nil, fmt.Errorf("%w: goal name is required", ErrValidation)
	}
	if update.TargetAmount != nil && *update.TargetAmount <= 0 {
		return nil, fmt.Errorf("%w: target amount must be positive", ErrValidation)
	}
	if err := s.store.UpdateSavingsGoal(ctx, goalID, update); err != nil {
		return nil, err
	}
	return s.store.GetSavingsGoal(ctx, goalID)
}

// AddToGoal deposits money toward a goal. The store flips achieved once the
// saved amount reaches the target.
func (s *EarningsService) AddToGoal(ctx context.Context, workerID, goalID string, amount float64) (*domain.SavingsGoal, error) {
	if amount <= 0 {
		return nil, fmt.Errorf("%w: deposit amount must be positive", ErrValidation)
	}
	if _, err := s.ownedGoal(ctx, workerID, goalID); err != nil {
		return nil, err
	}
	return s.store.AddToSavingsGoal(ctx, goalID, amount)
}

func (s *EarningsService) DeleteGoal(ctx context.Context, workerID, goalID string) error {
	if _, err := s.ownedGoal(ctx, workerID, goalID); err != nil {
		return err
	}
	return s.store.DeleteSavingsGoal(ctx, goalID)
}

func (s *EarningsService) ownedGoal(ctx context.Context, workerID, goalID string) (*domain.SavingsGoal, error) {
	goal, err := s.store.GetSavingsGoal(ctx, goalID)
	if err != nil {
		return nil, err
	}
	if goal.UserID != workerID {
		return nil, ErrNotOwner
	}
	return goal, nil
}

// ProjectGrowth answers the interest calculator with caller-supplied inputs.
func (s *EarningsService) ProjectGrowth(principal float64, years int, annualRate float64) (float64, error) {
	if principal < 0 {
		return 0, fmt.Errorf("%w: principal must not be negative", ErrValidation)
	}
	if years < 0 {
		return 0, fmt.Errorf("%w: years must not be negative", ErrValidation)
	}
	if annualRate < -1 {
		return 0, fmt.Errorf("%w: annual rate below -100%%", ErrValidation)
	}
	return fees.RoundCents(fees.ProjectGrowth(principal, years, annualRate)), nil
}
