package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/kidshovel/marketplace-back/internal/domain"
	"github.com/kidshovel/marketplace-back/internal/fees"
)

const savingsGoalColumns = `
	id, user_id, name, description, target_amount, current_amount,
	target_date, priority, achieved, achieved_at, created_at, updated_at`

func (s *PostgresStore) CreateSavingsGoal(ctx context.Context, goal *domain.SavingsGoal) error {
	now := time.Now().UTC()
	if goal.CreatedAt.IsZero() {
		goal.CreatedAt = now
	}
	if goal.UpdatedAt.IsZero() {
		goal.UpdatedAt = now
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO savings_goals (`+savingsGoalColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
	`,
		goal.ID,
		goal.UserID,
		goal.Name,
		nullString(goal.Description),
		goal.TargetAmount,
		goal.CurrentAmount,
		goal.TargetDate,
		goal.Priority,
		goal.Achieved,
		goal.AchievedAt,
		goal.CreatedAt,
		goal.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert savings goal: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetSavingsGoal(ctx context.Context, goalID string) (*domain.SavingsGoal, error) {
	goal, err := scanSavingsGoal(s.pool.QueryRow(ctx, `
		SELECT `+savingsGoalColumns+` FROM savings_goals WHERE id = $1
	`, goalID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("query savings goal: %w", err)
	}
	return goal, nil
}

func (s *PostgresStore) ListSavingsGoalsByUser(ctx context.Context, userID string) ([]domain.SavingsGoal, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+savingsGoalColumns+`
		FROM savings_goals
		WHERE user_id = $1
		ORDER BY priority DESC, created_at DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("list savings goals: %w", err)
	}
	defer rows.Close()

	goals := make([]domain.SavingsGoal, 0)
	for rows.Next() {
		goal, err := scanSavingsGoal(rows)
		if err != nil {
			return nil, fmt.Errorf("scan savings goal: %w", err)
		}
		goals = append(goals, *goal)
	}
	if rows.Err() != nil {
		return nil, fmt.Errorf("iterate savings goals: %w", rows.Err())
	}
	return goals, nil
}

func (s *PostgresStore) UpdateSavingsGoal(ctx context.Context, goalID string, update SavingsGoalUpdate) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE savings_goals
		SET name = COALESCE($2, name),
			description = COALESCE($3, description),
			target_amount = COALESCE($4, target_amount),
			target_date = COALESCE($5, target_date),
			priority = COALESCE($6, priority),
			updated_at = $7
		WHERE id = $1
	`,
		goalID,
		update.Name,
		update.Description,
		update.TargetAmount,
		update.TargetDate,
		update.Priority,
		time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("update savings goal: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// AddToSavingsGoal runs as one conditional UPDATE so a concurrent deposit
// cannot flip achieved twice or lose an increment.
func (s *PostgresStore) AddToSavingsGoal(ctx context.Context, goalID string, amount float64) (*domain.SavingsGoal, error) {
	now := time.Now().UTC()
	goal, err := scanSavingsGoal(s.pool.QueryRow(ctx, `
		UPDATE savings_goals
		SET current_amount = ROUND((current_amount + $2)::numeric, 2),
			achieved_at = CASE
				WHEN NOT achieved AND ROUND((current_amount + $2)::numeric, 2) >= target_amount THEN $3
				ELSE achieved_at
			END,
			achieved = achieved OR ROUND((current_amount + $2)::numeric, 2) >= target_amount,
			updated_at = $3
		WHERE id = $1
		RETURNING `+savingsGoalColumns+`
	`, goalID, amount, now))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("add to savings goal: %w", err)
	}
	return goal, nil
}

func (s *PostgresStore) DeleteSavingsGoal(ctx context.Context, goalID string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM savings_goals WHERE id = $1`, goalID)
	if err != nil {
		return fmt.Errorf("delete savings goal: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) GoalProgress(ctx context.Context, userID string) (domain.GoalProgress, error) {
	var progress domain.GoalProgress
	err := s.pool.QueryRow(ctx, `
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE achieved),
			COALESCE(SUM(target_amount), 0),
			COALESCE(SUM(current_amount), 0)
		FROM savings_goals
		WHERE user_id = $1
	`, userID).Scan(
		&progress.TotalGoals,
		&progress.AchievedGoals,
		&progress.TotalTarget,
		&progress.TotalSaved,
	)
	if err != nil {
		return domain.GoalProgress{}, fmt.Errorf("query goal progress: %w", err)
	}

	progress.TotalTarget = fees.RoundCents(progress.TotalTarget)
	progress.TotalSaved = fees.RoundCents(progress.TotalSaved)
	if progress.TotalTarget > 0 {
		progress.OverallProgress = progress.TotalSaved / progress.TotalTarget * 100
	}
	return progress, nil
}

func scanSavingsGoal(row pgx.Row) (*domain.SavingsGoal, error) {
	var (
		goal        domain.SavingsGoal
		description *string
	)
	err := row.Scan(
		&goal.ID,
		&goal.UserID,
		&goal.Name,
		&description,
		&goal.TargetAmount,
		&goal.CurrentAmount,
		&goal.TargetDate,
		&goal.Priority,
		&goal.Achieved,
		&goal.AchievedAt,
		&goal.CreatedAt,
		&goal.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	goal.Description = stringOrEmpty(description)
	return &goal, nil
}
