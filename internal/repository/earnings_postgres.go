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

const earningColumns = `
	id, user_id, job_id, gross_amount, platform_fee, future_fund_contribution,
	net_amount, payment_method, status, transfer_ref, notes, created_at`

func (s *PostgresStore) CreateEarning(ctx context.Context, earning *domain.Earning) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin earning tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := insertEarning(ctx, tx, earning); err != nil {
		return err
	}
	if err := applyWorkerPayout(ctx, tx, earning); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit earning tx: %w", err)
	}
	return nil
}

func insertEarning(ctx context.Context, tx pgx.Tx, earning *domain.Earning) error {
	if earning.Status == "" {
		earning.Status = domain.EarningStatusPending
	}
	if earning.CreatedAt.IsZero() {
		earning.CreatedAt = time.Now().UTC()
	}

	_, err := tx.Exec(ctx, `
		INSERT INTO earnings (`+earningColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
	`,
		earning.ID,
		earning.UserID,
		earning.JobID,
		earning.GrossAmount,
		earning.PlatformFee,
		earning.FutureFundContribution,
		earning.NetAmount,
		string(earning.PaymentMethod),
		string(earning.Status),
		earning.TransferRef,
		earning.Notes,
		earning.CreatedAt,
	)
	if err != nil {
		// earnings.job_id carries a unique constraint: one payout per job.
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("insert earning: %w", err)
	}
	return nil
}

func applyWorkerPayout(ctx context.Context, tx pgx.Tx, earning *domain.Earning) error {
	_, err := tx.Exec(ctx, `
		UPDATE worker_profiles
		SET total_earnings = ROUND((total_earnings + $2)::numeric, 2),
			future_fund_balance = ROUND((future_fund_balance + $3)::numeric, 2),
			completed_jobs_count = completed_jobs_count + 1,
			updated_at = $4
		WHERE user_id = $1
	`, earning.UserID, earning.NetAmount, earning.FutureFundContribution, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("apply worker payout: %w", err)
	}
	return nil
}

func (s *PostgresStore) UpdateEarningStatus(ctx context.Context, earningID string, status domain.EarningStatus, transferRef string) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE earnings
		SET status = $2,
			transfer_ref = COALESCE(NULLIF($3, ''), transfer_ref)
		WHERE id = $1
	`, earningID, string(status), transferRef)
	if err != nil {
		return fmt.Errorf("update earning status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) GetEarning(ctx context.Context, earningID string) (*domain.Earning, error) {
	return s.queryEarning(ctx, `SELECT `+earningColumns+` FROM earnings WHERE id = $1`, earningID)
}

func (s *PostgresStore) GetEarningByJob(ctx context.Context, jobID string) (*domain.Earning, error) {
	return s.queryEarning(ctx, `SELECT `+earningColumns+` FROM earnings WHERE job_id = $1`, jobID)
}

func (s *PostgresStore) queryEarning(ctx context.Context, query string, arg any) (*domain.Earning, error) {
	earning, err := scanEarning(s.pool.QueryRow(ctx, query, arg))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("query earning: %w", err)
	}
	return earning, nil
}

func (s *PostgresStore) ListEarningsByUser(ctx context.Context, userID string, limit, offset int) ([]domain.Earning, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx, `
		SELECT `+earningColumns+`
		FROM earnings
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list earnings: %w", err)
	}
	defer rows.Close()

	earnings := make([]domain.Earning, 0)
	for rows.Next() {
		earning, err := scanEarning(rows)
		if err != nil {
			return nil, fmt.Errorf("scan earning: %w", err)
		}
		earnings = append(earnings, *earning)
	}
	if rows.Err() != nil {
		return nil, fmt.Errorf("iterate earnings: %w", rows.Err())
	}
	return earnings, nil
}

func (s *PostgresStore) EarningsSummary(ctx context.Context, userID string) (domain.EarningsSummary, error) {
	now := time.Now().UTC()
	weekStart := startOfWeek(now)
	monthStart := startOfMonth(now)

	var summary domain.EarningsSummary
	err := s.pool.QueryRow(ctx, `
		SELECT
			COALESCE(SUM(net_amount), 0),
			COALESCE(SUM(net_amount) FILTER (WHERE created_at >= $2), 0),
			COALESCE(SUM(net_amount) FILTER (WHERE created_at >= $3), 0),
			COUNT(*)
		FROM earnings
		WHERE user_id = $1 AND status = 'completed'
	`, userID, monthStart, weekStart).Scan(
		&summary.TotalEarned,
		&summary.ThisMonth,
		&summary.ThisWeek,
		&summary.JobsCompleted,
	)
	if err != nil {
		return domain.EarningsSummary{}, fmt.Errorf("query earnings summary: %w", err)
	}

	summary.TotalEarned = fees.RoundCents(summary.TotalEarned)
	summary.ThisMonth = fees.RoundCents(summary.ThisMonth)
	summary.ThisWeek = fees.RoundCents(summary.ThisWeek)
	if summary.JobsCompleted > 0 {
		summary.AveragePerJob = fees.RoundCents(summary.TotalEarned / float64(summary.JobsCompleted))
	}

	profile, err := s.GetWorkerProfile(ctx, userID)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return domain.EarningsSummary{}, err
	}
	if profile != nil {
		summary.FutureFundBalance = profile.FutureFundBalance
	}
	summary.FutureFundProjected = fees.RoundCents(
		fees.ProjectGrowth(summary.FutureFundBalance, fees.FutureFundProjectionYears, fees.FutureFundGrowthRate),
	)
	return summary, nil
}

func (s *PostgresStore) WeeklyEarnings(ctx context.Context, userID string, weeks int) ([]domain.EarningsBucket, error) {
	if weeks <= 0 {
		weeks = 12
	}
	cutoff := time.Now().UTC().AddDate(0, 0, -weeks*7)

	// Postgres weeks start Monday; shifting by a day makes the buckets start
	// on Sunday to match how the app presents a week.
	return s.bucketEarnings(ctx, `
		SELECT date_trunc('week', created_at + interval '1 day') - interval '1 day' AS period_start,
			SUM(net_amount)
		FROM earnings
		WHERE user_id = $1 AND status = 'completed' AND created_at >= $2
		GROUP BY period_start
		ORDER BY period_start ASC
	`, userID, cutoff)
}

func (s *PostgresStore) MonthlyEarnings(ctx context.Context, userID string, months int) ([]domain.EarningsBucket, error) {
	if months <= 0 {
		months = 12
	}
	cutoff := time.Now().UTC().AddDate(0, -months, 0)

	return s.bucketEarnings(ctx, `
		SELECT date_trunc('month', created_at) AS period_start,
			SUM(net_amount)
		FROM earnings
		WHERE user_id = $1 AND status = 'completed' AND created_at >= $2
		GROUP BY period_start
		ORDER BY period_start ASC
	`, userID, cutoff)
}

func (s *PostgresStore) bucketEarnings(ctx context.Context, query, userID string, cutoff time.Time) ([]domain.EarningsBucket, error) {
	rows, err := s.pool.Query(ctx, query, userID, cutoff)
	if err != nil {
		return nil, fmt.Errorf("query earnings buckets: %w", err)
	}
	defer rows.Close()

	buckets := make([]domain.EarningsBucket, 0)
	for rows.Next() {
		var bucket domain.EarningsBucket
		if err := rows.Scan(&bucket.PeriodStart, &bucket.Amount); err != nil {
			return nil, fmt.Errorf("scan earnings bucket: %w", err)
		}
		bucket.Amount = fees.RoundCents(bucket.Amount)
		buckets = append(buckets, bucket)
	}
	if rows.Err() != nil {
		return nil, fmt.Errorf("iterate earnings buckets: %w", rows.Err())
	}
	return buckets, nil
}

// SettleJob closes a job financially: the completed → reviewed transition,
// the payout insert and both parties' counter increments commit together or
// not at all. Losing the reviewed gate returns false with nothing written.
func (s *PostgresStore) SettleJob(ctx context.Context, params SettleParams) (bool, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("begin settle tx: %w", err)
	}
	defer tx.Rollback(ctx)

	now := time.Now().UTC()
	tag, err := tx.Exec(ctx, `
		UPDATE jobs
		SET status = 'reviewed', reviewed_at = $2, updated_at = $2
		WHERE id = $1 AND status = 'completed'
	`, params.JobID, now)
	if err != nil {
		return false, fmt.Errorf("settle reviewed gate: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return false, nil
	}

	if err := insertEarning(ctx, tx, &params.Earning); err != nil {
		return false, err
	}
	if err := applyWorkerPayout(ctx, tx, &params.Earning); err != nil {
		return false, err
	}

	_, err = tx.Exec(ctx, `
		UPDATE homeowner_profiles
		SET jobs_completed_count = jobs_completed_count + 1, updated_at = $2
		WHERE user_id = $1
	`, params.HomeownerID, now)
	if err != nil {
		return false, fmt.Errorf("increment homeowner completions: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("commit settle tx: %w", err)
	}
	return true, nil
}

func scanEarning(row pgx.Row) (*domain.Earning, error) {
	var (
		earning       domain.Earning
		paymentMethod string
		status        string
		transferRef   *string
		notes         *string
	)
	err := row.Scan(
		&earning.ID,
		&earning.UserID,
		&earning.JobID,
		&earning.GrossAmount,
		&earning.PlatformFee,
		&earning.FutureFundContribution,
		&earning.NetAmount,
		&paymentMethod,
		&status,
		&transferRef,
		&notes,
		&earning.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	earning.PaymentMethod = domain.PaymentMethod(paymentMethod)
	earning.Status = domain.EarningStatus(status)
	earning.TransferRef = stringOrEmpty(transferRef)
	earning.Notes = stringOrEmpty(notes)
	return &earning, nil
}
