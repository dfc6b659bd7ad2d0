package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/kidshovel/marketplace-back/internal/domain"
)

// PostgresStore backs the marketplace with Postgres. Guarded transitions are
// single conditional UPDATEs (the WHERE clause carries the guard, RowsAffected
// reports the outcome); multi-table units such as settlement run in one
// transaction.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("create pg pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping pg: %w", err)
	}
	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) Close() {
	s.pool.Close()
}

// --- profiles ---

func (s *PostgresStore) CreateWorkerProfile(ctx context.Context, profile *domain.WorkerProfile) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO worker_profiles (
			id, user_id, bio, travel_radius_miles, available_now, verified,
			avg_rating, total_ratings, completed_jobs_count, total_earnings,
			future_fund_balance, created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
	`,
		profile.ID,
		profile.UserID,
		profile.Bio,
		profile.TravelRadiusMiles,
		profile.AvailableNow,
		profile.Verified,
		profile.AvgRating,
		profile.TotalRatings,
		profile.CompletedJobsCount,
		profile.TotalEarnings,
		profile.FutureFundBalance,
		profile.CreatedAt,
		profile.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert worker profile: %w", err)
	}
	return nil
}

func (s *PostgresStore) CreateHomeownerProfile(ctx context.Context, profile *domain.HomeownerProfile) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO homeowner_profiles (
			id, user_id, property_type, driveway_size, special_instructions,
			avg_rating, total_ratings, jobs_posted_count, jobs_completed_count,
			created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
	`,
		profile.ID,
		profile.UserID,
		profile.PropertyType,
		profile.DrivewaySize,
		profile.SpecialInstructions,
		profile.AvgRating,
		profile.TotalRatings,
		profile.JobsPostedCount,
		profile.JobsCompletedCount,
		profile.CreatedAt,
		profile.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert homeowner profile: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetWorkerProfile(ctx context.Context, userID string) (*domain.WorkerProfile, error) {
	var profile domain.WorkerProfile
	err := s.pool.QueryRow(ctx, `
		SELECT id, user_id, bio, travel_radius_miles, available_now, verified,
			avg_rating, total_ratings, completed_jobs_count, total_earnings,
			future_fund_balance, created_at, updated_at
		FROM worker_profiles
		WHERE user_id = $1
	`, userID).Scan(
		&profile.ID,
		&profile.UserID,
		&profile.Bio,
		&profile.TravelRadiusMiles,
		&profile.AvailableNow,
		&profile.Verified,
		&profile.AvgRating,
		&profile.TotalRatings,
		&profile.CompletedJobsCount,
		&profile.TotalEarnings,
		&profile.FutureFundBalance,
		&profile.CreatedAt,
		&profile.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("query worker profile: %w", err)
	}
	return &profile, nil
}

func (s *PostgresStore) GetHomeownerProfile(ctx context.Context, userID string) (*domain.HomeownerProfile, error) {
	var profile domain.HomeownerProfile
	err := s.pool.QueryRow(ctx, `
		SELECT id, user_id, property_type, driveway_size, special_instructions,
			avg_rating, total_ratings, jobs_posted_count, jobs_completed_count,
			created_at, updated_at
		FROM homeowner_profiles
		WHERE user_id = $1
	`, userID).Scan(
		&profile.ID,
		&profile.UserID,
		&profile.PropertyType,
		&profile.DrivewaySize,
		&profile.SpecialInstructions,
		&profile.AvgRating,
		&profile.TotalRatings,
		&profile.JobsPostedCount,
		&profile.JobsCompletedCount,
		&profile.CreatedAt,
		&profile.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("query homeowner profile: %w", err)
	}
	return &profile, nil
}

func (s *PostgresStore) IncrementJobsPosted(ctx context.Context, homeownerUserID string) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE homeowner_profiles
		SET jobs_posted_count = jobs_posted_count + 1, updated_at = $2
		WHERE user_id = $1
	`, homeownerUserID, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("increment jobs posted: %w", err)
	}
	return nil
}

// --- helpers ---

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func nullString(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}

func nullFloat(value float64) *float64 {
	if value == 0 {
		return nil
	}
	return &value
}

func stringOrEmpty(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}

func floatOrZero(value *float64) float64 {
	if value == nil {
		return 0
	}
	return *value
}
