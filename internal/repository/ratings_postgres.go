package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/kidshovel/marketplace-back/internal/domain"
)

const ratingColumns = `
	id, job_id, rater_id, rated_id, rater_type, rating, review_text,
	quality_rating, punctuality_rating, communication_rating,
	payment_rating, accuracy_rating, treatment_rating,
	is_public, created_at`

func (s *PostgresStore) CreateRating(ctx context.Context, rating *domain.Rating) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO ratings (`+ratingColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)
	`,
		rating.ID,
		rating.JobID,
		rating.RaterID,
		rating.RatedID,
		string(rating.RaterType),
		rating.Rating,
		rating.ReviewText,
		rating.QualityRating,
		rating.PunctualityRating,
		rating.CommunicationRating,
		rating.PaymentRating,
		rating.AccuracyRating,
		rating.TreatmentRating,
		rating.IsPublic,
		rating.CreatedAt,
	)
	if err != nil {
		// ratings carry a unique (job_id, rater_id) constraint.
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("insert rating: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetRatingByJobAndRater(ctx context.Context, jobID, raterID string) (*domain.Rating, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+ratingColumns+` FROM ratings WHERE job_id = $1 AND rater_id = $2`,
		jobID, raterID,
	)
	rating, err := scanRating(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("query rating: %w", err)
	}
	return rating, nil
}

func (s *PostgresStore) ListRatingsForJob(ctx context.Context, jobID string) ([]domain.Rating, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+ratingColumns+` FROM ratings WHERE job_id = $1 ORDER BY created_at DESC`,
		jobID,
	)
	if err != nil {
		return nil, fmt.Errorf("list job ratings: %w", err)
	}
	defer rows.Close()
	return collectRatings(rows)
}

func (s *PostgresStore) ListRatingsForUser(ctx context.Context, userID string, publicOnly bool, limit, offset int) ([]domain.Rating, error) {
	query := `SELECT ` + ratingColumns + ` FROM ratings WHERE rated_id = $1`
	if publicOnly {
		query += ` AND is_public`
	}
	if limit <= 0 {
		limit = 50
	}
	query += ` ORDER BY created_at DESC LIMIT $2 OFFSET $3`

	rows, err := s.pool.Query(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list user ratings: %w", err)
	}
	defer rows.Close()
	return collectRatings(rows)
}

func (s *PostgresStore) UserRatingStats(ctx context.Context, userID string) (domain.RatingStats, error) {
	stats := domain.RatingStats{Distribution: map[int]int{1: 0, 2: 0, 3: 0, 4: 0, 5: 0}}

	err := s.pool.QueryRow(ctx, `
		SELECT COALESCE(AVG(rating), 0), COUNT(*)
		FROM ratings
		WHERE rated_id = $1
	`, userID).Scan(&stats.AvgRating, &stats.TotalRatings)
	if err != nil {
		return domain.RatingStats{}, fmt.Errorf("query rating stats: %w", err)
	}

	rows, err := s.pool.Query(ctx, `
		SELECT rating, COUNT(*)
		FROM ratings
		WHERE rated_id = $1
		GROUP BY rating
	`, userID)
	if err != nil {
		return domain.RatingStats{}, fmt.Errorf("query rating distribution: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var value, count int
		if err := rows.Scan(&value, &count); err != nil {
			return domain.RatingStats{}, fmt.Errorf("scan rating distribution: %w", err)
		}
		stats.Distribution[value] = count
	}
	if rows.Err() != nil {
		return domain.RatingStats{}, fmt.Errorf("iterate rating distribution: %w", rows.Err())
	}
	return stats, nil
}

func (s *PostgresStore) RefreshRatingAggregates(ctx context.Context, userID string, role domain.PartyRole) (domain.RatingStats, error) {
	table := "homeowner_profiles"
	if role == domain.PartyRoleWorker {
		table = "worker_profiles"
	}

	// Re-aggregating from the rating rows inside one statement keeps the
	// counters correct under concurrent raters; no cached value is read back.
	_, err := s.pool.Exec(ctx, `
		UPDATE `+table+`
		SET avg_rating = (SELECT COALESCE(AVG(rating), 0) FROM ratings WHERE rated_id = $1),
			total_ratings = (SELECT COUNT(*) FROM ratings WHERE rated_id = $1),
			updated_at = $2
		WHERE user_id = $1
	`, userID, time.Now().UTC())
	if err != nil {
		return domain.RatingStats{}, fmt.Errorf("refresh rating aggregates: %w", err)
	}

	return s.UserRatingStats(ctx, userID)
}

func collectRatings(rows pgx.Rows) ([]domain.Rating, error) {
	ratings := make([]domain.Rating, 0)
	for rows.Next() {
		rating, err := scanRating(rows)
		if err != nil {
			return nil, fmt.Errorf("scan rating: %w", err)
		}
		ratings = append(ratings, *rating)
	}
	if rows.Err() != nil {
		return nil, fmt.Errorf("iterate ratings: %w", rows.Err())
	}
	return ratings, nil
}

func scanRating(row pgx.Row) (*domain.Rating, error) {
	var (
		rating    domain.Rating
		raterType string
	)
	err := row.Scan(
		&rating.ID,
		&rating.JobID,
		&rating.RaterID,
		&rating.RatedID,
		&raterType,
		&rating.Rating,
		&rating.ReviewText,
		&rating.QualityRating,
		&rating.PunctualityRating,
		&rating.CommunicationRating,
		&rating.PaymentRating,
		&rating.AccuracyRating,
		&rating.TreatmentRating,
		&rating.IsPublic,
		&rating.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	rating.RaterType = domain.RaterType(raterType)
	return &rating, nil
}
