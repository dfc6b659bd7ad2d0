package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/kidshovel/marketplace-back/internal/domain"
)

const jobColumns = `
	id, homeowner_id, worker_id, status, service_type,
	address, city, zip, lat, lng,
	description, special_instructions,
	price_offered, price_accepted, price_final,
	payment_method, payment_status, payment_ref,
	scheduled_for, is_asap,
	before_photo_url, after_photo_url, worker_notes, homeowner_notes,
	claimed_at, confirmed_at, started_at, completed_at, reviewed_at,
	cancelled_at, cancelled_by, cancellation_reason,
	created_at, updated_at`

func (s *PostgresStore) CreateJob(ctx context.Context, job *domain.Job) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO jobs (`+jobColumns+`)
		VALUES (
			$1,$2,$3,$4,$5,
			$6,$7,$8,$9,$10,
			$11,$12,
			$13,$14,$15,
			$16,$17,$18,
			$19,$20,
			$21,$22,$23,$24,
			$25,$26,$27,$28,$29,
			$30,$31,$32,
			$33,$34
		)
	`,
		job.ID,
		job.HomeownerID,
		nullString(job.WorkerID),
		string(job.Status),
		string(job.ServiceType),
		job.Address,
		job.City,
		job.Zip,
		job.Lat,
		job.Lng,
		job.Description,
		job.SpecialInstructions,
		nullFloat(job.PriceOffered),
		nullFloat(job.PriceAccepted),
		nullFloat(job.PriceFinal),
		string(job.PaymentMethod),
		string(job.PaymentStatus),
		nullString(job.PaymentRef),
		job.ScheduledFor,
		job.IsASAP,
		nullString(job.BeforePhotoURL),
		nullString(job.AfterPhotoURL),
		job.WorkerNotes,
		job.HomeownerNotes,
		job.ClaimedAt,
		job.ConfirmedAt,
		job.StartedAt,
		job.CompletedAt,
		job.ReviewedAt,
		job.CancelledAt,
		nullString(job.CancelledBy),
		job.CancellationReason,
		job.CreatedAt,
		job.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert job: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetJob(ctx context.Context, jobID string) (*domain.Job, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = $1`, jobID)
	job, err := scanJob(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("query job: %w", err)
	}
	return job, nil
}

func (s *PostgresStore) ClaimJob(ctx context.Context, jobID, workerID string) (bool, error) {
	now := time.Now().UTC()
	command, err := s.pool.Exec(ctx, `
		UPDATE jobs
		SET worker_id = $1, status = 'claimed', claimed_at = $2, updated_at = $2
		WHERE id = $3 AND status = 'posted' AND worker_id IS NULL
	`, workerID, now, jobID)
	if err != nil {
		return false, fmt.Errorf("claim job: %w", err)
	}
	return command.RowsAffected() > 0, nil
}

func (s *PostgresStore) ConfirmJob(ctx context.Context, jobID string, priceAccepted float64) (bool, error) {
	now := time.Now().UTC()
	command, err := s.pool.Exec(ctx, `
		UPDATE jobs
		SET status = 'confirmed',
			confirmed_at = $1,
			price_accepted = CASE WHEN $2::double precision > 0 THEN $2 ELSE price_accepted END,
			updated_at = $1
		WHERE id = $3 AND status = 'claimed'
	`, now, priceAccepted, jobID)
	if err != nil {
		return false, fmt.Errorf("confirm job: %w", err)
	}
	return command.RowsAffected() > 0, nil
}

func (s *PostgresStore) StartJob(ctx context.Context, jobID, workerID, beforePhotoURL string) (bool, error) {
	now := time.Now().UTC()
	command, err := s.pool.Exec(ctx, `
		UPDATE jobs
		SET status = 'in_progress',
			started_at = $1,
			before_photo_url = COALESCE(NULLIF($2, ''), before_photo_url),
			updated_at = $1
		WHERE id = $3 AND worker_id = $4 AND status = 'confirmed'
	`, now, beforePhotoURL, jobID, workerID)
	if err != nil {
		return false, fmt.Errorf("start job: %w", err)
	}
	return command.RowsAffected() > 0, nil
}

func (s *PostgresStore) CompleteJob(ctx context.Context, jobID, workerID, afterPhotoURL, workerNotes string) (bool, error) {
	now := time.Now().UTC()
	command, err := s.pool.Exec(ctx, `
		UPDATE jobs
		SET status = 'completed',
			completed_at = $1,
			after_photo_url = COALESCE(NULLIF($2, ''), after_photo_url),
			worker_notes = CASE WHEN $3 <> '' THEN $3 ELSE worker_notes END,
			updated_at = $1
		WHERE id = $4 AND worker_id = $5 AND status = 'in_progress'
	`, now, afterPhotoURL, workerNotes, jobID, workerID)
	if err != nil {
		return false, fmt.Errorf("complete job: %w", err)
	}
	return command.RowsAffected() > 0, nil
}

func (s *PostgresStore) CancelJob(ctx context.Context, jobID, actorID, reason string) (bool, error) {
	now := time.Now().UTC()
	command, err := s.pool.Exec(ctx, `
		UPDATE jobs
		SET status = 'cancelled',
			cancelled_at = $1,
			cancelled_by = $2,
			cancellation_reason = $3,
			updated_at = $1
		WHERE id = $4
			AND status IN ('posted','claimed','confirmed','in_progress')
			AND (homeowner_id = $2 OR worker_id = $2)
	`, now, actorID, reason, jobID)
	if err != nil {
		return false, fmt.Errorf("cancel job: %w", err)
	}
	return command.RowsAffected() > 0, nil
}

func (s *PostgresStore) MarkReviewed(ctx context.Context, jobID string) (bool, error) {
	now := time.Now().UTC()
	command, err := s.pool.Exec(ctx, `
		UPDATE jobs
		SET status = 'reviewed', reviewed_at = $1, updated_at = $1
		WHERE id = $2 AND status = 'completed'
	`, now, jobID)
	if err != nil {
		return false, fmt.Errorf("mark reviewed: %w", err)
	}
	return command.RowsAffected() > 0, nil
}

func (s *PostgresStore) UpdatePaymentStatus(ctx context.Context, jobID string, status domain.PaymentStatus, paymentRef string) error {
	command, err := s.pool.Exec(ctx, `
		UPDATE jobs
		SET payment_status = $1,
			payment_ref = COALESCE(NULLIF($2, ''), payment_ref),
			updated_at = $3
		WHERE id = $4
	`, string(status), paymentRef, time.Now().UTC(), jobID)
	if err != nil {
		return fmt.Errorf("update payment status: %w", err)
	}
	if command.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) ListJobsByHomeowner(ctx context.Context, homeownerID string, filter domain.JobListFilter) ([]domain.Job, error) {
	return s.listJobsByParty(ctx, "homeowner_id", homeownerID, filter)
}

func (s *PostgresStore) ListJobsByWorker(ctx context.Context, workerID string, filter domain.JobListFilter) ([]domain.Job, error) {
	return s.listJobsByParty(ctx, "worker_id", workerID, filter)
}

func (s *PostgresStore) listJobsByParty(ctx context.Context, column, userID string, filter domain.JobListFilter) ([]domain.Job, error) {
	query := strings.Builder{}
	query.WriteString(`SELECT ` + jobColumns + ` FROM jobs WHERE ` + column + ` = $1`)
	args := []any{userID}

	if len(filter.Status) > 0 {
		placeholders := make([]string, 0, len(filter.Status))
		for _, status := range filter.Status {
			args = append(args, string(status))
			placeholders = append(placeholders, fmt.Sprintf("$%d", len(args)))
		}
		query.WriteString(" AND status IN (" + strings.Join(placeholders, ", ") + ")")
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	args = append(args, limit, filter.Offset)
	query.WriteString(fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", len(args)-1, len(args)))

	return s.queryJobs(ctx, query.String(), args)
}

func (s *PostgresStore) ListAvailableJobs(ctx context.Context, filter domain.AvailableJobsFilter) ([]domain.Job, error) {
	query := strings.Builder{}
	query.WriteString(`SELECT ` + jobColumns + ` FROM jobs WHERE status = 'posted'`)
	args := make([]any, 0, 8)

	appendCondition := func(condition string, value any) {
		args = append(args, value)
		query.WriteString(fmt.Sprintf(" AND "+condition, len(args)))
	}

	if filter.MinLat != nil && filter.MaxLat != nil {
		appendCondition("lat >= $%d", *filter.MinLat)
		appendCondition("lat <= $%d", *filter.MaxLat)
	}
	if filter.MinLng != nil && filter.MaxLng != nil {
		appendCondition("lng >= $%d", *filter.MinLng)
		appendCondition("lng <= $%d", *filter.MaxLng)
	}
	if filter.ServiceType != "" {
		appendCondition("service_type = $%d", string(filter.ServiceType))
	}
	if filter.MinPrice != nil {
		appendCondition("price_offered >= $%d", *filter.MinPrice)
	}
	if filter.MaxPrice != nil {
		appendCondition("price_offered <= $%d", *filter.MaxPrice)
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	args = append(args, limit, filter.Offset)
	query.WriteString(fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", len(args)-1, len(args)))

	return s.queryJobs(ctx, query.String(), args)
}

func (s *PostgresStore) CountJobsByStatus(ctx context.Context, userID string, role domain.PartyRole) (map[domain.JobStatus]int, error) {
	column := "homeowner_id"
	if role == domain.PartyRoleWorker {
		column = "worker_id"
	}

	rows, err := s.pool.Query(ctx, `
		SELECT status, COUNT(*)
		FROM jobs
		WHERE `+column+` = $1
		GROUP BY status
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("count jobs by status: %w", err)
	}
	defer rows.Close()

	counts := emptyStatusCounts()
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("scan status count: %w", err)
		}
		counts[domain.JobStatus(status)] = count
	}
	if rows.Err() != nil {
		return nil, fmt.Errorf("iterate status counts: %w", rows.Err())
	}
	return counts, nil
}

func (s *PostgresStore) queryJobs(ctx context.Context, query string, args []any) ([]domain.Job, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	jobs := make([]domain.Job, 0)
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		jobs = append(jobs, *job)
	}
	if rows.Err() != nil {
		return nil, fmt.Errorf("iterate jobs: %w", rows.Err())
	}
	return jobs, nil
}

func scanJob(row pgx.Row) (*domain.Job, error) {
	var (
		job           domain.Job
		workerID      *string
		status        string
		serviceType   string
		priceOffered  *float64
		priceAccepted *float64
		priceFinal    *float64
		paymentMethod string
		paymentStatus string
		paymentRef    *string
		beforePhoto   *string
		afterPhoto    *string
		cancelledBy   *string
		cancelReason  *string
	)

	err := row.Scan(
		&job.ID,
		&job.HomeownerID,
		&workerID,
		&status,
		&serviceType,
		&job.Address,
		&job.City,
		&job.Zip,
		&job.Lat,
		&job.Lng,
		&job.Description,
		&job.SpecialInstructions,
		&priceOffered,
		&priceAccepted,
		&priceFinal,
		&paymentMethod,
		&paymentStatus,
		&paymentRef,
		&job.ScheduledFor,
		&job.IsASAP,
		&beforePhoto,
		&afterPhoto,
		&job.WorkerNotes,
		&job.HomeownerNotes,
		&job.ClaimedAt,
		&job.ConfirmedAt,
		&job.StartedAt,
		&job.CompletedAt,
		&job.ReviewedAt,
		&job.CancelledAt,
		&cancelledBy,
		&cancelReason,
		&job.CreatedAt,
		&job.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	job.WorkerID = stringOrEmpty(workerID)
	job.Status = domain.JobStatus(status)
	job.ServiceType = domain.ServiceType(serviceType)
	job.PriceOffered = floatOrZero(priceOffered)
	job.PriceAccepted = floatOrZero(priceAccepted)
	job.PriceFinal = floatOrZero(priceFinal)
	job.PaymentMethod = domain.PaymentMethod(paymentMethod)
	job.PaymentStatus = domain.PaymentStatus(paymentStatus)
	job.PaymentRef = stringOrEmpty(paymentRef)
	job.BeforePhotoURL = stringOrEmpty(beforePhoto)
	job.AfterPhotoURL = stringOrEmpty(afterPhoto)
	job.CancelledBy = stringOrEmpty(cancelledBy)
	job.CancellationReason = stringOrEmpty(cancelReason)
	return &job, nil
}
