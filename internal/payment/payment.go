// Package payment abstracts the card payment gateway. The marketplace never
// talks to a provider SDK directly; it creates charges through the Gateway
// interface and reacts to webhook events correlated by job id.
package payment

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/google/uuid"

	"github.com/kidshovel/marketplace-back/internal/domain"
	"github.com/kidshovel/marketplace-back/internal/repository"
)

// Gateway creates charges with an external provider and returns an opaque
// reference used to correlate later webhook events.
type Gateway interface {
	CreateCharge(ctx context.Context, amount float64, payerID, payeeID string) (string, error)
}

// NoopGateway fakes charge creation for local development. Every charge
// "succeeds" with a generated reference.
type NoopGateway struct{}

func (NoopGateway) CreateCharge(_ context.Context, _ float64, _, _ string) (string, error) {
	return "noop_" + uuid.NewString(), nil
}

// EventStatus is the outcome a gateway webhook reports.
type EventStatus string

const (
	EventSucceeded EventStatus = "succeeded"
	EventFailed    EventStatus = "failed"
)

// WebhookEvent is the normalized form of a gateway callback.
type WebhookEvent struct {
	JobID       string
	Status      EventStatus
	TransferRef string
}

// Service applies gateway outcomes to the ledger and the job record.
type Service struct {
	store   repository.Store
	gateway Gateway
	logger  *log.Logger
}

func NewService(store repository.Store, gateway Gateway, logger *log.Logger) *Service {
	return &Service{store: store, gateway: gateway, logger: logger}
}

// Charge creates a card charge for a job's final amount and marks the job's
// payment as processing.
func (s *Service) Charge(ctx context.Context, job *domain.Job) (string, error) {
	if job.PaymentMethod != domain.PaymentMethodCard {
		return "", fmt.Errorf("job %s is not card-paid", job.ID)
	}

	ref, err := s.gateway.CreateCharge(ctx, job.FinalAmount(), job.HomeownerID, job.WorkerID)
	if err != nil {
		return "", fmt.Errorf("create charge: %w", err)
	}

	if err := s.store.UpdatePaymentStatus(ctx, job.ID, domain.PaymentStatusProcessing, ref); err != nil {
		return ref, fmt.Errorf("record charge ref: %w", err)
	}
	return ref, nil
}

// HandleEvent moves the job's earning pending → completed/failed and keeps
// the job's payment status in step. An event for a job without an earning yet
// only updates the job; the earning catches up when settlement runs.
func (s *Service) HandleEvent(ctx context.Context, event WebhookEvent) error {
	if event.JobID == "" {
		return errors.New("webhook event missing job id")
	}

	paymentStatus := domain.PaymentStatusPaid
	earningStatus := domain.EarningStatusCompleted
	if event.Status == EventFailed {
		paymentStatus = domain.PaymentStatusFailed
		earningStatus = domain.EarningStatusFailed
	}

	if err := s.store.UpdatePaymentStatus(ctx, event.JobID, paymentStatus, event.TransferRef); err != nil {
		return fmt.Errorf("update job payment status: %w", err)
	}

	earning, err := s.store.GetEarningByJob(ctx, event.JobID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			if s.logger != nil {
				s.logger.Printf("gateway event before settlement job_id=%s status=%s", event.JobID, event.Status)
			}
			return nil
		}
		return fmt.Errorf("load earning for job %s: %w", event.JobID, err)
	}

	if err := s.store.UpdateEarningStatus(ctx, earning.ID, earningStatus, event.TransferRef); err != nil {
		return fmt.Errorf("update earning status: %w", err)
	}

	if s.logger != nil {
		s.logger.Printf("gateway event applied job_id=%s earning_id=%s status=%s", event.JobID, earning.ID, event.Status)
	}
	return nil
}
