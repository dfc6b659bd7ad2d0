package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/kidshovel/marketplace-back/internal/domain"
)

func TestSettleJobRollsBackReviewedGateOnFailedInsert(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	now := time.Now().UTC()
	job := &domain.Job{
		ID:          "job-1",
		HomeownerID: "homeowner-1",
		WorkerID:    "worker-a",
		Status:      domain.JobStatusCompleted,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := store.CreateJob(ctx, job); err != nil {
		t.Fatalf("create job: %v", err)
	}

	// An earning already recorded against the job makes the settlement
	// insert collide on its one-payout-per-job constraint.
	if err := store.CreateEarning(ctx, &domain.Earning{
		ID: "e-prior", UserID: "worker-a", JobID: "job-1", NetAmount: 36,
	}); err != nil {
		t.Fatalf("seed earning: %v", err)
	}

	settled, err := store.SettleJob(ctx, SettleParams{
		JobID:       "job-1",
		WorkerID:    "worker-a",
		HomeownerID: "homeowner-1",
		Earning:     domain.Earning{ID: "e-settle", UserID: "worker-a", JobID: "job-1", NetAmount: 36},
	})
	if settled {
		t.Fatal("settlement must not report success on a failed insert")
	}
	if !errors.Is(err, ErrDuplicate) {
		t.Fatalf("expected duplicate error, got %v", err)
	}

	// All-or-nothing: the reviewed transition must have been undone.
	after, err := store.GetJob(ctx, "job-1")
	if err != nil {
		t.Fatalf("get job: %v", err)
	}
	if after.Status != domain.JobStatusCompleted {
		t.Fatalf("status=%s, want completed", after.Status)
	}
	if after.ReviewedAt != nil {
		t.Fatal("reviewed_at must stay unset when settlement fails")
	}
}

func TestSettleJobStillGatesOnReviewedTransition(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	job := &domain.Job{
		ID:          "job-2",
		HomeownerID: "homeowner-1",
		WorkerID:    "worker-a",
		Status:      domain.JobStatusCompleted,
	}
	if err := store.CreateJob(ctx, job); err != nil {
		t.Fatalf("create job: %v", err)
	}

	params := SettleParams{
		JobID:       "job-2",
		WorkerID:    "worker-a",
		HomeownerID: "homeowner-1",
		Earning:     domain.Earning{ID: "e-1", UserID: "worker-a", JobID: "job-2", NetAmount: 40},
	}
	settled, err := store.SettleJob(ctx, params)
	if err != nil || !settled {
		t.Fatalf("first settle: settled=%v err=%v", settled, err)
	}

	// A second attempt loses the gate cleanly instead of erroring.
	again, err := store.SettleJob(ctx, params)
	if err != nil {
		t.Fatalf("second settle: %v", err)
	}
	if again {
		t.Fatal("job must settle exactly once")
	}
}
