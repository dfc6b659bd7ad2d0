package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/kidshovel/marketplace-back/internal/domain"
	"github.com/kidshovel/marketplace-back/internal/repository"
)

type fixture struct {
	store    *repository.MemoryStore
	jobs     *JobsService
	ratings  *RatingsService
	earnings *EarningsService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := repository.NewMemoryStore()
	ctx := context.Background()

	if err := store.CreateWorkerProfile(ctx, &domain.WorkerProfile{ID: "wp-1", UserID: "worker-a"}); err != nil {
		t.Fatalf("create worker profile: %v", err)
	}
	if err := store.CreateHomeownerProfile(ctx, &domain.HomeownerProfile{ID: "hp-1", UserID: "homeowner-1"}); err != nil {
		t.Fatalf("create homeowner profile: %v", err)
	}

	return &fixture{
		store:    store,
		jobs:     NewJobsService(store, nil, nil),
		ratings:  NewRatingsService(store, nil, nil, nil),
		earnings: NewEarningsService(store, nil),
	}
}

// runLifecycle walks a job to completed.
func (f *fixture) runLifecycle(t *testing.T, method domain.PaymentMethod, price float64) *domain.Job {
	t.Helper()
	ctx := context.Background()

	job, err := f.jobs.CreateJob(ctx, CreateJobInput{
		HomeownerID:   "homeowner-1",
		ServiceType:   domain.ServiceTypeDriveway,
		Address:       "12 Birch Ln",
		PriceOffered:  price,
		PaymentMethod: method,
	})
	if err != nil {
		t.Fatalf("create job: %v", err)
	}
	ok, err := f.jobs.Claim(ctx, job.ID, "worker-a")
	mustTransition(t, ok, err)
	ok, err = f.jobs.Confirm(ctx, job.ID, "homeowner-1", price)
	mustTransition(t, ok, err)
	ok, err = f.jobs.Start(ctx, job.ID, "worker-a", "before.jpg")
	mustTransition(t, ok, err)
	ok, err = f.jobs.Complete(ctx, job.ID, "worker-a", "after.jpg", "")
	mustTransition(t, ok, err)
	return job
}

func mustTransition(t *testing.T, ok bool, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("transition error: %v", err)
	}
	if !ok {
		t.Fatal("transition unexpectedly rejected")
	}
}

func TestCardSettlementScenario(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	job := f.runLifecycle(t, domain.PaymentMethodCard, 40)

	if _, err := f.ratings.SubmitRating(ctx, SubmitRatingInput{
		JobID: job.ID, RaterID: "homeowner-1", Rating: 5, ReviewText: "great work", IsPublic: true,
		QualityRating: 5, PunctualityRating: 5, CommunicationRating: 4,
	}); err != nil {
		t.Fatalf("homeowner rating: %v", err)
	}

	// One rating is not enough to settle.
	mid, _ := f.store.GetJob(ctx, job.ID)
	if mid.Status != domain.JobStatusCompleted {
		t.Fatalf("job settled after one rating, status=%s", mid.Status)
	}
	if _, err := f.store.GetEarningByJob(ctx, job.ID); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("earning exists before second rating: %v", err)
	}

	if _, err := f.ratings.SubmitRating(ctx, SubmitRatingInput{
		JobID: job.ID, RaterID: "worker-a", Rating: 5, IsPublic: true,
		PaymentRating: 5, AccuracyRating: 5, TreatmentRating: 5,
	}); err != nil {
		t.Fatalf("worker rating: %v", err)
	}

	settled, _ := f.store.GetJob(ctx, job.ID)
	if settled.Status != domain.JobStatusReviewed {
		t.Fatalf("expected reviewed, got %s", settled.Status)
	}

	earning, err := f.store.GetEarningByJob(ctx, job.ID)
	if err != nil {
		t.Fatalf("load earning: %v", err)
	}
	if earning.GrossAmount != 40 || earning.PlatformFee != 2.80 || earning.FutureFundContribution != 1.20 || earning.NetAmount != 36.00 {
		t.Fatalf("fee split wrong: gross=%.2f platform=%.2f fund=%.2f net=%.2f",
			earning.GrossAmount, earning.PlatformFee, earning.FutureFundContribution, earning.NetAmount)
	}
	if earning.Status != domain.EarningStatusPending {
		t.Fatalf("expected pending earning, got %s", earning.Status)
	}

	worker, _ := f.store.GetWorkerProfile(ctx, "worker-a")
	if worker.TotalEarnings != 36.00 {
		t.Fatalf("worker total_earnings=%.2f", worker.TotalEarnings)
	}
	if worker.FutureFundBalance != 1.20 {
		t.Fatalf("worker future_fund_balance=%.2f", worker.FutureFundBalance)
	}
	if worker.CompletedJobsCount != 1 {
		t.Fatalf("worker completed_jobs_count=%d", worker.CompletedJobsCount)
	}
	if worker.TotalRatings != 1 || worker.AvgRating != 5 {
		t.Fatalf("worker rating aggregates: total=%d avg=%.1f", worker.TotalRatings, worker.AvgRating)
	}

	homeowner, _ := f.store.GetHomeownerProfile(ctx, "homeowner-1")
	if homeowner.JobsCompletedCount != 1 {
		t.Fatalf("homeowner jobs_completed_count=%d", homeowner.JobsCompletedCount)
	}
	if homeowner.TotalRatings != 1 || homeowner.AvgRating != 5 {
		t.Fatalf("homeowner rating aggregates: total=%d avg=%.1f", homeowner.TotalRatings, homeowner.AvgRating)
	}
}

func TestCashSettlementKeepsFullGross(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	job := f.runLifecycle(t, domain.PaymentMethodCash, 25)
	f.ratings.SubmitRating(ctx, SubmitRatingInput{JobID: job.ID, RaterID: "homeowner-1", Rating: 4})
	f.ratings.SubmitRating(ctx, SubmitRatingInput{JobID: job.ID, RaterID: "worker-a", Rating: 5})

	earning, err := f.store.GetEarningByJob(ctx, job.ID)
	if err != nil {
		t.Fatalf("load earning: %v", err)
	}
	if earning.PlatformFee != 0 || earning.FutureFundContribution != 0 {
		t.Fatalf("cash job carries fees: platform=%.2f fund=%.2f", earning.PlatformFee, earning.FutureFundContribution)
	}
	if earning.NetAmount != 25 {
		t.Fatalf("cash net=%.2f, want 25", earning.NetAmount)
	}
}

func TestSettlementIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	job := f.runLifecycle(t, domain.PaymentMethodCard, 40)
	f.ratings.SubmitRating(ctx, SubmitRatingInput{JobID: job.ID, RaterID: "homeowner-1", Rating: 5})
	f.ratings.SubmitRating(ctx, SubmitRatingInput{JobID: job.ID, RaterID: "worker-a", Rating: 5})

	// A duplicate trigger after settlement must be a no-op.
	settled, err := f.ratings.TrySettle(ctx, job.ID)
	if err != nil {
		t.Fatalf("redundant TrySettle: %v", err)
	}
	if settled {
		t.Fatal("redundant TrySettle reported a second settlement")
	}

	earnings, err := f.store.ListEarningsByUser(ctx, "worker-a", 0, 0)
	if err != nil {
		t.Fatalf("list earnings: %v", err)
	}
	if len(earnings) != 1 {
		t.Fatalf("expected exactly one earning, got %d", len(earnings))
	}

	worker, _ := f.store.GetWorkerProfile(ctx, "worker-a")
	if worker.CompletedJobsCount != 1 {
		t.Fatalf("counters applied twice: completed_jobs_count=%d", worker.CompletedJobsCount)
	}
}

func TestConcurrentSettlementTriggersCreateOneEarning(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	job := f.runLifecycle(t, domain.PaymentMethodCard, 40)
	f.ratings.SubmitRating(ctx, SubmitRatingInput{JobID: job.ID, RaterID: "homeowner-1", Rating: 5})
	f.ratings.SubmitRating(ctx, SubmitRatingInput{JobID: job.ID, RaterID: "worker-a", Rating: 5})

	// Reset to completed is impossible through the store, so race the gate on
	// a fresh job instead: push a second job to completed and fire TrySettle
	// from many goroutines at once.
	job2 := f.runLifecycle(t, domain.PaymentMethodCard, 60)

	var wg sync.WaitGroup
	var mu sync.Mutex
	wins := 0
	for i := 0; i < 12; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			settled, err := f.ratings.TrySettle(ctx, job2.ID)
			if err != nil {
				t.Errorf("TrySettle: %v", err)
				return
			}
			if settled {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if wins != 1 {
		t.Fatalf("expected one settlement winner, got %d", wins)
	}
	if _, err := f.store.GetEarningByJob(ctx, job2.ID); err != nil {
		t.Fatalf("earning missing after settlement race: %v", err)
	}
}

func TestSubmitRatingPreconditions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	job := f.runLifecycle(t, domain.PaymentMethodCard, 40)

	if _, err := f.ratings.SubmitRating(ctx, SubmitRatingInput{JobID: job.ID, RaterID: "homeowner-1", Rating: 6}); !errors.Is(err, ErrInvalidRating) {
		t.Fatalf("out-of-range rating: %v", err)
	}
	if _, err := f.ratings.SubmitRating(ctx, SubmitRatingInput{JobID: job.ID, RaterID: "intruder", Rating: 5}); !errors.Is(err, ErrNotParty) {
		t.Fatalf("non-party rater: %v", err)
	}

	if _, err := f.ratings.SubmitRating(ctx, SubmitRatingInput{JobID: job.ID, RaterID: "homeowner-1", Rating: 5}); err != nil {
		t.Fatalf("first rating: %v", err)
	}
	if _, err := f.ratings.SubmitRating(ctx, SubmitRatingInput{JobID: job.ID, RaterID: "homeowner-1", Rating: 1}); !errors.Is(err, ErrAlreadyRated) {
		t.Fatalf("duplicate rating: %v", err)
	}

	// The duplicate must not move the aggregates a second time.
	worker, _ := f.store.GetWorkerProfile(ctx, "worker-a")
	if worker.TotalRatings != 1 || worker.AvgRating != 5 {
		t.Fatalf("aggregates mutated by rejected rating: total=%d avg=%.1f", worker.TotalRatings, worker.AvgRating)
	}
}

func TestRatingRejectedBeforeCompletion(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	job, err := f.jobs.CreateJob(ctx, CreateJobInput{
		HomeownerID:   "homeowner-1",
		ServiceType:   domain.ServiceTypeWalkway,
		Address:       "3 Elm St",
		PriceOffered:  15,
		PaymentMethod: domain.PaymentMethodCash,
	})
	if err != nil {
		t.Fatalf("create job: %v", err)
	}
	f.jobs.Claim(ctx, job.ID, "worker-a")

	if _, err := f.ratings.SubmitRating(ctx, SubmitRatingInput{JobID: job.ID, RaterID: "homeowner-1", Rating: 5}); !errors.Is(err, ErrJobNotCompleted) {
		t.Fatalf("rating before completion: %v", err)
	}
}
