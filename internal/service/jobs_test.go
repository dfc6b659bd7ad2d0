package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/kidshovel/marketplace-back/internal/domain"
	"github.com/kidshovel/marketplace-back/internal/repository"
)

func newJobsService(store repository.Store) *JobsService {
	return NewJobsService(store, nil, nil)
}

func postJob(t *testing.T, svc *JobsService, method domain.PaymentMethod, price float64) *domain.Job {
	t.Helper()
	job, err := svc.CreateJob(context.Background(), CreateJobInput{
		HomeownerID:   "homeowner-1",
		ServiceType:   domain.ServiceTypeDriveway,
		Address:       "12 Birch Ln",
		City:          "Cleveland",
		Zip:           "44101",
		PriceOffered:  price,
		PaymentMethod: method,
	})
	if err != nil {
		t.Fatalf("create job: %v", err)
	}
	return job
}

func TestCreateJobValidation(t *testing.T) {
	svc := newJobsService(repository.NewMemoryStore())
	ctx := context.Background()

	cases := []struct {
		name  string
		input CreateJobInput
	}{
		{"missing homeowner", CreateJobInput{ServiceType: domain.ServiceTypeDriveway, Address: "a", PriceOffered: 40, PaymentMethod: domain.PaymentMethodCard}},
		{"missing address", CreateJobInput{HomeownerID: "h", ServiceType: domain.ServiceTypeDriveway, PriceOffered: 40, PaymentMethod: domain.PaymentMethodCard}},
		{"bad service type", CreateJobInput{HomeownerID: "h", ServiceType: "mowing", Address: "a", PriceOffered: 40, PaymentMethod: domain.PaymentMethodCard}},
		{"zero price", CreateJobInput{HomeownerID: "h", ServiceType: domain.ServiceTypeDriveway, Address: "a", PaymentMethod: domain.PaymentMethodCard}},
		{"bad payment method", CreateJobInput{HomeownerID: "h", ServiceType: domain.ServiceTypeDriveway, Address: "a", PriceOffered: 40, PaymentMethod: "check"}},
	}

	for _, testCase := range cases {
		t.Run(testCase.name, func(t *testing.T) {
			if _, err := svc.CreateJob(ctx, testCase.input); !errors.Is(err, ErrValidation) {
				t.Fatalf("expected validation error, got %v", err)
			}
		})
	}
}

func TestClaimRaceSingleWinner(t *testing.T) {
	store := repository.NewMemoryStore()
	svc := newJobsService(store)
	ctx := context.Background()

	job := postJob(t, svc, domain.PaymentMethodCard, 40)

	const claimants = 16
	var wg sync.WaitGroup
	winners := make(chan int, claimants)

	for i := 0; i < claimants; i++ {
		wg.Add(1)
		go func(index int) {
			defer wg.Done()
			ok, err := svc.Claim(ctx, job.ID, workerID(index))
			if err != nil {
				t.Errorf("claim %d: %v", index, err)
				return
			}
			if ok {
				winners <- index
			}
		}(i)
	}
	wg.Wait()
	close(winners)

	var won []int
	for index := range winners {
		won = append(won, index)
	}
	if len(won) != 1 {
		t.Fatalf("expected exactly one winning claim, got %d", len(won))
	}

	claimed, err := store.GetJob(ctx, job.ID)
	if err != nil {
		t.Fatalf("reload job: %v", err)
	}
	if claimed.Status != domain.JobStatusClaimed {
		t.Fatalf("expected claimed status, got %s", claimed.Status)
	}
	if claimed.WorkerID != workerID(won[0]) {
		t.Fatalf("worker_id %s does not match winner %s", claimed.WorkerID, workerID(won[0]))
	}
}

func workerID(index int) string {
	return "worker-" + string(rune('a'+index))
}

func TestTransitionGuards(t *testing.T) {
	store := repository.NewMemoryStore()
	svc := newJobsService(store)
	ctx := context.Background()

	job := postJob(t, svc, domain.PaymentMethodCard, 40)

	// A posted job cannot be started or completed.
	if ok, err := svc.Start(ctx, job.ID, "worker-a", ""); err != nil || ok {
		t.Fatalf("start on posted job: ok=%v err=%v", ok, err)
	}
	if ok, err := svc.Complete(ctx, job.ID, "worker-a", "", ""); err != nil || ok {
		t.Fatalf("complete on posted job: ok=%v err=%v", ok, err)
	}

	if ok, _ := svc.Claim(ctx, job.ID, "worker-a"); !ok {
		t.Fatal("claim should succeed")
	}
	// Second claim loses.
	if ok, _ := svc.Claim(ctx, job.ID, "worker-b"); ok {
		t.Fatal("second claim should fail")
	}

	// Only the assigned worker may start, and only after confirm.
	if ok, _ := svc.Start(ctx, job.ID, "worker-a", ""); ok {
		t.Fatal("start before confirm should fail")
	}
	if ok, _ := svc.Confirm(ctx, job.ID, "intruder", 45); ok {
		t.Fatal("confirm by non-party should fail")
	}
	if ok, _ := svc.Confirm(ctx, job.ID, "homeowner-1", 45); !ok {
		t.Fatal("confirm by homeowner should succeed")
	}
	if ok, _ := svc.Start(ctx, job.ID, "worker-b", "before.jpg"); ok {
		t.Fatal("start by wrong worker should fail")
	}
	if ok, _ := svc.Start(ctx, job.ID, "worker-a", "before.jpg"); !ok {
		t.Fatal("start by assigned worker should succeed")
	}
	if ok, _ := svc.Complete(ctx, job.ID, "worker-a", "after.jpg", "salted the steps"); !ok {
		t.Fatal("complete should succeed")
	}

	// Completed jobs cannot be cancelled.
	if ok, _ := svc.Cancel(ctx, job.ID, "homeowner-1", "changed my mind"); ok {
		t.Fatal("cancel after completion should fail")
	}

	final, err := store.GetJob(ctx, job.ID)
	if err != nil {
		t.Fatalf("reload job: %v", err)
	}
	if final.Status != domain.JobStatusCompleted {
		t.Fatalf("expected completed, got %s", final.Status)
	}
	if final.PriceAccepted != 45 {
		t.Fatalf("expected accepted price 45, got %.2f", final.PriceAccepted)
	}
	if final.BeforePhotoURL != "before.jpg" || final.AfterPhotoURL != "after.jpg" {
		t.Fatalf("photos not recorded: %q %q", final.BeforePhotoURL, final.AfterPhotoURL)
	}
}

func TestCancelWhileInProgressBlocksCompletion(t *testing.T) {
	store := repository.NewMemoryStore()
	svc := newJobsService(store)
	ctx := context.Background()

	job := postJob(t, svc, domain.PaymentMethodCash, 25)
	svc.Claim(ctx, job.ID, "worker-a")
	svc.Confirm(ctx, job.ID, "worker-a", 0)
	svc.Start(ctx, job.ID, "worker-a", "")

	ok, err := svc.Cancel(ctx, job.ID, "homeowner-1", "snow melted")
	if err != nil || !ok {
		t.Fatalf("cancel in_progress: ok=%v err=%v", ok, err)
	}

	cancelled, _ := store.GetJob(ctx, job.ID)
	if cancelled.Status != domain.JobStatusCancelled {
		t.Fatalf("expected cancelled, got %s", cancelled.Status)
	}
	if cancelled.CancelledBy != "homeowner-1" || cancelled.CancellationReason != "snow melted" {
		t.Fatalf("cancellation metadata missing: %q %q", cancelled.CancelledBy, cancelled.CancellationReason)
	}

	// The completion guard now sees a cancelled job.
	if ok, _ := svc.Complete(ctx, job.ID, "worker-a", "", ""); ok {
		t.Fatal("complete after cancellation should fail")
	}
}

func TestConfirmKeepsPriceWhenNotRenegotiated(t *testing.T) {
	store := repository.NewMemoryStore()
	svc := newJobsService(store)
	ctx := context.Background()

	job := postJob(t, svc, domain.PaymentMethodCard, 30)
	svc.Claim(ctx, job.ID, "worker-a")
	if ok, _ := svc.Confirm(ctx, job.ID, "worker-a", 0); !ok {
		t.Fatal("confirm should succeed")
	}

	confirmed, _ := store.GetJob(ctx, job.ID)
	if confirmed.PriceAccepted != 0 {
		t.Fatalf("expected accepted price untouched, got %.2f", confirmed.PriceAccepted)
	}
	if confirmed.FinalAmount() != 30 {
		t.Fatalf("expected final amount to fall back to offer, got %.2f", confirmed.FinalAmount())
	}
}

func TestListAvailableRadiusFilter(t *testing.T) {
	store := repository.NewMemoryStore()
	svc := newJobsService(store)
	ctx := context.Background()

	near := postJobAt(t, svc, 41.4995, -81.6954) // downtown Cleveland
	_ = postJobAt(t, svc, 41.0814, -81.5190)     // Akron, ~30mi away
	noCoords := postJob(t, svc, domain.PaymentMethodCard, 40)

	lat, lng := 41.4993, -81.6944
	jobs, err := svc.ListAvailable(ctx, AvailableJobsQuery{Lat: &lat, Lng: &lng, RadiusMiles: 10})
	if err != nil {
		t.Fatalf("list available: %v", err)
	}
	if len(jobs) != 1 || jobs[0].ID != near.ID {
		t.Fatalf("expected only the nearby job, got %d jobs", len(jobs))
	}

	// Without a radius everything posted shows up, coordinates or not.
	jobs, err = svc.ListAvailable(ctx, AvailableJobsQuery{})
	if err != nil {
		t.Fatalf("list available unbounded: %v", err)
	}
	if len(jobs) != 3 {
		t.Fatalf("expected 3 posted jobs, got %d", len(jobs))
	}
	_ = noCoords
}

func postJobAt(t *testing.T, svc *JobsService, lat, lng float64) *domain.Job {
	t.Helper()
	job, err := svc.CreateJob(context.Background(), CreateJobInput{
		HomeownerID:   "homeowner-1",
		ServiceType:   domain.ServiceTypeDriveway,
		Address:       "12 Birch Ln",
		Lat:           &lat,
		Lng:           &lng,
		PriceOffered:  40,
		PaymentMethod: domain.PaymentMethodCard,
	})
	if err != nil {
		t.Fatalf("create job: %v", err)
	}
	return job
}
