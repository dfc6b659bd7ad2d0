package domain

import (
	"time"
)

type JobStatus string

const (
	JobStatusPosted     JobStatus = "posted"
	JobStatusClaimed    JobStatus = "claimed"
	JobStatusConfirmed  JobStatus = "confirmed"
	JobStatusInProgress JobStatus = "in_progress"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusReviewed   JobStatus = "reviewed"
	JobStatusCancelled  JobStatus = "cancelled"
	JobStatusDisputed   JobStatus = "disputed"
)

// PartyRole identifies which side of a job a user is on.
type PartyRole string

const (
	PartyRoleHomeowner PartyRole = "homeowner"
	PartyRoleWorker    PartyRole = "worker"
)

type PaymentMethod string

const (
	PaymentMethodCash PaymentMethod = "cash"
	PaymentMethodCard PaymentMethod = "card"
)

type PaymentStatus string

const (
	PaymentStatusPending    PaymentStatus = "pending"
	PaymentStatusProcessing PaymentStatus = "processing"
	PaymentStatusPaid       PaymentStatus = "paid"
	PaymentStatusFailed     PaymentStatus = "failed"
	PaymentStatusRefunded   PaymentStatus = "refunded"
)

type ServiceType string

const (
	ServiceTypeDriveway    ServiceType = "driveway"
	ServiceTypeWalkway     ServiceType = "walkway"
	ServiceTypeCarBrushing ServiceType = "car_brushing"
	ServiceTypeCombo       ServiceType = "combo"
)

// Job is a single snow-removal request from posting through settlement.
// WorkerID stays empty until the job is claimed. Mutations go through the
// guarded store operations only; status never moves outside the transition
// table below.
type Job struct {
	ID          string
	HomeownerID string
	WorkerID    string
	Status      JobStatus
	ServiceType ServiceType

	Address string
	City    string
	Zip     string
	Lat     *float64
	Lng     *float64

	Description         string
	SpecialInstructions string

	PriceOffered  float64
	PriceAccepted float64
	PriceFinal    float64
	PaymentMethod PaymentMethod
	PaymentStatus PaymentStatus
	PaymentRef    string

	ScheduledFor *time.Time
	IsASAP       bool

	BeforePhotoURL string
	AfterPhotoURL  string
	WorkerNotes    string
	HomeownerNotes string

	ClaimedAt          *time.Time
	ConfirmedAt        *time.Time
	StartedAt          *time.Time
	CompletedAt        *time.Time
	ReviewedAt         *time.Time
	CancelledAt        *time.Time
	CancelledBy        string
	CancellationReason string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// IsParty reports whether userID is the homeowner or the assigned worker.
func (j *Job) IsParty(userID string) bool {
	if userID == "" {
		return false
	}
	return j.HomeownerID == userID || j.WorkerID == userID
}

// FinalAmount is the settled payout amount: price_final when set, then
// price_accepted, then price_offered.
func (j *Job) FinalAmount() float64 {
	if j.PriceFinal > 0 {
		return j.PriceFinal
	}
	if j.PriceAccepted > 0 {
		return j.PriceAccepted
	}
	return j.PriceOffered
}

var jobTransitions = map[JobStatus][]JobStatus{
	JobStatusPosted:     {JobStatusClaimed, JobStatusCancelled},
	JobStatusClaimed:    {JobStatusConfirmed, JobStatusCancelled},
	JobStatusConfirmed:  {JobStatusInProgress, JobStatusCancelled},
	JobStatusInProgress: {JobStatusCompleted, JobStatusCancelled},
	JobStatusCompleted:  {JobStatusReviewed},
	JobStatusReviewed:   {},
	JobStatusCancelled:  {},
	JobStatusDisputed:   {},
}

// CanTransition reports whether the status move is legal. Disputed is a
// terminal enum value reachable only through moderation, so nothing
// transitions into it here.
func CanTransition(from, to JobStatus) bool {
	for _, allowed := range jobTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further status transitions are possible.
func (s JobStatus) IsTerminal() bool {
	return len(jobTransitions[s]) == 0
}

// JobListFilter narrows per-user job listings.
type JobListFilter struct {
	Status []JobStatus
	Limit  int
	Offset int
}

// AvailableJobsFilter narrows the open-jobs board. Lat/Lng bounds come from a
// bounding-box pre-filter; precise distance sorting happens in the caller.
type AvailableJobsFilter struct {
	MinLat      *float64
	MaxLat      *float64
	MinLng      *float64
	MaxLng      *float64
	ServiceType ServiceType
	MinPrice    *float64
	MaxPrice    *float64
	Limit       int
	Offset      int
}
