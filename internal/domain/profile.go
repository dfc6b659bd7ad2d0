package domain

import (
	"time"
)

// WorkerProfile carries the aggregate counters maintained alongside earnings
// and rating writes. The counters must stay consistent with the sum of the
// underlying rows; they are only updated inside the same transaction as the
// record that changes them.
type WorkerProfile struct {
	ID                string
	UserID            string
	Bio               string
	TravelRadiusMiles float64
	AvailableNow      bool
	Verified          bool

	AvgRating          float64
	TotalRatings       int
	CompletedJobsCount int
	TotalEarnings      float64
	FutureFundBalance  float64

	CreatedAt time.Time
	UpdatedAt time.Time
}

// HomeownerProfile mirrors the worker aggregates for the posting side.
type HomeownerProfile struct {
	ID                  string
	UserID              string
	PropertyType        string
	DrivewaySize        string
	SpecialInstructions string

	AvgRating          float64
	TotalRatings       int
	JobsPostedCount    int
	JobsCompletedCount int

	CreatedAt time.Time
	UpdatedAt time.Time
}
