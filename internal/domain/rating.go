package domain

import (
	"time"
)

type RaterType string

const (
	RaterTypeHomeowner RaterType = "homeowner"
	RaterTypeWorker    RaterType = "worker"
)

// Rating is one party's review of the other for a specific job. At most one
// rating exists per (job, rater); ratings are never mutated or deleted.
// Category sub-ratings are zero when not supplied: quality, punctuality and
// communication come from homeowners; payment, accuracy and treatment come
// from workers.
type Rating struct {
	ID         string
	JobID      string
	RaterID    string
	RatedID    string
	RaterType  RaterType
	Rating     int
	ReviewText string

	QualityRating       int
	PunctualityRating   int
	CommunicationRating int
	PaymentRating       int
	AccuracyRating      int
	TreatmentRating     int

	IsPublic  bool
	CreatedAt time.Time
}

// RatingStats is the aggregate view over all ratings addressed to one user.
type RatingStats struct {
	AvgRating    float64
	TotalRatings int
	Distribution map[int]int
}
