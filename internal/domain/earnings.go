package domain

import (
	"time"
)

type EarningStatus string

const (
	EarningStatusPending   EarningStatus = "pending"
	EarningStatusCompleted EarningStatus = "completed"
	EarningStatusFailed    EarningStatus = "failed"
)

// Earning is one payout record for a worker for one job. Exactly one earning
// exists per job; gross = platform_fee + future_fund_contribution + net
// within cent rounding. Cash jobs carry zero fees and pay full gross as net.
type Earning struct {
	ID                     string
	UserID                 string
	JobID                  string
	GrossAmount            float64
	PlatformFee            float64
	FutureFundContribution float64
	NetAmount              float64
	PaymentMethod          PaymentMethod
	Status                 EarningStatus
	TransferRef            string
	Notes                  string
	CreatedAt              time.Time
}

// EarningsSummary aggregates a worker's completed payouts for dashboards.
type EarningsSummary struct {
	TotalEarned         float64
	ThisMonth           float64
	ThisWeek            float64
	JobsCompleted       int
	AveragePerJob       float64
	FutureFundBalance   float64
	FutureFundProjected float64
}

// EarningsBucket is one period of a weekly or monthly series, ordered
// chronologically ascending by PeriodStart.
type EarningsBucket struct {
	PeriodStart time.Time
	Amount      float64
}
