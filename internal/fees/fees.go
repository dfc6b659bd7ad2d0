// Package fees holds the money math shared by settlement and the earnings
// projections. Everything here is pure; callers decide whether a payment
// method is subject to fees at all.
package fees

import (
	"math"
)

const (
	// PlatformFeeRate is the marketplace service charge on card-paid jobs.
	PlatformFeeRate = 0.07
	// FutureFundRate is the mandatory savings set-aside on card-paid jobs.
	FutureFundRate = 0.03

	// FutureFundGrowthRate and FutureFundProjectionYears drive the default
	// dashboard projection: the current balance compounded at 7% for the
	// ten years until the worker is around 25.
	FutureFundGrowthRate      = 0.07
	FutureFundProjectionYears = 10
)

// Breakdown is the split of a gross job amount.
type Breakdown struct {
	PlatformFee float64
	FutureFund  float64
	NetAmount   float64
}

// Calculate splits a gross amount into platform fee, future-fund contribution
// and net payout. Both fee components are rounded half-up to the cent
// independently; the net absorbs any rounding remainder, so the three parts
// always sum back to the gross within a cent.
func Calculate(grossAmount float64) Breakdown {
	platformFee := RoundCents(grossAmount * PlatformFeeRate)
	futureFund := RoundCents(grossAmount * FutureFundRate)
	netAmount := RoundCents(grossAmount - platformFee - futureFund)

	return Breakdown{
		PlatformFee: platformFee,
		FutureFund:  futureFund,
		NetAmount:   netAmount,
	}
}

// CashBreakdown is the zero-fee split used for cash jobs: the worker keeps
// the full gross.
func CashBreakdown(grossAmount float64) Breakdown {
	return Breakdown{NetAmount: RoundCents(grossAmount)}
}

// ProjectGrowth compounds a principal at an annual rate for a number of
// years. Exposed with caller-supplied rate and years for the what-if
// calculator; settlement summaries use the fixed future-fund defaults.
func ProjectGrowth(principal float64, years int, annualRate float64) float64 {
	return principal * math.Pow(1+annualRate, float64(years))
}

// RoundCents rounds half-up to two decimal places.
func RoundCents(amount float64) float64 {
	return math.Round(amount*100) / 100
}
