package domain

import (
	"time"
)

// SavingsGoal is a worker's named savings target. CurrentAmount accumulates
// deposits over time; Achieved flips once CurrentAmount reaches TargetAmount
// and never flips back, even if the target is later raised.
type SavingsGoal struct {
	ID            string
	UserID        string
	Name          string
	Description   string
	TargetAmount  float64
	CurrentAmount float64
	TargetDate    *time.Time
	Priority      int
	Achieved      bool
	AchievedAt    *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// GoalProgress aggregates a worker's goals for the dashboard.
type GoalProgress struct {
	TotalGoals      int
	AchievedGoals   int
	TotalTarget     float64
	TotalSaved      float64
	OverallProgress float64
}
