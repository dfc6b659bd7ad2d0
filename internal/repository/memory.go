package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/kidshovel/marketplace-back/internal/domain"
	"github.com/kidshovel/marketplace-back/internal/fees"
)

// MemoryStore keeps everything in process for local development and tests.
// A single mutex makes every guarded transition and the settlement unit
// atomic, mirroring the conditional-update semantics of the Postgres store.
type MemoryStore struct {
	mu sync.Mutex

	jobs              map[string]*domain.Job
	ratings           []*domain.Rating
	ratingByJobRater  map[string]*domain.Rating
	earnings          map[string]*domain.Earning
	earningIDByJob    map[string]string
	goals             map[string]*domain.SavingsGoal
	workerProfiles    map[string]*domain.WorkerProfile
	homeownerProfiles map[string]*domain.HomeownerProfile
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		jobs:              make(map[string]*domain.Job),
		ratings:           make([]*domain.Rating, 0),
		ratingByJobRater:  make(map[string]*domain.Rating),
		earnings:          make(map[string]*domain.Earning),
		earningIDByJob:    make(map[string]string),
		goals:             make(map[string]*domain.SavingsGoal),
		workerProfiles:    make(map[string]*domain.WorkerProfile),
		homeownerProfiles: make(map[string]*domain.HomeownerProfile),
	}
}

// --- jobs ---

func (s *MemoryStore) CreateJob(_ context.Context, job *domain.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.jobs[job.ID] = cloneJob(job)
	return nil
}

func (s *MemoryStore) GetJob(_ context.Context, jobID string) (*domain.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[jobID]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneJob(job), nil
}

func (s *MemoryStore) ClaimJob(_ context.Context, jobID, workerID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[jobID]
	if !ok {
		return false, nil
	}
	if job.Status != domain.JobStatusPosted || job.WorkerID != "" {
		return false, nil
	}

	now := time.Now().UTC()
	job.WorkerID = workerID
	job.Status = domain.JobStatusClaimed
	job.ClaimedAt = &now
	job.UpdatedAt = now
	return true, nil
}

func (s *MemoryStore) ConfirmJob(_ context.Context, jobID string, priceAccepted float64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[jobID]
	if !ok {
		return false, nil
	}
	if job.Status != domain.JobStatusClaimed {
		return false, nil
	}

	now := time.Now().UTC()
	job.Status = domain.JobStatusConfirmed
	job.ConfirmedAt = &now
	if priceAccepted > 0 {
		job.PriceAccepted = priceAccepted
	}
	job.UpdatedAt = now
	return true, nil
}

func (s *MemoryStore) StartJob(_ context.Context, jobID, workerID, beforePhotoURL string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[jobID]
	if !ok {
		return false, nil
	}
	if job.Status != domain.JobStatusConfirmed || job.WorkerID != workerID {
		return false, nil
	}

	now := time.Now().UTC()
	job.Status = domain.JobStatusInProgress
	job.StartedAt = &now
	if beforePhotoURL != "" {
		job.BeforePhotoURL = beforePhotoURL
	}
	job.UpdatedAt = now
	return true, nil
}

func (s *MemoryStore) CompleteJob(_ context.Context, jobID, workerID, afterPhotoURL, workerNotes string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[jobID]
	if !ok {
		return false, nil
	}
	if job.Status != domain.JobStatusInProgress || job.WorkerID != workerID {
		return false, nil
	}

	now := time.Now().UTC()
	job.Status = domain.JobStatusCompleted
	job.CompletedAt = &now
	if afterPhotoURL != "" {
		job.AfterPhotoURL = afterPhotoURL
	}
	if workerNotes != "" {
		job.WorkerNotes = workerNotes
	}
	job.UpdatedAt = now
	return true, nil
}

func (s *MemoryStore) CancelJob(_ context.Context, jobID, actorID, reason string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[jobID]
	if !ok {
		return false, nil
	}
	if !job.IsParty(actorID) {
		return false, nil
	}
	if !domain.CanTransition(job.Status, domain.JobStatusCancelled) {
		return false, nil
	}

	now := time.Now().UTC()
	job.Status = domain.JobStatusCancelled
	job.CancelledAt = &now
	job.CancelledBy = actorID
	job.CancellationReason = reason
	job.UpdatedAt = now
	return true, nil
}

func (s *MemoryStore) MarkReviewed(_ context.Context, jobID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.markReviewedLocked(jobID), nil
}

func (s *MemoryStore) markReviewedLocked(jobID string) bool {
	job, ok := s.jobs[jobID]
	if !ok {
		return false
	}
	if job.Status != domain.JobStatusCompleted {
		return false
	}

	now := time.Now().UTC()
	job.Status = domain.JobStatusReviewed
	job.ReviewedAt = &now
	job.UpdatedAt = now
	return true
}

func (s *MemoryStore) UpdatePaymentStatus(_ context.Context, jobID string, status domain.PaymentStatus, paymentRef string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[jobID]
	if !ok {
		return ErrNotFound
	}
	job.PaymentStatus = status
	if paymentRef != "" {
		job.PaymentRef = paymentRef
	}
	job.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *MemoryStore) ListJobsByHomeowner(_ context.Context, homeownerID string, filter domain.JobListFilter) ([]domain.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.listJobsLocked(filter, func(job *domain.Job) bool {
		return job.HomeownerID == homeownerID
	}), nil
}

func (s *MemoryStore) ListJobsByWorker(_ context.Context, workerID string, filter domain.JobListFilter) ([]domain.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.listJobsLocked(filter, func(job *domain.Job) bool {
		return job.WorkerID == workerID
	}), nil
}

func (s *MemoryStore) listJobsLocked(filter domain.JobListFilter, match func(*domain.Job) bool) []domain.Job {
	result := make([]domain.Job, 0)
	for _, job := range s.jobs {
		if !match(job) {
			continue
		}
		if len(filter.Status) > 0 && !containsStatus(filter.Status, job.Status) {
			continue
		}
		result = append(result, *cloneJob(job))
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return pageJobs(result, filter.Limit, filter.Offset)
}

func (s *MemoryStore) ListAvailableJobs(_ context.Context, filter domain.AvailableJobsFilter) ([]domain.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	result := make([]domain.Job, 0)
	for _, job := range s.jobs {
		if job.Status != domain.JobStatusPosted {
			continue
		}
		if filter.ServiceType != "" && job.ServiceType != filter.ServiceType {
			continue
		}
		if filter.MinPrice != nil && job.PriceOffered < *filter.MinPrice {
			continue
		}
		if filter.MaxPrice != nil && job.PriceOffered > *filter.MaxPrice {
			continue
		}
		if filter.MinLat != nil && filter.MaxLat != nil {
			if job.Lat == nil || *job.Lat < *filter.MinLat || *job.Lat > *filter.MaxLat {
				continue
			}
		}
		if filter.MinLng != nil && filter.MaxLng != nil {
			if job.Lng == nil || *job.Lng < *filter.MinLng || *job.Lng > *filter.MaxLng {
				continue
			}
		}
		result = append(result, *cloneJob(job))
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return pageJobs(result, filter.Limit, filter.Offset), nil
}

func (s *MemoryStore) CountJobsByStatus(_ context.Context, userID string, role domain.PartyRole) (map[domain.JobStatus]int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	counts := emptyStatusCounts()
	for _, job := range s.jobs {
		if role == domain.PartyRoleHomeowner && job.HomeownerID != userID {
			continue
		}
		if role == domain.PartyRoleWorker && job.WorkerID != userID {
			continue
		}
		counts[job.Status]++
	}
	return counts, nil
}

// --- ratings ---

func (s *MemoryStore) CreateRating(_ context.Context, rating *domain.Rating) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := ratingKey(rating.JobID, rating.RaterID)
	if _, exists := s.ratingByJobRater[key]; exists {
		return ErrDuplicate
	}

	clone := cloneRating(rating)
	s.ratings = append(s.ratings, clone)
	s.ratingByJobRater[key] = clone
	return nil
}

func (s *MemoryStore) GetRatingByJobAndRater(_ context.Context, jobID, raterID string) (*domain.Rating, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rating, ok := s.ratingByJobRater[ratingKey(jobID, raterID)]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneRating(rating), nil
}

func (s *MemoryStore) ListRatingsForJob(_ context.Context, jobID string) ([]domain.Rating, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	result := make([]domain.Rating, 0)
	for _, rating := range s.ratings {
		if rating.JobID == jobID {
			result = append(result, *cloneRating(rating))
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return result, nil
}

func (s *MemoryStore) ListRatingsForUser(_ context.Context, userID string, publicOnly bool, limit, offset int) ([]domain.Rating, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	result := make([]domain.Rating, 0)
	for _, rating := range s.ratings {
		if rating.RatedID != userID {
			continue
		}
		if publicOnly && !rating.IsPublic {
			continue
		}
		result = append(result, *cloneRating(rating))
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})

	if offset >= len(result) {
		return []domain.Rating{}, nil
	}
	result = result[offset:]
	if limit > 0 && limit < len(result) {
		result = result[:limit]
	}
	return result, nil
}

func (s *MemoryStore) UserRatingStats(_ context.Context, userID string) (domain.RatingStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.ratingStatsLocked(userID), nil
}

func (s *MemoryStore) ratingStatsLocked(userID string) domain.RatingStats {
	stats := domain.RatingStats{Distribution: map[int]int{1: 0, 2: 0, 3: 0, 4: 0, 5: 0}}
	sum := 0
	for _, rating := range s.ratings {
		if rating.RatedID != userID {
			continue
		}
		stats.TotalRatings++
		stats.Distribution[rating.Rating]++
		sum += rating.Rating
	}
	if stats.TotalRatings > 0 {
		stats.AvgRating = float64(sum) / float64(stats.TotalRatings)
	}
	return stats
}

func (s *MemoryStore) RefreshRatingAggregates(_ context.Context, userID string, role domain.PartyRole) (domain.RatingStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stats := s.ratingStatsLocked(userID)
	now := time.Now().UTC()

	switch role {
	case domain.PartyRoleWorker:
		if profile, ok := s.workerProfiles[userID]; ok {
			profile.AvgRating = stats.AvgRating
			profile.TotalRatings = stats.TotalRatings
			profile.UpdatedAt = now
		}
	case domain.PartyRoleHomeowner:
		if profile, ok := s.homeownerProfiles[userID]; ok {
			profile.AvgRating = stats.AvgRating
			profile.TotalRatings = stats.TotalRatings
			profile.UpdatedAt = now
		}
	}
	return stats, nil
}

// --- earnings ---

func (s *MemoryStore) CreateEarning(_ context.Context, earning *domain.Earning) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.createEarningLocked(earning)
}

func (s *MemoryStore) createEarningLocked(earning *domain.Earning) error {
	if _, exists := s.earningIDByJob[earning.JobID]; exists {
		return ErrDuplicate
	}

	clone := cloneEarning(earning)
	if clone.Status == "" {
		clone.Status = domain.EarningStatusPending
	}
	if clone.CreatedAt.IsZero() {
		clone.CreatedAt = time.Now().UTC()
	}
	s.earnings[clone.ID] = clone
	s.earningIDByJob[clone.JobID] = clone.ID

	if profile, ok := s.workerProfiles[clone.UserID]; ok {
		profile.TotalEarnings = fees.RoundCents(profile.TotalEarnings + clone.NetAmount)
		profile.FutureFundBalance = fees.RoundCents(profile.FutureFundBalance + clone.FutureFundContribution)
		profile.CompletedJobsCount++
		profile.UpdatedAt = time.Now().UTC()
	}
	return nil
}

func (s *MemoryStore) UpdateEarningStatus(_ context.Context, earningID string, status domain.EarningStatus, transferRef string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	earning, ok := s.earnings[earningID]
	if !ok {
		return ErrNotFound
	}
	earning.Status = status
	if transferRef != "" {
		earning.TransferRef = transferRef
	}
	return nil
}

func (s *MemoryStore) GetEarning(_ context.Context, earningID string) (*domain.Earning, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	earning, ok := s.earnings[earningID]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneEarning(earning), nil
}

func (s *MemoryStore) GetEarningByJob(_ context.Context, jobID string) (*domain.Earning, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	earningID, ok := s.earningIDByJob[jobID]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneEarning(s.earnings[earningID]), nil
}

func (s *MemoryStore) ListEarningsByUser(_ context.Context, userID string, limit, offset int) ([]domain.Earning, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	result := make([]domain.Earning, 0)
	for _, earning := range s.earnings {
		if earning.UserID == userID {
			result = append(result, *cloneEarning(earning))
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})

	if offset >= len(result) {
		return []domain.Earning{}, nil
	}
	result = result[offset:]
	if limit > 0 && limit < len(result) {
		result = result[:limit]
	}
	return result, nil
}

func (s *MemoryStore) EarningsSummary(_ context.Context, userID string) (domain.EarningsSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	weekStart := startOfWeek(now)
	monthStart := startOfMonth(now)

	summary := domain.EarningsSummary{}
	for _, earning := range s.earnings {
		if earning.UserID != userID || earning.Status != domain.EarningStatusCompleted {
			continue
		}
		summary.TotalEarned = fees.RoundCents(summary.TotalEarned + earning.NetAmount)
		summary.JobsCompleted++
		if !earning.CreatedAt.Before(monthStart) {
			summary.ThisMonth = fees.RoundCents(summary.ThisMonth + earning.NetAmount)
		}
		if !earning.CreatedAt.Before(weekStart) {
			summary.ThisWeek = fees.RoundCents(summary.ThisWeek + earning.NetAmount)
		}
	}
	if summary.JobsCompleted > 0 {
		summary.AveragePerJob = fees.RoundCents(summary.TotalEarned / float64(summary.JobsCompleted))
	}

	if profile, ok := s.workerProfiles[userID]; ok {
		summary.FutureFundBalance = profile.FutureFundBalance
	}
	summary.FutureFundProjected = fees.RoundCents(
		fees.ProjectGrowth(summary.FutureFundBalance, fees.FutureFundProjectionYears, fees.FutureFundGrowthRate),
	)
	return summary, nil
}

func (s *MemoryStore) WeeklyEarnings(_ context.Context, userID string, weeks int) ([]domain.EarningsBucket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if weeks <= 0 {
		weeks = 12
	}
	cutoff := time.Now().UTC().AddDate(0, 0, -weeks*7)
	return s.bucketEarningsLocked(userID, cutoff, startOfWeek), nil
}

func (s *MemoryStore) MonthlyEarnings(_ context.Context, userID string, months int) ([]domain.EarningsBucket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if months <= 0 {
		months = 12
	}
	cutoff := time.Now().UTC().AddDate(0, -months, 0)
	return s.bucketEarningsLocked(userID, cutoff, startOfMonth), nil
}

func (s *MemoryStore) bucketEarningsLocked(
	userID string,
	cutoff time.Time,
	bucketStart func(time.Time) time.Time,
) []domain.EarningsBucket {
	sums := make(map[time.Time]float64)
	for _, earning := range s.earnings {
		if earning.UserID != userID || earning.Status != domain.EarningStatusCompleted {
			continue
		}
		if earning.CreatedAt.Before(cutoff) {
			continue
		}
		start := bucketStart(earning.CreatedAt)
		sums[start] = fees.RoundCents(sums[start] + earning.NetAmount)
	}

	buckets := make([]domain.EarningsBucket, 0, len(sums))
	for start, amount := range sums {
		buckets = append(buckets, domain.EarningsBucket{PeriodStart: start, Amount: amount})
	}
	sort.Slice(buckets, func(i, j int) bool {
		return buckets[i].PeriodStart.Before(buckets[j].PeriodStart)
	})
	return buckets
}

// --- savings goals ---

func (s *MemoryStore) CreateSavingsGoal(_ context.Context, goal *domain.SavingsGoal) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	clone := cloneGoal(goal)
	now := time.Now().UTC()
	if clone.CreatedAt.IsZero() {
		clone.CreatedAt = now
	}
	if clone.UpdatedAt.IsZero() {
		clone.UpdatedAt = now
	}
	s.goals[clone.ID] = clone
	return nil
}

func (s *MemoryStore) GetSavingsGoal(_ context.Context, goalID string) (*domain.SavingsGoal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	goal, ok := s.goals[goalID]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneGoal(goal), nil
}

func (s *MemoryStore) ListSavingsGoalsByUser(_ context.Context, userID string) ([]domain.SavingsGoal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	result := make([]domain.SavingsGoal, 0)
	for _, goal := range s.goals {
		if goal.UserID == userID {
			result = append(result, *cloneGoal(goal))
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Priority != result[j].Priority {
			return result[i].Priority > result[j].Priority
		}
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return result, nil
}

func (s *MemoryStore) UpdateSavingsGoal(_ context.Context, goalID string, update SavingsGoalUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	goal, ok := s.goals[goalID]
	if !ok {
		return ErrNotFound
	}
	if update.Name != nil {
		goal.Name = *update.Name
	}
	if update.Description != nil {
		goal.Description = *update.Description
	}
	if update.TargetAmount != nil {
		goal.TargetAmount = *update.TargetAmount
	}
	if update.TargetDate != nil {
		goal.TargetDate = cloneTime(update.TargetDate)
	}
	if update.Priority != nil {
		goal.Priority = *update.Priority
	}
	goal.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *MemoryStore) AddToSavingsGoal(_ context.Context, goalID string, amount float64) (*domain.SavingsGoal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	goal, ok := s.goals[goalID]
	if !ok {
		return nil, ErrNotFound
	}

	now := time.Now().UTC()
	goal.CurrentAmount = fees.RoundCents(goal.CurrentAmount + amount)
	if !goal.Achieved && goal.CurrentAmount >= goal.TargetAmount {
		goal.Achieved = true
		goal.AchievedAt = &now
	}
	goal.UpdatedAt = now
	return cloneGoal(goal), nil
}

func (s *MemoryStore) DeleteSavingsGoal(_ context.Context, goalID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.goals[goalID]; !ok {
		return ErrNotFound
	}
	delete(s.goals, goalID)
	return nil
}

func (s *MemoryStore) GoalProgress(_ context.Context, userID string) (domain.GoalProgress, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	progress := domain.GoalProgress{}
	for _, goal := range s.goals {
		if goal.UserID != userID {
			continue
		}
		progress.TotalGoals++
		if goal.Achieved {
			progress.AchievedGoals++
		}
		progress.TotalTarget = fees.RoundCents(progress.TotalTarget + goal.TargetAmount)
		progress.TotalSaved = fees.RoundCents(progress.TotalSaved + goal.CurrentAmount)
	}
	if progress.TotalTarget > 0 {
		progress.OverallProgress = progress.TotalSaved / progress.TotalTarget * 100
	}
	return progress, nil
}

// --- profiles ---

func (s *MemoryStore) CreateWorkerProfile(_ context.Context, profile *domain.WorkerProfile) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.workerProfiles[profile.UserID] = cloneWorkerProfile(profile)
	return nil
}

func (s *MemoryStore) CreateHomeownerProfile(_ context.Context, profile *domain.HomeownerProfile) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.homeownerProfiles[profile.UserID] = cloneHomeownerProfile(profile)
	return nil
}

func (s *MemoryStore) GetWorkerProfile(_ context.Context, userID string) (*domain.WorkerProfile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	profile, ok := s.workerProfiles[userID]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneWorkerProfile(profile), nil
}

func (s *MemoryStore) GetHomeownerProfile(_ context.Context, userID string) (*domain.HomeownerProfile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	profile, ok := s.homeownerProfiles[userID]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneHomeownerProfile(profile), nil
}

func (s *MemoryStore) IncrementJobsPosted(_ context.Context, homeownerUserID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if profile, ok := s.homeownerProfiles[homeownerUserID]; ok {
		profile.JobsPostedCount++
		profile.UpdatedAt = time.Now().UTC()
	}
	return nil
}

// --- settlement ---

func (s *MemoryStore) SettleJob(_ context.Context, params SettleParams) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[params.JobID]
	if !ok {
		return false, nil
	}
	snapshot := *job

	// Winning the completed → reviewed transition is the once-only gate.
	if !s.markReviewedLocked(params.JobID) {
		return false, nil
	}

	if err := s.createEarningLocked(&params.Earning); err != nil {
		// The SQL store rolls the whole transaction back on this branch; a
		// failed insert must not leave the job reviewed without its earning.
		*job = snapshot
		return false, err
	}

	if profile, ok := s.homeownerProfiles[params.HomeownerID]; ok {
		profile.JobsCompletedCount++
		profile.UpdatedAt = time.Now().UTC()
	}
	return true, nil
}

// --- helpers ---

func ratingKey(jobID, raterID string) string {
	return jobID + "\x00" + raterID
}

func containsStatus(statuses []domain.JobStatus, status domain.JobStatus) bool {
	for _, candidate := range statuses {
		if candidate == status {
			return true
		}
	}
	return false
}

func pageJobs(jobs []domain.Job, limit, offset int) []domain.Job {
	if offset >= len(jobs) {
		return []domain.Job{}
	}
	jobs = jobs[offset:]
	if limit <= 0 {
		limit = 50
	}
	if limit < len(jobs) {
		jobs = jobs[:limit]
	}
	return jobs
}

func emptyStatusCounts() map[domain.JobStatus]int {
	return map[domain.JobStatus]int{
		domain.JobStatusPosted:     0,
		domain.JobStatusClaimed:    0,
		domain.JobStatusConfirmed:  0,
		domain.JobStatusInProgress: 0,
		domain.JobStatusCompleted:  0,
		domain.JobStatusReviewed:   0,
		domain.JobStatusCancelled:  0,
		domain.JobStatusDisputed:   0,
	}
}

// startOfWeek truncates to midnight of the most recent Sunday.
func startOfWeek(t time.Time) time.Time {
	t = t.UTC()
	midnight := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	return midnight.AddDate(0, 0, -int(midnight.Weekday()))
}

func startOfMonth(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}

func cloneJob(job *domain.Job) *domain.Job {
	if job == nil {
		return nil
	}
	clone := *job
	clone.Lat = cloneFloat(job.Lat)
	clone.Lng = cloneFloat(job.Lng)
	clone.ScheduledFor = cloneTime(job.ScheduledFor)
	clone.ClaimedAt = cloneTime(job.ClaimedAt)
	clone.ConfirmedAt = cloneTime(job.ConfirmedAt)
	clone.StartedAt = cloneTime(job.StartedAt)
	clone.CompletedAt = cloneTime(job.CompletedAt)
	clone.ReviewedAt = cloneTime(job.ReviewedAt)
	clone.CancelledAt = cloneTime(job.CancelledAt)
	return &clone
}

func cloneRating(rating *domain.Rating) *domain.Rating {
	if rating == nil {
		return nil
	}
	clone := *rating
	return &clone
}

func cloneEarning(earning *domain.Earning) *domain.Earning {
	if earning == nil {
		return nil
	}
	clone := *earning
	return &clone
}

func cloneGoal(goal *domain.SavingsGoal) *domain.SavingsGoal {
	if goal == nil {
		return nil
	}
	clone := *goal
	clone.TargetDate = cloneTime(goal.TargetDate)
	clone.AchievedAt = cloneTime(goal.AchievedAt)
	return &clone
}

func cloneWorkerProfile(profile *domain.WorkerProfile) *domain.WorkerProfile {
	if profile == nil {
		return nil
	}
	clone := *profile
	return &clone
}

func cloneHomeownerProfile(profile *domain.HomeownerProfile) *domain.HomeownerProfile {
	if profile == nil {
		return nil
	}
	clone := *profile
	return &clone
}

func cloneTime(value *time.Time) *time.Time {
	if value == nil {
		return nil
	}
	clone := *value
	return &clone
}

func cloneFloat(value *float64) *float64 {
	if value == nil {
		return nil
	}
	clone := *value
	return &clone
}
