package handlers

import (
	"net/http"
	"time"

	"github.com/kidshovel/marketplace-back/internal/domain"
	"github.com/kidshovel/marketplace-back/internal/repository"
	"github.com/kidshovel/marketplace-back/internal/service"
)

type savingsGoalPayload struct {
	ID            string     `json:"id"`
	Name          string     `json:"name"`
	Description   string     `json:"description,omitempty"`
	TargetAmount  float64    `json:"target_amount"`
	CurrentAmount float64    `json:"current_amount"`
	TargetDate    *time.Time `json:"target_date,omitempty"`
	Priority      int        `json:"priority"`
	Achieved      bool       `json:"achieved"`
	AchievedAt    *time.Time `json:"achieved_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

func toGoalPayload(goal *domain.SavingsGoal) savingsGoalPayload {
	return savingsGoalPayload{
		ID:            goal.ID,
		Name:          goal.Name,
		Description:   goal.Description,
		TargetAmount:  goal.TargetAmount,
		CurrentAmount: goal.CurrentAmount,
		TargetDate:    goal.TargetDate,
		Priority:      goal.Priority,
		Achieved:      goal.Achieved,
		AchievedAt:    goal.AchievedAt,
		CreatedAt:     goal.CreatedAt,
		UpdatedAt:     goal.UpdatedAt,
	}
}

func toGoalPayloads(goals []domain.SavingsGoal) []savingsGoalPayload {
	payloads := make([]savingsGoalPayload, 0, len(goals))
	for i := range goals {
		payloads = append(payloads, toGoalPayload(&goals[i]))
	}
	return payloads
}

type goalProgressPayload struct {
	TotalGoals      int     `json:"total_goals"`
	AchievedGoals   int     `json:"achieved_goals"`
	TotalTarget     float64 `json:"total_target"`
	TotalSaved      float64 `json:"total_saved"`
	OverallProgress float64 `json:"overall_progress"`
}

// workerGoals dispatches the savings goal routes:
// GET/POST /v1/workers/{id}/goals, GET/PATCH/DELETE /goals/{goalID}, and
// POST /goals/{goalID}/add for deposits.
func (api *API) workerGoals(w http.ResponseWriter, r *http.Request, workerID string, segments []string) {
	switch {
	case len(segments) == 0:
		switch r.Method {
		case http.MethodGet:
			api.listGoals(w, r, workerID)
		case http.MethodPost:
			api.createGoal(w, r, workerID)
		default:
			writeError(w, r, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		}
	case len(segments) == 1:
		goalID := segments[0]
		switch r.Method {
		case http.MethodGet:
			api.getGoal(w, r, workerID, goalID)
		case http.MethodPatch:
			api.updateGoal(w, r, workerID, goalID)
		case http.MethodDelete:
			api.deleteGoal(w, r, workerID, goalID)
		default:
			writeError(w, r, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		}
	case len(segments) == 2 && segments[1] == "add":
		if r.Method != http.MethodPost {
			writeError(w, r, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
			return
		}
		api.addToGoal(w, r, workerID, segments[0])
	default:
		writeError(w, r, http.StatusNotFound, "not_found", "unknown route")
	}
}

func (api *API) listGoals(w http.ResponseWriter, r *http.Request, workerID string) {
	goals, progress, err := api.earnings.ListGoals(r.Context(), workerID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"goals": toGoalPayloads(goals),
		"progress": goalProgressPayload{
			TotalGoals:      progress.TotalGoals,
			AchievedGoals:   progress.AchievedGoals,
			TotalTarget:     progress.TotalTarget,
			TotalSaved:      progress.TotalSaved,
			OverallProgress: progress.OverallProgress,
		},
	})
}

type createGoalRequest struct {
	Name         string     `json:"name"`
	Description  string     `json:"description"`
	TargetAmount float64    `json:"target_amount"`
	TargetDate   *time.Time `json:"target_date"`
	Priority     int        `json:"priority"`
}

func (api *API) createGoal(w http.ResponseWriter, r *http.Request, workerID string) {
	var req createGoalRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid_request", "invalid payload")
		return
	}

	goal, err := api.earnings.CreateGoal(r.Context(), workerID, service.SavingsGoalInput{
		Name:         req.Name,
		Description:  req.Description,
		TargetAmount: req.TargetAmount,
		TargetDate:   req.TargetDate,
		Priority:     req.Priority,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"goal": toGoalPayload(goal)})
}

func (api *API) getGoal(w http.ResponseWriter, r *http.Request, workerID, goalID string) {
	goal, err := api.earnings.GetGoal(r.Context(), workerID, goalID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"goal": toGoalPayload(goal)})
}

type updateGoalRequest struct {
	Name         *string    `json:"name"`
	Description  *string    `json:"description"`
	TargetAmount *float64   `json:"target_amount"`
	TargetDate   *time.Time `json:"target_date"`
	Priority     *int       `json:"priority"`
}

func (api *API) updateGoal(w http.ResponseWriter, r *http.Request, workerID, goalID string) {
	var req updateGoalRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid_request", "invalid payload")
		return
	}

	goal, err := api.earnings.UpdateGoal(r.Context(), workerID, goalID, repository.SavingsGoalUpdate{
		Name:         req.Name,
		Description:  req.Description,
		TargetAmount: req.TargetAmount,
		TargetDate:   req.TargetDate,
		Priority:     req.Priority,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"goal": toGoalPayload(goal)})
}

func (api *API) deleteGoal(w http.ResponseWriter, r *http.Request, workerID, goalID string) {
	if err := api.earnings.DeleteGoal(r.Context(), workerID, goalID); err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"deleted": true})
}

type addToGoalRequest struct {
	Amount float64 `json:"amount"`
}

func (api *API) addToGoal(w http.ResponseWriter, r *http.Request, workerID, goalID string) {
	var req addToGoalRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid_request", "invalid payload")
		return
	}

	goal, err := api.earnings.AddToGoal(r.Context(), workerID, goalID, req.Amount)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"goal": toGoalPayload(goal)})
}
