package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/kidshovel/marketplace-back/internal/cache"
	httpserver "github.com/kidshovel/marketplace-back/internal/http"
	"github.com/kidshovel/marketplace-back/internal/http/handlers"
	"github.com/kidshovel/marketplace-back/internal/notify"
	"github.com/kidshovel/marketplace-back/internal/payment"
	"github.com/kidshovel/marketplace-back/internal/queue"
	"github.com/kidshovel/marketplace-back/internal/ratelimit"
	"github.com/kidshovel/marketplace-back/internal/repository"
	"github.com/kidshovel/marketplace-back/internal/service"
	"github.com/kidshovel/marketplace-back/internal/worker"
)

type integrationRuntime struct {
	server *httptest.Server
	cancel context.CancelFunc
}

func startIntegrationRuntime(t *testing.T) integrationRuntime {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	logger := log.New(io.Discard, "", 0)
	store := repository.NewMemoryStore()
	localQueue := queue.NewLocalQueue(2048, 3, logger)
	limiter := ratelimit.NewMemoryLimiter()
	dispatcher := notify.NewDispatcher(localQueue, logger)
	summaryCache := cache.NewSummaryCache(cache.Config{})

	jobsService := service.NewJobsService(store, dispatcher, logger)
	ratingsService := service.NewRatingsService(store, dispatcher, summaryCache, logger)
	earningsService := service.NewEarningsService(store, summaryCache)
	paymentsService := payment.NewService(store, payment.NoopGateway{}, logger)

	api := handlers.NewAPI(jobsService, ratingsService, earningsService, paymentsService)
	router := httpserver.NewRouter(httpserver.RouterDependencies{
		API:            api,
		Logger:         logger,
		AuthToken:      "",
		RateLimitRPS:   20000,
		RateLimitBurst: 20000,
	})

	processor := worker.NewProcessor(localQueue, notify.NewLogSender(logger), limiter, 0, logger)
	go processor.Start(ctx)

	server := httptest.NewServer(router)
	return integrationRuntime{
		server: server,
		cancel: func() {
			cancel()
			server.Close()
		},
	}
}

func postJSON(
	t *testing.T,
	client *http.Client,
	url string,
	payload any,
	headers map[string]string,
) (int, map[string]any) {
	t.Helper()

	encoded, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	request, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(encoded))
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	request.Header.Set("Content-Type", "application/json")
	request.Header.Set("Accept", "application/json")
	for key, value := range headers {
		request.Header.Set(key, value)
	}

	response, err := client.Do(request)
	if err != nil {
		t.Fatalf("execute request: %v", err)
	}
	defer response.Body.Close()

	raw, _ := io.ReadAll(response.Body)
	if len(raw) == 0 {
		return response.StatusCode, map[string]any{}
	}

	var decoded map[string]any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("decode response body (%d): %s", response.StatusCode, string(raw))
	}

	return response.StatusCode, decoded
}

func getJSON(t *testing.T, client *http.Client, url string) (int, map[string]any) {
	t.Helper()
	request, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		t.Fatalf("build get request: %v", err)
	}
	request.Header.Set("Accept", "application/json")

	response, err := client.Do(request)
	if err != nil {
		t.Fatalf("execute get request: %v", err)
	}
	defer response.Body.Close()

	raw, _ := io.ReadAll(response.Body)
	if len(raw) == 0 {
		return response.StatusCode, map[string]any{}
	}

	var decoded map[string]any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("decode get response body (%d): %s", response.StatusCode, string(raw))
	}

	return response.StatusCode, decoded
}

func createJobOverHTTP(t *testing.T, client *http.Client, baseURL string, headers map[string]string) string {
	t.Helper()

	payload := map[string]any{
		"homeowner_id":   "homeowner-int-1",
		"service_type":   "driveway",
		"address":        "12 Birch Ln",
		"city":           "Cleveland",
		"zip":            "44101",
		"lat":            41.4993,
		"lng":            -81.6944,
		"price_offered":  40.0,
		"payment_method": "card",
		"is_asap":        true,
	}
	status, body := postJSON(t, client, baseURL+"/v1/jobs", payload, headers)
	if status != http.StatusCreated {
		t.Fatalf("expected 201 creating job, got %d body=%+v", status, body)
	}
	jobID, _ := body["id"].(string)
	if strings.TrimSpace(jobID) == "" {
		t.Fatalf("expected job id in response, got %+v", body)
	}
	return jobID
}

func runAction(t *testing.T, client *http.Client, baseURL, jobID, action string, payload map[string]any, wantStatus string) map[string]any {
	t.Helper()

	status, body := postJSON(t, client, fmt.Sprintf("%s/v1/jobs/%s/%s", baseURL, jobID, action), payload, nil)
	if status != http.StatusOK {
		t.Fatalf("expected 200 from %s, got %d body=%+v", action, status, body)
	}
	if got, _ := body["status"].(string); got != wantStatus {
		t.Fatalf("expected status %q after %s, got %q", wantStatus, action, got)
	}
	return body
}

func TestJobLifecycleAndSettlementOverHTTP(t *testing.T) {
	runtime := startIntegrationRuntime(t)
	defer runtime.cancel()

	client := runtime.server.Client()
	baseURL := runtime.server.URL

	jobID := createJobOverHTTP(t, client, baseURL, nil)

	availableStatus, availableBody := getJSON(t, client,
		baseURL+"/v1/jobs/available?lat=41.49&lng=-81.69&radius_miles=15")
	if availableStatus != http.StatusOK {
		t.Fatalf("expected 200 listing available jobs, got %d", availableStatus)
	}
	availableJobs, _ := availableBody["jobs"].([]any)
	if len(availableJobs) != 1 {
		t.Fatalf("expected the posted job in the available feed, got %+v", availableBody)
	}

	runAction(t, client, baseURL, jobID, "claim",
		map[string]any{"worker_id": "worker-int-1"}, "claimed")

	// A second worker arriving after the claim loses cleanly.
	lateStatus, lateBody := postJSON(t, client,
		fmt.Sprintf("%s/v1/jobs/%s/claim", baseURL, jobID),
		map[string]any{"worker_id": "worker-int-2"}, nil)
	if lateStatus != http.StatusConflict {
		t.Fatalf("expected 409 for late claim, got %d body=%+v", lateStatus, lateBody)
	}

	runAction(t, client, baseURL, jobID, "confirm",
		map[string]any{"actor_id": "homeowner-int-1", "price_accepted": 45.0}, "confirmed")
	runAction(t, client, baseURL, jobID, "start",
		map[string]any{"worker_id": "worker-int-1", "before_photo_url": "https://cdn.example/before.jpg"}, "in_progress")
	runAction(t, client, baseURL, jobID, "complete",
		map[string]any{"worker_id": "worker-int-1", "after_photo_url": "https://cdn.example/after.jpg"}, "completed")

	// Homeowner rates first; the job stays completed until both sides rate.
	firstRatingStatus, firstRatingBody := postJSON(t, client, baseURL+"/v1/ratings", map[string]any{
		"job_id":      jobID,
		"rater_id":    "homeowner-int-1",
		"rating":      5,
		"review_text": "great work, reach me at owner@example.com next storm",
	}, nil)
	if firstRatingStatus != http.StatusCreated {
		t.Fatalf("expected 201 from first rating, got %d body=%+v", firstRatingStatus, firstRatingBody)
	}
	if review, _ := firstRatingBody["review_text"].(string); strings.Contains(review, "owner@example.com") {
		t.Fatalf("expected contact info masked in stored review, got %q", review)
	}

	_, jobBody := getJSON(t, client, fmt.Sprintf("%s/v1/jobs/%s", baseURL, jobID))
	if got, _ := jobBody["status"].(string); got != "completed" {
		t.Fatalf("expected job still completed after one rating, got %q", got)
	}

	secondRatingStatus, secondRatingBody := postJSON(t, client, baseURL+"/v1/ratings", map[string]any{
		"job_id":   jobID,
		"rater_id": "worker-int-1",
		"rating":   4,
	}, nil)
	if secondRatingStatus != http.StatusCreated {
		t.Fatalf("expected 201 from second rating, got %d body=%+v", secondRatingStatus, secondRatingBody)
	}

	_, jobBody = getJSON(t, client, fmt.Sprintf("%s/v1/jobs/%s", baseURL, jobID))
	if got, _ := jobBody["status"].(string); got != "reviewed" {
		t.Fatalf("expected job reviewed after both ratings, got %q", got)
	}

	earningsStatus, earningsBody := getJSON(t, client, baseURL+"/v1/workers/worker-int-1/earnings")
	if earningsStatus != http.StatusOK {
		t.Fatalf("expected 200 listing earnings, got %d", earningsStatus)
	}
	earnings, _ := earningsBody["earnings"].([]any)
	if len(earnings) != 1 {
		t.Fatalf("expected exactly one earning after settlement, got %+v", earningsBody)
	}
	earning, _ := earnings[0].(map[string]any)
	if gross, _ := earning["gross_amount"].(float64); gross != 45.0 {
		t.Fatalf("expected gross 45.00 from renegotiated price, got %v", earning["gross_amount"])
	}
	if net, _ := earning["net_amount"].(float64); net != 40.50 {
		t.Fatalf("expected net 40.50 after 7%%+3%% fees, got %v", earning["net_amount"])
	}

	summaryStatus, summaryBody := getJSON(t, client, baseURL+"/v1/workers/worker-int-1/earnings/summary")
	if summaryStatus != http.StatusOK {
		t.Fatalf("expected 200 from earnings summary, got %d body=%+v", summaryStatus, summaryBody)
	}
}

func TestJobCreationIdempotencyOverHTTP(t *testing.T) {
	runtime := startIntegrationRuntime(t)
	defer runtime.cancel()

	client := runtime.server.Client()
	baseURL := runtime.server.URL
	headers := map[string]string{"Idempotency-Key": "job-int-idem-0001"}

	jobID := createJobOverHTTP(t, client, baseURL, headers)

	payload := map[string]any{
		"homeowner_id":   "homeowner-int-1",
		"service_type":   "driveway",
		"address":        "12 Birch Ln",
		"city":           "Cleveland",
		"zip":            "44101",
		"lat":            41.4993,
		"lng":            -81.6944,
		"price_offered":  40.0,
		"payment_method": "card",
		"is_asap":        true,
	}
	replayStatus, replayBody := postJSON(t, client, baseURL+"/v1/jobs", payload, headers)
	if replayStatus != http.StatusOK {
		t.Fatalf("expected 200 replaying idempotent create, got %d body=%+v", replayStatus, replayBody)
	}
	if replayID, _ := replayBody["id"].(string); replayID != jobID {
		t.Fatalf("expected replay to return the original job %s, got %s", jobID, replayID)
	}

	payload["price_offered"] = 99.0
	conflictStatus, conflictBody := postJSON(t, client, baseURL+"/v1/jobs", payload, headers)
	if conflictStatus != http.StatusConflict {
		t.Fatalf("expected 409 reusing key with new payload, got %d body=%+v", conflictStatus, conflictBody)
	}
}

func TestReviewPolicyAndValidationOverHTTP(t *testing.T) {
	runtime := startIntegrationRuntime(t)
	defer runtime.cancel()

	client := runtime.server.Client()
	baseURL := runtime.server.URL

	jobID := createJobOverHTTP(t, client, baseURL, nil)
	runAction(t, client, baseURL, jobID, "claim",
		map[string]any{"worker_id": "worker-int-1"}, "claimed")
	runAction(t, client, baseURL, jobID, "confirm",
		map[string]any{"actor_id": "homeowner-int-1"}, "confirmed")
	runAction(t, client, baseURL, jobID, "start",
		map[string]any{"worker_id": "worker-int-1"}, "in_progress")
	runAction(t, client, baseURL, jobID, "complete",
		map[string]any{"worker_id": "worker-int-1"}, "completed")

	blockedStatus, blockedBody := postJSON(t, client, baseURL+"/v1/ratings", map[string]any{
		"job_id":      jobID,
		"rater_id":    "homeowner-int-1",
		"rating":      5,
		"review_text": "next time just venmo me and skip the app",
	}, nil)
	if blockedStatus != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 for off-platform solicitation, got %d body=%+v", blockedStatus, blockedBody)
	}
	envelope, _ := blockedBody["error"].(map[string]any)
	if code, _ := envelope["code"].(string); code != "review_rejected" {
		t.Fatalf("expected review_rejected error code, got %+v", blockedBody)
	}

	invalidStatus, invalidBody := postJSON(t, client, baseURL+"/v1/ratings", map[string]any{
		"job_id":   jobID,
		"rater_id": "homeowner-int-1",
		"rating":   6,
	}, nil)
	if invalidStatus != http.StatusBadRequest {
		t.Fatalf("expected 400 for out of range rating, got %d body=%+v", invalidStatus, invalidBody)
	}

	intruderStatus, intruderBody := postJSON(t, client, baseURL+"/v1/ratings", map[string]any{
		"job_id":   jobID,
		"rater_id": "worker-int-9",
		"rating":   5,
	}, nil)
	if intruderStatus != http.StatusForbidden {
		t.Fatalf("expected 403 for non-party rater, got %d body=%+v", intruderStatus, intruderBody)
	}
}

func TestGrowthCalculatorOverHTTP(t *testing.T) {
	runtime := startIntegrationRuntime(t)
	defer runtime.cancel()

	client := runtime.server.Client()
	baseURL := runtime.server.URL

	status, body := getJSON(t, client,
		baseURL+"/v1/calculator/growth?principal=1000&years=10&rate=0.07")
	if status != http.StatusOK {
		t.Fatalf("expected 200 from growth calculator, got %d body=%+v", status, body)
	}
	projected, _ := body["projected"].(float64)
	if projected < 1967.14 || projected > 1967.16 {
		t.Fatalf("expected projection near 1967.15, got %v", projected)
	}

	badStatus, badBody := getJSON(t, client,
		baseURL+"/v1/calculator/growth?principal=-5&years=10&rate=0.07")
	if badStatus != http.StatusBadRequest {
		t.Fatalf("expected 400 for negative principal, got %d body=%+v", badStatus, badBody)
	}
}

func sendJSON(t *testing.T, client *http.Client, method, url string, payload any) (int, map[string]any) {
	t.Helper()

	var body io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			t.Fatalf("marshal payload: %v", err)
		}
		body = bytes.NewReader(encoded)
	}
	request, err := http.NewRequest(method, url, body)
	if err != nil {
		t.Fatalf("build %s request: %v", method, err)
	}
	if payload != nil {
		request.Header.Set("Content-Type", "application/json")
	}
	request.Header.Set("Accept", "application/json")

	response, err := client.Do(request)
	if err != nil {
		t.Fatalf("execute %s request: %v", method, err)
	}
	defer response.Body.Close()

	raw, _ := io.ReadAll(response.Body)
	if len(raw) == 0 {
		return response.StatusCode, map[string]any{}
	}

	var decoded map[string]any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("decode %s response body (%d): %s", method, response.StatusCode, string(raw))
	}
	return response.StatusCode, decoded
}

func TestSavingsGoalsOverHTTP(t *testing.T) {
	runtime := startIntegrationRuntime(t)
	defer runtime.cancel()

	client := runtime.server.Client()
	baseURL := runtime.server.URL
	goalsURL := baseURL + "/v1/workers/worker-goals-1/goals"

	status, body := postJSON(t, client, goalsURL, map[string]any{
		"name":          "New snow blower",
		"target_amount": 300.0,
		"priority":      1,
	}, nil)
	if status != http.StatusCreated {
		t.Fatalf("create goal: status=%d body=%+v", status, body)
	}
	goal := body["goal"].(map[string]any)
	goalID := goal["id"].(string)
	if goal["achieved"].(bool) || goal["current_amount"].(float64) != 0 {
		t.Fatalf("new goal should start empty: %+v", goal)
	}

	status, body = getJSON(t, client, goalsURL)
	if status != http.StatusOK {
		t.Fatalf("list goals: status=%d", status)
	}
	if goals := body["goals"].([]any); len(goals) != 1 {
		t.Fatalf("got %d goals, want 1", len(goals))
	}
	progress := body["progress"].(map[string]any)
	if progress["total_target"].(float64) != 300 {
		t.Fatalf("progress=%+v", progress)
	}

	status, body = postJSON(t, client, goalsURL+"/"+goalID+"/add", map[string]any{"amount": 120.0}, nil)
	if status != http.StatusOK {
		t.Fatalf("first deposit: status=%d body=%+v", status, body)
	}
	goal = body["goal"].(map[string]any)
	if goal["current_amount"].(float64) != 120 || goal["achieved"].(bool) {
		t.Fatalf("after first deposit: %+v", goal)
	}

	status, body = postJSON(t, client, goalsURL+"/"+goalID+"/add", map[string]any{"amount": 180.0}, nil)
	if status != http.StatusOK {
		t.Fatalf("second deposit: status=%d body=%+v", status, body)
	}
	goal = body["goal"].(map[string]any)
	if !goal["achieved"].(bool) || goal["achieved_at"] == nil {
		t.Fatalf("goal should be achieved at target: %+v", goal)
	}

	status, body = sendJSON(t, client, http.MethodPatch, goalsURL+"/"+goalID, map[string]any{
		"name": "Two-stage snow blower",
	})
	if status != http.StatusOK {
		t.Fatalf("rename goal: status=%d body=%+v", status, body)
	}
	if body["goal"].(map[string]any)["name"] != "Two-stage snow blower" {
		t.Fatalf("rename did not stick: %+v", body)
	}

	// Another worker's path must not reach this goal.
	status, _ = getJSON(t, client, baseURL+"/v1/workers/worker-goals-2/goals/"+goalID)
	if status != http.StatusForbidden {
		t.Fatalf("expected 403 for foreign goal, got %d", status)
	}

	status, body = postJSON(t, client, goalsURL, map[string]any{
		"name":          "Broken",
		"target_amount": 0.0,
	}, nil)
	if status != http.StatusBadRequest {
		t.Fatalf("expected 400 for zero target, got %d body=%+v", status, body)
	}

	status, _ = sendJSON(t, client, http.MethodDelete, goalsURL+"/"+goalID, nil)
	if status != http.StatusOK {
		t.Fatalf("delete goal: status=%d", status)
	}
	status, _ = getJSON(t, client, goalsURL+"/"+goalID)
	if status != http.StatusNotFound {
		t.Fatalf("expected 404 after delete, got %d", status)
	}
}
