package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"math"
	"net/http"
	"net/http/httptest"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"

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

type scenarioResult struct {
	Name          string   `json:"name"`
	Total         int      `json:"total"`
	Success       int      `json:"success"`
	Errors        int      `json:"errors"`
	P50MS         float64  `json:"p50_ms"`
	P95MS         float64  `json:"p95_ms"`
	P99MS         float64  `json:"p99_ms"`
	MaxMS         float64  `json:"max_ms"`
	ThroughputRPS float64  `json:"throughput_rps"`
	ErrorSamples  []string `json:"error_samples,omitempty"`
}

type runResult struct {
	GeneratedAtUTC string           `json:"generated_at_utc"`
	Environment    string           `json:"environment"`
	Results        []scenarioResult `json:"results"`
	SLOEvaluation  map[string]bool  `json:"slo_evaluation"`
}

type benchmarkEnv struct {
	server *httptest.Server
	cancel context.CancelFunc
}

func main() {
	createTotal := flag.Int("create-total", 300, "total job creation requests")
	createConcurrency := flag.Int("create-concurrency", 24, "concurrency for job creation requests")
	feedTotal := flag.Int("feed-total", 260, "total available-feed requests")
	feedConcurrency := flag.Int("feed-concurrency", 24, "concurrency for available-feed requests")
	lifecycleTotal := flag.Int("lifecycle-total", 140, "total full job lifecycle walks")
	lifecycleConcurrency := flag.Int("lifecycle-concurrency", 16, "concurrency for lifecycle walks")
	calculatorTotal := flag.Int("calculator-total", 200, "total growth calculator requests")
	calculatorConcurrency := flag.Int("calculator-concurrency", 20, "concurrency for calculator requests")
	outputPath := flag.String("output", "", "optional path to persist benchmark results JSON")
	flag.Parse()

	env, err := startBenchmarkEnvironment()
	if err != nil {
		log.Fatalf("failed to start local benchmark environment: %v", err)
	}
	defer env.cancel()
	defer env.server.Close()

	client := &http.Client{Timeout: 10 * time.Second}

	createScenario := runScenario("job_create", *createTotal, *createConcurrency, func(index int) error {
		_, err := createJob(client, env.server.URL, fmt.Sprintf("homeowner-%d", index%40))
		return err
	})

	feedScenario := runScenario("available_feed", *feedTotal, *feedConcurrency, func(index int) error {
		query := fmt.Sprintf(
			"%s/v1/jobs/available?lat=41.49&lng=-81.69&radius_miles=%d&limit=20",
			env.server.URL,
			5+(index%20),
		)
		return getJSON(client, query, http.StatusOK)
	})

	lifecycleScenario := runScenario("job_lifecycle_settled", *lifecycleTotal, *lifecycleConcurrency, func(index int) error {
		return walkLifecycle(client, env.server.URL, index)
	})

	calculatorScenario := runScenario("growth_calculator", *calculatorTotal, *calculatorConcurrency, func(index int) error {
		query := fmt.Sprintf(
			"%s/v1/calculator/growth?principal=%d&years=10&rate=0.07",
			env.server.URL,
			100+(index%900),
		)
		return getJSON(client, query, http.StatusOK)
	})

	results := []scenarioResult{
		createScenario,
		feedScenario,
		lifecycleScenario,
		calculatorScenario,
	}

	slo := map[string]bool{
		"job_create_p95_le_500ms":     createScenario.P95MS <= 500,
		"available_feed_p95_le_500ms": feedScenario.P95MS <= 500,
		"lifecycle_p95_le_2000ms":     lifecycleScenario.P95MS <= 2000,
	}

	report := runResult{
		GeneratedAtUTC: time.Now().UTC().Format(time.RFC3339Nano),
		Environment:    "local-httptest",
		Results:        results,
		SLOEvaluation:  slo,
	}

	encoded, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		log.Fatalf("failed to marshal benchmark report: %v", err)
	}

	if *outputPath != "" {
		if err := os.WriteFile(*outputPath, encoded, 0o644); err != nil {
			log.Fatalf("failed to write output file: %v", err)
		}
	}

	_, _ = fmt.Fprintln(os.Stdout, string(encoded))
}

func startBenchmarkEnvironment() (*benchmarkEnv, error) {
	ctx, cancel := context.WithCancel(context.Background())
	logger := log.New(io.Discard, "", 0)

	store := repository.NewMemoryStore()
	localQueue := queue.NewLocalQueue(4096, 3, logger)
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
	return &benchmarkEnv{
		server: server,
		cancel: cancel,
	}, nil
}

func createJob(client *http.Client, baseURL, homeownerID string) (string, error) {
	payload := map[string]any{
		"homeowner_id":   homeownerID,
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
	body, err := postJSONBody(client, baseURL+"/v1/jobs", payload, http.StatusCreated)
	if err != nil {
		return "", err
	}
	jobID, _ := body["id"].(string)
	if jobID == "" {
		return "", fmt.Errorf("missing job id in create response")
	}
	return jobID, nil
}

// walkLifecycle drives one job from posted to settled, rating from both
// sides. Every hop goes over HTTP so the run exercises the same path the
// clients do.
func walkLifecycle(client *http.Client, baseURL string, index int) error {
	homeownerID := fmt.Sprintf("homeowner-lc-%d", index)
	workerID := fmt.Sprintf("worker-lc-%d", index)

	jobID, err := createJob(client, baseURL, homeownerID)
	if err != nil {
		return err
	}

	actions := []struct {
		action  string
		payload map[string]any
	}{
		{"claim", map[string]any{"worker_id": workerID}},
		{"confirm", map[string]any{"actor_id": homeownerID}},
		{"start", map[string]any{"worker_id": workerID}},
		{"complete", map[string]any{"worker_id": workerID}},
	}
	for _, step := range actions {
		url := fmt.Sprintf("%s/v1/jobs/%s/%s", baseURL, jobID, step.action)
		if _, err := postJSONBody(client, url, step.payload, http.StatusOK); err != nil {
			return fmt.Errorf("%s: %w", step.action, err)
		}
	}

	ratings := []map[string]any{
		{"job_id": jobID, "rater_id": homeownerID, "rating": 5},
		{"job_id": jobID, "rater_id": workerID, "rating": 4},
	}
	for _, rating := range ratings {
		if _, err := postJSONBody(client, baseURL+"/v1/ratings", rating, http.StatusCreated); err != nil {
			return fmt.Errorf("rating: %w", err)
		}
	}

	return getJSON(client, fmt.Sprintf("%s/v1/workers/%s/earnings/summary", baseURL, workerID), http.StatusOK)
}

// latencyRecorder accumulates per-request outcomes across the scenario's
// worker goroutines.
type latencyRecorder struct {
	mu           sync.Mutex
	durationsMS  []float64
	errorSamples []string
	success      int
	failures     int
}

func (rec *latencyRecorder) record(elapsed time.Duration, err error) {
	rec.mu.Lock()
	defer rec.mu.Unlock()

	rec.durationsMS = append(rec.durationsMS, float64(elapsed.Microseconds())/1000.0)
	if err == nil {
		rec.success++
		return
	}
	rec.failures++
	if len(rec.errorSamples) < 5 {
		rec.errorSamples = append(rec.errorSamples, err.Error())
	}
}

func runScenario(
	name string,
	total int,
	concurrency int,
	requestFn func(index int) error,
) scenarioResult {
	if total <= 0 {
		return scenarioResult{Name: name}
	}
	if concurrency <= 0 {
		concurrency = 1
	}

	recorder := &latencyRecorder{durationsMS: make([]float64, 0, total)}
	var next atomic.Int64
	startedAt := time.Now()

	var wg sync.WaitGroup
	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				index := int(next.Add(1)) - 1
				if index >= total {
					return
				}
				requestStart := time.Now()
				err := requestFn(index)
				recorder.record(time.Since(requestStart), err)
			}
		}()
	}
	wg.Wait()

	elapsedSeconds := time.Since(startedAt).Seconds()
	throughput := 0.0
	if elapsedSeconds > 0 {
		throughput = float64(total) / elapsedSeconds
	}

	durations := recorder.durationsMS
	sort.Float64s(durations)

	return scenarioResult{
		Name:          name,
		Total:         total,
		Success:       recorder.success,
		Errors:        recorder.failures,
		P50MS:         percentileMS(durations, 0.50),
		P95MS:         percentileMS(durations, 0.95),
		P99MS:         percentileMS(durations, 0.99),
		MaxMS:         round2(durations[len(durations)-1]),
		ThroughputRPS: round2(throughput),
		ErrorSamples:  recorder.errorSamples,
	}
}

func postJSONBody(
	client *http.Client,
	url string,
	payload any,
	expectedStatus int,
) (map[string]any, error) {
	encoded, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}

	request, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(encoded))
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}
	request.Header.Set("Content-Type", "application/json")
	request.Header.Set("Accept", "application/json")

	response, err := client.Do(request)
	if err != nil {
		return nil, err
	}
	defer response.Body.Close()

	raw, _ := io.ReadAll(io.LimitReader(response.Body, 1<<20))
	if response.StatusCode != expectedStatus {
		return nil, fmt.Errorf("unexpected status %d (expected %d): %s", response.StatusCode, expectedStatus, truncate(raw, 1024))
	}

	decoded := map[string]any{}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &decoded); err != nil {
			return nil, fmt.Errorf("decode response: %w", err)
		}
	}
	return decoded, nil
}

func getJSON(client *http.Client, url string, expectedStatus int) error {
	request, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	request.Header.Set("Accept", "application/json")

	response, err := client.Do(request)
	if err != nil {
		return err
	}
	defer response.Body.Close()

	if response.StatusCode != expectedStatus {
		body, _ := io.ReadAll(io.LimitReader(response.Body, 1024))
		return fmt.Errorf("unexpected status %d (expected %d): %s", response.StatusCode, expectedStatus, string(body))
	}
	_, _ = io.Copy(io.Discard, response.Body)
	return nil
}

func truncate(value []byte, limit int) string {
	if len(value) <= limit {
		return string(value)
	}
	return string(value[:limit])
}

// percentileMS expects a sorted, non-empty slice and 0 < p < 1.
func percentileMS(sorted []float64, p float64) float64 {
	rank := int(math.Ceil(float64(len(sorted))*p)) - 1
	if rank < 0 {
		rank = 0
	}
	return round2(sorted[rank])
}

func round2(value float64) float64 {
	return math.Round(value*100) / 100
}
