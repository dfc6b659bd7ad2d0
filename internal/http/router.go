package httpserver

import (
	"log"
	"net/http"

	"github.com/kidshovel/marketplace-back/internal/http/handlers"
	"github.com/kidshovel/marketplace-back/internal/http/middleware"
)

type RouterDependencies struct {
	API            *handlers.API
	Logger         *log.Logger
	AuthToken      string
	CORSOrigins    []string
	RateLimitRPS   float64
	RateLimitBurst int
}

func NewRouter(deps RouterDependencies) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", deps.API.Health)
	mux.HandleFunc("/v1/jobs", deps.API.Jobs)
	mux.HandleFunc("/v1/jobs/available", deps.API.AvailableJobs)
	mux.HandleFunc("/v1/jobs/", deps.API.JobByID)
	mux.HandleFunc("/v1/ratings", deps.API.Ratings)
	mux.HandleFunc("/v1/users/", deps.API.Users)
	mux.HandleFunc("/v1/workers/", deps.API.Workers)
	mux.HandleFunc("/v1/calculator/growth", deps.API.GrowthCalculator)
	mux.HandleFunc("/v1/payments/webhook", deps.API.PaymentsWebhook)

	handler := http.Handler(mux)
	handler = middleware.Auth(deps.AuthToken)(handler)
	handler = middleware.RateLimit(deps.RateLimitRPS, deps.RateLimitBurst)(handler)
	handler = middleware.CORS(middleware.CORSConfig{
		AllowedOrigins: deps.CORSOrigins,
	})(handler)
	handler = middleware.Trace(deps.Logger)(handler)
	handler = middleware.RequestID(handler)

	return handler
}
