package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/sdmydbr9/EVMR-sub000/internal/booking"
	"github.com/sdmydbr9/EVMR-sub000/internal/policy"
	"github.com/sdmydbr9/EVMR-sub000/internal/schedule"
)

type RouterConfig struct {
	Bookings   *booking.Service
	Policies   *policy.Service
	Schedules  schedule.Repository
	PolicyRepo policy.Repository
	PgPool     *pgxpool.Pool
	Redis      *redis.Client
	Logger     *zap.Logger
	Env        string
	Version    string
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(cfg.Logger))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
		MaxAge:         300,
	}))
	r.Use(httprate.LimitByIP(120, time.Minute))

	// Health endpoints
	health := NewHealthHandler(cfg.PgPool, cfg.Redis, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)

	// Availability
	r.Get("/resources/{id}/slots", getSlotsHandler(cfg.Bookings))
	r.Post("/availability-rules", createRuleHandler(cfg.Schedules))
	r.Get("/availability-rules/{id}", getRuleHandler(cfg.Schedules))
	r.Delete("/availability-rules/{id}", deleteRuleHandler(cfg.Schedules))
	r.Post("/availability-exceptions", createExceptionHandler(cfg.Schedules))

	// Appointments
	r.Post("/appointments", bookAppointmentHandler(cfg.Bookings))
	r.Post("/appointments/{id}/cancel", cancelAppointmentHandler(cfg.Bookings))
	r.Post("/appointments/{id}/reschedule", rescheduleAppointmentHandler(cfg.Bookings))

	// Cancellation policies and requests
	r.Post("/cancellation-policies", createPolicyHandler(cfg.PolicyRepo))
	r.Get("/cancellation-policies/{id}", getPolicyHandler(cfg.PolicyRepo))
	r.Post("/cancellation-requests", requestCancellationHandler(cfg.Policies))
	r.Post("/cancellation-requests/{id}/resolve", resolveCancellationHandler(cfg.Policies))

	return r
}
