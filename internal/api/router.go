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

	"github.com/hackgods/clinic-desk-scheduling/internal/appointment"
)

type RouterConfig struct {
	Service        *appointment.Service
	PgPool         *pgxpool.Pool
	Redis          *redis.Client
	Log            *zap.Logger
	Env            string
	Version        string
	AllowedOrigins []string
	// RateLimitRPS of zero disables per-IP rate limiting.
	RateLimitRPS int
}

func NewRouter(cfg RouterConfig) http.Handler {
	log := cfg.Log
	if log == nil {
		log = zap.NewNop()
	}
	origins := cfg.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	r := chi.NewRouter()

	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(log))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "PATCH", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", HeaderRequestID, HeaderCallerID, HeaderCallerRole},
		ExposedHeaders: []string{HeaderRequestID},
		MaxAge:         300,
	}))
	if cfg.RateLimitRPS > 0 {
		r.Use(httprate.LimitByIP(cfg.RateLimitRPS, time.Second))
	}

	health := NewHealthHandler(cfg.PgPool, cfg.Redis, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)

	svc := cfg.Service
	r.Group(func(r chi.Router) {
		r.Use(CallerMiddleware)

		r.Get("/availability", availabilityHandler(svc, log))
		r.Get("/summary", summaryHandler(svc, log))

		r.Route("/appointments", func(r chi.Router) {
			r.Post("/", createAppointmentHandler(svc, log))
			r.Get("/", listAppointmentsHandler(svc, log))
			r.Get("/{id}", getAppointmentHandler(svc, log))
			r.Patch("/{id}", updateAppointmentHandler(svc, log))
			r.Get("/{id}/availability", patientAvailabilityHandler(svc, log))
			r.Post("/{id}/reschedule-requests", submitRescheduleHandler(svc, log))
		})

		r.Route("/me", func(r chi.Router) {
			r.Get("/appointments", ownAppointmentsHandler(svc, log))
			r.Get("/reschedule-requests", ownReschedulesHandler(svc, log))
		})

		r.Route("/reschedule-requests", func(r chi.Router) {
			r.Get("/", listPendingReschedulesHandler(svc, log))
			r.Post("/{id}/decision", decideRescheduleHandler(svc, log))
		})
	})

	return r
}
