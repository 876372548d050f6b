/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:  Unique ID per request for tracing
  2. RealIP:     Client address behind the proxy
  3. Recoverer:  Panic recovery (500 instead of crash)
  4. accessLog:  zerolog access line + latency histogram
  5. CORS:       Cross-origin requests for the public site and admin UI

ROUTE GROUPS:
  /api/admin/*   Back office
  /api/*         Public read endpoints
  /healthz       Liveness and database check
  /metrics       Prometheus scrape endpoint (when enabled)

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/warp/hallops/generic"
	"github.com/warp/hallops/metrics"
)

// RouterOptions configures NewRouter.
type RouterOptions struct {
	AllowedOrigins []string
	MetricsEnabled bool
	MetricsPath    string
}

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, opts RouterOptions) *chi.Mux {
	r := chi.NewRouter()

	origins := opts.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(accessLog(h.log))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", ActorHeader},
		ExposedHeaders:   []string{"Content-Disposition"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/healthz", h.Health)
	if opts.MetricsEnabled {
		path := opts.MetricsPath
		if path == "" {
			path = "/metrics"
		}
		r.Method(http.MethodGet, path, metrics.Handler())
	}

	r.Route("/api", func(r chi.Router) {
		// Public routes
		r.Get("/pricing", h.PublicPricing)
		r.Get("/schedule", h.PublicSchedule)
		r.Get("/next-session", h.NextSession)
		r.Get("/calendar", h.CalendarRange)
		r.Get("/calendar/{date}", h.CalendarDay)

		r.Route("/admin", func(r chi.Router) {
			r.Route("/ops-schema", func(r chi.Router) {
				r.Get("/draft", h.GetOpsDraft)
				r.Put("/draft", h.SaveOpsDraft)
				r.Post("/validate", h.ValidateOps)
				r.Post("/publish", h.PublishOps)
				r.Post("/rollback", h.RollbackOps)
				r.Get("/history", h.OpsHistory)
				r.Get("/agenda", h.OpsAgenda)
				r.Post("/apply-holidays", h.ApplyHolidays)
			})

			r.Get("/holiday-rules", h.HolidayRules)
			r.Post("/holiday-rules", h.SaveHolidayRule)

			for path, kind := range map[string]generic.DocumentKind{
				"/schedule": generic.KindSchedule,
				"/pricing":  generic.KindPricing,
			} {
				v := h.VersionRoutes(kind)
				r.Route(path, func(r chi.Router) {
					r.Get("/draft", v.GetDraft)
					r.Put("/draft", v.SaveDraft)
					r.Post("/publish", v.Publish)
					r.Post("/rollback", v.Rollback)
					r.Get("/versions", v.List)
					if kind == generic.KindSchedule {
						r.Post("/doors-open", h.SetDoorsOpen)
					}
				})
			}

			r.Route("/settings/{key}", func(r chi.Router) {
				r.Get("/draft", h.GetSettingDraft)
				r.Put("/draft", h.SaveSettingDraft)
				r.Delete("/draft", h.DiscardSettingDraft)
				r.Get("/published", h.GetPublishedSetting)
				r.Post("/publish", h.PublishSetting)
				r.Get("/history", h.SettingHistory)
				r.Post("/rollback", h.RollbackSetting)
			})

			r.Route("/shifts", func(r chi.Router) {
				r.Get("/", h.ListShifts)
				r.Post("/", h.CreateShift)
				r.Get("/export", h.ExportShifts)
				r.Post("/reconcile", h.ReconcilePreview)
				r.Put("/{id}", h.UpdateShift)
				r.Delete("/{id}", h.DeleteShift)
			})
			r.Post("/mic/shifts", h.SubmitMICShift)

			r.Route("/restricted-players", func(r chi.Router) {
				r.Get("/", h.ListRestrictedPlayers)
				r.Post("/", h.AddRestrictedPlayer)
			})
		})
	})

	return r
}

// accessLog writes one zerolog line per request and records its latency.
func accessLog(log zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			route := "unmatched"
			if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
				route = rctx.RoutePattern()
			}
			elapsed := time.Since(start)
			metrics.ObserveHTTPRequest(r.Method, route, status, elapsed)

			ev := log.Info()
			if status >= http.StatusInternalServerError {
				ev = log.Error()
			}
			ev.Str("request_id", middleware.GetReqID(r.Context())).
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Str("route", route).
				Int("status", status).
				Int("bytes", ww.BytesWritten()).
				Dur("elapsed", elapsed).
				Msg("http request")
		})
	}
}
