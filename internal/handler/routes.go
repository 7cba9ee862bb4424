package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
)

// Routes builds the control API router.
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(Logger(h.log))
	r.Use(CORS)

	r.Get("/health", HealthCheck)
	r.Get("/state", h.State)
	r.Post("/navigate", h.Navigate)
	r.Get("/notices", h.Notices)
	if h.metrics != nil {
		r.Method(http.MethodGet, "/metrics", h.metrics)
	}

	r.Route("/session", func(r chi.Router) {
		r.Post("/login", h.Login)
		r.Post("/register", h.Register)
		r.Post("/logout", h.Logout)
		r.Post("/change-password", h.ChangePassword)
		r.Post("/clear-error", h.ClearError)
	})

	r.Get("/events", h.ListEvents)
	r.Post("/events/refresh", h.RefreshEvents)
	r.Get("/announcements", h.ListAnnouncements)
	r.Post("/announcements/refresh", h.RefreshAnnouncements)

	r.Route("/cart", func(r chi.Router) {
		r.Get("/", h.GetCart)
		r.Post("/refresh", h.RefreshCart)
		r.Post("/add", h.AddToCart)
		r.Put("/item/{eventId}", h.UpdateCartItem)
		r.Delete("/item/{eventId}", h.RemoveCartItem)
	})

	r.Route("/admin", func(r chi.Router) {
		r.Post("/events", h.CreateEvent)
		r.Put("/events/{id}", h.UpdateEvent)
		r.Delete("/events/{id}", h.DeleteEvent)
		r.Post("/announcements", h.CreateAnnouncement)
		r.Put("/announcements/{id}", h.UpdateAnnouncement)
		r.Delete("/announcements/{id}", h.DeleteAnnouncement)
		r.Get("/users/pending", h.ListPendingUsers)
		r.Post("/users/pending/refresh", h.RefreshPendingUsers)
		r.Put("/users/{id}/approve", h.ApproveUser)
	})

	return r
}

// Logger is a structured access log.
func Logger(log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			log.Info("request",
				slog.String("op", "handler.Logger"),
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", status),
				slog.Int("bytes", ww.BytesWritten()),
				slog.Duration("elapsed", time.Since(start)),
				slog.String("request_id", chimiddleware.GetReqID(r.Context())),
			)
		})
	}
}

// CORS allows a local UI on another origin to drive the API.
func CORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Access-Control-Allow-Origin", "*")
		h.Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		h.Set("Access-Control-Allow-Headers", "Content-Type, X-Request-ID")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
