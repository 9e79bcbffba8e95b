package httpapi

import (
	"net/http"
	"time"

	"github.com/dmitrijs2005/indiec/internal/common"
	"github.com/dmitrijs2005/indiec/internal/server/metrics"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// Handler builds the router. The limiter is shared across calls so its
// cleanup loop can be started by the caller.
func (s *Server) Handler(limiter *RateLimiter) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(echoRequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(s.logger))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", common.AuthorizationHeaderName, "Content-Type", common.RequestIDHeaderName},
		ExposedHeaders:   []string{common.RequestIDHeaderName},
		AllowCredentials: false,
		MaxAge:           300,
	}))
	r.Use(metrics.InstrumentHandler)
	if limiter != nil {
		r.Use(limiter.Handler)
	}
	r.Use(requestMeta)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeFailure(w, http.StatusNotFound, "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeFailure(w, http.StatusMethodNotAllowed, "method not allowed")
	})

	if s.UploadDir != "" {
		r.Handle("/uploads/*", http.StripPrefix("/uploads/", http.FileServer(http.Dir(s.UploadDir))))
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.health)
		r.Method(http.MethodGet, "/metrics", metrics.Handler())

		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", s.register)
			r.Post("/login", s.login)
			r.Group(func(r chi.Router) {
				r.Use(s.requireAuth)
				r.Get("/me", s.me)
				r.Post("/change-password", s.changePassword)
			})
		})

		r.Route("/users", func(r chi.Router) {
			r.Use(s.requireAuth)
			r.Get("/", s.listUsers)
			r.Get("/{id}", s.getUser)
			r.Put("/{id}/profile", s.updateProfile)
			r.Post("/{id}/photo", s.uploadPhoto)
			r.Delete("/{id}", s.deleteUser)
		})

		r.Route("/artists", func(r chi.Router) {
			r.Get("/", s.listArtists)
			r.Get("/{id}", s.getArtist)
			r.Group(func(r chi.Router) {
				r.Use(s.requireAuth)
				r.Post("/", s.createArtist)
				r.Put("/{id}", s.updateArtist)
				r.Patch("/{id}/stats", s.updateArtistStats)
				r.Delete("/{id}", s.deleteArtist)
			})
		})

		r.Route("/albums", func(r chi.Router) {
			r.Get("/", s.listAlbums)
			r.Get("/{id}", s.getAlbum)
			r.Group(func(r chi.Router) {
				r.Use(s.requireAuth)
				r.Post("/", s.createAlbum)
				r.Put("/{id}", s.updateAlbum)
				r.Delete("/{id}", s.deleteAlbum)
				r.Post("/{id}/cover", s.uploadCover)
			})
		})

		r.Route("/songs", func(r chi.Router) {
			r.Get("/", s.listSongs)
			r.Get("/{id}", s.getSong)
			r.With(s.optionalAuth).Post("/{id}/plays", s.recordPlay)
			r.Group(func(r chi.Router) {
				r.Use(s.requireAuth)
				r.Post("/", s.createSong)
				r.Put("/{id}", s.updateSong)
				r.Delete("/{id}", s.deleteSong)
			})
		})

		r.Route("/cart", func(r chi.Router) {
			r.Use(s.requireAuth)
			r.Get("/", s.getCart)
			r.Delete("/", s.clearCart)
			r.Post("/items", s.addCartItem)
			r.Patch("/items/{itemId}", s.updateCartItem)
			r.Delete("/items/{itemId}", s.removeCartItem)
			r.Post("/checkout", s.checkout)
		})

		r.Route("/sales", func(r chi.Router) {
			r.Use(s.requireAuth)
			r.Post("/", s.createSale)
			r.Get("/", s.listSales)
			r.Get("/{id}", s.getSale)
			r.Patch("/{id}/payment", s.updatePayment)
		})

		r.Route("/contracts", func(r chi.Router) {
			r.Use(s.requireAuth)
			r.Post("/", s.createContract)
			r.Get("/", s.listContracts)
			r.Get("/expiring", s.expiringContracts)
			r.Get("/{id}", s.getContract)
			r.Put("/{id}", s.updateContract)
		})

		r.Route("/analytics", func(r chi.Router) {
			r.Use(s.requireAuth)
			r.Post("/events", s.recordEvent)
			r.Get("/{entityType}/{entityId}", s.entityAnalytics)
		})

		r.Get("/catalogs/{name}", s.listCatalog)

		r.Route("/audit", func(r chi.Router) {
			r.Use(s.requireAuth)
			r.Get("/", s.ownAuditLog)
			r.Get("/metrics", s.auditMetrics)
		})
	})

	return r
}

// echoRequestID returns the chi request id to the client.
func echoRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id := middleware.GetReqID(r.Context()); id != "" {
			w.Header().Set(common.RequestIDHeaderName, id)
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	status := map[string]string{}
	healthy := true
	for name, p := range s.Health {
		if err := p.Ping(ctx); err != nil {
			s.logger.Warn(ctx, "health check failed", "store", name, "error", err)
			status[name] = "down"
			healthy = false
			continue
		}
		status[name] = "up"
	}

	body := envelope{Success: healthy, Data: map[string]any{
		"status": map[bool]string{true: "ok", false: "degraded"}[healthy],
		"stores": status,
		"time":   time.Now().UTC(),
	}}
	if !healthy {
		writeJSON(w, http.StatusServiceUnavailable, body)
		return
	}
	writeJSON(w, http.StatusOK, body)
}
