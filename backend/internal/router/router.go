package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/itchan-dev/threads/backend/internal/setup"
	mw "github.com/itchan-dev/threads/shared/middleware"
	"github.com/itchan-dev/threads/shared/middleware/metrics"
)

// New creates and configures a new chi router with all the routes.
// IMPORTANT! ratelimiters set with .Use limit requests for all endpoints of that group combined
func New(deps *setup.Dependencies) chi.Router {
	r := chi.NewRouter()

	r.Use(chimw.Recoverer)
	r.Use(metrics.Middleware)
	r.Use(chimw.Compress(5))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: deps.Config.Public.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type", "Authorization"},
		MaxAge:         300,
	}))
	r.Use(mw.SecurityHeaders(deps.Config.Public.Https))

	h := deps.Handler
	limits := deps.Limiters

	r.Get("/health", h.Health)
	r.Get("/ready", h.Ready)
	r.Handle("/metrics", metrics.Handler())

	r.Route("/v1", func(v1 chi.Router) {
		v1.Use(mw.RateLimit(limits.PerIP, mw.GetIP))             // 100 RPS per IP
		v1.Use(deps.AuthMiddleware.NeedAuth())                   // bearer token from the identity provider
		v1.Use(mw.RateLimit(limits.PerUser, mw.GetUserIdentity)) // 10 RPS per user

		// 1 write per second per user
		writes := mw.RateLimit(limits.Writes, mw.GetUserIdentity)

		v1.Get("/feed", h.GetFeed)

		v1.Route("/threads", func(threads chi.Router) {
			threads.With(writes).Post("/", h.CreateThread)
			threads.Get("/{thread}", h.GetThread)
			threads.With(writes).Post("/{thread}/replies", h.AddReply)
		})

		v1.Route("/users", func(users chi.Router) {
			users.Get("/", h.SearchUsers)
			users.With(writes).Put("/me", h.UpdateMe)
			users.Get("/me/activity", h.GetActivity)
			users.Get("/{user}", h.GetUser)
			users.Get("/{user}/threads", h.GetUserThreads)
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "Not found", http.StatusNotFound)
	})

	return r
}
