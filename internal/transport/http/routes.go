package httptransport

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger"

	_ "bruhbug-service/docs"
)

// Routes builds the API router. A nil gatherer serves the default registry on /metrics.
func Routes(h *Handler, gatherer prometheus.Gatherer) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(RequestLogger(h.log))
	r.Use(CORS(h.origins))
	r.Use(Authenticate(h.sessions, h.log))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})

	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	r.Post("/executions", h.CreateExecution)
	r.Post("/roasts", h.CreateRoast)

	r.Route("/bugs", func(r chi.Router) {
		r.With(RequireAuth).Get("/mine", h.ListMine)
		r.Get("/feed", h.ListFeed)
		r.Get("/{id}", h.GetBug)
	})

	r.Route("/auth", func(r chi.Router) {
		r.With(RequireAuth).Get("/me", h.Me)
		r.Delete("/session", h.Logout)
		if h.devLogin {
			r.Post("/dev-login", h.DevLogin)
		}
	})

	r.Get("/realtime", h.Realtime)

	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))

	return r
}
