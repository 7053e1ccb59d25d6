package http

import (
	"log/slog"
	"net/http"
	"time"

	"therapist-match-service/internal/app"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// Services are the use cases exposed over HTTP.
type Services struct {
	Drafts   *app.DraftService
	Tags     *app.TagService
	Matches  *app.MatchService
	Attempts *app.AttemptService
}

// RouterOptions configure the outer HTTP surface.
type RouterOptions struct {
	CORSOrigins []string
	Logger      *slog.Logger
}

// NewRouter mounts the admin REST API under /api, the quiz-taking socket at /ws and
// a health check.
func NewRouter(svc Services, opts RouterOptions) http.Handler {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	origins := opts.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"http://localhost:3000"}
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, requestLogger(logger), middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})

	q := &quizHandlers{drafts: svc.Drafts, matches: svc.Matches, log: logger}
	t := &tagHandlers{tags: svc.Tags, log: logger}
	r.Route("/api", func(api chi.Router) {
		api.Use(middleware.Timeout(30 * time.Second))
		q.mount(api)
		t.mount(api)
	})

	socket := NewQuizSocket(svc.Attempts, logger)
	r.Get("/ws", socket.ServeWS)
	return r
}

// requestLogger logs one line per request through slog.
func requestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			logger.Debug("http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration", time.Since(start),
				"request_id", middleware.GetReqID(r.Context()),
			)
		})
	}
}
