package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/needle-drop/lobby-service/pkg/httputil"
)

type RouterConfig struct {
	AllowedOrigins []string
	RequestTimeout time.Duration // 30s
}

func NewRouter(h *Handler, ws http.HandlerFunc, cfg RouterConfig, log *slog.Logger) http.Handler {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 30 * time.Second
	}
	if len(cfg.AllowedOrigins) == 0 {
		cfg.AllowedOrigins = []string{"*"}
	}

	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(httputil.MiddlewareRequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.AllowedOrigins,
		AllowedMethods: []string{"GET", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         300,
	}))

	// WS endpoint: без таймаута и сжатия, соединение живёт долго
	r.Get("/ws", ws)

	r.Group(func(pr chi.Router) {
		pr.Use(httputil.MiddlewareLogging(log))
		pr.Use(middleware.Compress(5))
		pr.Use(middleware.Timeout(cfg.RequestTimeout))

		pr.Route("/rooms", func(rm chi.Router) {
			rm.Get("/", h.ListRooms)

			rm.Route("/{id}", func(rr chi.Router) {
				rr.Get("/participants", h.GetParticipants)
				rr.Get("/chat", h.GetChatHistory)
				rr.Get("/zones/{zone}/queue", h.GetQueue)
			})
		})
	})

	// health
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	return r
}
