package httpapi

import (
	"net/http"
	"time"

	"github.com/DoyleJ11/golf-pickem/internal/draft"
	"github.com/DoyleJ11/golf-pickem/internal/hub"
	"github.com/DoyleJ11/golf-pickem/internal/standings"
	"github.com/DoyleJ11/golf-pickem/internal/ws"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

type Deps struct {
	Hub       *hub.Hub
	Draft     *draft.Service
	Standings *standings.App
	Log       *zap.Logger
}

func SetupRoutes(d Deps) http.Handler {
	log := d.Log.Named("http")
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger(log))

	r.Get("/healthz", Healthz)
	r.Get("/ws", ws.Handler(d.Hub, d.Draft, d.Log))

	r.Route("/events/{eventID}", func(r chi.Router) {
		r.Post("/picks", SubmitPick(d.Draft, log))
		r.Get("/picks", ListPicks(d.Draft, log))
		r.Get("/turn", GetTurn(d.Draft, log))
		r.Get("/available", ListAvailable(d.Draft, log))
		r.Put("/field", PutField(d.Draft, log))
	})

	r.Post("/participants", RegisterParticipant(d.Standings, log))
	r.Route("/standings", func(r chi.Router) {
		r.Get("/", ListStandings(d.Standings, log))
		r.Post("/events/{eventID}", ApplyEventResults(d.Draft, d.Standings, log))
		r.Post("/adjustments", CreateAdjustment(d.Standings, log))
	})
	return r
}

func requestLogger(log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			log.Debug("request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("elapsed", time.Since(start)),
				zap.String("request_id", middleware.GetReqID(r.Context())),
			)
		})
	}
}
