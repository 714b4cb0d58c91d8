package main

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jmoiron/sqlx"

	"github.com/r2k2/tournaments/internal/metrics"
	"github.com/r2k2/tournaments/internal/service"
)

type application struct {
	db          *sqlx.DB
	tournaments *service.TournamentService
	players     *service.PlayerService
	matches     *service.MatchService
	metrics     *metrics.Metrics

	autoAdvanceByes bool
}

func (app *application) routes(allowedOrigins []string) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-Id"},
		MaxAge:         300,
	}))

	r.Get("/healthz", app.healthz)
	r.Method(http.MethodGet, "/metrics", app.metrics.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Get("/tournaments", app.listTournaments)
		r.Post("/tournaments", app.createTournament)

		r.Route("/tournaments/{id}", func(r chi.Router) {
			r.Get("/", app.getTournament)
			r.Post("/registration", app.openRegistration)
			r.Post("/cancel", app.cancelTournament)
			r.Post("/players", app.registerPlayer)
			r.Post("/bracket", app.generateBracket)
			r.Post("/byes", app.advanceByes)
		})

		r.Put("/players/{id}/seed", app.setSeed)
		r.Delete("/players/{id}", app.withdrawPlayer)

		r.Get("/matches/{id}", app.getMatch)
		r.Post("/matches/{id}/score", app.submitScore)

		r.Get("/winners", app.listWinners)
	})

	return r
}
