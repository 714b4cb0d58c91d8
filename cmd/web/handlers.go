package main

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/r2k2/tournaments/internal/bracket"
	"github.com/r2k2/tournaments/internal/httputil"
	"github.com/r2k2/tournaments/internal/service"
	"github.com/r2k2/tournaments/internal/store"
)

// writeError maps domain errors onto status codes. Anything unknown is a 500.
func writeError(w http.ResponseWriter, msg string, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		httputil.NotFound(w, err.Error(), err)
	case errors.Is(err, bracket.ErrInsufficientPlayers),
		errors.Is(err, bracket.ErrInvalidScore),
		errors.Is(err, bracket.ErrUnknownSeeding),
		errors.Is(err, service.ErrValidation):
		httputil.BadRequest(w, err.Error(), err)
	case errors.Is(err, bracket.ErrBracketAlreadyExists),
		errors.Is(err, bracket.ErrMatchAlreadyCompleted),
		errors.Is(err, bracket.ErrMatchNotReady),
		errors.Is(err, service.ErrTournamentNotLive),
		errors.Is(err, service.ErrInvalidStatusTransition),
		errors.Is(err, service.ErrRegistrationClosed),
		errors.Is(err, service.ErrTournamentFull),
		errors.Is(err, service.ErrPlayerAlreadyRegistered),
		errors.Is(err, store.ErrSlotOccupied),
		errors.Is(err, store.ErrStaleState):
		httputil.Conflict(w, err.Error(), err)
	case errors.Is(err, service.ErrUnknownAffiliate):
		httputil.Unprocessable(w, err.Error(), err)
	default:
		httputil.InternalServerError(w, msg, err)
	}
}

func parseID(w http.ResponseWriter, r *http.Request, what string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httputil.BadRequest(w, "Invalid "+what+" ID", err)
		return uuid.Nil, false
	}
	return id, true
}

func (app *application) healthz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := app.db.PingContext(ctx); err != nil {
		httputil.InternalServerError(w, "Database unreachable", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (app *application) listTournaments(w http.ResponseWriter, r *http.Request) {
	tournaments, err := app.tournaments.ListTournaments(r.Context())
	if err != nil {
		writeError(w, "Failed to list tournaments", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, tournaments)
}

func (app *application) createTournament(w http.ResponseWriter, r *http.Request) {
	var input service.TournamentInput
	if err := httputil.ReadJSON(w, r, &input); err != nil {
		httputil.BadRequest(w, err.Error(), err)
		return
	}

	tournament, err := app.tournaments.CreateTournament(r.Context(), input)
	if err != nil {
		writeError(w, "Failed to create tournament", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, tournament)
}

func (app *application) getTournament(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r, "tournament")
	if !ok {
		return
	}

	data, err := app.tournaments.GetTournamentData(r.Context(), id)
	if err != nil {
		writeError(w, "Failed to get tournament", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, data)
}

func (app *application) openRegistration(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r, "tournament")
	if !ok {
		return
	}

	tournament, err := app.tournaments.OpenRegistration(r.Context(), id)
	if err != nil {
		writeError(w, "Failed to open registration", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, tournament)
}

func (app *application) cancelTournament(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r, "tournament")
	if !ok {
		return
	}

	tournament, err := app.tournaments.CancelTournament(r.Context(), id)
	if err != nil {
		writeError(w, "Failed to cancel tournament", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, tournament)
}

type registerRequest struct {
	Username string `json:"username"`
}

func (app *application) registerPlayer(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r, "tournament")
	if !ok {
		return
	}

	var req registerRequest
	if err := httputil.ReadJSON(w, r, &req); err != nil {
		httputil.BadRequest(w, err.Error(), err)
		return
	}

	player, err := app.players.RegisterPlayer(r.Context(), id, req.Username)
	if err != nil {
		writeError(w, "Failed to register player", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, player)
}

type seedRequest struct {
	Seed int `json:"seed"`
}

func (app *application) setSeed(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r, "player")
	if !ok {
		return
	}

	var req seedRequest
	if err := httputil.ReadJSON(w, r, &req); err != nil {
		httputil.BadRequest(w, err.Error(), err)
		return
	}

	player, err := app.players.SetSeed(r.Context(), id, req.Seed)
	if err != nil {
		writeError(w, "Failed to set seed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, player)
}

func (app *application) withdrawPlayer(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r, "player")
	if !ok {
		return
	}

	if err := app.players.WithdrawPlayer(r.Context(), id); err != nil {
		writeError(w, "Failed to withdraw player", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type bracketResponse struct {
	Matches      []bracket.Match `json:"matches"`
	ByesAdvanced int             `json:"byes_advanced"`
	ByesError    string          `json:"byes_error,omitempty"`
}

func (app *application) generateBracket(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r, "tournament")
	if !ok {
		return
	}

	matches, err := app.tournaments.GenerateBracket(r.Context(), id)
	if err != nil {
		writeError(w, "Failed to generate bracket", err)
		return
	}
	resp := bracketResponse{Matches: matches}

	// The bracket is already committed, a failed walkover pass is reported
	// but can be retried through the byes endpoint.
	if app.autoAdvanceByes {
		n, err := app.matches.AdvanceByes(r.Context(), id)
		if err != nil {
			slog.Error("failed to advance byes", "tournament_id", id, "error", err)
			resp.ByesError = "failed to advance byes"
		}
		resp.ByesAdvanced = n

		if n > 0 {
			data, err := app.tournaments.GetTournamentData(r.Context(), id)
			if err != nil {
				// the generated matches are still returned, without the walkovers
				slog.Warn("failed to reload bracket after byes", "tournament_id", id, "error", err)
			} else {
				resp.Matches = flatten(data.Rounds)
			}
		}
	}

	httputil.WriteJSON(w, http.StatusCreated, resp)
}

func flatten(rounds []bracket.RoundView) []bracket.Match {
	var matches []bracket.Match
	for _, round := range rounds {
		matches = append(matches, round.Matches...)
	}
	return matches
}

func (app *application) advanceByes(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r, "tournament")
	if !ok {
		return
	}

	n, err := app.matches.AdvanceByes(r.Context(), id)
	if err != nil {
		writeError(w, "Failed to advance byes", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]int{"byes_advanced": n})
}

func (app *application) getMatch(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r, "match")
	if !ok {
		return
	}

	match, err := app.matches.GetMatch(r.Context(), id)
	if err != nil {
		writeError(w, "Failed to get match", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, match)
}

// Scores may be left out for a bye.
type scoreRequest struct {
	Player1Score *float64 `json:"player1_score"`
	Player2Score *float64 `json:"player2_score"`
}

func (app *application) submitScore(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r, "match")
	if !ok {
		return
	}

	var req scoreRequest
	if err := httputil.ReadJSON(w, r, &req); err != nil {
		httputil.BadRequest(w, err.Error(), err)
		return
	}

	// A missing score is NaN, which a played match rejects as invalid.
	s1, s2 := math.NaN(), math.NaN()
	if req.Player1Score != nil {
		s1 = *req.Player1Score
	}
	if req.Player2Score != nil {
		s2 = *req.Player2Score
	}

	resolution, err := app.matches.ResolveMatch(r.Context(), id, s1, s2)
	if err != nil {
		writeError(w, "Failed to resolve match", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, resolution)
}

func (app *application) listWinners(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 {
			httputil.BadRequest(w, "limit must be a positive integer", err)
			return
		}
		limit = n
	}

	winners, err := app.tournaments.ListWinners(r.Context(), limit)
	if err != nil {
		writeError(w, "Failed to list winners", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, winners)
}
