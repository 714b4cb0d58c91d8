package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/r2k2/tournaments/internal/bracket"
	"github.com/r2k2/tournaments/internal/db"
	"github.com/r2k2/tournaments/internal/metrics"
	"github.com/r2k2/tournaments/internal/service"
	"github.com/r2k2/tournaments/internal/store"
)

type stubAffiliates map[string]bool

func (s stubAffiliates) IsAffiliate(_ context.Context, username string) (bool, error) {
	return s[username], nil
}

func newTestServer(t *testing.T, affiliates service.AffiliateChecker) *httptest.Server {
	t.Helper()

	database, err := db.Connect(db.DriverSQLite, "file::memory:", time.Second)
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })
	require.NoError(t, db.RunMigrations(database))

	m := metrics.New()
	tournamentStore := store.NewTournamentStore(database)
	app := &application{
		db:              database,
		tournaments:     service.NewTournamentService(database, tournamentStore, m),
		players:         service.NewPlayerService(database, tournamentStore, affiliates, m),
		matches:         service.NewMatchService(database, tournamentStore, m),
		metrics:         m,
		autoAdvanceByes: true,
	}

	srv := httptest.NewServer(app.routes([]string{"*"}))
	t.Cleanup(srv.Close)
	return srv
}

func doJSON(t *testing.T, srv *httptest.Server, method, path string, body any, out any) int {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, srv.URL+path, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	if out != nil && resp.StatusCode < 300 && resp.StatusCode != http.StatusNoContent {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func errorMessage(t *testing.T, srv *httptest.Server, method, path string, body any) (int, string) {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, srv.URL+path, &buf)
	require.NoError(t, err)

	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out struct {
		Error string `json:"error"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp.StatusCode, out.Error
}

func TestHealthzAndMetrics(t *testing.T) {
	srv := newTestServer(t, nil)

	var health map[string]string
	assert.Equal(t, http.StatusOK, doJSON(t, srv, http.MethodGet, "/healthz", nil, &health))
	assert.Equal(t, "ok", health["status"])

	resp, err := srv.Client().Get(srv.URL + "/metrics")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestTournamentFlow(t *testing.T) {
	srv := newTestServer(t, nil)

	var tournament bracket.Tournament
	status := doJSON(t, srv, http.MethodPost, "/api/tournaments", map[string]any{
		"name":        "Friday Bonus Hunt",
		"max_players": 8,
		"stream_url":  "https://kick.com/r2k2",
	}, &tournament)
	require.Equal(t, http.StatusCreated, status)
	assert.Equal(t, bracket.TournamentPending, tournament.Status)
	base := fmt.Sprintf("/api/tournaments/%s", tournament.ID)

	require.Equal(t, http.StatusOK, doJSON(t, srv, http.MethodPost, base+"/registration", nil, &tournament))
	assert.Equal(t, bracket.TournamentRegistration, tournament.Status)

	players := make([]bracket.Player, 3)
	for i, name := range []string{"A", "B", "C"} {
		status := doJSON(t, srv, http.MethodPost, base+"/players", map[string]string{"username": name}, &players[i])
		require.Equal(t, http.StatusCreated, status)
	}

	var generated bracketResponse
	require.Equal(t, http.StatusCreated, doJSON(t, srv, http.MethodPost, base+"/bracket", nil, &generated))
	require.Len(t, generated.Matches, 3)
	assert.Equal(t, 1, generated.ByesAdvanced)

	code, _ := errorMessage(t, srv, http.MethodPost, base+"/bracket", nil)
	assert.Equal(t, http.StatusConflict, code)

	var data service.TournamentData
	require.Equal(t, http.StatusOK, doJSON(t, srv, http.MethodGet, base, nil, &data))
	require.Len(t, data.Rounds, 2)
	assert.Equal(t, "Semifinals", data.Rounds[0].Name)
	assert.Equal(t, "https://player.kick.com/r2k2", data.Stream.URL)

	first := data.Rounds[0].Matches[0]
	final := data.Rounds[1].Matches[0]
	assert.Equal(t, players[2].ID, *final.Player2ID, "C walked over")

	// scores are required for a played match
	code, _ = errorMessage(t, srv, http.MethodPost, fmt.Sprintf("/api/matches/%s/score", first.ID), map[string]float64{"player1_score": 5})
	assert.Equal(t, http.StatusBadRequest, code)

	var res service.Resolution
	path := fmt.Sprintf("/api/matches/%s/score", first.ID)
	require.Equal(t, http.StatusOK, doJSON(t, srv, http.MethodPost, path, map[string]float64{"player1_score": 5, "player2_score": 1}, &res))
	assert.Equal(t, players[0].ID, *res.Match.WinnerID)
	assert.Equal(t, final.ID, *res.NextMatchID)

	code, _ = errorMessage(t, srv, http.MethodPost, path, map[string]float64{"player1_score": 5, "player2_score": 1})
	assert.Equal(t, http.StatusConflict, code)

	path = fmt.Sprintf("/api/matches/%s/score", final.ID)
	require.Equal(t, http.StatusOK, doJSON(t, srv, http.MethodPost, path, map[string]float64{"player1_score": 1.5, "player2_score": 2}, &res))
	require.NotNil(t, res.ChampionID)
	assert.Equal(t, players[2].ID, *res.ChampionID)

	var decided bracket.Match
	require.Equal(t, http.StatusOK, doJSON(t, srv, http.MethodGet, fmt.Sprintf("/api/matches/%s", final.ID), nil, &decided))
	assert.Equal(t, bracket.MatchCompleted, decided.Status)
	assert.Equal(t, 2.0, *decided.Player2Score)

	var winners []bracket.WinnerEntry
	require.Equal(t, http.StatusOK, doJSON(t, srv, http.MethodGet, "/api/winners?limit=5", nil, &winners))
	require.Len(t, winners, 1)
	assert.Equal(t, "c", winners[0].Username)
	assert.Equal(t, 1, winners[0].WinCount)

	var list []bracket.Tournament
	require.Equal(t, http.StatusOK, doJSON(t, srv, http.MethodGet, "/api/tournaments", nil, &list))
	require.Len(t, list, 1)
	assert.Equal(t, bracket.TournamentCompleted, list[0].Status)
}

func TestPlayerRoutes(t *testing.T) {
	srv := newTestServer(t, stubAffiliates{"SpinKing": true, "lucky_lou": true})

	var tournament bracket.Tournament
	require.Equal(t, http.StatusCreated, doJSON(t, srv, http.MethodPost, "/api/tournaments", map[string]any{"name": "Weekly", "max_players": 4}, &tournament))
	base := fmt.Sprintf("/api/tournaments/%s", tournament.ID)
	require.Equal(t, http.StatusOK, doJSON(t, srv, http.MethodPost, base+"/registration", nil, nil))

	var player bracket.Player
	require.Equal(t, http.StatusCreated, doJSON(t, srv, http.MethodPost, base+"/players", map[string]string{"username": "SpinKing"}, &player))

	code, _ := errorMessage(t, srv, http.MethodPost, base+"/players", map[string]string{"username": "stranger"})
	assert.Equal(t, http.StatusUnprocessableEntity, code)

	code, _ = errorMessage(t, srv, http.MethodPost, base+"/players", map[string]string{"username": "SpinKing"})
	assert.Equal(t, http.StatusConflict, code)

	var seeded bracket.Player
	require.Equal(t, http.StatusOK, doJSON(t, srv, http.MethodPut, fmt.Sprintf("/api/players/%s/seed", player.ID), map[string]int{"seed": 3}, &seeded))
	assert.Equal(t, 3, seeded.Seed)

	assert.Equal(t, http.StatusNoContent, doJSON(t, srv, http.MethodDelete, fmt.Sprintf("/api/players/%s", player.ID), nil, nil))

	code, _ = errorMessage(t, srv, http.MethodDelete, fmt.Sprintf("/api/players/%s", player.ID), nil)
	assert.Equal(t, http.StatusNotFound, code)
}

func TestErrorMapping(t *testing.T) {
	srv := newTestServer(t, nil)

	tests := []struct {
		name   string
		method string
		path   string
		body   any
		status int
	}{
		{"bad tournament id", http.MethodGet, "/api/tournaments/not-a-uuid", nil, http.StatusBadRequest},
		{"unknown tournament", http.MethodGet, "/api/tournaments/7b1f6a64-8c55-4a1e-9d39-8d0c5f8a7e10", nil, http.StatusNotFound},
		{"unknown match", http.MethodPost, "/api/matches/7b1f6a64-8c55-4a1e-9d39-8d0c5f8a7e10/score", map[string]float64{"player1_score": 1, "player2_score": 2}, http.StatusNotFound},
		{"invalid body", http.MethodPost, "/api/tournaments", map[string]any{"name": "x", "owner": "me"}, http.StatusBadRequest},
		{"validation", http.MethodPost, "/api/tournaments", map[string]any{"name": "x", "max_players": 1}, http.StatusBadRequest},
		{"bad limit", http.MethodGet, "/api/winners?limit=zero", nil, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, msg := errorMessage(t, srv, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.status, code)
			assert.NotEmpty(t, msg)
		})
	}
}

func TestStatusConflicts(t *testing.T) {
	srv := newTestServer(t, nil)

	var tournament bracket.Tournament
	require.Equal(t, http.StatusCreated, doJSON(t, srv, http.MethodPost, "/api/tournaments", map[string]any{"name": "Weekly", "max_players": 4}, &tournament))
	base := fmt.Sprintf("/api/tournaments/%s", tournament.ID)

	code, _ := errorMessage(t, srv, http.MethodPost, base+"/players", map[string]string{"username": "early"})
	assert.Equal(t, http.StatusConflict, code)

	require.Equal(t, http.StatusOK, doJSON(t, srv, http.MethodPost, base+"/registration", nil, nil))
	require.Equal(t, http.StatusCreated, doJSON(t, srv, http.MethodPost, base+"/players", map[string]string{"username": "solo"}, nil))

	code, _ = errorMessage(t, srv, http.MethodPost, base+"/bracket", nil)
	assert.Equal(t, http.StatusBadRequest, code, "one player is not enough")

	require.Equal(t, http.StatusOK, doJSON(t, srv, http.MethodPost, base+"/cancel", nil, nil))

	code, _ = errorMessage(t, srv, http.MethodPost, base+"/cancel", nil)
	assert.Equal(t, http.StatusConflict, code)

	code, _ = errorMessage(t, srv, http.MethodPost, base+"/byes", nil)
	assert.Equal(t, http.StatusConflict, code)
}
