package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/r2k2/tournaments/internal/bracket"
	"github.com/r2k2/tournaments/internal/db"
	"github.com/r2k2/tournaments/internal/metrics"
	"github.com/r2k2/tournaments/internal/store"
)

// setupTestDB creates an in-memory SQLite database and applies migrations
func setupTestDB(t *testing.T) *sqlx.DB {
	t.Helper()

	database, err := db.Connect(db.DriverSQLite, "file::memory:", time.Second)
	require.NoError(t, err, "Failed to connect to in-memory DB")
	t.Cleanup(func() { database.Close() })

	require.NoError(t, db.RunMigrations(database), "Failed to apply migrations")
	return database
}

type testServices struct {
	db          *sqlx.DB
	store       *store.TournamentStore
	metrics     *metrics.Metrics
	tournaments *TournamentService
	players     *PlayerService
	matches     *MatchService
}

func newTestServices(t *testing.T, affiliates AffiliateChecker) *testServices {
	t.Helper()

	database := setupTestDB(t)
	tournamentStore := store.NewTournamentStore(database)
	m := metrics.New()

	return &testServices{
		db:          database,
		store:       tournamentStore,
		metrics:     m,
		tournaments: NewTournamentService(database, tournamentStore, m),
		players:     NewPlayerService(database, tournamentStore, affiliates, m),
		matches:     NewMatchService(database, tournamentStore, m),
	}
}

// openTournament creates a tournament and opens registration.
func (s *testServices) openTournament(t *testing.T, seeding bracket.Seeding, maxPlayers int) *bracket.Tournament {
	t.Helper()
	ctx := context.Background()

	tournament, err := s.tournaments.CreateTournament(ctx, TournamentInput{
		Name:       "Friday Bonus Hunt",
		MaxPlayers: maxPlayers,
		Seeding:    seeding,
		StreamURL:  "https://kick.com/r2k2",
	})
	require.NoError(t, err)

	tournament, err = s.tournaments.OpenRegistration(ctx, tournament.ID)
	require.NoError(t, err)
	return tournament
}

func (s *testServices) register(t *testing.T, tournamentID uuid.UUID, usernames ...string) []bracket.Player {
	t.Helper()

	players := make([]bracket.Player, 0, len(usernames))
	for _, username := range usernames {
		p, err := s.players.RegisterPlayer(context.Background(), tournamentID, username)
		require.NoError(t, err)
		players = append(players, *p)
	}
	return players
}

// liveTournament registers the players in order and generates the bracket.
func (s *testServices) liveTournament(t *testing.T, seeding bracket.Seeding, usernames ...string) (*bracket.Tournament, []bracket.Player) {
	t.Helper()

	tournament := s.openTournament(t, seeding, 64)
	players := s.register(t, tournament.ID, usernames...)

	_, err := s.tournaments.GenerateBracket(context.Background(), tournament.ID)
	require.NoError(t, err)

	tournament, err = s.store.GetTournament(context.Background(), tournament.ID)
	require.NoError(t, err)
	return tournament, players
}

// matchAt finds a match by its bracket position.
func (s *testServices) matchAt(t *testing.T, tournamentID uuid.UUID, round, number int) *bracket.Match {
	t.Helper()

	matches, err := s.store.GetMatches(context.Background(), tournamentID)
	require.NoError(t, err)
	for i := range matches {
		if matches[i].Round == round && matches[i].MatchNumber == number {
			return &matches[i]
		}
	}
	t.Fatalf("no match %d in round %d", number, round)
	return nil
}

func (s *testServices) player(t *testing.T, id uuid.UUID) *bracket.Player {
	t.Helper()

	p, err := s.store.GetPlayer(context.Background(), id)
	require.NoError(t, err)
	return p
}

type stubAffiliates map[string]bool

func (s stubAffiliates) IsAffiliate(_ context.Context, username string) (bool, error) {
	return s[username], nil
}
