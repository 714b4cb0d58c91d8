package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"golang.org/x/sync/errgroup"

	"github.com/r2k2/tournaments/internal/bracket"
	"github.com/r2k2/tournaments/internal/metrics"
	"github.com/r2k2/tournaments/internal/store"
	"github.com/r2k2/tournaments/internal/stream"
	"github.com/r2k2/tournaments/internal/utils"
)

const (
	MinPlayers = 2
	MaxPlayers = 256

	maxNameLength = 100
)

type TournamentService struct {
	db      *sqlx.DB
	store   *store.TournamentStore
	metrics *metrics.Metrics
	now     func() time.Time
}

func NewTournamentService(db *sqlx.DB, store *store.TournamentStore, m *metrics.Metrics) *TournamentService {
	return &TournamentService{db: db, store: store, metrics: m, now: time.Now}
}

type TournamentInput struct {
	Name       string          `json:"name"`
	MaxPlayers int             `json:"max_players"`
	Seeding    bracket.Seeding `json:"seeding"`
	StreamURL  string          `json:"stream_url"`
}

func (in TournamentInput) validate() error {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return fmt.Errorf("%w: name is required", ErrValidation)
	}
	if len(name) > maxNameLength {
		return fmt.Errorf("%w: name exceeds %d characters", ErrValidation, maxNameLength)
	}
	if in.MaxPlayers < MinPlayers || in.MaxPlayers > MaxPlayers {
		return fmt.Errorf("%w: max_players must be between %d and %d", ErrValidation, MinPlayers, MaxPlayers)
	}
	if in.Seeding != "" && !in.Seeding.Valid() {
		return fmt.Errorf("%w: %w %q", ErrValidation, bracket.ErrUnknownSeeding, in.Seeding)
	}
	return nil
}

type TournamentData struct {
	Tournament *bracket.Tournament `json:"tournament"`
	Players    []bracket.Player    `json:"players"`
	Rounds     []bracket.RoundView `json:"rounds"`
	Stream     stream.EmbedInfo    `json:"stream"`
}

func (s *TournamentService) CreateTournament(ctx context.Context, input TournamentInput) (*bracket.Tournament, error) {
	if err := input.validate(); err != nil {
		return nil, err
	}

	seeding := input.Seeding
	if seeding == "" {
		seeding = bracket.SeedingPositional
	}

	tournament := &bracket.Tournament{
		ID:         uuid.New(),
		Name:       strings.TrimSpace(input.Name),
		Status:     bracket.TournamentPending,
		Seeding:    seeding,
		MaxPlayers: input.MaxPlayers,
		StreamURL:  utils.StringOrNil(input.StreamURL),
		CreatedAt:  s.now().UTC(),
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	if err := s.store.CreateTournament(ctx, tx, tournament); err != nil {
		return nil, fmt.Errorf("failed to create tournament: %w", err)
	}
	return tournament, tx.Commit()
}

func (s *TournamentService) OpenRegistration(ctx context.Context, id uuid.UUID) (*bracket.Tournament, error) {
	return s.transition(ctx, id, bracket.TournamentRegistration)
}

func (s *TournamentService) CancelTournament(ctx context.Context, id uuid.UUID) (*bracket.Tournament, error) {
	return s.transition(ctx, id, bracket.TournamentCancelled)
}

func (s *TournamentService) transition(ctx context.Context, id uuid.UUID, to bracket.TournamentStatus) (*bracket.Tournament, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	tournament, err := s.store.GetTournamentTx(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if !tournament.Status.CanTransitionTo(to) {
		return nil, fmt.Errorf("%w: cannot move from %s to %s", ErrInvalidStatusTransition, tournament.Status, to)
	}

	if err := s.store.UpdateTournamentStatusTx(ctx, tx, id, tournament.Status, to); err != nil {
		if errors.Is(err, store.ErrStaleState) {
			return nil, fmt.Errorf("%w: %w", ErrInvalidStatusTransition, err)
		}
		return nil, fmt.Errorf("failed to update tournament status: %w", err)
	}
	tournament.Status = to

	return tournament, tx.Commit()
}

// GenerateBracket builds and stores the full bracket from the registered
// players and starts the tournament. Nothing is written when it fails.
func (s *TournamentService) GenerateBracket(ctx context.Context, id uuid.UUID) ([]bracket.Match, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	tournament, err := s.store.GetTournamentTx(ctx, tx, id)
	if err != nil {
		return nil, err
	}

	existing, err := s.store.CountMatchesTx(ctx, tx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to count matches: %w", err)
	}
	if existing > 0 {
		return nil, bracket.ErrBracketAlreadyExists
	}
	if tournament.Status != bracket.TournamentRegistration {
		return nil, fmt.Errorf("%w: tournament is %s", ErrRegistrationClosed, tournament.Status)
	}

	players, err := s.store.GetPlayersByStatusTx(ctx, tx, id, bracket.PlayerRegistered)
	if err != nil {
		return nil, fmt.Errorf("failed to load players: %w", err)
	}

	matches, err := bracket.Build(id, players, tournament.Seeding)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	for i := range matches {
		matches[i].CreatedAt = now
	}

	if err := s.store.CreateMatches(ctx, tx, matches); err != nil {
		return nil, fmt.Errorf("failed to create matches: %w", err)
	}
	if err := s.store.SetPlayersStatusTx(ctx, tx, id, bracket.PlayerRegistered, bracket.PlayerPlaying); err != nil {
		return nil, fmt.Errorf("failed to update players: %w", err)
	}
	if err := s.store.StartTournamentTx(ctx, tx, id, bracket.TotalRounds(len(players))); err != nil {
		return nil, fmt.Errorf("failed to start tournament: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	s.metrics.BracketGenerated()
	return matches, nil
}

func (s *TournamentService) GetTournamentData(ctx context.Context, id uuid.UUID) (*TournamentData, error) {
	var (
		tournament *bracket.Tournament
		players    []bracket.Player
		matches    []bracket.Match
	)

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		t, err := s.store.GetTournament(gCtx, id)
		if err != nil {
			return err
		}
		tournament = t
		return nil
	})

	g.Go(func() error {
		p, err := s.store.GetPlayers(gCtx, id)
		if err != nil {
			return fmt.Errorf("failed to load players: %w", err)
		}
		players = p
		return nil
	})

	g.Go(func() error {
		m, err := s.store.GetMatches(gCtx, id)
		if err != nil {
			return fmt.Errorf("failed to load matches: %w", err)
		}
		matches = m
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return &TournamentData{
		Tournament: tournament,
		Players:    players,
		Rounds:     bracket.GroupByRound(matches, tournament.TotalRounds),
		Stream:     stream.Embed(tournament.StreamURL),
	}, nil
}

func (s *TournamentService) ListTournaments(ctx context.Context) ([]bracket.Tournament, error) {
	return s.store.ListTournaments(ctx)
}

func (s *TournamentService) ListWinners(ctx context.Context, limit int) ([]bracket.WinnerEntry, error) {
	if limit <= 0 || limit > 100 {
		limit = 100
	}
	return s.store.ListWinners(ctx, limit)
}
