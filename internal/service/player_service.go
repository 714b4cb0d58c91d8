package service

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/r2k2/tournaments/internal/bracket"
	"github.com/r2k2/tournaments/internal/metrics"
	"github.com/r2k2/tournaments/internal/store"
)

const maxUsernameLength = 32

// AffiliateChecker confirms a username belongs to the affiliate's roster.
type AffiliateChecker interface {
	IsAffiliate(ctx context.Context, username string) (bool, error)
}

type PlayerService struct {
	db         *sqlx.DB
	store      *store.TournamentStore
	affiliates AffiliateChecker
	metrics    *metrics.Metrics
	now        func() time.Time
}

// NewPlayerService builds the registration service. affiliates may be nil,
// in which case any username is accepted.
func NewPlayerService(db *sqlx.DB, store *store.TournamentStore, affiliates AffiliateChecker, m *metrics.Metrics) *PlayerService {
	return &PlayerService{db: db, store: store, affiliates: affiliates, metrics: m, now: time.Now}
}

func (s *PlayerService) RegisterPlayer(ctx context.Context, tournamentID uuid.UUID, username string) (*bracket.Player, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, fmt.Errorf("%w: username is required", ErrValidation)
	}
	if utf8.RuneCountInString(username) > maxUsernameLength {
		return nil, fmt.Errorf("%w: username exceeds %d characters", ErrValidation, maxUsernameLength)
	}

	// The roster lookup may go over the network, keep it out of the transaction.
	if s.affiliates != nil {
		ok, err := s.affiliates.IsAffiliate(ctx, username)
		if err != nil {
			return nil, fmt.Errorf("failed to check affiliate roster: %w", err)
		}
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownAffiliate, username)
		}
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	tournament, err := s.store.GetTournamentTx(ctx, tx, tournamentID)
	if err != nil {
		return nil, err
	}
	if tournament.Status != bracket.TournamentRegistration {
		return nil, fmt.Errorf("%w: tournament is %s", ErrRegistrationClosed, tournament.Status)
	}

	count, err := s.store.CountPlayersTx(ctx, tx, tournamentID)
	if err != nil {
		return nil, fmt.Errorf("failed to count players: %w", err)
	}
	if count >= tournament.MaxPlayers {
		return nil, fmt.Errorf("%w: %d of %d places taken", ErrTournamentFull, count, tournament.MaxPlayers)
	}

	taken, err := s.store.UsernameTakenTx(ctx, tx, tournamentID, username)
	if err != nil {
		return nil, fmt.Errorf("failed to check username: %w", err)
	}
	if taken {
		return nil, fmt.Errorf("%w: %s", ErrPlayerAlreadyRegistered, username)
	}

	maxSeed, err := s.store.MaxSeedTx(ctx, tx, tournamentID)
	if err != nil {
		return nil, fmt.Errorf("failed to read seeds: %w", err)
	}

	player := &bracket.Player{
		ID:           uuid.New(),
		TournamentID: tournamentID,
		Username:     username,
		Seed:         maxSeed + 1,
		Status:       bracket.PlayerRegistered,
		CreatedAt:    s.now().UTC(),
	}
	if err := s.store.CreatePlayer(ctx, tx, player); err != nil {
		return nil, fmt.Errorf("failed to create player: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	s.metrics.PlayerRegistered()
	return player, nil
}

// SetSeed overrides a player's seed. Seeds only matter until the bracket is
// generated, so the tournament must still be open for registration.
func (s *PlayerService) SetSeed(ctx context.Context, playerID uuid.UUID, seed int) (*bracket.Player, error) {
	if seed < 1 {
		return nil, fmt.Errorf("%w: seed must be at least 1", ErrValidation)
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	player, err := s.openRosterPlayer(ctx, tx, playerID)
	if err != nil {
		return nil, err
	}

	if err := s.store.UpdatePlayerSeedTx(ctx, tx, playerID, seed); err != nil {
		return nil, fmt.Errorf("failed to update seed: %w", err)
	}
	player.Seed = seed

	return player, tx.Commit()
}

func (s *PlayerService) WithdrawPlayer(ctx context.Context, playerID uuid.UUID) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := s.openRosterPlayer(ctx, tx, playerID); err != nil {
		return err
	}

	if err := s.store.DeletePlayerTx(ctx, tx, playerID); err != nil {
		return fmt.Errorf("failed to delete player: %w", err)
	}
	return tx.Commit()
}

func (s *PlayerService) openRosterPlayer(ctx context.Context, tx *sqlx.Tx, playerID uuid.UUID) (*bracket.Player, error) {
	player, err := s.store.GetPlayerTx(ctx, tx, playerID)
	if err != nil {
		return nil, err
	}

	tournament, err := s.store.GetTournamentTx(ctx, tx, player.TournamentID)
	if err != nil {
		return nil, err
	}
	if tournament.Status != bracket.TournamentRegistration {
		return nil, fmt.Errorf("%w: tournament is %s", ErrRegistrationClosed, tournament.Status)
	}
	return player, nil
}
