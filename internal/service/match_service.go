package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/r2k2/tournaments/internal/bracket"
	"github.com/r2k2/tournaments/internal/metrics"
	"github.com/r2k2/tournaments/internal/store"
	"github.com/r2k2/tournaments/internal/utils"
)

type MatchService struct {
	db      *sqlx.DB
	store   *store.TournamentStore
	metrics *metrics.Metrics
	now     func() time.Time
}

func NewMatchService(db *sqlx.DB, store *store.TournamentStore, m *metrics.Metrics) *MatchService {
	return &MatchService{db: db, store: store, metrics: m, now: time.Now}
}

// Resolution describes everything a resolved match changed.
type Resolution struct {
	Match    *bracket.Match `json:"match"`
	Walkover bool           `json:"walkover"`

	// Where the winner went, nil after the final
	NextMatchID *uuid.UUID    `json:"next_match_id,omitempty"`
	NextSlot    *bracket.Slot `json:"next_slot,omitempty"`

	RoundAdvanced bool `json:"round_advanced"`

	// Set only when this match decided the tournament
	ChampionID *uuid.UUID `json:"champion_id,omitempty"`
}

func (r *Resolution) TournamentCompleted() bool {
	return r.ChampionID != nil
}

func (s *MatchService) GetMatch(ctx context.Context, id uuid.UUID) (*bracket.Match, error) {
	return s.store.GetMatch(ctx, id)
}

// ResolveMatch records the scores of a match, advances the winner into the
// next round and completes the tournament after the final. A bye with its
// player seated is a walkover and the scores are ignored.
func (s *MatchService) ResolveMatch(ctx context.Context, matchID uuid.UUID, player1Score, player2Score float64) (*Resolution, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	match, err := s.store.GetMatchTx(ctx, tx, matchID)
	if err != nil {
		return nil, err
	}
	if match.Completed() {
		return nil, bracket.ErrMatchAlreadyCompleted
	}

	tournament, err := s.store.GetTournamentTx(ctx, tx, match.TournamentID)
	if err != nil {
		return nil, err
	}
	if tournament.Status != bracket.TournamentLive {
		return nil, fmt.Errorf("%w: tournament is %s", ErrTournamentNotLive, tournament.Status)
	}

	outcome, err := bracket.Decide(match, player1Score, player2Score)
	if err != nil {
		return nil, err
	}

	resolution, err := s.applyOutcome(ctx, tx, tournament, match, outcome)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	s.recordResolution(resolution)
	return resolution, nil
}

// AdvanceByes walks over every bye whose player is already seated, round by
// round, so walkovers cascade. It returns how many matches it resolved.
func (s *MatchService) AdvanceByes(ctx context.Context, tournamentID uuid.UUID) (int, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	tournament, err := s.store.GetTournamentTx(ctx, tx, tournamentID)
	if err != nil {
		return 0, err
	}
	if tournament.Status != bracket.TournamentLive {
		return 0, fmt.Errorf("%w: tournament is %s", ErrTournamentNotLive, tournament.Status)
	}

	var resolutions []*Resolution

rounds:
	for round := 1; round <= tournament.TotalRounds; round++ {
		// Reloaded per round: walkovers of the previous round seated players here.
		matches, err := s.store.GetRoundMatchesTx(ctx, tx, tournamentID, round)
		if err != nil {
			return 0, fmt.Errorf("failed to load round %d: %w", round, err)
		}

		for i := range matches {
			m := &matches[i]
			if !m.IsBye || m.IsVoid || m.Completed() || m.Occupant() == nil {
				continue
			}

			outcome, err := bracket.Decide(m, 0, 0)
			if err != nil {
				return 0, err
			}
			resolution, err := s.applyOutcome(ctx, tx, tournament, m, outcome)
			if err != nil {
				return 0, err
			}
			resolutions = append(resolutions, resolution)

			if resolution.TournamentCompleted() {
				break rounds
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}

	for _, r := range resolutions {
		s.recordResolution(r)
	}
	return len(resolutions), nil
}

func (s *MatchService) applyOutcome(ctx context.Context, tx *sqlx.Tx, tournament *bracket.Tournament, match *bracket.Match, outcome bracket.Outcome) (*Resolution, error) {
	now := s.now().UTC()

	match.WinnerID = utils.Ptr(outcome.WinnerID)
	match.Player1Score = outcome.Player1Score
	match.Player2Score = outcome.Player2Score
	match.CompletedAt = &now

	if err := s.store.CompleteMatchTx(ctx, tx, match); err != nil {
		if errors.Is(err, bracket.ErrMatchAlreadyCompleted) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to complete match: %w", err)
	}
	match.Status = bracket.MatchCompleted

	resolution := &Resolution{Match: match, Walkover: outcome.Walkover}

	if outcome.Walkover {
		if err := s.store.UpdatePlayerStatusTx(ctx, tx, outcome.WinnerID, bracket.PlayerCheckedIn); err != nil {
			return nil, fmt.Errorf("failed to update winner: %w", err)
		}
	} else {
		if err := s.store.RecordPlayerResultTx(ctx, tx, outcome.WinnerID, bracket.PlayerCheckedIn, *outcome.WinnerScore(match)); err != nil {
			return nil, fmt.Errorf("failed to update winner: %w", err)
		}
		if err := s.store.RecordPlayerResultTx(ctx, tx, *outcome.LoserID, bracket.PlayerEliminated, *outcome.LoserScore(match)); err != nil {
			return nil, fmt.Errorf("failed to update loser: %w", err)
		}
	}

	if match.Round >= tournament.TotalRounds {
		if err := s.completeTournament(ctx, tx, tournament, outcome.WinnerID, now); err != nil {
			return nil, err
		}
		resolution.ChampionID = utils.Ptr(outcome.WinnerID)
		return resolution, nil
	}

	nextRound, err := s.store.GetRoundMatchesTx(ctx, tx, match.TournamentID, match.Round+1)
	if err != nil {
		return nil, fmt.Errorf("failed to load round %d: %w", match.Round+1, err)
	}
	index, slot := bracket.NextSlot(match.MatchNumber)
	if index >= len(nextRound) {
		return nil, fmt.Errorf("round %d has no match %d", match.Round+1, index+1)
	}
	next := nextRound[index]

	if err := s.store.FillSlotTx(ctx, tx, next.ID, slot, outcome.WinnerID); err != nil {
		if errors.Is(err, store.ErrSlotOccupied) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to advance winner: %w", err)
	}
	resolution.NextMatchID = utils.Ptr(next.ID)
	resolution.NextSlot = utils.Ptr(slot)

	open, err := s.store.CountOpenMatchesTx(ctx, tx, match.TournamentID, match.Round)
	if err != nil {
		return nil, fmt.Errorf("failed to count open matches: %w", err)
	}
	if open == 0 {
		if err := s.store.AdvanceRoundTx(ctx, tx, match.TournamentID, match.Round+1); err != nil {
			return nil, fmt.Errorf("failed to advance round: %w", err)
		}
		resolution.RoundAdvanced = true
	}

	return resolution, nil
}

// completeTournament crowns the champion and credits the winners ledger. It
// runs in the transaction that completed the final, so it happens once.
func (s *MatchService) completeTournament(ctx context.Context, tx *sqlx.Tx, tournament *bracket.Tournament, championID uuid.UUID, at time.Time) error {
	if err := s.store.UpdatePlayerStatusTx(ctx, tx, championID, bracket.PlayerWinner); err != nil {
		return fmt.Errorf("failed to crown champion: %w", err)
	}

	if err := s.store.CompleteTournamentTx(ctx, tx, tournament.ID, championID, at); err != nil {
		if errors.Is(err, store.ErrStaleState) {
			return fmt.Errorf("%w: %w", ErrTournamentNotLive, err)
		}
		return fmt.Errorf("failed to complete tournament: %w", err)
	}

	champion, err := s.store.GetPlayerTx(ctx, tx, championID)
	if err != nil {
		return fmt.Errorf("failed to load champion: %w", err)
	}
	if err := s.store.IncrementWinnerTx(ctx, tx, utils.NormalizeUsername(champion.Username), champion.Username, at); err != nil {
		return fmt.Errorf("failed to update winners ledger: %w", err)
	}

	tournament.Status = bracket.TournamentCompleted
	tournament.ChampionID = utils.Ptr(championID)
	tournament.CompletedAt = &at
	return nil
}

func (s *MatchService) recordResolution(r *Resolution) {
	if r.Walkover {
		s.metrics.MatchResolved(metrics.KindWalkover)
	} else {
		s.metrics.MatchResolved(metrics.KindScored)
	}
	if r.TournamentCompleted() {
		s.metrics.TournamentCompleted()
	}
}
