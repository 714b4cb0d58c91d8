package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/r2k2/tournaments/internal/bracket"
	"github.com/r2k2/tournaments/internal/utils"
)

var (
	ErrNotFound = errors.New("record not found")
	// A conditional update matched nothing: the row changed under us.
	ErrStaleState   = errors.New("record is no longer in the expected state")
	ErrSlotOccupied = errors.New("bracket slot already filled")
)

type TournamentStore struct {
	db *sqlx.DB
}

func NewTournamentStore(db *sqlx.DB) *TournamentStore {
	return &TournamentStore{db: db}
}

func notFound(err error, what string, id any) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %s %v", ErrNotFound, what, id)
	}
	return err
}

func checkAffectedRows(result sql.Result, noRowsErr error) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check affected rows: %w", err)
	}
	if rowsAffected == 0 {
		return noRowsErr
	}
	return nil
}

// Tournaments

func (s *TournamentStore) CreateTournament(ctx context.Context, tx *sqlx.Tx, tournament *bracket.Tournament) error {
	_, err := tx.NamedExecContext(ctx, `INSERT INTO tournaments (id, name, status, seeding, max_players, stream_url, total_rounds, current_round, created_at)
        VALUES (:id, :name, :status, :seeding, :max_players, :stream_url, :total_rounds, :current_round, :created_at)`, tournament)
	return err
}

func (s *TournamentStore) GetTournament(ctx context.Context, id uuid.UUID) (*bracket.Tournament, error) {
	return getTournament(ctx, s.db, id)
}

func (s *TournamentStore) GetTournamentTx(ctx context.Context, tx *sqlx.Tx, id uuid.UUID) (*bracket.Tournament, error) {
	return getTournament(ctx, tx, id)
}

func getTournament(ctx context.Context, q sqlx.ExtContext, id uuid.UUID) (*bracket.Tournament, error) {
	var tournament bracket.Tournament
	err := sqlx.GetContext(ctx, q, &tournament, q.Rebind("SELECT * FROM tournaments WHERE id = ?"), id)
	if err != nil {
		return nil, notFound(err, "tournament", id)
	}
	return &tournament, nil
}

func (s *TournamentStore) ListTournaments(ctx context.Context) ([]bracket.Tournament, error) {
	tournaments := []bracket.Tournament{}
	err := s.db.SelectContext(ctx, &tournaments, "SELECT * FROM tournaments ORDER BY created_at DESC")
	return tournaments, err
}

// UpdateTournamentStatusTx moves a tournament from one status to another and
// fails with ErrStaleState when it is no longer in from.
func (s *TournamentStore) UpdateTournamentStatusTx(ctx context.Context, tx *sqlx.Tx, id uuid.UUID, from, to bracket.TournamentStatus) error {
	result, err := tx.ExecContext(ctx, tx.Rebind("UPDATE tournaments SET status = ? WHERE id = ? AND status = ?"), to, id, from)
	if err != nil {
		return err
	}
	return checkAffectedRows(result, fmt.Errorf("%w: tournament %s is not %s", ErrStaleState, id, from))
}

func (s *TournamentStore) StartTournamentTx(ctx context.Context, tx *sqlx.Tx, id uuid.UUID, totalRounds int) error {
	result, err := tx.ExecContext(ctx, tx.Rebind(`UPDATE tournaments SET status = ?, total_rounds = ?, current_round = 1
		WHERE id = ? AND status = ?`), bracket.TournamentLive, totalRounds, id, bracket.TournamentRegistration)
	if err != nil {
		return err
	}
	return checkAffectedRows(result, fmt.Errorf("%w: tournament %s is not open for registration", ErrStaleState, id))
}

// AdvanceRoundTx only ever moves current_round forward.
func (s *TournamentStore) AdvanceRoundTx(ctx context.Context, tx *sqlx.Tx, id uuid.UUID, round int) error {
	_, err := tx.ExecContext(ctx, tx.Rebind("UPDATE tournaments SET current_round = ? WHERE id = ? AND current_round < ?"), round, id, round)
	return err
}

func (s *TournamentStore) CompleteTournamentTx(ctx context.Context, tx *sqlx.Tx, id, championID uuid.UUID, at time.Time) error {
	result, err := tx.ExecContext(ctx, tx.Rebind(`UPDATE tournaments SET status = ?, champion_id = ?, completed_at = ?
		WHERE id = ? AND status = ?`), bracket.TournamentCompleted, championID, at, id, bracket.TournamentLive)
	if err != nil {
		return err
	}
	return checkAffectedRows(result, fmt.Errorf("%w: tournament %s is not live", ErrStaleState, id))
}

// Players

// CreatePlayer derives the player's UsernameKey before inserting it.
func (s *TournamentStore) CreatePlayer(ctx context.Context, tx *sqlx.Tx, player *bracket.Player) error {
	player.UsernameKey = utils.NormalizeUsername(player.Username)
	_, err := tx.NamedExecContext(ctx, `INSERT INTO players (id, tournament_id, username, username_key, seed, status, best_multiplier, created_at)
            VALUES (:id, :tournament_id, :username, :username_key, :seed, :status, :best_multiplier, :created_at)`, player)
	return err
}

func (s *TournamentStore) GetPlayer(ctx context.Context, id uuid.UUID) (*bracket.Player, error) {
	return getPlayer(ctx, s.db, id)
}

func (s *TournamentStore) GetPlayerTx(ctx context.Context, tx *sqlx.Tx, id uuid.UUID) (*bracket.Player, error) {
	return getPlayer(ctx, tx, id)
}

func getPlayer(ctx context.Context, q sqlx.ExtContext, id uuid.UUID) (*bracket.Player, error) {
	var player bracket.Player
	err := sqlx.GetContext(ctx, q, &player, q.Rebind("SELECT * FROM players WHERE id = ?"), id)
	if err != nil {
		return nil, notFound(err, "player", id)
	}
	return &player, nil
}

func (s *TournamentStore) GetPlayers(ctx context.Context, tournamentID uuid.UUID) ([]bracket.Player, error) {
	players := []bracket.Player{}
	err := s.db.SelectContext(ctx, &players, s.db.Rebind("SELECT * FROM players WHERE tournament_id = ? ORDER BY seed ASC, created_at ASC"), tournamentID)
	return players, err
}

// GetPlayersByStatusTx returns players in seed order, registration order breaking ties.
func (s *TournamentStore) GetPlayersByStatusTx(ctx context.Context, tx *sqlx.Tx, tournamentID uuid.UUID, status bracket.PlayerStatus) ([]bracket.Player, error) {
	players := []bracket.Player{}
	err := tx.SelectContext(ctx, &players, tx.Rebind(`SELECT * FROM players WHERE tournament_id = ? AND status = ?
		ORDER BY seed ASC, created_at ASC`), tournamentID, status)
	return players, err
}

func (s *TournamentStore) CountPlayersTx(ctx context.Context, tx *sqlx.Tx, tournamentID uuid.UUID) (int, error) {
	var count int
	err := tx.GetContext(ctx, &count, tx.Rebind("SELECT COUNT(*) FROM players WHERE tournament_id = ?"), tournamentID)
	return count, err
}

func (s *TournamentStore) MaxSeedTx(ctx context.Context, tx *sqlx.Tx, tournamentID uuid.UUID) (int, error) {
	var seed int
	err := tx.GetContext(ctx, &seed, tx.Rebind("SELECT COALESCE(MAX(seed), 0) FROM players WHERE tournament_id = ?"), tournamentID)
	return seed, err
}

// UsernameTakenTx compares usernames case-insensitively, on the normalized key.
func (s *TournamentStore) UsernameTakenTx(ctx context.Context, tx *sqlx.Tx, tournamentID uuid.UUID, username string) (bool, error) {
	var count int
	err := tx.GetContext(ctx, &count, tx.Rebind("SELECT COUNT(*) FROM players WHERE tournament_id = ? AND username_key = ?"),
		tournamentID, utils.NormalizeUsername(username))
	return count > 0, err
}

func (s *TournamentStore) UpdatePlayerSeedTx(ctx context.Context, tx *sqlx.Tx, id uuid.UUID, seed int) error {
	result, err := tx.ExecContext(ctx, tx.Rebind("UPDATE players SET seed = ? WHERE id = ?"), seed, id)
	if err != nil {
		return err
	}
	return checkAffectedRows(result, fmt.Errorf("%w: player %s", ErrNotFound, id))
}

func (s *TournamentStore) DeletePlayerTx(ctx context.Context, tx *sqlx.Tx, id uuid.UUID) error {
	result, err := tx.ExecContext(ctx, tx.Rebind("DELETE FROM players WHERE id = ?"), id)
	if err != nil {
		return err
	}
	return checkAffectedRows(result, fmt.Errorf("%w: player %s", ErrNotFound, id))
}

func (s *TournamentStore) SetPlayersStatusTx(ctx context.Context, tx *sqlx.Tx, tournamentID uuid.UUID, from, to bracket.PlayerStatus) error {
	_, err := tx.ExecContext(ctx, tx.Rebind("UPDATE players SET status = ? WHERE tournament_id = ? AND status = ?"), to, tournamentID, from)
	return err
}

func (s *TournamentStore) UpdatePlayerStatusTx(ctx context.Context, tx *sqlx.Tx, id uuid.UUID, status bracket.PlayerStatus) error {
	result, err := tx.ExecContext(ctx, tx.Rebind("UPDATE players SET status = ? WHERE id = ?"), status, id)
	if err != nil {
		return err
	}
	return checkAffectedRows(result, fmt.Errorf("%w: player %s", ErrNotFound, id))
}

// RecordPlayerResultTx sets status and raises best_multiplier to score when
// score is higher. best_multiplier never goes down.
func (s *TournamentStore) RecordPlayerResultTx(ctx context.Context, tx *sqlx.Tx, id uuid.UUID, status bracket.PlayerStatus, score float64) error {
	result, err := tx.ExecContext(ctx, tx.Rebind(`UPDATE players SET status = ?,
		best_multiplier = CASE WHEN best_multiplier < ? THEN ? ELSE best_multiplier END
		WHERE id = ?`), status, score, score, id)
	if err != nil {
		return err
	}
	return checkAffectedRows(result, fmt.Errorf("%w: player %s", ErrNotFound, id))
}

// Matches

func (s *TournamentStore) CreateMatches(ctx context.Context, tx *sqlx.Tx, matches []bracket.Match) error {
	if len(matches) == 0 {
		return nil
	}
	_, err := tx.NamedExecContext(ctx, `INSERT INTO matches (id, tournament_id, round, match_number, player1_id, player2_id, status, is_bye, is_void, created_at)
		VALUES (:id, :tournament_id, :round, :match_number, :player1_id, :player2_id, :status, :is_bye, :is_void, :created_at)`, matches)
	return err
}

func (s *TournamentStore) GetMatch(ctx context.Context, id uuid.UUID) (*bracket.Match, error) {
	return getMatch(ctx, s.db, id)
}

func (s *TournamentStore) GetMatchTx(ctx context.Context, tx *sqlx.Tx, id uuid.UUID) (*bracket.Match, error) {
	return getMatch(ctx, tx, id)
}

func getMatch(ctx context.Context, q sqlx.ExtContext, id uuid.UUID) (*bracket.Match, error) {
	var match bracket.Match
	err := sqlx.GetContext(ctx, q, &match, q.Rebind("SELECT * FROM matches WHERE id = ?"), id)
	if err != nil {
		return nil, notFound(err, "match", id)
	}
	return &match, nil
}

func (s *TournamentStore) GetMatches(ctx context.Context, tournamentID uuid.UUID) ([]bracket.Match, error) {
	matches := []bracket.Match{}
	err := s.db.SelectContext(ctx, &matches, s.db.Rebind("SELECT * FROM matches WHERE tournament_id = ? ORDER BY round ASC, match_number ASC"), tournamentID)
	return matches, err
}

func (s *TournamentStore) CountMatchesTx(ctx context.Context, tx *sqlx.Tx, tournamentID uuid.UUID) (int, error) {
	var count int
	err := tx.GetContext(ctx, &count, tx.Rebind("SELECT COUNT(*) FROM matches WHERE tournament_id = ?"), tournamentID)
	return count, err
}

func (s *TournamentStore) GetRoundMatchesTx(ctx context.Context, tx *sqlx.Tx, tournamentID uuid.UUID, round int) ([]bracket.Match, error) {
	matches := []bracket.Match{}
	err := tx.SelectContext(ctx, &matches, tx.Rebind("SELECT * FROM matches WHERE tournament_id = ? AND round = ? ORDER BY match_number ASC"), tournamentID, round)
	return matches, err
}

// CountOpenMatchesTx counts matches of a round still to be decided. Void
// matches are never decided and are left out.
func (s *TournamentStore) CountOpenMatchesTx(ctx context.Context, tx *sqlx.Tx, tournamentID uuid.UUID, round int) (int, error) {
	var count int
	err := tx.GetContext(ctx, &count, tx.Rebind(`SELECT COUNT(*) FROM matches
		WHERE tournament_id = ? AND round = ? AND status <> ? AND is_void = ?`), tournamentID, round, bracket.MatchCompleted, false)
	return count, err
}

// CompleteMatchTx records the result only if the match is not completed yet.
// This check-and-set is what stops two concurrent submissions from both
// advancing a winner.
func (s *TournamentStore) CompleteMatchTx(ctx context.Context, tx *sqlx.Tx, match *bracket.Match) error {
	result, err := tx.ExecContext(ctx, tx.Rebind(`UPDATE matches SET winner_id = ?, player1_score = ?, player2_score = ?, status = ?, completed_at = ?
		WHERE id = ? AND status <> ?`),
		match.WinnerID, match.Player1Score, match.Player2Score, bracket.MatchCompleted, match.CompletedAt,
		match.ID, bracket.MatchCompleted)
	if err != nil {
		return err
	}
	return checkAffectedRows(result, bracket.ErrMatchAlreadyCompleted)
}

// FillSlotTx seats a player in an empty slot of a later round match.
func (s *TournamentStore) FillSlotTx(ctx context.Context, tx *sqlx.Tx, matchID uuid.UUID, slot bracket.Slot, playerID uuid.UUID) error {
	var query string
	switch slot {
	case bracket.Slot1:
		query = "UPDATE matches SET player1_id = ? WHERE id = ? AND player1_id IS NULL"
	case bracket.Slot2:
		query = "UPDATE matches SET player2_id = ? WHERE id = ? AND player2_id IS NULL"
	default:
		return fmt.Errorf("invalid slot %d", slot)
	}

	result, err := tx.ExecContext(ctx, tx.Rebind(query), playerID, matchID)
	if err != nil {
		return err
	}
	return checkAffectedRows(result, fmt.Errorf("%w: slot %d of match %s", ErrSlotOccupied, slot, matchID))
}

// Winners ledger

// IncrementWinnerTx adds one win for username, creating the ledger row on the first win.
func (s *TournamentStore) IncrementWinnerTx(ctx context.Context, tx *sqlx.Tx, username, displayName string, at time.Time) error {
	_, err := tx.ExecContext(ctx, tx.Rebind(`INSERT INTO winners_ledger (username, display_name, win_count, last_won_at)
		VALUES (?, ?, 1, ?)
		ON CONFLICT (username) DO UPDATE SET
			win_count = winners_ledger.win_count + 1,
			display_name = excluded.display_name,
			last_won_at = excluded.last_won_at`), username, displayName, at)
	return err
}

func (s *TournamentStore) GetWinner(ctx context.Context, username string) (*bracket.WinnerEntry, error) {
	var entry bracket.WinnerEntry
	err := s.db.GetContext(ctx, &entry, s.db.Rebind("SELECT * FROM winners_ledger WHERE username = ?"), username)
	if err != nil {
		return nil, notFound(err, "winner", username)
	}
	return &entry, nil
}

func (s *TournamentStore) ListWinners(ctx context.Context, limit int) ([]bracket.WinnerEntry, error) {
	winners := []bracket.WinnerEntry{}
	err := s.db.SelectContext(ctx, &winners, s.db.Rebind(`SELECT * FROM winners_ledger
		ORDER BY win_count DESC, last_won_at DESC LIMIT ?`), limit)
	return winners, err
}
