package bracket

import (
	"time"

	"github.com/google/uuid"
)

type MatchStatus string

const (
	MatchPending    MatchStatus = "pending"
	MatchInProgress MatchStatus = "in_progress"
	MatchCompleted  MatchStatus = "completed"
)

type Match struct {
	ID           uuid.UUID `db:"id" json:"id"`
	TournamentID uuid.UUID `db:"tournament_id" json:"tournament_id"`

	// Position in the bracket, both 1-based. MatchNumber restarts every round.
	Round       int `db:"round" json:"round"`
	MatchNumber int `db:"match_number" json:"match_number"`

	// nil means TBD, or a slot that can never be filled when the match is a bye
	Player1ID *uuid.UUID `db:"player1_id" json:"player1_id"`
	Player2ID *uuid.UUID `db:"player2_id" json:"player2_id"`
	WinnerID  *uuid.UUID `db:"winner_id" json:"winner_id"`

	Player1Score *float64    `db:"player1_score" json:"player1_score"`
	Player2Score *float64    `db:"player2_score" json:"player2_score"`
	Status       MatchStatus `db:"status" json:"status"`

	// IsBye marks a match with at least one slot that no player can reach.
	// IsVoid marks a match where neither slot can be reached; it is never played.
	IsBye  bool `db:"is_bye" json:"is_bye"`
	IsVoid bool `db:"is_void" json:"is_void"`

	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
	CompletedAt *time.Time `db:"completed_at" json:"completed_at,omitempty"`
}

func (m *Match) Completed() bool {
	return m.Status == MatchCompleted
}

// Occupant returns the only seated player of a match, or nil when the match
// has zero or two players.
func (m *Match) Occupant() *uuid.UUID {
	switch {
	case m.Player1ID != nil && m.Player2ID == nil:
		return m.Player1ID
	case m.Player1ID == nil && m.Player2ID != nil:
		return m.Player2ID
	}
	return nil
}
