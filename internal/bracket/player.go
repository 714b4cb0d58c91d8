package bracket

import (
	"time"

	"github.com/google/uuid"
)

type PlayerStatus string

const (
	PlayerRegistered PlayerStatus = "registered"
	PlayerCheckedIn  PlayerStatus = "checked_in"
	PlayerPlaying    PlayerStatus = "playing"
	PlayerEliminated PlayerStatus = "eliminated"
	PlayerWinner     PlayerStatus = "winner"
)

type Player struct {
	ID           uuid.UUID `db:"id" json:"id"`
	TournamentID uuid.UUID `db:"tournament_id" json:"tournament_id"`

	// Affiliate username, unique per tournament regardless of case.
	// UsernameKey is its normalized form and carries the unique index.
	Username       string       `db:"username" json:"username"`
	UsernameKey    string       `db:"username_key" json:"-"`
	Seed           int          `db:"seed" json:"seed"`
	Status         PlayerStatus `db:"status" json:"status"`
	BestMultiplier float64      `db:"best_multiplier" json:"best_multiplier"`
	CreatedAt      time.Time    `db:"created_at" json:"created_at"`
}

// WinnerEntry is one row of the cross-tournament winners ledger.
type WinnerEntry struct {
	Username    string    `db:"username" json:"username"`
	DisplayName string    `db:"display_name" json:"display_name"`
	WinCount    int       `db:"win_count" json:"win_count"`
	LastWonAt   time.Time `db:"last_won_at" json:"last_won_at"`
}
