package bracket

import (
	"time"

	"github.com/google/uuid"
)

type TournamentStatus string

const (
	TournamentPending      TournamentStatus = "pending"
	TournamentRegistration TournamentStatus = "registration"
	TournamentLive         TournamentStatus = "live"
	TournamentCompleted    TournamentStatus = "completed"
	TournamentCancelled    TournamentStatus = "cancelled"
)

func (s TournamentStatus) Terminal() bool {
	return s == TournamentCompleted || s == TournamentCancelled
}

// CanTransitionTo reports whether the lifecycle allows moving from s to next.
// Cancellation is reachable from every non-terminal state.
func (s TournamentStatus) CanTransitionTo(next TournamentStatus) bool {
	if s.Terminal() {
		return false
	}
	switch next {
	case TournamentRegistration:
		return s == TournamentPending
	case TournamentLive:
		return s == TournamentRegistration
	case TournamentCompleted:
		return s == TournamentLive
	case TournamentCancelled:
		return true
	}
	return false
}

// Seeding decides how the roster is laid into the first round.
type Seeding string

const (
	// Players fill the bracket in list order, byes collect at the bottom.
	SeedingPositional Seeding = "positional"
	// Classic 1 vs N placement, top seeds meet as late as possible.
	SeedingStandard Seeding = "standard"
)

func (s Seeding) Valid() bool {
	return s == SeedingPositional || s == SeedingStandard
}

type Tournament struct {
	ID           uuid.UUID        `db:"id" json:"id"`
	Name         string           `db:"name" json:"name"`
	Status       TournamentStatus `db:"status" json:"status"`
	Seeding      Seeding          `db:"seeding" json:"seeding"`
	MaxPlayers   int              `db:"max_players" json:"max_players"`
	StreamURL    *string          `db:"stream_url" json:"stream_url,omitempty"`
	TotalRounds  int              `db:"total_rounds" json:"total_rounds"`
	CurrentRound int              `db:"current_round" json:"current_round"`
	ChampionID   *uuid.UUID       `db:"champion_id" json:"champion_id,omitempty"`
	CreatedAt    time.Time        `db:"created_at" json:"created_at"`
	CompletedAt  *time.Time       `db:"completed_at" json:"completed_at,omitempty"`
}
