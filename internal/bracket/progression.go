package bracket

import (
	"fmt"
	"math"

	"github.com/google/uuid"
)

type Slot int

const (
	Slot1 Slot = 1
	Slot2 Slot = 2
)

// NextSlot locates where the winner of match number matchNumber goes in the
// following round: the 0-based index among that round's matches ordered by
// match number, and which of its two slots.
func NextSlot(matchNumber int) (int, Slot) {
	index := (matchNumber - 1) / 2
	if (matchNumber-1)%2 == 0 {
		return index, Slot1
	}
	return index, Slot2
}

// Outcome is the decided result of a match, before anything is persisted.
type Outcome struct {
	WinnerID uuid.UUID
	LoserID  *uuid.UUID

	Player1Score *float64
	Player2Score *float64

	// Set for byes: the lone player advances without a score
	Walkover bool
}

func (o Outcome) WinnerScore(m *Match) *float64 {
	if m.Player1ID != nil && *m.Player1ID == o.WinnerID {
		return o.Player1Score
	}
	return o.Player2Score
}

func (o Outcome) LoserScore(m *Match) *float64 {
	if m.Player1ID != nil && *m.Player1ID == o.WinnerID {
		return o.Player2Score
	}
	return o.Player1Score
}

func validScore(s float64) bool {
	return s >= 0 && !math.IsNaN(s) && !math.IsInf(s, 0)
}

// Decide works out who wins m. Player 1 wins only with a strictly higher
// score, so a tie goes to player 2. A bye with its lone player seated is a
// walkover and the scores are ignored.
func Decide(m *Match, player1Score, player2Score float64) (Outcome, error) {
	if m.Completed() {
		return Outcome{}, ErrMatchAlreadyCompleted
	}
	if m.IsVoid {
		return Outcome{}, fmt.Errorf("%w: match %d of round %d can never be played", ErrMatchNotReady, m.MatchNumber, m.Round)
	}

	if m.IsBye {
		if occupant := m.Occupant(); occupant != nil {
			return Outcome{WinnerID: *occupant, Walkover: true}, nil
		}
		if m.Player1ID == nil && m.Player2ID == nil {
			return Outcome{}, fmt.Errorf("%w: bye in round %d is still waiting for its player", ErrMatchNotReady, m.Round)
		}
	}

	if m.Player1ID == nil || m.Player2ID == nil {
		return Outcome{}, ErrMatchNotReady
	}
	if !validScore(player1Score) || !validScore(player2Score) {
		return Outcome{}, ErrInvalidScore
	}

	s1, s2 := player1Score, player2Score
	outcome := Outcome{Player1Score: &s1, Player2Score: &s2}

	if player1Score > player2Score {
		outcome.WinnerID = *m.Player1ID
		outcome.LoserID = m.Player2ID
	} else {
		outcome.WinnerID = *m.Player2ID
		outcome.LoserID = m.Player1ID
	}
	return outcome, nil
}

// RoundName is the display name of a round in a bracket of totalRounds rounds.
func RoundName(round, totalRounds int) string {
	if round < 1 || round > totalRounds {
		return fmt.Sprintf("Round %d", round)
	}

	switch totalRounds - round {
	case 0:
		return "Final"
	case 1:
		return "Semifinals"
	case 2:
		return "Quarterfinals"
	}
	return fmt.Sprintf("Round of %d", 1<<(totalRounds-round+1))
}
