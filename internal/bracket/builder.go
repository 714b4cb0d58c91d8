package bracket

import (
	"fmt"
	"math/bits"

	"github.com/google/uuid"
)

// TotalRounds is ceil(log2(count)), the number of rounds a single elimination
// bracket needs for count players.
func TotalRounds(count int) int {
	if count <= 1 {
		return 0
	}
	return bits.Len(uint(count - 1))
}

// BracketSize is the number of first round slots for count players: count
// rounded up to a power of two.
func BracketSize(count int) int {
	if count <= 0 {
		return 0
	}
	return 1 << TotalRounds(count)
}

// seedOrder returns the seed index that sits at each first round position when
// seeds are separated the classic way: 0 meets size-1, 1 meets size-2 and the
// top two seeds can only meet in the final.
func seedOrder(bracketSize int) []int {
	if bracketSize == 0 {
		return []int{}
	}

	order := []int{0}
	for len(order) < bracketSize {
		next := make([]int, 0, len(order)*2)
		currentCount := len(order) * 2

		for _, seed := range order {
			next = append(next, seed, (currentCount-1)-seed)
		}
		order = next
	}
	return order
}

func placePlayers(players []Player, bracketSize int, seeding Seeding) ([]*uuid.UUID, error) {
	slots := make([]*uuid.UUID, bracketSize)

	switch seeding {
	case SeedingPositional, "":
		for i := range players {
			id := players[i].ID
			slots[i] = &id
		}
	case SeedingStandard:
		for pos, seed := range seedOrder(bracketSize) {
			if seed < len(players) {
				id := players[seed].ID
				slots[pos] = &id
			}
		}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownSeeding, seeding)
	}

	return slots, nil
}

// Build lays players (already in seed order) into a complete single
// elimination bracket and returns every match of every round, ordered by round
// then match number. Only round 1 has players; later rounds are placeholders the
// resolver fills as winners advance.
//
// A slot is dead when no player can ever reach it: an empty first round slot, or
// any slot fed by a match whose two slots are dead. Matches with a dead slot are
// byes, matches with two dead slots are also void.
func Build(tournamentID uuid.UUID, players []Player, seeding Seeding) ([]Match, error) {
	if len(players) < 2 {
		return nil, ErrInsufficientPlayers
	}

	totalRounds := TotalRounds(len(players))
	bracketSize := BracketSize(len(players))

	slots, err := placePlayers(players, bracketSize, seeding)
	if err != nil {
		return nil, err
	}

	matches := make([]Match, 0, bracketSize-1)
	var feederVoid []bool

	for r := 1; r <= totalRounds; r++ {
		matchesInRound := bracketSize >> r
		roundVoid := make([]bool, matchesInRound)

		for i := 0; i < matchesInRound; i++ {
			m := Match{
				ID:           uuid.New(),
				TournamentID: tournamentID,
				Round:        r,
				MatchNumber:  i + 1,
				Status:       MatchPending,
			}

			var dead1, dead2 bool
			if r == 1 {
				m.Player1ID = slots[2*i]
				m.Player2ID = slots[2*i+1]
				dead1, dead2 = m.Player1ID == nil, m.Player2ID == nil
			} else {
				dead1, dead2 = feederVoid[2*i], feederVoid[2*i+1]
			}

			m.IsBye = dead1 || dead2
			m.IsVoid = dead1 && dead2
			roundVoid[i] = m.IsVoid

			matches = append(matches, m)
		}
		feederVoid = roundVoid
	}

	return matches, nil
}
