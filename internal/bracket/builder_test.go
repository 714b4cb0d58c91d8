package bracket

import (
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func makePlayers(names ...string) []Player {
	tournamentID := uuid.New()
	players := make([]Player, 0, len(names))
	for i, name := range names {
		players = append(players, Player{
			ID:           uuid.New(),
			TournamentID: tournamentID,
			Username:     name,
			Seed:         i + 1,
			Status:       PlayerRegistered,
		})
	}
	return players
}

func numberedPlayers(n int) []Player {
	names := make([]string, n)
	for i := range names {
		names[i] = fmt.Sprintf("player%d", i+1)
	}
	return makePlayers(names...)
}

func TestBracketSize(t *testing.T) {
	testCases := []struct {
		count       int
		size        int
		totalRounds int
	}{
		{count: 0, size: 0, totalRounds: 0},
		{count: 1, size: 1, totalRounds: 0},
		{count: 2, size: 2, totalRounds: 1},
		{count: 3, size: 4, totalRounds: 2},
		{count: 5, size: 8, totalRounds: 3},
		{count: 8, size: 8, totalRounds: 3},
		{count: 9, size: 16, totalRounds: 4},
		{count: 64, size: 64, totalRounds: 6},
		{count: 65, size: 128, totalRounds: 7},
	}

	for _, tc := range testCases {
		t.Run(fmt.Sprintf("%d players", tc.count), func(t *testing.T) {
			assert.Equal(t, tc.size, BracketSize(tc.count))
			assert.Equal(t, tc.totalRounds, TotalRounds(tc.count))
		})
	}
}

func TestSeedOrder(t *testing.T) {
	assert.Equal(t, []int{}, seedOrder(0))
	assert.Equal(t, []int{0, 1}, seedOrder(2))
	assert.Equal(t, []int{0, 3, 1, 2}, seedOrder(4))
	assert.Equal(t, []int{0, 7, 3, 4, 1, 6, 2, 5}, seedOrder(8))
}

func TestBuild_InsufficientPlayers(t *testing.T) {
	for _, n := range []int{0, 1} {
		matches, err := Build(uuid.New(), numberedPlayers(n), SeedingPositional)
		assert.ErrorIs(t, err, ErrInsufficientPlayers)
		assert.Nil(t, matches)
	}
}

func TestBuild_UnknownSeeding(t *testing.T) {
	_, err := Build(uuid.New(), numberedPlayers(4), Seeding("random"))
	assert.ErrorIs(t, err, ErrUnknownSeeding)
}

func TestBuild_MatchAndRoundCounts(t *testing.T) {
	for _, seeding := range []Seeding{SeedingPositional, SeedingStandard} {
		for n := 2; n <= 40; n++ {
			t.Run(fmt.Sprintf("%s/%d", seeding, n), func(t *testing.T) {
				matches, err := Build(uuid.New(), numberedPlayers(n), seeding)
				require.NoError(t, err)

				size := BracketSize(n)
				assert.Len(t, matches, size-1)

				maxRound := 0
				perRound := make(map[int][]int)
				for _, m := range matches {
					if m.Round > maxRound {
						maxRound = m.Round
					}
					perRound[m.Round] = append(perRound[m.Round], m.MatchNumber)
					assert.Equal(t, MatchPending, m.Status)
				}
				assert.Equal(t, TotalRounds(n), maxRound)

				for r, numbers := range perRound {
					expected := make([]int, size>>r)
					for i := range expected {
						expected[i] = i + 1
					}
					assert.Equal(t, expected, numbers, "round %d numbering", r)
				}
			})
		}
	}
}

func TestBuild_EveryPlayerPlacedOnce(t *testing.T) {
	for _, seeding := range []Seeding{SeedingPositional, SeedingStandard} {
		players := numberedPlayers(11)
		matches, err := Build(uuid.New(), players, seeding)
		require.NoError(t, err)

		seen := make(map[uuid.UUID]int)
		for _, m := range matches {
			if m.Round != 1 {
				assert.Nil(t, m.Player1ID)
				assert.Nil(t, m.Player2ID)
				continue
			}
			if m.Player1ID != nil {
				seen[*m.Player1ID]++
			}
			if m.Player2ID != nil {
				seen[*m.Player2ID]++
			}
		}
		assert.Len(t, seen, len(players))
		for _, p := range players {
			assert.Equal(t, 1, seen[p.ID], "%s placed once with %s seeding", p.Username, seeding)
		}
	}
}

func TestBuild_PositionalFivePlayerScenario(t *testing.T) {
	players := makePlayers("A", "B", "C", "D", "E")
	a, b, c, d, e := players[0].ID, players[1].ID, players[2].ID, players[3].ID, players[4].ID

	matches, err := Build(uuid.New(), players, SeedingPositional)
	require.NoError(t, err)
	require.Len(t, matches, 7)

	round1 := matches[:4]
	assert.Equal(t, &a, round1[0].Player1ID)
	assert.Equal(t, &b, round1[0].Player2ID)
	assert.False(t, round1[0].IsBye)

	assert.Equal(t, &c, round1[1].Player1ID)
	assert.Equal(t, &d, round1[1].Player2ID)
	assert.False(t, round1[1].IsBye)

	assert.Equal(t, &e, round1[2].Player1ID)
	assert.Nil(t, round1[2].Player2ID)
	assert.True(t, round1[2].IsBye)
	assert.False(t, round1[2].IsVoid)

	assert.Nil(t, round1[3].Player1ID)
	assert.Nil(t, round1[3].Player2ID)
	assert.True(t, round1[3].IsBye)
	assert.True(t, round1[3].IsVoid)

	for i, m := range round1 {
		assert.Equal(t, 1, m.Round)
		assert.Equal(t, i+1, m.MatchNumber)
	}

	round2 := matches[4:6]
	for i, m := range round2 {
		assert.Equal(t, 2, m.Round)
		assert.Equal(t, i+1, m.MatchNumber)
		assert.Nil(t, m.Player1ID)
		assert.Nil(t, m.Player2ID)
	}
	assert.False(t, round2[0].IsBye)
	// fed by E's bye and the void match, so only E can ever arrive
	assert.True(t, round2[1].IsBye)
	assert.False(t, round2[1].IsVoid)

	final := matches[6]
	assert.Equal(t, 3, final.Round)
	assert.Equal(t, 1, final.MatchNumber)
	assert.False(t, final.IsBye)
}

func TestBuild_PositionalVoidPropagation(t *testing.T) {
	// 9 players in 16 slots: round 1 matches 6-8 are void, round 2 match 4 is
	// fed by two void matches and is void itself
	matches, err := Build(uuid.New(), numberedPlayers(9), SeedingPositional)
	require.NoError(t, err)

	byPosition := make(map[[2]int]Match)
	for _, m := range matches {
		byPosition[[2]int{m.Round, m.MatchNumber}] = m
	}

	assert.True(t, byPosition[[2]int{1, 5}].IsBye)
	assert.False(t, byPosition[[2]int{1, 5}].IsVoid)
	for _, n := range []int{6, 7, 8} {
		assert.True(t, byPosition[[2]int{1, n}].IsVoid, "round 1 match %d", n)
	}

	assert.False(t, byPosition[[2]int{2, 1}].IsBye)
	assert.False(t, byPosition[[2]int{2, 2}].IsBye)
	assert.True(t, byPosition[[2]int{2, 3}].IsBye)
	assert.False(t, byPosition[[2]int{2, 3}].IsVoid)
	assert.True(t, byPosition[[2]int{2, 4}].IsVoid)

	assert.False(t, byPosition[[2]int{3, 1}].IsBye)
	assert.True(t, byPosition[[2]int{3, 2}].IsBye)
	assert.False(t, byPosition[[2]int{3, 2}].IsVoid)

	assert.False(t, byPosition[[2]int{4, 1}].IsBye)
}

func TestBuild_StandardSeedingByes(t *testing.T) {
	for n := 2; n <= 40; n++ {
		t.Run(fmt.Sprintf("%d players", n), func(t *testing.T) {
			matches, err := Build(uuid.New(), numberedPlayers(n), SeedingStandard)
			require.NoError(t, err)

			byes := 0
			for _, m := range matches {
				assert.False(t, m.IsVoid)
				if m.Round != 1 {
					assert.False(t, m.IsBye)
					continue
				}
				if m.IsBye {
					byes++
					assert.NotNil(t, m.Occupant(), "bye must have exactly one player")
				}
			}
			assert.Equal(t, BracketSize(n)-n, byes)
		})
	}
}

func TestBuild_StandardSeedingSeparatesTopSeeds(t *testing.T) {
	players := numberedPlayers(8)
	matches, err := Build(uuid.New(), players, SeedingStandard)
	require.NoError(t, err)

	assert.Equal(t, players[0].ID, *matches[0].Player1ID)
	assert.Equal(t, players[7].ID, *matches[0].Player2ID)
	assert.Equal(t, players[1].ID, *matches[2].Player1ID)
	assert.Equal(t, players[6].ID, *matches[2].Player2ID)
}
