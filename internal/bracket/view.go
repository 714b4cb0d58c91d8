package bracket

import "sort"

type RoundView struct {
	Number  int     `json:"number"`
	Name    string  `json:"name"`
	Matches []Match `json:"matches"`
}

// GroupByRound splits a flat match list into rounds, each sorted by match
// number, for rendering the bracket left to right.
func GroupByRound(matches []Match, totalRounds int) []RoundView {
	rounds := make(map[int][]Match)
	var roundNums []int

	for _, m := range matches {
		if _, exists := rounds[m.Round]; !exists {
			roundNums = append(roundNums, m.Round)
		}
		rounds[m.Round] = append(rounds[m.Round], m)
	}

	sort.Ints(roundNums)

	views := make([]RoundView, 0, len(roundNums))
	for _, r := range roundNums {
		roundMatches := rounds[r]
		sort.Slice(roundMatches, func(i, j int) bool {
			return roundMatches[i].MatchNumber < roundMatches[j].MatchNumber
		})
		views = append(views, RoundView{
			Number:  r,
			Name:    RoundName(r, totalRounds),
			Matches: roundMatches,
		})
	}
	return views
}
