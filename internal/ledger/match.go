package ledger

import (
	"fmt"
	"iter"
	"slices"
	"strings"

	"github.com/atmx/wager-ledger/internal/model"
)

// matchSeparator joins the two labels of a match key: "India-vs-Australia".
const matchSeparator = "-vs-"

// MatchKey formats the wire form of a match.
func MatchKey(teamA, teamB string) string {
	return teamA + matchSeparator + teamB
}

// ParseMatchKey splits a match key at the first separator.
// Format: {teamA}-vs-{teamB}
func ParseMatchKey(key string) (teamA, teamB string, err error) {
	teamA, teamB, found := strings.Cut(key, matchSeparator)
	if !found || teamA == "" || teamB == "" {
		return "", "", fmt.Errorf("%w: match key %q (expected {teamA}-vs-{teamB})",
			ErrInvalidArgument, key)
	}
	return teamA, teamB, nil
}

// pairKey is the order-insensitive grouping key of two labels.
type pairKey struct{ lo, hi string }

func newPairKey(a, b string) pairKey {
	if b < a {
		a, b = b, a
	}
	return pairKey{lo: a, hi: b}
}

// ListOpenMatches groups the open wagers of accounts by the unordered pair of
// side labels. Entries keep encounter order (account order, then placement
// order). Matches come most recently active first; ties keep first-seen order.
//
// The grouping is computed when the sequence is ranged over, fresh on every
// iteration.
func ListOpenMatches(accounts []model.Account) iter.Seq[model.Match] {
	return func(yield func(model.Match) bool) {
		for _, m := range groupMatches(accounts) {
			if !yield(m) {
				return
			}
		}
	}
}

// OpenMatches is ListOpenMatches collected into a slice.
func OpenMatches(accounts []model.Account) []model.Match {
	matches := slices.Collect(ListOpenMatches(accounts))
	if matches == nil {
		matches = []model.Match{}
	}
	return matches
}

func groupMatches(accounts []model.Account) []model.Match {
	var matches []model.Match
	index := make(map[pairKey]int)

	for _, acc := range accounts {
		for _, w := range acc.OpenWagers {
			k := newPairKey(w.SideA.Label, w.SideB.Label)
			i, ok := index[k]
			if !ok {
				i = len(matches)
				index[k] = i
				matches = append(matches, model.Match{
					Key:   MatchKey(w.SideA.Label, w.SideB.Label),
					TeamA: w.SideA.Label,
					TeamB: w.SideB.Label,
				})
			}
			m := &matches[i]
			m.Entries = append(m.Entries, model.MatchEntry{
				AccountID:    acc.ID,
				AccountEmail: acc.Email,
				Balance:      acc.Balance,
				Wager:        w,
			})
			if w.PlacedAt.After(m.LastPlacedAt) {
				m.LastPlacedAt = w.PlacedAt
			}
		}
	}

	slices.SortStableFunc(matches, func(a, b model.Match) int {
		return b.LastPlacedAt.Compare(a.LastPlacedAt)
	})
	return matches
}
