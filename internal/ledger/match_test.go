package ledger

import (
	"errors"
	"testing"
	"time"

	"github.com/atmx/wager-ledger/internal/model"
)

func wager(a, b string, at time.Time) model.Wager {
	return model.Wager{
		ID:       a + "/" + b + "@" + at.Format(time.RFC3339),
		SideA:    model.Side{Label: a, PayoutOdds: 2},
		SideB:    model.Side{Label: b},
		Pot:      100,
		Stake:    50,
		PlacedAt: at,
	}
}

func TestParseMatchKey(t *testing.T) {
	a, b, err := ParseMatchKey("India-vs-Australia")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a != "India" || b != "Australia" {
		t.Errorf("got %q/%q", a, b)
	}

	a, b, err = ParseMatchKey("Real-Madrid-vs-Atletico-vs-B")
	if err != nil || a != "Real-Madrid" || b != "Atletico-vs-B" {
		t.Errorf("should split at the first separator, got %q/%q/%v", a, b, err)
	}

	for _, bad := range []string{"", "India", "-vs-Australia", "India-vs-", "India vs Australia"} {
		if _, _, err := ParseMatchKey(bad); !errors.Is(err, ErrInvalidArgument) {
			t.Errorf("%q: expected ErrInvalidArgument, got %v", bad, err)
		}
	}
}

func TestListOpenMatches_GroupsUnorderedPair(t *testing.T) {
	accounts := []model.Account{
		{ID: "a1", OpenWagers: []model.Wager{wager("X", "Y", t0)}},
		{ID: "a2", OpenWagers: []model.Wager{wager("Y", "X", t0.Add(time.Minute))}},
	}

	matches := OpenMatches(accounts)
	if len(matches) != 1 {
		t.Fatalf("expected 1 match, got %d", len(matches))
	}
	m := matches[0]
	if len(m.Entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(m.Entries))
	}
	if m.Key != "X-vs-Y" {
		t.Errorf("key should follow the first wager encountered, got %s", m.Key)
	}
	if m.Entries[0].AccountID != "a1" || m.Entries[1].AccountID != "a2" {
		t.Error("entries should keep account encounter order")
	}
	if !m.LastPlacedAt.Equal(t0.Add(time.Minute)) {
		t.Errorf("last placed = %v", m.LastPlacedAt)
	}
}

func TestListOpenMatches_MostRecentFirst(t *testing.T) {
	accounts := []model.Account{
		{ID: "a1", OpenWagers: []model.Wager{
			wager("Old", "Match", t0),
			wager("New", "Match", t0.Add(2*time.Hour)),
		}},
		{ID: "a2", OpenWagers: []model.Wager{
			wager("Mid", "Match", t0.Add(time.Hour)),
			wager("Match", "Old", t0.Add(3*time.Hour)), // revives Old-vs-Match
		}},
	}

	matches := OpenMatches(accounts)
	var keys []string
	for _, m := range matches {
		keys = append(keys, m.Key)
	}
	want := []string{"Old-vs-Match", "New-vs-Match", "Mid-vs-Match"}
	if len(keys) != len(want) {
		t.Fatalf("got %v, want %v", keys, want)
	}
	for i := range want {
		if keys[i] != want[i] {
			t.Errorf("position %d: got %s, want %s", i, keys[i], want[i])
		}
	}
}

func TestListOpenMatches_TiesKeepEncounterOrder(t *testing.T) {
	accounts := []model.Account{
		{ID: "a1", OpenWagers: []model.Wager{wager("A", "B", t0), wager("C", "D", t0)}},
	}
	matches := OpenMatches(accounts)
	if len(matches) != 2 || matches[0].Key != "A-vs-B" || matches[1].Key != "C-vs-D" {
		t.Errorf("unexpected order: %+v", matches)
	}
}

func TestListOpenMatches_EmptyAndEarlyStop(t *testing.T) {
	if got := OpenMatches(nil); got == nil || len(got) != 0 {
		t.Errorf("expected empty non-nil slice, got %#v", got)
	}

	accounts := []model.Account{
		{ID: "a1", OpenWagers: []model.Wager{wager("A", "B", t0), wager("C", "D", t0)}},
	}
	n := 0
	for range ListOpenMatches(accounts) {
		n++
		break
	}
	if n != 1 {
		t.Errorf("iteration should stop after break, got %d", n)
	}
}
