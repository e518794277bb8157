package ledger

import (
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLedger(t *testing.T) (*Ledger, History, *[]string) {
	t.Helper()

	hist := make(History)
	var comments []string

	l := New(
		func(name string) (string, History, bool) {
			if name == "unknown" {
				return "", nil, false
			}
			return name, hist, true
		},
		func(comment string) { comments = append(comments, comment) },
		log.New(io.Discard),
	)
	return l, hist, &comments
}

func at(t *testing.T, value string) time.Time {
	t.Helper()
	ts, err := time.Parse("2006-01-02 15:04", value)
	require.NoError(t, err)
	return ts
}

func TestStartStopSameDay(t *testing.T) {
	l, hist, comments := newTestLedger(t)

	l.StartSession("Overwatch", "alice", at(t, "2026-03-10 20:00"))
	l.StopSession("Overwatch", "alice", at(t, "2026-03-10 21:30"))

	entry := hist["2026-03-10"]["alice"]
	require.NotNil(t, entry)
	assert.Equal(t, 1.5, entry.PlaytimeHours)
	assert.Nil(t, entry.LastPlayed, "stop must clear the open-session marker")
	assert.Len(t, *comments, 2)
}

func TestStopSplitsAtMidnight(t *testing.T) {
	l, hist, _ := newTestLedger(t)

	l.StartSession("Overwatch", "alice", at(t, "2026-03-10 23:00"))
	l.StopSession("Overwatch", "alice", at(t, "2026-03-11 01:00"))

	yesterday := hist["2026-03-10"]["alice"]
	require.NotNil(t, yesterday)
	assert.Equal(t, 1.0, yesterday.PlaytimeHours)
	assert.Nil(t, yesterday.LastPlayed)

	today := hist["2026-03-11"]["alice"]
	require.NotNil(t, today)
	assert.Equal(t, 1.0, today.PlaytimeHours)
}

func TestStopDiscardsSessionsOlderThanTwoDays(t *testing.T) {
	l, hist, _ := newTestLedger(t)

	l.StartSession("Overwatch", "alice", at(t, "2026-03-01 20:00"))
	l.StopSession("Overwatch", "alice", at(t, "2026-03-10 21:00"))

	entry := hist["2026-03-01"]["alice"]
	require.NotNil(t, entry)
	assert.Zero(t, entry.PlaytimeHours, "ambiguous spans are discarded, not guessed")
	assert.Nil(t, entry.LastPlayed)
}

func TestStopWithoutOpenSessionIsNoOp(t *testing.T) {
	l, hist, comments := newTestLedger(t)

	l.StopSession("Overwatch", "alice", at(t, "2026-03-10 21:00"))

	assert.Empty(t, hist)
	assert.Empty(t, *comments)
}

func TestUnknownGameIsIgnored(t *testing.T) {
	l, hist, comments := newTestLedger(t)

	l.StartSession("unknown", "alice", at(t, "2026-03-10 20:00"))
	l.StopSession("unknown", "alice", at(t, "2026-03-10 21:00"))

	assert.Empty(t, hist)
	assert.Empty(t, *comments)
}

func TestRestartOverwritesOpenSession(t *testing.T) {
	l, hist, _ := newTestLedger(t)

	l.StartSession("Overwatch", "alice", at(t, "2026-03-10 20:00"))
	l.StartSession("Overwatch", "alice", at(t, "2026-03-10 20:45"))
	l.StopSession("Overwatch", "alice", at(t, "2026-03-10 21:45"))

	entry := hist["2026-03-10"]["alice"]
	require.NotNil(t, entry)
	assert.Equal(t, 1.0, entry.PlaytimeHours)
}

// Presence handlers arrive on separate gateway goroutines, so session updates
// for different members can land on the same history concurrently.
func TestConcurrentSessionUpdates(t *testing.T) {
	l, hist, _ := newTestLedger(t)

	const members = 8
	const rounds = 200
	day := at(t, "2026-03-10 08:00")

	var wg sync.WaitGroup
	for m := 0; m < members; m++ {
		wg.Add(1)
		go func(member string) {
			defer wg.Done()
			for i := 0; i < rounds; i++ {
				l.StartSession("Overwatch", member, day)
				l.StopSession("Overwatch", member, day.Add(30*time.Minute))
			}
		}(fmt.Sprintf("member-%d", m))
	}
	wg.Wait()

	daylog := hist["2026-03-10"]
	require.Len(t, daylog, members)
	for m := 0; m < members; m++ {
		entry := daylog[fmt.Sprintf("member-%d", m)]
		require.NotNil(t, entry)
		assert.Equal(t, float64(rounds)*0.5, entry.PlaytimeHours)
		assert.Nil(t, entry.LastPlayed)
	}
}

func TestAccumulateRoundsPerAddition(t *testing.T) {
	entry := &Entry{}

	// Three 20-minute sessions: each rounds to 0.33 before summing, so the
	// stored total is 0.99, not 1.0.
	for i := 0; i < 3; i++ {
		accumulate(entry, 20.0/60.0)
	}
	assert.Equal(t, 0.99, entry.PlaytimeHours)
}

func TestAccumulateClampsNegative(t *testing.T) {
	entry := &Entry{PlaytimeHours: 1.0}
	accumulate(entry, -5)
	assert.Equal(t, 1.0, entry.PlaytimeHours)
}

func TestTotalPlaytime(t *testing.T) {
	l, _, _ := newTestLedger(t)
	l.SetClock(func() time.Time { return at(t, "2026-03-15 12:00") })

	games := map[string]History{
		"Overwatch": {
			"2026-03-14": {"alice": {PlaytimeHours: 2.0}, "bob": {PlaytimeHours: 1.0}},
			"2026-02-01": {"alice": {PlaytimeHours: 10.0}},
		},
		"Hades": {
			"2026-03-13": {"alice": {PlaytimeHours: 4.0}},
		},
		"Portal": {
			"2026-03-14": {}, // day with no entries contributes nothing
		},
	}

	// Trailing week: the February session falls outside the window.
	top := l.TotalPlaytime(games, 7, "", 0)
	require.Len(t, top, 2)
	assert.Equal(t, GameHours{Game: "Hades", Hours: 4.0}, top[0])
	assert.Equal(t, GameHours{Game: "Overwatch", Hours: 3.0}, top[1])

	// All history, single member.
	top = l.TotalPlaytime(games, 0, "alice", 0)
	require.Len(t, top, 2)
	assert.Equal(t, GameHours{Game: "Overwatch", Hours: 12.0}, top[0])
	assert.Equal(t, GameHours{Game: "Hades", Hours: 4.0}, top[1])

	// topN truncation.
	top = l.TotalPlaytime(games, 0, "", 1)
	require.Len(t, top, 1)
	assert.Equal(t, "Overwatch", top[0].Game)
}

func TestTotalPlaytimeTieBreaksByName(t *testing.T) {
	l, _, _ := newTestLedger(t)

	games := map[string]History{
		"Beta":  {"2026-03-14": {"alice": {PlaytimeHours: 2.0}}},
		"Alpha": {"2026-03-14": {"bob": {PlaytimeHours: 2.0}}},
	}

	top := l.TotalPlaytime(games, 0, "", 0)
	require.Len(t, top, 2)
	assert.Equal(t, "Alpha", top[0].Game)
	assert.Equal(t, "Beta", top[1].Game)
}

func TestHistoryHelpers(t *testing.T) {
	open := at(t, "2026-03-14 22:00")
	hist := History{
		"2026-03-10": {"alice": {PlaytimeHours: 1.5}, "bob": {PlaytimeHours: 0.5}},
		"2026-03-14": {"alice": {LastPlayed: &open}},
	}

	assert.Equal(t, 1.5, MemberHours(hist, "alice"))
	assert.Equal(t, 2.0, TotalHours(hist))

	last, ok := LastPlayedAt(hist)
	require.True(t, ok)
	assert.Equal(t, open, last)

	_, ok = LastPlayedAt(History{})
	assert.False(t, ok)
}
