package roles

import (
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRoleStore is an in-memory RoleStore.
type fakeRoleStore struct {
	nextID  int
	roles   map[string]string // name -> id
	colors  map[string]int    // id -> color
	deleted []string
}

func newFakeRoleStore() *fakeRoleStore {
	return &fakeRoleStore{
		roles:  make(map[string]string),
		colors: make(map[string]int),
	}
}

func (f *fakeRoleStore) Create(name string, color int, mentionable bool) (string, error) {
	f.nextID++
	id := fmt.Sprintf("role-%d", f.nextID)
	f.roles[name] = id
	f.colors[id] = color
	return id, nil
}

func (f *fakeRoleStore) Delete(id string) error {
	for name, rid := range f.roles {
		if rid == id {
			delete(f.roles, name)
		}
	}
	f.deleted = append(f.deleted, id)
	return nil
}

func (f *fakeRoleStore) Edit(id string, color int) error {
	f.colors[id] = color
	return nil
}

func (f *fakeRoleStore) Get(name string) (string, bool) {
	id, ok := f.roles[name]
	return id, ok
}

// fakeSource is an in-memory GameSource.
type fakeSource struct {
	games map[string]GameStats
}

func newFakeSource() *fakeSource {
	return &fakeSource{games: make(map[string]GameStats)}
}

func (f *fakeSource) add(store *fakeRoleStore, stats GameStats) {
	id, _ := store.Create(stats.Name, 0, true)
	stats.RoleID = id
	f.games[stats.Name] = stats
}

func (f *fakeSource) ActiveRoleGames() []GameStats {
	out := make([]GameStats, 0, len(f.games))
	for _, g := range f.games {
		out = append(out, g)
	}
	return out
}

func (f *fakeSource) ClearRole(name string) {
	delete(f.games, name)
}

func testClock(t *testing.T) func() time.Time {
	t.Helper()
	now, err := time.Parse(time.RFC3339, "2026-03-15T12:00:00Z")
	require.NoError(t, err)
	return func() time.Time { return now }
}

func TestGetOrCreateRoleReusesExisting(t *testing.T) {
	store := newFakeRoleStore()
	source := newFakeSource()
	m := NewManager(store, source, 5, log.New(io.Discard))

	existing, _ := store.Create("Hades", 0, true)

	id, err := m.GetOrCreateRole("Hades", 0xFF0000, true)
	require.NoError(t, err)
	assert.Equal(t, existing, id)
	assert.Equal(t, 0xFF0000, store.colors[id], "existing role picks up the new color")
	assert.Empty(t, store.deleted)
}

func TestGetOrCreateRolePureLookup(t *testing.T) {
	store := newFakeRoleStore()
	m := NewManager(store, newFakeSource(), 5, log.New(io.Discard))

	id, err := m.GetOrCreateRole("Hades", 0, false)
	require.NoError(t, err)
	assert.Empty(t, id)
	assert.Empty(t, store.roles, "lookup mode never creates")
}

func TestCreateEvictsLeastEngaged(t *testing.T) {
	store := newFakeRoleStore()
	source := newFakeSource()
	m := NewManager(store, source, 2, log.New(io.Discard))
	now := testClock(t)
	m.SetClock(now)

	// Busy: played yesterday, lots of trackers and hours.
	source.add(store, GameStats{
		Name:       "Overwatch",
		AddedAt:    now().AddDate(0, 0, -30),
		LastPlayed: now().AddDate(0, 0, -1),
		Trackers:   5,
		Hours:      40,
	})
	// Quiet: untouched for a month.
	source.add(store, GameStats{
		Name:       "Forgotten Realm",
		AddedAt:    now().AddDate(0, 0, -60),
		LastPlayed: now().AddDate(0, 0, -30),
		Trackers:   1,
		Hours:      2,
	})

	quietID := store.roles["Forgotten Realm"]

	id, err := m.GetOrCreateRole("Hades", 0, true)
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	assert.Contains(t, store.deleted, quietID)
	assert.Contains(t, store.roles, "Overwatch")
	assert.NotContains(t, source.games, "Forgotten Realm")
	assert.Len(t, source.games, 1, "eviction brings the count under the cap")
}

func TestGracePeriodProtectsFreshGames(t *testing.T) {
	store := newFakeRoleStore()
	source := newFakeSource()
	m := NewManager(store, source, 1, log.New(io.Discard))
	now := testClock(t)
	m.SetClock(now)

	// Added an hour ago: protected even though it has zero engagement.
	source.add(store, GameStats{
		Name:    "Brand New",
		AddedAt: now().Add(-time.Hour),
	})

	_, err := m.GetOrCreateRole("Hades", 0, true)
	require.ErrorIs(t, err, ErrRoleCapacity)
	assert.Contains(t, store.roles, "Brand New")
}

func TestNeverPlayedUsesAgeAsDenominator(t *testing.T) {
	source := newFakeSource()
	store := newFakeRoleStore()
	m := NewManager(store, source, 2, log.New(io.Discard))
	now := testClock(t)
	m.SetClock(now)

	// Never played, 50 days old, one tracker: score 1/50.
	source.add(store, GameStats{
		Name:     "Shelfware",
		AddedAt:  now().AddDate(0, 0, -50),
		Trackers: 1,
	})
	// Played recently: score 3/1 after clamping.
	source.add(store, GameStats{
		Name:       "Hot Title",
		AddedAt:    now().AddDate(0, 0, -50),
		LastPlayed: now().Add(-2 * time.Hour),
		Trackers:   3,
	})

	candidate, err := m.SelectEvictionCandidate(map[string]bool{})
	require.NoError(t, err)
	assert.Equal(t, "Shelfware", candidate)
}

func TestSelectEvictionCandidateHonorsExclude(t *testing.T) {
	source := newFakeSource()
	store := newFakeRoleStore()
	m := NewManager(store, source, 2, log.New(io.Discard))
	now := testClock(t)
	m.SetClock(now)

	source.add(store, GameStats{Name: "Only", AddedAt: now().AddDate(0, 0, -10)})

	candidate, err := m.SelectEvictionCandidate(map[string]bool{})
	require.NoError(t, err)
	assert.Equal(t, "Only", candidate)

	_, err = m.SelectEvictionCandidate(map[string]bool{"Only": true})
	require.ErrorIs(t, err, ErrRoleCapacity)
}
