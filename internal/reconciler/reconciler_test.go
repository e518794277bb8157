package reconciler

import (
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jvanvolken/pandacogs/internal/catalog"
	"github.com/jvanvolken/pandacogs/internal/ledger"
	"github.com/jvanvolken/pandacogs/internal/registry"
	"github.com/jvanvolken/pandacogs/internal/store"
)

// fakeNotifier records every outbound side effect.
type fakeNotifier struct {
	mu         sync.Mutex
	announced  []string
	offered    []string
	prompts    []string
	followUps  []string
	confirmed  []string
	abandoned  []string
	reports    []string
	nextMsgID  int
	promptFail bool
}

func (f *fakeNotifier) AnnounceNewGame(game *registry.GameRecord) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.announced = append(f.announced, game.Name)
}

func (f *fakeNotifier) OfferRole(member *registry.MemberRecord, game *registry.GameRecord) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.offered = append(f.offered, member.Name+":"+game.Name)
}

func (f *fakeNotifier) PromptAlias(memberName, alias string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.promptFail {
		return "", fmt.Errorf("channel unavailable")
	}
	f.prompts = append(f.prompts, alias)
	f.nextMsgID++
	return fmt.Sprintf("msg-%d", f.nextMsgID), nil
}

func (f *fakeNotifier) FollowUpAlias(replyToID, alias, attempted string, remaining int) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.followUps = append(f.followUps, attempted)
	f.nextMsgID++
	return fmt.Sprintf("msg-%d", f.nextMsgID), nil
}

func (f *fakeNotifier) ConfirmAlias(replyToID, alias string, game *registry.GameRecord) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.confirmed = append(f.confirmed, alias+":"+game.Name)
}

func (f *fakeNotifier) AbandonAlias(replyToID, alias string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.abandoned = append(f.abandoned, alias)
}

func (f *fakeNotifier) AdminReport(text string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reports = append(f.reports, text)
}

func (f *fakeNotifier) lastMsgID() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return fmt.Sprintf("msg-%d", f.nextMsgID)
}

// fakeCatalog serves canned results keyed by normalized query.
type fakeCatalog struct {
	results map[string][]*catalog.Entry
	err     error
}

func (f *fakeCatalog) Search(query string) ([]*catalog.Entry, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.results[query], nil
}
func (f *fakeCatalog) CoverURL(gameID int) (string, error)   { return "", nil }
func (f *fakeCatalog) FetchImage(url string) ([]byte, error) { return nil, fmt.Errorf("no image") }

type fakePersistence struct{}

func (fakePersistence) Load(c store.Collection, v any) error              { return nil }
func (fakePersistence) Register(c store.Collection, s store.Snapshotter) {}
func (fakePersistence) MarkDirty(c store.Collection, comment string)     {}

type fakeRoleStore struct {
	nextID int
	roles  map[string]string
}

func (f *fakeRoleStore) Create(name string, color int, mentionable bool) (string, error) {
	if f.roles == nil {
		f.roles = make(map[string]string)
	}
	f.nextID++
	id := fmt.Sprintf("role-%d", f.nextID)
	f.roles[name] = id
	return id, nil
}
func (f *fakeRoleStore) Delete(id string) error        { return nil }
func (f *fakeRoleStore) Edit(id string, color int) error { return nil }
func (f *fakeRoleStore) Get(name string) (string, bool) {
	id, ok := f.roles[name]
	return id, ok
}

type fixture struct {
	rec      *Reconciler
	reg      *registry.Registry
	members  *registry.MemberStore
	notifier *fakeNotifier
}

func newFixture(t *testing.T, cat *fakeCatalog) *fixture {
	t.Helper()

	logger := log.New(io.Discard)
	persist := fakePersistence{}

	members, err := registry.NewMemberStore(persist, logger)
	require.NoError(t, err)

	reg, err := registry.New(cat, &fakeRoleStore{}, members, persist, 20, logger)
	require.NoError(t, err)

	notifier := &fakeNotifier{}
	rec := New(reg, members, notifier, []string{"Spotify"}, nil, 3, logger)
	rec.SetClock(func() time.Time { return ts(t, "2026-03-10 20:30") })

	return &fixture{rec: rec, reg: reg, members: members, notifier: notifier}
}

func event(member, activity string, at time.Time) PresenceEvent {
	return PresenceEvent{Member: member, DisplayName: member, UserID: "id-" + member, Activity: activity, At: at}
}

func ts(t *testing.T, value string) time.Time {
	t.Helper()
	parsed, err := time.Parse("2006-01-02 15:04", value)
	require.NoError(t, err)
	return parsed
}

func TestNewGameAnnouncedAndOffered(t *testing.T) {
	f := newFixture(t, &fakeCatalog{results: map[string][]*catalog.Entry{
		"Hades": {{ID: 1, Name: "Hades", Summary: "x"}},
	}})

	f.rec.HandlePresence(event("alice", "Hades", ts(t, "2026-03-10 20:00")))

	assert.Equal(t, []string{"Hades"}, f.notifier.announced)
	assert.Equal(t, []string{"alice:Hades"}, f.notifier.offered)

	activity, ok := f.rec.CurrentActivity("alice")
	require.True(t, ok)
	assert.Equal(t, "Hades", activity)
}

func TestExistingGameOfferedWithoutAnnouncement(t *testing.T) {
	f := newFixture(t, &fakeCatalog{results: map[string][]*catalog.Entry{
		"Hades": {{ID: 1, Name: "Hades", Summary: "x"}},
	}})

	f.rec.HandlePresence(event("alice", "Hades", ts(t, "2026-03-10 20:00")))
	f.rec.HandlePresence(event("bob", "Hades", ts(t, "2026-03-10 20:05")))

	assert.Len(t, f.notifier.announced, 1, "only the first sighting announces")
	assert.Contains(t, f.notifier.offered, "bob:Hades")
}

func TestSessionLifecycle(t *testing.T) {
	f := newFixture(t, &fakeCatalog{results: map[string][]*catalog.Entry{
		"Hades": {{ID: 1, Name: "Hades", Summary: "x"}},
	}})

	f.rec.HandlePresence(event("alice", "Hades", ts(t, "2026-03-10 20:00")))
	f.rec.HandlePresence(event("alice", "", ts(t, "2026-03-10 21:30")))

	hist := f.reg.FindGame("Hades").History
	assert.Equal(t, 1.5, ledger.MemberHours(hist, "alice"))

	_, ok := f.rec.CurrentActivity("alice")
	assert.False(t, ok)
}

func TestDirectGameSwitchStopsPreviousSession(t *testing.T) {
	f := newFixture(t, &fakeCatalog{results: map[string][]*catalog.Entry{
		"Hades":  {{ID: 1, Name: "Hades", Summary: "x"}},
		"Portal": {{ID: 2, Name: "Portal", Summary: "y"}},
	}})

	f.rec.HandlePresence(event("alice", "Hades", ts(t, "2026-03-10 20:00")))
	f.rec.HandlePresence(event("alice", "Portal", ts(t, "2026-03-10 21:00")))
	f.rec.HandlePresence(event("alice", "", ts(t, "2026-03-10 21:30")))

	assert.Equal(t, 1.0, ledger.MemberHours(f.reg.FindGame("Hades").History, "alice"))
	assert.Equal(t, 0.5, ledger.MemberHours(f.reg.FindGame("Portal").History, "alice"))
}

func TestDuplicateEventsSuppressed(t *testing.T) {
	f := newFixture(t, &fakeCatalog{results: map[string][]*catalog.Entry{
		"Hades": {{ID: 1, Name: "Hades", Summary: "x"}},
	}})

	f.rec.HandlePresence(event("alice", "Hades", ts(t, "2026-03-10 20:00")))
	f.rec.HandlePresence(event("alice", "Hades", ts(t, "2026-03-10 20:30")))
	f.rec.HandlePresence(event("alice", "", ts(t, "2026-03-10 21:00")))

	// The duplicate must not reset the session start.
	assert.Equal(t, 1.0, ledger.MemberHours(f.reg.FindGame("Hades").History, "alice"))
	assert.Len(t, f.notifier.offered, 1)
}

func TestBotsAndBlacklistedActivitiesIgnored(t *testing.T) {
	f := newFixture(t, &fakeCatalog{results: map[string][]*catalog.Entry{
		"Hades": {{ID: 1, Name: "Hades", Summary: "x"}},
	}})

	ev := event("botuser", "Hades", ts(t, "2026-03-10 20:00"))
	ev.Bot = true
	f.rec.HandlePresence(ev)
	assert.Empty(t, f.notifier.announced)

	// Spotify closes the running session instead of opening one.
	f.rec.HandlePresence(event("alice", "Hades", ts(t, "2026-03-10 20:00")))
	f.rec.HandlePresence(event("alice", "Spotify", ts(t, "2026-03-10 21:00")))

	assert.Equal(t, 1.0, ledger.MemberHours(f.reg.FindGame("Hades").History, "alice"))
	_, ok := f.rec.CurrentActivity("alice")
	assert.False(t, ok)
}

func TestWhitelistGatesTracking(t *testing.T) {
	logger := log.New(io.Discard)
	persist := fakePersistence{}
	members, err := registry.NewMemberStore(persist, logger)
	require.NoError(t, err)
	reg, err := registry.New(&fakeCatalog{results: map[string][]*catalog.Entry{
		"Hades": {{ID: 1, Name: "Hades", Summary: "x"}},
	}}, &fakeRoleStore{}, members, persist, 20, logger)
	require.NoError(t, err)

	notifier := &fakeNotifier{}
	rec := New(reg, members, notifier, nil, []string{"alice"}, 3, logger)

	rec.HandlePresence(event("mallory", "Hades", ts(t, "2026-03-10 20:00")))
	assert.Empty(t, notifier.announced)

	rec.HandlePresence(event("alice", "Hades", ts(t, "2026-03-10 20:00")))
	assert.Equal(t, []string{"Hades"}, notifier.announced)
}

func TestOptOutSuppressesOffers(t *testing.T) {
	f := newFixture(t, &fakeCatalog{results: map[string][]*catalog.Entry{
		"Hades": {{ID: 1, Name: "Hades", Summary: "x"}},
	}})

	f.members.Ensure("alice", "Alice", "111", time.Time{}, time.Time{})
	optOut := true
	f.members.Apply("alice", registry.MemberPatch{OptOut: &optOut})

	f.rec.HandlePresence(event("alice", "Hades", ts(t, "2026-03-10 20:00")))
	f.rec.HandlePresence(event("alice", "", ts(t, "2026-03-10 21:00")))

	assert.Empty(t, f.notifier.offered)
	// Playtime still accrues; opt-out only silences the chat surface.
	assert.Equal(t, 1.0, ledger.MemberHours(f.reg.FindGame("Hades").History, "alice"))
}

func TestDeclinedGameNotReOffered(t *testing.T) {
	f := newFixture(t, &fakeCatalog{results: map[string][]*catalog.Entry{
		"Hades": {{ID: 1, Name: "Hades", Summary: "x"}},
	}})

	f.members.Ensure("alice", "Alice", "111", time.Time{}, time.Time{})
	declined := false
	f.members.Apply("alice", registry.MemberPatch{
		Games: map[string]registry.MemberGamePatch{"Hades": {Tracked: &declined}},
	})

	f.rec.HandlePresence(event("alice", "Hades", ts(t, "2026-03-10 20:00")))
	assert.Empty(t, f.notifier.offered)
}

func TestTrackedGameReportsInsteadOfOffering(t *testing.T) {
	f := newFixture(t, &fakeCatalog{results: map[string][]*catalog.Entry{
		"Hades": {{ID: 1, Name: "Hades", Summary: "x"}},
	}})

	f.members.Ensure("alice", "Alice", "111", time.Time{}, time.Time{})
	tracked := true
	f.members.Apply("alice", registry.MemberPatch{
		Games: map[string]registry.MemberGamePatch{"Hades": {Tracked: &tracked}},
	})

	f.rec.HandlePresence(event("alice", "Hades", ts(t, "2026-03-10 20:00")))
	assert.Empty(t, f.notifier.offered)
	require.Len(t, f.notifier.reports, 1)
	assert.Contains(t, f.notifier.reports[0], "Hades")
}

func TestAliasFlowResolvesOnReply(t *testing.T) {
	f := newFixture(t, &fakeCatalog{results: map[string][]*catalog.Entry{
		"Hades": {{ID: 1, Name: "Hades", Summary: "x"}},
	}})

	f.rec.HandlePresence(event("alice", "H4des Beta", ts(t, "2026-03-10 20:00")))
	require.Equal(t, []string{"H4des Beta"}, f.notifier.prompts)
	assert.Equal(t, 1, f.rec.PendingAliasCount())

	handled := f.rec.HandleReply(f.notifier.lastMsgID(), "admin", "Hades")
	require.True(t, handled)

	assert.Equal(t, []string{"H4des Beta:Hades"}, f.notifier.confirmed)
	assert.Zero(t, f.rec.PendingAliasCount())

	canonical, ok := f.reg.ResolveAlias("H4des Beta")
	require.True(t, ok)
	assert.Equal(t, "Hades", canonical)

	// The member was still playing, so resolution opens their session.
	f.rec.HandlePresence(event("alice", "", ts(t, "2026-03-10 21:00")))
	hist := f.reg.FindGame("Hades").History
	assert.Greater(t, ledger.MemberHours(hist, "alice"), 0.0)
}

func TestAliasFlowBoundedAttempts(t *testing.T) {
	f := newFixture(t, &fakeCatalog{results: map[string][]*catalog.Entry{}})

	f.rec.HandlePresence(event("alice", "Mystery Game", ts(t, "2026-03-10 20:00")))
	require.Equal(t, 1, f.rec.PendingAliasCount())

	// maxAttempts is 3: two failed replies continue the flow, the third ends it.
	for i := 0; i < 2; i++ {
		handled := f.rec.HandleReply(f.notifier.lastMsgID(), "admin", fmt.Sprintf("wrong-%d", i))
		require.True(t, handled)
		assert.Equal(t, 1, f.rec.PendingAliasCount())
	}

	handled := f.rec.HandleReply(f.notifier.lastMsgID(), "admin", "wrong-final")
	require.True(t, handled)
	assert.Equal(t, []string{"Mystery Game"}, f.notifier.abandoned)
	assert.Zero(t, f.rec.PendingAliasCount())
}

func TestHandleReplyIgnoresUnrelatedMessages(t *testing.T) {
	f := newFixture(t, &fakeCatalog{})
	assert.False(t, f.rec.HandleReply("msg-999", "admin", "Hades"))
}

func TestManualAliasFlow(t *testing.T) {
	f := newFixture(t, &fakeCatalog{results: map[string][]*catalog.Entry{
		"Hades": {{ID: 1, Name: "Hades", Summary: "x"}},
	}})

	f.rec.BeginManualAliasFlow("H4des")
	require.Equal(t, 1, f.rec.PendingAliasCount())

	require.True(t, f.rec.HandleReply(f.notifier.lastMsgID(), "admin", "Hades"))
	canonical, ok := f.reg.ResolveAlias("H4des")
	require.True(t, ok)
	assert.Equal(t, "Hades", canonical)
}

func TestAuthFailureReportedToAdmins(t *testing.T) {
	f := newFixture(t, &fakeCatalog{err: fmt.Errorf("received status: 401 Unauthorized")})

	f.rec.HandlePresence(event("alice", "Hades", ts(t, "2026-03-10 20:00")))

	require.Len(t, f.notifier.reports, 1)
	assert.Contains(t, f.notifier.reports[0], "authorization")
	assert.Zero(t, f.rec.PendingAliasCount(), "no alias flow opens on auth failure")
}

func TestPromptFailureDoesNotLeakFlows(t *testing.T) {
	f := newFixture(t, &fakeCatalog{})
	f.notifier.promptFail = true

	f.rec.HandlePresence(event("alice", "Mystery Game", ts(t, "2026-03-10 20:00")))
	assert.Zero(t, f.rec.PendingAliasCount())
}
