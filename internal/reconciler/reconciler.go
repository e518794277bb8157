// Package reconciler is the top-level state machine driven by presence
// events: it decides session boundaries, dispatches name resolution, and
// hands user-facing side effects to the Notifier collaborator.
package reconciler

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/jvanvolken/pandacogs/internal/registry"
)

// Notifier is the outbound-chat collaborator. Implementations own message
// formatting and interactive components; failures are theirs to log.
type Notifier interface {
	// AnnounceNewGame posts a public announcement with a role-claim UI.
	AnnounceNewGame(game *registry.GameRecord)
	// OfferRole DMs a member an accept/decline/opt-out prompt for a game role.
	OfferRole(member *registry.MemberRecord, game *registry.GameRecord)
	// PromptAlias asks the admin channel to map an unknown activity name,
	// returning the prompt message id replies will reference.
	PromptAlias(memberName, alias string) (string, error)
	// FollowUpAlias continues a failed mapping attempt, returning the new
	// message id to watch.
	FollowUpAlias(replyToID, alias, attempted string, remaining int) (string, error)
	// ConfirmAlias acknowledges a successful alias insertion.
	ConfirmAlias(replyToID, alias string, game *registry.GameRecord)
	// AbandonAlias acknowledges an exhausted alias flow.
	AbandonAlias(replyToID, alias string)
	// AdminReport sends operational reports to the admin channel.
	AdminReport(text string)
}

// PresenceEvent is one observed presence change for one member.
type PresenceEvent struct {
	Member      string
	DisplayName string
	UserID      string
	Activity    string // empty means no current game activity
	Bot         bool
	At          time.Time
}

// aliasFlow is one in-flight alias-collection saga, keyed externally by the
// message id an admin must reply to. Each saga only ever blocks its own
// replies; other members' events keep flowing.
type aliasFlow struct {
	alias    string
	member   string // presence-triggered flows remember who was playing
	attempts int
}

// aliasFlowTTL expires abandoned prompts, mirroring the 12 hour view timeout
// on the interactive components.
const aliasFlowTTL = 12 * time.Hour

// Reconciler tracks per-member playing state.
type Reconciler struct {
	registry *registry.Registry
	members  *registry.MemberStore
	notifier Notifier

	blacklist   map[string]bool
	whitelist   map[string]bool
	maxAttempts int

	mu      sync.Mutex
	current map[string]string     // member -> raw activity name
	pending map[string]*aliasFlow // prompt message id -> flow

	logger *log.Logger
	now    func() time.Time
}

// New creates a reconciler. whitelist may be empty to track everyone.
func New(reg *registry.Registry, members *registry.MemberStore, notifier Notifier, blacklist, whitelist []string, maxAliasAttempts int, logger *log.Logger) *Reconciler {
	r := &Reconciler{
		registry:    reg,
		members:     members,
		notifier:    notifier,
		blacklist:   make(map[string]bool, len(blacklist)),
		whitelist:   make(map[string]bool, len(whitelist)),
		maxAttempts: maxAliasAttempts,
		current:     make(map[string]string),
		pending:     make(map[string]*aliasFlow),
		logger:      logger,
		now:         time.Now,
	}
	for _, b := range blacklist {
		r.blacklist[strings.ToLower(b)] = true
	}
	for _, w := range whitelist {
		r.whitelist[w] = true
	}
	return r
}

// SetClock overrides the time source. Tests only.
func (r *Reconciler) SetClock(now func() time.Time) { r.now = now }

// HandlePresence processes one presence change.
func (r *Reconciler) HandlePresence(ev PresenceEvent) {
	if ev.Bot {
		return
	}
	if len(r.whitelist) > 0 && !r.whitelist[ev.Member] {
		return
	}
	if ev.At.IsZero() {
		ev.At = r.now()
	}

	r.mu.Lock()
	prev := r.current[ev.Member]
	r.mu.Unlock()

	// Activity cleared: close any open session and go idle.
	if ev.Activity == "" {
		if prev != "" {
			r.registry.Ledger().StopSession(prev, ev.Member, ev.At)
			r.setCurrent(ev.Member, "")
		}
		return
	}

	// Duplicate same-activity events are suppressed upstream of the ledger.
	if prev == ev.Activity {
		return
	}

	member := r.members.Ensure(ev.Member, ev.DisplayName, ev.UserID, time.Time{}, time.Time{})

	if r.blacklist[strings.ToLower(ev.Activity)] {
		if prev != "" {
			r.registry.Ledger().StopSession(prev, ev.Member, ev.At)
		}
		r.setCurrent(ev.Member, "")
		return
	}

	// Direct game switch: the previous session ends where the new one begins.
	if prev != "" {
		r.registry.Ledger().StopSession(prev, ev.Member, ev.At)
	}
	r.setCurrent(ev.Member, ev.Activity)

	result, err := r.registry.AddGames([]string{ev.Activity})
	if err != nil {
		// Catalog auth failures are fatal for the batch: surface, don't retry.
		r.logger.Errorf("presence resolution aborted for %s: %v", ev.Member, err)
		r.notifier.AdminReport(fmt.Sprintf("Catalog authorization failed while resolving `%s` — name resolution is down until the credentials are rotated!", ev.Activity))
		return
	}

	var game *registry.GameRecord
	switch {
	case len(result.Created) > 0:
		game = result.Created[0]
		r.notifier.AnnounceNewGame(game)
	case len(result.Existing) > 0:
		game = result.Existing[0]
	default:
		// Unknown title: collect an alias from the admins, bounded attempts.
		r.beginAliasFlow(ev.Member, ev.Activity)
		return
	}

	r.registry.Ledger().StartSession(game.Name, ev.Member, ev.At)

	if member.OptOut {
		return
	}
	if member.Declined(game.Name) {
		// The member said no to this game once already.
		return
	}
	if member.Tracking(game.Name) {
		r.notifier.AdminReport(fmt.Sprintf("`%s` started playing `%s`!", displayOrName(ev), game.Name))
		return
	}

	r.notifier.OfferRole(member, game)
}

// beginAliasFlow opens an alias-collection saga for an unknown activity name.
// The saga is keyed by the prompt message id so it never blocks other events.
func (r *Reconciler) beginAliasFlow(memberName, alias string) {
	msgID, err := r.notifier.PromptAlias(memberName, alias)
	if err != nil {
		r.logger.Errorf("failed to open alias prompt for %q: %v", alias, err)
		return
	}

	flow := &aliasFlow{alias: alias, member: memberName}
	r.trackFlow(msgID, flow)
}

// BeginManualAliasFlow opens a saga from the set-alias command rather than a
// presence event.
func (r *Reconciler) BeginManualAliasFlow(alias string) {
	r.beginAliasFlow("", alias)
}

func (r *Reconciler) trackFlow(msgID string, flow *aliasFlow) {
	r.mu.Lock()
	r.pending[msgID] = flow
	r.mu.Unlock()

	time.AfterFunc(aliasFlowTTL, func() {
		r.mu.Lock()
		if current, ok := r.pending[msgID]; ok && current == flow {
			delete(r.pending, msgID)
			r.logger.Warnf("alias flow for %q expired without a mapping", flow.alias)
		}
		r.mu.Unlock()
	})
}

// HandleReply feeds a chat reply into a pending alias flow. Returns false
// when the referenced message isn't one of ours.
func (r *Reconciler) HandleReply(referencedID, author, content string) bool {
	r.mu.Lock()
	flow, ok := r.pending[referencedID]
	if ok {
		delete(r.pending, referencedID)
	}
	r.mu.Unlock()
	if !ok {
		return false
	}

	content = strings.TrimSpace(content)
	result, err := r.registry.AddGames([]string{content})
	if err != nil {
		r.logger.Errorf("alias resolution aborted for %q: %v", flow.alias, err)
		r.notifier.AdminReport(fmt.Sprintf("Catalog authorization failed while resolving `%s` — try `set_alias` again after rotating the credentials.", content))
		return true
	}

	var game *registry.GameRecord
	switch {
	case len(result.Created) > 0:
		game = result.Created[0]
		r.notifier.AnnounceNewGame(game)
	case len(result.Existing) > 0:
		game = result.Existing[0]
	}

	if game == nil {
		flow.attempts++
		remaining := r.maxAttempts - flow.attempts
		if remaining > 0 {
			nextID, err := r.notifier.FollowUpAlias(referencedID, flow.alias, content, remaining)
			if err != nil {
				r.logger.Errorf("failed to continue alias flow for %q: %v", flow.alias, err)
				return true
			}
			r.trackFlow(nextID, flow)
			return true
		}
		r.notifier.AbandonAlias(referencedID, flow.alias)
		return true
	}

	if err := r.registry.SetAlias(flow.alias, game.Name); err != nil {
		r.logger.Errorf("failed to store alias %q: %v", flow.alias, err)
		return true
	}
	r.notifier.ConfirmAlias(referencedID, flow.alias, game)

	// If the triggering member is still playing under the alias, their
	// session starts now that the name resolves.
	if flow.member != "" {
		r.mu.Lock()
		stillPlaying := r.current[flow.member] == flow.alias
		r.mu.Unlock()
		if stillPlaying {
			r.registry.Ledger().StartSession(game.Name, flow.member, r.now())
		}
	}
	return true
}

// PendingAliasCount reports how many alias flows are waiting on replies.
func (r *Reconciler) PendingAliasCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.pending)
}

// CurrentActivity returns the raw activity the reconciler believes a member
// is playing, if any.
func (r *Reconciler) CurrentActivity(member string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.current[member]
	return a, ok && a != ""
}

func (r *Reconciler) setCurrent(member, activity string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if activity == "" {
		delete(r.current, member)
		return
	}
	r.current[member] = activity
}

func displayOrName(ev PresenceEvent) string {
	if ev.DisplayName != "" {
		return ev.DisplayName
	}
	return ev.Member
}
