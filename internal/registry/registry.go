// Package registry owns the canonical game map and alias table, and
// orchestrates name resolution, role lifecycle, and playtime tracking to
// answer AddGames.
package registry

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/jvanvolken/pandacogs/internal/catalog"
	"github.com/jvanvolken/pandacogs/internal/ledger"
	"github.com/jvanvolken/pandacogs/internal/resolver"
	"github.com/jvanvolken/pandacogs/internal/roles"
	"github.com/jvanvolken/pandacogs/internal/store"
)

// Catalog is the external game-database surface the registry consumes.
type Catalog interface {
	Search(query string) ([]*catalog.Entry, error)
	CoverURL(gameID int) (string, error)
	FetchImage(url string) ([]byte, error)
}

// Persistence is the durable-state collaborator surface.
type Persistence interface {
	Load(c store.Collection, v any) error
	Register(c store.Collection, snap store.Snapshotter)
	MarkDirty(c store.Collection, comment string)
}

// Registry is the single owner of game and alias state. Constructed once at
// startup and passed by reference; no package-level mutable state.
type Registry struct {
	mu      sync.RWMutex
	games   map[string]*GameRecord
	aliases map[string]string

	catalog Catalog
	members *MemberStore
	roleMgr *roles.Manager
	ledger  *ledger.Ledger
	persist Persistence
	logger  *log.Logger
	report  func(msg string)
	now     func() time.Time
}

// New loads game and alias state and wires the role manager and ledger.
func New(cat Catalog, roleStore roles.RoleStore, members *MemberStore, persist Persistence, maxRoles int, logger *log.Logger) (*Registry, error) {
	r := &Registry{
		games:   make(map[string]*GameRecord),
		aliases: make(map[string]string),
		catalog: cat,
		members: members,
		persist: persist,
		logger:  logger,
		report:  func(string) {},
		now:     time.Now,
	}

	if err := persist.Load(store.Games, &r.games); err != nil {
		return nil, err
	}
	if err := persist.Load(store.Aliases, &r.aliases); err != nil {
		return nil, err
	}
	for name, rec := range r.games {
		if rec.Name == "" {
			rec.Name = name
		}
		if rec.History == nil {
			rec.History = make(ledger.History)
		}
	}

	persist.Register(store.Games, r.snapshotGames)
	persist.Register(store.Aliases, r.snapshotAliases)

	r.roleMgr = roles.NewManager(roleStore, r, maxRoles, logger)
	r.ledger = ledger.New(r.lookupHistory, func(comment string) {
		persist.MarkDirty(store.Games, comment)
	}, logger)

	return r, nil
}

// SetReporter wires the admin-facing report sink (dangling aliases, capacity
// failures). Defaults to a no-op.
func (r *Registry) SetReporter(report func(msg string)) {
	if report != nil {
		r.report = report
	}
}

// SetClock overrides the time source. Tests only.
func (r *Registry) SetClock(now func() time.Time) { r.now = now }

// Ledger exposes the playtime ledger.
func (r *Registry) Ledger() *ledger.Ledger { return r.ledger }

// RoleManager exposes the role lifecycle manager.
func (r *Registry) RoleManager() *roles.Manager { return r.roleMgr }

// AddGames resolves each input name to a canonical game record, creating
// roles and records as needed. The returned error is non-nil only for
// catalog authorization failures, which abort the rest of the batch.
func (r *Registry) AddGames(names []string) (*AddResult, error) {
	result := &AddResult{}

	for _, raw := range names {
		name := Normalize(raw)
		if name == "" {
			continue
		}

		// Exact or case-insensitive hit against known games.
		if rec := r.FindGame(name); rec != nil {
			r.backfillRole(rec)
			result.Existing = append(result.Existing, rec)
			continue
		}

		// Alias hit; a dangling alias is reported, never auto-repaired.
		if canonical, ok := r.ResolveAlias(name); ok {
			if rec := r.FindGame(canonical); rec != nil {
				r.backfillRole(rec)
				result.Existing = append(result.Existing, rec)
			} else {
				r.logger.Errorf("alias %q points at missing game %q", name, canonical)
				r.report(fmt.Sprintf("I found an alias for `%s`, but the game associated with it (`%s`) isn't in the list! Not sure how that happened!", name, canonical))
				result.NotFound = append(result.NotFound, placeholderRecord(name, r.now()))
			}
			continue
		}

		entries, err := r.catalog.Search(name)
		if err != nil {
			if catalog.IsAuthFailure(err) {
				return result, fmt.Errorf("catalog authorization failure while resolving %q: %w", name, err)
			}
			r.logger.Warnf("catalog search failed for %q: %v", name, err)
			result.NotFound = append(result.NotFound, placeholderRecord(name, r.now()))
			continue
		}

		best := resolver.SelectBest(name, entries)
		if best == nil {
			result.NotFound = append(result.NotFound, placeholderRecord(name, r.now()))
			continue
		}

		// The winning catalog title may already be tracked under its
		// canonical name even though the raw query wasn't.
		if rec := r.FindGame(best.Name); rec != nil {
			r.backfillRole(rec)
			result.Existing = append(result.Existing, rec)
			continue
		}

		rec := r.createGame(best)
		result.Created = append(result.Created, rec)
	}

	return result, nil
}

// createGame builds a new record from a winning catalog entry: cover, color,
// role, persistence.
func (r *Registry) createGame(entry *catalog.Entry) *GameRecord {
	rec := newGameRecord(entry, r.now())

	coverURL, err := r.catalog.CoverURL(entry.ID)
	if err != nil {
		r.logger.Warnf("cover lookup failed for %s: %v", rec.Name, err)
	}
	rec.CoverURL = coverURL

	color := 0
	if coverURL != "" {
		if imgBytes, err := r.catalog.FetchImage(coverURL); err != nil {
			r.logger.Warnf("cover download failed for %s: %v", rec.Name, err)
		} else if c, err := roles.DominantColor(imgBytes); err != nil {
			r.logger.Warnf("color derivation failed for %s: %v", rec.Name, err)
		} else {
			color = c
		}
	}

	roleID, err := r.roleMgr.GetOrCreateRole(rec.Name, color, true)
	if err != nil {
		// Role creation halts here; the game is still tracked and a later
		// backfill can attach a role once capacity frees up.
		r.logger.Errorf("role creation failed for %s: %v", rec.Name, err)
		r.report(fmt.Sprintf("I couldn't create a role for `%s`: %v", rec.Name, err))
	}
	rec.RoleID = roleID

	r.mu.Lock()
	r.games[rec.Name] = rec
	r.mu.Unlock()
	r.persist.MarkDirty(store.Games, "added new game and role to server, "+rec.Name)

	return rec
}

// backfillRole re-attaches a role id to a record whose role went missing,
// reusing an existing same-named Discord role when one survives. Pure lookup;
// never creates.
func (r *Registry) backfillRole(rec *GameRecord) {
	if rec.HasRole() {
		return
	}
	roleID, err := r.roleMgr.GetOrCreateRole(rec.Name, 0, false)
	if err != nil || roleID == "" {
		return
	}
	rec.RoleID = roleID
	r.persist.MarkDirty(store.Games, "added missing role entry for the "+rec.Name+" game")
}

// ClaimRole returns the game's role id, recreating the role (subject to the
// capacity cap) when a previous eviction removed it.
func (r *Registry) ClaimRole(name string) (string, error) {
	rec := r.FindGame(name)
	if rec == nil {
		return "", fmt.Errorf("game %q is not tracked", name)
	}
	if rec.HasRole() {
		return rec.RoleID, nil
	}

	roleID, err := r.roleMgr.GetOrCreateRole(rec.Name, 0, true)
	if err != nil {
		return "", err
	}
	rec.RoleID = roleID
	r.persist.MarkDirty(store.Games, "added missing role entry for the "+rec.Name+" game")
	return roleID, nil
}

// FindGame finds a record by canonical name, falling back to a
// case-insensitive scan.
func (r *Registry) FindGame(name string) *GameRecord {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if rec, ok := r.games[name]; ok {
		return rec
	}
	for key, rec := range r.games {
		if strings.EqualFold(key, name) {
			return rec
		}
	}
	return nil
}

// ResolveAlias maps an alias to its canonical game name, case-insensitively.
func (r *Registry) ResolveAlias(name string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if canonical, ok := r.aliases[name]; ok {
		return canonical, true
	}
	for alias, canonical := range r.aliases {
		if strings.EqualFold(alias, name) {
			return canonical, true
		}
	}
	return "", false
}

// SetAlias records an alias for an existing game. The target must resolve.
func (r *Registry) SetAlias(alias, gameName string) error {
	rec := r.FindGame(gameName)
	if rec == nil {
		return fmt.Errorf("cannot alias %q: game %q is not tracked", alias, gameName)
	}

	r.mu.Lock()
	r.aliases[alias] = rec.Name
	r.mu.Unlock()
	r.persist.MarkDirty(store.Aliases, "assigned a new alias, "+alias+", to the "+rec.Name+" game")
	return nil
}

// RemoveAlias deletes an alias. Returns false when the alias is unknown.
func (r *Registry) RemoveAlias(alias string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.aliases[alias]; !ok {
		return false
	}
	delete(r.aliases, alias)
	r.persist.MarkDirty(store.Aliases, "removed the "+alias+" alias")
	return true
}

// RemoveGame drops a game record entirely. The caller is responsible for
// deleting the Discord role first (it has the session). Returns false when
// the game is unknown.
func (r *Registry) RemoveGame(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.games[name]
	if !ok {
		return false
	}
	delete(r.games, rec.Name)
	r.persist.MarkDirty(store.Games, "removed a game, "+rec.Name)
	return true
}

// Games returns the records sorted by name.
func (r *Registry) Games() []*GameRecord {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*GameRecord, 0, len(r.games))
	for _, rec := range r.games {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Aliases returns a copy of the alias table.
func (r *Registry) Aliases() map[string]string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[string]string, len(r.aliases))
	for k, v := range r.aliases {
		out[k] = v
	}
	return out
}

// Histories returns each game's history map, keyed by canonical name, for
// playtime reports.
func (r *Registry) Histories() map[string]ledger.History {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[string]ledger.History, len(r.games))
	for name, rec := range r.games {
		out[name] = rec.History
	}
	return out
}

// lookupHistory is the ledger's alias-aware resolution hook.
func (r *Registry) lookupHistory(name string) (string, ledger.History, bool) {
	candidate := name
	if canonical, ok := r.ResolveAlias(name); ok {
		candidate = canonical
	}
	rec := r.FindGame(candidate)
	if rec == nil {
		return "", nil, false
	}
	if rec.History == nil {
		rec.History = make(ledger.History)
	}
	return rec.Name, rec.History, true
}

// ActiveRoleGames implements roles.GameSource.
func (r *Registry) ActiveRoleGames() []roles.GameStats {
	r.mu.RLock()
	recs := make([]*GameRecord, 0, len(r.games))
	for _, rec := range r.games {
		if rec.HasRole() {
			recs = append(recs, rec)
		}
	}
	r.mu.RUnlock()

	stats := make([]roles.GameStats, 0, len(recs))
	for _, rec := range recs {
		hours, lastPlayed, _ := r.ledger.Stats(rec.History)
		stats = append(stats, roles.GameStats{
			Name:       rec.Name,
			RoleID:     rec.RoleID,
			AddedAt:    rec.AddedAt,
			LastPlayed: lastPlayed,
			Trackers:   r.members.TrackerCount(rec.Name),
			Hours:      hours,
		})
	}
	return stats
}

// ClearRole implements roles.GameSource: the role was deleted externally.
func (r *Registry) ClearRole(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if rec, ok := r.games[name]; ok {
		rec.RoleID = ""
		r.persist.MarkDirty(store.Games, "released role for "+name)
	}
}

func (r *Registry) snapshotGames() any {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]*GameRecord, len(r.games))
	for k, v := range r.games {
		out[k] = v
	}
	return out
}

func (r *Registry) snapshotAliases() any {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]string, len(r.aliases))
	for k, v := range r.aliases {
		out[k] = v
	}
	return out
}
