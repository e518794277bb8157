// Package roles manages the lifecycle of per-game Discord roles: creation,
// cover-art color assignment, and capacity-based eviction.
package roles

import (
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
)

// ErrRoleCapacity is returned when the role cap is reached and no game is
// evictable. Creation halts; looping would never free a slot.
var ErrRoleCapacity = errors.New("role capacity exhausted: no evictable candidate")

// RoleStore is the Discord role CRUD surface the manager drives.
type RoleStore interface {
	Create(name string, color int, mentionable bool) (string, error)
	Delete(id string) error
	Edit(id string, color int) error
	// Get finds an existing role by name, returning its id.
	Get(name string) (string, bool)
}

// GameStats is the eviction-scoring snapshot for one role-holding game.
type GameStats struct {
	Name       string
	RoleID     string
	AddedAt    time.Time
	LastPlayed time.Time // zero when never played
	Trackers   int
	Hours      float64
}

// GameSource exposes the registry state the manager needs. ClearRole must
// drop the game's role id before the manager creates a replacement role, so a
// failure partway leaves the system at "role free, not yet re-created" rather
// than over the cap.
type GameSource interface {
	// ActiveRoleGames lists every game currently holding a role.
	ActiveRoleGames() []GameStats
	// ClearRole forgets a game's role id after the role is deleted.
	ClearRole(name string)
}

// evictionGrace protects freshly added games from eviction.
const evictionGrace = 24 * time.Hour

// Manager enforces the role budget.
type Manager struct {
	store    RoleStore
	source   GameSource
	maxRoles int
	logger   *log.Logger
	now      func() time.Time
}

// NewManager creates a role lifecycle manager with the given capacity.
func NewManager(store RoleStore, source GameSource, maxRoles int, logger *log.Logger) *Manager {
	return &Manager{
		store:    store,
		source:   source,
		maxRoles: maxRoles,
		logger:   logger,
		now:      time.Now,
	}
}

// SetClock overrides the time source. Tests only.
func (m *Manager) SetClock(now func() time.Time) { m.now = now }

// GetOrCreateRole returns the role id for a game, reusing an existing role
// when one matches the game name. When createIfMissing is false this is a
// pure lookup. Creation evicts the least-engaged role-holding games until
// the count drops under the cap.
func (m *Manager) GetOrCreateRole(gameName string, color int, createIfMissing bool) (string, error) {
	if id, ok := m.store.Get(gameName); ok {
		if color != 0 {
			if err := m.store.Edit(id, color); err != nil {
				m.logger.Warnf("failed to recolor existing role for %s: %v", gameName, err)
			}
		}
		return id, nil
	}

	if !createIfMissing {
		return "", nil
	}

	exclude := map[string]bool{gameName: true}
	for len(m.source.ActiveRoleGames()) >= m.maxRoles {
		candidate, err := m.SelectEvictionCandidate(exclude)
		if err != nil {
			return "", err
		}
		if err := m.evict(candidate); err != nil {
			return "", err
		}
		// Guard against a source that never sheds roles.
		exclude[candidate] = true
	}

	id, err := m.store.Create(gameName, color, true)
	if err != nil {
		return "", fmt.Errorf("failed to create role for %s: %w", gameName, err)
	}
	return id, nil
}

// evict deletes a game's role and clears its record. Delete-then-clear keeps
// the failure mode recoverable: worst case the role is gone and the record
// still points at it, which the next backfill pass repairs.
func (m *Manager) evict(gameName string) error {
	var roleID string
	for _, s := range m.source.ActiveRoleGames() {
		if s.Name == gameName {
			roleID = s.RoleID
			break
		}
	}

	if roleID != "" {
		if err := m.store.Delete(roleID); err != nil {
			return fmt.Errorf("failed to delete role for %s: %w", gameName, err)
		}
	}
	m.source.ClearRole(gameName)
	m.logger.Infof("evicted role for %s to stay under the %d-role cap", gameName, m.maxRoles)
	return nil
}

// SelectEvictionCandidate picks the role-holding game with the lowest
// engagement score: (tracking members + total playtime hours) divided by days
// since last played, or days since added for never-played games. Days are
// clamped to a minimum of 1 so a just-played game scores high rather than
// dividing by zero. Games younger than the grace period are protected.
func (m *Manager) SelectEvictionCandidate(exclude map[string]bool) (string, error) {
	now := m.now()

	var best string
	var bestScore float64
	for _, g := range m.source.ActiveRoleGames() {
		if exclude[g.Name] {
			continue
		}
		if now.Sub(g.AddedAt) <= evictionGrace {
			continue
		}

		denominator := now.Sub(g.AddedAt).Hours() / 24
		if !g.LastPlayed.IsZero() {
			denominator = now.Sub(g.LastPlayed).Hours() / 24
		}
		if denominator < 1 {
			denominator = 1
		}

		score := (float64(g.Trackers) + g.Hours) / denominator
		if best == "" || score < bestScore {
			best = g.Name
			bestScore = score
		}
	}

	if best == "" {
		return "", ErrRoleCapacity
	}
	return best, nil
}
