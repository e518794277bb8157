package registry

import (
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/jvanvolken/pandacogs/internal/store"
)

// MemberStore holds soft state about server members: opt-out flags and
// per-game tracking answers. Members are keyed by username.
type MemberStore struct {
	mu      sync.RWMutex
	members map[string]*MemberRecord
	persist Persistence
	logger  *log.Logger
}

// NewMemberStore loads the members collection from the persistence layer.
func NewMemberStore(persist Persistence, logger *log.Logger) (*MemberStore, error) {
	s := &MemberStore{
		members: make(map[string]*MemberRecord),
		persist: persist,
		logger:  logger,
	}
	if err := persist.Load(store.Members, &s.members); err != nil {
		return nil, err
	}
	persist.Register(store.Members, s.snapshot)
	return s, nil
}

func (s *MemberStore) snapshot() any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]*MemberRecord, len(s.members))
	for k, v := range s.members {
		out[k] = v
	}
	return out
}

// Get returns a member record, or nil when unknown.
func (s *MemberStore) Get(name string) *MemberRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.members[name]
}

// Ensure returns the member record, creating it on first sight.
func (s *MemberStore) Ensure(name, displayName, userID string, createdAt, joinedAt time.Time) *MemberRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	if m, ok := s.members[name]; ok {
		return m
	}

	m := &MemberRecord{
		Name:        name,
		DisplayName: displayName,
		UserID:      userID,
		CreatedAt:   createdAt,
		JoinedAt:    joinedAt,
		Games:       make(map[string]*MemberGame),
	}
	s.members[name] = m
	s.persist.MarkDirty(store.Members, "added a new member, "+name)
	return m
}

// Apply merges a typed patch into a member record, field by field.
func (s *MemberStore) Apply(name string, patch MemberPatch) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.members[name]
	if !ok {
		s.logger.Warnf("cannot patch unknown member %s", name)
		return
	}

	if patch.DisplayName != nil {
		m.DisplayName = *patch.DisplayName
	}
	if patch.OptOut != nil {
		m.OptOut = *patch.OptOut
	}
	for game, gp := range patch.Games {
		entry, ok := m.Games[game]
		if !ok {
			entry = &MemberGame{Name: game}
			if m.Games == nil {
				m.Games = make(map[string]*MemberGame)
			}
			m.Games[game] = entry
		}
		if gp.Tracked != nil {
			entry.Tracked = *gp.Tracked
		}
		if gp.ClearLastPlayed {
			entry.LastPlayed = nil
		} else if gp.LastPlayed != nil {
			entry.LastPlayed = gp.LastPlayed
		}
	}

	s.persist.MarkDirty(store.Members, "updated member "+name)
}

// TrackerCount counts members who have opted into a game's role.
func (s *MemberStore) TrackerCount(game string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, m := range s.members {
		if m.Tracking(game) {
			count++
		}
	}
	return count
}
