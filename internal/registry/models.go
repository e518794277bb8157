package registry

import (
	"time"

	"github.com/jvanvolken/pandacogs/internal/catalog"
	"github.com/jvanvolken/pandacogs/internal/ledger"
)

// GameRecord is the canonical record for one tracked game. Name is the unique
// key; aliases map onto it.
type GameRecord struct {
	Name             string         `json:"name"`
	CatalogID        int            `json:"catalog_id,omitempty"`
	Summary          string         `json:"summary,omitempty"`
	Rating           float64        `json:"rating,omitempty"`
	FirstReleaseDate int64          `json:"first_release_date,omitempty"`
	DLCCount         int            `json:"dlc_count,omitempty"`
	CoverURL         string         `json:"cover_url,omitempty"`
	RoleID           string         `json:"role_id,omitempty"`
	AddedAt          time.Time      `json:"added_at"`
	History          ledger.History `json:"history,omitempty"`
}

// HasRole reports whether the game currently holds a live Discord role.
func (g *GameRecord) HasRole() bool { return g.RoleID != "" }

func newGameRecord(entry *catalog.Entry, at time.Time) *GameRecord {
	return &GameRecord{
		Name:             entry.Name,
		CatalogID:        entry.ID,
		Summary:          entry.Summary,
		Rating:           entry.Rating,
		FirstReleaseDate: entry.FirstReleaseDate,
		DLCCount:         len(entry.DLCs),
		AddedAt:          at,
		History:          make(ledger.History),
	}
}

// placeholderRecord marks a name the catalog could not resolve.
func placeholderRecord(name string, at time.Time) *GameRecord {
	return &GameRecord{
		Name:    name,
		Summary: "unknown",
		AddedAt: at,
	}
}

// MemberGame is a member's standing answer for one game's role.
type MemberGame struct {
	Name       string     `json:"name"`
	Tracked    bool       `json:"tracked"`
	LastPlayed *time.Time `json:"last_played,omitempty"`
}

// MemberRecord is soft state about one server member. Records are created on
// first observed presence or interaction and never deleted.
type MemberRecord struct {
	Name        string                 `json:"name"`
	DisplayName string                 `json:"display_name,omitempty"`
	UserID      string                 `json:"user_id,omitempty"`
	CreatedAt   time.Time              `json:"created_at,omitempty"`
	JoinedAt    time.Time              `json:"joined_at,omitempty"`
	OptOut      bool                   `json:"opt_out"`
	Games       map[string]*MemberGame `json:"games"`
}

// Tracking reports whether the member has agreed to hold this game's role.
func (m *MemberRecord) Tracking(game string) bool {
	g, ok := m.Games[game]
	return ok && g.Tracked
}

// Declined reports whether the member has explicitly declined this game.
func (m *MemberRecord) Declined(game string) bool {
	g, ok := m.Games[game]
	return ok && !g.Tracked
}

// MemberGamePatch is a typed partial update for one member-game entry.
type MemberGamePatch struct {
	Tracked         *bool
	LastPlayed      *time.Time
	ClearLastPlayed bool
}

// MemberPatch is a typed partial update applied with explicit field merges,
// replacing ad-hoc recursive map merging.
type MemberPatch struct {
	DisplayName *string
	OptOut      *bool
	Games       map[string]MemberGamePatch
}

// AddResult classifies the outcome of an AddGames call.
type AddResult struct {
	Created  []*GameRecord
	Existing []*GameRecord
	NotFound []*GameRecord
}

// Empty reports whether the call produced no classifications at all.
func (r *AddResult) Empty() bool {
	return len(r.Created) == 0 && len(r.Existing) == 0 && len(r.NotFound) == 0
}
