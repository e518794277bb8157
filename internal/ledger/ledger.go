// Package ledger tracks per-game, per-day, per-member play sessions. It is
// pure data plus arithmetic; persistence and alias resolution are injected.
package ledger

import (
	"math"
	"sort"
	"sync"
	"time"

	"github.com/charmbracelet/log"
)

// DateLayout keys the per-day history maps.
const DateLayout = "2006-01-02"

// Entry is one member's slot for one date. An open session holds LastPlayed;
// finished time accumulates into PlaytimeHours. LastPlayed is cleared as soon
// as it is folded into PlaytimeHours.
type Entry struct {
	LastPlayed    *time.Time `json:"last_played,omitempty"`
	PlaytimeHours float64    `json:"playtime_hours,omitempty"`
}

// DayLog maps member name to that member's entry for one date.
type DayLog map[string]*Entry

// History maps date (DateLayout) to the members who played that day.
type History map[string]DayLog

// GameHours is one row of a playtime report.
type GameHours struct {
	Game  string
	Hours float64
}

// LookupFunc resolves a raw (possibly aliased) game name to its canonical
// name and history map. ok is false when the name is unknown.
type LookupFunc func(name string) (canonical string, hist History, ok bool)

// Ledger maintains session state across game histories. Session mutations and
// reads through Ledger methods are serialized by an internal mutex; Discord
// dispatches presence and interaction handlers on separate goroutines, and the
// History maps are shared with the registry's records.
type Ledger struct {
	mu     sync.Mutex
	lookup LookupFunc
	dirty  func(comment string)
	logger *log.Logger
	now    func() time.Time
}

// New creates a ledger. dirty is invoked after every mutation so the caller
// can schedule a flush.
func New(lookup LookupFunc, dirty func(comment string), logger *log.Logger) *Ledger {
	return &Ledger{
		lookup: lookup,
		dirty:  dirty,
		logger: logger,
		now:    time.Now,
	}
}

// SetClock overrides the time source. Tests only.
func (l *Ledger) SetClock(now func() time.Time) { l.now = now }

// StartSession records that a member began playing a game at the given time.
// Restarting an already-open session just overwrites the timestamp; duplicate
// same-activity presence events are suppressed upstream.
func (l *Ledger) StartSession(game, member string, at time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()

	canonical, hist, ok := l.lookup(game)
	if !ok {
		l.logger.Warnf("could not find %q in the game list or aliases when %s started playing", game, member)
		return
	}

	entry := ensureEntry(hist, at.Format(DateLayout), member)
	t := at
	entry.LastPlayed = &t

	l.dirty(member + " started playing " + canonical)
}

// StopSession closes a member's open session and accumulates the elapsed
// hours. A session opened yesterday is split at midnight into two same-day
// increments. A dangling session older than that is discarded with a warning;
// the elapsed interval is ambiguous and is not reconstructed.
func (l *Ledger) StopSession(game, member string, at time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()

	canonical, hist, ok := l.lookup(game)
	if !ok {
		l.logger.Warnf("could not find %q in the game list or aliases when %s stopped playing", game, member)
		return
	}

	today := at.Format(DateLayout)
	if entry := openEntry(hist, today, member); entry != nil {
		accumulate(entry, at.Sub(*entry.LastPlayed).Hours())
		entry.LastPlayed = nil
		l.dirty(member + " stopped playing " + canonical)
		return
	}

	yesterday := at.AddDate(0, 0, -1).Format(DateLayout)
	if entry := openEntry(hist, yesterday, member); entry != nil {
		midnight := time.Date(at.Year(), at.Month(), at.Day(), 0, 0, 0, 0, at.Location())

		accumulate(entry, midnight.Sub(*entry.LastPlayed).Hours())
		entry.LastPlayed = nil

		todayEntry := ensureEntry(hist, today, member)
		accumulate(todayEntry, at.Sub(midnight).Hours())

		l.dirty(member + " stopped playing " + canonical + " (session split at midnight)")
		return
	}

	// Anything older spans more than two days; the session is unresolvable.
	for date, day := range hist {
		if entry, found := day[member]; found && entry.LastPlayed != nil {
			l.logger.Warnf("discarding dangling session for %s on %s (%s): session exceeded a 2-day span", member, canonical, date)
			entry.LastPlayed = nil
			l.dirty("discarded dangling session for " + member + " on " + canonical)
		}
	}
}

// TotalPlaytime sums playtime hours across the given game histories for the
// trailing windowDays (0 means all history), optionally filtered to a single
// member, sorted descending by hours. topN > 0 truncates the report.
func (l *Ledger) TotalPlaytime(games map[string]History, windowDays int, member string, topN int) []GameHours {
	l.mu.Lock()
	defer l.mu.Unlock()

	var cutoff time.Time
	if windowDays > 0 {
		cutoff = l.now().AddDate(0, 0, -windowDays)
	}

	totals := make([]GameHours, 0, len(games))
	for game, hist := range games {
		var hours float64
		for date, day := range hist {
			if windowDays > 0 {
				d, err := time.Parse(DateLayout, date)
				if err != nil || !d.After(cutoff) {
					continue
				}
			}
			for name, entry := range day {
				if member != "" && name != member {
					continue
				}
				hours += entry.PlaytimeHours
			}
		}
		if hours > 0 {
			totals = append(totals, GameHours{Game: game, Hours: round2(hours)})
		}
	}

	sort.Slice(totals, func(i, j int) bool {
		if totals[i].Hours != totals[j].Hours {
			return totals[i].Hours > totals[j].Hours
		}
		return totals[i].Game < totals[j].Game
	})

	if topN > 0 && len(totals) > topN {
		totals = totals[:topN]
	}
	return totals
}

// Stats returns the all-member total hours and the most recent play moment
// for one history, under the ledger lock so callers can read histories while
// presence handlers may be mutating them.
func (l *Ledger) Stats(hist History) (hours float64, lastPlayed time.Time, played bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	lastPlayed, played = LastPlayedAt(hist)
	return TotalHours(hist), lastPlayed, played
}

// MemberHours returns one member's total hours for a single game history.
func MemberHours(hist History, member string) float64 {
	var hours float64
	for _, day := range hist {
		if entry, ok := day[member]; ok {
			hours += entry.PlaytimeHours
		}
	}
	return round2(hours)
}

// TotalHours returns the all-member total for one game history.
func TotalHours(hist History) float64 {
	var hours float64
	for _, day := range hist {
		for _, entry := range day {
			hours += entry.PlaytimeHours
		}
	}
	return round2(hours)
}

// LastPlayedAt returns the most recent moment any member finished or started
// a session in the history. ok is false for never-played games.
func LastPlayedAt(hist History) (time.Time, bool) {
	var latest time.Time
	var found bool
	for date, day := range hist {
		d, err := time.Parse(DateLayout, date)
		if err != nil {
			continue
		}
		for _, entry := range day {
			candidate := d
			if entry.LastPlayed != nil {
				candidate = *entry.LastPlayed
			} else if entry.PlaytimeHours == 0 {
				continue
			}
			if !found || candidate.After(latest) {
				latest = candidate
				found = true
			}
		}
	}
	return latest, found
}

func ensureEntry(hist History, date, member string) *Entry {
	day, ok := hist[date]
	if !ok {
		day = make(DayLog)
		hist[date] = day
	}
	entry, ok := day[member]
	if !ok {
		entry = &Entry{}
		day[member] = entry
	}
	return entry
}

func openEntry(hist History, date, member string) *Entry {
	if day, ok := hist[date]; ok {
		if entry, found := day[member]; found && entry.LastPlayed != nil {
			return entry
		}
	}
	return nil
}

// accumulate folds hours into an entry, rounding at every addition. Repeated
// additions compound rounding error; historical data was produced this way
// and parity matters more than precision.
func accumulate(entry *Entry, hours float64) {
	if hours < 0 {
		hours = 0
	}
	entry.PlaytimeHours = round2(entry.PlaytimeHours + round2(hours))
}

func round2(f float64) float64 {
	return math.Round(f*100) / 100
}
