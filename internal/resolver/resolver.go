// Package resolver turns free-text activity names into a single winning
// catalog entry. Similarity dominates the score; newer, better-rated, and
// DLC-rich entries win head-to-head comparisons against the running best.
package resolver

import (
	"strconv"
	"strings"

	"github.com/pmezard/go-difflib/difflib"

	"github.com/jvanvolken/pandacogs/internal/catalog"
)

// similarityWeight scales the squared similarity ratio so that name closeness
// dominates the metadata bonuses.
const similarityWeight = 10

// Similarity returns the Ratcliff/Obershelp ratio between two names,
// case-insensitive, in [0, 1].
func Similarity(a, b string) float64 {
	left := strings.Split(strings.ToLower(a), "")
	right := strings.Split(strings.ToLower(b), "")
	return difflib.NewMatcher(left, right).Ratio()
}

// Score rates a candidate against the query and the current best candidate.
// The base is similarity² × 10. Each datum the candidate carries (release
// date, rating, DLC data) adds 1. Each datum carried by both the candidate
// and the current best is compared head-to-head: strictly newer/higher/more
// adds 1, a tie or worse subtracts 1. With no current best the head-to-head
// terms contribute nothing.
func Score(query string, cand, best *catalog.Entry) float64 {
	ratio := Similarity(query, cand.Name)
	score := ratio * ratio * similarityWeight

	if cand.HasReleaseDate() {
		score++
	}
	if cand.HasRating() {
		score++
	}
	if cand.HasDLCs() {
		score++
	}

	if best == nil {
		return score
	}

	if cand.HasReleaseDate() && best.HasReleaseDate() {
		if cand.ReleaseYear() > best.ReleaseYear() {
			score++
		} else {
			score--
		}
	}
	if cand.HasRating() && best.HasRating() {
		if cand.Rating > best.Rating {
			score++
		} else {
			score--
		}
	}
	if cand.HasDLCs() && best.HasDLCs() {
		if len(cand.DLCs) > len(best.DLCs) {
			score++
		} else {
			score--
		}
	}

	return score
}

// SelectBest picks the winning candidate for a query, or nil when nothing
// matches. A purely numeric query is a catalog ID supplied by the user and is
// matched by exact ID equality only. Replacement requires a strictly greater
// score, so ties keep the earlier-seen candidate and the result is
// deterministic for identical inputs.
func SelectBest(query string, candidates []*catalog.Entry) *catalog.Entry {
	if len(candidates) == 0 {
		return nil
	}

	if id, err := strconv.Atoi(strings.TrimSpace(query)); err == nil {
		for _, cand := range candidates {
			if cand.ID == id {
				return cand
			}
		}
		return nil
	}

	var best *catalog.Entry
	var bestScore float64
	for _, cand := range candidates {
		if cand == nil || cand.Name == "" {
			continue
		}
		if s := Score(query, cand, best); best == nil || s > bestScore {
			best = cand
			bestScore = s
		}
	}
	return best
}
