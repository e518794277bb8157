package registry

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// platformSuffix matches trailing platform qualifiers that presence strings
// sometimes carry ("Halo Infinite for Xbox One" and the like).
var platformSuffix = regexp.MustCompile(`(?i)\s+(?:for|on)\s+(?:xbox(?:\s+(?:one|series\s+[xs]|360))?|playstation(?:\s*\d)?|ps\d|nintendo\s+switch|switch|wii u?|pc|windows|mac|linux|steam|stadia)\s*$`)

var spaceRun = regexp.MustCompile(`\s+`)

var titleCaser = cases.Title(language.English)

// stripDiacritics removes combining marks after NFD decomposition, so
// "Pokémon" and "Pokemon" normalize identically.
var stripDiacritics = transform.Chain(
	norm.NFD,
	runes.Remove(runes.In(unicode.Mn)),
	norm.NFC,
)

// Normalize reduces a raw activity or user-supplied name to the form used for
// registry and alias lookups: platform suffix stripped, diacritics removed,
// whitespace collapsed, title-cased.
func Normalize(name string) string {
	name = strings.TrimSpace(name)
	name = platformSuffix.ReplaceAllString(name, "")

	if stripped, _, err := transform.String(stripDiacritics, name); err == nil {
		name = stripped
	}

	name = spaceRun.ReplaceAllString(name, " ")
	name = strings.TrimSpace(name)
	if name == "" {
		return ""
	}

	return titleCaser.String(name)
}
