package utils

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/markusmobius/go-dateparser"
)

// ParseWindowDays turns a free-text window description ("last week",
// "30 days ago", "1 month") into a trailing day count for playtime reports.
func ParseWindowDays(windowString string) (int, error) {
	windowString = strings.TrimSpace(windowString)
	if windowString == "" {
		return 0, fmt.Errorf("empty window")
	}

	dt, err := dateparser.Parse(nil, windowString)
	if err != nil {
		return 0, fmt.Errorf("unable to parse window %q: %w", windowString, err)
	}

	// Round to the nearest whole day; the instants between parsing and now
	// would otherwise push "3 days ago" up to 4.
	days := int(math.Round(time.Since(dt.Time).Hours() / 24))
	if days < 1 {
		return 0, fmt.Errorf("window %q is not in the past", windowString)
	}
	return days, nil
}
