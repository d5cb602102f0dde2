package parser

import (
	"strings"
	"time"
)

var fallbackLayouts = []string{
	time.RFC3339,
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
	time.RFC1123Z,
	time.RFC1123,
	time.RFC822Z,
	time.RFC822,
	"Mon, 2 Jan 2006 15:04:05 -0700",
	"2 Jan 2006 15:04",
	"2 Jan 2006",
	"January 2, 2006",
	"Jan 2, 2006",
	"02.01.2006 15:04",
	"02.01.2006",
	"02/01/2006",
}

// parseDate tries the configured layout first and then the common ones.
// Values without zone information are read as UTC.
func parseDate(raw, layout string) *time.Time {
	raw = strings.Join(strings.Fields(raw), " ")
	if raw == "" {
		return nil
	}
	if layout != "" {
		if t, err := time.ParseInLocation(layout, raw, time.UTC); err == nil {
			return &t
		}
	}
	for _, l := range fallbackLayouts {
		if t, err := time.ParseInLocation(l, raw, time.UTC); err == nil {
			return &t
		}
	}
	return nil
}
