// Package dateutils provides the date and time parsing used when
// normalizing receipt headers. Model output mixes ISO timestamps with
// German print formats, so parsing tries ISO first and then a fixed
// fallback list.
package dateutils

import (
	"regexp"
	"strings"
	"time"
)

// Date layouts seen on German retail receipts and in model output.
const (
	DateLayoutISO        = "2006-01-02"
	DateLayoutGerman     = "02.01.2006"
	DateLayoutGermanYY   = "02.01.06"
	DateLayoutDashedEU   = "02-01-2006"
	DateLayoutSlashedISO = "2006/01/02"
)

// isoDateTimeLayouts are tried first, before any date-only fallback.
var isoDateTimeLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04",
}

// fallbackDateLayouts are date-only; the time of day defaults to noon.
var fallbackDateLayouts = []string{
	DateLayoutGerman,
	DateLayoutGermanYY,
	DateLayoutISO,
	DateLayoutDashedEU,
	DateLayoutSlashedISO,
}

var multiSpace = regexp.MustCompile(`\s+`)

// ParseReceiptDateTime parses a purchase timestamp from model output.
// ISO-8601 is tried first (any trailing 'Z' is stripped), then the
// fallback date formats; a bare date gets 12:00:00 as its time of day.
// Returns false if nothing parses.
func ParseReceiptDateTime(s string) (time.Time, bool) {
	s = CleanDateString(s)
	if s == "" {
		return time.Time{}, false
	}
	s = strings.TrimSuffix(s, "Z")

	for _, layout := range isoDateTimeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	for _, layout := range fallbackDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return atNoon(t), true
		}
	}
	return time.Time{}, false
}

// CleanDateString trims and collapses whitespace in a date string.
func CleanDateString(s string) string {
	s = strings.TrimSpace(s)
	return multiSpace.ReplaceAllString(s, " ")
}

// atNoon pins a date-only value to 12:00:00, the documented default when
// only the day is known.
func atNoon(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 12, 0, 0, 0, t.Location())
}
