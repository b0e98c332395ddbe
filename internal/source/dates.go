package source

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// dateLayouts are tried in order. Go accepts a fractional second after the
// seconds field even when the layout omits it.
var dateLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02 15:04",
	"1/2/2006",
	"1/2/2006 15:04",
	"1/2/2006 15:04:05",
	"1/2/2006 3:04 PM",
	"1/2/2006 3:04:05 PM",
	"2006/01/02",
	"2006/01/02 15:04:05",
}

// ParseDate parses an extract date cell into a calendar day at midnight UTC.
// The day is taken as written, before any zone conversion. ok is false when
// the cell is not empty but matches no known layout.
func ParseDate(s string) (day *time.Time, ok bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, true
	}
	for _, layout := range dateLayouts {
		t, err := time.Parse(layout, s)
		if err != nil {
			continue
		}
		d := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
		return &d, true
	}
	return nil, false
}

// thousands matches amounts whose commas group digits, such as 1,234.50.
var thousands = regexp.MustCompile(`^[-+]?\d{1,3}(,\d{3})+(\.\d+)?$`)

// ParseAmount parses a money cell. Currency symbols and thousands separators
// are tolerated; anything else, including a decimal comma or a non-finite
// value, yields 0 and ok=false. Empty cells are 0 and ok.
func ParseAmount(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, true
	}
	cleaned := strings.Map(func(r rune) rune {
		switch r {
		case '$', '€', '£', ' ':
			return -1
		}
		return r
	}, s)
	if strings.Contains(cleaned, ",") {
		if !thousands.MatchString(cleaned) {
			return 0, false
		}
		cleaned = strings.ReplaceAll(cleaned, ",", "")
	}
	v, err := strconv.ParseFloat(cleaned, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}
