package payproof

import (
	"regexp"
	"strconv"
	"time"
)

// DD/MM/YYYY, DD-MM-YYYY, YYYY-MM-DD. Not anchored: extracted PDF text often
// glues dates to neighbouring words, and ISO timestamps continue with "T".
var dateRE = regexp.MustCompile(`\d{4}-\d{1,2}-\d{1,2}|\d{1,2}/\d{1,2}/\d{4}|\d{1,2}-\d{1,2}-\d{4}`)

var dateParts = regexp.MustCompile(`^(\d+)[/-](\d+)[/-](\d+)$`)

// FindDateCandidates returns every date-like substring in order of appearance.
func FindDateCandidates(text string) []string {
	return dateRE.FindAllString(text, -1)
}

// ParseDate turns one candidate into a UTC calendar date. A four digit
// first token means year-month-day, anything else day-month-year.
func ParseDate(s string) (time.Time, bool) {
	m := dateParts.FindStringSubmatch(s)
	if m == nil {
		return time.Time{}, false
	}

	var y, mo, d int
	if len(m[1]) == 4 {
		y, _ = strconv.Atoi(m[1])
		mo, _ = strconv.Atoi(m[2])
		d, _ = strconv.Atoi(m[3])
	} else {
		d, _ = strconv.Atoi(m[1])
		mo, _ = strconv.Atoi(m[2])
		y, _ = strconv.Atoi(m[3])
	}

	if mo < 1 || mo > 12 || d < 1 {
		return time.Time{}, false
	}
	t := time.Date(y, time.Month(mo), d, 0, 0, 0, 0, time.UTC)
	// time.Date normalizes 31/02 into March; reject it
	if t.Day() != d || int(t.Month()) != mo || t.Year() != y {
		return time.Time{}, false
	}
	return t, true
}

// LatestDate parses all candidates and returns the chronologically latest valid one.
func LatestDate(candidates []string) (time.Time, bool) {
	var latest time.Time
	found := false
	for _, c := range candidates {
		t, ok := ParseDate(c)
		if !ok {
			continue
		}
		if !found || t.After(latest) {
			latest = t
			found = true
		}
	}
	return latest, found
}
