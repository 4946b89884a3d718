package domain

import (
	"regexp"
	"strconv"
	"time"
)

var usDate = regexp.MustCompile(`^(\d{1,2})/(\d{1,2})/(\d{4})$`)

var dateLayouts = []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02", "01/02/2006", "1/2/2006"}

// FormatDate renders a date string as MM/DD/YYYY in UTC. Empty input gives
// empty output; unparseable input is returned unchanged.
func FormatDate(s string) string {
	if s == "" {
		return ""
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC().Format("01/02/2006")
		}
	}
	return s
}

// IsValidDate reports whether s is a real calendar date in MM/DD/YYYY form.
func IsValidDate(s string) bool {
	m := usDate.FindStringSubmatch(s)
	if m == nil {
		return false
	}
	month, _ := strconv.Atoi(m[1])
	day, _ := strconv.Atoi(m[2])
	year, _ := strconv.Atoi(m[3])
	if month < 1 || month > 12 {
		return false
	}
	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	return t.Year() == year && int(t.Month()) == month && t.Day() == day
}

// IsDateValue accepts what a date column may hold: empty, an ISO
// YYYY-MM-DD date, or a valid MM/DD/YYYY date.
func IsDateValue(s string) bool {
	if s == "" || IsValidDate(s) {
		return true
	}
	_, err := time.Parse("2006-01-02", s)
	return err == nil
}
