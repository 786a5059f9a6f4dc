package recurrence

import (
	"strings"
	"time"
)

const dateLayout = "2006-01-02"

// SessionKey identifies one occurrence of a class. Time of day is ignored.
func SessionKey(classID string, date time.Time) string {
	return civil(date).Format(dateLayout) + "_" + classID
}

// ParseSessionKey splits a key produced by SessionKey back into its date and class id.
func ParseSessionKey(key string) (time.Time, string, error) {
	key = strings.TrimSpace(key)
	if len(key) < len(dateLayout)+2 || key[len(dateLayout)] != '_' {
		return time.Time{}, "", ErrInvalidSessionKey
	}
	date, err := time.Parse(dateLayout, key[:len(dateLayout)])
	if err != nil {
		return time.Time{}, "", ErrInvalidSessionKey
	}
	return date, key[len(dateLayout)+1:], nil
}

// ParseDate parses a calendar date in YYYY-MM-DD form.
func ParseDate(value string) (time.Time, error) {
	return time.Parse(dateLayout, strings.TrimSpace(value))
}

// FormatDate renders a calendar date in YYYY-MM-DD form.
func FormatDate(date time.Time) string {
	return civil(date).Format(dateLayout)
}

// Civil returns the calendar date of t at midnight UTC.
func Civil(t time.Time) time.Time {
	return civil(t)
}
