package server

import (
	"errors"
	"strings"
	"time"

	"github.com/smallbiznis/classbook/internal/recurrence"
)

var errInvalidTime = errors.New("invalid_time")

func parseOptionalTime(value string, endOfDay bool) (*time.Time, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil, nil
	}
	if parsed, err := time.Parse(time.RFC3339, trimmed); err == nil {
		parsed = parsed.UTC()
		return &parsed, nil
	}
	parsed, err := recurrence.ParseDate(trimmed)
	if err != nil {
		return nil, errInvalidTime
	}
	if endOfDay {
		parsed = parsed.Add(24*time.Hour - time.Nanosecond)
	}
	return &parsed, nil
}
