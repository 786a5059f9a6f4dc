package credit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestQualifiesForCredit(t *testing.T) {
	start := time.Date(2025, 1, 6, 18, 0, 0, 0, time.UTC)
	grace := 24 * time.Hour

	assert.Equal(t, time.Date(2025, 1, 5, 18, 0, 0, 0, time.UTC), Cutoff(start, grace))

	cases := []struct {
		name     string
		cancelAt time.Time
		want     bool
	}{
		{name: "well before cutoff", cancelAt: start.Add(-48 * time.Hour), want: false},
		{name: "exactly at cutoff", cancelAt: start.Add(-grace), want: false},
		{name: "just after cutoff", cancelAt: start.Add(-grace + time.Second), want: true},
		{name: "after start", cancelAt: start.Add(time.Hour), want: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, QualifiesForCredit(tc.cancelAt, start, grace))
		})
	}
}

func TestQualifiesForCreditZeroGrace(t *testing.T) {
	start := time.Date(2025, 1, 6, 18, 0, 0, 0, time.UTC)
	assert.False(t, QualifiesForCredit(start, start, 0))
	assert.True(t, QualifiesForCredit(start.Add(time.Nanosecond), start, 0))
}
