package recurrence

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func date(t *testing.T, value string) time.Time {
	t.Helper()
	parsed, err := ParseDate(value)
	require.NoError(t, err)
	return parsed
}

func dates(occurrences []Occurrence) []string {
	out := make([]string, 0, len(occurrences))
	for _, occ := range occurrences {
		out = append(out, FormatDate(occ.Date))
	}
	return out
}

func TestExpandWeeklyIntervalTwo(t *testing.T) {
	series := Series{
		ClassID: "42",
		Anchor:  date(t, "2025-01-06"),
		Rule: Rule{
			Frequency:   FrequencyWeekly,
			Interval:    2,
			Termination: TerminationForever,
			Weekdays:    []time.Weekday{time.Wednesday, time.Monday},
		},
	}

	got := Expand(series, date(t, "2025-01-01"), date(t, "2025-01-25"))

	assert.Equal(t, []string{"2025-01-06", "2025-01-08", "2025-01-20", "2025-01-22"}, dates(got))
	assert.Equal(t, "2025-01-06_42", got[0].SessionKey)
}

func TestExpandWeeklySkipsDaysBeforeAnchor(t *testing.T) {
	series := Series{
		ClassID: "7",
		Anchor:  date(t, "2025-01-08"),
		Rule: Rule{
			Frequency: FrequencyWeekly,
			Weekdays:  []time.Weekday{time.Monday, time.Wednesday},
		},
	}

	got := Expand(series, date(t, "2025-01-01"), date(t, "2025-01-14"))

	assert.Equal(t, []string{"2025-01-08", "2025-01-13"}, dates(got))
}

func TestExpandMonthlyDay31SkipsShortMonths(t *testing.T) {
	series := Series{
		ClassID: "1",
		Anchor:  date(t, "2025-01-31"),
		Rule:    Rule{Frequency: FrequencyMonthly, Interval: 1, MonthDay: 31},
	}

	got := Expand(series, date(t, "2025-01-01"), date(t, "2025-08-31"))

	assert.Equal(t, []string{"2025-01-31", "2025-03-31", "2025-05-31", "2025-07-31", "2025-08-31"}, dates(got))
}

func TestExpandMonthlyOrdinal(t *testing.T) {
	lastFriday := Series{
		ClassID: "1",
		Anchor:  date(t, "2025-01-01"),
		Rule:    Rule{Frequency: FrequencyMonthly, Ordinal: OrdinalLast, OrdinalDay: SelectFriday},
	}
	assert.Equal(t,
		[]string{"2025-01-31", "2025-02-28", "2025-03-28"},
		dates(Expand(lastFriday, date(t, "2025-01-01"), date(t, "2025-03-31"))),
	)

	secondWeekday := Series{
		ClassID: "1",
		Anchor:  date(t, "2025-02-01"),
		Rule:    Rule{Frequency: FrequencyMonthly, Ordinal: OrdinalSecond, OrdinalDay: SelectWeekday},
	}
	assert.Equal(t,
		[]string{"2025-02-04"},
		dates(Expand(secondWeekday, date(t, "2025-02-01"), date(t, "2025-02-28"))),
	)
}

func TestExpandYearly(t *testing.T) {
	series := Series{
		ClassID: "1",
		Anchor:  date(t, "2024-02-29"),
		Rule:    Rule{Frequency: FrequencyYearly, MonthDay: 29, Termination: TerminationAfterOccurrences, Count: 2},
	}

	got := Expand(series, date(t, "2024-01-01"), date(t, "2033-01-01"))

	assert.Equal(t, []string{"2024-02-29", "2028-02-29"}, dates(got))
}

func TestExpandAfterOccurrencesYieldsExactCount(t *testing.T) {
	series := Series{
		ClassID: "9",
		Anchor:  date(t, "2025-03-01"),
		Rule:    Rule{Frequency: FrequencyDaily, Termination: TerminationAfterOccurrences, Count: 3},
	}

	got := Expand(series, date(t, "2025-03-01"), time.Time{})

	assert.Equal(t, []string{"2025-03-01", "2025-03-02", "2025-03-03"}, dates(got))
}

func TestExpandAfterOccurrencesCountsOnlyEmitted(t *testing.T) {
	series := Series{
		ClassID: "9",
		Anchor:  date(t, "2024-12-01"),
		Rule:    Rule{Frequency: FrequencyDaily, Interval: 2, Termination: TerminationAfterOccurrences, Count: 3},
	}

	got := Expand(series, date(t, "2025-01-10"), time.Time{})

	assert.Equal(t, []string{"2025-01-10", "2025-01-12", "2025-01-14"}, dates(got))
}

func TestExpandUntilDate(t *testing.T) {
	until := date(t, "2025-01-05")
	series := Series{
		ClassID: "3",
		Anchor:  date(t, "2025-01-01"),
		Rule:    Rule{Frequency: FrequencyDaily, Termination: TerminationUntilDate, Until: &until},
	}

	got := Expand(series, date(t, "2025-01-03"), date(t, "2025-02-01"))

	assert.Equal(t, []string{"2025-01-03", "2025-01-04", "2025-01-05"}, dates(got))
}

func TestExpandForeverCappedAtOneYear(t *testing.T) {
	series := Series{
		ClassID: "3",
		Anchor:  date(t, "2025-01-01"),
		Rule:    Rule{Frequency: FrequencyDaily},
	}

	got := Expand(series, date(t, "2025-01-01"), date(t, "2030-01-01"))

	require.NotEmpty(t, got)
	assert.Equal(t, "2026-01-01", FormatDate(got[len(got)-1].Date))
	assert.Len(t, got, 366)
}

func TestExpandNoneEmitsAnchorOnly(t *testing.T) {
	series := Series{ClassID: "5", Anchor: date(t, "2025-06-01")}

	assert.Equal(t, []string{"2025-06-01"}, dates(Expand(series, date(t, "2025-05-01"), time.Time{})))
	assert.Empty(t, Expand(series, date(t, "2025-06-02"), time.Time{}))
}

func TestExpandIsDeterministic(t *testing.T) {
	series := Series{
		ClassID: "11",
		Anchor:  date(t, "2025-01-06"),
		Rule: Rule{
			Frequency: FrequencyWeekly,
			Weekdays:  []time.Weekday{time.Friday, time.Tuesday},
		},
	}
	today := date(t, "2025-02-01")

	first := Expand(series, today, time.Time{})
	second := Expand(series, today, time.Time{})

	assert.Equal(t, first, second)
}

func TestExpandIgnoresTimeOfDay(t *testing.T) {
	series := Series{ClassID: "5", Anchor: time.Date(2025, 6, 1, 18, 30, 0, 0, time.UTC)}

	got := Expand(series, time.Date(2025, 6, 1, 23, 59, 0, 0, time.UTC), time.Time{})

	require.Len(t, got, 1)
	assert.Equal(t, "2025-06-01_5", got[0].SessionKey)
}

func TestContains(t *testing.T) {
	series := Series{
		ClassID: "42",
		Anchor:  date(t, "2025-01-06"),
		Rule: Rule{
			Frequency: FrequencyWeekly,
			Interval:  2,
			Weekdays:  []time.Weekday{time.Monday, time.Wednesday},
		},
	}
	today := date(t, "2025-01-01")

	assert.True(t, Contains(series, today, date(t, "2025-01-20")))
	assert.False(t, Contains(series, today, date(t, "2025-01-13")))
	assert.False(t, Contains(series, date(t, "2025-01-21"), date(t, "2025-01-20")))
}

func TestSessionKeyStable(t *testing.T) {
	morning := time.Date(2025, 1, 6, 7, 0, 0, 0, time.UTC)
	evening := time.Date(2025, 1, 6, 21, 0, 0, 0, time.UTC)

	assert.Equal(t, "2025-01-06_123", SessionKey("123", morning))
	assert.Equal(t, SessionKey("123", morning), SessionKey("123", evening))

	parsed, classID, err := ParseSessionKey("2025-01-06_123")
	require.NoError(t, err)
	assert.Equal(t, "123", classID)
	assert.Equal(t, date(t, "2025-01-06"), parsed)

	for _, bad := range []string{"", "2025-01-06", "2025-01-06-123", "2025-13-06_1", "2025-01-06_"} {
		_, _, err := ParseSessionKey(bad)
		assert.ErrorIs(t, err, ErrInvalidSessionKey, bad)
	}
}

func TestValidate(t *testing.T) {
	anchor := date(t, "2025-01-06")
	before := date(t, "2025-01-01")

	cases := []struct {
		name string
		rule Rule
		want error
	}{
		{"daily", Rule{Frequency: FrequencyDaily}, nil},
		{"unknown frequency", Rule{Frequency: "hourly"}, ErrInvalidFrequency},
		{"negative interval", Rule{Frequency: FrequencyDaily, Interval: -1}, ErrInvalidInterval},
		{"unknown termination", Rule{Frequency: FrequencyDaily, Termination: "never"}, ErrInvalidTermination},
		{"until missing", Rule{Frequency: FrequencyDaily, Termination: TerminationUntilDate}, ErrInvalidUntil},
		{"until before anchor", Rule{Frequency: FrequencyDaily, Termination: TerminationUntilDate, Until: &before}, ErrInvalidUntil},
		{"count missing", Rule{Frequency: FrequencyDaily, Termination: TerminationAfterOccurrences}, ErrInvalidCount},
		{"weekly without days", Rule{Frequency: FrequencyWeekly}, ErrInvalidWeekdays},
		{"weekly bad day", Rule{Frequency: FrequencyWeekly, Weekdays: []time.Weekday{9}}, ErrInvalidWeekdays},
		{"monthly both selectors", Rule{Frequency: FrequencyMonthly, MonthDay: 3, Ordinal: OrdinalFirst, OrdinalDay: SelectDay}, ErrAmbiguousMonthlyRule},
		{"monthly no selector", Rule{Frequency: FrequencyMonthly}, ErrMissingMonthlySelector},
		{"monthly day 32", Rule{Frequency: FrequencyMonthly, MonthDay: 32}, ErrInvalidMonthDay},
		{"monthly bad ordinal", Rule{Frequency: FrequencyMonthly, Ordinal: "fifth", OrdinalDay: SelectDay}, ErrInvalidOrdinal},
		{"monthly bad selector", Rule{Frequency: FrequencyMonthly, Ordinal: OrdinalLast, OrdinalDay: "holiday"}, ErrInvalidDaySelector},
		{"yearly ordinal", Rule{Frequency: FrequencyYearly, Ordinal: OrdinalLast, OrdinalDay: SelectWeekend}, nil},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := Validate(anchor, tc.rule)
			if tc.want == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, ErrInvalidRule)
			assert.ErrorIs(t, err, tc.want)
			var ruleErr *RuleError
			assert.True(t, errors.As(err, &ruleErr))
		})
	}
}
