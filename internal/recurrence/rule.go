package recurrence

import (
	"strings"
	"time"
)

// Frequency is the unit a rule repeats in.
type Frequency string

const (
	FrequencyNone    Frequency = "none"
	FrequencyDaily   Frequency = "daily"
	FrequencyWeekly  Frequency = "weekly"
	FrequencyMonthly Frequency = "monthly"
	FrequencyYearly  Frequency = "yearly"
)

// Termination decides when a rule stops producing occurrences.
type Termination string

const (
	TerminationForever          Termination = "forever"
	TerminationUntilDate        Termination = "until_date"
	TerminationAfterOccurrences Termination = "after_occurrences"
)

// Ordinal picks one of the days enumerated by a DaySelector within a month.
type Ordinal string

const (
	OrdinalFirst  Ordinal = "first"
	OrdinalSecond Ordinal = "second"
	OrdinalThird  Ordinal = "third"
	OrdinalFourth Ordinal = "fourth"
	OrdinalLast   Ordinal = "last"
)

// DaySelector enumerates candidate days of a month for ordinal rules.
type DaySelector string

const (
	SelectMonday    DaySelector = "monday"
	SelectTuesday   DaySelector = "tuesday"
	SelectWednesday DaySelector = "wednesday"
	SelectThursday  DaySelector = "thursday"
	SelectFriday    DaySelector = "friday"
	SelectSaturday  DaySelector = "saturday"
	SelectSunday    DaySelector = "sunday"
	SelectDay       DaySelector = "day"
	SelectWeekday   DaySelector = "weekday"
	SelectWeekend   DaySelector = "weekend"
)

// Rule describes how a class definition repeats.
//
// Exactly one of MonthDay and (Ordinal, OrdinalDay) is used by monthly and
// yearly rules. Weekdays is used by weekly rules only.
type Rule struct {
	Frequency   Frequency
	Interval    int
	Termination Termination
	Until       *time.Time
	Count       int
	Weekdays    []time.Weekday
	MonthDay    int
	Ordinal     Ordinal
	OrdinalDay  DaySelector
}

// Series binds a rule to the class it belongs to and the date of its first occurrence.
type Series struct {
	ClassID string
	Anchor  time.Time
	Rule    Rule
}

// Occurrence is one dated instance of a series. It is computed on demand and never stored.
type Occurrence struct {
	Date       time.Time
	SessionKey string
}

func (r Rule) normalized() Rule {
	out := r
	out.Frequency = Frequency(strings.ToLower(strings.TrimSpace(string(r.Frequency))))
	if out.Frequency == "" {
		out.Frequency = FrequencyNone
	}
	out.Termination = Termination(strings.ToLower(strings.TrimSpace(string(r.Termination))))
	if out.Termination == "" {
		out.Termination = TerminationForever
	}
	if out.Interval <= 0 {
		out.Interval = 1
	}
	out.Ordinal = Ordinal(strings.ToLower(strings.TrimSpace(string(r.Ordinal))))
	out.OrdinalDay = DaySelector(strings.ToLower(strings.TrimSpace(string(r.OrdinalDay))))
	return out
}

var weekdayNames = map[string]time.Weekday{
	"sunday":    time.Sunday,
	"sun":       time.Sunday,
	"monday":    time.Monday,
	"mon":       time.Monday,
	"tuesday":   time.Tuesday,
	"tue":       time.Tuesday,
	"wednesday": time.Wednesday,
	"wed":       time.Wednesday,
	"thursday":  time.Thursday,
	"thu":       time.Thursday,
	"friday":    time.Friday,
	"fri":       time.Friday,
	"saturday":  time.Saturday,
	"sat":       time.Saturday,
}

// ParseWeekday accepts full or three-letter English weekday names.
func ParseWeekday(value string) (time.Weekday, bool) {
	day, ok := weekdayNames[strings.ToLower(strings.TrimSpace(value))]
	return day, ok
}

// WeekdayName returns the lower-case English name used on the wire.
func WeekdayName(day time.Weekday) string {
	return strings.ToLower(day.String())
}
