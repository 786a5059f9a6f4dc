package recurrence

import (
	"sort"
	"time"
)

// maxSteps bounds the generator loop for rules that rarely or never match,
// such as a yearly rule pinned to day 31 of a short month.
const maxSteps = 20000

var ordinalIndex = map[Ordinal]int{
	OrdinalFirst:  0,
	OrdinalSecond: 1,
	OrdinalThird:  2,
	OrdinalFourth: 3,
}

var selectorMatchers = map[DaySelector]func(time.Weekday) bool{
	SelectMonday:    func(d time.Weekday) bool { return d == time.Monday },
	SelectTuesday:   func(d time.Weekday) bool { return d == time.Tuesday },
	SelectWednesday: func(d time.Weekday) bool { return d == time.Wednesday },
	SelectThursday:  func(d time.Weekday) bool { return d == time.Thursday },
	SelectFriday:    func(d time.Weekday) bool { return d == time.Friday },
	SelectSaturday:  func(d time.Weekday) bool { return d == time.Saturday },
	SelectSunday:    func(d time.Weekday) bool { return d == time.Sunday },
	SelectDay:       func(time.Weekday) bool { return true },
	SelectWeekday:   func(d time.Weekday) bool { return d != time.Saturday && d != time.Sunday },
	SelectWeekend:   func(d time.Weekday) bool { return d == time.Saturday || d == time.Sunday },
}

// Expand generates the occurrences of a series between today and windowEnd,
// both inclusive and compared as calendar dates.
//
// Behaviour:
//   - a zero windowEnd means one year after today
//   - forever rules never look further than one year after today
//   - until_date rules stop at the until date
//   - after_occurrences counts only the instances that are emitted, so past
//     instances do not consume the budget
//   - dates before the anchor are never emitted
//
// The result is sorted ascending and depends only on its arguments.
func Expand(series Series, today, windowEnd time.Time) []Occurrence {
	if series.Anchor.IsZero() {
		return nil
	}
	rule := series.Rule.normalized()
	e := &emitter{
		classID: series.ClassID,
		anchor:  civil(series.Anchor),
		today:   civil(today),
		end:     horizon(rule, civil(today), windowEnd),
	}
	if rule.Termination == TerminationAfterOccurrences {
		e.limit = rule.Count
	}
	if e.end.Before(e.today) {
		return nil
	}

	switch rule.Frequency {
	case FrequencyNone:
		e.offer(e.anchor)
	case FrequencyDaily:
		expandDaily(e, rule)
	case FrequencyWeekly:
		expandWeekly(e, rule)
	case FrequencyMonthly:
		expandMonthly(e, rule, rule.Interval)
	case FrequencyYearly:
		expandMonthly(e, rule, rule.Interval*12)
	}
	return e.out
}

// Contains reports whether date is one of the occurrences Expand would emit.
func Contains(series Series, today, date time.Time) bool {
	target := civil(date)
	if target.Before(civil(today)) {
		return false
	}
	occurrences := Expand(series, today, target)
	if len(occurrences) == 0 {
		return false
	}
	return occurrences[len(occurrences)-1].Date.Equal(target)
}

type emitter struct {
	classID string
	anchor  time.Time
	today   time.Time
	end     time.Time
	limit   int
	out     []Occurrence
}

// offer records date when it falls inside the window and reports whether
// generation must stop. Callers offer dates in ascending order.
func (e *emitter) offer(date time.Time) bool {
	if date.After(e.end) {
		return true
	}
	if date.Before(e.anchor) || date.Before(e.today) {
		return false
	}
	e.out = append(e.out, Occurrence{Date: date, SessionKey: SessionKey(e.classID, date)})
	return e.limit > 0 && len(e.out) >= e.limit
}

func horizon(rule Rule, today, windowEnd time.Time) time.Time {
	limit := today.AddDate(1, 0, 0)
	end := limit
	if !windowEnd.IsZero() {
		end = civil(windowEnd)
	}
	if rule.Termination == TerminationForever && end.After(limit) {
		end = limit
	}
	if rule.Termination == TerminationUntilDate && rule.Until != nil {
		if until := civil(*rule.Until); until.Before(end) {
			end = until
		}
	}
	return end
}

func expandDaily(e *emitter, rule Rule) {
	step := rule.Interval
	current := e.anchor
	if e.today.After(current) {
		skip := daysBetween(current, e.today) / step
		current = current.AddDate(0, 0, skip*step)
	}
	for i := 0; i < maxSteps; i++ {
		if e.offer(current) {
			return
		}
		current = current.AddDate(0, 0, step)
	}
}

func expandWeekly(e *emitter, rule Rule) {
	days := isoOrdered(rule.Weekdays)
	if len(days) == 0 {
		return
	}
	stride := rule.Interval * 7
	week := weekStart(e.anchor)
	if start := weekStart(e.today); start.After(week) {
		skip := daysBetween(week, start) / stride
		week = week.AddDate(0, 0, skip*stride)
	}
	for i := 0; i < maxSteps; i++ {
		if week.After(e.end) {
			return
		}
		for _, day := range days {
			if e.offer(week.AddDate(0, 0, isoIndex(day))) {
				return
			}
		}
		week = week.AddDate(0, 0, stride)
	}
}

// expandMonthly steps by month index instead of AddDate so that a day-31
// anchor does not drift into the following month.
func expandMonthly(e *emitter, rule Rule, stride int) {
	index := monthIndex(e.anchor)
	if todayIndex := monthIndex(e.today); todayIndex > index {
		index += ((todayIndex - index) / stride) * stride
	}
	for i := 0; i < maxSteps; i++ {
		year, month := index/12, time.Month(index%12+1)
		if time.Date(year, month, 1, 0, 0, 0, 0, time.UTC).After(e.end) {
			return
		}
		if date, ok := resolveMonthDay(rule, year, month); ok {
			if e.offer(date) {
				return
			}
		}
		index += stride
	}
}

func resolveMonthDay(rule Rule, year int, month time.Month) (time.Time, bool) {
	length := daysIn(year, month)
	if rule.MonthDay > 0 {
		if rule.MonthDay > length {
			return time.Time{}, false
		}
		return time.Date(year, month, rule.MonthDay, 0, 0, 0, 0, time.UTC), true
	}

	match, ok := selectorMatchers[rule.OrdinalDay]
	if !ok {
		return time.Time{}, false
	}
	candidates := make([]time.Time, 0, length)
	for day := 1; day <= length; day++ {
		date := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
		if match(date.Weekday()) {
			candidates = append(candidates, date)
		}
	}
	if len(candidates) == 0 {
		return time.Time{}, false
	}
	if rule.Ordinal == OrdinalLast {
		return candidates[len(candidates)-1], true
	}
	pos, ok := ordinalIndex[rule.Ordinal]
	if !ok || pos >= len(candidates) {
		return time.Time{}, false
	}
	return candidates[pos], true
}

// civil drops the time of day, keeping the calendar date as seen in t's location.
func civil(t time.Time) time.Time {
	year, month, day := t.Date()
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

func daysBetween(from, to time.Time) int {
	return int(to.Sub(from).Hours() / 24)
}

func daysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

func monthIndex(t time.Time) int {
	return t.Year()*12 + int(t.Month()) - 1
}

// isoIndex maps Monday to 0 and Sunday to 6.
func isoIndex(day time.Weekday) int {
	return (int(day) + 6) % 7
}

func weekStart(t time.Time) time.Time {
	return t.AddDate(0, 0, -isoIndex(t.Weekday()))
}

func isoOrdered(days []time.Weekday) []time.Weekday {
	seen := make(map[time.Weekday]struct{}, len(days))
	out := make([]time.Weekday, 0, len(days))
	for _, day := range days {
		if day < time.Sunday || day > time.Saturday {
			continue
		}
		if _, ok := seen[day]; ok {
			continue
		}
		seen[day] = struct{}{}
		out = append(out, day)
	}
	sort.Slice(out, func(i, j int) bool { return isoIndex(out[i]) < isoIndex(out[j]) })
	return out
}
