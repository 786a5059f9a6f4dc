package recurrence

import "time"

// Validate rejects inconsistent rules before any occurrence is generated.
// Expand assumes its input passed Validate.
func Validate(anchor time.Time, rule Rule) error {
	if anchor.IsZero() {
		return ruleError("anchor_date", ErrInvalidAnchor)
	}
	if rule.Interval < 0 {
		return ruleError("repeat_interval", ErrInvalidInterval)
	}
	r := rule.normalized()

	switch r.Frequency {
	case FrequencyNone, FrequencyDaily, FrequencyWeekly, FrequencyMonthly, FrequencyYearly:
	default:
		return ruleError("repeat_frequency", ErrInvalidFrequency)
	}

	switch r.Termination {
	case TerminationForever:
	case TerminationUntilDate:
		if r.Until == nil || r.Until.IsZero() {
			return ruleError("repeat_until", ErrInvalidUntil)
		}
		if civil(*r.Until).Before(civil(anchor)) {
			return ruleError("repeat_until", ErrInvalidUntil)
		}
	case TerminationAfterOccurrences:
		if r.Count <= 0 {
			return ruleError("repeat_count", ErrInvalidCount)
		}
	default:
		return ruleError("repeat_termination", ErrInvalidTermination)
	}

	switch r.Frequency {
	case FrequencyWeekly:
		if len(r.Weekdays) == 0 {
			return ruleError("repeat_weekdays", ErrInvalidWeekdays)
		}
		for _, day := range r.Weekdays {
			if day < time.Sunday || day > time.Saturday {
				return ruleError("repeat_weekdays", ErrInvalidWeekdays)
			}
		}
	case FrequencyMonthly, FrequencyYearly:
		return validateMonthSelector(r)
	}
	return nil
}

func validateMonthSelector(r Rule) error {
	hasDay := r.MonthDay != 0
	hasOrdinal := r.Ordinal != "" || r.OrdinalDay != ""
	switch {
	case hasDay && hasOrdinal:
		return ruleError("repeat_month_day", ErrAmbiguousMonthlyRule)
	case !hasDay && !hasOrdinal:
		return ruleError("repeat_month_day", ErrMissingMonthlySelector)
	case hasDay:
		if r.MonthDay < 1 || r.MonthDay > 31 {
			return ruleError("repeat_month_day", ErrInvalidMonthDay)
		}
		return nil
	}

	if _, ok := ordinalIndex[r.Ordinal]; !ok && r.Ordinal != OrdinalLast {
		return ruleError("repeat_ordinal", ErrInvalidOrdinal)
	}
	if _, ok := selectorMatchers[r.OrdinalDay]; !ok {
		return ruleError("repeat_ordinal_day", ErrInvalidDaySelector)
	}
	return nil
}
