package recurrence

import "errors"

var (
	ErrInvalidRule            = errors.New("invalid_rule")
	ErrInvalidFrequency       = errors.New("invalid_frequency")
	ErrInvalidInterval        = errors.New("invalid_interval")
	ErrInvalidTermination     = errors.New("invalid_termination")
	ErrInvalidUntil           = errors.New("invalid_until")
	ErrInvalidCount           = errors.New("invalid_count")
	ErrInvalidWeekdays        = errors.New("invalid_weekdays")
	ErrInvalidMonthDay        = errors.New("invalid_month_day")
	ErrInvalidOrdinal         = errors.New("invalid_ordinal")
	ErrInvalidDaySelector     = errors.New("invalid_day_selector")
	ErrAmbiguousMonthlyRule   = errors.New("ambiguous_monthly_rule")
	ErrMissingMonthlySelector = errors.New("missing_monthly_selector")
	ErrInvalidAnchor          = errors.New("invalid_anchor")
	ErrInvalidSessionKey      = errors.New("invalid_session_key")
)

// RuleError reports the offending field of a rejected rule. It matches both
// ErrInvalidRule and the field-specific sentinel under errors.Is.
type RuleError struct {
	Field string
	Err   error
}

func (e *RuleError) Error() string {
	if e == nil || e.Err == nil {
		return ErrInvalidRule.Error()
	}
	return e.Err.Error()
}

func (e *RuleError) Unwrap() []error {
	return []error{ErrInvalidRule, e.Err}
}

func ruleError(field string, err error) error {
	return &RuleError{Field: field, Err: err}
}
