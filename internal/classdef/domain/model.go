package domain

import (
	"fmt"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/bwmarrin/snowflake"
	"github.com/lib/pq"
	"github.com/smallbiznis/classbook/internal/recurrence"
	"gorm.io/datatypes"
)

// ClassDefinition is a recurring class a club offers. Sessions are never
// stored; they are expanded from the embedded rule on demand.
type ClassDefinition struct {
	ID                snowflake.ID      `gorm:"primaryKey" json:"id"`
	ClubID            snowflake.ID      `gorm:"column:club_id" json:"club_id"`
	Name              string            `gorm:"column:name" json:"name"`
	Slug              string            `gorm:"column:slug" json:"slug"`
	Description       string            `gorm:"column:description" json:"description"`
	AnchorDate        time.Time         `gorm:"column:anchor_date;type:date" json:"anchor_date"`
	StartTime         string            `gorm:"column:start_time" json:"start_time"`
	DurationMinutes   int               `gorm:"column:duration_minutes" json:"duration_minutes"`
	Timezone          string            `gorm:"column:timezone" json:"timezone"`
	Capacity          int               `gorm:"column:capacity" json:"capacity"`
	PriceAmount       int64             `gorm:"column:price_amount" json:"price_amount"`
	Currency          string            `gorm:"column:currency" json:"currency"`
	RepeatFrequency   string            `gorm:"column:repeat_frequency" json:"repeat_frequency"`
	RepeatInterval    int               `gorm:"column:repeat_interval" json:"repeat_interval"`
	RepeatTermination string            `gorm:"column:repeat_termination" json:"repeat_termination"`
	RepeatUntil       *time.Time        `gorm:"column:repeat_until;type:date" json:"repeat_until,omitempty"`
	RepeatCount       int               `gorm:"column:repeat_count" json:"repeat_count"`
	RepeatWeekdays    pq.Int64Array     `gorm:"column:repeat_weekdays;type:bigint[]" json:"repeat_weekdays"`
	RepeatMonthDay    int               `gorm:"column:repeat_month_day" json:"repeat_month_day"`
	RepeatOrdinal     string            `gorm:"column:repeat_ordinal" json:"repeat_ordinal"`
	RepeatOrdinalDay  string            `gorm:"column:repeat_ordinal_day" json:"repeat_ordinal_day"`
	Metadata          datatypes.JSONMap `gorm:"column:metadata" json:"metadata"`
	DeletedAt         *time.Time        `gorm:"column:deleted_at" json:"deleted_at,omitempty"`
	CreatedAt         time.Time         `gorm:"column:created_at" json:"created_at"`
	UpdatedAt         time.Time         `gorm:"column:updated_at" json:"updated_at"`
}

func (ClassDefinition) TableName() string { return "class_definitions" }

// Rule rebuilds the recurrence rule from its columns.
func (c ClassDefinition) Rule() recurrence.Rule {
	rule := recurrence.Rule{
		Frequency:   recurrence.Frequency(c.RepeatFrequency),
		Interval:    c.RepeatInterval,
		Termination: recurrence.Termination(c.RepeatTermination),
		Count:       c.RepeatCount,
		MonthDay:    c.RepeatMonthDay,
		Ordinal:     recurrence.Ordinal(c.RepeatOrdinal),
		OrdinalDay:  recurrence.DaySelector(c.RepeatOrdinalDay),
	}
	if c.RepeatUntil != nil {
		until := recurrence.Civil(*c.RepeatUntil)
		rule.Until = &until
	}
	if len(c.RepeatWeekdays) > 0 {
		rule.Weekdays = make([]time.Weekday, 0, len(c.RepeatWeekdays))
		for _, day := range c.RepeatWeekdays {
			rule.Weekdays = append(rule.Weekdays, time.Weekday(day))
		}
	}
	return rule
}

// ApplyRule stores rule into the repeat_* columns.
func (c *ClassDefinition) ApplyRule(rule recurrence.Rule) {
	c.RepeatFrequency = string(rule.Frequency)
	if c.RepeatFrequency == "" {
		c.RepeatFrequency = string(recurrence.FrequencyNone)
	}
	c.RepeatInterval = rule.Interval
	if c.RepeatInterval <= 0 {
		c.RepeatInterval = 1
	}
	c.RepeatTermination = string(rule.Termination)
	if c.RepeatTermination == "" {
		c.RepeatTermination = string(recurrence.TerminationForever)
	}
	c.RepeatUntil = nil
	if rule.Until != nil {
		until := recurrence.Civil(*rule.Until)
		c.RepeatUntil = &until
	}
	c.RepeatCount = rule.Count
	c.RepeatWeekdays = pq.Int64Array{}
	for _, day := range rule.Weekdays {
		c.RepeatWeekdays = append(c.RepeatWeekdays, int64(day))
	}
	c.RepeatMonthDay = rule.MonthDay
	c.RepeatOrdinal = string(rule.Ordinal)
	c.RepeatOrdinalDay = string(rule.OrdinalDay)
}

func (c ClassDefinition) Series() recurrence.Series {
	return recurrence.Series{
		ClassID: c.ID.String(),
		Anchor:  recurrence.Civil(c.AnchorDate),
		Rule:    c.Rule(),
	}
}

// SessionStart returns the instant the session on date begins, in the
// class's timezone.
func (c ClassDefinition) SessionStart(date time.Time) (time.Time, error) {
	loc, err := LoadTimezone(c.Timezone)
	if err != nil {
		return time.Time{}, err
	}
	hour, minute, err := ParseStartTime(c.StartTime)
	if err != nil {
		return time.Time{}, err
	}
	day := recurrence.Civil(date)
	return time.Date(day.Year(), day.Month(), day.Day(), hour, minute, 0, 0, loc), nil
}

func (c ClassDefinition) SessionEnd(date time.Time) (time.Time, error) {
	start, err := c.SessionStart(date)
	if err != nil {
		return time.Time{}, err
	}
	return start.Add(time.Duration(c.DurationMinutes) * time.Minute), nil
}

func LoadTimezone(name string) (*time.Location, error) {
	name = strings.TrimSpace(name)
	if name == "" || strings.EqualFold(name, "utc") {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, ErrInvalidTimezone
	}
	return loc, nil
}

// ParseStartTime accepts HH:MM in 24-hour form.
func ParseStartTime(value string) (int, int, error) {
	parsed, err := time.Parse("15:04", strings.TrimSpace(value))
	if err != nil {
		return 0, 0, fmt.Errorf("%w: %q", ErrInvalidStartTime, value)
	}
	return parsed.Hour(), parsed.Minute(), nil
}
