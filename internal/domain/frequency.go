package domain

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

// Kind identifies the cadence of a Frequency.
type Kind string

const (
	KindHourly Kind = "hourly"
	KindDaily  Kind = "daily"
	KindWeekly Kind = "weekly"
)

func (k Kind) valid() bool {
	return k == KindHourly || k == KindDaily || k == KindWeekly
}

// Frequency is a recurring point in time. Depending on Kind some fields are
// irrelevant (e.g. Second for a weekly frequency); they are stored but never
// consulted when matching.
type Frequency struct {
	Kind      Kind `json:"type" yaml:"type"`
	DayOfWeek int  `json:"day_of_week" yaml:"day_of_week"` // time.Weekday numbering, Sunday=0
	Hour      int  `json:"hour" yaml:"hour"`
	Minute    int  `json:"minute" yaml:"minute"`
	Second    int  `json:"second" yaml:"second"`
}

// FrequencyAttrs is a partial update. Nil fields keep the base value.
type FrequencyAttrs struct {
	Kind      *string `json:"type,omitempty" yaml:"type,omitempty"`
	DayOfWeek *int    `json:"day_of_week,omitempty" yaml:"day_of_week,omitempty"`
	Hour      *int    `json:"hour,omitempty" yaml:"hour,omitempty"`
	Minute    *int    `json:"minute,omitempty" yaml:"minute,omitempty"`
	Second    *int    `json:"second,omitempty" yaml:"second,omitempty"`
}

func (f Frequency) IsHourly() bool { return f.Kind == KindHourly }
func (f Frequency) IsDaily() bool  { return f.Kind == KindDaily }
func (f Frequency) IsWeekly() bool { return f.Kind == KindWeekly }

// Matches reports whether t falls on this frequency. Seconds only matter for
// hourly frequencies; daily and weekly ones match on the zeroth second, so a
// frequency fires at most once per evaluation of each wall-clock second.
func (f Frequency) Matches(t time.Time) bool {
	switch f.Kind {
	case KindHourly:
		return t.Minute() == f.Minute && t.Second() == f.Second
	case KindDaily:
		return t.Hour() == f.Hour && t.Minute() == f.Minute && t.Second() == 0
	case KindWeekly:
		return int(t.Weekday()) == f.DayOfWeek && t.Hour() == f.Hour && t.Minute() == f.Minute && t.Second() == 0
	default:
		return false
	}
}

// Attrs returns a fully populated attribute set equivalent to f.
func (f Frequency) Attrs() FrequencyAttrs {
	kind := string(f.Kind)
	dow, hour, minute, second := f.DayOfWeek, f.Hour, f.Minute, f.Second
	return FrequencyAttrs{Kind: &kind, DayOfWeek: &dow, Hour: &hour, Minute: &minute, Second: &second}
}

type fieldRange struct {
	name     string
	min, max int
}

var (
	rangeDayOfWeek = fieldRange{"day_of_week", 0, 6}
	rangeHour      = fieldRange{"hour", 0, 23}
	rangeMinute    = fieldRange{"minute", 0, 59}
	rangeSecond    = fieldRange{"second", 0, 59}
)

func relevantFields(k Kind) map[string]bool {
	switch k {
	case KindHourly:
		return map[string]bool{"minute": true, "second": true}
	case KindDaily:
		return map[string]bool{"hour": true, "minute": true}
	case KindWeekly:
		return map[string]bool{"day_of_week": true, "hour": true, "minute": true}
	}
	return nil
}

// ValidateFrequency applies attrs on top of base and validates the result.
// Out-of-range values in fields relevant to the kind are errors; irrelevant
// fields set to a non-zero value only produce warnings.
func ValidateFrequency(base Frequency, attrs FrequencyAttrs) (Frequency, []FieldWarning, error) {
	f := base
	if f.Kind == "" {
		f.Kind = KindDaily
	}
	if attrs.Kind != nil {
		f.Kind = Kind(*attrs.Kind)
	}
	if attrs.DayOfWeek != nil {
		f.DayOfWeek = *attrs.DayOfWeek
	}
	if attrs.Hour != nil {
		f.Hour = *attrs.Hour
	}
	if attrs.Minute != nil {
		f.Minute = *attrs.Minute
	}
	if attrs.Second != nil {
		f.Second = *attrs.Second
	}

	if !f.Kind.valid() {
		return f, nil, FieldErrors{{Field: "type", Message: fmt.Sprintf("must be one of hourly, daily, weekly (got %q)", f.Kind)}}
	}

	relevant := relevantFields(f.Kind)
	var (
		errs     FieldErrors
		warnings []FieldWarning
	)
	check := func(r fieldRange, v int) {
		if relevant[r.name] {
			if v < r.min || v > r.max {
				errs = append(errs, FieldError{Field: r.name, Message: fmt.Sprintf("must be between %d and %d (got %d)", r.min, r.max, v)})
			}
			return
		}
		if v != 0 {
			warnings = append(warnings, FieldWarning{Field: r.name, Message: fmt.Sprintf("ignored for %s frequencies", f.Kind)})
		}
	}
	check(rangeDayOfWeek, f.DayOfWeek)
	check(rangeHour, f.Hour)
	check(rangeMinute, f.Minute)
	check(rangeSecond, f.Second)

	if err := errs.OrNil(); err != nil {
		return f, warnings, err
	}
	return f, warnings, nil
}

var cronParser = cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// CronSpec renders f as a six-field cron expression (with seconds).
func (f Frequency) CronSpec() string {
	switch f.Kind {
	case KindHourly:
		return fmt.Sprintf("%d %d * * * *", f.Second, f.Minute)
	case KindDaily:
		return fmt.Sprintf("0 %d %d * * *", f.Minute, f.Hour)
	case KindWeekly:
		return fmt.Sprintf("0 %d %d * * %d", f.Minute, f.Hour, f.DayOfWeek)
	default:
		return ""
	}
}

// NextAfter returns the first instant strictly after t that matches f, in t's location.
// Only used for display; matching is always done with Matches.
func (f Frequency) NextAfter(t time.Time) (time.Time, error) {
	sched, err := cronParser.Parse(f.CronSpec())
	if err != nil {
		return time.Time{}, fmt.Errorf("frequency %s: %w", f, err)
	}
	return sched.Next(t), nil
}

func (f Frequency) String() string {
	switch f.Kind {
	case KindHourly:
		return fmt.Sprintf("Hourly at :%02d:%02d", f.Minute, f.Second)
	case KindDaily:
		return fmt.Sprintf("Daily at %02d:%02d", f.Hour, f.Minute)
	case KindWeekly:
		return fmt.Sprintf("Weekly on %s at %02d:%02d", time.Weekday(f.DayOfWeek), f.Hour, f.Minute)
	default:
		return fmt.Sprintf("Unknown frequency %q", string(f.Kind))
	}
}
