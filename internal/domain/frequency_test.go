package domain

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// 2024-01-01 is a Monday.
func at(day, hour, minute, second int) time.Time {
	return time.Date(2024, time.January, day, hour, minute, second, 0, time.UTC)
}

func TestFrequencyMatchesWeeklyScenario(t *testing.T) {
	f := Frequency{Kind: KindWeekly, DayOfWeek: int(time.Monday), Hour: 9, Minute: 0}

	assert.True(t, f.Matches(at(1, 9, 0, 0)), "Mon 09:00:00")
	assert.False(t, f.Matches(at(1, 9, 0, 1)), "Mon 09:00:01")
	assert.False(t, f.Matches(at(1, 9, 1, 0)), "Mon 09:01:00")
	assert.False(t, f.Matches(at(2, 9, 0, 0)), "Tue 09:00:00")
}

func TestFrequencyMatchesDaily(t *testing.T) {
	f := Frequency{Kind: KindDaily, Hour: 7, Minute: 30, Second: 45}

	assert.True(t, f.Matches(at(3, 7, 30, 0)), "second field is ignored for daily")
	assert.False(t, f.Matches(at(3, 7, 30, 45)))
	assert.False(t, f.Matches(at(3, 8, 30, 0)))
}

func TestFrequencyMatchesHourly(t *testing.T) {
	f := Frequency{Kind: KindHourly, Hour: 5, Minute: 15, Second: 30}

	for hour := 0; hour < 24; hour++ {
		assert.True(t, f.Matches(at(4, hour, 15, 30)), "hour %d", hour)
	}
	assert.False(t, f.Matches(at(4, 5, 15, 0)))
	assert.False(t, f.Matches(at(4, 5, 16, 30)))
}

// Exhaustive sweep over one week at second resolution, checked against the
// definition of each kind.
func TestFrequencyMatchesProperties(t *testing.T) {
	freqs := []Frequency{
		{Kind: KindHourly, Minute: 0, Second: 0},
		{Kind: KindHourly, Minute: 59, Second: 59},
		{Kind: KindDaily, Hour: 0, Minute: 0},
		{Kind: KindDaily, Hour: 23, Minute: 59, Second: 10},
		{Kind: KindWeekly, DayOfWeek: 0, Hour: 12, Minute: 30},
		{Kind: KindWeekly, DayOfWeek: 6, Hour: 23, Minute: 59},
	}
	start := at(1, 0, 0, 0)
	end := start.Add(7 * 24 * time.Hour)

	for _, f := range freqs {
		fires := 0
		for ts := start; ts.Before(end); ts = ts.Add(time.Second) {
			var want bool
			switch f.Kind {
			case KindHourly:
				want = ts.Minute() == f.Minute && ts.Second() == f.Second
			case KindDaily:
				want = ts.Hour() == f.Hour && ts.Minute() == f.Minute && ts.Second() == 0
			case KindWeekly:
				want = int(ts.Weekday()) == f.DayOfWeek && ts.Hour() == f.Hour && ts.Minute() == f.Minute && ts.Second() == 0
			}
			got := f.Matches(ts)
			require.Equal(t, want, got, "%s at %s", f, ts)
			require.Equal(t, got, f.Matches(ts), "matching must be idempotent")
			if got {
				fires++
			}
		}
		switch f.Kind {
		case KindHourly:
			assert.Equal(t, 7*24, fires, f.String())
		case KindDaily:
			assert.Equal(t, 7, fires, f.String())
		case KindWeekly:
			assert.Equal(t, 1, fires, f.String())
		}
	}
}

func TestFrequencyNoDoubleFireWithinMinute(t *testing.T) {
	for _, f := range []Frequency{
		{Kind: KindDaily, Hour: 10, Minute: 5},
		{Kind: KindWeekly, DayOfWeek: 1, Hour: 10, Minute: 5},
	} {
		matches := 0
		for s := 0; s < 60; s++ {
			if f.Matches(at(1, 10, 5, s)) {
				matches++
			}
		}
		assert.Equal(t, 1, matches, f.String())
	}
}

func TestFrequencyClassification(t *testing.T) {
	h := Frequency{Kind: KindHourly}
	d := Frequency{Kind: KindDaily}
	w := Frequency{Kind: KindWeekly}

	assert.True(t, h.IsHourly())
	assert.False(t, h.IsDaily())
	assert.True(t, d.IsDaily())
	assert.False(t, d.IsWeekly())
	assert.True(t, w.IsWeekly())
	assert.False(t, w.IsHourly())
}

func intp(v int) *int       { return &v }
func strp(v string) *string { return &v }

func TestValidateFrequencyDefaults(t *testing.T) {
	f, warnings, err := ValidateFrequency(Frequency{}, FrequencyAttrs{})
	require.NoError(t, err)
	assert.Empty(t, warnings)
	assert.Equal(t, Frequency{Kind: KindDaily}, f)
}

func TestValidateFrequencyRanges(t *testing.T) {
	tests := []struct {
		name   string
		attrs  FrequencyAttrs
		fields []string
	}{
		{name: "hour too high", attrs: FrequencyAttrs{Kind: strp("daily"), Hour: intp(24)}, fields: []string{"hour"}},
		{name: "minute negative", attrs: FrequencyAttrs{Kind: strp("hourly"), Minute: intp(-1)}, fields: []string{"minute"}},
		{name: "second too high", attrs: FrequencyAttrs{Kind: strp("hourly"), Second: intp(60)}, fields: []string{"second"}},
		{name: "day of week too high", attrs: FrequencyAttrs{Kind: strp("weekly"), DayOfWeek: intp(7)}, fields: []string{"day_of_week"}},
		{
			name:   "all offending fields reported",
			attrs:  FrequencyAttrs{Kind: strp("weekly"), DayOfWeek: intp(9), Hour: intp(30), Minute: intp(99)},
			fields: []string{"day_of_week", "hour", "minute"},
		},
		{name: "unknown kind", attrs: FrequencyAttrs{Kind: strp("monthly")}, fields: []string{"type"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := ValidateFrequency(Frequency{}, tt.attrs)
			require.Error(t, err)
			var fe FieldErrors
			require.ErrorAs(t, err, &fe)
			assert.Len(t, fe, len(tt.fields))
			for _, field := range tt.fields {
				assert.True(t, fe.Has(field), "missing error for %s in %v", field, fe)
			}
		})
	}
}

func TestValidateFrequencyIrrelevantFieldsWarn(t *testing.T) {
	f, warnings, err := ValidateFrequency(Frequency{}, FrequencyAttrs{
		Kind:      strp("hourly"),
		Hour:      intp(99),
		DayOfWeek: intp(3),
		Minute:    intp(10),
	})
	require.NoError(t, err)
	assert.Equal(t, 99, f.Hour, "irrelevant values are still stored")
	require.Len(t, warnings, 2)
	assert.Equal(t, "day_of_week", warnings[0].Field)
	assert.Equal(t, "hour", warnings[1].Field)
}

func TestValidateFrequencyKeepsBase(t *testing.T) {
	base := Frequency{Kind: KindWeekly, DayOfWeek: 2, Hour: 8, Minute: 15}
	f, _, err := ValidateFrequency(base, FrequencyAttrs{Hour: intp(9)})
	require.NoError(t, err)
	assert.Equal(t, Frequency{Kind: KindWeekly, DayOfWeek: 2, Hour: 9, Minute: 15}, f)
}

func TestValidateFrequencyRoundTrip(t *testing.T) {
	for _, f := range []Frequency{
		{Kind: KindHourly, Minute: 12, Second: 34},
		{Kind: KindDaily, Hour: 23, Minute: 59},
		{Kind: KindWeekly, DayOfWeek: 6, Hour: 0, Minute: 1},
	} {
		got, _, err := ValidateFrequency(Frequency{}, f.Attrs())
		require.NoError(t, err)
		assert.Equal(t, f, got)

		b, err := json.Marshal(f)
		require.NoError(t, err)
		var attrs FrequencyAttrs
		require.NoError(t, json.Unmarshal(b, &attrs))
		got, _, err = ValidateFrequency(Frequency{}, attrs)
		require.NoError(t, err)
		assert.Equal(t, f, got)
	}
}

func TestFrequencyNextAfter(t *testing.T) {
	from := at(1, 9, 0, 0) // Monday

	tests := []struct {
		f    Frequency
		want time.Time
	}{
		{Frequency{Kind: KindHourly, Minute: 30, Second: 15}, at(1, 9, 30, 15)},
		{Frequency{Kind: KindDaily, Hour: 9, Minute: 0}, at(2, 9, 0, 0)},
		{Frequency{Kind: KindWeekly, DayOfWeek: int(time.Wednesday), Hour: 7}, at(3, 7, 0, 0)},
	}
	for _, tt := range tests {
		got, err := tt.f.NextAfter(from)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, tt.f.String())
		assert.True(t, tt.f.Matches(got))
	}
}

func TestFrequencyString(t *testing.T) {
	assert.Equal(t, "Hourly at :05:00", Frequency{Kind: KindHourly, Minute: 5}.String())
	assert.Equal(t, "Daily at 09:30", Frequency{Kind: KindDaily, Hour: 9, Minute: 30}.String())
	assert.Equal(t, "Weekly on Monday at 09:00", Frequency{Kind: KindWeekly, DayOfWeek: 1, Hour: 9}.String())
}

func TestParseFrequencySpec(t *testing.T) {
	tests := []struct {
		raw  string
		want Frequency
	}{
		{"daily:9", Frequency{Kind: KindDaily, Hour: 9}},
		{"daily:21:45", Frequency{Kind: KindDaily, Hour: 21, Minute: 45}},
		{"hourly", Frequency{Kind: KindHourly}},
		{"hourly:15:30", Frequency{Kind: KindHourly, Minute: 15, Second: 30}},
		{"weekly:mon:9", Frequency{Kind: KindWeekly, DayOfWeek: 1, Hour: 9}},
		{"Weekly:Saturday:10:5", Frequency{Kind: KindWeekly, DayOfWeek: 6, Hour: 10, Minute: 5}},
		{"weekly:0", Frequency{Kind: KindWeekly}},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			attrs, err := ParseFrequencySpec(tt.raw)
			require.NoError(t, err)
			got, _, err := ValidateFrequency(Frequency{}, attrs)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseFrequencySpecInvalid(t *testing.T) {
	for _, raw := range []string{"", "monthly:1", "weekly", "weekly:funday", "daily:a", "daily:1:2:3"} {
		_, err := ParseFrequencySpec(raw)
		assert.Error(t, err, raw)
	}
}
