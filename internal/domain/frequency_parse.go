package domain

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ParseFrequencySpec parses the compact notation used on the command line.
//
// Supported forms:
//   - "hourly", "hourly:M", "hourly:M:S"
//   - "daily", "daily:H", "daily:H:M"
//   - "weekly:D", "weekly:D:H", "weekly:D:H:M" where D is 0-6 or a weekday name ("mon", "Monday")
//
// Range checks are left to ValidateFrequency.
func ParseFrequencySpec(raw string) (FrequencyAttrs, error) {
	s := strings.ToLower(strings.TrimSpace(raw))
	if s == "" {
		return FrequencyAttrs{}, fmt.Errorf("frequency required")
	}
	parts := strings.Split(s, ":")
	kind := parts[0]
	rest := parts[1:]

	attrs := FrequencyAttrs{Kind: &kind}
	var fields []**int
	switch Kind(kind) {
	case KindHourly:
		fields = []**int{&attrs.Minute, &attrs.Second}
	case KindDaily:
		fields = []**int{&attrs.Hour, &attrs.Minute}
	case KindWeekly:
		if len(rest) == 0 {
			return FrequencyAttrs{}, fmt.Errorf("weekly frequency needs a day, e.g. weekly:mon:9")
		}
		dow, err := parseWeekday(rest[0])
		if err != nil {
			return FrequencyAttrs{}, err
		}
		attrs.DayOfWeek = &dow
		rest = rest[1:]
		fields = []**int{&attrs.Hour, &attrs.Minute}
	default:
		return FrequencyAttrs{}, fmt.Errorf("unknown frequency %q (want hourly, daily or weekly)", parts[0])
	}

	if len(rest) > len(fields) {
		return FrequencyAttrs{}, fmt.Errorf("too many components in %q", raw)
	}
	for i, p := range rest {
		n, err := strconv.Atoi(p)
		if err != nil {
			return FrequencyAttrs{}, fmt.Errorf("invalid number %q in %q", p, raw)
		}
		v := n
		*fields[i] = &v
	}
	return attrs, nil
}

func parseWeekday(s string) (int, error) {
	if n, err := strconv.Atoi(s); err == nil {
		return n, nil
	}
	for d := time.Sunday; d <= time.Saturday; d++ {
		name := strings.ToLower(d.String())
		if s == name || s == name[:3] {
			return int(d), nil
		}
	}
	return 0, fmt.Errorf("unknown weekday %q", s)
}
