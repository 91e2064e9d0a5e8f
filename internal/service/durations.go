package service

import (
	"fmt"
	"strings"
	"time"

	"github.com/pageza/recipeshare/backend/internal/apperror"
	"github.com/sosodev/duration"
)

// parseDuration parses an ISO-8601 duration such as PT1H30M. Negative and
// malformed values fail with a ValidationError.
func parseDuration(op, field, value string) (time.Duration, error) {
	d, err := duration.Parse(strings.TrimSpace(value))
	if err != nil {
		return 0, apperror.Validation(op, "%s %q is not an ISO-8601 duration", field, value)
	}
	td := d.ToTimeDuration()
	if td < 0 {
		return 0, apperror.Validation(op, "%s %q must not be negative", field, value)
	}
	return td, nil
}

// formatDuration renders d as PT#H#M#S, omitting zero components. Fractional
// seconds keep their significant digits (PT0.9S). Zero is PT0S.
func formatDuration(d time.Duration) string {
	if d <= 0 {
		return "PT0S"
	}
	var b strings.Builder
	b.WriteString("PT")
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	s := d / time.Second
	frac := d - s*time.Second
	if h > 0 {
		fmt.Fprintf(&b, "%dH", h)
	}
	if m > 0 {
		fmt.Fprintf(&b, "%dM", m)
	}
	switch {
	case frac > 0:
		fmt.Fprintf(&b, "%d.%sS", s, strings.TrimRight(fmt.Sprintf("%09d", int64(frac)), "0"))
	case s > 0:
		fmt.Fprintf(&b, "%dS", s)
	case h == 0 && m == 0:
		b.WriteString("0S")
	}
	return b.String()
}

// totalTime sums the cook and prep durations, treating nil as zero. It
// returns nil when both are nil.
func totalTime(op string, cook, prep *string) (*string, error) {
	if cook == nil && prep == nil {
		return nil, nil
	}
	var sum time.Duration
	for _, side := range []struct {
		field string
		value *string
	}{{"cook_time", cook}, {"prep_time", prep}} {
		if side.value == nil {
			continue
		}
		d, err := parseDuration(op, side.field, *side.value)
		if err != nil {
			return nil, err
		}
		sum += d
	}
	total := formatDuration(sum)
	return &total, nil
}
