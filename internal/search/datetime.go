package search

import (
	"strings"
	"time"
)

// Temporal is a parsed datetime filter: either a single instant or an
// interval with either bound open.
type Temporal struct {
	Instant *time.Time
	Start   *time.Time
	End     *time.Time
}

// IsZero reports whether no temporal constraint was given.
func (t *Temporal) IsZero() bool {
	return t == nil || (t.Instant == nil && t.Start == nil && t.End == nil)
}

// ParseDatetime parses the datetime parameter. Supported forms:
//   - "2021-06-01T12:00:00Z"        single instant
//   - "2021-01-01T00:00:00Z/2021-12-31T23:59:59Z"
//   - "2021-01-01T00:00:00Z/.."     open end
//   - "../2021-12-31T23:59:59Z"     open start
//   - ".." or "../.."               fully open (no constraint)
func ParseDatetime(dt string) (*Temporal, error) {
	if dt == "" {
		return nil, nil
	}

	if dt == ".." || dt == "../.." {
		return nil, nil
	}

	if !strings.Contains(dt, "/") {
		t, err := time.Parse(time.RFC3339, dt)
		if err != nil {
			return nil, validationErrorf("invalid datetime, expected RFC 3339: %w", err)
		}
		return &Temporal{Instant: &t}, nil
	}

	parts := strings.Split(dt, "/")
	if len(parts) != 2 {
		return nil, validationErrorf("invalid datetime interval, expected 'start/end', got: %s", dt)
	}

	var temporal Temporal
	startStr := strings.TrimSpace(parts[0])
	endStr := strings.TrimSpace(parts[1])

	if startStr != "" && startStr != ".." {
		t, err := time.Parse(time.RFC3339, startStr)
		if err != nil {
			return nil, validationErrorf("invalid interval start: %w", err)
		}
		temporal.Start = &t
	}
	if endStr != "" && endStr != ".." {
		t, err := time.Parse(time.RFC3339, endStr)
		if err != nil {
			return nil, validationErrorf("invalid interval end: %w", err)
		}
		temporal.End = &t
	}

	if temporal.Start != nil && temporal.End != nil && temporal.Start.After(*temporal.End) {
		return nil, validationErrorf("interval start (%s) must not be after end (%s)",
			temporal.Start.Format(time.RFC3339), temporal.End.Format(time.RFC3339))
	}

	return &temporal, nil
}
