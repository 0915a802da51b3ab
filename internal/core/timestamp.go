package core

import (
	"strings"
	"time"
)

// TimestampLayout is the fixed-width UTC form used for persisted dates, so that
// text ordering and chronological ordering agree.
const TimestampLayout = "2006-01-02T15:04:05.000Z"

var inputLayouts = []string{
	time.RFC3339Nano,
	TimestampLayout,
	"2006-01-02T15:04:05",
	"2006-01-02",
}

func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

func ParseTimestamp(s string) (time.Time, error) {
	t, err := time.Parse(TimestampLayout, s)
	if err != nil {
		return time.Time{}, err
	}
	return t, nil
}

// ParseDate accepts RFC 3339 timestamps or plain YYYY-MM-DD dates from user input.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range inputLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, ErrInvalidDate
}
