package connector

import (
	"strconv"
	"strings"
	"time"
)

var timestampLayouts = []string{
	time.RFC1123Z,
	time.RFC1123,
	time.RFC822Z,
	time.RFC822,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// ParseTimestamp accepts the timestamp shapes feeds actually emit: unix
// epochs (numeric or string), RFC822/1123 dates from RSS, and ISO 8601.
// Anything unparseable resolves to the current time so an item is never
// dropped over a bad date.
func ParseTimestamp(value interface{}) time.Time {
	switch v := value.(type) {
	case nil:
		return time.Now().UTC()
	case time.Time:
		return v.UTC()
	case *time.Time:
		if v == nil {
			return time.Now().UTC()
		}
		return v.UTC()
	case int:
		return time.Unix(int64(v), 0).UTC()
	case int64:
		return time.Unix(v, 0).UTC()
	case float64:
		return time.Unix(int64(v), 0).UTC()
	case string:
		return parseTimestampString(v)
	}
	return time.Now().UTC()
}

func parseTimestampString(value string) time.Time {
	stripped := strings.TrimSpace(value)
	if stripped == "" {
		return time.Now().UTC()
	}

	if epoch, err := strconv.ParseInt(stripped, 10, 64); err == nil {
		return time.Unix(epoch, 0).UTC()
	}

	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, stripped); err == nil {
			return t.UTC()
		}
	}

	return time.Now().UTC()
}
