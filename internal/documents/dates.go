package documents

import (
	"strings"
	"time"
)

// Layouts CloudStack uses for eventDateTime and VM creation dates
var dateLayouts = []string{
	"2006-01-02 15:04:05 -0700",
	"2006-01-02T15:04:05-0700",
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
}

// ParseDate parses a CloudStack date. Dates without an offset are read in the
// local zone. An empty or unparsable value yields fallback and false.
func ParseDate(value string, fallback time.Time) (time.Time, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return fallback, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.ParseInLocation(layout, value, time.Local); err == nil {
			return t, true
		}
	}
	return fallback, false
}
