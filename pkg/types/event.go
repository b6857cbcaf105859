package types

import (
	"encoding/json"
	"errors"
	"strings"
)

// RawEvent is a CloudStack event bus notification
type RawEvent struct {
	Event         string `json:"event" yaml:"event"`
	Resource      string `json:"resource,omitempty" yaml:"resource,omitempty"`
	Status        string `json:"status,omitempty" yaml:"status,omitempty"`
	ID            string `json:"id,omitempty" yaml:"id,omitempty"`
	EntityUUID    string `json:"entityuuid,omitempty" yaml:"entityuuid,omitempty"`
	EventDateTime string `json:"eventDateTime,omitempty" yaml:"eventDateTime,omitempty"`
}

// ParseRawEvent decodes a message body into a RawEvent.
// Bodies that are valid JSON but not an object are rejected.
func ParseRawEvent(body []byte) (RawEvent, error) {
	var event RawEvent
	trimmed := strings.TrimSpace(string(body))
	if !strings.HasPrefix(trimmed, "{") {
		return event, errors.New("event body is not a JSON object")
	}
	if err := json.Unmarshal(body, &event); err != nil {
		return event, err
	}
	return event, nil
}

// String returns a short representation used in log lines
func (e RawEvent) String() string {
	var sb strings.Builder
	sb.WriteString(e.Event)
	if e.Resource != "" {
		sb.WriteString(" " + e.Resource)
	}
	if e.Status != "" {
		sb.WriteString(" [" + e.Status + "]")
	}
	if e.ID != "" {
		sb.WriteString(" id=" + e.ID)
	}
	if e.EntityUUID != "" {
		sb.WriteString(" entity=" + e.EntityUUID)
	}
	return sb.String()
}
