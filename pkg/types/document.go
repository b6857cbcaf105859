package types

import (
	"errors"
	"strings"
	"time"
)

// Action is the mutation a document asks the loader to apply
type Action string

const (
	ActionPatch  Action = "PATCH"
	ActionCreate Action = "CREATE"
	ActionUpdate Action = "UPDATE"
	ActionDelete Action = "DELETE"
	ActionClear  Action = "CLEAR"
)

// DocumentType tells whether a document targets a node or an edge collection
type DocumentType string

const (
	TypeCollections DocumentType = "collections"
	TypeEdges       DocumentType = "edges"
)

// Document is a graph mutation consumed by the loader.
// Element holds a *Element, an *Edge, an empty map or a clear filter set.
type Document struct {
	Action     Action       `json:"action" yaml:"action"`
	Collection string       `json:"collection" yaml:"collection"`
	Type       DocumentType `json:"type" yaml:"type"`
	Element    interface{}  `json:"element" yaml:"element"`
	Key        string       `json:"key,omitempty" yaml:"key,omitempty"`
}

// Validate checks if the Document is well formed
func (d *Document) Validate() error {
	switch d.Action {
	case ActionPatch, ActionCreate, ActionUpdate, ActionDelete, ActionClear:
	default:
		return errors.New("unknown document action: " + string(d.Action))
	}
	if strings.TrimSpace(d.Collection) == "" {
		return errors.New("document collection is required")
	}
	if d.Type != TypeCollections && d.Type != TypeEdges {
		return errors.New("unknown document type: " + string(d.Type))
	}
	if d.Action == ActionDelete && d.Key == "" {
		return errors.New("delete document requires a key")
	}
	return nil
}

// Property describes a node or edge property
type Property struct {
	Description string `json:"description" yaml:"description"`
}

// Element is a node body
type Element struct {
	ID                 string                 `json:"id" yaml:"id"`
	Name               string                 `json:"name" yaml:"name"`
	Provider           string                 `json:"provider" yaml:"provider"`
	Timestamp          int64                  `json:"timestamp" yaml:"timestamp"`
	Properties         map[string]interface{} `json:"properties" yaml:"properties"`
	PropertiesMetadata map[string]Property    `json:"properties_metadata" yaml:"properties_metadata"`
}

// Edge is an edge body linking two canonical node references
type Edge struct {
	ID                 string                 `json:"id" yaml:"id"`
	Provider           string                 `json:"provider" yaml:"provider"`
	Timestamp          int64                  `json:"timestamp" yaml:"timestamp"`
	From               string                 `json:"from" yaml:"from"`
	To                 string                 `json:"to" yaml:"to"`
	Properties         map[string]interface{} `json:"properties,omitempty" yaml:"properties,omitempty"`
	PropertiesMetadata map[string]Property    `json:"properties_metadata,omitempty" yaml:"properties_metadata,omitempty"`
}

// Filter is one predicate of a CLEAR document
type Filter struct {
	Field    string      `json:"field" yaml:"field"`
	Value    interface{} `json:"value" yaml:"value"`
	Operator string      `json:"operator" yaml:"operator"`
}

// ReconciliationWindow bounds what a sweep is allowed to clear
type ReconciliationWindow struct {
	Environment string    `json:"environment"`
	Provider    string    `json:"provider"`
	StartTime   time.Time `json:"start_time"`
}

// Filters returns the clear predicate for the window: elements older than
// the start time that belong to the same environment and provider.
func (w ReconciliationWindow) Filters() [][]Filter {
	return [][]Filter{{
		{Field: "timestamp", Value: w.StartTime.Unix(), Operator: "<"},
		{Field: "properties.environment", Value: w.Environment, Operator: "=="},
		{Field: "properties.iaas_provider", Value: w.Provider, Operator: "=="},
	}}
}
