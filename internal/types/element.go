// Package types defines the core data model shared by every layer of the
// orchestration core: Element, Dependency, Agent, Session, Pool, and the
// task-orchestrator metadata nested on tasks.
package types

import (
	"encoding/json"
	"fmt"
	"regexp"
	"time"
)

// ElementType is the closed set of discriminators for first-class
// entities in the store.
type ElementType string

const (
	ElementTask     ElementType = "task"
	ElementMessage  ElementType = "message"
	ElementDocument ElementType = "document"
	ElementEntity   ElementType = "entity"
	ElementPlan     ElementType = "plan"
	ElementWorkflow ElementType = "workflow"
	ElementPlaybook ElementType = "playbook"
	ElementChannel  ElementType = "channel"
	ElementLibrary  ElementType = "library"
	ElementTeam     ElementType = "team"
)

func (t ElementType) Valid() bool {
	switch t {
	case ElementTask, ElementMessage, ElementDocument, ElementEntity,
		ElementPlan, ElementWorkflow, ElementPlaybook, ElementChannel,
		ElementLibrary, ElementTeam:
		return true
	default:
		return false
	}
}

const (
	maxTags          = 50
	maxTagLength     = 100
	maxMetadataBytes = 64 * 1024
	reservedKeyPrefix = "_el_"
)

var tagPattern = regexp.MustCompile(`^[A-Za-z0-9_:-]+$`)

// Element is the base record shared by every domain type. Type-specific
// payloads live in Metadata rather than as embedded struct fields, so
// that Element stays a single tagged-sum representation instead of an
// open inheritance hierarchy (per design note: prefer discriminated
// union over base-class inheritance).
type Element struct {
	ID        string          `json:"id"`
	Type      ElementType     `json:"type"`
	CreatedAt time.Time       `json:"createdAt"`
	UpdatedAt time.Time       `json:"updatedAt"`
	CreatedBy string          `json:"createdBy"`
	Tags      []string        `json:"tags,omitempty"`
	Metadata  json.RawMessage `json:"metadata,omitempty"`
	DeletedAt *time.Time      `json:"deletedAt,omitempty"`
}

// IsTombstone reports whether the element has been soft-deleted.
func (e *Element) IsTombstone() bool {
	return e.DeletedAt != nil
}

// Validate checks every invariant from the data model section: id
// present, type in the closed set, updatedAt >= createdAt, no duplicate
// tags, tags matching the allowed pattern and length, and metadata
// within its size bound with no reserved-prefix keys.
func (e *Element) Validate() error {
	if e.ID == "" {
		return fmt.Errorf("id is required")
	}
	if !e.Type.Valid() {
		return fmt.Errorf("invalid element type: %q", e.Type)
	}
	if e.UpdatedAt.Before(e.CreatedAt) {
		return fmt.Errorf("updatedAt must not precede createdAt")
	}
	if len(e.Tags) > maxTags {
		return fmt.Errorf("too many tags: %d (max %d)", len(e.Tags), maxTags)
	}
	seen := make(map[string]bool, len(e.Tags))
	for _, tag := range e.Tags {
		if len(tag) > maxTagLength {
			return fmt.Errorf("tag %q exceeds %d characters", tag, maxTagLength)
		}
		if !tagPattern.MatchString(tag) {
			return fmt.Errorf("tag %q contains invalid characters", tag)
		}
		if seen[tag] {
			return fmt.Errorf("duplicate tag %q", tag)
		}
		seen[tag] = true
	}
	if len(e.Metadata) > 0 {
		if len(e.Metadata) > maxMetadataBytes {
			return fmt.Errorf("metadata exceeds %d bytes", maxMetadataBytes)
		}
		var m map[string]json.RawMessage
		if err := json.Unmarshal(e.Metadata, &m); err != nil {
			return fmt.Errorf("metadata must be a JSON object: %w", err)
		}
		for k := range m {
			if len(k) >= len(reservedKeyPrefix) && k[:len(reservedKeyPrefix)] == reservedKeyPrefix {
				return fmt.Errorf("metadata key %q uses reserved prefix %q", k, reservedKeyPrefix)
			}
		}
	}
	return nil
}

// MetadataValue unmarshals a single metadata key into dst. It returns
// false (no error) if the key is absent.
func (e *Element) MetadataValue(key string, dst interface{}) (bool, error) {
	if len(e.Metadata) == 0 {
		return false, nil
	}
	var m map[string]json.RawMessage
	if err := json.Unmarshal(e.Metadata, &m); err != nil {
		return false, err
	}
	raw, ok := m[key]
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return false, err
	}
	return true, nil
}
