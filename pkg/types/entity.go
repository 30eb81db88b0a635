package types

import (
	"fmt"
	"strings"
)

// EntityType labels an extracted entity. The set is open: custom rules may
// introduce their own upper-case labels.
type EntityType string

// Built-in entity types.
const (
	EntityPerson   EntityType = "PERSON"
	EntityOrg      EntityType = "ORG"
	EntityLocation EntityType = "LOCATION"
	EntityDate     EntityType = "DATE"
	EntityEmail    EntityType = "EMAIL"
	EntityURL      EntityType = "URL"
	EntityNumber   EntityType = "NUMBER"
	EntityPhone    EntityType = "PHONE"
	EntityCustom   EntityType = "CUSTOM"
)

// Valid reports whether t is a non-empty label of upper-case letters, digits and underscores.
func (t EntityType) Valid() bool {
	if t == "" {
		return false
	}
	for _, r := range string(t) {
		if !(r >= 'A' && r <= 'Z') && !(r >= '0' && r <= '9') && r != '_' {
			return false
		}
	}
	return true
}

// Stage identifies the recognizer stage that produced an entity.
// Lower stages have higher precision and win exact-span conflicts.
type Stage int

const (
	StageDictionary Stage = iota
	StagePatternClass
	StageHeuristic
)

var stageNames = [...]string{"dictionary", "pattern_class", "heuristic"}

func (s Stage) String() string {
	if s >= 0 && int(s) < len(stageNames) {
		return stageNames[s]
	}
	return "unknown"
}

// MarshalText implements encoding.TextMarshaler.
func (s Stage) MarshalText() ([]byte, error) {
	if s < 0 || int(s) >= len(stageNames) {
		return nil, fmt.Errorf("unknown stage %d", int(s))
	}
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Stage) UnmarshalText(text []byte) error {
	name := strings.ToLower(string(text))
	for i, n := range stageNames {
		if n == name {
			*s = Stage(i)
			return nil
		}
	}
	return fmt.Errorf("unknown stage %q", string(text))
}

// Entity is a typed span produced by the extractor.
type Entity struct {
	Type       EntityType `json:"type"`
	Span       Span       `json:"span"`
	Text       string     `json:"surface_text"`
	Confidence float64    `json:"confidence"`
	Stage      Stage      `json:"stage"`
	// Source names the dictionary, class or rule that produced the entity.
	Source     string            `json:"source,omitempty"`
	Attributes map[string]string `json:"attributes,omitempty"`
}

// ExtractionResult is the outcome of running the extractor over one buffer.
type ExtractionResult struct {
	Entities    []Entity     `json:"entities"`
	Truncated   bool         `json:"truncated"`
	Diagnostics []Diagnostic `json:"diagnostics,omitempty"`
}

// CountByType tallies entities per type.
func (r *ExtractionResult) CountByType() map[EntityType]int {
	counts := make(map[EntityType]int)
	for _, e := range r.Entities {
		counts[e.Type]++
	}
	return counts
}
