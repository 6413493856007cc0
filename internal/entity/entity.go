package entity

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// CompositeKey joins type and id the way every index and reference in this
// engine addresses an entity (spec glossary: "Composite key").
func CompositeKey(entityType, id string) string {
	return entityType + ":" + id
}

// SplitCompositeKey is the inverse of CompositeKey. It splits at the first
// ":" (so the id may itself contain ":"); ok is false if key has no ":" or
// either half is empty.
func SplitCompositeKey(key string) (entityType, id string, ok bool) {
	i := strings.IndexByte(key, ':')
	if i <= 0 || i == len(key)-1 {
		return "", "", false
	}
	return key[:i], key[i+1:], true
}

// Metadata tracks the bookkeeping fields every entity carries (spec §3).
type Metadata struct {
	Created       time.Time `json:"created"`
	Updated       time.Time `json:"updated"`
	Version       int64     `json:"version"`
	SchemaVersion int       `json:"schemaVersion"`
	Tags          []string  `json:"tags,omitempty"`
}

// Temporal describes an edge's optional validity interval.
type Temporal struct {
	ValidFrom time.Time  `json:"validFrom"`
	ValidTo   *time.Time `json:"validTo,omitempty"`
}

// Edge is a typed, directed, optionally weighted and time-bounded reference
// from the owning entity to another composite key (spec §3 "Edge").
// Referential integrity on Target is intentionally not enforced.
type Edge struct {
	ID         string           `json:"id"`
	Type       string           `json:"type"`
	Target     string           `json:"target"`
	Properties map[string]Value `json:"properties,omitempty"`
	Weight     *float64         `json:"weight,omitempty"`
	Temporal   *Temporal        `json:"temporal,omitempty"`
}

// Validate enforces the structural requirements of an edge before it is
// accepted by the row engine: non-empty id/type/target.
func (e *Edge) Validate() error {
	if e.ID == "" {
		return fmt.Errorf("edge id must not be empty")
	}
	if e.Type == "" {
		return fmt.Errorf("edge type must not be empty")
	}
	if e.Target == "" {
		return fmt.Errorf("edge target must not be empty")
	}
	return nil
}

// NewEdgeID generates a default edge id when the caller doesn't supply one,
// following the teacher's GenerateKey (uuid.NewV7, time-ordered).
func NewEdgeID() string {
	id, err := uuid.NewV7()
	if err != nil {
		// NewV7 only fails on an exhausted entropy source; treat as fatal
		// to the calling goroutine, same as the teacher's GenerateKey.
		panic(err)
	}
	return id.String()
}

// Entity is the unit of storage, keyed by (Type, ID): attributes, named
// document collections, outgoing edges, and metadata (spec §3).
type Entity struct {
	Type       string                 `json:"type"`
	ID         string                 `json:"id"`
	Attributes map[string]Value       `json:"attributes"`
	Documents  map[string][]map[string]Value `json:"documents"`
	Edges      []Edge                 `json:"edges"`
	Metadata   Metadata               `json:"metadata"`
}

// CompositeKey returns the e.Type:e.ID reference form.
func (e *Entity) CompositeKey() string {
	return CompositeKey(e.Type, e.ID)
}

// Normalize fills nil maps/slices with empty ones so downstream code never
// has to nil-check, per spec §4.4 saveEntity "normalizes nil
// attributes/documents/edges".
func (e *Entity) Normalize() {
	if e.Attributes == nil {
		e.Attributes = map[string]Value{}
	}
	if e.Documents == nil {
		e.Documents = map[string][]map[string]Value{}
	}
	if e.Edges == nil {
		e.Edges = []Edge{}
	}
}

// Clone returns a deep-enough copy for snapshot semantics (getEntity must
// return a snapshot, spec §4.4).
func (e *Entity) Clone() *Entity {
	if e == nil {
		return nil
	}
	out := &Entity{
		Type:     e.Type,
		ID:       e.ID,
		Metadata: e.Metadata,
	}
	out.Attributes = make(map[string]Value, len(e.Attributes))
	for k, v := range e.Attributes {
		out.Attributes[k] = v
	}
	out.Documents = make(map[string][]map[string]Value, len(e.Documents))
	for coll, docs := range e.Documents {
		cloned := make([]map[string]Value, len(docs))
		for i, doc := range docs {
			m := make(map[string]Value, len(doc))
			for k, v := range doc {
				m[k] = v
			}
			cloned[i] = m
		}
		out.Documents[coll] = cloned
	}
	out.Edges = make([]Edge, len(e.Edges))
	copy(out.Edges, e.Edges)
	if e.Metadata.Tags != nil {
		out.Metadata.Tags = append([]string(nil), e.Metadata.Tags...)
	}
	return out
}
