// Package rostergraph persists typed entities and directed, typed
// relationship edges in an embedded SQLite database. Entities are keyed
// by kind-qualified external ID ("kind:externalId"); edges are unique per
// (type, from, to) triple. All queries are parameterized.
package rostergraph

import (
	"errors"
	"fmt"
	"strings"
)

// Entity kinds stored in the entity table.
const (
	KindUser   = "user"
	KindCourse = "course"
	KindWork   = "work"
	KindCell   = "cell"
	KindToken  = "token"
)

// Edge types. Directions follow the canonical schema:
// user edges point at the course, is_in points from student to cell,
// belongs_to from cell to its teacher, is_from from cell or work to the
// course, is_assigned from student to work.
const (
	EdgeOwner     = "is_owner"
	EdgeTeacher   = "is_teacher"
	EdgeStudent   = "is_student"
	EdgeCoord     = "is_coord"
	EdgeFrom      = "is_from"
	EdgeBelongsTo = "belongs_to"
	EdgeIn        = "is_in"
	EdgeAssigned  = "is_assigned"
)

// Sentinel errors.
var (
	ErrNotFound   = errors.New("rostergraph: not found")
	ErrInvalidRef = errors.New("rostergraph: invalid entity reference")
)

// Ref identifies an entity by kind and external key.
type Ref struct {
	Kind string
	Key  string
}

// NewRef is a convenience constructor.
func NewRef(kind, key string) Ref {
	return Ref{Kind: kind, Key: key}
}

// ID returns the persisted "kind:key" identifier.
func (r Ref) ID() string {
	return r.Kind + ":" + r.Key
}

// IsZero reports whether the reference is unset (wildcard in filters).
func (r Ref) IsZero() bool {
	return r.Kind == "" && r.Key == ""
}

func (r Ref) validate() error {
	if r.Kind == "" || r.Key == "" {
		return fmt.Errorf("%w: kind=%q key=%q", ErrInvalidRef, r.Kind, r.Key)
	}

	return nil
}

// ParseID splits a persisted "kind:key" identifier back into a Ref.
// Keys may themselves contain colons; only the first separator counts.
func ParseID(id string) (Ref, error) {
	kind, key, ok := strings.Cut(id, ":")
	if !ok || kind == "" || key == "" {
		return Ref{}, fmt.Errorf("%w: %q", ErrInvalidRef, id)
	}

	return Ref{Kind: kind, Key: key}, nil
}

// Attrs is the schemaless attribute payload of an entity or edge,
// stored as JSON.
type Attrs map[string]any

// String returns the named attribute as a string, or "" if absent or of
// another type.
func (a Attrs) String(key string) string {
	s, _ := a[key].(string)
	return s
}

// Float returns the named attribute as a float64 and whether it was
// present. JSON numbers always decode as float64.
func (a Attrs) Float(key string) (float64, bool) {
	f, ok := a[key].(float64)
	return f, ok
}

// Bool returns the named attribute as a bool, or false if absent.
func (a Attrs) Bool(key string) bool {
	b, _ := a[key].(bool)
	return b
}

// Entity is a stored record: a kind-qualified reference plus attributes.
type Entity struct {
	Ref   Ref
	Attrs Attrs
}

// Edge is a directed, typed, attributed relationship between two
// entities.
type Edge struct {
	Type  string
	From  Ref
	To    Ref
	Attrs Attrs
}

// EdgeFilter selects edges for queries and bulk deletes. Type is
// required; a zero From or To matches any endpoint.
type EdgeFilter struct {
	Type string
	From Ref
	To   Ref
}

func (f EdgeFilter) validate() error {
	if f.Type == "" {
		return fmt.Errorf("rostergraph: edge filter requires a type")
	}

	return nil
}
