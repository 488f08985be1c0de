// Package archetype defines the domain object boundary used by workflows.
//
// Every persistent object has a short-name kind (for example
// "party.customerperson" or "act.patientWeight") and a link id. Together they
// form a Reference, the stable identity of an object across reloads.
//
// Objects expose their data through FieldAccessor and FieldSetter. Workflows read
// fields through typed Field[T] accessors that are resolved once at construction
// time, so a typo in a field name or type shows up where the workflow is built
// rather than deep inside a running task.
package archetype

import (
	"fmt"
	"strings"
)

// Reference identifies an object by kind and link id.
type Reference struct {
	Kind   string `json:"kind" yaml:"kind"`
	LinkID string `json:"link_id" yaml:"link_id"`
}

// IsZero reports whether the reference is unset.
func (r Reference) IsZero() bool {
	return r.Kind == "" && r.LinkID == ""
}

// String returns "kind:linkID".
func (r Reference) String() string {
	return r.Kind + ":" + r.LinkID
}

// ParseReference parses the form produced by Reference.String.
func ParseReference(s string) (Reference, error) {
	kind, linkID, ok := strings.Cut(s, ":")
	if !ok || kind == "" || linkID == "" {
		return Reference{}, fmt.Errorf("invalid reference %q", s)
	}
	return Reference{Kind: kind, LinkID: linkID}, nil
}

// Object is a domain object that can be held in a context and persisted.
type Object interface {
	Kind() string
	LinkID() string
	Reference() Reference
	// IsNew reports whether the object has never been saved.
	IsNew() bool
}

// FieldAccessor reads named fields of an object.
type FieldAccessor interface {
	Field(name string) (any, bool)
}

// FieldSetter writes named fields of an object.
type FieldSetter interface {
	SetField(name string, value any) error
}
