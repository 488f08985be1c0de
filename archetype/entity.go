package archetype

import (
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"sync"

	"github.com/google/uuid"
)

// FieldName is the field holding an entity's display name.
const FieldName = "name"

// ErrEmptyFieldName is returned when setting a field with no name.
var ErrEmptyFieldName = errors.New("field name is empty")

// Entity is the concrete Object implementation. Its fields are a free-form map
// whose shape is described by a Descriptor in the Registry.
type Entity struct {
	mu     sync.RWMutex
	kind   string
	linkID string
	fields map[string]any
	saved  bool
}

// NewEntity creates an unsaved entity of the given kind with a fresh link id.
func NewEntity(kind string) *Entity {
	return NewEntityWithID(kind, uuid.NewString())
}

// NewEntityWithID creates an unsaved entity with an explicit link id.
func NewEntityWithID(kind, linkID string) *Entity {
	return &Entity{
		kind:   kind,
		linkID: linkID,
		fields: make(map[string]any),
	}
}

func (e *Entity) Kind() string   { return e.kind }
func (e *Entity) LinkID() string { return e.linkID }

func (e *Entity) Reference() Reference {
	return Reference{Kind: e.kind, LinkID: e.linkID}
}

func (e *Entity) IsNew() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return !e.saved
}

// MarkSaved flags the entity as persisted. Stores call this after a successful save.
func (e *Entity) MarkSaved() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.saved = true
}

// Name returns the display name, or the empty string.
func (e *Entity) Name() string {
	v, _ := e.Field(FieldName)
	s, _ := v.(string)
	return s
}

// SetName sets the display name.
func (e *Entity) SetName(name string) {
	_ = e.SetField(FieldName, name)
}

func (e *Entity) Field(name string) (any, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	v, ok := e.fields[name]
	return v, ok
}

// SetField sets a field. A nil value removes it.
func (e *Entity) SetField(name string, value any) error {
	if name == "" {
		return ErrEmptyFieldName
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if value == nil {
		delete(e.fields, name)
		return nil
	}
	e.fields[name] = value
	return nil
}

// Fields returns a copy of the field map.
func (e *Entity) Fields() map[string]any {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return maps.Clone(e.fields)
}

// Clone returns a copy with the same identity.
func (e *Entity) Clone() *Entity {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return &Entity{
		kind:   e.kind,
		linkID: e.linkID,
		fields: maps.Clone(e.fields),
		saved:  e.saved,
	}
}

func (e *Entity) String() string {
	if name := e.Name(); name != "" {
		return fmt.Sprintf("%s(%s %q)", e.kind, e.linkID, name)
	}
	return fmt.Sprintf("%s(%s)", e.kind, e.linkID)
}

type entityJSON struct {
	Kind   string         `json:"kind"`
	LinkID string         `json:"link_id"`
	Fields map[string]any `json:"fields,omitempty"`
	Saved  bool           `json:"saved"`
}

func (e *Entity) MarshalJSON() ([]byte, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return json.Marshal(entityJSON{
		Kind:   e.kind,
		LinkID: e.linkID,
		Fields: e.fields,
		Saved:  e.saved,
	})
}

func (e *Entity) UnmarshalJSON(data []byte) error {
	var raw entityJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw.Kind == "" || raw.LinkID == "" {
		return fmt.Errorf("entity requires kind and link_id")
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.kind = raw.Kind
	e.linkID = raw.LinkID
	e.fields = raw.Fields
	if e.fields == nil {
		e.fields = make(map[string]any)
	}
	e.saved = raw.Saved
	return nil
}
