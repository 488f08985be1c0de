package archetype

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"
)

var (
	// ErrUnknownKind is returned for a kind with no descriptor.
	ErrUnknownKind = errors.New("unknown kind")
	// ErrInvalid is wrapped by validation failures.
	ErrInvalid = errors.New("invalid object")
)

// Descriptor describes the shape of a kind.
type Descriptor struct {
	Kind        string         `yaml:"kind"`
	DisplayName string         `yaml:"display_name"`
	Required    []string       `yaml:"required"`
	Defaults    map[string]any `yaml:"defaults"`
}

// ValidationError lists the required fields an object is missing.
type ValidationError struct {
	Ref     Reference
	Missing []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s is missing required fields: %s", e.Ref.Kind, strings.Join(e.Missing, ", "))
}

func (e *ValidationError) Unwrap() error {
	return ErrInvalid
}

// Registry holds descriptors by kind.
type Registry struct {
	mu          sync.RWMutex
	descriptors map[string]Descriptor
}

// NewRegistry creates a registry holding descs.
func NewRegistry(descs ...Descriptor) *Registry {
	r := &Registry{descriptors: make(map[string]Descriptor, len(descs))}
	for _, d := range descs {
		r.Register(d)
	}
	return r
}

// Register adds or replaces a descriptor.
func (r *Registry) Register(d Descriptor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.descriptors[d.Kind] = d
}

// Descriptor returns the descriptor for kind.
func (r *Registry) Descriptor(kind string) (Descriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.descriptors[kind]
	return d, ok
}

// Kinds returns the registered kinds, sorted.
func (r *Registry) Kinds() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Sorted(maps.Keys(r.descriptors))
}

// Create returns a new entity of kind with the descriptor defaults applied.
func (r *Registry) Create(kind string) (*Entity, error) {
	d, ok := r.Descriptor(kind)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownKind, kind)
	}
	e := NewEntity(kind)
	for name, v := range d.Defaults {
		if err := e.SetField(name, v); err != nil {
			return nil, fmt.Errorf("failed to apply default %s: %w", name, err)
		}
	}
	return e, nil
}

// Validate checks that every required field of obj is set and non-empty.
// Objects of unregistered kinds, and objects without field access, are valid.
func (r *Registry) Validate(obj Object) error {
	d, ok := r.Descriptor(obj.Kind())
	if !ok {
		return nil
	}
	fa, ok := obj.(FieldAccessor)
	if !ok {
		return nil
	}
	var missing []string
	for _, name := range d.Required {
		v, ok := fa.Field(name)
		if !ok || v == nil || v == "" {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return &ValidationError{Ref: obj.Reference(), Missing: missing}
	}
	return nil
}

// DefaultRegistry returns descriptors for the kinds the built-in workflows use.
func DefaultRegistry() *Registry {
	return NewRegistry(
		Descriptor{Kind: KindCustomer, DisplayName: "Customer", Required: []string{FieldName}},
		Descriptor{Kind: KindPatient, DisplayName: "Patient", Required: []string{FieldName, "species"}},
		Descriptor{Kind: KindSupplier, DisplayName: "Supplier", Required: []string{FieldName}},
		Descriptor{Kind: KindProduct, DisplayName: "Product", Required: []string{FieldName}},
		Descriptor{Kind: KindPractice, DisplayName: "Practice", Required: []string{FieldName}},
		Descriptor{Kind: KindLocation, DisplayName: "Practice Location", Required: []string{FieldName}},
		Descriptor{Kind: KindStockLocation, DisplayName: "Stock Location", Required: []string{FieldName}},
		Descriptor{Kind: KindTill, DisplayName: "Till", Required: []string{FieldName}},
		Descriptor{Kind: KindDeposit, DisplayName: "Deposit Account", Required: []string{FieldName}},
		Descriptor{Kind: KindUser, DisplayName: "User", Required: []string{FieldName}},
		Descriptor{Kind: KindSchedule, DisplayName: "Schedule", Required: []string{FieldName}},
		Descriptor{Kind: KindWorkList, DisplayName: "Work List", Required: []string{FieldName}},
		Descriptor{
			Kind:        KindAppointment,
			DisplayName: "Appointment",
			Required:    []string{"startTime"},
			Defaults:    map[string]any{"status": "PENDING"},
		},
		Descriptor{
			Kind:        KindCustomerTask,
			DisplayName: "Customer Task",
			Required:    []string{"startTime"},
			Defaults:    map[string]any{"status": "PENDING"},
		},
		Descriptor{
			Kind:        KindClinicalEvent,
			DisplayName: "Visit",
			Required:    []string{"startTime", "patient"},
			Defaults:    map[string]any{"status": "IN_PROGRESS"},
		},
		Descriptor{
			Kind:        KindPatientWeight,
			DisplayName: "Weight",
			Required:    []string{"weight", "patient"},
			Defaults:    map[string]any{"status": "COMPLETED", "units": "KILOGRAMS"},
		},
		Descriptor{
			Kind:        KindInvoice,
			DisplayName: "Invoice",
			Required:    []string{"customer", "startTime"},
			Defaults:    map[string]any{"status": "IN_PROGRESS"},
		},
	)
}
