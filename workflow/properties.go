package workflow

import (
	"fmt"

	"github.com/nomis52/vetflow/archetype"
)

// Property is a named value applied to an object. When Eval is set it is
// called at apply time and its result used instead of Value.
type Property struct {
	Name  string
	Value any
	Eval  func(*Context) any
}

// Properties is an ordered list of properties. Later entries win.
type Properties []Property

// Set appends a constant property.
func (p Properties) Set(name string, value any) Properties {
	return append(p, Property{Name: name, Value: value})
}

// SetFunc appends a property evaluated when applied.
func (p Properties) SetFunc(name string, fn func(*Context) any) Properties {
	return append(p, Property{Name: name, Eval: fn})
}

// Apply writes the properties to obj.
func (p Properties) Apply(ctx *Context, obj archetype.Object) error {
	if len(p) == 0 {
		return nil
	}
	fs, ok := obj.(archetype.FieldSetter)
	if !ok {
		return fmt.Errorf("%s is not writable", obj.Kind())
	}
	for _, prop := range p {
		v := prop.Value
		if prop.Eval != nil {
			v = prop.Eval(ctx)
		}
		if ref, ok := v.(archetype.Object); ok {
			v = ref.Reference()
		}
		if err := fs.SetField(prop.Name, v); err != nil {
			return fmt.Errorf("setting %s on %s: %w", prop.Name, obj.Kind(), err)
		}
	}
	return nil
}

// Ref returns a property function that resolves to the reference of the
// context object in key, or nil when the slot is empty.
func Ref(key string) func(*Context) any {
	return func(ctx *Context) any {
		if obj := ctx.InRange(key); obj != nil {
			return obj.Reference()
		}
		return nil
	}
}

// Now returns a property function that evaluates to the context clock's time.
func Now() func(*Context) any {
	return func(ctx *Context) any {
		return ctx.Clock().Now()
	}
}
