package sim

import (
	"sort"
	"strings"
)

// Host owns objects: it allocates identifiers, routes method calls and keeps
// the object table. The VM implements it.
type Host interface {
	NextIdentifier() uint32
	CallMethod(o *Object, name string) ([]any, error)
	DeleteObject(id uint32) error
}

// Object is a scriptable runtime object with type-declared fields and free
// form attributes. Member names are case-insensitive.
type Object struct {
	id      uint32
	name    string
	typ     *Type
	host    Host
	fields  map[string]any
	attrs   map[string]any
	deleted bool
}

// NewObject creates a new object of type t getting the identifier from host.
// The host is expected to put it into its object table.
func NewObject(host Host, t *Type, name string) *Object {
	return &Object{
		id:     host.NextIdentifier(),
		name:   name,
		typ:    t,
		host:   host,
		fields: make(map[string]any),
		attrs:  make(map[string]any),
	}
}

// ID returns object identifier.
func (o *Object) ID() uint32 {
	return o.id
}

// Name returns object name, it's empty for anonymous objects.
func (o *Object) Name() string {
	return o.name
}

// Type returns object type.
func (o *Object) Type() *Type {
	return o.typ
}

// GetMember returns field value if name is a field, attribute value if
// there is such an attribute and "" otherwise.
func (o *Object) GetMember(name string) any {
	k := strings.ToLower(name)
	if f, ok := o.typ.fields[k]; ok {
		stored := o.fields[k]
		if f.Get != nil {
			return f.Get(o, stored)
		}
		if stored == nil {
			return ""
		}
		return stored
	}
	if v, ok := o.attrs[k]; ok {
		return v
	}
	return ""
}

// SetMember sets field value (through its set transform) if name is a
// field, otherwise sets an attribute.
func (o *Object) SetMember(name string, v any) {
	k := strings.ToLower(name)
	if f, ok := o.typ.fields[k]; ok {
		if f.Set != nil {
			v = f.Set(o, v)
		}
		o.fields[k] = v
		return
	}
	o.attrs[k] = v
}

// Attributes returns a copy of object attributes.
func (o *Object) Attributes() map[string]any {
	res := make(map[string]any, len(o.attrs))
	for k, v := range o.attrs {
		res[k] = v
	}
	return res
}

func (o *Object) attributeNames() []string {
	names := make([]string, 0, len(o.attrs))
	for k := range o.attrs {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Namespaces returns method resolution chain of the object: script class
// and superclass (if set) followed by the type chain.
func (o *Object) Namespaces() []string {
	var res []string
	for _, f := range []string{FieldClassName, FieldSuperClass} {
		if _, ok := o.typ.fields[f]; !ok {
			continue
		}
		if ns := ToString(o.GetMember(f)); ns != "" {
			res = append(res, ns)
		}
	}
	return append(res, o.typ.Chain()...)
}

// Call invokes a method on the object via its host.
func (o *Object) Call(name string) ([]any, error) {
	return o.host.CallMethod(o, name)
}

// Delete removes the object from its host.
func (o *Object) Delete() error {
	return o.host.DeleteObject(o.id)
}

// Invalidate marks the object as deleted, it's called by the host when the
// object is removed from its table.
func (o *Object) Invalidate() {
	o.deleted = true
}

// Valid returns false for deleted objects.
func (o *Object) Valid() bool {
	return !o.deleted
}
