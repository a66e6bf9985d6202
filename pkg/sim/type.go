package sim

import "strings"

// Field is a type-declared member. Set computes the value to be stored from
// the one being assigned, Get produces the value returned for the stored
// one. Both are optional: nil Set stores the value as is and nil Get
// returns the stored value ("" if nothing was stored).
type Field struct {
	Name string
	Set  func(o *Object, v any) any
	Get  func(o *Object, stored any) any
}

// Method is a native method callable on objects of a type.
type Method func(o *Object) (any, error)

// Type describes a concrete object type. Field and method tables include
// everything inherited from the parent chain.
type Type struct {
	name    string
	parent  *Type
	fields  map[string]Field
	order   []string
	methods map[string]Method
}

// NewType creates a type deriving from parent (nil for a root type). Fields
// and methods declared here override inherited ones with the same
// (case-insensitive) name.
func NewType(name string, parent *Type, fields []Field, methods map[string]Method) *Type {
	t := &Type{
		name:    name,
		parent:  parent,
		fields:  make(map[string]Field),
		methods: make(map[string]Method),
	}
	if parent != nil {
		for _, k := range parent.order {
			t.fields[k] = parent.fields[k]
		}
		t.order = append(t.order, parent.order...)
		for k, m := range parent.methods {
			t.methods[k] = m
		}
	}
	for _, f := range fields {
		k := strings.ToLower(f.Name)
		if _, ok := t.fields[k]; !ok {
			t.order = append(t.order, k)
		}
		t.fields[k] = f
	}
	for k, m := range methods {
		t.methods[strings.ToLower(k)] = m
	}
	return t
}

// Name returns type name as declared.
func (t *Type) Name() string {
	return t.name
}

// Parent returns parent type or nil.
func (t *Type) Parent() *Type {
	return t.parent
}

// Field returns a declared (or inherited) field.
func (t *Type) Field(name string) (Field, bool) {
	f, ok := t.fields[strings.ToLower(name)]
	return f, ok
}

// FieldNames returns lower-cased field names, inherited ones first.
func (t *Type) FieldNames() []string {
	return append([]string(nil), t.order...)
}

// Method returns a native method.
func (t *Type) Method(name string) (Method, bool) {
	m, ok := t.methods[strings.ToLower(name)]
	return m, ok
}

// IsA checks whether t is the named type or derives from it.
func (t *Type) IsA(name string) bool {
	for c := t; c != nil; c = c.parent {
		if strings.EqualFold(c.name, name) {
			return true
		}
	}
	return false
}

// DerivesFrom checks whether t is p or has it in its parent chain.
func (t *Type) DerivesFrom(p *Type) bool {
	for c := t; c != nil; c = c.parent {
		if c == p {
			return true
		}
	}
	return false
}

// Chain returns type names from t up to the root.
func (t *Type) Chain() []string {
	var res []string
	for c := t; c != nil; c = c.parent {
		res = append(res, c.name)
	}
	return res
}
