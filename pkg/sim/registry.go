package sim

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	// ErrUnknownType is returned for type names missing from the registry.
	ErrUnknownType = errors.New("unknown object type")
	// ErrDuplicateType is returned when two types share a name.
	ErrDuplicateType = errors.New("duplicate object type")
	// ErrNotSimObject is returned for types not derived from SimObject.
	ErrNotSimObject = errors.New("type doesn't derive from SimObject")
)

// Registry maps lower-cased type names to types.
type Registry struct {
	types map[string]*Type
}

// NewRegistry creates a registry from the given types, each one must derive
// from SimObject.
func NewRegistry(types ...*Type) (*Registry, error) {
	r := &Registry{types: make(map[string]*Type, len(types))}
	for _, t := range types {
		if !t.DerivesFrom(SimObjectType) {
			return nil, fmt.Errorf("%w: %s", ErrNotSimObject, t.Name())
		}
		k := strings.ToLower(t.Name())
		if _, ok := r.types[k]; ok {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateType, t.Name())
		}
		r.types[k] = t
	}
	return r, nil
}

// DefaultRegistry returns a registry with all built-in types.
func DefaultRegistry() *Registry {
	r, err := NewRegistry(BuiltinTypes()...)
	if err != nil {
		panic(err)
	}
	return r
}

// Lookup finds type by name case-insensitively.
func (r *Registry) Lookup(name string) (*Type, bool) {
	t, ok := r.types[strings.ToLower(name)]
	return t, ok
}

// New creates an object of the named type.
func (r *Registry) New(host Host, typeName, name string) (*Object, error) {
	t, ok := r.Lookup(typeName)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, typeName)
	}
	return NewObject(host, t, name), nil
}

// Names returns sorted type names as declared.
func (r *Registry) Names() []string {
	res := make([]string, 0, len(r.types))
	for _, t := range r.types {
		res = append(res, t.Name())
	}
	sort.Strings(res)
	return res
}
