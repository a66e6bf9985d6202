package sim

// Script namespace fields of ScriptObject and ScriptGroup.
const (
	FieldClassName  = "classname"
	FieldSuperClass = "superclass"
)

var scriptFields = []Field{
	{Name: FieldClassName, Set: setNamespace},
	{Name: FieldSuperClass, Set: setNamespace},
}

// Built-in types.
var (
	SimObjectType = NewType("SimObject", nil, nil, map[string]Method{
		"delete":       methodDelete,
		"getId":        methodGetID,
		"getName":      methodGetName,
		"getClassName": methodGetClassName,
	})
	ScriptObjectType = NewType("ScriptObject", SimObjectType, scriptFields, nil)
	SimSetType       = NewType("SimSet", SimObjectType, nil, nil)
	SimGroupType     = NewType("SimGroup", SimSetType, nil, nil)
	ScriptGroupType  = NewType("ScriptGroup", SimGroupType, scriptFields, nil)
)

// BuiltinTypes returns the list of all built-in types.
func BuiltinTypes() []*Type {
	return []*Type{
		SimObjectType,
		ScriptObjectType,
		SimSetType,
		SimGroupType,
		ScriptGroupType,
	}
}

// setNamespace keeps namespace names as strings.
func setNamespace(_ *Object, v any) any {
	return ToString(v)
}

func methodDelete(o *Object) (any, error) {
	return "", o.Delete()
}

func methodGetID(o *Object) (any, error) {
	return float64(o.ID()), nil
}

func methodGetName(o *Object) (any, error) {
	return o.Name(), nil
}

func methodGetClassName(o *Object) (any, error) {
	return o.Type().Name(), nil
}
