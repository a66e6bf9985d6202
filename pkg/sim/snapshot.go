package sim

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// ValueKind is the kind of a snapshot value.
type ValueKind byte

// Value kinds.
const (
	StringValue ValueKind = iota
	NumberValue
	ObjectValue
)

// Value is a script value stored in a snapshot, objects are kept as
// references by identifier.
type Value struct {
	_    struct{} `cbor:",toarray"`
	Kind ValueKind
	Str  string
	Num  float64
	Ref  uint32
}

// Member is a named snapshot value.
type Member struct {
	Name  string `cbor:"1,keyasint"`
	Value Value  `cbor:"2,keyasint"`
}

// ObjectState is a serializable state of a single object.
type ObjectState struct {
	ID         uint32   `cbor:"1,keyasint"`
	Name       string   `cbor:"2,keyasint,omitempty"`
	Type       string   `cbor:"3,keyasint"`
	Fields     []Member `cbor:"4,keyasint,omitempty"`
	Attributes []Member `cbor:"5,keyasint,omitempty"`
}

var snapshotEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("sim: failed to create CBOR enc mode: %v", err))
	}
	snapshotEncMode = em
}

// ValueOf converts script value into a snapshot value.
func ValueOf(v any) Value {
	switch v := v.(type) {
	case float64:
		return Value{Kind: NumberValue, Num: v}
	case *Object:
		return Value{Kind: ObjectValue, Ref: v.ID()}
	default:
		return Value{Kind: StringValue, Str: ToString(v)}
	}
}

// String implements fmt.Stringer interface.
func (v Value) String() string {
	switch v.Kind {
	case NumberValue:
		return ToString(v.Num)
	case ObjectValue:
		return ToString(float64(v.Ref))
	default:
		return v.Str
	}
}

// State returns serializable object state. Only fields that were set are
// included, attributes are sorted by name.
func (o *Object) State() ObjectState {
	s := ObjectState{
		ID:   o.id,
		Name: o.name,
		Type: o.typ.Name(),
	}
	for _, k := range o.typ.order {
		if v, ok := o.fields[k]; ok {
			s.Fields = append(s.Fields, Member{Name: k, Value: ValueOf(v)})
		}
	}
	for _, k := range o.attributeNames() {
		s.Attributes = append(s.Attributes, Member{Name: k, Value: ValueOf(o.attrs[k])})
	}
	return s
}

// Snapshot returns states of the given objects in the same order.
func Snapshot(objs []*Object) []ObjectState {
	res := make([]ObjectState, 0, len(objs))
	for _, o := range objs {
		res = append(res, o.State())
	}
	return res
}

// EncodeSnapshot serializes object states to CBOR.
func EncodeSnapshot(states []ObjectState) ([]byte, error) {
	return snapshotEncMode.Marshal(states)
}

// DecodeSnapshot deserializes object states from CBOR.
func DecodeSnapshot(data []byte) ([]ObjectState, error) {
	var states []ObjectState
	if err := cbor.Unmarshal(data, &states); err != nil {
		return nil, fmt.Errorf("sim: unmarshal snapshot: %w", err)
	}
	return states, nil
}
