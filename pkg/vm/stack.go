package vm

import (
	"fmt"

	"github.com/tribes-emu/dsovm/pkg/sim"
)

// Stack implementation for the script VM. The stack with its LIFO semantics
// is emulated from simple slice where the top of the stack corresponds to the
// latest element of this slice. Pushes are appends to this slice, pops are
// slice resizes.

// Element represents an element on the stack: a string, a number (float64)
// or an object.
type Element struct {
	value any
}

// NewElement returns a new Element object, integers are converted to numbers
// and nil to an empty string.
func NewElement(v any) Element {
	switch t := v.(type) {
	case nil:
		v = ""
	case int:
		v = float64(t)
	case int64:
		v = float64(t)
	case uint32:
		v = float64(t)
	case float32:
		v = float64(t)
	case bool:
		if t {
			v = 1.0
		} else {
			v = 0.0
		}
	}
	return Element{v}
}

// Value returns the value contained in the element.
func (e Element) Value() any {
	return e.value
}

// String returns script string form of the element.
func (e Element) String() string {
	return sim.ToString(e.value)
}

// Number converts the element to a number.
func (e Element) Number() (float64, error) {
	return sim.ToNumber(e.value)
}

// Object returns the object contained in the element if it's an object.
func (e Element) Object() (*sim.Object, bool) {
	o, ok := e.value.(*sim.Object)
	return o, ok
}

// Stack represents a Stack backed by a slice of Elements.
type Stack struct {
	elems []Element
	name  string
}

// NewStack returns a new stack name by the given name.
func NewStack(n string) *Stack {
	return &Stack{
		elems: make([]Element, 0, 16),
		name:  n,
	}
}

// Clear clears all elements on the stack and set its length to 0.
func (s *Stack) Clear() {
	s.elems = s.elems[:0]
}

// Len returns the number of elements that are on the stack.
func (s *Stack) Len() int {
	return len(s.elems)
}

// Push pushes the given element on the stack.
func (s *Stack) Push(e Element) {
	s.elems = append(s.elems, e)
}

// PushVal pushes the given value converted to an Element.
func (s *Stack) PushVal(v any) {
	s.Push(NewElement(v))
}

// Pop removes and returns the element on top of the stack.
func (s *Stack) Pop() (Element, error) {
	l := len(s.elems)
	if l == 0 {
		return Element{}, ErrStackUnderflow
	}
	e := s.elems[l-1]
	s.elems = s.elems[:l-1]
	return e, nil
}

// Top returns the element on top of the stack without removing it.
func (s *Stack) Top() (Element, error) {
	if len(s.elems) == 0 {
		return Element{}, ErrStackUnderflow
	}
	return s.elems[len(s.elems)-1], nil
}

// Peek returns the element (n) far in the stack beginning from the top of
// the stack. For n == 0 it's the same as Top.
func (s *Stack) Peek(n int) (Element, error) {
	if n < 0 || n >= len(s.elems) {
		return Element{}, fmt.Errorf("%w: no element at depth %d of %d", ErrStackUnderflow, n, len(s.elems))
	}
	return s.elems[len(s.elems)-n-1], nil
}

// Values returns stack values from bottom to top.
func (s *Stack) Values() []any {
	res := make([]any, len(s.elems))
	for i := range s.elems {
		res[i] = s.elems[i].value
	}
	return res
}

// Drain returns all stack values from bottom to top and clears the stack.
func (s *Stack) Drain() []any {
	res := s.Values()
	s.Clear()
	return res
}

// Replace replaces the stack contents with the given values.
func (s *Stack) Replace(vals ...any) {
	s.Clear()
	for _, v := range vals {
		s.PushVal(v)
	}
}
