package vm

import (
	"errors"

	"github.com/tribes-emu/dsovm/pkg/dso"
	"github.com/tribes-emu/dsovm/pkg/sim"
	"github.com/tribes-emu/dsovm/pkg/vm/opcode"
	"go.uber.org/zap"
)

var handlers = map[opcode.Opcode]Handler{
	opcode.PUSHSTR:    pushString,
	opcode.PUSHIMM:    pushImmediate,
	opcode.NEWOBJECT:  newObject,
	opcode.SETMEMBER:  setMember,
	opcode.GETMEMBER:  getMember,
	opcode.ADD:        add,
	opcode.SUB:        sub,
	opcode.CALL:       call,
	opcode.CALLMETHOD: callMethod,
	opcode.RET:        ret,
}

func pushString(v *VM, ctx *Context, ins dso.Instruction) error {
	s, err := ctx.block.StringAt(int(ins.Params[0]))
	if err != nil {
		return err
	}
	v.estack.PushVal(s)
	return nil
}

func pushImmediate(v *VM, _ *Context, ins dso.Instruction) error {
	v.estack.PushVal(float64(ins.Params[0]))
	return nil
}

// newObject pops object name and type name and pushes the new object. An
// unknown type yields an empty string.
func newObject(v *VM, _ *Context, _ dso.Instruction) error {
	name, err := v.estack.Pop()
	if err != nil {
		return err
	}
	typ, err := v.estack.Pop()
	if err != nil {
		return err
	}
	o, err := v.NewObject(typ.String(), name.String())
	if err != nil {
		if !errors.Is(err, sim.ErrUnknownType) {
			return err
		}
		v.log.Warn("attempted to create an object of unknown type",
			zap.String("type", typ.String()),
			zap.String("name", name.String()))
		v.estack.PushVal("")
		return nil
	}
	v.estack.PushVal(o)
	return nil
}

// setMember pops the value and member name, the target stays on the stack.
func setMember(v *VM, _ *Context, _ dso.Instruction) error {
	val, err := v.estack.Pop()
	if err != nil {
		return err
	}
	member, err := v.estack.Pop()
	if err != nil {
		return err
	}
	target, err := v.estack.Top()
	if err != nil {
		return err
	}
	o := v.FindObject(target.Value())
	if o == nil {
		v.log.Warn("attempted to set member of non-existent object",
			zap.String("object", target.String()),
			zap.String("member", member.String()))
		return nil
	}
	o.SetMember(member.String(), val.Value())
	return nil
}

func getMember(v *VM, _ *Context, _ dso.Instruction) error {
	member, err := v.estack.Pop()
	if err != nil {
		return err
	}
	target, err := v.estack.Pop()
	if err != nil {
		return err
	}
	o := v.FindObject(target.Value())
	if o == nil {
		v.log.Warn("attempted to get member of non-existent object",
			zap.String("object", target.String()),
			zap.String("member", member.String()))
		v.estack.PushVal("")
		return nil
	}
	v.estack.PushVal(o.GetMember(member.String()))
	return nil
}

func add(v *VM, _ *Context, _ dso.Instruction) error {
	lhs, rhs, err := popTwoNumbers(v.estack)
	if err != nil {
		return err
	}
	v.estack.PushVal(lhs + rhs)
	return nil
}

func sub(v *VM, _ *Context, _ dso.Instruction) error {
	lhs, rhs, err := popTwoNumbers(v.estack)
	if err != nil {
		return err
	}
	v.estack.PushVal(lhs - rhs)
	return nil
}

// popTwoNumbers pops rhs and then lhs.
func popTwoNumbers(s *Stack) (float64, float64, error) {
	b, err := s.Pop()
	if err != nil {
		return 0, 0, err
	}
	a, err := s.Pop()
	if err != nil {
		return 0, 0, err
	}
	rhs, err := b.Number()
	if err != nil {
		return 0, 0, err
	}
	lhs, err := a.Number()
	if err != nil {
		return 0, 0, err
	}
	return lhs, rhs, nil
}

// call pops function name and replaces the stack with the call result
// which is the stack contents after the call.
func call(v *VM, _ *Context, _ dso.Instruction) error {
	name, err := v.estack.Pop()
	if err != nil {
		return err
	}
	return v.invoke(name.String())
}

func callMethod(v *VM, _ *Context, _ dso.Instruction) error {
	name, err := v.estack.Pop()
	if err != nil {
		return err
	}
	target, err := v.estack.Pop()
	if err != nil {
		return err
	}
	o := v.FindObject(target.Value())
	if o == nil {
		v.log.Warn("attempted to call method of non-existent object",
			zap.String("object", target.String()),
			zap.String("method", name.String()))
		v.estack.Replace("")
		return nil
	}
	return v.invokeMethod(o, name.String())
}

func ret(_ *VM, ctx *Context, _ dso.Instruction) error {
	ctx.Return()
	return nil
}
