package vm_test

import (
	"bytes"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/require"
	"github.com/tribes-emu/dsovm/pkg/dso"
	"github.com/tribes-emu/dsovm/pkg/io"
	"github.com/tribes-emu/dsovm/pkg/sim"
	"github.com/tribes-emu/dsovm/pkg/vm"
	"github.com/tribes-emu/dsovm/pkg/vm/emit"
	"github.com/tribes-emu/dsovm/pkg/vm/opcode"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	"go.uber.org/zap/zapcore"
)

func ins(op opcode.Opcode, params ...uint32) dso.Instruction {
	return dso.MustInstruction(op, params...)
}

// block creates a code block with the given strings, global code is empty.
func block(strs ...string) *dso.CodeBlock {
	cb := dso.New()
	for _, s := range strs {
		cb.Strings = append(cb.Strings, s)
	}
	return cb
}

func newTestVM(t *testing.T, opts ...vm.Option) (*vm.VM, *observer.ObservedLogs, *bytes.Buffer) {
	core, logs := observer.New(zapcore.DebugLevel)
	out := new(bytes.Buffer)
	opts = append([]vm.Option{vm.WithLogger(zap.New(core)), vm.WithOutput(out)}, opts...)
	return vm.New(opts...), logs, out
}

func TestCallConvention(t *testing.T) {
	v, _, _ := newTestVM(t)
	cb := block()
	require.NoError(t, cb.AddFunction("pair", ins(opcode.PUSHIMM, 10), ins(opcode.PUSHIMM, 20)))
	require.NoError(t, v.RegisterCodeBlock(cb))

	res, err := v.Call("pair")
	require.NoError(t, err)
	require.Equal(t, []any{10.0, 20.0}, res)
	require.Equal(t, 0, v.Estack().Len())
	require.Equal(t, vm.HaltState, v.State())
}

func TestAddCoercion(t *testing.T) {
	v, _, _ := newTestVM(t)
	cb := block("2.5", "1", "x", "")
	require.NoError(t, cb.AddFunction("add", ins(opcode.PUSHSTR, 0), ins(opcode.PUSHSTR, 1), ins(opcode.ADD)))
	require.NoError(t, cb.AddFunction("sub", ins(opcode.PUSHSTR, 1), ins(opcode.PUSHSTR, 0), ins(opcode.SUB)))
	require.NoError(t, cb.AddFunction("bad", ins(opcode.PUSHSTR, 0), ins(opcode.PUSHSTR, 2), ins(opcode.ADD)))
	require.NoError(t, cb.AddFunction("empty", ins(opcode.PUSHIMM, 1), ins(opcode.PUSHSTR, 3), ins(opcode.ADD)))
	require.NoError(t, v.RegisterCodeBlock(cb))

	res, err := v.Call("add")
	require.NoError(t, err)
	require.Equal(t, []any{3.5}, res)

	res, err = v.Call("sub")
	require.NoError(t, err)
	require.Equal(t, []any{-1.5}, res)

	for _, name := range []string{"bad", "empty"} {
		_, err = v.Call(name)
		require.ErrorIs(t, err, vm.ErrTypeCoercion)
		var ee *vm.ExecutionError
		require.ErrorAs(t, err, &ee)
		require.Equal(t, name, ee.Function)
		require.Equal(t, 2, ee.IP)
		require.Equal(t, opcode.ADD, ee.Op)
		require.Equal(t, vm.FaultState, v.State())
		require.Equal(t, 0, v.Estack().Len())
		require.Empty(t, v.Istack())
	}

	// VM is still usable after a fault.
	res, err = v.Call("add")
	require.NoError(t, err)
	require.Equal(t, []any{3.5}, res)
}

func TestExecutionErrors(t *testing.T) {
	v, _, _ := newTestVM(t)
	cb := block("a")
	require.NoError(t, cb.AddFunction("underflow", ins(opcode.ADD)))
	require.NoError(t, cb.AddFunction("badstring", ins(opcode.PUSHSTR, 7)))
	require.NoError(t, cb.AddFunction("nested", ins(opcode.PUSHSTR, 0), ins(opcode.CALL)))
	require.NoError(t, cb.AddFunction("a", ins(opcode.PUSHIMM, 1), ins(opcode.PUSHIMM, 1), ins(opcode.ADD), ins(opcode.ADD)))
	require.NoError(t, v.RegisterCodeBlock(cb))

	_, err := v.Call("underflow")
	require.ErrorIs(t, err, vm.ErrStackUnderflow)

	_, err = v.Call("badstring")
	require.ErrorIs(t, err, vm.ErrStringIndex)

	// Error is reported for the innermost function.
	_, err = v.Call("nested")
	var ee *vm.ExecutionError
	require.ErrorAs(t, err, &ee)
	require.Equal(t, "a", ee.Function)
	require.Equal(t, 3, ee.IP)
	require.ErrorIs(t, err, vm.ErrStackUnderflow)

	// Built-ins called by the host fail the same way.
	_, err = v.Call("echo")
	ee = nil
	require.ErrorAs(t, err, &ee)
	require.Equal(t, "echo", ee.Function)
	require.ErrorIs(t, err, vm.ErrStackUnderflow)
	require.Equal(t, vm.FaultState, v.State())
	require.Equal(t, "echo: stack underflow", err.Error())
}

func TestUnsupportedInstruction(t *testing.T) {
	const op = opcode.Opcode(0x7e57c0d1)
	require.NoError(t, opcode.Register(op, "testnop"))

	v, _, _ := newTestVM(t)
	cb := block()
	require.NoError(t, cb.AddFunction("f", ins(op)))
	require.NoError(t, v.RegisterCodeBlock(cb))
	_, err := v.Call("f")
	require.ErrorIs(t, err, vm.ErrUnsupportedInstruction)

	v, _, _ = newTestVM(t, vm.WithInstruction(op, func(v *vm.VM, _ *vm.Context, _ dso.Instruction) error {
		v.Estack().PushVal("nop")
		return nil
	}))
	require.NoError(t, v.RegisterCodeBlock(cb))
	res, err := v.Call("f")
	require.NoError(t, err)
	require.Equal(t, []any{"nop"}, res)
}

func TestReturnUnwindsOneFrame(t *testing.T) {
	v, _, _ := newTestVM(t)
	cb := block("inner")
	require.NoError(t, cb.AddFunction("inner", ins(opcode.PUSHIMM, 1), ins(opcode.RET), ins(opcode.PUSHIMM, 2)))
	require.NoError(t, cb.AddFunction("outer",
		ins(opcode.PUSHSTR, 0), ins(opcode.CALL),
		ins(opcode.PUSHIMM, 3), ins(opcode.RET),
		ins(opcode.PUSHIMM, 4)))
	require.NoError(t, v.RegisterCodeBlock(cb))

	res, err := v.Call("outer")
	require.NoError(t, err)
	require.Equal(t, []any{1.0, 3.0}, res)
}

func TestCallReplacesStack(t *testing.T) {
	v, logs, _ := newTestVM(t)
	cb := block("nothing", "keep")
	require.NoError(t, cb.AddFunction("f",
		ins(opcode.PUSHIMM, 5), ins(opcode.PUSHSTR, 0), ins(opcode.CALL),
		ins(opcode.PUSHSTR, 1)))
	require.NoError(t, v.RegisterCodeBlock(cb))

	res, err := v.Call("f")
	require.NoError(t, err)
	require.Equal(t, []any{"", "keep"}, res)
	require.Equal(t, 1, logs.FilterMessage("attempted to call non-existent function").Len())
}

func TestUnknownFunction(t *testing.T) {
	v, logs, _ := newTestVM(t)
	res, err := v.Call("nope")
	require.NoError(t, err)
	require.Equal(t, []any{""}, res)
	entries := logs.FilterMessage("attempted to call non-existent function").All()
	require.Len(t, entries, 1)
	require.Equal(t, zapcore.WarnLevel, entries[0].Level)
	require.Equal(t, "nope", entries[0].ContextMap()["function"])
	require.Equal(t, v.Session().String(), entries[0].ContextMap()["session"])
}

func TestRegisterCodeBlock(t *testing.T) {
	v, _, out := newTestVM(t)
	first := block("hello", "echo")
	first.Global = []dso.Instruction{ins(opcode.PUSHSTR, 0), ins(opcode.PUSHSTR, 1), ins(opcode.CALL), ins(opcode.PUSHIMM, 1)}
	require.NoError(t, first.AddFunction("f", ins(opcode.PUSHIMM, 1)))
	require.NoError(t, v.RegisterCodeBlock(first))
	require.Equal(t, "hello\n", out.String())
	require.Equal(t, 0, v.Estack().Len())
	require.True(t, v.HasFunction("f"))

	second := block()
	require.NoError(t, second.AddFunction("f", ins(opcode.PUSHIMM, 2)))
	require.NoError(t, second.AddFunction("g"))
	require.NoError(t, v.RegisterCodeBlock(second))
	require.Equal(t, []string{"f", "g"}, v.Functions())
	res, err := v.Call("f")
	require.NoError(t, err)
	require.Equal(t, []any{2.0}, res)

	dup := block()
	dup.Functions = []dso.Function{{Name: "h"}, {Name: "h"}}
	require.ErrorIs(t, v.RegisterCodeBlock(dup), vm.ErrDuplicateFunction)
	require.False(t, v.HasFunction("h"))

	bad := block()
	bad.Global = []dso.Instruction{ins(opcode.SUB)}
	require.ErrorIs(t, v.RegisterCodeBlock(bad), vm.ErrStackUnderflow)
	require.Equal(t, vm.FaultState, v.State())

	// Functions of a block with failing global code are not kept, the
	// ones it shadowed are restored.
	failing := block("fresh")
	failing.Global = []dso.Instruction{ins(opcode.PUSHSTR, 0), ins(opcode.CALL), ins(opcode.SUB)}
	require.NoError(t, failing.AddFunction("f", ins(opcode.PUSHIMM, 3)))
	require.NoError(t, failing.AddFunction("fresh", ins(opcode.PUSHIMM, 4)))
	require.ErrorIs(t, v.RegisterCodeBlock(failing), vm.ErrStackUnderflow)
	require.False(t, v.HasFunction("fresh"))
	require.Equal(t, []string{"f", "g"}, v.Functions())
	res, err = v.Call("f")
	require.NoError(t, err)
	require.Equal(t, []any{2.0}, res)
}

func TestDecodedBlock(t *testing.T) {
	buf := io.NewBufBinWriter()
	emit.Header(buf.BinWriter, "echo", "decoded")
	emit.Function(buf.BinWriter, "Main", func(w *io.BinWriter) {
		emit.String(w, 1)
		emit.String(w, 0)
		emit.Call(w)
	})
	cb, err := dso.Decode(buf.Bytes())
	require.NoError(t, err)

	v, _, out := newTestVM(t)
	require.NoError(t, v.RegisterCodeBlock(cb))
	res, err := v.Call("main")
	require.NoError(t, err)
	require.Empty(t, res)
	require.Equal(t, "decoded\n", out.String())
}

func TestCallDepth(t *testing.T) {
	v, _, _ := newTestVM(t, vm.WithMaxCallDepth(8))
	cb := block("loop")
	require.NoError(t, cb.AddFunction("loop", ins(opcode.PUSHSTR, 0), ins(opcode.CALL)))
	require.NoError(t, v.RegisterCodeBlock(cb))
	_, err := v.Call("loop")
	require.ErrorIs(t, err, vm.ErrCallDepth)
	require.Empty(t, v.Istack())
}

func TestObjects(t *testing.T) {
	v, logs, _ := newTestVM(t)
	cb := block("ScriptObject", "Player1", "health", "NoSuchType", "x")
	require.NoError(t, cb.AddFunction("create",
		ins(opcode.PUSHSTR, 0), ins(opcode.PUSHSTR, 1), ins(opcode.NEWOBJECT),
		ins(opcode.PUSHSTR, 2), ins(opcode.PUSHIMM, 100), ins(opcode.SETMEMBER),
		ins(opcode.PUSHSTR, 2), ins(opcode.GETMEMBER)))
	require.NoError(t, cb.AddFunction("unknown",
		ins(opcode.PUSHSTR, 3), ins(opcode.PUSHSTR, 4), ins(opcode.NEWOBJECT)))
	require.NoError(t, cb.AddFunction("byname",
		ins(opcode.PUSHSTR, 1), ins(opcode.PUSHSTR, 2), ins(opcode.GETMEMBER)))
	require.NoError(t, v.RegisterCodeBlock(cb))

	res, err := v.Call("create")
	require.NoError(t, err)
	require.Equal(t, []any{100.0}, res)

	o := v.FindObject("player1")
	require.NotNil(t, o)
	require.EqualValues(t, 1, o.ID())
	require.Equal(t, sim.ScriptObjectType, o.Type())
	require.Equal(t, o, v.FindObject(1.0))
	require.Equal(t, o, v.FindObject("1"))
	require.Equal(t, o, v.FindObject(o))
	require.Nil(t, v.FindObject(1.5))
	require.Nil(t, v.FindObject(nil))

	res, err = v.Call("unknown")
	require.NoError(t, err)
	require.Equal(t, []any{""}, res)
	require.Equal(t, 1, logs.FilterMessage("attempted to create an object of unknown type").Len())

	res, err = v.Call("byname")
	require.NoError(t, err)
	require.Equal(t, []any{100.0}, res)

	require.NoError(t, v.DeleteObject(1))
	require.ErrorIs(t, v.DeleteObject(1), vm.ErrUnknownObject)
	require.False(t, o.Valid())
	require.Nil(t, v.FindObject(o))
	require.Nil(t, v.FindObject("Player1"))
	require.Empty(t, v.Objects())

	res, err = v.Call("byname")
	require.NoError(t, err)
	require.Equal(t, []any{""}, res)
	require.Equal(t, 1, logs.FilterMessage("attempted to get member of non-existent object").Len())
}

func TestSetMemberKeepsTarget(t *testing.T) {
	v, logs, _ := newTestVM(t)
	o, err := v.NewObject("SimObject", "")
	require.NoError(t, err)
	cb := block("1", "a", "b", "999")
	require.NoError(t, cb.AddFunction("chain",
		ins(opcode.PUSHSTR, 0),
		ins(opcode.PUSHSTR, 1), ins(opcode.PUSHIMM, 1), ins(opcode.SETMEMBER),
		ins(opcode.PUSHSTR, 2), ins(opcode.PUSHIMM, 2), ins(opcode.SETMEMBER)))
	require.NoError(t, cb.AddFunction("missing",
		ins(opcode.PUSHSTR, 3), ins(opcode.PUSHSTR, 1), ins(opcode.PUSHIMM, 1), ins(opcode.SETMEMBER)))
	require.NoError(t, v.RegisterCodeBlock(cb))

	res, err := v.Call("chain")
	require.NoError(t, err)
	require.Equal(t, []any{"1"}, res)
	require.Equal(t, map[string]any{"a": 1.0, "b": 2.0}, o.Attributes())

	res, err = v.Call("missing")
	require.NoError(t, err)
	require.Equal(t, []any{"999"}, res)
	require.Equal(t, 1, logs.FilterMessage("attempted to set member of non-existent object").Len())
}

func TestMethods(t *testing.T) {
	v, logs, _ := newTestVM(t)
	cb := block("Player", "getId", "hit", "nope", "classname")
	require.NoError(t, cb.AddFunction("Player::hit", ins(opcode.PUSHIMM, 7)))
	require.NoError(t, cb.AddFunction("ScriptObject::getId", ins(opcode.PUSHIMM, 1000)))
	require.NoError(t, v.RegisterCodeBlock(cb))

	o, err := v.NewObject("ScriptObject", "")
	require.NoError(t, err)
	s, err := v.NewObject("SimSet", "")
	require.NoError(t, err)

	// Script method of the type namespace shadows the native one.
	res, err := v.CallMethod(o, "getId")
	require.NoError(t, err)
	require.Equal(t, []any{o, 1000.0}, res)

	res, err = v.CallMethod(s, "getId")
	require.NoError(t, err)
	require.Equal(t, []any{2.0}, res)

	res, err = v.CallMethod(o, "hit")
	require.NoError(t, err)
	require.Equal(t, []any{""}, res)
	require.Equal(t, 1, logs.FilterMessage("attempted to call non-existent method").Len())

	o.SetMember("className", "Player")
	res, err = o.Call("HIT")
	require.NoError(t, err)
	require.Equal(t, []any{o, 7.0}, res)

	cb2 := block("2", "delete", "1", "hit")
	require.NoError(t, cb2.AddFunction("del", ins(opcode.PUSHSTR, 0), ins(opcode.PUSHSTR, 1), ins(opcode.CALLMETHOD)))
	require.NoError(t, cb2.AddFunction("hit", ins(opcode.PUSHSTR, 2), ins(opcode.PUSHSTR, 3), ins(opcode.CALLMETHOD)))
	require.NoError(t, v.RegisterCodeBlock(cb2))

	res, err = v.Call("del")
	require.NoError(t, err)
	require.Equal(t, []any{""}, res)
	_, ok := v.Object(2)
	require.False(t, ok)

	res, err = v.Call("hit")
	require.NoError(t, err)
	require.Equal(t, []any{o, 7.0}, res)
}

func TestQuit(t *testing.T) {
	v, _, out := newTestVM(t)
	cb := block("quit", "inner", "echo", "after")
	require.NoError(t, cb.AddFunction("inner", ins(opcode.PUSHIMM, 3), ins(opcode.PUSHSTR, 0), ins(opcode.CALL),
		ins(opcode.PUSHSTR, 3), ins(opcode.PUSHSTR, 2), ins(opcode.CALL)))
	require.NoError(t, cb.AddFunction("outer", ins(opcode.PUSHSTR, 1), ins(opcode.CALL),
		ins(opcode.PUSHSTR, 3), ins(opcode.PUSHSTR, 2), ins(opcode.CALL)))
	require.NoError(t, v.RegisterCodeBlock(cb))

	res, err := v.Call("outer")
	require.NoError(t, err)
	require.Empty(t, res)
	require.Empty(t, out.String())
	require.Empty(t, v.Istack())
	require.Equal(t, vm.ShutdownState, v.State())

	ok, code := v.ShutdownRequested()
	require.True(t, ok)
	require.Equal(t, 3, code)

	_, err = v.Call("outer")
	require.ErrorIs(t, err, vm.ErrShutdown)
	require.ErrorIs(t, v.RegisterCodeBlock(block()), vm.ErrShutdown)

	t.Run("non-numeric argument", func(t *testing.T) {
		v, _, out := newTestVM(t)
		cb := block("bye", "quit", "echo")
		cb.Global = []dso.Instruction{ins(opcode.PUSHSTR, 0), ins(opcode.PUSHSTR, 1), ins(opcode.CALL),
			ins(opcode.PUSHSTR, 2), ins(opcode.CALL)}
		require.NoError(t, v.RegisterCodeBlock(cb))
		require.Empty(t, out.String())
		require.Equal(t, vm.ShutdownState, v.State())

		ok, code := v.ShutdownRequested()
		require.True(t, ok)
		require.Equal(t, 0, code)
	})

	t.Run("empty stack", func(t *testing.T) {
		v, _, _ := newTestVM(t)
		res, err := v.Call("quit")
		require.NoError(t, err)
		require.Empty(t, res)

		ok, code := v.ShutdownRequested()
		require.True(t, ok)
		require.Equal(t, 0, code)
	})
}

func TestBuiltins(t *testing.T) {
	v, logs, out := newTestVM(t, vm.WithoutBuiltin("quit"), vm.WithBuiltin("double", func(v *vm.VM) error {
		e, err := v.Estack().Pop()
		if err != nil {
			return err
		}
		n, err := e.Number()
		if err != nil {
			return err
		}
		v.Estack().PushVal(n * 2)
		return nil
	}))
	call := func(name string, args ...any) []any {
		for _, a := range args {
			v.Estack().PushVal(a)
		}
		res, err := v.Call(name)
		require.NoError(t, err, name)
		return res
	}

	require.Equal(t, []any{"4.000000 6.000000 3.000000"}, call("vectorAdd", "1 2 3", "3 4"))
	require.Equal(t, []any{"-2.000000 -2.000000 3.000000"}, call("vectorSub", "1 2 3", "3 4"))
	require.Equal(t, []any{5.0}, call("vectorLen", "3 4"))
	require.Equal(t, []any{8.0}, call("double", "4"))
	require.Equal(t, []any{""}, call("quit"))

	o, err := v.NewObject("SimObject", "Thing")
	require.NoError(t, err)
	require.Equal(t, []any{1.0}, call("isObject", o))
	require.Equal(t, []any{0.0}, call("isObject", "Other"))
	require.Equal(t, []any{1.0}, call("nameToID", "thing"))
	require.Equal(t, []any{-1.0}, call("nameToID", "Other"))

	require.Empty(t, call("echo", "e"))
	require.Empty(t, call("error", "oops"))
	require.Empty(t, call("warn", "careful"))
	require.Equal(t, "e\noops\ncareful\n", out.String())
	require.Equal(t, 1, logs.FilterMessage("script error").FilterLevelExact(zapcore.ErrorLevel).Len())
	require.Equal(t, 1, logs.FilterMessage("script warning").Len())

	_, err = v.Call("echo")
	require.ErrorIs(t, err, vm.ErrStackUnderflow)
	v.Estack().PushVal("1 x 2")
	_, err = v.Call("vectorLen")
	require.ErrorIs(t, err, vm.ErrTypeCoercion)
}

func TestSeparateVMs(t *testing.T) {
	a, _, _ := newTestVM(t)
	b, _, _ := newTestVM(t)
	require.NotEqual(t, a.Session(), b.Session())
	_, err := a.NewObject("SimObject", "")
	require.NoError(t, err)
	o, err := b.NewObject("SimObject", "")
	require.NoError(t, err)
	require.EqualValues(t, 1, o.ID())
}

func TestProperty_IdentifiersIncrease(t *testing.T) {
	properties := gopter.NewProperties(gopter.DefaultTestParameters())

	properties.Property("object identifiers strictly increase", prop.ForAll(
		func(n int, deletes []bool) bool {
			v := vm.New()
			cb := block("SimObject", "")
			var code []dso.Instruction
			for i := 0; i < n; i++ {
				code = append(code, ins(opcode.PUSHSTR, 0), ins(opcode.PUSHSTR, 1), ins(opcode.NEWOBJECT))
			}
			if cb.AddFunction("make", code...) != nil || v.RegisterCodeBlock(cb) != nil {
				return false
			}
			var last uint32
			for round := 0; round < 2; round++ {
				res, err := v.Call("make")
				if err != nil || len(res) != n {
					return false
				}
				for i, r := range res {
					o, ok := r.(*sim.Object)
					if !ok || o.ID() <= last {
						return false
					}
					last = o.ID()
					if i < len(deletes) && deletes[i] {
						if o.Delete() != nil {
							return false
						}
					}
				}
			}
			return true
		},
		gen.IntRange(0, 50),
		gen.SliceOf(gen.Bool()),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}
