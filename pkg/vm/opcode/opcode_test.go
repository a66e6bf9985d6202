package opcode

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Nothing more to test here, really.
func TestStringer(t *testing.T) {
	tests := map[Opcode]string{
		ADD:        "ADD",
		SUB:        "SUB",
		PUSHSTR:    "PUSHSTR",
		0xffffffff: "Opcode(0xffffffff)",
	}
	for o, s := range tests {
		assert.Equal(t, s, o.String())
	}
}

func TestFromString(t *testing.T) {
	_, err := FromString("abcdef")
	require.Error(t, err)

	op, err := FromString(CALL.String())
	require.NoError(t, err)
	require.Equal(t, CALL, op)

	op, err = FromString("pushimm")
	require.NoError(t, err)
	require.Equal(t, PUSHIMM, op)
}

func TestIsValid(t *testing.T) {
	require.True(t, IsValid(ADD))
	require.True(t, IsValid(RET))
	require.False(t, IsValid(0xffffffff))
	require.False(t, IsValid(0xdeadbeef))
}

func TestParamSize(t *testing.T) {
	for op, size := range map[Opcode]int{
		PUSHSTR:   2,
		PUSHIMM:   4,
		NEWOBJECT: 0,
		CALL:      0,
	} {
		inf, ok := Lookup(op)
		require.True(t, ok)
		require.Equal(t, size, inf.ParamSize(), op.String())
	}
}

func TestRegister(t *testing.T) {
	const custom Opcode = 0x7e57c0de

	require.True(t, errors.Is(Register(ADD, "ADD2"), ErrAlreadyRegistered))
	require.True(t, errors.Is(Register(custom, "add"), ErrAlreadyRegistered))
	require.Error(t, Register(custom, ""))
	require.Error(t, Register(custom, "BROKEN", Operand(42)))

	require.NoError(t, Register(custom, "testpush2", Immediate, StringIndex))
	inf, ok := Lookup(custom)
	require.True(t, ok)
	require.Equal(t, "TESTPUSH2", inf.Name)
	require.Equal(t, []Operand{Immediate, StringIndex}, inf.Operands)
	require.Equal(t, 6, inf.ParamSize())
	require.Equal(t, "TESTPUSH2", custom.String())
}

func TestReserve(t *testing.T) {
	const marker Opcode = 0x7e57f00d

	require.True(t, errors.Is(Reserve("test", ADD), ErrAlreadyRegistered))
	require.True(t, IsValid(ADD))

	require.NoError(t, Reserve("test format", marker))
	require.True(t, errors.Is(Register(marker, "testmarker"), ErrReserved))
	require.False(t, IsValid(marker))
	_, err := FromString("testmarker")
	require.Error(t, err)
}
