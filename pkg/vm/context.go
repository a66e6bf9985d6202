package vm

import (
	"github.com/tribes-emu/dsovm/pkg/dso"
	"github.com/tribes-emu/dsovm/pkg/sim"
)

// Context represents a single call frame of the VM: a function (or global
// code) of some code block being executed.
type Context struct {
	// Function name, empty for global code.
	name string
	// Code block the code belongs to, used for string table lookups.
	block *dso.CodeBlock
	code  []dso.Instruction
	// Instruction pointer.
	ip int
	// Object the method is called on.
	this *sim.Object
	// Set by RET.
	ret bool
}

// NewContext returns a new Context executing code from the given block.
func NewContext(name string, block *dso.CodeBlock, code []dso.Instruction) *Context {
	return &Context{
		name:  name,
		block: block,
		code:  code,
	}
}

// Name returns function name (empty for global code).
func (c *Context) Name() string {
	return c.name
}

// IP returns the index of the next instruction to be executed.
func (c *Context) IP() int {
	return c.ip
}

// This returns the object the method is called on, nil for plain functions.
func (c *Context) This() *sim.Object {
	return c.this
}

// Block returns code block of the context.
func (c *Context) Block() *dso.CodeBlock {
	return c.block
}

// next returns the next instruction to execute, false is returned after
// the end of code or RET.
func (c *Context) next() (dso.Instruction, bool) {
	if c.ret || c.ip >= len(c.code) {
		return dso.Instruction{}, false
	}
	ins := c.code[c.ip]
	c.ip++
	return ins, true
}

// Return stops the context execution after the current instruction.
func (c *Context) Return() {
	c.ret = true
}
