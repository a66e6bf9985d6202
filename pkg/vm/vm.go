/*
Package vm implements the stack-based script virtual machine executing code
blocks decoded by the dso package.

All script code runs on a single shared operand stack. Calling a function
executes it in a new call frame (Context) on top of the same stack and the
whole stack contents are the result of the call. The VM is not safe for
concurrent use, separate VM instances share nothing.
*/
package vm

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/tribes-emu/dsovm/pkg/dso"
	"github.com/tribes-emu/dsovm/pkg/sim"
	"github.com/tribes-emu/dsovm/pkg/vm/opcode"
	"go.uber.org/zap"
)

// DefaultMaxCallDepth is the default call frame limit.
const DefaultMaxCallDepth = 1024

// Builtin is a native function callable from scripts. It works with the VM
// stack directly, consuming its arguments and pushing results.
type Builtin func(v *VM) error

// Handler executes a single instruction in the given context.
type Handler func(v *VM, ctx *Context, ins dso.Instruction) error

type function struct {
	block *dso.CodeBlock
	code  []dso.Instruction
}

// VM represents an instance of the script virtual machine.
type VM struct {
	log     *zap.Logger
	out     io.Writer
	session uuid.UUID

	estack    *Stack
	istack    []*Context
	maxDepth  int
	functions map[string]function
	builtins  map[string]Builtin
	handlers  map[opcode.Opcode]Handler
	types     *sim.Registry

	lastID  uint32
	objects map[uint32]*sim.Object
	names   map[string]*sim.Object

	state    State
	shutdown bool
	exitCode int
}

// Option configures the VM at construction time.
type Option func(v *VM)

// WithLogger sets the logger, zap.NewNop() is used by default.
func WithLogger(log *zap.Logger) Option {
	return func(v *VM) {
		v.log = log
	}
}

// WithOutput sets the writer console built-ins print to, os.Stdout by
// default.
func WithOutput(w io.Writer) Option {
	return func(v *VM) {
		v.out = w
	}
}

// WithBuiltin adds or replaces a built-in function.
func WithBuiltin(name string, f Builtin) Option {
	return func(v *VM) {
		v.builtins[name] = f
	}
}

// WithoutBuiltin removes a built-in function.
func WithoutBuiltin(name string) Option {
	return func(v *VM) {
		delete(v.builtins, name)
	}
}

// WithTypes sets the object type registry, sim.DefaultRegistry() is used
// by default.
func WithTypes(r *sim.Registry) Option {
	return func(v *VM) {
		v.types = r
	}
}

// WithMaxCallDepth sets the call frame limit.
func WithMaxCallDepth(n int) Option {
	return func(v *VM) {
		v.maxDepth = n
	}
}

// WithInstruction sets a handler for the opcode, it can be used for opcodes
// added with opcode.Register.
func WithInstruction(op opcode.Opcode, h Handler) Option {
	return func(v *VM) {
		v.handlers[op] = h
	}
}

// New returns a new VM instance.
func New(opts ...Option) *VM {
	v := &VM{
		log:       zap.NewNop(),
		out:       os.Stdout,
		session:   uuid.New(),
		estack:    NewStack("estack"),
		maxDepth:  DefaultMaxCallDepth,
		functions: make(map[string]function),
		builtins:  defaultBuiltins(),
		handlers:  make(map[opcode.Opcode]Handler, len(handlers)),
		objects:   make(map[uint32]*sim.Object),
		names:     make(map[string]*sim.Object),
		state:     NoneState,
	}
	for op, h := range handlers {
		v.handlers[op] = h
	}
	for _, o := range opts {
		o(v)
	}
	if v.types == nil {
		v.types = sim.DefaultRegistry()
	}
	v.log = v.log.With(zap.Stringer("session", v.session))
	return v
}

// Session returns VM session identifier.
func (v *VM) Session() uuid.UUID {
	return v.session
}

// State returns the current VM state.
func (v *VM) State() State {
	return v.state
}

// Estack returns the operand stack.
func (v *VM) Estack() *Stack {
	return v.estack
}

// Istack returns the current call frames, the last one is executed.
func (v *VM) Istack() []*Context {
	return v.istack
}

// Output returns the writer console built-ins print to.
func (v *VM) Output() io.Writer {
	return v.out
}

// Logger returns the VM logger.
func (v *VM) Logger() *zap.Logger {
	return v.log
}

// HasFunction checks whether a script function is registered.
func (v *VM) HasFunction(name string) bool {
	_, ok := v.functions[name]
	return ok
}

// Functions returns sorted names of registered script functions.
func (v *VM) Functions() []string {
	res := make([]string, 0, len(v.functions))
	for name := range v.functions {
		res = append(res, name)
	}
	sort.Strings(res)
	return res
}

// RegisterCodeBlock runs global code of the block and then adds its
// functions to the VM (shadowing the ones with the same names). Global code
// can call functions of the block itself. If it fails, the VM function table
// is left as it was before the call. The stack is cleared after the global
// code.
func (v *VM) RegisterCodeBlock(cb *dso.CodeBlock) error {
	if v.shutdown {
		return ErrShutdown
	}
	seen := make(map[string]struct{}, len(cb.Functions))
	for _, f := range cb.Functions {
		if _, ok := seen[f.Name]; ok {
			return fmt.Errorf("%w: %q", ErrDuplicateFunction, f.Name)
		}
		seen[f.Name] = struct{}{}
	}
	prev := make(map[string]function, len(cb.Functions))
	for _, f := range cb.Functions {
		if old, ok := v.functions[f.Name]; ok {
			prev[f.Name] = old
		}
		v.functions[f.Name] = function{block: cb, code: f.Code}
	}
	v.state = NoneState
	err := v.execute(NewContext("", cb, cb.Global))
	if err != nil {
		for _, f := range cb.Functions {
			if old, ok := prev[f.Name]; ok {
				v.functions[f.Name] = old
			} else {
				delete(v.functions, f.Name)
			}
		}
		v.fault(err)
		return err
	}
	for name := range prev {
		v.log.Debug("function is redefined", zap.String("function", name))
	}
	v.estack.Clear()
	v.halt()
	return nil
}

// Call calls a script function or a built-in with the given name and
// returns the whole stack contents as the result, the stack is empty after
// the call. Calling an unknown function is not an error, it returns a
// single empty string.
func (v *VM) Call(name string) ([]any, error) {
	if v.shutdown {
		return nil, ErrShutdown
	}
	v.state = NoneState
	if err := v.invoke(name); err != nil {
		v.fault(err)
		return nil, err
	}
	v.halt()
	return v.estack.Drain(), nil
}

// CallMethod calls a method on the object. Script functions named
// "namespace::name" are looked up for every object namespace, then native
// methods of the object type are tried. The object itself is pushed to the
// stack before the script method is executed.
func (v *VM) CallMethod(o *sim.Object, name string) ([]any, error) {
	if v.shutdown {
		return nil, ErrShutdown
	}
	v.state = NoneState
	if err := v.invokeMethod(o, name); err != nil {
		v.fault(err)
		return nil, err
	}
	v.halt()
	return v.estack.Drain(), nil
}

// Shutdown requests the VM to stop: the running code is unwound and all
// subsequent calls fail with ErrShutdown.
func (v *VM) Shutdown(code int) {
	if v.shutdown {
		return
	}
	v.log.Info("shutdown requested", zap.Int("code", code))
	v.shutdown = true
	v.exitCode = code
}

// ShutdownRequested returns whether the shutdown was requested and the exit
// code requested.
func (v *VM) ShutdownRequested() (bool, int) {
	return v.shutdown, v.exitCode
}

func (v *VM) halt() {
	if v.shutdown {
		v.state = ShutdownState
		return
	}
	v.state = HaltState
}

func (v *VM) fault(err error) {
	v.log.Warn("execution failed", zap.Error(err))
	v.istack = v.istack[:0]
	v.estack.Clear()
	v.state = FaultState
}

// invoke calls the function leaving the result on the stack.
func (v *VM) invoke(name string) error {
	if f, ok := v.functions[name]; ok {
		callsTotal.WithLabelValues("script").Inc()
		return v.execute(NewContext(name, f.block, f.code))
	}
	if b, ok := v.builtins[name]; ok {
		callsTotal.WithLabelValues("builtin").Inc()
		if err := b(v); err != nil {
			return &ExecutionError{Function: name, Err: err}
		}
		return nil
	}
	callsTotal.WithLabelValues("unknown").Inc()
	v.log.Warn("attempted to call non-existent function", zap.String("function", name))
	v.estack.Replace("")
	return nil
}

// invokeMethod calls the method leaving the result on the stack.
func (v *VM) invokeMethod(o *sim.Object, name string) error {
	for _, ns := range o.Namespaces() {
		fname := dso.LowerName(ns + "::" + name)
		if f, ok := v.functions[fname]; ok {
			callsTotal.WithLabelValues("method").Inc()
			ctx := NewContext(fname, f.block, f.code)
			ctx.this = o
			v.estack.PushVal(o)
			return v.execute(ctx)
		}
	}
	if m, ok := o.Type().Method(name); ok {
		callsTotal.WithLabelValues("native").Inc()
		res, err := m(o)
		if err != nil {
			return fmt.Errorf("%s::%s: %w", o.Type().Name(), name, err)
		}
		v.estack.PushVal(res)
		return nil
	}
	callsTotal.WithLabelValues("unknown").Inc()
	v.log.Warn("attempted to call non-existent method",
		zap.Uint32("object", o.ID()),
		zap.String("type", o.Type().Name()),
		zap.String("method", name))
	v.estack.Replace("")
	return nil
}

// execute runs the context until its end, RET or a shutdown request.
func (v *VM) execute(ctx *Context) error {
	if len(v.istack) >= v.maxDepth {
		return &ExecutionError{Function: ctx.name, Err: fmt.Errorf("%w: %d", ErrCallDepth, v.maxDepth)}
	}
	v.istack = append(v.istack, ctx)
	defer func() {
		if n := len(v.istack); n > 0 && v.istack[n-1] == ctx {
			v.istack = v.istack[:n-1]
		}
	}()
	for !v.shutdown {
		ins, ok := ctx.next()
		if !ok {
			break
		}
		if err := v.executeOp(ctx, ins); err != nil {
			var ee *ExecutionError
			if errors.As(err, &ee) {
				return err
			}
			return &ExecutionError{Function: ctx.name, IP: ctx.ip - 1, Op: ins.Op, Err: err}
		}
	}
	return nil
}

// executeOp executes one instruction in the given context. If the opcode
// has no handler ErrUnsupportedInstruction is returned.
func (v *VM) executeOp(ctx *Context, ins dso.Instruction) error {
	h, ok := v.handlers[ins.Op]
	if !ok {
		return ErrUnsupportedInstruction
	}
	instructionsTotal.WithLabelValues(ins.Op.String()).Inc()
	return h(v, ctx, ins)
}

// NextIdentifier allocates a new object identifier, identifiers start
// from 1 and are never reused.
func (v *VM) NextIdentifier() uint32 {
	v.lastID++
	return v.lastID
}

// NewObject creates an object of the named type (case-insensitive) and adds
// it to the object table. Named objects can be found by their names.
func (v *VM) NewObject(typeName, name string) (*sim.Object, error) {
	o, err := v.types.New(v, typeName, name)
	if err != nil {
		return nil, err
	}
	v.objects[o.ID()] = o
	if name != "" {
		v.names[strings.ToLower(name)] = o
	}
	objectsCreated.Inc()
	v.log.Debug("object created",
		zap.Uint32("id", o.ID()),
		zap.String("type", o.Type().Name()),
		zap.String("name", name))
	return o, nil
}

// Object returns an object by its identifier.
func (v *VM) Object(id uint32) (*sim.Object, bool) {
	o, ok := v.objects[id]
	return o, ok
}

// FindObject resolves an object reference: an object itself, a numeric
// identifier or an object name. Nil is returned for unknown and deleted
// objects.
func (v *VM) FindObject(ref any) *sim.Object {
	switch r := ref.(type) {
	case *sim.Object:
		if r.Valid() {
			return r
		}
	case float64:
		if r >= 1 && r <= float64(^uint32(0)) && r == float64(uint32(r)) {
			return v.objects[uint32(r)]
		}
	case string:
		if id, err := strconv.ParseUint(strings.TrimSpace(r), 10, 32); err == nil {
			return v.objects[uint32(id)]
		}
		return v.names[strings.ToLower(r)]
	}
	return nil
}

// DeleteObject removes the object from the object table.
func (v *VM) DeleteObject(id uint32) error {
	o, ok := v.objects[id]
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownObject, id)
	}
	delete(v.objects, id)
	if o.Name() != "" {
		k := strings.ToLower(o.Name())
		if v.names[k] == o {
			delete(v.names, k)
		}
	}
	o.Invalidate()
	objectsDeleted.Inc()
	v.log.Debug("object deleted", zap.Uint32("id", id))
	return nil
}

// Objects returns all live objects sorted by identifier.
func (v *VM) Objects() []*sim.Object {
	res := make([]*sim.Object, 0, len(v.objects))
	for _, o := range v.objects {
		res = append(res, o)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].ID() < res[j].ID() })
	return res
}
