package vm

import (
	"fmt"
	"math"
	"strings"

	"github.com/tribes-emu/dsovm/pkg/sim"
	"go.uber.org/zap"
)

func defaultBuiltins() map[string]Builtin {
	return map[string]Builtin{
		"echo":      echo,
		"error":     printError,
		"warn":      warn,
		"vectorAdd": vectorAdd,
		"vectorSub": vectorSub,
		"vectorLen": vectorLen,
		"isObject":  isObject,
		"nameToID":  nameToID,
		"quit":      quit,
	}
}

// echo prints the top stack value.
func echo(v *VM) error {
	e, err := v.estack.Pop()
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(v.out, e.String())
	return err
}

func printError(v *VM) error {
	e, err := v.estack.Pop()
	if err != nil {
		return err
	}
	v.log.Error("script error", zap.String("message", e.String()))
	_, err = fmt.Fprintln(v.out, e.String())
	return err
}

func warn(v *VM) error {
	e, err := v.estack.Pop()
	if err != nil {
		return err
	}
	v.log.Warn("script warning", zap.String("message", e.String()))
	_, err = fmt.Fprintln(v.out, e.String())
	return err
}

// vector parses space-separated vector components padding it with zeroes
// up to 3 components.
func vector(e Element) ([]float64, error) {
	fields := strings.Fields(e.String())
	res := make([]float64, 0, 3)
	for _, f := range fields {
		n, err := sim.ToNumber(f)
		if err != nil {
			return nil, fmt.Errorf("vector %q: %w", e.String(), err)
		}
		res = append(res, n)
	}
	for len(res) < 3 {
		res = append(res, 0)
	}
	return res, nil
}

func formatVector(c []float64) string {
	return fmt.Sprintf("%f %f %f", c[0], c[1], c[2])
}

// popTwoVectors pops b and then a.
func popTwoVectors(v *VM) ([]float64, []float64, error) {
	eb, err := v.estack.Pop()
	if err != nil {
		return nil, nil, err
	}
	ea, err := v.estack.Pop()
	if err != nil {
		return nil, nil, err
	}
	b, err := vector(eb)
	if err != nil {
		return nil, nil, err
	}
	a, err := vector(ea)
	if err != nil {
		return nil, nil, err
	}
	return a, b, nil
}

func vectorAdd(v *VM) error {
	a, b, err := popTwoVectors(v)
	if err != nil {
		return err
	}
	v.estack.PushVal(formatVector([]float64{a[0] + b[0], a[1] + b[1], a[2] + b[2]}))
	return nil
}

func vectorSub(v *VM) error {
	a, b, err := popTwoVectors(v)
	if err != nil {
		return err
	}
	v.estack.PushVal(formatVector([]float64{a[0] - b[0], a[1] - b[1], a[2] - b[2]}))
	return nil
}

func vectorLen(v *VM) error {
	e, err := v.estack.Pop()
	if err != nil {
		return err
	}
	c, err := vector(e)
	if err != nil {
		return err
	}
	v.estack.PushVal(math.Sqrt(c[0]*c[0] + c[1]*c[1] + c[2]*c[2]))
	return nil
}

func isObject(v *VM) error {
	e, err := v.estack.Pop()
	if err != nil {
		return err
	}
	v.estack.PushVal(v.FindObject(e.Value()) != nil)
	return nil
}

// nameToID pushes object identifier or -1.
func nameToID(v *VM) error {
	e, err := v.estack.Pop()
	if err != nil {
		return err
	}
	if o := v.FindObject(e.Value()); o != nil {
		v.estack.PushVal(o.ID())
		return nil
	}
	v.estack.PushVal(-1)
	return nil
}

// quit requests the VM shutdown. A number on top of the stack is taken as
// the exit code, anything else is left in place and the code is 0.
func quit(v *VM) error {
	var code int
	if e, err := v.estack.Top(); err == nil {
		if n, err := e.Number(); err == nil {
			code = int(n)
			if _, err := v.estack.Pop(); err != nil {
				return err
			}
		}
	}
	v.Shutdown(code)
	return nil
}
