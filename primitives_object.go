package goxide

import (
	"fmt"
	"strings"
)

var objectPrimitives = []Primitive{
	{Name: "eq?", Impl: eqP},
	{Name: "eqv?", Impl: eqvP},
	{Name: "equal?", Impl: equalP},
	{Name: "not", Impl: notP},
	{Name: "boolean?", Impl: booleanP},
	{Name: "procedure?", Impl: procedureP},
	{Name: "null?", Impl: nullP},
	{Name: "display", Impl: display},
	{Name: "write", Impl: write},
	{Name: "newline", Impl: newline},
	{Name: "error", Impl: errorPrimitive},
	{Name: "environment?", Impl: environmentP},
	// The environment constructors hand back the interpreter's global
	// environment, so they live in the VM dispatch with the other
	// nil-Impl primitives.  See invokeSpecial.
	{Name: "interaction-environment"},
	{Name: "null-environment"},
	{Name: "scheme-report-environment"},
}

func eqP(h *Heap, args []PoolPtr) (PoolPtr, error) {
	if err := checkArgs(args, 2, 2); err != nil {
		return PoolPtr{}, err
	}
	return boolValue(h, args[0] == args[1] || Eqv(args[0], args[1])), nil
}

func eqvP(h *Heap, args []PoolPtr) (PoolPtr, error) {
	if err := checkArgs(args, 2, 2); err != nil {
		return PoolPtr{}, err
	}
	return boolValue(h, Eqv(args[0], args[1])), nil
}

func equalP(h *Heap, args []PoolPtr) (PoolPtr, error) {
	if err := checkArgs(args, 2, 2); err != nil {
		return PoolPtr{}, err
	}
	return boolValue(h, Equal(args[0], args[1])), nil
}

func notP(h *Heap, args []PoolPtr) (PoolPtr, error) {
	if err := checkArgs(args, 1, 1); err != nil {
		return PoolPtr{}, err
	}
	return boolValue(h, !isTruthy(args[0])), nil
}

func booleanP(h *Heap, args []PoolPtr) (PoolPtr, error) {
	if err := checkArgs(args, 1, 1); err != nil {
		return PoolPtr{}, err
	}
	_, ok := args[0].Get().(Boolean)
	return boolValue(h, ok), nil
}

func procedureP(h *Heap, args []PoolPtr) (PoolPtr, error) {
	if err := checkArgs(args, 1, 1); err != nil {
		return PoolPtr{}, err
	}
	switch args[0].Get().(type) {
	case *Lambda, *Primitive, *Continuation:
		return h.True, nil
	default:
		return h.False, nil
	}
}

func nullP(h *Heap, args []PoolPtr) (PoolPtr, error) {
	if err := checkArgs(args, 1, 1); err != nil {
		return PoolPtr{}, err
	}
	_, ok := args[0].Get().(EmptyList)
	return boolValue(h, ok), nil
}

func environmentP(h *Heap, args []PoolPtr) (PoolPtr, error) {
	if err := checkArgs(args, 1, 1); err != nil {
		return PoolPtr{}, err
	}
	_, ok := args[0].Get().(*Env)
	return boolValue(h, ok), nil
}

func display(h *Heap, args []PoolPtr) (PoolPtr, error) {
	return writeToPort(h, args, true)
}

func write(h *Heap, args []PoolPtr) (PoolPtr, error) {
	return writeToPort(h, args, false)
}

func writeToPort(h *Heap, args []PoolPtr, displayMode bool) (PoolPtr, error) {
	if err := checkArgs(args, 1, 2); err != nil {
		return PoolPtr{}, err
	}
	port, err := outputPortArg(h, args, 1)
	if err != nil {
		return PoolPtr{}, err
	}
	var s string
	if displayMode {
		s = DisplayString(args[0])
	} else {
		s = PrettyPrint(args[0])
	}
	if err := port.WriteString(s); err != nil {
		return PoolPtr{}, err
	}
	return h.Unspecific, nil
}

func newline(h *Heap, args []PoolPtr) (PoolPtr, error) {
	if err := checkArgs(args, 0, 1); err != nil {
		return PoolPtr{}, err
	}
	port, err := outputPortArg(h, args, 0)
	if err != nil {
		return PoolPtr{}, err
	}
	if err := port.WriteString("\n"); err != nil {
		return PoolPtr{}, err
	}
	return h.Unspecific, nil
}

// errorPrimitive raises a runtime error built from its arguments: the
// first is the message, the rest are written after it.
func errorPrimitive(h *Heap, args []PoolPtr) (PoolPtr, error) {
	var sb strings.Builder
	for i, a := range args {
		if i > 0 {
			sb.WriteByte(' ')
		}
		if i == 0 {
			sb.WriteString(DisplayString(a))
		} else {
			sb.WriteString(PrettyPrint(a))
		}
	}
	return PoolPtr{}, fmt.Errorf("%s", sb.String())
}
