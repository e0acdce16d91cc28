package goxide

import "fmt"

// Naming convention, carried over from the library the primitives were
// distilled from: `?` stays, `!` stays, names match their Scheme
// surface spelling.  Arity and type checks are each primitive's own
// responsibility.

// registerPrimitives defines every built-in in the global environment
// and stores the primitive values in the matching global frame slots.
func registerPrimitives(h *Heap, env *Env, afi *ActivationFrameInfo, frame *ActivationFrame) {
	tables := [][]Primitive{
		objectPrimitives,
		numericPrimitives,
		pairPrimitives,
		symbolPrimitives,
		charPrimitives,
		stringPrimitives,
		vectorPrimitives,
		portPrimitives,
		syncloPrimitives,
		controlPrimitives,
	}
	for _, table := range tables {
		for i := range table {
			p := table[i]
			idx := env.Define(p.Name, afi, true)
			frame.EnsureIndex(h, idx+1)
			frame.Vals[idx] = h.Insert(&p)
		}
	}
}

// controlPrimitives need register access; the VM dispatches them by
// name when it finds a nil Impl in the function register.
var controlPrimitives = []Primitive{
	{Name: "apply", Impl: nil},
	{Name: "%call/cc", Impl: nil},
	{Name: "eval", Impl: nil},
}

// checkArgs verifies a primitive's argument count; max < 0 means
// unbounded.
func checkArgs(args []PoolPtr, min, max int) error {
	if len(args) < min {
		return fmt.Errorf("too few arguments, expecting at least %d", min)
	}
	if max >= 0 && len(args) > max {
		return fmt.Errorf("too many arguments, expecting at most %d", max)
	}
	return nil
}

func wrongType(want string, got PoolPtr) error {
	return fmt.Errorf("expected %s, got %s", want, PrettyPrint(got))
}

func boolValue(h *Heap, b bool) PoolPtr {
	if b {
		return h.True
	}
	return h.False
}
