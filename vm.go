package goxide

import "fmt"

// The virtual machine.  Strictly synchronous and single threaded: run
// executes a code block to completion, error, or interruption.  The
// register file of every running VM is itself a GC root, so values held
// only in registers or on the stacks survive collections triggered by
// allocation inside primitives or nested VM invocations.

// returnPoint is one entry of the return stack: a code block and a
// program counter inside it.
type returnPoint struct {
	code PoolPtr
	pc   int
}

// Continuation is the captured state of a VM: copies of the stacks and
// the register file.  Reinstating one discards the current stacks and
// replaces them with fresh copies, which is what makes continuations
// multi-shot.
type Continuation struct {
	stack       []PoolPtr
	returnStack []returnPoint
	code        PoolPtr
	pc          int
	env         PoolPtr
}

func (*Continuation) Type() string { return "continuation" }
func (c *Continuation) inventory(pv *ptrVec) {
	for _, v := range c.stack {
		pv.Push(v)
	}
	for _, r := range c.returnStack {
		pv.Push(r.code)
	}
	pv.Push(c.code)
	pv.Push(c.env)
}

type vm struct {
	interp *Interpreter
	h      *Heap

	acc         PoolPtr
	code        PoolPtr // the executing CodeBlock
	pc          int
	stack       []PoolPtr
	returnStack []returnPoint
	env         PoolPtr
	fun         PoolPtr
}

// inventory makes the register file visible to the collector.
func (m *vm) inventory(pv *ptrVec) {
	pv.Push(m.acc)
	pv.Push(m.code)
	pv.Push(m.env)
	pv.Push(m.fun)
	for _, v := range m.stack {
		pv.Push(v)
	}
	for _, r := range m.returnStack {
		pv.Push(r.code)
	}
}

// runVM executes code starting at pc in env and returns the rooted
// answer.  Re-entrant: macro expansion and eval spawn nested VMs over
// the same heap.
func runVM(interp *Interpreter, code PoolPtr, pc int, env PoolPtr) (RootPtr, error) {
	h := interp.Heap
	m := &vm{
		interp: interp,
		h:      h,
		acc:    h.Unspecific,
		code:   code,
		pc:     pc,
		env:    env,
	}
	h.RootVM(m)
	defer h.UnrootVM()

	if err := m.run(); err != nil {
		return RootPtr{}, err
	}
	return h.Root(m.acc), nil
}

func (m *vm) block() *CodeBlock { return m.code.Get().(*CodeBlock) }

func (m *vm) run() error {
	for {
		in := m.block().At(m.pc)
		m.pc++

		switch in.Op {
		case opConstant:
			m.acc = in.Ptr

		case opJumpFalse:
			if !isTruthy(m.acc) {
				m.pc += in.N
				if in.N < 0 && m.checkInterrupt() {
					return m.interrupted()
				}
			}

		case opJump:
			m.pc += in.N
			if in.N < 0 && m.checkInterrupt() {
				return m.interrupted()
			}

		case opDeepArgumentGet:
			frame := m.env.Get().(*ActivationFrame)
			v := frame.GetSlot(in.N, in.M)
			if _, undef := v.Get().(Undefined); undef {
				return &RuntimeError{Msg: "variable used before definition"}
			}
			m.acc = v

		case opDeepArgumentSet:
			frame := m.env.Get().(*ActivationFrame)
			frame.SetSlot(in.N, in.M, m.acc)
			m.acc = m.h.Unspecific

		case opCheckArity:
			if err := m.checkArity(in.N, in.Variadic); err != nil {
				return err
			}

		case opExtendEnv:
			frame, ok := m.acc.Get().(*ActivationFrame)
			if !ok {
				panic("extending env: accumulator is not an activation frame")
			}
			frame.Parent = m.env
			m.env = m.acc

		case opPreserveEnv:
			m.stack = append(m.stack, m.env)

		case opRestoreEnv:
			envPtr := m.popStack("restoring env")
			if _, ok := envPtr.Get().(*ActivationFrame); !ok {
				panic("restoring non-activation frame")
			}
			m.env = envPtr

		case opPushValue:
			m.stack = append(m.stack, m.acc)

		case opCreateFrame:
			// The extra slot at the end is the variadic tail.  The
			// arguments stay on the value stack until after the
			// allocation so a collection triggered by it still sees
			// them.
			if len(m.stack) < in.N {
				panic("creating frame with too few values on stack")
			}
			vals := make([]PoolPtr, in.N+1)
			vals[in.N] = m.h.Undefined
			copy(vals, m.stack[len(m.stack)-in.N:])
			m.acc = m.h.Insert(&ActivationFrame{Vals: vals})
			m.stack = m.stack[:len(m.stack)-in.N]

		case opExtendFrame:
			frame := m.env.Get().(*ActivationFrame)
			frame.Vals = append(frame.Vals, m.acc)
			m.acc = m.h.Unspecific

		case opCreateClosure:
			m.acc = m.h.Insert(&Lambda{
				Code:  m.code,
				Entry: m.pc + in.N,
				Env:   m.env,
			})

		case opPopFunction:
			funPtr := m.popStack("popping function")
			switch funPtr.Get().(type) {
			case *Lambda, *Primitive, *Continuation:
				m.fun = funPtr
			default:
				return &RuntimeError{Msg: fmt.Sprintf("cannot invoke non-function: %s", PrettyPrint(funPtr))}
			}

		case opFunctionInvoke:
			if m.checkInterrupt() {
				return m.interrupted()
			}
			if err := m.invoke(in.Tail); err != nil {
				return err
			}

		case opReturn:
			if len(m.returnStack) == 0 {
				panic("returning with no values on return stack")
			}
			rp := m.returnStack[len(m.returnStack)-1]
			m.returnStack = m.returnStack[:len(m.returnStack)-1]
			m.code = rp.code
			m.pc = rp.pc

		case opNoOp:
			return &RuntimeError{Msg: "no_op instruction executed: un-patched jump"}

		case opFinish:
			return nil

		default:
			panic(fmt.Sprintf("vm: unknown opcode %d", in.Op))
		}
	}
}

func (m *vm) popStack(what string) PoolPtr {
	if len(m.stack) == 0 {
		panic(what + " with no values on stack")
	}
	v := m.stack[len(m.stack)-1]
	m.stack = m.stack[:len(m.stack)-1]
	return v
}

func (m *vm) checkInterrupt() bool {
	return m.interp.interrupted.Load()
}

func (m *vm) interrupted() error {
	m.interp.interrupted.Store(false)
	return &RuntimeError{Msg: "interrupted"}
}

// checkArity validates the frame in the accumulator against the
// callee's arity.  For a fixed lambda the variadic tail slot is
// dropped; for a dotted lambda the extra arguments and the tail slot
// collapse into a list stored at slot arity, so the internal defines
// that follow always land on the slots the front end assigned them.
func (m *vm) checkArity(arity int, variadic bool) error {
	frame, ok := m.acc.Get().(*ActivationFrame)
	if !ok {
		panic("checking arity: accumulator is not an activation frame")
	}
	got := len(frame.Vals) - 1
	if variadic {
		if got < arity {
			return &RuntimeError{Msg: fmt.Sprintf("expected at least %d arguments, got %d", arity, got)}
		}
		restRoot := m.h.Root(m.acc)
		rest := vecToList(m.h, frame.Vals[arity:got])
		restRoot.Drop()
		frame.Vals = append(frame.Vals[:arity], rest)
		return nil
	}
	if got != arity {
		return &RuntimeError{Msg: fmt.Sprintf("expected %d arguments, got %d", arity, got)}
	}
	frame.Vals = frame.Vals[:arity]
	return nil
}

// invoke calls whatever is in the function register with the frame in
// the accumulator.
func (m *vm) invoke(tail bool) error {
	for {
		switch fun := m.fun.Get().(type) {
		case *Lambda:
			if !tail {
				m.returnStack = append(m.returnStack, returnPoint{code: m.code, pc: m.pc})
			}
			m.env = fun.Env
			m.code = fun.Code
			m.pc = fun.Entry
			return nil

		case *Continuation:
			frame := m.acc.Get().(*ActivationFrame)
			if len(frame.Vals) != 2 {
				return &RuntimeError{Msg: fmt.Sprintf("continuation expects 1 argument, got %d", len(frame.Vals)-1)}
			}
			value := frame.Vals[0]
			m.stack = append([]PoolPtr(nil), fun.stack...)
			m.returnStack = append([]returnPoint(nil), fun.returnStack...)
			m.code = fun.code
			m.pc = fun.pc
			m.env = fun.env
			m.acc = value
			return nil

		case *Primitive:
			if fun.Impl == nil {
				again, err := m.invokeSpecial(fun.Name, tail)
				if err != nil {
					return err
				}
				if again {
					continue
				}
				return nil
			}
			frame := m.acc.Get().(*ActivationFrame)
			result, err := fun.Impl(m.h, frame.Vals[:len(frame.Vals)-1])
			if err != nil {
				return &RuntimeError{Msg: fmt.Sprintf("%s: %s", fun.Name, err)}
			}
			m.acc = result
			return nil

		default:
			return &RuntimeError{Msg: fmt.Sprintf("cannot invoke non-function: %s", PrettyPrint(m.fun))}
		}
	}
}

// invokeSpecial dispatches the primitives that need access to the
// register file.  It returns true when the function register has been
// rewritten and the invoke loop should go around again.
func (m *vm) invokeSpecial(name string, tail bool) (bool, error) {
	frame := m.acc.Get().(*ActivationFrame)
	args := frame.Vals[:len(frame.Vals)-1]
	switch name {
	case "apply":
		// (apply f x ... lst): the last argument flattens into the
		// call.
		if len(args) < 2 {
			return false, &RuntimeError{Msg: fmt.Sprintf("apply: expected at least 2 arguments, got %d", len(args))}
		}
		f := args[0]
		fixed := args[1 : len(args)-1]
		rest, err := listToVec(args[len(args)-1])
		if err != nil {
			return false, &RuntimeError{Msg: fmt.Sprintf("apply: last argument must be a list: %s", err)}
		}
		accRoot := m.h.Root(m.acc)
		vals := make([]PoolPtr, 0, len(fixed)+len(rest)+1)
		vals = append(vals, fixed...)
		vals = append(vals, rest...)
		vals = append(vals, m.h.Undefined)
		m.acc = m.h.Insert(&ActivationFrame{Vals: vals})
		accRoot.Drop()
		m.fun = f
		return true, nil

	case "%call/cc":
		if len(args) != 1 {
			return false, &RuntimeError{Msg: fmt.Sprintf("%%call/cc: expected 1 argument, got %d", len(args))}
		}
		f := args[0]
		cont := &Continuation{
			stack:       append([]PoolPtr(nil), m.stack...),
			returnStack: append([]returnPoint(nil), m.returnStack...),
			code:        m.code,
			pc:          m.pc,
			env:         m.env,
		}
		accRoot := m.h.Root(m.acc)
		contPtr := m.h.Insert(cont)
		contRoot := m.h.Root(contPtr)
		m.acc = m.h.Insert(&ActivationFrame{Vals: []PoolPtr{contPtr, m.h.Undefined}})
		contRoot.Drop()
		accRoot.Drop()
		m.fun = f
		return true, nil

	case "eval":
		if len(args) < 1 || len(args) > 2 {
			return false, &RuntimeError{Msg: fmt.Sprintf("eval: expected 1 or 2 arguments, got %d", len(args))}
		}
		exprRoot := m.h.Root(args[0])
		defer exprRoot.Drop()
		result, err := m.interp.ParseCompileRun(exprRoot)
		if err != nil {
			return false, &RuntimeError{Msg: fmt.Sprintf("eval: %s", err)}
		}
		m.acc = result.Pp()
		result.Drop()
		return false, nil

	case "interaction-environment", "null-environment", "scheme-report-environment":
		m.acc = m.h.Insert(m.interp.globalEnv)
		return false, nil

	default:
		return false, &RuntimeError{Msg: fmt.Sprintf("unknown special primitive %s", name)}
	}
}
