package goxide

import (
	"fmt"
	"strings"
)

// Opcode identifies a VM instruction.
//
// NOTE: opNoOp is declared first, so the zero Opcode is the reserved
// patch slot.
type Opcode byte

const (
	// opNoOp is the reserved patch slot; executing one is a fatal
	// runtime error, since it means a jump was never back-patched.
	opNoOp Opcode = iota
	opConstant
	opJumpFalse
	opJump
	opDeepArgumentGet
	opDeepArgumentSet
	opCheckArity
	opExtendEnv
	opPreserveEnv
	opRestoreEnv
	opPushValue
	opCreateFrame
	opExtendFrame
	opCreateClosure
	opPopFunction
	opFunctionInvoke
	opReturn
	opFinish
)

var opNames = map[Opcode]string{
	opNoOp:            "no_op",
	opConstant:        "constant",
	opJumpFalse:       "jump_false",
	opJump:            "jump",
	opDeepArgumentGet: "deep_argument_get",
	opDeepArgumentSet: "deep_argument_set",
	opCheckArity:      "check_arity",
	opExtendEnv:       "extend_env",
	opPreserveEnv:     "preserve_env",
	opRestoreEnv:      "restore_env",
	opPushValue:       "push_value",
	opCreateFrame:     "create_frame",
	opExtendFrame:     "extend_frame",
	opCreateClosure:   "create_closure",
	opPopFunction:     "pop_function",
	opFunctionInvoke:  "function_invoke",
	opReturn:          "return",
	opFinish:          "finish",
}

// Instruction is one slot of a code block.  The operand fields are
// opcode-specific: N carries jump offsets, depths, arities, and frame
// sizes; M carries slot indexes; Ptr carries the constant payload.
type Instruction struct {
	Op       Opcode
	N, M     int
	Variadic bool
	// Tail marks a FunctionInvoke that must not push a return
	// address: the callee's Return then unwinds straight to the outer
	// caller, which is what keeps tail recursion in constant space.
	Tail bool
	Ptr  PoolPtr
}

// CodeBlock is a sealed instruction vector emitted by one toplevel
// compilation.  It is immutable after sealing; the embedded constants
// are traced through inventory, which is what keeps quoted data alive
// for as long as compiled code references it.
type CodeBlock struct {
	blockName string
	instrs    []Instruction
}

func (*CodeBlock) Type() string { return "code-block" }
func (c *CodeBlock) inventory(pv *ptrVec) {
	for i := range c.instrs {
		pv.Push(c.instrs[i].Ptr)
	}
}

func (c *CodeBlock) name() string {
	if c.blockName == "" {
		return "toplevel"
	}
	return c.blockName
}

// Len returns the number of instructions.
func (c *CodeBlock) Len() int { return len(c.instrs) }

// At returns instruction i.
func (c *CodeBlock) At(i int) Instruction { return c.instrs[i] }

// PrettyString disassembles the block, one instruction per line.
func (c *CodeBlock) PrettyString() string {
	var s strings.Builder
	fmt.Fprintf(&s, ";; %s\n", c.name())
	for i, in := range c.instrs {
		fmt.Fprintf(&s, "%06d  %s", i, opNames[in.Op])
		switch in.Op {
		case opConstant:
			fmt.Fprintf(&s, " %s", PrettyPrint(in.Ptr))
		case opJump, opJumpFalse, opCreateClosure:
			fmt.Fprintf(&s, " %+d", in.N)
		case opDeepArgumentGet, opDeepArgumentSet:
			fmt.Fprintf(&s, " %d %d", in.N, in.M)
		case opCheckArity:
			fmt.Fprintf(&s, " %d", in.N)
			if in.Variadic {
				s.WriteString(" variadic")
			}
		case opCreateFrame:
			fmt.Fprintf(&s, " %d", in.N)
		}
		s.WriteByte('\n')
	}
	return s.String()
}

// compiler accumulates the instruction stream for one toplevel
// compilation.
type compiler struct {
	instrs []Instruction
}

// CompileToplevel lowers a syntax tree into a sealed code block ending
// in Finish.  The returned pointer is unrooted; callers root it before
// the next allocation.
func CompileToplevel(h *Heap, tree SyntaxElement, name string) PoolPtr {
	c := &compiler{}
	c.compile(tree, false)
	c.emit(Instruction{Op: opFinish})
	block := &CodeBlock{blockName: name, instrs: c.instrs}
	block.checkBounds()
	return h.Insert(block)
}

// checkBounds verifies at emission time that every jump and closure
// entry lands inside the block.
func (c *CodeBlock) checkBounds() {
	for i, in := range c.instrs {
		switch in.Op {
		case opJump, opJumpFalse, opCreateClosure:
			target := i + 1 + in.N
			if target < 0 || target > len(c.instrs) {
				panic(fmt.Sprintf("code block %s: instruction %d jumps out of bounds", c.name(), i))
			}
		}
	}
}

func (c *compiler) emit(in Instruction) int {
	c.instrs = append(c.instrs, in)
	return len(c.instrs) - 1
}

// patch rewrites the reserved NoOp at idx with a jump to the current
// end of the stream.
func (c *compiler) patch(idx int, op Opcode) {
	c.instrs[idx] = Instruction{Op: op, N: len(c.instrs) - idx - 1}
}

// compile emits code leaving the expression's value in the
// accumulator.  In tail position, applications skip the environment
// save/restore and let the callee's Return unwind to the outer caller;
// this is the sole mechanism that makes unbounded self-recursion run
// in constant return-stack space.
func (c *compiler) compile(tree SyntaxElement, tail bool) {
	switch t := tree.(type) {
	case *ReferenceElement:
		c.emit(Instruction{Op: opDeepArgumentGet, N: t.Depth, M: t.Index})

	case *QuoteElement:
		c.emit(Instruction{Op: opConstant, Ptr: t.Quoted.Pp()})

	case *IfElement:
		c.compile(t.Cond, false)
		condJump := c.emit(Instruction{Op: opNoOp})
		c.compile(t.Then, tail)
		if t.Else != nil {
			trueEnd := c.emit(Instruction{Op: opNoOp})
			c.patch(condJump, opJumpFalse)
			c.compile(t.Else, tail)
			c.patch(trueEnd, opJump)
		} else {
			c.patch(condJump, opJumpFalse)
		}

	case *BeginElement:
		for i, e := range t.Body {
			c.compile(e, tail && i == len(t.Body)-1)
		}

	case *SetElement:
		c.compile(t.Value, false)
		c.emit(Instruction{Op: opDeepArgumentSet, N: t.Depth, M: t.Index})

	case *LambdaElement:
		c.emit(Instruction{Op: opCreateClosure, N: 1})
		skip := c.emit(Instruction{Op: opNoOp})
		c.emit(Instruction{Op: opCheckArity, N: t.Arity, Variadic: t.Variadic})
		c.emit(Instruction{Op: opExtendEnv})
		for _, d := range t.Defines {
			set := d.(*SetElement)
			c.compile(set.Value, false)
			c.emit(Instruction{Op: opExtendFrame})
		}
		for i, e := range t.Body {
			c.compile(e, i == len(t.Body)-1)
		}
		c.emit(Instruction{Op: opReturn})
		c.patch(skip, opJump)

	case *ApplicationElement:
		if !tail {
			c.emit(Instruction{Op: opPreserveEnv})
		}
		for _, a := range t.Args {
			c.compile(a, false)
			c.emit(Instruction{Op: opPushValue})
		}
		c.compile(t.Fun, false)
		c.emit(Instruction{Op: opPushValue})
		c.emit(Instruction{Op: opPopFunction})
		c.emit(Instruction{Op: opCreateFrame, N: len(t.Args)})
		c.emit(Instruction{Op: opFunctionInvoke, Tail: tail})
		if !tail {
			c.emit(Instruction{Op: opRestoreEnv})
		}

	default:
		panic(fmt.Sprintf("compile: unknown syntax element %T", tree))
	}
}
