package goxide

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func opsOf(c *CodeBlock) []Opcode {
	ops := make([]Opcode, c.Len())
	for i := 0; i < c.Len(); i++ {
		ops[i] = c.At(i).Op
	}
	return ops
}

func compileTree(t *testing.T, h *Heap, tree SyntaxElement) *CodeBlock {
	ptr := CompileToplevel(h, tree, "test")
	block, ok := ptr.Get().(*CodeBlock)
	require.True(t, ok)
	return block
}

func quoteOf(h *Heap, v Value) *QuoteElement {
	return &QuoteElement{Quoted: h.InsertRooted(v)}
}

func TestCompileQuote(t *testing.T) {
	h := NewHeap(GcOff)
	block := compileTree(t, h, quoteOf(h, NewInteger(42)))
	require.Equal(t, []Opcode{opConstant, opFinish}, opsOf(block))
	assert.Equal(t, "42", PrettyPrint(block.At(0).Ptr))
}

func TestCompileIfBackpatch(t *testing.T) {
	h := NewHeap(GcOff)
	tree := &IfElement{
		Cond: quoteOf(h, Boolean(true)),
		Then: quoteOf(h, NewInteger(1)),
		Else: quoteOf(h, NewInteger(2)),
	}
	block := compileTree(t, h, tree)
	require.Equal(t, []Opcode{
		opConstant,  // cond
		opJumpFalse, // over the true branch
		opConstant,  // then
		opJump,      // over the false branch
		opConstant,  // else
		opFinish,
	}, opsOf(block))
	// The jump offsets are relative to the already-advanced pc: the
	// JumpFalse at 1 lands on the else constant at 4, the Jump at 3
	// lands on the Finish at 5.
	assert.Equal(t, 2, block.At(1).N)
	assert.Equal(t, 1, block.At(3).N)
}

func TestCompileIfWithoutElse(t *testing.T) {
	h := NewHeap(GcOff)
	tree := &IfElement{
		Cond: quoteOf(h, Boolean(false)),
		Then: quoteOf(h, NewInteger(1)),
	}
	block := compileTree(t, h, tree)
	require.Equal(t, []Opcode{opConstant, opJumpFalse, opConstant, opFinish}, opsOf(block))
	assert.Equal(t, 1, block.At(1).N)
}

func TestCompileReferenceAndSet(t *testing.T) {
	h := NewHeap(GcOff)
	block := compileTree(t, h, &ReferenceElement{Depth: 2, Index: 5})
	require.Equal(t, []Opcode{opDeepArgumentGet, opFinish}, opsOf(block))
	assert.Equal(t, 2, block.At(0).N)
	assert.Equal(t, 5, block.At(0).M)

	block = compileTree(t, h, &SetElement{Depth: 0, Index: 1, Value: quoteOf(h, NewInteger(9))})
	require.Equal(t, []Opcode{opConstant, opDeepArgumentSet, opFinish}, opsOf(block))
}

func TestCompileApplicationShape(t *testing.T) {
	h := NewHeap(GcOff)
	tree := &ApplicationElement{
		Fun:  &ReferenceElement{Index: 0},
		Args: []SyntaxElement{quoteOf(h, NewInteger(1)), quoteOf(h, NewInteger(2))},
	}
	block := compileTree(t, h, tree)
	require.Equal(t, []Opcode{
		opPreserveEnv,
		opConstant, opPushValue,
		opConstant, opPushValue,
		opDeepArgumentGet, opPushValue,
		opPopFunction,
		opCreateFrame,
		opFunctionInvoke,
		opRestoreEnv,
		opFinish,
	}, opsOf(block))
	assert.Equal(t, 2, block.At(8).N)
	assert.False(t, block.At(9).Tail)
}

// A call in tail position loses the env save/restore bracket and marks
// the invoke as tail, so the callee returns straight to the outer
// caller.
func TestCompileTailCall(t *testing.T) {
	h := NewHeap(GcOff)
	lambda := &LambdaElement{
		Arity: 0,
		Body: []SyntaxElement{&ApplicationElement{
			Fun: &ReferenceElement{Index: 0},
		}},
	}
	block := compileTree(t, h, lambda)
	require.Equal(t, []Opcode{
		opCreateClosure,
		opJump,
		opCheckArity,
		opExtendEnv,
		opDeepArgumentGet, opPushValue,
		opPopFunction,
		opCreateFrame,
		opFunctionInvoke,
		opReturn,
		opFinish,
	}, opsOf(block))
	assert.True(t, block.At(8).Tail)
	for _, op := range opsOf(block) {
		assert.NotEqual(t, opPreserveEnv, op)
		assert.NotEqual(t, opRestoreEnv, op)
	}
}

func TestCompileLambdaEntry(t *testing.T) {
	h := NewHeap(GcOff)
	lambda := &LambdaElement{
		Arity:    1,
		Variadic: true,
		Body:     []SyntaxElement{&ReferenceElement{Index: 0}},
	}
	block := compileTree(t, h, lambda)
	// CreateClosure executes with pc pointing at the skip jump; its
	// offset of 1 lands on the CheckArity that starts the body.
	assert.Equal(t, opCreateClosure, block.At(0).Op)
	assert.Equal(t, 1, block.At(0).N)
	assert.Equal(t, opCheckArity, block.At(2).Op)
	assert.Equal(t, 1, block.At(2).N)
	assert.True(t, block.At(2).Variadic)
	// The skip jump clears the whole body including the Return.
	skip := block.At(1)
	assert.Equal(t, opJump, skip.Op)
	assert.Equal(t, opFinish, block.At(1+1+skip.N).Op)
}

func TestCompileInternalDefines(t *testing.T) {
	h := NewHeap(GcOff)
	lambda := &LambdaElement{
		Arity: 0,
		Defines: []SyntaxElement{
			&SetElement{Index: 0, Value: quoteOf(h, NewInteger(5))},
		},
		Body: []SyntaxElement{&ReferenceElement{Index: 0}},
	}
	block := compileTree(t, h, lambda)
	require.Equal(t, []Opcode{
		opCreateClosure,
		opJump,
		opCheckArity,
		opExtendEnv,
		opConstant,
		opExtendFrame,
		opDeepArgumentGet,
		opReturn,
		opFinish,
	}, opsOf(block))
}

func TestCompileBeginTailPosition(t *testing.T) {
	h := NewHeap(GcOff)
	lambda := &LambdaElement{
		Arity: 0,
		Body: []SyntaxElement{&BeginElement{Body: []SyntaxElement{
			&ApplicationElement{Fun: &ReferenceElement{Index: 0}},
			&ApplicationElement{Fun: &ReferenceElement{Index: 0}},
		}}},
	}
	block := compileTree(t, h, lambda)
	var invokes []Instruction
	for i := 0; i < block.Len(); i++ {
		if block.At(i).Op == opFunctionInvoke {
			invokes = append(invokes, block.At(i))
		}
	}
	require.Len(t, invokes, 2)
	assert.False(t, invokes[0].Tail)
	assert.True(t, invokes[1].Tail)
}

func TestCodeBlockBoundsCheck(t *testing.T) {
	block := &CodeBlock{instrs: []Instruction{{Op: opJump, N: 5}}}
	assert.Panics(t, func() { block.checkBounds() })
}

func TestCodeBlockPrettyString(t *testing.T) {
	h := NewHeap(GcOff)
	tree := &IfElement{
		Cond: quoteOf(h, Boolean(true)),
		Then: quoteOf(h, NewInteger(1)),
		Else: quoteOf(h, NewInteger(2)),
	}
	block := compileTree(t, h, tree)
	s := block.PrettyString()
	assert.Contains(t, s, "jump_false")
	assert.Contains(t, s, "constant #t")
	assert.Contains(t, s, "finish")
}

func TestCodeBlockInventoryKeepsConstants(t *testing.T) {
	h := NewHeap(GcOff)
	block := CompileToplevel(h, quoteOf(h, NewString("keep")), "t")
	root := h.Root(block)
	defer root.Drop()

	h.gc()
	assert.Equal(t, `"keep"`, PrettyPrint(block.Get().(*CodeBlock).At(0).Ptr))
}
