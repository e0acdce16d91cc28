package goxide

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readOne(t *testing.T, input string) (*Heap, RootPtr) {
	h := NewHeap(GcOff)
	r := NewReader(h, false, "<test>")
	v, err := r.Read(input)
	require.NoError(t, err)
	return h, v
}

// Reading then writing is the identity on acyclic data, modulo numeric
// canonicalization.
func TestReadWriteRoundTrip(t *testing.T) {
	tests := []string{
		"42",
		"-7",
		"1/3",
		`"hello world"`,
		"#t",
		"#f",
		"()",
		"(1 2 3)",
		"(1 . 2)",
		"(1 2 . 3)",
		"((a b) (c d))",
		"#(1 #t x)",
		"#u8(0 255)",
		`#\a`,
		`#\newline`,
		"'x",
		"`(a ,b ,@c)",
		"(quote x y)",
	}
	for _, input := range tests {
		t.Run(input, func(t *testing.T) {
			_, v := readOne(t, input)
			assert.Equal(t, input, PrettyPrint(v.Pp()))
		})
	}
}

func TestReadCanonicalization(t *testing.T) {
	tests := []struct {
		input, want string
	}{
		{"4/2", "2"},
		{"+42", "42"},
		{"ABC", "abc"},
		{"#b101", "5"},
	}
	for _, tt := range tests {
		_, v := readOne(t, tt.input)
		assert.Equal(t, tt.want, PrettyPrint(v.Pp()))
	}
}

func TestReadInternsSymbols(t *testing.T) {
	h := NewHeap(GcOff)
	r := NewReader(h, false, "<test>")
	a, err := r.Read("foo")
	require.NoError(t, err)
	b, err := r.Read("FOO")
	require.NoError(t, err)
	assert.Equal(t, a.Pp(), b.Pp())
}

func TestReadCanonicalSingletons(t *testing.T) {
	h := NewHeap(GcOff)
	r := NewReader(h, false, "<test>")
	v, err := r.Read("#t")
	require.NoError(t, err)
	assert.Equal(t, h.True, v.Pp())
	v, err = r.Read("()")
	require.NoError(t, err)
	assert.Equal(t, h.EmptyList, v.Pp())
}

func TestReadQuoteExpansion(t *testing.T) {
	_, v := readOne(t, "'x")
	elems, err := listToVec(v.Pp())
	require.NoError(t, err)
	require.Len(t, elems, 2)
	assert.Equal(t, Symbol("quote"), elems[0].Get())
	assert.Equal(t, Symbol("x"), elems[1].Get())
}

func TestReadMany(t *testing.T) {
	h := NewHeap(GcOff)
	r := NewReader(h, false, "<test>")
	vals, err := r.ReadMany("1 (2 3)\n x")
	require.NoError(t, err)
	require.Len(t, vals, 3)
	assert.Equal(t, "1", PrettyPrint(vals[0].Pp()))
	assert.Equal(t, "(2 3)", PrettyPrint(vals[1].Pp()))
	assert.Equal(t, "x", PrettyPrint(vals[2].Pp()))
	for _, v := range vals {
		v.Drop()
	}
}

func TestReadManyUnterminated(t *testing.T) {
	h := NewHeap(GcOff)
	r := NewReader(h, false, "<test>")
	_, err := r.ReadMany("(a (b)")
	assert.Error(t, err)
}

func TestReadErrors(t *testing.T) {
	h := NewHeap(GcOff)
	r := NewReader(h, false, "<test>")
	for _, input := range []string{"(a . )", "(a . b c)", "#u8(300)", "#u8(x)"} {
		_, err := r.Read(input)
		assert.Error(t, err, input)
	}
}

func TestReadLocated(t *testing.T) {
	h := NewHeap(GcOff)
	r := NewReader(h, true, "file.scm")
	v, err := r.Read("(a b)")
	require.NoError(t, err)

	loc, ok := v.Get().(*Located)
	require.True(t, ok)
	assert.Equal(t, "file.scm", loc.Loc.FileName)
	// Printing sees through the wrapper.
	assert.Equal(t, "(a b)", PrettyPrint(v.Pp()))

	inner, locator := unwrapLocated(v.Pp())
	assert.NotNil(t, locator)
	_, isPair := inner.Get().(*Pair)
	assert.True(t, isPair)
}

// Reading survives a collection after every allocation: everything the
// reader builds is rooted before the next heap operation.
func TestReadUnderHeavyGc(t *testing.T) {
	h := NewHeap(GcDebugHeavy)
	r := NewReader(h, true, "<test>")
	v, err := r.Read("(1 (2 #(3 x)) . \"s\")")
	require.NoError(t, err)
	assert.Equal(t, `(1 (2 #(3 x)) . "s")`, PrettyPrint(v.Pp()))
	v.Drop()
}
