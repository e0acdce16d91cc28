package goxide

import (
	"fmt"
	"math/big"
	"strings"
)

// Value is the tagged sum stored in heap cells.  Variants report their
// outgoing heap pointers through inventory so the collector can trace
// them; atoms contribute nothing.
type Value interface {
	// Type returns the name of the variant, used in diagnostics.
	Type() string

	inventory(*ptrVec)
}

// Atoms

type Unspecific struct{}
type EmptyList struct{}
type Eof struct{}

// Undefined is the sentinel stored in frame slots that have been
// reserved but not yet initialized.  Reading one is a runtime error.
type Undefined struct{}

type Boolean bool
type Character rune
type Symbol string
type Real float64
type ComplexReal complex128

// Integer is an exact integer of arbitrary precision.
type Integer struct{ N *big.Int }

// Rational is an exact non-integer rational.  The reader and numeric
// primitives canonicalize: a rational with denominator 1 never
// survives as a Rational.
type Rational struct{ R *big.Rat }

type ComplexInteger struct{ Re, Im *big.Int }
type ComplexRational struct{ Re, Im *big.Rat }

func (Unspecific) Type() string      { return "unspecific" }
func (EmptyList) Type() string       { return "empty-list" }
func (Eof) Type() string             { return "eof" }
func (Undefined) Type() string       { return "undefined" }
func (Boolean) Type() string         { return "boolean" }
func (Character) Type() string       { return "character" }
func (Symbol) Type() string          { return "symbol" }
func (Real) Type() string            { return "real" }
func (ComplexReal) Type() string     { return "complex" }
func (Integer) Type() string         { return "integer" }
func (Rational) Type() string        { return "rational" }
func (ComplexInteger) Type() string  { return "complex" }
func (ComplexRational) Type() string { return "complex" }

func (Unspecific) inventory(*ptrVec)      {}
func (EmptyList) inventory(*ptrVec)       {}
func (Eof) inventory(*ptrVec)             {}
func (Undefined) inventory(*ptrVec)       {}
func (Boolean) inventory(*ptrVec)         {}
func (Character) inventory(*ptrVec)       {}
func (Symbol) inventory(*ptrVec)          {}
func (Real) inventory(*ptrVec)            {}
func (ComplexReal) inventory(*ptrVec)     {}
func (Integer) inventory(*ptrVec)         {}
func (Rational) inventory(*ptrVec)        {}
func (ComplexInteger) inventory(*ptrVec)  {}
func (ComplexRational) inventory(*ptrVec) {}

// NewInteger wraps a machine integer.
func NewInteger(n int64) Integer { return Integer{N: big.NewInt(n)} }

// Mutable compounds.  The heap cell holds the pointer; mutation goes
// through the struct, never by replacing the cell contents.

// String is a mutable Scheme string.
type String struct{ Chars []rune }

func (*String) Type() string      { return "string" }
func (*String) inventory(*ptrVec) {}

// NewString builds a mutable string value from a Go string.
func NewString(s string) *String { return &String{Chars: []rune(s)} }

func (s *String) String() string { return string(s.Chars) }

// ByteVector is a mutable vector of bytes.
type ByteVector struct{ Bytes []byte }

func (*ByteVector) Type() string      { return "bytevector" }
func (*ByteVector) inventory(*ptrVec) {}

// Vector is a mutable sequence of heap pointers.
type Vector struct{ Vals []PoolPtr }

func (*Vector) Type() string { return "vector" }
func (v *Vector) inventory(pv *ptrVec) {
	for _, e := range v.Vals {
		pv.Push(e)
	}
}

// Pair is two mutable cells of heap pointers.
type Pair struct{ Car, Cdr PoolPtr }

func (*Pair) Type() string { return "pair" }
func (p *Pair) inventory(pv *ptrVec) {
	pv.Push(p.Car)
	pv.Push(p.Cdr)
}

// Lambda is a compiled closure: an entry point into a code block plus
// the captured environment.
type Lambda struct {
	Name  string
	Code  PoolPtr // a CodeBlock value
	Entry int
	Env   PoolPtr // an ActivationFrame value
}

func (*Lambda) Type() string { return "procedure" }
func (l *Lambda) inventory(pv *ptrVec) {
	pv.Push(l.Code)
	pv.Push(l.Env)
}

// PrimitiveImpl is the host-side implementation of a primitive.  Arity
// and type checks are its own responsibility.
type PrimitiveImpl func(h *Heap, args []PoolPtr) (PoolPtr, error)

// Primitive is an operation implemented by the host.  A nil Impl marks
// the handful of operations (apply, %call/cc, eval) that need register
// access and are dispatched inside the VM itself.
type Primitive struct {
	Name string
	Impl PrimitiveImpl
}

func (*Primitive) Type() string      { return "primitive" }
func (*Primitive) inventory(*ptrVec) {}

// ActivationFrame is the runtime record of a lambda invocation.  Frames
// link via Parent to form the lexical chain; the root frame has a nil
// parent.
type ActivationFrame struct {
	Parent PoolPtr
	Vals   []PoolPtr
}

func (*ActivationFrame) Type() string { return "activation-frame" }
func (f *ActivationFrame) inventory(pv *ptrVec) {
	pv.Push(f.Parent)
	for _, v := range f.Vals {
		pv.Push(v)
	}
}

func (f *ActivationFrame) atDepth(depth int) *ActivationFrame {
	cur := f
	for i := 0; i < depth; i++ {
		cur = cur.Parent.Get().(*ActivationFrame)
	}
	return cur
}

// GetSlot reads slot index, depth frames up the parent chain.
func (f *ActivationFrame) GetSlot(depth, index int) PoolPtr {
	return f.atDepth(depth).Vals[index]
}

// SetSlot writes slot index, depth frames up the parent chain.
func (f *ActivationFrame) SetSlot(depth, index int, v PoolPtr) {
	f.atDepth(depth).Vals[index] = v
}

// EnsureIndex grows the frame with the undefined sentinel so that slot
// n-1 exists.  Later defines can then target fixed slots.
func (f *ActivationFrame) EnsureIndex(h *Heap, n int) {
	for len(f.Vals) < n {
		f.Vals = append(f.Vals, h.Undefined)
	}
}

// SyntacticClosure pairs an expression with the compile-time
// environment it must be resolved in, except for the free names, which
// resolve in the usage environment.
type SyntacticClosure struct {
	ClosedEnv PoolPtr // an Environment value
	FreeVars  []string
	Expr      PoolPtr
}

func (*SyntacticClosure) Type() string { return "syntactic-closure" }
func (s *SyntacticClosure) inventory(pv *ptrVec) {
	pv.Push(s.ClosedEnv)
	pv.Push(s.Expr)
}

// pushEnv installs a fresh child scope as the closure's environment and
// returns it.  popEnv undoes it; the two must stay symmetric across all
// exit paths, so callers pair them with defer.
func (s *SyntacticClosure) pushEnv(h *Heap) *Env {
	inner := NewEnv(s.ClosedEnv.Get().(*Env))
	s.ClosedEnv = h.Insert(inner)
	return inner
}

func (s *SyntacticClosure) popEnv(h *Heap) {
	parent := s.ClosedEnv.Get().(*Env).parent
	if parent == nil {
		panic("popping from syntactic closure with no parent env")
	}
	s.ClosedEnv = h.Insert(parent)
}

// Locator names the source position a value was read from.
type Locator struct {
	FileName string
	Range    CodeRange
}

func (l *Locator) String() string {
	return fmt.Sprintf("%s:%s", l.FileName, l.Range)
}

// Located wraps a value with its source location.  The AST layer sees
// through the wrapper; quote strips it.
type Located struct {
	Inner PoolPtr
	Loc   *Locator
}

func (*Located) Type() string           { return "located" }
func (l *Located) inventory(pv *ptrVec) { pv.Push(l.Inner) }

// unwrapLocated strips Located wrappers, returning the innermost value
// pointer and the outermost locator (nil when the value was bare).
func unwrapLocated(p PoolPtr) (PoolPtr, *Locator) {
	var loc *Locator
	for {
		l, ok := p.Get().(*Located)
		if !ok {
			return p, loc
		}
		if loc == nil {
			loc = l.Loc
		}
		p = l.Inner
	}
}

// stripLocated rebuilds quoted data without Located wrappers so that
// runtime values never carry reader metadata.  Structure below
// unlocated nodes is shared, not copied.
func stripLocated(h *Heap, p PoolPtr) PoolPtr {
	inner, _ := unwrapLocated(p)
	switch v := inner.Get().(type) {
	case *Pair:
		car := stripLocated(h, v.Car)
		cdr := stripLocated(h, v.Cdr)
		if car == v.Car && cdr == v.Cdr {
			return inner
		}
		return h.Insert(&Pair{Car: car, Cdr: cdr})
	case *Vector:
		changed := false
		vals := make([]PoolPtr, len(v.Vals))
		for i, e := range v.Vals {
			vals[i] = stripLocated(h, e)
			if vals[i] != e {
				changed = true
			}
		}
		if !changed {
			return inner
		}
		return h.Insert(&Vector{Vals: vals})
	default:
		return inner
	}
}

// isTruthy reports Scheme truthiness: only #f is falsey.
func isTruthy(p PoolPtr) bool {
	b, ok := p.Get().(Boolean)
	return !ok || bool(b)
}

// listToVec flattens a proper list into a slice of element pointers,
// seeing through Located wrappers around the spine.
func listToVec(p PoolPtr) ([]PoolPtr, error) {
	var out []PoolPtr
	cur, _ := unwrapLocated(p)
	for {
		switch v := cur.Get().(type) {
		case EmptyList:
			return out, nil
		case *Pair:
			out = append(out, v.Car)
			cur, _ = unwrapLocated(v.Cdr)
		default:
			return nil, fmt.Errorf("not a proper list: ends in %s", v.Type())
		}
	}
}

// vecToList builds a proper list from a slice of element pointers.
// The partially built spine is re-rooted across every allocation, since
// each cons may trigger a collection.  The elements themselves must be
// kept alive by the caller.
func vecToList(h *Heap, elems []PoolPtr) PoolPtr {
	tail := h.EmptyList
	for i := len(elems) - 1; i >= 0; i-- {
		tailRoot := h.Root(tail)
		tail = h.Insert(&Pair{Car: elems[i], Cdr: tailRoot.Pp()})
		tailRoot.Drop()
	}
	return tail
}

// Eqv implements eqv?: cell identity, or mathematical equality for
// numbers, value equality for characters and booleans.
func Eqv(a, b PoolPtr) bool {
	if a == b {
		return true
	}
	switch av := a.Get().(type) {
	case Character:
		bv, ok := b.Get().(Character)
		return ok && av == bv
	case Boolean:
		bv, ok := b.Get().(Boolean)
		return ok && av == bv
	case Integer, Rational, Real, ComplexInteger, ComplexRational, ComplexReal:
		return numericEqual(a.Get(), b.Get())
	default:
		return false
	}
}

// Equal implements equal?: structural equality on pairs, vectors,
// strings, and bytevectors, eqv? otherwise.
func Equal(a, b PoolPtr) bool {
	if Eqv(a, b) {
		return true
	}
	switch av := a.Get().(type) {
	case *Pair:
		bv, ok := b.Get().(*Pair)
		return ok && Equal(av.Car, bv.Car) && Equal(av.Cdr, bv.Cdr)
	case *Vector:
		bv, ok := b.Get().(*Vector)
		if !ok || len(av.Vals) != len(bv.Vals) {
			return false
		}
		for i := range av.Vals {
			if !Equal(av.Vals[i], bv.Vals[i]) {
				return false
			}
		}
		return true
	case *String:
		bv, ok := b.Get().(*String)
		return ok && string(av.Chars) == string(bv.Chars)
	case *ByteVector:
		bv, ok := b.Get().(*ByteVector)
		if !ok || len(av.Bytes) != len(bv.Bytes) {
			return false
		}
		for i := range av.Bytes {
			if av.Bytes[i] != bv.Bytes[i] {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// numericEqual compares two numbers for mathematical equality after
// coercion to the wider representation.
func numericEqual(a, b Value) bool {
	if !isNumeric(a) || !isNumeric(b) {
		return false
	}
	if isComplexValue(a) || isComplexValue(b) {
		ar, ai := coerceComplex(a)
		br, bi := coerceComplex(b)
		return ar == br && ai == bi
	}
	if isExact(a) && isExact(b) {
		return coerceRat(a).Cmp(coerceRat(b)) == 0
	}
	return coerceFloat(a) == coerceFloat(b)
}

func isNumeric(v Value) bool {
	switch v.(type) {
	case Integer, Rational, Real, ComplexInteger, ComplexRational, ComplexReal:
		return true
	}
	return false
}

func isComplexValue(v Value) bool {
	switch v.(type) {
	case ComplexInteger, ComplexRational, ComplexReal:
		return true
	}
	return false
}

func isExact(v Value) bool {
	switch v.(type) {
	case Integer, Rational, ComplexInteger, ComplexRational:
		return true
	}
	return false
}

func coerceRat(v Value) *big.Rat {
	switch n := v.(type) {
	case Integer:
		return new(big.Rat).SetInt(n.N)
	case Rational:
		return n.R
	default:
		panic("coerceRat: not an exact real number")
	}
}

func coerceFloat(v Value) float64 {
	switch n := v.(type) {
	case Integer:
		f, _ := new(big.Float).SetInt(n.N).Float64()
		return f
	case Rational:
		f, _ := n.R.Float64()
		return f
	case Real:
		return float64(n)
	default:
		panic("coerceFloat: not a real number")
	}
}

func coerceComplex(v Value) (float64, float64) {
	switch n := v.(type) {
	case ComplexInteger:
		re, _ := new(big.Float).SetInt(n.Re).Float64()
		im, _ := new(big.Float).SetInt(n.Im).Float64()
		return re, im
	case ComplexRational:
		re, _ := n.Re.Float64()
		im, _ := n.Im.Float64()
		return re, im
	case ComplexReal:
		return real(complex128(n)), imag(complex128(n))
	default:
		return coerceFloat(v), 0
	}
}

// simplifyNumeric canonicalizes: an exact rational that is an integer
// reduces to Integer, a complex with an exactly zero imaginary part
// reduces to its real part.
func simplifyNumeric(v Value) Value {
	switch n := v.(type) {
	case Rational:
		if n.R.IsInt() {
			return Integer{N: new(big.Int).Set(n.R.Num())}
		}
		return n
	case ComplexInteger:
		if n.Im.Sign() == 0 {
			return Integer{N: n.Re}
		}
		return n
	case ComplexRational:
		if n.Im.Sign() == 0 {
			return simplifyNumeric(Rational{R: n.Re})
		}
		return n
	default:
		return v
	}
}

// PrettyPrint renders a value in write notation: strings quoted,
// characters in #\ syntax.
func PrettyPrint(p PoolPtr) string {
	var sb strings.Builder
	writeValue(&sb, p, false)
	return sb.String()
}

// DisplayString renders a value in display notation: strings and
// characters raw.
func DisplayString(p PoolPtr) string {
	var sb strings.Builder
	writeValue(&sb, p, true)
	return sb.String()
}

var namedChars = map[rune]string{
	'\n': "newline",
	' ':  "space",
	'\t': "tab",
	'\r': "return",
	0:    "null",
	127:  "delete",
	7:    "alarm",
	8:    "backspace",
}

func writeValue(sb *strings.Builder, p PoolPtr, display bool) {
	switch v := p.Get().(type) {
	case Unspecific:
		sb.WriteString("#unspecific")
	case Undefined:
		sb.WriteString("#undefined")
	case EmptyList:
		sb.WriteString("()")
	case Eof:
		sb.WriteString("#eof")
	case Boolean:
		if bool(v) {
			sb.WriteString("#t")
		} else {
			sb.WriteString("#f")
		}
	case Character:
		if display {
			sb.WriteRune(rune(v))
		} else if name, ok := namedChars[rune(v)]; ok {
			sb.WriteString("#\\" + name)
		} else {
			sb.WriteString("#\\")
			sb.WriteRune(rune(v))
		}
	case Symbol:
		sb.WriteString(string(v))
	case Integer:
		sb.WriteString(v.N.String())
	case Rational:
		sb.WriteString(v.R.RatString())
	case Real:
		sb.WriteString(formatReal(float64(v)))
	case ComplexInteger:
		sb.WriteString(v.Re.String() + signPrefix(v.Im.Sign() >= 0) + v.Im.String() + "i")
	case ComplexRational:
		sb.WriteString(v.Re.RatString() + signPrefix(v.Im.Sign() >= 0) + v.Im.RatString() + "i")
	case ComplexReal:
		c := complex128(v)
		sb.WriteString(formatReal(real(c)) + signPrefix(imag(c) >= 0) + formatReal(imag(c)) + "i")
	case *String:
		if display {
			sb.WriteString(string(v.Chars))
		} else {
			fmt.Fprintf(sb, "%q", string(v.Chars))
		}
	case *ByteVector:
		sb.WriteString("#u8(")
		for i, b := range v.Bytes {
			if i > 0 {
				sb.WriteByte(' ')
			}
			fmt.Fprintf(sb, "%d", b)
		}
		sb.WriteByte(')')
	case *Vector:
		sb.WriteString("#(")
		for i, e := range v.Vals {
			if i > 0 {
				sb.WriteByte(' ')
			}
			writeValue(sb, e, display)
		}
		sb.WriteByte(')')
	case *Pair:
		writePair(sb, v, display)
	case *Lambda:
		if v.Name != "" {
			fmt.Fprintf(sb, "#<procedure %s>", v.Name)
		} else {
			sb.WriteString("#<procedure>")
		}
	case *Primitive:
		fmt.Fprintf(sb, "#<primitive %s>", v.Name)
	case *CodeBlock:
		fmt.Fprintf(sb, "#<code-block %s>", v.name())
	case *ActivationFrame:
		sb.WriteString("#<activation-frame>")
	case *Env:
		sb.WriteString("#<environment>")
	case *SyntacticClosure:
		sb.WriteString("#<syntactic-closure ")
		writeValue(sb, v.Expr, display)
		sb.WriteByte('>')
	case *Port:
		fmt.Fprintf(sb, "#<port %s>", v.Name)
	case *Continuation:
		sb.WriteString("#<continuation>")
	case *Located:
		writeValue(sb, v.Inner, display)
	default:
		fmt.Fprintf(sb, "#<%s>", v.Type())
	}
}

func signPrefix(nonNegative bool) string {
	if nonNegative {
		return "+"
	}
	return ""
}

func formatReal(f float64) string {
	s := fmt.Sprintf("%g", f)
	if !strings.ContainsAny(s, ".eEnN") {
		s += "."
	}
	return s
}

func writePair(sb *strings.Builder, p *Pair, display bool) {
	// (quote x) and friends print in their reader shorthand.
	car, _ := unwrapLocated(p.Car)
	cdr, _ := unwrapLocated(p.Cdr)
	if sym, ok := car.Get().(Symbol); ok {
		if short, ok := quoteShorthand[string(sym)]; ok {
			if rest, ok := cdr.Get().(*Pair); ok {
				tail, _ := unwrapLocated(rest.Cdr)
				if _, isNil := tail.Get().(EmptyList); isNil {
					sb.WriteString(short)
					writeValue(sb, rest.Car, display)
					return
				}
			}
		}
	}
	sb.WriteByte('(')
	writeValue(sb, p.Car, display)
	cur := p.Cdr
	for {
		cur, _ = unwrapLocated(cur)
		switch v := cur.Get().(type) {
		case EmptyList:
			sb.WriteByte(')')
			return
		case *Pair:
			sb.WriteByte(' ')
			writeValue(sb, v.Car, display)
			cur = v.Cdr
		default:
			sb.WriteString(" . ")
			writeValue(sb, cur, display)
			sb.WriteByte(')')
			return
		}
	}
}

var quoteShorthand = map[string]string{
	"quote":            "'",
	"quasiquote":       "`",
	"unquote":          ",",
	"unquote-splicing": ",@",
}
