package goxide

import "fmt"

// Reader turns token streams into heap values: one value per toplevel
// expression, with interned symbols and canonical singletons.  When
// location tracking is on, nodes come back wrapped in Located values
// carrying file and range information.
type Reader struct {
	h        *Heap
	locate   bool
	fileName string
}

// NewReader creates a reader.  locate controls whether values carry
// source locations.
func NewReader(h *Heap, locate bool, fileName string) *Reader {
	return &Reader{h: h, locate: locate, fileName: fileName}
}

// ReadMany reads every expression in code.  Each returned value is
// rooted; the caller drops them when done.
func (r *Reader) ReadMany(code string) ([]RootPtr, error) {
	tokens, err := Lex(code)
	if err != nil {
		return nil, err
	}
	seg, err := Segment(tokens)
	if err != nil {
		return nil, err
	}
	if len(seg.Remainder) > 0 {
		return nil, &SyntaxError{Msg: "unterminated expression: dangling tokens"}
	}
	var out []RootPtr
	for _, s := range seg.Segments {
		v, err := r.ReadTokens(s)
		if err != nil {
			for _, done := range out {
				done.Drop()
			}
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// Read reads exactly one expression from input.
func (r *Reader) Read(input string) (RootPtr, error) {
	tokens, err := Lex(input)
	if err != nil {
		return RootPtr{}, err
	}
	return r.ReadTokens(tokens)
}

// ReadTokens reads one expression spanning the whole token slice.
func (r *Reader) ReadTokens(tokens []Token) (RootPtr, error) {
	if len(tokens) == 0 {
		return RootPtr{}, &SyntaxError{Msg: "no tokens to read"}
	}
	it := &tokenIter{tokens: tokens}
	v, err := r.read(it)
	if err != nil {
		return RootPtr{}, err
	}
	if !it.eof() {
		v.Drop()
		return RootPtr{}, &SyntaxError{Msg: "unexpected trailing tokens"}
	}
	return v, nil
}

type tokenIter struct {
	tokens []Token
	pos    int
}

func (it *tokenIter) eof() bool { return it.pos >= len(it.tokens) }

func (it *tokenIter) peek() (Token, bool) {
	if it.eof() {
		return Token{}, false
	}
	return it.tokens[it.pos], true
}

func (it *tokenIter) next() (Token, bool) {
	t, ok := it.peek()
	if ok {
		it.pos++
	}
	return t, ok
}

func (r *Reader) read(it *tokenIter) (RootPtr, error) {
	t, ok := it.next()
	if !ok {
		return RootPtr{}, &SyntaxError{Msg: "unexpected end of input"}
	}
	switch t.Kind {
	case TokNum:
		return r.insertPositioned(simplifyNumeric(t.Num), t.Range), nil
	case TokBoolean:
		return r.insertPositioned(Boolean(t.Bool), t.Range), nil
	case TokCharacter:
		return r.insertPositioned(Character(t.Char), t.Range), nil
	case TokString:
		return r.insertPositioned(NewString(t.Str), t.Range), nil
	case TokSymbol:
		return r.insertPositioned(Symbol(t.Str), t.Range), nil
	case TokOpenParen:
		return r.readList(it, t.Range)
	case TokOpenVector:
		return r.readVector(it)
	case TokOpenByteVector:
		return r.readByteVector(it)
	case TokQuote:
		return r.readQuoted(it, "quote")
	case TokQuasiQuote:
		return r.readQuoted(it, "quasiquote")
	case TokUnquote:
		return r.readQuoted(it, "unquote")
	case TokUnquoteSplicing:
		return r.readQuoted(it, "unquote-splicing")
	default:
		return RootPtr{}, &SyntaxError{
			Msg: fmt.Sprintf("unexpected token at %s", t.Range),
			Loc: &Locator{FileName: r.fileName, Range: t.Range},
		}
	}
}

func (r *Reader) readList(it *tokenIter, open CodeRange) (RootPtr, error) {
	t, ok := it.peek()
	if !ok {
		return RootPtr{}, &SyntaxError{Msg: "unexpected end of list"}
	}
	if t.Kind == TokClosingParen {
		it.next()
		return r.h.Root(r.h.EmptyList), nil
	}
	first, err := r.read(it)
	if err != nil {
		return RootPtr{}, err
	}
	defer first.Drop()

	var second RootPtr
	if t, ok := it.peek(); ok && t.Kind == TokDot {
		it.next()
		second, err = r.read(it)
		if err != nil {
			return RootPtr{}, err
		}
		closing, ok := it.next()
		if !ok || closing.Kind != TokClosingParen {
			second.Drop()
			return RootPtr{}, &SyntaxError{Msg: "expected `)` after dotted tail"}
		}
	} else {
		second, err = r.readList(it, open)
		if err != nil {
			return RootPtr{}, err
		}
	}
	defer second.Drop()
	return r.insertPositioned(&Pair{Car: first.Pp(), Cdr: second.Pp()}, open), nil
}

func (r *Reader) readVector(it *tokenIter) (RootPtr, error) {
	var elems []RootPtr
	defer func() {
		for _, e := range elems {
			e.Drop()
		}
	}()
	for {
		t, ok := it.peek()
		if !ok {
			return RootPtr{}, &SyntaxError{Msg: "unexpected end of vector"}
		}
		if t.Kind == TokClosingParen {
			it.next()
			break
		}
		e, err := r.read(it)
		if err != nil {
			return RootPtr{}, err
		}
		elems = append(elems, e)
	}
	vals := make([]PoolPtr, len(elems))
	for i, e := range elems {
		vals[i] = e.Pp()
	}
	return r.h.InsertRooted(&Vector{Vals: vals}), nil
}

func (r *Reader) readByteVector(it *tokenIter) (RootPtr, error) {
	var bytes []byte
	for {
		t, ok := it.next()
		if !ok {
			return RootPtr{}, &SyntaxError{Msg: "unexpected end of bytevector"}
		}
		if t.Kind == TokClosingParen {
			break
		}
		n, ok := t.Num.(Integer)
		if t.Kind != TokNum || !ok || !n.N.IsUint64() || n.N.Uint64() > 255 {
			return RootPtr{}, &SyntaxError{Msg: "non-byte in bytevector literal"}
		}
		bytes = append(bytes, byte(n.N.Uint64()))
	}
	return r.h.InsertRooted(&ByteVector{Bytes: bytes}), nil
}

// readQuoted turns 'x into (quote x), and similarly for the
// quasiquotation prefixes.
func (r *Reader) readQuoted(it *tokenIter, prefix string) (RootPtr, error) {
	quoted, err := r.read(it)
	if err != nil {
		return RootPtr{}, err
	}
	defer quoted.Drop()
	inner := r.h.InsertRooted(&Pair{Car: quoted.Pp(), Cdr: r.h.EmptyList})
	defer inner.Drop()
	sym := r.h.InternSymbol(prefix)
	return r.h.InsertRooted(&Pair{Car: sym, Cdr: inner.Pp()}), nil
}

func (r *Reader) insertPositioned(v Value, rg CodeRange) RootPtr {
	inner := r.h.InsertRooted(v)
	if !r.locate {
		return inner
	}
	defer inner.Drop()
	return r.h.InsertRooted(&Located{
		Inner: inner.Pp(),
		Loc:   &Locator{FileName: r.fileName, Range: rg},
	})
}
