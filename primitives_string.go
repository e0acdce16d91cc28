package goxide

import (
	"fmt"
	"strings"
)

var stringPrimitives = []Primitive{
	{Name: "string?", Impl: stringP},
	{Name: "make-string", Impl: makeString},
	{Name: "string-length", Impl: stringLength},
	{Name: "string-ref", Impl: stringRef},
	{Name: "string-set!", Impl: stringSet},
	{Name: "string-append", Impl: stringAppend},
	{Name: "substring", Impl: substring},
	{Name: "string->list", Impl: stringToList},
	{Name: "list->string", Impl: listToString},
	{Name: "string=?", Impl: stringEqual},
	{Name: "string<?", Impl: stringLess},
	{Name: "string>?", Impl: stringGreater},
	{Name: "string-copy", Impl: stringCopy},
	{Name: "string->number", Impl: stringToNumber},
}

func stringArg(args []PoolPtr, i int) (*String, error) {
	s, ok := args[i].Get().(*String)
	if !ok {
		return nil, wrongType("string", args[i])
	}
	return s, nil
}

func stringIndexArg(args []PoolPtr, i int, s *String) (int, error) {
	n, err := integerArg(args, i)
	if err != nil {
		return 0, err
	}
	k := int(n.Int64())
	if k < 0 || k > len(s.Chars) {
		return 0, fmt.Errorf("index %d out of range for string of length %d", k, len(s.Chars))
	}
	return k, nil
}

func stringP(h *Heap, args []PoolPtr) (PoolPtr, error) {
	if err := checkArgs(args, 1, 1); err != nil {
		return PoolPtr{}, err
	}
	_, ok := args[0].Get().(*String)
	return boolValue(h, ok), nil
}

func makeString(h *Heap, args []PoolPtr) (PoolPtr, error) {
	if err := checkArgs(args, 1, 2); err != nil {
		return PoolPtr{}, err
	}
	n, err := integerArg(args, 0)
	if err != nil {
		return PoolPtr{}, err
	}
	fill := ' '
	if len(args) == 2 {
		c, err := charArg(args, 1)
		if err != nil {
			return PoolPtr{}, err
		}
		fill = c
	}
	chars := make([]rune, n.Int64())
	for i := range chars {
		chars[i] = fill
	}
	return h.Insert(&String{Chars: chars}), nil
}

func stringLength(h *Heap, args []PoolPtr) (PoolPtr, error) {
	if err := checkArgs(args, 1, 1); err != nil {
		return PoolPtr{}, err
	}
	s, err := stringArg(args, 0)
	if err != nil {
		return PoolPtr{}, err
	}
	return h.Insert(NewInteger(int64(len(s.Chars)))), nil
}

func stringRef(h *Heap, args []PoolPtr) (PoolPtr, error) {
	if err := checkArgs(args, 2, 2); err != nil {
		return PoolPtr{}, err
	}
	s, err := stringArg(args, 0)
	if err != nil {
		return PoolPtr{}, err
	}
	k, err := stringIndexArg(args, 1, s)
	if err != nil {
		return PoolPtr{}, err
	}
	if k == len(s.Chars) {
		return PoolPtr{}, fmt.Errorf("index %d out of range", k)
	}
	return h.Insert(Character(s.Chars[k])), nil
}

func stringSet(h *Heap, args []PoolPtr) (PoolPtr, error) {
	if err := checkArgs(args, 3, 3); err != nil {
		return PoolPtr{}, err
	}
	s, err := stringArg(args, 0)
	if err != nil {
		return PoolPtr{}, err
	}
	k, err := stringIndexArg(args, 1, s)
	if err != nil {
		return PoolPtr{}, err
	}
	if k == len(s.Chars) {
		return PoolPtr{}, fmt.Errorf("index %d out of range", k)
	}
	c, err := charArg(args, 2)
	if err != nil {
		return PoolPtr{}, err
	}
	s.Chars[k] = c
	return h.Unspecific, nil
}

func stringAppend(h *Heap, args []PoolPtr) (PoolPtr, error) {
	var sb strings.Builder
	for i := range args {
		s, err := stringArg(args, i)
		if err != nil {
			return PoolPtr{}, err
		}
		sb.WriteString(s.String())
	}
	return h.Insert(NewString(sb.String())), nil
}

func substring(h *Heap, args []PoolPtr) (PoolPtr, error) {
	if err := checkArgs(args, 3, 3); err != nil {
		return PoolPtr{}, err
	}
	s, err := stringArg(args, 0)
	if err != nil {
		return PoolPtr{}, err
	}
	start, err := stringIndexArg(args, 1, s)
	if err != nil {
		return PoolPtr{}, err
	}
	end, err := stringIndexArg(args, 2, s)
	if err != nil {
		return PoolPtr{}, err
	}
	if start > end {
		return PoolPtr{}, fmt.Errorf("substring start %d after end %d", start, end)
	}
	return h.Insert(&String{Chars: append([]rune(nil), s.Chars[start:end]...)}), nil
}

func stringToList(h *Heap, args []PoolPtr) (PoolPtr, error) {
	if err := checkArgs(args, 1, 1); err != nil {
		return PoolPtr{}, err
	}
	s, err := stringArg(args, 0)
	if err != nil {
		return PoolPtr{}, err
	}
	// Built back to front, re-rooting the spine across each pair of
	// allocations.
	tail := h.EmptyList
	for i := len(s.Chars) - 1; i >= 0; i-- {
		tailRoot := h.Root(tail)
		c := h.Insert(Character(s.Chars[i]))
		cRoot := h.Root(c)
		tail = h.Insert(&Pair{Car: c, Cdr: tailRoot.Pp()})
		cRoot.Drop()
		tailRoot.Drop()
	}
	return tail, nil
}

func listToString(h *Heap, args []PoolPtr) (PoolPtr, error) {
	if err := checkArgs(args, 1, 1); err != nil {
		return PoolPtr{}, err
	}
	elems, err := listToVec(args[0])
	if err != nil {
		return PoolPtr{}, err
	}
	chars := make([]rune, len(elems))
	for i, e := range elems {
		c, ok := e.Get().(Character)
		if !ok {
			return PoolPtr{}, wrongType("character", e)
		}
		chars[i] = rune(c)
	}
	return h.Insert(&String{Chars: chars}), nil
}

func stringCompare(h *Heap, args []PoolPtr, ok func(cmp int) bool) (PoolPtr, error) {
	if err := checkArgs(args, 2, -1); err != nil {
		return PoolPtr{}, err
	}
	for i := 0; i < len(args)-1; i++ {
		a, err := stringArg(args, i)
		if err != nil {
			return PoolPtr{}, err
		}
		b, err := stringArg(args, i+1)
		if err != nil {
			return PoolPtr{}, err
		}
		if !ok(strings.Compare(a.String(), b.String())) {
			return h.False, nil
		}
	}
	return h.True, nil
}

func stringEqual(h *Heap, args []PoolPtr) (PoolPtr, error) {
	return stringCompare(h, args, func(c int) bool { return c == 0 })
}

func stringLess(h *Heap, args []PoolPtr) (PoolPtr, error) {
	return stringCompare(h, args, func(c int) bool { return c < 0 })
}

func stringGreater(h *Heap, args []PoolPtr) (PoolPtr, error) {
	return stringCompare(h, args, func(c int) bool { return c > 0 })
}

func stringCopy(h *Heap, args []PoolPtr) (PoolPtr, error) {
	if err := checkArgs(args, 1, 1); err != nil {
		return PoolPtr{}, err
	}
	s, err := stringArg(args, 0)
	if err != nil {
		return PoolPtr{}, err
	}
	return h.Insert(&String{Chars: append([]rune(nil), s.Chars...)}), nil
}

func stringToNumber(h *Heap, args []PoolPtr) (PoolPtr, error) {
	if err := checkArgs(args, 1, 2); err != nil {
		return PoolPtr{}, err
	}
	s, err := stringArg(args, 0)
	if err != nil {
		return PoolPtr{}, err
	}
	radix := 10
	if len(args) == 2 {
		r, err := integerArg(args, 1)
		if err != nil {
			return PoolPtr{}, err
		}
		radix = int(r.Int64())
	}
	v, ok := parseNumber(s.String(), radix, exactUnset)
	if !ok {
		return h.False, nil
	}
	return h.Insert(simplifyNumeric(v)), nil
}
