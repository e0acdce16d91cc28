package goxide

import "unicode"

var charPrimitives = []Primitive{
	{Name: "char?", Impl: charP},
	{Name: "char->integer", Impl: charToInteger},
	{Name: "integer->char", Impl: integerToChar},
	{Name: "char=?", Impl: charEqual},
	{Name: "char<?", Impl: charLess},
	{Name: "char>?", Impl: charGreater},
	{Name: "char<=?", Impl: charLessEqual},
	{Name: "char>=?", Impl: charGreaterEqual},
	{Name: "char-upcase", Impl: charUpcase},
	{Name: "char-downcase", Impl: charDowncase},
	{Name: "char-alphabetic?", Impl: charAlphabeticP},
	{Name: "char-numeric?", Impl: charNumericP},
	{Name: "char-whitespace?", Impl: charWhitespaceP},
}

func charArg(args []PoolPtr, i int) (rune, error) {
	c, ok := args[i].Get().(Character)
	if !ok {
		return 0, wrongType("character", args[i])
	}
	return rune(c), nil
}

func charP(h *Heap, args []PoolPtr) (PoolPtr, error) {
	if err := checkArgs(args, 1, 1); err != nil {
		return PoolPtr{}, err
	}
	_, ok := args[0].Get().(Character)
	return boolValue(h, ok), nil
}

func charToInteger(h *Heap, args []PoolPtr) (PoolPtr, error) {
	if err := checkArgs(args, 1, 1); err != nil {
		return PoolPtr{}, err
	}
	c, err := charArg(args, 0)
	if err != nil {
		return PoolPtr{}, err
	}
	return h.Insert(NewInteger(int64(c))), nil
}

func integerToChar(h *Heap, args []PoolPtr) (PoolPtr, error) {
	if err := checkArgs(args, 1, 1); err != nil {
		return PoolPtr{}, err
	}
	n, err := integerArg(args, 0)
	if err != nil {
		return PoolPtr{}, err
	}
	return h.Insert(Character(rune(n.Int64()))), nil
}

func charCompare(h *Heap, args []PoolPtr, ok func(a, b rune) bool) (PoolPtr, error) {
	if err := checkArgs(args, 2, -1); err != nil {
		return PoolPtr{}, err
	}
	for i := 0; i < len(args)-1; i++ {
		a, err := charArg(args, i)
		if err != nil {
			return PoolPtr{}, err
		}
		b, err := charArg(args, i+1)
		if err != nil {
			return PoolPtr{}, err
		}
		if !ok(a, b) {
			return h.False, nil
		}
	}
	return h.True, nil
}

func charEqual(h *Heap, args []PoolPtr) (PoolPtr, error) {
	return charCompare(h, args, func(a, b rune) bool { return a == b })
}

func charLess(h *Heap, args []PoolPtr) (PoolPtr, error) {
	return charCompare(h, args, func(a, b rune) bool { return a < b })
}

func charGreater(h *Heap, args []PoolPtr) (PoolPtr, error) {
	return charCompare(h, args, func(a, b rune) bool { return a > b })
}

func charLessEqual(h *Heap, args []PoolPtr) (PoolPtr, error) {
	return charCompare(h, args, func(a, b rune) bool { return a <= b })
}

func charGreaterEqual(h *Heap, args []PoolPtr) (PoolPtr, error) {
	return charCompare(h, args, func(a, b rune) bool { return a >= b })
}

func charUpcase(h *Heap, args []PoolPtr) (PoolPtr, error) {
	if err := checkArgs(args, 1, 1); err != nil {
		return PoolPtr{}, err
	}
	c, err := charArg(args, 0)
	if err != nil {
		return PoolPtr{}, err
	}
	return h.Insert(Character(unicode.ToUpper(c))), nil
}

func charDowncase(h *Heap, args []PoolPtr) (PoolPtr, error) {
	if err := checkArgs(args, 1, 1); err != nil {
		return PoolPtr{}, err
	}
	c, err := charArg(args, 0)
	if err != nil {
		return PoolPtr{}, err
	}
	return h.Insert(Character(unicode.ToLower(c))), nil
}

func charAlphabeticP(h *Heap, args []PoolPtr) (PoolPtr, error) {
	if err := checkArgs(args, 1, 1); err != nil {
		return PoolPtr{}, err
	}
	c, err := charArg(args, 0)
	if err != nil {
		return PoolPtr{}, err
	}
	return boolValue(h, unicode.IsLetter(c)), nil
}

func charNumericP(h *Heap, args []PoolPtr) (PoolPtr, error) {
	if err := checkArgs(args, 1, 1); err != nil {
		return PoolPtr{}, err
	}
	c, err := charArg(args, 0)
	if err != nil {
		return PoolPtr{}, err
	}
	return boolValue(h, unicode.IsDigit(c)), nil
}

func charWhitespaceP(h *Heap, args []PoolPtr) (PoolPtr, error) {
	if err := checkArgs(args, 1, 1); err != nil {
		return PoolPtr{}, err
	}
	c, err := charArg(args, 0)
	if err != nil {
		return PoolPtr{}, err
	}
	return boolValue(h, unicode.IsSpace(c)), nil
}
