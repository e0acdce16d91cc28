package goxide

var symbolPrimitives = []Primitive{
	{Name: "symbol?", Impl: symbolP},
	{Name: "symbol->string", Impl: symbolToString},
	{Name: "string->symbol", Impl: stringToSymbol},
	{Name: "gensym", Impl: gensym},
}

func symbolP(h *Heap, args []PoolPtr) (PoolPtr, error) {
	if err := checkArgs(args, 1, 1); err != nil {
		return PoolPtr{}, err
	}
	_, ok := args[0].Get().(Symbol)
	return boolValue(h, ok), nil
}

func symbolToString(h *Heap, args []PoolPtr) (PoolPtr, error) {
	if err := checkArgs(args, 1, 1); err != nil {
		return PoolPtr{}, err
	}
	s, ok := args[0].Get().(Symbol)
	if !ok {
		return PoolPtr{}, wrongType("symbol", args[0])
	}
	return h.Insert(NewString(string(s))), nil
}

func stringToSymbol(h *Heap, args []PoolPtr) (PoolPtr, error) {
	if err := checkArgs(args, 1, 1); err != nil {
		return PoolPtr{}, err
	}
	s, ok := args[0].Get().(*String)
	if !ok {
		return PoolPtr{}, wrongType("string", args[0])
	}
	return h.InternSymbol(s.String()), nil
}

func gensym(h *Heap, args []PoolPtr) (PoolPtr, error) {
	if err := checkArgs(args, 0, 1); err != nil {
		return PoolPtr{}, err
	}
	base := ""
	if len(args) == 1 {
		s, ok := args[0].Get().(*String)
		if !ok {
			return PoolPtr{}, wrongType("string", args[0])
		}
		base = s.String()
	}
	return h.Gensym(base), nil
}
