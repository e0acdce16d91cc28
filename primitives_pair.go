package goxide

var pairPrimitives = []Primitive{
	{Name: "pair?", Impl: pairP},
	{Name: "cons", Impl: cons},
	{Name: "car", Impl: car},
	{Name: "cdr", Impl: cdr},
	{Name: "set-car!", Impl: setCar},
	{Name: "set-cdr!", Impl: setCdr},
	{Name: "list?", Impl: listP},
}

func pairP(h *Heap, args []PoolPtr) (PoolPtr, error) {
	if err := checkArgs(args, 1, 1); err != nil {
		return PoolPtr{}, err
	}
	_, ok := args[0].Get().(*Pair)
	return boolValue(h, ok), nil
}

func cons(h *Heap, args []PoolPtr) (PoolPtr, error) {
	if err := checkArgs(args, 2, 2); err != nil {
		return PoolPtr{}, err
	}
	return h.Insert(&Pair{Car: args[0], Cdr: args[1]}), nil
}

func pairArg(args []PoolPtr, i int) (*Pair, error) {
	p, ok := args[i].Get().(*Pair)
	if !ok {
		return nil, wrongType("pair", args[i])
	}
	return p, nil
}

func car(h *Heap, args []PoolPtr) (PoolPtr, error) {
	if err := checkArgs(args, 1, 1); err != nil {
		return PoolPtr{}, err
	}
	p, err := pairArg(args, 0)
	if err != nil {
		return PoolPtr{}, err
	}
	return p.Car, nil
}

func cdr(h *Heap, args []PoolPtr) (PoolPtr, error) {
	if err := checkArgs(args, 1, 1); err != nil {
		return PoolPtr{}, err
	}
	p, err := pairArg(args, 0)
	if err != nil {
		return PoolPtr{}, err
	}
	return p.Cdr, nil
}

func setCar(h *Heap, args []PoolPtr) (PoolPtr, error) {
	if err := checkArgs(args, 2, 2); err != nil {
		return PoolPtr{}, err
	}
	p, err := pairArg(args, 0)
	if err != nil {
		return PoolPtr{}, err
	}
	p.Car = args[1]
	return h.Unspecific, nil
}

func setCdr(h *Heap, args []PoolPtr) (PoolPtr, error) {
	if err := checkArgs(args, 2, 2); err != nil {
		return PoolPtr{}, err
	}
	p, err := pairArg(args, 0)
	if err != nil {
		return PoolPtr{}, err
	}
	p.Cdr = args[1]
	return h.Unspecific, nil
}

func listP(h *Heap, args []PoolPtr) (PoolPtr, error) {
	if err := checkArgs(args, 1, 1); err != nil {
		return PoolPtr{}, err
	}
	// Tortoise and hare so cyclic structures answer #f instead of
	// looping.
	slow, fast := args[0], args[0]
	for {
		fp, ok := fast.Get().(*Pair)
		if !ok {
			_, isNil := fast.Get().(EmptyList)
			return boolValue(h, isNil), nil
		}
		fast = fp.Cdr
		fp2, ok := fast.Get().(*Pair)
		if !ok {
			_, isNil := fast.Get().(EmptyList)
			return boolValue(h, isNil), nil
		}
		fast = fp2.Cdr
		slow = slow.Get().(*Pair).Cdr
		if slow == fast {
			return h.False, nil
		}
	}
}
