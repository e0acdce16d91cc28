package goxide

import "fmt"

var vectorPrimitives = []Primitive{
	{Name: "vector?", Impl: vectorP},
	{Name: "make-vector", Impl: makeVector},
	{Name: "vector-length", Impl: vectorLength},
	{Name: "vector-ref", Impl: vectorRef},
	{Name: "vector-set!", Impl: vectorSet},
	{Name: "vector->list", Impl: vectorToList},
	{Name: "list->vector", Impl: listToVector},
	{Name: "bytevector?", Impl: bytevectorP},
	{Name: "make-bytevector", Impl: makeBytevector},
	{Name: "bytevector-length", Impl: bytevectorLength},
	{Name: "bytevector-u8-ref", Impl: bytevectorU8Ref},
	{Name: "bytevector-u8-set!", Impl: bytevectorU8Set},
}

func vectorArg(args []PoolPtr, i int) (*Vector, error) {
	v, ok := args[i].Get().(*Vector)
	if !ok {
		return nil, wrongType("vector", args[i])
	}
	return v, nil
}

func vectorP(h *Heap, args []PoolPtr) (PoolPtr, error) {
	if err := checkArgs(args, 1, 1); err != nil {
		return PoolPtr{}, err
	}
	_, ok := args[0].Get().(*Vector)
	return boolValue(h, ok), nil
}

func makeVector(h *Heap, args []PoolPtr) (PoolPtr, error) {
	if err := checkArgs(args, 1, 2); err != nil {
		return PoolPtr{}, err
	}
	n, err := integerArg(args, 0)
	if err != nil {
		return PoolPtr{}, err
	}
	fill := h.Unspecific
	if len(args) == 2 {
		fill = args[1]
	}
	vals := make([]PoolPtr, n.Int64())
	for i := range vals {
		vals[i] = fill
	}
	return h.Insert(&Vector{Vals: vals}), nil
}

func vectorLength(h *Heap, args []PoolPtr) (PoolPtr, error) {
	if err := checkArgs(args, 1, 1); err != nil {
		return PoolPtr{}, err
	}
	v, err := vectorArg(args, 0)
	if err != nil {
		return PoolPtr{}, err
	}
	return h.Insert(NewInteger(int64(len(v.Vals)))), nil
}

func vectorIndex(args []PoolPtr, i, length int) (int, error) {
	n, err := integerArg(args, i)
	if err != nil {
		return 0, err
	}
	k := int(n.Int64())
	if k < 0 || k >= length {
		return 0, fmt.Errorf("index %d out of range for length %d", k, length)
	}
	return k, nil
}

func vectorRef(h *Heap, args []PoolPtr) (PoolPtr, error) {
	if err := checkArgs(args, 2, 2); err != nil {
		return PoolPtr{}, err
	}
	v, err := vectorArg(args, 0)
	if err != nil {
		return PoolPtr{}, err
	}
	k, err := vectorIndex(args, 1, len(v.Vals))
	if err != nil {
		return PoolPtr{}, err
	}
	return v.Vals[k], nil
}

func vectorSet(h *Heap, args []PoolPtr) (PoolPtr, error) {
	if err := checkArgs(args, 3, 3); err != nil {
		return PoolPtr{}, err
	}
	v, err := vectorArg(args, 0)
	if err != nil {
		return PoolPtr{}, err
	}
	k, err := vectorIndex(args, 1, len(v.Vals))
	if err != nil {
		return PoolPtr{}, err
	}
	v.Vals[k] = args[2]
	return h.Unspecific, nil
}

func vectorToList(h *Heap, args []PoolPtr) (PoolPtr, error) {
	if err := checkArgs(args, 1, 1); err != nil {
		return PoolPtr{}, err
	}
	v, err := vectorArg(args, 0)
	if err != nil {
		return PoolPtr{}, err
	}
	return vecToList(h, v.Vals), nil
}

func listToVector(h *Heap, args []PoolPtr) (PoolPtr, error) {
	if err := checkArgs(args, 1, 1); err != nil {
		return PoolPtr{}, err
	}
	elems, err := listToVec(args[0])
	if err != nil {
		return PoolPtr{}, err
	}
	return h.Insert(&Vector{Vals: elems}), nil
}

func bytevectorArg(args []PoolPtr, i int) (*ByteVector, error) {
	v, ok := args[i].Get().(*ByteVector)
	if !ok {
		return nil, wrongType("bytevector", args[i])
	}
	return v, nil
}

func bytevectorP(h *Heap, args []PoolPtr) (PoolPtr, error) {
	if err := checkArgs(args, 1, 1); err != nil {
		return PoolPtr{}, err
	}
	_, ok := args[0].Get().(*ByteVector)
	return boolValue(h, ok), nil
}

func makeBytevector(h *Heap, args []PoolPtr) (PoolPtr, error) {
	if err := checkArgs(args, 1, 2); err != nil {
		return PoolPtr{}, err
	}
	n, err := integerArg(args, 0)
	if err != nil {
		return PoolPtr{}, err
	}
	var fill byte
	if len(args) == 2 {
		f, err := integerArg(args, 1)
		if err != nil {
			return PoolPtr{}, err
		}
		fill = byte(f.Int64())
	}
	bytes := make([]byte, n.Int64())
	for i := range bytes {
		bytes[i] = fill
	}
	return h.Insert(&ByteVector{Bytes: bytes}), nil
}

func bytevectorLength(h *Heap, args []PoolPtr) (PoolPtr, error) {
	if err := checkArgs(args, 1, 1); err != nil {
		return PoolPtr{}, err
	}
	v, err := bytevectorArg(args, 0)
	if err != nil {
		return PoolPtr{}, err
	}
	return h.Insert(NewInteger(int64(len(v.Bytes)))), nil
}

func bytevectorU8Ref(h *Heap, args []PoolPtr) (PoolPtr, error) {
	if err := checkArgs(args, 2, 2); err != nil {
		return PoolPtr{}, err
	}
	v, err := bytevectorArg(args, 0)
	if err != nil {
		return PoolPtr{}, err
	}
	k, err := vectorIndex(args, 1, len(v.Bytes))
	if err != nil {
		return PoolPtr{}, err
	}
	return h.Insert(NewInteger(int64(v.Bytes[k]))), nil
}

func bytevectorU8Set(h *Heap, args []PoolPtr) (PoolPtr, error) {
	if err := checkArgs(args, 3, 3); err != nil {
		return PoolPtr{}, err
	}
	v, err := bytevectorArg(args, 0)
	if err != nil {
		return PoolPtr{}, err
	}
	k, err := vectorIndex(args, 1, len(v.Bytes))
	if err != nil {
		return PoolPtr{}, err
	}
	b, err := integerArg(args, 2)
	if err != nil {
		return PoolPtr{}, err
	}
	v.Bytes[k] = byte(b.Int64())
	return h.Unspecific, nil
}
