package goxide

import (
	"fmt"
	"math/big"
)

var numericPrimitives = []Primitive{
	{Name: "number?", Impl: numberP},
	{Name: "integer?", Impl: integerP},
	{Name: "rational?", Impl: rationalP},
	{Name: "real?", Impl: realP},
	{Name: "complex?", Impl: complexP},
	{Name: "exact?", Impl: exactP},
	{Name: "inexact?", Impl: inexactP},
	{Name: "=", Impl: numEqual},
	{Name: "<", Impl: lessThan},
	{Name: ">", Impl: greaterThan},
	{Name: "<=", Impl: lessThanEqual},
	{Name: ">=", Impl: greaterThanEqual},
	{Name: "+", Impl: add},
	{Name: "*", Impl: mul},
	{Name: "-", Impl: sub},
	{Name: "/", Impl: div},
	{Name: "quotient", Impl: quotient},
	{Name: "remainder", Impl: remainder},
	{Name: "modulo", Impl: modulo},
	{Name: "exact->inexact", Impl: exactToInexact},
	{Name: "number->string", Impl: numberToString},
}

func numericArg(args []PoolPtr, i int) (Value, error) {
	v := args[i].Get()
	if !isNumeric(v) {
		return nil, wrongType("number", args[i])
	}
	return v, nil
}

// realArg rejects complex values, which have no ordering.
func realArg(args []PoolPtr, i int) (Value, error) {
	v, err := numericArg(args, i)
	if err != nil {
		return nil, err
	}
	if isComplexValue(v) {
		return nil, wrongType("real number", args[i])
	}
	return v, nil
}

func numberP(h *Heap, args []PoolPtr) (PoolPtr, error) {
	if err := checkArgs(args, 1, 1); err != nil {
		return PoolPtr{}, err
	}
	return boolValue(h, isNumeric(args[0].Get())), nil
}

func integerP(h *Heap, args []PoolPtr) (PoolPtr, error) {
	if err := checkArgs(args, 1, 1); err != nil {
		return PoolPtr{}, err
	}
	switch v := args[0].Get().(type) {
	case Integer:
		return h.True, nil
	case Real:
		return boolValue(h, float64(v) == float64(int64(v))), nil
	default:
		return h.False, nil
	}
}

func rationalP(h *Heap, args []PoolPtr) (PoolPtr, error) {
	if err := checkArgs(args, 1, 1); err != nil {
		return PoolPtr{}, err
	}
	switch args[0].Get().(type) {
	case Integer, Rational, Real:
		return h.True, nil
	default:
		return h.False, nil
	}
}

func realP(h *Heap, args []PoolPtr) (PoolPtr, error) {
	return rationalP(h, args)
}

func complexP(h *Heap, args []PoolPtr) (PoolPtr, error) {
	if err := checkArgs(args, 1, 1); err != nil {
		return PoolPtr{}, err
	}
	return boolValue(h, isNumeric(args[0].Get())), nil
}

func exactP(h *Heap, args []PoolPtr) (PoolPtr, error) {
	if err := checkArgs(args, 1, 1); err != nil {
		return PoolPtr{}, err
	}
	v, err := numericArg(args, 0)
	if err != nil {
		return PoolPtr{}, err
	}
	return boolValue(h, isExact(v)), nil
}

func inexactP(h *Heap, args []PoolPtr) (PoolPtr, error) {
	if err := checkArgs(args, 1, 1); err != nil {
		return PoolPtr{}, err
	}
	v, err := numericArg(args, 0)
	if err != nil {
		return PoolPtr{}, err
	}
	return boolValue(h, !isExact(v)), nil
}

func numEqual(h *Heap, args []PoolPtr) (PoolPtr, error) {
	if err := checkArgs(args, 2, -1); err != nil {
		return PoolPtr{}, err
	}
	for i := 0; i < len(args)-1; i++ {
		a, err := numericArg(args, i)
		if err != nil {
			return PoolPtr{}, err
		}
		b, err := numericArg(args, i+1)
		if err != nil {
			return PoolPtr{}, err
		}
		if !numericEqual(a, b) {
			return h.False, nil
		}
	}
	return h.True, nil
}

// compareChain folds a comparison over consecutive argument pairs.
func compareChain(h *Heap, args []PoolPtr, ok func(cmp int) bool) (PoolPtr, error) {
	if err := checkArgs(args, 2, -1); err != nil {
		return PoolPtr{}, err
	}
	for i := 0; i < len(args)-1; i++ {
		a, err := realArg(args, i)
		if err != nil {
			return PoolPtr{}, err
		}
		b, err := realArg(args, i+1)
		if err != nil {
			return PoolPtr{}, err
		}
		if !ok(compareReals(a, b)) {
			return h.False, nil
		}
	}
	return h.True, nil
}

func compareReals(a, b Value) int {
	if isExact(a) && isExact(b) {
		return coerceRat(a).Cmp(coerceRat(b))
	}
	af, bf := coerceFloat(a), coerceFloat(b)
	switch {
	case af < bf:
		return -1
	case af > bf:
		return 1
	default:
		return 0
	}
}

func lessThan(h *Heap, args []PoolPtr) (PoolPtr, error) {
	return compareChain(h, args, func(c int) bool { return c < 0 })
}

func greaterThan(h *Heap, args []PoolPtr) (PoolPtr, error) {
	return compareChain(h, args, func(c int) bool { return c > 0 })
}

func lessThanEqual(h *Heap, args []PoolPtr) (PoolPtr, error) {
	return compareChain(h, args, func(c int) bool { return c <= 0 })
}

func greaterThanEqual(h *Heap, args []PoolPtr) (PoolPtr, error) {
	return compareChain(h, args, func(c int) bool { return c >= 0 })
}

// arith folds a binary operation over the arguments after coercing each
// pair to their wider representation.  Complex arguments fall back to
// ComplexReal arithmetic.
func arith(h *Heap, args []PoolPtr, unit Value, exactOp func(a, b *big.Rat) (*big.Rat, error), floatOp func(a, b float64) (float64, error), complexOp func(a, b complex128) (complex128, error)) (PoolPtr, error) {
	acc := unit
	for i := range args {
		v, err := numericArg(args, i)
		if err != nil {
			return PoolPtr{}, err
		}
		acc, err = arithStep(acc, v, exactOp, floatOp, complexOp)
		if err != nil {
			return PoolPtr{}, err
		}
	}
	return h.Insert(simplifyNumeric(acc)), nil
}

func arithStep(a, b Value, exactOp func(a, b *big.Rat) (*big.Rat, error), floatOp func(a, b float64) (float64, error), complexOp func(a, b complex128) (complex128, error)) (Value, error) {
	if isComplexValue(a) || isComplexValue(b) {
		ar, ai := coerceComplex(a)
		br, bi := coerceComplex(b)
		r, err := complexOp(complex(ar, ai), complex(br, bi))
		if err != nil {
			return nil, err
		}
		return ComplexReal(r), nil
	}
	if isExact(a) && isExact(b) {
		r, err := exactOp(coerceRat(a), coerceRat(b))
		if err != nil {
			return nil, err
		}
		return Rational{R: r}, nil
	}
	r, err := floatOp(coerceFloat(a), coerceFloat(b))
	if err != nil {
		return nil, err
	}
	return Real(r), nil
}

func add(h *Heap, args []PoolPtr) (PoolPtr, error) {
	return arith(h, args, NewInteger(0),
		func(a, b *big.Rat) (*big.Rat, error) { return new(big.Rat).Add(a, b), nil },
		func(a, b float64) (float64, error) { return a + b, nil },
		func(a, b complex128) (complex128, error) { return a + b, nil })
}

func mul(h *Heap, args []PoolPtr) (PoolPtr, error) {
	return arith(h, args, NewInteger(1),
		func(a, b *big.Rat) (*big.Rat, error) { return new(big.Rat).Mul(a, b), nil },
		func(a, b float64) (float64, error) { return a * b, nil },
		func(a, b complex128) (complex128, error) { return a * b, nil })
}

func sub(h *Heap, args []PoolPtr) (PoolPtr, error) {
	if err := checkArgs(args, 1, -1); err != nil {
		return PoolPtr{}, err
	}
	first, err := numericArg(args, 0)
	if err != nil {
		return PoolPtr{}, err
	}
	if len(args) == 1 {
		return arithOne(h, NewInteger(0), first,
			func(a, b *big.Rat) (*big.Rat, error) { return new(big.Rat).Sub(a, b), nil },
			func(a, b float64) (float64, error) { return a - b, nil },
			func(a, b complex128) (complex128, error) { return a - b, nil })
	}
	return arith(h, args[1:], first,
		func(a, b *big.Rat) (*big.Rat, error) { return new(big.Rat).Sub(a, b), nil },
		func(a, b float64) (float64, error) { return a - b, nil },
		func(a, b complex128) (complex128, error) { return a - b, nil })
}

func div(h *Heap, args []PoolPtr) (PoolPtr, error) {
	if err := checkArgs(args, 1, -1); err != nil {
		return PoolPtr{}, err
	}
	first, err := numericArg(args, 0)
	if err != nil {
		return PoolPtr{}, err
	}
	divExact := func(a, b *big.Rat) (*big.Rat, error) {
		if b.Sign() == 0 {
			return nil, fmt.Errorf("division by zero")
		}
		return new(big.Rat).Quo(a, b), nil
	}
	divFloat := func(a, b float64) (float64, error) { return a / b, nil }
	divComplex := func(a, b complex128) (complex128, error) { return a / b, nil }
	if len(args) == 1 {
		return arithOne(h, NewInteger(1), first, divExact, divFloat, divComplex)
	}
	return arith(h, args[1:], first, divExact, divFloat, divComplex)
}

func arithOne(h *Heap, a, b Value, exactOp func(a, b *big.Rat) (*big.Rat, error), floatOp func(a, b float64) (float64, error), complexOp func(a, b complex128) (complex128, error)) (PoolPtr, error) {
	r, err := arithStep(a, b, exactOp, floatOp, complexOp)
	if err != nil {
		return PoolPtr{}, err
	}
	return h.Insert(simplifyNumeric(r)), nil
}

func integerArg(args []PoolPtr, i int) (*big.Int, error) {
	n, ok := args[i].Get().(Integer)
	if !ok {
		return nil, wrongType("integer", args[i])
	}
	return n.N, nil
}

func quotient(h *Heap, args []PoolPtr) (PoolPtr, error) {
	return intDivOp(h, args, func(a, b *big.Int) *big.Int { return new(big.Int).Quo(a, b) })
}

func remainder(h *Heap, args []PoolPtr) (PoolPtr, error) {
	return intDivOp(h, args, func(a, b *big.Int) *big.Int { return new(big.Int).Rem(a, b) })
}

func modulo(h *Heap, args []PoolPtr) (PoolPtr, error) {
	return intDivOp(h, args, func(a, b *big.Int) *big.Int {
		m := new(big.Int).Mod(a, b)
		if m.Sign() != 0 && b.Sign() < 0 {
			m.Add(m, b)
		}
		return m
	})
}

func intDivOp(h *Heap, args []PoolPtr, op func(a, b *big.Int) *big.Int) (PoolPtr, error) {
	if err := checkArgs(args, 2, 2); err != nil {
		return PoolPtr{}, err
	}
	a, err := integerArg(args, 0)
	if err != nil {
		return PoolPtr{}, err
	}
	b, err := integerArg(args, 1)
	if err != nil {
		return PoolPtr{}, err
	}
	if b.Sign() == 0 {
		return PoolPtr{}, fmt.Errorf("division by zero")
	}
	return h.Insert(Integer{N: op(a, b)}), nil
}

func exactToInexact(h *Heap, args []PoolPtr) (PoolPtr, error) {
	if err := checkArgs(args, 1, 1); err != nil {
		return PoolPtr{}, err
	}
	v, err := numericArg(args, 0)
	if err != nil {
		return PoolPtr{}, err
	}
	return h.Insert(applyExactness(v, exactInexact)), nil
}

func numberToString(h *Heap, args []PoolPtr) (PoolPtr, error) {
	if err := checkArgs(args, 1, 2); err != nil {
		return PoolPtr{}, err
	}
	if _, err := numericArg(args, 0); err != nil {
		return PoolPtr{}, err
	}
	if len(args) == 2 {
		n, err := integerArg(args, 0)
		if err != nil {
			return PoolPtr{}, fmt.Errorf("radix conversion needs an integer")
		}
		radix, err := integerArg(args, 1)
		if err != nil {
			return PoolPtr{}, err
		}
		return h.Insert(NewString(n.Text(int(radix.Int64())))), nil
	}
	return h.Insert(NewString(PrettyPrint(args[0]))), nil
}
