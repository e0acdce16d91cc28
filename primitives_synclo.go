package goxide

import "fmt"

var syncloPrimitives = []Primitive{
	{Name: "make-syntactic-closure", Impl: makeSyntacticClosure},
	{Name: "syntactic-closure?", Impl: syntacticClosureP},
	{Name: "syntactic-closure-environment", Impl: syntacticClosureEnvironment},
	{Name: "syntactic-closure-free-variables", Impl: syntacticClosureFreeVariables},
	{Name: "syntactic-closure-expression", Impl: syntacticClosureExpression},
	{Name: "identifier?", Impl: identifierP},
	{Name: "identifier=?", Impl: identifierEqualP},
}

// makeSyntacticClosure implements
// (make-syntactic-closure env free-vars expr).
func makeSyntacticClosure(h *Heap, args []PoolPtr) (PoolPtr, error) {
	if err := checkArgs(args, 3, 3); err != nil {
		return PoolPtr{}, err
	}
	if _, ok := args[0].Get().(*Env); !ok {
		return PoolPtr{}, fmt.Errorf("not an environment: %s", PrettyPrint(args[0]))
	}
	freeList, err := listToVec(args[1])
	if err != nil {
		return PoolPtr{}, err
	}
	free := make([]string, len(freeList))
	for i, fv := range freeList {
		s, ok := fv.Get().(Symbol)
		if !ok {
			return PoolPtr{}, fmt.Errorf("not a symbol: %s", PrettyPrint(fv))
		}
		free[i] = string(s)
	}
	return h.Insert(&SyntacticClosure{
		ClosedEnv: args[0],
		FreeVars:  free,
		Expr:      args[2],
	}), nil
}

func syntacticClosureArg(args []PoolPtr, i int) (*SyntacticClosure, error) {
	sc, ok := args[i].Get().(*SyntacticClosure)
	if !ok {
		return nil, fmt.Errorf("not a syntactic closure: %s", PrettyPrint(args[i]))
	}
	return sc, nil
}

func syntacticClosureP(h *Heap, args []PoolPtr) (PoolPtr, error) {
	if err := checkArgs(args, 1, 1); err != nil {
		return PoolPtr{}, err
	}
	_, ok := args[0].Get().(*SyntacticClosure)
	return boolValue(h, ok), nil
}

func syntacticClosureEnvironment(h *Heap, args []PoolPtr) (PoolPtr, error) {
	if err := checkArgs(args, 1, 1); err != nil {
		return PoolPtr{}, err
	}
	sc, err := syntacticClosureArg(args, 0)
	if err != nil {
		return PoolPtr{}, err
	}
	return sc.ClosedEnv, nil
}

func syntacticClosureFreeVariables(h *Heap, args []PoolPtr) (PoolPtr, error) {
	if err := checkArgs(args, 1, 1); err != nil {
		return PoolPtr{}, err
	}
	sc, err := syntacticClosureArg(args, 0)
	if err != nil {
		return PoolPtr{}, err
	}
	// Interned symbols are pinned, so the slice is safe across the
	// list allocations.
	syms := make([]PoolPtr, len(sc.FreeVars))
	for i, s := range sc.FreeVars {
		syms[i] = h.InternSymbol(s)
	}
	return vecToList(h, syms), nil
}

func syntacticClosureExpression(h *Heap, args []PoolPtr) (PoolPtr, error) {
	if err := checkArgs(args, 1, 1); err != nil {
		return PoolPtr{}, err
	}
	sc, err := syntacticClosureArg(args, 0)
	if err != nil {
		return PoolPtr{}, err
	}
	return sc.Expr, nil
}

// isIdentifier: a symbol, or a syntactic closure wrapping one.
func isIdentifier(p PoolPtr) bool {
	switch v := p.Get().(type) {
	case Symbol:
		return true
	case *SyntacticClosure:
		return isIdentifier(v.Expr)
	default:
		return false
	}
}

func identifierP(h *Heap, args []PoolPtr) (PoolPtr, error) {
	if err := checkArgs(args, 1, 1); err != nil {
		return PoolPtr{}, err
	}
	return boolValue(h, isIdentifier(args[0])), nil
}

func coerceSymbol(p PoolPtr) string {
	switch v := p.Get().(type) {
	case Symbol:
		return string(v)
	case *SyntacticClosure:
		return coerceSymbol(v.Expr)
	default:
		panic("coercing non-identifier to symbol")
	}
}

// identifierGet resolves an identifier, peeling syntactic closures
// through their filtered environments.
func identifierGet(env *Env, p PoolPtr) (EnvValue, error) {
	switch v := p.Get().(type) {
	case Symbol:
		return env.Get(string(v)), nil
	case *SyntacticClosure:
		closed, ok := v.ClosedEnv.Get().(*Env)
		if !ok {
			return nil, fmt.Errorf("syntactic closure created with non-environment argument")
		}
		return identifierGet(filterEnv(closed, env, v.FreeVars), v.Expr)
	default:
		return nil, fmt.Errorf("non-identifier: %s", PrettyPrint(p))
	}
}

// identifierEqualP implements (identifier=? env1 id1 env2 id2): two
// identifiers are equal when they resolve to the same binding, or are
// the same name and both unbound.
func identifierEqualP(h *Heap, args []PoolPtr) (PoolPtr, error) {
	if err := checkArgs(args, 4, 4); err != nil {
		return PoolPtr{}, err
	}
	env1, ok := args[0].Get().(*Env)
	if !ok {
		return PoolPtr{}, fmt.Errorf("not an environment: %s", PrettyPrint(args[0]))
	}
	env2, ok := args[2].Get().(*Env)
	if !ok {
		return PoolPtr{}, fmt.Errorf("not an environment: %s", PrettyPrint(args[2]))
	}
	if !isIdentifier(args[1]) || !isIdentifier(args[3]) {
		return h.False, nil
	}
	b1, err := identifierGet(env1, args[1])
	if err != nil {
		return PoolPtr{}, err
	}
	b2, err := identifierGet(env2, args[3])
	if err != nil {
		return PoolPtr{}, err
	}
	var res bool
	switch v1 := b1.(type) {
	case nil:
		res = b2 == nil && coerceSymbol(args[1]) == coerceSymbol(args[3])
	case *Variable:
		v2, ok := b2.(*Variable)
		res = ok && v1.Altitude == v2.Altitude && v1.Index == v2.Index
	case Macro:
		// Lambdas are unique, so there is no need to compare
		// definition environments.
		m2, ok := b2.(Macro)
		res = ok && v1.Lambda.Pp() == m2.Lambda.Pp()
	}
	return boolValue(h, res), nil
}
