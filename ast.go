package goxide

import (
	"fmt"
	"log"
)

// Lowering turns a read s-expression into a lexically resolved syntax
// tree.  This step also computes all references: we need to keep track
// of the environment here anyway to handle macros and redefined
// keywords, and computing references here keeps the compiler simple.
//
// Macro expansion happens inline: the parser may re-enter the VM to
// run a user transformer over a heap value, and the expansion is
// re-parsed in the usage environment.

const maxMacroExpansion = 1000

// SyntaxElement is a node of the lowered tree.
type SyntaxElement interface {
	// dropRoots releases the roots a node holds on quoted data; the
	// tree is dead after the call.  The compiled code block keeps the
	// constants alive from then on.
	dropRoots()
}

// ReferenceElement reads the variable at static address
// {altitude, depth, index}.
type ReferenceElement struct {
	Altitude int
	Depth    int
	Index    int
}

// QuoteElement yields a constant.  The root holds the datum alive
// until the tree is compiled.
type QuoteElement struct {
	Quoted RootPtr
}

type IfElement struct {
	Cond, Then SyntaxElement
	Else       SyntaxElement // nil when the form had no alternative
}

type BeginElement struct {
	Body []SyntaxElement
}

// LambdaElement: the activation frame has the formals, then the
// variadic slot if dotted, then all inner defines.
type LambdaElement struct {
	Env      *Env
	Arity    int
	Variadic bool
	Defines  []SyntaxElement // always *SetElement
	Body     []SyntaxElement
	Name     string
}

type SetElement struct {
	Altitude int
	Depth    int
	Index    int
	Value    SyntaxElement
}

type ApplicationElement struct {
	Fun  SyntaxElement
	Args []SyntaxElement
}

func (*ReferenceElement) dropRoots() {}
func (q *QuoteElement) dropRoots()   { q.Quoted.Drop() }
func (i *IfElement) dropRoots() {
	i.Cond.dropRoots()
	i.Then.dropRoots()
	if i.Else != nil {
		i.Else.dropRoots()
	}
}
func (b *BeginElement) dropRoots() {
	for _, e := range b.Body {
		e.dropRoots()
	}
}
func (l *LambdaElement) dropRoots() {
	for _, e := range l.Defines {
		e.dropRoots()
	}
	for _, e := range l.Body {
		e.dropRoots()
	}
}
func (s *SetElement) dropRoots() { s.Value.dropRoots() }
func (a *ApplicationElement) dropRoots() {
	a.Fun.dropRoots()
	for _, e := range a.Args {
		e.dropRoots()
	}
}

// parser carries the state AST lowering needs: the heap, and the
// interpreter so macro transformers can be compiled and run.
type parser struct {
	h      *Heap
	interp *Interpreter
}

// Parse lowers one expression.  value must be rooted by the caller; the
// short-lived raw pointers used on the way down are covered by that
// single root, since lowering only allocates through expansion points
// that root their own inputs.
func (p *parser) Parse(env *Env, afi *ActivationFrameInfo, value PoolPtr) (SyntaxElement, error) {
	value, loc := unwrapLocated(value)
	env, value, err := p.resolveSyntacticClosure(env, value)
	if err != nil {
		return nil, locateSyntaxErr(err, loc)
	}
	var elem SyntaxElement
	switch v := value.Get().(type) {
	case Symbol:
		elem, err = p.constructReference(env, afi, string(v))
	case EmptyList:
		err = fmt.Errorf("cannot evaluate empty list")
	case *Pair:
		elem, err = p.parsePair(env, afi, v.Car, v.Cdr)
	default:
		// Self-evaluating datum.  Vector literals may still carry
		// reader locations inside; runtime values never do.
		elem = &QuoteElement{Quoted: p.h.Root(stripLocated(p.h, value))}
	}
	if err != nil {
		return nil, locateSyntaxErr(err, loc)
	}
	return elem, nil
}

func (p *parser) constructReference(env *Env, afi *ActivationFrameInfo, name string) (SyntaxElement, error) {
	switch b := env.Get(name).(type) {
	case *Variable:
		return &ReferenceElement{
			Altitude: b.Altitude,
			Depth:    afi.Altitude - b.Altitude,
			Index:    b.Index,
		}, nil
	case Macro:
		return nil, fmt.Errorf("illegal reference to %s, which is not a variable", name)
	default:
		// An undefined symbol becomes a fresh toplevel slot rather
		// than a static error; reading it before it is defined fails
		// at runtime.
		log.Printf("warning: reference to undefined variable %s", name)
		index := env.DefineToplevel(name, afi)
		return &ReferenceElement{
			Altitude: 0,
			Depth:    afi.Altitude,
			Index:    index,
		}, nil
	}
}

func (p *parser) parsePair(env *Env, afi *ActivationFrameInfo, car, cdr PoolPtr) (SyntaxElement, error) {
	rest, err := listToVec(cdr)
	if err != nil {
		return nil, err
	}
	carEnv, resolvedCar, err := p.resolveSyntacticClosure(env, car)
	if err != nil {
		return nil, err
	}
	resolvedCar, _ = unwrapLocated(resolvedCar)
	if sym, ok := resolvedCar.Get().(Symbol); ok {
		kw, mac := matchSymbol(carEnv, string(sym))
		switch kw {
		case kwQuote:
			return p.parseQuote(env, rest, false)
		case kwSyntaxQuote:
			return p.parseQuote(env, rest, true)
		case kwIf:
			return p.parseIf(env, afi, rest)
		case kwBegin:
			return p.parseBegin(env, afi, rest)
		case kwLambda:
			return p.parseLambda(env, afi, rest)
		case kwSet:
			return p.parseSet(env, afi, rest)
		case kwDefine:
			return p.parseDefine(env, afi, rest)
		case kwDefineSyntax:
			return p.parseDefineSyntax(env, afi, rest)
		case kwLetSyntax:
			return p.parseLetSyntax(env, afi, rest, false)
		case kwLetrecSyntax:
			return p.parseLetSyntax(env, afi, rest, true)
		case kwMacro:
			expr := p.h.Insert(&Pair{Car: car, Cdr: cdr})
			expanded, err := p.expandMacroFull(env, mac, expr)
			if err != nil {
				return nil, err
			}
			defer expanded.Drop()
			return p.Parse(env, afi, expanded.Pp())
		}
	}
	return p.parseApplication(env, afi, car, rest)
}

func (p *parser) parseQuote(env *Env, rest []PoolPtr, syntax bool) (SyntaxElement, error) {
	if len(rest) != 1 {
		return nil, fmt.Errorf("quote expected 1 argument, got %d", len(rest))
	}
	// 'x strips syntactic closures and reader locations; syntax-quote
	// preserves the closures.
	if syntax {
		quoted, _ := unwrapLocated(rest[0])
		return &QuoteElement{Quoted: p.h.Root(quoted)}, nil
	}
	stripped := stripLocated(p.h, p.stripSyntacticClosure(rest[0]))
	return &QuoteElement{Quoted: p.h.Root(stripped)}, nil
}

func (p *parser) parseIf(env *Env, afi *ActivationFrameInfo, rest []PoolPtr) (SyntaxElement, error) {
	if err := checkLen(len(rest), 2, 3); err != nil {
		return nil, fmt.Errorf("if: %s", err)
	}
	cond, err := p.Parse(env, afi, rest[0])
	if err != nil {
		return nil, err
	}
	then, err := p.Parse(env, afi, rest[1])
	if err != nil {
		return nil, err
	}
	var els SyntaxElement
	if len(rest) == 3 {
		els, err = p.Parse(env, afi, rest[2])
		if err != nil {
			return nil, err
		}
	}
	return &IfElement{Cond: cond, Then: then, Else: els}, nil
}

func (p *parser) parseBegin(env *Env, afi *ActivationFrameInfo, rest []PoolPtr) (SyntaxElement, error) {
	if err := checkLen(len(rest), 1, -1); err != nil {
		return nil, fmt.Errorf("begin: %s", err)
	}
	body := make([]SyntaxElement, 0, len(rest))
	for _, e := range rest {
		parsed, err := p.Parse(env, afi, e)
		if err != nil {
			return nil, err
		}
		body = append(body, parsed)
	}
	return &BeginElement{Body: body}, nil
}

func (p *parser) parseLambda(env *Env, afi *ActivationFrameInfo, rest []PoolPtr) (SyntaxElement, error) {
	if err := checkLen(len(rest), 2, -1); err != nil {
		return nil, fmt.Errorf("lambda: %s", err)
	}
	return p.parseSplitLambda(env, afi, rest[0], rest[1:], "")
}

// parseSplitLambda handles both (lambda formals body...) and the
// lambda implied by (define (f args) body...).
func (p *parser) parseSplitLambda(outerEnv *Env, afi *ActivationFrameInfo, formals PoolPtr, body []PoolPtr, name string) (SyntaxElement, error) {
	parsedFormals, err := p.parseFormals(formals)
	if err != nil {
		return nil, err
	}
	innerAfi := extendAfInfo(afi)
	innerEnv := NewEnv(outerEnv)

	var targets []defineTarget
	for _, t := range parsedFormals.values {
		p.defineInEnv(innerEnv, innerAfi, t, true)
		targets = append(targets, t)
	}
	if parsedFormals.rest != nil {
		p.defineInEnv(innerEnv, innerAfi, parsedFormals.rest, true)
		targets = append(targets, parsedFormals.rest)
	}
	// The pushed syntactic-closure scopes must be popped on every
	// exit path, including the targets the define collection below
	// still adds.
	defer func() { p.popEnvs(targets) }()

	unparsedDefines, restBody, expansionRoots, err := p.collectInternalDefines(innerEnv, body)
	// The collected define data can point into macro-expanded
	// structure; those expansions stay rooted until the defines have
	// been parsed.
	defer func() {
		for _, r := range expansionRoots {
			r.Drop()
		}
	}()
	if err != nil {
		return nil, err
	}
	for _, d := range unparsedDefines {
		p.defineInEnv(innerEnv, innerAfi, d.target, false)
		targets = append(targets, d.target)
	}

	defines := make([]SyntaxElement, 0, len(unparsedDefines))
	for _, d := range unparsedDefines {
		value, err := p.parseDefineValue(d, innerEnv, innerAfi)
		if err != nil {
			return nil, err
		}
		v, ok := p.getInEnv(innerEnv, d.target).(*Variable)
		if !ok {
			panic(fmt.Sprintf("internal define target %s is not a variable", d.target.name()))
		}
		defines = append(defines, &SetElement{
			Altitude: v.Altitude,
			Depth:    innerAfi.Altitude - v.Altitude,
			Index:    v.Index,
			Value:    value,
		})
	}

	exprs := make([]SyntaxElement, 0, len(restBody))
	for _, e := range restBody {
		parsed, err := p.Parse(innerEnv, innerAfi, e)
		if err != nil {
			return nil, err
		}
		exprs = append(exprs, parsed)
	}
	if len(exprs) == 0 {
		return nil, fmt.Errorf("lambda cannot have empty body")
	}
	return &LambdaElement{
		Env:      innerEnv,
		Arity:    len(parsedFormals.values),
		Variadic: parsedFormals.rest != nil,
		Defines:  defines,
		Body:     exprs,
		Name:     name,
	}, nil
}

func (p *parser) parseSet(env *Env, afi *ActivationFrameInfo, rest []PoolPtr) (SyntaxElement, error) {
	if err := checkLen(len(rest), 2, 2); err != nil {
		return nil, fmt.Errorf("set!: %s", err)
	}
	dt := p.getDefineTarget(rest[0])
	if dt == nil {
		return nil, fmt.Errorf("expected symbol as target of set!, got `%s`", PrettyPrint(rest[0]))
	}
	value, err := p.Parse(env, afi, rest[1])
	if err != nil {
		return nil, err
	}
	switch b := p.getInEnv(env, dt).(type) {
	case *Variable:
		return &SetElement{
			Altitude: b.Altitude,
			Depth:    afi.Altitude - b.Altitude,
			Index:    b.Index,
			Value:    value,
		}, nil
	case Macro:
		return nil, fmt.Errorf("trying to set non-variable `%s`", dt.name())
	default:
		return nil, fmt.Errorf("trying to set undefined value `%s`", dt.name())
	}
}

// parseDefine handles toplevel defines.  Inner defines have different
// semantics and are parsed in collectInternalDefines.
func (p *parser) parseDefine(env *Env, afi *ActivationFrameInfo, rest []PoolPtr) (SyntaxElement, error) {
	// The check is on activation frame altitude, not syntactic
	// toplevelness, so `(define x (define y 1))` slips through; a
	// known limitation kept for compatibility.
	if afi.Altitude != 0 {
		return nil, fmt.Errorf("define in illegal position")
	}
	dd, err := p.getDefineData(rest)
	if err != nil {
		return nil, err
	}
	symbol := dd.target.name()
	index := env.DefineIfAbsent(symbol, afi, false)
	value, err := p.parseDefineValue(dd, env, afi)
	if err != nil {
		return nil, err
	}
	return &SetElement{
		Altitude: 0,
		Depth:    afi.Altitude,
		Index:    index,
		Value:    value,
	}, nil
}

// defineTarget is the name position of a define or formal: either a
// bare symbol or a syntactic closure whose expression is one.
type defineTarget interface {
	name() string
}

type bareTarget string

func (b bareTarget) name() string { return string(b) }

type closureTarget struct {
	sc  *SyntacticClosure
	sym string
}

func (c *closureTarget) name() string { return c.sym }

func (p *parser) getDefineTarget(value PoolPtr) defineTarget {
	value, _ = unwrapLocated(value)
	switch v := value.Get().(type) {
	case Symbol:
		return bareTarget(string(v))
	case *SyntacticClosure:
		inner, _ := unwrapLocated(v.Expr)
		switch e := inner.Get().(type) {
		case Symbol:
			return &closureTarget{sc: v, sym: string(e)}
		case *SyntacticClosure:
			return p.getDefineTarget(v.Expr)
		default:
			return nil
		}
	default:
		return nil
	}
}

func (p *parser) defineInEnv(env *Env, afi *ActivationFrameInfo, target defineTarget, initialized bool) {
	switch t := target.(type) {
	case bareTarget:
		env.Define(string(t), afi, initialized)
	case *closureTarget:
		inner := t.sc.pushEnv(p.h)
		inner.Define(t.sym, afi, initialized)
	}
}

func (p *parser) getInEnv(env *Env, target defineTarget) EnvValue {
	switch t := target.(type) {
	case bareTarget:
		return env.Get(string(t))
	case *closureTarget:
		return t.sc.ClosedEnv.Get().(*Env).Get(t.sym)
	default:
		return nil
	}
}

func (p *parser) popEnvs(targets []defineTarget) {
	for _, t := range targets {
		if ct, ok := t.(*closureTarget); ok {
			ct.sc.popEnv(p.h)
		}
	}
}

// defineData is a define form split into its target and value.
type defineData struct {
	target defineTarget
	// value is either a plain expression...
	value PoolPtr
	// ...or the formals/body of a direct lambda define.
	lambdaFormals PoolPtr
	lambdaBody    []PoolPtr
	isLambda      bool
}

func (p *parser) parseDefineValue(d defineData, env *Env, afi *ActivationFrameInfo) (SyntaxElement, error) {
	if d.isLambda {
		return p.parseSplitLambda(env, afi, d.lambdaFormals, d.lambdaBody, d.target.name())
	}
	return p.Parse(env, afi, d.value)
}

func (p *parser) getDefineData(rest []PoolPtr) (defineData, error) {
	if len(rest) == 0 {
		return defineData{}, fmt.Errorf("define: empty form")
	}
	if target := p.getDefineTarget(rest[0]); target != nil {
		if err := checkLen(len(rest), 2, 2); err != nil {
			return defineData{}, fmt.Errorf("define: %s", err)
		}
		return defineData{target: target, value: rest[1]}, nil
	}
	return p.getLambdaDefineData(rest)
}

// getLambdaDefineData parses direct lambda defines:
// (define (f x y) body...).
func (p *parser) getLambdaDefineData(rest []PoolPtr) (defineData, error) {
	if err := checkLen(len(rest), 2, -1); err != nil {
		return defineData{}, fmt.Errorf("define: %s", err)
	}
	head, _ := unwrapLocated(rest[0])
	pair, ok := head.Get().(*Pair)
	if !ok {
		return defineData{}, fmt.Errorf("expected symbol or formals as target of define, got `%s`", PrettyPrint(rest[0]))
	}
	nameVal, _ := unwrapLocated(pair.Car)
	sym, ok := nameVal.Get().(Symbol)
	if !ok {
		return defineData{}, fmt.Errorf("expected symbol for name in define method, got `%s`", PrettyPrint(pair.Car))
	}
	return defineData{
		target:        bareTarget(string(sym)),
		lambdaFormals: pair.Cdr,
		lambdaBody:    rest[1:],
		isLambda:      true,
	}, nil
}

func (p *parser) parseApplication(env *Env, afi *ActivationFrameInfo, fun PoolPtr, rest []PoolPtr) (SyntaxElement, error) {
	function, err := p.Parse(env, afi, fun)
	if err != nil {
		return nil, err
	}
	args := make([]SyntaxElement, 0, len(rest))
	for _, a := range rest {
		parsed, err := p.Parse(env, afi, a)
		if err != nil {
			return nil, err
		}
		args = append(args, parsed)
	}
	return &ApplicationElement{Fun: function, Args: args}, nil
}

// formals holds a function's formal argument list: (x y z) has three
// values and no rest; (x y . z) has two values and rest z; a bare
// symbol is all rest.
type formals struct {
	values []defineTarget
	rest   defineTarget
}

func (p *parser) parseFormals(f PoolPtr) (formals, error) {
	var out formals
	cur := f
	for {
		cur2, _ := unwrapLocated(cur)
		if dt := p.getDefineTarget(cur2); dt != nil {
			out.rest = dt
			return out, nil
		}
		switch v := cur2.Get().(type) {
		case EmptyList:
			return out, nil
		case *Pair:
			dt := p.getDefineTarget(v.Car)
			if dt == nil {
				return formals{}, fmt.Errorf("malformed formals: %s", PrettyPrint(f))
			}
			out.values = append(out.values, dt)
			cur = v.Cdr
		default:
			return formals{}, fmt.Errorf("malformed formals: %s", PrettyPrint(f))
		}
	}
}

func (p *parser) parseDefineSyntax(env *Env, afi *ActivationFrameInfo, rest []PoolPtr) (SyntaxElement, error) {
	// Same altitude-based position check as define.
	if afi.Altitude != 0 {
		return nil, fmt.Errorf("illegally placed define-syntax")
	}
	if err := checkLen(len(rest), 2, 2); err != nil {
		return nil, fmt.Errorf("define-syntax: %s", err)
	}
	head, _ := unwrapLocated(rest[0])
	sym, ok := head.Get().(Symbol)
	if !ok {
		return nil, fmt.Errorf("define-syntax: target must be symbol, not %s", PrettyPrint(rest[0]))
	}
	mac, err := p.makeMacro(env, afi, rest[1])
	if err != nil {
		return nil, err
	}
	env.DefineMacro(string(sym), mac, env)
	return &QuoteElement{Quoted: p.h.Root(p.h.Unspecific)}, nil
}

func (p *parser) parseLetSyntax(env *Env, afi *ActivationFrameInfo, rest []PoolPtr, rec bool) (SyntaxElement, error) {
	if err := checkLen(len(rest), 2, -1); err != nil {
		return nil, fmt.Errorf("let-syntax: %s", err)
	}
	bindings, err := listToVec(rest[0])
	if err != nil {
		return nil, err
	}
	innerEnv := NewEnv(env)
	definitionEnv := env
	if rec {
		definitionEnv = innerEnv
	}
	for _, b := range bindings {
		binding, err := listToVec(b)
		if err != nil {
			return nil, err
		}
		if err := checkLen(len(binding), 2, 2); err != nil {
			return nil, fmt.Errorf("let-syntax binding: %s", err)
		}
		head, _ := unwrapLocated(binding[0])
		sym, ok := head.Get().(Symbol)
		if !ok {
			return nil, fmt.Errorf("let-syntax: target must be symbol, not %s", PrettyPrint(binding[0]))
		}
		mac, err := p.makeMacro(env, afi, binding[1])
		if err != nil {
			return nil, err
		}
		innerEnv.DefineMacro(string(sym), mac, definitionEnv)
	}

	// The body may contain internal defines, so it parses as the body
	// of a zero-argument lambda applied immediately.
	lambda, err := p.parseSplitLambda(innerEnv, afi, p.h.EmptyList, rest[1:], "[let-syntax body]")
	if err != nil {
		return nil, err
	}
	return &ApplicationElement{Fun: lambda}, nil
}

// makeMacro compiles and runs the transformer expression right away,
// in a compile-time VM invocation, and checks the result is callable.
func (p *parser) makeMacro(env *Env, afi *ActivationFrameInfo, val PoolPtr) (RootPtr, error) {
	result, err := p.parseCompileRunMacro(env, afi, val)
	if err != nil {
		return RootPtr{}, err
	}
	switch result.Get().(type) {
	case *Lambda, *Primitive:
		return result, nil
	default:
		defer result.Drop()
		return RootPtr{}, fmt.Errorf("macro must be a lambda, is %s", PrettyPrint(result.Pp()))
	}
}

// parseCompileRunMacro lowers and runs a transformer expression in an
// activation frame tree mirroring the current compile-time altitude
// structure.
func (p *parser) parseCompileRunMacro(env *Env, afi *ActivationFrameInfo, val PoolPtr) (RootPtr, error) {
	tree, err := p.Parse(env, afi, val)
	if err != nil {
		return RootPtr{}, fmt.Errorf("syntax error: %s", err)
	}
	defer tree.dropRoots()

	globalFrame := p.interp.globalFrame.Pp()
	globalFrame.Get().(*ActivationFrame).EnsureIndex(p.h, afi.toplevel().Entries)

	frame := p.makeFrame(globalFrame, afi)
	frameRoot := p.h.Root(frame)
	defer frameRoot.Drop()

	code := CompileToplevel(p.h, tree, "[macro]")
	codeRoot := p.h.Root(code)
	defer codeRoot.Drop()

	return runVM(p.interp, codeRoot.Pp(), 0, frameRoot.Pp())
}

// makeFrame materializes an activation frame tree mirroring the
// compile-time altitude structure; inner slots start undefined.
func (p *parser) makeFrame(globalFrame PoolPtr, afi *ActivationFrameInfo) PoolPtr {
	if afi.Parent == nil {
		return globalFrame
	}
	parent := p.makeFrame(globalFrame, afi.Parent)
	parentRoot := p.h.Root(parent)
	defer parentRoot.Drop()
	vals := make([]PoolPtr, afi.Entries)
	for i := range vals {
		vals[i] = p.h.Undefined
	}
	return p.h.Insert(&ActivationFrame{Parent: parentRoot.Pp(), Vals: vals})
}

// expandMacroFull expands a head-macro call, re-expanding while the
// result is itself a macro call, up to the depth limit.
func (p *parser) expandMacroFull(env *Env, mac Macro, expr PoolPtr) (RootPtr, error) {
	exprRoot := p.h.Root(expr)
	defer exprRoot.Drop()
	expanded, err := p.expandMacro(env, mac, exprRoot.Pp())
	if err != nil {
		return RootPtr{}, err
	}
	for count := 0; ; count++ {
		m, ok := p.getMacro(env, expanded.Pp())
		if !ok {
			return expanded, nil
		}
		if count >= maxMacroExpansion {
			expanded.Drop()
			return RootPtr{}, fmt.Errorf("maximum macro expansion depth reached")
		}
		next, err := p.expandMacro(env, m, expanded.Pp())
		expanded.Drop()
		if err != nil {
			return RootPtr{}, err
		}
		expanded = next
	}
}

// expandMacro invokes the transformer as a three-argument call
// (transformer form usage-env definition-env) through the VM.
func (p *parser) expandMacro(env *Env, mac Macro, expr PoolPtr) (RootPtr, error) {
	usageEnv := p.h.InsertRooted(env)
	defer usageEnv.Drop()
	defEnv := p.h.InsertRooted(mac.DefEnv)
	defer defEnv.Drop()
	// Transformers are ordinary Scheme code; they get the form
	// without reader location wrappers.
	exprHold := p.h.Root(expr)
	stripped := stripLocated(p.h, exprHold.Pp())
	exprHold.Drop()
	exprRoot := p.h.Root(stripped)

	tree := &ApplicationElement{
		Fun: &QuoteElement{Quoted: mac.Lambda.Clone()},
		Args: []SyntaxElement{
			&QuoteElement{Quoted: exprRoot},
			&QuoteElement{Quoted: usageEnv.Clone()},
			&QuoteElement{Quoted: defEnv.Clone()},
		},
	}
	defer tree.dropRoots()
	return p.interp.compileRunTree(tree)
}

// getMacro reports whether expr is a pair whose head resolves to a
// macro binding.
func (p *parser) getMacro(env *Env, expr PoolPtr) (Macro, bool) {
	expr, _ = unwrapLocated(expr)
	pair, ok := expr.Get().(*Pair)
	if !ok {
		return Macro{}, false
	}
	resEnv, resCar, err := p.resolveSyntacticClosure(env, pair.Car)
	if err != nil {
		return Macro{}, false
	}
	resCar, _ = unwrapLocated(resCar)
	sym, ok := resCar.Get().(Symbol)
	if !ok {
		return Macro{}, false
	}
	kw, mac := matchSymbol(resEnv, string(sym))
	if kw != kwMacro {
		return Macro{}, false
	}
	return mac, true
}

// keyword is what a head symbol means in a given environment.
type keyword int

const (
	kwVariable keyword = iota
	kwQuote
	kwSyntaxQuote
	kwIf
	kwBegin
	kwLambda
	kwSet
	kwDefine
	kwDefineSyntax
	kwLetSyntax
	kwLetrecSyntax
	kwMacro
)

// matchSymbol classifies a head symbol.  Core keywords only apply when
// the name has no binding at all: any variable or macro binding
// shadows keyword status, so (define (set!) ...) is legal.
func matchSymbol(env *Env, sym string) (keyword, Macro) {
	switch b := env.Get(sym).(type) {
	case nil:
		switch sym {
		case "quote":
			return kwQuote, Macro{}
		case "syntax-quote":
			return kwSyntaxQuote, Macro{}
		case "if":
			return kwIf, Macro{}
		case "begin":
			return kwBegin, Macro{}
		case "lambda":
			return kwLambda, Macro{}
		case "set!":
			return kwSet, Macro{}
		case "define":
			return kwDefine, Macro{}
		case "define-syntax":
			return kwDefineSyntax, Macro{}
		case "let-syntax":
			return kwLetSyntax, Macro{}
		case "letrec-syntax":
			return kwLetrecSyntax, Macro{}
		default:
			return kwVariable, Macro{}
		}
	case Macro:
		return kwMacro, b
	default:
		return kwVariable, Macro{}
	}
}

// collectInternalDefines gathers the define prefix of a lambda body,
// splicing inner begins and macro-expanding statements before
// classifying them.  An inner begin in the define section may only
// contain further defines; a begin that opens with an expression ends
// the section and is parsed as the first body expression.
func (p *parser) collectInternalDefines(env *Env, body []PoolPtr) ([]defineData, []PoolPtr, []RootPtr, error) {
	var defines []defineData
	var roots []RootPtr
	i := 0

scan:
	for _, statement := range body {
		expanded := statement
		if m, ok := p.getMacro(env, statement); ok {
			// Expansion is re-done at the actual parse site; the
			// extra work keeps this collection pass simple.
			exp, err := p.expandMacroFull(env, m, statement)
			if err != nil {
				return defines, nil, roots, err
			}
			roots = append(roots, exp)
			expanded = exp.Pp()
		}
		expanded, _ = unwrapLocated(expanded)
		pair, ok := expanded.Get().(*Pair)
		if !ok {
			break
		}
		resEnv, resCar, err := p.resolveSyntacticClosure(env, pair.Car)
		if err != nil {
			return defines, nil, roots, err
		}
		resCar, _ = unwrapLocated(resCar)
		sym, ok := resCar.Get().(Symbol)
		if !ok {
			break
		}
		kw, _ := matchSymbol(resEnv, string(sym))
		switch kw {
		case kwDefine:
			rest, err := listToVec(pair.Cdr)
			if err != nil {
				return defines, nil, roots, err
			}
			dd, err := p.getDefineData(rest)
			if err != nil {
				return defines, nil, roots, err
			}
			defines = append(defines, dd)
		case kwBegin:
			exprs, err := listToVec(pair.Cdr)
			if err != nil {
				return defines, nil, roots, err
			}
			inner, innerRest, innerRoots, err := p.collectInternalDefines(env, exprs)
			roots = append(roots, innerRoots...)
			if err != nil {
				return defines, nil, roots, err
			}
			if len(innerRest) != 0 {
				if len(inner) == 0 {
					break scan
				}
				return defines, nil, roots, fmt.Errorf("inner begin in define section may only contain definitions")
			}
			defines = append(defines, inner...)
		default:
			break scan
		}
		i++
	}
	return defines, body[i:], roots, nil
}

// resolveSyntacticClosure peels syntactic closures off value: the
// expression resolves in the closed environment, filtered so that the
// free names resolve in the ambient one.
func (p *parser) resolveSyntacticClosure(env *Env, value PoolPtr) (*Env, PoolPtr, error) {
	value, _ = unwrapLocated(value)
	sc, ok := value.Get().(*SyntacticClosure)
	if !ok {
		return env, value, nil
	}
	closedEnv, ok := sc.ClosedEnv.Get().(*Env)
	if !ok {
		return nil, PoolPtr{}, fmt.Errorf("syntactic closure created with non-environment argument")
	}
	inner := filterEnv(closedEnv, env, sc.FreeVars)
	return p.resolveSyntacticClosure(inner, sc.Expr)
}

func (p *parser) stripSyntacticClosure(value PoolPtr) PoolPtr {
	value, _ = unwrapLocated(value)
	if sc, ok := value.Get().(*SyntacticClosure); ok {
		return p.stripSyntacticClosure(sc.Expr)
	}
	return value
}

// checkLen verifies an argument count; max < 0 means unbounded.
func checkLen(n, min, max int) error {
	if n < min {
		return fmt.Errorf("too few values, expecting at least %d", min)
	}
	if max >= 0 && n > max {
		return fmt.Errorf("too many values, expecting at most %d", max)
	}
	return nil
}
