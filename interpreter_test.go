package goxide

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func stdInterp(t *testing.T) *Interpreter {
	t.Helper()
	interp := NewInterpreter(GcNormal)
	require.NoError(t, interp.InitializeStdlib())
	return interp
}

func TestMagicSlots(t *testing.T) {
	interp := NewInterpreter(GcNormal)
	frame := interp.globalFrame.Get().(*ActivationFrame)
	_, isPort := frame.Vals[InputPortIndex].Get().(*Port)
	assert.True(t, isPort)
	_, isPort = frame.Vals[OutputPortIndex].Get().(*Port)
	assert.True(t, isPort)

	v, ok := interp.globalEnv.Get("%error-handler").(*Variable)
	require.True(t, ok)
	assert.Equal(t, ErrorHandlerIndex, v.Index)
}

func TestInitializeHidesMagicSlots(t *testing.T) {
	interp := stdInterp(t)
	assert.Nil(t, interp.globalEnv.Get("%current-input-port"))
	// The accessor defined over the slot still works.
	out := mustEval(t, interp, "(output-port? (current-output-port))")
	assert.Equal(t, "#t", out)
}

func TestStdlibListOps(t *testing.T) {
	interp := stdInterp(t)
	tests := []struct {
		code, want string
	}{
		{"(list 1 2 3)", "(1 2 3)"},
		{"(length '(a b c))", "3"},
		{"(append '(1 2) '(3) '() '(4))", "(1 2 3 4)"},
		{"(reverse '(1 2 3))", "(3 2 1)"},
		{"(cadr '(1 2 3))", "2"},
		{"(map (lambda (x) (* x x)) '(1 2 3))", "(1 4 9)"},
		{"(map + '(1 2) '(10 20))", "(11 22)"},
		{"(memv 2 '(1 2 3))", "(2 3)"},
		{"(memv 9 '(1 2 3))", "#f"},
		{"(assv 'b '((a 1) (b 2)))", "(b 2)"},
		{"(member \"x\" '(\"w\" \"x\"))", "(\"x\")"},
		{"(list-ref '(a b c) 1)", "b"},
		{"(abs -3)", "3"},
		{"(min 3 1 2)", "1"},
		{"(max 3 1 2)", "3"},
	}
	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			assert.Equal(t, tt.want, mustEval(t, interp, tt.code))
		})
	}
}

func TestCond(t *testing.T) {
	interp := stdInterp(t)
	assert.Equal(t, "greater", mustEval(t, interp,
		"(cond ((> 3 2) 'greater) ((< 3 2) 'less))"))
	assert.Equal(t, "equal", mustEval(t, interp,
		"(cond ((> 3 3) 'greater) ((< 3 3) 'less) (else 'equal))"))
	assert.Equal(t, "2", mustEval(t, interp,
		"(cond ((assv 'b '((a 1) (b 2))) => cadr) (else #f))"))
	assert.Equal(t, "not-one", mustEval(t, interp,
		"((lambda (x) (cond ((= x 1) 'one) (else 'not-one))) 2)"))
}

func TestAndOr(t *testing.T) {
	interp := stdInterp(t)
	assert.Equal(t, "(#t #f 4 #t)", mustEval(t, interp, `
		(list (and (= 2 2) (> 2 1))
		      (and (= 2 2) (< 2 1))
		      (and 1 2 3 4)
		      (and))`))
	assert.Equal(t, "(#t #f 1 #f)", mustEval(t, interp, `
		(list (or (= 2 2) (< 2 1))
		      (or (= 3 2) (< 2 1))
		      (or 1 2 3 4)
		      (or))`))
	// or evaluates its test once.
	assert.Equal(t, "1", mustEval(t, interp, `
		(define n 0)
		(or (begin (set! n (+ n 1)) n) 99)
		n`))
}

func TestLetForms(t *testing.T) {
	interp := stdInterp(t)
	assert.Equal(t, "3", mustEval(t, interp, "(let ((a 1) (b 2)) (+ a b))"))
	assert.Equal(t, "9", mustEval(t, interp, "(let* ((a 2) (b (+ a 1))) (* a b) 9)"))
	assert.Equal(t, "6", mustEval(t, interp, "(let* ((a 1) (b (+ a 1)) (c (+ b 1))) (+ a b c))"))
	assert.Equal(t, "#t", mustEval(t, interp, `
		(letrec ((even2? (lambda (n) (if (= n 0) #t (odd2? (- n 1)))))
		         (odd2?  (lambda (n) (if (= n 0) #f (even2? (- n 1))))))
		  (even2? 100))`))
	assert.Equal(t, "120", mustEval(t, interp, `
		(let loop ((n 5) (acc 1))
		  (if (= n 0) acc (loop (- n 1) (* acc n))))`))
}

func TestWhenUnless(t *testing.T) {
	interp := stdInterp(t)
	assert.Equal(t, "yes", mustEval(t, interp, "(when (> 2 1) 'ignored 'yes)"))
	assert.Equal(t, "#f", mustEval(t, interp, "(when (< 2 1) 'yes)"))
	assert.Equal(t, "yes", mustEval(t, interp, "(unless (< 2 1) 'yes)"))
}

func TestDoLoop(t *testing.T) {
	interp := stdInterp(t)
	assert.Equal(t, "5", mustEval(t, interp, `
		(do ((i 0 (+ i 1)))
		    ((= i 5) i))`))
	assert.Equal(t, "25", mustEval(t, interp, `
		(do ((i 0 (+ i 1))
		     (acc 0 (+ acc 5)))
		    ((= i 5) acc))`))
}

func TestQuasiquote(t *testing.T) {
	interp := stdInterp(t)
	tests := []struct {
		code, want string
	}{
		{"`(1 2 3)", "(1 2 3)"},
		{"(define b 7) `(a ,b)", "(a 7)"},
		{"`(1 ,@(list 2 3) 4)", "(1 2 3 4)"},
		{"`(1 `(2 ,(3)))", "(1 `(2 ,(3)))"},
		{"`#(1 ,(+ 1 1))", "#(1 2)"},
	}
	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			assert.Equal(t, tt.want, mustEval(t, interp, tt.code))
		})
	}
}

// The hygiene scenario: the macro expands to a reference closed over
// its definition environment, so the inner binding of x cannot capture
// it.
func TestSyntacticClosureHygiene(t *testing.T) {
	interp := NewInterpreter(GcNormal)
	assert.Equal(t, "outer", mustEval(t, interp, `
		(define x 'outer)
		(define-syntax tst
		  (lambda (form usage-env def-env)
		    (make-syntactic-closure def-env '() 'x)))
		((lambda (x) (tst)) 'inner)`))
}

func TestSyntacticClosureHygieneWithInternalDefine(t *testing.T) {
	interp := stdInterp(t)
	assert.Equal(t, "outer", mustEval(t, interp, `
		(define x 'outer)
		(define-syntax tst
		  (lambda (form usage-env def-env)
		    (define outer-x (make-syntactic-closure def-env '() 'x))
		    outer-x))
		((lambda (x) (tst)) 'inner)`))
}

func TestLetSyntax(t *testing.T) {
	interp := stdInterp(t)
	assert.Equal(t, "outer", mustEval(t, interp, `
		(define x 'outer)
		(let-syntax ((tst
		              (lambda (form usage-env def-env)
		                (make-syntactic-closure def-env '() 'x))))
		  ((lambda (x) (tst)) 'inner))`))
}

func TestLetrecSyntaxSeesItself(t *testing.T) {
	interp := stdInterp(t)
	assert.Equal(t, "8", mustEval(t, interp, `
		(letrec-syntax ((dbl (lambda (form usage-env def-env)
		                       (list '+ (cadr form) (cadr form)))))
		  (dbl (dbl 2)))`))
}

func TestMacroUsesUsageEnv(t *testing.T) {
	interp := stdInterp(t)
	// An unfiltered symbol lands in the usage environment, so the
	// inner x captures it.
	assert.Equal(t, "inner", mustEval(t, interp, `
		(define x 'outer)
		(define-syntax grab
		  (lambda (form usage-env def-env) 'x))
		((lambda (x) (grab)) 'inner)`))
}

func TestMacroExpansionIterates(t *testing.T) {
	interp := stdInterp(t)
	assert.Equal(t, "42", mustEval(t, interp, `
		(define-syntax m2 (lambda (form usage-env def-env) 42))
		(define-syntax m1 (lambda (form usage-env def-env) '(m2)))
		(m1)`))
}

func TestMacroExpansionDepthLimit(t *testing.T) {
	interp := stdInterp(t)
	_, err := evalAll(t, interp, `
		(define-syntax loopy (lambda (form usage-env def-env) '(loopy)))
		(loopy)`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "macro expansion depth")
}

func TestMacroMustBeCallable(t *testing.T) {
	interp := stdInterp(t)
	_, err := evalAll(t, interp, "(define-syntax bad 42)")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "must be a lambda")
}

func TestDefineSyntaxInBadPosition(t *testing.T) {
	interp := stdInterp(t)
	_, err := evalAll(t, interp,
		"((lambda () (define-syntax m (lambda (f u d) 1)) 1))")
	require.Error(t, err)
}

func TestSyntaxQuotePreservesClosures(t *testing.T) {
	interp := stdInterp(t)
	// quote strips the closure down to its expression; syntax-quote
	// keeps the wrapper intact.
	assert.Equal(t, "#t", mustEval(t, interp, `
		(define-syntax probe
		  (lambda (form usage-env def-env)
		    (list 'syntactic-closure?
		          (list 'syntax-quote
		                (make-syntactic-closure def-env '() 'x)))))
		(probe)`))
	assert.Equal(t, "#f", mustEval(t, interp, `
		(define-syntax probe2
		  (lambda (form usage-env def-env)
		    (list 'syntactic-closure?
		          (list 'quote
		                (make-syntactic-closure def-env '() 'x)))))
		(probe2)`))
}

func TestIdentifierPrimitives(t *testing.T) {
	interp := stdInterp(t)
	assert.Equal(t, "#t", mustEval(t, interp, "(identifier? 'abc)"))
	assert.Equal(t, "#f", mustEval(t, interp, "(identifier? 12)"))
	assert.Equal(t, "#t", mustEval(t, interp, `
		(define-syntax chk
		  (lambda (form usage-env def-env)
		    (list 'quote
		          (identifier=? usage-env 'car def-env 'car))))
		(chk)`))
}

func TestSyntaxRules(t *testing.T) {
	interp := stdInterp(t)
	assert.Equal(t, "(2 1)", mustEval(t, interp, `
		(define-syntax swap!
		  (syntax-rules ()
		    ((_ a b) (let ((tmp a)) (set! a b) (set! b tmp)))))
		(define p 1)
		(define q 2)
		(swap! p q)
		(list p q)`))

	assert.Equal(t, "second", mustEval(t, interp, `
		(define-syntax pick
		  (syntax-rules (second)
		    ((_ second x y) y)
		    ((_ x y) x)))
		(pick second 'first 'second)`))

	_, err := evalAll(t, interp, "((syntax-rules -1))")
	require.Error(t, err)
}

func TestCallCcScenario(t *testing.T) {
	interp := stdInterp(t)
	assert.Equal(t, "-4", mustEval(t, interp, `
		(call/cc (lambda (exit)
		  (for-each (lambda (x) (if (< x 0) (exit x))) '(1 2 3 -4 5 6))))`))
}

func TestDelayForce(t *testing.T) {
	interp := stdInterp(t)
	assert.Equal(t, "(1 1)", mustEval(t, interp, `
		(define n 0)
		(define p (delay (begin (set! n (+ n 1)) n)))
		(list (force p) (force p))`))
}

func TestConsStream(t *testing.T) {
	interp := stdInterp(t)
	assert.Equal(t, "(1 2)", mustEval(t, interp, `
		(define (integers-from n) (cons-stream n (integers-from (+ n 1))))
		(define s (integers-from 1))
		(list (head s) (head (tail s)))`))
}

func TestStringsAndVectors(t *testing.T) {
	interp := stdInterp(t)
	tests := []struct {
		code, want string
	}{
		{`(string-append "foo" "bar")`, `"foobar"`},
		{`(substring "hello" 1 3)`, `"el"`},
		{`(string->list "ab")`, `(#\a #\b)`},
		{`(list->string '(#\a #\b))`, `"ab"`},
		{`(string->symbol "sym")`, "sym"},
		{`(symbol->string 'sym)`, `"sym"`},
		{`(string->number "2/4")`, "1/2"},
		{`(string->number "ff" 16)`, "255"},
		{`(string->number "nope")`, "#f"},
		{"(vector-ref #(1 2 3) 1)", "2"},
		{"(vector->list #(1 2))", "(1 2)"},
		{"(list->vector '(1 2))", "#(1 2)"},
		{"(let ((v (make-vector 2 0))) (vector-set! v 0 9) v)", "#(9 0)"},
		{"(let ((s (make-string 2 #\\a))) (string-set! s 0 #\\b) s)", `"ba"`},
	}
	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			assert.Equal(t, tt.want, mustEval(t, interp, tt.code))
		})
	}
}

func TestMutationThroughSharedStructure(t *testing.T) {
	interp := stdInterp(t)
	assert.Equal(t, "(9 2)", mustEval(t, interp, `
		(define p (list 1 2))
		(define q p)
		(set-car! q 9)
		p`))
}

func TestEqvSemantics(t *testing.T) {
	interp := stdInterp(t)
	assert.Equal(t, "#t", mustEval(t, interp, "(eqv? 'a 'a)"))
	assert.Equal(t, "#t", mustEval(t, interp, "(eqv? 100000000000000000000 100000000000000000000)"))
	assert.Equal(t, "#f", mustEval(t, interp, `(eqv? "a" "a")`))
	assert.Equal(t, "#t", mustEval(t, interp, `(equal? "a" "a")`))
	assert.Equal(t, "#t", mustEval(t, interp, "(equal? '(1 (2)) '(1 (2)))"))
	assert.Equal(t, "#t", mustEval(t, interp, "(let ((s \"a\")) (eqv? s s))"))
}

func TestInterpreterFromFileStdlib(t *testing.T) {
	interp := NewInterpreter(GcNormal)
	require.NoError(t, interp.Initialize("scheme/init.scm"))
	assert.Equal(t, "greater", mustEval(t, interp,
		"(cond ((> 3 2) 'greater) (else 'less))"))
}

func TestInterpreterGcDuringEvaluation(t *testing.T) {
	interp := stdInterp(t)
	// Build garbage, force one explicit collection, and check that the
	// global definition survives it.
	out := mustEval(t, interp, `
		(define (build n)
		  (if (= n 0) '() (cons n (build (- n 1)))))
		(length (build 500))`)
	assert.Equal(t, "500", out)
	interp.Heap.gc()
	assert.Equal(t, "(3 2 1)", mustEval(t, interp, "(build 3)"))
}
