package goxide

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// evalAll reads and runs every expression in code on interp, returning
// the printed form of the last result.
func evalAll(t *testing.T, interp *Interpreter, code string) (string, error) {
	t.Helper()
	reader := NewReader(interp.Heap, false, "<test>")
	values, err := reader.ReadMany(code)
	require.NoError(t, err)
	defer func() {
		for _, v := range values {
			v.Drop()
		}
	}()
	var last string
	for _, v := range values {
		res, err := interp.ParseCompileRun(v)
		if err != nil {
			return "", err
		}
		last = PrettyPrint(res.Pp())
		res.Drop()
	}
	return last, nil
}

func mustEval(t *testing.T, interp *Interpreter, code string) string {
	t.Helper()
	out, err := evalAll(t, interp, code)
	require.NoError(t, err)
	return out
}

func coreInterp() *Interpreter { return NewInterpreter(GcNormal) }

func TestVmConstant(t *testing.T) {
	interp := coreInterp()
	assert.Equal(t, "42", mustEval(t, interp, "42"))
	assert.Equal(t, `"s"`, mustEval(t, interp, `"s"`))
	assert.Equal(t, "'x", mustEval(t, interp, "''x"))
}

func TestVmArithmetic(t *testing.T) {
	interp := coreInterp()
	assert.Equal(t, "4", mustEval(t, interp, "(+ 2 2)"))
	assert.Equal(t, "2", mustEval(t, interp, "(+ (+ 1 1 1) (- 1 2))"))
	assert.Equal(t, "1/2", mustEval(t, interp, "(/ 1 2)"))
	assert.Equal(t, "3.5", mustEval(t, interp, "(+ 1 2.5)"))
}

func TestVmIfOnlyFalseIsFalsey(t *testing.T) {
	interp := coreInterp()
	assert.Equal(t, "yes", mustEval(t, interp, "(if 0 'yes 'no)"))
	assert.Equal(t, "yes", mustEval(t, interp, `(if "" 'yes 'no)`))
	assert.Equal(t, "yes", mustEval(t, interp, "(if '() 'yes 'no)"))
	assert.Equal(t, "no", mustEval(t, interp, "(if #f 'yes 'no)"))
	assert.Equal(t, "1", mustEval(t, interp, "(if #t 1)"))
}

func TestVmLambda(t *testing.T) {
	interp := coreInterp()
	assert.Equal(t, "1", mustEval(t, interp, "((lambda (x) x) 1)"))
	assert.Equal(t, "1", mustEval(t, interp, "((lambda () 1))"))
	assert.Equal(t, "inner", mustEval(t, interp,
		"((lambda (x) ((lambda (x) x) 'inner)) 'outer)"))
}

func TestVmVariadicFrame(t *testing.T) {
	interp := coreInterp()
	assert.Equal(t, "(1 2 3)", mustEval(t, interp,
		"(define (list . vals) vals) (list 1 2 3)"))
	assert.Equal(t, "(2 3)", mustEval(t, interp,
		"((lambda (a . rest) rest) 1 2 3)"))
	assert.Equal(t, "()", mustEval(t, interp,
		"((lambda (a . rest) rest) 1)"))
}

func TestVmCheckArity(t *testing.T) {
	interp := coreInterp()
	_, err := evalAll(t, interp, "((lambda (x) x))")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expected 1 arguments, got 0")

	_, err = evalAll(t, interp, "((lambda (x) x) 1 2)")
	require.Error(t, err)

	_, err = evalAll(t, interp, "((lambda (a b . r) r) 1)")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "at least 2")
}

func TestVmInvokeNonFunction(t *testing.T) {
	interp := coreInterp()
	_, err := evalAll(t, interp, "(1 2)")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cannot invoke non-function")
}

func TestVmGlobals(t *testing.T) {
	interp := coreInterp()
	assert.Equal(t, "#t", mustEval(t, interp, "(define x #t) x"))
	assert.Equal(t, "#f", mustEval(t, interp, "(define x #t) (define x #f) x"))
	assert.Equal(t, "#f", mustEval(t, interp, "(define y #t) (set! y #f) y"))
}

func TestVmForwardGlobalReference(t *testing.T) {
	interp := coreInterp()
	assert.Equal(t, "5", mustEval(t, interp,
		"(define (print-x) x) (define x 5) (print-x)"))
}

func TestVmUndefinedGlobalReadFails(t *testing.T) {
	interp := coreInterp()
	_, err := evalAll(t, interp, "(define (get-z) z) (get-z)")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "variable used before definition")
}

func TestVmSetLocalDoesNotTouchGlobal(t *testing.T) {
	interp := coreInterp()
	assert.Equal(t, "2", mustEval(t, interp,
		"(define x 2) ((lambda (x) (set! x 3) x) 1) x"))
	assert.Equal(t, "3", mustEval(t, interp,
		"(define w 2) ((lambda (w) (set! w 3) w) 1)"))
}

func TestVmInternalDefine(t *testing.T) {
	interp := coreInterp()
	assert.Equal(t, "5", mustEval(t, interp, "((lambda () (define x 5) x))"))
	assert.Equal(t, "8", mustEval(t, interp,
		"((lambda () (define x 5) (define y 3) (+ x y)))"))
	assert.Equal(t, "6", mustEval(t, interp,
		"((lambda (a) (begin (define b 4)) (+ a b)) 2)"))
}

func TestVmDefineInBadPositionFails(t *testing.T) {
	interp := coreInterp()
	_, err := evalAll(t, interp, "((lambda () (if #t (define x 1) #f)))")
	require.Error(t, err)
}

// The altitude-based position check lets a define through in value
// position at toplevel; kept as a known limitation.
func TestVmDefineInDefineValueAccepted(t *testing.T) {
	interp := coreInterp()
	_, err := evalAll(t, interp, "(define x (define y 1))")
	assert.NoError(t, err)
}

func TestVmClosureCapture(t *testing.T) {
	interp := coreInterp()
	out := mustEval(t, interp, `
		(define (make-counter init-value)
		  ((lambda (counter-value)
		     (lambda (increment)
		       (set! counter-value (+ counter-value increment))
		       counter-value))
		   init-value))
		(define counter1 (make-counter 5))
		(define counter2 (make-counter -5))
		(counter1 3)
		(counter1 18)
		(counter1 0)`)
	assert.Equal(t, "26", out)
	assert.Equal(t, "-5", mustEval(t, interp, "(counter2 0)"))
}

// A mutually recursive loop of 10001 calls; every recursive call is in
// tail position, so none of them pushes a return point.
func TestVmTailCalls(t *testing.T) {
	interp := coreInterp()
	assert.Equal(t, "#t", mustEval(t, interp, `
		(define (odd? x) (if (= x 0) #f (even? (- x 1))))
		(define (even? x) (if (= x 0) #t (odd? (- x 1))))
		(odd? 10001)`))
}

func TestVmSelfTailRecursionDeep(t *testing.T) {
	interp := coreInterp()
	assert.Equal(t, "0", mustEval(t, interp, `
		(define (count-down n) (if (= n 0) n (count-down (- n 1))))
		(count-down 200000)`))
}

func TestVmRenamedKeyword(t *testing.T) {
	interp := coreInterp()
	assert.Equal(t, "#f", mustEval(t, interp, "(define (set!) #f) (set!)"))
}

func TestVmApply(t *testing.T) {
	interp := coreInterp()
	assert.Equal(t, "5", mustEval(t, interp, "(apply + (apply - '(2 3)) '(6))"))
	assert.Equal(t, "10", mustEval(t, interp, "(apply + 1 2 '(3 4))"))
	_, err := evalAll(t, interp, "(apply +)")
	require.Error(t, err)
	_, err = evalAll(t, interp, "(apply + 1)")
	require.Error(t, err)
}

func TestVmCallCc(t *testing.T) {
	interp := coreInterp()
	assert.Equal(t, "5", mustEval(t, interp, "(%call/cc (lambda (k) 5))"))
	assert.Equal(t, "7", mustEval(t, interp, "(+ 1 (%call/cc (lambda (k) (k 6) 99)))"))
	_, err := evalAll(t, interp, "(%call/cc)")
	require.Error(t, err)
}

func TestVmContinuationIsMultiShot(t *testing.T) {
	interp := coreInterp()
	mustEval(t, interp, "(define k #f)")
	assert.Equal(t, "2", mustEval(t, interp,
		"(+ 1 (%call/cc (lambda (c) (set! k c) 1)))"))
	// Reinstating replaces the stacks with fresh copies each time.
	assert.Equal(t, "11", mustEval(t, interp, "(k 10)"))
	assert.Equal(t, "21", mustEval(t, interp, "(k 20)"))
}

func TestVmEval(t *testing.T) {
	interp := coreInterp()
	assert.Equal(t, "4", mustEval(t, interp, "(eval '(+ 2 2))"))
	assert.Equal(t, "3.", mustEval(t, interp,
		"((eval '(lambda (f x) (f x x)) (interaction-environment)) + 1.5)"))
}

func TestVmInterruptor(t *testing.T) {
	interp := coreInterp()
	interp.Interruptor().Interrupt()
	_, err := evalAll(t, interp, "((lambda (x) x) 1)")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "interrupted")

	// The flag clears once the unwind happens.
	assert.Equal(t, "1", mustEval(t, interp, "((lambda (x) x) 1)"))
}

func TestVmErrorsAreValuesNotPanics(t *testing.T) {
	interp := coreInterp()
	for _, code := range []string{
		"(car 1)",
		"(vector-ref (make-vector 2) 5)",
		"(undefined-op)",
		"(quotient 1 0)",
		"(error \"boom\" 1 2)",
	} {
		_, err := evalAll(t, interp, code)
		assert.Error(t, err, code)
	}
}

func TestVmSideEffectsRetainedAfterError(t *testing.T) {
	interp := coreInterp()
	_, err := evalAll(t, interp, "(define v 1) (begin (set! v 2) (car 'nope))")
	require.Error(t, err)
	assert.Equal(t, "2", mustEval(t, interp, "v"))
}

// Running under debug-heavy GC collects on every allocation, so any
// value that is live but unrooted across an allocation point dies
// loudly here.
func TestVmUnderHeavyGc(t *testing.T) {
	interp := NewInterpreter(GcDebugHeavy)
	assert.Equal(t, "inner", mustEval(t, interp,
		"((lambda (x) ((lambda (x) x) 'inner)) 'outer)"))
	assert.Equal(t, "(1 2 3)", mustEval(t, interp,
		"(define (list . vals) vals) (list 1 2 3)"))
	assert.Equal(t, "6", mustEval(t, interp, "(+ 1 2 3)"))
}

func TestVmStringOutputPort(t *testing.T) {
	interp := coreInterp()
	out := mustEval(t, interp, `
		(define p (open-output-string))
		(write-string "hello " p)
		(display 42 p)
		(get-output-string p)`)
	assert.Equal(t, `"hello 42"`, out)
}

func TestVmClosedPortFails(t *testing.T) {
	interp := coreInterp()
	_, err := evalAll(t, interp, `
		(define p (open-output-string))
		(close-port p)
		(close-port p)
		(write-string "x" p)`)
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "closed"))
}
