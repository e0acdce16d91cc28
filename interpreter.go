package goxide

import (
	_ "embed"
	"fmt"
	"os"
	"sync/atomic"
)

// Global frame slots pre-defined at startup.  Any magic value added
// here must also be installed in the initial toplevel frame.
const (
	ErrorHandlerIndex = 0
	InputPortIndex    = 1
	OutputPortIndex   = 2
)

//go:embed scheme/init.scm
var stdlibSource string

// Interruptor is the shared flag an external signal handler sets to
// cancel a running evaluation.  The VM polls it at safe points.
type Interruptor struct {
	flag *atomic.Bool
}

// Interrupt requests cancellation of the current evaluation.  Safe to
// call from any goroutine or signal context.
func (i Interruptor) Interrupt() { i.flag.Store(true) }

// Interpreter holds the global state shared between runs of the VM: the
// heap, the global compile-time environment, and the global activation
// frame.
type Interpreter struct {
	Heap        *Heap
	globalEnv   *Env
	globalFrame RootPtr
	interrupted atomic.Bool
}

// NewInterpreter builds a heap with the requested GC mode, installs the
// canonical singletons, pre-defines the %error-handler and port slots,
// and registers the built-in primitives.
func NewInterpreter(mode GcMode) *Interpreter {
	h := NewHeap(mode)
	env := NewEnv(nil)
	frame := h.InsertRooted(&ActivationFrame{
		Vals: []PoolPtr{h.False, h.False, h.False},
	})
	interp := &Interpreter{
		Heap:        h,
		globalEnv:   env,
		globalFrame: frame,
	}

	afi := &ActivationFrameInfo{}
	mustIndex(env.Define("%error-handler", afi, true), ErrorHandlerIndex)
	mustIndex(env.Define("%current-input-port", afi, true), InputPortIndex)
	mustIndex(env.Define("%current-output-port", afi, true), OutputPortIndex)

	af := frame.Get().(*ActivationFrame)
	stdin := NewInputPort("stdin", os.Stdin)
	stdout := NewOutputPort("stdout", os.Stdout)
	af.Vals[InputPortIndex] = h.Insert(stdin)
	af.Vals[OutputPortIndex] = h.Insert(stdout)
	h.defaultInput = stdin
	h.defaultOutput = stdout

	registerPrimitives(h, env, afi, af)
	return interp
}

func mustIndex(got, want int) {
	if got != want {
		panic(fmt.Sprintf("magic global slot registered at %d, want %d", got, want))
	}
}

// Interruptor returns a handle external code can use to cancel the
// evaluator.
func (in *Interpreter) Interruptor() Interruptor {
	return Interruptor{flag: &in.interrupted}
}

// GlobalEnvironment returns the toplevel compile-time environment.
func (in *Interpreter) GlobalEnvironment() *Env { return in.globalEnv }

// Initialize reads and executes the Scheme standard library from path,
// then hides the magic error-handler and current-port bindings; the
// other %-prefixed helpers stay bound.
func (in *Interpreter) Initialize(path string) error {
	contents, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return in.initializeSource(string(contents), path)
}

// InitializeStdlib executes the embedded standard library.
func (in *Interpreter) InitializeStdlib() error {
	return in.initializeSource(stdlibSource, "<init.scm>")
}

func (in *Interpreter) initializeSource(source, name string) error {
	reader := NewReader(in.Heap, false, name)
	values, err := reader.ReadMany(source)
	if err != nil {
		return err
	}
	defer func() {
		for _, v := range values {
			v.Drop()
		}
	}()
	for _, v := range values {
		res, err := in.ParseCompileRun(v)
		if err != nil {
			return err
		}
		res.Drop()
	}
	in.globalEnv.RemoveSpecial()
	return nil
}

// ParseCompileRun is the toplevel one-shot: lower a read value, compile
// it, and run it, returning the rooted answer.
func (in *Interpreter) ParseCompileRun(read RootPtr) (RootPtr, error) {
	afi := &ActivationFrameInfo{
		Entries: len(in.globalFrame.Get().(*ActivationFrame).Vals),
	}
	p := &parser{h: in.Heap, interp: in}
	tree, err := p.Parse(in.globalEnv, afi, read.Pp())
	if err != nil {
		return RootPtr{}, err
	}
	defer tree.dropRoots()
	// Lowering may have auto-defined new globals; the frame must grow
	// to match before any code addressing them runs.
	in.globalFrame.Get().(*ActivationFrame).EnsureIndex(in.Heap, afi.Entries)
	return in.compileRunTree(tree)
}

// compileRunTree compiles a lowered tree and runs it in the global
// frame.  Also used for compile-time macro invocations.
func (in *Interpreter) compileRunTree(tree SyntaxElement) (RootPtr, error) {
	code := CompileToplevel(in.Heap, tree, "")
	codeRoot := in.Heap.Root(code)
	defer codeRoot.Drop()
	res, err := runVM(in, codeRoot.Pp(), 0, in.globalFrame.Pp())
	if err != nil {
		return RootPtr{}, err
	}
	return res, nil
}
