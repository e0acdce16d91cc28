package goxide

// Env is a compile-time environment: a map from identifier names to
// bindings, chained to a parent scope.  Environments are also first
// class heap values because syntactic closures and macro transformers
// carry them around.
type Env struct {
	parent   *Env
	bindings map[string]EnvValue
}

func (*Env) Type() string      { return "environment" }
func (*Env) inventory(*ptrVec) {}

// EnvValue is what a name can be bound to at compile time: a variable
// with a static address, or a macro.
type EnvValue interface{ isEnvValue() }

// Variable is a statically addressed binding.  Altitude is the number
// of enclosing lambdas at the definition site (0 at toplevel); Index is
// the slot in that frame.
type Variable struct {
	Altitude    int
	Index       int
	Initialized bool
}

// Macro is a transformer lambda together with its definition
// environment.  The lambda stays rooted for as long as the binding
// exists.
type Macro struct {
	Lambda RootPtr
	DefEnv *Env
}

func (*Variable) isEnvValue() {}
func (Macro) isEnvValue()     {}

// NewEnv creates an environment chained to parent (nil for the global
// scope).
func NewEnv(parent *Env) *Env {
	return &Env{parent: parent, bindings: make(map[string]EnvValue)}
}

// Get resolves name, walking toward the root.  Returns nil when the
// name is unbound everywhere.
func (e *Env) Get(name string) EnvValue {
	for cur := e; cur != nil; cur = cur.parent {
		if v, ok := cur.bindings[name]; ok {
			return v
		}
	}
	return nil
}

// Define binds name to a fresh slot of the activation frame described
// by afi and returns the slot index.
func (e *Env) Define(name string, afi *ActivationFrameInfo, initialized bool) int {
	index := afi.Entries
	afi.Entries++
	e.bindings[name] = &Variable{
		Altitude:    afi.Altitude,
		Index:       index,
		Initialized: initialized,
	}
	return index
}

// DefineIfAbsent is Define, except that an existing variable binding in
// this exact scope keeps its slot.
func (e *Env) DefineIfAbsent(name string, afi *ActivationFrameInfo, initialized bool) int {
	if v, ok := e.bindings[name].(*Variable); ok {
		return v.Index
	}
	return e.Define(name, afi, initialized)
}

// DefineMacro binds name to a macro transformer.
func (e *Env) DefineMacro(name string, lambda RootPtr, defEnv *Env) {
	e.bindings[name] = Macro{Lambda: lambda, DefEnv: defEnv}
}

// DefineToplevel reserves a slot in the global frame for name,
// regardless of which scope the reference occurred in.
func (e *Env) DefineToplevel(name string, afi *ActivationFrameInfo) int {
	root := e
	for root.parent != nil {
		root = root.parent
	}
	return root.Define(name, afi.toplevel(), true)
}

// RemoveSpecial hides the magic slot bindings after the standard
// library has defined its accessors over them.  Library %-helpers stay
// bound: syntax-rules and delay expand into references to them well
// after initialization.
func (e *Env) RemoveSpecial() {
	for _, name := range []string{"%error-handler", "%current-input-port", "%current-output-port"} {
		delete(e.bindings, name)
	}
}

// filterEnv implements the syntactic-closure filter operation: a scope
// pushed onto closedEnv in which each free name resolves to its binding
// in usageEnv.  Names unbound in the usage environment are left to fall
// through.
func filterEnv(closedEnv, usageEnv *Env, free []string) *Env {
	if len(free) == 0 {
		return closedEnv
	}
	out := NewEnv(closedEnv)
	for _, name := range free {
		if b := usageEnv.Get(name); b != nil {
			out.bindings[name] = b
		}
	}
	return out
}

// ActivationFrameInfo mirrors, at compile time, the shape of the
// activation frame a lambda will have at runtime: its altitude and the
// number of entries allocated so far.
type ActivationFrameInfo struct {
	Parent   *ActivationFrameInfo
	Altitude int
	Entries  int
}

// extendAfInfo opens the frame info for a lambda nested one level
// deeper.
func extendAfInfo(afi *ActivationFrameInfo) *ActivationFrameInfo {
	return &ActivationFrameInfo{Parent: afi, Altitude: afi.Altitude + 1}
}

func (afi *ActivationFrameInfo) toplevel() *ActivationFrameInfo {
	cur := afi
	for cur.Parent != nil {
		cur = cur.Parent
	}
	return cur
}
