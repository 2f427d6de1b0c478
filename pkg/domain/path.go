package domain

// Path is the value an action returns to select one of its declared outputs.
// It is only created by a Continuation bound to a specific action execution.
type Path struct {
	output  string
	payload any
	owner   uint64
}

// Output is the name of the selected output.
func (p *Path) Output() string { return p.output }

// Payload is forwarded to the first action of the selected branch.
func (p *Path) Payload() any { return p.payload }

// Owner identifies the action execution that bound the continuation.
func (p *Path) Owner() uint64 { return p.owner }

// Continuation selects one output of the running action.
// Calling it does not transfer control; the action must return the Path.
type Continuation func(payload any) *Path

// Paths is the output namespace exposed to a running action under the
// reserved "path" context key.
type Paths struct {
	owner    uint64
	action   string
	outputs  []string
	bindings map[string]Continuation
}

// NewPaths binds one continuation per declared output, all stamped with owner.
func NewPaths(owner uint64, decl Declaration) *Paths {
	p := &Paths{
		owner:    owner,
		action:   decl.Name,
		outputs:  append([]string(nil), decl.Outputs...),
		bindings: make(map[string]Continuation, len(decl.Outputs)),
	}
	for _, name := range decl.Outputs {
		p.bindings[name] = bind(owner, name)
	}
	return p
}

func bind(owner uint64, output string) Continuation {
	return func(payload any) *Path {
		return &Path{output: output, payload: payload, owner: owner}
	}
}

// Owner returns the execution token the bindings were created for.
func (p *Paths) Owner() uint64 { return p.owner }

// Action returns the name of the action the namespace belongs to.
func (p *Paths) Action() string { return p.action }

// Outputs lists the declared output names in declaration order.
func (p *Paths) Outputs() []string {
	return append([]string(nil), p.outputs...)
}

// Get returns the continuation for output, if declared.
func (p *Paths) Get(output string) (Continuation, bool) {
	if p == nil {
		return nil, false
	}
	fn, ok := p.bindings[output]
	return fn, ok
}

// Take is shorthand for calling the continuation of output with payload.
// An undeclared output still yields a Path; the executor rejects it.
func (p *Paths) Take(output string, payload any) *Path {
	if fn, ok := p.Get(output); ok {
		return fn(payload)
	}
	var owner uint64
	if p != nil {
		owner = p.owner
	}
	return &Path{output: output, payload: payload, owner: owner}
}
