// Package fakeengine provides a scripted ports.Engine implementation for
// testing. Each Parse call consumes the next queued result: a tree built
// from literal node specs, an error, or an injected panic for fault-path
// tests. Calls and edits are recorded for assertions.
package fakeengine

import (
	"errors"
	"sync"

	"github.com/acolita/shell-parse-mcp/internal/ports"
)

// ErrExhausted is returned when Parse is called with no scripted result left.
var ErrExhausted = errors.New("fakeengine: no scripted result")

// Spec declares one node of a scripted tree. HasError is derived: a node has
// an error when it is an error node, a missing token, or any child has one.
type Spec struct {
	Kind      string
	Field     string // grammar field name on the parent, "" for positional
	Start     ports.Point
	End       ports.Point
	StartByte int
	EndByte   int
	Anonymous bool // anonymous token; dropped by conversion
	Error     bool
	Missing   bool
	Extra     bool
	Children  []Spec
}

// Result is one scripted Parse outcome.
type Result struct {
	Root    Spec
	Changed []ports.Range // returned by the tree's ChangedRanges
	Err     error         // returned instead of a tree
	Panic   string        // panic raised inside Parse, for fault injection
}

// Call records one Parse invocation.
type Call struct {
	Source string
	HadOld bool
}

// Engine is a scripted fake parsing engine.
type Engine struct {
	mu     sync.Mutex
	queue  []Result
	calls  []Call
	trees  []*Tree
	closed bool
}

// New creates an Engine preloaded with results, consumed in order.
func New(results ...Result) *Engine {
	return &Engine{queue: results}
}

// Enqueue appends another scripted result.
func (e *Engine) Enqueue(r Result) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.queue = append(e.queue, r)
}

// Parse implements ports.Engine.
func (e *Engine) Parse(source []byte, old ports.Tree) (ports.Tree, error) {
	e.mu.Lock()
	e.calls = append(e.calls, Call{Source: string(source), HadOld: old != nil})
	if len(e.queue) == 0 {
		e.mu.Unlock()
		return nil, ErrExhausted
	}
	r := e.queue[0]
	e.queue = e.queue[1:]
	e.mu.Unlock()

	if r.Panic != "" {
		panic(r.Panic)
	}
	if r.Err != nil {
		return nil, r.Err
	}

	t := &Tree{root: build(r.Root), changed: r.Changed}
	e.mu.Lock()
	e.trees = append(e.trees, t)
	e.mu.Unlock()
	return t, nil
}

// Close implements ports.Engine.
func (e *Engine) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed = true
}

// Closed reports whether Close was called.
func (e *Engine) Closed() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.closed
}

// Calls returns a copy of the recorded Parse invocations.
func (e *Engine) Calls() []Call {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]Call, len(e.calls))
	copy(out, e.calls)
	return out
}

// Trees returns the trees Parse handed out, in order, for asserting on the
// edits applied to them and on their release.
func (e *Engine) Trees() []*Tree {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]*Tree, len(e.trees))
	copy(out, e.trees)
	return out
}

// Remaining returns how many scripted results are still queued.
func (e *Engine) Remaining() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.queue)
}

// Node is a scripted tree node.
type Node struct {
	spec     Spec
	hasError bool
	children []*Node
}

func build(s Spec) *Node {
	n := &Node{spec: s, hasError: s.Error || s.Missing}
	for _, cs := range s.Children {
		child := build(cs)
		if child.hasError {
			n.hasError = true
		}
		n.children = append(n.children, child)
	}
	return n
}

func (n *Node) Kind() string       { return n.spec.Kind }
func (n *Node) Start() ports.Point { return n.spec.Start }
func (n *Node) End() ports.Point   { return n.spec.End }
func (n *Node) StartByte() int     { return n.spec.StartByte }
func (n *Node) EndByte() int       { return n.spec.EndByte }
func (n *Node) IsNamed() bool      { return !n.spec.Anonymous }
func (n *Node) IsError() bool      { return n.spec.Error }
func (n *Node) IsMissing() bool    { return n.spec.Missing }
func (n *Node) IsExtra() bool      { return n.spec.Extra }
func (n *Node) HasError() bool     { return n.hasError }
func (n *Node) ChildCount() int    { return len(n.children) }

func (n *Node) Child(i int) ports.Node {
	if i < 0 || i >= len(n.children) {
		return nil
	}
	return n.children[i]
}

func (n *Node) FieldName(i int) string {
	if i < 0 || i >= len(n.children) {
		return ""
	}
	return n.children[i].spec.Field
}

// Tree is a scripted parse tree.
type Tree struct {
	mu      sync.Mutex
	root    *Node
	changed []ports.Range
	edits   []ports.InputEdit
	closed  bool
}

func (t *Tree) Root() ports.Node { return t.root }

func (t *Tree) HasError() bool { return t.root.hasError }

func (t *Tree) Edit(edit ports.InputEdit) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.edits = append(t.edits, edit)
}

func (t *Tree) ChangedRanges(old ports.Tree) []ports.Range {
	return t.changed
}

func (t *Tree) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closed = true
}

// Edits returns a copy of the edits applied to this tree.
func (t *Tree) Edits() []ports.InputEdit {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]ports.InputEdit, len(t.edits))
	copy(out, t.edits)
	return out
}

// Closed reports whether the tree was released.
func (t *Tree) Closed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closed
}
