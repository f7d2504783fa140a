// Package treesitter adapts the tree-sitter incremental parser with the bash
// grammar to the ports.Engine interface. One Engine wraps one parser; the
// session layer gives every session its own instance.
package treesitter

import (
	"errors"
	"fmt"

	sitter "github.com/tree-sitter/go-tree-sitter"
	tree_sitter_bash "github.com/tree-sitter/tree-sitter-bash/bindings/go"

	"github.com/acolita/shell-parse-mcp/internal/ports"
)

// ErrNoTree is returned when the parser yields no tree at all, which only
// happens on internal parser failure.
var ErrNoTree = errors.New("treesitter: parser returned no tree")

// Engine is a bash parsing engine backed by tree-sitter.
type Engine struct {
	parser *sitter.Parser
}

// New creates an Engine with the bash grammar loaded.
func New() (*Engine, error) {
	parser := sitter.NewParser()
	language := sitter.NewLanguage(tree_sitter_bash.Language())
	if err := parser.SetLanguage(language); err != nil {
		parser.Close()
		return nil, fmt.Errorf("set bash language: %w", err)
	}
	return &Engine{parser: parser}, nil
}

// Parse implements ports.Engine. old, when non-nil, must be a *Tree from a
// previous Parse call on this Engine, already edited for the source change;
// tree-sitter then reuses unchanged subtrees.
func (e *Engine) Parse(source []byte, old ports.Tree) (ports.Tree, error) {
	var prev *sitter.Tree
	if old != nil {
		wrapped, ok := old.(*Tree)
		if !ok {
			return nil, fmt.Errorf("treesitter: foreign previous tree %T", old)
		}
		prev = wrapped.tree
	}

	parsed := e.parser.Parse(source, prev)
	if parsed == nil {
		return nil, ErrNoTree
	}
	return &Tree{tree: parsed}, nil
}

// Close releases the underlying parser.
func (e *Engine) Close() {
	e.parser.Close()
}

// Tree wraps a tree-sitter tree.
type Tree struct {
	tree *sitter.Tree
}

// Root implements ports.Tree.
func (t *Tree) Root() ports.Node {
	return node{n: t.tree.RootNode()}
}

// HasError implements ports.Tree.
func (t *Tree) HasError() bool {
	return t.tree.RootNode().HasError()
}

// Edit implements ports.Tree.
func (t *Tree) Edit(edit ports.InputEdit) {
	t.tree.Edit(&sitter.InputEdit{
		StartByte:      uint(edit.StartByte),
		OldEndByte:     uint(edit.OldEndByte),
		NewEndByte:     uint(edit.NewEndByte),
		StartPosition:  toPoint(edit.Start),
		OldEndPosition: toPoint(edit.OldEnd),
		NewEndPosition: toPoint(edit.NewEnd),
	})
}

// ChangedRanges implements ports.Tree.
func (t *Tree) ChangedRanges(old ports.Tree) []ports.Range {
	wrapped, ok := old.(*Tree)
	if !ok {
		return nil
	}
	raw := t.tree.ChangedRanges(wrapped.tree)
	out := make([]ports.Range, 0, len(raw))
	for _, r := range raw {
		out = append(out, ports.Range{
			StartByte: int(r.StartByte),
			EndByte:   int(r.EndByte),
			Start:     fromPoint(r.StartPoint),
			End:       fromPoint(r.EndPoint),
		})
	}
	return out
}

// Close implements ports.Tree.
func (t *Tree) Close() {
	t.tree.Close()
}

// node wraps a tree-sitter node.
type node struct {
	n *sitter.Node
}

func (w node) Kind() string { return w.n.Kind() }

func (w node) Start() ports.Point { return fromPoint(w.n.StartPosition()) }
func (w node) End() ports.Point   { return fromPoint(w.n.EndPosition()) }

func (w node) StartByte() int  { return int(w.n.StartByte()) }
func (w node) EndByte() int    { return int(w.n.EndByte()) }
func (w node) IsNamed() bool   { return w.n.IsNamed() }
func (w node) IsError() bool   { return w.n.IsError() }
func (w node) IsMissing() bool { return w.n.IsMissing() }
func (w node) IsExtra() bool   { return w.n.IsExtra() }
func (w node) HasError() bool  { return w.n.HasError() }

func (w node) ChildCount() int {
	return int(w.n.ChildCount())
}

func (w node) Child(i int) ports.Node {
	child := w.n.Child(uint(i))
	if child == nil {
		return nil
	}
	return node{n: child}
}

func (w node) FieldName(i int) string {
	return w.n.FieldNameForChild(uint32(i))
}

func toPoint(p ports.Point) sitter.Point {
	return sitter.Point{Row: uint(p.Row), Column: uint(p.Column)}
}

func fromPoint(p sitter.Point) ports.Point {
	return ports.Point{Row: int(p.Row), Column: int(p.Column)}
}
