// Package ports defines interfaces for external dependencies (Ports and Adapters pattern).
package ports

// Point is a zero-based row/column position in source text.
type Point struct {
	Row    int `json:"row"`
	Column int `json:"column"`
}

// Range is a span of source text.
type Range struct {
	StartByte int   `json:"start_byte"`
	EndByte   int   `json:"end_byte"`
	Start     Point `json:"start"`
	End       Point `json:"end"`
}

// InputEdit describes a source change applied since the previous parse, so
// the engine can reuse unchanged regions of the old tree. Appending input
// is an edit whose old and new start coincide at the previous end.
type InputEdit struct {
	StartByte  int
	OldEndByte int
	NewEndByte int
	Start      Point
	OldEnd     Point
	NewEnd     Point
}

// Node is one node of an engine parse tree. The engine signals problems two
// ways: dedicated ERROR nodes for input invalid under any completion, and a
// subtree HasError flag that is also set for merely unfinished constructs.
// It does not distinguish a missing-token case; callers must classify.
type Node interface {
	// Kind returns the grammar-defined node type, or "ERROR".
	Kind() string

	Start() Point
	End() Point
	StartByte() int
	EndByte() int

	// IsNamed reports whether the node is a named grammar rule rather
	// than an anonymous token such as punctuation.
	IsNamed() bool

	// IsError reports a dedicated error node.
	IsError() bool

	// IsMissing reports a zero-width token inserted during recovery.
	IsMissing() bool

	// IsExtra reports nodes that may appear anywhere, such as comments.
	IsExtra() bool

	// HasError reports whether this subtree contains any error.
	HasError() bool

	ChildCount() int
	Child(i int) Node

	// FieldName returns the grammar field name of child i, or "" when the
	// child is positional.
	FieldName(i int) string
}

// Tree is one engine parse result.
type Tree interface {
	Root() Node

	// HasError reports the whole-tree error flag.
	HasError() bool

	// Edit updates the tree's position metadata for a source change, so it
	// can seed the next incremental parse.
	Edit(edit InputEdit)

	// ChangedRanges returns the source ranges whose structure differs from
	// old, which must be a previously edited tree from the same engine.
	ChangedRanges(old Tree) []Range

	// Close releases engine resources held by the tree.
	Close()
}

// Engine abstracts the grammar-driven incremental parsing engine. An Engine
// instance serves exactly one session and is never shared.
type Engine interface {
	// Parse parses source in full. old may be nil for a first parse, or a
	// Tree previously returned by this Engine and edited to reflect the
	// change, in which case unchanged regions are reused.
	Parse(source []byte, old Tree) (Tree, error)

	// Close releases the engine. Trees it returned must not be used after.
	Close()
}
