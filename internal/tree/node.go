// Package tree is the parse-tree representation consumed by the classifier
// and the session manager: a plain node structure converted out of the
// engine's raw tree, carrying type tags, source ranges, raw text, and the
// error flags needed to tell a syntax error from unfinished input.
package tree

// ErrorKind is the reserved type tag of dedicated error nodes.
const ErrorKind = "ERROR"

// Node is one converted parse-tree node. Children holds positional named
// children in source order; Fields holds field-named children keyed by the
// grammar's field name. The root is a program node whose Children are the
// top-level statements in textual order.
type Node struct {
	Type string `json:"type"`

	StartRow  int `json:"start_row"`
	StartCol  int `json:"start_col"`
	EndRow    int `json:"end_row"`
	EndCol    int `json:"end_col"`
	StartByte int `json:"start_byte"`
	EndByte   int `json:"end_byte"`

	Text string `json:"text"`

	IsError   bool `json:"is_error,omitempty"`
	IsMissing bool `json:"is_missing,omitempty"`
	IsExtra   bool `json:"is_extra,omitempty"`
	HasError  bool `json:"has_error,omitempty"`

	Fields   map[string][]*Node `json:"fields,omitempty"`
	Children []*Node            `json:"children,omitempty"`
}

// Walk visits n and every descendant in depth-first order, positional
// children before field-named ones. fn returning false prunes the subtree.
func (n *Node) Walk(fn func(*Node) bool) {
	if n == nil || !fn(n) {
		return
	}
	for _, c := range n.Children {
		c.Walk(fn)
	}
	for _, field := range n.Fields {
		for _, c := range field {
			c.Walk(fn)
		}
	}
}

// FindErrorNode returns the smallest (deepest, then narrowest) dedicated
// error node in the subtree, or nil. Its text and range give the most
// precise diagnostic available for a genuine syntax error.
func (n *Node) FindErrorNode() *Node {
	var best *Node
	n.Walk(func(c *Node) bool {
		if !c.IsError {
			// Error nodes never nest below clean subtrees, but the
			// HasError flag tells us whether descending can pay off.
			return c.HasError
		}
		if best == nil || c.width() < best.width() {
			best = c
		}
		return true
	})
	return best
}

func (n *Node) width() int {
	return n.EndByte - n.StartByte
}

// ContainsRange reports whether the node's byte span fully covers [start, end).
func (n *Node) ContainsRange(start, end int) bool {
	return n.StartByte <= start && n.EndByte >= end
}
