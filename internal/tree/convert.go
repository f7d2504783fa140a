package tree

import "github.com/acolita/shell-parse-mcp/internal/ports"

// FromEngine converts a raw engine node and its subtree into the Node
// representation. Anonymous tokens (punctuation, bare keywords) are dropped;
// named children keep source order, with field-named ones filed separately
// under their grammar field name. source must be the exact text the engine
// parsed, so node text can be sliced out by byte range.
func FromEngine(raw ports.Node, source []byte) *Node {
	if raw == nil {
		return nil
	}

	n := &Node{
		Type:      raw.Kind(),
		StartRow:  raw.Start().Row,
		StartCol:  raw.Start().Column,
		EndRow:    raw.End().Row,
		EndCol:    raw.End().Column,
		StartByte: raw.StartByte(),
		EndByte:   raw.EndByte(),
		IsError:   raw.IsError(),
		IsMissing: raw.IsMissing(),
		IsExtra:   raw.IsExtra(),
		HasError:  raw.HasError(),
	}
	if start, end := n.StartByte, n.EndByte; start >= 0 && end <= len(source) && start <= end {
		n.Text = string(source[start:end])
	}

	for i := 0; i < raw.ChildCount(); i++ {
		child := raw.Child(i)
		if child == nil || !child.IsNamed() {
			continue
		}
		converted := FromEngine(child, source)
		if field := raw.FieldName(i); field != "" {
			if n.Fields == nil {
				n.Fields = make(map[string][]*Node)
			}
			n.Fields[field] = append(n.Fields[field], converted)
		} else {
			n.Children = append(n.Children, converted)
		}
	}

	return n
}

// SmallestContaining returns the smallest named node in the subtree whose
// byte span fully covers [start, end), or nil when the range falls outside n.
func SmallestContaining(n *Node, start, end int) *Node {
	if n == nil || !n.ContainsRange(start, end) {
		return nil
	}
	best := n
	for {
		var tighter *Node
		for _, c := range best.Children {
			if c.ContainsRange(start, end) {
				tighter = c
				break
			}
		}
		if tighter == nil {
			for _, field := range best.Fields {
				for _, c := range field {
					if c.ContainsRange(start, end) {
						tighter = c
						break
					}
				}
				if tighter != nil {
					break
				}
			}
		}
		if tighter == nil {
			return best
		}
		best = tighter
	}
}
