package session

import (
	"github.com/acolita/shell-parse-mcp/internal/classify"
	"github.com/acolita/shell-parse-mcp/internal/ports"
	"github.com/acolita/shell-parse-mcp/internal/tree"
)

// EventType tags a session notification.
type EventType string

const (
	// EventTreeUpdated is published exactly once per successful re-parse,
	// before Append returns.
	EventTreeUpdated EventType = "tree_updated"

	// EventStatement carries one newly executable top-level statement, in
	// order, with a 1-based sequence number.
	EventStatement EventType = "statement"

	// EventRejected reports an append refused before mutating the session,
	// currently only for buffer overflow.
	EventRejected EventType = "rejected"

	// EventFailure reports an internal fault inside the parsing engine or
	// the conversion step. The session remains usable.
	EventFailure EventType = "failure"
)

// Event is one session notification. Which fields are set depends on Type.
type Event struct {
	Type      EventType `json:"type"`
	SessionID string    `json:"session_id"`

	// EventTreeUpdated
	Tree           *tree.Node      `json:"tree,omitempty"`
	Classification classify.Result `json:"classification,omitzero"`
	ChangedRanges  []ports.Range   `json:"changed_ranges,omitempty"`
	ChangedNodes   []*tree.Node    `json:"changed_nodes,omitempty"`

	// EventStatement
	Statement *tree.Node `json:"statement,omitempty"`
	Seq       int        `json:"seq,omitempty"`

	// EventRejected
	Rejection *OverflowError `json:"rejection,omitempty"`

	// EventFailure
	Error string `json:"error,omitempty"`
}

// Emitted pairs one newly executable statement with its sequence number.
type Emitted struct {
	Seq  int        `json:"seq"`
	Node *tree.Node `json:"node"`
}

// Update is the outcome of a successful Append.
type Update struct {
	Tree           *tree.Node      `json:"tree"`
	Classification classify.Result `json:"classification"`

	// ChangedRanges and ChangedNodes describe what the re-parse altered:
	// the engine's changed ranges versus the previous tree, and the
	// smallest converted nodes covering them. On a first parse all
	// top-level statements count as changed.
	ChangedRanges []ports.Range `json:"changed_ranges,omitempty"`
	ChangedNodes  []*tree.Node  `json:"changed_nodes,omitempty"`

	// Statements are the top-level statements that newly became
	// executable during this call, left to right.
	Statements []Emitted `json:"statements,omitempty"`
}
