// Package classify decides what a parse tree for buffered input means:
// fully valid, merely unfinished, or genuinely malformed. The engine raises
// the same subtree error flag for both of the latter, so the distinction is
// structural: input invalid under any completion produces a dedicated error
// node somewhere in the tree, while a valid-so-far prefix still parses into
// a typed compound node. That structural signal is the entire heuristic,
// kept behind this package so an engine that learns to report missing
// tokens explicitly can replace it without touching callers.
package classify

import "github.com/acolita/shell-parse-mcp/internal/tree"

// Status is the classification outcome.
type Status string

const (
	// Complete means the tree is fully valid and its top-level statements
	// are executable.
	Complete Status = "complete"

	// Incomplete means the input is a valid prefix awaiting more text.
	Incomplete Status = "incomplete"

	// SyntaxError means the input is invalid under any completion.
	SyntaxError Status = "syntax_error"
)

// OpenerUnknown is reported when an unfinished tree has no compound child to
// attribute the incompleteness to.
const OpenerUnknown = "unknown"

// Result describes a classified tree.
type Result struct {
	Status Status `json:"status"`

	// Opener and ExpectedCloser are set for Incomplete: the unfinished
	// compound statement's opening keyword and the closing token awaited.
	// Opener is OpenerUnknown (with an empty closer) when no compound
	// child could be identified.
	Opener         string `json:"opener,omitempty"`
	ExpectedCloser string `json:"expected_closer,omitempty"`

	// ErrorNode is the smallest enclosing error node for SyntaxError; its
	// text and range locate the problem precisely.
	ErrorNode *tree.Node `json:"error_node,omitempty"`
}

// Classify inspects a converted parse tree. A dedicated error node anywhere
// forces SyntaxError; that precedence is absolute, a real grammar violation
// is never downgraded to incomplete. Otherwise a set whole-tree error flag
// means an unfinished construct: the last compound child of the root names
// the awaited closer. A clean tree is Complete.
func Classify(root *tree.Node) Result {
	if root == nil {
		return Result{Status: Incomplete, Opener: OpenerUnknown}
	}

	if errNode := root.FindErrorNode(); errNode != nil {
		return Result{Status: SyntaxError, ErrorNode: errNode}
	}

	if !root.HasError {
		return Result{Status: Complete}
	}

	for i := len(root.Children) - 1; i >= 0; i-- {
		child := root.Children[i]
		if closer, ok := tree.CloserFor(child.Type); ok {
			return Result{
				Status:         Incomplete,
				Opener:         tree.Opener(child),
				ExpectedCloser: closer,
			}
		}
	}

	return Result{Status: Incomplete, Opener: OpenerUnknown}
}
