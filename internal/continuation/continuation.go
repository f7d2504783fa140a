// Package continuation decides whether buffered shell input is syntactically
// closeable as-is or needs more input, and why. The check is purely lexical:
// it never builds a parse tree, so it is cheap enough to run per keystroke.
package continuation

// State classifies buffered input.
type State string

const (
	// StateComplete means the buffer can be handed to the parser as-is.
	StateComplete State = "complete"

	// StateLine means the buffer ends in an unescaped backslash-newline
	// (or a bare trailing backslash) and the next line continues it.
	StateLine State = "line_continuation"

	// StateQuote means a single- or double-quoted region is still open.
	StateQuote State = "quote_continuation"

	// StateHeredoc means a << or <<- redirect was seen whose terminator
	// line has not appeared yet.
	StateHeredoc State = "heredoc_continuation"

	// StateStructure means one or more compound-statement openers
	// (if/for/while/until/case) are still unmatched.
	StateStructure State = "structure_continuation"
)

// Structure is one unmatched compound-statement opener.
type Structure struct {
	Opener         string `json:"opener"`
	ExpectedCloser string `json:"expected_closer"`
}

// Result is the outcome of a continuation check.
type Result struct {
	State State `json:"state"`

	// Quote is the open quote character for StateQuote: '\'' or '"'.
	Quote rune `json:"quote,omitempty"`

	// HeredocTerminator is the awaited terminator word for StateHeredoc.
	// Empty when the << operator appeared but its delimiter was cut off.
	HeredocTerminator string `json:"heredoc_terminator,omitempty"`

	// HeredocIndented reports the <<- form, whose terminator line may be
	// preceded by whitespace.
	HeredocIndented bool `json:"heredoc_indented,omitempty"`

	// OpenStructures lists unmatched openers for StateStructure,
	// outermost first.
	OpenStructures []Structure `json:"open_structures,omitempty"`
}

// NeedsMore reports whether more input is required before parsing.
func (r Result) NeedsMore() bool {
	return r.State != StateComplete
}

// ExpectedCloser returns the closer of the innermost open structure, or ""
// when no structure is open.
func (r Result) ExpectedCloser() string {
	if len(r.OpenStructures) == 0 {
		return ""
	}
	return r.OpenStructures[len(r.OpenStructures)-1].ExpectedCloser
}

// Check scans input once, left to right, and classifies it. Pure function:
// identical input always yields an identical Result and no state is kept
// between calls. When several signals are open at once the strongest wins:
// line continuation, then quote, then heredoc, then structure.
func Check(input string) Result {
	var sc scanner
	sc.scan(input)

	switch {
	case sc.lineContinuation():
		return Result{State: StateLine}
	case sc.quote != 0:
		return Result{State: StateQuote, Quote: rune(sc.quote)}
	case len(sc.heredocs) > 0:
		h := sc.heredocs[0]
		return Result{
			State:             StateHeredoc,
			HeredocTerminator: h.terminator,
			HeredocIndented:   h.indented,
		}
	case len(sc.stack) > 0:
		open := make([]Structure, len(sc.stack))
		copy(open, sc.stack)
		return Result{State: StateStructure, OpenStructures: open}
	default:
		return Result{State: StateComplete}
	}
}
