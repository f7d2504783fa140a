package session

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/acolita/shell-parse-mcp/internal/classify"
	"github.com/acolita/shell-parse-mcp/internal/ports"
	"github.com/acolita/shell-parse-mcp/internal/testing/fakes/fakeengine"
)

// command builds a command node spec spanning [start, end) on a single row.
func command(start, end, row int) fakeengine.Spec {
	return fakeengine.Spec{
		Kind:      "command",
		StartByte: start,
		EndByte:   end,
		Start:     ports.Point{Row: row},
		End:       ports.Point{Row: row, Column: end - start},
	}
}

// program builds a root spec around children.
func program(end, endRow int, children ...fakeengine.Spec) fakeengine.Spec {
	return fakeengine.Spec{
		Kind:     "program",
		EndByte:  end,
		End:      ports.Point{Row: endRow},
		Children: children,
	}
}

// unfinished builds a compound child whose closer has not appeared yet.
func unfinished(kind string, start, end, row int) fakeengine.Spec {
	return fakeengine.Spec{
		Kind:      kind,
		StartByte: start,
		EndByte:   end,
		Start:     ports.Point{Row: row},
		End:       ports.Point{Row: row, Column: end - start},
		Children: []fakeengine.Spec{
			{Kind: "fi", StartByte: end, EndByte: end, Missing: true},
		},
	}
}

func nextEvent(t *testing.T, sub *Subscription) Event {
	t.Helper()
	select {
	case ev, ok := <-sub.C:
		if !ok {
			t.Fatal("subscription channel closed while awaiting event")
		}
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out awaiting event")
	}
	return Event{}
}

func expectClosed(t *testing.T, sub *Subscription) {
	t.Helper()
	select {
	case ev, ok := <-sub.C:
		if ok {
			t.Fatalf("got event %+v, want closed channel", ev)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out awaiting channel close")
	}
}

// ---------------------------------------------------------------------------
// 1. Append and statement emission
// ---------------------------------------------------------------------------

func TestAppend_EmitsCompletedStatement(t *testing.T) {
	engine := fakeengine.New(fakeengine.Result{
		Root: program(9, 1, command(0, 8, 0)),
	})
	sess := NewSession("sess_test", engine)
	defer sess.Close()

	sub := sess.Subscribe()
	defer sub.Cancel()

	update, err := sess.Append("echo one\n")
	if err != nil {
		t.Fatalf("Append() error = %v", err)
	}

	if update.Classification.Status != classify.Complete {
		t.Fatalf("Status = %q, want %q", update.Classification.Status, classify.Complete)
	}
	if len(update.Statements) != 1 {
		t.Fatalf("Statements = %d, want 1", len(update.Statements))
	}
	if update.Statements[0].Seq != 1 {
		t.Errorf("Seq = %d, want 1", update.Statements[0].Seq)
	}
	if got := update.Statements[0].Node.Text; got != "echo one" {
		t.Errorf("statement text = %q, want %q", got, "echo one")
	}

	if ev := nextEvent(t, sub); ev.Type != EventTreeUpdated {
		t.Errorf("first event = %q, want %q", ev.Type, EventTreeUpdated)
	}
	ev := nextEvent(t, sub)
	if ev.Type != EventStatement || ev.Seq != 1 {
		t.Errorf("second event = %q seq %d, want %q seq 1", ev.Type, ev.Seq, EventStatement)
	}
}

func TestAppend_EmitsSeveralStatementsInOneCall(t *testing.T) {
	engine := fakeengine.New(fakeengine.Result{
		Root: program(18, 2, command(0, 8, 0), command(9, 17, 1)),
	})
	sess := NewSession("sess_test", engine)
	defer sess.Close()

	update, err := sess.Append("echo one\necho two\n")
	if err != nil {
		t.Fatalf("Append() error = %v", err)
	}

	if len(update.Statements) != 2 {
		t.Fatalf("Statements = %d, want 2", len(update.Statements))
	}
	for i, st := range update.Statements {
		if st.Seq != i+1 {
			t.Errorf("statement %d has seq %d, want %d", i, st.Seq, i+1)
		}
	}
	if update.Statements[0].Node.Text != "echo one" || update.Statements[1].Node.Text != "echo two" {
		t.Errorf("statement texts = %q, %q, want left-to-right source order",
			update.Statements[0].Node.Text, update.Statements[1].Node.Text)
	}
}

func TestAppend_DoesNotReemitAcrossAppends(t *testing.T) {
	engine := fakeengine.New(
		fakeengine.Result{Root: program(9, 1, command(0, 8, 0))},
		fakeengine.Result{Root: program(18, 2, command(0, 8, 0), command(9, 17, 1))},
	)
	sess := NewSession("sess_test", engine)
	defer sess.Close()

	first, err := sess.Append("echo one\n")
	if err != nil {
		t.Fatalf("first Append() error = %v", err)
	}
	second, err := sess.Append("echo two\n")
	if err != nil {
		t.Fatalf("second Append() error = %v", err)
	}

	if len(first.Statements) != 1 || first.Statements[0].Seq != 1 {
		t.Fatalf("first append statements = %+v, want one with seq 1", first.Statements)
	}
	if len(second.Statements) != 1 {
		t.Fatalf("second append emitted %d statements, want 1 (no re-emission)", len(second.Statements))
	}
	if second.Statements[0].Seq != 2 {
		t.Errorf("Seq = %d, want 2", second.Statements[0].Seq)
	}
	if got := second.Statements[0].Node.Text; got != "echo two" {
		t.Errorf("statement text = %q, want %q", got, "echo two")
	}
	if sess.EmittedCount() != 2 {
		t.Errorf("EmittedCount() = %d, want 2", sess.EmittedCount())
	}
}

func TestAppend_IncompleteHoldsEmissionUntilComplete(t *testing.T) {
	engine := fakeengine.New(
		fakeengine.Result{Root: program(14, 1, unfinished("while_statement", 0, 14, 0))},
		fakeengine.Result{Root: program(20, 2, command(0, 19, 0))},
	)
	sess := NewSession("sess_test", engine)
	defer sess.Close()

	update, err := sess.Append("while true; do\n")
	if err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	if update.Classification.Status != classify.Incomplete {
		t.Fatalf("Status = %q, want %q", update.Classification.Status, classify.Incomplete)
	}
	if len(update.Statements) != 0 {
		t.Errorf("incomplete append emitted %d statements, want 0", len(update.Statements))
	}

	update, err = sess.Append(":; done\n")
	if err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	if update.Classification.Status != classify.Complete {
		t.Fatalf("Status = %q, want %q", update.Classification.Status, classify.Complete)
	}
	if len(update.Statements) != 1 || update.Statements[0].Seq != 1 {
		t.Errorf("statements = %+v, want one with seq 1", update.Statements)
	}
}

func TestAppend_SyntaxErrorEmitsNothing(t *testing.T) {
	engine := fakeengine.New(fakeengine.Result{
		Root: program(10, 1, fakeengine.Spec{
			Kind: "ERROR", EndByte: 10, Error: true,
		}),
	})
	sess := NewSession("sess_test", engine)
	defer sess.Close()

	update, err := sess.Append("if then fi\n")
	if err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	if update.Classification.Status != classify.SyntaxError {
		t.Fatalf("Status = %q, want %q", update.Classification.Status, classify.SyntaxError)
	}
	if update.Classification.ErrorNode == nil {
		t.Error("ErrorNode = nil, want the error node")
	}
	if len(update.Statements) != 0 || sess.EmittedCount() != 0 {
		t.Errorf("syntax error emitted statements: %+v", update.Statements)
	}
}

func TestAppend_SkipsComments(t *testing.T) {
	engine := fakeengine.New(fakeengine.Result{
		Root: program(14, 2,
			fakeengine.Spec{Kind: "comment", EndByte: 4, End: ports.Point{Column: 4}, Extra: true},
			command(5, 13, 1),
		),
	})
	sess := NewSession("sess_test", engine)
	defer sess.Close()

	update, err := sess.Append("# hi\necho one\n")
	if err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	if len(update.Statements) != 1 {
		t.Fatalf("statements = %d, want 1 (comment skipped)", len(update.Statements))
	}
	if update.Statements[0].Node.Type != "command" {
		t.Errorf("emitted node type = %q, want %q", update.Statements[0].Node.Type, "command")
	}
}

func TestAppend_StatementEmissionDisabled(t *testing.T) {
	engine := fakeengine.New(fakeengine.Result{
		Root: program(9, 1, command(0, 8, 0)),
	})
	sess := NewSession("sess_test", engine, WithStatementEmission(false))
	defer sess.Close()

	sub := sess.Subscribe()
	defer sub.Cancel()

	update, err := sess.Append("echo one\n")
	if err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	if len(update.Statements) != 0 || sess.EmittedCount() != 0 {
		t.Errorf("disabled session emitted statements: %+v", update.Statements)
	}
	// The tree update still arrives.
	if ev := nextEvent(t, sub); ev.Type != EventTreeUpdated {
		t.Errorf("event = %q, want %q", ev.Type, EventTreeUpdated)
	}
}

// ---------------------------------------------------------------------------
// 2. Incremental plumbing
// ---------------------------------------------------------------------------

func TestAppend_PassesEditedTreeToEngine(t *testing.T) {
	engine := fakeengine.New(
		fakeengine.Result{Root: program(9, 1, command(0, 8, 0))},
		fakeengine.Result{Root: program(18, 2, command(0, 8, 0), command(9, 17, 1))},
	)
	sess := NewSession("sess_test", engine)
	defer sess.Close()

	if _, err := sess.Append("echo one\n"); err != nil {
		t.Fatalf("first Append() error = %v", err)
	}
	if _, err := sess.Append("echo two\n"); err != nil {
		t.Fatalf("second Append() error = %v", err)
	}

	calls := engine.Calls()
	if len(calls) != 2 {
		t.Fatalf("recorded %d calls, want 2", len(calls))
	}
	if calls[0].HadOld {
		t.Error("first parse had an old tree")
	}
	if !calls[1].HadOld {
		t.Error("incremental parse had no old tree")
	}
	if calls[1].Source != "echo one\necho two\n" {
		t.Errorf("incremental parse source = %q, want full accumulated input", calls[1].Source)
	}
}

func TestAppend_AppendOnlyEdit(t *testing.T) {
	engine := fakeengine.New(
		fakeengine.Result{Root: program(9, 1, command(0, 8, 0))},
		fakeengine.Result{Root: program(18, 2, command(0, 8, 0), command(9, 17, 1))},
	)
	sess := NewSession("sess_test", engine)
	defer sess.Close()

	if _, err := sess.Append("echo one\n"); err != nil {
		t.Fatalf("first Append() error = %v", err)
	}
	if _, err := sess.Append("echo two\n"); err != nil {
		t.Fatalf("second Append() error = %v", err)
	}

	// The first tree received the append edit before the second parse.
	trees := engine.Trees()
	if len(trees) != 2 {
		t.Fatalf("engine handed out %d trees, want 2", len(trees))
	}
	prev := trees[0]
	edits := prev.Edits()
	if len(edits) != 1 {
		t.Fatalf("recorded %d edits, want 1", len(edits))
	}
	edit := edits[0]
	want := ports.InputEdit{
		StartByte:  9,
		OldEndByte: 9,
		NewEndByte: 18,
		Start:      ports.Point{Row: 1},
		OldEnd:     ports.Point{Row: 1},
		NewEnd:     ports.Point{Row: 2},
	}
	if edit != want {
		t.Errorf("edit = %+v, want %+v", edit, want)
	}
	if !prev.Closed() {
		t.Error("previous tree not released after re-parse")
	}
}

func TestAppend_ChangedNodes(t *testing.T) {
	engine := fakeengine.New(
		fakeengine.Result{Root: program(9, 1, command(0, 8, 0))},
		fakeengine.Result{
			Root:    program(18, 2, command(0, 8, 0), command(9, 17, 1)),
			Changed: []ports.Range{{StartByte: 9, EndByte: 17}},
		},
	)
	sess := NewSession("sess_test", engine)
	defer sess.Close()

	first, err := sess.Append("echo one\n")
	if err != nil {
		t.Fatalf("first Append() error = %v", err)
	}
	// A first parse reports every top-level statement as changed.
	if len(first.ChangedNodes) != 1 || first.ChangedNodes[0].Text != "echo one" {
		t.Errorf("first ChangedNodes = %+v, want the single command", first.ChangedNodes)
	}

	second, err := sess.Append("echo two\n")
	if err != nil {
		t.Fatalf("second Append() error = %v", err)
	}
	if len(second.ChangedRanges) != 1 {
		t.Fatalf("ChangedRanges = %+v, want one range", second.ChangedRanges)
	}
	if len(second.ChangedNodes) != 1 || second.ChangedNodes[0].Text != "echo two" {
		t.Errorf("ChangedNodes = %+v, want the new command", second.ChangedNodes)
	}
}

// ---------------------------------------------------------------------------
// 3. Buffer limit
// ---------------------------------------------------------------------------

func TestAppend_Overflow(t *testing.T) {
	engine := fakeengine.New(fakeengine.Result{
		Root: program(8, 0, command(0, 8, 0)),
	})
	sess := NewSession("sess_test", engine, WithMaxBufferSize(10))
	defer sess.Close()

	sub := sess.Subscribe()
	defer sub.Cancel()

	if _, err := sess.Append("12345678"); err != nil {
		t.Fatalf("Append() under the limit failed: %v", err)
	}
	nextEvent(t, sub) // tree update
	nextEvent(t, sub) // statement

	_, err := sess.Append("überlång")
	var overflow *OverflowError
	if !errors.As(err, &overflow) {
		t.Fatalf("Append() error = %v, want *OverflowError", err)
	}
	if overflow.CurrentSize != 8 || overflow.MaxSize != 10 {
		t.Errorf("overflow figures = %+v, want current 8 max 10", overflow)
	}
	if overflow.FragmentSize != len("überlång") {
		t.Errorf("FragmentSize = %d, want byte length %d", overflow.FragmentSize, len("überlång"))
	}
	if !strings.Contains(overflow.Error(), "exceed") {
		t.Errorf("Error() = %q, want mention of exceeding the limit", overflow.Error())
	}

	// The session state did not change.
	if got := sess.AccumulatedInput(); got != "12345678" {
		t.Errorf("AccumulatedInput() = %q, want unchanged buffer", got)
	}
	if sess.BufferSize() != 8 {
		t.Errorf("BufferSize() = %d, want 8", sess.BufferSize())
	}
	if engine.Remaining() != 0 {
		t.Error("engine consulted for a rejected append")
	}

	ev := nextEvent(t, sub)
	if ev.Type != EventRejected {
		t.Fatalf("event = %q, want %q", ev.Type, EventRejected)
	}
	if ev.Rejection == nil || ev.Rejection.MaxSize != 10 {
		t.Errorf("Rejection = %+v, want the overflow figures", ev.Rejection)
	}
}

func TestAppend_OverflowLeavesSessionUsable(t *testing.T) {
	engine := fakeengine.New(
		fakeengine.Result{Root: program(4, 0, command(0, 4, 0))},
	)
	sess := NewSession("sess_test", engine, WithMaxBufferSize(5))
	defer sess.Close()

	if _, err := sess.Append("truncated fragment far over the limit"); err == nil {
		t.Fatal("oversized append succeeded")
	}
	if _, err := sess.Append("true"); err != nil {
		t.Errorf("append after rejection failed: %v", err)
	}
}

// ---------------------------------------------------------------------------
// 4. Fault handling
// ---------------------------------------------------------------------------

func TestAppend_EngineError(t *testing.T) {
	parseErr := errors.New("grammar unavailable")
	engine := fakeengine.New(
		fakeengine.Result{Err: parseErr},
		fakeengine.Result{Root: program(5, 1, command(0, 4, 0))},
	)
	sess := NewSession("sess_test", engine)
	defer sess.Close()

	sub := sess.Subscribe()
	defer sub.Cancel()

	_, err := sess.Append("true\n")
	var engineErr *EngineError
	if !errors.As(err, &engineErr) {
		t.Fatalf("Append() error = %v, want *EngineError", err)
	}
	if !errors.Is(err, parseErr) {
		t.Errorf("error chain does not unwrap to the engine error: %v", err)
	}

	ev := nextEvent(t, sub)
	if ev.Type != EventFailure {
		t.Fatalf("event = %q, want %q", ev.Type, EventFailure)
	}
	if !strings.Contains(ev.Error, "grammar unavailable") {
		t.Errorf("failure event error = %q, want the cause", ev.Error)
	}

	// The session survives and the next append parses the full buffer.
	update, err := sess.Append("")
	if err != nil {
		t.Fatalf("append after failure: %v", err)
	}
	if update.Classification.Status != classify.Complete {
		t.Errorf("Status = %q, want %q", update.Classification.Status, classify.Complete)
	}
}

func TestAppend_EnginePanic(t *testing.T) {
	engine := fakeengine.New(
		fakeengine.Result{Panic: "segfault in native parser"},
		fakeengine.Result{Root: program(5, 1, command(0, 4, 0))},
	)
	sess := NewSession("sess_test", engine)
	defer sess.Close()

	sub := sess.Subscribe()
	defer sub.Cancel()

	_, err := sess.Append("true\n")
	if err == nil {
		t.Fatal("Append() succeeded, want panic surfaced as error")
	}
	if !strings.Contains(err.Error(), "panic during parse") {
		t.Errorf("error = %v, want panic wrapped", err)
	}

	if ev := nextEvent(t, sub); ev.Type != EventFailure {
		t.Fatalf("event = %q, want %q", ev.Type, EventFailure)
	}

	if _, err := sess.Append(""); err != nil {
		t.Errorf("append after panic failed: %v", err)
	}
}

// ---------------------------------------------------------------------------
// 5. Reset and close
// ---------------------------------------------------------------------------

func TestReset_RestartsSequenceNumbers(t *testing.T) {
	engine := fakeengine.New(
		fakeengine.Result{Root: program(9, 1, command(0, 8, 0))},
		fakeengine.Result{Root: program(9, 1, command(0, 8, 0))},
	)
	sess := NewSession("sess_test", engine)
	defer sess.Close()

	first, err := sess.Append("echo one\n")
	if err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	if first.Statements[0].Seq != 1 {
		t.Fatalf("Seq = %d, want 1", first.Statements[0].Seq)
	}

	sess.Reset()
	if sess.AccumulatedInput() != "" || sess.BufferSize() != 0 {
		t.Error("reset left accumulated input behind")
	}
	if sess.CurrentTree() != nil {
		t.Error("reset left a current tree behind")
	}
	if sess.EmittedCount() != 0 {
		t.Error("reset left the emission counter behind")
	}

	second, err := sess.Append("echo two\n")
	if err != nil {
		t.Fatalf("Append() after reset error = %v", err)
	}
	if second.Statements[0].Seq != 1 {
		t.Errorf("Seq after reset = %d, want 1", second.Statements[0].Seq)
	}

	calls := engine.Calls()
	if calls[len(calls)-1].HadOld {
		t.Error("parse after reset reused the discarded tree")
	}
}

func TestClose(t *testing.T) {
	engine := fakeengine.New()
	sess := NewSession("sess_test", engine)

	sub := sess.Subscribe()

	if err := sess.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if !engine.Closed() {
		t.Error("engine not released")
	}
	expectClosed(t, sub)

	if _, err := sess.Append("true"); !errors.Is(err, ErrClosed) {
		t.Errorf("Append() after close = %v, want ErrClosed", err)
	}
	if err := sess.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
}

// ---------------------------------------------------------------------------
// 6. Round trip
// ---------------------------------------------------------------------------

func TestAppend_AccumulatedInputRoundTrip(t *testing.T) {
	fragments := []string{"if true", "; then\n", "echo hi\n", "fi\n"}

	var results []fakeengine.Result
	for range fragments {
		results = append(results, fakeengine.Result{Root: program(0, 0)})
	}
	engine := fakeengine.New(results...)
	sess := NewSession("sess_test", engine, WithStatementEmission(false))
	defer sess.Close()

	for _, f := range fragments {
		if _, err := sess.Append(f); err != nil {
			t.Fatalf("Append(%q) error = %v", f, err)
		}
	}

	want := strings.Join(fragments, "")
	if got := sess.AccumulatedInput(); got != want {
		t.Errorf("AccumulatedInput() = %q, want %q", got, want)
	}

	calls := engine.Calls()
	if got := calls[len(calls)-1].Source; got != want {
		t.Errorf("final parse source = %q, want the full accumulated input", got)
	}
}
