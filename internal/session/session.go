// Package session provides incremental parsing sessions: each Session owns
// one stream of appended input fragments, drives re-parses through a private
// parsing engine, classifies the result, and emits top-level statements as
// they newly become executable, in order and at most once.
package session

import (
	"bytes"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/acolita/shell-parse-mcp/internal/classify"
	"github.com/acolita/shell-parse-mcp/internal/ports"
	"github.com/acolita/shell-parse-mcp/internal/tree"
)

// Session is one independent, stateful parsing context. All operations on a
// Session are serialized; independent Sessions share nothing.
type Session struct {
	ID        string
	CreatedAt time.Time
	LastUsed  time.Time

	mu             sync.Mutex
	engine         ports.Engine
	maxBuffer      int
	emitStatements bool

	input          []byte
	prevRaw        ports.Tree
	current        *tree.Node
	emitted        int
	lastEmittedRow int

	notifier *Notifier
	closed   bool
}

// Option configures a Session.
type Option func(*Session)

// WithMaxBufferSize caps accumulated input at n bytes.
func WithMaxBufferSize(n int) Option {
	return func(s *Session) {
		if n > 0 {
			s.maxBuffer = n
		}
	}
}

// WithStatementEmission toggles statement events. Disabled sessions still
// publish tree updates on every append.
func WithStatementEmission(enabled bool) Option {
	return func(s *Session) {
		s.emitStatements = enabled
	}
}

// NewSession creates a session around its private parsing engine.
func NewSession(id string, engine ports.Engine, opts ...Option) *Session {
	s := &Session{
		ID:             id,
		CreatedAt:      time.Now(),
		LastUsed:       time.Now(),
		engine:         engine,
		maxBuffer:      10 * 1024 * 1024,
		emitStatements: true,
		lastEmittedRow: -1,
		notifier:       newNotifier(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Subscribe attaches a subscriber to this session's event stream. Events
// published before attaching are not replayed.
func (s *Session) Subscribe() *Subscription {
	return s.notifier.Subscribe()
}

// Append adds a fragment to the session's accumulated input, re-parses, and
// classifies. It is synchronous: when it returns, the fragment has been
// fully parsed and classified and a tree-updated event (or a rejection or
// failure event) is queued for every subscriber. Every call yields exactly
// one of: an Update, an *OverflowError, or an *EngineError, never silence.
func (s *Session) Append(fragment string) (*Update, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrClosed
	}
	s.LastUsed = time.Now()

	if len(s.input)+len(fragment) > s.maxBuffer {
		overflow := &OverflowError{
			CurrentSize:  len(s.input),
			FragmentSize: len(fragment),
			MaxSize:      s.maxBuffer,
		}
		s.notifier.Publish(Event{Type: EventRejected, SessionID: s.ID, Rejection: overflow})
		slog.Debug("append rejected",
			slog.String("session_id", s.ID),
			slog.Int("current_size", overflow.CurrentSize),
			slog.Int("fragment_size", overflow.FragmentSize),
			slog.Int("max_size", overflow.MaxSize),
		)
		return nil, overflow
	}

	oldLen := len(s.input)
	oldRows := bytes.Count(s.input, []byte("\n"))
	s.input = append(s.input, fragment...)
	newRows := bytes.Count(s.input, []byte("\n"))

	edit := ports.InputEdit{
		StartByte:  oldLen,
		OldEndByte: oldLen,
		NewEndByte: len(s.input),
		Start:      ports.Point{Row: oldRows},
		OldEnd:     ports.Point{Row: oldRows},
		NewEnd:     ports.Point{Row: newRows},
	}

	raw, root, changedRanges, err := s.reparse(edit)
	if err != nil {
		fail := &EngineError{Err: err}
		s.notifier.Publish(Event{Type: EventFailure, SessionID: s.ID, Error: fail.Error()})
		slog.Warn("parse failure",
			slog.String("session_id", s.ID),
			slog.String("error", err.Error()),
		)
		return nil, fail
	}

	changedNodes := s.changedNodes(root, changedRanges)
	result := classify.Classify(root)

	if s.prevRaw != nil {
		s.prevRaw.Close()
	}
	s.prevRaw = raw
	s.current = root

	update := &Update{
		Tree:           root,
		Classification: result,
		ChangedRanges:  changedRanges,
		ChangedNodes:   changedNodes,
	}

	s.notifier.Publish(Event{
		Type:           EventTreeUpdated,
		SessionID:      s.ID,
		Tree:           root,
		Classification: result,
		ChangedRanges:  changedRanges,
		ChangedNodes:   changedNodes,
	})

	if result.Status == classify.Complete && s.emitStatements {
		s.emitNew(root, update)
	}

	return update, nil
}

// emitNew publishes root children that ended past the last emitted row.
// Top-level statements never overlap and stay in source order across
// re-parses that only extend the input, so the end-row watermark gives
// at-most-once emission without a full tree diff.
func (s *Session) emitNew(root *tree.Node, update *Update) {
	for _, child := range root.Children {
		if child.IsExtra {
			// Comments are tree content but never executable.
			continue
		}
		if child.EndRow <= s.lastEmittedRow {
			continue
		}
		s.emitted++
		s.lastEmittedRow = child.EndRow
		update.Statements = append(update.Statements, Emitted{Seq: s.emitted, Node: child})
		s.notifier.Publish(Event{
			Type:      EventStatement,
			SessionID: s.ID,
			Statement: child,
			Seq:       s.emitted,
		})
	}
}

// reparse runs the engine and the conversion step, catching panics so an
// engine fault surfaces as an error instead of killing the session.
func (s *Session) reparse(edit ports.InputEdit) (raw ports.Tree, root *tree.Node, changed []ports.Range, err error) {
	defer func() {
		if r := recover(); r != nil {
			raw, root, changed = nil, nil, nil
			err = fmt.Errorf("panic during parse: %v", r)
		}
	}()

	if s.prevRaw != nil {
		s.prevRaw.Edit(edit)
	}

	raw, err = s.engine.Parse(s.input, s.prevRaw)
	if err != nil {
		return nil, nil, nil, err
	}

	root = tree.FromEngine(raw.Root(), s.input)
	if s.prevRaw != nil {
		changed = raw.ChangedRanges(s.prevRaw)
	}
	return raw, root, changed, nil
}

// changedNodes maps the engine's changed ranges onto the smallest converted
// nodes covering them. A first parse reports every top-level statement; an
// append that only adds statements (no changed ranges) reports the new root
// children.
func (s *Session) changedNodes(root *tree.Node, ranges []ports.Range) []*tree.Node {
	if s.current == nil {
		return append([]*tree.Node(nil), root.Children...)
	}

	if len(ranges) > 0 {
		var nodes []*tree.Node
		for _, r := range ranges {
			n := tree.SmallestContaining(root, r.StartByte, r.EndByte)
			if n == nil {
				continue
			}
			if len(nodes) > 0 && nodes[len(nodes)-1].StartByte == n.StartByte && nodes[len(nodes)-1].EndByte == n.EndByte {
				continue
			}
			nodes = append(nodes, n)
		}
		return nodes
	}

	if len(root.Children) > len(s.current.Children) {
		return append([]*tree.Node(nil), root.Children[len(s.current.Children):]...)
	}
	return nil
}

// Reset clears accumulated input and all derived state. The next emitted
// statement has sequence number 1 again.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.input = nil
	if s.prevRaw != nil {
		s.prevRaw.Close()
		s.prevRaw = nil
	}
	s.current = nil
	s.emitted = 0
	s.lastEmittedRow = -1
	s.LastUsed = time.Now()
}

// CurrentTree returns the most recent parse tree, or nil before any parse.
func (s *Session) CurrentTree() *tree.Node {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// AccumulatedInput returns everything appended since creation or last reset.
func (s *Session) AccumulatedInput() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return string(s.input)
}

// BufferSize returns the accumulated input size in bytes.
func (s *Session) BufferSize() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.input)
}

// EmittedCount returns how many statements the session has emitted.
func (s *Session) EmittedCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.emitted
}

// Close releases the session's engine and detaches all subscribers.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	if s.prevRaw != nil {
		s.prevRaw.Close()
		s.prevRaw = nil
	}
	s.engine.Close()
	s.notifier.Close()
	return nil
}
