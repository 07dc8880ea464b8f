// Package callstack keeps the logical, script-level call stack used for
// diagnostics. It is independent of the Go stack: a script may recurse up to
// the configured limit without the host growing in proportion, and hitting
// the limit is reported as StackDepthExceeded instead of crashing.
package callstack

import (
	"strings"

	"github.com/edwingeng/deque"
	"github.com/podhmo/lispcore/object"
)

// DefaultMaxDepth is the depth limit used when none is configured.
const DefaultMaxDepth = 10000

// MaxDepthLimit caps any configured limit. Each script call costs a dozen or
// so Go frames, and deeper logical stacks would exhaust the goroutine stack
// before StackDepthExceeded could be raised.
const MaxDepthLimit = 50000

// Stack is a bounded stack of call frames. It belongs to one Task and is not
// safe for concurrent use.
type Stack struct {
	frames deque.Deque
	limit  int
}

// New creates an empty stack. A non-positive limit selects DefaultMaxDepth
// and a limit above MaxDepthLimit is lowered to it.
func New(limit int) *Stack {
	switch {
	case limit <= 0:
		limit = DefaultMaxDepth
	case limit > MaxDepthLimit:
		limit = MaxDepthLimit
	}
	return &Stack{frames: deque.NewDeque(), limit: limit}
}

// Limit returns the maximum depth.
func (s *Stack) Limit() int { return s.limit }

// Depth returns the number of frames currently pushed.
func (s *Stack) Depth() int { return s.frames.Len() }

// Push adds frame on top. It fails with StackDepthExceeded, leaving the stack
// untouched, when the stack is already at its limit.
func (s *Stack) Push(frame *object.CallFrame) error {
	if s.frames.Len() >= s.limit {
		return object.NewStackDepthExceededError(s.limit)
	}
	s.frames.PushBack(frame)
	return nil
}

// Pop removes and returns the top frame. Popping an empty stack breaks the
// push/pop discipline and panics.
func (s *Stack) Pop() *object.CallFrame {
	if s.frames.Empty() {
		panic("callstack: Pop on empty stack")
	}
	return s.frames.PopBack().(*object.CallFrame)
}

// Top returns the innermost frame, or nil.
func (s *Stack) Top() *object.CallFrame {
	if s.frames.Empty() {
		return nil
	}
	return s.frames.Back().(*object.CallFrame)
}

// Enter pushes frame and returns the function that pops it. Callers defer the
// returned function so the frame is popped on every exit path.
//
//	leave, err := stack.Enter(frame)
//	if err != nil {
//		return nil, err
//	}
//	defer leave()
func (s *Stack) Enter(frame *object.CallFrame) (func(), error) {
	if err := s.Push(frame); err != nil {
		return nil, err
	}
	depth := s.frames.Len()
	return func() {
		// unwind anything a panicking callee left behind as well
		for s.frames.Len() >= depth {
			s.frames.PopBack()
		}
	}, nil
}

// Snapshot copies the frames, outermost first. This is the order stored in
// object.Error.CallStack.
func (s *Stack) Snapshot() []*object.CallFrame {
	n := s.frames.Len()
	if n == 0 {
		return nil
	}
	out := make([]*object.CallFrame, n)
	for i := 0; i < n; i++ {
		out[i] = s.frames.Peek(i).(*object.CallFrame)
	}
	return out
}

// Frames returns the frames most recent first, the order they are printed in.
func (s *Stack) Frames() []*object.CallFrame {
	n := s.frames.Len()
	out := make([]*object.CallFrame, 0, n)
	for i := n - 1; i >= 0; i-- {
		out = append(out, s.frames.Peek(i).(*object.CallFrame))
	}
	return out
}

// Reset drops every frame.
func (s *Stack) Reset() {
	for !s.frames.Empty() {
		s.frames.PopBack()
	}
}

// String renders the stack most recent first, one frame per line.
func (s *Stack) String() string {
	return Render(s.Snapshot())
}

// Render formats frames (outermost first) most recent first.
func Render(frames []*object.CallFrame) string {
	var b strings.Builder
	for i := len(frames) - 1; i >= 0; i-- {
		b.WriteString(frames[i].Format())
		b.WriteString("\n")
	}
	return b.String()
}
