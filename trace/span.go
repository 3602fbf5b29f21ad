// Package trace provides the per-flow span stack consumed by the log
// pipeline. Spans are threaded through context.Context explicitly; no global
// registry exists, so concurrent flows never share state.
package trace

import (
	"context"
	"sync"

	"github.com/gofrs/uuid/v5"
)

// maxDepth bounds the span stack against runaway recursion.
const maxDepth = 128

// Attr is one span attribute. Attribute slices preserve insertion order.
type Attr struct {
	Key   string
	Value any
}

// Span is a named scope of execution. Attributes may be added while the span
// is active; additions are monotonic and visible to all events raised while
// this span or any descendant is current.
type Span struct {
	id     uuid.UUID
	name   string
	parent *Span
	depth  int

	mu    sync.Mutex
	attrs []Attr
	index map[string]int
	ended bool
}

type spanContextKey struct{}

// Begin pushes a new innermost span onto the stack carried by ctx and returns
// the derived context together with the span handle. The caller must call
// End exactly once when the unit of work finishes. Begin panics if the stack
// depth exceeds an internal bound, which indicates a recursion bug in the
// caller.
func Begin(ctx context.Context, name string, attrs ...Attr) (context.Context, *Span) {
	parent := Current(ctx)
	depth := 1
	if parent != nil {
		depth = parent.depth + 1
	}
	if depth > maxDepth {
		panic("trace: span stack depth exceeded")
	}
	span := &Span{
		id:     uuid.Must(uuid.NewV4()),
		name:   name,
		parent: parent,
		depth:  depth,
		index:  make(map[string]int, len(attrs)),
	}
	for _, attr := range attrs {
		span.putLocked(attr.Key, attr.Value)
	}
	return context.WithValue(ctx, spanContextKey{}, span), span
}

// ID returns the unique instance identifier of the span.
func (s *Span) ID() uuid.UUID {
	return s.id
}

// Name returns the span name.
func (s *Span) Name() string {
	return s.name
}

// Record adds or overwrites one attribute on the span. It is a no-op once
// the span has ended; an event emitted before the record still shows the old
// value because events snapshot spans at raise time.
func (s *Span) Record(key string, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ended {
		return
	}
	s.putLocked(key, value)
}

func (s *Span) putLocked(key string, value any) {
	if i, loaded := s.index[key]; loaded {
		s.attrs[i].Value = value
		return
	}
	s.index[key] = len(s.attrs)
	s.attrs = append(s.attrs, Attr{Key: key, Value: value})
}

// End pops the span. Ending a span twice is a programming error and panics.
// The parent stays active; contexts derived from Begin must not be used to
// raise events after End.
func (s *Span) End() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ended {
		panic("trace: span ended twice")
	}
	s.ended = true
}

// Current returns the innermost active span carried by ctx, or nil.
func Current(ctx context.Context) *Span {
	span, _ := ctx.Value(spanContextKey{}).(*Span)
	return span
}

// All returns the active span stack, root first.
func All(ctx context.Context) []*Span {
	span := Current(ctx)
	if span == nil {
		return nil
	}
	spans := make([]*Span, 0, span.depth)
	for ; span != nil; span = span.parent {
		spans = append(spans, span)
	}
	for i, j := 0, len(spans)-1; i < j; i, j = i+1, j-1 {
		spans[i], spans[j] = spans[j], spans[i]
	}
	return spans
}

// Snapshot is a frozen copy of one span taken when an event is raised.
// Attributes recorded after the snapshot never appear in it.
type Snapshot struct {
	Name       string
	Attributes []Attr
}

// Snapshot freezes the span's current name and attributes.
func (s *Span) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	attrs := make([]Attr, len(s.attrs))
	copy(attrs, s.attrs)
	return Snapshot{Name: s.name, Attributes: attrs}
}

// SnapshotAll freezes the whole active stack, root first. Attributes set on
// an ancestor are reported on the ancestor's snapshot, not copied downward.
func SnapshotAll(ctx context.Context) []Snapshot {
	spans := All(ctx)
	if spans == nil {
		return nil
	}
	snapshots := make([]Snapshot, len(spans))
	for i, span := range spans {
		snapshots[i] = span.Snapshot()
	}
	return snapshots
}
