package driver

import "sync/atomic"

// Seq is the monotonic sequence that orders journal rows and trace events.
//
// Wall-clock timestamps vary run to run; the sequence gives every recorded
// fact a stable total order, which is what golden traces and deterministic
// reads key on.
//
// Thread-safety: atomic; any goroutine may call Next.
type Seq struct {
	n atomic.Int64
}

// NewSeq creates a sequence starting at 0.
func NewSeq() *Seq {
	return &Seq{}
}

// Next returns the next sequence number. Each call returns a unique,
// increasing value.
func (s *Seq) Next() int64 {
	return s.n.Add(1)
}

// Current returns the last issued sequence number without advancing.
func (s *Seq) Current() int64 {
	return s.n.Load()
}
