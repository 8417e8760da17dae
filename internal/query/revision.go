package query

import (
	"errors"
	"sync/atomic"
)

// ErrCanceled reports that a write happened after a computation started.
// It is a retry signal, not a failure: the only correct reaction is to
// re-run the whole operation on a fresh snapshot.
var ErrCanceled = errors.New("query: canceled")

// Revision marks a write epoch. It only ever grows.
type Revision int64

// Clock tracks write epochs for a Runtime.
type Clock struct {
	rev atomic.Int64
}

// Current returns the latest revision.
func (c *Clock) Current() Revision {
	return Revision(c.rev.Load())
}

// NoteWrite advances the clock and returns the new revision. Every
// computation that started before the call observes cancellation.
func (c *Clock) NoteWrite() Revision {
	return Revision(c.rev.Add(1))
}

// IsCanceled reports whether the clock has moved past startedAt.
func (c *Clock) IsCanceled(startedAt Revision) bool {
	return c.Current() > startedAt
}

// CheckCanceled returns ErrCanceled if the clock has moved past startedAt.
func (c *Clock) CheckCanceled(startedAt Revision) error {
	if c.IsCanceled(startedAt) {
		return ErrCanceled
	}
	return nil
}
