package rvadmission

import (
	"time"

	"github.com/google/uuid"
)

// Tag is an opaque label identifying a throttling class. Equality and
// hashing are by byte content, which a Go string already provides.
type Tag string

// TagSet maps a Tag to the non-negative cost a Request charges against that
// tag's budget.
type TagSet map[Tag]int64

// Outcome is sent exactly once on a Request's Reply channel: either the
// request was admitted (Err is nil, by the epochdriver after a successful
// RunEpoch drain) or it failed before ever being admitted (Err names why —
// Starved, or cancellation on shutdown).
type Outcome struct {
	Err error
}

// Request is a short-lived read-version request tagged with one or more
// throttling classes. Once handed to a TagQueue via AddRequest, the queue
// exclusively owns it until it is emitted to a priority bucket or dropped on
// shutdown.
type Request struct {
	ID         uuid.UUID
	Tags       TagSet
	Priority   Priority
	Reply      chan Outcome
	EnqueuedAt time.Time

	// deferredAtEpoch is the epoch index at which this request first failed
	// admission, or zero if it has never been deferred. TagQueue uses it to
	// bound how long a request may be retried before failing with Starved.
	deferredAtEpoch int64
}

// NewRequest constructs a Request with a fresh ID, a reply channel buffered
// to capacity 1 (so neither the queue nor the driver ever blocks sending to
// an abandoned receiver), and EnqueuedAt set to now.
func NewRequest(tags TagSet, priority Priority) *Request {
	return &Request{
		ID:         uuid.New(),
		Tags:       tags,
		Priority:   priority,
		Reply:      make(chan Outcome, 1),
		EnqueuedAt: time.Now(),
	}
}

// validate enforces the structural invariants spec §7 requires AddRequest to
// reject before the request ever reaches runEpoch: a known priority and
// non-negative per-tag cost.
func (r *Request) validate() error {
	if err := r.Priority.Validate(); err != nil {
		return err
	}
	for tag, count := range r.Tags {
		if count < 0 {
			return newInvalidTagCostError(tag, count)
		}
	}
	return nil
}

// reply sends outcome on the request's reply channel without blocking. A
// caller that abandoned its Reply channel (never reads from it again)
// simply never observes the send; TagQueue and the driver both discard it
// silently, per spec §5.
func (r *Request) reply(outcome Outcome) {
	select {
	case r.Reply <- outcome:
	default:
	}
}
