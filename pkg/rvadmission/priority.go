package rvadmission

// Priority classifies a Request for bucketing by the admission queue.
// Immediate requests bypass admission entirely; the other two are ordered
// only for documentation purposes, not for any scheduling behavior within
// this package.
type Priority int8

const (
	// Batch is the lowest priority. It is admitted or deferred by the same
	// test and in the same FIFO pass as Default; only its bucket differs.
	Batch Priority = iota
	// Default is ordinary foreground work.
	Default
	// Immediate bypasses the admission test unconditionally.
	Immediate
)

func (p Priority) String() string {
	switch p {
	case Batch:
		return "batch"
	case Default:
		return "default"
	case Immediate:
		return "immediate"
	default:
		return "unknown"
	}
}

// Validate reports UnknownPriority if p is not one of the three closed
// variants. Priority is a programmer error if it is ever out of range;
// AddRequest calls Validate so that runEpoch never has to handle it.
func (p Priority) Validate() error {
	switch p {
	case Batch, Default, Immediate:
		return nil
	default:
		return newUnknownPriorityError(p)
	}
}
