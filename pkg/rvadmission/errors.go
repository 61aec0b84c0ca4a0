package rvadmission

import (
	"github.com/cockroachdb/errors"
)

// Sentinel markers for the error kinds of spec §7. Use errors.Is against
// these, not string matching.
var (
	// errRateMisconfigured marks an UpdateRates call rejected because it
	// named a negative rate.
	errRateMisconfigured = errors.New("rate misconfigured")
	// errStarved marks a request that was deferred past MaxDeferredEpochs
	// and failed rather than ever being admitted.
	errStarved = errors.New("starved: request deferred past the maximum age")
	// errUnknownPriority marks a Request whose Priority is not one of the
	// closed set of variants. Reaching this indicates a programmer error on
	// the caller's side, not a runtime condition the queue recovers from.
	errUnknownPriority = errors.New("unknown priority")
	// errShutdown marks a reply sent to a request that was still pending
	// when the queue was torn down.
	errShutdown = errors.New("tag queue shut down with request still pending")
	// errInvalidTagCost marks an AddRequest call rejected because one of
	// its tags carried a negative cost.
	errInvalidTagCost = errors.New("invalid tag cost")
)

func newRateMisconfiguredError(tag Tag, rate float64) error {
	return errors.Mark(errors.Newf("rate misconfigured: tag %q has negative rate %v", tag, rate), errRateMisconfigured)
}

func newStarvedError(tag Tag) error {
	return errors.Mark(errors.Newf("starved: request referencing tag %q deferred past max age", tag), errStarved)
}

func newUnknownPriorityError(p Priority) error {
	return errors.Mark(errors.Newf("unknown priority %d", int8(p)), errUnknownPriority)
}

func newInvalidTagCostError(tag Tag, count int64) error {
	return errors.Mark(errors.Newf("tag %q has negative cost %d", tag, count), errInvalidTagCost)
}

// IsInvalidTagCost reports whether err was produced by a Request carrying a
// negative per-tag cost.
func IsInvalidTagCost(err error) bool { return errors.Is(err, errInvalidTagCost) }

// IsRateMisconfigured reports whether err was produced by a rejected
// UpdateRates call.
func IsRateMisconfigured(err error) bool { return errors.Is(err, errRateMisconfigured) }

// IsStarved reports whether err was produced by the max-deferred-age bound.
func IsStarved(err error) bool { return errors.Is(err, errStarved) }

// IsUnknownPriority reports whether err was produced by a Request carrying
// an out-of-range Priority.
func IsUnknownPriority(err error) bool { return errors.Is(err, errUnknownPriority) }

// IsShutdown reports whether err was produced by TagQueue.Shutdown failing a
// still-pending request.
func IsShutdown(err error) bool { return errors.Is(err, errShutdown) }
