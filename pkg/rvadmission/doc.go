// Package rvadmission implements a tag-based admission queue for read-version
// requests. Clients submit requests tagged with one or more application
// labels; an external rate controller publishes per-tag target rates. The
// queue admits requests that fit their tags' budgets for the current epoch,
// defers the rest, and hands admitted requests to the caller bucketed by
// priority.
//
// TagQueue is not safe for concurrent use. Callers are expected to drive all
// of AddRequest, UpdateRates and RunEpoch from a single goroutine, typically
// the one running an epochdriver.Driver.
package rvadmission
