package rvadmission

// TagQueue accepts requests, reconciles rate tables, and once per epoch
// splits pending and deferred requests into admitted (bucketed by priority)
// and carried-over (deferred). It is not safe for concurrent use; every
// method is meant to be called from a single goroutine — see the package
// doc comment and pkg/epochdriver.
type TagQueue struct {
	// MaxDeferredEpochs bounds how many epochs a request may spend in
	// delayedRequests before RunEpoch fails it with Starved. Zero disables
	// the bound.
	MaxDeferredEpochs int64

	// BurstMultiplier is passed to NewRateInfo for every tag newly added by
	// UpdateRates. Non-positive falls back to DefaultBurstMultiplier.
	// Changing it only affects tags added afterward; existing RateInfos keep
	// the multiplier they were constructed with.
	BurstMultiplier float64

	rateInfos       map[Tag]*RateInfo
	newRequests     []*Request
	delayedRequests []*Request
	releasedInEpoch map[Tag]int64
	epoch           int64
}

// NewTagQueue constructs an empty TagQueue with no configured tags.
func NewTagQueue() *TagQueue {
	return &TagQueue{
		rateInfos:       make(map[Tag]*RateInfo),
		releasedInEpoch: make(map[Tag]int64),
	}
}

// UpdateRates replaces the rate table. For each tag in newRates, an existing
// RateInfo has its rate updated in place (preserving credit/debt); a new tag
// gets a fresh RateInfo. Any tag present in the queue's table but absent
// from newRates is removed, which makes that tag unthrottled until it
// reappears. The update is all-or-nothing: a negative rate anywhere in
// newRates rejects the entire call and leaves rateInfos untouched.
func (q *TagQueue) UpdateRates(newRates map[Tag]float64) error {
	for tag, rate := range newRates {
		if rate < 0 {
			return newRateMisconfiguredError(tag, rate)
		}
	}

	for tag, rate := range newRates {
		if ri, ok := q.rateInfos[tag]; ok {
			ri.SetRate(rate)
		} else {
			q.rateInfos[tag] = NewRateInfo(rate, q.BurstMultiplier)
		}
	}
	for tag := range q.rateInfos {
		if _, ok := newRates[tag]; !ok {
			delete(q.rateInfos, tag)
		}
	}
	return nil
}

// canStartTag reports whether tag has no configured RateInfo (unthrottled),
// or its RateInfo authorizes releasing count more units given what has
// already been released against it this epoch.
func (q *TagQueue) canStartTag(tag Tag, count int64) bool {
	ri, ok := q.rateInfos[tag]
	if !ok {
		return true
	}
	return ri.CanStart(q.releasedInEpoch[tag], count)
}

// canStart reports whether req may be admitted given the current epoch's
// released-so-far accounting. Immediate priority always returns true.
// Otherwise every tag in req.Tags must individually have budget —
// admission is conjunctive across a request's tag set.
func (q *TagQueue) canStart(req *Request) bool {
	if req.Priority == Immediate {
		return true
	}
	for tag, count := range req.Tags {
		if !q.canStartTag(tag, count) {
			return false
		}
	}
	return true
}

// AddRequest enqueues req for consideration in the next RunEpoch call. It is
// O(1) and makes no admission decision. It rejects structurally invalid
// requests (bad priority, negative tag cost) immediately rather than letting
// them reach RunEpoch, per spec §7.
func (q *TagQueue) AddRequest(req *Request) error {
	if err := req.validate(); err != nil {
		return err
	}
	q.newRequests = append(q.newRequests, req)
	return nil
}

// Buckets holds the three ordered output sequences produced by one RunEpoch
// call. Within each bucket, new arrivals (in arrival order) are followed by
// previously-deferred requests (in their original deferral order). Each
// field is an unbounded Go slice, so a BucketOverflow error kind has no
// corresponding failure mode here: push always succeeds for a valid
// Priority, and growth is bounded only by available memory.
type Buckets struct {
	Batch     []*Request
	Default   []*Request
	Immediate []*Request
}

func (b *Buckets) push(req *Request) {
	switch req.Priority {
	case Batch:
		b.Batch = append(b.Batch, req)
	case Default:
		b.Default = append(b.Default, req)
	case Immediate:
		b.Immediate = append(b.Immediate, req)
	default:
		// Unreachable: AddRequest already rejected any other Priority.
		panic(newUnknownPriorityError(req.Priority))
	}
}

// RunEpoch is the heart of the design: it starts a new accounting window,
// drains new arrivals then previously-deferred requests (each in FIFO
// order) through the admission test, charges every admitted request's tags,
// carries non-admitted requests into the next epoch's deferred set, and
// finally reconciles every tag's RateInfo against elapsed and what was
// actually released. elapsed is the true wall-clock seconds since the
// previous RunEpoch call, as measured by the caller (typically
// epochdriver.Driver).
func (q *TagQueue) RunEpoch(elapsed float64) Buckets {
	q.epoch++
	q.startEpoch(elapsed)

	survivors := q.failStarvedAndFilter(q.delayedRequests[:0:0])

	var buckets Buckets
	var newDelayed []*Request
	newDelayed = q.admitInto(&buckets, q.newRequests, newDelayed)
	q.newRequests = q.newRequests[:0]

	newDelayed = q.admitInto(&buckets, survivors, newDelayed)
	q.delayedRequests = newDelayed

	q.endEpoch(elapsed)
	return buckets
}

// startEpoch marks the beginning of a new accounting window: every tag's
// RateInfo establishes this epoch's budget, and releasedInEpoch is reset.
func (q *TagQueue) startEpoch(elapsed float64) {
	for _, ri := range q.rateInfos {
		ri.StartEpoch(elapsed)
	}
	for tag := range q.releasedInEpoch {
		delete(q.releasedInEpoch, tag)
	}
}

// endEpoch reconciles every configured tag's RateInfo with what was
// actually released this epoch (zero if the tag saw no release).
func (q *TagQueue) endEpoch(elapsed float64) {
	for tag, ri := range q.rateInfos {
		ri.EndEpoch(q.releasedInEpoch[tag], elapsed)
	}
}

// failStarvedAndFilter removes from delayedRequests any entry older than
// MaxDeferredEpochs, failing it with Starved, and returns the requests that
// remain eligible for this epoch's admission pass, appended onto dst.
func (q *TagQueue) failStarvedAndFilter(dst []*Request) []*Request {
	if q.MaxDeferredEpochs <= 0 {
		return append(dst, q.delayedRequests...)
	}
	for _, req := range q.delayedRequests {
		if q.epoch-req.deferredAtEpoch > q.MaxDeferredEpochs {
			var tag Tag
			for t := range req.Tags {
				tag = t
				break
			}
			req.reply(Outcome{Err: newStarvedError(tag)})
			continue
		}
		dst = append(dst, req)
	}
	return dst
}

// admitInto runs the admission test over reqs in FIFO order, pushing
// admitted requests into buckets and charging their tags, and appending
// non-admitted requests onto newDelayed (preserving arrival order).
func (q *TagQueue) admitInto(buckets *Buckets, reqs []*Request, newDelayed []*Request) []*Request {
	for _, req := range reqs {
		if q.canStart(req) {
			for tag, count := range req.Tags {
				q.releasedInEpoch[tag] += count
			}
			buckets.push(req)
			continue
		}
		if req.deferredAtEpoch == 0 {
			req.deferredAtEpoch = q.epoch
		}
		newDelayed = append(newDelayed, req)
	}
	return newDelayed
}

// Shutdown drains every pending and deferred request, failing each with a
// cancellation Outcome so that no caller is left waiting on a reply channel
// that will never be fulfilled.
func (q *TagQueue) Shutdown() {
	for _, req := range q.newRequests {
		req.reply(Outcome{Err: errShutdown})
	}
	for _, req := range q.delayedRequests {
		req.reply(Outcome{Err: errShutdown})
	}
	q.newRequests = nil
	q.delayedRequests = nil
}

// DeferredCount returns the number of requests currently carried over in
// delayedRequests. Useful for introspection and metrics; RunEpoch does not
// consult it.
func (q *TagQueue) DeferredCount() int {
	return len(q.delayedRequests)
}

// Tags returns the set of tags currently configured with a RateInfo. Mainly
// useful for tests and introspection.
func (q *TagQueue) Tags() []Tag {
	tags := make([]Tag, 0, len(q.rateInfos))
	for tag := range q.rateInfos {
		tags = append(tags, tag)
	}
	return tags
}
