package rvadmission

// DefaultBurstMultiplier bounds how many seconds' worth of a tag's rate it
// may carry forward as credit from under-use, and symmetrically how many
// seconds' worth of debt an Immediate-priority overrun may accumulate: both
// are capped at burstMultiplier*rate. Grounded on quotapool.TokenBucket's
// burst limit. It is the value NewRateInfo falls back to when given a
// non-positive multiplier.
const DefaultBurstMultiplier = 2.0

// RateInfo accounts budget within an epoch for a single tag. It answers two
// questions: given alreadyReleased units spent this epoch, may count more be
// released (CanStart); and, at epoch end, having actually released released
// units over elapsed seconds, how should the running credit/debt be updated
// (EndEpoch).
//
// The accounting is a token-bucket variant: each epoch's budget (limit) is
// rate*elapsed plus whatever credit (or debt) carried over from the last
// epoch's under-use (or over-release). Credit and debt are both capped at
// burstMultiplier*rate so that a long idle tag cannot accumulate unbounded
// burst, and a single Immediate-priority overrun cannot indebt a tag forever.
type RateInfo struct {
	rate            float64
	burstMultiplier float64
	credit          float64
	limit           float64
}

// NewRateInfo initializes a RateInfo with no accounting history. rate must
// be non-negative; negative rates are rejected by TagQueue.UpdateRates
// before a RateInfo is ever constructed. A non-positive burstMultiplier
// falls back to DefaultBurstMultiplier.
func NewRateInfo(rate, burstMultiplier float64) *RateInfo {
	if burstMultiplier <= 0 {
		burstMultiplier = DefaultBurstMultiplier
	}
	return &RateInfo{rate: rate, burstMultiplier: burstMultiplier}
}

// SetRate replaces the target rate, preserving accumulated credit or debt.
func (ri *RateInfo) SetRate(rate float64) {
	ri.rate = rate
}

// Rate returns the currently configured target rate.
func (ri *RateInfo) Rate() float64 {
	return ri.rate
}

// burstCap is the magnitude bound on credit/debt.
func (ri *RateInfo) burstCap() float64 {
	return ri.burstMultiplier * ri.rate
}

// StartEpoch establishes the budget available for the epoch about to run:
// the fresh allowance warranted by elapsed seconds at the current rate, plus
// whatever credit (or minus whatever debt) carried over from the previous
// epoch's EndEpoch call.
func (ri *RateInfo) StartEpoch(elapsed float64) {
	limit := ri.rate*elapsed + ri.credit
	if limit < 0 {
		limit = 0
	}
	ri.limit = limit
}

// CanStart reports whether releasing count additional units, given
// alreadyReleased already released this epoch, stays within the epoch's
// established budget. CanStart is monotone in alreadyReleased: once false
// for a given alreadyReleased, it stays false for any larger value.
func (ri *RateInfo) CanStart(alreadyReleased, count int64) bool {
	return float64(alreadyReleased+count) <= ri.limit
}

// EndEpoch reconciles the epoch's actual release against its budget,
// updating the carried credit/debt for the next epoch's StartEpoch. elapsed
// is accepted for symmetry with StartEpoch and to satisfy the source
// contract's signature, though this implementation's bookkeeping only needs
// the leftover between limit and released.
func (ri *RateInfo) EndEpoch(released int64, elapsed float64) {
	leftover := ri.limit - float64(released)
	maxMagnitude := ri.burstCap()
	switch {
	case leftover > maxMagnitude:
		leftover = maxMagnitude
	case leftover < -maxMagnitude:
		leftover = -maxMagnitude
	}
	ri.credit = leftover
}
