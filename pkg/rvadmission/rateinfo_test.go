package rvadmission

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRateInfoExactBudget(t *testing.T) {
	ri := NewRateInfo(10.0, 0)
	ri.StartEpoch(0.1) // budget ~= 1 unit
	assert.True(t, ri.CanStart(0, 1))
	assert.False(t, ri.CanStart(1, 1))
	ri.EndEpoch(1, 0.1)

	ri.StartEpoch(0.1)
	assert.True(t, ri.CanStart(0, 1))
	assert.False(t, ri.CanStart(1, 1))
}

func TestRateInfoCarriesOverCreditForBurst(t *testing.T) {
	ri := NewRateInfo(10.0, 0)
	ri.StartEpoch(0.1) // budget ~= 1
	ri.EndEpoch(0, 0.1) // unused -> credit 1

	ri.StartEpoch(1.0) // budget = 10*1.0 + credit(1) = 11
	assert.True(t, ri.CanStart(0, 10))
	assert.False(t, ri.CanStart(10, 2))
}

func TestRateInfoMonotoneCanStart(t *testing.T) {
	ri := NewRateInfo(5.0, 0)
	ri.StartEpoch(1.0) // budget = 5

	for _, already := range []int64{4, 5, 6, 100} {
		assert.False(t, ri.CanStart(already, 3), "CanStart must stay false as alreadyReleased grows")
	}
}

func TestRateInfoImmediateOverreleaseAccumulatesDebt(t *testing.T) {
	ri := NewRateInfo(1.0, 0)
	ri.StartEpoch(0.1) // budget ~= 0.1
	// Simulate an Immediate request charging released without consulting
	// CanStart: released ends up far above the epoch's budget.
	ri.EndEpoch(5, 0.1)

	ri.StartEpoch(0.1)
	// The debt from the overrun should suppress admission for a while.
	assert.False(t, ri.CanStart(0, 1))
}

func TestRateInfoZeroRateNeverAdmitsWithoutImmediate(t *testing.T) {
	ri := NewRateInfo(0.0, 0)
	ri.StartEpoch(1.0)
	assert.False(t, ri.CanStart(0, 1))
	ri.EndEpoch(0, 1.0)
	ri.StartEpoch(1.0)
	assert.False(t, ri.CanStart(0, 1))
}

func TestRateInfoSetRatePreservesCredit(t *testing.T) {
	ri := NewRateInfo(10.0, 0)
	ri.StartEpoch(0.1)
	ri.EndEpoch(0, 0.1) // credit = 1

	ri.SetRate(0.0)
	ri.StartEpoch(1.0) // budget = 0*1.0 + credit(1) = 1
	assert.True(t, ri.CanStart(0, 1))
	assert.False(t, ri.CanStart(1, 1))
}
