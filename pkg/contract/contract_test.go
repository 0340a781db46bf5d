// Copyright 2026, the declstack authors. All rights reserved.

package contract_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/declstack/declstack/pkg/contract"
)

func TestAssertf_PassesSilentlyWhenTrue(t *testing.T) {
	assert.NotPanics(t, func() {
		contract.Assertf(1+1 == 2, "math is broken")
	})
}

func TestAssertf_PanicsWithFormattedMessageWhenFalse(t *testing.T) {
	assert.PanicsWithValue(t, "contract violation: expected 2, got 3", func() {
		contract.Assertf(false, "expected %d, got %d", 2, 3)
	})
}

func TestFailf_AlwaysPanics(t *testing.T) {
	assert.PanicsWithValue(t, "contract violation: unreachable", func() {
		contract.Failf("unreachable")
	})
}

func TestIgnoreError_DoesNothing(t *testing.T) {
	assert.NotPanics(t, func() {
		contract.IgnoreError(assert.AnError)
		contract.IgnoreError(nil)
	})
}
