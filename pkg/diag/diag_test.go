// Copyright 2026, the declstack authors. All rights reserved.

package diag_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/declstack/declstack/pkg/diag"
)

func TestBag_HasErrorsDistinguishesWarnings(t *testing.T) {
	bag := &diag.Bag{}
	bag.Append(diag.Warningf("careful"))
	assert.False(t, bag.HasErrors())

	bag.Append(diag.Errorf("boom"))
	assert.True(t, bag.HasErrors())
}

func TestBag_SortedOrdersWarningsBeforeErrors(t *testing.T) {
	bag := &diag.Bag{}
	bag.Append(diag.Errorf("e1"))
	bag.Append(diag.Warningf("w1"))
	bag.Append(diag.Errorf("e2"))

	sorted := bag.Sorted()
	require.Len(t, sorted, 3)
	assert.Equal(t, diag.Warning, sorted[0].Severity)
	assert.Equal(t, diag.Error, sorted[1].Severity)
	assert.Equal(t, diag.Error, sorted[2].Severity)
}

func TestBag_AppendSkipsNil(t *testing.T) {
	bag := &diag.Bag{}
	bag.Append(nil, diag.Errorf("real"))
	assert.Len(t, bag.All(), 1)
}

func TestRender_NoSpanOmitsLocationPrefix(t *testing.T) {
	d := diag.Errorf("unknown identifier 'foo'")
	out := diag.Render(nil, d)
	assert.Equal(t, "error: unknown identifier 'foo'", out)
}

func TestDidYouMeanHint_SingleAndMultipleCandidates(t *testing.T) {
	assert.Equal(t, "did you mean 'region'?", diag.DidYouMeanHint("regoin", []string{"region", "zone"}))
	assert.Equal(t, "", diag.DidYouMeanHint("region", []string{"region"}))

	hint := diag.DidYouMeanHintN("nam", []string{"name", "namespace", "zzzz"}, 2)
	assert.Contains(t, hint, "name")
	assert.Contains(t, hint, "namespace")
}
