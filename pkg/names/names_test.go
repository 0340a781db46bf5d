// Copyright 2026, the declstack authors. All rights reserved.

package names_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/declstack/declstack/pkg/names"
)

func TestAssign_LowerCamelCasesSourceNames(t *testing.T) {
	a := names.New(nil)
	result := a.Assign([]names.Entry{
		{SourceName: "my-bucket-name", Category: names.CategoryResource},
	})
	assert.Equal(t, "myBucketName", result["my-bucket-name"])
}

func TestAssign_CollisionAcrossCategoriesFallsBackToSuffix(t *testing.T) {
	a := names.New(nil)
	result := a.Assign([]names.Entry{
		{SourceName: "bucket-thing", Category: names.CategoryVariable},
		{SourceName: "bucketThing", Category: names.CategoryResource},
	})
	// Both source names legalize/case to "bucketThing"; config/output/variable
	// is processed before resource, so the variable claims the bare name and
	// the resource falls back to its category suffix.
	assert.Equal(t, "bucketThing", result["bucket-thing"])
	assert.Equal(t, "bucketThingResource", result["bucketThing"])
}

func TestAssign_ReservedSeedWordsAreAvoided(t *testing.T) {
	a := names.New([]string{"type"})
	result := a.Assign([]names.Entry{
		{SourceName: "type", Category: names.CategoryVariable},
	})
	assert.NotEqual(t, "type", result["type"])
	assert.Equal(t, "typeVar", result["type"])
}

func TestLegalize_NonIdentCharsAndLeadingDigit(t *testing.T) {
	a := names.New(nil)
	result := a.Assign([]names.Entry{
		{SourceName: "9lives!", Category: names.CategoryResource},
	})
	// leading digit gets an underscore prefix before case conversion
	assert.NotEmpty(t, result["9lives!"])
	assert.NotContains(t, result["9lives!"], "!")
}
