// Copyright 2026, the declstack authors. All rights reserved.

package source_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/declstack/declstack/pkg/source"
)

func TestArena_AddFileAssignsSequentialIDs(t *testing.T) {
	arena := source.NewArena()
	id1 := arena.AddFile("a.yaml", "a: 1\n")
	id2 := arena.AddFile("b.yaml", "b: 2\n")

	assert.NotEqual(t, id1, id2)
	assert.Equal(t, "a.yaml", arena.File(id1).Name)
	assert.Equal(t, "b.yaml", arena.File(id2).Name)
}

func TestArena_TextReturnsSpanSubstring(t *testing.T) {
	arena := source.NewArena()
	id := arena.AddFile("a.yaml", "name: demo\n")
	sp := source.Span{File: id, Start: 6, End: 10}
	assert.Equal(t, "demo", arena.Text(sp))
}

func TestArena_PosComputesLineAndColumn(t *testing.T) {
	arena := source.NewArena()
	id := arena.AddFile("a.yaml", "line1\nline2\nline3\n")

	line, col := arena.Pos(id, 0)
	assert.Equal(t, 1, line)
	assert.Equal(t, 1, col)

	line, col = arena.Pos(id, 6)
	assert.Equal(t, 2, line)
	assert.Equal(t, 1, col)

	line, col = arena.Pos(id, 8)
	assert.Equal(t, 2, line)
	assert.Equal(t, 3, col)
}

func TestArena_OffsetIsInverseOfPos(t *testing.T) {
	arena := source.NewArena()
	id := arena.AddFile("a.yaml", "line1\nline2\nline3\n")

	offset := arena.Offset(id, 2, 3)
	line, col := arena.Pos(id, offset)
	assert.Equal(t, 2, line)
	assert.Equal(t, 3, col)
}

func TestSpan_ValidRejectsZeroFileAndInvertedRange(t *testing.T) {
	assert.False(t, source.Span{}.Valid())
	assert.False(t, source.Span{File: 1, Start: 5, End: 2}.Valid())
	assert.True(t, source.Span{File: 1, Start: 2, End: 5}.Valid())
	assert.True(t, source.Span{File: 1, Start: 2, End: 2}.Valid())
}

func TestSpan_MergeCoversBothRanges(t *testing.T) {
	a := source.Span{File: 1, Start: 2, End: 5}
	b := source.Span{File: 1, Start: 4, End: 9}
	merged := a.Merge(b)
	assert.Equal(t, source.Span{File: 1, Start: 2, End: 9}, merged)
}

func TestSpan_MergeAcrossFilesReturnsOriginal(t *testing.T) {
	a := source.Span{File: 1, Start: 2, End: 5}
	b := source.Span{File: 2, Start: 0, End: 9}
	assert.Equal(t, a, a.Merge(b))
}
