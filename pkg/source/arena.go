// Copyright 2026, the declstack authors. All rights reserved.

// Package source owns the text of every file loaded into a compilation and
// maps byte offsets to human-readable line/column positions. It sits at the
// bottom of the dependency order: every other package in this module refers
// to spans rooted in an Arena rather than copying file text around.
package source

import "sort"

// FileID identifies a file owned by an Arena. The zero value is never valid.
type FileID int

// File is one arena-owned source file.
type File struct {
	Name string
	Text string
	idx  lineIndex
}

// Arena owns the text of every loaded file for the lifetime of a compile. It
// outlives the AST built from it, which in turn outlives evaluation.
type Arena struct {
	files []File
}

// NewArena creates an empty arena.
func NewArena() *Arena {
	return &Arena{}
}

// AddFile registers a file's contents and returns its FileID.
func (a *Arena) AddFile(name, text string) FileID {
	a.files = append(a.files, File{Name: name, Text: text, idx: newLineIndex(text)})
	return FileID(len(a.files))
}

// File returns the file registered under id. It panics if id is out of range;
// every FileID in circulation was minted by this same arena.
func (a *Arena) File(id FileID) *File {
	return &a.files[id-1]
}

// Text is a convenience accessor for the substring covered by span.
func (a *Arena) Text(sp Span) string {
	f := a.File(sp.File)
	return f.Text[sp.Start:sp.End]
}

// Pos converts a byte offset within id into a 1-based line and column.
func (a *Arena) Pos(id FileID, offset int) (line, col int) {
	return a.File(id).idx.pos(offset)
}

// Offset converts a 1-based line and column within id back into a byte
// offset. Used when a downstream parser (e.g. yaml.v3) reports positions as
// line/column and spans need to be rooted in arena byte offsets.
func (a *Arena) Offset(id FileID, line, col int) int {
	idx := a.File(id).idx
	if line < 1 {
		line = 1
	}
	if line > len(idx.starts) {
		line = len(idx.starts)
	}
	return idx.starts[line-1] + col - 1
}

// lineIndex is a sorted list of line-start byte offsets, binary-searched to
// turn a byte offset into a (line, column) pair.
type lineIndex struct {
	starts []int
}

func newLineIndex(text string) lineIndex {
	starts := []int{0}
	for i := 0; i < len(text); i++ {
		if text[i] == '\n' {
			starts = append(starts, i+1)
		}
	}
	return lineIndex{starts: starts}
}

func (li lineIndex) pos(offset int) (line, col int) {
	// sort.Search finds the first line start greater than offset; the line
	// containing offset is the one before it.
	i := sort.Search(len(li.starts), func(i int) bool { return li.starts[i] > offset })
	line = i // 1-based: starts[0] is line 1
	col = offset - li.starts[i-1] + 1
	return line, col
}
