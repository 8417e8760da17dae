package syntax

import "sort"

// LineIndex converts byte offsets to 0-based line and column positions.
type LineIndex struct {
	starts []uint32
}

// Position is a 0-based line/column pair. Columns count bytes.
type Position struct {
	Line int
	Col  int
}

// NewLineIndex indexes the line starts of text.
func NewLineIndex(text string) *LineIndex {
	starts := []uint32{0}
	for i := 0; i < len(text); i++ {
		if text[i] == '\n' {
			starts = append(starts, uint32(i+1))
		}
	}
	return &LineIndex{starts: starts}
}

// Position returns the line and column of offset.
func (li *LineIndex) Position(offset uint32) Position {
	line := sort.Search(len(li.starts), func(i int) bool { return li.starts[i] > offset }) - 1
	return Position{Line: line, Col: int(offset - li.starts[line])}
}

// Lines returns the number of lines.
func (li *LineIndex) Lines() int {
	return len(li.starts)
}
