package lyrics

import (
	"errors"
	"fmt"
	"sort"
)

var (
	ErrMalformedLine = errors.New("malformed lyric line")
	ErrUnordered     = errors.New("lyric lines not ordered by start time")
)

// Line is one timed lyric line. Start and End are milliseconds and the
// interval is half-open: [Start, End). Empty Text marks an instrumental gap.
type Line struct {
	Start int64  `json:"start"`
	End   int64  `json:"end"`
	Text  string `json:"text"`
}

// Contains reports whether t falls inside [Start, End).
func (l Line) Contains(t int64) bool {
	return t >= l.Start && t < l.End
}

// Catalog is the immutable, start-ordered set of lines for one song.
// A new song gets a new Catalog.
type Catalog struct {
	lines []Line
}

// NewCatalog validates lines and copies them into a Catalog. Overlapping
// intervals are accepted; see Find for how they resolve.
func NewCatalog(lines []Line) (*Catalog, error) {
	for i, l := range lines {
		if l.Start < 0 || l.End <= l.Start {
			return nil, fmt.Errorf("%w: line %d [%d, %d) %q", ErrMalformedLine, i, l.Start, l.End, l.Text)
		}
		if i > 0 && l.Start < lines[i-1].Start {
			return nil, fmt.Errorf("%w: line %d starts at %d after %d", ErrUnordered, i, l.Start, lines[i-1].Start)
		}
	}
	return &Catalog{lines: append([]Line(nil), lines...)}, nil
}

// Empty returns a catalog with no lines ("no lyrics loaded").
func Empty() *Catalog {
	return &Catalog{}
}

// Lines returns a copy of the ordered lines.
func (c *Catalog) Lines() []Line {
	return append([]Line(nil), c.lines...)
}

func (c *Catalog) Len() int {
	return len(c.lines)
}

// Find returns the line whose interval contains t. When several lines
// overlap t, the one with the latest start wins, and among equal starts the
// later entry wins.
func (c *Catalog) Find(t int64) (Line, bool) {
	// first index whose start is after t
	n := sort.Search(len(c.lines), func(i int) bool { return c.lines[i].Start > t })
	for i := n - 1; i >= 0; i-- {
		if c.lines[i].Contains(t) {
			return c.lines[i], true
		}
	}
	return Line{}, false
}
