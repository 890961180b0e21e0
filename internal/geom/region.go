package geom

import (
	"fmt"

	"github.com/df-mc/dragonfly/server/block/cube"
)

// Region is an axis-aligned box of block cells, inclusive on both corners.
// Min <= Max holds componentwise for every Region built through Single or Span.
type Region struct {
	Min cube.Pos `json:"min"`
	Max cube.Pos `json:"max"`
}

func Single(p cube.Pos) Region { return Region{Min: p, Max: p} }

// Span returns the smallest Region holding both a and b, in either order.
func Span(a, b cube.Pos) Region {
	var r Region
	for i := 0; i < 3; i++ {
		if a[i] <= b[i] {
			r.Min[i], r.Max[i] = a[i], b[i]
		} else {
			r.Min[i], r.Max[i] = b[i], a[i]
		}
	}
	return r
}

func (r Region) IsSingle() bool { return r.Min == r.Max }

func (r Region) Contains(p cube.Pos) bool {
	return p[0] >= r.Min[0] && p[0] <= r.Max[0] &&
		p[1] >= r.Min[1] && p[1] <= r.Max[1] &&
		p[2] >= r.Min[2] && p[2] <= r.Max[2]
}

// Volume is the number of cells inside the region.
func (r Region) Volume() int {
	return (r.Max[0] - r.Min[0] + 1) * (r.Max[1] - r.Min[1] + 1) * (r.Max[2] - r.Min[2] + 1)
}

// Grow expands the region by n cells on every side. Negative n is treated as zero.
func (r Region) Grow(n int) Region {
	if n <= 0 {
		return r
	}
	return Region{
		Min: cube.Pos{r.Min[0] - n, r.Min[1] - n, r.Min[2] - n},
		Max: cube.Pos{r.Max[0] + n, r.Max[1] + n, r.Max[2] + n},
	}
}

func (r Region) String() string {
	if r.IsSingle() {
		return FormatPos(r.Min)
	}
	return FormatPos(r.Min) + ".." + FormatPos(r.Max)
}

func FormatPos(p cube.Pos) string { return fmt.Sprintf("%d %d %d", p[0], p[1], p[2]) }
