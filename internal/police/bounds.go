package police

import (
	"github.com/df-mc/dragonfly/server/block/cube"

	"ledgerpolice.dipix.pw/internal/block"
	"ledgerpolice.dipix.pw/internal/geom"
)

// Observation is the block found at Pos when a lookup starts.
type Observation struct {
	Pos   cube.Pos
	State block.State
}

// ResolveBounds returns the cells a lookup at obs must cover: the cell itself,
// plus the other half when the block is one side of a double chest.
func ResolveBounds(obs Observation) geom.Region {
	if other, ok := PairedCell(obs); ok {
		return geom.Span(obs.Pos, other)
	}
	return geom.Single(obs.Pos)
}

// PairedCell derives the partner cell of a paired container from its own
// orientation: the left half finds its partner by turning facing
// counterclockwise, the right half by turning it clockwise.
func PairedCell(obs Observation) (cube.Pos, bool) {
	if !obs.State.IsPairable() {
		return cube.Pos{}, false
	}
	switch obs.State.Chest {
	case block.ChestLeft:
		return geom.Step(obs.Pos, geom.RotateCounterclockwise(obs.State.Facing)), true
	case block.ChestRight:
		return geom.Step(obs.Pos, geom.RotateClockwise(obs.State.Facing)), true
	}
	return cube.Pos{}, false
}
