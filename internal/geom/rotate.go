package geom

import (
	"fmt"
	"strings"

	"github.com/df-mc/dragonfly/server/block/cube"
)

// Horizontal rotations are about the Y axis as seen from above. North is -Z and
// east is +X, so a clockwise turn walks north -> east -> south -> west.

func RotateClockwise(d cube.Direction) cube.Direction { return d.RotateRight() }

func RotateCounterclockwise(d cube.Direction) cube.Direction { return d.RotateLeft() }

// Step returns the cell adjacent to p in direction d.
func Step(p cube.Pos, d cube.Direction) cube.Pos { return p.Side(d.Face()) }

func ParseDirection(s string) (cube.Direction, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "north":
		return cube.North, nil
	case "south":
		return cube.South, nil
	case "west":
		return cube.West, nil
	case "east":
		return cube.East, nil
	}
	return cube.North, fmt.Errorf("unknown direction %q", s)
}

func DirectionName(d cube.Direction) string {
	switch d {
	case cube.North:
		return "north"
	case cube.South:
		return "south"
	case cube.West:
		return "west"
	case cube.East:
		return "east"
	}
	return "north"
}

func ParseFace(s string) (cube.Face, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "down":
		return cube.FaceDown, nil
	case "up":
		return cube.FaceUp, nil
	case "north":
		return cube.FaceNorth, nil
	case "south":
		return cube.FaceSouth, nil
	case "west":
		return cube.FaceWest, nil
	case "east":
		return cube.FaceEast, nil
	}
	return cube.FaceUp, fmt.Errorf("unknown face %q", s)
}
