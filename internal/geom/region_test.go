package geom

import (
	"testing"

	"github.com/df-mc/dragonfly/server/block/cube"
)

func TestSpan_NormalizesCorners(t *testing.T) {
	a := cube.Pos{11, 64, -3}
	b := cube.Pos{10, 70, -9}
	r1 := Span(a, b)
	r2 := Span(b, a)
	if r1 != r2 {
		t.Fatalf("span not symmetric: %v vs %v", r1, r2)
	}
	want := Region{Min: cube.Pos{10, 64, -9}, Max: cube.Pos{11, 70, -3}}
	if r1 != want {
		t.Fatalf("span=%v want=%v", r1, want)
	}
	if !r1.Contains(a) || !r1.Contains(b) {
		t.Fatalf("span must contain both corners")
	}
}

func TestRegion_SingleAndVolume(t *testing.T) {
	r := Single(cube.Pos{1, 2, 3})
	if !r.IsSingle() || r.Volume() != 1 {
		t.Fatalf("single region: single=%v volume=%d", r.IsSingle(), r.Volume())
	}
	if got := r.String(); got != "1 2 3" {
		t.Fatalf("String=%q", got)
	}
	g := r.Grow(2)
	if g.Volume() != 125 {
		t.Fatalf("grown volume=%d want=125", g.Volume())
	}
	if g.Grow(-1) != g {
		t.Fatalf("negative grow must be a no-op")
	}
	if got := Span(cube.Pos{0, 0, 0}, cube.Pos{1, 0, 0}).String(); got != "0 0 0..1 0 0" {
		t.Fatalf("String=%q", got)
	}
}

func TestRotate_ClockwiseFromAbove(t *testing.T) {
	order := []cube.Direction{cube.North, cube.East, cube.South, cube.West}
	for i, d := range order {
		next := order[(i+1)%len(order)]
		if got := RotateClockwise(d); got != next {
			t.Fatalf("cw(%s)=%s want=%s", DirectionName(d), DirectionName(got), DirectionName(next))
		}
		if got := RotateCounterclockwise(next); got != d {
			t.Fatalf("ccw(%s)=%s want=%s", DirectionName(next), DirectionName(got), DirectionName(d))
		}
	}
	if got := Step(cube.Pos{10, 64, 10}, cube.East); got != (cube.Pos{11, 64, 10}) {
		t.Fatalf("east step=%v", got)
	}
	if got := Step(cube.Pos{10, 64, 10}, cube.North); got != (cube.Pos{10, 64, 9}) {
		t.Fatalf("north step=%v", got)
	}
}

func TestParseDirection(t *testing.T) {
	for _, name := range []string{"north", "south", "west", "east"} {
		d, err := ParseDirection(name)
		if err != nil {
			t.Fatalf("ParseDirection(%q): %v", name, err)
		}
		if DirectionName(d) != name {
			t.Fatalf("round trip %q -> %q", name, DirectionName(d))
		}
	}
	if _, err := ParseDirection("up"); err == nil {
		t.Fatalf("expected error for vertical direction")
	}
	if _, err := ParseFace("sideways"); err == nil {
		t.Fatalf("expected error for unknown face")
	}
}
