package ledger

import (
	"errors"
	"testing"
	"time"

	"github.com/df-mc/dragonfly/server/block/cube"
)

func TestParseDuration(t *testing.T) {
	cases := map[string]time.Duration{
		"30s":        30 * time.Second,
		"5m":         5 * time.Minute,
		"2h30m":      2*time.Hour + 30*time.Minute,
		"1d":         24 * time.Hour,
		"1w2d3h4m5s": 9*24*time.Hour + 3*time.Hour + 4*time.Minute + 5*time.Second,
	}
	for in, want := range cases {
		got, err := ParseDuration(in)
		if err != nil {
			t.Fatalf("ParseDuration(%q): %v", in, err)
		}
		if got != want {
			t.Fatalf("ParseDuration(%q)=%v want=%v", in, got, want)
		}
	}
	for _, bad := range []string{"", "10", "h", "3y", "1d2", "999999999w", "15250w15250w"} {
		if _, err := ParseDuration(bad); err == nil {
			t.Fatalf("ParseDuration(%q): expected error", bad)
		}
	}
}

func TestParseParams(t *testing.T) {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	origin := cube.Pos{100, 64, -20}

	q, err := ParseParams("range:4 action:block-break !source:@fire object:chest world:overworld after:2d before:1h", origin, now, 16)
	if err != nil {
		t.Fatalf("ParseParams: %v", err)
	}
	if q.Bounds == nil || q.Bounds.Min != (cube.Pos{96, 60, -24}) || q.Bounds.Max != (cube.Pos{104, 68, -16}) {
		t.Fatalf("bounds=%v", q.Bounds)
	}
	if len(q.Actions) != 1 || q.Actions[0] != Allow("block-break") {
		t.Fatalf("actions=%v", q.Actions)
	}
	if len(q.Sources) != 1 || q.Sources[0] != Deny("fire") {
		t.Fatalf("sources=%v", q.Sources)
	}
	if len(q.Objects) != 1 || q.Objects[0] != Allow("minecraft:chest") {
		t.Fatalf("objects=%v", q.Objects)
	}
	if len(q.Worlds) != 1 || q.Worlds[0] != Allow("minecraft:overworld") {
		t.Fatalf("worlds=%v", q.Worlds)
	}
	if !q.After.Equal(now.Add(-48*time.Hour)) || !q.Before.Equal(now.Add(-time.Hour)) {
		t.Fatalf("after=%v before=%v", q.After, q.Before)
	}
}

func TestParseParams_Errors(t *testing.T) {
	now := time.Now()
	for _, in := range []string{
		"range:40",
		"range:0",
		"!range:3",
		"colour:red",
		"action",
		"after:soon",
		"!before:1d",
		"after:999999999w",
		"before:999999999d",
	} {
		_, err := ParseParams(in, cube.Pos{}, now, 32)
		var pe *ParamError
		if !errors.As(err, &pe) {
			t.Fatalf("ParseParams(%q): err=%v want ParamError", in, err)
		}
	}
}

func TestParseParams_EmptyInputIsEmptyQuery(t *testing.T) {
	q, err := ParseParams("   ", cube.Pos{}, time.Now(), 8)
	if err != nil {
		t.Fatalf("ParseParams: %v", err)
	}
	if !q.IsEmpty() {
		t.Fatalf("expected empty query, got %+v", q)
	}
}

func TestQueryMatches_NegatableSemantics(t *testing.T) {
	a := Action{Type: ActionBlockBreak, World: "minecraft:overworld", Source: "player", SourceName: "alice", Object: "minecraft:stone", Time: time.Unix(100, 0)}

	cases := []struct {
		name string
		q    Query
		want bool
	}{
		{"empty", Query{}, true},
		{"allow world", Query{Worlds: []Negatable[string]{Allow("minecraft:overworld")}}, true},
		{"other world", Query{Worlds: []Negatable[string]{Allow("minecraft:the_nether")}}, false},
		{"deny source", Query{Sources: []Negatable[string]{Deny("alice")}}, false},
		{"deny other source", Query{Sources: []Negatable[string]{Deny("bob")}}, true},
		{"after inclusive", Query{After: time.Unix(100, 0)}, true},
		{"after later", Query{After: time.Unix(101, 0)}, false},
		{"before exclusive", Query{Before: time.Unix(100, 0)}, false},
	}
	for _, tc := range cases {
		if got := tc.q.Matches(a); got != tc.want {
			t.Fatalf("%s: Matches=%v want=%v", tc.name, got, tc.want)
		}
	}
}
