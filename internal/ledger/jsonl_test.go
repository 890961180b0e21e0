package ledger

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/df-mc/dragonfly/server/block/cube"

	"ledgerpolice.dipix.pw/internal/geom"
)

func TestAuditLog_RotateAndRead(t *testing.T) {
	dir := t.TempDir()
	clock := time.Date(2026, 5, 1, 10, 59, 0, 0, time.UTC)
	var rotated []string
	l := NewAuditLog(dir, WriterOptions{
		Now:      func() time.Time { return clock },
		OnRotate: func(p string) { rotated = append(rotated, p) },
	})

	write := func(pos cube.Pos, typ string) {
		t.Helper()
		if err := l.Record(Action{Time: clock, Type: typ, World: "minecraft:overworld", Pos: pos, Object: "minecraft:stone", Source: "player", SourceName: "dave"}); err != nil {
			t.Fatalf("Record: %v", err)
		}
	}
	write(cube.Pos{1, 2, 3}, ActionBlockPlace)
	clock = clock.Add(2 * time.Minute) // next hour
	write(cube.Pos{1, 2, 3}, ActionBlockBreak)
	write(cube.Pos{9, 9, 9}, ActionBlockPlace)
	if err := l.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	if len(rotated) != 2 {
		t.Fatalf("rotated=%v want 2 segments", rotated)
	}
	for _, p := range rotated {
		if _, err := os.Stat(p); err != nil {
			t.Fatalf("rotated segment missing: %v", err)
		}
	}
	if filepath.Base(rotated[0]) != "audit-2026-05-01-10.jsonl.zst" {
		t.Fatalf("first segment=%s", filepath.Base(rotated[0]))
	}

	r := geom.Single(cube.Pos{1, 2, 3})
	got, err := ReadAuditLog(dir, Query{Bounds: &r})
	if err != nil {
		t.Fatalf("ReadAuditLog: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d actions want 2", len(got))
	}
	if got[0].Type != ActionBlockBreak || got[1].Type != ActionBlockPlace {
		t.Fatalf("order: %s then %s", got[0].Type, got[1].Type)
	}
}
