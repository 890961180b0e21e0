package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/df-mc/dragonfly/server/block/cube"
	"github.com/dustin/go-humanize"
	"github.com/rodaine/table"

	"ledgerpolice.dipix.pw/internal/geom"
	"ledgerpolice.dipix.pw/internal/ledger"
)

func main() {
	if len(os.Args) >= 2 {
		switch os.Args[1] {
		case "audit":
			auditCmd(os.Args[2:])
			return
		case "ledger":
			ledgerCmd(os.Args[2:])
			return
		case "policing":
			policingCmd(os.Args[2:])
			return
		case "lookup":
			lookupCmd(os.Args[2:])
			return
		}
	}
	fmt.Fprintln(os.Stderr, "usage: admin audit|ledger|policing|lookup [flags]")
	os.Exit(2)
}

// auditCmd scans the compressed audit log, which keeps every action even
// when the ledger database dropped writes.
func auditCmd(args []string) {
	fs := flag.NewFlagSet("audit", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	worldID := fs.String("world", "", "world id filter (optional)")
	aabb := fs.String("aabb", "", "AABB filter: x1,y1,z1:x2,y2,z2 (optional)")
	since := fs.String("since", "", "only actions newer than this, e.g. 2d3h (optional)")
	params := fs.String("params", "", "search params, e.g. \"source:alice !action:block-place\" (optional)")
	limit := fs.Int("limit", 50, "max rows to print")
	_ = fs.Parse(args)

	q, err := buildQuery(*worldID, *aabb, *since, *params, time.Now())
	if err != nil {
		fmt.Fprintln(os.Stderr, "bad filter:", err)
		os.Exit(2)
	}
	acts, err := ledger.ReadAuditLog(*dataDir, q)
	if err != nil {
		fmt.Fprintln(os.Stderr, "read audit:", err)
		os.Exit(1)
	}
	if len(acts) == 0 {
		fmt.Println("no matching audit entries")
		return
	}
	total := len(acts)
	if *limit > 0 && len(acts) > *limit {
		acts = acts[:*limit]
	}
	printActions(os.Stdout, acts, time.Now())
	fmt.Printf("%d of %d entries\n", len(acts), total)
}

// ledgerCmd runs a paged search against the ledger database.
func ledgerCmd(args []string) {
	fs := flag.NewFlagSet("ledger", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	dbPath := fs.String("db", "", "sqlite db path (optional)")
	worldID := fs.String("world", "", "world id filter (optional)")
	aabb := fs.String("aabb", "", "AABB filter: x1,y1,z1:x2,y2,z2 (optional)")
	since := fs.String("since", "", "only actions newer than this, e.g. 2d3h (optional)")
	params := fs.String("params", "", "search params (optional)")
	page := fs.Int("page", 1, "result page")
	pageSize := fs.Int("page_size", 20, "rows per page")
	_ = fs.Parse(args)

	path := strings.TrimSpace(*dbPath)
	if path == "" {
		path = filepath.Join(*dataDir, "ledger", "ledger.sqlite")
	}
	if _, err := os.Stat(path); err != nil {
		fmt.Fprintln(os.Stderr, "open:", err)
		os.Exit(1)
	}
	q, err := buildQuery(*worldID, *aabb, *since, *params, time.Now())
	if err != nil {
		fmt.Fprintln(os.Stderr, "bad filter:", err)
		os.Exit(2)
	}
	if q.IsEmpty() {
		fmt.Fprintln(os.Stderr, "give at least one of -world, -aabb, -since, -params")
		os.Exit(2)
	}

	store, err := ledger.OpenSQLite(path, ledger.Options{PageSize: *pageSize})
	if err != nil {
		fmt.Fprintln(os.Stderr, "open:", err)
		os.Exit(1)
	}
	defer store.Close()

	res, err := store.Search(context.Background(), q, *page)
	if err != nil {
		fmt.Fprintln(os.Stderr, "search:", err)
		os.Exit(1)
	}
	if res.Empty() {
		fmt.Println("no results")
		return
	}
	printActions(os.Stdout, res.Actions, time.Now())
	fmt.Printf("page %d/%d (%d results)\n", res.Page, res.Pages, res.Total)
}

func buildQuery(worldID, aabb, since, params string, now time.Time) (ledger.Query, error) {
	var q ledger.Query
	if strings.TrimSpace(params) != "" {
		var err error
		// No player position here, so range: is rejected below.
		q, err = ledger.ParseParams(params, cube.Pos{}, now, 0)
		if err != nil {
			return ledger.Query{}, err
		}
		if q.Bounds != nil {
			return ledger.Query{}, fmt.Errorf("range: needs a position, use -aabb")
		}
	}
	if w := strings.ToLower(strings.TrimSpace(worldID)); w != "" {
		if !strings.Contains(w, ":") {
			w = "minecraft:" + w
		}
		q.Worlds = append(q.Worlds, ledger.Allow(w))
	}
	if strings.TrimSpace(aabb) != "" {
		min, max, err := parseAABB(aabb)
		if err != nil {
			return ledger.Query{}, err
		}
		r := geom.Span(cube.Pos(min), cube.Pos(max))
		q.Bounds = &r
	}
	if strings.TrimSpace(since) != "" {
		d, err := ledger.ParseDuration(strings.TrimSpace(since))
		if err != nil {
			return ledger.Query{}, err
		}
		q.After = now.Add(-d)
	}
	return q, nil
}

func printActions(w io.Writer, acts []ledger.Action, now time.Time) {
	tbl := table.New("When", "World", "Pos", "Action", "Object", "Source").WithWriter(w)
	for _, a := range acts {
		src := a.SourceName
		if src == "" {
			src = "@" + a.Source
		}
		obj := a.Object
		if a.OldObject != "" && a.OldObject != a.Object {
			obj = a.OldObject + " -> " + a.Object
		}
		tbl.AddRow(humanize.RelTime(a.Time, now, "ago", "from now"), a.World, geom.FormatPos(a.Pos), a.Type, obj, src)
	}
	tbl.Print()
}

func parseAABB(s string) (min, max [3]int, err error) {
	parts := strings.Split(s, ":")
	if len(parts) != 2 {
		return min, max, fmt.Errorf("expected x1,y1,z1:x2,y2,z2")
	}
	a, err := parseVec3(parts[0])
	if err != nil {
		return min, max, err
	}
	b, err := parseVec3(parts[1])
	if err != nil {
		return min, max, err
	}
	for i := 0; i < 3; i++ {
		if a[i] <= b[i] {
			min[i], max[i] = a[i], b[i]
		} else {
			min[i], max[i] = b[i], a[i]
		}
	}
	return min, max, nil
}

func parseVec3(s string) ([3]int, error) {
	var v [3]int
	parts := strings.Split(strings.TrimSpace(s), ",")
	if len(parts) != 3 {
		return v, fmt.Errorf("expected x,y,z")
	}
	for i := 0; i < 3; i++ {
		n, err := strconv.Atoi(strings.TrimSpace(parts[i]))
		if err != nil {
			return v, err
		}
		v[i] = n
	}
	return v, nil
}
