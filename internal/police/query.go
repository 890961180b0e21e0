package police

import (
	"time"

	"ledgerpolice.dipix.pw/internal/geom"
	"ledgerpolice.dipix.pw/internal/ledger"
)

// ClampAfter returns the later of now-maxAge and after. A zero after counts
// as the epoch, so the age ceiling always applies.
func ClampAfter(now time.Time, maxAge time.Duration, after time.Time) time.Time {
	floor := now.Add(-maxAge)
	if after.After(floor) {
		return after
	}
	return floor
}

// BuildQuery assembles the lookup for region in world. The caller's lower
// time bound is kept only when it is newer than the age ceiling.
func BuildQuery(region geom.Region, world string, now time.Time, maxAge time.Duration, existingAfter time.Time) ledger.Query {
	r := region
	return ledger.Query{
		Bounds: &r,
		Worlds: []ledger.Negatable[string]{ledger.Allow(world)},
		After:  ClampAfter(now, maxAge, existingAfter),
	}
}

// ClampQuery re-applies the age ceiling to a query built elsewhere. Slices
// and bounds are copied so q is never mutated.
func ClampQuery(q ledger.Query, now time.Time, maxAge time.Duration) ledger.Query {
	out := q
	if q.Bounds != nil {
		b := *q.Bounds
		out.Bounds = &b
	}
	out.Worlds = append([]ledger.Negatable[string](nil), q.Worlds...)
	out.Actions = append([]ledger.Negatable[string](nil), q.Actions...)
	out.Objects = append([]ledger.Negatable[string](nil), q.Objects...)
	out.Sources = append([]ledger.Negatable[string](nil), q.Sources...)
	out.After = ClampAfter(now, maxAge, q.After)
	return out
}
