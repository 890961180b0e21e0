package ledger

import (
	"errors"
	"time"

	"github.com/df-mc/dragonfly/server/block/cube"

	"ledgerpolice.dipix.pw/internal/geom"
)

// Action types recorded by the host world.
const (
	ActionBlockBreak  = "block-break"
	ActionBlockPlace  = "block-place"
	ActionBlockChange = "block-change"
)

var (
	ErrClosed     = errors.New("ledger: closed")
	ErrEmptyQuery = errors.New("ledger: empty query")
)

// Action is one audited change in a world.
type Action struct {
	ID         int64     `json:"id,omitempty"`
	Time       time.Time `json:"time"`
	Type       string    `json:"action"`
	World      string    `json:"world"`
	Pos        cube.Pos  `json:"pos"`
	Object     string    `json:"object"`
	OldObject  string    `json:"old_object,omitempty"`
	Source     string    `json:"source"`
	SourceName string    `json:"source_name,omitempty"`
	Extra      string    `json:"extra,omitempty"`
}

// Negatable is a filter value that either admits or excludes matches.
type Negatable[T comparable] struct {
	Value   T    `json:"value"`
	Allowed bool `json:"allowed"`
}

func Allow[T comparable](v T) Negatable[T] { return Negatable[T]{Value: v, Allowed: true} }
func Deny[T comparable](v T) Negatable[T]  { return Negatable[T]{Value: v, Allowed: false} }

// admits applies a filter set: an empty set admits everything, any matching
// deny rejects, and when at least one allow exists the value must match one.
func admits[T comparable](set []Negatable[T], v T) bool {
	if len(set) == 0 {
		return true
	}
	hasAllow := false
	allowed := false
	for _, n := range set {
		if n.Allowed {
			hasAllow = true
			if n.Value == v {
				allowed = true
			}
			continue
		}
		if n.Value == v {
			return false
		}
	}
	return !hasAllow || allowed
}

// Query selects actions from the ledger. Zero times mean "unbounded".
type Query struct {
	Bounds  *geom.Region        `json:"bounds,omitempty"`
	Worlds  []Negatable[string] `json:"worlds,omitempty"`
	Actions []Negatable[string] `json:"actions,omitempty"`
	Objects []Negatable[string] `json:"objects,omitempty"`
	Sources []Negatable[string] `json:"sources,omitempty"`
	After   time.Time           `json:"after,omitempty"`
	Before  time.Time           `json:"before,omitempty"`
}

func (q Query) IsEmpty() bool {
	return q.Bounds == nil &&
		len(q.Worlds) == 0 &&
		len(q.Actions) == 0 &&
		len(q.Objects) == 0 &&
		len(q.Sources) == 0 &&
		q.After.IsZero() &&
		q.Before.IsZero()
}

// Matches evaluates the query against a single action in memory. It mirrors
// the SQL built by the store.
func (q Query) Matches(a Action) bool {
	if q.Bounds != nil && !q.Bounds.Contains(a.Pos) {
		return false
	}
	if !q.After.IsZero() && a.Time.Before(q.After) {
		return false
	}
	if !q.Before.IsZero() && !a.Time.Before(q.Before) {
		return false
	}
	if !admits(q.Worlds, a.World) || !admits(q.Actions, a.Type) || !admits(q.Objects, a.Object) {
		return false
	}
	src := a.SourceName
	if src == "" {
		src = a.Source
	}
	return admits(q.Sources, src)
}

// Results is one page of a search, newest first.
type Results struct {
	Actions []Action `json:"actions"`
	Page    int      `json:"page"`
	Pages   int      `json:"pages"`
	Total   int      `json:"total"`
}

func (r Results) Empty() bool { return len(r.Actions) == 0 }
