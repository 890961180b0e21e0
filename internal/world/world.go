package world

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/df-mc/dragonfly/server/block/cube"

	"ledgerpolice.dipix.pw/internal/block"
	"ledgerpolice.dipix.pw/internal/ledger"
)

var ErrUnknownWorld = errors.New("unknown world")

// AuditSink receives every block change. Record must not block.
type AuditSink interface {
	Record(a ledger.Action) error
}

// Actor is who caused a change: a player name, or a non-player source such as
// "fire" with an empty Name.
type Actor struct {
	Source string
	Name   string
}

func PlayerActor(name string) Actor { return Actor{Source: "player", Name: name} }

// World is the block grid of one dimension. Cells never set read as air.
type World struct {
	id  string
	now func() time.Time

	mu     sync.RWMutex
	blocks map[cube.Pos]block.State
	audit  AuditSink
	// shared with the owning Worlds
	auditErrs *atomic.Uint64
}

func newWorld(id string, audit AuditSink, now func() time.Time, auditErrs *atomic.Uint64) *World {
	return &World{
		id:        id,
		now:       now,
		blocks:    map[cube.Pos]block.State{},
		audit:     audit,
		auditErrs: auditErrs,
	}
}

func (w *World) ID() string { return w.id }

func (w *World) BlockState(pos cube.Pos) block.State {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if s, ok := w.blocks[pos]; ok {
		return s
	}
	return block.Air
}

// SetBlock replaces the block at pos and records the change. Setting the same
// state again records nothing.
func (w *World) SetBlock(actor Actor, pos cube.Pos, state block.State) {
	w.mu.Lock()
	prev, ok := w.blocks[pos]
	if !ok {
		prev = block.Air
	}
	if prev.String() == state.String() {
		w.mu.Unlock()
		return
	}
	if state.IsAir() {
		delete(w.blocks, pos)
	} else {
		w.blocks[pos] = state
	}
	audit := w.audit
	w.mu.Unlock()

	if audit == nil {
		return
	}
	typ := ledger.ActionBlockChange
	switch {
	case state.IsAir():
		typ = ledger.ActionBlockBreak
	case prev.IsAir():
		typ = ledger.ActionBlockPlace
	}
	err := audit.Record(ledger.Action{
		Time:       w.now(),
		Type:       typ,
		World:      w.id,
		Pos:        pos,
		Object:     state.ID,
		OldObject:  prev.ID,
		Source:     actor.Source,
		SourceName: actor.Name,
		Extra:      state.String(),
	})
	if err != nil && w.auditErrs != nil {
		w.auditErrs.Add(1)
	}
}

// Worlds is the set of loaded worlds plus the interaction handlers shared by
// all of them.
type Worlds struct {
	audit AuditSink
	now   func() time.Time

	mu       sync.RWMutex
	byID     map[string]*World
	handlers []Handler

	auditErrs atomic.Uint64
}

func NewWorlds(audit AuditSink) *Worlds {
	return &Worlds{
		audit: audit,
		now:   time.Now,
		byID:  map[string]*World{},
	}
}

func (ws *Worlds) Get(id string) (*World, bool) {
	ws.mu.RLock()
	defer ws.mu.RUnlock()
	w, ok := ws.byID[id]
	return w, ok
}

func (ws *Worlds) GetOrCreate(id string) *World {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	if w, ok := ws.byID[id]; ok {
		return w
	}
	w := newWorld(id, ws.audit, ws.now, &ws.auditErrs)
	ws.byID[id] = w
	return w
}

// AuditErrors counts block changes the audit sink refused, for example after
// the ledger was closed during shutdown.
func (ws *Worlds) AuditErrors() uint64 { return ws.auditErrs.Load() }

// BlockState reads one cell; it is the read side used by police lookups.
func (ws *Worlds) BlockState(_ context.Context, world string, pos cube.Pos) (block.State, error) {
	w, ok := ws.Get(world)
	if !ok {
		return block.State{}, fmt.Errorf("%w: %s", ErrUnknownWorld, world)
	}
	return w.BlockState(pos), nil
}
