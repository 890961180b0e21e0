package world

import (
	"context"

	"github.com/df-mc/dragonfly/server/block/cube"
	"github.com/google/uuid"

	"ledgerpolice.dipix.pw/internal/block"
)

// Result tells the dispatcher whether a handler consumed an interaction.
type Result int

const (
	// Pass lets the next handler run and, if all pass, the default effect.
	Pass Result = iota
	// Handled stops dispatch and cancels the default effect.
	Handled
)

type Player interface {
	Name() string
	ID() uuid.UUID
}

type AttackBlock struct {
	Player Player
	World  string
	Pos    cube.Pos
	Face   cube.Face
}

type UseBlock struct {
	Player   Player
	World    string
	Pos      cube.Pos
	Face     cube.Face
	MainHand bool
	// Item is the block state held in the hand, empty when the hand is empty.
	Item string
}

type Handler interface {
	HandleAttackBlock(ctx context.Context, ev AttackBlock) Result
	HandleUseBlock(ctx context.Context, ev UseBlock) Result
}

// NopHandler passes every event. Embed it to implement only some methods.
type NopHandler struct{}

func (NopHandler) HandleAttackBlock(context.Context, AttackBlock) Result { return Pass }
func (NopHandler) HandleUseBlock(context.Context, UseBlock) Result       { return Pass }

func (ws *Worlds) Register(h Handler) {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	ws.handlers = append(ws.handlers, h)
}

func (ws *Worlds) snapshotHandlers() []Handler {
	ws.mu.RLock()
	defer ws.mu.RUnlock()
	return append([]Handler(nil), ws.handlers...)
}

// AttackBlock dispatches a block attack. Unhandled attacks break the block.
func (ws *Worlds) AttackBlock(ctx context.Context, ev AttackBlock) Result {
	for _, h := range ws.snapshotHandlers() {
		if r := h.HandleAttackBlock(ctx, ev); r != Pass {
			return r
		}
	}
	w, ok := ws.Get(ev.World)
	if !ok {
		return Pass
	}
	if !w.BlockState(ev.Pos).IsAir() {
		w.SetBlock(PlayerActor(ev.Player.Name()), ev.Pos, block.Air)
	}
	return Pass
}

// UseBlock dispatches a block use. Unhandled main-hand uses with a held block
// place it against the clicked face when that cell is empty.
func (ws *Worlds) UseBlock(ctx context.Context, ev UseBlock) Result {
	for _, h := range ws.snapshotHandlers() {
		if r := h.HandleUseBlock(ctx, ev); r != Pass {
			return r
		}
	}
	if !ev.MainHand || ev.Item == "" {
		return Pass
	}
	w, ok := ws.Get(ev.World)
	if !ok {
		return Pass
	}
	state, err := block.Parse(ev.Item)
	if err != nil {
		return Pass
	}
	target := ev.Pos.Side(ev.Face)
	if w.BlockState(target).IsAir() {
		w.SetBlock(PlayerActor(ev.Player.Name()), target, state)
	}
	return Pass
}
