package police

import (
	"context"

	"ledgerpolice.dipix.pw/internal/world"
)

// Listener turns block interactions of policing users into lookups and
// cancels their normal effect. Players that are not a Source pass through.
type Listener struct {
	svc *Service
}

func NewListener(svc *Service) *Listener { return &Listener{svc: svc} }

func (l *Listener) source(p world.Player) (Source, bool) {
	if p == nil || !l.svc.IsPolicing(p.ID()) {
		return nil, false
	}
	src, ok := p.(Source)
	return src, ok
}

func (l *Listener) HandleAttackBlock(ctx context.Context, ev world.AttackBlock) world.Result {
	src, ok := l.source(ev.Player)
	if !ok {
		return world.Pass
	}
	l.svc.PoliceBlock(ctx, src, ev.World, ev.Pos)
	return world.Handled
}

// HandleUseBlock looks up the cell the held block would occupy. Off-hand uses
// are cancelled without a lookup so one click never runs two searches.
func (l *Listener) HandleUseBlock(ctx context.Context, ev world.UseBlock) world.Result {
	src, ok := l.source(ev.Player)
	if !ok {
		return world.Pass
	}
	if ev.MainHand {
		l.svc.PoliceBlock(ctx, src, ev.World, ev.Pos.Side(ev.Face))
	}
	return world.Handled
}
