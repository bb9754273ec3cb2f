package controller

import (
	"time"

	"holdem-server/engine"
)

// variantPolicy captures the handful of points where the cash and
// elimination lifecycles diverge: rebuy timing, timeout handling, expiry,
// leave semantics and bust-out handling. Everything else is shared.
type variantPolicy interface {
	canJoin(g *Game) error
	onStateNewRound(g *Game, t *engine.Table)
	onStateEndRound(g *Game, t *engine.Table)
	onTimeout(g *Game, p *engine.Player)
	shouldExpire(g *Game, now time.Time) bool
	onPlayerLeave(g *Game, p *engine.Player)
	onBroke(g *Game, t *engine.Table, cid int64)
}

// sitAndGoPolicy is the persistent cash table: constant blinds, rebuys
// between hands, deferred leave, wall-clock expiry.
type sitAndGoPolicy struct{}

func (sitAndGoPolicy) canJoin(g *Game) error { return nil }

func (sitAndGoPolicy) onStateNewRound(g *Game, t *engine.Table) {
	g.applyRebuys(t)
	g.processLeaves(t)
}

func (sitAndGoPolicy) onStateEndRound(g *Game, t *engine.Table) {}

func (sitAndGoPolicy) onTimeout(g *Game, p *engine.Player) {
	p.Sitout = true
	p.WannaLeave = true
}

func (sitAndGoPolicy) shouldExpire(g *Game, now time.Time) bool {
	if g.cfg.ExpireIn <= 0 {
		return false
	}
	since := g.createdAt
	if g.status == StatusStarted {
		since = g.startedAt
	}
	return now.Sub(since) > g.cfg.ExpireIn
}

func (sitAndGoPolicy) onPlayerLeave(g *Game, p *engine.Player) {
	p.WannaLeave = true
	p.Sitout = true
}

// A broke cash player is queued for removal; a pending rebuy already kept
// them off the broke list, so reaching here means they are out of chips.
func (sitAndGoPolicy) onBroke(g *Game, t *engine.Table, cid int64) {
	p := g.players[cid]
	if p == nil {
		return
	}
	p.WannaLeave = true
	p.Sitout = true
	g.Emit(engine.Broadcast(engine.SnapGameState, engine.GameStatePayload{
		Code: engine.GameStateBroke, Seat: -1, ClientID: cid,
	}))
}

// sngPolicy is the tournament-style elimination game: fixed field,
// scheduled blinds, permanent bust-outs, a finish list, no expiry.
type sngPolicy struct{}

func (sngPolicy) canJoin(g *Game) error {
	if g.status != StatusCreated {
		return ErrJoinAfterStart
	}
	return nil
}

func (sngPolicy) onStateNewRound(g *Game, t *engine.Table) {}

func (sngPolicy) onStateEndRound(g *Game, t *engine.Table) {
	seated := 0
	var lastCID int64 = -1
	for cid, p := range g.players {
		if p.SeatNo >= 0 {
			seated++
			lastCID = cid
		}
	}
	if seated == 1 {
		// the survivor is appended last: first place
		g.pushFinished(t, lastCID)
		g.status = StatusFinished
		t.Stop()
		g.Emit(engine.Broadcast(engine.SnapGameState, engine.GameStatePayload{Code: engine.GameStateEnd, Seat: -1}))
		g.logger.Info("game finished", "winner", lastCID, "hands", g.handsPlayed)
	}
}

func (sngPolicy) onTimeout(g *Game, p *engine.Player) {
	p.Sitout = true
}

func (sngPolicy) shouldExpire(g *Game, now time.Time) bool { return false }

func (sngPolicy) onPlayerLeave(g *Game, p *engine.Player) {
	p.Sitout = true
}

func (sngPolicy) onBroke(g *Game, t *engine.Table, cid int64) {
	g.pushFinished(t, cid)
}
