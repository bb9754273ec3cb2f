package controller

import (
	"time"

	"holdem-server/card"
	"holdem-server/engine"
)

// Action dispatches an ACTION command verb. Betting verbs go to the
// table; sitout/back/reset only touch the player record.
func (g *Game) Action(cid int64, verb string, amount int64) error {
	p, ok := g.players[cid]
	if !ok {
		return ErrNotRegistered
	}

	switch verb {
	case "sitout":
		p.Sitout = true
		return nil
	case "back":
		p.Sitout = false
		p.TimedOutCount = 0
		p.TimeoutStart = g.clock.Now()
		return nil
	case "reset":
		p.NextAction = engine.Action{Type: engine.ActionNone}
		return nil
	}

	if g.status != StatusStarted {
		return ErrNotStarted
	}

	var at engine.ActionType
	switch verb {
	case "fold":
		at = engine.ActionFold
	case "check":
		at = engine.ActionCheck
	case "call":
		at = engine.ActionCall
	case "bet":
		at = engine.ActionBet
	case "raise":
		at = engine.ActionRaise
	case "allin":
		at = engine.ActionAllin
	case "show":
		at = engine.ActionShow
	case "muck":
		at = engine.ActionMuck
	default:
		return engine.ErrOutOfTurn
	}

	if !g.table.Act(p.SeatNo, engine.Action{Type: at, Amount: amount}) {
		return engine.ErrOutOfTurn
	}
	return nil
}

// Rebuy queues an add-on that NewRound applies to the stack. Cash
// variant only.
func (g *Game) Rebuy(cid int64, amount int64) error {
	if g.cfg.Variant != VariantSitAndGo {
		return ErrRebuyNotAllowed
	}
	p, ok := g.players[cid]
	if !ok {
		return ErrNotRegistered
	}
	if amount <= 0 {
		return ErrRebuyNotAllowed
	}
	p.RebuyStake += amount
	return nil
}

// Respite extends the player's action timeout budget and reports the new
// remaining time.
func (g *Game) Respite(cid int64, seconds int64) error {
	p, ok := g.players[cid]
	if !ok {
		return ErrNotRegistered
	}
	if seconds <= 0 {
		return ErrBadStatus
	}
	p.Timeout += time.Duration(seconds) * time.Second

	remaining := int64(0)
	if !p.TimeoutStart.IsZero() {
		if left := p.Timeout - g.clock.Now().Sub(p.TimeoutStart); left > 0 {
			remaining = int64(left / time.Second)
		}
	}
	g.Emit(engine.Broadcast(engine.SnapRespite, engine.RespitePayload{
		Seat: p.SeatNo, ClientID: cid, AddedSec: seconds, RemainingSec: remaining,
	}))
	return nil
}

// DeclareStraddle records the intent to straddle next hand. The chain
// itself is posted when Blinds next runs.
func (g *Game) DeclareStraddle(cid int64) error {
	if g.cfg.Variant != VariantSitAndGo {
		return ErrStraddleNotAllowed
	}
	if _, ok := g.players[cid]; !ok {
		return ErrNotRegistered
	}
	g.straddleIntent[cid] = true
	return nil
}

// BuyInsurance forwards a BUYINSURANCE purchase into the suspended
// table.
func (g *Game) BuyInsurance(cid int64, buyAmount int64, cards []card.Card) error {
	if !g.cfg.EnableInsurance {
		return ErrInsuranceDisabled
	}
	p, ok := g.players[cid]
	if !ok {
		return ErrNotRegistered
	}
	if p.SeatNo < 0 {
		return ErrNotRegistered
	}
	return g.table.BuyInsurance(p.SeatNo, buyAmount, cards)
}
