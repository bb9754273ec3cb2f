package controller

import (
	"sort"

	"holdem-server/engine"
)

// onNewRound runs inside the table's NewRound transition, before the
// seat reset: pending rebuys are applied, deferred leaves are processed
// (leave requests only ever take effect between hands), and the blind
// level advances under the time rule.
func (g *Game) onNewRound(t *engine.Table) {
	g.policy.onStateNewRound(g, t)

	// time-rule blind progression; a long pause may skip several levels
	// at once
	if g.cfg.Variant == VariantSNG {
		now := g.clock.Now()
		advanced := false
		for now.Sub(g.lastBlindsTime) >= g.cfg.BlindsTime {
			g.level++
			g.lastBlindsTime = g.lastBlindsTime.Add(g.cfg.BlindsTime)
			advanced = true
		}
		if advanced {
			g.Emit(engine.Broadcast(engine.SnapGameState, engine.GameStatePayload{Code: engine.GameStateBlinds, Seat: -1}))
			g.logger.Info("blinds advanced", "level", g.level, "bb", g.cfg.bigBlindAt(g.level))
		}
	}
	t.SetBlinds(g.cfg.bigBlindAt(g.level), g.cfg.Ante)
	t.SetBlindSchedule(g.level, g.cfg.bigBlindAt(g.level+1), g.level+1, g.lastBlindsTime.Unix())

}

func (g *Game) applyRebuys(t *engine.Table) {
	for _, p := range g.players {
		if p.SeatNo >= 0 && p.RebuyStake > 0 {
			p.Stake += p.RebuyStake
			g.logger.Info("rebuy applied", "cid", p.ClientID, "amount", p.RebuyStake)
			p.RebuyStake = 0
		}
	}
}

func (g *Game) processLeaves(t *engine.Table) {
	for cid, p := range g.players {
		if p.SeatNo >= 0 && p.WannaLeave {
			g.prevSeat[cid] = p.SeatNo
			t.VacateSeat(p.SeatNo)
			p.SeatNo = -1
			p.TableNo = -1
			g.Emit(engine.Broadcast(engine.SnapFoyer, engine.FoyerPayload{Kind: "leave", ClientID: cid}))
		}
	}
}

func (g *Game) promptStraddler(t *engine.Table) {
	bb := t.BigBlindSeat()
	if bb < 0 {
		return
	}
	// next hand's UTG sits two occupied seats past the current BB: the
	// dealer advances one occupied seat between hands, so one step lands
	// on this hand's own straddler, two on the seat that posts next
	seat := bb
	for step := 0; step < 2; step++ {
		for i := 0; i < engine.NumSeats; i++ {
			seat = (seat + 1) % engine.NumSeats
			if t.Seat(seat).Occupied {
				break
			}
		}
	}
	if s := t.Seat(seat); s.Occupied && s.Player != nil {
		g.Emit(engine.Private(s.Player.ClientID, engine.SnapWantToStraddle, engine.WantToStraddlePayload{
			ClientID:     s.Player.ClientID,
			StraddleRate: 2 * t.BigBlind(),
		}))
	}
}

// onBlindsPosted posts the straddle chain: starting at the seat after
// the BB, each successive seat may double the previous straddle until a
// seat declines or cannot cover it; the betting cursor then starts after
// the last straddler.
func (g *Game) onBlindsPosted(t *engine.Table) {
	if g.cfg.Variant != VariantSitAndGo {
		return
	}

	amount := 2 * t.BigBlind()
	seat := t.BigBlindSeat()
	last := -1
	first := true
	for i := 0; i < engine.NumSeats; i++ {
		seat = nextInRoundSeat(t, seat)
		if seat < 0 {
			break
		}
		s := t.Seat(seat)
		if s.Player == nil {
			break
		}
		wants := g.straddleIntent[s.Player.ClientID] || (first && g.cfg.MandatoryStraddle)
		if !wants || s.Player.Stake < amount {
			break
		}
		t.ApplyStraddle(seat, amount)
		delete(g.straddleIntent, s.Player.ClientID)
		g.Emit(engine.Broadcast(engine.SnapPlayerAction, engine.PlayerActionPayload{
			Seat: seat, ClientID: s.Player.ClientID, Action: engine.ActionRaise, Amount: amount,
		}))
		last = seat
		amount *= 2
		first = false
	}

	if last >= 0 {
		next := nextActionableSeat(t, last)
		if next >= 0 {
			t.SetFirstToAct(next)
		}
	}

	if g.cfg.MandatoryStraddle {
		// pre-arm next hand's straddler now that positions are known
		g.promptStraddler(t)
	}
}

func nextInRoundSeat(t *engine.Table, from int) int {
	for i := 1; i <= engine.NumSeats; i++ {
		idx := (from + i) % engine.NumSeats
		if t.Seat(idx).InRound {
			return idx
		}
	}
	return -1
}

func nextActionableSeat(t *engine.Table, from int) int {
	for i := 1; i <= engine.NumSeats; i++ {
		idx := (from + i) % engine.NumSeats
		s := t.Seat(idx)
		if s.InRound && s.Player != nil && s.Player.Stake > 0 {
			return idx
		}
	}
	return -1
}

// onEndRound runs after the table emitted its StakeChange: the hand is
// recorded, broke players are pushed onto the finish list, and the SNG
// end condition is checked.
func (g *Game) onEndRound(t *engine.Table) {
	g.handsPlayed++
	g.recordHand(t)

	if residue := t.PotSum(); residue != 0 {
		// log-only assertion: the hand continues even when the pots did
		// not fully drain
		g.logger.Error("pot residue after settlement", "hand", t.HandNumber(), "residue", residue)
	}

	minRequired := t.BigBlind() + t.Ante()

	type brokeSeat struct {
		cid         int64
		stakeBefore int64
	}
	var broke []brokeSeat
	for cid, p := range g.players {
		if p.SeatNo < 0 {
			continue
		}
		effective := p.Stake
		if g.cfg.Variant == VariantSitAndGo {
			effective += p.RebuyStake
		}
		if effective < minRequired {
			broke = append(broke, brokeSeat{cid: cid, stakeBefore: p.StakeBefore})
		}
	}
	// ascending stake_before: the shortest stack going into the hand is
	// considered busted earliest and placed worst
	sort.Slice(broke, func(i, j int) bool { return broke[i].stakeBefore < broke[j].stakeBefore })

	for _, b := range broke {
		g.policy.onBroke(g, t, b.cid)
	}

	g.policy.onStateEndRound(g, t)
}

func (g *Game) pushFinished(t *engine.Table, cid int64) {
	p := g.players[cid]
	if p == nil {
		return
	}
	if p.SeatNo >= 0 {
		t.VacateSeat(p.SeatNo)
		p.SeatNo = -1
		p.TableNo = -1
	}
	g.finish = append(g.finish, cid)
	placement := len(g.players) - len(g.finish) + 1
	g.Emit(engine.Broadcast(engine.SnapGameState, engine.GameStatePayload{
		Code: engine.GameStateBroke, Seat: -1, ClientID: cid, Placement: placement,
	}))
	g.logger.Info("player broke", "cid", cid, "placement", placement)
}

// onAutoAction applies the consecutive-timeout penalty: after three
// straight auto-actions the player is sat out, and in the cash variant
// additionally queued to leave.
func (g *Game) onAutoAction(t *engine.Table, seat int) {
	s := t.Seat(seat)
	if s.Player == nil {
		return
	}
	if s.Player.TimedOutCount >= 3 {
		g.policy.onTimeout(g, s.Player)
	}
}
