package engine

import (
	"time"

	"holdem-server/card"
)

// ---- NewRound --------------------------------------------------------

func (t *Table) stateNewRound(now time.Time) bool {
	if t.OnNewRound != nil {
		t.OnNewRound(t)
	}
	if t.occupiedCount() < 2 {
		return false
	}

	t.handNumber++
	t.community = t.community[:0]
	t.pots = nil
	t.tableBet = 0
	t.lastBetAmount = 0
	t.noMoreAction = false
	t.round = RoundPreflop
	t.deltas = map[int]int64{}
	t.insuranceFlopOffered = false
	t.insuranceTurnOffered = false

	if t.deckOverride != nil {
		t.deck.FillFrom(t.deckOverride)
	} else {
		t.deck.Fill()
		t.deck.Shuffle()
	}

	for i := range t.seats {
		s := &t.seats[i]
		if !s.Occupied {
			continue
		}
		s.Bet = 0
		s.InRound = true
		s.AutoShowCards = false
		s.ManualShowCards = false
		p := s.Player
		p.LastAction = Action{Type: ActionNone}
		p.NextAction = Action{Type: ActionNone}
		p.StakeBefore = p.Stake
		p.HoleCards = nil
		p.HoleShow = [2]bool{}
		p.Insurance = [2]InsuranceInfo{}
		// the timeout budget resets every hand; respite extensions only
		// cover the hand they were bought in
		if t.ActionTimeout > 0 {
			p.Timeout = t.ActionTimeout
		}
		p.TimeoutStart = now
	}

	occCount := t.occupiedCount()
	if t.dealer == -1 || !t.seats[t.dealer].Occupied {
		t.dealer = t.firstOccupied()
	}

	if occCount == 2 {
		// heads-up: dealer is SB, the other seat is BB.
		t.sb = t.dealer
		t.bb = t.nextOccupied(t.dealer)
	} else {
		t.sb = t.nextOccupied(t.dealer)
		t.bb = t.nextOccupied(t.sb)
	}
	t.cur = t.nextOccupied(t.bb)
	t.lastBetSeat = t.cur

	t.emit(broadcast(SnapGameState, GameStatePayload{Code: GameStateNewHand, Seat: -1}))
	t.emit(t.tableSnapshot())
	return true
}

func (t *Table) firstOccupied() int {
	for i := range t.seats {
		if t.seats[i].Occupied {
			return i
		}
	}
	return -1
}

// ---- Blinds ------------------------------------------------------------

func (t *Table) stateBlinds(now time.Time) {
	if t.sb >= 0 {
		t.postForcedBet(t.sb, t.bigBlind/2)
	}
	if t.bb >= 0 {
		t.postForcedBet(t.bb, t.bigBlind)
		t.lastBetAmount = 0
		t.tableBet = t.seats[t.bb].Bet
	}

	if t.ante > 0 {
		for i := range t.seats {
			s := &t.seats[i]
			if !s.InRound {
				continue
			}
			amt := t.ante
			if amt > s.Player.Stake {
				amt = s.Player.Stake
			}
			s.Player.Stake -= amt
			if pIdx := len(t.pots); pIdx == 0 {
				t.pots = append(t.pots, newPot())
			}
			t.pots[0].Amount += amt
			t.pots[0].Seats[i] = true
		}
	}

	if t.OnBlindsPosted != nil {
		t.OnBlindsPosted(t)
	}

	// deal hole cards starting at SB seat in seat order
	start := t.sb
	if start < 0 {
		start = t.firstOccupied()
	}
	seat := start
	for round := 0; round < 2; round++ {
		for i := 0; i < NumSeats; i++ {
			s := &t.seats[seat]
			if s.InRound {
				c, ok := t.deck.Pop()
				if !ok {
					t.abortHand()
					t.ScheduleState(StateEndRound, 0)
					return
				}
				s.Player.HoleCards = append(s.Player.HoleCards, c)
			}
			seat = t.nextOccupied(seat)
			if seat == -1 {
				seat = start
			}
			if seat == start {
				break
			}
		}
	}
	for i := range t.seats {
		s := &t.seats[i]
		if s.InRound {
			t.emit(private(s.Player.ClientID, SnapCards, CardsPayload{Phase: "hole", Cards: append(card.CardList{}, s.Player.HoleCards...), SeatNo: i}))
		}
	}

	if t.nextActionable(t.bb) == -1 {
		t.noMoreAction = true
	}

	t.emit(broadcast(SnapGameState, GameStatePayload{Code: GameStateBlinds, Seat: -1}))
	t.ScheduleState(StateBetting, 3*time.Second)
}

func (t *Table) postForcedBet(seat int, amount int64) {
	s := &t.seats[seat]
	if s.Player == nil {
		return
	}
	if amount > s.Player.Stake {
		amount = s.Player.Stake
	}
	s.Player.Stake -= amount
	s.Bet += amount
}

// ---- Betting -------------------------------------------------------------

// MinimumBet is the smallest legal bet or raise-to amount: the big blind
// when nothing is bet, otherwise the table bet plus the previous raise
// increment.
func (t *Table) MinimumBet() int64 {
	if t.tableBet == 0 {
		return t.bigBlind
	}
	return t.tableBet + (t.tableBet - t.lastBetAmount)
}

// Act submits a player's decision for the current betting or ask-show
// state. It is safe to call even when seat != cur_player (returns false).
func (t *Table) Act(seat int, a Action) bool {
	if seat < 0 || seat >= NumSeats {
		return false
	}
	switch t.state {
	case StateBetting:
		if seat != t.cur {
			return false
		}
		if a.Type == ActionShow || a.Type == ActionMuck {
			return false
		}
	case StateAskShow:
		if t.showIdx >= len(t.showQueue) || seat != t.showQueue[t.showIdx] {
			return false
		}
	default:
		return false
	}
	s := &t.seats[seat]
	if s.Player == nil {
		return false
	}
	s.Player.NextAction = a
	return true
}

func (t *Table) tickBetting(now time.Time) {
	s := &t.seats[t.cur]
	if s.Player == nil || !s.InRound {
		t.advanceCurOrClose(now)
		return
	}

	action := s.Player.NextAction
	auto := false

	deadline := s.Player.TimeoutStart.Add(s.Player.Timeout)
	timedOut := s.Player.Timeout > 0 && !now.Before(deadline)

	if action.Type == ActionNone {
		if !s.Player.Sitout && !timedOut {
			return // still waiting on this seat
		}
		auto = true
		if t.tableBet == s.Bet {
			action = Action{Type: ActionCheck}
		} else {
			action = Action{Type: ActionFold}
		}
		s.Player.TimedOutCount++
	} else {
		s.Player.TimedOutCount = 0
	}

	seat := t.cur
	t.applyAction(seat, action, auto)
	s.Player.NextAction = Action{Type: ActionNone}
	if auto && t.OnAutoAction != nil {
		t.OnAutoAction(t, seat)
	}

	t.advanceCurOrClose(now)
}

func (t *Table) applyAction(seatNo int, a Action, auto bool) {
	s := &t.seats[seatNo]
	p := s.Player

	switch a.Type {
	case ActionFold:
		s.InRound = false
	case ActionCheck:
		if s.Bet != t.tableBet {
			// illegal: rewrite to the cheapest legal action (Call).
			a = Action{Type: ActionCall}
			t.applyAction(seatNo, a, auto)
			return
		}
	case ActionCall:
		owed := t.tableBet - s.Bet
		if owed <= 0 {
			a = Action{Type: ActionCheck, Amount: 0}
		} else if owed >= p.Stake {
			a = Action{Type: ActionAllin, Amount: p.Stake}
			t.postForcedBet(seatNo, p.Stake)
		} else {
			t.postForcedBet(seatNo, owed)
		}
	case ActionBet:
		if t.tableBet > 0 {
			a.Type = ActionRaise
			t.applyAction(seatNo, a, auto)
			return
		}
		min := t.MinimumBet()
		if a.Amount < min {
			a.Amount = min
		}
		if a.Amount >= p.Stake {
			a = Action{Type: ActionAllin, Amount: p.Stake}
			t.postForcedBet(seatNo, p.Stake)
		} else {
			t.postForcedBet(seatNo, a.Amount)
		}
		t.lastBetSeat = seatNo
		t.lastBetAmount = t.tableBet
		t.tableBet = s.Bet
	case ActionRaise:
		min := t.MinimumBet()
		if a.Amount < min {
			a.Amount = min
		}
		if a.Amount >= p.Stake+s.Bet {
			a = Action{Type: ActionAllin, Amount: p.Stake}
			t.postForcedBet(seatNo, p.Stake)
		} else {
			delta := a.Amount - s.Bet
			t.postForcedBet(seatNo, delta)
		}
		if s.Bet > t.tableBet {
			t.lastBetSeat = seatNo
			t.lastBetAmount = t.tableBet
			t.tableBet = s.Bet
		}
	case ActionAllin:
		amt := p.Stake
		t.postForcedBet(seatNo, amt)
		if s.Bet > t.tableBet {
			t.lastBetSeat = seatNo
			t.lastBetAmount = t.tableBet
			t.tableBet = s.Bet
		}
	}

	a.Auto = auto
	p.LastAction = a
	t.emit(broadcast(SnapPlayerAction, PlayerActionPayload{Seat: seatNo, ClientID: p.ClientID, Action: a.Type, Amount: a.Amount, Auto: auto}))
}

// advanceCurOrClose runs the end-of-street detection after an action
// has been applied.
func (t *Table) advanceCurOrClose(now time.Time) {
	if t.activeCount() == 1 {
		t.collectBets()
		survivor := t.firstInRound()
		t.cur = survivor
		t.lastBetSeat = survivor
		t.state = StateAskShow
		t.runState(now)
		return
	}

	next := t.nextActionable(t.cur)
	if next == -1 {
		t.noMoreAction = true
		t.state = StateBettingEnd
		t.runState(now)
		return
	}
	if next == t.lastBetSeat {
		t.state = StateBettingEnd
		t.runState(now)
		return
	}
	t.cur = next
	t.seats[next].Player.TimeoutStart = now
}

func (t *Table) firstInRound() int {
	for i := range t.seats {
		if t.seats[i].InRound {
			return i
		}
	}
	return -1
}

// ---- BettingEnd ----------------------------------------------------------

func (t *Table) stateBettingEnd(now time.Time) State {
	t.collectBets()

	if t.noMoreAction && t.InsuranceEnabled && (t.round == RoundFlop || t.round == RoundTurn) && !t.insuranceOffered(t.round) {
		t.markInsuranceOffered(t.round)
		t.resumeState = StateBettingEnd
		t.enterSuspend(now, "BuyInsurance")
		return StateSuspend
	}

	if t.round < RoundRiver {
		if !t.dealNextStreet() {
			t.abortHand()
			return StateEndRound
		}
		if t.noMoreAction {
			return StateBettingEnd
		}

		t.tableBet = 0
		t.lastBetAmount = 0
		first := t.nextActionable(t.dealer)
		if first == -1 {
			first = t.nextInRound(t.dealer)
		}
		t.cur = first
		t.lastBetSeat = first
		for i := range t.seats {
			if t.seats[i].InRound && t.seats[i].Player != nil {
				t.seats[i].Player.TimeoutStart = now
			}
		}
		return StateBetting
	}

	// River is complete (or no-more-action ran the board all the way
	// out): force the last bettor to show, then ask/reveal the rest.
	if t.lastBetSeat >= 0 && t.seats[t.lastBetSeat].InRound {
		t.seats[t.lastBetSeat].AutoShowCards = true
	}
	t.cur = t.lastBetSeat
	if t.noMoreAction {
		return StateShowdown
	}
	return StateAskShow
}

func (t *Table) dealNextStreet() bool {
	need := 1
	switch t.round {
	case RoundPreflop:
		t.round = RoundFlop
		need = 3
	case RoundFlop:
		t.round = RoundTurn
	case RoundTurn:
		t.round = RoundRiver
	default:
		return true
	}
	for i := 0; i < need; i++ {
		c, ok := t.deck.Pop()
		if !ok {
			return false
		}
		t.community = append(t.community, c)
	}
	t.emit(broadcast(SnapCards, CardsPayload{Phase: t.round.String(), Cards: append(card.CardList{}, t.community...)}))
	return true
}

// abortHand is the fatal-error short circuit: the hand cannot continue,
// so every seat gets its outstanding bet back and each pot is split
// evenly among its involved seats as a best-effort refund. The caller
// routes the table to EndRound.
func (t *Table) abortHand() {
	for i := range t.seats {
		s := &t.seats[i]
		if s.Bet > 0 && s.Player != nil {
			s.Player.Stake += s.Bet
			s.Bet = 0
		}
	}
	for _, p := range t.pots {
		involved := p.InvolvedSeats()
		if len(involved) == 0 || p.Amount == 0 {
			continue
		}
		share := p.Amount / int64(len(involved))
		rem := p.Amount % int64(len(involved))
		for i, seatNo := range involved {
			amt := share
			if int64(i) < rem {
				amt++
			}
			if t.seats[seatNo].Player != nil {
				t.seats[seatNo].Player.Stake += amt
			}
		}
		p.Amount = 0
	}
}

func (t *Table) insuranceOffered(round BettingRound) bool {
	switch round {
	case RoundPreflop, RoundFlop:
		return t.insuranceFlopOffered
	case RoundTurn:
		return t.insuranceTurnOffered
	}
	return true
}

func (t *Table) markInsuranceOffered(round BettingRound) {
	switch round {
	case RoundPreflop, RoundFlop:
		t.insuranceFlopOffered = true
	case RoundTurn:
		t.insuranceTurnOffered = true
	}
}

// ---- AskShow ---------------------------------------------------------

func (t *Table) enterAskShow(now time.Time) {
	t.showQueue = t.showQueue[:0]
	start := t.cur
	seat := start
	for i := 0; i < NumSeats; i++ {
		if t.seats[seat].InRound {
			t.showQueue = append(t.showQueue, seat)
		}
		seat = (seat + 1) % NumSeats
	}
	t.showIdx = 0
	if len(t.showQueue) > 0 {
		t.seats[t.showQueue[0]].Player.TimeoutStart = now
	}
	t.resolveAskShowCompletionIfDone(now)
}

func (t *Table) tickAskShow(now time.Time) {
	if t.showIdx >= len(t.showQueue) {
		return
	}
	seatNo := t.showQueue[t.showIdx]
	s := &t.seats[seatNo]
	if s.Player == nil {
		t.advanceAskShow(now)
		return
	}

	if s.AutoShowCards {
		t.resolveShow(seatNo, true)
		t.advanceAskShow(now)
		return
	}

	a := s.Player.NextAction
	deadline := s.Player.TimeoutStart.Add(s.Player.Timeout)
	timedOut := s.Player.Timeout > 0 && !now.Before(deadline)

	if a.Type == ActionNone {
		if !timedOut {
			return
		}
		// default: show when more than one active seat remains (chopped
		// hands auto-reveal), else muck.
		show := t.activeCount() > 1
		t.resolveShow(seatNo, show)
		t.advanceAskShow(now)
		return
	}

	show := a.Type == ActionShow
	t.resolveShow(seatNo, show)
	s.Player.NextAction = Action{Type: ActionNone}
	t.advanceAskShow(now)
}

func (t *Table) resolveShow(seatNo int, show bool) {
	s := &t.seats[seatNo]
	if show {
		s.ManualShowCards = true
		s.Player.HoleShow = [2]bool{true, true}
		if len(s.Player.HoleCards) >= 2 {
			t.emit(broadcast(SnapPlayerShow, PlayerShowPayload{Seat: seatNo, ClientID: s.Player.ClientID, Cards: [2]card.Card{s.Player.HoleCards[0], s.Player.HoleCards[1]}}))
		}
	} else if t.activeCount() > 1 {
		// a muck only folds the seat while other live seats remain; the
		// last seat standing keeps the hand (it wins AllFolded next)
		s.InRound = false
	}
}

func (t *Table) advanceAskShow(now time.Time) {
	t.showIdx++
	if t.showIdx < len(t.showQueue) {
		next := t.showQueue[t.showIdx]
		if t.seats[next].Player != nil {
			t.seats[next].Player.TimeoutStart = now
		}
		return
	}
	t.resolveAskShowCompletionIfDone(now)
}

func (t *Table) resolveAskShowCompletionIfDone(now time.Time) {
	if t.showIdx < len(t.showQueue) {
		return
	}
	if t.activeCount() == 1 {
		t.state = StateAllFolded
	} else {
		t.state = StateShowdown
	}
	t.runState(now)
}

// ---- AllFolded ---------------------------------------------------------

func (t *Table) stateAllFolded(now time.Time) {
	survivor := t.firstInRound()
	if survivor != -1 {
		for idx, pot := range t.pots {
			if pot.Amount == 0 {
				continue
			}
			amt := pot.Amount
			t.seats[survivor].Player.Stake += amt
			t.deltaAdd(survivor, amt)
			t.emit(broadcast(SnapWinPot, WinPotPayload{Seat: survivor, ClientID: t.seats[survivor].Player.ClientID, PotIndex: idx, Amount: amt}))
			pot.Amount = 0
		}
	}
	t.ScheduleState(StateEndRound, 2*time.Second)
}

func (t *Table) deltaAdd(seat int, amt int64) {
	if t.deltas == nil {
		t.deltas = map[int]int64{}
	}
	t.deltas[seat] += amt
}
