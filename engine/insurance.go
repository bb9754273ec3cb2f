package engine

import (
	"math"
	"sort"
	"time"

	"holdem-server/card"
	"holdem-server/evaluator"
)

// insuranceRates is the fixed R[1..20] payout-multiplier table, used
// both to cap a purchase's size and as its settlement multiplier. Index 0
// holds R[1].
var insuranceRates = [20]float64{
	32, 16, 10, 7.5, 6, 5, 4, 3.5, 3, 2.5,
	2.2, 2.0, 1.8, 1.6, 1.4, 1.3, 1.2, 1.1, 1.0, 0.8,
}

func rateFor(n int) float64 {
	if n < 1 {
		n = 1
	}
	if n > len(insuranceRates) {
		n = len(insuranceRates)
	}
	return insuranceRates[n-1]
}

func ceilDiv(amount int64, rate float64) int64 {
	if rate <= 0 {
		return amount
	}
	return int64(math.Ceil(float64(amount) / rate))
}

const suspendCapTicks = 20

// enterSuspend arms the countdown and publishes BuyInsurance offers to
// every eligible leader.
func (t *Table) enterSuspend(now time.Time, reason string) {
	t.suspendDeadline = now.Add(suspendCapTicks * time.Second)
	t.emit(broadcast(SnapGameState, GameStatePayload{Code: GameStateTableSuspend, Seat: -1}))
	t.offerInsurance(now)
}

func (t *Table) tickSuspend(now time.Time) {
	if now.Before(t.suspendDeadline) {
		return
	}
	t.applyAutoInsuranceBuys()
	t.emit(broadcast(SnapGameState, GameStatePayload{Code: GameStateTableResume, Seat: -1}))
	t.state = StateResume
	t.runState(now)
}

func (t *Table) currentInsuranceRound() int {
	if len(t.community) <= 3 {
		return 0
	}
	return 1
}

// offerInsurance computes, for every pot with more than one involved seat,
// the current leader(s) and their outs, and publishes a BuyInsurance
// snapshot per eligible leader.
func (t *Table) offerInsurance(now time.Time) {
	round := t.currentInsuranceRound()

	strengths := map[int]evaluator.Strength{}
	for i := range t.seats {
		s := &t.seats[i]
		if !s.InRound || s.Player == nil || len(s.Player.HoleCards) < 2 {
			continue
		}
		str, err := evaluator.Evaluate([2]card.Card{s.Player.HoleCards[0], s.Player.HoleCards[1]}, t.community)
		if err != nil {
			continue
		}
		strengths[i] = str
	}

	// a leader can top several pots at once; their insurable share and
	// outs accumulate across every pot they lead before one offer goes out
	offered := make(map[int]bool)

	for _, pot := range t.pots {
		involved := pot.InvolvedSeats()
		if len(involved) < 2 {
			continue
		}

		var best *evaluator.Strength
		for _, seatNo := range involved {
			if str, ok := strengths[seatNo]; ok {
				if best == nil || str.Better(*best) {
					s := str
					best = &s
				}
			}
		}
		if best == nil {
			continue
		}

		var leaders, trailers []int
		for _, seatNo := range involved {
			if str, ok := strengths[seatNo]; ok {
				if str.Equal(*best) {
					leaders = append(leaders, seatNo)
				} else {
					trailers = append(trailers, seatNo)
				}
			}
		}
		if len(trailers) == 0 {
			continue // already a single undisputed tier; nothing to insure against
		}

		for _, leaderSeat := range leaders {
			outs, outsPerOpp := t.computeOuts(leaderSeat, involved, strengths[leaderSeat])
			if len(outs) == 0 || len(outs) > 20 {
				continue
			}

			info := &t.seats[leaderSeat].Player.Insurance[round]
			info.MaxPayment += pot.Amount / int64(len(leaders))
			info.FullOuts = unionCards(info.FullOuts, outs)
			if info.OutsPerOpponent == nil {
				info.OutsPerOpponent = make(map[int][]card.Card)
			}
			for opp, oppOuts := range outsPerOpp {
				info.OutsPerOpponent[opp] = unionCards(info.OutsPerOpponent[opp], oppOuts)
			}
			offered[leaderSeat] = true
		}
	}

	for seatNo := 0; seatNo < NumSeats; seatNo++ {
		if !offered[seatNo] {
			continue
		}
		info := &t.seats[seatNo].Player.Insurance[round]
		t.emit(broadcast(SnapBuyInsurance, BuyInsurancePayload{
			Seat:            seatNo,
			ClientID:        t.seats[seatNo].Player.ClientID,
			Round:           round,
			MaxPayment:      info.MaxPayment,
			Outs:            info.FullOuts,
			OutsPerOpponent: info.OutsPerOpponent,
		}))
	}
}

// unionCards merges two card sets, keeping the result sorted and free of
// duplicates.
func unionCards(a, b []card.Card) []card.Card {
	out := append([]card.Card{}, a...)
	for _, c := range b {
		if !containsCardSlice(out, c) {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// computeOuts returns the cards among the undealt deck that would
// dethrone leaderSeat for the pot (in full or fractionally) if dealt as
// the next community card, plus the per-opponent breakdown.
func (t *Table) computeOuts(leaderSeat int, involved []int, leaderNow evaluator.Strength) ([]card.Card, map[int][]card.Card) {
	leader := t.seats[leaderSeat].Player
	if leader == nil || len(leader.HoleCards) < 2 {
		return nil, nil
	}
	leaderHole := [2]card.Card{leader.HoleCards[0], leader.HoleCards[1]}

	var outs []card.Card
	perOpp := map[int][]card.Card{}

	for _, c := range t.deck.Remaining() {
		nextCommunity := make([]card.Card, 0, len(t.community)+1)
		nextCommunity = append(nextCommunity, t.community...)
		nextCommunity = append(nextCommunity, c)

		leaderStr, err := evaluator.Evaluate(leaderHole, nextCommunity)
		if err != nil {
			continue
		}

		dethroned := false
		for _, opp := range involved {
			if opp == leaderSeat {
				continue
			}
			p := t.seats[opp].Player
			if p == nil || len(p.HoleCards) < 2 {
				continue
			}
			oppStr, err := evaluator.Evaluate([2]card.Card{p.HoleCards[0], p.HoleCards[1]}, nextCommunity)
			if err != nil {
				continue
			}
			if !leaderStr.Better(oppStr) {
				dethroned = true
				perOpp[opp] = append(perOpp[opp], c)
			}
		}
		if dethroned {
			outs = append(outs, c)
		}
	}

	sort.Slice(outs, func(i, j int) bool { return outs[i] < outs[j] })
	return outs, perOpp
}

// BuyInsurance processes a `BUYINSURANCE gid buyAmount cardList` command
// for the current suspend round.
func (t *Table) BuyInsurance(seat int, buyAmount int64, cards []card.Card) error {
	if t.state != StateSuspend {
		return ErrNotSuspended
	}
	s := &t.seats[seat]
	if s.Player == nil {
		return ErrOutOfTurn
	}
	round := t.currentInsuranceRound()
	info := &s.Player.Insurance[round]
	if info.Bought {
		return ErrAlreadyBought
	}
	for _, c := range cards {
		if !containsCardSlice(info.FullOuts, c) {
			return ErrCardNotInOuts
		}
	}

	n := len(cards)
	rate := rateFor(n)
	var maxAllowed int64
	if rate > 1 {
		maxAllowed = ceilDiv(info.MaxPayment, rate)
	} else {
		maxAllowed = info.MaxPayment
	}
	if buyAmount > maxAllowed {
		return ErrBuyAmountTooLarge
	}

	info.Bought = true
	info.BuyAmount = buyAmount
	info.ChosenOuts = cards
	return nil
}

func containsCardSlice(xs []card.Card, c card.Card) bool {
	for _, x := range xs {
		if x == c {
			return true
		}
	}
	return false
}

// applyAutoInsuranceBuys implements the turn-round auto-buy rule: if a
// leader bought insurance on the flop but did not voluntarily buy again
// on the turn despite still having outs, the server auto-buys their full
// outs set.
func (t *Table) applyAutoInsuranceBuys() {
	round := t.currentInsuranceRound()
	if round != 1 {
		return
	}
	for i := range t.seats {
		p := t.seats[i].Player
		if p == nil {
			continue
		}
		prior := &p.Insurance[0]
		cur := &p.Insurance[1]
		if prior.Bought && !cur.Bought && len(cur.FullOuts) > 0 {
			n := len(cur.FullOuts)
			cur.Bought = true
			cur.ChosenOuts = append([]card.Card{}, cur.FullOuts...)
			cur.BuyAmount = ceilDiv(prior.BuyAmount, rateFor(n))
		}
	}
}

// settleInsurance applies the net insurance effect for both rounds of one
// player against the cards actually revealed. Returns the signed total
// net payment (positive = gain).
func (t *Table) settleInsurance(seatNo int) int64 {
	p := t.seats[seatNo].Player
	if p == nil {
		return 0
	}
	var total int64
	for round := 0; round < 2; round++ {
		idx := 3 + round // community[3] = turn card, community[4] = river card
		if len(t.community) <= idx {
			continue
		}
		net := t.settleInsuranceRound(&p.Insurance[round], t.community[idx])
		total += net
	}
	if total != 0 {
		p.Stake += total
		t.deltaAdd(seatNo, total)
		t.emit(broadcast(SnapInsuranceBenefits, InsuranceBenefitsPayload{Seat: seatNo, ClientID: p.ClientID, Amount: total}))
	}
	return total
}

func (t *Table) settleInsuranceRound(info *InsuranceInfo, actual card.Card) int64 {
	if !info.Bought {
		return 0
	}
	n := len(info.ChosenOuts)
	full := len(info.FullOuts)
	inOuts := containsCardSlice(info.FullOuts, actual)
	onBuyList := containsCardSlice(info.ChosenOuts, actual)

	uninsured := full - n
	var takeBack int64
	if uninsured > 0 {
		takeBack = ceilDiv(info.BuyAmount, rateFor(uninsured))
	} else if uninsured == 0 && n > 0 {
		// buying the entire outs set leaves no uninsured remainder: no
		// take-back is computed (it stays 0) and the boundary case is
		// flagged on the InsuranceInfo.
		info.DoubleRefund = true
	}

	var net int64
	switch {
	case !inOuts:
		if uninsured == 0 {
			net = -info.BuyAmount
		} else {
			net = -(info.BuyAmount - takeBack)
		}
	case onBuyList:
		payout := int64(math.Round(float64(info.BuyAmount) * rateFor(n)))
		if payout > info.MaxPayment {
			payout = info.MaxPayment
		}
		net = payout - takeBack
	default:
		// the uninsured out hit: the premium is lost, only the refund for
		// the uninsured remainder comes back
		net = takeBack - info.BuyAmount
	}
	info.NetPayment = net
	return net
}
