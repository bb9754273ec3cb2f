package engine

import (
	"sort"
	"time"

	"holdem-server/card"
	"holdem-server/evaluator"
)

// stateShowdown computes the win list and distributes every pot. Seats
// are ranked by hand strength, tied tiers split each pot evenly, and the
// odd-chip remainder walks seats clockwise starting at the dealer.
func (t *Table) stateShowdown(now time.Time) {
	strengths := map[int]evaluator.Strength{}
	for i := range t.seats {
		s := &t.seats[i]
		if !s.InRound || s.Player == nil || len(s.Player.HoleCards) < 2 {
			continue
		}
		if len(t.community) < 3 {
			continue
		}
		str, err := evaluator.Evaluate([2]card.Card{s.Player.HoleCards[0], s.Player.HoleCards[1]}, t.community)
		if err != nil {
			continue
		}
		strengths[i] = str
		s.Player.HoleShow = [2]bool{true, true}
		if !s.ManualShowCards {
			// reveal anyone whose hand reaches a real showdown even if
			// they never explicitly opted to show.
			t.emit(broadcast(SnapPlayerShow, PlayerShowPayload{Seat: i, ClientID: s.Player.ClientID, Cards: [2]card.Card{s.Player.HoleCards[0], s.Player.HoleCards[1]}}))
		}
	}

	for idx, pot := range t.pots {
		if pot.Amount == 0 {
			continue
		}
		t.awardPot(idx, pot, strengths)
	}

	if t.InsuranceEnabled {
		for i := range t.seats {
			if t.seats[i].Player != nil {
				t.settleInsurance(i)
			}
		}
	}

	t.ScheduleState(StateEndRound, 4*time.Second)
}

func (t *Table) awardPot(idx int, pot *Pot, strengths map[int]evaluator.Strength) {
	involved := pot.InvolvedSeats()
	if len(involved) == 0 {
		return
	}

	var best *evaluator.Strength
	for _, seatNo := range involved {
		str, ok := strengths[seatNo]
		if !ok {
			continue
		}
		if best == nil || str.Better(*best) {
			s := str
			best = &s
		}
	}
	if best == nil {
		return
	}

	var winnerSeats []int
	for _, seatNo := range involved {
		if str, ok := strengths[seatNo]; ok && str.Equal(*best) {
			winnerSeats = append(winnerSeats, seatNo)
		}
	}
	if len(winnerSeats) == 0 {
		return
	}

	// order winners clockwise starting right after the dealer so odd
	// chips land on "the first involved seat clockwise from the dealer".
	sort.Slice(winnerSeats, func(i, j int) bool {
		return clockwiseDistance(t.dealer, winnerSeats[i]) < clockwiseDistance(t.dealer, winnerSeats[j])
	})

	share := pot.Amount / int64(len(winnerSeats))
	odd := pot.Amount % int64(len(winnerSeats))

	for i, seatNo := range winnerSeats {
		amt := share
		if int64(i) < odd {
			amt++
		}
		if amt == 0 {
			continue
		}
		t.seats[seatNo].Player.Stake += amt
		t.deltaAdd(seatNo, amt)
		t.emit(broadcast(SnapWinPot, WinPotPayload{Seat: seatNo, ClientID: t.seats[seatNo].Player.ClientID, PotIndex: idx, Amount: share}))
		if int64(i) < odd {
			t.emit(broadcast(SnapOddChips, OddChipsPayload{Seat: seatNo, ClientID: t.seats[seatNo].Player.ClientID, PotIndex: idx, Amount: 1}))
		}
	}
	pot.Amount = 0
}

func clockwiseDistance(from, to int) int {
	d := to - from
	if d <= 0 {
		d += NumSeats
	}
	return d
}

// stateEndRound computes delta stakes and advances the dealer button.
// Broke-player detection and the finish list belong to the controller (it
// owns the notion of minimum required buy-in and the overall player
// roster); Table only emits the per-seat deltas here.
func (t *Table) stateEndRound(now time.Time) {
	var entries []StakeChangeEntry
	for i := range t.seats {
		s := &t.seats[i]
		if !s.Occupied || s.Player == nil {
			continue
		}
		delta := s.Player.Stake - s.Player.StakeBefore
		entries = append(entries, StakeChangeEntry{Seat: i, ClientID: s.Player.ClientID, Stake: s.Player.Stake, Delta: delta})
		if delta != 0 {
			t.emit(broadcast(SnapWinAmount, WinAmountPayload{Seat: i, ClientID: s.Player.ClientID, Amount: delta}))
		}
	}
	t.emit(broadcast(SnapStakeChange, entries))

	if t.OnEndRound != nil {
		t.OnEndRound(t)
	}
	if t.state != StateEndRound {
		// the controller ended the game mid-hook
		return
	}

	t.dealer = t.nextOccupied(t.dealer)

	t.ScheduleState(StateNewRound, 1*time.Second)
}
