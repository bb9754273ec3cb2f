package engine

import "sort"

// collectBets folds every seat's current `bet` into the layered
// main+side-pot structure and zeroes the seats' bets. It is the only
// place a seat's bet moves into a pot (antes go from the stake straight
// into the main pot during Blinds): sort bets ascending, peel a
// pot off at each distinct bet threshold, and merge it into the trailing
// open pot when the involved-seat set is unchanged.
func (t *Table) collectBets() {
	type betSeat struct {
		seat int
		bet  int64
	}

	var contributing []betSeat
	for i := range t.seats {
		s := &t.seats[i]
		if s.Bet > 0 {
			contributing = append(contributing, betSeat{i, s.Bet})
		}
	}
	if len(contributing) == 0 {
		return
	}

	sort.Slice(contributing, func(i, j int) bool { return contributing[i].bet < contributing[j].bet })

	var totalContributed int64
	for i, c := range contributing {
		contribution := c.bet - totalContributed
		if contribution <= 0 {
			continue
		}

		np := newPot()
		for j := i; j < len(contributing); j++ {
			cj := contributing[j]
			actual := contribution
			if remaining := cj.bet - totalContributed; actual > remaining {
				actual = remaining
			}
			np.Amount += actual
			if t.seats[cj.seat].InRound {
				np.Seats[cj.seat] = true
			}
		}

		switch {
		case len(np.Seats) == 0:
			// every contributor at this threshold has folded: the dead
			// money joins the pot beneath it (or seeds the main pot for
			// whoever is still in the hand)
			if n := len(t.pots); n > 0 {
				t.pots[n-1].Amount += np.Amount
			} else {
				for si := range t.seats {
					if t.seats[si].InRound {
						np.Seats[si] = true
					}
				}
				t.pots = append(t.pots, np)
			}
		case len(t.pots) > 0 && !t.pots[len(t.pots)-1].Final && sameSeatSet(t.pots[len(t.pots)-1].Seats, np.Seats):
			t.pots[len(t.pots)-1].Amount += np.Amount
		default:
			// a deeper layer seals every pot beneath it: once a side pot
			// exists, nothing can contribute to the shallower ones again
			if n := len(t.pots); n > 0 {
				t.pots[n-1].Final = true
			}
			t.pots = append(t.pots, np)
		}

		totalContributed += contribution
	}

	// The threshold walk above already peels the largest bettor's uncalled
	// excess into its own one-seat pot (the deepest threshold has a single
	// contributor), which awardPot later returns to them untouched.

	for i := range t.seats {
		t.seats[i].Bet = 0
	}
}

func sameSeatSet(a, b map[int]bool) bool {
	if len(a) != len(b) {
		return false
	}
	for k := range a {
		if !b[k] {
			return false
		}
	}
	return true
}

// PotSum returns the total chips currently held across all pots. After a
// showdown it must be zero; the controller treats anything else as a
// log-only invariant violation.
func (t *Table) PotSum() int64 { return t.potSum() }

func (t *Table) potSum() int64 {
	var sum int64
	for _, p := range t.pots {
		sum += p.Amount
	}
	return sum
}
