package engine

import (
	"math/rand"
	"testing"

	"github.com/coder/quartz"
	"github.com/stretchr/testify/require"

	"holdem-server/evaluator"
)

func potTable(t *testing.T) *Table {
	t.Helper()
	return NewTable(0, quartz.NewMock(t), rand.New(rand.NewSource(1)))
}

func betSeat(tbl *Table, seatNo int, cid int64, bet int64) *Player {
	p := &Player{ClientID: cid}
	tbl.seats[seatNo] = Seat{Occupied: true, InRound: true, Player: p, Bet: bet}
	return p
}

func TestThreeWayAllinSidePots(t *testing.T) {
	tbl := potTable(t)
	a := betSeat(tbl, 0, 1, 200)
	b := betSeat(tbl, 1, 2, 500)
	c := betSeat(tbl, 2, 3, 1000)

	tbl.collectBets()

	require.Len(t, tbl.pots, 3)
	require.Equal(t, int64(600), tbl.pots[0].Amount)
	require.Equal(t, []int{0, 1, 2}, tbl.pots[0].InvolvedSeats())
	require.Equal(t, int64(600), tbl.pots[1].Amount)
	require.Equal(t, []int{1, 2}, tbl.pots[1].InvolvedSeats())
	require.Equal(t, int64(500), tbl.pots[2].Amount)
	require.Equal(t, []int{2}, tbl.pots[2].InvolvedSeats())

	// seat bets are zeroed once collected
	for i := 0; i < 3; i++ {
		require.Zero(t, tbl.seats[i].Bet)
	}

	// the involved-seat sets nest: each side pot's set is a subset of the
	// pot beneath it
	for i := 1; i < len(tbl.pots); i++ {
		for s := range tbl.pots[i].Seats {
			require.True(t, tbl.pots[i-1].Seats[s], "pot %d seat %d missing from pot %d", i, s, i-1)
		}
	}

	// strengths A > B > C: A takes the main pot, B the first side pot, C
	// gets the uncalled 500 back
	strengths := map[int]evaluator.Strength{
		0: {Rank: 1},
		1: {Rank: 100},
		2: {Rank: 5000},
	}
	for idx, pot := range tbl.pots {
		tbl.awardPot(idx, pot, strengths)
	}
	require.Equal(t, int64(600), a.Stake)
	require.Equal(t, int64(600), b.Stake)
	require.Equal(t, int64(500), c.Stake)
	for _, pot := range tbl.pots {
		require.Zero(t, pot.Amount)
	}

	// everything wagered came back out: awarded deltas equal the 1700
	// that went in
	var awarded int64
	for _, d := range tbl.HandDeltas() {
		awarded += d
	}
	require.Equal(t, int64(1700), awarded)
}

func TestEqualBetsMergeIntoOnePot(t *testing.T) {
	tbl := potTable(t)
	betSeat(tbl, 0, 1, 100)
	betSeat(tbl, 1, 2, 100)
	betSeat(tbl, 2, 3, 100)

	tbl.collectBets()
	require.Len(t, tbl.pots, 1)
	require.Equal(t, int64(300), tbl.pots[0].Amount)

	// next street, same contributors: the open pot keeps absorbing
	tbl.seats[0].Bet = 50
	tbl.seats[1].Bet = 50
	tbl.seats[2].Bet = 50
	tbl.collectBets()
	require.Len(t, tbl.pots, 1)
	require.Equal(t, int64(450), tbl.pots[0].Amount)
}

func TestFoldedSeatContributesButIsNotInvolved(t *testing.T) {
	tbl := potTable(t)
	betSeat(tbl, 0, 1, 60)
	betSeat(tbl, 1, 2, 60)
	folder := betSeat(tbl, 2, 3, 20)
	_ = folder
	tbl.seats[2].InRound = false

	tbl.collectBets()
	var sum int64
	for _, p := range tbl.pots {
		sum += p.Amount
		require.False(t, p.Seats[2], "folded seat must not be involved")
	}
	require.Equal(t, int64(140), sum)
}

func TestOddChipsGoClockwiseFromDealer(t *testing.T) {
	tbl := potTable(t)
	tbl.dealer = 0
	w1 := betSeat(tbl, 3, 1, 0)
	w2 := betSeat(tbl, 7, 2, 0)

	pot := newPot()
	pot.Amount = 75
	pot.Seats[3] = true
	pot.Seats[7] = true
	tbl.pots = []*Pot{pot}

	strengths := map[int]evaluator.Strength{
		3: {Rank: 42},
		7: {Rank: 42},
	}
	log := &snapshotLog{}
	tbl.SetEmitter(log)
	tbl.awardPot(0, pot, strengths)

	require.Equal(t, int64(38), w1.Stake) // 37 + the odd chip
	require.Equal(t, int64(37), w2.Stake)
	require.Zero(t, pot.Amount)

	odd := log.byCode(SnapOddChips)
	require.Len(t, odd, 1)
	require.Equal(t, 3, odd[0].Payload.(OddChipsPayload).Seat)
}

func TestAbortHandRefundsBetsAndPots(t *testing.T) {
	tbl := potTable(t)
	a := betSeat(tbl, 0, 1, 100)
	b := betSeat(tbl, 1, 2, 100)
	tbl.collectBets()
	tbl.seats[0].Bet = 40
	a.Stake = 0
	b.Stake = 40

	tbl.abortHand()

	require.Equal(t, int64(140), a.Stake) // 40 outstanding + 100 pot share
	require.Equal(t, int64(140), b.Stake)
	require.Zero(t, tbl.potSum())
}
