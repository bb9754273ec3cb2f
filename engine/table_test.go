package engine

import (
	"math/rand"
	"testing"
	"time"

	"github.com/coder/quartz"
	"github.com/stretchr/testify/require"

	"holdem-server/card"
)

// snapshotLog captures every emitted snapshot in order.
type snapshotLog struct {
	snaps []Snapshot
}

func (l *snapshotLog) Emit(s Snapshot) { l.snaps = append(l.snaps, s) }

func (l *snapshotLog) byCode(code SnapshotCode) []Snapshot {
	var out []Snapshot
	for _, s := range l.snaps {
		if s.Code == code {
			out = append(out, s)
		}
	}
	return out
}

func newTestTable(t *testing.T) (*Table, *quartz.Mock, *snapshotLog) {
	t.Helper()
	mc := quartz.NewMock(t)
	tbl := NewTable(0, mc, rand.New(rand.NewSource(7)))
	tbl.ActionTimeout = 30 * time.Second
	tbl.SetBlinds(20, 0)
	tbl.SetDeckOverride(card.AllCards)
	log := &snapshotLog{}
	tbl.SetEmitter(log)
	return tbl, mc, log
}

func seat(t *testing.T, tbl *Table, seatNo int, cid int64, stake int64) *Player {
	t.Helper()
	p := &Player{ClientID: cid, Stake: stake, SeatNo: -1}
	require.True(t, tbl.SeatPlayer(seatNo, p))
	return p
}

// pump runs a few ticks at the same instant so chained transitions drain.
func pump(tbl *Table, now time.Time) {
	for i := 0; i < 6; i++ {
		tbl.Tick(now)
	}
}

func advance(tbl *Table, mc *quartz.Mock, d time.Duration) {
	mc.Advance(d)
	pump(tbl, mc.Now())
}

func totalChips(tbl *Table) int64 {
	var sum int64
	for i := 0; i < NumSeats; i++ {
		s := tbl.Seat(i)
		if s.Occupied {
			sum += s.Player.Stake + s.Bet
		}
	}
	return sum + tbl.potSum()
}

func TestHeadsUpFoldToBigBlind(t *testing.T) {
	tbl, mc, log := newTestTable(t)
	a := seat(t, tbl, 0, 1, 1500)
	b := seat(t, tbl, 1, 2, 1500)

	tbl.Start(mc.Now())
	require.Equal(t, StateBlinds, tbl.State())
	// heads-up: the dealer posts the small blind
	require.Equal(t, tbl.Dealer(), tbl.SmallBlindSeat())
	require.Equal(t, int64(10), tbl.Seat(0).Bet)
	require.Equal(t, int64(20), tbl.Seat(1).Bet)

	advance(tbl, mc, 3*time.Second) // into Betting
	require.Equal(t, StateBetting, tbl.State())
	require.Equal(t, 0, tbl.CurrentSeat())

	require.True(t, tbl.Act(0, Action{Type: ActionFold}))
	pump(tbl, mc.Now())
	require.Equal(t, StateAskShow, tbl.State())

	// survivor's show prompt times out; the default for a lone seat is
	// muck, and the hand resolves through AllFolded
	advance(tbl, mc, 31*time.Second)
	advance(tbl, mc, 2*time.Second) // AllFolded -> EndRound delay

	require.Equal(t, int64(1490), a.Stake)
	require.Equal(t, int64(1510), b.Stake)
	require.Equal(t, ActionFold, a.LastAction.Type)
	require.Equal(t, ActionNone, b.LastAction.Type)

	wins := log.byCode(SnapWinPot)
	require.NotEmpty(t, wins)
	payload := wins[0].Payload.(WinPotPayload)
	require.Equal(t, int64(2), payload.ClientID)
	require.Equal(t, int64(30), payload.Amount)

	for _, s := range log.byCode(SnapGameState) {
		require.NotEqual(t, GameStateBroke, s.Payload.(GameStatePayload).Code)
	}
}

func TestTimeoutAutoFoldIncrementsCounter(t *testing.T) {
	tbl, mc, log := newTestTable(t)
	a := seat(t, tbl, 0, 1, 1500)
	seat(t, tbl, 1, 2, 1500)

	tbl.Start(mc.Now())
	advance(tbl, mc, 3*time.Second)
	require.Equal(t, StateBetting, tbl.State())
	require.Equal(t, 0, tbl.CurrentSeat())

	// seat 0 owes 10 more against the big blind, so the auto-action on
	// timeout must be a fold, not a check
	advance(tbl, mc, 31*time.Second)

	require.Equal(t, 1, a.TimedOutCount)
	require.Equal(t, ActionFold, a.LastAction.Type)
	require.True(t, a.LastAction.Auto)

	actions := log.byCode(SnapPlayerAction)
	require.NotEmpty(t, actions)
	last := actions[len(actions)-1].Payload.(PlayerActionPayload)
	require.Equal(t, ActionFold, last.Action)
	require.True(t, last.Auto)
}

func TestTimeoutAutoCheckWhenNothingOwed(t *testing.T) {
	tbl, mc, _ := newTestTable(t)
	seat(t, tbl, 0, 1, 1500)
	b := seat(t, tbl, 1, 2, 1500)

	tbl.Start(mc.Now())
	advance(tbl, mc, 3*time.Second)

	// SB completes; BB then has nothing owed and times out into a check
	require.True(t, tbl.Act(0, Action{Type: ActionCall}))
	pump(tbl, mc.Now())
	require.Equal(t, 1, tbl.CurrentSeat())

	advance(tbl, mc, 31*time.Second)
	require.Equal(t, ActionCheck, b.LastAction.Type)
	require.True(t, b.LastAction.Auto)
	require.Equal(t, 1, b.TimedOutCount)
}

func TestCallsCloseStreetAgainstAllinBigBlind(t *testing.T) {
	tbl, mc, _ := newTestTable(t)
	seat(t, tbl, 0, 1, 1500)
	seat(t, tbl, 1, 2, 1500)
	seat(t, tbl, 2, 3, 15) // short stack: posting the big blind puts it all-in

	tbl.Start(mc.Now())
	advance(tbl, mc, 3*time.Second)

	// 3-handed: dealer 0, SB 1, BB 2, UTG = dealer
	require.Equal(t, 0, tbl.CurrentSeat())
	require.True(t, tbl.Act(0, Action{Type: ActionCall}))
	pump(tbl, mc.Now())

	require.True(t, tbl.Act(1, Action{Type: ActionCall}))
	pump(tbl, mc.Now())

	// BB seat 2 posted its full 15 already (blind clamped to stake), so
	// it is all-in and the street closes without asking it to act; the
	// flop deals with 45 collected
	require.Equal(t, StateBetting, tbl.State())
	require.Equal(t, RoundFlop, tbl.Round())
	require.Equal(t, int64(45), tbl.potSum())
	require.Equal(t, ActionCall, tbl.Seat(0).Player.LastAction.Type)
	require.Equal(t, int64(0), tbl.Seat(2).Player.Stake)
}

func TestMinimumBetFollowsRaiseIncrement(t *testing.T) {
	tbl, mc, _ := newTestTable(t)
	seat(t, tbl, 0, 1, 5000)
	seat(t, tbl, 1, 2, 5000)

	tbl.Start(mc.Now())
	require.Equal(t, int64(40), tbl.MinimumBet()) // bb 20 posted: 20+(20-0)

	advance(tbl, mc, 3*time.Second)
	require.True(t, tbl.Act(0, Action{Type: ActionRaise, Amount: 60}))
	pump(tbl, mc.Now())
	// table bet 60, previous bet 20: next raise must reach 100
	require.Equal(t, int64(100), tbl.MinimumBet())
}

func TestChipConservationThroughHand(t *testing.T) {
	tbl, mc, _ := newTestTable(t)
	seat(t, tbl, 0, 1, 1500)
	seat(t, tbl, 1, 2, 1500)
	seat(t, tbl, 2, 3, 1500)

	before := int64(4500)
	tbl.Start(mc.Now())
	require.Equal(t, before, totalChips(tbl))

	advance(tbl, mc, 3*time.Second)
	for i := 0; i < 40 && tbl.State() == StateBetting; i++ {
		tbl.Act(tbl.CurrentSeat(), Action{Type: ActionCall})
		pump(tbl, mc.Now())
		require.Equal(t, before, totalChips(tbl))
		if tbl.State() != StateBetting {
			advance(tbl, mc, time.Second)
		}
	}
	require.Equal(t, before, totalChips(tbl))
}

func TestResetActionIsNoop(t *testing.T) {
	tbl, mc, _ := newTestTable(t)
	a := seat(t, tbl, 0, 1, 1500)
	seat(t, tbl, 1, 2, 1500)

	tbl.Start(mc.Now())
	advance(tbl, mc, 3*time.Second)

	a.NextAction = Action{Type: ActionNone}
	a.NextAction = Action{Type: ActionNone}
	pump(tbl, mc.Now())
	require.Equal(t, StateBetting, tbl.State())
	require.Equal(t, 0, tbl.CurrentSeat())
}
