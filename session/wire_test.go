package session

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"holdem-server/card"
	"holdem-server/engine"
)

func TestFormatPlayerActionSnapshot(t *testing.T) {
	line := formatSnapshot(3, 0, engine.Broadcast(engine.SnapPlayerAction, engine.PlayerActionPayload{
		Seat: 2, ClientID: 105, Action: engine.ActionRaise, Amount: 60,
	}))
	require.Equal(t, "SNAP 3:0 PlayerAction raise 105 60 0", line)

	auto := formatSnapshot(3, 0, engine.Broadcast(engine.SnapPlayerAction, engine.PlayerActionPayload{
		Seat: 2, ClientID: 105, Action: engine.ActionFold, Auto: true,
	}))
	require.Equal(t, "SNAP 3:0 PlayerAction fold 105 0 1", auto)
}

func TestFormatTableSnapshot(t *testing.T) {
	ah, _ := card.ParseCard("Ah")
	tc, _ := card.ParseCard("Tc")
	d2, _ := card.ParseCard("2d")

	line := formatSnapshot(7, 0, engine.Broadcast(engine.SnapTable, engine.TableSnapshotPayload{
		State:       engine.StateBetting,
		Round:       engine.RoundFlop,
		Dealer:      0,
		SB:          1,
		BB:          2,
		Current:     3,
		LastBetSeat: 3,
		Community:   []card.Card{ah, tc, d2},
		Seats: []engine.SeatSnapshot{
			{Seat: 1, ClientID: 101, Occupied: true, InRound: true, Stake: 980, Bet: 20},
			{Seat: 4}, // empty seats are omitted from the wire line
		},
		Pots:      []engine.PotSnapshot{{Index: 0, Amount: 60}},
		CurrentBB: 20,
		MinBet:    40,
	}))

	require.True(t, strings.HasPrefix(line, "SNAP 7:0 Table "), "got %q", line)
	require.Contains(t, line, "cc:Ah/Tc/2d")
	require.Contains(t, line, "s1:101:3:980:0:20:none:-")
	require.Contains(t, line, "p0:60")
	require.NotContains(t, line, "s4:")
}

func TestFormatStakeChangeList(t *testing.T) {
	line := formatSnapshot(1, 0, engine.Broadcast(engine.SnapStakeChange, []engine.StakeChangeEntry{
		{Seat: 0, ClientID: 101, Stake: 1510, Delta: 10},
		{Seat: 1, ClientID: 102, Stake: 1490, Delta: -10},
	}))
	require.Equal(t, "SNAP 1:0 StakeChange 101:1510:10 102:1490:-10", line)
}
