package session

import (
	"fmt"
	"strings"

	"holdem-server/card"
	"holdem-server/controller"
	"holdem-server/engine"
)

// formatSnapshot renders one engine snapshot as a SNAP line.
func formatSnapshot(gid int64, tid int, s engine.Snapshot) string {
	var b strings.Builder
	fmt.Fprintf(&b, "SNAP %d:%d %s", gid, tid, s.Code)

	switch p := s.Payload.(type) {
	case engine.TableSnapshotPayload:
		fmt.Fprintf(&b, " %d:%s %d:%d:%d:%d:%d cc:%s",
			int(p.State), p.Round, p.Dealer, p.SB, p.BB, p.Current, p.LastBetSeat,
			cardGroup(p.Community))
		for _, seat := range p.Seats {
			if !seat.Occupied {
				continue
			}
			bits := 1
			if seat.InRound {
				bits |= 2
			}
			fmt.Fprintf(&b, " s%d:%d:%d:%d:%d:%d:%s:%s",
				seat.Seat, seat.ClientID, bits, seat.Stake, seat.RebuyStake, seat.Bet,
				seat.LastAction.Type, cardGroup(seat.HoleCards))
		}
		for _, pot := range p.Pots {
			fmt.Fprintf(&b, " p%d:%d", pot.Index, pot.Amount)
		}
		fmt.Fprintf(&b, " %d %d %d %d %d %d",
			p.CurrentBB, p.Level, p.NextBB, p.NextLevel, p.LastBlindsTime, p.MinBet)

	case engine.CardsPayload:
		fmt.Fprintf(&b, " %s", p.Phase)
		for _, c := range p.Cards {
			fmt.Fprintf(&b, " %s", c)
		}

	case engine.PlayerActionPayload:
		auto := 0
		if p.Auto {
			auto = 1
		}
		fmt.Fprintf(&b, " %s %d %d %d", p.Action, p.ClientID, p.Amount, auto)

	case engine.PlayerShowPayload:
		fmt.Fprintf(&b, " %d %s %s", p.ClientID, p.Cards[0], p.Cards[1])

	case engine.WinPotPayload:
		fmt.Fprintf(&b, " %d %d %d", p.ClientID, p.PotIndex, p.Amount)

	case engine.OddChipsPayload:
		fmt.Fprintf(&b, " %d %d %d", p.ClientID, p.PotIndex, p.Amount)

	case engine.WinAmountPayload:
		fmt.Fprintf(&b, " %d 0 %d", p.ClientID, p.Amount)

	case []engine.StakeChangeEntry:
		for _, e := range p {
			fmt.Fprintf(&b, " %d:%d:%d", e.ClientID, e.Stake, e.Delta)
		}

	case engine.GameStatePayload:
		fmt.Fprintf(&b, " %s", p.Code)
		if p.Code == engine.GameStateBroke {
			fmt.Fprintf(&b, " %d %d", p.ClientID, p.Placement)
		}

	case engine.BuyInsurancePayload:
		fmt.Fprintf(&b, " %d %d %d %s", p.ClientID, p.Round, p.MaxPayment, cardGroup(p.Outs))
		for opp, outs := range p.OutsPerOpponent {
			fmt.Fprintf(&b, " %d:%s", opp, cardGroup(outs))
		}

	case engine.InsuranceBenefitsPayload:
		fmt.Fprintf(&b, " %d %d", p.ClientID, p.Amount)

	case engine.RespitePayload:
		fmt.Fprintf(&b, " %d %d %d", p.ClientID, p.AddedSec, p.RemainingSec)

	case engine.FoyerPayload:
		fmt.Fprintf(&b, " %s %d \"%s\"", p.Kind, p.ClientID, p.Name)

	case engine.WantToStraddlePayload:
		fmt.Fprintf(&b, " %d", p.StraddleRate)
	}

	return b.String()
}

// cardGroup joins cards with '/' for compound fields; "-" when empty.
func cardGroup(cards []card.Card) string {
	if len(cards) == 0 {
		return "-"
	}
	parts := make([]string, len(cards))
	for i, c := range cards {
		parts[i] = c.String()
	}
	return strings.Join(parts, "/")
}

// formatGameInfo renders the GAMEINFO reply.
func formatGameInfo(g *controller.Game) string {
	cfg := g.Config()
	mandatory := 0
	if cfg.MandatoryStraddle {
		mandatory = 1
	}
	insurance := 0
	if cfg.EnableInsurance {
		insurance = 1
	}
	flags := 0
	if cfg.Password != "" {
		flags |= 1
	}
	if cfg.Restart {
		flags |= 2
	}
	return fmt.Sprintf("GAMEINFO %d %s:holdem:%s:%d %d:%d:%d:%d:%d:%g:%d:%d:%d:%d \"%s\"",
		g.ID, cfg.Variant, g.Status(), flags,
		cfg.MaxPlayers, g.PlayerCount(), int(cfg.Timeout.Seconds()), cfg.Stake,
		cfg.BlindsStart, cfg.BlindsFactor, int(cfg.BlindsTime.Seconds()), cfg.Ante,
		mandatory, insurance, cfg.Name)
}

// formatPlayerList renders the PLAYERLIST reply.
func formatPlayerList(g *controller.Game) string {
	var b strings.Builder
	fmt.Fprintf(&b, "PLAYERLIST %d", g.ID)
	for _, e := range g.PlayerList() {
		fmt.Fprintf(&b, " %d:%d:%d:%d", e.ClientID, e.TableNo, e.SeatNo, e.Stake)
	}
	return b.String()
}
