// Package evaluator is the hand-strength oracle for the engine: it takes
// hole cards plus community cards and returns a comparable strength,
// keeping all hand-ranking knowledge behind one boundary. It wraps the
// published github.com/chehsunliu/poker library rather than carrying a
// Cactus-Kev lookup table of its own.
package evaluator

import (
	"fmt"

	"github.com/chehsunliu/poker"

	"holdem-server/card"
)

// Category is the nine standard poker hand categories, ordered worst to
// best, independent of the underlying library's numeric encoding.
type Category int

const (
	HighCard Category = iota
	OnePair
	TwoPair
	ThreeOfAKind
	Straight
	Flush
	FullHouse
	FourOfAKind
	StraightFlush
)

func (c Category) String() string {
	switch c {
	case HighCard:
		return "high card"
	case OnePair:
		return "one pair"
	case TwoPair:
		return "two pair"
	case ThreeOfAKind:
		return "three of a kind"
	case Straight:
		return "straight"
	case Flush:
		return "flush"
	case FullHouse:
		return "full house"
	case FourOfAKind:
		return "four of a kind"
	case StraightFlush:
		return "straight flush"
	}
	return "unknown"
}

// Strength is a totally-ordered hand value. Lower Rank is stronger,
// mirroring poker.Evaluate's convention (1 is the royal flush).
type Strength struct {
	Rank     int32
	Category Category
	Desc     string
}

// Better reports whether s beats other.
func (s Strength) Better(other Strength) bool {
	return s.Rank < other.Rank
}

// Equal reports whether s and other tie.
func (s Strength) Equal(other Strength) bool {
	return s.Rank == other.Rank
}

func toPokerCard(c card.Card) poker.Card {
	return poker.NewCard(c.String())
}

// Evaluate returns the best 5-card strength achievable from the given
// hole cards plus community cards. hole must have exactly 2 cards;
// community must have 3, 4 or 5 (flop/turn/river).
func Evaluate(hole [2]card.Card, community []card.Card) (Strength, error) {
	if len(community) < 3 || len(community) > 5 {
		return Strength{}, fmt.Errorf("evaluator: need 3-5 community cards, got %d", len(community))
	}

	cards := make([]poker.Card, 0, 2+len(community))
	cards = append(cards, toPokerCard(hole[0]), toPokerCard(hole[1]))
	for _, c := range community {
		cards = append(cards, toPokerCard(c))
	}

	rank := poker.Evaluate(cards)
	return Strength{
		Rank:     rank,
		Category: classify(poker.RankClass(rank)),
		Desc:     poker.RankString(rank),
	}, nil
}

// classify maps chehsunliu/poker's internal rank-class buckets (1=best,
// 9=worst) onto our worst-to-best Category enum.
func classify(rankClass int32) Category {
	switch rankClass {
	case 1:
		return StraightFlush
	case 2:
		return FourOfAKind
	case 3:
		return FullHouse
	case 4:
		return Flush
	case 5:
		return Straight
	case 6:
		return ThreeOfAKind
	case 7:
		return TwoPair
	case 8:
		return OnePair
	default:
		return HighCard
	}
}

