package card

import "math/rand"

// Deck is a stack of Cards used for dealing. It is always drawn from the
// top (the end of the backing slice) so Pop is O(1).
type Deck struct {
	cards CardList
	rng   *rand.Rand
}

// NewDeck returns an empty, unfilled Deck. Call Fill to populate it.
// rng may be nil, in which case a process-seeded source is used; tests
// should inject a deterministic source instead of relying on the default.
func NewDeck(rng *rand.Rand) *Deck {
	return &Deck{rng: rng}
}

// Fill replaces the deck's contents with all 52 cards in canonical order
// (Spade A..K, Heart A..K, Club A..K, Diamond A..K).
func (d *Deck) Fill() {
	d.cards.Init(AllCards)
}

// FillFrom replaces the deck's contents with a caller-supplied ordered
// list, consumed top-first via Pop. This is the debug-inject mode the
// engine uses for deterministic tests: it bypasses Shuffle entirely.
func (d *Deck) FillFrom(order []Card) {
	d.cards.Init(order)
	// PopCard drains from the end of the slice, so the caller's "first
	// dealt" card must sit at the end.
	for i, j := 0, len(d.cards)-1; i < j; i, j = i+1, j-1 {
		d.cards[i], d.cards[j] = d.cards[j], d.cards[i]
	}
}

// Shuffle permutes the deck uniformly using the injected RNG (or the
// package-level math/rand source if none was injected).
func (d *Deck) Shuffle() {
	if d.rng != nil {
		d.rng.Shuffle(len(d.cards), func(i, j int) {
			d.cards[i], d.cards[j] = d.cards[j], d.cards[i]
		})
		return
	}
	d.cards.Shuffle()
}

// Pop removes and returns the top card. ok is false when the deck is empty.
func (d *Deck) Pop() (c Card, ok bool) {
	if d.cards.Count() == 0 {
		return CardInvalid, false
	}
	return d.cards.PopCard(), true
}

// Len returns the number of cards remaining.
func (d *Deck) Len() int { return d.cards.Count() }

// Remaining returns a copy of the cards still in the deck, without
// removing them. Used by the insurance mini-market to enumerate outs
// among cards that have not yet been dealt.
func (d *Deck) Remaining() CardList {
	out := make(CardList, len(d.cards))
	copy(out, d.cards)
	return out
}

// AllCards is the canonical 52-card deck in fixed order.
var AllCards = []Card{
	CardSpadeA, CardSpade2, CardSpade3, CardSpade4, CardSpade5, CardSpade6,
	CardSpade7, CardSpade8, CardSpade9, CardSpadeT, CardSpadeJ, CardSpadeQ, CardSpadeK,
	CardHeartA, CardHeart2, CardHeart3, CardHeart4, CardHeart5, CardHeart6,
	CardHeart7, CardHeart8, CardHeart9, CardHeartT, CardHeartJ, CardHeartQ, CardHeartK,
	CardClubA, CardClub2, CardClub3, CardClub4, CardClub5, CardClub6,
	CardClub7, CardClub8, CardClub9, CardClubT, CardClubJ, CardClubQ, CardClubK,
	CardDiamondA, CardDiamond2, CardDiamond3, CardDiamond4, CardDiamond5, CardDiamond6,
	CardDiamond7, CardDiamond8, CardDiamond9, CardDiamondT, CardDiamondJ, CardDiamondQ, CardDiamondK,
}
