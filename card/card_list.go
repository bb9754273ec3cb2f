package card

import "math/rand"

type CardList []Card

func (ds *CardList) Init(cards []Card) {
	*ds = make([]Card, len(cards))
	copy(*ds, cards)
}

// Count returns the number of cards in the list.
func (ds CardList) Count() int {
	return len(ds)
}

// Contains reports whether c is present in the list.
func (ds CardList) Contains(c Card) bool {
	for _, cc := range ds {
		if cc == c {
			return true
		}
	}
	return false
}

// String renders the list in short text form, space separated (e.g.
// "Ah Tc 2d").
func (ds CardList) String() string {
	if len(ds) == 0 {
		return ""
	}
	out := make([]byte, 0, len(ds)*3)
	for i, c := range ds {
		if i > 0 {
			out = append(out, ' ')
		}
		out = append(out, c.String()...)
	}
	return string(out)
}

func (ds CardList) CardsBytes() []byte {
	return Cards2bytes(ds)
}

func (ds CardList) Shuffle() {
	rand.Shuffle(len(ds), func(i, j int) {
		ds[i], ds[j] = ds[j], ds[i]
	})
}

func (ds *CardList) Add(cards ...Card) {
	*ds = append(*ds, cards...)
}

func (ds *CardList) PopCard() Card {
	totalCount := ds.Count()
	if totalCount == 0 {
		return CardInvalid
	}
	card := (*ds)[totalCount-1]
	*ds = (*ds)[:totalCount-1]
	return card
}

func (ds *CardList) PopCards(size int) ([]Card, bool) {
	if size > ds.Count() {
		return nil, false
	}
	cards := make([]Card, size)
	copy(cards, (*ds)[:size])
	*ds = (*ds)[size:]
	return cards, true
}

