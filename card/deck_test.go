package card

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDeckFillIsCanonical52(t *testing.T) {
	d := NewDeck(rand.New(rand.NewSource(1)))
	d.Fill()
	require.Equal(t, 52, d.Len())

	seen := make(map[Card]struct{}, 52)
	for {
		c, ok := d.Pop()
		if !ok {
			break
		}
		_, dup := seen[c]
		require.False(t, dup, "duplicate card %v", c)
		seen[c] = struct{}{}
	}
	require.Len(t, seen, 52)
}

func TestDeckFillShuffleIsPermutationOfFill(t *testing.T) {
	d := NewDeck(rand.New(rand.NewSource(42)))
	d.Fill()
	d.Shuffle()
	require.Equal(t, 52, d.Len())

	seen := make(map[Card]struct{}, 52)
	for {
		c, ok := d.Pop()
		if !ok {
			break
		}
		seen[c] = struct{}{}
	}
	require.Len(t, seen, 52)
}

func TestDeckFillFromDebugInject(t *testing.T) {
	d := NewDeck(nil)
	order := []Card{CardSpadeA, CardHeartK, CardClub2}
	d.FillFrom(order)
	require.Equal(t, 3, d.Len())

	c1, ok := d.Pop()
	require.True(t, ok)
	require.Equal(t, CardSpadeA, c1)

	c2, _ := d.Pop()
	require.Equal(t, CardHeartK, c2)

	c3, _ := d.Pop()
	require.Equal(t, CardClub2, c3)

	_, ok = d.Pop()
	require.False(t, ok)
}
