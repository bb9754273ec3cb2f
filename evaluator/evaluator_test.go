package evaluator

import (
	"testing"

	"github.com/stretchr/testify/require"

	"holdem-server/card"
)

func mustCard(t *testing.T, s string) card.Card {
	t.Helper()
	c, err := card.ParseCard(s)
	require.NoError(t, err)
	return c
}

func TestEvaluateOrdersStrengthCorrectly(t *testing.T) {
	community := []card.Card{
		mustCard(t, "2h"), mustCard(t, "7d"), mustCard(t, "9c"), mustCard(t, "Ks"), mustCard(t, "3h"),
	}

	aa, err := Evaluate([2]card.Card{mustCard(t, "Ah"), mustCard(t, "Ac")}, community)
	require.NoError(t, err)

	kq, err := Evaluate([2]card.Card{mustCard(t, "Kh"), mustCard(t, "Qc")}, community)
	require.NoError(t, err)

	require.True(t, aa.Better(kq))
	require.False(t, kq.Better(aa))
	require.Equal(t, OnePair, aa.Category)
}

func TestEvaluateRejectsWrongCommunityCount(t *testing.T) {
	_, err := Evaluate([2]card.Card{mustCard(t, "Ah"), mustCard(t, "Ac")}, []card.Card{mustCard(t, "2h")})
	require.Error(t, err)
}
