package ledger

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSQLiteRecordAndList(t *testing.T) {
	svc, err := NewSQLiteService(":memory:")
	require.NoError(t, err)
	defer svc.Close()

	ctx := context.Background()
	rec := HandRecord{
		GameID:   1,
		HandNo:   3,
		PlayedAt: time.Unix(1700000000, 0),
		Board:    "Ah Tc 2d 9s 4c",
		Deltas:   map[int64]int64{101: 30, 102: -30},
	}
	require.NoError(t, svc.RecordHand(ctx, rec))

	// re-recording the same hand upserts rather than duplicating
	rec.Deltas[101] = 40
	require.NoError(t, svc.RecordHand(ctx, rec))

	hands, err := svc.RecentHands(ctx, 1, 10)
	require.NoError(t, err)
	require.Len(t, hands, 1)
	require.Equal(t, int64(40), hands[0].Deltas[101])
	require.Equal(t, "Ah Tc 2d 9s 4c", hands[0].Board)
}

func TestRecentHandsOrderedNewestFirst(t *testing.T) {
	svc, err := NewSQLiteService(":memory:")
	require.NoError(t, err)
	defer svc.Close()

	ctx := context.Background()
	base := time.Unix(1700000000, 0)
	for i := 1; i <= 3; i++ {
		require.NoError(t, svc.RecordHand(ctx, HandRecord{
			GameID:   5,
			HandNo:   i,
			PlayedAt: base.Add(time.Duration(i) * time.Minute),
			Board:    "",
			Deltas:   map[int64]int64{},
		}))
	}

	hands, err := svc.RecentHands(ctx, 5, 2)
	require.NoError(t, err)
	require.Len(t, hands, 2)
	require.Equal(t, 3, hands[0].HandNo)
	require.Equal(t, 2, hands[1].HandNo)
}

func TestNoopServiceIsInert(t *testing.T) {
	svc := NewNoop()
	require.NoError(t, svc.RecordHand(context.Background(), HandRecord{}))
	hands, err := svc.RecentHands(context.Background(), 1, 10)
	require.NoError(t, err)
	require.Empty(t, hands)
}
