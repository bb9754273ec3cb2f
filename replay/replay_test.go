package replay

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRecorderKeepsDenseSequence(t *testing.T) {
	r := NewRecorder(7)
	r.Append("GameState", 1, map[string]string{"code": "new hand"})
	r.Append("PlayerAction", 1, map[string]any{"seat": 0, "action": "fold"})
	r.Append("WinPot", 1, nil)

	tape := r.Tape()
	require.Equal(t, int64(7), tape.GameID)
	require.Len(t, tape.Events, 3)
	for i, ev := range tape.Events {
		require.Equal(t, uint64(i+1), ev.Seq)
		require.Equal(t, 1, ev.HandNo)
	}
	require.Empty(t, tape.Events[2].Payload)
}

func TestTapeRoundTrip(t *testing.T) {
	r := NewRecorder(3)
	r.Append("Table", 2, map[string]int{"dealer": 4})

	var buf bytes.Buffer
	_, err := r.WriteTo(&buf)
	require.NoError(t, err)

	parsed, err := Parse(buf.Bytes())
	require.NoError(t, err)
	require.Equal(t, r.Tape(), parsed)
}

func TestTapeCopyIsIndependent(t *testing.T) {
	r := NewRecorder(1)
	r.Append("a", 1, nil)
	tape := r.Tape()
	r.Append("b", 1, nil)
	require.Len(t, tape.Events, 1)
	require.Equal(t, 2, r.Len())
}
