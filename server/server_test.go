package server

import (
	"io"
	"math/rand"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
	"github.com/stretchr/testify/require"

	"holdem-server/controller"
)

func newTestServer(t *testing.T) (*Server, *quartz.Mock) {
	t.Helper()
	mc := quartz.NewMock(t)
	s := New(Config{}, log.New(io.Discard), mc, rand.New(rand.NewSource(1)), nil)
	return s, mc
}

func TestCreateAndLookupGame(t *testing.T) {
	s, _ := newTestServer(t)

	g, err := s.CreateGame(1, controller.Config{Variant: controller.VariantSitAndGo})
	require.NoError(t, err)
	require.Equal(t, int64(1), g.ID)

	got, ok := s.Game(1)
	require.True(t, ok)
	require.Same(t, g, got)
	require.Len(t, s.Games(), 1)
}

func TestTickReapsExpiredGames(t *testing.T) {
	s, mc := newTestServer(t)

	_, err := s.CreateGame(1, controller.Config{
		Variant:  controller.VariantSitAndGo,
		ExpireIn: time.Second,
	})
	require.NoError(t, err)

	mc.Advance(2 * time.Second)
	s.tick(mc.Now())
	s.tick(mc.Now()) // the first tick already flipped the game to Expired and reaped it
	require.Empty(t, s.Games())
}

func TestEventsFlowThroughLoop(t *testing.T) {
	s, _ := newTestServer(t)
	conn := &fakeLineConn{}

	s.handleEvent(event{kind: evConnect, conn: conn})
	require.Equal(t, 1, s.hub.ClientCount())

	s.handleEvent(event{kind: evLine, conn: conn, line: "PCLIENT 1001 test-uuid 0"})
	require.NotEmpty(t, conn.lines)

	s.handleEvent(event{kind: evDisconnect, conn: conn})
	require.Zero(t, s.hub.ClientCount())
	require.True(t, conn.closed)
}

type fakeLineConn struct {
	lines  []string
	closed bool
}

func (f *fakeLineConn) WriteLine(line string) error {
	f.lines = append(f.lines, line)
	return nil
}

func (f *fakeLineConn) Close() error {
	f.closed = true
	return nil
}
