package session

import (
	"fmt"
	"io"
	"math/rand"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
	"github.com/stretchr/testify/require"

	"holdem-server/controller"
)

type fakeConn struct {
	lines  []string
	closed bool
}

func (f *fakeConn) WriteLine(line string) error {
	f.lines = append(f.lines, line)
	return nil
}

func (f *fakeConn) Close() error {
	f.closed = true
	return nil
}

func (f *fakeConn) last() string {
	if len(f.lines) == 0 {
		return ""
	}
	return f.lines[len(f.lines)-1]
}

type stubProvider struct {
	games  map[int64]*controller.Game
	nextID int64
	clock  quartz.Clock
}

func newStubProvider(clock quartz.Clock) *stubProvider {
	return &stubProvider{games: make(map[int64]*controller.Game), clock: clock}
}

func (p *stubProvider) Game(gid int64) (*controller.Game, bool) {
	g, ok := p.games[gid]
	return g, ok
}

func (p *stubProvider) Games() []*controller.Game {
	out := make([]*controller.Game, 0, len(p.games))
	for _, g := range p.games {
		out = append(out, g)
	}
	return out
}

func (p *stubProvider) CreateGame(owner int64, cfg controller.Config) (*controller.Game, error) {
	p.nextID++
	g := controller.NewGame(p.nextID, owner, cfg, log.New(io.Discard), p.clock, rand.New(rand.NewSource(1)), nil, nil)
	p.games[g.ID] = g
	return g, nil
}

func (p *stubProvider) ServerInfo() map[string]string { return map[string]string{} }

func newTestHub(t *testing.T) (*Hub, *quartz.Mock, *stubProvider) {
	t.Helper()
	mc := quartz.NewMock(t)
	provider := newStubProvider(mc)
	hub := NewHub(log.New(io.Discard), mc, provider, time.Minute, "hunter2")
	return hub, mc, provider
}

func introduce(t *testing.T, hub *Hub, uuid string) (*Client, *fakeConn) {
	t.Helper()
	conn := &fakeConn{}
	c := hub.Connect(conn)
	hub.HandleLine(c, fmt.Sprintf("PCLIENT %d %s 0", ProtocolVersion, uuid))
	require.True(t, strings.HasPrefix(conn.last(), "PSERVER "), "got %q", conn.last())
	return c, conn
}

func TestHandshakeRejectsOldVersion(t *testing.T) {
	hub, _, _ := newTestHub(t)
	conn := &fakeConn{}
	c := hub.Connect(conn)

	hub.HandleLine(c, fmt.Sprintf("PCLIENT %d old-uuid 0", VersionFloor-1))
	require.Contains(t, conn.last(), fmt.Sprintf("ERR %d", CodeWrongVersion))
	require.True(t, conn.closed)
}

func TestHandshakeRequiredFirst(t *testing.T) {
	hub, _, _ := newTestHub(t)
	conn := &fakeConn{}
	c := hub.Connect(conn)

	hub.HandleLine(c, "REQUEST gamelist")
	require.Contains(t, conn.lines[0], fmt.Sprintf("ERR %d", CodeProtocol))
	require.True(t, conn.closed)
}

func TestReconnectRestoresClientID(t *testing.T) {
	hub, _, _ := newTestHub(t)

	c1, _ := introduce(t, hub, "uuid-alpha")
	originalCID := c1.CID
	hub.Disconnect(c1)

	c2, _ := introduce(t, hub, "uuid-alpha")
	require.Equal(t, originalCID, c2.CID)

	// an unseen uuid yields a fresh id
	c3, _ := introduce(t, hub, "uuid-beta")
	require.NotEqual(t, originalCID, c3.CID)
}

func TestReconnectExpiresWithArchive(t *testing.T) {
	hub, mc, _ := newTestHub(t)

	c1, _ := introduce(t, hub, "uuid-gone")
	originalCID := c1.CID
	hub.Disconnect(c1)

	mc.Advance(2 * time.Minute) // past the archive TTL

	c2, _ := introduce(t, hub, "uuid-gone")
	require.NotEqual(t, originalCID, c2.CID)
}

func TestUUIDInUseKeepsConnection(t *testing.T) {
	hub, _, _ := newTestHub(t)

	c1, _ := introduce(t, hub, "uuid-dupe")
	_, conn2 := introduce(t, hub, "uuid-dupe")

	var warned bool
	for _, l := range conn2.lines {
		if strings.HasPrefix(l, "MSG ") && strings.Contains(l, "uuid already in use") {
			warned = true
		}
	}
	require.True(t, warned)
	require.False(t, conn2.closed)
	require.Equal(t, "uuid-dupe", c1.UUID)
}

func TestMsgIDIsEchoed(t *testing.T) {
	hub, _, _ := newTestHub(t)
	c, conn := introduce(t, hub, "u1")

	hub.HandleLine(c, "17 REQUEST gamelist")
	require.True(t, strings.HasPrefix(conn.last(), "17 OK"), "got %q", conn.last())
}

func TestChatFloodMutes(t *testing.T) {
	hub, _, _ := newTestHub(t)
	c, conn := introduce(t, hub, "u1")

	for i := 0; i < defaultFloodChatPerInterval; i++ {
		hub.HandleLine(c, `CHAT -1 "spam"`)
		require.Contains(t, conn.last(), "OK")
	}
	hub.HandleLine(c, `CHAT -1 "spam"`)
	require.Contains(t, conn.last(), fmt.Sprintf("ERR %d", CodeMuted))

	// still muted on the next attempt
	hub.HandleLine(c, `CHAT -1 "again"`)
	require.Contains(t, conn.last(), fmt.Sprintf("ERR %d", CodeMuted))
}

func TestCreateRegisterAndGameInfo(t *testing.T) {
	hub, _, provider := newTestHub(t)
	c, conn := introduce(t, hub, "u1")

	hub.HandleLine(c, `CREATE type:sitandgo players:4 stake:1000 name:"my table"`)
	require.Contains(t, conn.last(), "OK 0 1")
	require.Len(t, provider.games, 1)

	hub.HandleLine(c, "REGISTER 1 1000")
	require.Contains(t, conn.last(), "OK")
	g, _ := provider.Game(1)
	require.True(t, g.HasPlayer(c.CID))

	hub.HandleLine(c, "REQUEST gameinfo 1")
	var sawInfo bool
	for _, l := range conn.lines {
		if strings.HasPrefix(l, "GAMEINFO 1 ") {
			sawInfo = true
			require.Contains(t, l, `"my table"`)
		}
	}
	require.True(t, sawInfo)
}

func TestRegisterUnknownGameFails(t *testing.T) {
	hub, _, _ := newTestHub(t)
	c, conn := introduce(t, hub, "u1")

	hub.HandleLine(c, "REGISTER 99 1000")
	require.Contains(t, conn.last(), fmt.Sprintf("ERR %d", CodeGameNotExist))
}

func TestAuthGatesConfig(t *testing.T) {
	hub, _, _ := newTestHub(t)
	c, conn := introduce(t, hub, "u1")

	hub.HandleLine(c, "CONFIG get flood_chat_mute")
	require.Contains(t, conn.last(), fmt.Sprintf("ERR %d", CodeNoPermission))

	hub.HandleLine(c, "AUTH -1 wrongpass")
	require.Contains(t, conn.last(), fmt.Sprintf("ERR %d", CodeNoPermission))

	hub.HandleLine(c, "AUTH -1 hunter2")
	require.Contains(t, conn.last(), "OK")
	require.Equal(t, StateAuthed, c.State())

	hub.HandleLine(c, "CONFIG set flood_chat_mute 30")
	require.Contains(t, conn.last(), "OK")
	hub.HandleLine(c, "CONFIG get flood_chat_mute")
	require.Contains(t, conn.last(), "flood_chat_mute=30")
}

func TestStartRequiresOwnerOrAdmin(t *testing.T) {
	hub, _, provider := newTestHub(t)
	owner, _ := introduce(t, hub, "u-owner")
	other, otherConn := introduce(t, hub, "u-other")

	hub.HandleLine(owner, "CREATE type:sitandgo players:4 stake:1000")
	g, _ := provider.Game(1)
	require.NoError(t, g.Register(owner.CID, "", 1000, ""))
	require.NoError(t, g.Register(other.CID, "", 1000, ""))

	hub.HandleLine(other, "REQUEST start 1")
	require.Contains(t, otherConn.last(), fmt.Sprintf("ERR %d", CodeNoPermission))

	hub.HandleLine(owner, "REQUEST start 1")
	require.Equal(t, controller.StatusStarted, g.Status())
}

func TestQuitClosesConnection(t *testing.T) {
	hub, _, _ := newTestHub(t)
	c, conn := introduce(t, hub, "u1")

	hub.HandleLine(c, "QUIT")
	require.True(t, conn.closed)
	require.Zero(t, hub.ClientCount())
}
