// Package controller implements the game controller (C5): it owns one
// table and a roster of players and spectators, runs the hand lifecycle
// through the table's state machine, applies the blind schedule, ante,
// straddle, rebuy and leave/rejoin rules, drives the optional insurance
// mini-market, and fans snapshots out to every listener.
package controller

import (
	"context"
	"math/rand"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
	"github.com/dustin/go-humanize"
	"github.com/google/uuid"

	"holdem-server/card"
	"holdem-server/engine"
	"holdem-server/ledger"
	"holdem-server/replay"
)

// SnapshotSender delivers one snapshot line to one client. The session
// layer implements this; delivery is fire-and-forget.
type SnapshotSender interface {
	SendSnapshot(clientID int64, gameID int64, tableNo int, snap engine.Snapshot)
}

// Game is one controller instance: a single table plus its roster.
type Game struct {
	ID    int64
	Owner int64

	cfg    Config
	status Status

	logger *log.Logger
	clock  quartz.Clock
	rng    *rand.Rand

	table      *engine.Table
	players    map[int64]*engine.Player
	prevSeat   map[int64]int
	spectators map[int64]struct{}

	// finish is the elimination order: first busted first, the winner
	// appended last.
	finish []int64

	straddleIntent map[int64]bool

	level          int
	lastBlindsTime time.Time

	createdAt time.Time
	startedAt time.Time

	sender   SnapshotSender
	ledger   ledger.Service
	recorder *replay.Recorder

	policy variantPolicy

	handsPlayed int
}

// NewGame builds a controller in Created status. sender may be nil (no
// fan-out, useful in tests); ledgerSvc may be nil to skip hand history.
func NewGame(id, owner int64, cfg Config, logger *log.Logger, clock quartz.Clock, rng *rand.Rand, sender SnapshotSender, ledgerSvc ledger.Service) *Game {
	cfg.Normalize()
	g := &Game{
		ID:             id,
		Owner:          owner,
		cfg:            cfg,
		status:         StatusCreated,
		logger:         logger.With("component", "game", "gid", id),
		clock:          clock,
		rng:            rng,
		players:        make(map[int64]*engine.Player),
		prevSeat:       make(map[int64]int),
		spectators:     make(map[int64]struct{}),
		straddleIntent: make(map[int64]bool),
		sender:         sender,
		ledger:         ledgerSvc,
		recorder:       replay.NewRecorder(id),
		createdAt:      clock.Now(),
	}

	switch cfg.Variant {
	case VariantSNG:
		g.policy = sngPolicy{}
	default:
		g.policy = sitAndGoPolicy{}
	}

	t := engine.NewTable(0, clock, rng)
	t.ActionTimeout = cfg.Timeout
	t.InsuranceEnabled = cfg.EnableInsurance
	t.SetBlinds(cfg.bigBlindAt(0), cfg.Ante)
	t.SetEmitter(g)
	t.OnNewRound = g.onNewRound
	t.OnBlindsPosted = g.onBlindsPosted
	t.OnEndRound = g.onEndRound
	t.OnAutoAction = g.onAutoAction
	g.table = t

	return g
}

func (g *Game) Config() Config        { return g.cfg }

// SetRestart toggles whether the server respawns this game when it ends.
func (g *Game) SetRestart(on bool) { g.cfg.Restart = on }

func (g *Game) Status() Status       { return g.status }
func (g *Game) Table() *engine.Table { return g.table }
func (g *Game) HandsPlayed() int     { return g.handsPlayed }
func (g *Game) Recorder() *replay.Recorder {
	return g.recorder
}

// FinishList returns the elimination order, first busted first.
func (g *Game) FinishList() []int64 {
	return append([]int64{}, g.finish...)
}

// Done reports whether the server loop should drop this game.
func (g *Game) Done() bool {
	switch g.status {
	case StatusEnded, StatusExpired, StatusFinished:
		return true
	}
	return false
}

// ---- snapshot fan-out -------------------------------------------------

// Emit implements engine.Emitter: it records the snapshot on the replay
// tape and delivers it to the target listeners. Broadcast snapshots reach
// the union of registered players and spectators; private snapshots only
// their recipient.
func (g *Game) Emit(s engine.Snapshot) {
	g.recorder.Append(string(s.Code), g.table.HandNumber(), s.Payload)
	if g.sender == nil {
		return
	}
	if s.Recipient != nil {
		g.sender.SendSnapshot(*s.Recipient, g.ID, g.table.No, s)
		return
	}
	for cid := range g.players {
		g.sender.SendSnapshot(cid, g.ID, g.table.No, s)
	}
	for cid := range g.spectators {
		if _, isPlayer := g.players[cid]; !isPlayer {
			g.sender.SendSnapshot(cid, g.ID, g.table.No, s)
		}
	}
}

// ListenerCIDs returns every client that receives this game's broadcasts;
// the session layer uses it for in-game chat fan-out.
func (g *Game) ListenerCIDs() []int64 {
	out := make([]int64, 0, len(g.players)+len(g.spectators))
	for cid := range g.players {
		out = append(out, cid)
	}
	for cid := range g.spectators {
		if _, isPlayer := g.players[cid]; !isPlayer {
			out = append(out, cid)
		}
	}
	return out
}

// ---- roster -----------------------------------------------------------

// Register joins a client as a player. In the cash variant it also
// resumes a previously-left seat for a known client.
func (g *Game) Register(cid int64, clientUUID string, stake int64, password string) error {
	if g.cfg.Password != "" && password != g.cfg.Password {
		return ErrWrongPassword
	}

	if p, ok := g.players[cid]; ok {
		if g.cfg.Variant == VariantSitAndGo && (p.SeatNo < 0 || p.WannaLeave) {
			return g.resumePlayer(p)
		}
		return ErrAlreadyRegistered
	}

	if err := g.policy.canJoin(g); err != nil {
		return err
	}
	if g.seatedCount() >= g.cfg.MaxPlayers {
		return ErrRegisterLimit
	}

	if g.cfg.Variant == VariantSNG || stake <= 0 {
		stake = g.cfg.Stake
	}
	if clientUUID == "" {
		clientUUID = uuid.NewString()
	}

	p := &engine.Player{
		ClientID: cid,
		UUID:     clientUUID,
		Stake:    stake,
		SeatNo:   -1,
		TableNo:  -1,
		Timeout:  g.cfg.Timeout,
	}
	seat := g.pickFreeSeat(-1)
	if seat < 0 {
		return ErrRegisterLimit
	}
	g.table.SeatPlayer(seat, p)
	g.players[cid] = p

	g.logger.Info("player registered", "cid", cid, "seat", seat, "stake", humanize.Comma(stake))
	g.Emit(engine.Broadcast(engine.SnapFoyer, engine.FoyerPayload{Kind: "join", ClientID: cid}))

	// the SNG variant starts on its own the moment the table fills
	if g.cfg.Variant == VariantSNG && g.status == StatusCreated && g.seatedCount() == g.cfg.MaxPlayers {
		g.Start(g.Owner)
	}
	return nil
}

// resumePlayer re-seats a returning cash-game player, preferring their
// previous seat if still free. A player re-entering mid-hand after Blinds
// while still in-round gets a fresh holecards snapshot.
func (g *Game) resumePlayer(p *engine.Player) error {
	p.WannaLeave = false
	p.Sitout = false
	p.TimedOutCount = 0

	if p.SeatNo >= 0 {
		// seat was never cleared (left and rejoined within the same hand)
		g.replayHoleCards(p)
		return nil
	}

	seat := g.pickFreeSeat(g.prevSeat[p.ClientID])
	if seat < 0 {
		return ErrRegisterLimit
	}
	g.table.SeatPlayer(seat, p)
	g.Emit(engine.Broadcast(engine.SnapFoyer, engine.FoyerPayload{Kind: "join", ClientID: p.ClientID}))
	return nil
}

func (g *Game) replayHoleCards(p *engine.Player) {
	if p.SeatNo < 0 {
		return
	}
	st := g.table.State()
	inBlindsOrEarlier := st == engine.StateGameStart || st == engine.StateNewRound || st == engine.StateBlinds
	if inBlindsOrEarlier || !g.table.Seat(p.SeatNo).InRound || len(p.HoleCards) < 2 {
		return
	}
	g.Emit(engine.Private(p.ClientID, engine.SnapCards, engine.CardsPayload{
		Phase:  "hole",
		Cards:  append(card.CardList{}, p.HoleCards...),
		SeatNo: p.SeatNo,
	}))
}

// pickFreeSeat prefers the given seat when it is free, otherwise picks a
// random free seat.
func (g *Game) pickFreeSeat(preferred int) int {
	if preferred >= 0 && preferred < engine.NumSeats && !g.table.Seat(preferred).Occupied {
		return preferred
	}
	var free []int
	for i := 0; i < engine.NumSeats; i++ {
		if !g.table.Seat(i).Occupied {
			free = append(free, i)
		}
	}
	if len(free) == 0 {
		return -1
	}
	return free[g.rng.Intn(len(free))]
}

// Unregister removes a player. Before the game starts the removal is
// immediate; after start the cash variant defers it to the next NewRound
// via wanna-leave, and an SNG player is simply sat out and blinded away.
func (g *Game) Unregister(cid int64) error {
	p, ok := g.players[cid]
	if !ok {
		return ErrNotRegistered
	}

	if g.status == StatusCreated {
		if p.SeatNo >= 0 {
			g.table.VacateSeat(p.SeatNo)
		}
		delete(g.players, cid)
		g.Emit(engine.Broadcast(engine.SnapFoyer, engine.FoyerPayload{Kind: "leave", ClientID: cid}))
		return nil
	}

	g.policy.onPlayerLeave(g, p)
	return nil
}

// Disconnected is the session layer's notice that a registered client's
// connection dropped mid-game: the seat stays, the player sits out and,
// in the cash variant, is queued for removal.
func (g *Game) Disconnected(cid int64) {
	p, ok := g.players[cid]
	if !ok {
		delete(g.spectators, cid)
		return
	}
	if g.status == StatusStarted {
		g.policy.onPlayerLeave(g, p)
	}
}

// Reconnected restores a client after a uuid-preserving reconnect: the
// seat state is intact, pending leave flags are cleared, and a still
// in-round player past Blinds gets their hole cards replayed.
func (g *Game) Reconnected(cid int64) {
	p, ok := g.players[cid]
	if !ok {
		return
	}
	p.Sitout = false
	p.WannaLeave = false
	g.replayHoleCards(p)
}

// Subscribe adds a spectator.
func (g *Game) Subscribe(cid int64, password string) error {
	if g.cfg.Password != "" && password != g.cfg.Password {
		return ErrWrongPassword
	}
	g.spectators[cid] = struct{}{}
	return nil
}

func (g *Game) Unsubscribe(cid int64) {
	delete(g.spectators, cid)
}

// HasPlayer reports whether cid is registered as a player.
func (g *Game) HasPlayer(cid int64) bool {
	_, ok := g.players[cid]
	return ok
}

// Player returns the roster entry for cid.
func (g *Game) Player(cid int64) (*engine.Player, bool) {
	p, ok := g.players[cid]
	return p, ok
}

// PlayerCount is the number of registered players.
func (g *Game) PlayerCount() int { return len(g.players) }

func (g *Game) seatedCount() int {
	n := 0
	for _, p := range g.players {
		if p.SeatNo >= 0 {
			n++
		}
	}
	return n
}

// PlayerListEntry is one row of the PLAYERLIST reply.
type PlayerListEntry struct {
	ClientID int64
	TableNo  int
	SeatNo   int
	Stake    int64
}

// PlayerList renders the roster for the PLAYERLIST request.
func (g *Game) PlayerList() []PlayerListEntry {
	out := make([]PlayerListEntry, 0, len(g.players))
	for cid, p := range g.players {
		out = append(out, PlayerListEntry{ClientID: cid, TableNo: p.TableNo, SeatNo: p.SeatNo, Stake: p.Stake})
	}
	return out
}

// ---- lifecycle --------------------------------------------------------

// Start moves the game from Created to Started. It does not check byCID:
// the session layer only forwards REQUEST start from the owner or an
// authenticated admin, and SNGs are started by the controller itself.
func (g *Game) Start(byCID int64) error {
	if g.status != StatusCreated && g.status != StatusPaused {
		return ErrBadStatus
	}
	if g.status == StatusPaused {
		return g.Resume(byCID)
	}
	if g.seatedCount() < 2 {
		return ErrNotStarted
	}

	now := g.clock.Now()
	g.status = StatusStarted
	g.startedAt = now
	g.lastBlindsTime = now
	g.level = 0
	g.table.SetBlinds(g.cfg.bigBlindAt(0), g.cfg.Ante)

	g.Emit(engine.Broadcast(engine.SnapGameState, engine.GameStatePayload{Code: engine.GameStateStart, Seat: -1}))
	g.logger.Info("game started", "players", g.seatedCount(), "bb", g.cfg.bigBlindAt(0))
	g.table.Start(now)
	return nil
}

// Pause suspends hand progression between ticks.
func (g *Game) Pause(byCID int64) error {
	if g.status != StatusStarted {
		return ErrBadStatus
	}
	g.status = StatusPaused
	g.Emit(engine.Broadcast(engine.SnapGameState, engine.GameStatePayload{Code: engine.GameStatePause, Seat: -1}))
	return nil
}

// Resume continues a paused game.
func (g *Game) Resume(byCID int64) error {
	if g.status != StatusPaused {
		return ErrBadStatus
	}
	g.status = StatusStarted
	g.Emit(engine.Broadcast(engine.SnapGameState, engine.GameStatePayload{Code: engine.GameStateResume, Seat: -1}))
	return nil
}

// Tick advances the game by one scheduler step.
func (g *Game) Tick(now time.Time) {
	switch g.status {
	case StatusStarted:
		if g.table.Idle() && g.seatedCount() >= 2 {
			// the table parked itself when it dropped below two seats;
			// enough players are back, deal again
			g.table.Start(now)
		}
		g.table.Tick(now)
		if g.policy.shouldExpire(g, now) {
			g.expire()
		}
	case StatusCreated:
		if g.policy.shouldExpire(g, now) {
			g.expire()
		}
	}
}

func (g *Game) expire() {
	g.status = StatusExpired
	g.table.Stop()
	g.Emit(engine.Broadcast(engine.SnapGameState, engine.GameStatePayload{Code: engine.GameStateEnd, Seat: -1}))
	g.logger.Info("game expired", "hands", g.handsPlayed)
}

// recordHand writes the finished hand to the ledger, best effort.
func (g *Game) recordHand(t *engine.Table) {
	if g.ledger == nil {
		return
	}
	deltas := make(map[int64]int64)
	seats := t.Seats()
	for i := range seats {
		if seats[i].Occupied && seats[i].Player != nil {
			p := seats[i].Player
			deltas[p.ClientID] = p.Stake - p.StakeBefore
		}
	}
	rec := ledger.HandRecord{
		GameID:   g.ID,
		HandNo:   t.HandNumber(),
		PlayedAt: g.clock.Now(),
		Board:    t.Community().String(),
		Deltas:   deltas,
	}
	if err := g.ledger.RecordHand(context.Background(), rec); err != nil {
		g.logger.Warn("ledger write failed", "hand", rec.HandNo, "err", err)
	}
}
