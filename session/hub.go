// Package session implements the client session layer (C6): per-client
// connection state, the line-framed command parser, the uuid reconnection
// archive, and the broadcast primitives that deliver chat and snapshots.
package session

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
	"golang.org/x/crypto/bcrypt"

	"holdem-server/card"
	"holdem-server/controller"
	"holdem-server/engine"
)

// ProtocolVersion is what the server speaks; VersionFloor is the oldest
// client accepted.
const (
	ProtocolVersion = 1001
	VersionFloor    = 1000
)

// Flood-control defaults, overridable through CONFIG set.
const (
	defaultFloodChatPerInterval = 5
	defaultFloodChatInterval    = 10 * time.Second
	defaultFloodChatMute        = 60 * time.Second
)

// GameProvider is the hub's view of the server's game registry.
type GameProvider interface {
	Game(gid int64) (*controller.Game, bool)
	Games() []*controller.Game
	CreateGame(ownerCID int64, cfg controller.Config) (*controller.Game, error)
	ServerInfo() map[string]string
}

// Hub owns every connected client and dispatches their commands. It runs
// entirely on the single server loop; no locking.
type Hub struct {
	logger   *log.Logger
	clock    quartz.Clock
	provider GameProvider
	archive  *Archive

	clients map[int64]*Client
	authed  map[int64]bool
	nextCID int64

	adminHash []byte
	config    map[string]string

	serverStart time.Time
}

func NewHub(logger *log.Logger, clock quartz.Clock, provider GameProvider, archiveTTL time.Duration, adminPassword string) *Hub {
	h := &Hub{
		logger:      logger.With("component", "session"),
		clock:       clock,
		provider:    provider,
		archive:     NewArchive(archiveTTL),
		clients:     make(map[int64]*Client),
		authed:      make(map[int64]bool),
		nextCID:     100, // low cids stay readable in logs and transcripts
		config:      make(map[string]string),
		serverStart: clock.Now(),
	}
	if adminPassword != "" {
		if hash, err := bcrypt.GenerateFromPassword([]byte(adminPassword), bcrypt.DefaultCost); err == nil {
			h.adminHash = hash
		}
	}
	return h
}

func (h *Hub) Archive() *Archive { return h.archive }

// ClientCount is the number of live sessions.
func (h *Hub) ClientCount() int { return len(h.clients) }

// Connect registers a fresh connection and assigns a provisional
// client-id (which PCLIENT may swap for an archived one).
func (h *Hub) Connect(conn LineWriter) *Client {
	h.nextCID++
	c := &Client{CID: h.nextCID, conn: conn, state: StateConnected}
	h.clients[c.CID] = c
	return c
}

// Disconnect tears a session down: the uuid binding is archived for
// reconnect, and every game the client was in is notified.
func (h *Hub) Disconnect(c *Client) {
	if c.closing {
		return
	}
	c.closing = true
	delete(h.clients, c.CID)
	delete(h.authed, c.CID)
	h.archive.Store(c.UUID, c.CID, h.clock.Now())
	for _, g := range h.provider.Games() {
		g.Disconnected(c.CID)
	}
	_ = c.conn.Close()
	h.logger.Info("client disconnected", "cid", c.CID)
}

// ---- replies ----------------------------------------------------------

func (h *Hub) ok(c *Client, msgid string, text string) {
	h.reply(c, msgid, fmt.Sprintf("OK %d %s", CodeOK, text))
}

func (h *Hub) fail(c *Client, msgid string, code int, text string) {
	h.reply(c, msgid, fmt.Sprintf("ERR %d %s", code, text))
}

func (h *Hub) reply(c *Client, msgid, line string) {
	if msgid != "" {
		line = msgid + " " + line
	}
	c.send(line)
}

// SendSnapshot implements controller.SnapshotSender.
func (h *Hub) SendSnapshot(clientID int64, gameID int64, tableNo int, snap engine.Snapshot) {
	c, ok := h.clients[clientID]
	if !ok {
		return // fire-and-forget: disconnected listeners just miss it
	}
	c.send(formatSnapshot(gameID, tableNo, snap))
}

// ---- dispatch ---------------------------------------------------------

// HandleLine parses and executes one complete command line.
func (h *Hub) HandleLine(c *Client, line string) {
	line = strings.TrimRight(line, "\r\n")
	if line == "" {
		return
	}
	msgid, tokens := splitMsgID(tokenize(line))
	if len(tokens) == 0 {
		h.fail(c, msgid, CodeProtocol, "protocol error")
		return
	}

	cmd := strings.ToUpper(tokens[0])
	args := tokens[1:]

	if c.state == StateConnected && cmd != "PCLIENT" {
		h.fail(c, msgid, CodeProtocol, "introduce yourself first")
		h.Disconnect(c)
		return
	}

	switch cmd {
	case "PCLIENT":
		h.cmdPClient(c, msgid, args)
	case "INFO":
		h.cmdInfo(c, msgid, args)
	case "CHAT":
		h.cmdChat(c, msgid, args)
	case "REQUEST":
		h.cmdRequest(c, msgid, args)
	case "REGISTER":
		h.cmdRegister(c, msgid, args)
	case "UNREGISTER":
		h.cmdUnregister(c, msgid, args)
	case "SUBSCRIBE":
		h.cmdSubscribe(c, msgid, args)
	case "UNSUBSCRIBE":
		h.cmdUnsubscribe(c, msgid, args)
	case "ACTION":
		h.cmdAction(c, msgid, args)
	case "REBUY":
		h.cmdRebuy(c, msgid, args)
	case "RESPITE":
		h.cmdRespite(c, msgid, args)
	case "STRADDLE":
		h.cmdStraddle(c, msgid, args)
	case "BUYINSURANCE":
		h.cmdBuyInsurance(c, msgid, args)
	case "CREATE":
		h.cmdCreate(c, msgid, args)
	case "AUTH":
		h.cmdAuth(c, msgid, args)
	case "CONFIG":
		h.cmdConfig(c, msgid, args)
	case "QUIT":
		h.ok(c, msgid, "bye")
		h.Disconnect(c)
	default:
		h.fail(c, msgid, CodeProtocol, "unknown command")
	}
}

// ---- handshake --------------------------------------------------------

func (h *Hub) cmdPClient(c *Client, msgid string, args []string) {
	if c.state != StateConnected {
		h.fail(c, msgid, CodeProtocol, "already introduced")
		return
	}
	if len(args) < 1 {
		h.fail(c, msgid, CodeParameters, "missing version")
		return
	}
	version, ok := parseInt(args[0])
	if !ok {
		h.fail(c, msgid, CodeParameters, "bad version")
		return
	}
	if version < VersionFloor {
		h.fail(c, msgid, CodeWrongVersion, "the client version is too old")
		h.Disconnect(c)
		return
	}
	c.version = int(version)

	var clientUUID string
	if len(args) >= 2 && args[1] != "" && args[1] != "-" {
		clientUUID = args[1]
	}

	if clientUUID != "" {
		if h.uuidInUse(clientUUID) {
			// keep the connection, but the uuid stays with its holder
			c.send(fmt.Sprintf("MSG %d foyer \"uuid already in use\"", c.CID))
			clientUUID = ""
		} else if entry, found := h.archive.Lookup(clientUUID, h.clock.Now()); found {
			// restore the archived identity: swap the provisional cid
			delete(h.clients, c.CID)
			c.CID = entry.ClientID
			h.clients[c.CID] = c
			h.archive.Remove(clientUUID)
			h.logger.Info("client restored", "cid", c.CID, "uuid", clientUUID)
		}
	}
	c.UUID = clientUUID

	c.state = StateIntroduced
	h.reply(c, msgid, fmt.Sprintf("PSERVER %d %d %d", ProtocolVersion, c.CID, h.clock.Now().Unix()))

	if c.UUID != "" {
		// seat restoration must land before the next NewRound tick
		for _, g := range h.provider.Games() {
			if g.HasPlayer(c.CID) {
				g.Reconnected(c.CID)
				c.send(formatPlayerList(g))
			}
		}
	}
}

func (h *Hub) uuidInUse(uuid string) bool {
	for _, c := range h.clients {
		if c.UUID == uuid {
			return true
		}
	}
	return false
}

func (h *Hub) cmdInfo(c *Client, msgid string, args []string) {
	kv := parseKV(args)
	if name, ok := kv["name"]; ok {
		c.Name = name
	}
	if loc, ok := kv["location"]; ok {
		c.Location = loc
	}
	if c.state == StateIntroduced {
		c.state = StateSentInfo
	}
	h.ok(c, msgid, "info stored")
}

// ---- chat -------------------------------------------------------------

func (h *Hub) cmdChat(c *Client, msgid string, args []string) {
	if len(args) < 2 {
		h.fail(c, msgid, CodeParameters, "missing chat target or text")
		return
	}
	now := h.clock.Now()
	if c.floodCheck(now, h.configInt("flood_chat_per_interval", defaultFloodChatPerInterval),
		h.configDuration("flood_chat_interval", defaultFloodChatInterval),
		h.configDuration("flood_chat_mute", defaultFloodChatMute)) {
		h.fail(c, msgid, CodeMuted, "you have been muted")
		return
	}

	dest := args[0]
	text := strings.Join(args[1:], " ")
	line := fmt.Sprintf("MSG %d %s \"%s\"", c.CID, dest, text)

	if strings.Contains(dest, ":") {
		// game chat: everyone listening to gid:tid
		gid, ok := parseInt(dest[:strings.IndexByte(dest, ':')])
		if !ok {
			h.fail(c, msgid, CodeParameters, "bad chat target")
			return
		}
		g, found := h.provider.Game(gid)
		if !found {
			h.fail(c, msgid, CodeGameNotExist, "game does not exist")
			return
		}
		for _, cid := range g.ListenerCIDs() {
			if peer, ok := h.clients[cid]; ok {
				peer.send(line)
			}
		}
		h.ok(c, msgid, "")
		return
	}

	target, ok := parseInt(dest)
	if !ok {
		h.fail(c, msgid, CodeParameters, "bad chat target")
		return
	}
	if target == -1 {
		// foyer broadcast
		for _, peer := range h.clients {
			peer.send(line)
		}
		h.ok(c, msgid, "")
		return
	}
	peer, found := h.clients[target]
	if !found {
		h.fail(c, msgid, CodeParameters, "no such client")
		return
	}
	peer.send(line)
	h.ok(c, msgid, "")
}

// ---- requests ---------------------------------------------------------

func (h *Hub) cmdRequest(c *Client, msgid string, args []string) {
	if len(args) < 1 {
		h.fail(c, msgid, CodeParameters, "missing request")
		return
	}
	sub := strings.ToLower(args[0])
	rest := args[1:]

	switch sub {
	case "gameinfo":
		for _, tok := range rest {
			gid, ok := parseInt(tok)
			if !ok {
				continue
			}
			if g, found := h.provider.Game(gid); found {
				c.send(formatGameInfo(g))
			}
		}
		h.ok(c, msgid, "")
	case "clientinfo":
		for _, tok := range rest {
			cid, ok := parseInt(tok)
			if !ok {
				continue
			}
			if peer, found := h.clients[cid]; found {
				c.send(fmt.Sprintf("CLIENTINFO %d \"name:%s\" \"location:%s\"", peer.CID, peer.Name, peer.Location))
			}
		}
		h.ok(c, msgid, "")
	case "gamelist":
		games := h.provider.Games()
		ids := make([]int64, 0, len(games))
		for _, g := range games {
			ids = append(ids, g.ID)
		}
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
		var b strings.Builder
		b.WriteString("GAMELIST")
		for _, id := range ids {
			fmt.Fprintf(&b, " %d", id)
		}
		c.send(b.String())
		h.ok(c, msgid, "")
	case "playerlist":
		g, ok := h.requestGame(c, msgid, rest)
		if !ok {
			return
		}
		c.send(formatPlayerList(g))
		h.ok(c, msgid, "")
	case "serverinfo":
		info := h.provider.ServerInfo()
		keys := make([]string, 0, len(info))
		for k := range info {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		var b strings.Builder
		b.WriteString("SERVERINFO")
		fmt.Fprintf(&b, " version:%d clients:%d uptime:%d", ProtocolVersion, len(h.clients), int(h.clock.Now().Sub(h.serverStart).Seconds()))
		for _, k := range keys {
			fmt.Fprintf(&b, " %s:%s", k, info[k])
		}
		c.send(b.String())
		h.ok(c, msgid, "")
	case "start", "pause", "resume", "restart":
		g, ok := h.requestGame(c, msgid, rest)
		if !ok {
			return
		}
		if g.Owner != c.CID && !h.authed[c.CID] {
			h.fail(c, msgid, CodeNoPermission, "no permission")
			return
		}
		var err error
		switch sub {
		case "start":
			err = g.Start(c.CID)
		case "pause":
			err = g.Pause(c.CID)
		case "resume":
			err = g.Resume(c.CID)
		case "restart":
			on := len(rest) >= 2 && rest[1] == "1"
			g.SetRestart(on)
		}
		if err != nil {
			h.fail(c, msgid, CodeGeneric, err.Error())
			return
		}
		h.ok(c, msgid, "")
	default:
		h.fail(c, msgid, CodeParameters, "unknown request")
	}
}

func (h *Hub) requestGame(c *Client, msgid string, args []string) (*controller.Game, bool) {
	if len(args) < 1 {
		h.fail(c, msgid, CodeParameters, "missing game id")
		return nil, false
	}
	gid, ok := parseInt(args[0])
	if !ok {
		h.fail(c, msgid, CodeParameters, "bad game id")
		return nil, false
	}
	g, found := h.provider.Game(gid)
	if !found {
		h.fail(c, msgid, CodeGameNotExist, "game does not exist")
		return nil, false
	}
	return g, true
}

// ---- game membership --------------------------------------------------

func (h *Hub) cmdRegister(c *Client, msgid string, args []string) {
	g, ok := h.requestGame(c, msgid, args)
	if !ok {
		return
	}
	var stake int64
	if len(args) >= 2 {
		stake, _ = parseInt(args[1])
	}
	password := ""
	if len(args) >= 3 {
		password = args[2]
	}
	if err := g.Register(c.CID, c.UUID, stake, password); err != nil {
		h.fail(c, msgid, registerErrCode(err), err.Error())
		return
	}
	h.ok(c, msgid, "registered")
}

func registerErrCode(err error) int {
	switch err {
	case controller.ErrWrongPassword:
		return CodeNoPermission
	case controller.ErrRegisterLimit:
		return CodeRegisterLimit
	case controller.ErrJoinAfterStart:
		return CodeJoinAfterStart
	case controller.ErrNotRegistered:
		return CodeNotRegistered
	}
	return CodeGeneric
}

func (h *Hub) cmdUnregister(c *Client, msgid string, args []string) {
	if len(args) >= 1 && args[0] == "-1" {
		for _, g := range h.provider.Games() {
			if g.HasPlayer(c.CID) {
				_ = g.Unregister(c.CID)
			}
		}
		h.ok(c, msgid, "")
		return
	}
	g, ok := h.requestGame(c, msgid, args)
	if !ok {
		return
	}
	if err := g.Unregister(c.CID); err != nil {
		h.fail(c, msgid, CodeNotRegistered, err.Error())
		return
	}
	h.ok(c, msgid, "")
}

func (h *Hub) cmdSubscribe(c *Client, msgid string, args []string) {
	g, ok := h.requestGame(c, msgid, args)
	if !ok {
		return
	}
	password := ""
	if len(args) >= 2 {
		password = args[1]
	}
	if err := g.Subscribe(c.CID, password); err != nil {
		h.fail(c, msgid, CodeNoPermission, err.Error())
		return
	}
	h.ok(c, msgid, "subscribed")
}

func (h *Hub) cmdUnsubscribe(c *Client, msgid string, args []string) {
	g, ok := h.requestGame(c, msgid, args)
	if !ok {
		return
	}
	g.Unsubscribe(c.CID)
	h.ok(c, msgid, "")
}

// ---- in-game commands -------------------------------------------------

func (h *Hub) cmdAction(c *Client, msgid string, args []string) {
	g, ok := h.requestGame(c, msgid, args)
	if !ok {
		return
	}
	if len(args) < 2 {
		h.fail(c, msgid, CodeParameters, "missing action")
		return
	}
	verb := strings.ToLower(args[1])
	var amount int64
	if len(args) >= 3 {
		amount, _ = parseInt(args[2])
	}
	if err := g.Action(c.CID, verb, amount); err != nil {
		code := CodeGeneric
		if err == controller.ErrNotRegistered {
			code = CodeNotRegistered
		}
		h.fail(c, msgid, code, err.Error())
		return
	}
	h.ok(c, msgid, "")
}

func (h *Hub) cmdRebuy(c *Client, msgid string, args []string) {
	g, ok := h.requestGame(c, msgid, args)
	if !ok {
		return
	}
	if len(args) < 2 {
		h.fail(c, msgid, CodeParameters, "missing amount")
		return
	}
	amount, okAmt := parseInt(args[1])
	if !okAmt {
		h.fail(c, msgid, CodeParameters, "bad amount")
		return
	}
	target := c.CID
	if len(args) >= 3 {
		if cid, okCID := parseInt(args[2]); okCID && cid != c.CID {
			if !h.authed[c.CID] {
				h.fail(c, msgid, CodeNoPermission, "no permission")
				return
			}
			target = cid
		}
	}
	if err := g.Rebuy(target, amount); err != nil {
		h.fail(c, msgid, CodeGeneric, err.Error())
		return
	}
	h.ok(c, msgid, "")
}

func (h *Hub) cmdRespite(c *Client, msgid string, args []string) {
	g, ok := h.requestGame(c, msgid, args)
	if !ok {
		return
	}
	if len(args) < 2 {
		h.fail(c, msgid, CodeParameters, "missing seconds")
		return
	}
	secs, okSecs := parseInt(args[1])
	if !okSecs {
		h.fail(c, msgid, CodeParameters, "bad seconds")
		return
	}
	if err := g.Respite(c.CID, secs); err != nil {
		h.fail(c, msgid, CodeGeneric, err.Error())
		return
	}
	h.ok(c, msgid, "")
}

func (h *Hub) cmdStraddle(c *Client, msgid string, args []string) {
	g, ok := h.requestGame(c, msgid, args)
	if !ok {
		return
	}
	if err := g.DeclareStraddle(c.CID); err != nil {
		h.fail(c, msgid, CodeGeneric, err.Error())
		return
	}
	h.ok(c, msgid, "")
}

func (h *Hub) cmdBuyInsurance(c *Client, msgid string, args []string) {
	g, ok := h.requestGame(c, msgid, args)
	if !ok {
		return
	}
	if len(args) < 3 {
		h.fail(c, msgid, CodeParameters, "missing buy amount or cards")
		return
	}
	amount, okAmt := parseInt(args[1])
	if !okAmt {
		h.fail(c, msgid, CodeParameters, "bad amount")
		return
	}
	var cards []card.Card
	for _, tok := range args[2:] {
		cd, err := card.ParseCard(tok)
		if err != nil {
			h.fail(c, msgid, CodeParameters, "bad card "+tok)
			return
		}
		cards = append(cards, cd)
	}
	if err := g.BuyInsurance(c.CID, amount, cards); err != nil {
		h.fail(c, msgid, CodeInsurance, "unable to buy insurance")
		return
	}
	h.ok(c, msgid, "")
}

// ---- administration ---------------------------------------------------

func (h *Hub) cmdCreate(c *Client, msgid string, args []string) {
	kv := parseKV(args)
	cfg := controller.Config{}

	if v, ok := kv["type"]; ok {
		variant, valid := controller.ParseVariant(v)
		if !valid {
			h.fail(c, msgid, CodeParameters, "bad game type")
			return
		}
		cfg.Variant = variant
	}
	if v, ok := kv["players"]; ok {
		if n, valid := parseInt(v); valid {
			cfg.MaxPlayers = int(n)
		}
	}
	if v, ok := kv["stake"]; ok {
		cfg.Stake, _ = parseInt(v)
	}
	if v, ok := kv["timeout"]; ok {
		if n, valid := parseInt(v); valid {
			cfg.Timeout = time.Duration(n) * time.Second
		}
	}
	cfg.Name = kv["name"]
	if v, ok := kv["blinds_start"]; ok {
		cfg.BlindsStart, _ = parseInt(v)
	}
	if v, ok := kv["blinds_factor"]; ok {
		cfg.BlindsFactor, _ = parseFloat(v)
	}
	if v, ok := kv["blinds_time"]; ok {
		if n, valid := parseInt(v); valid {
			cfg.BlindsTime = time.Duration(n) * time.Second
		}
	}
	if v, ok := kv["ante"]; ok {
		cfg.Ante, _ = parseInt(v)
	}
	cfg.MandatoryStraddle = kv["mandatory_straddle"] == "1"
	cfg.Password = kv["password"]
	cfg.Restart = kv["restart"] == "1"
	if v, ok := kv["expire_in"]; ok {
		if n, valid := parseInt(v); valid {
			cfg.ExpireIn = time.Duration(n) * time.Second
		}
	}
	cfg.EnableInsurance = kv["enable_insurance"] == "1"

	g, err := h.provider.CreateGame(c.CID, cfg)
	if err != nil {
		h.fail(c, msgid, CodeGeneric, err.Error())
		return
	}
	h.ok(c, msgid, fmt.Sprintf("%d", g.ID))
}

func (h *Hub) cmdAuth(c *Client, msgid string, args []string) {
	if len(args) < 2 {
		h.fail(c, msgid, CodeParameters, "missing password")
		return
	}
	if h.adminHash == nil {
		h.fail(c, msgid, CodeNoPermission, "authentication disabled")
		return
	}
	if err := bcrypt.CompareHashAndPassword(h.adminHash, []byte(args[1])); err != nil {
		h.fail(c, msgid, CodeNoPermission, "wrong password")
		return
	}
	h.authed[c.CID] = true
	c.state = StateAuthed
	h.ok(c, msgid, "authenticated")
}

func (h *Hub) cmdConfig(c *Client, msgid string, args []string) {
	if !h.authed[c.CID] {
		h.fail(c, msgid, CodeNoPermission, "no permission")
		return
	}
	if len(args) < 2 {
		h.fail(c, msgid, CodeParameters, "missing config key")
		return
	}
	switch strings.ToLower(args[0]) {
	case "get":
		h.ok(c, msgid, fmt.Sprintf("%s=%s", args[1], h.config[args[1]]))
	case "set":
		if len(args) < 3 {
			h.fail(c, msgid, CodeParameters, "missing value")
			return
		}
		h.config[args[1]] = args[2]
		h.ok(c, msgid, "")
	case "save":
		if err := h.saveConfig(args[1]); err != nil {
			h.fail(c, msgid, CodeGeneric, err.Error())
			return
		}
		h.ok(c, msgid, "")
	default:
		h.fail(c, msgid, CodeParameters, "unknown config op")
	}
}

func (h *Hub) saveConfig(path string) error {
	keys := make([]string, 0, len(h.config))
	for k := range h.config {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	for _, k := range keys {
		fmt.Fprintf(&b, "%s = \"%s\"\n", k, h.config[k])
	}
	return os.WriteFile(path, []byte(b.String()), 0o644)
}

func (h *Hub) configInt(key string, def int) int {
	if v, ok := h.config[key]; ok {
		if n, valid := parseInt(v); valid {
			return int(n)
		}
	}
	return def
}

func (h *Hub) configDuration(key string, def time.Duration) time.Duration {
	if v, ok := h.config[key]; ok {
		if n, valid := parseInt(v); valid {
			return time.Duration(n) * time.Second
		}
	}
	return def
}
