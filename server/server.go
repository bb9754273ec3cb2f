// Package server wires the core together (C7): one central tick loop that
// dispatches client commands, advances every active game, removes
// finished games (optionally respawning them), and hosts the TCP and
// websocket transports plus the metrics endpoint.
package server

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"

	"holdem-server/controller"
	"holdem-server/ledger"
	"holdem-server/session"
)

// Config is the process-level startup configuration.
type Config struct {
	ListenAddr    string
	WSListenAddr  string
	MetricsAddr   string
	AdminPassword string
	ArchiveExpire time.Duration
	TickInterval  time.Duration
	Seed          int64
	MaxGames      int
}

func (c *Config) normalize() {
	if c.ListenAddr == "" {
		c.ListenAddr = ":40888"
	}
	if c.ArchiveExpire <= 0 {
		c.ArchiveExpire = session.DefaultArchiveExpire
	}
	if c.TickInterval <= 0 {
		c.TickInterval = 100 * time.Millisecond
	}
	if c.MaxGames <= 0 {
		c.MaxGames = 200
	}
}

type eventKind int

const (
	evConnect eventKind = iota
	evLine
	evDisconnect
)

// event crosses from a transport reader goroutine into the single loop.
// All game and session state is touched only by the loop.
type event struct {
	kind eventKind
	conn session.LineWriter
	line string
}

// Server owns the game registry and the central loop.
type Server struct {
	logger *log.Logger
	clock  quartz.Clock
	rng    *rand.Rand
	cfg    Config

	hub    *session.Hub
	games  map[int64]*controller.Game
	nextGID int64

	ledger  ledger.Service
	metrics *metrics

	events  chan event
	conns   map[session.LineWriter]*session.Client
	stopped chan struct{}
}

// New builds a server. ledgerSvc may be nil to disable hand history.
func New(cfg Config, logger *log.Logger, clock quartz.Clock, rng *rand.Rand, ledgerSvc ledger.Service) *Server {
	cfg.normalize()
	if ledgerSvc == nil {
		ledgerSvc = ledger.NewNoop()
	}
	s := &Server{
		logger:  logger.With("component", "server"),
		clock:   clock,
		rng:     rng,
		cfg:     cfg,
		games:   make(map[int64]*controller.Game),
		ledger:  ledgerSvc,
		metrics: newMetrics(),
		events:  make(chan event, 1024),
		conns:   make(map[session.LineWriter]*session.Client),
		stopped: make(chan struct{}),
	}
	s.hub = session.NewHub(logger, clock, s, cfg.ArchiveExpire, cfg.AdminPassword)
	return s
}

func (s *Server) Hub() *session.Hub { return s.hub }

// ---- session.GameProvider ---------------------------------------------

func (s *Server) Game(gid int64) (*controller.Game, bool) {
	g, ok := s.games[gid]
	return g, ok
}

func (s *Server) Games() []*controller.Game {
	out := make([]*controller.Game, 0, len(s.games))
	for _, g := range s.games {
		out = append(out, g)
	}
	return out
}

func (s *Server) CreateGame(ownerCID int64, cfg controller.Config) (*controller.Game, error) {
	if len(s.games) >= s.cfg.MaxGames {
		return nil, fmt.Errorf("server: game limit reached")
	}
	s.nextGID++
	g := controller.NewGame(s.nextGID, ownerCID, cfg, s.logger, s.clock, s.rng, s.hub, s.ledger)
	s.games[g.ID] = g
	s.logger.Info("game created", "gid", g.ID, "type", cfg.Variant, "owner", ownerCID)
	return g, nil
}

func (s *Server) ServerInfo() map[string]string {
	return map[string]string{
		"games": fmt.Sprintf("%d", len(s.games)),
	}
}

// ---- central loop -----------------------------------------------------

// Run drives the loop until ctx is cancelled. Transports feed the events
// channel; everything else happens here: each event is handled as it
// arrives, and each ticker fire advances every game once. When both are
// ready, select picks either; neither has priority.
func (s *Server) Run(ctx context.Context) error {
	defer close(s.stopped)

	ticker := s.clock.NewTicker(s.cfg.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev := <-s.events:
			s.handleEvent(ev)
		case <-ticker.C:
			s.tick(s.clock.Now())
		}
	}
}

func (s *Server) handleEvent(ev event) {
	switch ev.kind {
	case evConnect:
		c := s.hub.Connect(ev.conn)
		s.conns[ev.conn] = c
		s.logger.Info("client connected", "cid", c.CID)
	case evLine:
		if c, ok := s.conns[ev.conn]; ok {
			s.hub.HandleLine(c, ev.line)
		}
	case evDisconnect:
		if c, ok := s.conns[ev.conn]; ok {
			delete(s.conns, ev.conn)
			s.hub.Disconnect(c)
		}
	}
}

// tick advances every game one step and reaps finished ones.
func (s *Server) tick(now time.Time) {
	started := time.Now()

	for gid, g := range s.games {
		g.Tick(now)
		if !g.Done() {
			continue
		}
		cfg := g.Config()
		delete(s.games, gid)
		s.logger.Info("game removed", "gid", gid, "status", g.Status())
		if cfg.Restart && g.Status() == controller.StatusFinished {
			if ng, err := s.CreateGame(g.Owner, cfg); err == nil {
				s.logger.Info("game respawned", "old", gid, "new", ng.ID)
			}
		}
	}

	var hands int
	for _, g := range s.games {
		hands += g.HandsPlayed()
	}
	s.metrics.observe(time.Since(started), len(s.games), s.hub.ClientCount(), hands)
}

// Enqueue lets a transport (or a test) push an event into the loop.
func (s *Server) Enqueue(ev event) {
	select {
	case s.events <- ev:
	default:
		// the loop is badly backed up; shedding protocol lines beats
		// stalling the accept path
		s.logger.Warn("event queue full, dropping event")
	}
}
