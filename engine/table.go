package engine

import (
	"math/rand"
	"time"

	"github.com/coder/quartz"

	"holdem-server/card"
)

// Table is one seat of state for one hand-in-progress: deck, community
// cards, ten seats, pots, dealer/SB/BB/current pointers, the
// betting-round cursor, and the scheduled next state with its delay.
//
// The machine is tick-driven: an explicit tagged State plus a
// (nextState, readyAt) pair consumed by Tick, with no per-table
// goroutine. Controllers mutate a Table only through the exported
// methods below (SeatPlayer, VacateSeat, SetBlinds, ApplyStraddle,
// SetFirstToAct, ScheduleState, Act, Stop) plus the
// OnNewRound/OnBlindsPosted/OnEndRound/OnAutoAction hooks; they never
// reach into the seat or pot slices directly.
type Table struct {
	No int

	seats     [NumSeats]Seat
	deck      card.Deck
	community card.CardList

	pots []*Pot

	dealer, sb, bb, cur, lastBetSeat int
	handNumber                      int

	round         BettingRound
	state         State
	pending       bool
	nextState     State
	readyAt       time.Time

	tableBet      int64
	lastBetAmount int64
	bigBlind      int64
	ante          int64

	// blind-schedule context for the Table snapshot; the controller owns
	// the schedule and pushes these alongside SetBlinds
	blindLevel     int
	nextBigBlind   int64
	nextLevel      int
	lastBlindsUnix int64

	noMoreAction bool

	// AskShow iteration
	showQueue []int
	showIdx   int

	// Suspend/Resume (insurance)
	resumeState          State
	suspendDeadline      time.Time
	insuranceFlopOffered bool
	insuranceTurnOffered bool

	// deltas tracks chips awarded to each seat this hand (pots, odd
	// chips, insurance); the invariant checks in the tests read it.
	deltas map[int]int64

	emitter Emitter
	clock   quartz.Clock
	rng     *rand.Rand

	// ActionTimeout is how long a seat has to act before auto-action
	// fires. NewRound copies it onto every seated Player's Timeout, which
	// drops any respite extension from the previous hand; 0 leaves each
	// Player's own Timeout as it is. A seat whose Timeout is zero never
	// times out.
	ActionTimeout time.Duration

	InsuranceEnabled bool

	// deckOverride pins a full 52-card order for deterministic tests;
	// nil means fill+shuffle normally.
	deckOverride []card.Card

	// Controller hooks, all optional.
	// OnNewRound runs before the seat reset at the top of NewRound (rebuys,
	// wanna-leave removal, blind level advance). OnBlindsPosted runs after
	// the blinds and ante are posted but before hole cards are dealt
	// (straddle chain). OnEndRound runs after StakeChange is emitted but
	// before the dealer advances (broke detection, finish list, game end).
	// OnAutoAction runs after a timeout auto-action has been applied.
	OnNewRound    func(*Table)
	OnBlindsPosted func(*Table)
	OnEndRound    func(*Table)
	OnAutoAction  func(*Table, int)
}

// SetDeckOverride pins every future hand's deck to the given order
// (consumed top-first) instead of a fresh shuffle. Pass nil to restore
// normal shuffling.
func (t *Table) SetDeckOverride(order []card.Card) {
	t.deckOverride = order
}

// NewTable constructs an idle table. Seat the players via SeatPlayer
// before calling Start.
func NewTable(no int, clock quartz.Clock, rng *rand.Rand) *Table {
	return &Table{
		No:      no,
		clock:   clock,
		rng:     rng,
		deck:   *card.NewDeck(rng),
		state:  StateGameStart,
		dealer: -1,
		cur:    -1,
		deltas: map[int]int64{},
	}
}

func (t *Table) SetEmitter(e Emitter) { t.emitter = e }

func (t *Table) emit(s Snapshot) {
	if t.emitter != nil {
		t.emitter.Emit(s)
	}
}

// Seats exposes a read-only view for the controller and snapshot builder.
func (t *Table) Seats() [NumSeats]Seat { return t.seats }

func (t *Table) Seat(i int) *Seat { return &t.seats[i] }

func (t *Table) State() State             { return t.state }
func (t *Table) Round() BettingRound      { return t.round }
func (t *Table) Dealer() int              { return t.dealer }
func (t *Table) Community() card.CardList { return t.community }
func (t *Table) Pots() []*Pot             { return t.pots }
func (t *Table) TableBet() int64          { return t.tableBet }
func (t *Table) CurrentSeat() int         { return t.cur }
func (t *Table) HandNumber() int          { return t.handNumber }
func (t *Table) BigBlind() int64          { return t.bigBlind }
func (t *Table) Ante() int64              { return t.ante }
func (t *Table) SmallBlindSeat() int      { return t.sb }
func (t *Table) BigBlindSeat() int        { return t.bb }
func (t *Table) LastBetSeat() int         { return t.lastBetSeat }
func (t *Table) NoMoreAction() bool       { return t.noMoreAction }

// HandDeltas returns the chips awarded per seat so far this hand.
func (t *Table) HandDeltas() map[int]int64 { return t.deltas }

// Idle reports whether the table is between games (not running a hand and
// with no scheduled transition pending).
func (t *Table) Idle() bool {
	return t.state == StateGameStart && !t.pending
}

// Stop abandons any scheduled transition and parks the table in GameStart.
// The controller calls this when a game expires or finishes.
func (t *Table) Stop() {
	t.pending = false
	t.state = StateGameStart
}

// ApplyStraddle posts a straddle for the given seat: the seat's bet becomes
// the new table bet and the previous table bet becomes the raise baseline,
// exactly as a live raise would. The caller is responsible for walking the
// chain and picking the amounts (2×BB, 4×BB, ...).
func (t *Table) ApplyStraddle(seat int, amount int64) {
	s := &t.seats[seat]
	if s.Player == nil || !s.InRound {
		return
	}
	if amount > s.Player.Stake+s.Bet {
		amount = s.Player.Stake + s.Bet
	}
	t.postForcedBet(seat, amount-s.Bet)
	if s.Bet > t.tableBet {
		t.lastBetAmount = t.tableBet
		t.tableBet = s.Bet
	}
}

// SetFirstToAct repoints the betting cursor after a straddle chain has been
// posted: the given seat acts first and also closes the street.
func (t *Table) SetFirstToAct(seat int) {
	if seat < 0 || seat >= NumSeats {
		return
	}
	t.cur = seat
	t.lastBetSeat = seat
}

// SeatPlayer occupies a free seat. Returns false if the seat is already
// occupied.
func (t *Table) SeatPlayer(seatNo int, p *Player) bool {
	s := &t.seats[seatNo]
	if s.Occupied {
		return false
	}
	s.Occupied = true
	s.Player = p
	p.SeatNo = seatNo
	p.TableNo = t.No
	return true
}

// VacateSeat clears a seat. Only safe between hands; deferred leaves are
// applied when NewRound next runs, never mid-hand.
func (t *Table) VacateSeat(seatNo int) *Player {
	s := &t.seats[seatNo]
	p := s.Player
	*s = Seat{}
	return p
}

// OccupiedSeats returns indices of occupied seats in ascending order.
func (t *Table) OccupiedSeats() []int {
	var out []int
	for i := range t.seats {
		if t.seats[i].Occupied {
			out = append(out, i)
		}
	}
	return out
}

func (t *Table) activeCount() int {
	n := 0
	for i := range t.seats {
		if t.seats[i].InRound {
			n++
		}
	}
	return n
}

func (t *Table) occupiedCount() int {
	n := 0
	for i := range t.seats {
		if t.seats[i].Occupied {
			n++
		}
	}
	return n
}

// nextOccupied returns the next occupied seat clockwise after `from`
// (exclusive), or -1 if none.
func (t *Table) nextOccupied(from int) int {
	for i := 1; i <= NumSeats; i++ {
		idx := (from + i) % NumSeats
		if t.seats[idx].Occupied {
			return idx
		}
	}
	return -1
}

// nextInRound returns the next seat clockwise after `from` still in the
// hand (folded seats excluded, all-in seats included) — used as the
// first-to-act fallback when no seat can act on a new street.
func (t *Table) nextInRound(from int) int {
	for i := 1; i <= NumSeats; i++ {
		idx := (from + i) % NumSeats
		if t.seats[idx].InRound {
			return idx
		}
	}
	return -1
}

// canAct reports whether a seat still has a live betting decision this
// street (occupied, in the hand, has chips behind).
func (t *Table) canAct(seat int) bool {
	s := &t.seats[seat]
	return s.Occupied && s.InRound && s.Player != nil && s.Player.Stake > 0
}

// nextActionable returns the next seat clockwise after `from` that can
// still act, or -1 if no seat can (everyone remaining is all-in).
func (t *Table) nextActionable(from int) int {
	for i := 1; i <= NumSeats; i++ {
		idx := (from + i) % NumSeats
		if t.canAct(idx) {
			return idx
		}
	}
	return -1
}

// ScheduleState arms the (nextState, readyAt) pair consumed by Tick. Any
// state handler may call this instead of transitioning immediately.
func (t *Table) ScheduleState(next State, delay time.Duration) {
	t.pending = true
	t.nextState = next
	t.readyAt = t.clock.Now().Add(delay)
}

// Start moves a freshly-seated table from GameStart into its first hand.
func (t *Table) Start(now time.Time) {
	t.state = StateNewRound
	t.runState(now)
}

// Tick advances the table by at most one state transition, consuming any
// elapsed scheduled delay.
func (t *Table) Tick(now time.Time) {
	if t.pending {
		if now.Before(t.readyAt) {
			return
		}
		t.pending = false
		t.state = t.nextState
		t.runState(now)
		return
	}

	switch t.state {
	case StateBetting:
		t.tickBetting(now)
	case StateAskShow:
		t.tickAskShow(now)
	case StateSuspend:
		t.tickSuspend(now)
	}
}

// runState executes every state whose work happens synchronously at entry,
// chaining through immediate transitions until it reaches a state that
// must wait (Betting/AskShow/Suspend, or any state that armed a delay via
// ScheduleState).
func (t *Table) runState(now time.Time) {
	for {
		switch t.state {
		case StateGameStart, StateElectDealer:
			return
		case StateNewRound:
			if !t.stateNewRound(now) {
				t.state = StateGameStart
				return
			}
			t.state = StateBlinds
			continue
		case StateBlinds:
			t.stateBlinds(now)
			return
		case StateBetting:
			return
		case StateBettingEnd:
			t.state = t.stateBettingEnd(now)
			continue
		case StateAskShow:
			t.enterAskShow(now)
			return
		case StateAllFolded:
			t.stateAllFolded(now)
			return
		case StateShowdown:
			t.stateShowdown(now)
			return
		case StateEndRound:
			t.stateEndRound(now)
			return
		case StateSuspend:
			return
		case StateResume:
			t.state = t.resumeState
			continue
		default:
			return
		}
	}
}

// tableSnapshot renders the complete table for the Table snapshot
// payload.
func (t *Table) tableSnapshot() Snapshot {
	seats := make([]SeatSnapshot, 0, NumSeats)
	for i := range t.seats {
		s := &t.seats[i]
		ss := SeatSnapshot{Seat: i, Occupied: s.Occupied, InRound: s.InRound, Bet: s.Bet}
		if s.Player != nil {
			ss.ClientID = s.Player.ClientID
			ss.Stake = s.Player.Stake
			ss.RebuyStake = s.Player.RebuyStake
			ss.LastAction = s.Player.LastAction
			if s.ManualShowCards || s.AutoShowCards {
				ss.HoleCards = append([]card.Card{}, s.Player.HoleCards...)
			}
		}
		seats = append(seats, ss)
	}

	pots := make([]PotSnapshot, 0, len(t.pots))
	for i, p := range t.pots {
		pots = append(pots, PotSnapshot{Index: i, Amount: p.Amount})
	}

	return broadcast(SnapTable, TableSnapshotPayload{
		State:       t.state,
		Round:       t.round,
		Dealer:      t.dealer,
		SB:          t.sb,
		BB:          t.bb,
		Current:     t.cur,
		LastBetSeat: t.lastBetSeat,
		Community:   append(card.CardList{}, t.community...),
		Seats:       seats,
		Pots:        pots,
		CurrentBB:      t.bigBlind,
		Level:          t.blindLevel,
		NextBB:         t.nextBigBlind,
		NextLevel:      t.nextLevel,
		LastBlindsTime: t.lastBlindsUnix,
		MinBet:         t.MinimumBet(),
	})
}

// SetBlinds lets the controller push the current blind/ante levels onto
// the table (blind schedule progression is the controller's concern;
// Table only needs the current numbers to compute MinimumBet and to post
// blinds/ante).
func (t *Table) SetBlinds(bigBlind, ante int64) {
	t.bigBlind = bigBlind
	t.ante = ante
}

// SetBlindSchedule pushes the schedule context rendered in the Table
// snapshot (current level, the next level's big blind, and when the
// blinds last advanced).
func (t *Table) SetBlindSchedule(level int, nextBB int64, nextLevel int, lastBlindsUnix int64) {
	t.blindLevel = level
	t.nextBigBlind = nextBB
	t.nextLevel = nextLevel
	t.lastBlindsUnix = lastBlindsUnix
}
