package engine

import "holdem-server/card"

// SnapshotCode identifies the shape of a Snapshot's payload.
type SnapshotCode string

const (
	SnapTable              SnapshotCode = "Table"
	SnapCards              SnapshotCode = "Cards"
	SnapPlayerAction       SnapshotCode = "PlayerAction"
	SnapPlayerShow         SnapshotCode = "PlayerShow"
	SnapWinPot             SnapshotCode = "WinPot"
	SnapOddChips           SnapshotCode = "OddChips"
	SnapWinAmount          SnapshotCode = "WinAmount"
	SnapStakeChange        SnapshotCode = "StakeChange"
	SnapGameState          SnapshotCode = "GameState"
	SnapBuyInsurance       SnapshotCode = "BuyInsurance"
	SnapInsuranceBenefits  SnapshotCode = "InsuranceBenefits"
	SnapRespite            SnapshotCode = "Respite"
	SnapFoyer              SnapshotCode = "Foyer"
	SnapWantToStraddle     SnapshotCode = "WantToStraddleNextRound"
)

// Snapshot is a fire-and-forget message describing a table-wide event or a
// per-player secret. Recipient is nil for a table-wide broadcast, or a
// client-id for a message meant for exactly one listener (e.g. hole
// cards).
type Snapshot struct {
	Code      SnapshotCode
	Recipient *int64 // nil = broadcast to every listener of the game
	Payload   any
}

func broadcast(code SnapshotCode, payload any) Snapshot {
	return Snapshot{Code: code, Payload: payload}
}

// Broadcast builds a table-wide snapshot. Exported for the game controller,
// which emits its own roster/lifecycle snapshots through the same fan-out.
func Broadcast(code SnapshotCode, payload any) Snapshot { return broadcast(code, payload) }

// Private builds a single-recipient snapshot.
func Private(clientID int64, code SnapshotCode, payload any) Snapshot {
	return private(clientID, code, payload)
}

func private(clientID int64, code SnapshotCode, payload any) Snapshot {
	id := clientID
	return Snapshot{Code: code, Recipient: &id, Payload: payload}
}

// Emitter receives snapshots produced by a Table as its state machine
// advances. The game controller implements this to fan snapshots out to
// registered players and spectators (spec §4.6/§6).
type Emitter interface {
	Emit(Snapshot)
}

// TableSnapshotPayload is the whole table as rendered to a client.
type TableSnapshotPayload struct {
	State          State
	Round          BettingRound
	Dealer         int
	SB             int
	BB             int
	Current        int
	LastBetSeat    int
	Community      []card.Card
	Seats          []SeatSnapshot
	Pots           []PotSnapshot
	CurrentBB      int64
	Level          int
	NextBB         int64
	NextLevel      int
	LastBlindsTime int64
	MinBet         int64
}

// SeatSnapshot is one seat segment of a Table snapshot:
// s<seat>:<cid>:<stateBits>:<stake>:<rebuyStake>:<bet>:<lastAction>:<holeCardsOrDash>
type SeatSnapshot struct {
	Seat        int
	ClientID    int64
	Occupied    bool
	InRound     bool
	Stake       int64
	RebuyStake  int64
	Bet         int64
	LastAction  Action
	HoleCards   []card.Card // only populated once the seat's cards are shown
}

// PotSnapshot is one pot segment: p<idx>:<amount>.
type PotSnapshot struct {
	Index  int
	Amount int64
}

type CardsPayload struct {
	Phase     string // "hole", "flop", "turn", "river"
	Cards     []card.Card
	SeatNo    int // for "hole": which seat the cards belong to
}

type PlayerActionPayload struct {
	Seat     int
	ClientID int64
	Action   ActionType
	Amount   int64
	Auto     bool
}

type PlayerShowPayload struct {
	Seat     int
	ClientID int64
	Cards    [2]card.Card
}

type WinPotPayload struct {
	Seat     int
	ClientID int64
	PotIndex int
	Amount   int64
}

type OddChipsPayload struct {
	Seat     int
	ClientID int64
	PotIndex int
	Amount   int64
}

type WinAmountPayload struct {
	Seat     int
	ClientID int64
	Amount   int64 // signed net delta
}

type StakeChangeEntry struct {
	Seat     int
	ClientID int64
	Stake    int64
	Delta    int64
}

type GameStateCode string

const (
	GameStateNewHand        GameStateCode = "new hand"
	GameStateBroke          GameStateCode = "broke"
	GameStateStart          GameStateCode = "start"
	GameStateEnd            GameStateCode = "end"
	GameStatePause          GameStateCode = "pause"
	GameStateResume         GameStateCode = "resume"
	GameStateBlinds         GameStateCode = "blinds"
	GameStateTableSuspend   GameStateCode = "table suspend"
	GameStateTableResume    GameStateCode = "table resume"
)

type GameStatePayload struct {
	Code      GameStateCode
	Seat      int   // -1 when not seat-specific
	ClientID  int64 // for seat-specific codes
	Placement int   // for "broke"
}

type BuyInsurancePayload struct {
	Seat            int
	ClientID        int64
	Round           int // 0 = flop, 1 = turn
	MaxPayment      int64
	Outs            []card.Card
	OutsPerOpponent map[int][]card.Card
}

type InsuranceBenefitsPayload struct {
	Seat     int
	ClientID int64
	Round    int
	Amount   int64 // signed
}

// FoyerPayload announces a lobby join/leave.
type FoyerPayload struct {
	Kind     string // "join" or "leave"
	ClientID int64
	Name     string
}

// WantToStraddlePayload prompts next hand's armed straddler.
type WantToStraddlePayload struct {
	ClientID     int64
	StraddleRate int64
}

type RespitePayload struct {
	Seat         int
	ClientID     int64
	AddedSec     int64
	RemainingSec int64
}
