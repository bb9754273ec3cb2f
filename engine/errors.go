package engine

import "errors"

var (
	ErrHandEnded         = errors.New("engine: hand already ended")
	ErrOutOfTurn         = errors.New("engine: action out of turn")
	ErrNotSuspended      = errors.New("engine: table is not suspended for insurance")
	ErrAlreadyBought     = errors.New("engine: insurance already purchased this round")
	ErrCardNotInOuts     = errors.New("engine: card is not in the published outs")
	ErrBuyAmountTooLarge = errors.New("engine: buy amount exceeds the maximum allowed")
)

// InvalidStateError reports a state-machine invariant violation; these
// are logged, not fatal, except where a short-circuit to EndRound is
// explicitly required.
type InvalidStateError string

func (e InvalidStateError) Error() string { return "engine: invalid state: " + string(e) }
