package controller

import "errors"

var (
	ErrWrongPassword      = errors.New("controller: wrong password")
	ErrAlreadyRegistered  = errors.New("controller: you are already registered")
	ErrNotRegistered      = errors.New("controller: you are not registered")
	ErrRegisterLimit      = errors.New("controller: register limit reached")
	ErrJoinAfterStart     = errors.New("controller: cannot join after start")
	ErrNotStarted         = errors.New("controller: game is not running")
	ErrRebuyNotAllowed    = errors.New("controller: rebuy is not allowed in this game")
	ErrStraddleNotAllowed = errors.New("controller: straddle is not allowed in this game")
	ErrInsuranceDisabled  = errors.New("controller: unable to buy insurance")
	ErrBadStatus          = errors.New("controller: operation not valid in this game state")
)
