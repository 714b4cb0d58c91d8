package bracket

import "errors"

var (
	ErrInsufficientPlayers   = errors.New("at least 2 registered players are required to build a bracket")
	ErrBracketAlreadyExists  = errors.New("bracket already generated for this tournament")
	ErrMatchNotReady         = errors.New("match is missing one or both players")
	ErrMatchAlreadyCompleted = errors.New("match already completed")
	ErrInvalidScore          = errors.New("scores must be non-negative numbers")
	ErrUnknownSeeding        = errors.New("unknown seeding mode")
)
