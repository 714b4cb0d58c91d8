package service

import "errors"

var (
	ErrTournamentNotLive       = errors.New("tournament is not live")
	ErrInvalidStatusTransition = errors.New("tournament status does not allow this action")
	ErrRegistrationClosed      = errors.New("tournament is not open for registration")
	ErrTournamentFull          = errors.New("tournament is full")
	ErrPlayerAlreadyRegistered = errors.New("username already registered for this tournament")
	ErrUnknownAffiliate        = errors.New("username is not on the affiliate roster")
	ErrValidation              = errors.New("invalid input")
)
