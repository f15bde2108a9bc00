package vesting

import "errors"

var (
	ErrNothingToClaim          = errors.New("nothing to claim")
	ErrInsufficientVested      = errors.New("insufficient vested amount")
	ErrAccountDisabled         = errors.New("account disabled")
	ErrInvalidAmount           = errors.New("invalid amount")
	ErrAddressAlreadyRecipient = errors.New("address already recipient")
	ErrNoSchedule              = errors.New("no vesting schedule")
	ErrZeroAddress             = errors.New("zero address")
	ErrUnauthorized            = errors.New("unauthorized")
)
