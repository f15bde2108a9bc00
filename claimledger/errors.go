package claimledger

import "errors"

var (
	ErrInvalidProof      = errors.New("invalid proof")
	ErrAlreadyClaimed    = errors.New("already claimed")
	ErrTimeoutNotReached = errors.New("timeout not reached")
	ErrUnauthorized      = errors.New("unauthorized")
	ErrInvalidRoot       = errors.New("invalid root")
	ErrDestroyed         = errors.New("ledger is self-destructed")
)
