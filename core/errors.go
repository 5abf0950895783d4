package core

import "errors"

var (
	ErrUnknownBackend = errors.New("unknown backend")
	ErrUnknownMode    = errors.New("unknown callback mode")
	ErrInvalidTone    = errors.New("invalid tone frequency")
	ErrNoDriver       = errors.New("no audio driver available")
	ErrActivateFailed = errors.New("activation failed")
)
