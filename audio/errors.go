package audio

import "errors"

var (
	ErrDriverNotFound      = errors.New("driver not found")
	ErrDeviceNotFound      = errors.New("device not found")
	ErrManagerConstruction = errors.New("device manager construction failed")
	ErrDeviceConstruction  = errors.New("device construction failed")
	ErrContextInUse        = errors.New("context id already active")
	ErrInvalidContext      = errors.New("invalid context id")
	ErrNoBackends          = errors.New("no audio backends available")
)

// 边界错误码，负数表示失败
const (
	CodeDriverNotFound      = -1
	CodeDeviceNotFound      = -2
	CodeManagerConstruction = -3
	CodeDeviceConstruction  = -4
	CodeContextInUse        = -5
	CodeInvalidContext      = -6
)

// Code maps an Activate error to its boundary code. A nil error maps to 0;
// errors outside the taxonomy map to CodeDeviceConstruction.
func Code(err error) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, ErrDriverNotFound):
		return CodeDriverNotFound
	case errors.Is(err, ErrDeviceNotFound):
		return CodeDeviceNotFound
	case errors.Is(err, ErrManagerConstruction):
		return CodeManagerConstruction
	case errors.Is(err, ErrContextInUse):
		return CodeContextInUse
	case errors.Is(err, ErrInvalidContext):
		return CodeInvalidContext
	default:
		return CodeDeviceConstruction
	}
}
