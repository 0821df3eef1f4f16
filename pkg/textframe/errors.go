package textframe

import "errors"

var (
	// ErrFrameFull: the bank's instance buffer capacity is reached.
	ErrFrameFull = errors.New("textframe: frame full")

	// ErrInvalidFrameState: an operation was attempted out of the
	// Idle -> Recording -> Encoded -> Idle sequence.
	ErrInvalidFrameState = errors.New("textframe: invalid frame state")

	// ErrSlotOutOfRange: a bank index outside [0, N) was used.
	ErrSlotOutOfRange = errors.New("textframe: slot out of range")
)
