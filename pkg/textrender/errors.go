package textrender

import "errors"

var (
	// ErrMisconfigured: init-time validation failure (unaligned
	// SPIR-V, zero max_instances, frames_in_flight == 0, impossible
	// surface format). Fatal to Init.
	ErrMisconfigured = errors.New("textrender: misconfigured")

	// ErrDeviceLost: propagated from the dispatch; fatal.
	ErrDeviceLost = errors.New("textrender: device lost")

	// ErrTransferSubmitFailed: non-fatal; the caller falls back to the
	// inline upload path.
	ErrTransferSubmitFailed = errors.New("textrender: transfer queue submit failed")
)
