package textatlas

import "errors"

// Sentinel errors for the taxonomy entries this package can raise
// (spec.md §7). Callers use errors.Is against these.
var (
	// ErrAtlasFull: the packer cannot fit the requested rect even at
	// max_extent.
	ErrAtlasFull = errors.New("textatlas: atlas full")

	// ErrOutOfMemory: device or host allocation failure during grow or
	// staging-ring creation.
	ErrOutOfMemory = errors.New("textatlas: out of memory")

	// ErrUploadTooLarge: the staging ring cannot accommodate the upload;
	// caller must flush (encode) and retry.
	ErrUploadTooLarge = errors.New("textatlas: upload exceeds staging ring capacity")

	// ErrMisconfigured: init-time validation failure.
	ErrMisconfigured = errors.New("textatlas: misconfigured")
)
