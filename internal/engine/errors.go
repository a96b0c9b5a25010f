package engine

import "errors"

// Sentinel error kinds an external caller can match with errors.Is.
// Timeout and NonZeroExit surface from internal/archiver as
// *archiver.TimeoutError / *archiver.NonZeroExitError and are not
// redeclared here; callers wanting those should errors.As against the
// archiver types directly.
var (
	// ErrPlanRejected is returned when a resumed session's source/target
	// roots don't match the ones the caller supplied.
	ErrPlanRejected = errors.New("engine: session plan rejected, source/target root mismatch")

	// ErrCancelled is returned when Stop was called before the run
	// finished.
	ErrCancelled = errors.New("engine: run cancelled")

	// ErrConfigInvalid wraps configuration validation failures.
	ErrConfigInvalid = errors.New("engine: invalid configuration")

	// ErrPrivilegeDenied is returned when the post-migration symlink
	// could not be created due to insufficient privilege.
	ErrPrivilegeDenied = errors.New("engine: insufficient privilege")
)
