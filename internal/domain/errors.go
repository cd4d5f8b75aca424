package domain

import "errors"

// Common domain errors returned by the ranking core and its ports.
var (
	// ErrTooFewItems indicates a ranking was requested over fewer than
	// two items; ranking is undefined below that and never attempted.
	ErrTooFewItems = errors.New("ranking requires at least 2 items")

	// ErrNoPendingComparison indicates a verdict arrived while the
	// engine was not waiting for one.
	ErrNoPendingComparison = errors.New("no comparison is pending")

	// ErrRunComplete indicates an operation on a sort run that has
	// already produced its ranking.
	ErrRunComplete = errors.New("sort run already complete")

	// ErrStaleResolution indicates a verdict belonging to a superseded
	// sort run generation. Expected during user-initiated restart and
	// always discarded without touching the current run.
	ErrStaleResolution = errors.New("resolution belongs to a superseded run")

	// ErrSessionNotActive indicates a comparison was submitted while no
	// sort run was in flight.
	ErrSessionNotActive = errors.New("session is not active")

	// ErrSnippetNotFound indicates an unknown snippet ID.
	ErrSnippetNotFound = errors.New("snippet not found")

	// ErrInvalidVerdict indicates a comparison outcome outside
	// left/right/tie.
	ErrInvalidVerdict = errors.New("invalid verdict")

	// ErrInvalidRating indicates an absolute rating outside the 1-10
	// scale.
	ErrInvalidRating = errors.New("rating must be between 1 and 10")
)
