package review

import "errors"

// Error categories recovered inside the review pipeline. None of them
// escapes a formatter; they are wrapped for logging and tests only.
var (
	// ErrMissingColumn reports a required column absent from a table.
	ErrMissingColumn = errors.New("missing column")
	// ErrAssociation reports a track row that could not be paired with truth.
	ErrAssociation = errors.New("association failed")
	// ErrMalformedHistogram reports a histogram entry without usable values or edges.
	ErrMalformedHistogram = errors.New("malformed histogram entry")
	// ErrSelectionType reports a selected id that cannot be coerced to the id column type.
	ErrSelectionType = errors.New("selection type mismatch")
)
