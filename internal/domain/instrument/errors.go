package instrument

import "errors"

// Sentinel error kinds for this package. These allow errors.Is from callers.
var (
	ErrInvalidInstrument = errors.New("invalid instrument")
	ErrUnknownInstrument = errors.New("unknown instrument")
	ErrDuplicateCode     = errors.New("duplicate instrument code")
)
