package bottle

import "errors"

var (
	// ErrNotFound is returned when a bottle file does not exist.
	ErrNotFound = errors.New("bottle: not found")
	// ErrMalformed is returned when a persisted file cannot be parsed.
	ErrMalformed = errors.New("bottle: malformed data")
	// ErrNilConfig is returned when bottle.yml decodes to nothing. It is
	// the one load failure callers are expected to treat as fatal.
	ErrNilConfig = errors.New("bottle: config is empty")
)
