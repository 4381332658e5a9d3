package hass

import "errors"

// Sentinel errors for the hass package.
// Wrap with fmt.Errorf("%w: detail", Err...) to add context.
var (
	// ErrInvalidCommand indicates an entity command payload that could
	// not be decoded or carries out-of-range values.
	ErrInvalidCommand = errors.New("hass: invalid command payload")
)
