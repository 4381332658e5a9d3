package hatchbridge

import "errors"

// Sentinel errors for the hatch bridge.
// Wrap with fmt.Errorf("%w: detail", Err...) to add context.
var (
	// ErrNoSession indicates a command arrived while no AWS IoT session
	// is established.
	ErrNoSession = errors.New("hatchbridge: no active cloud session")

	// ErrUnknownDevice indicates a command targeted a thing name the
	// bridge does not manage.
	ErrUnknownDevice = errors.New("hatchbridge: unknown device")

	// ErrUnknownCommand indicates an unrecognized command name.
	ErrUnknownCommand = errors.New("hatchbridge: unknown command")

	// ErrInvalidParameters indicates missing or out-of-range command
	// parameters.
	ErrInvalidParameters = errors.New("hatchbridge: invalid command parameters")

	// ErrUnsupportedOperation indicates a command the target device's
	// generation cannot perform.
	ErrUnsupportedOperation = errors.New("hatchbridge: operation not supported by device generation")
)
