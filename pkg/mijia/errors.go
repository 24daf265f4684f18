package mijia

import "errors"

var (
	// ErrUnavailable indicates the client has no usable session.
	ErrUnavailable = errors.New("mijia client unavailable")

	// ErrUnknownModel indicates no spec exists for a device model.
	ErrUnknownModel = errors.New("unknown device model")
)
