package monitor

import "errors"

var (
	// ErrAlreadyRunning indicates Start was called while monitoring
	// is already running.
	ErrAlreadyRunning = errors.New("monitoring already running")

	// ErrNoDevices indicates Start found no devices to monitor.
	ErrNoDevices = errors.New("no devices to monitor")

	// ErrClientUnavailable indicates the cloud client has no usable
	// session.
	ErrClientUnavailable = errors.New("mijia client unavailable")
)
