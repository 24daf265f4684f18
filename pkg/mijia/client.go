package mijia

import "context"

// Client defines the interface to the Mi Home cloud.
// This abstraction keeps the monitor independent of the concrete
// transport; tests and limited mode substitute their own
// implementations.
type Client interface {
	// Available reports whether the client holds a usable session.
	Available() bool

	// ListDevices returns all devices registered to the account.
	ListDevices(ctx context.Context) ([]DeviceInfo, error)

	// GetSpec returns the property spec for a device model.
	// Fails for models the spec catalog does not know.
	GetSpec(ctx context.Context, model string) (*DeviceSpec, error)

	// GetProps reads device properties. One result is returned per
	// request, in request order; individual reads may fail (non-zero
	// Code) without the call as a whole failing.
	GetProps(ctx context.Context, reqs []PropRequest) ([]PropResult, error)
}
