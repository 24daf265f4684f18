package mijia

import "context"

// NullClient is a no-op client used when no cloud session is
// configured. It allows the binary to run in limited mode: the store
// and API stay usable, monitoring cannot start.
type NullClient struct{}

// NewNullClient creates a new NullClient.
func NewNullClient() *NullClient {
	return &NullClient{}
}

func (c *NullClient) Available() bool {
	return false
}

func (c *NullClient) ListDevices(ctx context.Context) ([]DeviceInfo, error) {
	return nil, ErrUnavailable
}

func (c *NullClient) GetSpec(ctx context.Context, model string) (*DeviceSpec, error) {
	return nil, ErrUnavailable
}

func (c *NullClient) GetProps(ctx context.Context, reqs []PropRequest) ([]PropResult, error) {
	return nil, ErrUnavailable
}
