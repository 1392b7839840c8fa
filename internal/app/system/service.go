package system

import "context"

// Service is a lifecycle-managed background component. The runtime starts
// every registered service before serving traffic and stops them in reverse
// order on shutdown.
type Service interface {
	Name() string
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}
