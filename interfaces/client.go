package interfaces

import "context"

type StreamClient interface {
	// Run connects, subscribes and delivers ticks until ctx is cancelled.
	Run(ctx context.Context, subscriber TickSubscriber) error
}
