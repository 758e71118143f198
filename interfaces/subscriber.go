package interfaces

import "github.com/tradingiq/koscom-client/types"

// TickSubscriber receives decoded ticks from a stream session.
// OnTick is called synchronously from the receive loop; a slow subscriber
// stalls delivery for that session.
type TickSubscriber interface {
	OnTick(types.Tick)
}

// TickSubscriberFunc adapts a plain function to TickSubscriber.
type TickSubscriberFunc func(types.Tick)

func (f TickSubscriberFunc) OnTick(tick types.Tick) {
	f(tick)
}
