package websocket

import (
	"sync"
	"sync/atomic"

	"github.com/tradingiq/koscom-client/interfaces"
	"github.com/tradingiq/koscom-client/types"

	"go.uber.org/zap"
)

const DefaultQueueSize = 1024

// QueuedSubscriber decouples a slow subscriber from the receive loop. Ticks
// are handed to a single worker over a bounded queue; when the queue is full
// the tick is dropped and counted.
type QueuedSubscriber struct {
	next   interfaces.TickSubscriber
	logger *zap.Logger

	queue   chan types.Tick
	wg      sync.WaitGroup
	closeMu sync.RWMutex
	closed  bool

	dropped atomic.Uint64
}

func NewQueuedSubscriber(next interfaces.TickSubscriber, size int, logger *zap.Logger) *QueuedSubscriber {
	if size <= 0 {
		size = DefaultQueueSize
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	q := &QueuedSubscriber{
		next:   next,
		logger: logger,
		queue:  make(chan types.Tick, size),
	}

	q.wg.Add(1)
	go q.worker()

	return q
}

func (q *QueuedSubscriber) OnTick(tick types.Tick) {
	q.closeMu.RLock()
	defer q.closeMu.RUnlock()

	if q.closed {
		return
	}

	select {
	case q.queue <- tick:
	default:
		n := q.dropped.Add(1)
		q.logger.Warn("Subscriber queue full, dropping tick", zap.String("epoch", tick.Epoch), zap.Uint64("dropped", n))
	}
}

func (q *QueuedSubscriber) Dropped() uint64 {
	return q.dropped.Load()
}

// Close stops accepting ticks, delivers what is queued and waits for the worker.
func (q *QueuedSubscriber) Close() {
	q.closeMu.Lock()
	if q.closed {
		q.closeMu.Unlock()
		return
	}
	q.closed = true
	close(q.queue)
	q.closeMu.Unlock()

	q.wg.Wait()
}

func (q *QueuedSubscriber) worker() {
	defer q.wg.Done()

	for tick := range q.queue {
		q.dispatch(tick)
	}
}

func (q *QueuedSubscriber) dispatch(tick types.Tick) {
	defer func() {
		if r := recover(); r != nil {
			q.logger.Error("Queued subscriber panicked", zap.Any("panic", r))
		}
	}()

	q.next.OnTick(tick)
}
