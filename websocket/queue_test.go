package websocket

import (
	"sync"
	"testing"

	"github.com/tradingiq/koscom-client/interfaces"
	"github.com/tradingiq/koscom-client/types"

	"go.uber.org/zap/zaptest"
)

func TestQueuedSubscriber_DeliversInOrder(t *testing.T) {
	var mu sync.Mutex
	var got []string

	q := NewQueuedSubscriber(interfaces.TickSubscriberFunc(func(tick types.Tick) {
		mu.Lock()
		got = append(got, tick.Fields["PRICE"])
		mu.Unlock()
	}), 8, zaptest.NewLogger(t))

	for _, price := range []string{"1", "2", "3"} {
		q.OnTick(types.Tick{Fields: map[string]string{"PRICE": price}})
	}
	q.Close()

	mu.Lock()
	defer mu.Unlock()
	expected := []string{"1", "2", "3"}
	if len(got) != len(expected) {
		t.Fatalf("got %v, expected %v", got, expected)
	}
	for i := range expected {
		if got[i] != expected[i] {
			t.Errorf("tick %d = %q, expected %q", i, got[i], expected[i])
		}
	}
}

func TestQueuedSubscriber_DropsWhenFull(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{}, 1)

	q := NewQueuedSubscriber(interfaces.TickSubscriberFunc(func(tick types.Tick) {
		select {
		case started <- struct{}{}:
		default:
		}
		<-release
	}), 1, zaptest.NewLogger(t))

	q.OnTick(types.Tick{Epoch: "a"})
	<-started

	q.OnTick(types.Tick{Epoch: "b"})
	q.OnTick(types.Tick{Epoch: "c"})
	q.OnTick(types.Tick{Epoch: "d"})

	if q.Dropped() != 2 {
		t.Errorf("Dropped() = %d, expected 2", q.Dropped())
	}

	close(release)
	q.Close()

	q.OnTick(types.Tick{Epoch: "after close"})
	if q.Dropped() != 2 {
		t.Error("ticks after Close should be ignored, not counted")
	}
}

func TestQueuedSubscriber_RecoversPanics(t *testing.T) {
	delivered := make(chan string, 2)

	q := NewQueuedSubscriber(interfaces.TickSubscriberFunc(func(tick types.Tick) {
		if tick.Epoch == "boom" {
			panic("consumer failure")
		}
		delivered <- tick.Epoch
	}), 4, zaptest.NewLogger(t))

	q.OnTick(types.Tick{Epoch: "boom"})
	q.OnTick(types.Tick{Epoch: "ok"})
	q.Close()

	if got := <-delivered; got != "ok" {
		t.Errorf("delivered %q, expected ok", got)
	}
}
