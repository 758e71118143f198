package websocket

import "time"

// Backoff decides how long to wait before reconnect attempt n (1-based).
type Backoff interface {
	Next(attempt int) time.Duration
}

// FixedBackoff waits the same delay before every attempt, forever.
type FixedBackoff time.Duration

func (b FixedBackoff) Next(int) time.Duration {
	return time.Duration(b)
}
