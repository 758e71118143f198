package types

import "fmt"

// InvalidKeyError is returned when a subscription entry cannot be encoded.
type InvalidKeyError struct {
	Key    SubscriptionKey
	Reason string
}

func (e *InvalidKeyError) Error() string {
	return fmt.Sprintf("invalid subscription key %s: %s", e.Key, e.Reason)
}

// DecodeError wraps an inbound payload that could not be parsed.
type DecodeError struct {
	Payload []byte
	Err     error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("failed to decode message (%d bytes): %v", len(e.Payload), e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}
