package websocket

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/tradingiq/koscom-client/types"

	"go.uber.org/multierr"
)

// FrameSeparator joins control messages inside one outbound frame.
const FrameSeparator = "|"

var ErrNoSubscriptions = errors.New("registry needs at least one subscription")

// Registry records which instruments should be streamed and whether the
// upstream has acknowledged them. It performs no I/O.
type Registry struct {
	creds types.Credentials

	mu     sync.RWMutex
	keys   []types.SubscriptionKey
	status map[string]types.SubscriptionStatus

	fields map[string]struct{}
}

type RegistryOption func(*Registry)

// WithFields restricts IsRelevant to the given upstream field names.
func WithFields(fields ...string) RegistryOption {
	return func(r *Registry) {
		if r.fields == nil {
			r.fields = make(map[string]struct{}, len(fields))
		}
		for _, f := range fields {
			r.fields[f] = struct{}{}
		}
	}
}

// NewRegistry validates every entry and starts them all UNSUBSCRIBED.
// Duplicate entries collapse onto the first occurrence.
func NewRegistry(creds types.Credentials, entries []types.SubscriptionKey, opts ...RegistryOption) (*Registry, error) {
	if len(entries) == 0 {
		return nil, ErrNoSubscriptions
	}

	var errs error
	for _, entry := range entries {
		errs = multierr.Append(errs, entry.Validate())
	}
	if errs != nil {
		return nil, errs
	}

	r := &Registry{
		creds:  creds,
		keys:   make([]types.SubscriptionKey, 0, len(entries)),
		status: make(map[string]types.SubscriptionStatus, len(entries)),
	}
	for _, entry := range entries {
		code := entry.Code()
		if _, exists := r.status[code]; exists {
			continue
		}
		r.keys = append(r.keys, entry)
		r.status[code] = types.Unsubscribed
	}

	for _, opt := range opts {
		opt(r)
	}

	return r, nil
}

// Encode builds the subscription code for a triple, failing on invalid components.
func (r *Registry) Encode(market types.MarketType, sub types.SubType, ticker string) (string, error) {
	key := types.NewSubscriptionKey(market, sub, ticker)
	if err := key.Validate(); err != nil {
		return "", err
	}
	return key.Code(), nil
}

func (r *Registry) BuildSubscribeBatch() []types.ControlMessage {
	return r.buildBatch(types.ActionOpen)
}

func (r *Registry) BuildUnsubscribeBatch() []types.ControlMessage {
	return r.buildBatch(types.ActionClose)
}

func (r *Registry) buildBatch(action string) []types.ControlMessage {
	r.mu.RLock()
	defer r.mu.RUnlock()

	msgs := make([]types.ControlMessage, 0, len(r.keys))
	for _, key := range r.keys {
		msgs = append(msgs, types.ControlMessage{
			CustID:  r.creds.UserID,
			AuthKey: r.creds.UserKey,
			DType:   action,
			SCode:   key.Code(),
		})
	}
	return msgs
}

func (r *Registry) MarkAll(status types.SubscriptionStatus) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for code := range r.status {
		r.status[code] = status
	}
}

func (r *Registry) Status(code string) (types.SubscriptionStatus, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	status, ok := r.status[code]
	return status, ok
}

// Keys returns the subscriptions in registration order.
func (r *Registry) Keys() []types.SubscriptionKey {
	r.mu.RLock()
	defer r.mu.RUnlock()

	keys := make([]types.SubscriptionKey, len(r.keys))
	copy(keys, r.keys)
	return keys
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.keys)
}

// IsRelevant reports whether an inbound field should be forwarded. Without a
// field allowlist every field is relevant and the translation table alone
// decides.
func (r *Registry) IsRelevant(field string) bool {
	if len(r.fields) == 0 {
		return true
	}
	_, ok := r.fields[field]
	return ok
}

// EncodeFrame serializes control messages into a single socket frame.
func EncodeFrame(msgs []types.ControlMessage) ([]byte, error) {
	var buf bytes.Buffer
	for i, msg := range msgs {
		data, err := json.Marshal(msg)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal control message %q: %w", msg.SCode, err)
		}
		if i > 0 {
			buf.WriteString(FrameSeparator)
		}
		// '|' can only appear inside string values; escape it so the frame splits cleanly.
		buf.Write(bytes.ReplaceAll(data, []byte(FrameSeparator), []byte(`\u007c`)))
	}
	return buf.Bytes(), nil
}
