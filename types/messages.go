package types

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

const (
	ActionOpen  = "open_sise"
	ActionClose = "close_sise"
)

// ControlMessage is one subscribe/unsubscribe request sent over the socket.
type ControlMessage struct {
	CustID  string `json:"cust_id"`
	AuthKey string `json:"auth_key"`
	DType   string `json:"dtype"`
	SCode   string `json:"scode"`
}

// Tick is a decoded inbound message with canonical field names.
type Tick struct {
	Epoch      string
	ReceivedAt time.Time
	Fields     map[string]string
}

func (t Tick) Get(name string) (string, bool) {
	v, ok := t.Fields[name]
	return v, ok
}

func (t Tick) Float(name string) float64 {
	v, _ := strconv.ParseFloat(t.Fields[name], 64)
	return v
}

func (t Tick) Decimal(name string) (decimal.Decimal, error) {
	v, ok := t.Fields[name]
	if !ok {
		return decimal.Zero, fmt.Errorf("field %q not present", name)
	}
	d, err := decimal.NewFromString(v)
	if err != nil {
		return decimal.Zero, fmt.Errorf("field %q: %w", name, err)
	}
	return d, nil
}

// FormatValue renders a decoded JSON value as text. Numbers keep their
// original digits when decoded with json.Decoder.UseNumber.
func FormatValue(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case json.Number:
		return val.String()
	case bool:
		return strconv.FormatBool(val)
	default:
		data, err := json.Marshal(val)
		if err != nil {
			return fmt.Sprint(val)
		}
		return string(data)
	}
}
