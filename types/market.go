package types

import (
	"fmt"
	"strings"
)

// MarketType is the 5 digit market/segment prefix of a subscription code.
type MarketType string

const (
	KOSPIStock        MarketType = "00100"
	KOSPIIndex        MarketType = "00200"
	KOSDAQStock       MarketType = "00300"
	KOSDAQIndex       MarketType = "00400"
	K200Futures       MarketType = "00500"
	K200Option        MarketType = "00600"
	KQ150Futures      MarketType = "06700"
	StockFutures      MarketType = "09100"
	K200MiniFutures   MarketType = "10300"
	K200NightFDelayed MarketType = "20700"
)

var marketTypeNames = map[MarketType]string{
	KOSPIStock:        "KOSPI_STOCK",
	KOSPIIndex:        "KOSPI_INDEX",
	KOSDAQStock:       "KOSDAQ_STOCK",
	KOSDAQIndex:       "KOSDAQ_INDEX",
	K200Futures:       "K200_FUTURES",
	K200Option:        "K200_OPTION",
	KQ150Futures:      "KQ150_FUTURES",
	StockFutures:      "STOCK_FUTURES",
	K200MiniFutures:   "K200_MINI_F",
	K200NightFDelayed: "K200_NIGHT_F_DELAYED",
}

func (m MarketType) Valid() bool {
	_, ok := marketTypeNames[m]
	return ok
}

func (m MarketType) Name() string {
	if name, ok := marketTypeNames[m]; ok {
		return name
	}
	return "UNKNOWN"
}

// ParseMarketType accepts either the enum name (KOSPI_STOCK) or the raw code (00100).
func ParseMarketType(s string) (MarketType, error) {
	s = strings.TrimSpace(s)
	if MarketType(s).Valid() {
		return MarketType(s), nil
	}
	for code, name := range marketTypeNames {
		if strings.EqualFold(name, s) {
			return code, nil
		}
	}
	return "", fmt.Errorf("unknown market type %q", s)
}

// SubType selects the stream category of a subscription.
type SubType string

const (
	Transaction SubType = "2"
	Orderbook   SubType = "5"
)

func (s SubType) Valid() bool {
	return s == Transaction || s == Orderbook
}

func (s SubType) Name() string {
	switch s {
	case Transaction:
		return "TRANSACTION"
	case Orderbook:
		return "ORDERBOOK"
	default:
		return "UNKNOWN"
	}
}

func ParseSubType(s string) (SubType, error) {
	s = strings.TrimSpace(s)
	switch strings.ToUpper(s) {
	case "TRANSACTION", string(Transaction):
		return Transaction, nil
	case "ORDERBOOK", string(Orderbook):
		return Orderbook, nil
	}
	return "", fmt.Errorf("unknown sub type %q", s)
}

type SubscriptionStatus int

const (
	Subscribed SubscriptionStatus = iota
	Unsubscribed
)

func (s SubscriptionStatus) String() string {
	switch s {
	case Subscribed:
		return "SUBSCRIBED"
	case Unsubscribed:
		return "UNSUBSCRIBED"
	default:
		return fmt.Sprintf("SubscriptionStatus(%d)", int(s))
	}
}

// SubscriptionKey identifies one instrument stream on the vendor socket.
type SubscriptionKey struct {
	Market MarketType
	Sub    SubType
	Ticker string
}

func NewSubscriptionKey(market MarketType, sub SubType, ticker string) SubscriptionKey {
	return SubscriptionKey{Market: market, Sub: sub, Ticker: ticker}
}

// Validate reports why the key cannot form a well-formed code, if it cannot.
func (k SubscriptionKey) Validate() error {
	if !k.Market.Valid() {
		return &InvalidKeyError{Key: k, Reason: fmt.Sprintf("unknown market type %q", string(k.Market))}
	}
	if !k.Sub.Valid() {
		return &InvalidKeyError{Key: k, Reason: fmt.Sprintf("unknown sub type %q", string(k.Sub))}
	}
	if k.Ticker == "" {
		return &InvalidKeyError{Key: k, Reason: "empty ticker"}
	}
	if strings.ContainsAny(k.Ticker, "| \t\r\n") {
		return &InvalidKeyError{Key: k, Reason: "ticker contains a separator or whitespace"}
	}
	return nil
}

// Code concatenates the market code, sub type code and ticker. Both prefixes
// are fixed width so the result needs no delimiter.
func (k SubscriptionKey) Code() string {
	return string(k.Market) + string(k.Sub) + k.Ticker
}

func (k SubscriptionKey) String() string {
	return fmt.Sprintf("%s/%s/%s", k.Market.Name(), k.Sub.Name(), k.Ticker)
}

type Credentials struct {
	UserID  string
	UserKey string
}
