package rest

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"time"
)

var (
	ErrUnsupported     = errors.New("operation not supported for segment")
	ErrInvalidInterval = errors.New("invalid kline interval")
	ErrEmptyCodes      = errors.New("at least one code is required")
)

type SegmentKind int

const (
	SegmentStock SegmentKind = iota
	SegmentIndex
	SegmentDerivative
)

func (k SegmentKind) String() string {
	switch k {
	case SegmentStock:
		return "stock"
	case SegmentIndex:
		return "index"
	case SegmentDerivative:
		return "derivative"
	default:
		return fmt.Sprintf("SegmentKind(%d)", int(k))
	}
}

// Segment is one market board of the REST API, addressed as /<group>/<code>/<op>.
type Segment struct {
	Name  string
	Group string
	Code  string
	Kind  SegmentKind
}

var (
	KOSPIStocks  = Segment{Name: "KOSPI_STOCK", Group: "stock", Code: "m001", Kind: SegmentStock}
	KOSPIIndex   = Segment{Name: "KOSPI_INDEX", Group: "stock", Code: "m002", Kind: SegmentIndex}
	KOSDAQStocks = Segment{Name: "KOSDAQ_STOCK", Group: "stock", Code: "m003", Kind: SegmentStock}
	KOSDAQIndex  = Segment{Name: "KOSDAQ_INDEX", Group: "stock", Code: "m004", Kind: SegmentIndex}
	SectorIndex  = Segment{Name: "SECTOR_INDEX", Group: "stock", Code: "m167", Kind: SegmentIndex}
	OtherIndex   = Segment{Name: "OTHER_INDEX", Group: "stock", Code: "m168", Kind: SegmentIndex}

	K200Futures      = Segment{Name: "K200_FUTURES", Group: "future", Code: "m005", Kind: SegmentDerivative}
	K200Option       = Segment{Name: "K200_OPTION", Group: "future", Code: "m006", Kind: SegmentDerivative}
	KQ150Futures     = Segment{Name: "KQ150_FUTURES", Group: "future", Code: "m067", Kind: SegmentDerivative}
	StockFutures     = Segment{Name: "STOCK_FUTURES", Group: "future", Code: "m091", Kind: SegmentDerivative}
	K200MiniFutures  = Segment{Name: "K200_MINI_FUTURES", Group: "future", Code: "m103", Kind: SegmentDerivative}
	K200MiniOption   = Segment{Name: "K200_MINI_OPTION", Group: "future", Code: "m104", Kind: SegmentDerivative}
	K200WeeklyOption = Segment{Name: "K200_WEEKLY_OPTION", Group: "future", Code: "m182", Kind: SegmentDerivative}
)

// Segments lists every known segment.
var Segments = []Segment{
	KOSPIStocks, KOSPIIndex, KOSDAQStocks, KOSDAQIndex, SectorIndex, OtherIndex,
	K200Futures, K200Option, KQ150Futures, StockFutures, K200MiniFutures, K200MiniOption, K200WeeklyOption,
}

// LookupSegment finds a segment by name (case-insensitive) or code.
func LookupSegment(s string) (Segment, bool) {
	for _, seg := range Segments {
		if strings.EqualFold(seg.Name, s) || seg.Code == s {
			return seg, true
		}
	}
	return Segment{}, false
}

func (s Segment) String() string {
	return s.Name
}

func (s Segment) path(op string) string {
	return "/" + s.Group + "/" + s.Code + "/" + op
}

// Kline intervals accepted by Kline, mapped to the vendor's term values.
var klineIntervals = map[string]string{
	"1d":  "daily",
	"1w":  "weekly",
	"1q":  "quarterly",
	"yoy": "YTD",
	"1y":  "yearly",
}

// KlineIntervals returns the accepted interval names, sorted.
func KlineIntervals() []string {
	out := make([]string, 0, len(klineIntervals))
	for k := range klineIntervals {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

const dateLayout = "20060102"

// FormatDate renders t as the vendor's YYYYMMDD in KST.
func FormatDate(t time.Time) string {
	return t.In(KST).Format(dateLayout)
}

func requireKind(seg Segment, op string, kinds ...SegmentKind) error {
	for _, k := range kinds {
		if seg.Kind == k {
			return nil
		}
	}
	return fmt.Errorf("%s on %s: %w", op, seg.Name, ErrUnsupported)
}

func codeList(codes []string) (string, error) {
	if len(codes) == 0 {
		return "", ErrEmptyCodes
	}
	return strings.Join(codes, ","), nil
}

// CodeInfo lists the instruments of a segment.
func (c *Client) CodeInfo(ctx context.Context, seg Segment) (*Table, error) {
	return c.Fetch(ctx, seg.path("code_info"), nil, IndexNone)
}

// BasicInfos returns master data for several stocks or derivatives.
func (c *Client) BasicInfos(ctx context.Context, seg Segment, codes []string) (*Table, error) {
	var op string
	switch seg.Kind {
	case SegmentStock:
		op = "basic_info_all_port"
	case SegmentDerivative:
		op = "basic_info_port"
	default:
		return nil, requireKind(seg, "basic infos", SegmentStock, SegmentDerivative)
	}

	list, err := codeList(codes)
	if err != nil {
		return nil, err
	}
	return c.Fetch(ctx, seg.path(op), url.Values{"codelist": {list}}, IndexNone)
}

// BasicInfo returns master data for one index.
func (c *Client) BasicInfo(ctx context.Context, seg Segment, code string) (*Table, error) {
	if err := requireKind(seg, "basic info", SegmentIndex); err != nil {
		return nil, err
	}
	return c.Fetch(ctx, seg.path("basic_info"), url.Values{"jcode": {code}}, IndexNone)
}

func (c *Client) InvestorInfos(ctx context.Context, seg Segment, codes []string) (*Table, error) {
	if err := requireKind(seg, "investor infos", SegmentStock); err != nil {
		return nil, err
	}
	list, err := codeList(codes)
	if err != nil {
		return nil, err
	}
	return c.Fetch(ctx, seg.path("invest_info_port"), url.Values{"codelist": {list}}, IndexNone)
}

// OrderbookInfos returns the full order book snapshot for several codes.
func (c *Client) OrderbookInfos(ctx context.Context, seg Segment, codes []string) (*Table, error) {
	return c.orderbook(ctx, seg, "hoga_info_port", codes)
}

// BBOInfos returns best bid and offer for several codes.
func (c *Client) BBOInfos(ctx context.Context, seg Segment, codes []string) (*Table, error) {
	return c.orderbook(ctx, seg, "hoga_info_port_top", codes)
}

func (c *Client) orderbook(ctx context.Context, seg Segment, op string, codes []string) (*Table, error) {
	if err := requireKind(seg, op, SegmentStock, SegmentDerivative); err != nil {
		return nil, err
	}
	list, err := codeList(codes)
	if err != nil {
		return nil, err
	}
	return c.Fetch(ctx, seg.path(op), url.Values{"codelist": {list}}, IndexIntraday)
}

// IndexRank ranks the constituents of indexCode by criteriaCode.
func (c *Client) IndexRank(ctx context.Context, seg Segment, indexCode, criteriaCode string) (*Table, error) {
	if err := requireKind(seg, "rank", SegmentStock); err != nil {
		return nil, err
	}
	params := url.Values{"up_code": {indexCode}, "criteria_code": {criteriaCode}}
	return c.Fetch(ctx, seg.path("rank"), params, IndexNone)
}

// DailyInfo returns daily history between start and end inclusive.
func (c *Client) DailyInfo(ctx context.Context, seg Segment, code string, start, end time.Time) (*Table, error) {
	params := url.Values{"jcode": {code}, "sdate": {FormatDate(start)}, "edate": {FormatDate(end)}}
	return c.Fetch(ctx, seg.path("hist_info"), params, IndexDaily)
}

// TickData returns every trade of one day for a stock or derivative.
func (c *Client) TickData(ctx context.Context, seg Segment, code string, date time.Time) (*Table, error) {
	if err := requireKind(seg, "tick data", SegmentStock, SegmentDerivative); err != nil {
		return nil, err
	}

	path := seg.path("tick_date")
	if seg.Kind == SegmentDerivative {
		// derivative tick history lives under the plural group
		path = "/futures/" + seg.Code + "/tick_date"
	}
	params := url.Values{"jcode": {code}, "edate": {FormatDate(date)}}
	return c.Fetch(ctx, path, params, IndexIntraday)
}

// TickInfo returns today's ticks of an index.
func (c *Client) TickInfo(ctx context.Context, seg Segment, code string) (*Table, error) {
	if err := requireKind(seg, "tick info", SegmentIndex); err != nil {
		return nil, err
	}
	return c.Fetch(ctx, seg.path("tick_info"), url.Values{"jcode": {code}}, IndexIntraday)
}

// KlineToday10s returns today's 10 second bars.
func (c *Client) KlineToday10s(ctx context.Context, seg Segment, code string) (*Table, error) {
	return c.Fetch(ctx, seg.path("intra_info"), url.Values{"jcode": {code}}, IndexIntraday)
}

// KlineIntra returns the intraday bars of a past day.
func (c *Client) KlineIntra(ctx context.Context, seg Segment, code string, date time.Time) (*Table, error) {
	params := url.Values{"jcode": {code}, "edate": {FormatDate(date)}}
	return c.Fetch(ctx, seg.path("intra_date"), params, IndexIntraday)
}

// Kline returns bars of the given interval (see KlineIntervals).
func (c *Client) Kline(ctx context.Context, seg Segment, code, interval string, start, end time.Time) (*Table, error) {
	term, ok := klineIntervals[interval]
	if !ok {
		return nil, fmt.Errorf("%w %q, expected one of %v", ErrInvalidInterval, interval, KlineIntervals())
	}

	params := url.Values{
		"jcode": {code},
		"term":  {term},
		"sdate": {FormatDate(start)},
		"edate": {FormatDate(end)},
	}
	return c.Fetch(ctx, seg.path("term_hist_info"), params, IndexDaily)
}
