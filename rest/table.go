package rest

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/tradingiq/koscom-client/translate"
	"github.com/tradingiq/koscom-client/types"

	"github.com/shopspring/decimal"
)

// IndexKind selects how rows are stamped with a time.
type IndexKind int

const (
	IndexNone IndexKind = iota
	// IndexIntraday combines INTRA_DATE (YYYYMMDD) and INTRA_TIME (HHMMSScc).
	IndexIntraday
	// IndexDaily uses DATE (YYYYMMDD).
	IndexDaily
)

const (
	ColumnDate      = "DATE"
	ColumnIntraDate = "INTRA_DATE"
	ColumnIntraTime = "INTRA_TIME"
)

// KST is the exchange time zone; all vendor timestamps are local.
var KST = time.FixedZone("KST", 9*60*60)

type Row struct {
	Time   time.Time
	Values map[string]string
}

func (r Row) Get(column string) (string, bool) {
	v, ok := r.Values[column]
	return v, ok
}

func (r Row) Decimal(column string) (decimal.Decimal, error) {
	v, ok := r.Values[column]
	if !ok {
		return decimal.Zero, fmt.Errorf("column %q not present", column)
	}
	d, err := decimal.NewFromString(strings.TrimSpace(v))
	if err != nil {
		return decimal.Zero, fmt.Errorf("column %q: %w", column, err)
	}
	return d, nil
}

func (r Row) Float(column string) float64 {
	d, err := r.Decimal(column)
	if err != nil {
		return 0
	}
	f, _ := d.Float64()
	return f
}

// Table holds translated rows. Rows are sorted by Time when indexed.
type Table struct {
	Columns []string
	Rows    []Row
	Index   IndexKind
}

func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Rows)
}

// Decimals returns a column as decimals, failing on the first unparsable cell.
func (t *Table) Decimals(column string) ([]decimal.Decimal, error) {
	out := make([]decimal.Decimal, 0, len(t.Rows))
	for i, row := range t.Rows {
		d, err := row.Decimal(column)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		out = append(out, d)
	}
	return out, nil
}

func buildTable(results []map[string]interface{}, table *translate.Table, index IndexKind) (*Table, error) {
	upstream := make(map[string]struct{})
	for _, result := range results {
		for k := range result {
			upstream[k] = struct{}{}
		}
	}

	names := make([]string, 0, len(upstream))
	for k := range upstream {
		names = append(names, k)
	}
	sort.Strings(names)

	// Columns without a translation are dropped; when two upstream names
	// translate to the same column the first in sorted order wins.
	rename := make(map[string]string, len(names))
	taken := make(map[string]struct{}, len(names))
	var columns []string
	for i, canonical := range table.Columns(names) {
		if canonical == "" {
			continue
		}
		name := names[i]
		if _, dup := taken[canonical]; dup {
			continue
		}
		taken[canonical] = struct{}{}
		rename[name] = canonical
		if !isIndexColumn(canonical, index) {
			columns = append(columns, canonical)
		}
	}

	out := &Table{Columns: columns, Rows: make([]Row, 0, len(results)), Index: index}
	for i, result := range results {
		values := make(map[string]string, len(rename))
		for k, v := range result {
			if canonical, ok := rename[k]; ok {
				values[canonical] = types.FormatValue(v)
			}
		}

		ts, err := rowTime(values, index)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		for _, col := range indexColumns(index) {
			delete(values, col)
		}

		out.Rows = append(out.Rows, Row{Time: ts, Values: values})
	}

	if index != IndexNone {
		sort.SliceStable(out.Rows, func(i, j int) bool {
			return out.Rows[i].Time.Before(out.Rows[j].Time)
		})
	}

	return out, nil
}

func indexColumns(index IndexKind) []string {
	switch index {
	case IndexIntraday:
		return []string{ColumnIntraDate, ColumnIntraTime}
	case IndexDaily:
		return []string{ColumnDate}
	default:
		return nil
	}
}

func isIndexColumn(column string, index IndexKind) bool {
	for _, c := range indexColumns(index) {
		if c == column {
			return true
		}
	}
	return false
}

func rowTime(values map[string]string, index IndexKind) (time.Time, error) {
	switch index {
	case IndexIntraday:
		return ParseIntraday(values[ColumnIntraDate], values[ColumnIntraTime])
	case IndexDaily:
		return ParseDate(values[ColumnDate])
	default:
		return time.Time{}, nil
	}
}

// ParseDate parses a YYYYMMDD vendor date in KST.
func ParseDate(date string) (time.Time, error) {
	t, err := time.ParseInLocation("20060102", strings.TrimSpace(date), KST)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: %w", date, err)
	}
	return t, nil
}

// ParseIntraday parses a YYYYMMDD date and an HHMMSScc time; the time is
// left padded with zeros to 8 digits, the last two being hundredths.
func ParseIntraday(date, clock string) (time.Time, error) {
	clock = strings.TrimSpace(clock)
	if len(clock) < 8 {
		clock = strings.Repeat("0", 8-len(clock)) + clock
	}
	if len(clock) != 8 {
		return time.Time{}, fmt.Errorf("invalid intraday time %q", clock)
	}

	t, err := time.ParseInLocation("20060102150405", strings.TrimSpace(date)+clock[:6], KST)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid intraday timestamp %q %q: %w", date, clock, err)
	}

	hundredths, err := strconv.ParseUint(clock[6:], 10, 8)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid intraday hundredths %q: %w", clock[6:], err)
	}

	return t.Add(time.Duration(hundredths) * 10 * time.Millisecond), nil
}
