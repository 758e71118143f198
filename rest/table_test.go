package rest

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/tradingiq/koscom-client/translate"
)

func decodeRows(t *testing.T, raw string) []map[string]interface{} {
	t.Helper()
	rows, err := decodeResults(json.RawMessage(raw))
	if err != nil {
		t.Fatalf("decodeResults failed: %v", err)
	}
	return rows
}

func TestBuildTableIntraday(t *testing.T) {
	rows := decodeRows(t, `[
		{"hms_date":20240102,"hms_time":9001234,"cur_prc":"71100"},
		{"hms_date":"20240102","hms_time":"09000050","cur_prc":"71000"}
	]`)

	table, err := buildTable(rows, testTable(), IndexIntraday)
	if err != nil {
		t.Fatalf("buildTable failed: %v", err)
	}

	if table.Len() != 2 {
		t.Fatalf("expected 2 rows, got %d", table.Len())
	}
	if len(table.Columns) != 1 || table.Columns[0] != "PRICE" {
		t.Errorf("index columns should be removed, got %v", table.Columns)
	}

	first := time.Date(2024, 1, 2, 9, 0, 0, 500*int(time.Millisecond), KST)
	second := time.Date(2024, 1, 2, 9, 0, 12, 340*int(time.Millisecond), KST)
	if !table.Rows[0].Time.Equal(first) {
		t.Errorf("expected first row at %v, got %v", first, table.Rows[0].Time)
	}
	if !table.Rows[1].Time.Equal(second) {
		t.Errorf("expected second row at %v, got %v", second, table.Rows[1].Time)
	}
	if v, _ := table.Rows[0].Get("PRICE"); v != "71000" {
		t.Errorf("rows not sorted by time, first price %q", v)
	}
	if _, ok := table.Rows[0].Get(ColumnIntraTime); ok {
		t.Error("INTRA_TIME should be removed from row values")
	}
}

func TestBuildTableDaily(t *testing.T) {
	rows := decodeRows(t, `[
		{"trd_dd":"20240103","cur_prc":"72000","trd_vol":"100"},
		{"trd_dd":"20240102","cur_prc":"71000","trd_vol":"200"}
	]`)

	table, err := buildTable(rows, testTable(), IndexDaily)
	if err != nil {
		t.Fatalf("buildTable failed: %v", err)
	}

	if !table.Rows[0].Time.Equal(time.Date(2024, 1, 2, 0, 0, 0, 0, KST)) {
		t.Errorf("unexpected first row time %v", table.Rows[0].Time)
	}

	prices, err := table.Decimals("PRICE")
	if err != nil {
		t.Fatalf("Decimals failed: %v", err)
	}
	if prices[0].String() != "71000" || prices[1].String() != "72000" {
		t.Errorf("unexpected prices %v", prices)
	}
}

func TestBuildTableBadIndex(t *testing.T) {
	rows := decodeRows(t, `[{"trd_dd":"2024-01-02","cur_prc":"1"}]`)

	_, err := buildTable(rows, testTable(), IndexDaily)
	if err == nil || !strings.Contains(err.Error(), "row 0") {
		t.Errorf("expected row error, got %v", err)
	}
}

func TestBuildTableDuplicateCanonicalNames(t *testing.T) {
	table := translate.New(map[string]string{
		"a_price": "PRICE",
		"b_price": "PRICE",
	})
	rows := decodeRows(t, `[{"a_price":"1","b_price":"2"}]`)

	out, err := buildTable(rows, table, IndexNone)
	if err != nil {
		t.Fatalf("buildTable failed: %v", err)
	}
	if len(out.Columns) != 1 {
		t.Fatalf("expected one PRICE column, got %v", out.Columns)
	}
	if v, _ := out.Rows[0].Get("PRICE"); v != "1" {
		t.Errorf("expected first upstream name to win, got %q", v)
	}
}

func TestRowDecimalErrors(t *testing.T) {
	row := Row{Values: map[string]string{"PRICE": "n/a"}}

	if _, err := row.Decimal("VOLUME"); err == nil {
		t.Error("expected error for missing column")
	}
	if _, err := row.Decimal("PRICE"); err == nil {
		t.Error("expected error for non-numeric column")
	}
	if row.Float("PRICE") != 0 {
		t.Error("expected Float to return 0 for non-numeric column")
	}
}

func TestParseIntraday(t *testing.T) {
	tests := []struct {
		name    string
		date    string
		clock   string
		want    time.Time
		wantErr bool
	}{
		{
			name:  "full width",
			date:  "20240102",
			clock: "15301299",
			want:  time.Date(2024, 1, 2, 15, 30, 12, 990*int(time.Millisecond), KST),
		},
		{
			name:  "padded",
			date:  "20240102",
			clock: "1000000",
			want:  time.Date(2024, 1, 2, 1, 0, 0, 0, KST),
		},
		{
			name:    "too long",
			date:    "20240102",
			clock:   "153012990",
			wantErr: true,
		},
		{
			name:    "bad date",
			date:    "2024-01-02",
			clock:   "15301299",
			wantErr: true,
		},
		{
			name:    "non numeric hundredths",
			date:    "20240102",
			clock:   "153012xx",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseIntraday(tt.date, tt.clock)
			if tt.wantErr {
				if err == nil {
					t.Errorf("expected error, got %v", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !got.Equal(tt.want) {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestFormatDate(t *testing.T) {
	utc := time.Date(2024, 1, 1, 16, 0, 0, 0, time.UTC)
	if got := FormatDate(utc); got != "20240102" {
		t.Errorf("expected KST date 20240102, got %s", got)
	}
}

func TestDecodeResultsEmpty(t *testing.T) {
	for _, raw := range []string{"", "null", " "} {
		rows, err := decodeResults(json.RawMessage(raw))
		if err != nil || rows != nil {
			t.Errorf("decodeResults(%q) = %v, %v", raw, rows, err)
		}
	}
}
