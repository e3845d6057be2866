package repository

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"

	applogger "NiftyEdge/pkg/logger"
)

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return p
}

func TestDetectOHLCColumns(t *testing.T) {
	cases := []struct {
		name   string
		header []string
		want   Columns
	}{
		{"plain", []string{"Date", "Open", "High", "Low", "Close"}, Columns{0, 1, 2, 3, 4}},
		{"case and padding", []string{" date ", "OPEN", "high", "Low ", "close"}, Columns{0, 1, 2, 3, 4}},
		{"first substring wins", []string{"Date", "Open Price", "Open Interest", "Day High", "Day Low", "Close", "Prev Close"}, Columns{0, 1, 3, 4, 5}},
		{"exact date preferred", []string{"Update Time", "Date", "Open", "High", "Low", "Close"}, Columns{1, 2, 3, 4, 5}},
		{"date by substring", []string{"Trade Date", "Open", "High", "Low", "Close"}, Columns{0, 1, 2, 3, 4}},
		{"no date", []string{"Open", "High", "Low", "Close"}, Columns{-1, 0, 1, 2, 3}},
	}
	for _, tc := range cases {
		got, err := DetectOHLCColumns(tc.header)
		if err != nil {
			t.Errorf("%s: unexpected error %v", tc.name, err)
			continue
		}
		if got != tc.want {
			t.Errorf("%s: got %+v want %+v", tc.name, got, tc.want)
		}
	}
}

func TestDetectOHLCColumnsMissing(t *testing.T) {
	_, err := DetectOHLCColumns([]string{"Date", "Open", "High", "Last"})
	if !errors.Is(err, ErrMissingColumns) {
		t.Fatalf("expected ErrMissingColumns, got %v", err)
	}
	if !strings.Contains(err.Error(), "[Date, Open, High, Last]") {
		t.Fatalf("error should list the columns found: %v", err)
	}
}

func TestFileBarSourceCSV(t *testing.T) {
	body := "NIFTY 50 daily\n" +
		"exported\n" +
		"Date,Open,High,Low,Close,Shares Traded\n" +
		"03-01-2024,21605.8,21677,21500.35,21517.35,100\n" +
		"01-01-2024,21727.75,21834.35,21680.7,21741.9,100\n" +
		"02-01-2024,21751.35,21755.6,21555.65,21665.8,100\n" +
		",,,,,\n" +
		"04-01-2024,-,21749.6,21601.25,21658.6,100\n"
	p := writeFile(t, "nifty.csv", body)

	bars, err := NewFileBarSource(p, 3, applogger.Nop()).Load(context.Background())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(bars) != 3 {
		t.Fatalf("expected 3 bars, got %d", len(bars))
	}
	wantDates := []string{"2024-01-01", "2024-01-02", "2024-01-03"}
	for i, b := range bars {
		if b.DateLabel() != wantDates[i] || b.Seq != i {
			t.Fatalf("bar %d: date %s seq %d", i, b.DateLabel(), b.Seq)
		}
	}
	if bars[0].Open != 21727.75 || bars[2].Close != 21517.35 {
		t.Fatalf("prices not attached to their dates: %+v", bars)
	}
}

func TestFileBarSourceMarksBarAfterUnpricedRow(t *testing.T) {
	body := "Date,Open,High,Low,Close\n" +
		"04-01-2024,4,5,3.5,4.5\n" +
		"02-01-2024,,3,1.5,2.5\n" +
		"01-01-2024,1,2,0.5,1.5\n" +
		"03-01-2024,3,4,2.5,3.5\n" +
		"05-01-2024,n/a,6,4.5,5.5\n"
	p := writeFile(t, "gaps.csv", body)

	bars, err := NewFileBarSource(p, 1, nil).Load(context.Background())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(bars) != 3 {
		t.Fatalf("expected 3 priced bars, got %d", len(bars))
	}
	want := []struct {
		date     string
		afterGap bool
	}{
		{"2024-01-01", false},
		{"2024-01-03", true},
		{"2024-01-04", false},
	}
	for i, w := range want {
		if bars[i].DateLabel() != w.date || bars[i].AfterGap != w.afterGap || bars[i].Seq != i {
			t.Fatalf("bar %d: %s after_gap=%v seq=%d, want %s after_gap=%v", i, bars[i].DateLabel(), bars[i].AfterGap, bars[i].Seq, w.date, w.afterGap)
		}
	}
}

func TestFileBarSourceAutoHeader(t *testing.T) {
	p := writeFile(t, "auto.csv", "title\n\nDate,Open,High,Low,Close\n01/02/2024,1,2,0.5,1.5\n")
	bars, err := NewFileBarSource(p, 0, applogger.Nop()).Load(context.Background())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(bars) != 1 || bars[0].DateLabel() != "2024-02-01" {
		t.Fatalf("unexpected bars %+v", bars)
	}
}

func TestFileBarSourceUndated(t *testing.T) {
	p := writeFile(t, "undated.csv", "Open,High,Low,Close\n1,2,0.5,1.5\n2,3,1,2.5\n")
	bars, err := NewFileBarSource(p, 1, applogger.Nop()).Load(context.Background())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(bars) != 2 || bars[1].HasDate() || bars[1].DateLabel() != "1" {
		t.Fatalf("undated bars should keep file order: %+v", bars)
	}
}

func TestFileBarSourceErrors(t *testing.T) {
	dup := writeFile(t, "dup.csv", "Date,Open,High,Low,Close\n01-01-2024,1,2,0.5,1.5\n2024-01-01,1,2,0.5,1.5\n")
	if _, err := NewFileBarSource(dup, 1, nil).Load(context.Background()); !errors.Is(err, ErrDuplicateDate) {
		t.Fatalf("expected ErrDuplicateDate, got %v", err)
	}

	missing := writeFile(t, "missing.csv", "Date,Open,High,Low\n01-01-2024,1,2,0.5\n")
	if _, err := NewFileBarSource(missing, 1, nil).Load(context.Background()); !errors.Is(err, ErrMissingColumns) {
		t.Fatalf("expected ErrMissingColumns, got %v", err)
	}

	if _, err := NewFileBarSource(missing, 9, nil).Load(context.Background()); err == nil {
		t.Fatalf("expected error for header row past the end")
	}

	if _, err := NewFileBarSource(filepath.Join(t.TempDir(), "none.csv"), 1, nil).Load(context.Background()); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected not-exist error, got %v", err)
	}

	if _, err := NewFileBarSource("prices.parquet", 1, nil).Load(context.Background()); err == nil {
		t.Fatalf("expected unsupported format error")
	}
}

func TestFileBarSourceXLSX(t *testing.T) {
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	rows := [][]interface{}{
		{"NIFTY 50"},
		{"exported"},
		{"Date", "Open", "High", "Low", "Close"},
		{45323, 21780.65, 21832.95, 21658.75, 21697.45},
		{"02-02-2024", 21812.75, 22126.8, 21805.55, 21853.8},
	}
	for i, r := range rows {
		cellRef, _ := excelize.CoordinatesToCellName(1, i+1)
		row := r
		if err := f.SetSheetRow(sheet, cellRef, &row); err != nil {
			t.Fatalf("set row %d: %v", i, err)
		}
	}
	p := filepath.Join(t.TempDir(), "nifty.xlsx")
	if err := f.SaveAs(p); err != nil {
		t.Fatalf("save workbook: %v", err)
	}
	_ = f.Close()

	bars, err := NewFileBarSource(p, 3, applogger.Nop()).Load(context.Background())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(bars) != 2 {
		t.Fatalf("expected 2 bars, got %d", len(bars))
	}
	if bars[0].DateLabel() != "2024-02-01" || bars[1].DateLabel() != "2024-02-02" {
		t.Fatalf("unexpected dates %s %s", bars[0].DateLabel(), bars[1].DateLabel())
	}
	if bars[1].High != 22126.8 {
		t.Fatalf("unexpected high %v", bars[1].High)
	}
}
