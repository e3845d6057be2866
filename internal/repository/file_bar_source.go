package repository

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/xuri/excelize/v2"

	"NiftyEdge/internal/domain/models"
	domrepo "NiftyEdge/internal/domain/repository"
	applogger "NiftyEdge/pkg/logger"
	"NiftyEdge/pkg/util"
)

var (
	ErrMissingColumns = errors.New("could not find Open/High/Low/Close columns")
	ErrDuplicateDate  = errors.New("duplicate date in history")
)

// headerScanRows bounds the automatic header search when no header row is configured.
const headerScanRows = 10

// Columns holds zero-based column positions. Date is -1 when the input has no date column.
type Columns struct {
	Date, Open, High, Low, Close int
}

// DetectOHLCColumns matches OHLC columns by case-insensitive substring, first match wins.
// A column named exactly "date" is preferred over one that merely contains it.
func DetectOHLCColumns(header []string) (Columns, error) {
	lower := make([]string, len(header))
	for i, h := range header {
		lower[i] = strings.ToLower(strings.TrimSpace(h))
	}
	find := func(keyword string) int {
		for i, h := range lower {
			if strings.Contains(h, keyword) {
				return i
			}
		}
		return -1
	}

	cols := Columns{Date: -1, Open: find("open"), High: find("high"), Low: find("low"), Close: find("close")}
	for i, h := range lower {
		if h == "date" {
			cols.Date = i
			break
		}
	}
	if cols.Date < 0 {
		cols.Date = find("date")
	}

	if cols.Open < 0 || cols.High < 0 || cols.Low < 0 || cols.Close < 0 {
		found := make([]string, len(header))
		for i, h := range header {
			found[i] = strings.TrimSpace(h)
		}
		return cols, fmt.Errorf("%w; columns found: [%s]", ErrMissingColumns, strings.Join(found, ", "))
	}
	return cols, nil
}

// FileBarSource reads daily bars from a .csv or .xlsx file.
type FileBarSource struct {
	path      string
	headerRow int
	l         *applogger.Logger
}

// NewFileBarSource creates a source. headerRow is 1-based; 0 searches the first rows
// for one that names all four price columns.
func NewFileBarSource(path string, headerRow int, l *applogger.Logger) *FileBarSource {
	return &FileBarSource{path: path, headerRow: headerRow, l: l}
}

func (s *FileBarSource) Describe() string { return s.path }

func (s *FileBarSource) Load(ctx context.Context) ([]models.Bar, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	records, err := s.readRecords()
	if err != nil {
		return nil, err
	}

	hdr, cols, err := s.locateHeader(records)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", s.path, err)
	}

	bars, dropped := parseBars(records[hdr+1:], cols)
	if dropped > 0 && s.l != nil {
		s.l.Warn("dropped unparseable rows",
			applogger.String("path", s.path),
			applogger.Int("dropped", dropped),
			applogger.Int("kept", len(bars)))
	}

	if cols.Date >= 0 {
		for i := 1; i < len(bars); i++ {
			if bars[i].Date.Equal(bars[i-1].Date) {
				return nil, fmt.Errorf("%s: %w: %s", s.path, ErrDuplicateDate, bars[i].DateLabel())
			}
		}
	}
	for i := range bars {
		bars[i].Seq = i
	}

	if s.l != nil {
		s.l.Info("bars loaded",
			applogger.String("path", s.path),
			applogger.Int("header_row", hdr+1),
			applogger.Int("rows", len(bars)),
			applogger.Bool("dated", cols.Date >= 0))
	}
	return bars, nil
}

func (s *FileBarSource) readRecords() ([][]string, error) {
	switch strings.ToLower(filepath.Ext(s.path)) {
	case ".xlsx", ".xlsm":
		return readXLSX(s.path)
	case ".csv", ".txt", "":
		return readCSV(s.path)
	default:
		return nil, fmt.Errorf("%s: unsupported input format", s.path)
	}
}

func (s *FileBarSource) locateHeader(records [][]string) (int, Columns, error) {
	if s.headerRow > 0 {
		idx := s.headerRow - 1
		if idx >= len(records) {
			return 0, Columns{}, fmt.Errorf("header row %d beyond %d rows", s.headerRow, len(records))
		}
		cols, err := DetectOHLCColumns(records[idx])
		return idx, cols, err
	}

	var firstErr error
	for i := 0; i < len(records) && i < headerScanRows; i++ {
		cols, err := DetectOHLCColumns(records[i])
		if err == nil {
			return i, cols, nil
		}
		if firstErr == nil {
			firstErr = err
		}
	}
	if firstErr == nil {
		firstErr = fmt.Errorf("%w; file is empty", ErrMissingColumns)
	}
	return 0, Columns{}, firstErr
}

type parsedRow struct {
	bar    models.Bar
	priced bool
}

// parseBars converts data records into date-sorted bars. A row with an unreadable price
// keeps its place until sorting, then the bar after it is marked AfterGap. Rows with an
// unreadable date are dropped.
func parseBars(records [][]string, cols Columns) ([]models.Bar, int) {
	parsed := make([]parsedRow, 0, len(records))
	dropped := 0
	for _, rec := range records {
		if blank(rec) {
			continue
		}
		var b models.Bar
		var ok [4]bool
		b.Open, ok[0] = util.ParseFloat(cell(rec, cols.Open))
		b.High, ok[1] = util.ParseFloat(cell(rec, cols.High))
		b.Low, ok[2] = util.ParseFloat(cell(rec, cols.Low))
		b.Close, ok[3] = util.ParseFloat(cell(rec, cols.Close))
		priced := ok[0] && ok[1] && ok[2] && ok[3]
		if cols.Date >= 0 {
			d, good := util.ParseDate(cell(rec, cols.Date))
			if !good {
				dropped++
				continue
			}
			b.Date = d
		}
		if !priced {
			dropped++
		}
		parsed = append(parsed, parsedRow{bar: b, priced: priced})
	}

	if cols.Date >= 0 {
		sort.SliceStable(parsed, func(i, j int) bool { return parsed[i].bar.Date.Before(parsed[j].bar.Date) })
	}

	bars := make([]models.Bar, 0, len(parsed))
	gap := false
	for _, p := range parsed {
		if !p.priced {
			gap = len(bars) > 0
			continue
		}
		p.bar.AfterGap = gap
		gap = false
		bars = append(bars, p.bar)
	}
	return bars, dropped
}

func cell(rec []string, i int) string {
	if i < 0 || i >= len(rec) {
		return ""
	}
	return rec[i]
}

func blank(rec []string) bool {
	for _, v := range rec {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

func readCSV(path string) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open input: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	r.TrimLeadingSpace = true

	var out [][]string
	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv %s: %w", path, err)
		}
		out = append(out, rec)
	}
	return out, nil
}

// readXLSX returns the first sheet with raw cell values so dates arrive as serial numbers.
func readXLSX(path string) ([][]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open input: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("%s: workbook has no sheets", path)
	}
	rows, err := f.GetRows(sheets[0], excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheets[0], err)
	}
	return rows, nil
}

var _ domrepo.BarSource = (*FileBarSource)(nil)
