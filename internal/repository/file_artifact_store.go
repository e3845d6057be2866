package repository

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"NiftyEdge/internal/domain/models"
	domrepo "NiftyEdge/internal/domain/repository"
	applogger "NiftyEdge/pkg/logger"
)

// Output file names. The four stats files and thresholds.json keep the column sets
// consumed by existing dashboards.
const (
	CandleStatsFile  = "candle_state_stats.csv"
	OpenStatsFile    = "open_context_stats.csv"
	GapStatsFile     = "gap_stats.csv"
	LevelGameFile    = "level_game_stats.csv"
	LevelSummaryFile = "level_summary.csv"
	ThresholdsFile   = "thresholds.json"
	ArtifactsFile    = "artifacts.json"
)

var (
	candleHeader = []string{"candle_state", "total_count", "prob_trend_up", "prob_trend_down", "prob_range_chop", "avg_next_day_range_pct",
		"outcome_count"}
	openHeader = []string{"open_context", "total_count", "prob_trend_up", "prob_trend_down", "prob_range_chop",
		"prob_pdh_break_success", "prob_pdl_break_success", "prob_false_pdh_break", "prob_false_pdl_break", "avg_next_day_range_pct",
		"outcome_count"}
	gapHeader   = []string{"gap_direction", "gap_bucket", "total_count", "prob_fill_50pct", "prob_fill_80pct", "prob_fill_100pct", "avg_gap_size_pct"}
	levelHeader = []string{"Date", "Level", "LevelValue", "Open", "High", "Low", "Close",
		"FirstTouch", "Broken", "BrokenDirection", "AfterBreakRetouch", "BreakSuccess"}
	levelSummaryHeader = []string{"level", "total_count", "broken_count", "prob_touch", "prob_broken", "prob_retouch_after_break", "prob_break_success"}
)

// FileArtifactStore writes a run's tables into a directory and reads them back.
// artifacts.json is the full snapshot; when it is missing Load rebuilds one from the
// CSV tables and thresholds.json.
type FileArtifactStore struct {
	dir string
	l   *applogger.Logger
}

func NewFileArtifactStore(dir string, l *applogger.Logger) *FileArtifactStore {
	return &FileArtifactStore{dir: dir, l: l}
}

func (s *FileArtifactStore) Dir() string { return s.dir }

func (s *FileArtifactStore) Save(ctx context.Context, a *models.Artifacts) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	writers := []struct {
		name  string
		write func(io.Writer) error
	}{
		{CandleStatsFile, func(w io.Writer) error { return writeCandleStats(w, a.CandleStats) }},
		{OpenStatsFile, func(w io.Writer) error { return writeOpenStats(w, a.OpenStats) }},
		{GapStatsFile, func(w io.Writer) error { return writeGapStats(w, a.GapStats) }},
		{LevelGameFile, func(w io.Writer) error { return writeLevels(w, a.Levels) }},
		{LevelSummaryFile, func(w io.Writer) error { return writeLevelSummary(w, a.LevelSummary) }},
		{ThresholdsFile, func(w io.Writer) error { return json.NewEncoder(w).Encode(a.Thresholds) }},
		{ArtifactsFile, func(w io.Writer) error {
			snap := *a
			snap.Levels = nil
			enc := json.NewEncoder(w)
			enc.SetIndent("", "  ")
			return enc.Encode(snap)
		}},
	}
	for _, wr := range writers {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := writeAtomic(filepath.Join(s.dir, wr.name), wr.write); err != nil {
			return fmt.Errorf("write %s: %w", wr.name, err)
		}
	}

	if s.l != nil {
		s.l.Info("artifacts written",
			applogger.String("dir", s.dir),
			applogger.String("run_id", a.RunID),
			applogger.Int("level_rows", len(a.Levels)))
	}
	return nil
}

func (s *FileArtifactStore) Load(ctx context.Context) (*models.Artifacts, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(filepath.Join(s.dir, ArtifactsFile))
	if err == nil {
		var a models.Artifacts
		if err := json.Unmarshal(data, &a); err != nil {
			return nil, fmt.Errorf("decode %s: %w", ArtifactsFile, err)
		}
		return &a, nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("read %s: %w", ArtifactsFile, err)
	}
	return s.loadTables()
}

// loadTables rebuilds a snapshot from the CSV tables. Tables written without the trailing
// outcome_count column take it to equal total_count.
func (s *FileArtifactStore) loadTables() (*models.Artifacts, error) {
	th, err := ReadThresholdsFile(filepath.Join(s.dir, ThresholdsFile))
	if err != nil {
		return nil, err
	}
	a := &models.Artifacts{Source: s.dir, Thresholds: *th}

	if err := readTable(filepath.Join(s.dir, CandleStatsFile), candleHeader[:6], func(r row) {
		a.CandleStats = append(a.CandleStats, models.CandleStateRow{
			CandleState:        r.str(0),
			TotalCount:         r.int(1),
			OutcomeCount:       r.intOr(6, r.int(1)),
			ProbTrendUp:        r.float(2),
			ProbTrendDown:      r.float(3),
			ProbRangeChop:      r.float(4),
			AvgNextDayRangePct: r.optFloat(5),
		})
	}); err != nil {
		return nil, err
	}

	if err := readTable(filepath.Join(s.dir, OpenStatsFile), openHeader[:10], func(r row) {
		a.OpenStats = append(a.OpenStats, models.OpenContextRow{
			OpenContext:         r.str(0),
			TotalCount:          r.int(1),
			OutcomeCount:        r.intOr(10, r.int(1)),
			ProbTrendUp:         r.float(2),
			ProbTrendDown:       r.float(3),
			ProbRangeChop:       r.float(4),
			ProbPDHBreakSuccess: r.float(5),
			ProbPDLBreakSuccess: r.float(6),
			ProbFalsePDHBreak:   r.float(7),
			ProbFalsePDLBreak:   r.float(8),
			AvgNextDayRangePct:  r.optFloat(9),
		})
	}); err != nil {
		return nil, err
	}

	if err := readTable(filepath.Join(s.dir, GapStatsFile), gapHeader, func(r row) {
		a.GapStats = append(a.GapStats, models.GapRow{
			GapDirection:   models.GapDirection(r.str(0)),
			GapBucket:      models.GapBucket(r.str(1)),
			TotalCount:     r.int(2),
			ProbFill50Pct:  r.float(3),
			ProbFill80Pct:  r.float(4),
			ProbFill100Pct: r.float(5),
			AvgGapSizePct:  r.optFloat(6),
		})
	}); err != nil {
		return nil, err
	}

	for _, c := range a.CandleStats {
		a.Rows += c.TotalCount
	}
	if s.l != nil {
		s.l.Info("artifacts rebuilt from tables", applogger.String("dir", s.dir))
	}
	return a, nil
}

// ReadThresholdsFile reads a thresholds.json snapshot. A missing file is ErrNoArtifacts.
func ReadThresholdsFile(path string) (*models.Thresholds, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%s: %w", path, domrepo.ErrNoArtifacts)
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	var th models.Thresholds
	if err := json.Unmarshal(data, &th); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return &th, nil
}

func writeAtomic(path string, write func(io.Writer) error) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if err := write(tmp); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

func writeCSV(w io.Writer, header []string, rows [][]string) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return err
	}
	if err := cw.WriteAll(rows); err != nil {
		return err
	}
	return cw.Error()
}

func writeCandleStats(w io.Writer, rows []models.CandleStateRow) error {
	out := make([][]string, len(rows))
	for i, r := range rows {
		out[i] = []string{r.CandleState, fmtInt(r.TotalCount), fmtFloat(r.ProbTrendUp), fmtFloat(r.ProbTrendDown),
			fmtFloat(r.ProbRangeChop), fmtOptFloat(r.AvgNextDayRangePct), fmtInt(r.OutcomeCount)}
	}
	return writeCSV(w, candleHeader, out)
}

func writeOpenStats(w io.Writer, rows []models.OpenContextRow) error {
	out := make([][]string, len(rows))
	for i, r := range rows {
		out[i] = []string{r.OpenContext, fmtInt(r.TotalCount), fmtFloat(r.ProbTrendUp), fmtFloat(r.ProbTrendDown),
			fmtFloat(r.ProbRangeChop), fmtFloat(r.ProbPDHBreakSuccess), fmtFloat(r.ProbPDLBreakSuccess),
			fmtFloat(r.ProbFalsePDHBreak), fmtFloat(r.ProbFalsePDLBreak), fmtOptFloat(r.AvgNextDayRangePct),
			fmtInt(r.OutcomeCount)}
	}
	return writeCSV(w, openHeader, out)
}

func writeGapStats(w io.Writer, rows []models.GapRow) error {
	out := make([][]string, len(rows))
	for i, r := range rows {
		out[i] = []string{string(r.GapDirection), string(r.GapBucket), fmtInt(r.TotalCount), fmtFloat(r.ProbFill50Pct),
			fmtFloat(r.ProbFill80Pct), fmtFloat(r.ProbFill100Pct), fmtOptFloat(r.AvgGapSizePct)}
	}
	return writeCSV(w, gapHeader, out)
}

func writeLevels(w io.Writer, rows []models.LevelInteraction) error {
	out := make([][]string, len(rows))
	for i, r := range rows {
		out[i] = []string{r.Date, string(r.Level), fmtFloat(r.LevelValue), fmtFloat(r.Open), fmtFloat(r.High),
			fmtFloat(r.Low), fmtFloat(r.Close), fmtBool(r.FirstTouch), fmtBool(r.Broken), string(r.BrokenDirection),
			fmtOptBool(r.AfterBreakRetouch), fmtOptBool(r.BreakSuccess)}
	}
	return writeCSV(w, levelHeader, out)
}

func writeLevelSummary(w io.Writer, rows []models.LevelSummaryRow) error {
	out := make([][]string, len(rows))
	for i, r := range rows {
		out[i] = []string{string(r.Level), fmtInt(r.TotalCount), fmtInt(r.BrokenCount), fmtFloat(r.ProbTouch),
			fmtFloat(r.ProbBroken), fmtFloat(r.ProbRetouchAfterBreak), fmtFloat(r.ProbBreakSuccess)}
	}
	return writeCSV(w, levelSummaryHeader, out)
}

func fmtInt(v int) string { return strconv.Itoa(v) }

func fmtFloat(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }

func fmtOptFloat(v *float64) string {
	if v == nil {
		return ""
	}
	return fmtFloat(*v)
}

func fmtBool(v bool) string {
	if v {
		return "True"
	}
	return "False"
}

func fmtOptBool(v *bool) string {
	if v == nil {
		return ""
	}
	return fmtBool(*v)
}

type row []string

func (r row) str(i int) string {
	if i >= len(r) {
		return ""
	}
	return r[i]
}

func (r row) int(i int) int {
	v, _ := strconv.Atoi(strings.TrimSpace(r.str(i)))
	return v
}

// intOr returns def when column i is absent or blank.
func (r row) intOr(i, def int) int {
	v, err := strconv.Atoi(strings.TrimSpace(r.str(i)))
	if err != nil {
		return def
	}
	return v
}

func (r row) float(i int) float64 {
	v, _ := strconv.ParseFloat(strings.TrimSpace(r.str(i)), 64)
	return v
}

func (r row) optFloat(i int) *float64 {
	s := strings.TrimSpace(r.str(i))
	if s == "" {
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	return &v
}

// readTable streams a CSV table whose header must start with want.
func readTable(path string, want []string, fn func(row)) error {
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("open %s: %w", filepath.Base(path), err)
	}
	defer f.Close()

	cr := csv.NewReader(f)
	cr.FieldsPerRecord = -1
	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read %s: %w", filepath.Base(path), err)
	}
	for i, col := range want {
		if i >= len(header) || strings.TrimSpace(header[i]) != col {
			return fmt.Errorf("%s: unexpected header %v", filepath.Base(path), header)
		}
	}
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read %s: %w", filepath.Base(path), err)
		}
		fn(row(rec))
	}
}

var _ domrepo.ArtifactStore = (*FileArtifactStore)(nil)
