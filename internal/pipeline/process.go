package pipeline

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"tidysheet/internal"
	"tidysheet/internal/config"
	"tidysheet/internal/frame"
	"tidysheet/internal/storage"
)

// DefaultRaceSynonyms maps canonical race labels to the spellings found in
// the blood-pressure records.
var DefaultRaceSynonyms = map[string][]string{
	"White":                     {"Caucasian", "WHITE"},
	"Black or African American": {"Black", "African American", "AA"},
	"Asian":                     {"ASIAN"},
}

type Service struct {
	db  *storage.DB
	cfg config.Config
	log *zap.Logger
}

func NewService(db *storage.DB, cfg config.Config, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{db: db, cfg: cfg, log: log}
}

type BPOptions struct {
	Input   string
	Load    LoadOptions
	Outputs []string
	// StudyDate defaults to the configured study date.
	StudyDate time.Time
	// RaceSynonyms defaults to DefaultRaceSynonyms.
	RaceSynonyms map[string][]string

	// Column names after name cleaning; empty fields take the defaults
	// year_birth, month_of_birth, day_birth, race, sex and ethnicity.
	YearCol, MonthCol, DayCol     string
	RaceCol, SexCol, EthnicityCol string
}

func (o *BPOptions) setDefaults() {
	set := func(field *string, value string) {
		if strings.TrimSpace(*field) == "" {
			*field = value
		}
	}
	set(&o.YearCol, "year_birth")
	set(&o.MonthCol, "month_of_birth")
	set(&o.DayCol, "day_birth")
	set(&o.RaceCol, "race")
	set(&o.SexCol, "sex")
	set(&o.EthnicityCol, "ethnicity")
	if o.RaceSynonyms == nil {
		o.RaceSynonyms = DefaultRaceSynonyms
	}
}

type BPResult struct {
	RunID  string
	Table  *frame.Table
	Issues []frame.CoercionIssue
}

// stepTimer records the duration of each named step in milliseconds.
type stepTimer struct {
	log     *zap.Logger
	timings map[string]float64
	last    time.Time
}

func newStepTimer(log *zap.Logger) *stepTimer {
	return &stepTimer{log: log, timings: map[string]float64{}, last: time.Now()}
}

func (s *stepTimer) done(step string, t *frame.Table) {
	elapsed := time.Since(s.last)
	s.timings[step+"Ms"] = float64(elapsed.Microseconds()) / 1000
	s.last = time.Now()
	s.log.Debug("step done",
		zap.String("step", step),
		zap.Int("rows", t.NumRows()),
		zap.Int("columns", t.NumCols()),
		zap.Duration("elapsed", elapsed),
	)
}

// CleanBloodPressure runs the blood-pressure cleaning sequence: load, clean
// names, derive ids and ages, encode categories, reshape visits to one row
// per patient and visit, split and type the readings, then export.
func (s *Service) CleanBloodPressure(opts BPOptions) (BPResult, error) {
	opts.setDefaults()
	if opts.StudyDate.IsZero() {
		study, err := s.cfg.StudyTime()
		if err != nil {
			return BPResult{}, err
		}
		opts.StudyDate = study
	}
	if opts.Load.NAValues == nil {
		opts.Load.NAValues = s.cfg.NAValues
	}

	runID := uuid.NewString()
	log := s.log.With(zap.String("runId", runID), zap.String("input", opts.Input))
	start := time.Now()
	timer := newStepTimer(log)

	t, err := LoadFile(opts.Input, opts.Load)
	if err != nil {
		return BPResult{}, err
	}
	rowsIn := t.NumRows()
	timer.done("load", t)

	t = CleanNames(t)
	timer.done("cleanNames", t)

	if t.NumCols() == 0 {
		return BPResult{}, frame.InvalidArgument("input %q has no columns", opts.Input)
	}
	if t, err = Derive(t, Position{Before: t.Columns[0].Name}, Derivation{Name: "pat_id", Expr: SeqID()}); err != nil {
		return BPResult{}, err
	}
	t, err = Derive(t, Position{After: opts.DayCol},
		Derivation{Name: "dob", Expr: MakeDate(opts.YearCol, opts.MonthCol, opts.DayCol)},
		Derivation{Name: "age", Expr: AgeAt("dob", opts.StudyDate)},
	)
	if err != nil {
		return BPResult{}, err
	}
	timer.done("derive", t)

	var factors []string
	for _, c := range []string{opts.RaceCol, opts.SexCol, opts.EthnicityCol} {
		if t.Index(c) >= 0 {
			factors = append(factors, c)
		}
	}
	if t, err = Categorize(t, factors...); err != nil {
		return BPResult{}, err
	}
	if t.Index(opts.RaceCol) >= 0 {
		if t, err = Collapse(t, opts.RaceCol, opts.RaceSynonyms); err != nil {
			return BPResult{}, err
		}
	}
	timer.done("categorize", t)

	t, err = ReshapeVisits(t)
	if err != nil {
		return BPResult{}, err
	}
	timer.done("reshape", t)

	t, issues, err := SplitReadings(t, opts.Load.NAValues)
	if err != nil {
		return BPResult{}, err
	}
	timer.done("split", t)
	for _, issue := range issues {
		log.Warn("value not parsed", zap.Int("row", issue.Row), zap.String("column", issue.Column), zap.String("value", issue.Value))
	}

	for _, out := range opts.Outputs {
		if err := Export(t, out, ExportOptions{BOM: s.cfg.CSVBOM}); err != nil {
			return BPResult{}, err
		}
		log.Info("exported", zap.String("path", out))
	}
	timer.done("export", t)

	timer.timings["totalMs"] = float64(time.Since(start).Microseconds()) / 1000
	s.recordRun(internal.RunRecord{
		TraceID: runID,
		Flow:    "clean:bp",
		Input:   opts.Input,
		Outputs: opts.Outputs,
		Timings: timer.timings,
		Counts: map[string]int{
			"rowsIn":  rowsIn,
			"rowsOut": t.NumRows(),
			"columns": t.NumCols(),
			"issues":  len(issues),
		},
	}, log)

	log.Info("blood pressure records cleaned", zap.Int("rows", t.NumRows()), zap.Int("issues", len(issues)))
	return BPResult{RunID: runID, Table: t, Issues: issues}, nil
}

// ReshapeVisits melts the bp_* and hr_* columns, renumbers the visits of each
// measure 1, 2, ... and pivots back to one row per patient and visit.
func ReshapeVisits(t *frame.Table) (*frame.Table, error) {
	cols := ColumnsWithPrefix(t, "bp_", "hr_")
	if len(cols) == 0 {
		return nil, frame.InvalidArgument("no bp_* or hr_* columns to reshape")
	}
	long, err := Melt(t, MeltSpec{
		Columns:  cols,
		NamesTo:  []string{"measure", "visit"},
		NamesSep: "_",
		ValuesTo: "value",
	})
	if err != nil {
		return nil, err
	}
	long, err = Derive(long, Position{}, Derivation{Name: "visit", Expr: DenseRank("visit", "measure")})
	if err != nil {
		return nil, err
	}
	return Pivot(long, PivotSpec{NamesFrom: []string{"measure"}, ValuesFrom: "value"})
}

// SplitReadings splits bp into sbp and dbp and types the three readings.
// Cells in naValues become missing; nil means DefaultNAValues.
func SplitReadings(t *frame.Table, naValues []string) (*frame.Table, []frame.CoercionIssue, error) {
	t, err := Split(t, SplitSpec{Column: "bp", Into: []string{"sbp", "dbp"}, Sep: "/"})
	if err != nil {
		return nil, nil, err
	}
	readings := []string{"sbp", "dbp"}
	if t.Index("hr") >= 0 {
		readings = append(readings, "hr")
	}
	return Typer{NAValues: naValues}.Numeric(t, readings...)
}

// Convert loads input, cleans its column names and writes it to output.
func (s *Service) Convert(input, output string, opts LoadOptions) (*frame.Table, error) {
	if opts.NAValues == nil {
		opts.NAValues = s.cfg.NAValues
	}
	runID := uuid.NewString()
	log := s.log.With(zap.String("runId", runID), zap.String("input", input))
	timer := newStepTimer(log)

	t, err := LoadFile(input, opts)
	if err != nil {
		return nil, err
	}
	timer.done("load", t)
	t = CleanNames(t)
	timer.done("cleanNames", t)
	if err := Export(t, output, ExportOptions{BOM: s.cfg.CSVBOM}); err != nil {
		return nil, err
	}
	timer.done("export", t)

	s.recordRun(internal.RunRecord{
		TraceID: runID,
		Flow:    "convert",
		Input:   input,
		Outputs: []string{output},
		Timings: timer.timings,
		Counts:  map[string]int{"rowsOut": t.NumRows(), "columns": t.NumCols()},
	}, log)
	log.Info("converted", zap.String("output", output), zap.Int("rows", t.NumRows()))
	return t, nil
}

// recordRun stores the run in the workspace when one is attached. A failed
// insert is logged and does not fail the flow.
func (s *Service) recordRun(run internal.RunRecord, log *zap.Logger) {
	if s.db == nil {
		return
	}
	if _, err := s.db.InsertRun(run); err != nil {
		log.Warn("failed to record run", zap.Error(err))
	}
}
