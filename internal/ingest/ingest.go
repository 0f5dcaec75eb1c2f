// Package ingest loads tabular sources (CSV files and Excel worksheets held
// in a blob store) into the workflow tables, one plan step per table.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"sessionflow/internal/blob"
	"sessionflow/internal/core"
	"sessionflow/internal/schema"
	"sessionflow/pkg/domain"
)

// ErrUnknownSource is returned when a step names a source the plan does not
// declare.
var ErrUnknownSource = errors.New("unknown source")

// Target is the table store rows are written to. *core.Pipeline satisfies it.
type Target interface {
	Table(name string) (*schema.Table, error)
	Insert(ctx context.Context, t *schema.Table, rows []domain.Row, opts core.InsertOptions) (core.InsertResult, error)
	Count(ctx context.Context, t *schema.Table, restriction domain.Row) (int, error)
}

// Option configures an Ingester.
type Option func(*Ingester)

// WithSkipDuplicates controls whether rows whose key already exists are kept
// silently (the default) or fail the step.
func WithSkipDuplicates(skip bool) Option {
	return func(i *Ingester) { i.skipDuplicates = skip }
}

// WithVerbose logs one line per table at info level.
func WithVerbose(verbose bool) Option {
	return func(i *Ingester) { i.verbose = verbose }
}

// WithQuote sets the CSV quote character.
func WithQuote(quote rune) Option {
	return func(i *Ingester) { i.quote = quote }
}

// WithLogger sets the logger.
func WithLogger(log zerolog.Logger) Option {
	return func(i *Ingester) { i.log = log }
}

// WithRecorder adds a step recorder. It may be given more than once.
func WithRecorder(r Recorder) Option {
	return func(i *Ingester) {
		if r != nil {
			i.recorders = append(i.recorders, r)
		}
	}
}

// Ingester runs plans against a target.
type Ingester struct {
	target         Target
	store          blob.Store
	skipDuplicates bool
	verbose        bool
	quote          rune
	log            zerolog.Logger
	recorders      []Recorder
	recorder       Recorder
}

// New returns an Ingester reading sources from store.
func New(target Target, store blob.Store, opts ...Option) *Ingester {
	i := &Ingester{
		target:         target,
		store:          store,
		skipDuplicates: true,
		quote:          '"',
		log:            zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(i)
	}
	switch len(i.recorders) {
	case 0:
		i.recorder = noopRecorder{}
	case 1:
		i.recorder = i.recorders[0]
	default:
		i.recorder = MultiRecorder(i.recorders...)
	}
	return i
}

// StepReport summarises one executed step.
type StepReport struct {
	Plan     string
	Table    string
	Source   string
	Read     int // records in the source
	Inserted int
	Skipped  int // duplicates, in the batch or already stored
	Filtered int // records lacking a required value or naming an unknown entry
	Duration time.Duration
}

// Report summarises a run.
type Report struct {
	RunID    string
	Steps    []StepReport
	Duration time.Duration
}

// Inserted totals inserted rows across steps.
func (r Report) Inserted() int {
	n := 0
	for _, s := range r.Steps {
		n += s.Inserted
	}
	return n
}

// Skipped totals skipped rows across steps.
func (r Report) Skipped() int {
	n := 0
	for _, s := range r.Steps {
		n += s.Skipped
	}
	return n
}

// Step returns the first step report for table.
func (r Report) Step(table string) (StepReport, bool) {
	for _, s := range r.Steps {
		if s.Table == table {
			return s, true
		}
	}
	return StepReport{}, false
}

// StepError locates a failed step and, when known, the source record.
type StepError struct {
	Table  string
	Source string // blob key
	Line   int    // zero when the failure is not tied to a record
	Err    error
}

func (e *StepError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("ingest %s from %s line %d: %v", e.Table, e.Source, e.Line, e.Err)
	}
	return fmt.Sprintf("ingest %s from %s: %v", e.Table, e.Source, e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }

// IngestLab loads labs, projects, protocols, users and animal sources.
func (i *Ingester) IngestLab(ctx context.Context, files LabFiles) (Report, error) {
	return i.Run(ctx, files.Plan())
}

// IngestSubjects loads subjects, lines, breeding and genotyping records.
func (i *Ingester) IngestSubjects(ctx context.Context, files SubjectFiles) (Report, error) {
	return i.Run(ctx, files.Plan())
}

// IngestSessions loads sessions and their directories, notes and owners.
func (i *Ingester) IngestSessions(ctx context.Context, files SessionFiles) (Report, error) {
	return i.Run(ctx, files.Plan())
}

// IngestAll loads lab, subject and session sources in that order under a
// single run.
func (i *Ingester) IngestAll(ctx context.Context, lab LabFiles, subjects SubjectFiles, sessions SessionFiles) (Report, error) {
	return i.Run(ctx, lab.Plan(), subjects.Plan(), sessions.Plan())
}

// Run executes the plans in order. Each source object is parsed once per
// run. The report covers the steps completed before any error.
func (i *Ingester) Run(ctx context.Context, plans ...Plan) (Report, error) {
	report := Report{RunID: uuid.NewString()}
	start := time.Now()

	log := i.log.With().Str("run_id", report.RunID).Logger()
	sheets := map[string]*sheet{}
	for _, plan := range plans {
		for _, step := range plan.Steps {
			if err := ctx.Err(); err != nil {
				report.Duration = time.Since(start)
				return report, err
			}
			sr, err := i.runStep(ctx, plan, step, sheets)
			i.recorder.Observe(ctx, Observation{
				RunID:    report.RunID,
				Plan:     plan.Name,
				Table:    sr.Table,
				Source:   sr.Source,
				Read:     sr.Read,
				Inserted: sr.Inserted,
				Skipped:  sr.Skipped,
				Filtered: sr.Filtered,
				Duration: sr.Duration,
				Err:      err,
			})
			if err != nil {
				log.Error().Err(err).Str("table", sr.Table).Msg("ingest step failed")
				report.Duration = time.Since(start)
				return report, err
			}
			report.Steps = append(report.Steps, sr)
			ev := log.Debug()
			if i.verbose {
				ev = log.Info()
			}
			ev.Str("table", sr.Table).Int("inserted", sr.Inserted).Int("skipped", sr.Skipped).
				Msgf("%s: %d entries inserted", sr.Table, sr.Inserted)
		}
	}
	report.Duration = time.Since(start)
	log.Debug().Int("inserted", report.Inserted()).Int("skipped", report.Skipped()).
		Dur("duration", report.Duration).Msg("ingest finished")
	return report, nil
}

func (i *Ingester) runStep(ctx context.Context, plan Plan, step Step, sheets map[string]*sheet) (StepReport, error) {
	started := time.Now()
	sr := StepReport{Plan: plan.Name, Table: step.Table, Source: step.Source}
	key, ok := plan.Sources[step.Source]
	if !ok || strings.TrimSpace(key) == "" {
		return sr, &StepError{Table: step.Table, Source: step.Source, Err: fmt.Errorf("%w: %s", ErrUnknownSource, step.Source)}
	}
	sr.Source = key
	t, err := i.target.Table(step.Table)
	if err != nil {
		return sr, &StepError{Table: step.Table, Source: key, Err: err}
	}
	sr.Table = t.QualifiedClass()

	s, ok := sheets[key]
	if !ok {
		s, err = loadSheet(ctx, i.store, key, i.quote)
		if err != nil {
			return sr, &StepError{Table: sr.Table, Source: key, Err: err}
		}
		sheets[key] = s
	}
	for _, col := range step.Require {
		if !s.has(col) {
			return sr, &StepError{Table: sr.Table, Source: key, Err: fmt.Errorf("required column %q missing", col)}
		}
	}

	exists, err := i.existence(ctx, t, step)
	if err != nil {
		return sr, &StepError{Table: sr.Table, Source: key, Err: err}
	}
	proj, err := project(s, step, t, exists)
	sr.Read = len(s.rows)
	if err != nil {
		sr.Duration = time.Since(started)
		return sr, &StepError{Table: sr.Table, Source: key, Err: err}
	}
	sr.Filtered = proj.filtered
	for _, o := range proj.orphans {
		i.log.Warn().Str("table", sr.Table).Str("source", key).Int("line", o.line).
			Str(o.attr, o.value).Msgf("%s %s not found in %s, record skipped", o.attr, o.value, o.table)
	}
	res, err := i.target.Insert(ctx, t, proj.rows, core.InsertOptions{SkipDuplicates: i.skipDuplicates})
	sr.Duration = time.Since(started)
	if err != nil {
		se := &StepError{Table: sr.Table, Source: key, Err: err}
		var rowErr *core.RowError
		if errors.As(err, &rowErr) && rowErr.Index >= 0 && rowErr.Index < len(proj.lines) {
			se.Line = proj.lines[rowErr.Index]
		}
		return sr, se
	}
	sr.Inserted = res.Inserted
	sr.Skipped = res.Skipped + proj.dupes
	return sr, nil
}

// existsFunc reports whether value names an entry of the table bound to attr.
type existsFunc func(attr, value string) (table string, ok bool, err error)

// existence resolves step.Known against the catalog. Lookups are cached for
// the step; a nil func means the step checks nothing.
func (i *Ingester) existence(ctx context.Context, t *schema.Table, step Step) (existsFunc, error) {
	if len(step.Known) == 0 {
		return nil, nil
	}
	parents := make(map[string]*schema.Table, len(step.Known))
	for attr, name := range step.Known {
		if _, ok := t.Column(attr); !ok {
			return nil, fmt.Errorf("%s has no attribute %q", t.QualifiedClass(), attr)
		}
		parent, err := i.target.Table(name)
		if err != nil {
			return nil, err
		}
		if len(parent.PrimaryKey()) != 1 {
			return nil, fmt.Errorf("%s must have a single key attribute", parent.QualifiedClass())
		}
		parents[attr] = parent
	}
	seen := map[string]bool{}
	return func(attr, value string) (string, bool, error) {
		parent := parents[attr]
		id := attr + "\x00" + value
		if ok, cached := seen[id]; cached {
			return parent.QualifiedClass(), ok, nil
		}
		n, err := i.target.Count(ctx, parent, domain.Row{parent.PrimaryKey()[0]: value})
		if err != nil {
			return "", false, err
		}
		seen[id] = n > 0
		return parent.QualifiedClass(), n > 0, nil
	}, nil
}

// orphan is a record filtered because it names an unknown entry.
type orphan struct {
	line  int
	attr  string
	value string
	table string
}

type projection struct {
	rows     []domain.Row
	lines    []int
	filtered int
	dupes    int
	orphans  []orphan
}

// project maps source records onto the columns of t. Records missing a
// required value, or naming an entry that does not exist, are filtered; records
// identical after projection are dropped so a single source can feed a table
// with fewer columns.
func project(s *sheet, step Step, t *schema.Table, exists existsFunc) (projection, error) {
	var p projection
	seen := make(map[string]bool, len(s.rows))
records:
	for r := range s.rows {
		if !required(s, r, step.Require) {
			p.filtered++
			continue
		}
		row := make(domain.Row, len(t.Columns))
		for _, c := range t.Columns {
			if v, present := s.value(r, step.column(c.Name)); present {
				row[c.Name] = v
			}
		}
		if exists != nil {
			for _, attr := range sortedKeys(step.Known) {
				value := strings.TrimSpace(row[attr])
				if value == "" {
					continue
				}
				table, ok, err := exists(attr, value)
				if err != nil {
					return projection{}, err
				}
				if !ok {
					p.filtered++
					p.orphans = append(p.orphans, orphan{line: s.lines[r], attr: attr, value: value, table: table})
					continue records
				}
			}
		}
		sig := signature(row)
		if seen[sig] {
			p.dupes++
			continue
		}
		seen[sig] = true
		p.rows = append(p.rows, row)
		p.lines = append(p.lines, s.lines[r])
	}
	return p, nil
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func required(s *sheet, r int, cols []string) bool {
	for _, col := range cols {
		v, _ := s.value(r, col)
		if strings.TrimSpace(v) == "" {
			return false
		}
	}
	return true
}

func signature(row domain.Row) string {
	keys := make([]string, 0, len(row))
	for k := range row {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	for _, k := range keys {
		b.WriteString(k)
		b.WriteByte(0)
		b.WriteString(strings.TrimSpace(row[k]))
		b.WriteByte(0)
	}
	return b.String()
}
