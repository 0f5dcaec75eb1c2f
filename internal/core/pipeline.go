// Package core binds the table catalog to a storage backend: it activates
// the schema, inserts rows inside rule-checked transactions and answers
// equality-restricted queries.
package core

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"

	"github.com/rs/zerolog"

	"sessionflow/internal/schema"
	"sessionflow/pkg/domain"
)

// Errors reported by Pipeline operations. Duplicate and foreign key
// failures carry the driver error underneath.
var (
	ErrDuplicate  = domain.ErrDuplicate
	ErrForeignKey = domain.ErrForeignKey
	ErrNotFound   = errors.New("no matching entry")
	ErrNotUnique  = errors.New("more than one matching entry")
	ErrSafeMode   = errors.New("safemode is on: confirmation required")
)

// Option customises a Pipeline.
type Option func(*Pipeline)

// WithLogger sets the logger used for insert summaries and rule warnings.
func WithLogger(log zerolog.Logger) Option {
	return func(p *Pipeline) { p.log = log }
}

// WithRulesEngine replaces the default rules engine. A nil engine disables
// rule evaluation.
func WithRulesEngine(engine *RulesEngine) Option {
	return func(p *Pipeline) { p.engine = engine }
}

// WithCatalog binds the pipeline to a catalog other than schema.Default.
func WithCatalog(c *schema.Catalog) Option {
	return func(p *Pipeline) { p.catalog = c }
}

// WithPrefix sets the physical table name prefix.
func WithPrefix(prefix string) Option {
	return func(p *Pipeline) { p.prefix = prefix }
}

// WithSafeMode makes destructive operations require confirmation.
func WithSafeMode(on bool) Option {
	return func(p *Pipeline) { p.safeMode = on }
}

// Pipeline is the catalog bound to one open database.
type Pipeline struct {
	db       *sql.DB
	dialect  schema.Dialect
	classify func(error) error
	catalog  *schema.Catalog
	engine   *RulesEngine
	prefix   string
	safeMode bool
	log      zerolog.Logger
}

// NewPipeline wraps an open database. classify maps driver errors onto
// ErrDuplicate and ErrForeignKey; nil leaves errors untouched.
func NewPipeline(db *sql.DB, dialect schema.Dialect, classify func(error) error, opts ...Option) *Pipeline {
	p := &Pipeline{
		db:       db,
		dialect:  dialect,
		classify: classify,
		catalog:  schema.Default(),
		engine:   NewDefaultRulesEngine(),
		log:      zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.classify == nil {
		p.classify = func(err error) error { return err }
	}
	return p
}

// Catalog returns the bound catalog.
func (p *Pipeline) Catalog() *schema.Catalog { return p.catalog }

// Dialect returns the SQL dialect of the backend.
func (p *Pipeline) Dialect() schema.Dialect { return p.dialect }

// Prefix returns the physical table name prefix.
func (p *Pipeline) Prefix() string { return p.prefix }

// DB exposes the underlying handle.
func (p *Pipeline) DB() *sql.DB { return p.db }

// Close releases the database handle.
func (p *Pipeline) Close() error { return p.db.Close() }

// Table resolves a table name against the catalog.
func (p *Pipeline) Table(name string) (*schema.Table, error) { return p.catalog.Table(name) }

// Activate creates every table that does not exist yet.
func (p *Pipeline) Activate(ctx context.Context) error {
	for _, stmt := range schema.SplitStatements(schema.DDL(p.dialect, p.prefix, p.catalog.Tables())) {
		if _, err := p.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("activate: %w", err)
		}
	}
	p.log.Debug().Int("tables", len(p.catalog.Tables())).Str("dialect", p.dialect.Name()).Msg("schema activated")
	return nil
}

// InsertOptions controls Insert.
type InsertOptions struct {
	// SkipDuplicates silently keeps the stored row when the primary key
	// already exists.
	SkipDuplicates bool
}

// InsertResult reports what an Insert did.
type InsertResult struct {
	Inserted   int
	Skipped    int
	Violations []domain.Violation
}

// RowError reports the batch row an Insert failed on.
type RowError struct {
	Table string
	Index int // zero based position in the batch
	Err   error
}

func (e *RowError) Error() string {
	return fmt.Sprintf("insert into %s row %d: %v", e.Table, e.Index+1, e.Err)
}

func (e *RowError) Unwrap() error { return e.Err }

// Insert writes rows into t in a single transaction. Fields that are not
// attributes of t are ignored, missing optional attributes take their
// declared default. Registered rules run before commit; a blocking
// violation rolls the whole batch back and returns RuleViolationError.
func (p *Pipeline) Insert(ctx context.Context, t *schema.Table, rows []domain.Row, opts InsertOptions) (InsertResult, error) {
	var res InsertResult
	if len(rows) == 0 {
		return res, nil
	}
	args := make([][]any, len(rows))
	for i, row := range rows {
		a, err := p.coerceRow(t, row)
		if err != nil {
			return res, &RowError{Table: t.QualifiedClass(), Index: i, Err: err}
		}
		args[i] = a
	}

	stmt := schema.Insert(p.dialect, p.prefix, t, opts.SkipDuplicates)
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return res, fmt.Errorf("begin: %w", err)
	}
	var changes []domain.Change
	for i, a := range args {
		r, err := tx.ExecContext(ctx, stmt, a...)
		if err != nil {
			_ = tx.Rollback()
			return InsertResult{}, &RowError{Table: t.QualifiedClass(), Index: i, Err: p.classify(err)}
		}
		n, err := r.RowsAffected()
		if err != nil {
			n = 1
		}
		if n == 0 {
			res.Skipped++
			continue
		}
		res.Inserted++
		changes = append(changes, domain.Change{Table: t.QualifiedClass(), Row: p.formatRow(t, a)})
	}

	if p.engine != nil && len(changes) > 0 {
		result, err := p.engine.Evaluate(ctx, txView{p: p, q: tx}, changes)
		if err != nil {
			_ = tx.Rollback()
			return InsertResult{}, err
		}
		if result.HasBlocking() {
			_ = tx.Rollback()
			return InsertResult{}, RuleViolationError{Result: result}
		}
		res.Violations = result.Violations
		for _, v := range result.Violations {
			p.log.Warn().Str("rule", v.Rule).Str("table", v.Table).Msg(v.Message)
		}
	}
	if err := tx.Commit(); err != nil {
		return InsertResult{}, fmt.Errorf("commit: %w", p.classify(err))
	}
	p.log.Debug().Str("table", t.QualifiedClass()).Int("inserted", res.Inserted).Int("skipped", res.Skipped).Msg("insert")
	return res, nil
}

// Insert1 inserts a single row.
func (p *Pipeline) Insert1(ctx context.Context, t *schema.Table, row domain.Row, opts InsertOptions) error {
	_, err := p.Insert(ctx, t, []domain.Row{row}, opts)
	return err
}

func (p *Pipeline) coerceRow(t *schema.Table, row domain.Row) ([]any, error) {
	out := make([]any, len(t.Columns))
	for i, c := range t.Columns {
		raw, present := row[c.Name]
		v, err := c.Coerce(raw, present, c.Key)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (p *Pipeline) formatRow(t *schema.Table, values []any) domain.Row {
	row := make(domain.Row, len(values))
	for i, c := range t.Columns {
		row[c.Name] = c.Format(values[i])
	}
	return row
}

// Count returns the number of rows of t matching restriction.
func (p *Pipeline) Count(ctx context.Context, t *schema.Table, restriction domain.Row) (int, error) {
	where, args, err := p.where(t, restriction)
	if err != nil {
		return 0, err
	}
	var n int
	if err := p.db.QueryRowContext(ctx, schema.Count(p.dialect, p.prefix, t, where), args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count %s: %w", t, err)
	}
	return n, nil
}

// Fetch returns the rows of t matching restriction in primary key order.
// Without columns every attribute is returned.
func (p *Pipeline) Fetch(ctx context.Context, t *schema.Table, restriction domain.Row, columns ...string) ([]domain.Row, error) {
	return p.fetch(ctx, p.db, t, restriction, columns)
}

// Fetch1 returns column of the single row of t matching key.
func (p *Pipeline) Fetch1(ctx context.Context, t *schema.Table, key domain.Row, column string) (string, error) {
	rows, err := p.Fetch(ctx, t, key, column)
	if err != nil {
		return "", err
	}
	switch len(rows) {
	case 0:
		return "", fmt.Errorf("%s %v: %w", t, key, ErrNotFound)
	case 1:
		return rows[0][column], nil
	default:
		return "", fmt.Errorf("%s %v: %w (%d rows)", t, key, ErrNotUnique, len(rows))
	}
}

// Delete removes the rows of t matching restriction.
func (p *Pipeline) Delete(ctx context.Context, t *schema.Table, restriction domain.Row) (int64, error) {
	where, args, err := p.where(t, restriction)
	if err != nil {
		return 0, err
	}
	r, err := p.db.ExecContext(ctx, schema.Delete(p.dialect, p.prefix, t, where), args...)
	if err != nil {
		return 0, fmt.Errorf("delete from %s: %w", t, p.classify(err))
	}
	n, _ := r.RowsAffected()
	return n, nil
}

// Teardown deletes every row, children first.
func (p *Pipeline) Teardown(ctx context.Context, confirm bool) error {
	if p.safeMode && !confirm {
		return ErrSafeMode
	}
	tables := p.catalog.Tables()
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	for i := len(tables) - 1; i >= 0; i-- {
		if _, err := tx.ExecContext(ctx, schema.Delete(p.dialect, p.prefix, tables[i], "")); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("teardown %s: %w", tables[i], p.classify(err))
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	p.log.Info().Int("tables", len(tables)).Msg("teardown complete")
	return nil
}

// Drop drops every table, children first.
func (p *Pipeline) Drop(ctx context.Context, confirm bool) error {
	if p.safeMode && !confirm {
		return ErrSafeMode
	}
	for _, stmt := range schema.SplitStatements(schema.DropDDL(p.dialect, p.prefix, p.catalog.Tables())) {
		if _, err := p.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("drop: %w", p.classify(err))
		}
	}
	p.log.Info().Int("tables", len(p.catalog.Tables())).Msg("schema dropped")
	return nil
}

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func (p *Pipeline) where(t *schema.Table, restriction domain.Row) (string, []any, error) {
	names := make([]string, 0, len(restriction))
	for name := range restriction {
		if _, ok := t.Column(name); !ok {
			return "", nil, fmt.Errorf("%s has no attribute %q", t, name)
		}
		names = append(names, name)
	}
	sort.Strings(names)
	where, order := schema.Where(p.dialect, names, 0)
	args := make([]any, len(order))
	for i, name := range order {
		c, _ := t.Column(name)
		v, err := c.Coerce(restriction[name], true, false)
		if err != nil {
			return "", nil, fmt.Errorf("restrict %s: %w", t, err)
		}
		if v == nil {
			return "", nil, fmt.Errorf("restrict %s: %s is NULL", t, name)
		}
		args[i] = v
	}
	return where, args, nil
}

func (p *Pipeline) fetch(ctx context.Context, q queryer, t *schema.Table, restriction domain.Row, columns []string) ([]domain.Row, error) {
	if len(columns) == 0 {
		columns = t.ColumnNames()
	}
	cols := make([]schema.Column, len(columns))
	for i, name := range columns {
		c, ok := t.Column(name)
		if !ok {
			return nil, fmt.Errorf("%s has no attribute %q", t, name)
		}
		cols[i] = c
	}
	where, args, err := p.where(t, restriction)
	if err != nil {
		return nil, err
	}
	rows, err := q.QueryContext(ctx, schema.Select(p.dialect, p.prefix, t, columns, where), args...)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", t, err)
	}
	defer rows.Close()

	var out []domain.Row
	values := make([]any, len(cols))
	dest := make([]any, len(cols))
	for i := range values {
		dest[i] = &values[i]
	}
	for rows.Next() {
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("scan %s: %w", t, err)
		}
		row := make(domain.Row, len(cols))
		for i, c := range cols {
			row[c.Name] = c.Format(values[i])
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("fetch %s: %w", t, err)
	}
	return out, nil
}

// txView lets rules read committed rows plus the ones pending in tx.
type txView struct {
	p *Pipeline
	q queryer
}

func (v txView) Fetch(ctx context.Context, table string, restriction domain.Row) ([]domain.Row, error) {
	t, err := v.p.catalog.Table(table)
	if err != nil {
		return nil, err
	}
	return v.p.fetch(ctx, v.q, t, restriction, nil)
}
