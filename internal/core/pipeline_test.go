package core

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"sessionflow/internal/schema"
	"sessionflow/pkg/domain"
)

func newMemoryPipeline(t *testing.T, opts ...Option) *Pipeline {
	t.Helper()
	ctx := context.Background()
	p, err := OpenPipeline(ctx, StorageConfig{Driver: StorageMemory}, opts...)
	if err != nil {
		t.Fatalf("open pipeline: %v", err)
	}
	t.Cleanup(func() { _ = p.Close() })
	if err := p.Activate(ctx); err != nil {
		t.Fatalf("activate: %v", err)
	}
	return p
}

func mustInsert(t *testing.T, p *Pipeline, table string, rows ...domain.Row) InsertResult {
	t.Helper()
	res, err := p.Insert(context.Background(), p.Catalog().MustTable(table), rows, InsertOptions{})
	if err != nil {
		t.Fatalf("insert %s: %v", table, err)
	}
	return res
}

var exampleLab = domain.Row{
	"lab":         "LabA",
	"lab_name":    "The Example Lab",
	"institution": "Example Uni",
	"address":     "'221B Baker St,London NW1 6XE,UK'",
	"time_zone":   "UTC+0",
}

func TestActivateIsIdempotent(t *testing.T) {
	p := newMemoryPipeline(t)
	ctx := context.Background()
	if err := p.Activate(ctx); err != nil {
		t.Fatalf("second activate: %v", err)
	}
	n, err := p.Count(ctx, p.Catalog().MustTable("Lab"), nil)
	if err != nil || n != 0 {
		t.Fatalf("expected empty lab table, got %d (%v)", n, err)
	}
}

func TestInsertFetchAndDefaults(t *testing.T) {
	p := newMemoryPipeline(t)
	ctx := context.Background()
	lab := p.Catalog().MustTable("Lab")

	row := exampleLab.Clone()
	row["unrelated_column"] = "ignored"
	res := mustInsert(t, p, "Lab", row)
	if res.Inserted != 1 || res.Skipped != 0 {
		t.Fatalf("unexpected result %+v", res)
	}
	name, err := p.Fetch1(ctx, lab, domain.Row{"lab": "LabA"}, "lab_name")
	if err != nil {
		t.Fatalf("fetch1: %v", err)
	}
	if name != "The Example Lab" {
		t.Fatalf("lab_name = %q", name)
	}
	addr, _ := p.Fetch1(ctx, lab, domain.Row{"lab": "LabA"}, "address")
	if addr != exampleLab["address"] {
		t.Fatalf("address = %q", addr)
	}

	mustInsert(t, p, "ProtocolType", domain.Row{"protocol_type": "IACUC"})
	mustInsert(t, p, "Protocol", domain.Row{"protocol": "p1", "protocol_type": "IACUC"})
	rows, err := p.Fetch(ctx, p.Catalog().MustTable("Protocol"), nil)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	want := domain.Row{"protocol": "p1", "protocol_type": "IACUC", "protocol_description": ""}
	if len(rows) != 1 || len(rows[0]) != len(want) {
		t.Fatalf("rows = %v", rows)
	}
	for k, v := range want {
		if rows[0][k] != v {
			t.Fatalf("%s = %q, want %q", k, rows[0][k], v)
		}
	}
}

func TestInsertTypedColumnsRoundTrip(t *testing.T) {
	p := newMemoryPipeline(t)
	ctx := context.Background()
	mustInsert(t, p, "Line", domain.Row{"line": "line1", "is_active": "1"})
	mustInsert(t, p, "Subject", domain.Row{"subject": "subject1", "sex": "M", "subject_birth_date": "2020-01-01 00:00:01"})
	mustInsert(t, p, "Session", domain.Row{"subject": "subject1", "session_datetime": "2020-04-02 12:00:00"})

	active, err := p.Fetch1(ctx, p.Catalog().MustTable("Line"), domain.Row{"line": "line1"}, "is_active")
	if err != nil || active != "1" {
		t.Fatalf("is_active = %q (%v)", active, err)
	}
	born, _ := p.Fetch1(ctx, p.Catalog().MustTable("Subject"), domain.Row{"subject": "subject1"}, "subject_birth_date")
	if born != "2020-01-01" {
		t.Fatalf("subject_birth_date = %q", born)
	}
	n, err := p.Count(ctx, p.Catalog().MustTable("Session"), domain.Row{"session_datetime": "2020-04-02T12:00:00"})
	if err != nil || n != 1 {
		t.Fatalf("session count = %d (%v)", n, err)
	}
}

func TestInsertDuplicates(t *testing.T) {
	p := newMemoryPipeline(t)
	ctx := context.Background()
	lab := p.Catalog().MustTable("Lab")
	mustInsert(t, p, "Lab", exampleLab)

	res, err := p.Insert(ctx, lab, []domain.Row{exampleLab}, InsertOptions{SkipDuplicates: true})
	if err != nil {
		t.Fatalf("skip duplicates: %v", err)
	}
	if res.Inserted != 0 || res.Skipped != 1 {
		t.Fatalf("unexpected result %+v", res)
	}

	other := exampleLab.Clone()
	other["lab"] = "LabB"
	_, err = p.Insert(ctx, lab, []domain.Row{other, exampleLab}, InsertOptions{})
	if !errors.Is(err, ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}
	if n, _ := p.Count(ctx, lab, nil); n != 1 {
		t.Fatalf("failed batch must roll back, have %d labs", n)
	}
}

func TestInsertForeignKeyAndMissingValues(t *testing.T) {
	p := newMemoryPipeline(t)
	ctx := context.Background()
	_, err := p.Insert(ctx, p.Catalog().MustTable("Location"), []domain.Row{{"lab": "Nowhere", "location": "room1"}}, InsertOptions{})
	if !errors.Is(err, ErrForeignKey) {
		t.Fatalf("expected ErrForeignKey, got %v", err)
	}
	_, err = p.Insert(ctx, p.Catalog().MustTable("Lab"), []domain.Row{{"lab": "LabA"}}, InsertOptions{})
	if !errors.Is(err, schema.ErrMissingValue) {
		t.Fatalf("expected ErrMissingValue, got %v", err)
	}
	_, err = p.Insert(ctx, p.Catalog().MustTable("Subject"), []domain.Row{{"subject": "s1", "sex": "X", "subject_birth_date": "2020-01-01"}}, InsertOptions{})
	if !errors.Is(err, schema.ErrInvalidValue) {
		t.Fatalf("expected ErrInvalidValue, got %v", err)
	}
}

func TestInsertRowErrorLocatesBatchRow(t *testing.T) {
	p := newMemoryPipeline(t)
	ctx := context.Background()
	rows := []domain.Row{
		{"subject": "s1", "sex": "M", "subject_birth_date": "2020-01-01"},
		{"subject": "s2", "sex": "F", "subject_birth_date": "someday"},
	}
	_, err := p.Insert(ctx, p.Catalog().MustTable("Subject"), rows, InsertOptions{})
	var rowErr *RowError
	if !errors.As(err, &rowErr) {
		t.Fatalf("expected RowError, got %T %v", err, err)
	}
	if rowErr.Index != 1 || rowErr.Table != "subject.Subject" {
		t.Fatalf("unexpected row error %+v", rowErr)
	}
	if got := err.Error(); !strings.Contains(got, "insert into subject.Subject row 2") {
		t.Fatalf("unexpected message %q", got)
	}

	lab := p.Catalog().MustTable("Lab")
	mustInsert(t, p, "Lab", exampleLab)
	second := exampleLab.Clone()
	second["lab"] = "LabB"
	_, err = p.Insert(ctx, lab, []domain.Row{second, exampleLab}, InsertOptions{})
	if !errors.As(err, &rowErr) || rowErr.Index != 1 || !errors.Is(err, ErrDuplicate) {
		t.Fatalf("expected duplicate on second row, got %v", err)
	}
	if n, _ := p.Count(ctx, lab, nil); n != 1 {
		t.Fatalf("expected rollback to keep one lab, got %d", n)
	}
}

func TestFetch1Cardinality(t *testing.T) {
	p := newMemoryPipeline(t)
	ctx := context.Background()
	mustInsert(t, p, "Lab", exampleLab)
	mustInsert(t, p, "Location",
		domain.Row{"lab": "LabA", "location": "room1"},
		domain.Row{"lab": "LabA", "location": "room2"})
	loc := p.Catalog().MustTable("Location")
	if _, err := p.Fetch1(ctx, loc, domain.Row{"lab": "LabA"}, "location"); !errors.Is(err, ErrNotUnique) {
		t.Fatalf("expected ErrNotUnique, got %v", err)
	}
	if _, err := p.Fetch1(ctx, loc, domain.Row{"lab": "LabZ"}, "location"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := p.Fetch(ctx, loc, domain.Row{"nope": "x"}); err == nil {
		t.Fatalf("expected unknown attribute error")
	}
	n, err := p.Delete(ctx, loc, domain.Row{"location": "room2"})
	if err != nil || n != 1 {
		t.Fatalf("delete = %d (%v)", n, err)
	}
}

func TestTeardownAndDropHonourSafeMode(t *testing.T) {
	p := newMemoryPipeline(t, WithSafeMode(true))
	ctx := context.Background()
	mustInsert(t, p, "Lab", exampleLab)
	mustInsert(t, p, "Location", domain.Row{"lab": "LabA", "location": "room1"})

	if err := p.Teardown(ctx, false); !errors.Is(err, ErrSafeMode) {
		t.Fatalf("expected ErrSafeMode, got %v", err)
	}
	if err := p.Teardown(ctx, true); err != nil {
		t.Fatalf("teardown: %v", err)
	}
	for _, name := range []string{"Lab", "Location"} {
		if n, _ := p.Count(ctx, p.Catalog().MustTable(name), nil); n != 0 {
			t.Fatalf("%s still has %d rows", name, n)
		}
	}
	if err := p.Drop(ctx, false); !errors.Is(err, ErrSafeMode) {
		t.Fatalf("expected ErrSafeMode, got %v", err)
	}
	if err := p.Drop(ctx, true); err != nil {
		t.Fatalf("drop: %v", err)
	}
	if _, err := p.Count(ctx, p.Catalog().MustTable("Lab"), nil); err == nil {
		t.Fatalf("expected missing table after drop")
	}
}

func TestOpenPipelineSQLiteFileAndPrefix(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "pipeline.db")
	p, err := OpenPipeline(ctx, StorageConfig{Driver: "SQLite", SQLitePath: path, Prefix: "neuro_"})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer p.Close()
	if p.Prefix() != "neuro_" || p.Dialect().Name() != schema.DialectSQLite {
		t.Fatalf("unexpected binding %s %s", p.Prefix(), p.Dialect().Name())
	}
	if err := p.Activate(ctx); err != nil {
		t.Fatalf("activate: %v", err)
	}
	var name string
	err = p.DB().QueryRowContext(ctx, `SELECT name FROM sqlite_master WHERE name = 'neuro_lab_lab'`).Scan(&name)
	if err != nil {
		t.Fatalf("prefixed table missing: %v", err)
	}
	if _, err := OpenPipeline(ctx, StorageConfig{Driver: "oracle"}); err == nil {
		t.Fatalf("expected unknown driver error")
	}
}
