package ingest

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"

	"sessionflow/internal/blob"
)

const workbookExt = ".xlsx"

var utf8BOM = []byte("\ufeff")

// sheet is a parsed tabular source: a header row plus records, each record
// remembering the line (or worksheet row) it came from.
type sheet struct {
	key    string
	header []string
	index  map[string]int
	rows   [][]string
	lines  []int
}

func newSheet(key string, header []string) *sheet {
	s := &sheet{key: key, header: make([]string, len(header)), index: make(map[string]int, len(header))}
	for i, h := range header {
		h = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
		s.header[i] = h
		if _, dup := s.index[h]; !dup && h != "" {
			s.index[h] = i
		}
	}
	return s
}

// value returns the cell of record r in column col. Short records read as
// blanks; present is false when the source has no such column.
func (s *sheet) value(r int, col string) (v string, present bool) {
	i, ok := s.index[col]
	if !ok {
		return "", false
	}
	if row := s.rows[r]; i < len(row) {
		return row[i], true
	}
	return "", true
}

func (s *sheet) has(col string) bool {
	_, ok := s.index[col]
	return ok
}

// splitKey separates a worksheet selector from a workbook key:
// "subject/colony.xlsx#Subjects" names the Subjects sheet.
func splitKey(key string) (object, worksheet string, workbook bool) {
	object = key
	if i := strings.LastIndex(key, "#"); i >= 0 && strings.HasSuffix(strings.ToLower(key[:i]), workbookExt) {
		object, worksheet = key[:i], key[i+1:]
	}
	return object, worksheet, strings.HasSuffix(strings.ToLower(object), workbookExt)
}

func loadSheet(ctx context.Context, store blob.Store, key string, quote rune) (*sheet, error) {
	object, worksheet, workbook := splitKey(key)
	data, err := blob.ReadAll(ctx, store, object)
	if err != nil {
		return nil, fmt.Errorf("read source %s: %w", key, err)
	}
	if workbook {
		return parseWorkbook(key, data, worksheet)
	}
	return parseCSV(key, data, quote)
}

// parseCSV reads comma separated text. encoding/csv only understands the
// double quote, so another quote character is swapped with it before
// parsing and swapped back in every field afterwards.
func parseCSV(key string, data []byte, quote rune) (*sheet, error) {
	if quote == 0 {
		quote = '"'
	}
	if quote > 0x7f || quote == ',' || quote == '\n' || quote == '\r' {
		return nil, fmt.Errorf("unsupported quote character %q", quote)
	}
	data = bytes.TrimPrefix(data, utf8BOM)
	swap := quote != '"'
	if swap {
		data = swapBytes(data, byte(quote), '"')
	}
	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	r.ReuseRecord = false

	header, err := r.Read()
	if errors.Is(err, io.EOF) {
		return newSheet(key, nil), nil
	}
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", key, err)
	}
	if swap {
		header = swapFields(header, byte(quote))
	}
	s := newSheet(key, header)
	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", key, err)
		}
		line, _ := r.FieldPos(0)
		if swap {
			rec = swapFields(rec, byte(quote))
		}
		s.rows = append(s.rows, rec)
		s.lines = append(s.lines, line)
	}
	return s, nil
}

func swapFields(rec []string, quote byte) []string {
	for i, f := range rec {
		rec[i] = string(swapBytes([]byte(f), quote, '"'))
	}
	return rec
}

func swapBytes(b []byte, x, y byte) []byte {
	out := make([]byte, len(b))
	for i, c := range b {
		switch c {
		case x:
			out[i] = y
		case y:
			out[i] = x
		default:
			out[i] = c
		}
	}
	return out
}

// parseWorkbook reads one worksheet; an empty name selects the first sheet.
func parseWorkbook(key string, data []byte, worksheet string) (*sheet, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("open workbook %s: %w", key, err)
	}
	defer f.Close()
	if worksheet == "" {
		worksheet = f.GetSheetName(0)
		if worksheet == "" {
			return nil, fmt.Errorf("workbook %s has no sheets", key)
		}
	}
	rows, err := f.GetRows(worksheet)
	if err != nil {
		return nil, fmt.Errorf("read sheet %s: %w", key, err)
	}
	if len(rows) == 0 {
		return newSheet(key, nil), nil
	}
	s := newSheet(key, rows[0])
	for i, row := range rows[1:] {
		if blankRecord(row) {
			continue
		}
		s.rows = append(s.rows, row)
		s.lines = append(s.lines, i+2)
	}
	return s, nil
}

func blankRecord(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
