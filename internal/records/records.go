// Package records reads the newline-delimited JSON files that flow between
// pipeline stages into ordered, column-aligned datasets.
//
// Each non-blank line must hold one JSON object. Key order is preserved so
// that the resulting column list follows the file rather than Go's map order.
package records

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"os"

	"golang.org/x/sys/unix"

	"insuraflow/internal/etlerr"
)

// maxLine bounds a single record line.
const maxLine = 16 << 20

// Field is one key/value pair of a record.
type Field struct {
	Name  string
	Value any
}

// Record is an ordered mapping of column name to scalar value (string,
// int64, float64, bool or nil). Nested JSON values are kept as JSON text.
type Record []Field

// Get returns the value stored under name.
func (r Record) Get(name string) (any, bool) {
	for _, f := range r {
		if f.Name == name {
			return f.Value, true
		}
	}
	return nil, false
}

// Dataset is a decoded record file.
type Dataset struct {
	// Columns is the first record's key order followed by keys first seen in
	// later records, in order of appearance.
	Columns []string
	Records []Record
}

// Rows aligns every record with columns. A column a record lacks is nil.
func (d Dataset) Rows(columns []string) [][]any {
	pos := make(map[string]int, len(columns))
	for i, c := range columns {
		pos[c] = i
	}
	rows := make([][]any, len(d.Records))
	for i, rec := range d.Records {
		row := make([]any, len(columns))
		for _, f := range rec {
			if j, ok := pos[f.Name]; ok {
				row[j] = f.Value
			}
		}
		rows[i] = row
	}
	return rows
}

// ReadFile reads the NDJSON file at path. A missing file wraps
// etlerr.ErrSourceFileMissing.
func ReadFile(path string) (Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Dataset{}, fmt.Errorf("%w: %s", etlerr.ErrSourceFileMissing, path)
		}
		return Dataset{}, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	_ = unix.Fadvise(int(f.Fd()), 0, 0, unix.FADV_SEQUENTIAL)

	ds, err := Read(f)
	if err != nil {
		return Dataset{}, fmt.Errorf("%s: %w", path, err)
	}
	return ds, nil
}

// Read decodes NDJSON from r.
func Read(r io.Reader) (Dataset, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64<<10), maxLine)

	var (
		ds   Dataset
		seen = map[string]struct{}{}
		line int
	)
	for sc.Scan() {
		line++
		b := bytes.TrimSpace(sc.Bytes())
		if len(b) == 0 {
			continue
		}
		rec, err := decodeObject(b)
		if err != nil {
			return Dataset{}, fmt.Errorf("line %d: %w", line, err)
		}
		for _, f := range rec {
			if _, ok := seen[f.Name]; !ok {
				seen[f.Name] = struct{}{}
				ds.Columns = append(ds.Columns, f.Name)
			}
		}
		ds.Records = append(ds.Records, rec)
	}
	if err := sc.Err(); err != nil {
		return Dataset{}, fmt.Errorf("line %d: %w", line+1, err)
	}
	return ds, nil
}

// decodeObject walks one JSON object token by token, keeping key order.
// A repeated key keeps its first position and its last value.
func decodeObject(b []byte) (Record, error) {
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, fmt.Errorf("expected JSON object, got %v", tok)
	}
	var (
		rec  Record
		seen = map[string]int{}
	)
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, ok := tok.(string)
		if !ok {
			return nil, fmt.Errorf("expected object key, got %v", tok)
		}
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return nil, fmt.Errorf("key %q: %w", key, err)
		}
		v, err := scalar(raw)
		if err != nil {
			return nil, fmt.Errorf("key %q: %w", key, err)
		}
		if i, dup := seen[key]; dup {
			rec[i].Value = v
			continue
		}
		seen[key] = len(rec)
		rec = append(rec, Field{Name: key, Value: v})
	}
	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	if dec.More() {
		return nil, errors.New("trailing data after object")
	}
	return rec, nil
}

// scalar converts one raw JSON value to a column value. Objects and arrays
// are kept as their compact JSON text.
func scalar(raw json.RawMessage) (any, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return nil, errors.New("empty value")
	}
	switch raw[0] {
	case '{', '[':
		var buf bytes.Buffer
		if err := json.Compact(&buf, raw); err != nil {
			return nil, err
		}
		return buf.String(), nil
	case 'n':
		return nil, nil
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	if n, ok := v.(json.Number); ok {
		return number(n)
	}
	return v, nil
}

// number keeps integers that fit int64 exact; everything else is float64.
func number(n json.Number) (any, error) {
	if i, err := n.Int64(); err == nil {
		return i, nil
	}
	f, err := n.Float64()
	if err != nil && !math.IsInf(f, 0) {
		return nil, err
	}
	return f, nil
}
