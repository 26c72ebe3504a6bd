// Package voxelfile reads and writes the portable world file: a JSON array
// of {x, y, z, color} records in insertion order.
package voxelfile

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"voxelplay.ai/internal/sim/voxel"
)

const DefaultFileName = "voxel-data.json"

//go:embed voxel-data.schema.json
var schemaSource string

const schemaURL = "https://voxelplay.ai/schemas/voxel-data.schema.json"

var (
	schemaOnce sync.Once
	schema     *jsonschema.Schema
	schemaErr  error
)

func compiledSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		schema, schemaErr = jsonschema.CompileString(schemaURL, schemaSource)
	})
	return schema, schemaErr
}

// Record is one voxel as stored on disk.
type Record struct {
	X     int `json:"x"`
	Y     int `json:"y"`
	Z     int `json:"z"`
	Color int `json:"color"`
}

// ImportFormatError reports a file that could not be imported. The world is
// left as it was.
type ImportFormatError struct {
	Reason string
	Err    error
}

func (e *ImportFormatError) Error() string {
	if e.Err != nil {
		return "import: " + e.Reason + ": " + e.Err.Error()
	}
	return "import: " + e.Reason
}

func (e *ImportFormatError) Unwrap() error { return e.Err }

// Source is the read side of a voxel store.
type Source interface {
	List() []voxel.Voxel
}

// Target is what Import writes into.
type Target interface {
	Set(x, y, z int, c voxel.Color) (bool, error)
	Clear()
	Len() int
}

func Export(src Source) []Record {
	vs := src.List()
	out := make([]Record, len(vs))
	for i, v := range vs {
		out[i] = Record{X: v.X, Y: v.Y, Z: v.Z, Color: int(v.Color)}
	}
	return out
}

// Marshal renders the store the way the download is written: an indented
// JSON array, never null.
func Marshal(src Source) ([]byte, error) {
	return MarshalRecords(Export(src))
}

func MarshalRecords(recs []Record) ([]byte, error) {
	if recs == nil {
		recs = []Record{}
	}
	return json.MarshalIndent(recs, "", "  ")
}

// Decode validates data against the file schema and returns its records.
// Any integral JSON number is accepted, so 1.0 and 1e2 decode like 1 and 100.
func Decode(data []byte) ([]Record, error) {
	s, err := compiledSchema()
	if err != nil {
		return nil, fmt.Errorf("voxel-data schema: %w", err)
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var doc any
	if err := dec.Decode(&doc); err != nil {
		return nil, &ImportFormatError{Reason: "not valid JSON", Err: err}
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, &ImportFormatError{Reason: "not valid JSON", Err: fmt.Errorf("trailing data after array")}
	}
	if err := s.Validate(doc); err != nil {
		return nil, &ImportFormatError{Reason: "does not match voxel-data schema", Err: err}
	}

	items, _ := doc.([]any)
	recs := make([]Record, len(items))
	for i, it := range items {
		obj, _ := it.(map[string]any)
		fields := [4]*int{&recs[i].X, &recs[i].Y, &recs[i].Z, &recs[i].Color}
		for j, name := range [4]string{"x", "y", "z", "color"} {
			n, err := integral(obj[name])
			if err != nil {
				return nil, &ImportFormatError{Reason: fmt.Sprintf("record %d field %s", i, name), Err: err}
			}
			*fields[j] = n
		}
	}
	return recs, nil
}

func integral(v any) (int, error) {
	num, ok := v.(json.Number)
	if !ok {
		return 0, fmt.Errorf("not a number: %v", v)
	}
	if n, err := num.Int64(); err == nil {
		return int(n), nil
	}
	f, err := num.Float64()
	if err != nil || f != math.Trunc(f) || math.Abs(f) > 1<<53 {
		return 0, fmt.Errorf("not an integer: %s", num)
	}
	return int(f), nil
}

// Import replaces the world with the records in data. On any error the
// world is untouched. It returns the number of voxels stored, which can be
// lower than the record count when coordinates repeat.
func Import(dst Target, data []byte) (int, error) {
	recs, err := Decode(data)
	if err != nil {
		return 0, err
	}
	return ImportRecords(dst, recs)
}

// ImportRecords is Import for records already in memory. Duplicate
// coordinates keep the first record seen.
func ImportRecords(dst Target, recs []Record) (int, error) {
	for i, r := range recs {
		if !voxel.InRange(r.X, r.Y, r.Z) {
			return 0, &ImportFormatError{Reason: fmt.Sprintf("record %d", i), Err: voxel.ErrOutOfRange}
		}
		if r.Color < 0 || !voxel.Color(r.Color).Valid() {
			return 0, &ImportFormatError{Reason: fmt.Sprintf("record %d", i), Err: voxel.ErrBadColor}
		}
	}
	dst.Clear()
	for _, r := range recs {
		if _, err := dst.Set(r.X, r.Y, r.Z, voxel.Color(r.Color)); err != nil {
			return dst.Len(), err
		}
	}
	return dst.Len(), nil
}
