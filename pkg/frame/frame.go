// Package frame holds the tabular structures shared by the census and
// tiger clients, and the GEOID join that combines their outputs.
package frame

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// GEOIDColumn is the geographic identifier both datasets carry and the
// only column Join will match on.
const GEOIDColumn = "GEOID"

// Frame is a column-major table of string values. Columns keep their
// declared order; every column has exactly NumRows values.
type Frame struct {
	cols    []string
	data    map[string][]string
	numeric map[string]struct{}
	rows    int
}

func New(cols []string) *Frame {
	f := &Frame{
		cols:    make([]string, len(cols)),
		data:    make(map[string][]string, len(cols)),
		numeric: make(map[string]struct{}),
	}
	copy(f.cols, cols)
	for _, c := range f.cols {
		f.data[c] = nil
	}
	return f
}

func (f *Frame) NumRows() int { return f.rows }

func (f *Frame) NumCols() int { return len(f.cols) }

// Columns returns the column names in declared order. The slice is a
// copy and safe to modify.
func (f *Frame) Columns() []string {
	out := make([]string, len(f.cols))
	copy(out, f.cols)
	return out
}

func (f *Frame) HasColumn(name string) bool {
	_, ok := f.data[name]
	return ok
}

// Col returns the values of a column in row order.
func (f *Frame) Col(name string) ([]string, bool) {
	vs, ok := f.data[name]
	return vs, ok
}

// Value returns the cell at (col, row) or "" when out of range.
func (f *Frame) Value(col string, row int) string {
	vs, ok := f.data[col]
	if !ok || row < 0 || row >= len(vs) {
		return ""
	}
	return vs[row]
}

// AppendRow adds one row. The value count must match the column count.
func (f *Frame) AppendRow(values []string) error {
	if len(values) != len(f.cols) {
		return fmt.Errorf("row width %d does not match %d columns", len(values), len(f.cols))
	}
	for i, c := range f.cols {
		f.data[c] = append(f.data[c], values[i])
	}
	f.rows++
	return nil
}

// AddColumn appends a new column. The value count must match NumRows.
func (f *Frame) AddColumn(name string, values []string) error {
	if f.HasColumn(name) {
		return fmt.Errorf("column %q already present", name)
	}
	if len(values) != f.rows {
		return fmt.Errorf("column %q has %d values, frame has %d rows", name, len(values), f.rows)
	}
	f.cols = append(f.cols, name)
	f.data[name] = values
	return nil
}

// MarkNumeric validates that every value in the column parses as a
// number and records the column as numeric. Empty cells are allowed
// and treated as missing.
func (f *Frame) MarkNumeric(name string) error {
	vs, ok := f.data[name]
	if !ok {
		return fmt.Errorf("no column %q", name)
	}
	for i, v := range vs {
		if v == "" {
			continue
		}
		if _, err := strconv.ParseFloat(v, 64); err != nil {
			return fmt.Errorf("column %q row %d: %q is not numeric", name, i, v)
		}
	}
	f.numeric[name] = struct{}{}
	return nil
}

func (f *Frame) IsNumeric(name string) bool {
	_, ok := f.numeric[name]
	return ok
}

// Numeric returns a column parsed as float64. Empty cells come back as
// NaN-free zeros only if present; they are returned as 0 with ok=false
// signalled through the error instead, so callers get an explicit
// failure rather than silent junk.
func (f *Frame) Numeric(name string) ([]float64, error) {
	vs, ok := f.data[name]
	if !ok {
		return nil, fmt.Errorf("no column %q", name)
	}
	out := make([]float64, len(vs))
	for i, v := range vs {
		if v == "" {
			continue
		}
		n, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return nil, fmt.Errorf("column %q row %d: %w", name, i, err)
		}
		out[i] = n
	}
	return out, nil
}

// GeoFrame is a Frame with one GeoJSON geometry per row.
type GeoFrame struct {
	Frame
	geoms []json.RawMessage
}

func NewGeo(cols []string) *GeoFrame {
	return &GeoFrame{Frame: *New(cols)}
}

// AppendFeature adds one row plus its geometry. A nil geometry is
// allowed (left joins produce rows without a boundary).
func (g *GeoFrame) AppendFeature(values []string, geom json.RawMessage) error {
	if err := g.AppendRow(values); err != nil {
		return err
	}
	g.geoms = append(g.geoms, geom)
	return nil
}

// Geometry returns the raw GeoJSON geometry for a row, nil when the
// row has none.
func (g *GeoFrame) Geometry(row int) json.RawMessage {
	if row < 0 || row >= len(g.geoms) {
		return nil
	}
	return g.geoms[row]
}

// FeatureCollection renders the GeoFrame as a GeoJSON
// FeatureCollection with one feature per row. Numeric columns are
// emitted as JSON numbers, everything else as strings. Rows without a
// geometry get "geometry": null.
func (g *GeoFrame) FeatureCollection() ([]byte, error) {
	type feature struct {
		Type       string          `json:"type"`
		Properties map[string]any  `json:"properties"`
		Geometry   json.RawMessage `json:"geometry"`
	}
	feats := make([]feature, 0, g.NumRows())
	for i := 0; i < g.NumRows(); i++ {
		props := make(map[string]any, g.NumCols())
		for _, c := range g.cols {
			v := g.Value(c, i)
			if g.IsNumeric(c) && v != "" {
				if n, err := strconv.ParseFloat(v, 64); err == nil {
					props[c] = n
					continue
				}
			}
			props[c] = v
		}
		geom := g.Geometry(i)
		if len(geom) == 0 {
			geom = json.RawMessage("null")
		}
		feats = append(feats, feature{Type: "Feature", Properties: props, Geometry: geom})
	}
	return json.Marshal(struct {
		Type     string    `json:"type"`
		Features []feature `json:"features"`
	}{Type: "FeatureCollection", Features: feats})
}

// NormalizeGEOID strips the summary-level prefix the census API puts
// in front of GEOIDs (e.g. "1600000US0644000" -> "0644000"). The
// prefix always ends in "US"; values without one pass through.
func NormalizeGEOID(s string) string {
	if i := strings.LastIndex(s, "US"); i >= 0 {
		return s[i+2:]
	}
	return s
}

// StripSharedPrefix removes the longest prefix common to every value.
// Handy for the junk prefixes on GEOID columns.
func StripSharedPrefix(values []string) []string {
	out := make([]string, len(values))
	if len(values) == 0 {
		return out
	}
	prefix := values[0]
	for _, v := range values[1:] {
		for !strings.HasPrefix(v, prefix) {
			prefix = prefix[:len(prefix)-1]
			if prefix == "" {
				copy(out, values)
				return out
			}
		}
	}
	for i, v := range values {
		out[i] = v[len(prefix):]
	}
	return out
}
