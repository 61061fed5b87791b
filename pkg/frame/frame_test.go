package frame

import (
	"encoding/json"
	"testing"
)

func TestAppendRow_WidthMismatch(t *testing.T) {
	f := New([]string{"a", "b"})
	if err := f.AppendRow([]string{"1"}); err == nil {
		t.Fatalf("expected width mismatch error")
	}
	if err := f.AppendRow([]string{"1", "2"}); err != nil {
		t.Fatalf("append: %v", err)
	}
	if f.NumRows() != 1 {
		t.Fatalf("rows = %d, want 1", f.NumRows())
	}
}

func TestMarkNumeric(t *testing.T) {
	f := New([]string{"pop", "name"})
	for _, row := range [][]string{{"100", "a"}, {"", "b"}, {"250", "c"}} {
		if err := f.AppendRow(row); err != nil {
			t.Fatalf("append: %v", err)
		}
	}
	if err := f.MarkNumeric("pop"); err != nil {
		t.Fatalf("mark pop: %v", err)
	}
	if !f.IsNumeric("pop") {
		t.Fatalf("pop should be numeric")
	}
	if err := f.MarkNumeric("name"); err == nil {
		t.Fatalf("name should not validate as numeric")
	}
	vs, err := f.Numeric("pop")
	if err != nil {
		t.Fatalf("numeric: %v", err)
	}
	want := []float64{100, 0, 250}
	for i := range want {
		if vs[i] != want[i] {
			t.Fatalf("pop[%d] = %v, want %v", i, vs[i], want[i])
		}
	}
}

func TestNormalizeGEOID(t *testing.T) {
	cases := []struct{ in, want string }{
		{"1600000US0644000", "0644000"},
		{"0500000US06037", "06037"},
		{"06037", "06037"},
		{"", ""},
	}
	for _, c := range cases {
		if got := NormalizeGEOID(c.in); got != c.want {
			t.Errorf("NormalizeGEOID(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestStripSharedPrefix(t *testing.T) {
	got := StripSharedPrefix([]string{"XYZfo", "XYZbar", "XYZ"})
	want := []string{"fo", "bar", ""}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}

	got = StripSharedPrefix([]string{"abc", "xyz"})
	if got[0] != "abc" || got[1] != "xyz" {
		t.Fatalf("no shared prefix should pass values through, got %v", got)
	}
}

func TestFeatureCollection_NumericProperties(t *testing.T) {
	g := NewGeo([]string{"GEOID", "pop"})
	if err := g.AppendFeature([]string{"06037", "42"}, json.RawMessage(`{"type":"Point","coordinates":[1,2]}`)); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := g.AppendFeature([]string{"06038", "7"}, nil); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := g.MarkNumeric("pop"); err != nil {
		t.Fatalf("mark: %v", err)
	}

	doc, err := g.FeatureCollection()
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	var fc struct {
		Type     string `json:"type"`
		Features []struct {
			Properties map[string]any  `json:"properties"`
			Geometry   json.RawMessage `json:"geometry"`
		} `json:"features"`
	}
	if err := json.Unmarshal(doc, &fc); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if fc.Type != "FeatureCollection" || len(fc.Features) != 2 {
		t.Fatalf("unexpected collection shape: %s", doc)
	}
	if _, ok := fc.Features[0].Properties["pop"].(float64); !ok {
		t.Fatalf("pop should encode as a number, got %T", fc.Features[0].Properties["pop"])
	}
	if string(fc.Features[1].Geometry) != "null" {
		t.Fatalf("missing geometry should encode as null, got %s", fc.Features[1].Geometry)
	}
}
