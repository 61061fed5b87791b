package frame

import (
	"encoding/json"
	"fmt"
)

// JoinError reports inputs that cannot be joined at all: one side is
// missing the GEOID column. Disjoint key values are NOT a JoinError;
// they produce an empty result.
type JoinError struct {
	Reason string
}

func (e *JoinError) Error() string { return "join: " + e.Reason }

type joinOptions struct {
	left bool
}

type JoinOption func(*joinOptions)

// LeftJoin keeps every row of the tabular input; rows without a
// matching boundary get empty values and a nil geometry.
func LeftJoin() JoinOption {
	return func(o *joinOptions) { o.left = true }
}

// Join matches rows of a census frame against a tiger GeoFrame on
// GEOID. Census GEOIDs are normalized (summary-level prefix stripped)
// before matching; the inputs are not modified.
//
// The default is an INNER join: census rows with no boundary match are
// silently dropped. Pass LeftJoin to keep them instead.
//
// When both sides carry a column of the same name (NAME, usually), the
// tiger side wins and the census copy is dropped.
func Join(tab *Frame, geo *GeoFrame, opts ...JoinOption) (*GeoFrame, error) {
	var o joinOptions
	for _, opt := range opts {
		opt(&o)
	}

	if !tab.HasColumn(GEOIDColumn) {
		return nil, &JoinError{Reason: fmt.Sprintf("tabular input has no %s column", GEOIDColumn)}
	}
	if !geo.HasColumn(GEOIDColumn) {
		return nil, &JoinError{Reason: fmt.Sprintf("geo input has no %s column", GEOIDColumn)}
	}

	// Output layout: census columns that don't collide, in census
	// order, then every tiger column in tiger order.
	geoCols := geo.Columns()
	collide := make(map[string]struct{}, len(geoCols))
	for _, c := range geoCols {
		collide[c] = struct{}{}
	}
	var keepTab []string
	for _, c := range tab.Columns() {
		if _, ok := collide[c]; !ok {
			keepTab = append(keepTab, c)
		}
	}
	outCols := append(append([]string{}, keepTab...), geoCols...)
	out := NewGeo(outCols)
	for _, c := range outCols {
		if tab.IsNumeric(c) || geo.IsNumeric(c) {
			out.numeric[c] = struct{}{}
		}
	}

	// Index tiger rows by GEOID. Duplicate keys keep every row, like a
	// relational join would.
	geoIDs, _ := geo.Col(GEOIDColumn)
	index := make(map[string][]int, len(geoIDs))
	for i, id := range geoIDs {
		index[id] = append(index[id], i)
	}

	tabIDs, _ := tab.Col(GEOIDColumn)
	for ti, raw := range tabIDs {
		id := NormalizeGEOID(raw)
		matches, ok := index[id]
		if !ok {
			if !o.left {
				continue
			}
			row := make([]string, 0, len(outCols))
			for _, c := range keepTab {
				row = append(row, tab.Value(c, ti))
			}
			for _, c := range geoCols {
				if c == GEOIDColumn {
					row = append(row, id)
				} else {
					row = append(row, "")
				}
			}
			if err := out.AppendFeature(row, nil); err != nil {
				return nil, err
			}
			continue
		}
		for _, gi := range matches {
			row := make([]string, 0, len(outCols))
			for _, c := range keepTab {
				row = append(row, tab.Value(c, ti))
			}
			for _, c := range geoCols {
				row = append(row, geo.Value(c, gi))
			}
			var geom json.RawMessage
			if g := geo.Geometry(gi); len(g) > 0 {
				geom = append(json.RawMessage{}, g...)
			}
			if err := out.AppendFeature(row, geom); err != nil {
				return nil, err
			}
		}
	}
	return out, nil
}
