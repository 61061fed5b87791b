package tiger

import (
	"encoding/json"
	"sort"
	"strconv"

	"github.com/joshleejosh/censusbuddy/pkg/frame"
)

type geoFeature struct {
	Properties map[string]json.RawMessage `json:"properties"`
	Geometry   json.RawMessage            `json:"geometry"`
}

type featureCollection struct {
	Type     string       `json:"type"`
	Features []geoFeature `json:"features"`
}

// parseGeoJSON turns a FeatureCollection into a GeoFrame: one column
// per property name seen across features (sorted), one geometry per
// row. Properties missing from a feature come through as "".
func parseGeoJSON(raw []byte) (*frame.GeoFrame, error) {
	var fc featureCollection
	if err := json.Unmarshal(raw, &fc); err != nil {
		return nil, &UnpackError{Reason: "decode geojson", Err: err}
	}
	if fc.Type != "FeatureCollection" {
		return nil, &UnpackError{Reason: "output is not a FeatureCollection"}
	}

	var cols []string
	seen := map[string]struct{}{}
	for _, ft := range fc.Features {
		for name := range ft.Properties {
			if _, ok := seen[name]; !ok {
				seen[name] = struct{}{}
				cols = append(cols, name)
			}
		}
	}
	// Map iteration order is random; fix the column order.
	sort.Strings(cols)

	g := frame.NewGeo(cols)
	for _, ft := range fc.Features {
		row := make([]string, len(cols))
		for i, c := range cols {
			if raw, ok := ft.Properties[c]; ok {
				row[i] = propString(raw)
			}
		}
		if err := g.AppendFeature(row, ft.Geometry); err != nil {
			return nil, &UnpackError{Reason: "assemble frame", Err: err}
		}
	}
	return g, nil
}

func propString(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var n float64
	if err := json.Unmarshal(raw, &n); err == nil {
		return strconv.FormatFloat(n, 'f', -1, 64)
	}
	var b bool
	if err := json.Unmarshal(raw, &b); err == nil {
		return strconv.FormatBool(b)
	}
	if string(raw) == "null" {
		return ""
	}
	return string(raw)
}
