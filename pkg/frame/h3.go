package frame

import (
	"encoding/json"
	"fmt"

	h3 "github.com/uber/h3-go/v4"
)

// H3Column is added by AnnotateH3.
const H3Column = "H3"

// AnnotateH3 adds an H3 cell index column at the given resolution,
// computed from each feature's centroid. Rows without a geometry get
// an empty cell. Useful for bucketing merged features before handing
// them to a tile or cache layer.
func AnnotateH3(g *GeoFrame, res int) error {
	if g.HasColumn(H3Column) {
		return fmt.Errorf("h3: column %q already present", H3Column)
	}
	cells := make([]string, g.NumRows())
	for i := 0; i < g.NumRows(); i++ {
		raw := g.Geometry(i)
		if len(raw) == 0 {
			continue
		}
		lat, lng, err := centroid(raw)
		if err != nil {
			return fmt.Errorf("h3: row %d: %w", i, err)
		}
		cell, err := h3.LatLngToCell(h3.LatLng{Lat: lat, Lng: lng}, res)
		if err != nil {
			return fmt.Errorf("h3: row %d: %w", i, err)
		}
		cells[i] = cell.String()
	}
	return g.AddColumn(H3Column, cells)
}

type geomEnvelope struct {
	Type        string          `json:"type"`
	Coordinates json.RawMessage `json:"coordinates"`
}

// centroid computes a vertex-mean centroid of a GeoJSON geometry.
// Good enough for cell assignment; not an area-weighted centroid.
func centroid(raw json.RawMessage) (lat, lng float64, err error) {
	var env geomEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return 0, 0, fmt.Errorf("decode geometry: %w", err)
	}
	var sumLat, sumLng float64
	var n int
	add := func(ring [][]float64) {
		for _, xy := range ring {
			if len(xy) < 2 {
				continue
			}
			sumLng += xy[0]
			sumLat += xy[1]
			n++
		}
	}
	switch env.Type {
	case "Point":
		var pt []float64
		if err := json.Unmarshal(env.Coordinates, &pt); err != nil {
			return 0, 0, fmt.Errorf("decode point: %w", err)
		}
		add([][]float64{pt})
	case "Polygon":
		var rings [][][]float64
		if err := json.Unmarshal(env.Coordinates, &rings); err != nil {
			return 0, 0, fmt.Errorf("decode polygon: %w", err)
		}
		if len(rings) > 0 {
			add(rings[0])
		}
	case "MultiPolygon":
		var polys [][][][]float64
		if err := json.Unmarshal(env.Coordinates, &polys); err != nil {
			return 0, 0, fmt.Errorf("decode multipolygon: %w", err)
		}
		for _, rings := range polys {
			if len(rings) > 0 {
				add(rings[0])
			}
		}
	default:
		return 0, 0, fmt.Errorf("unsupported geometry type %q", env.Type)
	}
	if n == 0 {
		return 0, 0, fmt.Errorf("geometry has no coordinates")
	}
	return sumLat / float64(n), sumLng / float64(n), nil
}
