package tiger

import (
	"context"
	"os/exec"
	"strconv"
	"strings"
)

// Unpacker converts an extracted shapefile into GeoJSON at dst. The
// caching logic in Downloader only depends on this interface, so a
// different conversion tool (or a native parser) can be swapped in.
type Unpacker interface {
	Unpack(ctx context.Context, src, dst string) error
}

// OGRUnpacker shells out to ogr2ogr (GDAL). The tool must be on PATH
// or addressed by an explicit path.
type OGRUnpacker struct {
	// Path to the binary; "ogr2ogr" when empty.
	Path string
	// Simplify is the geometry simplification tolerance; 0 disables.
	Simplify float64
}

func (u *OGRUnpacker) Unpack(ctx context.Context, src, dst string) error {
	bin := u.Path
	if bin == "" {
		bin = "ogr2ogr"
	}
	if _, err := exec.LookPath(bin); err != nil {
		return &UnpackError{Reason: bin + " not installed", Err: err}
	}

	args := []string{}
	if u.Simplify > 0 {
		args = append(args, "-simplify", strconv.FormatFloat(u.Simplify, 'f', -1, 64))
	}
	// crs:84 puts the output in plain lon/lat, which is what Leaflet
	// and friends want.
	args = append(args, "-f", "GeoJSON", "-t_srs", "crs:84", dst, src)

	out, err := exec.CommandContext(ctx, bin, args...).CombinedOutput()
	if err != nil {
		return &UnpackError{
			Reason: bin + " failed",
			Output: strings.TrimSpace(string(out)),
			Err:    err,
		}
	}
	return nil
}
