// Package tiger downloads Cartographic Boundary shapefile bundles
// from the census geography host, caches them on disk, and converts
// them to GeoJSON through an external tool.
package tiger

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/mholt/archiver"
	"github.com/rs/zerolog"

	"github.com/joshleejosh/censusbuddy/internal/diskcache"
	"github.com/joshleejosh/censusbuddy/internal/httpclient"
	"github.com/joshleejosh/censusbuddy/internal/observability"
	"github.com/joshleejosh/censusbuddy/pkg/frame"
)

// DefaultBaseURL is the HTTP root of the TIGER file tree.
const DefaultBaseURL = "https://www2.census.gov/geo/tiger"

// contentType selects Cartographic Boundary files, as opposed to "tl"
// for TIGER/Line.
const contentType = "cb"

// Downloader fetches and unpacks boundary bundles. Both the raw zip
// and the converted GeoJSON live in the cache directory, so a repeat
// query touches neither the network nor the conversion tool.
type Downloader struct {
	log      zerolog.Logger
	http     *http.Client
	store    *diskcache.Store
	baseURL  string
	unpacker Unpacker
}

type Option func(*Downloader)

func WithLogger(l zerolog.Logger) Option { return func(d *Downloader) { d.log = l } }

func WithHTTPClient(h *http.Client) Option { return func(d *Downloader) { d.http = h } }

// WithBaseURL overrides the TIGER file host.
func WithBaseURL(u string) Option { return func(d *Downloader) { d.baseURL = u } }

// WithUnpacker substitutes the conversion step.
func WithUnpacker(u Unpacker) Option { return func(d *Downloader) { d.unpacker = u } }

func New(cacheDir string, opts ...Option) (*Downloader, error) {
	store, err := diskcache.New(cacheDir)
	if err != nil {
		return nil, err
	}
	d := &Downloader{
		log:      zerolog.Nop(),
		http:     httpclient.NewOutbound(),
		store:    store,
		baseURL:  DefaultBaseURL,
		unpacker: &OGRUnpacker{},
	}
	for _, o := range opts {
		o(d)
	}
	return d, nil
}

// Basename builds the bundle's filename stem, e.g.
// cb_2015_06_place_500k. State is a FIPS code or "us" for national
// files; resolution is one of 500k, 5m, 20m.
func Basename(year int, state, entity, resolution string) string {
	return fmt.Sprintf("%s_%d_%s_%s_%s", contentType, year, state, entity, resolution)
}

// ArchiveURL builds the bundle's download URL.
func (d *Downloader) ArchiveURL(year int, state, entity, resolution string) string {
	return fmt.Sprintf("%s/GENZ%d/shp/%s.zip", d.baseURL, year, Basename(year, state, entity, resolution))
}

// Query runs the fetch -> unpack sequence for one bundle and parses
// the resulting GeoJSON. Cached artifacts short-circuit each step.
func (d *Downloader) Query(ctx context.Context, year int, state, entity, resolution string) (*frame.GeoFrame, error) {
	basename := Basename(year, state, entity, resolution)
	jsonKey := basename + ".geojson"

	if raw, ok, err := d.store.Get(jsonKey); err != nil {
		return nil, err
	} else if ok {
		d.log.Debug().Str("key", jsonKey).Msg("geojson from cache, skipping conversion")
		observability.IncCacheHit("tiger")
		return parseGeoJSON(raw)
	}
	observability.IncCacheMiss("tiger")

	if err := d.fetch(ctx, year, state, entity, resolution); err != nil {
		return nil, err
	}
	raw, err := d.unpack(ctx, basename)
	if err != nil {
		return nil, err
	}
	if err := d.store.Put(jsonKey, raw); err != nil {
		return nil, err
	}
	return parseGeoJSON(raw)
}

// fetch downloads the zip unless it is already cached.
func (d *Downloader) fetch(ctx context.Context, year int, state, entity, resolution string) error {
	zipKey := Basename(year, state, entity, resolution) + ".zip"
	if d.store.Has(zipKey) {
		d.log.Debug().Str("key", zipKey).Msg("zip exists, skipping download")
		return nil
	}

	u := d.ArchiveURL(year, state, entity, resolution)
	d.log.Info().Str("url", u).Msg("fetching boundary archive")
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("tiger: build request: %w", err)
	}
	start := time.Now()
	resp, err := d.http.Do(req)
	if err != nil {
		return &RemoteError{URL: u, Message: err.Error()}
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return &RemoteError{URL: u, Status: resp.StatusCode}
	}
	body, err := io.ReadAll(resp.Body)
	observability.ObserveFetch("tiger", time.Since(start).Seconds())
	if err != nil {
		return &RemoteError{URL: u, Status: resp.StatusCode, Message: err.Error()}
	}
	return d.store.Put(zipKey, body)
}

// unpack extracts the cached zip into a temp dir, runs the conversion
// tool against the shapefile, and returns the GeoJSON bytes.
func (d *Downloader) unpack(ctx context.Context, basename string) ([]byte, error) {
	tempdir, err := os.MkdirTemp("", "tiger-unpack-*")
	if err != nil {
		return nil, &UnpackError{Reason: "create temp dir", Err: err}
	}
	defer os.RemoveAll(tempdir)

	zipPath := d.store.Path(basename + ".zip")
	if err := archiver.NewZip().Unarchive(zipPath, tempdir); err != nil {
		return nil, &UnpackError{Reason: "extract " + zipPath, Err: err}
	}

	src := filepath.Join(tempdir, basename+".shp")
	dst := filepath.Join(tempdir, basename+".geojson")
	start := time.Now()
	if err := d.unpacker.Unpack(ctx, src, dst); err != nil {
		return nil, err
	}
	observability.ObserveUnpack(time.Since(start).Seconds())

	raw, err := os.ReadFile(dst)
	if err != nil {
		return nil, &UnpackError{Reason: "conversion produced no output", Err: err}
	}
	if len(raw) == 0 {
		return nil, &UnpackError{Reason: "conversion produced empty output"}
	}
	d.log.Debug().Int("bytes", len(raw)).Msg("converted")
	return raw, nil
}
