// Command censusbuddy fetches census statistics and TIGER boundary
// files for a geography, merges them on GEOID, and writes (or serves)
// the result as GeoJSON.
//
// Example:
//
//	CENSUS_API_KEY=... censusbuddy \
//	    --fields DP05_0001E,DP05_0001M \
//	    --state CA --entity place --year 2015 --resolution 500k
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	flag "github.com/spf13/pflag"

	"github.com/joshleejosh/censusbuddy/internal/config"
	"github.com/joshleejosh/censusbuddy/internal/logger"
	"github.com/joshleejosh/censusbuddy/internal/observability"
	"github.com/joshleejosh/censusbuddy/internal/server"
	"github.com/joshleejosh/censusbuddy/pkg/census"
	"github.com/joshleejosh/censusbuddy/pkg/frame"
	"github.com/joshleejosh/censusbuddy/pkg/geo"
	"github.com/joshleejosh/censusbuddy/pkg/tiger"
)

var Version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	// .env is optional; real env wins either way.
	_ = godotenv.Load()

	fields := flag.StringSlice("fields", nil, "census variables to fetch")
	statePat := flag.String("state", "", "state FIPS code, postal code, or name")
	entity := flag.String("entity", "place", "TIGER entity (place, county, cousub, ...)")
	year := flag.Int("year", 2015, "boundary file year")
	resolution := flag.String("resolution", "500k", "boundary resolution (500k, 5m, 20m)")
	forClause := flag.String("for", "", "explicit for clause as k:v pairs, comma separated")
	inClause := flag.String("in", "", "explicit in clause as k:v pairs, comma separated")
	leftJoin := flag.Bool("left-join", false, "keep census rows with no boundary match")
	out := flag.String("out", "merged.geojson", "output path for the merged FeatureCollection")
	serveAddr := flag.String("serve", "", "serve the merged document on this address instead of exiting")
	flag.Parse()

	cfg := config.FromEnv()
	log := logger.Build(logger.Config{
		Level:     cfg.LogLevel,
		Console:   cfg.LogConsole,
		Component: "censusbuddy",
	}, os.Stderr)
	observability.ExposeBuildInfo(Version)

	if len(*fields) == 0 {
		log.Error().Msg("--fields is required")
		return 2
	}
	if cfg.APIKey == "" {
		log.Error().Msg("CENSUS_API_KEY is not set; see http://api.census.gov/data/key_signup.html")
		return 2
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	stateFIPS := ""
	if *statePat != "" {
		fips, err := geo.StateFIPS(*statePat)
		if err != nil {
			log.Error().Err(err).Msg("state lookup failed")
			return 1
		}
		stateFIPS = fips
	}

	forMap, err := parseClause(*forClause)
	if err != nil {
		log.Error().Err(err).Msg("bad --for clause")
		return 2
	}
	inMap, err := parseClause(*inClause)
	if err != nil {
		log.Error().Err(err).Msg("bad --in clause")
		return 2
	}
	if len(forMap) == 0 {
		// Default to every unit of the requested entity within the
		// state, e.g. --entity place --state CA.
		name, err := geo.EntityToCensus(*entity)
		if err != nil {
			log.Error().Err(err).Msg("entity lookup failed")
			return 1
		}
		forMap = map[string]string{name: "*"}
		if stateFIPS != "" {
			inMap = map[string]string{"state": stateFIPS}
		}
	}

	cen, err := census.New(ctx, cfg.CensusCacheDir, cfg.Dataset, cfg.APIKey,
		census.WithLogger(log), census.WithMemoSize(cfg.MemoSize))
	if err != nil {
		log.Error().Err(err).Msg("census client init failed")
		return 1
	}
	cendf, err := cen.Query(ctx, *fields, forMap, inMap)
	if err != nil {
		log.Error().Err(err).Msg("census query failed")
		return 1
	}
	log.Info().Int("rows", cendf.NumRows()).Int("cols", cendf.NumCols()).Msg("census query done")

	tig, err := tiger.New(cfg.TigerCacheDir,
		tiger.WithLogger(log),
		tiger.WithUnpacker(&tiger.OGRUnpacker{Path: cfg.OGRPath, Simplify: cfg.Simplify}))
	if err != nil {
		log.Error().Err(err).Msg("tiger downloader init failed")
		return 1
	}
	geodf, err := tig.Query(ctx, *year, stateFIPS, *entity, *resolution)
	if err != nil {
		log.Error().Err(err).Msg("tiger query failed")
		return 1
	}
	log.Info().Int("rows", geodf.NumRows()).Msg("tiger query done")

	var joinOpts []frame.JoinOption
	if *leftJoin {
		joinOpts = append(joinOpts, frame.LeftJoin())
	}
	merged, err := frame.Join(cendf, geodf, joinOpts...)
	if err != nil {
		log.Error().Err(err).Msg("merge failed")
		return 1
	}
	log.Info().Int("rows", merged.NumRows()).Msg("merged")

	if cfg.H3Res >= 0 {
		if err := frame.AnnotateH3(merged, cfg.H3Res); err != nil {
			log.Error().Err(err).Msg("h3 annotation failed")
			return 1
		}
	}

	doc, err := merged.FeatureCollection()
	if err != nil {
		log.Error().Err(err).Msg("encode merged output failed")
		return 1
	}
	if err := os.WriteFile(*out, doc, 0o644); err != nil {
		log.Error().Err(err).Msg("write merged output failed")
		return 1
	}
	log.Info().Str("path", *out).Int("bytes", len(doc)).Msg("wrote merged output")

	if *serveAddr != "" {
		if err := server.Run(ctx, *serveAddr, log, doc); err != nil {
			log.Error().Err(err).Msg("server failed")
			return 1
		}
	}
	return 0
}

// parseClause turns "state:06,county:037" into a map.
func parseClause(s string) (map[string]string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	out := map[string]string{}
	for _, part := range strings.Split(s, ",") {
		k, v, ok := strings.Cut(strings.TrimSpace(part), ":")
		if !ok || k == "" {
			return nil, fmt.Errorf("bad clause element %q (want k:v)", part)
		}
		out[k] = v
	}
	return out, nil
}
