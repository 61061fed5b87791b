// Package config reads CLI configuration from the environment.
package config

import (
	"os"
	"path/filepath"
	"strconv"
)

type Config struct {
	LogLevel   string
	LogConsole bool

	CacheDir       string
	CensusCacheDir string
	TigerCacheDir  string

	Dataset string
	APIKey  string

	OGRPath  string
	Simplify float64

	// H3Res < 0 disables cell annotation of the merged output.
	H3Res int

	// MemoSize bounds the in-memory LRU of parsed query results.
	MemoSize int

	Addr string
}

func FromEnv() Config {
	cacheDir := getenv("CACHE_DIR", "cache")
	return Config{
		LogLevel:       getenv("LOG_LEVEL", "info"),
		LogConsole:     getbool("LOG_CONSOLE", false),
		CacheDir:       cacheDir,
		CensusCacheDir: getenv("CENSUS_CACHE_DIR", filepath.Join(cacheDir, "census")),
		TigerCacheDir:  getenv("TIGER_CACHE_DIR", filepath.Join(cacheDir, "tiger")),
		Dataset:        getenv("CENSUS_DATASET", "ACSProfile5Y2015"),
		APIKey:         getenv("CENSUS_API_KEY", ""),
		OGRPath:        getenv("OGR2OGR_PATH", "ogr2ogr"),
		Simplify:       getfloat("TIGER_SIMPLIFY", 0),
		H3Res:          getint("H3_RES", -1),
		MemoSize:       getint("QUERY_MEMO_SIZE", 32),
		Addr:           getenv("ADDR", ":8090"),
	}
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getint(k string, def int) int {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getfloat(k string, def float64) float64 {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.ParseFloat(v, 64); err == nil {
			return n
		}
	}
	return def
}

func getbool(k string, def bool) bool {
	if v := os.Getenv(k); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}
