package config

import (
	"path/filepath"
	"testing"
)

func TestFromEnv_Defaults(t *testing.T) {
	cfg := FromEnv()
	if cfg.CacheDir != "cache" {
		t.Fatalf("CacheDir = %q", cfg.CacheDir)
	}
	if cfg.CensusCacheDir != filepath.Join("cache", "census") {
		t.Fatalf("CensusCacheDir = %q", cfg.CensusCacheDir)
	}
	if cfg.H3Res != -1 {
		t.Fatalf("H3Res = %d, want disabled", cfg.H3Res)
	}
	if cfg.OGRPath != "ogr2ogr" {
		t.Fatalf("OGRPath = %q", cfg.OGRPath)
	}
}

func TestFromEnv_Overrides(t *testing.T) {
	t.Setenv("CACHE_DIR", "/tmp/cb")
	t.Setenv("TIGER_CACHE_DIR", "/tmp/elsewhere")
	t.Setenv("TIGER_SIMPLIFY", "0.002")
	t.Setenv("H3_RES", "7")
	t.Setenv("LOG_CONSOLE", "true")

	cfg := FromEnv()
	if cfg.CensusCacheDir != filepath.Join("/tmp/cb", "census") {
		t.Fatalf("CensusCacheDir = %q", cfg.CensusCacheDir)
	}
	if cfg.TigerCacheDir != "/tmp/elsewhere" {
		t.Fatalf("TigerCacheDir = %q", cfg.TigerCacheDir)
	}
	if cfg.Simplify != 0.002 {
		t.Fatalf("Simplify = %v", cfg.Simplify)
	}
	if cfg.H3Res != 7 || !cfg.LogConsole {
		t.Fatalf("H3Res = %d LogConsole = %v", cfg.H3Res, cfg.LogConsole)
	}
}
