package census

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// apiKeyParam is excluded from cache keys so rotating the credential
// does not bust the cache.
const apiKeyParam = "key"

// QueryKey derives the on-disk cache filename for a request. The key
// is a pure function of the endpoint and the canonical (sorted,
// key-less) parameter encoding: a readable, truncated slug plus an
// xxhash64 of the full canonical form, so distinct requests never
// collide even when the slug is truncated.
func QueryKey(endpoint string, params url.Values) string {
	canon := make(url.Values, len(params))
	for k, vs := range params {
		if k == apiKeyParam {
			continue
		}
		canon[k] = vs
	}
	// url.Values.Encode sorts by key.
	full := endpoint + "?" + canon.Encode()

	slug := sanitizeForFilename(full)
	const maxSlugLen = 120
	if len(slug) > maxSlugLen {
		slug = slug[:maxSlugLen]
	}

	sum := xxhash.Sum64String(full)
	return fmt.Sprintf("qc_%s-%016x.json", slug, sum)
}

// sanitizeForFilename maps a URL to a filesystem-safe slug: alphanums
// pass through, whitespace becomes '_', everything else '-', runs of
// separators collapse.
func sanitizeForFilename(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	var prev rune
	for _, r := range s {
		out := rune('-')
		switch {
		case r == ' ' || r == '\t' || r == '\n' || r == '\r':
			out = '_'
		case isAlphaNum(r) || r == '_' || r == '-' || r == '.':
			out = r
		}
		if (out == '_' || out == '-') && out == prev {
			continue
		}
		b.WriteRune(out)
		prev = out
	}
	return strings.Trim(b.String(), "-_")
}

func isAlphaNum(r rune) bool {
	return (r >= 'a' && r <= 'z') ||
		(r >= 'A' && r <= 'Z') ||
		(r >= '0' && r <= '9')
}
