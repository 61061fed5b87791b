// Package geo looks up and cross-references geographic reference
// labels: state FIPS codes and TIGER-entity to census-geography
// names. The reference tables are embedded; county and subdivision
// tables are too large to vendor and are not included.
package geo

import (
	_ "embed"
	"encoding/csv"
	"fmt"
	"regexp"
	"strings"
	"sync"
)

//go:embed data/fips_state.csv
var fipsStateCSV string

//go:embed data/geo_xref.csv
var geoXrefCSV string

// LookupError reports a reference key with no match.
type LookupError struct {
	Kind string
	Key  string
}

func (e *LookupError) Error() string {
	return fmt.Sprintf("geo: no %s matching %q", e.Kind, e.Key)
}

type stateRow struct {
	fips   string
	postal string
	name   string
}

var (
	loadOnce  sync.Once
	states    []stateRow
	postalFor map[string]string
	xref      map[string]string
)

func load() {
	loadOnce.Do(func() {
		postalFor = make(map[string]string)
		for _, rec := range mustCSV(fipsStateCSV) {
			row := stateRow{fips: rec[0], postal: rec[1], name: rec[2]}
			states = append(states, row)
			postalFor[row.fips] = row.postal
		}
		xref = make(map[string]string)
		for _, rec := range mustCSV(geoXrefCSV) {
			xref[rec[0]] = rec[1]
		}
	})
}

// mustCSV parses an embedded table, skipping the header row. The data
// is compiled in, so a parse failure is a build defect.
func mustCSV(data string) [][]string {
	recs, err := csv.NewReader(strings.NewReader(data)).ReadAll()
	if err != nil {
		panic("geo: embedded table corrupt: " + err.Error())
	}
	return recs[1:]
}

// StateFIPS finds the FIPS code for a state. The pattern matches
// case-insensitively against the code, postal abbreviation, or name,
// anchored at the start, and may be a partial name or a regular
// expression. With multiple matches the first (in FIPS order) wins.
func StateFIPS(pattern string) (string, error) {
	load()
	re, err := regexp.Compile("(?i)^(?:" + pattern + ")")
	if err != nil {
		return "", fmt.Errorf("geo: bad state pattern: %w", err)
	}
	for _, row := range states {
		if re.MatchString(row.fips) || re.MatchString(row.postal) || re.MatchString(row.name) {
			return row.fips, nil
		}
	}
	return "", &LookupError{Kind: "state", Key: pattern}
}

// FIPSState returns the 2-letter postal code for a state FIPS code.
func FIPSState(fips string) (string, error) {
	load()
	if postal, ok := postalFor[fips]; ok {
		return postal, nil
	}
	return "", &LookupError{Kind: "state fips", Key: fips}
}

// EntityToCensus maps a TIGER file entity code to the census API's
// geography name, e.g. "cousub" -> "county subdivision".
func EntityToCensus(entity string) (string, error) {
	load()
	if name, ok := xref[entity]; ok {
		return name, nil
	}
	return "", &LookupError{Kind: "entity", Key: entity}
}
