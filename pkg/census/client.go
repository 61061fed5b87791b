// Package census downloads tabular data from the Census API, with an
// on-disk cache of raw responses.
//
// Queries need an API key; see http://api.census.gov/data/key_signup.html
package census

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rs/zerolog"

	"github.com/joshleejosh/censusbuddy/internal/diskcache"
	"github.com/joshleejosh/censusbuddy/internal/httpclient"
	"github.com/joshleejosh/censusbuddy/internal/observability"
	"github.com/joshleejosh/censusbuddy/pkg/frame"
)

// DefaultCatalogURL lists every dataset the census API serves.
const DefaultCatalogURL = "https://api.census.gov/data.json"

const defaultMemoSize = 32

// Variable describes one queryable field of a dataset, as published
// by the dataset's variables document.
type Variable struct {
	Label         string `json:"label"`
	Concept       string `json:"concept"`
	PredicateType string `json:"predicateType"`
}

type dataset struct {
	Identifier    string `json:"identifier"`
	Title         string `json:"title"`
	Distribution  []struct {
		AccessURL string `json:"accessURL"`
	} `json:"distribution"`
	VariablesLink string `json:"c_variablesLink"`
}

// Client queries one census dataset. Construction resolves the
// dataset against the catalog and fetches its variable metadata; both
// documents are cached in the cache directory so later constructions
// stay offline.
type Client struct {
	log       zerolog.Logger
	http      *http.Client
	store     *diskcache.Store
	datasetID string
	apiKey    string
	catalog   string
	ds        *dataset
	vars      map[string]Variable
	memo      *lru.Cache[string, *frame.Frame]
}

type Option func(*Client)

func WithLogger(l zerolog.Logger) Option { return func(c *Client) { c.log = l } }

func WithHTTPClient(h *http.Client) Option { return func(c *Client) { c.http = h } }

// WithCatalogURL overrides the dataset catalog endpoint.
func WithCatalogURL(u string) Option { return func(c *Client) { c.catalog = u } }

// WithMemoSize bounds the in-memory LRU of parsed results. Zero
// disables the memo.
func WithMemoSize(n int) Option {
	return func(c *Client) {
		if n <= 0 {
			c.memo = nil
			return
		}
		c.memo, _ = lru.New[string, *frame.Frame](n)
	}
}

// New opens (or creates) the cache directory and resolves the dataset
// descriptor and variable metadata, from cache when present.
func New(ctx context.Context, cacheDir, datasetID, apiKey string, opts ...Option) (*Client, error) {
	store, err := diskcache.New(cacheDir)
	if err != nil {
		return nil, err
	}
	c := &Client{
		log:       zerolog.Nop(),
		http:      httpclient.NewOutbound(),
		store:     store,
		datasetID: datasetID,
		apiKey:    apiKey,
		catalog:   DefaultCatalogURL,
	}
	c.memo, _ = lru.New[string, *frame.Frame](defaultMemoSize)
	for _, o := range opts {
		o(c)
	}
	if err := c.loadDataset(ctx); err != nil {
		return nil, err
	}
	if err := c.loadVars(ctx); err != nil {
		return nil, err
	}
	return c, nil
}

// SearchVars returns the names of variables matching a regular
// expression, sorted.
func (c *Client) SearchVars(pattern string) ([]string, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("census: bad variable pattern: %w", err)
	}
	var out []string
	for name := range c.vars {
		if re.MatchString(name) {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out, nil
}

// Vars returns metadata for the given variable names; unknown names
// are skipped.
func (c *Client) Vars(ids []string) map[string]Variable {
	out := make(map[string]Variable, len(ids))
	for _, id := range ids {
		if v, ok := c.vars[id]; ok {
			out[id] = v
		}
	}
	return out
}

// Query fetches the given variables for the geographies selected by
// the for/in clauses. GEOID and NAME are always included. Identical
// queries are served from the on-disk cache (raw bytes re-parsed) or
// the in-memory memo without touching the network.
//
// The returned frame is shared with the memo; callers must not modify
// it.
func (c *Client) Query(ctx context.Context, fields []string, forClause, inClause map[string]string) (*frame.Frame, error) {
	if len(fields) == 0 {
		return nil, &ParseError{Reason: "no fields requested"}
	}

	get := append([]string{}, fields...)
	if !contains(get, frame.GEOIDColumn) {
		get = append(get, frame.GEOIDColumn)
	}
	if !contains(get, "NAME") {
		get = append(get, "NAME")
	}
	sort.Strings(get)

	params := url.Values{}
	params.Set("get", strings.Join(get, ","))
	params.Set("for", clauseString(forClause))
	if len(inClause) > 0 {
		params.Set("in", clauseString(inClause))
	}

	endpoint := c.ds.Distribution[0].AccessURL
	key := QueryKey(endpoint, params)

	if c.memo != nil {
		if f, ok := c.memo.Get(key); ok {
			c.log.Debug().Str("key", key).Msg("query results from memo")
			observability.IncCacheHit("census")
			return f, nil
		}
	}

	raw, hit, err := c.store.Get(key)
	if err != nil {
		return nil, err
	}
	if hit {
		c.log.Debug().Str("key", key).Msg("query results from cache")
		observability.IncCacheHit("census")
	} else {
		observability.IncCacheMiss("census")
		params.Set(apiKeyParam, c.apiKey)
		raw, err = c.fetch(ctx, endpoint, params)
		if err != nil {
			return nil, err
		}
		// Persist before parsing: a parse failure must not force a
		// re-fetch.
		if err := c.store.Put(key, raw); err != nil {
			return nil, err
		}
		c.log.Debug().Str("key", key).Int("bytes", len(raw)).Msg("query results cached")
	}

	f, err := parseTable(raw)
	if err != nil {
		return nil, err
	}
	c.convertNumeric(f, fields)
	if c.memo != nil {
		c.memo.Add(key, f)
	}
	return f, nil
}

func (c *Client) fetch(ctx context.Context, endpoint string, params url.Values) ([]byte, error) {
	u := endpoint + "?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("census: build request: %w", err)
	}
	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &RemoteError{URL: endpoint, Message: err.Error()}
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	observability.ObserveFetch("census", time.Since(start).Seconds())
	if err != nil {
		return nil, &RemoteError{URL: endpoint, Status: resp.StatusCode, Message: err.Error()}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &RemoteError{URL: endpoint, Status: resp.StatusCode, Message: strings.TrimSpace(string(body))}
	}
	// The request itself can succeed while the query fails; that comes
	// back as a 200 with an error object.
	if msg, ok := errorBody(body); ok {
		return nil, &RemoteError{URL: endpoint, Status: resp.StatusCode, Message: msg}
	}
	return body, nil
}

// errorBody detects the API's query-failure shape: a JSON object with
// an "error" member.
func errorBody(body []byte) (string, bool) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return "", false
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &obj); err != nil {
		return "", false
	}
	raw, ok := obj["error"]
	if !ok {
		return "", false
	}
	var msg string
	if err := json.Unmarshal(raw, &msg); err != nil {
		return strings.TrimSpace(string(raw)), true
	}
	return msg, true
}

// parseTable decodes the row-oriented array-of-arrays payload. The
// first row is the header; every data row must match its width.
func parseTable(raw []byte) (*frame.Frame, error) {
	var rows [][]any
	if err := json.Unmarshal(raw, &rows); err != nil {
		return nil, &ParseError{Reason: "malformed response body", Err: err}
	}
	if len(rows) == 0 {
		return nil, &ParseError{Reason: "response has no header row"}
	}
	header := make([]string, len(rows[0]))
	for i, cell := range rows[0] {
		s, ok := cell.(string)
		if !ok {
			return nil, &ParseError{Reason: fmt.Sprintf("header cell %d is not a string", i)}
		}
		header[i] = s
	}
	f := frame.New(header)
	for ri, row := range rows[1:] {
		if len(row) != len(header) {
			return nil, &ParseError{Reason: fmt.Sprintf("row %d has %d cells, header has %d", ri+1, len(row), len(header))}
		}
		values := make([]string, len(row))
		for i, cell := range row {
			values[i] = cellString(cell)
		}
		if err := f.AppendRow(values); err != nil {
			return nil, &ParseError{Reason: "append row", Err: err}
		}
	}
	return f, nil
}

func cellString(cell any) string {
	switch v := cell.(type) {
	case nil:
		return ""
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	default:
		return fmt.Sprint(v)
	}
}

// convertNumeric marks requested columns whose variable metadata
// declares an int predicate. A column that fails validation stays
// textual; that is worth a debug line, not a failed query.
func (c *Client) convertNumeric(f *frame.Frame, fields []string) {
	for _, id := range fields {
		v, ok := c.vars[id]
		if !ok || v.PredicateType != "int" {
			continue
		}
		if !f.HasColumn(id) {
			continue
		}
		if err := f.MarkNumeric(id); err != nil {
			c.log.Debug().Str("column", id).Err(err).Msg("numeric conversion skipped")
		}
	}
}

func (c *Client) loadDataset(ctx context.Context) error {
	key := c.datasetID + "_dataset.json"
	if raw, ok, err := c.store.Get(key); err != nil {
		return err
	} else if ok {
		var ds dataset
		if err := json.Unmarshal(raw, &ds); err == nil {
			c.ds = &ds
			c.log.Debug().Str("title", ds.Title).Msg("dataset from cache")
			return nil
		}
		// Unreadable cached descriptor: fall through and re-fetch.
	}

	body, err := c.get(ctx, c.catalog)
	if err != nil {
		return err
	}
	var catalog struct {
		Dataset []dataset `json:"dataset"`
	}
	if err := json.Unmarshal(body, &catalog); err != nil {
		return &ParseError{Reason: "malformed dataset catalog", Err: err}
	}
	for i := range catalog.Dataset {
		if strings.Contains(catalog.Dataset[i].Identifier, c.datasetID) {
			c.ds = &catalog.Dataset[i]
			break
		}
	}
	if c.ds == nil {
		return &ParseError{Reason: fmt.Sprintf("dataset %q not found in catalog", c.datasetID)}
	}
	if len(c.ds.Distribution) == 0 || c.ds.Distribution[0].AccessURL == "" {
		return &ParseError{Reason: fmt.Sprintf("dataset %q has no access URL", c.datasetID)}
	}
	enc, err := json.Marshal(c.ds)
	if err != nil {
		return fmt.Errorf("census: encode dataset descriptor: %w", err)
	}
	if err := c.store.Put(key, enc); err != nil {
		return err
	}
	c.log.Debug().Str("title", c.ds.Title).Msg("dataset resolved")
	return nil
}

func (c *Client) loadVars(ctx context.Context) error {
	key := c.datasetID + "_vars.json"
	if raw, ok, err := c.store.Get(key); err != nil {
		return err
	} else if ok {
		if err := json.Unmarshal(raw, &c.vars); err == nil {
			c.log.Debug().Int("vars", len(c.vars)).Msg("vars from cache")
			return nil
		}
	}

	body, err := c.get(ctx, c.ds.VariablesLink)
	if err != nil {
		return err
	}
	var doc struct {
		Variables map[string]Variable `json:"variables"`
	}
	if err := json.Unmarshal(body, &doc); err != nil {
		return &ParseError{Reason: "malformed variables document", Err: err}
	}
	c.vars = doc.Variables
	enc, err := json.Marshal(c.vars)
	if err != nil {
		return fmt.Errorf("census: encode vars: %w", err)
	}
	if err := c.store.Put(key, enc); err != nil {
		return err
	}
	c.log.Debug().Int("vars", len(c.vars)).Msg("vars resolved")
	return nil
}

// get is the plain fetch used for the catalog and variables documents.
func (c *Client) get(ctx context.Context, u string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("census: build request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &RemoteError{URL: u, Message: err.Error()}
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &RemoteError{URL: u, Status: resp.StatusCode, Message: err.Error()}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &RemoteError{URL: u, Status: resp.StatusCode}
	}
	return body, nil
}

// clauseString formats a for/in clause as space-joined k:v pairs in
// key order, e.g. {"state":"06"} -> "state:06".
func clauseString(clause map[string]string) string {
	keys := make([]string, 0, len(clause))
	for k := range clause {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+":"+clause[k])
	}
	return strings.Join(parts, " ")
}

func contains(ss []string, s string) bool {
	for _, v := range ss {
		if v == s {
			return true
		}
	}
	return false
}
