package census

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
)

// fakeAPI stands in for the census API: catalog, variables document,
// and the query endpoint, with per-endpoint call counts.
type fakeAPI struct {
	mu           sync.Mutex
	catalogCalls int
	varsCalls    int
	queryCalls   int
	lastQuery    url.Values
	queryStatus  int
	queryBody    string
	srv          *httptest.Server
}

func newFakeAPI(t *testing.T) *fakeAPI {
	t.Helper()
	f := &fakeAPI{
		queryStatus: http.StatusOK,
		queryBody:   `[["DP05_0001E","GEOID","NAME"],["462257","1600000US0644000","Long Beach city, California"],["","1600000US0643000","Lancaster city, California"]]`,
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/data.json", func(w http.ResponseWriter, _ *http.Request) {
		f.mu.Lock()
		f.catalogCalls++
		f.mu.Unlock()
		fmt.Fprintf(w, `{"dataset":[
			{"identifier":"https://api.census.gov/data/id/OTHER","title":"other","distribution":[{"accessURL":"%s/query"}],"c_variablesLink":"%s/vars.json"},
			{"identifier":"https://api.census.gov/data/id/ACSProfile5Y2015","title":"ACS Profile 2015","distribution":[{"accessURL":"%s/query"}],"c_variablesLink":"%s/vars.json"}
		]}`, f.srv.URL, f.srv.URL, f.srv.URL, f.srv.URL)
	})
	mux.HandleFunc("/vars.json", func(w http.ResponseWriter, _ *http.Request) {
		f.mu.Lock()
		f.varsCalls++
		f.mu.Unlock()
		fmt.Fprint(w, `{"variables":{
			"DP05_0001E":{"label":"Total population","predicateType":"int"},
			"DP02_0001E":{"label":"Total households","predicateType":"int"},
			"NAME":{"label":"Geographic name"}
		}}`)
	})
	mux.HandleFunc("/query", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.queryCalls++
		f.lastQuery = r.URL.Query()
		status, body := f.queryStatus, f.queryBody
		f.mu.Unlock()
		w.WriteHeader(status)
		fmt.Fprint(w, body)
	})
	f.srv = httptest.NewServer(mux)
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakeAPI) counts() (catalog, vars, query int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.catalogCalls, f.varsCalls, f.queryCalls
}

func (f *fakeAPI) setQueryResponse(status int, body string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queryStatus = status
	f.queryBody = body
}

func newTestClient(t *testing.T, f *fakeAPI, dir string) *Client {
	t.Helper()
	c, err := New(context.Background(), dir, "ACSProfile5Y2015", "testkey",
		WithCatalogURL(f.srv.URL+"/data.json"),
		WithHTTPClient(f.srv.Client()))
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return c
}

func TestNew_DiscoveryIsCached(t *testing.T) {
	f := newFakeAPI(t)
	dir := t.TempDir()

	newTestClient(t, f, dir)
	catalog, vars, _ := f.counts()
	if catalog != 1 || vars != 1 {
		t.Fatalf("first construction: catalog=%d vars=%d, want 1/1", catalog, vars)
	}

	newTestClient(t, f, dir)
	catalog, vars, _ = f.counts()
	if catalog != 1 || vars != 1 {
		t.Fatalf("second construction should stay offline: catalog=%d vars=%d", catalog, vars)
	}
}

func TestQuery_SecondCallHitsCache(t *testing.T) {
	f := newFakeAPI(t)
	c := newTestClient(t, f, t.TempDir())
	ctx := context.Background()

	df1, err := c.Query(ctx, []string{"DP05_0001E"}, map[string]string{"place": "*"}, map[string]string{"state": "06"})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if _, _, q := f.counts(); q != 1 {
		t.Fatalf("first query: %d fetches, want 1", q)
	}
	if df1.NumRows() != 2 {
		t.Fatalf("rows = %d, want 2", df1.NumRows())
	}
	if !df1.HasColumn("DP05_0001E") || !df1.HasColumn("GEOID") || !df1.HasColumn("NAME") {
		t.Fatalf("missing columns, have %v", df1.Columns())
	}
	if !df1.IsNumeric("DP05_0001E") {
		t.Fatalf("int-predicate column should be numeric")
	}

	df2, err := c.Query(ctx, []string{"DP05_0001E"}, map[string]string{"place": "*"}, map[string]string{"state": "06"})
	if err != nil {
		t.Fatalf("repeat query: %v", err)
	}
	if _, _, q := f.counts(); q != 1 {
		t.Fatalf("repeat query fetched again (%d)", q)
	}
	if df2.NumRows() != df1.NumRows() {
		t.Fatalf("cached result differs: %d vs %d rows", df2.NumRows(), df1.NumRows())
	}
	for _, col := range df1.Columns() {
		a, _ := df1.Col(col)
		b, ok := df2.Col(col)
		if !ok || len(a) != len(b) {
			t.Fatalf("cached result missing column %q", col)
		}
		for i := range a {
			if a[i] != b[i] {
				t.Fatalf("cached result differs at %s[%d]: %q vs %q", col, i, a[i], b[i])
			}
		}
	}
}

func TestQuery_RequestShape(t *testing.T) {
	f := newFakeAPI(t)
	c := newTestClient(t, f, t.TempDir())

	_, err := c.Query(context.Background(), []string{"DP05_0001E"}, map[string]string{"place": "*"}, map[string]string{"state": "06"})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	f.mu.Lock()
	q := f.lastQuery
	f.mu.Unlock()
	if got := q.Get("get"); got != "DP05_0001E,GEOID,NAME" {
		t.Fatalf("get clause = %q", got)
	}
	if got := q.Get("for"); got != "place:*" {
		t.Fatalf("for clause = %q", got)
	}
	if got := q.Get("in"); got != "state:06" {
		t.Fatalf("in clause = %q", got)
	}
	if got := q.Get("key"); got != "testkey" {
		t.Fatalf("key = %q", got)
	}
}

func TestQuery_RemoteStatusError(t *testing.T) {
	f := newFakeAPI(t)
	c := newTestClient(t, f, t.TempDir())
	f.setQueryResponse(http.StatusInternalServerError, "boom")

	_, err := c.Query(context.Background(), []string{"DP05_0001E"}, map[string]string{"place": "*"}, nil)
	var re *RemoteError
	if !errors.As(err, &re) {
		t.Fatalf("want RemoteError, got %v", err)
	}
	if re.Status != http.StatusInternalServerError {
		t.Fatalf("status = %d", re.Status)
	}
}

func TestQuery_ErrorBodyIsRemoteErrorAndNotCached(t *testing.T) {
	f := newFakeAPI(t)
	c := newTestClient(t, f, t.TempDir())
	f.setQueryResponse(http.StatusOK, `{"error":"unknown variable"}`)

	for i := 1; i <= 2; i++ {
		_, err := c.Query(context.Background(), []string{"DP05_0001E"}, map[string]string{"place": "*"}, nil)
		var re *RemoteError
		if !errors.As(err, &re) {
			t.Fatalf("want RemoteError, got %v", err)
		}
		if !strings.Contains(re.Message, "unknown variable") {
			t.Fatalf("message = %q", re.Message)
		}
		if _, _, q := f.counts(); q != i {
			t.Fatalf("error bodies must not be cached: fetches=%d after call %d", q, i)
		}
	}
}

func TestQuery_WidthMismatchIsParseErrorWithoutRefetch(t *testing.T) {
	f := newFakeAPI(t)
	c := newTestClient(t, f, t.TempDir())
	f.setQueryResponse(http.StatusOK, `[["GEOID","NAME"],["only-one-cell"]]`)

	for i := 0; i < 2; i++ {
		_, err := c.Query(context.Background(), []string{"DP05_0001E"}, map[string]string{"place": "*"}, nil)
		var pe *ParseError
		if !errors.As(err, &pe) {
			t.Fatalf("want ParseError, got %v", err)
		}
	}
	// The malformed payload was persisted on first fetch; the retry
	// parses the cached bytes.
	if _, _, q := f.counts(); q != 1 {
		t.Fatalf("parse failure forced a re-fetch (%d)", q)
	}
}

func TestQuery_NoFields(t *testing.T) {
	f := newFakeAPI(t)
	c := newTestClient(t, f, t.TempDir())
	if _, err := c.Query(context.Background(), nil, map[string]string{"place": "*"}, nil); err == nil {
		t.Fatalf("empty field list should error")
	}
}

func TestSearchVars(t *testing.T) {
	f := newFakeAPI(t)
	c := newTestClient(t, f, t.TempDir())

	got, err := c.SearchVars(`^DP05`)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(got) != 1 || got[0] != "DP05_0001E" {
		t.Fatalf("search result = %v", got)
	}
	if _, err := c.SearchVars(`(`); err == nil {
		t.Fatalf("bad pattern should error")
	}

	vars := c.Vars([]string{"DP05_0001E", "NOPE"})
	if len(vars) != 1 || vars["DP05_0001E"].PredicateType != "int" {
		t.Fatalf("vars = %v", vars)
	}
}

func TestParseTable_Malformed(t *testing.T) {
	cases := []string{
		`not json`,
		`[]`,
		`[[1,2],["a","b"]]`,
	}
	for _, body := range cases {
		if _, err := parseTable([]byte(body)); err == nil {
			t.Errorf("parseTable(%q) should fail", body)
		}
	}
}

func TestParseTable_MixedCellTypes(t *testing.T) {
	f, err := parseTable([]byte(`[["GEOID","POP","OK"],["x",1600,true],["y",null,false]]`))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if got := f.Value("POP", 0); got != "1600" {
		t.Fatalf("numeric cell = %q", got)
	}
	if got := f.Value("POP", 1); got != "" {
		t.Fatalf("null cell = %q", got)
	}
	if got := f.Value("OK", 0); got != "true" {
		t.Fatalf("bool cell = %q", got)
	}
}
