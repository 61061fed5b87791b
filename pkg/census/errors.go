package census

import "fmt"

// RemoteError reports a failed call to the census API: either a
// non-success HTTP status, or a 200 whose body carries a query-level
// error object.
type RemoteError struct {
	URL     string
	Status  int
	Message string
}

func (e *RemoteError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("census request %s failed [%d]: %s", e.URL, e.Status, e.Message)
	}
	return fmt.Sprintf("census request %s failed [%d]", e.URL, e.Status)
}

// ParseError reports a response body that could not be decoded into a
// tabular result.
type ParseError struct {
	Reason string
	Err    error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("census parse: %s: %v", e.Reason, e.Err)
	}
	return "census parse: " + e.Reason
}

func (e *ParseError) Unwrap() error { return e.Err }
