package tiger

import "fmt"

// RemoteError reports a failed archive download.
type RemoteError struct {
	URL     string
	Status  int
	Message string
}

func (e *RemoteError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("tiger fetch %s failed [%d]: %s", e.URL, e.Status, e.Message)
	}
	return fmt.Sprintf("tiger fetch %s failed [%d]", e.URL, e.Status)
}

// UnpackError reports a conversion that exited non-zero, produced no
// usable output, or output that could not be decoded.
type UnpackError struct {
	Reason string
	Output string
	Err    error
}

func (e *UnpackError) Error() string {
	msg := "tiger unpack: " + e.Reason
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	if e.Output != "" {
		msg += " [" + e.Output + "]"
	}
	return msg
}

func (e *UnpackError) Unwrap() error { return e.Err }
