// Package httpclient configures the HTTP client used against the
// census API and the boundary-file host.
package httpclient

import (
	"net"
	"net/http"
	"time"
)

// NewOutbound returns a client tuned for a handful of sequential
// downloads. The overall timeout is generous because boundary
// archives for detailed resolutions run tens of megabytes.
func NewOutbound() *http.Client {
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           (&net.Dialer{Timeout: 10 * time.Second, KeepAlive: 30 * time.Second}).DialContext,
		MaxIdleConns:          16,
		MaxIdleConnsPerHost:   4,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
	return &http.Client{
		Transport: transport,
		Timeout:   5 * time.Minute,
	}
}
