// Package http builds the HTTP clients used to reach the control-plane service.
package http

import (
	"crypto/tls"
	nethttp "net/http"
	"os"

	"golang.org/x/net/http2"

	"github.com/cs2interlink/cs2-int/internal/config"
	"github.com/cs2interlink/cs2-int/internal/logging"
)

// NewClient creates the shared client for service calls with proxy support.
//
// Key features:
//   - Proxy support (uses ConfigureHTTPClient as base)
//   - HTTP/2 for https service hosts, with a DISABLE_HTTP2 runtime toggle
//   - No overall timeout; each call bounds itself with its context
//
// If cfg is nil, a plain client is returned.
func NewClient(cfg *config.Config, log *logging.Logger) (*nethttp.Client, error) {
	if cfg == nil {
		return &nethttp.Client{}, nil
	}

	baseClient, err := ConfigureHTTPClient(cfg, log)
	if err != nil {
		return nil, err
	}

	tr, ok := baseClient.Transport.(*nethttp.Transport)
	if !ok {
		// NTLM wraps the transport; leave it as configured
		return baseClient, nil
	}

	tr.ForceAttemptHTTP2 = true
	_ = http2.ConfigureTransport(tr)

	// Proxies often break HTTP/2 multiplexing
	proxyActive := tr.Proxy != nil
	if os.Getenv("DISABLE_HTTP2") == "true" || (proxyActive && os.Getenv("FORCE_HTTP2") != "true") {
		tr.ForceAttemptHTTP2 = false
		tr.TLSNextProto = make(map[string]func(string, *tls.Conn) nethttp.RoundTripper)
	}

	baseClient.Transport = tr
	baseClient.Timeout = 0
	return baseClient, nil
}
