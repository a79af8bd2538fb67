package http

import (
	"crypto/tls"
	"fmt"
	"net"
	nethttp "net/http"
	"net/url"
	"strconv"
	"strings"

	ntlmssp "github.com/Azure/go-ntlmssp"
	"golang.org/x/net/http/httpproxy"

	"github.com/cs2interlink/cs2-int/internal/config"
	"github.com/cs2interlink/cs2-int/internal/constants"
	"github.com/cs2interlink/cs2-int/internal/logging"
)

const defaultProxyPort = 8080

// ConfigureHTTPClient returns a client routed per [proxy]. An IPC server on
// this machine is always dialed directly.
func ConfigureHTTPClient(cfg *config.Config, log *logging.Logger) (*nethttp.Client, error) {
	if log == nil {
		log = logging.NewNopLogger()
	}

	tr := newTransport()
	px := cfg.Proxy
	mode := strings.ToLower(px.Mode)
	if cfg.IsLocal() {
		mode = "no-proxy"
	}

	switch mode {
	case "", "no-proxy":
	case "system":
		tr.Proxy = nethttp.ProxyFromEnvironment
	case "basic", "ntlm":
		if px.Host == "" {
			log.Warn().Str("mode", mode).Msg("Proxy host missing, connecting directly")
			break
		}
		if mode == "basic" && px.User != "" && px.Password == "" {
			log.Warn().Str("user", px.User).Msg("Proxy password missing, sending no credentials")
		}
		tr.Proxy = proxyFuncWithBypass(buildProxyURL(px), px.NoProxy, log)
		if mode == "ntlm" {
			return &nethttp.Client{Transport: ntlmssp.Negotiator{RoundTripper: tr}}, nil
		}
	default:
		return nil, fmt.Errorf("unsupported proxy mode: %s", px.Mode)
	}

	return &nethttp.Client{Transport: tr}, nil
}

// newTransport sizes the connection pool for a full batch of concurrent
// transfers against one IPC host.
func newTransport() *nethttp.Transport {
	dialer := &net.Dialer{
		Timeout:   constants.HTTPDialTimeout,
		KeepAlive: constants.HTTPDialKeepAlive,
	}
	return &nethttp.Transport{
		DialContext:           dialer.DialContext,
		TLSClientConfig:       &tls.Config{MinVersion: tls.VersionTLS12},
		MaxIdleConns:          constants.MaxConcurrency,
		MaxIdleConnsPerHost:   constants.MaxConcurrency,
		MaxConnsPerHost:       constants.MaxConcurrency,
		IdleConnTimeout:       constants.HTTPIdleConnTimeout,
		TLSHandshakeTimeout:   constants.HTTPTLSHandshakeTimeout,
		ExpectContinueTimeout: constants.HTTPExpectContinueTimeout,
	}
}

// buildProxyURL embeds credentials only when both user and password are set.
func buildProxyURL(px config.ProxyConfig) *url.URL {
	port := px.Port
	if port == 0 {
		port = defaultProxyPort
	}
	u := &url.URL{Scheme: "http", Host: net.JoinHostPort(px.Host, strconv.Itoa(port))}
	if px.User != "" && px.Password != "" {
		u.User = url.UserPassword(px.User, px.Password)
	}
	return u
}

// proxyFuncWithBypass sends every request through proxyURL except hosts
// matched by noProxy (domains, *.wildcards, CIDRs).
func proxyFuncWithBypass(proxyURL *url.URL, noProxy string, log *logging.Logger) func(*nethttp.Request) (*url.URL, error) {
	if noProxy == "" {
		return nethttp.ProxyURL(proxyURL)
	}
	match := (&httpproxy.Config{
		HTTPProxy:  proxyURL.String(),
		HTTPSProxy: proxyURL.String(),
		NoProxy:    noProxy,
	}).ProxyFunc()

	return func(req *nethttp.Request) (*url.URL, error) {
		u, err := match(req.URL)
		ev := log.Debug().Str("host", req.URL.Host)
		if u != nil {
			ev = ev.Str("proxy", u.Host)
		}
		ev.Bool("direct", u == nil).Msg("Proxy route")
		return u, err
	}
}

// NeedsProxyPassword reports whether an authenticating proxy has a user but
// no password, so the CLI should ask for one.
func NeedsProxyPassword(cfg *config.Config) bool {
	switch strings.ToLower(cfg.Proxy.Mode) {
	case "basic", "ntlm":
		return cfg.Proxy.User != "" && cfg.Proxy.Password == ""
	}
	return false
}
