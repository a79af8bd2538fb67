package http

import (
	nethttp "net/http"
	"net/url"
	"testing"

	ntlmssp "github.com/Azure/go-ntlmssp"

	"github.com/cs2interlink/cs2-int/internal/config"
	"github.com/cs2interlink/cs2-int/internal/logging"
)

func TestProxyBypass(t *testing.T) {
	proxy := &url.URL{Scheme: "http", Host: "proxy.lan:3128"}

	tests := []struct {
		name    string
		noProxy string
		target  string
		direct  bool
	}{
		{"no bypass list", "", "http://asf.example.net:1242/Api/Bot", false},
		{"wildcard subdomain", "*.example.net", "http://asf.example.net:1242/Api/Bot", true},
		{"bare domain matches root", "example.net", "https://example.net/prices.json", true},
		{"bare domain matches subdomain", "example.net", "https://cdn.example.net/prices.json", true},
		{"cidr", "10.0.0.0/8", "http://10.1.2.3:1242/Api/Bot", true},
		{"outside cidr", "10.0.0.0/8", "http://192.168.1.5:1242/Api/Bot", false},
		{"unlisted host", "*.example.net", "https://steamcommunity.com/market", false},
		{"list with spaces", "foo.org, 10.0.0.0/8 ,*.example.net", "http://asf.example.net/", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			route := proxyFuncWithBypass(proxy, tt.noProxy, logging.NewNopLogger())
			req, err := nethttp.NewRequest(nethttp.MethodGet, tt.target, nil)
			if err != nil {
				t.Fatal(err)
			}
			got, err := route(req)
			if err != nil {
				t.Fatalf("route error = %v", err)
			}
			if tt.direct && got != nil {
				t.Errorf("%s routed via %s, want direct", tt.target, got.Host)
			}
			if !tt.direct && (got == nil || got.Host != proxy.Host) {
				t.Errorf("%s routed via %v, want %s", tt.target, got, proxy.Host)
			}
		})
	}
}

func TestBuildProxyURL(t *testing.T) {
	u := buildProxyURL(config.ProxyConfig{Host: "proxy.lan"})
	if u.Host != "proxy.lan:8080" || u.User != nil {
		t.Errorf("default port URL = %s", u)
	}

	u = buildProxyURL(config.ProxyConfig{Host: "proxy.lan", Port: 3128, User: "me"})
	if u.User != nil {
		t.Error("user without password should not be embedded")
	}

	u = buildProxyURL(config.ProxyConfig{Host: "proxy.lan", Port: 3128, User: "me", Password: "pw"})
	if pw, _ := u.User.Password(); u.Host != "proxy.lan:3128" || u.User.Username() != "me" || pw != "pw" {
		t.Errorf("credential URL = %s", u)
	}
}

func TestConfigureHTTPClient(t *testing.T) {
	remote := func(px config.ProxyConfig) *config.Config {
		cfg := config.New()
		cfg.ASF.Server = "http://asf.example.net"
		cfg.Proxy = px
		return cfg
	}

	t.Run("local server ignores proxy", func(t *testing.T) {
		cfg := config.New()
		cfg.Proxy = config.ProxyConfig{Mode: "ntlm", Host: "proxy.lan"}
		client, err := ConfigureHTTPClient(cfg, nil)
		if err != nil {
			t.Fatal(err)
		}
		tr, ok := client.Transport.(*nethttp.Transport)
		if !ok || tr.Proxy != nil {
			t.Errorf("transport = %T, want direct *http.Transport", client.Transport)
		}
	})

	t.Run("ntlm wraps transport", func(t *testing.T) {
		client, err := ConfigureHTTPClient(remote(config.ProxyConfig{Mode: "NTLM", Host: "proxy.lan"}), nil)
		if err != nil {
			t.Fatal(err)
		}
		if _, ok := client.Transport.(ntlmssp.Negotiator); !ok {
			t.Errorf("transport = %T, want ntlmssp.Negotiator", client.Transport)
		}
	})

	t.Run("basic without host is direct", func(t *testing.T) {
		client, err := ConfigureHTTPClient(remote(config.ProxyConfig{Mode: "basic"}), nil)
		if err != nil {
			t.Fatal(err)
		}
		if tr := client.Transport.(*nethttp.Transport); tr.Proxy != nil {
			t.Error("expected direct connection")
		}
	})

	t.Run("basic with host is proxied", func(t *testing.T) {
		client, err := ConfigureHTTPClient(remote(config.ProxyConfig{Mode: "basic", Host: "proxy.lan"}), nil)
		if err != nil {
			t.Fatal(err)
		}
		if tr := client.Transport.(*nethttp.Transport); tr.Proxy == nil {
			t.Error("expected proxy function")
		}
	})

	t.Run("unknown mode", func(t *testing.T) {
		if _, err := ConfigureHTTPClient(remote(config.ProxyConfig{Mode: "socks5"}), nil); err == nil {
			t.Error("expected error")
		}
	})
}

func TestNeedsProxyPassword(t *testing.T) {
	tests := []struct {
		px   config.ProxyConfig
		want bool
	}{
		{config.ProxyConfig{Mode: "basic", User: "me"}, true},
		{config.ProxyConfig{Mode: "ntlm", User: "me"}, true},
		{config.ProxyConfig{Mode: "basic", User: "me", Password: "pw"}, false},
		{config.ProxyConfig{Mode: "basic"}, false},
		{config.ProxyConfig{Mode: "system", User: "me"}, false},
	}
	for _, tt := range tests {
		cfg := config.New()
		cfg.Proxy = tt.px
		if got := NeedsProxyPassword(cfg); got != tt.want {
			t.Errorf("NeedsProxyPassword(%+v) = %v, want %v", tt.px, got, tt.want)
		}
	}
}
