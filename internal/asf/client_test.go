package asf

import (
	"context"
	"errors"
	"io"
	nethttp "net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cs2interlink/cs2-int/internal/config"
)

func newTestClient(t *testing.T, handler nethttp.HandlerFunc) *Client {
	t.Helper()
	ts := httptest.NewServer(handler)
	t.Cleanup(ts.Close)

	u, err := url.Parse(ts.URL)
	if err != nil {
		t.Fatal(err)
	}
	port, _ := strconv.Atoi(u.Port())

	cfg := config.New()
	cfg.ASF.Server = "http://" + u.Hostname()
	cfg.ASF.Port = port
	cfg.ASF.Password = "hunter2"

	c, err := NewClient(cfg, nil)
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}
	c.pollInterval = 5 * time.Millisecond
	return c
}

func TestSendGet(t *testing.T) {
	c := newTestClient(t, func(w nethttp.ResponseWriter, r *nethttp.Request) {
		if r.URL.Path != "/Api/CS2Interface/bot1/InitializePurchase" {
			t.Errorf("Unexpected path %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("quantity"); got != "2" {
			t.Errorf("Expected quantity=2, got %q", got)
		}
		if got := r.Header.Get("Authentication"); got != "hunter2" {
			t.Errorf("Expected Authentication header, got %q", got)
		}
		w.Write([]byte(`{"Success":true,"Message":"OK","Result":{"PurchaseUrl":"https://example.com/buy"}}`))
	})

	raw, err := c.Send(context.Background(), "CS2Interface", "InitializePurchase", "GET", "bot1", map[string]string{"quantity": "2"})
	if err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	if string(raw) != `{"PurchaseUrl":"https://example.com/buy"}` {
		t.Errorf("Expected Result payload, got %s", raw)
	}
}

func TestSendPost(t *testing.T) {
	c := newTestClient(t, func(w nethttp.ResponseWriter, r *nethttp.Request) {
		if r.Method != nethttp.MethodPost {
			t.Errorf("Expected POST, got %s", r.Method)
		}
		body, _ := io.ReadAll(r.Body)
		if string(body) != `{"key":"value"}` {
			t.Errorf("Unexpected body %s", body)
		}
		w.Write([]byte(`{"Success":true,"Message":"OK"}`))
	})

	raw, err := c.Send(context.Background(), "Op", "Path", "POST", "ASF", map[string]string{"key": "value"})
	if err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	if !strings.Contains(string(raw), `"Success":true`) {
		t.Errorf("Expected whole envelope without Result, got %s", raw)
	}
}

func TestSendQuotesLargeNumbers(t *testing.T) {
	c := newTestClient(t, func(w nethttp.ResponseWriter, r *nethttp.Request) {
		w.Write([]byte(`{"Success":true,"Result":{"bot1":{"BotName":"bot1","SteamID": 76561198000000001}}}`))
	})

	var bots map[string]Bot
	if err := c.Get(context.Background(), "Bot", "", "ASF", nil, &bots); err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got := bots["bot1"].SteamID; got != "76561198000000001" {
		t.Errorf("Expected exact steam id, got %q", got)
	}
}

func TestSendErrors(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		wantMsg  string
		wantType ErrorType
	}{
		{"unauthorized", 401, ``, "Invalid ASF IPC password", ErrorTypeCredential},
		{"forbidden local", 403, ``, "ASF IPC access forbidden", ErrorTypeCredential},
		{"server error", 500, `{"Success":false,"Message":"boom"}`, "ASF request error from /Api/CS2Interface/bot1/StoreItem/1/2: boom", ErrorTypeFatal},
		{"timeout", 504, ``, "ASF request error", ErrorTypeRetryable},
		{"unsuccessful", 200, `{"Success":false,"Message":"not connected"}`, "ASF response error: not connected", ErrorTypeFatal},
		{"empty body", 200, ``, "ASF request error", ErrorTypeFatal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w nethttp.ResponseWriter, r *nethttp.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			})

			_, err := c.Send(context.Background(), "CS2Interface", "StoreItem/1/2", "GET", "bot1", nil)
			if err == nil {
				t.Fatal("Expected error")
			}
			if !strings.Contains(err.Error(), tt.wantMsg) {
				t.Errorf("Expected message containing %q, got %q", tt.wantMsg, err.Error())
			}
			if got := Classify(err); got != tt.wantType {
				t.Errorf("Expected %s, got %s", tt.wantType, got)
			}
			if got := StatusCode(err); got != tt.status {
				t.Errorf("Expected status %d, got %d", tt.status, got)
			}
		})
	}
}

func TestSendDoesNotRetryResponses(t *testing.T) {
	var hits atomic.Int32
	c := newTestClient(t, func(w nethttp.ResponseWriter, r *nethttp.Request) {
		hits.Add(1)
		w.WriteHeader(nethttp.StatusGatewayTimeout)
	})

	_, err := c.Send(context.Background(), "CS2Interface", "GetCrateContents/5", "GET", "bot1", nil)
	if !IsTimeout(err) {
		t.Fatalf("Expected timeout error, got %v", err)
	}
	if got := hits.Load(); got != 1 {
		t.Errorf("Expected exactly 1 request, got %d", got)
	}
}

func TestSendTooManyRequestsSetsCooldown(t *testing.T) {
	c := newTestClient(t, func(w nethttp.ResponseWriter, r *nethttp.Request) {
		w.Header().Set("Retry-After", "3")
		w.WriteHeader(nethttp.StatusTooManyRequests)
	})

	_, err := c.Send(context.Background(), "Bot", "", "GET", "ASF", nil)
	if StatusCode(err) != nethttp.StatusTooManyRequests {
		t.Fatalf("Expected 429, got %v", err)
	}
	if got := c.limiter.CooldownRemaining(); got <= 2*time.Second {
		t.Errorf("Expected cooldown near 3s, got %v", got)
	}
}

func TestResolveBot(t *testing.T) {
	c := newTestClient(t, func(w nethttp.ResponseWriter, r *nethttp.Request) {
		switch r.URL.Path {
		case "/Api/Bot/ASF/":
			w.Write([]byte(`{"Success":true,"Result":{"main":{"BotName":"main","SteamID":76561198000000001},"alt":{"BotName":"alt","SteamID":76561198000000002}}}`))
		case "/Api/CS2Interface/ASF/Status":
			w.Write([]byte(`{"Success":true,"Result":{"main":{"Connected":true,"InventoryLoaded":true,"UnprotectedInventorySize":12}}}`))
		default:
			w.WriteHeader(nethttp.StatusNotFound)
		}
	})
	ctx := context.Background()

	b, err := c.ResolveBot(ctx, "", "76561198000000001")
	if err != nil {
		t.Fatalf("ResolveBot failed: %v", err)
	}
	if b.ASF.BotName != "main" || !b.Plugin.Ready() || b.Plugin.UnprotectedInventorySize != 12 {
		t.Errorf("Unexpected bot %+v plugin %+v", b.ASF, b.Plugin)
	}

	b, err = c.ResolveBot(ctx, "alt", "")
	if err != nil {
		t.Fatalf("ResolveBot by name failed: %v", err)
	}
	if b.Plugin != nil {
		t.Errorf("Expected no plugin status for alt, got %+v", b.Plugin)
	}

	if _, err := c.ResolveBot(ctx, "", ""); !errors.Is(err, ErrBotNotFound) {
		t.Errorf("Expected ErrBotNotFound with two bots, got %v", err)
	}
}

func TestStartInterfaceWaitsForInventory(t *testing.T) {
	var polls atomic.Int32
	c := newTestClient(t, func(w nethttp.ResponseWriter, r *nethttp.Request) {
		switch r.URL.Path {
		case "/Api/CS2Interface/main/Start":
			if r.URL.Query().Get("autoStop") != "15" {
				t.Errorf("Expected autoStop=15, got %q", r.URL.Query().Get("autoStop"))
			}
			w.Write([]byte(`{"Success":true,"Result":{"main":{"Success":true,"Message":"OK"}}}`))
		case "/Api/CS2Interface/ASF/Status":
			loaded := polls.Add(1) >= 3
			w.Write([]byte(`{"Success":true,"Result":{"main":{"Connected":true,"InventoryLoaded":` + strconv.FormatBool(loaded) + `}}}`))
		}
	})

	if err := c.StartInterface(context.Background(), "main", 15); err != nil {
		t.Fatalf("StartInterface failed: %v", err)
	}
	if got := polls.Load(); got != 3 {
		t.Errorf("Expected 3 status polls, got %d", got)
	}
}

func TestStartInterfaceStoppedWhileLoading(t *testing.T) {
	c := newTestClient(t, func(w nethttp.ResponseWriter, r *nethttp.Request) {
		switch r.URL.Path {
		case "/Api/CS2Interface/main/Start":
			w.Write([]byte(`{"Success":true,"Result":{"main":{"Success":true}}}`))
		case "/Api/CS2Interface/ASF/Status":
			w.Write([]byte(`{"Success":true,"Result":{"main":{"Connected":false}}}`))
		}
	})

	err := c.StartInterface(context.Background(), "main", 0)
	if err == nil || !strings.Contains(err.Error(), "interface stopped") {
		t.Errorf("Expected stopped-while-loading error, got %v", err)
	}
}

func TestStopInterfaceFailure(t *testing.T) {
	c := newTestClient(t, func(w nethttp.ResponseWriter, r *nethttp.Request) {
		w.Write([]byte(`{"Success":true,"Result":{"main":{"Success":false,"Message":"not running"}}}`))
	})

	err := c.StopInterface(context.Background(), "main")
	if err == nil || !strings.Contains(err.Error(), "not running") {
		t.Errorf("Expected failure naming the reason, got %v", err)
	}
}
