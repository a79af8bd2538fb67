// Package asf is the client for the ArchiSteamFarm IPC API and its
// CS2Interface plugin.
package asf

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	nethttp "net/http"
	"net/url"
	"regexp"
	"strconv"
	"time"

	"github.com/goccy/go-json"
	"github.com/hashicorp/go-retryablehttp"

	"github.com/cs2interlink/cs2-int/internal/config"
	"github.com/cs2interlink/cs2-int/internal/constants"
	"github.com/cs2interlink/cs2-int/internal/http"
	"github.com/cs2interlink/cs2-int/internal/logging"
	"github.com/cs2interlink/cs2-int/internal/ratelimit"
	"github.com/cs2interlink/cs2-int/internal/version"
)

// Response is the envelope every IPC endpoint returns.
type Response struct {
	Success bool            `json:"Success"`
	Message string          `json:"Message"`
	Result  json.RawMessage `json:"Result"`
}

// retryLogger implements the retryablehttp.LeveledLogger interface
type retryLogger struct {
	log *logging.Logger
}

func (l *retryLogger) Error(msg string, keysAndValues ...interface{}) {
	l.log.Warn().Fields(keysAndValues).Msg(msg)
}

func (l *retryLogger) Info(msg string, keysAndValues ...interface{}) {}

func (l *retryLogger) Debug(msg string, keysAndValues ...interface{}) {
	l.log.Debug().Fields(keysAndValues).Msg(msg)
}

func (l *retryLogger) Warn(msg string, keysAndValues ...interface{}) {
	l.log.Warn().Fields(keysAndValues).Msg(msg)
}

// checkRetry retries only requests that never produced a response. A 504
// is returned to the caller, which owns the retry decision for it.
func checkRetry(ctx context.Context, resp *nethttp.Response, err error) (bool, error) {
	if ctx.Err() != nil {
		return false, ctx.Err()
	}
	if resp != nil {
		return false, nil
	}
	return retryablehttp.DefaultRetryPolicy(ctx, resp, err)
}

// Client talks to one ASF instance.
type Client struct {
	httpClient   *nethttp.Client
	baseURL      string
	password     string
	local        bool
	limiter      *ratelimit.RateLimiter
	log          *logging.Logger
	pollInterval time.Duration
}

// NewClient creates a client from the [asf] and [proxy] settings.
func NewClient(cfg *config.Config, log *logging.Logger) (*Client, error) {
	if log == nil {
		log = logging.NewNopLogger()
	}
	httpClient, err := http.NewClient(cfg, log)
	if err != nil {
		return nil, fmt.Errorf("failed to configure HTTP client: %w", err)
	}

	retryClient := retryablehttp.NewClient()
	retryClient.HTTPClient = httpClient
	retryClient.RetryMax = constants.ASFConnectionRetries
	retryClient.RetryWaitMin = 500 * time.Millisecond
	retryClient.RetryWaitMax = 2 * time.Second
	retryClient.CheckRetry = checkRetry
	retryClient.Logger = &retryLogger{log: log}

	limiter := ratelimit.NewServiceRateLimiter()
	limiter.SetLogger(log)

	return &Client{
		httpClient:   retryClient.StandardClient(),
		baseURL:      cfg.BaseURL(),
		password:     cfg.ASF.Password,
		local:        cfg.IsLocal(),
		limiter:      limiter,
		log:          log,
		pollInterval: constants.InterfaceStatusPollInterval,
	}, nil
}

// 64-bit ids (steam ids, tournament match ids) lose precision as float64;
// quote them before decoding so they arrive as strings.
var largeNumber = regexp.MustCompile(`:(\s*)(\d{16,})`)

func quoteLargeNumbers(body []byte) []byte {
	return largeNumber.ReplaceAll(body, []byte(`:$1"$2"`))
}

// Send issues one IPC call to /Api/{operation}/{target}/{path}. For GET,
// data becomes the query string; for POST it is sent as a JSON object.
// It returns the envelope's Result, or the whole body when there is none.
func (c *Client) Send(ctx context.Context, operation, path, method, target string, data map[string]string) (json.RawMessage, error) {
	endpoint := fmt.Sprintf("/Api/%s/%s/%s", operation, target, path)
	reqURL := c.baseURL + endpoint

	var body io.Reader
	if len(data) > 0 {
		switch method {
		case nethttp.MethodGet:
			q := url.Values{}
			for k, v := range data {
				q.Set(k, v)
			}
			reqURL += "?" + q.Encode()
		case nethttp.MethodPost:
			payload, err := json.Marshal(data)
			if err != nil {
				return nil, fmt.Errorf("failed to marshal request body: %w", err)
			}
			body = bytes.NewReader(payload)
		}
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter cancelled: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, constants.ASFRequestTimeout)
	defer cancel()

	req, err := nethttp.NewRequestWithContext(ctx, method, reqURL, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authentication", c.password)
	req.Header.Set("User-Agent", version.UserAgent())

	c.log.Debug().Str("method", method).Str("endpoint", endpoint).Msg("ASF request")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &Error{Message: "ASF request to " + endpoint + " failed", Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &Error{Code: resp.StatusCode, Message: "failed to read ASF response", Err: err}
	}

	var envelope *Response
	if len(raw) > 0 {
		var r Response
		if json.Unmarshal(quoteLargeNumbers(raw), &r) == nil {
			envelope = &r
		}
	}

	switch {
	case resp.StatusCode == nethttp.StatusUnauthorized:
		return nil, &Error{Code: resp.StatusCode, Message: "Invalid ASF IPC password", Response: envelope}

	case resp.StatusCode == nethttp.StatusForbidden:
		msg := "ASF IPC access forbidden"
		if !c.local && c.password == "" {
			msg = "ASF IPC password required"
		}
		return nil, &Error{Code: resp.StatusCode, Message: msg, Response: envelope}

	case resp.StatusCode == nethttp.StatusTooManyRequests:
		c.limiter.SetCooldown(retryAfter(resp.Header.Get("Retry-After")))
		return nil, &Error{Code: resp.StatusCode, Message: "ASF request error from " + endpoint, Response: envelope}

	case resp.StatusCode != nethttp.StatusOK || envelope == nil:
		msg := "ASF request error from " + endpoint
		if envelope != nil && envelope.Message != "" {
			msg += ": " + envelope.Message
		} else if resp.StatusCode >= 500 {
			msg += ": check the ASF log for errors"
		}
		return nil, &Error{Code: resp.StatusCode, Message: msg, Response: envelope}

	case !envelope.Success:
		return nil, &Error{Code: resp.StatusCode, Message: "ASF response error: " + envelope.Message, Response: envelope}
	}

	if len(envelope.Result) > 0 && !bytes.Equal(envelope.Result, []byte("null")) {
		return envelope.Result, nil
	}
	return quoteLargeNumbers(raw), nil
}

func retryAfter(v string) time.Duration {
	if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	return 5 * time.Second
}

// Get sends a GET and decodes its result into dst.
func (c *Client) Get(ctx context.Context, operation, path, target string, data map[string]string, dst any) error {
	raw, err := c.Send(ctx, operation, path, nethttp.MethodGet, target, data)
	if err != nil {
		return err
	}
	if dst == nil {
		return nil
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("failed to decode %s/%s response: %w", operation, path, err)
	}
	return nil
}

// ErrBotNotFound is returned when no configured bot matches.
var ErrBotNotFound = errors.New("bot not found")
