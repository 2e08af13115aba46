package hikumo

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/net/publicsuffix"
	"golang.org/x/time/rate"

	"github.com/nerrad567/hikumo-bridge/internal/backoff"
	"github.com/nerrad567/hikumo-bridge/internal/infrastructure/config"
)

// Connect/read budgets. Login gets a longer window than ordinary calls.
const (
	callConnectTimeout  = 2 * time.Second
	callReadTimeout     = 5 * time.Second
	loginConnectTimeout = 5 * time.Second
	loginReadTimeout    = 10 * time.Second

	// maxResponseSize caps how much of a response body is read.
	maxResponseSize = 8 << 20

	contentTypeJSON = "application/json; charset=UTF-8"
	contentTypeForm = "application/x-www-form-urlencoded; charset=UTF-8"

	applyLabel = "change air to air heat pump command"
)

// Logger is the logging interface used by the session.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
}

// Response is a completed HTTP exchange with the body fully read.
type Response struct {
	StatusCode int
	Body       []byte
}

// OK reports whether the vendor answered 200.
func (r *Response) OK() bool {
	return r != nil && r.StatusCode == http.StatusOK
}

// Session talks to the vendor enduser API.
//
// The session cookie lives in a jar shared by every call. A failed call
// sleeps on the retry sequencer, logs in again and retries until its budget
// is spent; it never panics and never blocks past ctx.
//
// Thread Safety: safe for concurrent use. Login is exclusive: it waits for
// in-flight calls to finish and blocks new ones until the cookie is refreshed.
type Session struct {
	baseURL   string
	username  string
	password  string
	userAgent string
	budget    int

	client      *http.Client
	loginClient *http.Client
	limiter     *rate.Limiter
	retry       *backoff.Sequencer

	// authMu is held shared by calls and exclusively by Login.
	authMu sync.RWMutex

	logger Logger
}

// NewSession builds a session from the vendor config. It does not contact the API.
func NewSession(cfg config.HikumoConfig, logger Logger) (*Session, error) {
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("creating cookie jar: %w", err)
	}

	proxy, err := proxyFunc(cfg.HTTPProxy, cfg.HTTPSProxy)
	if err != nil {
		return nil, err
	}

	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}
	burst := cfg.Burst
	if burst < 1 {
		burst = 1
	}

	return &Session{
		baseURL:     strings.TrimRight(cfg.APIURL, "/"),
		username:    cfg.Username,
		password:    cfg.Password,
		userAgent:   cfg.UserAgent,
		budget:      cfg.RetryBudget,
		client:      newHTTPClient(jar, proxy, callConnectTimeout, callReadTimeout),
		loginClient: newHTTPClient(jar, proxy, loginConnectTimeout, loginReadTimeout),
		limiter:     rate.NewLimiter(limit, burst),
		retry:       backoff.New(cfg.RetryDelays, cfg.RetryRandomness),
		logger:      logger,
	}, nil
}

func newHTTPClient(jar http.CookieJar, proxy func(*http.Request) (*url.URL, error), connect, read time.Duration) *http.Client {
	transport := &http.Transport{
		Proxy:                 proxy,
		DialContext:           (&net.Dialer{Timeout: connect}).DialContext,
		TLSHandshakeTimeout:   connect,
		ResponseHeaderTimeout: read,
		MaxIdleConns:          4,
		IdleConnTimeout:       90 * time.Second,
	}
	return &http.Client{
		Jar:       jar,
		Transport: transport,
		Timeout:   connect + read,
	}
}

// proxyFunc selects a proxy by request scheme. With neither proxy configured
// the standard environment variables apply.
func proxyFunc(httpProxy, httpsProxy string) (func(*http.Request) (*url.URL, error), error) {
	if httpProxy == "" && httpsProxy == "" {
		return http.ProxyFromEnvironment, nil
	}

	parse := func(raw string) (*url.URL, error) {
		if raw == "" {
			return nil, nil
		}
		u, err := url.Parse(raw)
		if err != nil || u.Host == "" {
			return nil, fmt.Errorf("%w: %q", ErrInvalidProxy, raw)
		}
		return u, nil
	}

	plain, err := parse(httpProxy)
	if err != nil {
		return nil, err
	}
	secure, err := parse(httpsProxy)
	if err != nil {
		return nil, err
	}

	return func(req *http.Request) (*url.URL, error) {
		if req.URL.Scheme == "https" {
			return secure, nil
		}
		return plain, nil
	}, nil
}

// Login posts the account credentials and stores the session cookie.
//
// Callers log the returned error; a failed login is retried implicitly by the
// next failing call.
func (s *Session) Login(ctx context.Context) error {
	form := url.Values{}
	form.Set("userId", s.username)
	form.Set("userPassword", s.password)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/login", strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("%w: %w", ErrLoginFailed, err)
	}
	req.Header.Set("User-Agent", s.userAgent)
	req.Header.Set("Content-Type", contentTypeForm)

	s.authMu.Lock()
	defer s.authMu.Unlock()

	if err := s.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%w: %w", ErrLoginFailed, err)
	}

	resp, err := s.loginClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrLoginFailed, err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseSize)) //nolint:errcheck // Draining for connection reuse

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: status %d", ErrLoginFailed, resp.StatusCode)
	}

	s.logInfo("Logged into Hi-Kumo")
	return nil
}

// Get performs a GET against path (relative to the API base).
//
// On a network error or non-200 status, and while retry > 0, it sleeps for
// the next retry delay, logs in and tries again with retry-1. The last
// response (possibly nil) is returned with ErrRequestFailed once the budget
// is spent.
func (s *Session) Get(ctx context.Context, path string, retry int) (*Response, error) {
	return s.call(ctx, http.MethodGet, path, nil, retry)
}

// Post performs a JSON POST against path. Retry semantics match Get.
func (s *Session) Post(ctx context.Context, path string, payload any, retry int) (*Response, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encoding request: %w", err)
	}
	return s.call(ctx, http.MethodPost, path, body, retry)
}

// FetchSetupData returns the current gateways and devices. A failed request
// or an unparseable envelope yields an empty SetupData. Individual entries
// that fail to decode are logged and skipped so one bad device cannot hide
// the rest.
func (s *Session) FetchSetupData(ctx context.Context) SetupData {
	resp, err := s.Get(ctx, "/setup", s.budget)
	if err != nil {
		return SetupData{}
	}

	var envelope struct {
		Gateways []json.RawMessage `json:"gateways"`
		Devices  []json.RawMessage `json:"devices"`
	}
	if err := json.Unmarshal(resp.Body, &envelope); err != nil {
		s.logWarn("Discarding unparseable setup document", "error", err)
		return SetupData{}
	}

	var data SetupData
	if envelope.Gateways != nil {
		data.Gateways = decodeEntries[Gateway](s, "gateway", envelope.Gateways)
	}
	if envelope.Devices != nil {
		data.Devices = decodeEntries[RawDevice](s, "device", envelope.Devices)
	}
	return data
}

// decodeEntries decodes each raw entry on its own. The result is non-nil
// even when every entry is skipped.
func decodeEntries[T any](s *Session, kind string, raw []json.RawMessage) []T {
	out := make([]T, 0, len(raw))
	for i, entry := range raw {
		var v T
		if err := json.Unmarshal(entry, &v); err != nil {
			s.logWarn("Skipping malformed setup entry", "kind", kind, "index", i, "error", err)
			continue
		}
		out = append(out, v)
	}
	return out
}

// ExecApply posts a command envelope to the vendor.
func (s *Session) ExecApply(ctx context.Context, req ApplyRequest) error {
	_, err := s.Post(ctx, "/exec/apply", req, s.budget)
	return err
}

// NewApplyRequest wraps globalControl parameters in the exec/apply envelope.
func NewApplyRequest(deviceURL string, parameters []any) ApplyRequest {
	return ApplyRequest{
		Actions: []Action{{
			Commands: []Command{{
				Name:       "globalControl",
				Parameters: parameters,
			}},
			DeviceURL: deviceURL,
		}},
		Label: applyLabel,
	}
}

func (s *Session) call(ctx context.Context, method, path string, body []byte, retry int) (*Response, error) {
	for {
		resp, err := s.attempt(ctx, method, path, body)
		if err == nil && resp.OK() {
			s.retry.Reset()
			s.logDebug("API response", "path", path, "body", string(resp.Body))
			return resp, nil
		}

		status := -1
		if resp != nil {
			status = resp.StatusCode
		}
		if err != nil {
			s.logWarn("API call error", "path", path, "error", err)
		}

		if retry <= 0 || ctx.Err() != nil {
			s.logWarn("API call failed. No more retry.", "path", path, "status", status)
			return resp, fmt.Errorf("%w: %s %s: status %d", ErrRequestFailed, method, path, status)
		}

		s.logDebug("API call failed. Retrying.", "path", path, "status", status)
		if err := sleep(ctx, s.retry.Next()); err != nil {
			return resp, fmt.Errorf("%w: %w", ErrRequestFailed, err)
		}
		if err := s.Login(ctx); err != nil {
			s.logWarn("Hi-Kumo login failed", "error", err)
		}
		retry--
	}
}

// attempt performs one request under the shared auth lock.
func (s *Session) attempt(ctx context.Context, method, path string, body []byte) (*Response, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, s.baseURL+path, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", s.userAgent)
	if body != nil {
		req.Header.Set("Content-Type", contentTypeJSON)
	}

	s.authMu.RLock()
	defer s.authMu.RUnlock()

	if err := s.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	httpResp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer httpResp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(httpResp.Body, maxResponseSize))
	if err != nil {
		return &Response{StatusCode: httpResp.StatusCode}, fmt.Errorf("reading response: %w", err)
	}
	return &Response{StatusCode: httpResp.StatusCode, Body: data}, nil
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (s *Session) logDebug(msg string, args ...any) {
	if s.logger != nil {
		s.logger.Debug(msg, args...)
	}
}

func (s *Session) logInfo(msg string, args ...any) {
	if s.logger != nil {
		s.logger.Info(msg, args...)
	}
}

func (s *Session) logWarn(msg string, args ...any) {
	if s.logger != nil {
		s.logger.Warn(msg, args...)
	}
}
