// Package httpstt is a generic speech-to-text client for HTTP endpoints that
// accept a multipart audio upload and answer with JSON or plain text.
//
// The request is a POST whose body carries one binary form field named
// "audio" with a randomized "<uuid>.wav" filename, authenticated by an API
// key header. Dialing is bounded by a short connect timeout and the response
// by a much longer read timeout, since recognition of a 48 s segment can
// take a while.
//
// Response bodies are decoded leniently: JSON objects are searched for the
// first string under "text", "transcript", "transcription", "result" or
// "data.text" in that order. Anything that is not JSON is taken
// as the plain-text transcript.
package httpstt

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/MrWong99/reelwright/pkg/provider/stt"
)

const (
	defaultAPIKeyHeader   = "X-API-Key"
	defaultConnectTimeout = 30 * time.Second
	defaultReadTimeout    = 120 * time.Second

	// maxResponseBytes bounds how much of a response body is read.
	maxResponseBytes = 4 << 20
)

// textKeys is the priority order of transcript keys in a JSON response.
var textKeys = []string{"text", "transcript", "transcription", "result"}

// Compile-time assertion that Client implements stt.Provider.
var _ stt.Provider = (*Client)(nil)

// Option is a functional option for configuring a Client.
type Option func(*Client)

// WithAPIKeyHeader sets the header that carries the API key. Defaults to
// "X-API-Key". Use "Authorization" together with a "Bearer ..." key for
// OAuth-style services.
func WithAPIKeyHeader(name string) Option {
	return func(c *Client) {
		if name != "" {
			c.apiKeyHeader = name
		}
	}
}

// WithConnectTimeout bounds TCP connect and TLS handshake. Defaults to 30 s.
func WithConnectTimeout(d time.Duration) Option {
	return func(c *Client) { c.connectTimeout = d }
}

// WithReadTimeout bounds the wait for response headers after the upload.
// Defaults to 120 s.
func WithReadTimeout(d time.Duration) Option {
	return func(c *Client) { c.readTimeout = d }
}

// WithLanguageField sends the request language as an extra form field with
// the given name. Disabled by default.
func WithLanguageField(name string) Option {
	return func(c *Client) { c.languageField = name }
}

// WithHTTPClient replaces the HTTP client. The connect and read timeouts are
// then the caller's responsibility.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// Client implements stt.Provider for a multipart HTTP transcription endpoint.
type Client struct {
	endpoint       string
	apiKey         string
	apiKeyHeader   string
	languageField  string
	connectTimeout time.Duration
	readTimeout    time.Duration
	httpClient     *http.Client
}

// New creates a Client posting to endpoint. apiKey may be empty for
// unauthenticated services.
func New(endpoint, apiKey string, opts ...Option) (*Client, error) {
	if endpoint == "" {
		return nil, errors.New("httpstt: endpoint must not be empty")
	}
	c := &Client{
		endpoint:       endpoint,
		apiKey:         apiKey,
		apiKeyHeader:   defaultAPIKeyHeader,
		connectTimeout: defaultConnectTimeout,
		readTimeout:    defaultReadTimeout,
	}
	for _, o := range opts {
		o(c)
	}
	if c.httpClient == nil {
		c.httpClient = &http.Client{Transport: c.transport()}
	}
	return c, nil
}

// transport separates the connect budget from the read budget. A plain
// http.Client.Timeout would bound both together.
func (c *Client) transport() *http.Transport {
	dialer := &net.Dialer{Timeout: c.connectTimeout, KeepAlive: 30 * time.Second}
	return &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           dialer.DialContext,
		TLSHandshakeTimeout:   c.connectTimeout,
		ResponseHeaderTimeout: c.readTimeout,
		MaxIdleConnsPerHost:   4,
		IdleConnTimeout:       90 * time.Second,
	}
}

// Transcribe implements stt.Provider.
func (c *Client) Transcribe(ctx context.Context, req stt.Request) (string, error) {
	audio, err := os.ReadFile(req.Path)
	if err != nil {
		return "", fmt.Errorf("httpstt: read segment: %w", err)
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("audio", uuid.NewString()+".wav")
	if err != nil {
		return "", fmt.Errorf("httpstt: create form file: %w", err)
	}
	if _, err := fw.Write(audio); err != nil {
		return "", fmt.Errorf("httpstt: write audio: %w", err)
	}
	if c.languageField != "" && req.Language != "" {
		if err := mw.WriteField(c.languageField, req.Language); err != nil {
			return "", fmt.Errorf("httpstt: write language field: %w", err)
		}
	}
	if err := mw.Close(); err != nil {
		return "", fmt.Errorf("httpstt: close multipart writer: %w", err)
	}

	// The body read after headers arrive shares the read budget.
	ctx, cancel := context.WithTimeout(ctx, c.connectTimeout+c.readTimeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, &body)
	if err != nil {
		return "", fmt.Errorf("httpstt: create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", mw.FormDataContentType())
	if c.apiKey != "" {
		httpReq.Header.Set(c.apiKeyHeader, c.apiKey)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("httpstt: http request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return "", fmt.Errorf("httpstt: read response body: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", &StatusError{Code: resp.StatusCode, Body: snippet(data)}
	}
	return ParseResponse(data)
}

// StatusError reports a non-2xx response.
type StatusError struct {
	Code int
	Body string
}

// Error implements error.
func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("httpstt: server returned HTTP %d", e.Code)
	}
	return fmt.Sprintf("httpstt: server returned HTTP %d: %s", e.Code, e.Body)
}

// ParseResponse extracts the transcript from a response body. JSON objects
// are searched for the known keys; JSON without any of them is an error.
// Bodies that are not JSON objects are returned trimmed as plain text.
func ParseResponse(data []byte) (string, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return "", nil
	}
	if trimmed[0] != '{' {
		return string(trimmed), nil
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &obj); err != nil {
		return "", fmt.Errorf("httpstt: malformed JSON response: %w", err)
	}
	for _, key := range textKeys {
		if s, ok := stringField(obj, key); ok {
			return s, nil
		}
	}
	if raw, ok := obj["data"]; ok {
		var nested map[string]json.RawMessage
		if json.Unmarshal(raw, &nested) == nil {
			if s, ok := stringField(nested, "text"); ok {
				return s, nil
			}
		}
	}
	return "", errors.New("httpstt: response has no transcript field")
}

// stringField returns the trimmed obj[key] and whether it is a JSON string.
func stringField(obj map[string]json.RawMessage, key string) (string, bool) {
	raw, ok := obj[key]
	if !ok {
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", false
	}
	return strings.TrimSpace(s), true
}

func snippet(b []byte) string {
	const max = 200
	s := strings.TrimSpace(string(b))
	if len(s) > max {
		s = s[:max] + "..."
	}
	return s
}
