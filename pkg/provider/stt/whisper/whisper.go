// Package whisper runs speech recognition on whisper.cpp.
//
// [Provider] posts segments to a whisper-server process (POST /inference,
// multipart upload). [NativeProvider] loads a ggml model in-process through
// the cgo bindings and needs no server.
//
//	p, err := whisper.New("http://localhost:8080", whisper.WithLanguage("uz"))
//	text, err := p.Transcribe(ctx, stt.Request{Path: "segment-000.wav"})
package whisper

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/MrWong99/reelwright/pkg/provider/stt"
)

const (
	defaultLanguage = "auto"
	defaultTimeout  = 120 * time.Second

	// errorSnippet bounds how much of a failed response ends up in the error.
	errorSnippet = 512
)

var _ stt.Provider = (*Provider)(nil)

type Option func(*Provider)

// WithModel names the model the server should use. Empty keeps the model the
// server was started with.
func WithModel(model string) Option {
	return func(p *Provider) { p.model = model }
}

// WithLanguage sets the fallback language code. Defaults to "auto"; a
// language in stt.Request takes precedence.
func WithLanguage(lang string) Option {
	return func(p *Provider) { p.language = lang }
}

// WithTemperature sets the decoding temperature. Zero leaves the server
// default.
func WithTemperature(t float64) Option {
	return func(p *Provider) { p.temperature = t }
}

// WithTimeout bounds one segment round trip. Defaults to 120 s.
func WithTimeout(d time.Duration) Option {
	return func(p *Provider) { p.client = &http.Client{Timeout: d} }
}

// Provider is a whisper-server client. Safe for concurrent use.
type Provider struct {
	endpoint    string
	model       string
	language    string
	temperature float64
	client      *http.Client
}

// New returns a client for the server at serverURL, e.g. "http://localhost:8080".
func New(serverURL string, opts ...Option) (*Provider, error) {
	if serverURL == "" {
		return nil, errors.New("whisper: server URL is required")
	}
	p := &Provider{
		endpoint: strings.TrimRight(serverURL, "/") + "/inference",
		language: defaultLanguage,
		client:   &http.Client{Timeout: defaultTimeout},
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// Transcribe streams the segment to the server without buffering it.
// Normalized segments are already the 16 kHz WAV whisper-server expects.
func (p *Provider) Transcribe(ctx context.Context, req stt.Request) (string, error) {
	f, err := os.Open(req.Path)
	if err != nil {
		return "", fmt.Errorf("whisper: open segment: %w", err)
	}
	defer f.Close()

	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)
	go func() {
		pw.CloseWithError(p.writeForm(mw, f, filepath.Base(req.Path), req.Language))
	}()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, pr)
	if err != nil {
		pr.Close()
		return "", fmt.Errorf("whisper: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("whisper: post %s: %w", filepath.Base(req.Path), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, errorSnippet))
		return "", fmt.Errorf("whisper: server returned %s: %s", resp.Status, strings.TrimSpace(string(snippet)))
	}

	var out struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("whisper: decode response: %w", err)
	}
	return strings.TrimSpace(out.Text), nil
}

// writeForm writes the upload followed by the decoding fields.
func (p *Provider) writeForm(mw *multipart.Writer, audio io.Reader, name, lang string) error {
	fw, err := mw.CreateFormFile("file", name)
	if err != nil {
		return err
	}
	if _, err := io.Copy(fw, audio); err != nil {
		return err
	}

	if lang == "" {
		lang = p.language
	}
	fields := [][2]string{{"response_format", "json"}, {"language", lang}, {"model", p.model}}
	if p.temperature != 0 {
		fields = append(fields, [2]string{"temperature", strconv.FormatFloat(p.temperature, 'f', -1, 64)})
	}
	for _, kv := range fields {
		if kv[1] == "" {
			continue
		}
		if err := mw.WriteField(kv[0], kv[1]); err != nil {
			return err
		}
	}
	return mw.Close()
}
