// Package avatar renders talking-avatar videos with the HeyGen API and
// resolves the avatar and voice names users type to service IDs.
package avatar

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/MrWong99/reelwright/internal/content"
)

var _ content.Renderer = (*Client)(nil)

const (
	// DefaultBaseURL is the HeyGen API root.
	DefaultBaseURL = "https://api.heygen.com"

	// DefaultVoiceID is used when a render request names no voice.
	DefaultVoiceID = "1bd001e7e50f421d891986aad5158bc8"

	defaultPollInterval = 10 * time.Second
	defaultMaxWait      = 5 * time.Minute
	defaultBackground   = "#FFFFFF"

	maxResponseBytes = 1 << 20
)

var (
	// ErrRenderFailed is returned when the service reports a failed render.
	ErrRenderFailed = errors.New("avatar: render failed")

	// ErrTimeout is returned when a render does not complete within the
	// maximum wait.
	ErrTimeout = errors.New("avatar: render timed out")
)

// Video status values reported by the service.
const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

// Option is a functional option for configuring a Client.
type Option func(*Client)

// WithBaseURL overrides [DefaultBaseURL].
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = strings.TrimRight(u, "/") }
}

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithPollInterval sets how often [Client.Wait] polls the status endpoint.
// Defaults to 10 s.
func WithPollInterval(d time.Duration) Option {
	return func(c *Client) { c.pollInterval = d }
}

// WithMaxWait bounds [Client.Wait]. Defaults to 5 minutes.
func WithMaxWait(d time.Duration) Option {
	return func(c *Client) { c.maxWait = d }
}

// WithBackground sets the background color of rendered videos.
func WithBackground(color string) Option {
	return func(c *Client) { c.background = color }
}

// WithDefaultVoice overrides [DefaultVoiceID].
func WithDefaultVoice(id string) Option {
	return func(c *Client) { c.defaultVoice = id }
}

// WithLogger sets the logger for polling progress.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.log = l }
}

// Client talks to the HeyGen video API.
type Client struct {
	apiKey       string
	baseURL      string
	httpClient   *http.Client
	pollInterval time.Duration
	maxWait      time.Duration
	background   string
	defaultVoice string
	log          *slog.Logger
}

// New creates a Client authenticated with apiKey.
func New(apiKey string, opts ...Option) (*Client, error) {
	if apiKey == "" {
		return nil, errors.New("avatar: api key must not be empty")
	}
	c := &Client{
		apiKey:       apiKey,
		baseURL:      DefaultBaseURL,
		httpClient:   &http.Client{Timeout: 60 * time.Second},
		pollInterval: defaultPollInterval,
		maxWait:      defaultMaxWait,
		background:   defaultBackground,
		defaultVoice: DefaultVoiceID,
		log:          slog.Default(),
	}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

// VideoRequest describes one single-scene render.
type VideoRequest struct {
	Script   string
	AvatarID string
	VoiceID  string
}

type character struct {
	Type        string `json:"type"`
	AvatarID    string `json:"avatar_id"`
	AvatarStyle string `json:"avatar_style"`
}

type voice struct {
	Type      string `json:"type"`
	InputText string `json:"input_text"`
	VoiceID   string `json:"voice_id"`
}

type background struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

type videoInput struct {
	Character  character  `json:"character"`
	Voice      voice      `json:"voice"`
	Background background `json:"background"`
}

type dimension struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

type generateRequest struct {
	VideoInputs []videoInput `json:"video_inputs"`
	Dimension   dimension    `json:"dimension"`
	AspectRatio string       `json:"aspect_ratio"`
	Test        bool         `json:"test"`
}

type apiError struct {
	Code    any    `json:"code"`
	Message string `json:"message"`
}

type generateResponse struct {
	Error *apiError `json:"error"`
	Data  struct {
		VideoID string `json:"video_id"`
	} `json:"data"`
}

// Video is the state of a render job.
type Video struct {
	ID     string
	Status string
	URL    string
}

type statusResponse struct {
	Code int `json:"code"`
	Data struct {
		Status   string    `json:"status"`
		VideoURL string    `json:"video_url"`
		Error    *apiError `json:"error"`
	} `json:"data"`
}

// CreateVideo submits a render and returns its video ID.
func (c *Client) CreateVideo(ctx context.Context, req VideoRequest) (string, error) {
	if strings.TrimSpace(req.Script) == "" {
		return "", errors.New("avatar: script must not be empty")
	}
	if req.AvatarID == "" {
		return "", errors.New("avatar: avatar id must not be empty")
	}
	voiceID := req.VoiceID
	if voiceID == "" {
		voiceID = c.defaultVoice
	}

	payload := generateRequest{
		VideoInputs: []videoInput{{
			Character:  character{Type: "avatar", AvatarID: req.AvatarID, AvatarStyle: "normal"},
			Voice:      voice{Type: "text", InputText: req.Script, VoiceID: voiceID},
			Background: background{Type: "color", Value: c.background},
		}},
		Dimension:   dimension{Width: 1920, Height: 1080},
		AspectRatio: "16:9",
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("avatar: encode request: %w", err)
	}

	var resp generateResponse
	if err := c.do(ctx, http.MethodPost, c.baseURL+"/v2/video/generate", bytes.NewReader(body), &resp); err != nil {
		return "", err
	}
	if resp.Error != nil && resp.Error.Message != "" {
		return "", fmt.Errorf("avatar: generate: %s", resp.Error.Message)
	}
	if resp.Data.VideoID == "" {
		return "", errors.New("avatar: generate: response carries no video id")
	}
	return resp.Data.VideoID, nil
}

// Status fetches the current state of a render.
func (c *Client) Status(ctx context.Context, videoID string) (Video, error) {
	u := c.baseURL + "/v1/video_status.get?video_id=" + url.QueryEscape(videoID)
	var resp statusResponse
	if err := c.do(ctx, http.MethodGet, u, nil, &resp); err != nil {
		return Video{}, err
	}
	v := Video{ID: videoID, Status: resp.Data.Status, URL: resp.Data.VideoURL}
	if v.Status == StatusFailed && resp.Data.Error != nil && resp.Data.Error.Message != "" {
		return v, fmt.Errorf("%w: %s", ErrRenderFailed, resp.Data.Error.Message)
	}
	return v, nil
}

// Wait polls the status of videoID until it completes, fails or the maximum
// wait elapses, and returns the video URL.
func (c *Client) Wait(ctx context.Context, videoID string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.maxWait)
	defer cancel()

	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		v, err := c.Status(ctx, videoID)
		switch {
		case errors.Is(err, ErrRenderFailed):
			return "", err
		case err != nil:
			if ctx.Err() == nil {
				// Transient poll failures are retried on the next tick.
				c.log.Warn("avatar: status poll failed", "video_id", videoID, "err", err)
			}
		case v.Status == StatusCompleted:
			if v.URL == "" {
				return "", fmt.Errorf("%w: completed without a video url", ErrRenderFailed)
			}
			return v.URL, nil
		case v.Status == StatusFailed:
			return "", ErrRenderFailed
		default:
			c.log.Debug("avatar: render in progress", "video_id", videoID, "status", v.Status)
		}

		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return "", fmt.Errorf("%w after %s", ErrTimeout, c.maxWait)
			}
			return "", ctx.Err()
		case <-ticker.C:
		}
	}
}

// Render submits script and waits for the finished video URL.
func (c *Client) Render(ctx context.Context, script, avatarID, voiceID string) (string, error) {
	id, err := c.CreateVideo(ctx, VideoRequest{Script: script, AvatarID: avatarID, VoiceID: voiceID})
	if err != nil {
		return "", err
	}
	c.log.Info("avatar: render started", "video_id", id, "avatar_id", avatarID)
	return c.Wait(ctx, id)
}

func (c *Client) do(ctx context.Context, method, u string, body io.Reader, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return fmt.Errorf("avatar: create request: %w", err)
	}
	req.Header.Set("X-Api-Key", c.apiKey)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("avatar: http request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("avatar: read response body: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(data))}
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("avatar: decode response: %w", err)
	}
	return nil
}

// StatusError reports a non-2xx response.
type StatusError struct {
	Code int
	Body string
}

// Error implements error.
func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("avatar: server returned HTTP %d", e.Code)
	}
	return fmt.Sprintf("avatar: server returned HTTP %d: %s", e.Code, e.Body)
}
