package ocr

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"
)

// RemoteEngine sends page images to an HTTP recognition service that
// owns the accelerator. The service contract is:
//
//	GET  {url}/health     -> 200 when the model is loaded
//	POST {url}/recognize  {"image_b64": "..."} -> {"fragments": [{"text", "confidence", "box": [[x,y] x4]}]}
type RemoteEngine struct {
	baseURL        string
	apiKey         string
	timeout        time.Duration
	warmupAttempts int
	logger         *slog.Logger
	httpClient     *http.Client

	// client is set by Open and cleared by Close.
	client *http.Client
}

// RemoteConfig configures a RemoteEngine.
type RemoteConfig struct {
	URL            string
	APIKey         string        // Sent as a bearer token when set
	Timeout        time.Duration // Per-request timeout (default: 120s)
	WarmupAttempts int           // Health polls, one per second (default: 30)
	HTTPClient     *http.Client  // Optional, for tests
	Logger         *slog.Logger
}

type remoteRequest struct {
	ImageB64 string `json:"image_b64"`
}

type remoteFragment struct {
	Text       string       `json:"text"`
	Confidence float64      `json:"confidence"`
	Box        [][2]float64 `json:"box"`
}

type remoteResponse struct {
	Fragments []remoteFragment `json:"fragments"`
	Error     string           `json:"error,omitempty"`
}

// NewRemoteEngine creates a remote engine. No connection is made until Open.
func NewRemoteEngine(cfg RemoteConfig) *RemoteEngine {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	attempts := cfg.WarmupAttempts
	if attempts <= 0 {
		attempts = 30
	}
	return &RemoteEngine{
		baseURL:        strings.TrimRight(cfg.URL, "/"),
		apiKey:         cfg.APIKey,
		timeout:        timeout,
		warmupAttempts: attempts,
		logger:         logger.With("engine", "remote", "url", cfg.URL),
		httpClient:     cfg.HTTPClient,
	}
}

func (e *RemoteEngine) Name() string { return "remote" }

// Open prepares the HTTP client. Opening an open engine is a no-op.
func (e *RemoteEngine) Open(ctx context.Context) error {
	if e.baseURL == "" {
		return fmt.Errorf("remote engine: url is required")
	}
	if e.client != nil {
		return nil
	}
	client := e.httpClient
	if client == nil {
		client = &http.Client{
			Transport: &http.Transport{
				Proxy:               http.ProxyFromEnvironment,
				MaxConnsPerHost:     2,
				MaxIdleConnsPerHost: 2,
				IdleConnTimeout:     90 * time.Second,
			},
		}
	}
	e.client = client
	return nil
}

// Warmup polls the health endpoint until the service is ready, then runs
// one recognition on a blank image.
func (e *RemoteEngine) Warmup(ctx context.Context) error {
	if e.client == nil {
		return ErrNotOpen
	}
	if err := e.waitForReady(ctx); err != nil {
		return fmt.Errorf("remote engine not ready: %w", err)
	}

	blank := image.NewGray(image.Rect(0, 0, 64, 32))
	draw.Draw(blank, blank.Bounds(), &image.Uniform{C: color.White}, image.Point{}, draw.Src)
	if _, err := e.Recognize(ctx, blank); err != nil {
		return fmt.Errorf("remote warmup: %w", err)
	}
	e.logger.Info("remote engine warmed up")
	return nil
}

func (e *RemoteEngine) waitForReady(ctx context.Context) error {
	url := e.baseURL + "/health"
	return retry.Do(
		func() error {
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
			if err != nil {
				return err
			}
			e.authorize(req)
			resp, err := e.client.Do(req)
			if err != nil {
				return err
			}
			_ = resp.Body.Close()
			if resp.StatusCode != http.StatusOK {
				return fmt.Errorf("unhealthy status: %d", resp.StatusCode)
			}
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(uint(e.warmupAttempts)),
		retry.Delay(1*time.Second),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
	)
}

// Recognize posts the PNG-encoded page and decodes the returned fragments.
func (e *RemoteEngine) Recognize(ctx context.Context, img image.Image) ([]Fragment, error) {
	if e.client == nil {
		return nil, ErrNotOpen
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode page image: %w", err)
	}
	body, err := json.Marshal(remoteRequest{ImageB64: base64.StdEncoding.EncodeToString(buf.Bytes())})
	if err != nil {
		return nil, err
	}

	reqCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, e.baseURL+"/recognize", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	e.authorize(req)

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("recognize request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("recognize failed: status %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}

	var parsed remoteResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode recognize response: %w", err)
	}
	if parsed.Error != "" {
		return nil, fmt.Errorf("recognize failed: %s", parsed.Error)
	}

	frags := make([]Fragment, 0, len(parsed.Fragments))
	for i, rf := range parsed.Fragments {
		if len(rf.Box) != 4 {
			return nil, fmt.Errorf("fragment %d: box has %d points, want 4", i, len(rf.Box))
		}
		var q Quad
		for j, p := range rf.Box {
			q[j] = Point{X: p[0], Y: p[1]}
		}
		frags = append(frags, Fragment{
			Text:       rf.Text,
			Confidence: clamp01(rf.Confidence),
			Box:        q,
		})
	}
	return frags, nil
}

func (e *RemoteEngine) authorize(req *http.Request) {
	if e.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+e.apiKey)
	}
}

// Close drops idle connections. Recognize fails with ErrNotOpen until the
// engine is opened again.
func (e *RemoteEngine) Close() error {
	if e.client == nil {
		return nil
	}
	e.client.CloseIdleConnections()
	e.client = nil
	return nil
}

var _ Recognizer = (*RemoteEngine)(nil)
