package ocr

import (
	"context"
	"encoding/json"
	"errors"
	"image"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFragmentGeometry(t *testing.T) {
	f := Fragment{Text: "Hello", Confidence: 0.9, Box: QuadFromBounds(10, 10, 50, 30)}

	assert.Equal(t, 10.0, f.XMin())
	assert.Equal(t, 50.0, f.XMax())
	assert.Equal(t, 10.0, f.YMin())
	assert.Equal(t, 30.0, f.YMax())
	assert.Equal(t, 40.0, f.Width())
	assert.Equal(t, 20.0, f.Height())
	assert.Equal(t, 20.0, f.CenterY())
	assert.Equal(t, 30.0, f.CenterX())
}

func TestFragmentGeometryRotatedQuad(t *testing.T) {
	// Corners out of the usual order still produce correct extrema.
	f := Fragment{Box: Quad{{50, 32}, {10, 30}, {12, 8}, {52, 10}}}
	assert.Equal(t, 10.0, f.XMin())
	assert.Equal(t, 52.0, f.XMax())
	assert.Equal(t, 8.0, f.YMin())
	assert.Equal(t, 32.0, f.YMax())
}

func TestQuadFromRect(t *testing.T) {
	q := QuadFromRect(image.Rect(1, 2, 11, 22))
	assert.Equal(t, Quad{{1, 2}, {11, 2}, {11, 22}, {1, 22}}, q)
}

func TestMeanConfidence(t *testing.T) {
	assert.Equal(t, 0.0, MeanConfidence(nil))
	got := MeanConfidence([]Fragment{{Confidence: 0.5}, {Confidence: 1.0}})
	assert.InDelta(t, 0.75, got, 1e-9)
}

// slowRecognizer records the maximum number of overlapping Recognize calls.
type slowRecognizer struct {
	active  atomic.Int32
	maxSeen atomic.Int32
	closed  bool
}

func (s *slowRecognizer) Name() string                     { return "slow" }
func (s *slowRecognizer) Open(ctx context.Context) error   { return nil }
func (s *slowRecognizer) Warmup(ctx context.Context) error { return nil }
func (s *slowRecognizer) Close() error                     { s.closed = true; return nil }

func (s *slowRecognizer) Recognize(ctx context.Context, img image.Image) ([]Fragment, error) {
	n := s.active.Add(1)
	defer s.active.Add(-1)
	for {
		prev := s.maxSeen.Load()
		if n <= prev || s.maxSeen.CompareAndSwap(prev, n) {
			break
		}
	}
	time.Sleep(2 * time.Millisecond)
	return []Fragment{{Text: "x"}}, nil
}

func TestExclusiveSerializesRecognize(t *testing.T) {
	inner := &slowRecognizer{}
	ex := NewExclusive(inner)
	img := image.NewGray(image.Rect(0, 0, 4, 4))

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := ex.Recognize(context.Background(), img)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), inner.maxSeen.Load())
	assert.Equal(t, int64(8), ex.Calls())
	require.NoError(t, ex.Close())
	assert.True(t, inner.closed)
}

func TestExclusiveHonorsCancelledContext(t *testing.T) {
	ex := NewExclusive(&slowRecognizer{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := ex.Recognize(ctx, image.NewGray(image.Rect(0, 0, 1, 1)))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, int64(0), ex.Calls())
}

// blockingRecognizer holds Recognize until release is closed.
type blockingRecognizer struct {
	slowRecognizer
	started chan struct{}
	release chan struct{}
}

func (b *blockingRecognizer) Recognize(ctx context.Context, img image.Image) ([]Fragment, error) {
	close(b.started)
	<-b.release
	return nil, nil
}

func TestExclusiveWaitHonorsContext(t *testing.T) {
	inner := &blockingRecognizer{started: make(chan struct{}), release: make(chan struct{})}
	ex := NewExclusive(inner)
	img := image.NewGray(image.Rect(0, 0, 1, 1))

	done := make(chan error, 1)
	go func() {
		_, err := ex.Recognize(context.Background(), img)
		done <- err
	}()
	<-inner.started

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := ex.Recognize(ctx, img)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, int64(1), ex.Calls(), "the waiting call never reached the engine")

	close(inner.release)
	require.NoError(t, <-done)
	require.NoError(t, ex.Close())
}

func TestNewEngine(t *testing.T) {
	r, err := NewEngine(EngineConfig{Engine: "remote", RemoteURL: "http://localhost:1"})
	require.NoError(t, err)
	assert.Equal(t, "remote", r.Name())

	r, err = NewEngine(EngineConfig{})
	require.NoError(t, err)
	assert.Equal(t, "tesseract", r.Name())

	_, err = NewEngine(EngineConfig{Engine: "nope"})
	assert.True(t, errors.Is(err, ErrUnknownEngine))
}

func TestRemoteEngine(t *testing.T) {
	var healthCalls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/health":
			healthCalls.Add(1)
			w.WriteHeader(http.StatusOK)
		case "/recognize":
			if r.Header.Get("Authorization") != "Bearer secret" {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			var req remoteRequest
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ImageB64 == "" {
				w.WriteHeader(http.StatusBadRequest)
				return
			}
			_ = json.NewEncoder(w).Encode(remoteResponse{Fragments: []remoteFragment{
				{Text: "Hello", Confidence: 0.9, Box: [][2]float64{{10, 10}, {50, 10}, {50, 30}, {10, 30}}},
				{Text: "World", Confidence: 1.7, Box: [][2]float64{{60, 12}, {100, 12}, {100, 32}, {60, 32}}},
			}})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	e := NewRemoteEngine(RemoteConfig{URL: srv.URL + "/", APIKey: "secret", HTTPClient: srv.Client()})
	ctx := context.Background()
	require.NoError(t, e.Open(ctx))
	require.NoError(t, e.Warmup(ctx))
	assert.Equal(t, int32(1), healthCalls.Load())

	frags, err := e.Recognize(ctx, image.NewGray(image.Rect(0, 0, 8, 8)))
	require.NoError(t, err)
	require.Len(t, frags, 2)
	assert.Equal(t, "Hello", frags[0].Text)
	assert.Equal(t, 1.0, frags[1].Confidence, "confidence is clamped to [0,1]")
	assert.Equal(t, 60.0, frags[1].XMin())
	require.NoError(t, e.Close())
}

func TestRemoteEngineErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/recognize" {
			http.Error(w, "model crashed", http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	e := NewRemoteEngine(RemoteConfig{URL: srv.URL, HTTPClient: srv.Client()})
	_, err := e.Recognize(context.Background(), image.NewGray(image.Rect(0, 0, 1, 1)))
	assert.ErrorIs(t, err, ErrNotOpen)

	require.NoError(t, e.Open(context.Background()))
	_, err = e.Recognize(context.Background(), image.NewGray(image.Rect(0, 0, 1, 1)))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 500")
	assert.Contains(t, err.Error(), "model crashed")

	require.NoError(t, e.Close())
	_, err = e.Recognize(context.Background(), image.NewGray(image.Rect(0, 0, 1, 1)))
	assert.ErrorIs(t, err, ErrNotOpen, "closed engine must reject recognition")
	assert.ErrorIs(t, e.Warmup(context.Background()), ErrNotOpen)

	assert.Error(t, NewRemoteEngine(RemoteConfig{}).Open(context.Background()))
}

func TestRemoteEngineReopen(t *testing.T) {
	var recognized atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		recognized.Add(1)
		_ = json.NewEncoder(w).Encode(remoteResponse{})
	}))
	defer srv.Close()

	e := NewRemoteEngine(RemoteConfig{URL: srv.URL, HTTPClient: srv.Client()})
	ctx := context.Background()
	img := image.NewGray(image.Rect(0, 0, 1, 1))

	require.NoError(t, e.Open(ctx))
	require.NoError(t, e.Close())
	require.NoError(t, e.Close())
	_, err := e.Recognize(ctx, img)
	require.ErrorIs(t, err, ErrNotOpen)
	assert.Equal(t, int32(0), recognized.Load(), "no request leaves a closed engine")

	require.NoError(t, e.Open(ctx))
	_, err = e.Recognize(ctx, img)
	require.NoError(t, err)
	assert.Equal(t, int32(1), recognized.Load())
}
