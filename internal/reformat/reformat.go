// Package reformat sends recognized text to a chat model to repair
// layout and obvious recognition errors.
package reformat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"golang.org/x/sync/errgroup"

	"github.com/jackzampolin/smartpdf/internal/postprocess"
)

const (
	DefaultModel       = "gpt-4o-mini"
	defaultTemperature = 0.3
	defaultMaxTokens   = 4000
	defaultConcurrency = 4
)

// ErrNoAPIKey is returned when reformatting is requested without a key.
var ErrNoAPIKey = errors.New("reformat: no API key configured")

const systemPrompt = `You are a document layout editor. You receive text extracted by OCR.

Rules:
1. Fix obvious OCR misspellings and misrecognized characters.
2. Restore paragraph structure, joining sentences that were broken across lines.
3. Recognize ordered and unordered lists and format them.
4. Keep the original content and meaning. Do not add or remove information.
5. Output Markdown.
6. If the content is notes, keep a concise note style.

Output only the improved text, with no explanation or preamble.`

// Reformatter rewrites text. Implementations return the original text
// for any part they could not rewrite.
type Reformatter interface {
	Reformat(ctx context.Context, text string) (*Outcome, error)
}

// Outcome is the result of reformatting one text.
type Outcome struct {
	Original        string   `json:"original" yaml:"original"`
	Formatted       string   `json:"formatted" yaml:"formatted"`
	ChunksTotal     int      `json:"chunks_total" yaml:"chunks_total"`
	ChunksProcessed int      `json:"chunks_processed" yaml:"chunks_processed"`
	Errors          []string `json:"errors,omitempty" yaml:"errors,omitempty"`
}

// Success reports whether every chunk was rewritten.
func (o *Outcome) Success() bool { return len(o.Errors) == 0 }

// Config holds configuration for the OpenAI-compatible reformatter.
type Config struct {
	APIKey        string
	BaseURL       string        // Optional; any OpenAI-compatible endpoint
	Model         string        // "gpt-4o-mini" (default)
	MaxChunkChars int           // Characters per request (default: 2000)
	Concurrency   int           // Parallel chunk requests (default: 4)
	MaxRetries    int           // Retry attempts for SDK transport
	Timeout       time.Duration // HTTP timeout (default: 60s)
	HTTPClient    *http.Client  // Optional (tests)
	Logger        *slog.Logger
}

// OpenAIReformatter implements Reformatter with the official OpenAI SDK.
type OpenAIReformatter struct {
	apiKey      string
	model       string
	maxChunk    int
	concurrency int
	client      openai.Client
	logger      *slog.Logger
}

// NewOpenAI creates a reformatter.
func NewOpenAI(cfg Config) *OpenAIReformatter {
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.MaxChunkChars <= 0 {
		cfg.MaxChunkChars = DefaultMaxChunkChars
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = defaultConcurrency
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 60 * time.Second
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithHTTPClient(httpClient),
		option.WithMaxRetries(cfg.MaxRetries),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	return &OpenAIReformatter{
		apiKey:      cfg.APIKey,
		model:       cfg.Model,
		maxChunk:    cfg.MaxChunkChars,
		concurrency: cfg.Concurrency,
		client:      openai.NewClient(opts...),
		logger:      logger.With("component", "reformat", "model", cfg.Model),
	}
}

// Reformat cleans text with postprocess.FormatText, splits it into
// chunks and rewrites them in parallel. Chunk failures are recorded in
// the outcome and the chunk keeps its original text; only a missing API
// key or a cancelled context returns an error.
func (r *OpenAIReformatter) Reformat(ctx context.Context, text string) (*Outcome, error) {
	if r.apiKey == "" {
		return nil, ErrNoAPIKey
	}
	out := &Outcome{Original: text, Formatted: text}
	cleaned := postprocess.FormatText(text)
	if cleaned == "" {
		return out, nil
	}

	chunks := SplitChunks(cleaned, r.maxChunk)
	formatted := make([]string, len(chunks))
	errs := make([]error, len(chunks))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency)
	for i, chunk := range chunks {
		g.Go(func() error {
			formatted[i], errs[i] = r.reformatChunk(gctx, chunk)
			return nil
		})
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	out.ChunksTotal = len(chunks)
	for i, err := range errs {
		if err != nil {
			r.logger.Warn("chunk reformat failed, keeping original", "chunk", i, "error", err)
			formatted[i] = chunks[i]
			out.Errors = append(out.Errors, fmt.Sprintf("chunk %d: %v", i+1, err))
			continue
		}
		out.ChunksProcessed++
	}
	out.Formatted = strings.Join(formatted, "\n\n")
	r.logger.Debug("reformat finished", "chunks", out.ChunksTotal, "processed", out.ChunksProcessed)
	return out, nil
}

func (r *OpenAIReformatter) reformatChunk(ctx context.Context, chunk string) (string, error) {
	resp, err := r.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(r.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage("Improve the layout of the following OCR text:\n\n" + chunk),
		},
		Temperature: openai.Float(defaultTemperature),
		MaxTokens:   openai.Int(defaultMaxTokens),
	})
	if err != nil {
		return "", mapOpenAIError(err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("empty response")
	}
	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	if content == "" {
		return "", errors.New("empty completion")
	}
	return content, nil
}

func mapOpenAIError(err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		if apiErr.Message != "" {
			return fmt.Errorf("chat completion error (status %d): %s", apiErr.StatusCode, apiErr.Message)
		}
		return fmt.Errorf("chat completion error (status %d)", apiErr.StatusCode)
	}
	return err
}

// Verify interface compliance
var _ Reformatter = (*OpenAIReformatter)(nil)
