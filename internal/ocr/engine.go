package ocr

import (
	"fmt"
	"log/slog"
	"time"
)

// EngineConfig selects and configures a recognition engine.
type EngineConfig struct {
	Engine    string // "tesseract" or "remote"
	Languages []string
	DPI       int

	RemoteURL      string
	RemoteAPIKey   string
	RemoteTimeout  time.Duration
	WarmupAttempts int

	Logger *slog.Logger
}

// NewEngine constructs the named engine. The result is not opened.
func NewEngine(cfg EngineConfig) (Recognizer, error) {
	switch cfg.Engine {
	case "", "tesseract":
		return NewTesseractEngine(TesseractConfig{
			Languages: cfg.Languages,
			DPI:       cfg.DPI,
			Logger:    cfg.Logger,
		}), nil
	case "remote":
		return NewRemoteEngine(RemoteConfig{
			URL:            cfg.RemoteURL,
			APIKey:         cfg.RemoteAPIKey,
			Timeout:        cfg.RemoteTimeout,
			WarmupAttempts: cfg.WarmupAttempts,
			Logger:         cfg.Logger,
		}), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownEngine, cfg.Engine)
	}
}
