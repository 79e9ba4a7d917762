// Package svcctx provides service context for dependency injection via context.
// Commands build the services once and extract what they need.
package svcctx

import (
	"context"
	"log/slog"

	"github.com/jackzampolin/smartpdf/internal/config"
	"github.com/jackzampolin/smartpdf/internal/history"
	"github.com/jackzampolin/smartpdf/internal/home"
)

// Services holds all core services that flow through context.
// Components extract what they need via the individual extractors.
type Services struct {
	Logger  *slog.Logger
	Config  *config.Manager
	Home    *home.Dir
	History *history.Store // nil when history is disabled
}

type servicesKey struct{}

// WithServices returns a new context with services attached.
func WithServices(ctx context.Context, s *Services) context.Context {
	return context.WithValue(ctx, servicesKey{}, s)
}

// ServicesFrom extracts the full Services struct from context.
// Returns nil if not present.
func ServicesFrom(ctx context.Context) *Services {
	s, _ := ctx.Value(servicesKey{}).(*Services)
	return s
}

// LoggerFrom extracts the logger from context, falling back to the
// default logger.
func LoggerFrom(ctx context.Context) *slog.Logger {
	if s := ServicesFrom(ctx); s != nil && s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}

// ConfigFrom extracts the config manager from context.
func ConfigFrom(ctx context.Context) *config.Manager {
	if s := ServicesFrom(ctx); s != nil {
		return s.Config
	}
	return nil
}

// HomeFrom extracts the home directory from context.
func HomeFrom(ctx context.Context) *home.Dir {
	if s := ServicesFrom(ctx); s != nil {
		return s.Home
	}
	return nil
}

// HistoryFrom extracts the history store from context.
func HistoryFrom(ctx context.Context) *history.Store {
	if s := ServicesFrom(ctx); s != nil {
		return s.History
	}
	return nil
}
