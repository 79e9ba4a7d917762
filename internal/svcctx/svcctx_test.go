package svcctx

import (
	"context"
	"log/slog"
	"testing"

	"github.com/jackzampolin/smartpdf/internal/home"
)

func TestServicesRoundTrip(t *testing.T) {
	ctx := context.Background()
	if ServicesFrom(ctx) != nil {
		t.Fatal("expected no services on empty context")
	}
	if LoggerFrom(ctx) != slog.Default() {
		t.Error("expected default logger fallback")
	}
	if ConfigFrom(ctx) != nil || HomeFrom(ctx) != nil || HistoryFrom(ctx) != nil {
		t.Error("expected nil extractors on empty context")
	}

	logger := slog.New(slog.DiscardHandler)
	h := &home.Dir{}
	ctx = WithServices(ctx, &Services{Logger: logger, Home: h})

	if LoggerFrom(ctx) != logger {
		t.Error("logger not extracted")
	}
	if HomeFrom(ctx) != h {
		t.Error("home not extracted")
	}
	if HistoryFrom(ctx) != nil {
		t.Error("history should be nil when disabled")
	}
}
