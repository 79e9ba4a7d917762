package pdfdoc

import (
	"context"
	"fmt"
	"image"
	"image/png"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
)

// Render resolution bounds.
const (
	MinDPI     = 150
	DefaultDPI = 300
	MaxDPI     = 600
)

// RenderedPage is a rasterized page. It is owned by whoever produced it
// until handed to recognition.
type RenderedPage struct {
	Index  int
	Image  image.Image
	Width  int
	Height int
	DPI    int
}

// ClampDPI maps 0 to DefaultDPI and clamps everything else into
// [MinDPI, MaxDPI].
func ClampDPI(dpi int) int {
	return clampDPI(dpi, DefaultDPI, MinDPI, MaxDPI)
}

func clampDPI(dpi, def, lo, hi int) int {
	switch {
	case dpi == 0:
		return def
	case dpi < lo:
		return lo
	case dpi > hi:
		return hi
	}
	return dpi
}

// Renderer rasterizes single pages with pdftoppm (poppler-utils).
type Renderer struct {
	command string
	workDir string
	dpi     int
	minDPI  int
	maxDPI  int
	logger  *slog.Logger
}

// RendererConfig configures a Renderer. Zero resolution fields take the
// package defaults.
type RendererConfig struct {
	Command string // pdftoppm binary (default: "pdftoppm")
	WorkDir string // Parent of per-page temp dirs (default: os.TempDir())
	DPI     int    // Resolution used when a caller asks for 0 (default: 300)
	MinDPI  int    // Lower clamp (default: 150)
	MaxDPI  int    // Upper clamp (default: 600)
	Logger  *slog.Logger
}

// NewRenderer creates a Renderer.
func NewRenderer(cfg RendererConfig) *Renderer {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	command := cfg.Command
	if command == "" {
		command = "pdftoppm"
	}
	r := &Renderer{
		command: command,
		workDir: cfg.WorkDir,
		dpi:     cfg.DPI,
		minDPI:  cfg.MinDPI,
		maxDPI:  cfg.MaxDPI,
		logger:  logger.With("component", "render"),
	}
	if r.minDPI <= 0 {
		r.minDPI = MinDPI
	}
	if r.maxDPI <= 0 {
		r.maxDPI = MaxDPI
	}
	if r.maxDPI < r.minDPI {
		r.maxDPI = r.minDPI
	}
	if r.dpi <= 0 {
		r.dpi = DefaultDPI
	}
	r.dpi = clampDPI(r.dpi, r.dpi, r.minDPI, r.maxDPI)
	return r
}

// ClampDPI maps 0 to the renderer's default resolution and clamps
// everything else into its configured bounds.
func (r *Renderer) ClampDPI(dpi int) int {
	return clampDPI(dpi, r.dpi, r.minDPI, r.maxDPI)
}

// Render rasterizes the 0-based page of the PDF at path. The DPI is
// clamped with the renderer's ClampDPI. Cancelling ctx kills the pdftoppm
// process.
func (r *Renderer) Render(ctx context.Context, path string, index, dpi int) (*RenderedPage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	dpi = r.ClampDPI(dpi)

	tmpDir, err := os.MkdirTemp(r.workDir, "smartpdf-page-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp dir: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	// -gray: recognition works on luminance only
	// -singlefile: no page number suffix on the output name
	outputPrefix := filepath.Join(tmpDir, "page")
	pageStr := strconv.Itoa(index + 1)
	cmd := exec.CommandContext(ctx, r.command,
		"-png",
		"-gray",
		"-f", pageStr,
		"-l", pageStr,
		"-r", strconv.Itoa(dpi),
		"-singlefile",
		path,
		outputPrefix,
	)
	if output, err := cmd.CombinedOutput(); err != nil {
		return nil, fmt.Errorf("pdftoppm failed: %w (output: %s)", err, string(output))
	}

	f, err := os.Open(outputPrefix + ".png")
	if err != nil {
		return nil, fmt.Errorf("pdftoppm did not create expected output: %w", err)
	}
	defer f.Close()

	img, err := png.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("failed to decode rendered page: %w", err)
	}

	b := img.Bounds()
	r.logger.Debug("page rendered", "page", index, "dpi", dpi, "width", b.Dx(), "height", b.Dy())
	return &RenderedPage{
		Index:  index,
		Image:  img,
		Width:  b.Dx(),
		Height: b.Dy(),
		DPI:    dpi,
	}, nil
}
