package pdfdoc

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jackzampolin/smartpdf/internal/classify"
)

func TestClampDPI(t *testing.T) {
	tests := []struct {
		in, want int
	}{
		{0, 300},
		{72, 150},
		{150, 150},
		{200, 200},
		{600, 600},
		{1200, 600},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.in), func(t *testing.T) {
			assert.Equal(t, tt.want, ClampDPI(tt.in))
		})
	}
}

func TestOpenMalformed(t *testing.T) {
	dir := t.TempDir()
	bad := filepath.Join(dir, "bad.pdf")
	require.NoError(t, os.WriteFile(bad, []byte("this is not a pdf"), 0o644))

	_, err := Open(bad)
	var cerr *classify.ClassificationError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, bad, cerr.Source)

	_, err = Open(filepath.Join(dir, "missing.pdf"))
	require.ErrorAs(t, err, &cerr)
}

const fixture = "testdata/three_pages.pdf"

func TestOpenAndExtract(t *testing.T) {
	doc, err := Open(fixture)
	require.NoError(t, err)
	defer doc.Close()

	assert.Equal(t, fixture, doc.Source())
	require.Equal(t, 3, doc.PageCount())

	ctx := context.Background()
	first, err := doc.ExtractText(ctx, 0)
	require.NoError(t, err)
	assert.Contains(t, first, "Hello from page one")

	blank, err := doc.ExtractText(ctx, 1)
	require.NoError(t, err)
	assert.Empty(t, strings.TrimSpace(blank), "a page without a text layer extracts nothing")

	last, err := doc.ExtractText(ctx, 2)
	require.NoError(t, err)
	assert.Contains(t, last, "Closing remarks on page three")

	_, err = doc.ExtractText(ctx, 3)
	assert.ErrorIs(t, err, ErrPageOutOfRange)
	_, err = doc.ExtractText(ctx, -1)
	assert.ErrorIs(t, err, ErrPageOutOfRange)
}

func TestExtractAll(t *testing.T) {
	doc, err := Open(fixture)
	require.NoError(t, err)
	defer doc.Close()

	all, err := doc.ExtractAll(context.Background())
	require.NoError(t, err)
	first := strings.Index(all, "Hello from page one")
	last := strings.Index(all, "Closing remarks on page three")
	require.GreaterOrEqual(t, first, 0)
	require.Greater(t, last, first, "pages are joined in order")
	assert.Contains(t, all[first:last], "\n\n", "pages are separated by a blank line")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = doc.ExtractAll(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestExtractAfterClose(t *testing.T) {
	doc, err := Open(fixture)
	require.NoError(t, err)
	require.NoError(t, doc.Close())
	require.NoError(t, doc.Close())

	_, err = doc.ExtractText(context.Background(), 0)
	assert.Error(t, err)
}

// fakePdftoppm writes a script that copies src to "<prefix>.png", where
// prefix is the last argument, mimicking pdftoppm -singlefile.
func fakePdftoppm(t *testing.T, src string, fail bool) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell script fake requires a POSIX shell")
	}
	script := fmt.Sprintf("#!/bin/sh\nfor last; do :; done\necho \"$@\" > %q\ncp %q \"$last.png\"\n",
		filepath.Join(filepath.Dir(src), "args.txt"), src)
	if fail {
		script = "#!/bin/sh\necho 'Syntax Error: broken page' >&2\nexit 1\n"
	}
	path := filepath.Join(t.TempDir(), "pdftoppm")
	require.NoError(t, os.WriteFile(path, []byte(script), 0o755))
	return path
}

func writePNG(t *testing.T, w, h int) string {
	t.Helper()
	img := image.NewGray(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = 255
	}
	img.SetGray(1, 1, color.Gray{Y: 0})
	path := filepath.Join(t.TempDir(), "src.png")
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, img))
	require.NoError(t, f.Close())
	return path
}

func TestRendererRender(t *testing.T) {
	src := writePNG(t, 40, 60)
	r := NewRenderer(RendererConfig{Command: fakePdftoppm(t, src, false), WorkDir: t.TempDir()})

	page, err := r.Render(context.Background(), "doc.pdf", 4, 1000)
	require.NoError(t, err)
	assert.Equal(t, 4, page.Index)
	assert.Equal(t, 40, page.Width)
	assert.Equal(t, 60, page.Height)
	assert.Equal(t, MaxDPI, page.DPI)

	args, err := os.ReadFile(filepath.Join(filepath.Dir(src), "args.txt"))
	require.NoError(t, err)
	assert.Contains(t, string(args), "-f 5 -l 5 -r 600")
}

func TestRendererConfiguredBounds(t *testing.T) {
	src := writePNG(t, 10, 10)
	r := NewRenderer(RendererConfig{Command: fakePdftoppm(t, src, false), DPI: 100, MinDPI: 72, MaxDPI: 1200})

	assert.Equal(t, 100, r.ClampDPI(0))
	assert.Equal(t, 72, r.ClampDPI(50))
	assert.Equal(t, 900, r.ClampDPI(900), "configured bounds replace the package defaults")
	assert.Equal(t, 1200, r.ClampDPI(5000))

	page, err := r.Render(context.Background(), "doc.pdf", 0, 900)
	require.NoError(t, err)
	assert.Equal(t, 900, page.DPI)

	page, err = r.Render(context.Background(), "doc.pdf", 0, 0)
	require.NoError(t, err)
	assert.Equal(t, 100, page.DPI)

	d := NewRenderer(RendererConfig{})
	assert.Equal(t, DefaultDPI, d.ClampDPI(0))
	assert.Equal(t, MaxDPI, d.ClampDPI(5000))
}

func TestRendererFailure(t *testing.T) {
	r := NewRenderer(RendererConfig{Command: fakePdftoppm(t, "", true)})
	_, err := r.Render(context.Background(), "doc.pdf", 0, 300)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broken page")
}

func TestRendererCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewRenderer(RendererConfig{}).Render(ctx, "doc.pdf", 0, 300)
	assert.ErrorIs(t, err, context.Canceled)
}
