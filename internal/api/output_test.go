package api

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type doc struct {
	Name  string   `json:"name" yaml:"name"`
	Pages []string `json:"pages" yaml:"pages"`
}

func (d doc) Text() string { return strings.Join(d.Pages, "\n\n") }

func TestOutputTo(t *testing.T) {
	d := doc{Name: "a.pdf", Pages: []string{"one", "two"}}

	tests := []struct {
		format OutputFormat
		want   string
	}{
		{OutputFormatJSON, "{\n  \"name\": \"a.pdf\",\n  \"pages\": [\n    \"one\",\n    \"two\"\n  ]\n}\n"},
		{OutputFormatYAML, "name: a.pdf\npages:\n  - one\n  - two\n"},
		{OutputFormatText, "one\n\ntwo\n"},
	}
	for _, tt := range tests {
		t.Run(string(tt.format), func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, OutputTo(&buf, tt.format, d))
			assert.Equal(t, tt.want, buf.String())
		})
	}
}

func TestOutputTextRequiresRendering(t *testing.T) {
	var buf bytes.Buffer
	assert.Error(t, OutputTo(&buf, OutputFormatText, map[string]int{"a": 1}))
	require.NoError(t, OutputTo(&buf, OutputFormatText, "plain"))
	assert.Equal(t, "plain\n", buf.String())
}

func TestParseOutputFormat(t *testing.T) {
	f, err := ParseOutputFormat(" YAML ")
	require.NoError(t, err)
	assert.Equal(t, OutputFormatYAML, f)

	f, err = ParseOutputFormat("")
	require.NoError(t, err)
	assert.Equal(t, DefaultOutput, f)

	_, err = ParseOutputFormat("xml")
	assert.Error(t, err)

	assert.Error(t, OutputTo(&bytes.Buffer{}, "xml", nil))
}

func TestSetOutputFormat(t *testing.T) {
	t.Cleanup(func() { globalOutputFormat = DefaultOutput })

	require.NoError(t, SetOutputFormat("text"))
	assert.Equal(t, OutputFormatText, GetOutputFormat())
	assert.False(t, IsStructuredOutput())

	assert.Error(t, SetOutputFormat("xml"))
	assert.Equal(t, OutputFormatText, GetOutputFormat())
}

func TestWriteFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out."+Extension(OutputFormatYAML))
	require.NoError(t, WriteFile(path, OutputFormatYAML, doc{Name: "x"}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "name: x")
	assert.Equal(t, "txt", Extension(OutputFormatText))
}
