// Package api renders smartpdf results for the command line.
package api

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// OutputFormat defines the output format for CLI commands.
type OutputFormat string

const (
	OutputFormatYAML OutputFormat = "yaml"
	OutputFormatJSON OutputFormat = "json"
	OutputFormatText OutputFormat = "text"
)

// DefaultOutput is the default output format.
var DefaultOutput OutputFormat = OutputFormatJSON

// globalOutputFormat is set by the root command's --output flag.
var globalOutputFormat OutputFormat = DefaultOutput

// Texter is implemented by values with a plain-text rendering, such as a
// run result whose text is the joined page text.
type Texter interface {
	Text() string
}

// ParseOutputFormat maps a flag value to an OutputFormat.
func ParseOutputFormat(format string) (OutputFormat, error) {
	switch f := OutputFormat(strings.ToLower(strings.TrimSpace(format))); f {
	case OutputFormatJSON, OutputFormatYAML, OutputFormatText:
		return f, nil
	case "":
		return DefaultOutput, nil
	default:
		return "", fmt.Errorf("unknown output format %q (want json, yaml or text)", format)
	}
}

// SetOutputFormat sets the global output format.
func SetOutputFormat(format string) error {
	f, err := ParseOutputFormat(format)
	if err != nil {
		return err
	}
	globalOutputFormat = f
	return nil
}

// GetOutputFormat returns the current global output format.
func GetOutputFormat() OutputFormat {
	return globalOutputFormat
}

// Output writes data to stdout in the configured format.
func Output(data any) error {
	return OutputTo(os.Stdout, globalOutputFormat, data)
}

// OutputAs writes data to stdout in the specified format.
func OutputAs(format OutputFormat, data any) error {
	return OutputTo(os.Stdout, format, data)
}

// OutputTo writes data to the given writer in the specified format.
func OutputTo(w io.Writer, format OutputFormat, data any) error {
	switch format {
	case OutputFormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(data)
	case OutputFormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		defer enc.Close()
		return enc.Encode(data)
	case OutputFormatText:
		return writeText(w, data)
	default:
		return fmt.Errorf("unknown output format: %s", format)
	}
}

// WriteFile writes data to path in the specified format.
func WriteFile(path string, format OutputFormat, data any) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	if err := OutputTo(f, format, data); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// Extension returns the file extension for a format.
func Extension(format OutputFormat) string {
	switch format {
	case OutputFormatYAML:
		return "yaml"
	case OutputFormatText:
		return "txt"
	default:
		return "json"
	}
}

func writeText(w io.Writer, data any) error {
	var s string
	switch v := data.(type) {
	case Texter:
		s = v.Text()
	case string:
		s = v
	case fmt.Stringer:
		s = v.String()
	default:
		return fmt.Errorf("no text rendering for %T", data)
	}
	if !strings.HasSuffix(s, "\n") {
		s += "\n"
	}
	_, err := io.WriteString(w, s)
	return err
}

// IsStructuredOutput returns true if the output format is structured (JSON/YAML).
// This can be used by commands that want to provide human-friendly messages
// only when not in structured output mode.
func IsStructuredOutput() bool {
	return globalOutputFormat == OutputFormatJSON || globalOutputFormat == OutputFormatYAML
}
