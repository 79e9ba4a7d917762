package home

import (
	"fmt"
	"os"
	"path/filepath"
)

const (
	// DefaultDirName is the default name for the smartpdf home directory.
	DefaultDirName = ".smartpdf"

	// WorkDirName is the scratch directory for rendered pages.
	WorkDirName = "work"

	// OutputDirName is the default destination for run output files.
	OutputDirName = "output"

	// ConfigFileName is the default config file name.
	ConfigFileName = "config.yaml"

	// HistoryFileName is the run history database.
	HistoryFileName = "history.db"
)

// Dir represents the smartpdf home directory structure.
type Dir struct {
	path string
}

// New creates a new Dir with the given path.
// If path is empty, uses the default (~/.smartpdf).
func New(path string) (*Dir, error) {
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get user home directory: %w", err)
		}
		path = filepath.Join(home, DefaultDirName)
	}

	return &Dir{path: path}, nil
}

// Path returns the root path of the home directory.
func (d *Dir) Path() string {
	return d.path
}

// WorkPath returns the scratch directory used while rendering.
func (d *Dir) WorkPath() string {
	return filepath.Join(d.path, WorkDirName)
}

// OutputPath returns the default output directory.
func (d *Dir) OutputPath() string {
	return filepath.Join(d.path, OutputDirName)
}

// RunOutputPath returns the output file for a run in the given format.
func (d *Dir) RunOutputPath(runID, ext string) string {
	return filepath.Join(d.OutputPath(), fmt.Sprintf("%s.%s", runID, ext))
}

// ConfigPath returns the path to the default config file.
func (d *Dir) ConfigPath() string {
	return filepath.Join(d.path, ConfigFileName)
}

// HistoryPath returns the path to the run history database.
func (d *Dir) HistoryPath() string {
	return filepath.Join(d.path, HistoryFileName)
}

// EnsureExists creates the home directory and subdirectories if they don't exist.
func (d *Dir) EnsureExists() error {
	for _, dir := range []string{d.WorkPath(), d.OutputPath()} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}
	return nil
}

// Exists returns true if the home directory exists.
func (d *Dir) Exists() bool {
	_, err := os.Stat(d.path)
	return err == nil
}

// ConfigExists returns true if the config file exists in the home directory.
func (d *Dir) ConfigExists() bool {
	_, err := os.Stat(d.ConfigPath())
	return err == nil
}
