// Package version exposes build metadata set at link time, e.g.
//
//	go build -ldflags "-X github.com/jackzampolin/smartpdf/version.GitRelease=v0.1.0"
package version

import (
	"fmt"
	"runtime"
)

var (
	// GitRelease is the release tag, or "dev" for local builds.
	GitRelease = "dev"

	// GitCommit is the commit hash the binary was built from.
	GitCommit = "unknown"

	// GitCommitDate is the commit date.
	GitCommitDate = "unknown"

	// GoInfo describes the Go toolchain and target platform.
	GoInfo = fmt.Sprintf("%s %s/%s", runtime.Version(), runtime.GOOS, runtime.GOARCH)
)
