// Package platform reports host platform details for client launching.
//
// The game client is a Windows binary. On Windows it is executed directly;
// everywhere else it runs under a compatibility launcher (wine). Host
// details come from runtime plus gopsutil, with graceful fallback when
// distribution detection fails.
package platform

import (
	"context"
	"os/exec"
	"runtime"

	"github.com/shirou/gopsutil/v4/host"
)

// Info contains detected host platform information.
type Info struct {
	OS       string // "linux", "darwin", "windows"
	Arch     string // GOARCH
	Platform string // distro ID (Linux only, e.g. "ubuntu")
	Version  string // distro version (Linux only)
}

// Native reports whether the host is the client's native platform.
func (i *Info) Native() bool {
	return i.OS == "windows"
}

// Detector is the interface for host platform detection.
type Detector interface {
	Detect(ctx context.Context) (*Info, error)
}

// RealDetector implements Detector using actual host inspection.
type RealDetector struct{}

// NewDetector creates a new platform detector.
func NewDetector() Detector {
	return &RealDetector{}
}

// Detect returns platform information for the host. On Linux, distro
// details come from gopsutil; if that fails the OS/arch information is
// still returned (graceful fallback), unless the context was cancelled.
func (d *RealDetector) Detect(ctx context.Context) (*Info, error) {
	info := &Info{
		OS:   runtime.GOOS,
		Arch: runtime.GOARCH,
	}

	if runtime.GOOS == "linux" {
		platform, _, version, err := host.PlatformInformationWithContext(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return info, nil
		}
		info.Platform = platform
		info.Version = version
	}

	return info, nil
}

// Native reports whether the running host is the client's native platform.
func Native() bool {
	return runtime.GOOS == "windows"
}

// LauncherAvailable reports whether the configured compatibility launcher
// can be resolved on PATH (or as an absolute path).
func LauncherAvailable(launcher string) bool {
	_, err := exec.LookPath(launcher)
	return err == nil
}
