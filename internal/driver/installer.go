package driver

import (
	"context"
	"os/exec"
	"runtime"

	"github.com/rs/zerolog"
)

// Installer registers a fetched driver with the local print subsystem, creates
// the device port for the printer (skipping it when it already exists), and
// creates a print queue bound to both. One variant per OS family, chosen once
// at startup.
type Installer interface {
	// DescriptorExts lists the descriptor file extensions this platform
	// consumes, lowercase with leading dot.
	DescriptorExts() []string
	// Install runs registration, port creation, and queue creation for the
	// selected descriptor.
	Install(ctx context.Context, descriptorPath, printerIP, manufacturer, model string) error
}

// runner is the subprocess seam; tests replace it to avoid shelling out.
type runner func(ctx context.Context, name string, args ...string) ([]byte, error)

func execRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput()
}

// NewInstaller selects the platform variant for the current OS.
func NewInstaller(log zerolog.Logger) Installer {
	if runtime.GOOS == "windows" {
		return newWindowsInstaller(log)
	}
	return newCUPSInstaller(log)
}
