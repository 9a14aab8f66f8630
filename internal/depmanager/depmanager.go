// Package depmanager locates the external tools a batch depends on.
// It probes PATH and the bins dir, and can optionally install yt-dlp and
// ffmpeg into the bins dir when they are missing.
package depmanager

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"

	"vidbatch/internal/config"
	"vidbatch/internal/entity"
	"vidbatch/internal/errs"
)

// BinaryName represents the name of a binary dependency.
type BinaryName string

// Binary dependency names.
const (
	BinaryYTdlp   BinaryName = "yt-dlp"
	BinaryFFmpeg  BinaryName = "ffmpeg"
	BinaryFFprobe BinaryName = "ffprobe"
)

// Platform operating system names and architectures.
const (
	platformLinux   = "linux"
	platformWindows = "windows"
	archARM64       = "arm64"
	archAMD64       = "amd64"
)

// Platform represents the OS and architecture combination.
type Platform struct {
	OS   string
	Arch string
}

// String returns the platform string in format "os/arch".
func (p Platform) String() string {
	return p.OS + "/" + p.Arch
}

// Manager resolves and, when enabled, installs binary dependencies.
type Manager struct {
	log      *slog.Logger
	cfg      *config.Config
	platform Platform
	client   *http.Client
}

// New creates a new dependency manager.
func New(log *slog.Logger, cfg *config.Config) *Manager {
	return &Manager{
		log: log.With(slog.String("package", "depmanager")),
		cfg: cfg,
		platform: Platform{
			OS:   runtime.GOOS,
			Arch: runtime.GOARCH,
		},
		client: &http.Client{
			Timeout: downloadTimeout,
		},
	}
}

// RequiredTools returns the configured downloader and remuxer.
func (m *Manager) RequiredTools() []BinaryName {
	return []BinaryName{
		BinaryName(m.cfg.Tools.Downloader),
		BinaryName(m.cfg.Tools.Remuxer),
	}
}

// Start installs missing tools when auto-install is enabled. Without it the
// manager never touches the filesystem.
func (m *Manager) Start(ctx context.Context) {
	if !m.cfg.DepManager.AutoInstall {
		return
	}

	if err := m.InstallMissing(ctx, m.RequiredTools()...); err != nil {
		m.log.ErrorContext(ctx, "install missing binaries", slog.Any("error", err))
	}
}

// Probe reports, for each tool, whether it can be resolved. Tools are never executed.
func (m *Manager) Probe(tools ...BinaryName) []entity.CapabilityCheck {
	checks := make([]entity.CapabilityCheck, 0, len(tools))

	for _, tool := range tools {
		path, err := m.Resolve(tool)

		checks = append(checks, entity.CapabilityCheck{
			Tool:    string(tool),
			Present: err == nil,
			Path:    path,
		})
	}

	return checks
}

// Missing returns the names of the tools that failed the probe.
func Missing(checks []entity.CapabilityCheck) []string {
	var missing []string

	for _, check := range checks {
		if !check.Present {
			missing = append(missing, check.Tool)
		}
	}

	return missing
}

// Resolve returns the path of a tool, looking at PATH first and the bins dir second.
func (m *Manager) Resolve(name BinaryName) (string, error) {
	if name == "" {
		return "", fmt.Errorf("%w: empty name", errs.ErrBinaryNotFound)
	}

	path, err := exec.LookPath(string(name))
	if err == nil {
		return path, nil
	}

	if !errors.Is(err, exec.ErrNotFound) && !errors.Is(err, os.ErrNotExist) {
		m.log.Debug("look path", slog.String("binary", string(name)), slog.Any("error", err))
	}

	binPath := m.GetBinaryPath(name)
	if m.isBinaryExists(binPath) {
		return binPath, nil
	}

	return "", fmt.Errorf("%w: %s", errs.ErrBinaryNotFound, name)
}

// GetBinaryPath returns the bins dir location of a binary.
//   - /app/bins + yt-dlp => /app/bins/yt-dlp
func (m *Manager) GetBinaryPath(name BinaryName) string {
	filename := string(name)
	if m.platform.OS == platformWindows {
		filename += ".exe"
	}

	return filepath.Join(m.cfg.DepManager.BinsDir, filename)
}

// isBinaryExists checks that a file exists, is non-empty and is executable.
func (m *Manager) isBinaryExists(binPath string) bool {
	info, err := os.Stat(binPath)
	if err != nil || info.IsDir() || info.Size() == 0 {
		return false
	}

	if m.platform.OS == platformWindows {
		return true
	}

	return info.Mode().Perm()&0o111 != 0
}
