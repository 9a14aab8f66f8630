package depmanager

import (
	"archive/tar"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"vidbatch/internal/errs"

	"github.com/ulikunitz/xz"
)

// Internal constants for binary management.
const (
	// downloadTimeout is the HTTP client timeout for downloading binaries.
	downloadTimeout = 10 * time.Minute
	// filePermExecutable is the file permission for executable binaries.
	filePermExecutable = 0o755
)

// InstallMissing downloads every tool that cannot be resolved into the bins dir.
func (m *Manager) InstallMissing(ctx context.Context, tools ...BinaryName) error {
	log := m.log

	if m.platform.OS != platformLinux {
		return fmt.Errorf("%w: %s", errs.ErrUnsupportedPlatform, m.platform)
	}

	err := os.MkdirAll(m.cfg.DepManager.BinsDir, filePermExecutable)
	if err != nil {
		return fmt.Errorf("create bins directory: %w", err)
	}

	for _, binary := range tools {
		if path, err := m.Resolve(binary); err == nil {
			log.DebugContext(ctx, "binary already present",
				slog.String("binary", string(binary)),
				slog.String("path", path))

			continue
		}

		err = m.downloadAndInstall(ctx, binary)
		if err != nil {
			return fmt.Errorf("download and install %s: %w", binary, err)
		}
	}

	log.InfoContext(ctx, "all binaries are installed", slog.Any("binaries", tools))

	return nil
}

// downloadAndInstall downloads and installs a dependency binary.
func (m *Manager) downloadAndInstall(ctx context.Context, name BinaryName) error {
	log := m.log.With(slog.String("binary", string(name)))

	url := m.getBinaryURL(name)
	if url == "" {
		return fmt.Errorf("no download URL configured for %s on %s", name, m.platform)
	}

	log.InfoContext(ctx, "downloading binary", slog.String("url", url))

	binPaths, err := m.downloadDependency(ctx, url, name)
	if err != nil {
		return fmt.Errorf("download dependency: %w", err)
	}

	for _, path := range binPaths {
		if err := os.Chmod(path, filePermExecutable); err != nil {
			return fmt.Errorf("chmod: %w", err)
		}
	}

	log.InfoContext(ctx, "binary installed successfully", slog.Any("paths", binPaths))

	return nil
}

func (m *Manager) getBinaryURL(name BinaryName) string {
	cfg := m.cfg.DepManager

	switch name {
	case BinaryYTdlp:
		return m.selectURL(cfg.YTdlpLinuxARM64, cfg.YTdlpLinuxAMD64)
	case BinaryFFmpeg, BinaryFFprobe:
		return m.selectURL(cfg.FFmpegLinuxARM64, cfg.FFmpegLinuxAMD64)
	}

	return ""
}

func (m *Manager) selectURL(linuxARM64, linuxAMD64 string) string {
	if m.platform.Arch == archARM64 && linuxARM64 != "" {
		return linuxARM64
	}

	return linuxAMD64
}

// downloadDependency fetches a binary or archive and returns the installed paths.
func (m *Manager) downloadDependency(ctx context.Context, url string, name BinaryName) ([]string, error) {
	binPath := m.GetBinaryPath(name)
	destDir := filepath.Dir(binPath)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := m.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	tmpFile, err := os.CreateTemp(destDir, "download-*")
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}

	tmpPath := tmpFile.Name()

	defer func() {
		tmpFile.Close()
		os.Remove(tmpPath)
	}()

	if _, err := io.Copy(tmpFile, resp.Body); err != nil {
		return nil, fmt.Errorf("write file: %w", err)
	}

	if err := tmpFile.Close(); err != nil {
		return nil, fmt.Errorf("close temp file: %w", err)
	}

	if !strings.HasSuffix(url, ".tar.xz") {
		if err := os.Rename(tmpPath, binPath); err != nil {
			return nil, fmt.Errorf("rename: %w", err)
		}

		return []string{binPath}, nil
	}

	targets := m.getFilesNeeded(name)

	if err := m.extractFromTarXZ(tmpPath, destDir, targets); err != nil {
		return nil, fmt.Errorf("extract: %w", err)
	}

	installed := make([]string, 0, len(targets))
	for target := range targets {
		installed = append(installed, filepath.Join(destDir, target))
	}

	return installed, nil
}

// getFilesNeeded returns the set of files needed from an archive for a given binary.
func (m *Manager) getFilesNeeded(name BinaryName) map[string]struct{} {
	files := make(map[string]struct{})

	switch name {
	case BinaryFFmpeg, BinaryFFprobe:
		files[string(BinaryFFmpeg)] = struct{}{}
		files[string(BinaryFFprobe)] = struct{}{}
	default:
		files[string(name)] = struct{}{}
	}

	return files
}

func (m *Manager) extractFromTarXZ(tarXZPath, destDir string, targets map[string]struct{}) error {
	file, err := os.Open(tarXZPath)
	if err != nil {
		return fmt.Errorf("open tar.xz: %w", err)
	}
	defer file.Close()

	xzReader, err := xz.NewReader(file)
	if err != nil {
		return fmt.Errorf("create xz reader: %w", err)
	}

	return m.extractTarSelected(xzReader, destDir, targets)
}

func (m *Manager) extractTarSelected(reader io.Reader, destDir string, targets map[string]struct{}) error {
	tarReader := tar.NewReader(reader)
	extracted := 0

	for {
		header, err := tarReader.Next()
		if err == io.EOF {
			break
		}

		if err != nil {
			return fmt.Errorf("read tar header: %w", err)
		}

		if header.Typeflag != tar.TypeReg {
			continue
		}

		filename := filepath.Base(header.Name)
		if _, ok := targets[filename]; !ok {
			continue
		}

		destPath := filepath.Join(destDir, filename)

		outFile, err := os.OpenFile(destPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, filePermExecutable)
		if err != nil {
			return fmt.Errorf("create dest file: %w", err)
		}

		_, err = io.Copy(outFile, tarReader)
		outFile.Close()

		if err != nil {
			return fmt.Errorf("extract file: %w", err)
		}

		extracted++

		if extracted == len(targets) {
			return nil
		}
	}

	if extracted == 0 {
		return fmt.Errorf("no target files found in tar archive")
	}

	return nil
}
