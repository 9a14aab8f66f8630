package downloader

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"vidbatch/internal/config"
	"vidbatch/internal/consts"
	"vidbatch/internal/depmanager"
	"vidbatch/internal/entity"
	"vidbatch/internal/errs"
	"vidbatch/internal/observability"
	"vidbatch/pkg/shellquote"
)

const (
	// waitDelay bounds how long Wait blocks on output pipes after the process is killed.
	waitDelay = 2 * time.Second
	// dirPerm is the permission for the output directory.
	dirPerm = 0o755
)

// YTdlp runs yt-dlp as a child process.
type YTdlp struct {
	log     *slog.Logger
	cfg     *config.Config
	depMgr  *depmanager.Manager
	metrics *observability.Metrics
}

var _ Executor = (*YTdlp)(nil)

// NewYTdlp creates a new YTdlp executor.
func NewYTdlp(
	log *slog.Logger,
	cfg *config.Config,
	depMgr *depmanager.Manager,
	metrics *observability.Metrics,
) *YTdlp {
	return &YTdlp{
		log:     log.With(slog.String("package", "downloader"), slog.String("downloader", consts.DownloaderYTdlp)),
		cfg:     cfg,
		depMgr:  depMgr,
		metrics: metrics,
	}
}

// Execute runs `yt-dlp -f <format> -o <destination> <url>` and waits for it to exit.
func (d *YTdlp) Execute(ctx context.Context, url, destination string) (outcome entity.Outcome) {
	log := d.log.With(slog.String("url", url), slog.String("destination", destination))

	defer func() {
		if rvr := recover(); rvr != nil {
			log.ErrorContext(ctx, "downloader panic", slog.Any("panic", rvr))
			outcome = failure(url, fmt.Sprintf("%v: %v", errs.ErrLaunchFailed, rvr))
		}

		d.metrics.RecordDownloaderRequest(consts.DownloaderYTdlp, string(outcome.Status))
	}()

	binPath, err := d.depMgr.Resolve(depmanager.BinaryName(d.cfg.Tools.Downloader))
	if err != nil {
		// let the launch fail and report it like any other launch error
		binPath = d.cfg.Tools.Downloader
	}

	if err := os.MkdirAll(filepath.Dir(destination), dirPerm); err != nil {
		d.metrics.RecordDownloaderError(consts.DownloaderYTdlp, "launch")

		return failure(url, fmt.Sprintf("%v: create output dir: %v", errs.ErrLaunchFailed, err))
	}

	runCtx, cancel := d.withTimeout(ctx)
	defer cancel()

	args := d.buildArgs(url, destination)

	var stderr bytes.Buffer

	cmd := exec.CommandContext(runCtx, binPath, args...)
	cmd.Stderr = &stderr
	cmd.WaitDelay = waitDelay

	log.DebugContext(ctx, "executing yt-dlp", slog.String("cmd", shellquote.Join(binPath, args)))

	start := time.Now()
	err = cmd.Run()

	log = log.With(slog.Duration("took", time.Since(start)))

	if err == nil {
		outcome = entity.Outcome{
			URL:         url,
			Status:      entity.OutcomeSuccess,
			OutputPath:  destination,
			DisplayName: filepath.Base(destination),
		}

		log.InfoContext(ctx, "download finished", slog.Any("outcome", outcome))

		return outcome
	}

	outcome = d.classify(runCtx, url, err, stderr.String())

	log.ErrorContext(ctx, "download failed", slog.Any("error", err), slog.String("stderr", stderr.String()))

	return outcome
}

func (d *YTdlp) buildArgs(url, destination string) []string {
	return []string{"-f", d.cfg.Tools.Format, "-o", destination, url}
}

func (d *YTdlp) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if d.cfg.Job.Timeout <= 0 {
		return context.WithCancel(ctx)
	}

	return context.WithTimeout(ctx, d.cfg.Job.Timeout)
}

// classify turns a failed run into a failure Outcome.
func (d *YTdlp) classify(runCtx context.Context, url string, runErr error, stderr string) entity.Outcome {
	if ctxErr := runCtx.Err(); ctxErr != nil {
		errorType := classifyProcessingError(ctxErr)
		d.metrics.RecordDownloaderError(consts.DownloaderYTdlp, errorType)

		if errors.Is(ctxErr, context.DeadlineExceeded) {
			return failure(url, fmt.Sprintf("%v after %s", errs.ErrDownloadTimeout, d.cfg.Job.Timeout))
		}

		return failure(url, fmt.Sprintf("%v: %v", errs.ErrDownloadFailed, ctxErr))
	}

	var exitErr *exec.ExitError
	if errors.As(runErr, &exitErr) {
		d.metrics.RecordDownloaderError(consts.DownloaderYTdlp, "exit")

		msg := strings.TrimSpace(stderr)
		if msg == "" {
			msg = fmt.Sprintf("%v: %v", errs.ErrDownloadFailed, exitErr)
		}

		return failure(url, msg)
	}

	d.metrics.RecordDownloaderError(consts.DownloaderYTdlp, "launch")

	return failure(url, fmt.Sprintf("%v: %v", errs.ErrLaunchFailed, runErr))
}

func failure(url, msg string) entity.Outcome {
	return entity.Outcome{
		URL:    url,
		Status: entity.OutcomeFailure,
		Error:  msg,
	}
}
