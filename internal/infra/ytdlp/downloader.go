package ytdlp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"quizly-service/internal/domain"
)

// Runner executes an external command and returns its stdout. Injected so
// tests can script tool behavior without the binary installed.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

type execRunner struct{}

func (execRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("%s failed: %w; stderr=%s", name, err, strings.TrimSpace(stderr.String()))
	}
	return stdout.Bytes(), nil
}

// Downloader retrieves the best available audio track for a video with
// yt-dlp. Each call works in its own scratch directory that is reclaimed
// before returning; the resulting file is moved to a persistent temporary
// path owned by the caller.
type Downloader struct {
	binary   string
	workRoot string
	runner   Runner
	log      *zap.SugaredLogger
}

func NewDownloader(binary, workRoot string, log *zap.SugaredLogger) *Downloader {
	if binary == "" {
		binary = "yt-dlp"
	}
	if workRoot == "" {
		workRoot = os.TempDir()
	}
	return &Downloader{binary: binary, workRoot: workRoot, runner: execRunner{}, log: log}
}

// WithRunner is test-only.
func (d *Downloader) WithRunner(r Runner) *Downloader {
	d.runner = r
	return d
}

// downloadInfo is the subset of yt-dlp's info JSON we care about. The tool
// reports the output filename in one of two shapes depending on extraction:
// a direct top-level field or a per-format descriptor list.
type downloadInfo struct {
	Filename           string `json:"_filename"`
	RequestedDownloads []struct {
		Filepath string `json:"filepath"`
	} `json:"requested_downloads"`
}

func (d *Downloader) Download(ctx context.Context, ref domain.VideoReference) (domain.AudioArtifact, error) {
	scratch := filepath.Join(d.workRoot, "quizly-ytdlp-"+uuid.NewString())
	if err := os.MkdirAll(scratch, 0o755); err != nil {
		return domain.AudioArtifact{}, fmt.Errorf("%w: create scratch dir: %v", domain.ErrDownloadFailed, err)
	}
	defer os.RemoveAll(scratch)

	template := filepath.Join(scratch, ref.VideoID+".%(ext)s")
	out, err := d.runner.Run(ctx, d.binary,
		"--format", "bestaudio/best",
		"--no-playlist",
		"--no-progress",
		"--print-json",
		"--output", template,
		ref.CanonicalURL,
	)
	if err != nil {
		d.log.Warnw("yt-dlp invocation failed", "video_id", ref.VideoID, "error", err)
		return domain.AudioArtifact{}, fmt.Errorf("%w: %v", domain.ErrDownloadFailed, err)
	}

	downloaded := d.resolveOutputFile(out, ref.VideoID, scratch)
	if downloaded == "" {
		return domain.AudioArtifact{}, fmt.Errorf("%w: output file not found", domain.ErrDownloadFailed)
	}
	if _, err := os.Stat(downloaded); err != nil {
		return domain.AudioArtifact{}, fmt.Errorf("%w: output file not found", domain.ErrDownloadFailed)
	}

	final, err := persistFile(downloaded)
	if err != nil {
		return domain.AudioArtifact{}, fmt.Errorf("%w: %v", domain.ErrDownloadFailed, err)
	}

	return domain.AudioArtifact{
		Path:     final,
		VideoID:  ref.VideoID,
		VideoURL: ref.CanonicalURL,
	}, nil
}

// resolveOutputFile locates the downloaded file with an explicit fallback
// order: direct filename field, then the per-format descriptor list, then a
// scratch-directory scan by video-id prefix.
func (d *Downloader) resolveOutputFile(infoJSON []byte, videoID, scratch string) string {
	var info downloadInfo
	if err := json.Unmarshal(infoJSON, &info); err != nil {
		d.log.Warnw("yt-dlp info JSON unparsable, falling back to directory scan", "error", err)
	}

	if info.Filename != "" {
		return info.Filename
	}
	if len(info.RequestedDownloads) > 0 && info.RequestedDownloads[0].Filepath != "" {
		return info.RequestedDownloads[0].Filepath
	}

	entries, err := os.ReadDir(scratch)
	if err != nil {
		return ""
	}
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasPrefix(entry.Name(), videoID+".") {
			return filepath.Join(scratch, entry.Name())
		}
	}
	return ""
}

// persistFile moves the downloaded file out of the scratch directory into a
// persistent temp file that survives the scratch cleanup.
func persistFile(src string) (string, error) {
	suffix := filepath.Ext(src)
	if suffix == "" {
		suffix = ".audio"
	}
	dst, err := os.CreateTemp("", "quizly-audio-*"+suffix)
	if err != nil {
		return "", err
	}
	dstPath := dst.Name()
	if err := dst.Close(); err != nil {
		return "", err
	}

	if err := os.Rename(src, dstPath); err != nil {
		// Rename fails across filesystems; fall back to a copy.
		if copyErr := copyFile(src, dstPath); copyErr != nil {
			os.Remove(dstPath)
			return "", copyErr
		}
	}
	return dstPath, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
