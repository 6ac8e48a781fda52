package whisper

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"go.uber.org/zap"

	"quizly-service/internal/domain"
)

// Runner executes an external command and returns its stdout.
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

// Transcriber converts audio files to text with a local whisper.cpp binary.
// The model file for each size is resolved and verified once per process and
// reused afterwards.
//
// Every failure maps into the client-visible validation family: a bad audio
// file or a whisper runtime fault must surface to the caller as input
// rejection, never as an opaque internal error.
type Transcriber struct {
	binary   string
	ffprobe  string
	modelDir string
	runner   Runner
	log      *zap.SugaredLogger

	mu     sync.Mutex
	models map[string]string // size -> verified model path
}

func NewTranscriber(binary, ffprobe, modelDir string, log *zap.SugaredLogger) *Transcriber {
	if binary == "" {
		binary = "whisper-cli"
	}
	if ffprobe == "" {
		ffprobe = "ffprobe"
	}
	return &Transcriber{
		binary:   binary,
		ffprobe:  ffprobe,
		modelDir: modelDir,
		runner:   execRunner{},
		log:      log,
		models:   make(map[string]string),
	}
}

// WithRunner is test-only.
func (t *Transcriber) WithRunner(r Runner) *Transcriber {
	t.runner = r
	return t
}

// ResetModelCache drops the per-size model resolution cache. Test hook.
func (t *Transcriber) ResetModelCache() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.models = make(map[string]string)
}

func (t *Transcriber) Transcribe(ctx context.Context, audioPath, modelSize string) (string, error) {
	info, err := os.Stat(audioPath)
	if audioPath == "" || err != nil {
		return "", fmt.Errorf("%w: %q", domain.ErrAudioNotFound, audioPath)
	}
	if info.Size() == 0 {
		return "", fmt.Errorf("%w: %q", domain.ErrAudioEmpty, audioPath)
	}

	if err := t.probeDecodable(ctx, audioPath); err != nil {
		return "", err
	}

	model, err := t.modelPath(modelSize)
	if err != nil {
		return "", err
	}

	out, err := t.runner.Run(ctx, t.binary,
		"-m", model,
		"-f", audioPath,
		"-np", // suppress progress/system chatter
		"-nt", // plain text, no timestamps
	)
	if err != nil {
		t.log.Warnw("whisper transcription failed", "path", audioPath, "model", model, "error", err)
		return "", fmt.Errorf("%w: transcription failed", domain.ErrAudioUnreadable)
	}

	text := strings.TrimSpace(string(out))
	if text == "" {
		return "", fmt.Errorf("%w: %q", domain.ErrTranscriptEmpty, audioPath)
	}
	return text, nil
}

// probeDecodable verifies the file decodes into a non-empty audio stream.
// Distinguishes unreadable audio from audio that transcribes to nothing.
func (t *Transcriber) probeDecodable(ctx context.Context, audioPath string) error {
	out, err := t.runner.Run(ctx, t.ffprobe,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		audioPath,
	)
	if err != nil {
		return fmt.Errorf("%w: %q does not decode", domain.ErrAudioUnreadable, audioPath)
	}
	duration, err := strconv.ParseFloat(strings.TrimSpace(string(out)), 64)
	if err != nil || duration <= 0 {
		return fmt.Errorf("%w: %q decodes to zero-length audio", domain.ErrAudioUnreadable, audioPath)
	}
	return nil
}

// modelPath resolves the ggml model file for a size, verifying it exists.
// Resolutions are cached for the life of the process.
func (t *Transcriber) modelPath(size string) (string, error) {
	if size == "" {
		size = "base"
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if path, ok := t.models[size]; ok {
		return path, nil
	}

	path := filepath.Join(t.modelDir, "ggml-"+size+".bin")
	if _, err := os.Stat(path); err != nil {
		return "", fmt.Errorf("%w: model %q unavailable", domain.ErrAudioUnreadable, size)
	}
	t.models[size] = path
	t.log.Infow("whisper model resolved", "size", size, "path", path)
	return path, nil
}
