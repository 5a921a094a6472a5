package ffmpeg

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"

	"voicegate/internal/application"
)

// stderrCap bounds how much subprocess diagnostics we keep around.
const stderrCap = 4096

// Transcoder converts arbitrary audio containers into canonical PCM (mono,
// 16 kHz, signed 16-bit little-endian) by piping them through an external
// media converter.
type Transcoder struct {
	binary string
	logger *slog.Logger
}

func NewTranscoder(binary string, logger *slog.Logger) *Transcoder {
	if binary == "" {
		binary = "ffmpeg"
	}
	return &Transcoder{binary: binary, logger: logger}
}

// Transcode launches the subprocess and exposes its stdout as the PCM
// stream. The OS pipe provides backpressure; nothing is buffered beyond it.
// Cancelling ctx kills the subprocess.
func (t *Transcoder) Transcode(ctx context.Context, path string) (application.PCMStream, error) {
	cmd := exec.CommandContext(ctx, t.binary,
		"-hide_banner",
		"-loglevel", "error",
		"-i", path,
		"-vn",
		"-acodec", "pcm_s16le",
		"-ac", "1",
		"-ar", "16000",
		"-f", "s16le",
		"pipe:1",
	)

	stderr := &cappedBuffer{cap: stderrCap}
	cmd.Stderr = stderr

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("opening stdout pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("starting %s: %w", t.binary, err)
	}

	return &pcmStream{
		cmd:    cmd,
		out:    stdout,
		stderr: stderr,
		logger: t.logger.With("artifact", filepath.Base(path)),
	}, nil
}

type pcmStream struct {
	cmd    *exec.Cmd
	out    io.ReadCloser
	stderr *cappedBuffer
	logger *slog.Logger
	once   sync.Once
}

func (s *pcmStream) Read(p []byte) (int, error) {
	return s.out.Read(p)
}

// Close reaps the subprocess. End-of-stream is signaled by stdout closing
// regardless of exit code: a non-zero exit means "no decodable audio", which
// the caller surfaces as an empty transcript, so it is logged but never
// returned as an error.
func (s *pcmStream) Close() error {
	s.once.Do(func() {
		s.out.Close()
		if err := s.cmd.Wait(); err != nil {
			s.logger.Debug("transcode subprocess exited with error",
				"error", err,
				"stderr", strings.TrimSpace(s.stderr.String()),
			)
		}
	})
	return nil
}

// cappedBuffer keeps the first cap bytes written and drops the rest.
type cappedBuffer struct {
	buf bytes.Buffer
	cap int
}

func (b *cappedBuffer) Write(p []byte) (int, error) {
	if remaining := b.cap - b.buf.Len(); remaining > 0 {
		if len(p) > remaining {
			b.buf.Write(p[:remaining])
		} else {
			b.buf.Write(p)
		}
	}
	return len(p), nil
}

func (b *cappedBuffer) String() string {
	return b.buf.String()
}
