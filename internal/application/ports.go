package application

import (
	"context"
	"io"

	"voicegate/internal/domain"
)

// TokenProvider exchanges service credentials for a short-lived bearer token.
// One outbound call per invocation; tokens are never cached across fetches.
type TokenProvider interface {
	AcquireToken(ctx context.Context) (string, error)
}

// Fetcher retrieves the raw bytes behind a classified attachment and writes
// them to a working artifact inside dir. Returns the artifact path.
type Fetcher interface {
	Fetch(ctx context.Context, desc domain.AudioDescriptor, dir string) (string, error)
}

// PCMStream is a live canonical PCM byte stream. Close must release the
// producing resources (reap the subprocess) and is safe on every exit path.
type PCMStream interface {
	io.ReadCloser
}

// Transcoder converts an arbitrary audio file into canonical PCM:
// mono, 16 kHz, signed 16-bit little-endian.
type Transcoder interface {
	Transcode(ctx context.Context, path string) (PCMStream, error)
}

// Transcriber drives one recognize-once speech recognition session over a
// canonical PCM stream. It resolves to the final transcript, or "" when no
// speech was detected.
type Transcriber interface {
	Transcribe(ctx context.Context, pcm io.Reader) (string, error)
}

// Answerer is the downstream question-answering collaborator.
type Answerer interface {
	Answer(ctx context.Context, question string) (string, error)
}
