package application

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"voicegate/internal/domain"
	"voicegate/internal/metrics"
)

// NoSpeechReply is the fixed reply when a voice note contains no
// recognizable speech. The downstream QA service is never consulted.
const NoSpeechReply = "📝 I couldn't detect any speech in that voice note."

// Pipeline orchestrates one message turn end to end: classify, fetch,
// transcode, transcribe, query, reply. Invocations for different messages are
// independent; each one owns its artifacts, token and subprocess exclusively.
type Pipeline struct {
	fetcher     Fetcher
	transcoder  Transcoder
	transcriber Transcriber
	qa          Answerer
	workDir     string
	mediaBudget time.Duration
	metrics     *metrics.Metrics
	logger      *slog.Logger
}

func NewPipeline(
	fetcher Fetcher,
	transcoder Transcoder,
	transcriber Transcriber,
	qa Answerer,
	workDir string,
	mediaBudget time.Duration,
	m *metrics.Metrics,
	logger *slog.Logger,
) *Pipeline {
	if mediaBudget <= 0 {
		mediaBudget = 90 * time.Second
	}
	return &Pipeline{
		fetcher:     fetcher,
		transcoder:  transcoder,
		transcriber: transcriber,
		qa:          qa,
		workDir:     workDir,
		mediaBudget: mediaBudget,
		metrics:     m,
		logger:      logger,
	}
}

// HandleTurn resolves one inbound message to reply text. Messages with a
// classified audio attachment enter the voice-note pipeline; everything else
// takes the plain-text path. Returns "" when there is nothing to reply to.
func (p *Pipeline) HandleTurn(ctx context.Context, msg domain.Message) string {
	if desc, ok := FirstAudio(msg.Attachments); ok {
		return p.processVoiceNote(ctx, desc)
	}

	text := strings.TrimSpace(msg.Text)
	if text == "" {
		return ""
	}

	start := time.Now()
	answer, err := p.qa.Answer(ctx, text)
	if err != nil {
		p.recordTurn("text", "failed", time.Since(start))
		p.recordStageFailure(domain.StageQuery)
		p.logger.Error("text turn failed", "error", err)
		return "Sorry, I couldn't reach the answering service. Please try again."
	}
	p.recordTurn("text", "ok", time.Since(start))
	return answer
}

func (p *Pipeline) processVoiceNote(ctx context.Context, desc domain.AudioDescriptor) string {
	start := time.Now()
	logger := p.logger.With(
		"attachment", desc.Name,
		"source_kind", string(desc.SourceKind),
	)
	logger.Info("voice note received", "file_type", desc.FileType)

	reply, noSpeech, err := p.runStages(ctx, desc, logger)
	if err != nil {
		stage := domain.FailedStage(err)
		p.recordTurn("voice", "failed", time.Since(start))
		p.recordStageFailure(stage)
		logger.Error("voice note pipeline failed",
			"stage", string(stage),
			"error", err,
		)
		return fmt.Sprintf(
			"Sorry, I couldn't process the voice note %q. Please try sending it again.",
			desc.Name,
		)
	}

	outcome := "ok"
	if noSpeech {
		outcome = "no_speech"
	}
	p.recordTurn("voice", outcome, time.Since(start))
	return reply
}

// runStages executes fetch → transcode → transcribe → query sequentially and
// reports whether the turn resolved to the no-speech outcome. Every error it
// returns carries a stage tag. The invocation-scoped working directory is
// removed on every exit path.
func (p *Pipeline) runStages(ctx context.Context, desc domain.AudioDescriptor, logger *slog.Logger) (string, bool, error) {
	dir := filepath.Join(p.workDir, uuid.NewString())
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", false, domain.NewStageError(domain.StageFetch, fmt.Errorf("creating working dir: %w", err))
	}
	defer os.RemoveAll(dir)

	fetchStart := time.Now()
	artifact, err := p.fetcher.Fetch(ctx, desc, dir)
	if err != nil {
		return "", false, domain.NewStageError(domain.StageFetch, err)
	}
	p.recordStageDuration(domain.StageFetch, time.Since(fetchStart))
	logger.Info("voice note fetched", "artifact", filepath.Base(artifact))

	// Transcode and transcribe share one deadline so a wedged subprocess
	// cannot stall the turn indefinitely.
	mediaCtx, cancel := context.WithTimeout(ctx, p.mediaBudget)
	defer cancel()

	mediaStart := time.Now()
	pcm, err := p.transcoder.Transcode(mediaCtx, artifact)
	if err != nil {
		return "", false, domain.NewStageError(domain.StageTranscode, err)
	}
	defer pcm.Close()

	transcript, err := p.transcriber.Transcribe(mediaCtx, pcm)
	if err != nil {
		return "", false, domain.NewStageError(domain.StageTranscribe, err)
	}
	p.recordStageDuration(domain.StageTranscribe, time.Since(mediaStart))

	transcript = strings.TrimSpace(transcript)
	if transcript == "" {
		logger.Info("no speech detected")
		return NoSpeechReply, true, nil
	}
	logger.Info("voice note transcribed", "chars", len(transcript))

	queryStart := time.Now()
	answer, err := p.qa.Answer(ctx, transcript)
	if err != nil {
		return "", false, domain.NewStageError(domain.StageQuery, err)
	}
	p.recordStageDuration(domain.StageQuery, time.Since(queryStart))

	return fmt.Sprintf("📝 Transcript: %s\n\n— Answer: %s", transcript, answer), false, nil
}

func (p *Pipeline) recordTurn(kind, outcome string, elapsed time.Duration) {
	if p.metrics != nil {
		p.metrics.RecordTurn(kind, outcome, elapsed.Seconds())
	}
}

func (p *Pipeline) recordStageDuration(stage domain.Stage, elapsed time.Duration) {
	if p.metrics != nil {
		p.metrics.RecordStageDuration(string(stage), elapsed.Seconds())
	}
}

func (p *Pipeline) recordStageFailure(stage domain.Stage) {
	if p.metrics != nil {
		p.metrics.RecordStageFailure(string(stage))
	}
}
