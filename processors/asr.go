package processors

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"videoTranscriptQA/core"
)

// Transcriber converts a local audio file into transcript text. The
// engine behind it is loaded once at process start and must be safe for
// concurrent calls; implementations keep no per-call state.
type Transcriber interface {
	Transcribe(ctx context.Context, asset core.AudioAsset) (core.Transcript, error)
}

// WhisperASR transcribes through the hosted whisper endpoint.
type WhisperASR struct {
	cli     *openai.Client
	model   string
	timeout time.Duration
}

func NewWhisperASR(cli *openai.Client, model string, timeout time.Duration) *WhisperASR {
	if model == "" {
		model = "whisper-1"
	}
	return &WhisperASR{cli: cli, model: model, timeout: timeout}
}

// Transcribe returns the engine's best-effort full-text transcription.
// An empty transcript is a valid result (silent audio), not an error.
func (w *WhisperASR) Transcribe(ctx context.Context, asset core.AudioAsset) (core.Transcript, error) {
	if _, err := os.Stat(asset.Path); err != nil {
		return core.Transcript{}, core.NewTranscriptionError(fmt.Errorf("audio file missing: %w", err))
	}

	if w.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, w.timeout)
		defer cancel()
	}
	resp, err := w.cli.CreateTranscription(ctx, openai.AudioRequest{
		Model:    w.model,
		FilePath: asset.Path,
	})
	if err != nil {
		return core.Transcript{}, core.NewTranscriptionError(fmt.Errorf("whisper transcription failed: %w", err))
	}

	return core.Transcript{
		Text:     strings.TrimSpace(resp.Text),
		SourceID: asset.Path,
	}, nil
}

// MockASR produces a placeholder transcript sized to the audio file.
// Used when no API key is configured, and in tests.
type MockASR struct{}

func (MockASR) Transcribe(_ context.Context, asset core.AudioAsset) (core.Transcript, error) {
	fi, err := os.Stat(asset.Path)
	if err != nil {
		return core.Transcript{}, core.NewTranscriptionError(fmt.Errorf("audio file missing: %w", err))
	}
	sentences := int(fi.Size()/4096) + 1
	var b strings.Builder
	for i := 0; i < sentences; i++ {
		fmt.Fprintf(&b, "Placeholder transcript sentence %d. ", i+1)
	}
	return core.Transcript{Text: strings.TrimSpace(b.String()), SourceID: asset.Path}, nil
}
