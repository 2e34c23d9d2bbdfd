package main

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"

	"videoTranscriptQA/core"
	"videoTranscriptQA/logging"
	"videoTranscriptQA/metrics"
	"videoTranscriptQA/processors"
	"videoTranscriptQA/storage"
)

// Pipeline composes the request flow: acquire audio, transcribe, chunk,
// index, answer. Engine handles are injected once at startup and shared
// read-only across requests; everything else is request-local. No state
// survives a request: every /summary or /ask call rebuilds its chunks
// and index from the transcript it was given.
type Pipeline struct {
	Resolver    *processors.Resolver
	Transcriber processors.Transcriber
	Chunker     *processors.Chunker
	Builder     storage.IndexBuilder
	Answerer    *processors.Answerer

	logger zerolog.Logger
}

func NewPipeline(resolver *processors.Resolver, transcriber processors.Transcriber, chunker *processors.Chunker, builder storage.IndexBuilder, answerer *processors.Answerer) *Pipeline {
	return &Pipeline{
		Resolver:    resolver,
		Transcriber: transcriber,
		Chunker:     chunker,
		Builder:     builder,
		Answerer:    answerer,
		logger:      logging.WithComponent("pipeline"),
	}
}

// Upload transcribes an uploaded audio stream.
func (p *Pipeline) Upload(ctx context.Context, src io.Reader, filename string) (string, error) {
	stop := stageTimer(core.StageAcquire)
	asset, err := p.Resolver.ResolveUpload(src, filename)
	stop()
	if err != nil {
		return "", core.AsStageError(err)
	}
	defer p.releaseAsset(asset)

	return p.transcribeAsset(ctx, asset)
}

// UploadFromURL downloads the audio for a remote video URL and
// transcribes it.
func (p *Pipeline) UploadFromURL(ctx context.Context, url string) (string, error) {
	stop := stageTimer(core.StageAcquire)
	asset, err := p.Resolver.ResolveURL(ctx, url)
	stop()
	if err != nil {
		return "", core.AsStageError(err)
	}
	defer p.releaseAsset(asset)

	return p.transcribeAsset(ctx, asset)
}

// Summarize answers the fixed summary instruction over the transcript.
func (p *Pipeline) Summarize(ctx context.Context, transcript string) (string, error) {
	return p.withIndex(ctx, transcript, func(idx storage.VectorIndex) (core.Answer, error) {
		return p.Answerer.Summarize(ctx, idx)
	})
}

// Ask answers a natural-language question about the transcript.
func (p *Pipeline) Ask(ctx context.Context, transcript, question string) (string, error) {
	return p.withIndex(ctx, transcript, func(idx storage.VectorIndex) (core.Answer, error) {
		return p.Answerer.Answer(ctx, idx, question)
	})
}

func (p *Pipeline) transcribeAsset(ctx context.Context, asset core.AudioAsset) (string, error) {
	stop := stageTimer(core.StageTranscribe)
	transcript, err := p.Transcriber.Transcribe(ctx, asset)
	stop()
	if err != nil {
		return "", core.AsStageError(err)
	}

	p.logger.Debug().Str("source", transcript.SourceID).Str("sample", sample(transcript.Text, 300)).Msg("transcription complete")
	return transcript.Text, nil
}

// withIndex runs the chunk, index, answer sequence, closing the
// per-request index on every exit path.
func (p *Pipeline) withIndex(ctx context.Context, transcript string, answer func(storage.VectorIndex) (core.Answer, error)) (string, error) {
	stop := stageTimer(core.StageChunk)
	chunks := p.Chunker.Split(core.Transcript{Text: transcript})
	stop()

	stop = stageTimer(core.StageIndex)
	index, err := p.Builder.Build(ctx, chunks)
	stop()
	if err != nil {
		return "", core.AsStageError(err)
	}
	metrics.ChunksIndexed.Observe(float64(index.Len()))
	defer func() {
		// Release must happen even if the caller has hung up.
		if err := index.Close(context.WithoutCancel(ctx)); err != nil {
			p.logger.Warn().Err(err).Msg("failed to close vector index")
		}
	}()

	stop = stageTimer(core.StageAnswer)
	ans, err := answer(index)
	stop()
	if err != nil {
		return "", core.AsStageError(err)
	}
	return ans.Text, nil
}

// releaseAsset deletes an owned audio asset exactly once. Deletion does
// not depend on the request context: a dropped connection still cleans
// up the temp file.
func (p *Pipeline) releaseAsset(asset core.AudioAsset) {
	if !asset.Owned || asset.Path == "" {
		return
	}
	if err := os.Remove(asset.Path); err != nil {
		if !os.IsNotExist(err) {
			p.logger.Warn().Err(err).Str("path", asset.Path).Msg("failed to remove temp audio")
		}
		return
	}
	metrics.TempFilesRemoved.Inc()
}

func stageTimer(stage core.Stage) func() {
	start := time.Now()
	return func() {
		metrics.StageDuration.WithLabelValues(string(stage)).Observe(time.Since(start).Seconds())
	}
}

func sample(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
