package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"testing"

	"videoTranscriptQA/core"
	"videoTranscriptQA/processors"
	"videoTranscriptQA/storage"
)

// stubTranscriber returns fixed text or a fixed error.
type stubTranscriber struct {
	text string
	err  error
}

func (s stubTranscriber) Transcribe(_ context.Context, asset core.AudioAsset) (core.Transcript, error) {
	if s.err != nil {
		return core.Transcript{}, core.NewTranscriptionError(s.err)
	}
	if _, err := os.Stat(asset.Path); err != nil {
		return core.Transcript{}, core.NewTranscriptionError(err)
	}
	return core.Transcript{Text: s.text, SourceID: asset.Path}, nil
}

// stubExtractor writes audio bytes or fails.
type stubExtractor struct {
	err error
}

func (s stubExtractor) ExtractAudio(_ context.Context, _, destPath string) error {
	if s.err != nil {
		return s.err
	}
	return os.WriteFile(destPath, []byte("audio"), 0644)
}

// failingBuilder simulates an index backend outage.
type failingBuilder struct{}

func (failingBuilder) Build(context.Context, []core.Chunk) (storage.VectorIndex, error) {
	return nil, core.NewIndexBuildError(fmt.Errorf("backend unavailable"))
}

// closeTrackingBuilder wraps the memory builder and records closes.
type closeTrackingBuilder struct {
	inner  storage.IndexBuilder
	closed *int
}

type closeTrackingIndex struct {
	storage.VectorIndex
	closed *int
}

func (b closeTrackingBuilder) Build(ctx context.Context, chunks []core.Chunk) (storage.VectorIndex, error) {
	idx, err := b.inner.Build(ctx, chunks)
	if err != nil {
		return nil, err
	}
	return closeTrackingIndex{VectorIndex: idx, closed: b.closed}, nil
}

func (i closeTrackingIndex) Close(ctx context.Context) error {
	*i.closed++
	return i.VectorIndex.Close(ctx)
}

type testPipelineOpts struct {
	transcriber processors.Transcriber
	extractor   processors.Extractor
	builder     storage.IndexBuilder
	generator   processors.Generator
}

func newTestPipeline(t *testing.T, opts testPipelineOpts) (*Pipeline, string) {
	t.Helper()
	workDir := t.TempDir()

	if opts.transcriber == nil {
		opts.transcriber = stubTranscriber{text: "hello world"}
	}
	if opts.extractor == nil {
		opts.extractor = stubExtractor{}
	}
	if opts.builder == nil {
		opts.builder = storage.NewMemoryIndexBuilder(storage.NewMockEmbedder())
	}
	if opts.generator == nil {
		opts.generator = processors.MockGenerator{}
	}

	chunker, err := processors.NewChunker(1000, 200)
	if err != nil {
		t.Fatal(err)
	}
	resolver := processors.NewResolver(workDir, opts.extractor)
	answerer := processors.NewAnswerer(opts.generator, 4)
	return NewPipeline(resolver, opts.transcriber, chunker, opts.builder, answerer), workDir
}

func countFiles(t *testing.T, dir string) int {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0
		}
		t.Fatal(err)
	}
	return len(entries)
}

func TestUploadReturnsTranscript(t *testing.T) {
	p, workDir := newTestPipeline(t, testPipelineOpts{transcriber: stubTranscriber{text: "the talk transcript"}})

	got, err := p.Upload(context.Background(), strings.NewReader("bytes"), "talk.mp3")
	if err != nil {
		t.Fatal(err)
	}
	if got != "the talk transcript" {
		t.Errorf("transcript = %q", got)
	}
	if n := countFiles(t, workDir); n != 0 {
		t.Errorf("%d temp files left after success", n)
	}
}

// A silent clip transcribes to an empty string; that is a valid result,
// not an error.
func TestUploadEmptyTranscriptIsNotAnError(t *testing.T) {
	p, workDir := newTestPipeline(t, testPipelineOpts{transcriber: stubTranscriber{text: ""}})

	got, err := p.Upload(context.Background(), strings.NewReader("ten seconds of silence"), "silent.wav")
	if err != nil {
		t.Fatalf("empty transcript must not be an error, got %v", err)
	}
	if got != "" {
		t.Errorf("transcript = %q, want empty", got)
	}
	if n := countFiles(t, workDir); n != 0 {
		t.Errorf("%d temp files left", n)
	}
}

func TestUploadFromURLUnreachable(t *testing.T) {
	p, workDir := newTestPipeline(t, testPipelineOpts{extractor: stubExtractor{err: fmt.Errorf("connection refused")}})

	_, err := p.UploadFromURL(context.Background(), "https://unreachable.example/v")
	if err == nil {
		t.Fatal("expected an error")
	}
	if core.StageOf(err) != core.StageAcquire {
		t.Errorf("stage = %s, want %s", core.StageOf(err), core.StageAcquire)
	}
	if !strings.Contains(err.Error(), string(core.StageAcquire)) {
		t.Errorf("error message does not name the failing stage: %v", err)
	}
	if n := countFiles(t, workDir); n != 0 {
		t.Errorf("%d temp files left after acquisition failure", n)
	}
}

func TestUploadFromURLSuccess(t *testing.T) {
	p, workDir := newTestPipeline(t, testPipelineOpts{transcriber: stubTranscriber{text: "from a url"}})

	got, err := p.UploadFromURL(context.Background(), "https://example.com/v")
	if err != nil {
		t.Fatal(err)
	}
	if got != "from a url" {
		t.Errorf("transcript = %q", got)
	}
	if n := countFiles(t, workDir); n != 0 {
		t.Errorf("%d temp files left", n)
	}
}

// Temp file count must be unchanged by every request, whichever stage
// fails.
func TestTempFileInvariantAcrossFailures(t *testing.T) {
	cases := []struct {
		name string
		opts testPipelineOpts
		run  func(p *Pipeline) error
	}{
		{
			name: "acquisition failure",
			opts: testPipelineOpts{extractor: stubExtractor{err: fmt.Errorf("boom")}},
			run: func(p *Pipeline) error {
				_, err := p.UploadFromURL(context.Background(), "https://x.example/v")
				return err
			},
		},
		{
			name: "transcription failure",
			opts: testPipelineOpts{transcriber: stubTranscriber{err: fmt.Errorf("unsupported codec")}},
			run: func(p *Pipeline) error {
				_, err := p.UploadFromURL(context.Background(), "https://x.example/v")
				return err
			},
		},
		{
			name: "transcription failure on upload",
			opts: testPipelineOpts{transcriber: stubTranscriber{err: fmt.Errorf("corrupt audio")}},
			run: func(p *Pipeline) error {
				_, err := p.Upload(context.Background(), strings.NewReader("bytes"), "x.mp3")
				return err
			},
		},
		{
			name: "success path",
			opts: testPipelineOpts{},
			run: func(p *Pipeline) error {
				_, err := p.Upload(context.Background(), strings.NewReader("bytes"), "x.mp3")
				return err
			},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p, workDir := newTestPipeline(t, tc.opts)
			before := countFiles(t, workDir)
			_ = tc.run(p)
			if after := countFiles(t, workDir); after != before {
				t.Errorf("temp files before=%d after=%d", before, after)
			}
		})
	}
}

func TestAskAnswersFromTranscript(t *testing.T) {
	p, _ := newTestPipeline(t, testPipelineOpts{})

	answer, err := p.Ask(context.Background(), "The sky is blue.", "What color is the sky?")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(answer, "blue") {
		t.Errorf("answer = %q, want it to mention blue", answer)
	}
}

func TestAskEmptyTranscriptFailsAtIndexing(t *testing.T) {
	p, _ := newTestPipeline(t, testPipelineOpts{})

	_, err := p.Ask(context.Background(), "", "anything?")
	if err == nil {
		t.Fatal("expected an error for an empty transcript")
	}
	if core.StageOf(err) != core.StageIndex {
		t.Errorf("stage = %s, want %s", core.StageOf(err), core.StageIndex)
	}
}

func TestAskIndexBackendFailure(t *testing.T) {
	p, _ := newTestPipeline(t, testPipelineOpts{builder: failingBuilder{}})

	_, err := p.Ask(context.Background(), "some transcript", "q?")
	if err == nil {
		t.Fatal("expected an error")
	}
	if core.StageOf(err) != core.StageIndex {
		t.Errorf("stage = %s, want %s", core.StageOf(err), core.StageIndex)
	}
}

func TestSummarizeClosesIndexOnEveryPath(t *testing.T) {
	closed := 0
	builder := closeTrackingBuilder{
		inner:  storage.NewMemoryIndexBuilder(storage.NewMockEmbedder()),
		closed: &closed,
	}

	t.Run("success", func(t *testing.T) {
		p, _ := newTestPipeline(t, testPipelineOpts{builder: builder})
		if _, err := p.Summarize(context.Background(), "a transcript about things"); err != nil {
			t.Fatal(err)
		}
		if closed != 1 {
			t.Errorf("index closed %d times, want 1", closed)
		}
	})

	t.Run("generation failure", func(t *testing.T) {
		closed = 0
		gen := failingGenerator{}
		p, _ := newTestPipeline(t, testPipelineOpts{builder: builder, generator: gen})
		if _, err := p.Summarize(context.Background(), "a transcript about things"); err == nil {
			t.Fatal("expected an error")
		}
		if closed != 1 {
			t.Errorf("index closed %d times, want 1", closed)
		}
	})
}

type failingGenerator struct{}

func (failingGenerator) Generate(context.Context, string) (string, error) {
	return "", fmt.Errorf("engine timeout")
}

func TestGenerationFailureIsStageTagged(t *testing.T) {
	p, _ := newTestPipeline(t, testPipelineOpts{generator: failingGenerator{}})

	_, err := p.Ask(context.Background(), "The sky is blue.", "What color?")
	if err == nil {
		t.Fatal("expected an error")
	}
	if core.StageOf(err) != core.StageAnswer {
		t.Errorf("stage = %s, want %s", core.StageOf(err), core.StageAnswer)
	}
}

// A dropped connection must not leak the temp file: release ignores the
// canceled request context.
func TestCanceledRequestStillCleansUp(t *testing.T) {
	p, workDir := newTestPipeline(t, testPipelineOpts{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _ = p.Upload(ctx, strings.NewReader("bytes"), "x.mp3")
	if n := countFiles(t, workDir); n != 0 {
		t.Errorf("%d temp files left after canceled request", n)
	}
}
