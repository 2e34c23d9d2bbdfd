package processors

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"videoTranscriptQA/core"
)

// fakeIndex returns canned hits and records what it was asked.
type fakeIndex struct {
	hits      []core.Hit
	lastQuery string
	lastK     int
}

func (f *fakeIndex) Search(_ context.Context, query string, k int) ([]core.Hit, error) {
	f.lastQuery = query
	f.lastK = k
	if k < len(f.hits) {
		return f.hits[:k], nil
	}
	return f.hits, nil
}

func (f *fakeIndex) Len() int                    { return len(f.hits) }
func (f *fakeIndex) Close(context.Context) error { return nil }

// fakeGenerator captures the prompt it was given.
type fakeGenerator struct {
	reply  string
	err    error
	prompt string
}

func (g *fakeGenerator) Generate(_ context.Context, prompt string) (string, error) {
	g.prompt = prompt
	return g.reply, g.err
}

func TestAnswerStuffsRetrievedContext(t *testing.T) {
	idx := &fakeIndex{hits: []core.Hit{
		{Chunk: core.Chunk{Text: "The sky is blue.", SequenceIndex: 0}, Score: 0.9},
	}}
	gen := &fakeGenerator{reply: "The sky is blue."}
	a := NewAnswerer(gen, 4)

	ans, err := a.Answer(context.Background(), idx, "What color is the sky?")
	if err != nil {
		t.Fatal(err)
	}
	if idx.lastQuery != "What color is the sky?" || idx.lastK != 4 {
		t.Errorf("retrieval got query %q k %d", idx.lastQuery, idx.lastK)
	}
	if !strings.Contains(gen.prompt, "The sky is blue.") {
		t.Errorf("prompt missing retrieved context: %q", gen.prompt)
	}
	if !strings.Contains(gen.prompt, "What color is the sky?") {
		t.Errorf("prompt missing question: %q", gen.prompt)
	}
	if !strings.Contains(ans.Text, "blue") {
		t.Errorf("answer = %q, want it to mention blue", ans.Text)
	}
	if ans.Question != "What color is the sky?" {
		t.Errorf("question not echoed: %q", ans.Question)
	}
}

func TestAnswerConcatenatesInRetrievalOrder(t *testing.T) {
	idx := &fakeIndex{hits: []core.Hit{
		{Chunk: core.Chunk{Text: "second by sequence", SequenceIndex: 1}, Score: 0.9},
		{Chunk: core.Chunk{Text: "first by sequence", SequenceIndex: 0}, Score: 0.5},
	}}
	gen := &fakeGenerator{reply: "ok"}
	a := NewAnswerer(gen, 2)

	if _, err := a.Answer(context.Background(), idx, "q"); err != nil {
		t.Fatal(err)
	}
	hi := strings.Index(gen.prompt, "second by sequence")
	lo := strings.Index(gen.prompt, "first by sequence")
	if hi < 0 || lo < 0 || hi > lo {
		t.Errorf("context not in retrieval order: %q", gen.prompt)
	}
}

func TestAnswerEmptyGenerationIsAnError(t *testing.T) {
	idx := &fakeIndex{hits: []core.Hit{{Chunk: core.Chunk{Text: "context"}}}}
	a := NewAnswerer(&fakeGenerator{reply: "   "}, 1)

	_, err := a.Answer(context.Background(), idx, "q")
	if err == nil {
		t.Fatal("expected an error for empty generation output")
	}
	if core.StageOf(err) != core.StageAnswer {
		t.Errorf("stage = %s, want %s", core.StageOf(err), core.StageAnswer)
	}
}

func TestAnswerGeneratorFailureIsTerminal(t *testing.T) {
	idx := &fakeIndex{hits: []core.Hit{{Chunk: core.Chunk{Text: "context"}}}}
	gen := &fakeGenerator{err: fmt.Errorf("engine unreachable")}
	a := NewAnswerer(gen, 1)

	_, err := a.Answer(context.Background(), idx, "q")
	if err == nil {
		t.Fatal("expected an error")
	}
	if core.StageOf(err) != core.StageAnswer {
		t.Errorf("stage = %s, want %s", core.StageOf(err), core.StageAnswer)
	}
}

func TestSummarizeUsesFixedInstruction(t *testing.T) {
	idx := &fakeIndex{hits: []core.Hit{{Chunk: core.Chunk{Text: "long talk"}}}}
	gen := &fakeGenerator{reply: "a summary"}
	a := NewAnswerer(gen, 3)

	ans, err := a.Summarize(context.Background(), idx)
	if err != nil {
		t.Fatal(err)
	}
	if idx.lastQuery != summaryInstruction {
		t.Errorf("summary retrieval used query %q", idx.lastQuery)
	}
	if ans.Text != "a summary" {
		t.Errorf("answer = %q", ans.Text)
	}
}

func TestMockGeneratorEchoesContext(t *testing.T) {
	prompt := "Answer the question using only the supplied context.\n\nContext:\nThe sky is blue.\n\nQuestion: What color is the sky?\n\nAnswer:"
	got, err := MockGenerator{}.Generate(context.Background(), prompt)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(got, "The sky is blue.") {
		t.Errorf("mock answer missing context: %q", got)
	}
}
