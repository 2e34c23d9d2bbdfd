package core

// ========== Pipeline data model ==========

// AudioAsset points at a playable audio file on local disk. Owned
// assets are deleted by the orchestrator when the request finishes,
// exactly once, on every exit path.
type AudioAsset struct {
	Path  string
	Owned bool
}

// Transcript is the full speech-to-text output for one audio source.
// SourceID is opaque and used only for logging.
type Transcript struct {
	Text     string
	SourceID string
}

// Chunk is a contiguous substring of a transcript sized for retrieval.
// StartOffset counts runes from the beginning of the transcript text.
type Chunk struct {
	Text          string `json:"text"`
	StartOffset   int    `json:"start_offset"`
	SequenceIndex int    `json:"sequence_index"`
}

// Hit is one retrieval result: a chunk plus its similarity score.
type Hit struct {
	Chunk Chunk   `json:"chunk"`
	Score float64 `json:"score"`
}

// Answer is the result of retrieval-augmented generation for one
// question against one index.
type Answer struct {
	Question string `json:"question"`
	Text     string `json:"text"`
}

// ========== HTTP request/response shapes ==========

type URLRequest struct {
	URL string `json:"url"`
}

type TranscriptRequest struct {
	Transcript string `json:"transcript"`
}

type QuestionRequest struct {
	Transcript string `json:"transcript"`
	Question   string `json:"question"`
}

type TranscriptResponse struct {
	Transcript *string `json:"transcript,omitempty"`
	Error      string  `json:"error,omitempty"`
}

type SummaryResponse struct {
	Summary string `json:"summary,omitempty"`
	Error   string `json:"error,omitempty"`
}

type AnswerResponse struct {
	Answer string `json:"answer,omitempty"`
	Error  string `json:"error,omitempty"`
}
