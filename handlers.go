package main

import (
	"encoding/json"
	"net/http"
	"strings"

	"videoTranscriptQA/core"
	"videoTranscriptQA/metrics"
)

// Server exposes the pipeline over HTTP. Pipeline errors are returned
// as a 200 with an {"error": ...} payload; existing clients of this
// API depend on that shape, so only malformed requests get a 4xx.
type Server struct {
	pipeline *Pipeline
}

func NewServer(p *Pipeline) *Server {
	return &Server{pipeline: p}
}

func (s *Server) uploadHandler(w http.ResponseWriter, r *http.Request) {
	file, header, err := r.FormFile("file")
	if err != nil {
		core.WriteJSON(w, http.StatusBadRequest, core.TranscriptResponse{Error: "file field required"})
		return
	}
	defer file.Close()

	transcript, err := s.pipeline.Upload(r.Context(), file, header.Filename)
	metrics.RecordOutcome("upload", err)
	if err != nil {
		core.WriteJSON(w, http.StatusOK, core.TranscriptResponse{Error: err.Error()})
		return
	}
	core.WriteJSON(w, http.StatusOK, core.TranscriptResponse{Transcript: &transcript})
}

func (s *Server) uploadURLHandler(w http.ResponseWriter, r *http.Request) {
	var req core.URLRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		core.WriteJSON(w, http.StatusBadRequest, core.TranscriptResponse{Error: "invalid json"})
		return
	}
	if strings.TrimSpace(req.URL) == "" {
		core.WriteJSON(w, http.StatusBadRequest, core.TranscriptResponse{Error: "url required"})
		return
	}

	transcript, err := s.pipeline.UploadFromURL(r.Context(), req.URL)
	metrics.RecordOutcome("upload-url", err)
	if err != nil {
		core.WriteJSON(w, http.StatusOK, core.TranscriptResponse{Error: err.Error()})
		return
	}
	core.WriteJSON(w, http.StatusOK, core.TranscriptResponse{Transcript: &transcript})
}

func (s *Server) summaryHandler(w http.ResponseWriter, r *http.Request) {
	var req core.TranscriptRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		core.WriteJSON(w, http.StatusBadRequest, core.SummaryResponse{Error: "invalid json"})
		return
	}

	summary, err := s.pipeline.Summarize(r.Context(), req.Transcript)
	metrics.RecordOutcome("summary", err)
	if err != nil {
		core.WriteJSON(w, http.StatusOK, core.SummaryResponse{Error: err.Error()})
		return
	}
	core.WriteJSON(w, http.StatusOK, core.SummaryResponse{Summary: summary})
}

func (s *Server) askHandler(w http.ResponseWriter, r *http.Request) {
	var req core.QuestionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		core.WriteJSON(w, http.StatusBadRequest, core.AnswerResponse{Error: "invalid json"})
		return
	}
	if strings.TrimSpace(req.Question) == "" {
		core.WriteJSON(w, http.StatusBadRequest, core.AnswerResponse{Error: "question required"})
		return
	}

	answer, err := s.pipeline.Ask(r.Context(), req.Transcript, req.Question)
	metrics.RecordOutcome("ask", err)
	if err != nil {
		core.WriteJSON(w, http.StatusOK, core.AnswerResponse{Error: err.Error()})
		return
	}
	core.WriteJSON(w, http.StatusOK, core.AnswerResponse{Answer: answer})
}
