package main

import (
	"context"
	"net/http"
	"os"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
	openai "github.com/sashabaranov/go-openai"

	"videoTranscriptQA/config"
	"videoTranscriptQA/logging"
	"videoTranscriptQA/processors"
	"videoTranscriptQA/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Init("info", "console")
		log.Fatal().Err(err).Msg("invalid configuration")
	}
	logging.Init(cfg.LogLevel, cfg.LogFormat)

	if err := os.MkdirAll(cfg.WorkDir, 0755); err != nil {
		log.Fatal().Err(err).Str("dir", cfg.WorkDir).Msg("failed to create work dir")
	}

	pipeline, err := buildPipeline(context.Background(), cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build pipeline")
	}
	router := newRouter(NewServer(pipeline))

	log.Info().Str("port", cfg.Port).Str("store", cfg.Store).Msg("server listening")
	if err := http.ListenAndServe(":"+cfg.Port, router); err != nil {
		log.Fatal().Err(err).Msg("server stopped")
	}
}

func newRouter(server *Server) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	// Frontend runs on a different origin during development.
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: false,
	}))

	r.Post("/upload", server.uploadHandler)
	r.Post("/upload-url", server.uploadURLHandler)
	r.Post("/summary", server.summaryHandler)
	r.Post("/ask", server.askHandler)
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())
	return r
}

// buildPipeline wires the engine singletons. They are created once,
// shared read-only across requests, and passed down explicitly; no
// component reaches for a global engine handle.
func buildPipeline(ctx context.Context, cfg *config.Config) (*Pipeline, error) {
	chunker, err := processors.NewChunker(cfg.ChunkSize, cfg.ChunkOverlap)
	if err != nil {
		return nil, err
	}

	var (
		transcriber processors.Transcriber
		embedder    storage.Embedder
		generator   processors.Generator
	)
	if cfg.HasValidAPI() {
		clientConfig := openai.DefaultConfig(cfg.APIKey)
		if cfg.BaseURL != "" {
			clientConfig.BaseURL = cfg.BaseURL
		}
		cli := openai.NewClientWithConfig(clientConfig)
		transcriber = processors.NewWhisperASR(cli, cfg.WhisperModel, cfg.TranscribeTimeout)
		embedder = storage.NewOpenAIEmbedder(cli, cfg.EmbeddingModel)
		generator = processors.NewOpenAIGenerator(cli, cfg.ChatModel, cfg.GenerationTimeout)
	} else {
		log.Warn().Msg("no API key configured, running on mock engines")
		transcriber = processors.MockASR{}
		embedder = storage.NewMockEmbedder()
		generator = processors.MockGenerator{}
	}

	resolver := processors.NewResolver(cfg.WorkDir, processors.NewYtDlpExtractor())
	builder := storage.NewIndexBuilder(ctx, cfg, embedder)
	answerer := processors.NewAnswerer(generator, cfg.TopK)

	return NewPipeline(resolver, transcriber, chunker, builder, answerer), nil
}
