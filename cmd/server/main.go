// Package main runs the HTTP API: document upload and ingestion, chat over
// ingested content, and quiz generation.
package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/minhle/quizrag/internal/config"
	"github.com/minhle/quizrag/internal/embedding"
	"github.com/minhle/quizrag/internal/extract"
	"github.com/minhle/quizrag/internal/index"
	"github.com/minhle/quizrag/internal/ingest"
	"github.com/minhle/quizrag/internal/oracle"
	"github.com/minhle/quizrag/internal/quiz"
	"github.com/minhle/quizrag/internal/rag"
	"github.com/minhle/quizrag/internal/server"
	"github.com/minhle/quizrag/internal/store"
	"github.com/minhle/quizrag/internal/translate"
)

func main() {
	// Load .env file if present (local development), ignore if missing (production)
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	// Create context that cancels on SIGTERM/SIGINT
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer cancel()

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	slog.SetDefault(logger)

	cfg := config.Load()

	// Vector index
	idx, err := index.NewQdrantIndex(cfg.QdrantHost, cfg.QdrantPort, embedding.Dimension)
	if err != nil {
		log.Fatalf("failed to connect to Qdrant: %v", err)
	}
	defer idx.Close()

	if err := idx.EnsureCollection(ctx); err != nil {
		log.Fatalf("failed to ensure collection: %v", err)
	}

	// Embeddings and oracle share one OpenAI client
	embeddingClient, err := embedding.NewClient()
	if err != nil {
		log.Fatalf("failed to create embedding client: %v", err)
	}
	embedder := embedding.NewEmbedder(embeddingClient, 0) // Use default batch size
	orc := oracle.NewOpenAI(embeddingClient.Client(), cfg.OracleModel)

	// Document store
	st, err := store.NewMongoStore(ctx, cfg.MongoURI, cfg.MongoDatabase)
	if err != nil {
		log.Fatalf("failed to connect to MongoDB: %v", err)
	}
	defer func() {
		closeCtx, closeCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer closeCancel()
		st.Close(closeCtx)
	}()

	// Pipeline stages
	extractor := extract.NewExtractor(cfg.OCRWorkers, splitLangs(cfg.OCRLanguages), logger)
	translator := translate.NewService(
		translate.NewLinguaDetector(),
		translate.NewHTTPTranslator(cfg.TranslateEndpoint, cfg.CallTimeout),
		logger,
	)
	synthesizer := quiz.NewSynthesizer(orc, logger)

	pipeline := ingest.NewPipeline(extractor, translator, embedder, idx, synthesizer, st, ingest.Options{
		WindowSize:    cfg.ChunkSize,
		WindowOverlap: cfg.ChunkOverlap,
		Workers:       cfg.Workers,
		CallTimeout:   cfg.CallTimeout,
	}, logger)

	assembler := rag.NewAssembler(embedder, idx, orc, logger)

	if err := os.MkdirAll(cfg.UploadDir, 0o755); err != nil {
		log.Fatalf("failed to create upload dir: %v", err)
	}

	srv := server.NewServer(&server.Config{
		Ingestor:  pipeline,
		Answerer:  assembler,
		Health:    idx,
		UploadDir: cfg.UploadDir,
		Logger:    logger,
	})

	httpServer := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: srv.Handler(),
	}

	go func() {
		log.Printf("Starting HTTP server on %s", cfg.HTTPAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("HTTP server error: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("Shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown error: %v", err)
	}
}

// splitLangs parses a comma-separated Tesseract language list, e.g. "eng,vie".
func splitLangs(s string) []string {
	if s == "" {
		return nil
	}
	var langs []string
	for _, l := range strings.Split(s, ",") {
		if l = strings.TrimSpace(l); l != "" {
			langs = append(langs, l)
		}
	}
	return langs
}
