// Package server exposes the ingestion, chat and quiz operations over HTTP.
package server

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/minhle/quizrag/internal/index"
	"github.com/minhle/quizrag/internal/ingest"
	"github.com/minhle/quizrag/internal/rag"
)

// Ingestor is the write-side pipeline behind /upload and /quiz.
type Ingestor interface {
	IngestChat(ctx context.Context, path, owner string) (*ingest.Result, error)
	GenerateQuiz(ctx context.Context, path, owner string) (*ingest.QuizResult, error)
}

// Answerer resolves chat queries against the vector index.
type Answerer interface {
	Answer(ctx context.Context, query string, key index.Key) (*rag.Answer, error)
}

// Server holds the HTTP handler dependencies.
type Server struct {
	ingestor  Ingestor
	answerer  Answerer
	health    HealthChecker
	uploadDir string
	logger    *slog.Logger
}

// Config holds server dependencies.
type Config struct {
	Ingestor  Ingestor
	Answerer  Answerer
	Health    HealthChecker
	UploadDir string // scratch space for uploaded files; defaults to the OS temp dir
	Logger    *slog.Logger
}

// NewServer creates a server with the given dependencies.
func NewServer(cfg *Config) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		ingestor:  cfg.Ingestor,
		answerer:  cfg.Answerer,
		health:    cfg.Health,
		uploadDir: cfg.UploadDir,
		logger:    logger,
	}
}

// Handler builds the route table. The handler can be mounted directly on
// http.Server.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /upload", s.handleUpload)
	mux.HandleFunc("POST /chat", s.handleChat)
	mux.HandleFunc("POST /quiz", s.handleQuiz)
	mux.HandleFunc("GET /health", NewHealthHandler(s.health))
	return mux
}
