// Package main provides the quizrag CLI: ingest PDFs into the vector index,
// ask questions against ingested content, and generate quizzes.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/minhle/quizrag/internal/config"
	"github.com/minhle/quizrag/internal/embedding"
	"github.com/minhle/quizrag/internal/extract"
	"github.com/minhle/quizrag/internal/index"
	"github.com/minhle/quizrag/internal/ingest"
	"github.com/minhle/quizrag/internal/oracle"
	"github.com/minhle/quizrag/internal/quiz"
	"github.com/minhle/quizrag/internal/rag"
	"github.com/minhle/quizrag/internal/store"
	"github.com/minhle/quizrag/internal/translate"
)

var ownerFlag string

var rootCmd = &cobra.Command{
	Use:   "quizrag",
	Short: "PDF ingestion, retrieval chat and quiz generation tool",
	Long:  "CLI tool for ingesting PDF documents into Qdrant, querying them, and generating quizzes",
}

var ingestCmd = &cobra.Command{
	Use:   "ingest <file.pdf>",
	Short: "Extract, translate and index a PDF for chat",
	Long: `Extracts body text, OCR text and tables from the PDF, normalizes and
translates Vietnamese content to English, embeds each page-aligned chunk and
upserts the vectors into the owner's document namespace. Re-running the
command for the same file replaces the namespace content.

Environment variables:
  QDRANT_HOST    Qdrant hostname (default: localhost)
  QDRANT_PORT    Qdrant gRPC port (default: 6334)
  OPENAI_API_KEY OpenAI API key for embeddings (required)`,
	Args: cobra.ExactArgs(1),
	RunE: runIngest,
}

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Answer a question from ingested content",
	Long: `Embeds the question, searches the vector index and generates an answer
from the best-matching chunks. With --document the search is scoped to that
document's namespace; otherwise the shared global namespace is searched.`,
	Args: cobra.ExactArgs(1),
	RunE: runAsk,
}

var quizCmd = &cobra.Command{
	Use:   "quiz <file.pdf>",
	Short: "Generate and store a quiz from a PDF",
	Long: `Extracts the PDF's body text, windows it into fixed-size chunks and asks
the generative model for multiple-choice and true/false questions per chunk.
The quiz is stored under the file's base name; generating again for the same
file replaces the stored questions.`,
	Args: cobra.ExactArgs(1),
	RunE: runQuiz,
}

var askDocumentFlag string

func init() {
	rootCmd.PersistentFlags().StringVar(&ownerFlag, "owner", "", "owning account id")
	askCmd.Flags().StringVar(&askDocumentFlag, "document", "", "scope the search to this document")
	rootCmd.AddCommand(ingestCmd)
	rootCmd.AddCommand(askCmd)
	rootCmd.AddCommand(quizCmd)
}

func main() {
	// Load .env file if present (local development), ignore if missing (production)
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// deps is the wired component set shared by the subcommands.
type deps struct {
	cfg      *config.Config
	index    *index.QdrantIndex
	embedder *embedding.Embedder
	oracle   *oracle.OpenAI
	logger   *slog.Logger
}

func buildDeps(ctx context.Context) (*deps, error) {
	cfg := config.Load()

	idx, err := index.NewQdrantIndex(cfg.QdrantHost, cfg.QdrantPort, embedding.Dimension)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Qdrant: %w", err)
	}

	if err := idx.EnsureCollection(ctx); err != nil {
		idx.Close()
		return nil, fmt.Errorf("failed to ensure collection: %w", err)
	}

	embeddingClient, err := embedding.NewClient()
	if err != nil {
		idx.Close()
		return nil, fmt.Errorf("failed to create embedding client: %w", err)
	}

	return &deps{
		cfg:      cfg,
		index:    idx,
		embedder: embedding.NewEmbedder(embeddingClient, 0), // Use default batch size
		oracle:   oracle.NewOpenAI(embeddingClient.Client(), cfg.OracleModel),
		logger:   slog.Default(),
	}, nil
}

func buildPipeline(d *deps, st store.Store) *ingest.Pipeline {
	extractor := extract.NewExtractor(d.cfg.OCRWorkers, splitLangs(d.cfg.OCRLanguages), d.logger)
	translator := translate.NewService(
		translate.NewLinguaDetector(),
		translate.NewHTTPTranslator(d.cfg.TranslateEndpoint, d.cfg.CallTimeout),
		d.logger,
	)
	synthesizer := quiz.NewSynthesizer(d.oracle, d.logger)

	return ingest.NewPipeline(extractor, translator, d.embedder, d.index, synthesizer, st, ingest.Options{
		WindowSize:    d.cfg.ChunkSize,
		WindowOverlap: d.cfg.ChunkOverlap,
		Workers:       d.cfg.Workers,
		CallTimeout:   d.cfg.CallTimeout,
	}, d.logger)
}

func runIngest(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	path := args[0]
	start := time.Now()

	if ownerFlag == "" {
		return fmt.Errorf("--owner is required")
	}

	d, err := buildDeps(ctx)
	if err != nil {
		return err
	}
	defer d.index.Close()

	// Chat-mode ingestion touches no quiz records; no document store needed.
	pipeline := buildPipeline(d, nil)

	fmt.Printf("Ingesting %s...\n", path)
	result, err := pipeline.IngestChat(ctx, path, ownerFlag)
	if err != nil {
		return fmt.Errorf("ingestion failed: %w", err)
	}

	fmt.Println()
	fmt.Println("Ingestion complete!")
	fmt.Printf("  Namespace: %s\n", result.Namespace)
	fmt.Printf("  Chunks: %d\n", result.Chunks)
	fmt.Printf("  Duration: %s\n", time.Since(start).Round(time.Millisecond))

	if len(result.Failures) > 0 {
		fmt.Println()
		fmt.Println("Chunk failures (source text kept):")
		for _, f := range result.Failures {
			fmt.Printf("  - chunk %d (%s): %s\n", f.Index, f.Stage, f.Reason)
		}
	}

	return nil
}

func runAsk(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	query := args[0]

	d, err := buildDeps(ctx)
	if err != nil {
		return err
	}
	defer d.index.Close()

	key := index.GlobalKey
	if askDocumentFlag != "" {
		if ownerFlag == "" {
			return fmt.Errorf("--owner is required with --document")
		}
		key, err = index.NewKey(ownerFlag, askDocumentFlag)
		if err != nil {
			return err
		}
	}

	assembler := rag.NewAssembler(d.embedder, d.index, d.oracle, d.logger)
	answer, err := assembler.Answer(ctx, query, key)
	if err != nil {
		return fmt.Errorf("query failed: %w", err)
	}

	fmt.Println(answer.Response)

	if len(answer.Matches) > 0 {
		fmt.Println()
		fmt.Println("Sources:")
		for _, m := range answer.Matches {
			fmt.Printf("  - page %d (score %.3f)\n", m.PageNumber, m.Score)
		}
	}

	return nil
}

func runQuiz(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	path := args[0]
	start := time.Now()

	if ownerFlag == "" {
		return fmt.Errorf("--owner is required")
	}

	d, err := buildDeps(ctx)
	if err != nil {
		return err
	}
	defer d.index.Close()

	st, err := store.NewMongoStore(ctx, d.cfg.MongoURI, d.cfg.MongoDatabase)
	if err != nil {
		return fmt.Errorf("failed to connect to MongoDB: %w", err)
	}
	defer func() {
		closeCtx, closeCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer closeCancel()
		st.Close(closeCtx)
	}()

	pipeline := buildPipeline(d, st)

	fmt.Printf("Generating quiz from %s...\n", path)
	result, err := pipeline.GenerateQuiz(ctx, path, ownerFlag)
	if err != nil {
		return fmt.Errorf("quiz generation failed: %w", err)
	}

	fmt.Println()
	fmt.Println("Quiz generated!")
	fmt.Printf("  Name: %s\n", result.Name)
	fmt.Printf("  Questions: %d\n", len(result.Questions))
	fmt.Printf("  Chunks: %d\n", result.Chunks)
	fmt.Printf("  Duration: %s\n", time.Since(start).Round(time.Millisecond))

	return nil
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
