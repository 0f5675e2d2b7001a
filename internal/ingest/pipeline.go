// Package ingest orchestrates the document pipeline: extraction,
// normalization, translation, chunking, embedding and namespace-scoped
// indexing, plus the quiz synthesis branch.
package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/minhle/quizrag/internal/chunk"
	"github.com/minhle/quizrag/internal/extract"
	"github.com/minhle/quizrag/internal/index"
	"github.com/minhle/quizrag/internal/quiz"
	"github.com/minhle/quizrag/internal/store"
	"github.com/minhle/quizrag/internal/textproc"
)

// Extractor produces page-tagged fragments from a PDF file.
type Extractor interface {
	ExtractFile(ctx context.Context, path string) ([]extract.Fragment, error)
}

// Translator is the per-chunk language gate.
type Translator interface {
	EnsureEnglish(ctx context.Context, text string) (string, error)
}

// Embedder encodes chunk texts, order-preserving.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// Indexer is the write side of the vector index.
type Indexer interface {
	Upsert(ctx context.Context, key index.Key, records []index.Record) error
	DeleteNamespace(ctx context.Context, key index.Key) error
}

// Synthesizer turns chunks into quiz questions.
type Synthesizer interface {
	Generate(ctx context.Context, chunks []chunk.Chunk) ([]quiz.Question, error)
}

// ChunkFailure attributes a non-fatal failure to a stage and chunk index.
type ChunkFailure struct {
	Stage  string `json:"stage"`
	Index  int    `json:"index"`
	Reason string `json:"reason"`
}

// Result describes one chat-mode ingestion run.
type Result struct {
	Document  string         `json:"document"`
	Namespace string         `json:"namespace"`
	Chunks    int            `json:"chunks"`
	Failures  []ChunkFailure `json:"failures,omitempty"`
	Duration  time.Duration  `json:"-"`
}

// QuizResult describes one quiz generation run.
type QuizResult struct {
	Name      string          `json:"quiz_name"`
	Questions []quiz.Question `json:"questions"`
	Chunks    int             `json:"chunks"`
	Failures  []ChunkFailure  `json:"failures,omitempty"`
	Duration  time.Duration   `json:"-"`
}

// Options tunes the pipeline.
type Options struct {
	WindowSize    int           // quiz-mode chunk size (characters)
	WindowOverlap int           // quiz-mode chunk overlap
	Workers       int           // bounded pool for per-chunk translation
	CallTimeout   time.Duration // per external call
}

func (o Options) withDefaults() Options {
	if o.WindowSize <= 0 {
		o.WindowSize = chunk.DefaultWindowSize
	}
	if o.WindowOverlap <= 0 {
		o.WindowOverlap = chunk.DefaultWindowOverlap
	}
	if o.Workers <= 0 {
		o.Workers = 4
	}
	if o.CallTimeout <= 0 {
		o.CallTimeout = 30 * time.Second
	}
	return o
}

// Pipeline wires the ingestion stages. All collaborators are injected; the
// pipeline holds no global state.
type Pipeline struct {
	extractor   Extractor
	translator  Translator
	embedder    Embedder
	indexer     Indexer
	synthesizer Synthesizer
	store       store.Store
	opts        Options
	logger      *slog.Logger
}

// NewPipeline creates the pipeline with the given components.
func NewPipeline(
	extractor Extractor,
	translator Translator,
	embedder Embedder,
	indexer Indexer,
	synthesizer Synthesizer,
	st store.Store,
	opts Options,
	logger *slog.Logger,
) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		extractor:   extractor,
		translator:  translator,
		embedder:    embedder,
		indexer:     indexer,
		synthesizer: synthesizer,
		store:       st,
		opts:        opts.withDefaults(),
		logger:      logger,
	}
}

// IngestChat runs the chat-mode pipeline for the PDF at path: page-bounded
// chunks are normalized, translated to English where needed, embedded and
// upserted under the owner/document namespace. Re-ingestion first clears the
// namespace so a shrinking document leaves no stale trailing vectors.
func (p *Pipeline) IngestChat(ctx context.Context, path, owner string) (*Result, error) {
	start := time.Now()

	documentID := filepath.Base(path)
	key, err := index.NewKey(owner, documentID)
	if err != nil {
		return nil, fmt.Errorf("namespace key: %w", err)
	}

	result := &Result{
		Document:  documentID,
		Namespace: key.String(),
	}

	fragments, err := p.extractor.ExtractFile(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("extract: %w", err)
	}

	// Line-joining normalization runs per fragment, before chunk boundaries
	// are decided; the permitted-set pass runs after translation below.
	for i := range fragments {
		fragments[i].Text = textproc.JoinLines(fragments[i].Text)
	}

	chunks := chunk.ByPage(fragments)
	result.Chunks = len(chunks)
	p.logger.Info("chunked document", "document", documentID, "chunks", len(chunks))

	texts, failures := p.canonicalTexts(ctx, chunks)
	result.Failures = failures

	if err := p.replaceNamespace(ctx, key, chunks, texts); err != nil {
		return nil, err
	}

	result.Duration = time.Since(start)
	p.logger.Info("ingestion complete",
		"document", documentID,
		"namespace", key.String(),
		"chunks", result.Chunks,
		"failures", len(result.Failures),
		"duration", result.Duration,
	)
	return result, nil
}

// canonicalTexts translates and cleans every chunk on a bounded worker pool.
// Results are written to index-addressed slots so chunk indices, and
// therefore vector ids, are independent of completion order. A translation
// failure falls back to the source text for that one chunk.
func (p *Pipeline) canonicalTexts(ctx context.Context, chunks []chunk.Chunk) ([]string, []ChunkFailure) {
	texts := make([]string, len(chunks))

	var mu sync.Mutex
	var failures []ChunkFailure

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.opts.Workers)
	for i, c := range chunks {
		g.Go(func() error {
			callCtx, cancel := context.WithTimeout(gctx, p.opts.CallTimeout)
			defer cancel()

			text, err := p.translator.EnsureEnglish(callCtx, c.Text)
			if err != nil {
				p.logger.Warn("translation failed, keeping source text", "chunk", i, "error", err)
				text = c.Text
				mu.Lock()
				failures = append(failures, ChunkFailure{Stage: "translate", Index: i, Reason: err.Error()})
				mu.Unlock()
			}
			texts[i] = textproc.Clean(text)
			return nil
		})
	}
	_ = g.Wait() // workers never return errors; fallbacks are recorded above

	return texts, failures
}

// replaceNamespace embeds the canonical texts and swaps the namespace
// content: clear, then upsert with deterministic ids.
func (p *Pipeline) replaceNamespace(ctx context.Context, key index.Key, chunks []chunk.Chunk, texts []string) error {
	if err := p.indexer.DeleteNamespace(ctx, key); err != nil {
		return fmt.Errorf("clear namespace: %w", err)
	}
	if len(chunks) == 0 {
		return nil
	}

	embedCtx, cancel := context.WithTimeout(ctx, p.opts.CallTimeout)
	defer cancel()
	vectors, err := p.embedder.Embed(embedCtx, texts)
	if err != nil {
		return fmt.Errorf("embed: %w", err)
	}

	records := make([]index.Record, len(chunks))
	for i := range chunks {
		records[i] = index.Record{
			ID:         key.VectorID(i),
			Embedding:  vectors[i],
			Text:       texts[i],
			PageNumber: chunks[i].PageNumber,
			ChunkIndex: i,
		}
	}

	upsertCtx, cancel := context.WithTimeout(ctx, p.opts.CallTimeout)
	defer cancel()
	if err := p.indexer.Upsert(upsertCtx, key, records); err != nil {
		return fmt.Errorf("upsert: %w", err)
	}
	return nil
}

// GenerateQuiz runs the quiz branch: body text is normalized, windowed,
// translated, synthesized into questions and handed to the document store
// under the file's base name.
func (p *Pipeline) GenerateQuiz(ctx context.Context, path, owner string) (*QuizResult, error) {
	start := time.Now()

	documentID := filepath.Base(path)
	key, err := index.NewKey(owner, documentID)
	if err != nil {
		return nil, fmt.Errorf("namespace key: %w", err)
	}

	fragments, err := p.extractor.ExtractFile(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("extract: %w", err)
	}

	// Quiz generation reads body text only; OCR and table fragments serve
	// the retrieval path.
	var b strings.Builder
	for _, frag := range fragments {
		if frag.Source != extract.SourceBody {
			continue
		}
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		b.WriteString(frag.Text)
	}

	chunks := chunk.ByWindow(textproc.JoinLines(b.String()), p.opts.WindowSize, p.opts.WindowOverlap)

	texts, failures := p.canonicalTexts(ctx, chunks)
	for i := range chunks {
		chunks[i].Text = texts[i]
	}

	questions, err := p.synthesizer.Generate(ctx, chunks)
	if err != nil {
		return nil, fmt.Errorf("synthesize: %w", err)
	}

	name := strings.TrimSuffix(documentID, filepath.Ext(documentID))
	if err := p.store.UpsertQuiz(ctx, name, questions, owner); err != nil {
		return nil, fmt.Errorf("persist quiz: %w", err)
	}
	if err := p.store.AppendDocumentTag(ctx, owner, key.String()); err != nil {
		return nil, fmt.Errorf("tag document: %w", err)
	}

	result := &QuizResult{
		Name:      name,
		Questions: questions,
		Chunks:    len(chunks),
		Failures:  failures,
		Duration:  time.Since(start),
	}
	p.logger.Info("quiz generated",
		"quiz", name,
		"chunks", result.Chunks,
		"questions", len(questions),
		"duration", result.Duration,
	)
	return result, nil
}
