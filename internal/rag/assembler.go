// Package rag answers natural-language questions from ingested document
// content: embed the query, search the document's namespace, assemble the
// ranked matches into a context block and hand it to the generative oracle.
package rag

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/minhle/quizrag/internal/index"
	"github.com/minhle/quizrag/internal/oracle"
)

const (
	// DocumentTopK is how many matches a document-scoped query retrieves.
	DocumentTopK = 5

	// GlobalTopK is how many matches a global-namespace query retrieves.
	GlobalTopK = 4

	// FallbackMessage is returned verbatim when retrieval finds nothing.
	// The oracle is never called in that case.
	FallbackMessage = "I couldn't find anything related to your question in the uploaded documents. " +
		"Please rephrase the question or make sure the document covering this topic has been uploaded."
)

const promptTemplate = `Context:
%s

User Query:
%s

Instructions:
1. Provide a clear and concise response to the user's query based on the provided context.
2. Ensure the response is formatted for display in a report, without markdown emphasis characters and adhering to literature-friendly syntax.
3. If additional information is required or the query cannot be answered fully, provide a helpful and polite clarification to the user.

Example format:
Respond by saying that the answer to the question has been found, and smoothly lead into the answer.
1. Any subtitle
2. Next subtitle
3. ...

Additionally, offer related follow-up questions to guide the user further.

Response:
`

// Embedder encodes query text, matching the encoder used at ingestion.
type Embedder interface {
	EmbedOne(ctx context.Context, text string) ([]float32, error)
}

// Searcher is the read side of the vector index.
type Searcher interface {
	Query(ctx context.Context, key index.Key, vector []float32, topK int) ([]index.Match, error)
}

// Answer is a generated response plus the ranked matches that produced it.
type Answer struct {
	Response string        `json:"response"`
	Matches  []index.Match `json:"search_results"`
}

// Assembler runs the retrieval and answer generation flow. It never mutates
// index state.
type Assembler struct {
	embedder Embedder
	searcher Searcher
	oracle   oracle.Oracle
	logger   *slog.Logger
}

// NewAssembler wires the assembler's collaborators.
func NewAssembler(embedder Embedder, searcher Searcher, o oracle.Oracle, logger *slog.Logger) *Assembler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Assembler{
		embedder: embedder,
		searcher: searcher,
		oracle:   o,
		logger:   logger,
	}
}

// Answer resolves a query against the given namespace. Zero matches short
// circuit to FallbackMessage without calling the oracle.
func (a *Assembler) Answer(ctx context.Context, query string, key index.Key) (*Answer, error) {
	vector, err := a.embedder.EmbedOne(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	topK := GlobalTopK
	if !key.IsGlobal() {
		topK = DocumentTopK
	}

	matches, err := a.searcher.Query(ctx, key, vector, topK)
	if err != nil {
		return nil, fmt.Errorf("search namespace %q: %w", key.String(), err)
	}

	if len(matches) == 0 {
		a.logger.Info("no matches, returning fallback", "namespace", key.String())
		return &Answer{
			Response: FallbackMessage,
			Matches:  []index.Match{},
		}, nil
	}

	texts := make([]string, len(matches))
	for i, m := range matches {
		texts[i] = m.Text
	}
	prompt := fmt.Sprintf(promptTemplate, strings.Join(texts, "\n"), query)

	response, err := a.oracle.Generate(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("generate answer: %w", err)
	}

	return &Answer{
		Response: response,
		Matches:  matches,
	}, nil
}
