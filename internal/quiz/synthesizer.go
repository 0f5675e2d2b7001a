package quiz

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/minhle/quizrag/internal/chunk"
	"github.com/minhle/quizrag/internal/oracle"
)

// ErrOracleParse marks an oracle response that held no decodable question
// array. The chunk yields zero questions; synthesis continues.
var ErrOracleParse = errors.New("oracle response is not a question array")

const promptTemplate = `You are an expert at creating True/False and Multiple Choice questions based on documentation.
Your goal is to prepare students for their test.
For the text chunk below, create the following:

- True/False questions: each question must be based on key facts or concepts from the text and should be concise and easy to answer.
- Multiple Choice questions: each question must have four options, one of which is correct. The questions should assess comprehension of important details from the text.

Format the output as a JSON array:
1. For True/False questions:
    - "question": the question,
    - "options": ["True", "False"],
    - "answer": a boolean representing the correct answer (true or false).

2. For Multiple Choice questions:
    - "question": the question,
    - "options": an array of 4 strings representing the choices,
    - "answer": the index number (0-3) of the correct answer in the options array.

Ensure the questions are relevant to the content and concise.

Based on the following passage:
-----------
%s
-----------

QUESTIONS:
`

// Synthesizer turns document chunks into quiz questions.
type Synthesizer struct {
	oracle oracle.Oracle
	logger *slog.Logger
}

// NewSynthesizer creates a Synthesizer backed by the given oracle.
func NewSynthesizer(o oracle.Oracle, logger *slog.Logger) *Synthesizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Synthesizer{
		oracle: o,
		logger: logger,
	}
}

// Generate synthesizes questions for every chunk and concatenates the
// per-chunk arrays in chunk order. A failed oracle call or unparseable
// response yields zero questions from that chunk and never aborts the rest.
func (s *Synthesizer) Generate(ctx context.Context, chunks []chunk.Chunk) ([]Question, error) {
	var questions []Question

	for i, c := range chunks {
		if strings.TrimSpace(c.Text) == "" {
			continue
		}

		raw, err := s.oracle.Generate(ctx, fmt.Sprintf(promptTemplate, c.Text))
		if err != nil {
			if ctx.Err() != nil {
				return questions, ctx.Err()
			}
			s.logger.Warn("quiz oracle call failed, skipping chunk", "chunk", i, "error", err)
			continue
		}

		parsed, err := parseQuestions(raw)
		if err != nil {
			s.logger.Warn("quiz response unparseable, skipping chunk", "chunk", i, "error", err)
			continue
		}
		questions = append(questions, parsed...)
	}

	return questions, nil
}

// parseQuestions extracts the question array from the oracle's free-form
// response: the substring from the first "[" through the closing "}]" is
// decoded and every element is schema-validated. Any structural mismatch is
// ErrOracleParse, never a silent partial parse.
func parseQuestions(raw string) ([]Question, error) {
	start := strings.Index(raw, "[")
	if start == -1 {
		return nil, fmt.Errorf("%w: no opening bracket", ErrOracleParse)
	}
	end := strings.Index(raw, "}]")
	if end == -1 || end < start {
		return nil, fmt.Errorf("%w: no closing bracket", ErrOracleParse)
	}

	var questions []Question
	if err := json.Unmarshal([]byte(raw[start:end+2]), &questions); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrOracleParse, err)
	}

	for i, q := range questions {
		if err := q.validate(); err != nil {
			return nil, fmt.Errorf("%w: question %d: %v", ErrOracleParse, i, err)
		}
	}

	return questions, nil
}
