// Package translate implements the language gate: Vietnamese text is
// translated to English before embedding, everything else passes through
// unchanged. The decision is per chunk, so mixed-language documents end up
// partially translated.
package translate

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/pemistahl/lingua-go"
)

// Detector decides whether a block of text is dominantly Vietnamese.
// Detection failures report false; the gate then leaves the text unchanged.
type Detector interface {
	IsVietnamese(text string) bool
}

// Translator converts text between ISO 639-1 language codes.
type Translator interface {
	Translate(ctx context.Context, text, source, target string) (string, error)
}

// Service is the per-chunk language gate.
type Service struct {
	detector   Detector
	translator Translator
	logger     *slog.Logger
}

// NewService builds the gate from a detector and translator.
func NewService(detector Detector, translator Translator, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		detector:   detector,
		translator: translator,
		logger:     logger,
	}
}

// EnsureEnglish returns an English rendition of text: a translation when the
// text is Vietnamese, the input unchanged otherwise. A translation transport
// failure returns an error; callers fall back to the source text for that
// one chunk and continue.
func (s *Service) EnsureEnglish(ctx context.Context, text string) (string, error) {
	if text == "" || !s.detector.IsVietnamese(text) {
		return text, nil
	}

	translated, err := s.translator.Translate(ctx, text, "vi", "en")
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrTranslateFailed, err)
	}
	s.logger.Debug("translated chunk", "source_len", len(text), "translated_len", len(translated))
	return translated, nil
}

// LinguaDetector detects languages locally with lingua. Restricting the
// candidate set keeps model load small; the gate only needs to distinguish
// Vietnamese from everything else.
type LinguaDetector struct {
	detector lingua.LanguageDetector
}

// NewLinguaDetector builds the detector with its language models loaded.
func NewLinguaDetector() *LinguaDetector {
	languages := []lingua.Language{
		lingua.Vietnamese,
		lingua.English,
		lingua.French,
		lingua.Spanish,
		lingua.German,
	}
	return &LinguaDetector{
		detector: lingua.NewLanguageDetectorBuilder().
			FromLanguages(languages...).
			Build(),
	}
}

// IsVietnamese reports whether text is dominantly Vietnamese. An
// undetectable language degrades to false, never an error.
func (d *LinguaDetector) IsVietnamese(text string) bool {
	language, ok := d.detector.DetectLanguageOf(text)
	return ok && language == lingua.Vietnamese
}
