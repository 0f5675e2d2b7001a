// Package extract produces page-tagged text fragments from PDF files.
// Three sources feed each page: native body text, OCR over rasterized page
// images, and detected tabular regions.
package extract

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/gen2brain/go-fitz"
	"github.com/otiai10/gosseract/v2"
	"golang.org/x/sync/errgroup"
)

// Source identifies the extraction modality a fragment came from.
type Source int

const (
	SourceBody Source = iota
	SourceImage
	SourceTable
)

// Fragment is a unit of extracted content tagged with its 1-indexed page.
// Fragments sharing a page appear in layout order: body, image, table.
type Fragment struct {
	Text       string
	PageNumber int
	Source     Source
}

const (
	// DefaultOCRWorkers bounds the CPU-bound OCR pool.
	DefaultOCRWorkers = 4

	// renderDPI is the resolution pages are rasterized at before OCR.
	renderDPI = 150
)

// Extractor reads PDFs with MuPDF and recognizes image text with Tesseract.
type Extractor struct {
	ocrWorkers int
	ocrLangs   []string
	logger     *slog.Logger
}

// NewExtractor creates an Extractor. workers <= 0 selects DefaultOCRWorkers;
// langs are Tesseract language codes (empty means Tesseract's default).
func NewExtractor(workers int, langs []string, logger *slog.Logger) *Extractor {
	if workers <= 0 {
		workers = DefaultOCRWorkers
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{
		ocrWorkers: workers,
		ocrLangs:   langs,
		logger:     logger,
	}
}

// ExtractFile produces the ordered fragment sequence for every page of the
// PDF at path. Per-page failures are logged and isolated: the page
// contributes an empty body fragment and extraction continues. Only a file
// that cannot be opened at all aborts the document.
func (e *Extractor) ExtractFile(ctx context.Context, path string) ([]Fragment, error) {
	doc, err := fitz.New(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrUnreadableFile, path, err)
	}
	defer doc.Close()

	type pageData struct {
		body   string
		render []byte
	}

	// MuPDF handles are not safe for concurrent use, so text extraction and
	// rasterization run serially; only OCR fans out below.
	pages := make([]pageData, doc.NumPage())
	for i := range pages {
		text, err := doc.Text(i)
		if err != nil {
			e.logger.Warn("page text extraction failed, skipping page",
				"path", path, "page", i+1, "error", err)
			continue
		}
		pages[i].body = text

		// Pages without native text are likely scans: rasterize for OCR.
		if strings.TrimSpace(text) == "" {
			render, err := doc.ImagePNG(i, renderDPI)
			if err != nil {
				e.logger.Warn("page render failed, skipping OCR",
					"path", path, "page", i+1, "error", err)
				continue
			}
			pages[i].render = render
		}
	}

	ocrText := make([]string, len(pages))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.ocrWorkers)
	for i := range pages {
		if pages[i].render == nil {
			continue
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			text, err := e.recognize(pages[i].render)
			if err != nil {
				// OCR failure on one page never aborts the document.
				e.logger.Warn("ocr failed", "path", path, "page", i+1, "error", err)
				return nil
			}
			ocrText[i] = strings.TrimSpace(text)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var fragments []Fragment
	tableOrdinal := 0
	for i := range pages {
		pageNumber := i + 1

		fragments = append(fragments, Fragment{
			Text:       strings.TrimSpace(pages[i].body),
			PageNumber: pageNumber,
			Source:     SourceBody,
		})

		if ocrText[i] != "" {
			fragments = append(fragments, Fragment{
				Text:       fmt.Sprintf("(Image 1):\n%s", ocrText[i]),
				PageNumber: pageNumber,
				Source:     SourceImage,
			})
		}

		for _, table := range detectTables(pages[i].body) {
			tableOrdinal++
			fragments = append(fragments, Fragment{
				Text:       fmt.Sprintf("(Table %d):\n%s", tableOrdinal, table),
				PageNumber: pageNumber,
				Source:     SourceTable,
			})
		}
	}

	return fragments, nil
}

// recognize runs Tesseract over a rendered page image. A fresh client per
// call because gosseract clients are not goroutine-safe.
func (e *Extractor) recognize(png []byte) (string, error) {
	client := gosseract.NewClient()
	defer client.Close()

	if len(e.ocrLangs) > 0 {
		if err := client.SetLanguage(e.ocrLangs...); err != nil {
			return "", fmt.Errorf("set ocr languages: %w", err)
		}
	}
	if err := client.SetImageFromBytes(png); err != nil {
		return "", fmt.Errorf("load image: %w", err)
	}

	text, err := client.Text()
	if err != nil {
		return "", fmt.Errorf("recognize: %w", err)
	}
	return text, nil
}
