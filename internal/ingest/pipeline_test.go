package ingest

import (
	"context"
	"crypto/sha256"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/minhle/quizrag/internal/chunk"
	"github.com/minhle/quizrag/internal/extract"
	"github.com/minhle/quizrag/internal/index"
	"github.com/minhle/quizrag/internal/quiz"
	"github.com/minhle/quizrag/internal/store"
)

type fakeExtractor struct {
	fragments []extract.Fragment
	err       error
}

func (f *fakeExtractor) ExtractFile(context.Context, string) ([]extract.Fragment, error) {
	return f.fragments, f.err
}

type passthroughTranslator struct {
	failOn map[string]error
}

func (t *passthroughTranslator) EnsureEnglish(_ context.Context, text string) (string, error) {
	if t.failOn != nil {
		for substr, err := range t.failOn {
			if strings.Contains(text, substr) {
				return "", err
			}
		}
	}
	return text, nil
}

// hashEmbedder is a deterministic encoder: same text, same vector.
type hashEmbedder struct{}

func (hashEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		sum := sha256.Sum256([]byte(text))
		v := make([]float32, 4)
		for j := range v {
			v[j] = float32(sum[j])
		}
		vectors[i] = v
	}
	return vectors, nil
}

type memoryIndex struct {
	namespaces map[string]map[string]index.Record // namespace -> vector id -> record
}

func newMemoryIndex() *memoryIndex {
	return &memoryIndex{namespaces: map[string]map[string]index.Record{}}
}

func (m *memoryIndex) Upsert(_ context.Context, key index.Key, records []index.Record) error {
	ns := m.namespaces[key.String()]
	if ns == nil {
		ns = map[string]index.Record{}
		m.namespaces[key.String()] = ns
	}
	for _, rec := range records {
		ns[rec.ID] = rec
	}
	return nil
}

func (m *memoryIndex) DeleteNamespace(_ context.Context, key index.Key) error {
	delete(m.namespaces, key.String())
	return nil
}

type fakeSynthesizer struct {
	questions  []quiz.Question
	chunksSeen []chunk.Chunk
}

func (f *fakeSynthesizer) Generate(_ context.Context, chunks []chunk.Chunk) ([]quiz.Question, error) {
	f.chunksSeen = chunks
	return f.questions, nil
}

type memoryStore struct {
	quizzes map[string][]quiz.Question // name -> questions
	tags    []string
}

func newMemoryStore() *memoryStore {
	return &memoryStore{quizzes: map[string][]quiz.Question{}}
}

func (m *memoryStore) FindUserQuizIDs(context.Context, string) ([]string, error) { return nil, nil }

func (m *memoryStore) GetQuiz(context.Context, string, []string) (*store.Quiz, error) {
	return nil, store.ErrQuizNotFound
}

func (m *memoryStore) UpsertQuiz(_ context.Context, name string, questions []quiz.Question, _ string) error {
	m.quizzes[name] = questions
	return nil
}

func (m *memoryStore) AppendDocumentTag(_ context.Context, _, tag string) error {
	m.tags = append(m.tags, tag)
	return nil
}

func newTestPipeline(ex *fakeExtractor, tr *passthroughTranslator, idx *memoryIndex, syn *fakeSynthesizer, st *memoryStore) *Pipeline {
	return NewPipeline(ex, tr, hashEmbedder{}, idx, syn, st, Options{Workers: 2}, slog.Default())
}

func TestIngestChat_TwoPageDocument(t *testing.T) {
	ex := &fakeExtractor{fragments: []extract.Fragment{
		{Text: "Hello world", PageNumber: 1, Source: extract.SourceBody},
		{Text: "", PageNumber: 2, Source: extract.SourceBody},
		{Text: "(Image 1):\nScanned note", PageNumber: 2, Source: extract.SourceImage},
	}}
	idx := newMemoryIndex()
	p := newTestPipeline(ex, &passthroughTranslator{}, idx, &fakeSynthesizer{}, newMemoryStore())

	result, err := p.IngestChat(context.Background(), "/tmp/notes.pdf", "user1")
	require.NoError(t, err)

	assert.Equal(t, 2, result.Chunks)
	assert.Equal(t, "user1.notes.pdf", result.Namespace)
	assert.Empty(t, result.Failures)

	ns := idx.namespaces["user1.notes.pdf"]
	require.Len(t, ns, 2)

	rec0 := ns["user1_notes.pdf_0"]
	assert.Equal(t, 1, rec0.PageNumber)
	assert.Equal(t, "Hello world", rec0.Text)

	rec1 := ns["user1_notes.pdf_1"]
	assert.Equal(t, 2, rec1.PageNumber)
	assert.Contains(t, rec1.Text, "Scanned note")
}

func TestIngestChat_ReingestOverwritesNotAppends(t *testing.T) {
	ex := &fakeExtractor{fragments: []extract.Fragment{
		{Text: "stable content", PageNumber: 1, Source: extract.SourceBody},
	}}
	idx := newMemoryIndex()
	p := newTestPipeline(ex, &passthroughTranslator{}, idx, &fakeSynthesizer{}, newMemoryStore())

	_, err := p.IngestChat(context.Background(), "doc.pdf", "user1")
	require.NoError(t, err)
	first := idx.namespaces["user1.doc.pdf"]["user1_doc.pdf_0"]

	_, err = p.IngestChat(context.Background(), "doc.pdf", "user1")
	require.NoError(t, err)
	second := idx.namespaces["user1.doc.pdf"]["user1_doc.pdf_0"]

	assert.Len(t, idx.namespaces["user1.doc.pdf"], 1, "namespace vector count unchanged")
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, first.Embedding, second.Embedding, "deterministic encoder yields identical vectors")
}

func TestIngestChat_ShrinkingDocumentLeavesNoStaleVectors(t *testing.T) {
	ex := &fakeExtractor{fragments: []extract.Fragment{
		{Text: "page one", PageNumber: 1, Source: extract.SourceBody},
		{Text: "page two", PageNumber: 2, Source: extract.SourceBody},
	}}
	idx := newMemoryIndex()
	p := newTestPipeline(ex, &passthroughTranslator{}, idx, &fakeSynthesizer{}, newMemoryStore())

	_, err := p.IngestChat(context.Background(), "doc.pdf", "user1")
	require.NoError(t, err)
	require.Len(t, idx.namespaces["user1.doc.pdf"], 2)

	ex.fragments = ex.fragments[:1]
	_, err = p.IngestChat(context.Background(), "doc.pdf", "user1")
	require.NoError(t, err)

	assert.Len(t, idx.namespaces["user1.doc.pdf"], 1, "trailing vector from longer version must be gone")
}

func TestIngestChat_TranslateFailureFallsBackToSource(t *testing.T) {
	ex := &fakeExtractor{fragments: []extract.Fragment{
		{Text: "good chunk", PageNumber: 1, Source: extract.SourceBody},
		{Text: "flaky chunk", PageNumber: 2, Source: extract.SourceBody},
	}}
	idx := newMemoryIndex()
	tr := &passthroughTranslator{failOn: map[string]error{"flaky": errors.New("translate service down")}}
	p := newTestPipeline(ex, tr, idx, &fakeSynthesizer{}, newMemoryStore())

	result, err := p.IngestChat(context.Background(), "doc.pdf", "user1")
	require.NoError(t, err)

	assert.Equal(t, 2, result.Chunks)
	require.Len(t, result.Failures, 1)
	assert.Equal(t, "translate", result.Failures[0].Stage)
	assert.Equal(t, 1, result.Failures[0].Index)

	// Both chunks still embedded and upserted, the flaky one with source text.
	ns := idx.namespaces["user1.doc.pdf"]
	require.Len(t, ns, 2)
	assert.Equal(t, "flaky chunk", ns["user1_doc.pdf_1"].Text)
}

func TestIngestChat_EmptyDocument(t *testing.T) {
	ex := &fakeExtractor{}
	idx := newMemoryIndex()
	p := newTestPipeline(ex, &passthroughTranslator{}, idx, &fakeSynthesizer{}, newMemoryStore())

	result, err := p.IngestChat(context.Background(), "empty.pdf", "user1")
	require.NoError(t, err)
	assert.Zero(t, result.Chunks)
	assert.Empty(t, idx.namespaces["user1.empty.pdf"])
}

func TestIngestChat_ExtractErrorAborts(t *testing.T) {
	ex := &fakeExtractor{err: errors.New("file is not a PDF")}
	p := newTestPipeline(ex, &passthroughTranslator{}, newMemoryIndex(), &fakeSynthesizer{}, newMemoryStore())

	_, err := p.IngestChat(context.Background(), "bad.pdf", "user1")
	assert.Error(t, err)
}

func TestGenerateQuiz(t *testing.T) {
	ex := &fakeExtractor{fragments: []extract.Fragment{
		{Text: "The sun is a star.", PageNumber: 1, Source: extract.SourceBody},
		{Text: "(Image 1):\nignored by quiz branch", PageNumber: 1, Source: extract.SourceImage},
		{Text: "It is very large.", PageNumber: 2, Source: extract.SourceBody},
	}}
	syn := &fakeSynthesizer{questions: []quiz.Question{
		{Question: "The sun is a star.", Options: []string{"True", "False"}, Answer: "True"},
	}}
	st := newMemoryStore()
	p := newTestPipeline(ex, &passthroughTranslator{}, newMemoryIndex(), syn, st)

	result, err := p.GenerateQuiz(context.Background(), "/uploads/astronomy.pdf", "user1")
	require.NoError(t, err)

	assert.Equal(t, "astronomy", result.Name)
	require.Len(t, result.Questions, 1)
	assert.Equal(t, "True", result.Questions[0].Answer, "answer persisted as string literal")

	require.Contains(t, st.quizzes, "astronomy")
	assert.Equal(t, syn.questions, st.quizzes["astronomy"])
	assert.Equal(t, []string{"user1.astronomy.pdf"}, st.tags)

	// The synthesizer saw body text only.
	for _, c := range syn.chunksSeen {
		assert.NotContains(t, c.Text, "ignored by quiz branch")
	}
}

func TestGenerateQuiz_InvalidOwner(t *testing.T) {
	p := newTestPipeline(&fakeExtractor{}, &passthroughTranslator{}, newMemoryIndex(), &fakeSynthesizer{}, newMemoryStore())
	_, err := p.GenerateQuiz(context.Background(), "doc.pdf", "")
	assert.Error(t, err)
}
