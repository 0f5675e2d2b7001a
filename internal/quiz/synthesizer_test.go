package quiz

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/minhle/quizrag/internal/chunk"
)

type scriptedOracle struct {
	responses []string
	errs      []error
	call      int
}

func (o *scriptedOracle) Generate(ctx context.Context, prompt string) (string, error) {
	i := o.call
	o.call++
	if i < len(o.errs) && o.errs[i] != nil {
		return "", o.errs[i]
	}
	if i < len(o.responses) {
		return o.responses[i], nil
	}
	return "", errors.New("unexpected call")
}

func TestParseQuestions_BooleanAnswerBecomesString(t *testing.T) {
	raw := `Here are your questions:
[{"question":"HTML is a markup language.","options":["True","False"],"answer":true}]
Good luck!`

	questions, err := parseQuestions(raw)
	require.NoError(t, err)
	require.Len(t, questions, 1)
	assert.Equal(t, "True", questions[0].Answer)
}

func TestParseQuestions_IndexAnswerBecomesString(t *testing.T) {
	raw := `[{"question":"What does CSS control?","options":["Layout","Routing","Compilation","Storage"],"answer":0}]`

	questions, err := parseQuestions(raw)
	require.NoError(t, err)
	require.Len(t, questions, 1)
	assert.Equal(t, "0", questions[0].Answer)
	assert.Len(t, questions[0].Options, 4)
}

func TestParseQuestions_MixedArray(t *testing.T) {
	raw := "```json\n" +
		`[{"question":"CSS stands for Cascading Style Sheets.","options":["True","False"],"answer":true},` +
		`{"question":"Which language structures web content?","options":["HTML","CSS","SQL","Bash"],"answer":0}]` +
		"\n```"

	questions, err := parseQuestions(raw)
	require.NoError(t, err)
	require.Len(t, questions, 2)
	assert.Equal(t, "True", questions[0].Answer)
	assert.Equal(t, "0", questions[1].Answer)
}

func TestParseQuestions_Errors(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"no array at all", "I cannot create questions from this text."},
		{"no closing bracket", `[{"question":"q","options":["True","False"],"answer":true`},
		{"invalid json", `[{"question": }]`},
		{"wrong option count", `[{"question":"q","options":["a","b","c"],"answer":0}]`},
		{"index out of range", `[{"question":"q","options":["a","b","c","d"],"answer":7}]`},
		{"non boolean tf answer", `[{"question":"q","options":["True","False"],"answer":"maybe"}]`},
		{"empty question", `[{"question":"","options":["True","False"],"answer":true}]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parseQuestions(tt.raw)
			assert.ErrorIs(t, err, ErrOracleParse)
		})
	}
}

func TestGenerate_ParseFailureSkipsChunkOnly(t *testing.T) {
	o := &scriptedOracle{
		responses: []string{
			`[{"question":"First?","options":["True","False"],"answer":false}]`,
			"no questions here",
			`[{"question":"Third?","options":["True","False"],"answer":true}]`,
		},
	}
	s := NewSynthesizer(o, slog.Default())

	questions, err := s.Generate(context.Background(), []chunk.Chunk{
		{Text: "chunk one"},
		{Text: "chunk two"},
		{Text: "chunk three"},
	})
	require.NoError(t, err)
	require.Len(t, questions, 2)
	assert.Equal(t, "First?", questions[0].Question)
	assert.Equal(t, "False", questions[0].Answer)
	assert.Equal(t, "Third?", questions[1].Question)
}

func TestGenerate_OracleErrorSkipsChunkOnly(t *testing.T) {
	o := &scriptedOracle{
		responses: []string{
			"",
			`[{"question":"Q?","options":["True","False"],"answer":true}]`,
		},
		errs: []error{errors.New("oracle down"), nil},
	}
	s := NewSynthesizer(o, slog.Default())

	questions, err := s.Generate(context.Background(), []chunk.Chunk{
		{Text: "a"}, {Text: "b"},
	})
	require.NoError(t, err)
	require.Len(t, questions, 1)
}

func TestGenerate_EmptyChunksSkipped(t *testing.T) {
	o := &scriptedOracle{}
	s := NewSynthesizer(o, slog.Default())

	questions, err := s.Generate(context.Background(), []chunk.Chunk{
		{Text: "   "}, {Text: ""},
	})
	require.NoError(t, err)
	assert.Empty(t, questions)
	assert.Zero(t, o.call)
}
