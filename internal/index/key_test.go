package index

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewKey(t *testing.T) {
	key, err := NewKey("user42", "lecture-notes")
	require.NoError(t, err)
	assert.Equal(t, "user42.lecture-notes", key.String())
	assert.False(t, key.IsGlobal())
}

func TestNewKey_TransliteratesDocumentID(t *testing.T) {
	key, err := NewKey("user42", "bài giảng.pdf")
	require.NoError(t, err)
	assert.Equal(t, "user42.bai giang.pdf", key.String())
}

func TestNewKey_RejectsInvalidComponents(t *testing.T) {
	tests := []struct {
		name     string
		owner    string
		document string
	}{
		{"empty owner", "", "doc"},
		{"empty document", "user", ""},
		{"owner with namespace delimiter", "a.b", "doc"},
		{"owner with vector id delimiter", "a_b", "doc"},
		{"document entirely non-ascii", "user", "中文文档"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewKey(tt.owner, tt.document)
			assert.ErrorIs(t, err, ErrInvalidKey)
		})
	}
}

func TestKey_VectorID_Deterministic(t *testing.T) {
	a, err := NewKey("user42", "notes.pdf")
	require.NoError(t, err)
	b, err := NewKey("user42", "notes.pdf")
	require.NoError(t, err)

	assert.Equal(t, a.VectorID(0), b.VectorID(0))
	assert.Equal(t, "user42_notes.pdf_3", a.VectorID(3))
	assert.NotEqual(t, a.VectorID(0), a.VectorID(1))
}

func TestKey_NoCollisionAcrossTenants(t *testing.T) {
	a, err := NewKey("alice", "report")
	require.NoError(t, err)
	b, err := NewKey("bob", "report")
	require.NoError(t, err)

	assert.NotEqual(t, a.String(), b.String())
	assert.NotEqual(t, a.VectorID(0), b.VectorID(0))
}

func TestGlobalKey(t *testing.T) {
	assert.True(t, GlobalKey.IsGlobal())
	assert.Equal(t, "", GlobalKey.String())
	assert.Equal(t, "global_5", GlobalKey.VectorID(5))
}

func TestASCIIFold(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"hello.pdf", "hello.pdf"},
		{"bài giảng tiếng Việt", "bai giang tieng Viet"},
		{"résumé", "resume"},
		{"中文", ""},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ASCIIFold(tt.in))
	}
}

func TestPointID_Deterministic(t *testing.T) {
	assert.Equal(t, pointID("user.doc", "user_doc_0"), pointID("user.doc", "user_doc_0"))
	assert.NotEqual(t, pointID("user.doc", "user_doc_0"), pointID("user.doc", "user_doc_1"))
	assert.NotEqual(t, pointID("alice.doc", "doc_0"), pointID("bob.doc", "doc_0"))
}
