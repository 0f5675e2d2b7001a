package index

import (
	"fmt"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// namespaceDelimiter separates the owner and document components of a
// namespace string. Components containing it are rejected at construction so
// two distinct keys can never render to the same namespace.
const namespaceDelimiter = "."

// vectorIDDelimiter separates key components and the chunk index in a vector id.
const vectorIDDelimiter = "_"

// Key is a validated namespace key isolating one owner/document pair in the
// vector index. The zero value is the global namespace (legacy mode).
type Key struct {
	owner    string
	document string
}

// GlobalKey is the legacy/global namespace shared by unscoped ingestion.
var GlobalKey = Key{}

// NewKey builds a namespace key from an owning-account identifier and a
// document identifier. The document identifier is transliterated to ASCII
// before use; both components must be non-empty and free of the namespace
// delimiter after transliteration.
func NewKey(ownerID, documentID string) (Key, error) {
	owner := strings.TrimSpace(ownerID)
	document := ASCIIFold(strings.TrimSpace(documentID))

	if owner == "" {
		return Key{}, fmt.Errorf("%w: empty owner id", ErrInvalidKey)
	}
	if document == "" {
		return Key{}, fmt.Errorf("%w: document id %q is empty after ascii folding", ErrInvalidKey, documentID)
	}
	// Document ids routinely contain "." (file extensions); keeping the owner
	// component delimiter-free is enough to make every rendered namespace and
	// vector id parse unambiguously from the left.
	if strings.ContainsAny(owner, namespaceDelimiter+vectorIDDelimiter) {
		return Key{}, fmt.Errorf("%w: owner id contains reserved delimiter", ErrInvalidKey)
	}

	return Key{owner: owner, document: document}, nil
}

// IsGlobal reports whether the key addresses the global namespace.
func (k Key) IsGlobal() bool {
	return k.owner == "" && k.document == ""
}

// String renders the namespace: "owner.document", or "" for the global key.
func (k Key) String() string {
	if k.IsGlobal() {
		return ""
	}
	return k.owner + namespaceDelimiter + k.document
}

// VectorID builds the deterministic id for the chunk at the given index.
// Re-ingestion of the same document reproduces the same ids, so upserts
// overwrite rather than duplicate.
func (k Key) VectorID(chunkIndex int) string {
	if k.IsGlobal() {
		return fmt.Sprintf("global%s%d", vectorIDDelimiter, chunkIndex)
	}
	return fmt.Sprintf("%s%s%s%s%d", k.owner, vectorIDDelimiter, k.document, vectorIDDelimiter, chunkIndex)
}

// asciiFolder strips combining marks after NFKD decomposition, so diacritics
// are dropped rather than replaced.
var asciiFolder = transform.Chain(
	norm.NFKD,
	runes.Remove(runes.In(unicode.Mn)),
)

// ASCIIFold transliterates s to ASCII: diacritics are stripped and any
// remaining non-ASCII runes are dropped.
func ASCIIFold(s string) string {
	folded, _, err := transform.String(asciiFolder, s)
	if err != nil {
		folded = s
	}
	var b strings.Builder
	b.Grow(len(folded))
	for _, r := range folded {
		if r < 128 {
			b.WriteRune(r)
		}
	}
	return b.String()
}
