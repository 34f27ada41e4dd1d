package types

import (
	"time"

	"github.com/clipcatd/clipcat/pkg/fingerprint"
)

// ClipEntry is an immutable captured clipboard value.
type ClipEntry struct {
	ID            uint64
	Content       Content
	ClipboardKind ClipboardKind
	Timestamp     time.Time
	Sha256Digest  string // hex-encoded
}

// NewClipEntry builds a ClipEntry, deriving ID and Sha256Digest from content
// per the content-addressing invariant: equal content implies equal id and
// equal digest.
func NewClipEntry(content Content, kind ClipboardKind, timestamp time.Time) (ClipEntry, error) {
	normalised, err := content.NormalisedEncoding()
	if err != nil {
		return ClipEntry{}, err
	}
	return ClipEntry{
		ID:            fingerprint.ID(normalised),
		Content:       content,
		ClipboardKind: kind,
		Timestamp:     timestamp.UTC(),
		Sha256Digest:  fingerprint.DigestHex(normalised),
	}, nil
}

// Equal compares two entries by content only. Hash(a) == Hash(b) whenever
// Equal(a, b) follows because both are derived from the same normalised
// encoding.
func (e ClipEntry) Equal(o ClipEntry) bool {
	return e.Content.Equal(o.Content)
}

// ClipEntryMetadata is the RPC-facing projection of a ClipEntry.
type ClipEntryMetadata struct {
	ID            uint64
	ClipboardKind ClipboardKind
	Timestamp     time.Time
	MimeEssence   string
	PreviewString string
}
