package rpc

import (
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/clipcatd/clipcat/internal/types"
	"github.com/clipcatd/clipcat/pkg/preview"
)

// previewCacheEntry pairs a computed preview string with the digest it was
// computed from, so a cache hit can be invalidated if the entry underneath
// an id was ever replaced (same id, different content never actually
// happens today, since ids are content-derived, but update/mark can move an
// id's timestamp and kind without touching content — the digest check
// guards against a future change in that invariant).
type previewCacheEntry struct {
	digest  string
	maxLen  int
	preview string
}

// previewCache memoizes pkg/preview.Build results keyed by entry id, since a
// `list` call over a large, mostly-unchanged history otherwise re-escapes
// and re-truncates every entry's text on every poll.
type previewCache struct {
	cache *lru.Cache[uint64, previewCacheEntry]
}

func newPreviewCache(size int) *previewCache {
	c, _ := lru.New[uint64, previewCacheEntry](size)
	return &previewCache{cache: c}
}

func (p *previewCache) build(e types.ClipEntry, maxLen int) string {
	if cached, ok := p.cache.Get(e.ID); ok && cached.digest == e.Sha256Digest && cached.maxLen == maxLen {
		return cached.preview
	}
	s := preview.Build(e, maxLen)
	p.cache.Add(e.ID, previewCacheEntry{digest: e.Sha256Digest, maxLen: maxLen, preview: s})
	return s
}
