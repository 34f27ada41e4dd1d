// Package filter implements the content filter: a pure predicate deciding
// whether a captured clipboard value is admissible, built from bounds on
// text length and image size, a denylist of text regexes, and a set of
// sensitive MIME markers a backend may attach to a change.
package filter

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/clipcatd/clipcat/internal/config"
	"github.com/clipcatd/clipcat/internal/types"
)

// Filter is a thread-safe, immutable admission predicate. Once built it has
// no mutable state, so a single instance may be shared across every listener
// goroutine.
type Filter struct {
	textMinLength   int
	textMaxLength   int
	imageMaxSize    int64
	captureImage    bool
	deniedRegexSet  *regexp.Regexp
	sensitiveAtoms  map[string]struct{}
}

// New compiles a Filter from a WatcherConfig. An empty DeniedTextRegexPatterns
// list yields a filter that never denies on pattern match.
func New(cfg config.WatcherConfig) (*Filter, error) {
	f := &Filter{
		textMinLength: cfg.FilterTextMinLength,
		textMaxLength: cfg.FilterTextMaxLength,
		imageMaxSize:  cfg.FilterImageMaxSize,
		captureImage:  cfg.CaptureImage,
	}

	if len(cfg.DeniedTextRegexPatterns) > 0 {
		combined := "(?:" + strings.Join(cfg.DeniedTextRegexPatterns, ")|(?:") + ")"
		re, err := regexp.Compile(combined)
		if err != nil {
			return nil, err
		}
		f.deniedRegexSet = re
	}

	if len(cfg.SensitiveMimeTypes) > 0 {
		f.sensitiveAtoms = make(map[string]struct{}, len(cfg.SensitiveMimeTypes))
		for _, atom := range cfg.SensitiveMimeTypes {
			f.sensitiveAtoms[atom] = struct{}{}
		}
	}

	return f, nil
}

// Admit reports whether content should be captured. sensitiveAtomsPresent
// carries the opaque marker strings the backend attached to this fetch, if
// any.
func (f *Filter) Admit(content types.Content, sensitiveAtomsPresent []string) bool {
	for _, atom := range sensitiveAtomsPresent {
		if _, denied := f.sensitiveAtoms[atom]; denied {
			return false
		}
	}

	switch content.Kind {
	case types.ContentText:
		return f.admitText(content.Text)
	case types.ContentImage:
		return f.admitImage(content.Image)
	default:
		return false
	}
}

func (f *Filter) admitText(text string) bool {
	count := utf8.RuneCountInString(text)
	if !(count > f.textMinLength && count <= f.textMaxLength) {
		return false
	}
	if f.deniedRegexSet != nil && f.deniedRegexSet.MatchString(text) {
		return false
	}
	return true
}

func (f *Filter) admitImage(img types.ImageData) bool {
	if !f.captureImage {
		return false
	}
	return int64(len(img.RGBA8)) <= f.imageMaxSize
}
