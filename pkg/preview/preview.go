// Package preview synthesizes the short, single-line preview string the RPC
// surface attaches to each ClipEntryMetadata, truncating and escaping raw
// clipboard content into something safe to print in a list view.
package preview

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/clipcatd/clipcat/internal/types"
)

// Build returns the preview string for a ClipEntry, truncated to at most
// maxLen runes (any "..." or "...(N lines)" suffix included), with a
// "...(N lines)" suffix when the source text spans more than one line, and
// \n\r\t escaped as literal two-character sequences.
func Build(entry types.ClipEntry, maxLen int) string {
	switch entry.Content.Kind {
	case types.ContentText:
		return buildTextPreview(entry.Content.Text, maxLen)
	case types.ContentImage:
		return buildNonTextPreview(entry, maxLen)
	default:
		return buildNonTextPreview(entry, maxLen)
	}
}

func buildTextPreview(text string, maxLen int) string {
	lineCount := strings.Count(text, "\n") + 1
	escaped := escape(text)

	truncated, wasTruncated := truncateRunes(escaped, maxLen)
	if lineCount > 1 {
		suffix := fmt.Sprintf("...(%d lines)", lineCount)
		truncated, _ = truncateRunes(truncated, maxLen-utf8.RuneCountInString(suffix))
		return truncated + suffix
	}
	if wasTruncated {
		truncated, _ = truncateRunes(escaped, maxLen-len("..."))
		return truncated + "..."
	}
	return truncated
}

func buildNonTextPreview(entry types.ClipEntry, maxLen int) string {
	synthesized := fmt.Sprintf("[%s %d %s]", entry.Content.MimeEssence(), entry.Content.Size(), entry.Timestamp.Format("2006-01-02 15:04:05"))
	truncated, wasTruncated := truncateRunes(synthesized, maxLen)
	if wasTruncated {
		truncated, _ = truncateRunes(synthesized, maxLen-len("..."))
		return truncated + "..."
	}
	return truncated
}

func escape(s string) string {
	r := strings.NewReplacer("\n", `\n`, "\r", `\r`, "\t", `\t`)
	return r.Replace(s)
}

func truncateRunes(s string, maxLen int) (string, bool) {
	if maxLen <= 0 {
		return "", len(s) > 0
	}
	if utf8.RuneCountInString(s) <= maxLen {
		return s, false
	}
	runes := []rune(s)
	return string(runes[:maxLen]), true
}
