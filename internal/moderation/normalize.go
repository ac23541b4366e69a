// Package moderation implements the heuristic content-safety pipeline for
// community messages: text normalization, independent risk-signal detectors,
// decision aggregation, and the moderation event lifecycle built on top of
// the persisted event queue.
package moderation

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	zeroWidthChars = regexp.MustCompile("[\u200b\u200c\u200d\ufeff]")
	tagLikeChunks  = regexp.MustCompile(`<[^>]*>`)
	whitespaceRuns = regexp.MustCompile(`\s+`)
)

// Sanitize strips zero-width and format control characters, removes tag-like
// substrings, collapses whitespace runs to a single space, and trims. It is a
// pure, total function: any input yields a valid string.
func Sanitize(raw string) string {
	out := zeroWidthChars.ReplaceAllString(raw, "")
	out = tagLikeChunks.ReplaceAllString(out, "")
	out = whitespaceRuns.ReplaceAllString(out, " ")

	return strings.TrimSpace(out)
}

// Normalize applies Sanitize, lowercases, and removes combining diacritical
// marks via NFKD decomposition so accented look-alikes match the plain
// denylist terms.
func Normalize(raw string) string {
	out := strings.ToLower(Sanitize(raw))

	folded, _, err := transform.String(foldTransformer(), out)
	if err != nil {
		// Unicode folding never fails on valid UTF-8; fall back to the
		// lowercased form for anything pathological.
		return out
	}

	return folded
}

// foldTransformer builds the NFKD + strip-marks chain. A fresh chain per call
// avoids sharing transformer state between goroutines.
func foldTransformer() transform.Transformer {
	return transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
}
