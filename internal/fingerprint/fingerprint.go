// Package fingerprint derives the deterministic identity tiers used by
// collectable deduplication. All functions are pure: equivalent inputs after
// case/whitespace/punctuation normalization always produce the same value, so
// trivial OCR noise ("The Hobbit" vs "THE HOBBIT.") collapses to one
// fingerprint.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash/fnv"
	"sort"
	"strconv"
	"strings"
	"unicode"
)

// Normalize lowercases s, replaces punctuation and symbols with spaces and
// collapses runs of whitespace. The result is the canonical form all
// fingerprint tiers and similarity scoring operate on.
func Normalize(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range strings.ToLower(s) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
		default:
			b.WriteRune(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// Exact returns the exact-tier fingerprint over title, primary creator,
// release year and kind. ok is false when the normalized title is empty;
// callers must then fall back to the fuzzy path.
func Exact(title, primaryCreator string, year int, kind string) (string, bool) {
	t := Normalize(title)
	if t == "" {
		return "", false
	}
	key := t + "|" + Normalize(primaryCreator) + "|" + strconv.Itoa(year) + "|" + Normalize(kind)
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:]), true
}

// Light returns the lightweight-tier fingerprint over title and kind only.
// It is cheap, non-unique and serves as a pre-filter ahead of exact lookup.
func Light(title, kind string) string {
	h := fnv.New64a()
	_, _ = h.Write([]byte(Normalize(title) + "|" + Normalize(kind)))
	return fmt.Sprintf("%016x", h.Sum64())
}

// Fuzzy returns the fuzzy-tier fingerprint: token-sorted normal form of title
// and creator, so word reordering from OCR still collides. A collectable
// accumulates every distinct fuzzy fingerprint observed for it over time.
func Fuzzy(title, primaryCreator string) string {
	tokens := strings.Fields(Normalize(title) + " " + Normalize(primaryCreator))
	sort.Strings(tokens)
	h := fnv.New64a()
	_, _ = h.Write([]byte(strings.Join(tokens, " ")))
	return fmt.Sprintf("%016x", h.Sum64())
}
