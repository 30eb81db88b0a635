// Package textbuf provides the immutable, validated text view shared by the
// matcher, extractor and scorer.
//
// A Buffer decodes its input once. All offsets exposed by the engine are
// codepoint (rune) indices into Buffer.Runes; byte offsets are available
// through ByteOffset and RuneIndex for hosts that need them.
package textbuf

import (
	"fmt"
	"sort"
	"unicode/utf8"

	"github.com/praetorian-inc/sift/pkg/types"
)

// Buffer is a read-only UTF-8 text view with a precomputed rune index.
// A Buffer is safe for concurrent readers.
type Buffer struct {
	text    string
	runes   []rune
	offsets []int // byte offset of rune i; offsets[len(runes)] == len(text)
}

// New validates s and builds a Buffer.
// Invalid UTF-8 fails with a types.KindInvalidEncoding error carrying the
// byte offset of the first invalid sequence.
func New(s string) (*Buffer, error) {
	if off := firstInvalid(s); off >= 0 {
		return nil, &types.Error{
			Kind:    types.KindInvalidEncoding,
			Offset:  off,
			Message: "invalid UTF-8 sequence",
		}
	}

	n := utf8.RuneCountInString(s)
	b := &Buffer{
		text:    s,
		runes:   make([]rune, 0, n),
		offsets: make([]int, 0, n+1),
	}
	for i, r := range s {
		b.runes = append(b.runes, r)
		b.offsets = append(b.offsets, i)
	}
	b.offsets = append(b.offsets, len(s))
	return b, nil
}

// FromBytes validates and copies content into a Buffer.
func FromBytes(content []byte) (*Buffer, error) {
	return New(string(content))
}

// MustNew is like New but panics on invalid input. Intended for tests and
// package-level literals.
func MustNew(s string) *Buffer {
	b, err := New(s)
	if err != nil {
		panic(err)
	}
	return b
}

// firstInvalid returns the byte offset of the first invalid UTF-8 sequence, or -1.
func firstInvalid(s string) int {
	if utf8.ValidString(s) {
		return -1
	}
	for i := 0; i < len(s); {
		r, size := utf8.DecodeRuneInString(s[i:])
		if r == utf8.RuneError && size == 1 {
			return i
		}
		i += size
	}
	return -1
}

// String returns the underlying text.
func (b *Buffer) String() string {
	return b.text
}

// Runes returns the decoded codepoints. The slice is shared and must not be modified.
func (b *Buffer) Runes() []rune {
	return b.runes
}

// RuneLen returns the length in codepoints.
func (b *Buffer) RuneLen() int {
	return len(b.runes)
}

// ByteLen returns the length in bytes.
func (b *Buffer) ByteLen() int {
	return len(b.text)
}

// ByteOffset converts a codepoint index (0..RuneLen inclusive) to a byte offset.
func (b *Buffer) ByteOffset(runeIdx int) (int, error) {
	if runeIdx < 0 || runeIdx >= len(b.offsets) {
		return 0, fmt.Errorf("rune index %d out of range [0,%d]", runeIdx, len(b.runes))
	}
	return b.offsets[runeIdx], nil
}

// RuneIndex converts a byte offset on a codepoint boundary to a codepoint index.
func (b *Buffer) RuneIndex(byteOff int) (int, error) {
	if byteOff < 0 || byteOff > len(b.text) {
		return 0, fmt.Errorf("byte offset %d out of range [0,%d]", byteOff, len(b.text))
	}
	i := sort.SearchInts(b.offsets, byteOff)
	if b.offsets[i] != byteOff {
		return 0, fmt.Errorf("byte offset %d is not on a codepoint boundary", byteOff)
	}
	return i, nil
}

// ByteSpan converts a codepoint span into byte offsets.
func (b *Buffer) ByteSpan(span types.Span) (start, end int, err error) {
	if !span.Valid(len(b.runes)) {
		return 0, 0, fmt.Errorf("span %s out of range for %d runes", span, len(b.runes))
	}
	return b.offsets[span.Start], b.offsets[span.End], nil
}

// Slice returns the text covered by span without copying. An invalid span yields "".
func (b *Buffer) Slice(span types.Span) string {
	start, end, err := b.ByteSpan(span)
	if err != nil {
		return ""
	}
	return b.text[start:end]
}

// Locate resolves span to line/column positions.
func (b *Buffer) Locate(span types.Span) types.Location {
	return types.Locate(b.runes, span)
}
