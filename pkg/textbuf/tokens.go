package textbuf

import (
	"unicode"

	"github.com/praetorian-inc/sift/pkg/types"
)

// TokenKind classifies a word token.
type TokenKind int

const (
	TokenWord   TokenKind = iota // letters, with inner apostrophes or hyphens
	TokenNumber                  // digits only
	TokenMixed                   // letters and digits
)

// Token is a word-like run of codepoints.
type Token struct {
	Span types.Span
	Kind TokenKind
	// SentenceStart is set when the token is the first of a sentence.
	SentenceStart bool
}

// IsWordRune reports whether r can be part of a word token.
func IsWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.Is(unicode.Mn, r)
}

func isJoiner(r rune) bool {
	return r == '\'' || r == '’' || r == '-'
}

func isTerminal(r rune) bool {
	return r == '.' || r == '!' || r == '?' || r == '…'
}

// Tokens splits the buffer into word tokens. A joiner (apostrophe or hyphen)
// stays inside a token only when letters follow it, so "don't" and
// "co-parent" are single tokens. Sentence starts follow terminal punctuation
// or a blank line.
func (b *Buffer) Tokens() []Token {
	runes := b.runes
	tokens := make([]Token, 0, len(runes)/5+1)
	sentenceStart := true
	newlines := 0

	for i := 0; i < len(runes); {
		r := runes[i]
		if !IsWordRune(r) {
			switch {
			case isTerminal(r):
				sentenceStart = true
			case r == '\n':
				newlines++
				if newlines >= 2 {
					sentenceStart = true
				}
			case !unicode.IsSpace(r):
				newlines = 0
			}
			i++
			continue
		}

		start := i
		letters, digits := false, false
		for i < len(runes) {
			c := runes[i]
			if IsWordRune(c) {
				if unicode.IsDigit(c) {
					digits = true
				} else {
					letters = true
				}
				i++
				continue
			}
			if isJoiner(c) && i+1 < len(runes) && unicode.IsLetter(runes[i+1]) {
				i++
				continue
			}
			break
		}

		kind := TokenWord
		switch {
		case digits && letters:
			kind = TokenMixed
		case digits:
			kind = TokenNumber
		}
		tokens = append(tokens, Token{
			Span:          types.Span{Start: start, End: i},
			Kind:          kind,
			SentenceStart: sentenceStart,
		})
		sentenceStart = false
		newlines = 0
	}
	return tokens
}

// Stats summarizes the buffer for scoring.
type Stats struct {
	Runes     int `json:"runes"`
	Bytes     int `json:"bytes"`
	Words     int `json:"words"`
	Sentences int `json:"sentences"`
	Lines     int `json:"lines"`
	Letters   int `json:"letters"`
	Uppercase int `json:"uppercase"`
}

// UppercaseRatio returns the share of letters that are upper case.
func (s Stats) UppercaseRatio() float64 {
	if s.Letters == 0 {
		return 0
	}
	return float64(s.Uppercase) / float64(s.Letters)
}

// Stats computes summary counts over the buffer.
func (b *Buffer) Stats() Stats {
	s := Stats{Runes: len(b.runes), Bytes: len(b.text)}
	for _, r := range b.runes {
		if r == '\n' {
			s.Lines++
		}
		if unicode.IsLetter(r) {
			s.Letters++
			if unicode.IsUpper(r) {
				s.Uppercase++
			}
		}
	}
	if len(b.runes) > 0 && b.runes[len(b.runes)-1] != '\n' {
		s.Lines++
	}
	for _, t := range b.Tokens() {
		s.Words++
		if t.SentenceStart {
			s.Sentences++
		}
	}
	return s
}
