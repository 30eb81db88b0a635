package extract

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"

	"github.com/praetorian-inc/sift/pkg/matcher"
	"github.com/praetorian-inc/sift/pkg/textbuf"
	"github.com/praetorian-inc/sift/pkg/types"
)

type dictEntry struct {
	dict       string
	entityType types.EntityType
}

// dictionaryRecognizer looks up known surface forms with one literal matcher.
type dictionaryRecognizer struct {
	compiled *matcher.Compiled
	entries  []dictEntry // by pattern registration index
}

// entryForms returns the distinct surface forms registered for an entry:
// the entry as written (trimmed), its whitespace-collapsed NFC form and the
// NFD of that form. The first form is empty for a blank entry.
func entryForms(s string) []string {
	raw := strings.TrimSpace(s)
	if raw == "" {
		return nil
	}
	canonical := strings.Join(strings.Fields(raw), " ")
	forms := []string{raw}
	for _, f := range []string{norm.NFC.String(canonical), norm.NFD.String(canonical)} {
		dup := false
		for _, g := range forms {
			if g == f {
				dup = true
				break
			}
		}
		if !dup {
			forms = append(forms, f)
		}
	}
	return forms
}

func newDictionaryRecognizer(dicts []Dictionary) (*dictionaryRecognizer, []types.Diagnostic, error) {
	r := &dictionaryRecognizer{}
	var (
		specs []types.PatternSpec
		diags []types.Diagnostic
	)

	for i, d := range dicts {
		name := d.Name
		if name == "" {
			name = fmt.Sprintf("dictionary-%d", i)
		}
		seen := make(map[string]bool, len(d.Entries))
		for j, raw := range d.Entries {
			if !utf8.ValidString(raw) {
				diags = append(diags, types.Diagnostic{
					Kind:    types.KindInvalidConfiguration,
					Label:   name,
					Stage:   types.StageDictionary.String(),
					Message: fmt.Sprintf("entry %d is not valid UTF-8; skipped", j),
				})
				continue
			}
			forms := entryForms(raw)
			if len(forms) == 0 {
				diags = append(diags, types.Diagnostic{
					Kind:    types.KindInvalidConfiguration,
					Label:   name,
					Stage:   types.StageDictionary.String(),
					Message: fmt.Sprintf("entry %d is blank; skipped", j),
				})
				continue
			}
			for k, entry := range forms {
				key := entry
				if !d.CaseSensitive {
					key = strings.ToLower(entry)
				}
				if seen[key] {
					continue
				}
				seen[key] = true

				label := fmt.Sprintf("%s/%d", name, j)
				if k > 0 {
					label = fmt.Sprintf("%s/%d.%d", name, j, k)
				}
				spec := types.Literal(label, entry)
				spec.EntityType = d.Type
				if !d.CaseSensitive {
					spec = spec.IgnoreCase()
				}
				specs = append(specs, spec)
				r.entries = append(r.entries, dictEntry{dict: name, entityType: d.Type})
			}
		}
	}

	compiled, err := matcher.Compile(specs, matcher.CompileOptions{Strict: true})
	if err != nil {
		return nil, nil, err
	}
	r.compiled = compiled
	return r, diags, nil
}

// recognize returns dictionary hits that sit on whole-token boundaries.
func (r *dictionaryRecognizer) recognize(buf *textbuf.Buffer, opts matcher.Options, emit func(candidate)) (bool, error) {
	if r.compiled.Len() == 0 {
		return false, nil
	}
	res, err := r.compiled.Match(buf, opts)
	if err != nil {
		return false, err
	}
	runes := buf.Runes()
	for _, m := range res.Matches {
		if !onTokenBoundary(runes, m.Span) {
			continue
		}
		e := r.entries[m.Index]
		emit(candidate{
			entityType: e.entityType,
			span:       m.Span,
			stage:      types.StageDictionary,
			confidence: 1,
			source:     e.dict,
		})
	}
	return res.Truncated, nil
}

// onTokenBoundary reports whether span neither starts nor ends inside a word.
func onTokenBoundary(runes []rune, span types.Span) bool {
	if span.Start > 0 && textbuf.IsWordRune(runes[span.Start-1]) && textbuf.IsWordRune(runes[span.Start]) {
		return false
	}
	if span.End < len(runes) && textbuf.IsWordRune(runes[span.End]) && textbuf.IsWordRune(runes[span.End-1]) {
		return false
	}
	return true
}
