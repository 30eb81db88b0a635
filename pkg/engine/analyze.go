package engine

import (
	"maps"

	"github.com/praetorian-inc/sift/pkg/extract"
	"github.com/praetorian-inc/sift/pkg/score"
	"github.com/praetorian-inc/sift/pkg/textbuf"
	"github.com/praetorian-inc/sift/pkg/types"
)

// Analyze matches the profile's pattern set, extracts entities and scores
// the text with the profile. Extracted entities and matches are handed to
// the scorer so extraction runs once.
func (e *Engine) Analyze(req AnalyzeRequest) (*types.Analysis, error) {
	st, err := e.profileState(req.Profile)
	if err != nil {
		return nil, err
	}
	buf, err := textbuf.New(req.Text)
	if err != nil {
		return nil, err
	}

	mres, err := st.matcher.Match(buf, req.Options)
	if err != nil {
		return nil, err
	}
	eres, err := st.extractor.Extract(buf, extract.Options{})
	if err != nil {
		return nil, err
	}
	sres, err := st.scorer.Score(buf, score.Features{Matches: mres.Matches, Entities: eres.Entities})
	if err != nil {
		return nil, err
	}

	doc := types.ComputeDocumentID([]byte(req.Text))
	findings := make([]types.Finding, len(mres.Matches))
	for i, m := range mres.Matches {
		spec := st.patterns[m.Index]
		findings[i] = types.Finding{
			ID:       m.ComputeID(st.matcher.StructuralID(m.Index), doc),
			Match:    m,
			Location: buf.Locate(m.Span),
			Category: spec.Category,
			Severity: spec.Severity,
		}
	}

	var diags []types.Diagnostic
	diags = append(diags, mres.Diagnostics...)
	diags = append(diags, eres.Diagnostics...)

	return &types.Analysis{
		Source:      req.Source,
		DocumentID:  doc,
		Runes:       buf.RuneLen(),
		Profile:     st.name,
		Findings:    findings,
		Entities:    eres.Entities,
		Score:       sres,
		Truncated:   mres.Truncated || eres.Truncated,
		Diagnostics: diags,
		Metadata:    maps.Clone(req.Metadata),
	}, nil
}

// Prepare compiles the named profile so later analyses fail fast on an
// unknown or invalid profile.
func (e *Engine) Prepare(profile string) error {
	_, err := e.profileState(profile)
	return err
}

// AnalyzeBatch analyzes multiple content items with one profile.
// Items that fail are reported in Errors and skipped.
func (e *Engine) AnalyzeBatch(items []ContentItem, profile string) (*BatchAnalysis, error) {
	if err := e.Prepare(profile); err != nil {
		return nil, err
	}

	batch := &BatchAnalysis{}
	for _, item := range items {
		a, err := e.Analyze(AnalyzeRequest{Source: item.Source, Text: item.Content, Profile: profile, Metadata: item.Metadata})
		if err != nil {
			if batch.Errors == nil {
				batch.Errors = make(map[string]string)
			}
			batch.Errors[item.Source] = err.Error()
			continue
		}
		batch.Results = append(batch.Results, a)
		if a.Score.Detected {
			batch.Detected++
		}
	}
	return batch, nil
}
