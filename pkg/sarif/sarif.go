package sarif

import (
	"encoding/json"
	"path/filepath"
	"strings"

	"github.com/praetorian-inc/sift/pkg/rule"
	"github.com/praetorian-inc/sift/pkg/types"
)

// SARIF 2.1.0 constants
const (
	SchemaURI   = "https://raw.githubusercontent.com/oasis-tcs/sarif-spec/master/Schemata/sarif-schema-2.1.0.json"
	Version     = "2.1.0"
	ToolName    = "sift"
	ToolVersion = "0.1.0"
)

// Report is the top-level SARIF report structure
type Report struct {
	Schema  string `json:"$schema"`
	Version string `json:"version"`
	Runs    []Run  `json:"runs"`
}

// Run represents a single invocation of the tool
type Run struct {
	Tool    Tool     `json:"tool"`
	Results []Result `json:"results"`
}

// Tool describes the analysis tool
type Tool struct {
	Driver Driver `json:"driver"`
}

// Driver contains tool metadata
type Driver struct {
	Name    string `json:"name"`
	Version string `json:"version"`
	Rules   []Rule `json:"rules,omitempty"`
}

// Rule represents a detection rule
type Rule struct {
	ID               string           `json:"id"`
	Name             string           `json:"name"`
	ShortDescription ShortDescription `json:"shortDescription"`
	HelpURI          string           `json:"helpUri,omitempty"`
}

// ShortDescription contains rule description text
type ShortDescription struct {
	Text string `json:"text"`
}

// Result represents a single finding
type Result struct {
	RuleID     string                 `json:"ruleId"`
	Level      string                 `json:"level"`
	Message    Message                `json:"message"`
	Locations  []Location             `json:"locations"`
	Properties map[string]interface{} `json:"properties,omitempty"`
}

// Message contains the result message
type Message struct {
	Text string `json:"text"`
}

// Location describes where a result was found
type Location struct {
	PhysicalLocation PhysicalLocation `json:"physicalLocation"`
}

// PhysicalLocation specifies file location
type PhysicalLocation struct {
	ArtifactLocation ArtifactLocation `json:"artifactLocation"`
	Region           Region           `json:"region"`
}

// ArtifactLocation identifies the file
type ArtifactLocation struct {
	URI string `json:"uri"`
}

// Region specifies the line/column range. Character offsets count
// Unicode code points, matching the engine's offsets.
type Region struct {
	StartLine   int      `json:"startLine"`
	StartColumn int      `json:"startColumn"`
	EndLine     int      `json:"endLine"`
	EndColumn   int      `json:"endColumn"`
	CharOffset  int      `json:"charOffset"`
	CharLength  int      `json:"charLength"`
	Snippet     *Snippet `json:"snippet,omitempty"`
}

// Snippet contains the matched text
type Snippet struct {
	Text string `json:"text"`
}

// NewReport creates a new SARIF report with initialized structure
func NewReport() *Report {
	return &Report{
		Schema:  SchemaURI,
		Version: Version,
		Runs: []Run{
			{
				Tool: Tool{
					Driver: Driver{
						Name:    ToolName,
						Version: ToolVersion,
						Rules:   []Rule{},
					},
				},
				Results: []Result{},
			},
		},
	}
}

// AddRule adds a catalog pattern as a detection rule
func (r *Report) AddRule(p *rule.Pattern) {
	sarifRule := Rule{
		ID:   p.Spec.Label,
		Name: p.Spec.Category,
		ShortDescription: ShortDescription{
			Text: p.Spec.Description,
		},
	}

	// Add first reference as helpUri if available
	if len(p.References) > 0 {
		sarifRule.HelpURI = p.References[0]
	}

	r.Runs[0].Tool.Driver.Rules = append(r.Runs[0].Tool.Driver.Rules, sarifRule)
}

// AddAnalysis adds every finding of an analysis, located at its source.
func (r *Report) AddAnalysis(a *types.Analysis) {
	for i := range a.Findings {
		r.AddFinding(&a.Findings[i], a)
	}
}

// AddFinding adds a finding result to the report
func (r *Report) AddFinding(f *types.Finding, a *types.Analysis) {
	// Convert file path to URI format
	uri := formatFileURI(a.Source)

	// Create region with line/column information
	region := Region{
		StartLine:   f.Location.Source.Start.Line,
		StartColumn: f.Location.Source.Start.Column,
		EndLine:     f.Location.Source.End.Line,
		EndColumn:   f.Location.Source.End.Column,
		CharOffset:  f.Location.Offset.Start,
		CharLength:  f.Location.Offset.Len(),
	}

	// Add snippet if available
	if f.Match.Text != "" {
		region.Snippet = &Snippet{Text: f.Match.Text}
	}

	props := map[string]interface{}{
		"findingId":  f.ID,
		"documentId": a.DocumentID.Hex(),
		"profile":    a.Profile,
	}
	if f.Category != "" {
		props["category"] = f.Category
	}
	if a.Score != nil {
		props["score"] = a.Score.Total
		props["detected"] = a.Score.Detected
	}
	if len(a.Metadata) > 0 {
		props["metadata"] = a.Metadata
	}

	result := Result{
		RuleID: f.Match.Label,
		Level:  Level(f.Severity),
		Message: Message{
			Text: message(f),
		},
		Locations: []Location{
			{
				PhysicalLocation: PhysicalLocation{
					ArtifactLocation: ArtifactLocation{
						URI: uri,
					},
					Region: region,
				},
			},
		},
		Properties: props,
	}

	r.Runs[0].Results = append(r.Runs[0].Results, result)
}

// Level maps a pattern severity to a SARIF level.
func Level(severity string) string {
	switch strings.ToLower(severity) {
	case "high", "critical":
		return "error"
	case "low", "info":
		return "note"
	default:
		return "warning"
	}
}

func message(f *types.Finding) string {
	if f.Category == "" {
		return f.Match.Label
	}
	return strings.ReplaceAll(f.Category, "_", " ") + ": " + f.Match.Text
}

// ToJSON serializes the report to JSON bytes
func (r *Report) ToJSON() ([]byte, error) {
	return json.MarshalIndent(r, "", "  ")
}

// formatFileURI converts a file path to SARIF URI format
// Absolute paths get file:// prefix, relative paths stay as-is
func formatFileURI(path string) string {
	if filepath.IsAbs(path) {
		// Normalize path separators for URI format
		path = filepath.ToSlash(path)
		// Ensure path starts with /
		if !strings.HasPrefix(path, "/") {
			path = "/" + path
		}
		return "file://" + path
	}
	// Relative paths stay as-is
	return filepath.ToSlash(path)
}
