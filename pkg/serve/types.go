package serve

import (
	"encoding/json"

	"github.com/praetorian-inc/sift/pkg/engine"
	"github.com/praetorian-inc/sift/pkg/types"
)

// Request types accepted by the server.
const (
	TypeMatch         = "match"
	TypeCompile       = "compile"
	TypeMatchCompiled = "match_compiled"
	TypeRelease       = "release"
	TypeExtract       = "extract"
	TypeKeywords      = "keywords"
	TypeScore         = "score"
	TypeAnalyze       = "analyze"
	TypeAnalyzeBatch  = "analyze_batch"
	TypeClose         = "close"
)

// Request represents an incoming NDJSON request
type Request struct {
	Type    string          `json:"type"` // one of the Type constants
	Payload json.RawMessage `json:"payload"`
}

// ReleasePayload is the payload for "release" requests
type ReleasePayload struct {
	Handle engine.Handle `json:"handle"`
}

// AnalyzeBatchPayload is the payload for "analyze_batch" requests
type AnalyzeBatchPayload struct {
	Items   []engine.ContentItem `json:"items"`
	Profile string               `json:"profile,omitempty"`
}

// Response represents an outgoing NDJSON response
type Response struct {
	Success bool            `json:"success"`
	Type    string          `json:"type"` // the request type, "ready" or "decode"
	Data    json.RawMessage `json:"data,omitempty"`
	Error   string          `json:"error,omitempty"`
	// Kind classifies failures raised by the engine.
	Kind types.ErrorKind `json:"kind,omitempty"`
}

// ReadyData is the data field for "ready" responses
type ReadyData struct {
	Version  string `json:"version"`
	Patterns int    `json:"patterns"`
}

// ReleaseData is the data field for "release" responses
type ReleaseData struct {
	Handle engine.Handle `json:"handle"`
	Live   int           `json:"live"`
}
