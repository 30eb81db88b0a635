// Package serve runs the engine as an NDJSON request/response loop,
// typically over stdin and stdout.
package serve

import (
	"bufio"
	"context"
	"encoding/json"
	"io"

	"github.com/praetorian-inc/sift/pkg/engine"
	"github.com/praetorian-inc/sift/pkg/types"
)

// Version is the server protocol version
const Version = "1.0.0"

// Server manages the streaming engine
type Server struct {
	engine  *engine.Engine
	encoder *json.Encoder
	decoder *json.Decoder
}

// NewServer creates a new streaming server
func NewServer(e *engine.Engine, in io.Reader, out io.Writer) *Server {
	return &Server{
		engine:  e,
		encoder: json.NewEncoder(out),
		decoder: json.NewDecoder(bufio.NewReader(in)),
	}
}

// Run starts the server main loop
func (s *Server) Run(ctx context.Context) error {
	// Send ready signal
	s.sendReady()

	// Use buffered channels for incoming requests
	reqChan := make(chan Request, 1)
	errChan := make(chan error, 1)

	go func() {
		for {
			var req Request
			if err := s.decoder.Decode(&req); err != nil {
				errChan <- err
				return
			}
			select {
			case reqChan <- req:
			case <-ctx.Done():
				return
			}
		}
	}()

	// Process requests until stdin closes or context cancels
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-errChan:
			// Drain any pending requests before handling EOF
			for {
				select {
				case req := <-reqChan:
					if s.processRequest(req) {
						return nil
					}
				default:
					// No more pending requests
					if err == io.EOF {
						return nil
					}
					s.sendError("decode", err)
					return nil
				}
			}
		case req := <-reqChan:
			if s.processRequest(req) {
				return nil
			}
		}
	}
}

// processRequest handles a single request and returns true if the server should exit
func (s *Server) processRequest(req Request) bool {
	switch req.Type {
	case TypeMatch:
		var p engine.MatchRequest
		s.dispatch(req, &p, func() (interface{}, error) { return s.engine.MatchPatterns(p) })
	case TypeCompile:
		var p engine.CompileRequest
		s.dispatch(req, &p, func() (interface{}, error) { return s.engine.Compile(p) })
	case TypeMatchCompiled:
		var p engine.MatchCompiledRequest
		s.dispatch(req, &p, func() (interface{}, error) { return s.engine.MatchCompiled(p) })
	case TypeRelease:
		var p ReleasePayload
		s.dispatch(req, &p, func() (interface{}, error) {
			if err := s.engine.Release(p.Handle); err != nil {
				return nil, err
			}
			return ReleaseData{Handle: p.Handle, Live: s.engine.Handles()}, nil
		})
	case TypeExtract:
		var p engine.ExtractRequest
		s.dispatch(req, &p, func() (interface{}, error) { return s.engine.ExtractEntities(p) })
	case TypeKeywords:
		var p engine.KeywordsRequest
		s.dispatch(req, &p, func() (interface{}, error) { return s.engine.ExtractKeywords(p) })
	case TypeScore:
		var p engine.ScoreRequest
		s.dispatch(req, &p, func() (interface{}, error) { return s.engine.ScoreText(p) })
	case TypeAnalyze:
		var p engine.AnalyzeRequest
		s.dispatch(req, &p, func() (interface{}, error) { return s.engine.Analyze(p) })
	case TypeAnalyzeBatch:
		var p AnalyzeBatchPayload
		s.dispatch(req, &p, func() (interface{}, error) { return s.engine.AnalyzeBatch(p.Items, p.Profile) })
	case TypeClose:
		return true
	default:
		s.sendError("unknown", types.NewError(types.KindInvalidConfiguration, "", "unknown request type: %s", req.Type))
	}
	return false
}

// dispatch decodes the payload into p, runs fn and writes its result.
func (s *Server) dispatch(req Request, p interface{}, fn func() (interface{}, error)) {
	if len(req.Payload) > 0 {
		if err := json.Unmarshal(req.Payload, p); err != nil {
			s.sendError(req.Type, err)
			return
		}
	}

	result, err := fn()
	if err != nil {
		s.sendError(req.Type, err)
		return
	}

	data, err := json.Marshal(result)
	if err != nil {
		s.sendError(req.Type, err)
		return
	}
	s.encoder.Encode(Response{
		Success: true,
		Type:    req.Type,
		Data:    data,
	})
}

func (s *Server) sendReady() {
	ready := ReadyData{Version: Version}
	if cat := s.engine.Catalog(); cat != nil {
		ready.Patterns = len(cat.Patterns)
	}
	data, _ := json.Marshal(ready)
	s.encoder.Encode(Response{
		Success: true,
		Type:    "ready",
		Data:    data,
	})
}

func (s *Server) sendError(reqType string, err error) {
	s.encoder.Encode(Response{
		Success: false,
		Type:    reqType,
		Error:   err.Error(),
		Kind:    types.KindOf(err),
	})
}
