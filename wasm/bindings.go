//go:build wasm

package main

import (
	"encoding/json"
	"sync"
	"syscall/js"

	"github.com/praetorian-inc/sift/pkg/engine"
	"github.com/praetorian-inc/sift/pkg/types"
)

var (
	sharedEngine    *engine.Engine
	sharedEngineErr error
	engineOnce      sync.Once
)

// getEngine creates the process-wide engine on first use.
func getEngine() (*engine.Engine, error) {
	engineOnce.Do(func() {
		sharedEngine, sharedEngineErr = engine.New(engine.Config{Logger: engine.NoopLogger{}})
	})
	return sharedEngine, sharedEngineErr
}

func errorResult(prefix string, err error) map[string]interface{} {
	res := map[string]interface{}{"error": prefix + err.Error()}
	if kind := types.KindOf(err); kind != "" {
		res["kind"] = string(kind)
	}
	return res
}

// call decodes the JSON request in args[0] into req, runs fn and returns
// its result as a JSON string.
func call(args []js.Value, req interface{}, fn func(e *engine.Engine) (interface{}, error)) interface{} {
	if len(args) < 1 {
		return map[string]interface{}{"error": "request JSON argument required"}
	}
	if err := json.Unmarshal([]byte(args[0].String()), req); err != nil {
		return map[string]interface{}{"error": "failed to parse request JSON: " + err.Error()}
	}

	e, err := getEngine()
	if err != nil {
		return errorResult("failed to create engine: ", err)
	}
	result, err := fn(e)
	if err != nil {
		return errorResult("", err)
	}

	jsonBytes, err := json.Marshal(result)
	if err != nil {
		return map[string]interface{}{"error": "failed to marshal results: " + err.Error()}
	}
	return string(jsonBytes)
}

// match compiles the request patterns and matches them once.
// JS: SiftMatch(requestJSON) -> JSON MatchResult or error
func match(this js.Value, args []js.Value) interface{} {
	var req engine.MatchRequest
	return call(args, &req, func(e *engine.Engine) (interface{}, error) { return e.MatchPatterns(req) })
}

// compile registers a compiled matcher.
// JS: SiftCompile(requestJSON) -> JSON {handle, patterns, diagnostics} or error
func compile(this js.Value, args []js.Value) interface{} {
	var req engine.CompileRequest
	return call(args, &req, func(e *engine.Engine) (interface{}, error) { return e.Compile(req) })
}

// matchCompiled matches a registered handle.
// JS: SiftMatchCompiled(requestJSON) -> JSON MatchResult or error
func matchCompiled(this js.Value, args []js.Value) interface{} {
	var req engine.MatchCompiledRequest
	return call(args, &req, func(e *engine.Engine) (interface{}, error) { return e.MatchCompiled(req) })
}

// release drops a compiled matcher.
// JS: SiftRelease(handle)
func release(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		return map[string]interface{}{"error": "handle argument required"}
	}
	e, err := getEngine()
	if err != nil {
		return errorResult("failed to create engine: ", err)
	}
	if err := e.Release(engine.Handle(args[0].Int())); err != nil {
		return errorResult("", err)
	}
	return nil
}

// extract runs entity extraction.
// JS: SiftExtract(requestJSON) -> JSON ExtractionResult or error
func extract(this js.Value, args []js.Value) interface{} {
	var req engine.ExtractRequest
	return call(args, &req, func(e *engine.Engine) (interface{}, error) { return e.ExtractEntities(req) })
}

// keywords lists the vocabulary words present in text.
// JS: SiftKeywords(requestJSON) -> JSON {keywords: [...]} or error
func keywords(this js.Value, args []js.Value) interface{} {
	var req engine.KeywordsRequest
	return call(args, &req, func(e *engine.Engine) (interface{}, error) { return e.ExtractKeywords(req) })
}

// score scores text against a profile or explicit criteria.
// JS: SiftScore(requestJSON) -> JSON ScoreResult or error
func score(this js.Value, args []js.Value) interface{} {
	var req engine.ScoreRequest
	return call(args, &req, func(e *engine.Engine) (interface{}, error) { return e.ScoreText(req) })
}

// analyze matches, extracts and scores with a profile.
// JS: SiftAnalyze(requestJSON) -> JSON Analysis or error
func analyze(this js.Value, args []js.Value) interface{} {
	var req engine.AnalyzeRequest
	return call(args, &req, func(e *engine.Engine) (interface{}, error) { return e.Analyze(req) })
}

// builtinPatterns returns the built-in pattern specs as JSON.
// JS: SiftBuiltinPatterns() -> JSON pattern array
func builtinPatterns(this js.Value, args []js.Value) interface{} {
	specs, err := engine.GetBuiltinPatterns()
	if err != nil {
		return errorResult("failed to load builtin patterns: ", err)
	}

	jsonBytes, err := json.Marshal(specs)
	if err != nil {
		return map[string]interface{}{"error": "failed to marshal patterns: " + err.Error()}
	}
	return string(jsonBytes)
}
