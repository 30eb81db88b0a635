//go:build wasm

package main

import (
	"syscall/js"
)

func main() {
	// Export functions to JavaScript
	js.Global().Set("SiftMatch", js.FuncOf(match))
	js.Global().Set("SiftCompile", js.FuncOf(compile))
	js.Global().Set("SiftMatchCompiled", js.FuncOf(matchCompiled))
	js.Global().Set("SiftRelease", js.FuncOf(release))
	js.Global().Set("SiftExtract", js.FuncOf(extract))
	js.Global().Set("SiftKeywords", js.FuncOf(keywords))
	js.Global().Set("SiftScore", js.FuncOf(score))
	js.Global().Set("SiftAnalyze", js.FuncOf(analyze))
	js.Global().Set("SiftBuiltinPatterns", js.FuncOf(builtinPatterns))

	// Keep WASM running
	<-make(chan struct{})
}
