package rule

import "embed"

// builtinFS embeds the built-in catalog: signal patterns, pattern sets,
// scoring profiles, relationship vocabulary and keyword vocabulary.
//
//go:embed catalog/patterns/*.yml catalog/sets/*.yml catalog/profiles/*.yml catalog/relationships.yml catalog/keywords.yml
var builtinFS embed.FS
