package matcher

// ExtractContext extracts N lines before and after a match.
// Offsets are codepoint indices into runes. The returned strings are copies,
// so storing them will not pin the decoded buffer in memory.
// Handles text boundaries gracefully (returns empty if at start/end).
// Context starts immediately before the start offset and ends immediately after the end offset.
// The matched text itself (between start and end) is not duplicated in the context.
func ExtractContext(runes []rune, start, end int, lines int) (before, after string) {
	if lines <= 0 {
		return "", ""
	}
	if start < 0 || start > len(runes) {
		return "", ""
	}
	if end < 0 || end > len(runes) {
		return "", ""
	}
	if start > end {
		return "", ""
	}

	return string(extractBefore(runes, start, lines)), string(extractAfter(runes, end, lines))
}

// extractBefore finds N lines before the start offset.
// Walks backward from start, counting newlines.
func extractBefore(runes []rune, start, lines int) []rune {
	if start == 0 {
		return nil
	}

	pos := start - 1
	linesFound := 0

	for pos >= 0 {
		if runes[pos] == '\n' {
			linesFound++
			if linesFound == lines {
				// Continue backward to find where the Nth line starts.
				for pos > 0 {
					pos--
					if runes[pos] == '\n' {
						return runes[pos+1 : start]
					}
				}
				return runes[0:start]
			}
		}
		pos--
	}

	// Reached the start of the text before finding N lines.
	return runes[0:start]
}

// extractAfter finds N lines after the end offset.
// Walks forward from end, counting newlines.
func extractAfter(runes []rune, end, lines int) []rune {
	if end >= len(runes) {
		return nil
	}

	// If end points to a newline, skip it (it's part of the match line)
	start := end
	if runes[end] == '\n' {
		start = end + 1
		if start >= len(runes) {
			return nil
		}
	}

	pos := start
	linesFound := 0

	for pos < len(runes) {
		if runes[pos] == '\n' {
			linesFound++
			if linesFound == lines {
				return runes[start : pos+1]
			}
		}
		pos++
	}

	return runes[start:]
}
