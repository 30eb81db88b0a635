package types

// ComputeLineColumn computes line and column numbers from a codepoint offset.
// Lines and columns are 1-indexed (first line is 1, first column is 1).
func ComputeLineColumn(runes []rune, offset int) (line, column int) {
	line = 1
	column = 1
	for i := 0; i < offset && i < len(runes); i++ {
		if runes[i] == '\n' {
			line++
			column = 1
		} else {
			column++
		}
	}
	return line, column
}
