package cfgparse

import "strings"

// Trim strips surrounding whitespace, including a trailing carriage return.
func Trim(line string) string {
	return strings.TrimSpace(line)
}

// Tokenize splits a line into whitespace-delimited tokens.
func Tokenize(line string) []string {
	return strings.Fields(line)
}

// lines splits text into raw lines. A final newline does not produce an
// extra empty line.
func lines(text string) []string {
	text = strings.TrimSuffix(text, "\n")
	if text == "" {
		return nil
	}
	return strings.Split(text, "\n")
}

// skippable reports whether a trimmed line is blank or a comment.
func skippable(line string) bool {
	return line == "" || line[0] == '#'
}
