package generator

import (
	"path/filepath"
	"regexp"
)

// includePattern matches the head of an include call up to and including the
// closing quote of its first argument: include('a/b') or include ("a/b").
// Either quote may open or close the path.
var includePattern = regexp.MustCompile(`include\s*\(['"]([\w/]+)['"]`)

// RewriteIncludes anchors the path argument of every include call in text at
// configDir so includes resolve the same way regardless of the working
// directory. Anything the pattern does not match is left as is.
func RewriteIncludes(text, configDir string) string {
	matches := includePattern.FindAllStringSubmatchIndex(text, -1)
	if len(matches) == 0 {
		return text
	}

	out := make([]byte, 0, len(text)+len(matches)*len(configDir))
	last := 0
	for _, m := range matches {
		start, end := m[2], m[3]

		out = append(out, text[last:start]...)
		out = append(out, filepath.Join(configDir, text[start:end])...)
		last = end
	}
	out = append(out, text[last:]...)

	return string(out)
}
