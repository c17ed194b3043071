package analyzer

import (
	"bufio"
	"bytes"
	"strings"
)

// Import edge priorities. Top-level imports bind the importing module
// tightly to its dependency; imports inside function bodies are deferred
// and only matter for ordering, not for cycle membership weight.
const (
	PriorityTopLevel = 5
	PriorityLocal    = 20
)

// importRef is one raw import statement found in a source file, before
// relative-import resolution.
type importRef struct {
	// target is the dotted module text after the keyword, empty for a
	// bare relative import ("from . import x").
	target string

	// dots counts leading dots of a relative import; zero for absolute.
	dots int

	// names lists the imported names of a "from" statement; each may be
	// a submodule of target rather than an attribute.
	names []string

	// line is the 1-based source line of the statement.
	line int

	// indented marks imports nested inside a block.
	indented bool
}

// scanImports extracts import statements line by line. This is a
// surface scan, not a parse: it does not follow continuation lines or
// parenthesized import lists beyond their first line, which is enough
// for dependency discovery.
func scanImports(src []byte) []importRef {
	var refs []importRef

	scanner := bufio.NewScanner(bytes.NewReader(src))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		raw := scanner.Text()
		line := strings.TrimSpace(raw)
		indented := len(raw) > 0 && (raw[0] == ' ' || raw[0] == '\t')

		switch {
		case strings.HasPrefix(line, "import "):
			for _, part := range strings.Split(line[len("import "):], ",") {
				name := importName(part)
				if name == "" {
					continue
				}
				refs = append(refs, importRef{target: name, line: lineNo, indented: indented})
			}
		case strings.HasPrefix(line, "from "):
			rest := line[len("from "):]
			end := strings.Index(rest, " import ")
			if end < 0 {
				continue
			}
			source := strings.TrimSpace(rest[:end])
			dots := 0
			for dots < len(source) && source[dots] == '.' {
				dots++
			}
			refs = append(refs, importRef{
				target:   source[dots:],
				dots:     dots,
				names:    importedNames(rest[end+len(" import "):]),
				line:     lineNo,
				indented: indented,
			})
		}
	}
	return refs
}

// importedNames parses the name list of a "from X import ..." statement.
// Dotted names and "*" are dropped: neither can name a direct submodule.
func importedNames(list string) []string {
	list = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(list), "("))
	if i := strings.Index(list, ")"); i >= 0 {
		list = list[:i]
	}
	var names []string
	for _, part := range strings.Split(list, ",") {
		name := importName(part)
		if name == "" || strings.Contains(name, ".") {
			continue
		}
		names = append(names, name)
	}
	return names
}

// importName strips an "as" alias and trailing comments from one
// comma-separated import clause.
func importName(clause string) string {
	name := strings.TrimSpace(clause)
	if i := strings.Index(name, "#"); i >= 0 {
		name = strings.TrimSpace(name[:i])
	}
	if i := strings.Index(name, " as "); i >= 0 {
		name = strings.TrimSpace(name[:i])
	}
	if name == "" || !validModuleName(name) {
		return ""
	}
	return name
}

func validModuleName(name string) bool {
	for _, part := range strings.Split(name, ".") {
		if part == "" {
			return false
		}
		for i, r := range part {
			switch {
			case r == '_', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
			case r >= '0' && r <= '9':
				if i == 0 {
					return false
				}
			default:
				return false
			}
		}
	}
	return true
}
