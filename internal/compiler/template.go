package compiler

import (
	"regexp"
	"strings"
)

var placeholder = regexp.MustCompile(`\$\{\s*([A-Za-z_][A-Za-z0-9_.-]*)\s*\}`)

// Split cuts a template source using ${name} placeholders into literal
// segments and placeholder names. len(segments) == len(names)+1.
func Split(src string) (segments, names []string) {
	last := 0
	for _, m := range placeholder.FindAllStringSubmatchIndex(src, -1) {
		segments = append(segments, src[last:m[0]])
		names = append(names, src[m[2]:m[3]])
		last = m[1]
	}
	segments = append(segments, src[last:])
	return segments, names
}

// CompileTemplate splits src and compiles it with the named values.
// A placeholder without a value is an error.
func (c *Compiler) CompileTemplate(src string, values map[string]any) (string, error) {
	segments, names := Split(src)
	exprs := make([]any, len(names))
	for i, name := range names {
		v, ok := lookup(values, name)
		if !ok {
			return "", &CompileError{Slot: i, Name: name, Message: "no value for placeholder"}
		}
		exprs[i] = v
	}
	return c.Compile(segments, exprs...)
}

// lookup resolves a dotted name through nested maps.
func lookup(values map[string]any, name string) (any, bool) {
	if v, ok := values[name]; ok {
		return v, true
	}
	head, rest, found := strings.Cut(name, ".")
	if !found {
		return nil, false
	}
	inner, ok := values[head].(map[string]any)
	if !ok {
		return nil, false
	}
	return lookup(inner, rest)
}
