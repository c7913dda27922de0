package compiler

import "strings"

// element is a start tag whose element is still open.
type element struct {
	name  string
	start int // offset of '<'
	end   int // offset of the '>' closing the start tag
}

// context is where the end of the accumulated markup sits.
type context struct {
	// inTag is set while a tag is still open; tagStart is its '<'.
	inTag    bool
	closing  bool
	tagStart int
	tagName  string
	quote    byte

	// opaque covers comments, doctypes and raw text elements, where no
	// slot can be bound.
	opaque bool

	open []element
}

func (c *context) top() (element, bool) {
	if len(c.open) == 0 {
		return element{}, false
	}
	return c.open[len(c.open)-1], true
}

func (c *context) pop(name string) {
	for i := len(c.open) - 1; i >= 0; i-- {
		if c.open[i].name == name {
			c.open = c.open[:i]
			return
		}
	}
}

var voidElements = map[string]bool{
	"area": true, "base": true, "br": true, "col": true, "embed": true,
	"hr": true, "img": true, "input": true, "link": true, "meta": true,
	"source": true, "track": true, "wbr": true,
}

var rawTextElements = map[string]bool{
	"script": true, "style": true,
}

// scan walks s and reports the markup context at its end.
func scan(s string) context {
	var c context
	i := 0
	for i < len(s) {
		if s[i] != '<' {
			i++
			continue
		}
		rest := s[i:]
		switch {
		case strings.HasPrefix(rest, "<!--"):
			end := strings.Index(rest[4:], "-->")
			if end < 0 {
				c.opaque = true
				return c
			}
			i += 4 + end + 3

		case len(rest) > 1 && (rest[1] == '!' || rest[1] == '?'):
			end := strings.IndexByte(rest, '>')
			if end < 0 {
				c.opaque = true
				return c
			}
			i += end + 1

		case len(rest) > 2 && rest[1] == '/' && isNameStart(rest[2]):
			name := tagName(rest[2:])
			end := strings.IndexByte(rest, '>')
			if end < 0 {
				c.inTag, c.closing, c.tagStart, c.tagName = true, true, i, name
				return c
			}
			c.pop(name)
			i += end + 1

		case len(rest) > 1 && isNameStart(rest[1]):
			start := i
			name := tagName(rest[1:])
			end, quote := tagEnd(s, start+1+len(name))
			if end < 0 {
				c.inTag, c.tagStart, c.tagName, c.quote = true, start, name, quote
				return c
			}
			i = end + 1
			if voidElements[name] || s[end-1] == '/' {
				continue
			}
			if rawTextElements[name] {
				stop := strings.Index(strings.ToLower(s[i:]), "</"+name)
				if stop < 0 {
					c.opaque = true
					return c
				}
				i += stop
				continue
			}
			c.open = append(c.open, element{name: name, start: start, end: end})

		default:
			i++
		}
	}
	return c
}

// tagEnd finds the '>' closing the tag whose attributes start at from.
// It returns -1 and the open quote, if any, when the tag is unterminated.
func tagEnd(s string, from int) (int, byte) {
	var quote byte
	for j := from; j < len(s); j++ {
		switch ch := s[j]; {
		case quote != 0:
			if ch == quote {
				quote = 0
			}
		case ch == '"' || ch == '\'':
			quote = ch
		case ch == '>':
			return j, 0
		}
	}
	return -1, quote
}

func tagName(s string) string {
	n := 0
	for n < len(s) && isNameChar(s[n]) {
		n++
	}
	return strings.ToLower(s[:n])
}

func isNameStart(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z')
}

func isNameChar(b byte) bool {
	return isNameStart(b) || (b >= '0' && b <= '9') || b == '-' || b == ':'
}
