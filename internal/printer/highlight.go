package printer

import (
	"bytes"
	"encoding/json"
	"io"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/dropzy/dropzy/internal/core/styles"
)

// IsTerminal reports whether w is a terminal.
func IsTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// HighlightJSON indents data and colors keys, strings, numbers and
// literals with the active theme. Invalid JSON is returned unchanged.
func HighlightJSON(data []byte) string {
	var indented bytes.Buffer
	if err := json.Indent(&indented, data, "", "  "); err != nil {
		return string(data)
	}

	src := indented.String()
	var out strings.Builder
	out.Grow(len(src) * 2)

	for pos := 0; pos < len(src); {
		c := src[pos]
		switch {
		case c == '"':
			end := closingQuote(src, pos)
			tok := src[pos:end]
			if strings.HasPrefix(strings.TrimLeft(src[end:], " "), ":") {
				out.WriteString(styles.JSONKeyStyle.Render(tok))
			} else {
				out.WriteString(styles.TextSuccessStyle.Render(tok))
			}
			pos = end
		case c == '-' || (c >= '0' && c <= '9'):
			end := pos + 1
			for end < len(src) && strings.IndexByte("0123456789.eE+-", src[end]) >= 0 {
				end++
			}
			out.WriteString(styles.TextWarningStyle.Render(src[pos:end]))
			pos = end
		case c == 't' || c == 'f' || c == 'n':
			lit := literalAt(src, pos)
			if lit == "" {
				out.WriteByte(c)
				pos++
				continue
			}
			style := styles.JSONLiteralStyle
			if lit == "null" {
				style = styles.TextMutedStyle
			}
			out.WriteString(style.Render(lit))
			pos += len(lit)
		case c == ':' || c == ',':
			out.WriteString(styles.TextMutedStyle.Render(string(c)))
			pos++
		default:
			out.WriteByte(c)
			pos++
		}
	}
	return out.String()
}

// closingQuote returns the index just past the string starting at start.
func closingQuote(s string, start int) int {
	for i := start + 1; i < len(s); i++ {
		switch s[i] {
		case '\\':
			i++
		case '"':
			return i + 1
		}
	}
	return len(s)
}

func literalAt(s string, pos int) string {
	for _, lit := range []string{"true", "false", "null"} {
		if strings.HasPrefix(s[pos:], lit) {
			return lit
		}
	}
	return ""
}
