// Package comment turns raw Terraform comment runs into documentation text.
//
// A run is a sequence of source lines sharing one comment style: "#" or
// "//" line comments, or a single "/* ... */" block. Normalization strips
// the markers, dedents to the indentation of the first non-empty line and
// keeps deeper indentation relative to it.
package comment

import (
	"fmt"
	"strings"

	"tfdoc/internal/errors"
)

// Style is the comment marker family of a run.
type Style int

const (
	// StyleNone marks plain text lines without comment markers.
	StyleNone Style = iota
	// StyleHash is "# ..." line comments.
	StyleHash
	// StyleSlash is "// ..." line comments.
	StyleSlash
	// StyleBlock is a "/* ... */" block comment.
	StyleBlock
)

func (s Style) String() string {
	switch s {
	case StyleHash:
		return "#"
	case StyleSlash:
		return "//"
	case StyleBlock:
		return "/*"
	default:
		return "none"
	}
}

// StyleOf reports the style of a raw comment line or token text.
func StyleOf(raw string) Style {
	t := strings.TrimLeft(raw, " \t")
	switch {
	case strings.HasPrefix(t, "#"):
		return StyleHash
	case strings.HasPrefix(t, "//"):
		return StyleSlash
	case strings.HasPrefix(t, "/*"):
		return StyleBlock
	default:
		return StyleNone
	}
}

// Result is a normalized comment run.
type Result struct {
	// Text is the documentation string, empty for an empty run.
	Text string
	// Truncated is set when a line shallower than the base indentation
	// ended the usable run.
	Truncated bool
	// TruncatedAt is the zero-based index, within the input lines, of the
	// line that ended the run. Only meaningful when Truncated is set.
	TruncatedAt int
}

// Warning returns the recoverable indentation error for a truncated run,
// or nil.
func (r Result) Warning() *errors.TfdocError {
	if !r.Truncated {
		return nil
	}
	return errors.New(errors.CommentIndentation,
		fmt.Sprintf("comment line %d is indented less than the first line; documentation truncated", r.TruncatedAt+1), nil).
		WithDetails(map[string]interface{}{"line": r.TruncatedAt})
}

// Normalize strips markers from a run of raw comment lines and dedents it.
// The style is detected from the first non-blank line.
func Normalize(lines []string) Result {
	style := StyleNone
	for _, l := range lines {
		if strings.TrimSpace(l) != "" {
			style = StyleOf(l)
			break
		}
	}
	return NormalizeStyle(style, lines)
}

// NormalizeStyle is Normalize with an explicit style.
func NormalizeStyle(style Style, lines []string) Result {
	content, skipBase := stripMarkers(style, lines)
	text, truncatedAt := dedent(content, skipBase)

	res := Result{Text: text, TruncatedAt: -1}
	if truncatedAt >= 0 {
		res.Truncated = true
		res.TruncatedAt = truncatedAt
	}
	return res
}

// Dedent normalizes plain text lines. It is idempotent, and the output of
// Normalize is a fixed point of it.
func Dedent(text string) string {
	return NormalizeStyle(StyleNone, strings.Split(text, "\n")).Text
}

// stripMarkers removes comment markers line by line. skipBase reports that
// the first line shares its line with a block opener and so must not
// establish the base indentation.
func stripMarkers(style Style, lines []string) ([]string, bool) {
	out := make([]string, len(lines))
	for i, l := range lines {
		out[i] = strings.TrimRight(l, "\r")
	}

	switch style {
	case StyleHash, StyleSlash:
		marker := style.String()
		for i, l := range out {
			t := strings.TrimLeft(l, " \t")
			if !strings.HasPrefix(t, marker) {
				// Not part of the run; treated like a blank line
				out[i] = ""
				continue
			}
			t = strings.TrimPrefix(t, marker)
			out[i] = blankBanner(strings.TrimPrefix(t, " "), marker[:1])
		}
		return out, false
	case StyleBlock:
		return stripBlock(out)
	default:
		return out, false
	}
}

func stripBlock(lines []string) ([]string, bool) {
	if len(lines) == 0 {
		return lines, false
	}

	last := len(lines) - 1
	if i := strings.LastIndex(lines[last], "*/"); i >= 0 {
		lines[last] = strings.TrimRight(lines[last][:i], " \t")
	}

	first := strings.TrimLeft(lines[0], " \t")
	first = strings.TrimPrefix(first, "/*")
	// A "/**" opener: the extra stars are decoration only when nothing
	// but whitespace follows them.
	if rest := strings.TrimLeft(first, "*"); rest != first && (rest == "" || rest[0] == ' ' || rest[0] == '\t') {
		first = rest
	}
	lines[0] = strings.TrimPrefix(first, " ")

	// Continuation lines decorated with a leading "*" lose the decoration
	// when every non-empty one carries it.
	decorated := false
	for _, l := range lines[1:] {
		t := strings.TrimLeft(l, " \t")
		if t == "" {
			continue
		}
		if !strings.HasPrefix(t, "*") {
			decorated = false
			break
		}
		decorated = true
	}
	if decorated {
		for i := 1; i < len(lines); i++ {
			t := strings.TrimLeft(lines[i], " \t")
			t = strings.TrimPrefix(t, "*")
			lines[i] = strings.TrimPrefix(t, " ")
		}
	}

	for i := range lines {
		lines[i] = blankBanner(lines[i], "*")
	}

	hasContinuation := false
	for _, l := range lines[1:] {
		if strings.TrimSpace(l) != "" {
			hasContinuation = true
			break
		}
	}
	return lines, hasContinuation && strings.TrimSpace(lines[0]) != ""
}

// blankBanner empties lines made only of marker characters, such as
// "########" separators.
func blankBanner(s, markerChar string) string {
	t := strings.TrimSpace(s)
	if t != "" && strings.Trim(t, markerChar+"/") == "" {
		return ""
	}
	return s
}

// dedent removes the base indentation. A line shallower than the base ends
// the run; its index is returned, or -1.
func dedent(lines []string, skipBase bool) (string, int) {
	base := -1
	truncatedAt := -1
	kept := make([]string, 0, len(lines))

	for i, l := range lines {
		l = strings.TrimRight(l, " \t")
		if l == "" {
			kept = append(kept, "")
			continue
		}

		indent := len(l) - len(strings.TrimLeft(l, " \t"))
		if skipBase && i == 0 {
			kept = append(kept, strings.TrimLeft(l, " \t"))
			continue
		}
		if base < 0 {
			base = indent
		}
		if indent < base {
			truncatedAt = i
			break
		}
		kept = append(kept, l[base:])
	}

	return strings.Join(trimBlankEdges(kept), "\n"), truncatedAt
}

func trimBlankEdges(lines []string) []string {
	start, end := 0, len(lines)
	for start < end && lines[start] == "" {
		start++
	}
	for end > start && lines[end-1] == "" {
		end--
	}
	return lines[start:end]
}
