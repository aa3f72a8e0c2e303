// Package hclscan finds top-level Terraform definition blocks and the
// comment run written directly above each of them.
//
// Scanning works on the hclsyntax token stream, so braces inside quoted
// strings, heredocs and template sequences never affect block balance.
package hclscan

import (
	"bytes"
	"fmt"
	"iter"
	"os"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclsyntax"
	"github.com/zclconf/go-cty/cty"

	"tfdoc/internal/comment"
	"tfdoc/internal/errors"
)

// Comment is the contiguous comment run preceding a block.
type Comment struct {
	Style comment.Style
	// Lines holds the raw source text of the run, markers included, one
	// entry per source line.
	Lines []string
	Range hcl.Range
}

// Attribute is a top-level attribute of a block body.
type Attribute struct {
	Name string
	// Value is the evaluated string when Static, otherwise the raw
	// expression text.
	Value  string
	Static bool
	Range  hcl.Range
}

// Block is one definition block.
type Block struct {
	Kind   Kind
	Type   string
	Labels []string
	// Range spans the header through the closing brace.
	Range       hcl.Range
	HeaderRange hcl.Range
	// BodyRange spans the braces, inclusive.
	BodyRange  hcl.Range
	Comment    *Comment
	Attributes map[string]Attribute
}

// Source returns the statically known "source" attribute of a module call.
func (b Block) Source() (value string, static bool, present bool) {
	attr, ok := b.Attributes["source"]
	if !ok {
		return "", false, false
	}
	return attr.Value, attr.Static, true
}

var closers = map[hclsyntax.TokenType][]hclsyntax.TokenType{
	hclsyntax.TokenCBrace:         {hclsyntax.TokenOBrace},
	hclsyntax.TokenCBrack:         {hclsyntax.TokenOBrack},
	hclsyntax.TokenCParen:         {hclsyntax.TokenOParen},
	hclsyntax.TokenCQuote:         {hclsyntax.TokenOQuote},
	hclsyntax.TokenCHeredoc:       {hclsyntax.TokenOHeredoc},
	hclsyntax.TokenTemplateSeqEnd: {hclsyntax.TokenTemplateInterp, hclsyntax.TokenTemplateControl},
}

var openers = map[hclsyntax.TokenType]bool{
	hclsyntax.TokenOBrace:          true,
	hclsyntax.TokenOBrack:          true,
	hclsyntax.TokenOParen:          true,
	hclsyntax.TokenOQuote:          true,
	hclsyntax.TokenOHeredoc:        true,
	hclsyntax.TokenTemplateInterp:  true,
	hclsyntax.TokenTemplateControl: true,
}

type header struct {
	start     int
	blockType string
	labels    []string
}

type pendingAttr struct {
	name  string
	first int
}

type frame struct {
	open  hclsyntax.Token
	block *header
	attrs map[string]Attribute
	attr  *pendingAttr
}

// Scan returns the definition blocks of one file in source order. The
// sequence is lazy and restartable: each range over it lexes src again.
// An unbalanced file yields a single STRUCTURAL_PARSE error after the
// blocks completed before the imbalance was found, then stops.
func Scan(filename string, src []byte) iter.Seq2[Block, error] {
	return func(yield func(Block, error) bool) {
		s := &scanner{filename: filename, src: src}
		s.run(yield)
	}
}

// ScanFile reads and scans one file, collecting all blocks. Blocks found
// before a structural error are returned along with it.
func ScanFile(path string) ([]Block, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.New(errors.SourceNotFound, "cannot read "+path, err)
	}

	var blocks []Block
	for b, err := range Scan(path, src) {
		if err != nil {
			return blocks, err
		}
		blocks = append(blocks, b)
	}
	return blocks, nil
}

type scanner struct {
	filename string
	src      []byte
	tokens   hclsyntax.Tokens
}

func (s *scanner) run(yield func(Block, error) bool) {
	// Lexer diagnostics are not reported; imbalance is detected below.
	s.tokens, _ = hclsyntax.LexConfig(s.src, s.filename, hcl.Pos{Line: 1, Column: 1})

	var stack []*frame
	var pending *header

	for i := 0; i < len(s.tokens); i++ {
		tok := s.tokens[i]
		if tok.Type == hclsyntax.TokenEOF {
			break
		}

		if len(stack) == 0 {
			switch tok.Type {
			case hclsyntax.TokenIdent:
				if pending == nil {
					pending = &header{start: i, blockType: string(tok.Bytes)}
				} else {
					pending.labels = append(pending.labels, string(tok.Bytes))
				}
				continue
			case hclsyntax.TokenOQuote:
				if pending != nil {
					if label, next, ok := s.quotedLabel(i); ok {
						pending.labels = append(pending.labels, label)
						i = next
						continue
					}
				}
				pending = nil
			case hclsyntax.TokenOBrace:
				stack = append(stack, &frame{open: tok, block: pending, attrs: map[string]Attribute{}})
				pending = nil
				continue
			default:
				pending = nil
			}
		}

		if len(stack) == 1 {
			s.trackAttribute(stack[0], i)
		}

		if openers[tok.Type] {
			stack = append(stack, &frame{open: tok})
			continue
		}

		wants, isCloser := closers[tok.Type]
		if !isCloser {
			continue
		}
		if len(stack) == 0 {
			yield(Block{}, s.structuralError(tok, fmt.Sprintf("unexpected %q", tok.Bytes)))
			return
		}

		top := stack[len(stack)-1]
		if !matches(wants, top.open.Type) {
			yield(Block{}, s.structuralError(top.open,
				fmt.Sprintf("%q opened at line %d is closed by %q at line %d",
					top.open.Bytes, top.open.Range.Start.Line, tok.Bytes, tok.Range.Start.Line)))
			return
		}
		stack = stack[:len(stack)-1]

		if len(stack) == 0 && top.block != nil {
			if b, ok := s.makeBlock(top, i); ok {
				if !yield(b, nil) {
					return
				}
			}
		}
	}

	if len(stack) > 0 {
		open := stack[len(stack)-1].open
		yield(Block{}, s.structuralError(open,
			fmt.Sprintf("%q opened at line %d is never closed", open.Bytes, open.Range.Start.Line)))
	}
}

// quotedLabel reads OQuote [QuotedLit] CQuote starting at i.
func (s *scanner) quotedLabel(i int) (string, int, bool) {
	j := i + 1
	label := ""
	if j < len(s.tokens) && s.tokens[j].Type == hclsyntax.TokenQuotedLit {
		label = string(s.tokens[j].Bytes)
		j++
	}
	if j < len(s.tokens) && s.tokens[j].Type == hclsyntax.TokenCQuote {
		return label, j, true
	}
	return "", i, false
}

// trackAttribute records "name = expr" items directly inside a block body.
// It runs for every token seen at body depth, before the token is pushed.
func (s *scanner) trackAttribute(f *frame, i int) {
	if f.block == nil {
		return
	}
	tok := s.tokens[i]

	if f.attr != nil {
		switch tok.Type {
		case hclsyntax.TokenNewline, hclsyntax.TokenComment, hclsyntax.TokenCBrace:
			s.finishAttribute(f, i)
		}
		return
	}

	if tok.Type == hclsyntax.TokenIdent && i+2 < len(s.tokens) && s.tokens[i+1].Type == hclsyntax.TokenEqual {
		f.attr = &pendingAttr{name: string(tok.Bytes), first: i + 2}
	}
}

// finishAttribute closes the pending attribute at the terminator token
// with index term.
func (s *scanner) finishAttribute(f *frame, term int) {
	pa := f.attr
	f.attr = nil
	if term <= pa.first {
		return
	}

	first, last := s.tokens[pa.first], s.tokens[term-1]
	raw := bytes.TrimSpace(s.src[first.Range.Start.Byte:last.Range.End.Byte])
	attr := Attribute{
		Name:  pa.name,
		Value: string(raw),
		Range: hcl.Range{Filename: s.filename, Start: first.Range.Start, End: last.Range.End},
	}
	if v, ok := staticString(raw, s.filename, first.Range.Start); ok {
		attr.Value = v
		attr.Static = true
	}
	f.attrs[pa.name] = attr
}

// staticString evaluates expr without any variables or functions. Only
// string results are accepted.
func staticString(expr []byte, filename string, pos hcl.Pos) (string, bool) {
	parsed, diags := hclsyntax.ParseExpression(expr, filename, pos)
	if diags.HasErrors() {
		return "", false
	}
	val, diags := parsed.Value(nil)
	if diags.HasErrors() || !val.IsWhollyKnown() || val.IsNull() || !val.Type().Equals(cty.String) {
		return "", false
	}
	return val.AsString(), true
}

func (s *scanner) makeBlock(f *frame, closeIdx int) (Block, bool) {
	h := f.block
	kind, ok := KindFromBlockType(h.blockType)
	if !ok {
		return Block{}, false
	}
	if f.attr != nil {
		s.finishAttribute(f, closeIdx)
	}
	closing := s.tokens[closeIdx]

	start := s.tokens[h.start].Range.Start
	return Block{
		Kind:   kind,
		Type:   h.blockType,
		Labels: append([]string{}, h.labels...),
		Range: hcl.Range{
			Filename: s.filename,
			Start:    start,
			End:      closing.Range.End,
		},
		HeaderRange: hcl.Range{
			Filename: s.filename,
			Start:    start,
			End:      f.open.Range.Start,
		},
		BodyRange: hcl.Range{
			Filename: s.filename,
			Start:    f.open.Range.Start,
			End:      closing.Range.End,
		},
		Comment:    s.leadingComment(h.start),
		Attributes: f.attrs,
	}, true
}

// leadingComment collects the comment run ending directly above the token
// at index start. Every comment must begin its own line, be separated from
// the next item by at most one line break, and share one style. A block
// comment forms a run on its own.
func (s *scanner) leadingComment(start int) *Comment {
	next := s.tokens[start].Range.Start.Byte
	var run []hclsyntax.Token
	style := comment.StyleNone

	for i := start - 1; i >= 0; i-- {
		tok := s.tokens[i]
		if tok.Type == hclsyntax.TokenNewline {
			continue
		}
		if tok.Type != hclsyntax.TokenComment {
			break
		}
		if !s.startsLine(tok.Range.Start.Byte) || !s.adjacent(tok, next) {
			break
		}

		st := comment.StyleOf(string(tok.Bytes))
		if style == comment.StyleNone {
			style = st
		} else if st != style || st == comment.StyleBlock {
			break
		}
		run = append(run, tok)
		next = tok.Range.Start.Byte
		if st == comment.StyleBlock {
			break
		}
	}
	if len(run) == 0 {
		return nil
	}

	c := &Comment{
		Style: style,
		Range: hcl.Range{
			Filename: s.filename,
			Start:    run[len(run)-1].Range.Start,
			End:      run[0].Range.End,
		},
	}
	for i := len(run) - 1; i >= 0; i-- {
		text := strings.TrimRight(string(run[i].Bytes), "\r\n")
		c.Lines = append(c.Lines, strings.Split(text, "\n")...)
	}
	return c
}

// startsLine reports whether only blanks precede offset on its line.
func (s *scanner) startsLine(offset int) bool {
	for j := offset - 1; j >= 0; j-- {
		switch s.src[j] {
		case ' ', '\t':
			continue
		case '\n':
			return true
		default:
			return false
		}
	}
	return true
}

// adjacent reports whether tok is followed by the item at offset next with
// only blanks and at most one line break in between.
func (s *scanner) adjacent(tok hclsyntax.Token, next int) bool {
	end := tok.Range.End.Byte
	if end > next {
		return false
	}
	gap := s.src[end:next]
	if len(bytes.TrimSpace(gap)) != 0 {
		return false
	}
	breaks := bytes.Count(gap, []byte("\n"))
	if bytes.HasSuffix(tok.Bytes, []byte("\n")) {
		breaks++
	}
	return breaks <= 1
}

func (s *scanner) structuralError(tok hclsyntax.Token, msg string) error {
	return errors.New(errors.StructuralParse,
		fmt.Sprintf("%s:%d: %s", s.filename, tok.Range.Start.Line, msg), nil).
		WithDetails(map[string]interface{}{
			"file": s.filename,
			"line": tok.Range.Start.Line,
		})
}

func matches(wants []hclsyntax.TokenType, got hclsyntax.TokenType) bool {
	for _, w := range wants {
		if w == got {
			return true
		}
	}
	return false
}
