package registry

import (
	"encoding/json"
	"strings"

	"github.com/hashicorp/hcl/v2"

	"tfdoc/internal/hclscan"
	"tfdoc/internal/markup"
	"tfdoc/internal/modules"
)

// Key is the identity of a definition. Labels are joined with a unit
// separator, which cannot appear in an HCL label.
type Key struct {
	Module string
	Kind   hclscan.Kind
	Labels string
}

const labelSep = "\x1f"

// MakeKey builds the identity key for a label sequence.
func MakeKey(module string, kind hclscan.Kind, labels []string) Key {
	return Key{Module: module, Kind: kind, Labels: strings.Join(labels, labelSep)}
}

// Span is a source range in both line/column and byte terms.
type Span struct {
	StartLine   int `json:"startLine"`
	StartColumn int `json:"startColumn"`
	EndLine     int `json:"endLine"`
	EndColumn   int `json:"endColumn"`
	StartByte   int `json:"startByte"`
	EndByte     int `json:"endByte"`
}

// SpanOf converts an hcl.Range.
func SpanOf(r hcl.Range) Span {
	return Span{
		StartLine:   r.Start.Line,
		StartColumn: r.Start.Column,
		EndLine:     r.End.Line,
		EndColumn:   r.End.Column,
		StartByte:   r.Start.Byte,
		EndByte:     r.End.Byte,
	}
}

// Definition is one documented Terraform block.
type Definition struct {
	Module *modules.Module `json:"-"`
	Kind   hclscan.Kind    `json:"kind"`
	Labels []string        `json:"labels"`

	DocText string `json:"docText"`
	// DocTruncated is set when an indentation violation cut the comment.
	DocTruncated bool `json:"docTruncated,omitempty"`

	// Markup is the language annotated at build time from the global
	// default and the document context. MarkupErr holds the
	// UNKNOWN_MARKUP_LANGUAGE error when neither supplied one.
	Markup    markup.Language `json:"markup,omitempty"`
	MarkupErr error           `json:"-"`

	SourceFile string `json:"sourceFile"`
	Range      Span   `json:"range"`
	Header     Span   `json:"header"`
	Body       Span   `json:"body"`
	// Doc is the span of the leading comment, nil when there is none.
	Doc *Span `json:"doc,omitempty"`

	// Attributes holds the statically known string attributes.
	Attributes map[string]string `json:"attributes,omitempty"`

	seq int
}

// FromBlock builds a definition for a scanned block in module m. The doc
// text is filled in by the caller.
func FromBlock(m *modules.Module, file string, b hclscan.Block) *Definition {
	d := &Definition{
		Module:     m,
		Kind:       b.Kind,
		Labels:     append([]string(nil), b.Labels...),
		SourceFile: file,
		Range:      SpanOf(b.Range),
		Header:     SpanOf(b.HeaderRange),
		Body:       SpanOf(b.BodyRange),
	}
	if b.Comment != nil {
		s := SpanOf(b.Comment.Range)
		d.Doc = &s
	}
	for name, attr := range b.Attributes {
		if !attr.Static {
			continue
		}
		if d.Attributes == nil {
			d.Attributes = make(map[string]string)
		}
		d.Attributes[name] = attr.Value
	}
	return d
}

// ModuleName is the fullname of the owning module.
func (d *Definition) ModuleName() string {
	if d.Module == nil {
		return ""
	}
	return d.Module.Fullname
}

// Key returns the identity key.
func (d *Definition) Key() Key {
	return MakeKey(d.ModuleName(), d.Kind, d.Labels)
}

// Name is the dotted label sequence, e.g. "aws_s3_bucket.artifacts".
func (d *Definition) Name() string {
	return strings.Join(d.Labels, ".")
}

// Identifier is the URL-safe anchor "<module>/<keyword>-<name>".
func (d *Definition) Identifier() string {
	return d.ModuleName() + "/" + d.Kind.Keyword() + "-" + d.Name()
}

// DisplayName is "<keyword> <name>".
func (d *Definition) DisplayName() string {
	return d.Kind.Keyword() + " " + d.Name()
}

// Signature is the fully qualified reference form.
func (d *Definition) Signature() string {
	return d.ModuleName() + "/" + d.Kind.Keyword() + ":" + d.Name()
}

// HasLabelSuffix reports whether d's labels end with suffix.
func (d *Definition) HasLabelSuffix(suffix []string) bool {
	if len(suffix) == 0 || len(suffix) > len(d.Labels) {
		return false
	}
	off := len(d.Labels) - len(suffix)
	for i, s := range suffix {
		if d.Labels[off+i] != s {
			return false
		}
	}
	return true
}

// MarshalJSON adds the module fullname and identifier.
func (d *Definition) MarshalJSON() ([]byte, error) {
	type plain Definition
	return json.Marshal(struct {
		Module     string `json:"module"`
		Identifier string `json:"identifier"`
		*plain
	}{d.ModuleName(), d.Identifier(), (*plain)(d)})
}

func (d *Definition) String() string {
	return d.Identifier()
}
