package export

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	scippb "github.com/sourcegraph/scip/bindings/go/scip"
	"google.golang.org/protobuf/proto"

	"tfdoc/internal/build"
	"tfdoc/internal/errors"
	"tfdoc/internal/registry"
	"tfdoc/internal/version"
)

const (
	scipScheme  = "tfdoc"
	scipManager = "terraform"
)

// SymbolFor returns the SCIP symbol of d:
//
//	tfdoc terraform <root> . <module namespaces>/ <label descriptors>
//
// Resources and data sources are a type descriptor for the resource type
// and a term for the name; one-label kinds are a term, or a namespace for
// module calls.
func SymbolFor(d *registry.Definition) string {
	segments := strings.Split(d.ModuleName(), "/")
	var desc strings.Builder
	for _, seg := range segments[1:] {
		desc.WriteString(escapeIdent(seg) + "/")
	}
	desc.WriteString(escapeIdent(d.Kind.Keyword()) + "/")

	switch len(d.Labels) {
	case 1:
		if d.Kind.Keyword() == "module" {
			desc.WriteString(escapeIdent(d.Labels[0]) + "/")
		} else {
			desc.WriteString(escapeIdent(d.Labels[0]) + ".")
		}
	default:
		for _, l := range d.Labels[:len(d.Labels)-1] {
			desc.WriteString(escapeIdent(l) + "#")
		}
		desc.WriteString(escapeIdent(d.Labels[len(d.Labels)-1]) + ".")
	}

	return fmt.Sprintf("%s %s %s . %s", scipScheme, scipManager, escapePackage(segments[0]), desc.String())
}

// escapeIdent backtick-quotes names with characters outside the simple
// identifier set.
func escapeIdent(s string) string {
	simple := s != ""
	for _, r := range s {
		if !(r == '_' || r == '+' || r == '-' || r == '$' ||
			(r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')) {
			simple = false
			break
		}
	}
	if simple {
		return s
	}
	return "`" + strings.ReplaceAll(s, "`", "``") + "`"
}

// escapePackage doubles spaces, the only separator inside a package field.
func escapePackage(s string) string {
	return strings.ReplaceAll(s, " ", "  ")
}

// scipRange converts a span to SCIP's zero-based [line, char, line, char]
// form, shortened to three elements on a single line.
func scipRange(s registry.Span) []int32 {
	startLine, startChar := int32(s.StartLine-1), int32(s.StartColumn-1)
	endLine, endChar := int32(s.EndLine-1), int32(s.EndColumn-1)
	if startLine == endLine {
		return []int32{startLine, startChar, endChar}
	}
	return []int32{startLine, startChar, endLine, endChar}
}

// SCIPIndex builds a SCIP index with one document per source file. Each
// definition is a definition occurrence over its block header, enclosing
// the whole block, with its doc comment as documentation.
func (e *Exporter) SCIPIndex(res *build.Result) *scippb.Index {
	root := e.opts.Root
	index := &scippb.Index{
		Metadata: &scippb.Metadata{
			Version: scippb.ProtocolVersion_UnspecifiedProtocolVersion,
			ToolInfo: &scippb.ToolInfo{
				Name:      "tfdoc",
				Version:   version.Version,
				Arguments: []string{"export", "--scip"},
			},
			ProjectRoot:          "file://" + filepath.ToSlash(root),
			TextDocumentEncoding: scippb.TextEncoding_UTF8,
		},
	}

	for _, file := range res.Registry.Files() {
		defs := res.Registry.InFile(file)
		doc := &scippb.Document{
			Language:     "terraform",
			RelativePath: e.rel(file),
		}
		for _, d := range defs {
			sym := SymbolFor(d)
			doc.Occurrences = append(doc.Occurrences, &scippb.Occurrence{
				Range:          scipRange(d.Header),
				Symbol:         sym,
				SymbolRoles:    int32(scippb.SymbolRole_Definition),
				EnclosingRange: scipRange(d.Range),
			})

			info := &scippb.SymbolInformation{
				Symbol:      sym,
				DisplayName: d.DisplayName(),
			}
			if d.DocText != "" {
				info.Documentation = []string{d.DocText}
			}
			doc.Symbols = append(doc.Symbols, info)
		}
		sort.SliceStable(doc.Symbols, func(i, j int) bool { return doc.Symbols[i].Symbol < doc.Symbols[j].Symbol })
		index.Documents = append(index.Documents, doc)
	}

	e.logger.Debug("SCIP index built", "documents", len(index.Documents))
	return index
}

// WriteSCIP marshals the SCIP index of res to path.
func (e *Exporter) WriteSCIP(res *build.Result, path string) error {
	data, err := proto.Marshal(e.SCIPIndex(res))
	if err != nil {
		return errors.New(errors.InternalError, "failed to marshal SCIP index", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return errors.New(errors.InternalError, fmt.Sprintf("failed to write SCIP index to %s", path), err)
	}
	return nil
}

// LoadSCIP reads an index written by WriteSCIP.
func LoadSCIP(path string) (*scippb.Index, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.New(errors.SourceNotFound, fmt.Sprintf("SCIP index not found at %s", path), err)
	}
	var index scippb.Index
	if err := proto.Unmarshal(data, &index); err != nil {
		return nil, errors.New(errors.InternalError, fmt.Sprintf("failed to parse SCIP index from %s", path), err)
	}
	return &index, nil
}
