package export

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/klauspost/compress/zstd"

	"tfdoc/internal/build"
	"tfdoc/internal/errors"
	"tfdoc/internal/registry"
	"tfdoc/internal/version"
)

// Exporter turns build results into export formats.
type Exporter struct {
	opts   Options
	logger *slog.Logger
}

// NewExporter creates a new exporter
func NewExporter(opts Options, logger *slog.Logger) *Exporter {
	return &Exporter{opts: opts, logger: logger}
}

// Snapshot collects the modules and definitions of res. Modules appear in
// tree order, files sorted, definitions in byte order.
func (e *Exporter) Snapshot(res *build.Result) *Snapshot {
	snap := &Snapshot{
		Metadata: Metadata{
			Tool:      "tfdoc",
			Version:   version.Version,
			BuildID:   res.BuildID,
			Root:      e.opts.Root,
			Generated: time.Now().UTC().Format(time.RFC3339),
		},
	}

	for _, m := range res.Tree.All() {
		mod := Module{
			Fullname: m.Fullname,
			Name:     m.Name,
			Origin:   string(m.Origin),
			Path:     e.rel(m.Path),
		}
		if m.Parent != nil {
			mod.Parent = m.Parent.Fullname
		}

		byFile := make(map[string][]*registry.Definition)
		for _, d := range res.Registry.InModule(m.Fullname) {
			byFile[d.SourceFile] = append(byFile[d.SourceFile], d)
		}
		for _, path := range m.Files {
			file := File{Name: filepath.Base(path), Path: e.rel(path)}
			for _, d := range sortedByByte(byFile[path]) {
				if d.DocText == "" && !e.opts.Undocumented {
					continue
				}
				file.Definitions = append(file.Definitions, e.definition(d))
			}
			if len(file.Definitions) == 0 {
				continue
			}
			mod.Files = append(mod.Files, file)
			snap.Metadata.FileCount++
			snap.Metadata.DefinitionCount += len(file.Definitions)
		}
		snap.Modules = append(snap.Modules, mod)
	}
	snap.Metadata.ModuleCount = len(snap.Modules)

	e.logger.Debug("Snapshot collected",
		"modules", snap.Metadata.ModuleCount,
		"definitions", snap.Metadata.DefinitionCount,
	)
	return snap
}

func (e *Exporter) definition(d *registry.Definition) Definition {
	return Definition{
		Identifier:   d.Identifier(),
		Kind:         string(d.Kind),
		Name:         d.Name(),
		DisplayName:  d.DisplayName(),
		Line:         d.Range.StartLine,
		EndLine:      d.Range.EndLine,
		Doc:          d.DocText,
		Markup:       string(d.Markup),
		Attributes:   d.Attributes,
		ReferencedBy: e.opts.Usage[d.Identifier()],
	}
}

func (e *Exporter) rel(path string) string {
	if e.opts.Root == "" {
		return filepath.ToSlash(path)
	}
	rel, err := filepath.Rel(e.opts.Root, path)
	if err != nil {
		return filepath.ToSlash(path)
	}
	return filepath.ToSlash(rel)
}

func sortedByByte(defs []*registry.Definition) []*registry.Definition {
	out := append([]*registry.Definition(nil), defs...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Range.StartByte < out[j].Range.StartByte })
	return out
}

// WriteJSON encodes snap as indented JSON, through zstd when Compress is
// set.
func (e *Exporter) WriteJSON(w io.Writer, snap *Snapshot) error {
	if !e.opts.Compress {
		return encodeJSON(w, snap)
	}

	enc, err := zstd.NewWriter(w)
	if err != nil {
		return errors.New(errors.InternalError, "create zstd encoder", err)
	}
	if err := encodeJSON(enc, snap); err != nil {
		_ = enc.Close()
		return err
	}
	return enc.Close()
}

func encodeJSON(w io.Writer, snap *Snapshot) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(snap); err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	return nil
}

// ReadJSON decodes a snapshot written by WriteJSON. Compressed input is
// recognized by the zstd frame magic.
func ReadJSON(r io.Reader) (*Snapshot, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	if isZstd(data) {
		dec, err := zstd.NewReader(nil)
		if err != nil {
			return nil, err
		}
		defer dec.Close()
		if data, err = dec.DecodeAll(data, nil); err != nil {
			return nil, fmt.Errorf("decompress snapshot: %w", err)
		}
	}

	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	return &snap, nil
}

var zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}

func isZstd(data []byte) bool {
	return bytes.HasPrefix(data, zstdMagic)
}

// FormatText renders snap as a compact outline.
func (e *Exporter) FormatText(snap *Snapshot) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "# Terraform: %s\n", filepath.Base(snap.Metadata.Root))
	fmt.Fprintf(&sb, "# Generated: %s\n", snap.Metadata.Generated)
	fmt.Fprintf(&sb, "# Definitions: %d | Files: %d | Modules: %d\n\n",
		snap.Metadata.DefinitionCount, snap.Metadata.FileCount, snap.Metadata.ModuleCount)

	for _, mod := range snap.Modules {
		fmt.Fprintf(&sb, "## %s (%s)\n\n", mod.Fullname, mod.Path)
		for _, file := range mod.Files {
			fmt.Fprintf(&sb, "  ! %s\n", file.Name)
			for _, d := range file.Definitions {
				sb.WriteString(formatDefinitionLine(d) + "\n")
			}
			sb.WriteString("\n")
		}
	}

	sb.WriteString("---\n")
	sb.WriteString("Legend:\n")
	sb.WriteString("  !  = file\n")
	sb.WriteString("  $  = resource or data source\n")
	sb.WriteString("  #  = variable, output or module call\n")
	sb.WriteString("  refs = documents referencing the definition\n")
	return sb.String()
}

func formatDefinitionLine(d Definition) string {
	prefix, indent := "#", "      "
	if d.Kind == "resource" || d.Kind == "data" {
		prefix, indent = "$", "    "
	}

	line := fmt.Sprintf("%s%s %s", indent, prefix, d.DisplayName)
	for len(line) < 40 {
		line += " "
	}
	line += fmt.Sprintf("  L%d", d.Line)
	if n := len(d.ReferencedBy); n > 0 {
		line += fmt.Sprintf("  refs=%d", n)
	}
	if d.Doc != "" {
		first, _, _ := strings.Cut(d.Doc, "\n")
		line += "  " + first
	}
	return line
}
