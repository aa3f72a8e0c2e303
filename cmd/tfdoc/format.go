package main

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// OutputFormat represents the output format type
type OutputFormat string

const (
	FormatJSON  OutputFormat = "json"
	FormatHuman OutputFormat = "human"
	FormatYAML  OutputFormat = "yaml"
)

// ParseOutputFormat validates a --format value.
func ParseOutputFormat(s string) (OutputFormat, error) {
	switch f := OutputFormat(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatJSON, FormatHuman, FormatYAML:
		return f, nil
	case "":
		return FormatHuman, nil
	default:
		return "", fmt.Errorf("unsupported format: %s (want json, human or yaml)", s)
	}
}

// FormatResponse formats a response according to the specified format
func FormatResponse(resp any, format OutputFormat) (string, error) {
	switch format {
	case FormatJSON:
		return formatJSON(resp)
	case FormatYAML:
		return formatYAML(resp)
	case FormatHuman:
		return formatHuman(resp)
	default:
		return "", fmt.Errorf("unsupported format: %s", format)
	}
}

func formatJSON(resp any) (string, error) {
	data, err := json.MarshalIndent(resp, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal JSON: %w", err)
	}
	return string(data), nil
}

// formatYAML goes through JSON first so custom MarshalJSON methods and
// json tags shape the YAML document too.
func formatYAML(resp any) (string, error) {
	data, err := json.Marshal(resp)
	if err != nil {
		return "", fmt.Errorf("failed to marshal JSON: %w", err)
	}
	var generic any
	if err := json.Unmarshal(data, &generic); err != nil {
		return "", fmt.Errorf("failed to decode JSON: %w", err)
	}
	out, err := yaml.Marshal(generic)
	if err != nil {
		return "", fmt.Errorf("failed to marshal YAML: %w", err)
	}
	return strings.TrimRight(string(out), "\n"), nil
}

func formatHuman(resp any) (string, error) {
	switch v := resp.(type) {
	case *BuildResponseCLI:
		return formatBuildHuman(v), nil
	case *ListResponseCLI:
		return formatListHuman(v), nil
	case *ModulesResponseCLI:
		return formatModulesHuman(v), nil
	case *ResolveResponseCLI:
		return formatResolveHuman(v), nil
	case *ShowResponseCLI:
		return formatShowHuman(v), nil
	case *IndexResponseCLI:
		return formatIndexHuman(v), nil
	case *SearchResponseCLI:
		return formatSearchHuman(v), nil
	case *ExportResponseCLI:
		return formatExportHuman(v), nil
	default:
		// For unknown types, fall back to JSON
		return formatJSON(resp)
	}
}

func formatBuildHuman(r *BuildResponseCLI) string {
	var b strings.Builder

	status := "ok"
	if r.Failed {
		status = "FAILED"
	}
	fmt.Fprintf(&b, "Build %s: %s (%dms)\n", shortID(r.BuildID), status, r.DurationMs)
	b.WriteString(strings.Repeat("=", 60) + "\n")
	fmt.Fprintf(&b, "  Roots:       %s\n", strings.Join(r.Roots, ", "))
	fmt.Fprintf(&b, "  Modules:     %d\n", r.Modules)
	fmt.Fprintf(&b, "  Definitions: %d%s\n", r.Definitions, formatCounts(r.ByKind))
	fmt.Fprintf(&b, "  Files:       %d\n", r.FilesScanned)
	if r.Catalog != "" {
		fmt.Fprintf(&b, "  Catalog:     %s\n", r.Catalog)
	}

	sections := []struct {
		title    string
		problems []problemCLI
	}{
		{"Module problems", r.ModuleProblems},
		{"File errors", r.FileErrors},
		{"Warnings", r.Warnings},
		{"Definition errors", r.DefinitionErrors},
	}
	for _, s := range sections {
		if len(s.problems) == 0 {
			continue
		}
		fmt.Fprintf(&b, "\n%s (%d):\n", s.title, len(s.problems))
		for _, p := range s.problems {
			fmt.Fprintf(&b, "  [%s] %s\n", p.Code, p.Message)
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

func formatCounts(counts map[string]int) string {
	if len(counts) == 0 {
		return ""
	}
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s %d", k, counts[k]))
	}
	return " (" + strings.Join(parts, ", ") + ")"
}

func formatListHuman(resp *ListResponseCLI) string {
	if len(resp.Definitions) == 0 {
		return "No definitions found."
	}
	var b strings.Builder
	width := 0
	for _, d := range resp.Definitions {
		width = max(width, len(d.Signature))
	}
	for _, d := range resp.Definitions {
		fmt.Fprintf(&b, "%-*s  %s:%d\n", width, d.Signature, d.File, d.Line)
	}
	fmt.Fprintf(&b, "\n%d definitions", len(resp.Definitions))
	return b.String()
}

func formatModulesHuman(resp *ModulesResponseCLI) string {
	var b strings.Builder
	var walk func(m moduleCLI, depth int)
	walk = func(m moduleCLI, depth int) {
		indent := strings.Repeat("  ", depth)
		fmt.Fprintf(&b, "%s%s  (%s, %d files, %d definitions)  %s\n",
			indent, m.Name, m.Origin, m.Files, m.Definitions, m.Path)
		for _, c := range m.Children {
			walk(c, depth+1)
		}
	}
	for _, root := range resp.Roots {
		walk(root, 0)
	}
	return strings.TrimRight(b.String(), "\n")
}

func formatResolveHuman(resp *ResolveResponseCLI) string {
	var b strings.Builder
	for _, r := range resp.Results {
		if r.Error != nil {
			fmt.Fprintf(&b, "✗ %s: [%s] %s\n", r.Signature, r.Error.Code, r.Error.Message)
			for _, c := range r.Error.Candidates {
				fmt.Fprintf(&b, "    candidate: %s\n", c)
			}
			continue
		}
		fmt.Fprintf(&b, "✓ %s -> %s (level %d, %s:%d)\n",
			r.Signature, r.Definition.Signature, r.Level, r.Definition.File, r.Definition.Line)
	}
	fmt.Fprintf(&b, "\n%d resolved, %d failed", resp.Resolved, resp.Failed)
	return b.String()
}

func formatShowHuman(resp *ShowResponseCLI) string {
	var b strings.Builder
	d := resp.Definition
	fmt.Fprintf(&b, "%s\n", d.DisplayName)
	fmt.Fprintf(&b, "  Signature: %s\n", d.Signature)
	fmt.Fprintf(&b, "  Location:  %s:%d-%d\n", d.File, d.Line, d.EndLine)
	fmt.Fprintf(&b, "  Markup:    %s (from %s)\n", resp.Markup, resp.MarkupLevel)
	if d.Doc == "" {
		b.WriteString("\n(undocumented)")
		return b.String()
	}
	b.WriteString("\n" + d.Doc)
	if d.DocTruncated {
		b.WriteString("\n(comment truncated at an indentation problem)")
	}
	return b.String()
}

func formatIndexHuman(resp *IndexResponseCLI) string {
	var b strings.Builder
	for _, g := range resp.Groups {
		fmt.Fprintf(&b, "%s\n", strings.ToUpper(g.Letter))
		for _, e := range g.Entries {
			fmt.Fprintf(&b, "  %s  (%s)\n", e.Name, e.Identifier)
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

func formatSearchHuman(resp *SearchResponseCLI) string {
	if len(resp.Results) == 0 {
		return fmt.Sprintf("No matches for %q.", resp.Query)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%d matches for %q\n\n", len(resp.Results), resp.Query)
	for _, r := range resp.Results {
		fmt.Fprintf(&b, "%-9s %s  %s:%d\n", r.MatchType, r.Signature, r.FilePath, r.Line)
		if first, _, _ := strings.Cut(r.Doc, "\n"); first != "" {
			fmt.Fprintf(&b, "          %s\n", first)
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

func formatExportHuman(resp *ExportResponseCLI) string {
	var b strings.Builder
	for _, w := range resp.Written {
		fmt.Fprintf(&b, "Wrote %s export to %s\n", w.Kind, w.Path)
	}
	return strings.TrimRight(b.String(), "\n")
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
