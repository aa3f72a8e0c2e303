package main

import (
	"tfdoc/internal/errors"
	"tfdoc/internal/registry"
)

// definitionCLI is the CLI view of a registered definition.
type definitionCLI struct {
	Identifier   string `json:"identifier"`
	Signature    string `json:"signature"`
	DisplayName  string `json:"displayName"`
	Module       string `json:"module"`
	Kind         string `json:"kind"`
	Name         string `json:"name"`
	File         string `json:"file"`
	Line         int    `json:"line"`
	EndLine      int    `json:"endLine"`
	Doc          string `json:"doc,omitempty"`
	DocTruncated bool   `json:"docTruncated,omitempty"`
	Markup       string `json:"markup,omitempty"`
}

// problemCLI is a build diagnostic.
type problemCLI struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// errorCLI is a per-item failure, such as an unresolved signature.
type errorCLI struct {
	Code       string   `json:"code"`
	Message    string   `json:"message"`
	Candidates []string `json:"candidates,omitempty"`
}

func (e *cliEnv) convertDefinition(d *registry.Definition) definitionCLI {
	return definitionCLI{
		Identifier:   d.Identifier(),
		Signature:    d.Signature(),
		DisplayName:  d.DisplayName(),
		Module:       d.ModuleName(),
		Kind:         string(d.Kind),
		Name:         d.Name(),
		File:         e.rel(d.SourceFile),
		Line:         d.Range.StartLine,
		EndLine:      d.Range.EndLine,
		Doc:          d.DocText,
		DocTruncated: d.DocTruncated,
		Markup:       string(d.Markup),
	}
}

func (e *cliEnv) convertDefinitions(defs []*registry.Definition) []definitionCLI {
	out := make([]definitionCLI, 0, len(defs))
	for _, d := range defs {
		out = append(out, e.convertDefinition(d))
	}
	return out
}

func convertProblems(list []*errors.TfdocError) []problemCLI {
	if len(list) == 0 {
		return nil
	}
	out := make([]problemCLI, 0, len(list))
	for _, p := range list {
		out = append(out, problemCLI{Code: string(p.Code), Message: p.Message})
	}
	return out
}
