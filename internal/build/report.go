package build

import (
	"tfdoc/internal/errors"
	"tfdoc/internal/hclscan"
)

// Report is the serializable summary of a build.
type Report struct {
	BuildID          string               `json:"buildId" yaml:"buildId"`
	DurationMs       int64                `json:"durationMs" yaml:"durationMs"`
	Roots            []string             `json:"roots" yaml:"roots"`
	Modules          int                  `json:"modules" yaml:"modules"`
	Definitions      int                  `json:"definitions" yaml:"definitions"`
	ByKind           map[string]int       `json:"byKind" yaml:"byKind"`
	FilesScanned     int                  `json:"filesScanned" yaml:"filesScanned"`
	Failed           bool                 `json:"failed" yaml:"failed"`
	ModuleProblems   []*errors.TfdocError `json:"moduleProblems,omitempty" yaml:"moduleProblems,omitempty"`
	FileErrors       []*errors.TfdocError `json:"fileErrors,omitempty" yaml:"fileErrors,omitempty"`
	Warnings         []*errors.TfdocError `json:"warnings,omitempty" yaml:"warnings,omitempty"`
	DefinitionErrors []*errors.TfdocError `json:"definitionErrors,omitempty" yaml:"definitionErrors,omitempty"`
}

// Report summarizes r.
func (r *Result) Report() Report {
	rep := Report{
		BuildID:          r.BuildID,
		DurationMs:       r.Duration.Milliseconds(),
		Modules:          r.Tree.Len(),
		Definitions:      r.Registry.Len(),
		ByKind:           make(map[string]int),
		FilesScanned:     r.FilesScanned,
		Failed:           r.Failed(),
		ModuleProblems:   r.ModuleProblems,
		FileErrors:       r.FileErrors,
		Warnings:         r.Warnings,
		DefinitionErrors: r.DefinitionErrors,
	}
	for _, m := range r.Tree.Roots {
		rep.Roots = append(rep.Roots, m.Name)
	}
	for _, k := range hclscan.Kinds() {
		rep.ByKind[string(k)] = 0
	}
	for _, d := range r.Registry.All() {
		rep.ByKind[string(d.Kind)]++
	}
	return rep
}
