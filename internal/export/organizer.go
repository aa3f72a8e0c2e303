package export

import (
	"fmt"
	"sort"
	"strings"
)

// Organizer structures a snapshot for reading:
// a module map with counts, the module call edges between modules, and
// the per-module details.
type Organizer struct {
	snap *Snapshot
}

// NewOrganizer creates a new organizer.
func NewOrganizer(snap *Snapshot) *Organizer {
	return &Organizer{snap: snap}
}

// ModuleSummary represents a high-level module overview.
type ModuleSummary struct {
	Fullname        string         `json:"fullname"`
	DefinitionCount int            `json:"definitionCount"`
	FileCount       int            `json:"fileCount"`
	ByKind          map[string]int `json:"byKind"`
	// TopDefinitions are the most referenced definitions, at most three.
	TopDefinitions []string `json:"topDefinitions,omitempty"`
}

// ModuleBridge is a parent to child edge of the module tree.
type ModuleBridge struct {
	FromModule string `json:"fromModule"`
	ToModule   string `json:"toModule"`
	Origin     string `json:"origin"`
}

// OrganizedExport contains the structured output.
type OrganizedExport struct {
	ModuleMap []ModuleSummary `json:"moduleMap"`
	Bridges   []ModuleBridge  `json:"bridges,omitempty"`
	Modules   []Module        `json:"modules"`

	TotalDefinitions int `json:"totalDefinitions"`
	TotalModules     int `json:"totalModules"`
	TotalFiles       int `json:"totalFiles"`
}

// Organize builds the structured view.
func (o *Organizer) Organize() *OrganizedExport {
	if o.snap == nil {
		return &OrganizedExport{}
	}

	result := &OrganizedExport{
		ModuleMap:    make([]ModuleSummary, 0, len(o.snap.Modules)),
		Bridges:      make([]ModuleBridge, 0),
		Modules:      o.snap.Modules,
		TotalModules: len(o.snap.Modules),
	}

	for _, mod := range o.snap.Modules {
		summary := ModuleSummary{
			Fullname:  mod.Fullname,
			FileCount: len(mod.Files),
			ByKind:    make(map[string]int),
		}

		var all []Definition
		for _, file := range mod.Files {
			for _, d := range file.Definitions {
				summary.ByKind[d.Kind]++
			}
			all = append(all, file.Definitions...)
		}
		summary.DefinitionCount = len(all)
		result.TotalFiles += summary.FileCount
		result.TotalDefinitions += summary.DefinitionCount

		sort.SliceStable(all, func(i, j int) bool {
			return len(all[i].ReferencedBy) > len(all[j].ReferencedBy)
		})
		for i := 0; i < min(3, len(all)); i++ {
			if len(all[i].ReferencedBy) == 0 {
				break
			}
			summary.TopDefinitions = append(summary.TopDefinitions, all[i].DisplayName)
		}
		result.ModuleMap = append(result.ModuleMap, summary)

		if mod.Parent != "" {
			result.Bridges = append(result.Bridges, ModuleBridge{
				FromModule: mod.Parent,
				ToModule:   mod.Fullname,
				Origin:     mod.Origin,
			})
		}
	}

	// Largest modules first, then by name
	sort.SliceStable(result.ModuleMap, func(i, j int) bool {
		a, b := result.ModuleMap[i], result.ModuleMap[j]
		if a.DefinitionCount != b.DefinitionCount {
			return a.DefinitionCount > b.DefinitionCount
		}
		return a.Fullname < b.Fullname
	})

	return result
}

// FormatOrganizedText renders an organized export as markdown.
func FormatOrganizedText(org *OrganizedExport) string {
	var sb strings.Builder

	sb.WriteString("# Terraform Modules\n\n")

	sb.WriteString("## Module Map\n\n")
	sb.WriteString("| Module | Definitions | Files | Most Referenced |\n")
	sb.WriteString("|--------|-------------|-------|-----------------|\n")
	for _, mod := range org.ModuleMap {
		top := strings.Join(mod.TopDefinitions, ", ")
		if top == "" {
			top = "-"
		}
		fmt.Fprintf(&sb, "| %s | %d | %d | %s |\n",
			mod.Fullname, mod.DefinitionCount, mod.FileCount, top)
	}
	sb.WriteString("\n")

	if len(org.Bridges) > 0 {
		sb.WriteString("## Module Calls\n\n")
		for _, bridge := range org.Bridges {
			fmt.Fprintf(&sb, "- %s → %s (%s)\n", bridge.FromModule, bridge.ToModule, bridge.Origin)
		}
		sb.WriteString("\n")
	}

	sb.WriteString("## Module Details\n\n")
	for _, mod := range org.Modules {
		fmt.Fprintf(&sb, "### %s\n\n", mod.Fullname)
		for _, file := range mod.Files {
			fmt.Fprintf(&sb, "**%s**\n", file.Name)
			for _, d := range file.Definitions {
				line := fmt.Sprintf("  - `%s`", d.DisplayName)
				if d.Doc != "" {
					first, _, _ := strings.Cut(d.Doc, "\n")
					line += " " + first
				}
				sb.WriteString(line + "\n")
			}
			sb.WriteString("\n")
		}
	}

	fmt.Fprintf(&sb, "---\n")
	fmt.Fprintf(&sb, "Total: %d modules, %d files, %d definitions\n",
		org.TotalModules, org.TotalFiles, org.TotalDefinitions)

	return sb.String()
}
