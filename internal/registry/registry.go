// Package registry holds every definition found by a build. It is written
// during scanning, frozen once, and read-only afterwards.
package registry

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"unicode"
	"unicode/utf8"

	"tfdoc/internal/errors"
	"tfdoc/internal/hclscan"
	"tfdoc/internal/modules"
)

// Registry owns the definitions of one build. Register may be called
// concurrently; after Freeze all reads are lock-free.
type Registry struct {
	mu     sync.Mutex
	frozen atomic.Bool

	defs  []*Definition
	byKey map[Key]*Definition

	// Built by Freeze.
	byLast   map[string][]*Definition
	byFile   map[string][]*Definition
	byModule map[string][]*Definition
	files    []string
}

// New returns an open registry.
func New() *Registry {
	return &Registry{byKey: make(map[Key]*Definition)}
}

// Register adds d. An existing identity key is a DUPLICATE_DEFINITION
// error; registering after Freeze is REGISTRY_FROZEN.
func (r *Registry) Register(d *Definition) error {
	if d == nil || d.Module == nil || len(d.Labels) == 0 {
		return errors.New(errors.InternalError, "definition needs a module and at least one label", nil)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.frozen.Load() {
		return errors.Newf(errors.RegistryFrozen, "cannot register %s: registry is frozen", d.Identifier())
	}

	key := d.Key()
	if existing, ok := r.byKey[key]; ok {
		return errors.New(errors.DuplicateDefinition,
			fmt.Sprintf("%s is defined twice: %s:%d and %s:%d",
				d.DisplayName(), existing.SourceFile, existing.Range.StartLine, d.SourceFile, d.Range.StartLine), nil).
			WithDetails(map[string]interface{}{
				"identifier": d.Identifier(),
				"locations": []string{
					fmt.Sprintf("%s:%d", existing.SourceFile, existing.Range.StartLine),
					fmt.Sprintf("%s:%d", d.SourceFile, d.Range.StartLine),
				},
			})
	}

	d.seq = len(r.defs)
	r.defs = append(r.defs, d)
	r.byKey[key] = d
	return nil
}

// Freeze makes the registry read-only and builds the lookup indexes.
// It may be called once.
func (r *Registry) Freeze() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.frozen.Load() {
		return errors.Newf(errors.RegistryFrozen, "registry already frozen")
	}

	r.byLast = make(map[string][]*Definition)
	r.byFile = make(map[string][]*Definition)
	r.byModule = make(map[string][]*Definition)
	for _, d := range r.defs {
		last := d.Labels[len(d.Labels)-1]
		r.byLast[last] = append(r.byLast[last], d)
		if _, ok := r.byFile[d.SourceFile]; !ok {
			r.files = append(r.files, d.SourceFile)
		}
		r.byFile[d.SourceFile] = append(r.byFile[d.SourceFile], d)
		r.byModule[d.ModuleName()] = append(r.byModule[d.ModuleName()], d)
	}
	sort.Strings(r.files)
	for _, defs := range r.byFile {
		sort.SliceStable(defs, func(i, j int) bool {
			return defs[i].Range.StartByte < defs[j].Range.StartByte
		})
	}

	r.frozen.Store(true)
	return nil
}

// Frozen reports whether Freeze has run.
func (r *Registry) Frozen() bool {
	return r.frozen.Load()
}

// read runs fn under the write lock until the registry is frozen.
func (r *Registry) read(fn func()) {
	if r.frozen.Load() {
		fn()
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	fn()
}

// Len is the number of registered definitions.
func (r *Registry) Len() int {
	var n int
	r.read(func() { n = len(r.defs) })
	return n
}

// All returns every definition in registration order.
func (r *Registry) All() []*Definition {
	var out []*Definition
	r.read(func() { out = append([]*Definition(nil), r.defs...) })
	return out
}

// LookupExact returns the definition with the given identity, or nil.
func (r *Registry) LookupExact(module string, kind hclscan.Kind, labels []string) *Definition {
	var d *Definition
	r.read(func() { d = r.byKey[MakeKey(module, kind, labels)] })
	return d
}

// LookupBySuffix returns, in registration order, the definitions in any
// module whose labels end with suffix. An empty kind matches every kind.
func (r *Registry) LookupBySuffix(kind hclscan.Kind, suffix []string) []*Definition {
	if len(suffix) == 0 {
		return nil
	}
	var out []*Definition
	r.read(func() {
		pool := r.defs
		if r.byLast != nil {
			pool = r.byLast[suffix[len(suffix)-1]]
		}
		for _, d := range pool {
			if kind != "" && d.Kind != kind {
				continue
			}
			if d.HasLabelSuffix(suffix) {
				out = append(out, d)
			}
		}
	})
	return out
}

// LookupIdentifier finds a definition by its Identifier anchor.
func (r *Registry) LookupIdentifier(id string) *Definition {
	var found *Definition
	r.read(func() {
		for _, d := range r.defs {
			if d.Identifier() == id {
				found = d
				return
			}
		}
	})
	return found
}

// Files returns the sorted source files that hold definitions. It needs
// a frozen registry and returns nil otherwise.
func (r *Registry) Files() []string {
	if !r.frozen.Load() {
		return nil
	}
	return append([]string(nil), r.files...)
}

// InFile returns the definitions of one source file in byte order.
func (r *Registry) InFile(path string) []*Definition {
	if !r.frozen.Load() {
		return nil
	}
	return append([]*Definition(nil), r.byFile[path]...)
}

// ModuleForFile returns the module of the first definition registered
// from path, or nil.
func (r *Registry) ModuleForFile(path string) *modules.Module {
	var m *modules.Module
	r.read(func() {
		for _, d := range r.defs {
			if d.SourceFile == path {
				m = d.Module
				return
			}
		}
	})
	return m
}

// InModule returns the definitions of one module in registration order.
func (r *Registry) InModule(fullname string) []*Definition {
	var out []*Definition
	r.read(func() {
		if r.byModule != nil {
			out = append(out, r.byModule[fullname]...)
			return
		}
		for _, d := range r.defs {
			if d.ModuleName() == fullname {
				out = append(out, d)
			}
		}
	})
	return out
}

// Filter selects definitions. Empty fields match everything.
type Filter struct {
	Module string
	Kind   hclscan.Kind
	File   string
}

// Query returns the definitions matching f in registration order.
func (r *Registry) Query(f Filter) []*Definition {
	var out []*Definition
	for _, d := range r.All() {
		if f.Module != "" && d.ModuleName() != f.Module {
			continue
		}
		if f.Kind != "" && d.Kind != f.Kind {
			continue
		}
		if f.File != "" && d.SourceFile != f.File {
			continue
		}
		out = append(out, d)
	}
	return out
}

// IndexGroup is the set of definitions sharing an index letter.
type IndexGroup struct {
	Letter      string        `json:"letter"`
	Definitions []*Definition `json:"definitions"`
}

// IndexEntries groups definitions by the lowercased first letter of their
// name. Groups and their members are sorted.
func (r *Registry) IndexEntries() []IndexGroup {
	groups := make(map[string][]*Definition)
	for _, d := range r.All() {
		first, _ := utf8.DecodeRuneInString(d.Name())
		letter := string(unicode.ToLower(first))
		groups[letter] = append(groups[letter], d)
	}

	out := make([]IndexGroup, 0, len(groups))
	for letter, defs := range groups {
		sort.SliceStable(defs, func(i, j int) bool {
			if a, b := strings.ToLower(defs[i].Name()), strings.ToLower(defs[j].Name()); a != b {
				return a < b
			}
			return defs[i].Identifier() < defs[j].Identifier()
		})
		out = append(out, IndexGroup{Letter: letter, Definitions: defs})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Letter < out[j].Letter })
	return out
}
