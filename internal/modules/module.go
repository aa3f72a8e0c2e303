package modules

import (
	"path/filepath"
	"sort"
)

// Origin records how a module was discovered.
type Origin string

const (
	// OriginRoot is a module named in configuration.
	OriginRoot Origin = "root"
	// OriginCall is a directory referenced by a local module call.
	OriginCall Origin = "call"
	// OriginNested is a directory found below its parent's directory.
	OriginNested Origin = "nested"
)

// Module is a directory of Terraform files, possibly with child modules.
// Parents own their children; Parent is a back-reference only.
type Module struct {
	// Name is the module's own name: the root name, the module call label,
	// or the directory path relative to the parent for nested modules.
	Name string `json:"name"`

	// Fullname is the slash-joined chain of ancestor names, unique in a tree.
	Fullname string `json:"fullname"`

	// Path is the absolute, cleaned directory of the module.
	Path string `json:"path"`

	Origin Origin `json:"origin"`

	// Files are the module's .tf files, sorted.
	Files []string `json:"files"`

	Parent   *Module   `json:"-"`
	Children []*Module `json:"children,omitempty"`
}

// newModule derives the fullname from parent. The caller links the child
// into parent.Children once it is accepted into the tree.
func newModule(name string, parent *Module, path string, origin Origin) *Module {
	m := &Module{
		Name:     name,
		Fullname: name,
		Path:     filepath.Clean(path),
		Origin:   origin,
		Parent:   parent,
	}
	if parent != nil {
		m.Fullname = parent.Fullname + "/" + name
	}
	return m
}

// NewRoot returns a detached root module. Builders and tests that
// assemble trees by hand start here.
func NewRoot(name, path string) *Module {
	return newModule(name, nil, path, OriginRoot)
}

// AddChild creates a child of m and links it into m.Children.
func (m *Module) AddChild(name, path string, origin Origin) *Module {
	c := newModule(name, m, path, origin)
	m.Children = append(m.Children, c)
	return c
}

// IsRoot reports whether the module has no parent.
func (m *Module) IsRoot() bool {
	return m.Parent == nil
}

// Root returns the root module of m's tree.
func (m *Module) Root() *Module {
	for m.Parent != nil {
		m = m.Parent
	}
	return m
}

// Depth is the number of ancestors, 0 for roots.
func (m *Module) Depth() int {
	d := 0
	for p := m.Parent; p != nil; p = p.Parent {
		d++
	}
	return d
}

// Walk visits m and its descendants in pre-order until fn returns false.
func (m *Module) Walk(fn func(*Module) bool) bool {
	if !fn(m) {
		return false
	}
	for _, c := range m.Children {
		if !c.Walk(fn) {
			return false
		}
	}
	return true
}

func (m *Module) String() string {
	return m.Fullname
}

// Tree is the set of modules reachable from the configured roots.
type Tree struct {
	Roots      []*Module
	byFullname map[string]*Module
	byDir      map[string][]*Module
}

func newTree() *Tree {
	return &Tree{
		byFullname: make(map[string]*Module),
		byDir:      make(map[string][]*Module),
	}
}

// NewTree indexes hand-assembled roots and their descendants. Colliding
// fullnames are a DUPLICATE_MODULE error.
func NewTree(roots ...*Module) (*Tree, error) {
	res := &BuildResult{Tree: newTree()}
	sorted := append([]*Module(nil), roots...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })
	for _, r := range sorted {
		var err error
		r.Walk(func(m *Module) bool {
			err = res.add(m)
			return err == nil
		})
		if err != nil {
			return nil, err
		}
		res.Tree.Roots = append(res.Tree.Roots, r)
	}
	return res.Tree, nil
}

// Lookup returns the module with the given fullname, or nil.
func (t *Tree) Lookup(fullname string) *Module {
	return t.byFullname[fullname]
}

// ForDir returns the modules rooted at dir. A directory called from
// several places yields several modules.
func (t *Tree) ForDir(dir string) []*Module {
	return t.byDir[filepath.Clean(dir)]
}

// Root returns the root module with the given name, or nil.
func (t *Tree) Root(name string) *Module {
	for _, r := range t.Roots {
		if r.Name == name {
			return r
		}
	}
	return nil
}

// All returns every module, roots in name order, each followed by its
// descendants in pre-order.
func (t *Tree) All() []*Module {
	var out []*Module
	for _, r := range t.Roots {
		r.Walk(func(m *Module) bool {
			out = append(out, m)
			return true
		})
	}
	return out
}

// Fullnames returns all module fullnames, sorted.
func (t *Tree) Fullnames() []string {
	names := make([]string, 0, len(t.byFullname))
	for n := range t.byFullname {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Len is the number of modules in the tree.
func (t *Tree) Len() int {
	return len(t.byFullname)
}
