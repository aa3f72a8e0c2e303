package modules

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"tfdoc/internal/config"
	"tfdoc/internal/errors"
	"tfdoc/internal/hclscan"
)

// FileScanner returns the definition blocks of one .tf file. Blocks found
// before a structural error are returned along with it.
type FileScanner interface {
	ScanFile(path string) ([]hclscan.Block, error)
}

// ScanFunc adapts a function to FileScanner.
type ScanFunc func(path string) ([]hclscan.Block, error)

// ScanFile calls f(path).
func (f ScanFunc) ScanFile(path string) ([]hclscan.Block, error) {
	return f(path)
}

// Options controls module discovery.
type Options struct {
	// DiscoverNested adds subdirectories holding .tf files as children
	// even when no module call references them.
	DiscoverNested bool
	// Ignore lists directory names never descended into.
	Ignore []string
}

// OptionsFromConfig extracts discovery options.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		DiscoverNested: cfg.Modules.DiscoverNested,
		Ignore:         append([]string(nil), cfg.Modules.Ignore...),
	}
}

// Builder constructs the module tree from configured roots.
type Builder struct {
	opts    Options
	scanner FileScanner
	logger  *slog.Logger
	ignore  map[string]bool
}

// NewBuilder creates a Builder. scanner is used to find module calls.
func NewBuilder(opts Options, scanner FileScanner, logger *slog.Logger) *Builder {
	ignore := make(map[string]bool, len(opts.Ignore))
	for _, dir := range opts.Ignore {
		ignore[dir] = true
	}
	return &Builder{opts: opts, scanner: scanner, logger: logger, ignore: ignore}
}

// BuildResult is the outcome of tree construction.
type BuildResult struct {
	Tree *Tree
	// Problems are recoverable: module cycles (STRUCTURAL_PARSE class,
	// code MODULE_CYCLE) and missing local module directories.
	Problems []*errors.TfdocError
}

// HasCycles reports whether any module cycle was pruned.
func (r *BuildResult) HasCycles() bool {
	for _, p := range r.Problems {
		if p.Code == errors.ModuleCycle {
			return true
		}
	}
	return false
}

// Build walks every root and its local module calls. A duplicate fullname
// or a missing root directory is returned as a fatal error.
func (b *Builder) Build(ctx context.Context, roots []config.RootSource) (*BuildResult, error) {
	res := &BuildResult{Tree: newTree()}

	sorted := append([]config.RootSource(nil), roots...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })

	for _, src := range sorted {
		dir, err := canonicalDir(src.Path)
		if err != nil {
			return nil, errors.New(errors.SourceNotFound,
				fmt.Sprintf("root module %q: directory %s not found", src.Name, src.Path), err)
		}

		root := newModule(src.Name, nil, dir, OriginRoot)
		if err := res.add(root); err != nil {
			return nil, err
		}
		res.Tree.Roots = append(res.Tree.Roots, root)

		if err := b.expand(ctx, res, root, map[string]bool{realPath(dir): true}); err != nil {
			return nil, err
		}
	}

	b.logger.Debug("Module tree built",
		"roots", len(res.Tree.Roots),
		"modules", res.Tree.Len(),
		"problems", len(res.Problems),
	)
	return res, nil
}

func (r *BuildResult) add(m *Module) error {
	if existing, ok := r.Tree.byFullname[m.Fullname]; ok {
		return errors.New(errors.DuplicateModule,
			fmt.Sprintf("module fullname %q is produced by both %s and %s", m.Fullname, existing.Path, m.Path), nil).
			WithDetails(map[string]interface{}{
				"fullname": m.Fullname,
				"paths":    []string{existing.Path, m.Path},
			})
	}
	r.Tree.byFullname[m.Fullname] = m
	r.Tree.byDir[m.Path] = append(r.Tree.byDir[m.Path], m)
	return nil
}

// expand discovers m's files and children, then recurses. ancestry holds
// the directories from the root down to m.
func (b *Builder) expand(ctx context.Context, res *BuildResult, m *Module, ancestry map[string]bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	files, err := listTerraformFiles(m.Path)
	if err != nil {
		return errors.New(errors.SourceNotFound, "cannot list module "+m.Fullname, err)
	}
	m.Files = files

	claimed := make(map[string]bool)
	var children []*Module

	for _, file := range files {
		blocks, scanErr := b.scanner.ScanFile(file)
		if scanErr != nil {
			// Reported by the definition pass, which sees the same result.
			b.logger.Debug("Module call discovery saw a scan error", "file", file, "error", scanErr)
		}
		for _, blk := range blocks {
			if blk.Kind != hclscan.KindModuleCall || len(blk.Labels) == 0 {
				continue
			}
			child := b.callChild(res, m, file, blk, ancestry)
			if child == nil {
				continue
			}
			claimed[child.Path] = true
			if err := res.add(child); err != nil {
				return err
			}
			m.Children = append(m.Children, child)
			children = append(children, child)
		}
	}

	if b.opts.DiscoverNested {
		nested, err := b.nestedChildren(m, "", m.Path, claimed)
		if err != nil {
			return err
		}
		for _, child := range nested {
			if err := res.add(child); err != nil {
				return err
			}
			m.Children = append(m.Children, child)
			children = append(children, child)
		}
	}

	for _, child := range children {
		key := realPath(child.Path)
		ancestry[key] = true
		err := b.expand(ctx, res, child, ancestry)
		delete(ancestry, key)
		if err != nil {
			return err
		}
	}
	return nil
}

// callChild creates the child module of a local, statically known module
// call. Remote and interpolated sources yield no child.
func (b *Builder) callChild(res *BuildResult, m *Module, file string, blk hclscan.Block, ancestry map[string]bool) *Module {
	label := blk.Labels[0]
	source, static, present := blk.Source()

	switch {
	case !present:
		b.logger.Warn("Module call has no source", "module", m.Fullname, "call", label, "file", file)
		return nil
	case !static:
		b.logger.Info("Module call source is not static; not expanded",
			"module", m.Fullname, "call", label, "source", source)
		return nil
	case !IsLocalSource(source):
		b.logger.Debug("Remote module source not expanded",
			"module", m.Fullname, "call", label, "source", source)
		return nil
	}

	dir, err := canonicalDir(filepath.Join(m.Path, filepath.FromSlash(source)))
	if err != nil {
		res.Problems = append(res.Problems, errors.New(errors.SourceNotFound,
			fmt.Sprintf("module call %q in %s: local source %s not found", label, m.Fullname, source), err).
			WithDetails(map[string]interface{}{"file": file, "line": blk.Range.Start.Line}))
		b.logger.Warn("Local module source not found", "module", m.Fullname, "call", label, "source", source)
		return nil
	}

	if ancestry[realPath(dir)] {
		res.Problems = append(res.Problems, errors.New(errors.ModuleCycle,
			fmt.Sprintf("module call %q in %s points back to ancestor directory %s", label, m.Fullname, dir), nil).
			WithDetails(map[string]interface{}{"file": file, "line": blk.Range.Start.Line}))
		b.logger.Warn("Module cycle pruned", "module", m.Fullname, "call", label, "source", source)
		return nil
	}

	return newModule(label, m, dir, OriginCall)
}

// nestedChildren finds directories below dir holding .tf files that no
// module call claimed. Directories without .tf files are searched through,
// so names may contain slashes.
func (b *Builder) nestedChildren(m *Module, rel, dir string, claimed map[string]bool) ([]*Module, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.New(errors.SourceNotFound, "cannot read "+dir, err)
	}

	var out []*Module
	for _, entry := range entries {
		if !entry.IsDir() || strings.HasPrefix(entry.Name(), ".") || b.ignore[entry.Name()] {
			continue
		}
		childDir := filepath.Join(dir, entry.Name())
		childRel := entry.Name()
		if rel != "" {
			childRel = rel + "/" + entry.Name()
		}
		if claimed[childDir] {
			continue
		}

		files, err := listTerraformFiles(childDir)
		if err != nil {
			return nil, errors.New(errors.SourceNotFound, "cannot list "+childDir, err)
		}
		if len(files) > 0 {
			out = append(out, newModule(childRel, m, childDir, OriginNested))
			continue
		}

		deeper, err := b.nestedChildren(m, childRel, childDir, claimed)
		if err != nil {
			return nil, err
		}
		out = append(out, deeper...)
	}
	return out, nil
}

// IsLocalSource reports whether a module source is a local relative path.
func IsLocalSource(source string) bool {
	return strings.HasPrefix(source, "./") || strings.HasPrefix(source, "../") ||
		source == "." || source == ".."
}

// listTerraformFiles returns the sorted .tf files directly inside dir.
func listTerraformFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var files []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".tf") {
			continue
		}
		files = append(files, filepath.Join(dir, entry.Name()))
	}
	sort.Strings(files)
	return files, nil
}

func canonicalDir(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	info, err := os.Stat(abs)
	if err != nil {
		return "", err
	}
	if !info.IsDir() {
		return "", fmt.Errorf("%s is not a directory", abs)
	}
	return filepath.Clean(abs), nil
}

// realPath resolves symlinks for cycle detection, falling back to path.
func realPath(path string) string {
	if resolved, err := filepath.EvalSymlinks(path); err == nil {
		return resolved
	}
	return path
}
