// Package build runs one documentation build: module discovery, then
// definition registration, then freeze.
package build

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"tfdoc/internal/comment"
	"tfdoc/internal/config"
	"tfdoc/internal/errors"
	"tfdoc/internal/hclscan"
	"tfdoc/internal/markup"
	"tfdoc/internal/modules"
	"tfdoc/internal/registry"
	"tfdoc/internal/xref"
)

// Builder runs builds for one configuration.
type Builder struct {
	cfg    *config.Config
	logger *slog.Logger
}

// New creates a Builder.
func New(cfg *config.Config, logger *slog.Logger) *Builder {
	return &Builder{cfg: cfg, logger: logger}
}

// Result is the outcome of a build that was not aborted.
type Result struct {
	BuildID  string        `json:"buildId"`
	Started  time.Time     `json:"started"`
	Duration time.Duration `json:"duration"`

	Tree     *modules.Tree      `json:"-"`
	Registry *registry.Registry `json:"-"`

	// ModuleProblems come from tree construction: cycles and missing
	// local module sources.
	ModuleProblems []*errors.TfdocError `json:"moduleProblems,omitempty"`
	// FileErrors are structural parse errors, one per file.
	FileErrors []*errors.TfdocError `json:"fileErrors,omitempty"`
	// Warnings are recoverable per-definition problems such as
	// truncated comments or blocks with a wrong label count.
	Warnings []*errors.TfdocError `json:"warnings,omitempty"`
	// DefinitionErrors stop one definition from rendering.
	DefinitionErrors []*errors.TfdocError `json:"definitionErrors,omitempty"`

	FilesScanned int `json:"filesScanned"`

	globalMarkup string
	logger       *slog.Logger
}

// Failed reports whether any file failed to parse or a module cycle was
// pruned.
func (r *Result) Failed() bool {
	if len(r.FileErrors) > 0 {
		return true
	}
	for _, p := range r.ModuleProblems {
		if p.Code == errors.ModuleCycle {
			return true
		}
	}
	return false
}

// Resolver returns a resolver over the frozen registry.
func (r *Result) Resolver() (*xref.Resolver, error) {
	return xref.NewResolver(r.Registry, r.Tree, xref.Options{
		GlobalMarkup: r.globalMarkup,
		Logger:       r.logger,
	})
}

// Logger is the build logger, stamped with the build ID.
func (r *Result) Logger() *slog.Logger {
	return r.logger
}

type pending struct {
	module *modules.Module
	file   string
	order  int
}

type produced struct {
	defs     []*registry.Definition
	warnings []*errors.TfdocError
}

// Run performs a full build. Duplicate modules or definitions, a missing
// root and cancellation abort it; everything else is collected in the
// result.
func (b *Builder) Run(ctx context.Context) (*Result, error) {
	id := uuid.New().String()
	logger := b.logger.With("build_id", id)
	res := &Result{
		BuildID:      id,
		Started:      time.Now(),
		Registry:     registry.New(),
		globalMarkup: b.cfg.TerraformCommentMarkup,
		logger:       logger,
	}

	sources := b.cfg.Sources()
	opts := modules.OptionsFromConfig(b.cfg)
	ignore := make(map[string]bool, len(opts.Ignore))
	for _, dir := range opts.Ignore {
		ignore[dir] = true
	}

	cache := newScanCache()
	var files []string
	for _, src := range sources {
		files = append(files, terraformFiles(src.Path, opts.DiscoverNested, ignore)...)
	}
	if err := cache.prefetch(ctx, files, b.cfg.Scan.Workers); err != nil {
		return nil, err
	}
	logger.Debug("Prefetched Terraform files", "files", len(files), "workers", b.cfg.Scan.Workers)

	// Pass A: the module tree.
	tree, err := modules.NewBuilder(opts, cache, logger).Build(ctx, sources)
	if err != nil {
		return nil, err
	}
	res.Tree = tree.Tree
	res.ModuleProblems = tree.Problems

	// Pass B: definitions, produced in parallel and registered in tree
	// and file order by this goroutine alone.
	var work []pending
	for _, m := range res.Tree.All() {
		for _, f := range m.Files {
			work = append(work, pending{module: m, file: f, order: len(work)})
		}
	}

	lang, markupErr := markup.Select("", b.cfg.TerraformCommentMarkup, b.cfg.DocumentMarkup)
	if markupErr != nil {
		logger.Warn("No markup language configured; definitions cannot be rendered",
			"error", markupErr)
	}

	out := make([]produced, len(work))
	fileErrs := make(map[string]*errors.TfdocError)
	g, gctx := errgroup.WithContext(ctx)
	if b.cfg.Scan.Workers > 0 {
		g.SetLimit(b.cfg.Scan.Workers)
	}
	for _, w := range work {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			blocks, _ := cache.ScanFile(w.file)
			out[w.order] = definitionsFor(w.module, w.file, blocks, lang, markupErr)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for _, w := range work {
		if _, scanErr := cache.ScanFile(w.file); scanErr != nil {
			if _, seen := fileErrs[w.file]; !seen {
				fileErrs[w.file] = asTfdoc(scanErr)
				logger.Warn("File skipped after structural error", "file", w.file, "error", scanErr)
			}
		}
		p := out[w.order]
		for _, warn := range p.warnings {
			logger.Warn("Definition problem", "file", w.file, "code", string(warn.Code), "error", warn.Message)
		}
		res.Warnings = append(res.Warnings, p.warnings...)
		for _, d := range p.defs {
			if err := res.Registry.Register(d); err != nil {
				return nil, err
			}
			if d.MarkupErr != nil {
				res.DefinitionErrors = append(res.DefinitionErrors,
					errors.New(errors.UnknownMarkupLanguage, "cannot render "+d.Identifier(), d.MarkupErr).
						WithDetails(map[string]interface{}{"identifier": d.Identifier()}))
			}
		}
	}

	res.FileErrors = sortedFileErrors(fileErrs)
	res.FilesScanned = cache.len()

	if err := res.Registry.Freeze(); err != nil {
		return nil, errors.New(errors.InternalError, "freeze registry", err)
	}
	res.Duration = time.Since(res.Started)

	logger.Info("Build finished",
		"modules", res.Tree.Len(),
		"definitions", res.Registry.Len(),
		"files", res.FilesScanned,
		"file_errors", len(res.FileErrors),
		"warnings", len(res.Warnings),
		"duration_ms", res.Duration.Milliseconds(),
	)
	return res, nil
}

// definitionsFor turns the blocks of one file into definitions of m.
func definitionsFor(m *modules.Module, file string, blocks []hclscan.Block, lang markup.Language, markupErr error) produced {
	var p produced
	for _, blk := range blocks {
		if len(blk.Labels) != blk.Kind.Arity() {
			p.warnings = append(p.warnings, errors.New(errors.StructuralParse,
				fmt.Sprintf("%s:%d: %s block has %d labels, want %d; skipped",
					file, blk.Range.Start.Line, blk.Kind.Keyword(), len(blk.Labels), blk.Kind.Arity()), nil).
				WithDetails(map[string]interface{}{"file": file, "line": blk.Range.Start.Line}))
			continue
		}

		d := registry.FromBlock(m, file, blk)
		if blk.Comment != nil {
			norm := comment.NormalizeStyle(blk.Comment.Style, blk.Comment.Lines)
			d.DocText = norm.Text
			d.DocTruncated = norm.Truncated
			if w := norm.Warning(); w != nil {
				line := blk.Comment.Range.Start.Line + norm.TruncatedAt
				w.Message = fmt.Sprintf("%s:%d: %s: %s", file, line, d.DisplayName(), w.Message)
				w.Details = map[string]interface{}{"file": file, "line": line, "identifier": d.Identifier()}
				p.warnings = append(p.warnings, w)
			}
		}
		d.Markup, d.MarkupErr = lang, markupErr
		p.defs = append(p.defs, d)
	}
	return p
}

func asTfdoc(err error) *errors.TfdocError {
	var te *errors.TfdocError
	if stderrors.As(err, &te) {
		return te
	}
	return errors.New(errors.StructuralParse, err.Error(), err)
}

func sortedFileErrors(m map[string]*errors.TfdocError) []*errors.TfdocError {
	files := make([]string, 0, len(m))
	for f := range m {
		files = append(files, f)
	}
	sort.Strings(files)
	out := make([]*errors.TfdocError, len(files))
	for i, f := range files {
		out[i] = m[f]
	}
	return out
}
