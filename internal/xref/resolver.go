package xref

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"tfdoc/internal/errors"
	"tfdoc/internal/hclscan"
	"tfdoc/internal/markup"
	"tfdoc/internal/modules"
	"tfdoc/internal/registry"
	"tfdoc/internal/slogutil"
)

// Level is the specificity step that produced a resolution.
type Level int

const (
	// LevelQualified matches the written module path exactly.
	LevelQualified Level = 1
	// LevelContext matches within the caller's own module.
	LevelContext Level = 2
	// LevelLabels matches the full label sequence in any module.
	LevelLabels Level = 3
	// LevelTrailing matches the last label in any module and kind.
	LevelTrailing Level = 4
)

func (l Level) String() string {
	switch l {
	case LevelQualified:
		return "qualified"
	case LevelContext:
		return "context"
	case LevelLabels:
		return "labels"
	case LevelTrailing:
		return "trailing"
	default:
		return fmt.Sprintf("level(%d)", int(l))
	}
}

// Context is where a reference is written.
type Context struct {
	// Module is the default module fullname of the including document.
	Module string
	// Kind restricts resolution to one kind, as a typed reference does.
	Kind hclscan.Kind
	// Location describes the point of use for error messages.
	Location string
}

// Resolution is a successful lookup.
type Resolution struct {
	Signature  Signature            `json:"signature"`
	Definition *registry.Definition `json:"definition"`
	Level      Level                `json:"level"`
}

// Options configure a Resolver.
type Options struct {
	// GlobalMarkup is the configured comment markup default.
	GlobalMarkup string
	Logger       *slog.Logger
}

// Resolver looks up references in a frozen registry. It holds no
// mutable state and is safe for concurrent use.
type Resolver struct {
	reg    *registry.Registry
	tree   *modules.Tree
	opts   Options
	logger *slog.Logger
}

// NewResolver fails with REGISTRY_OPEN unless reg is frozen.
func NewResolver(reg *registry.Registry, tree *modules.Tree, opts Options) (*Resolver, error) {
	if !reg.Frozen() {
		return nil, errors.New(errors.RegistryOpen, "references can only be resolved after the registry is frozen", nil)
	}
	logger := opts.Logger
	if logger == nil {
		logger = slogutil.NewDiscardLogger()
	}
	return &Resolver{reg: reg, tree: tree, opts: opts, logger: logger}, nil
}

// Resolve parses raw and resolves it from ctx.
func (r *Resolver) Resolve(raw string, ctx Context) (*Resolution, error) {
	sig, err := ParseSignature(raw)
	if err != nil {
		return nil, err
	}
	return r.ResolveSignature(sig, ctx)
}

// ResolveSignature tries each level from the most specific down and stops
// at the first that yields candidates. More than one candidate there is
// AMBIGUOUS_REFERENCE; nothing at any level is UNRESOLVED_REFERENCE.
func (r *Resolver) ResolveSignature(sig Signature, ctx Context) (*Resolution, error) {
	kind := sig.Kind
	if ctx.Kind != "" {
		if kind != "" && kind != ctx.Kind {
			return nil, errors.New(errors.InvalidSignature,
				fmt.Sprintf("reference %q names kind %s where a %s is expected", sig.Raw, kind.Keyword(), ctx.Kind.Keyword()), nil)
		}
		kind = ctx.Kind
	}

	for _, level := range []Level{LevelQualified, LevelContext, LevelLabels, LevelTrailing} {
		cands := r.candidates(level, sig, kind, ctx)
		switch len(cands) {
		case 0:
			continue
		case 1:
			r.logger.Debug("Reference resolved",
				"signature", sig.Raw,
				"level", level.String(),
				"identifier", cands[0].Identifier(),
			)
			return &Resolution{Signature: sig, Definition: cands[0], Level: level}, nil
		default:
			return nil, ambiguous(sig, ctx, level, cands)
		}
	}

	return nil, errors.New(errors.UnresolvedReference,
		fmt.Sprintf("reference %q%s could not be resolved", sig.Raw, at(ctx)), nil).
		WithDetails(map[string]interface{}{
			"signature": sig.Raw,
			"location":  ctx.Location,
			"context":   ctx.Module,
		})
}

func (r *Resolver) candidates(level Level, sig Signature, kind hclscan.Kind, ctx Context) []*registry.Definition {
	switch level {
	case LevelQualified:
		if !sig.HasModule() {
			return nil
		}
		return r.exact(sig.Module, kind, sig.Labels)
	case LevelContext:
		if ctx.Module == "" {
			return nil
		}
		module := ctx.Module
		if sig.HasModule() {
			module += "/" + sig.Module
		}
		return r.exact(module, kind, sig.Labels)
	case LevelLabels:
		return r.scoped(sig, r.reg.LookupBySuffix(kind, sig.Labels))
	case LevelTrailing:
		if len(sig.Labels) < 2 {
			return nil
		}
		return r.scoped(sig, r.reg.LookupBySuffix(kind, sig.Labels[len(sig.Labels)-1:]))
	}
	return nil
}

func (r *Resolver) exact(module string, kind hclscan.Kind, labels []string) []*registry.Definition {
	kinds := []hclscan.Kind{kind}
	if kind == "" {
		kinds = hclscan.Kinds()
	}
	var out []*registry.Definition
	for _, k := range kinds {
		if d := r.reg.LookupExact(module, k, labels); d != nil {
			out = append(out, d)
		}
	}
	return out
}

// scoped keeps the candidates whose module fullname is the written prefix
// or ends with it.
func (r *Resolver) scoped(sig Signature, defs []*registry.Definition) []*registry.Definition {
	if !sig.HasModule() {
		return defs
	}
	var out []*registry.Definition
	for _, d := range defs {
		name := d.ModuleName()
		if name == sig.Module || strings.HasSuffix(name, "/"+sig.Module) {
			out = append(out, d)
		}
	}
	return out
}

func ambiguous(sig Signature, ctx Context, level Level, cands []*registry.Definition) error {
	ids := make([]string, len(cands))
	for i, d := range cands {
		ids[i] = d.Identifier()
	}
	sort.Strings(ids)
	return errors.New(errors.AmbiguousReference,
		fmt.Sprintf("reference %q%s is ambiguous: %s", sig.Raw, at(ctx), strings.Join(ids, ", ")), nil).
		WithDetails(map[string]interface{}{
			"signature":  sig.Raw,
			"location":   ctx.Location,
			"level":      level.String(),
			"candidates": ids,
		})
}

func at(ctx Context) string {
	if ctx.Location == "" {
		return ""
	}
	return " at " + ctx.Location
}

// Candidates returns the identifiers of an ambiguous reference error.
func Candidates(err error) []string {
	var te *errors.TfdocError
	if !stderrors.As(err, &te) || te.Code != errors.AmbiguousReference {
		return nil
	}
	if details, ok := te.Details.(map[string]interface{}); ok {
		ids, _ := details["candidates"].([]string)
		return ids
	}
	return nil
}

// ContextFor builds a resolution context from explicit root module and
// submodule options. The root may be omitted only when there is a single
// root module.
func (r *Resolver) ContextFor(rootModule, module string) (Context, error) {
	var root *modules.Module
	switch {
	case rootModule != "":
		root = r.tree.Root(rootModule)
		if root == nil {
			return Context{}, errors.New(errors.UnknownRootModule,
				fmt.Sprintf("unknown root module %q", rootModule), nil).
				WithDetails(map[string]interface{}{"known": rootNames(r.tree)})
		}
	case len(r.tree.Roots) == 1:
		root = r.tree.Roots[0]
	default:
		return Context{}, errors.New(errors.UnknownRootModule,
			fmt.Sprintf("a root module must be named; the build has %d", len(r.tree.Roots)), nil).
			WithDetails(map[string]interface{}{"known": rootNames(r.tree)})
	}

	sub := strings.Trim(strings.TrimPrefix(module, "./"), "/")
	if sub == "" || sub == "." {
		return Context{Module: root.Fullname}, nil
	}
	fullname := root.Fullname + "/" + sub
	if r.tree.Lookup(fullname) == nil {
		return Context{}, errors.New(errors.SourceNotFound,
			fmt.Sprintf("module %q not found under root %q", sub, root.Name), nil)
	}
	return Context{Module: fullname}, nil
}

func rootNames(t *modules.Tree) []string {
	names := make([]string, len(t.Roots))
	for i, m := range t.Roots {
		names[i] = m.Name
	}
	return names
}

// IncludeOptions are the options given at an inclusion point.
type IncludeOptions struct {
	// Markup overrides the language for this inclusion.
	Markup string
	// RootModule and Module set the context explicitly. When both are
	// empty Context is used as is.
	RootModule string
	Module     string
	Context    Context
	// DocumentMarkup is the language of the including document.
	DocumentMarkup string
}

// Inclusion is a resolved definition ready for rendering.
type Inclusion struct {
	Resolution
	Markup      markup.Language `json:"markup"`
	MarkupLevel markup.Level    `json:"markupLevel"`
}

// Include resolves raw for an inclusion and picks its markup language.
func (r *Resolver) Include(raw string, opts IncludeOptions) (*Inclusion, error) {
	ctx := opts.Context
	if opts.RootModule != "" || opts.Module != "" {
		c, err := r.ContextFor(opts.RootModule, opts.Module)
		if err != nil {
			return nil, err
		}
		c.Kind, c.Location = ctx.Kind, ctx.Location
		ctx = c
	}

	res, err := r.Resolve(raw, ctx)
	if err != nil {
		return nil, err
	}

	choice, err := markup.Choose(opts.Markup, r.opts.GlobalMarkup, opts.DocumentMarkup)
	if err != nil {
		return nil, errors.New(errors.UnknownMarkupLanguage,
			fmt.Sprintf("cannot render %s%s", res.Definition.DisplayName(), at(ctx)), err)
	}
	return &Inclusion{Resolution: *res, Markup: choice.Language, MarkupLevel: choice.Level}, nil
}

// Reference is one use of a signature in a document.
type Reference struct {
	Signature string  `json:"signature"`
	Document  string  `json:"document,omitempty"`
	Context   Context `json:"-"`
}

// Outcome pairs a reference with its result.
type Outcome struct {
	Reference  Reference   `json:"reference"`
	Resolution *Resolution `json:"resolution,omitempty"`
	Err        error       `json:"-"`
}

// Report is the result of ResolveAll.
type Report struct {
	Outcomes []Outcome `json:"outcomes"`
	// Usage maps definition identifiers to the sorted documents that
	// referenced them.
	Usage map[string][]string `json:"usage"`
}

// Failed returns the outcomes that did not resolve.
func (r *Report) Failed() []Outcome {
	var out []Outcome
	for _, o := range r.Outcomes {
		if o.Err != nil {
			out = append(out, o)
		}
	}
	return out
}

// ResolveAll resolves refs concurrently, at most workers at a time, and
// keeps the input order in the report. Reference failures are recorded
// per outcome; only cancellation returns an error.
func (r *Resolver) ResolveAll(ctx context.Context, refs []Reference, workers int) (*Report, error) {
	outcomes := make([]Outcome, len(refs))

	g, gctx := errgroup.WithContext(ctx)
	if workers > 0 {
		g.SetLimit(workers)
	}
	for i, ref := range refs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			res, err := r.Resolve(ref.Signature, ref.Context)
			outcomes[i] = Outcome{Reference: ref, Resolution: res, Err: err}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	usage := make(map[string][]string)
	for _, o := range outcomes {
		if o.Resolution == nil {
			continue
		}
		id := o.Resolution.Definition.Identifier()
		if _, ok := usage[id]; !ok {
			usage[id] = []string{}
		}
		if o.Reference.Document != "" {
			usage[id] = appendUnique(usage[id], o.Reference.Document)
		}
	}
	for id := range usage {
		sort.Strings(usage[id])
	}

	report := &Report{Outcomes: outcomes, Usage: usage}
	if failed := len(report.Failed()); failed > 0 {
		r.logger.Warn("References failed to resolve", "failed", failed, "total", len(refs))
	}
	return report, nil
}

func appendUnique(list []string, s string) []string {
	for _, v := range list {
		if v == s {
			return list
		}
	}
	return append(list, s)
}
