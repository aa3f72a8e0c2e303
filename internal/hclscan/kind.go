package hclscan

import "sort"

// Kind is a definable Terraform block kind.
type Kind string

const (
	KindResource   Kind = "resource"
	KindData       Kind = "data"
	KindVariable   Kind = "variable"
	KindOutput     Kind = "output"
	KindModuleCall Kind = "module_call"
)

var blockTypes = map[string]Kind{
	"resource": KindResource,
	"data":     KindData,
	"variable": KindVariable,
	"output":   KindOutput,
	"module":   KindModuleCall,
}

// KindFromBlockType maps a block type keyword to its kind.
func KindFromBlockType(blockType string) (Kind, bool) {
	k, ok := blockTypes[blockType]
	return k, ok
}

// ParseKind accepts either a block keyword ("module") or a kind name
// ("module_call").
func ParseKind(s string) (Kind, bool) {
	if k, ok := blockTypes[s]; ok {
		return k, true
	}
	if Kind(s) == KindModuleCall {
		return KindModuleCall, true
	}
	return "", false
}

// Keyword returns the block type keyword that declares this kind.
func (k Kind) Keyword() string {
	if k == KindModuleCall {
		return "module"
	}
	return string(k)
}

// Kinds returns all kinds in a stable order.
func Kinds() []Kind {
	out := make([]Kind, 0, len(blockTypes))
	for _, k := range blockTypes {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Arity is the number of labels a block of this kind declares.
func (k Kind) Arity() int {
	switch k {
	case KindResource, KindData:
		return 2
	default:
		return 1
	}
}
