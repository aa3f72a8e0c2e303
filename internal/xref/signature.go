// Package xref resolves textual references to registered definitions.
package xref

import (
	"fmt"
	"strings"

	"tfdoc/internal/errors"
	"tfdoc/internal/hclscan"
)

// Signature is a parsed reference:
//
//	[module-path "/"] [kind ":"] label ("." label)*
type Signature struct {
	Raw string `json:"raw"`
	// Module is the path prefix, empty when none was written.
	Module string       `json:"module,omitempty"`
	Kind   hclscan.Kind `json:"kind,omitempty"`
	Labels []string     `json:"labels"`
}

// ParseSignature decomposes raw. Empty segments, an unknown kind, or more
// labels than the kind declares are INVALID_SIGNATURE errors.
func ParseSignature(raw string) (Signature, error) {
	s := strings.TrimSpace(raw)
	sig := Signature{Raw: s}
	if s == "" {
		return sig, invalid(raw, "empty reference")
	}

	name := s
	if i := strings.LastIndex(s, "/"); i >= 0 {
		sig.Module, name = s[:i], s[i+1:]
		for _, seg := range strings.Split(sig.Module, "/") {
			if seg == "" {
				return sig, invalid(raw, "empty module path segment")
			}
		}
	}

	if i := strings.Index(name, ":"); i >= 0 {
		kind, ok := hclscan.ParseKind(name[:i])
		if !ok {
			return sig, invalid(raw, fmt.Sprintf("unknown kind %q", name[:i]))
		}
		sig.Kind, name = kind, name[i+1:]
	}

	sig.Labels = strings.Split(name, ".")
	for _, l := range sig.Labels {
		if l == "" {
			return sig, invalid(raw, "empty label")
		}
		if strings.ContainsAny(l, ": \t") {
			return sig, invalid(raw, fmt.Sprintf("bad label %q", l))
		}
	}
	if sig.Kind != "" && len(sig.Labels) > sig.Kind.Arity() {
		return sig, invalid(raw, fmt.Sprintf("%s takes at most %d labels", sig.Kind.Keyword(), sig.Kind.Arity()))
	}
	return sig, nil
}

func invalid(raw, why string) error {
	return errors.New(errors.InvalidSignature, fmt.Sprintf("invalid reference %q: %s", raw, why), nil).
		WithDetails(map[string]interface{}{"signature": raw})
}

// HasModule reports whether a module path prefix was written.
func (s Signature) HasModule() bool {
	return s.Module != ""
}

// Name is the dotted label sequence.
func (s Signature) Name() string {
	return strings.Join(s.Labels, ".")
}

func (s Signature) String() string {
	var b strings.Builder
	if s.Module != "" {
		b.WriteString(s.Module)
		b.WriteByte('/')
	}
	if s.Kind != "" {
		b.WriteString(s.Kind.Keyword())
		b.WriteByte(':')
	}
	b.WriteString(s.Name())
	return b.String()
}
