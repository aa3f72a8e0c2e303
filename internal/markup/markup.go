// Package markup picks the markup language a documentation comment is
// rendered with.
package markup

import (
	"strings"

	"tfdoc/internal/errors"
)

// Language is a documentation markup language.
type Language string

const (
	// Unknown is the zero value; no level of the cascade supplied a value.
	Unknown          Language = ""
	RestructuredText Language = "restructuredtext"
	Markdown         Language = "markdown"
)

var markdownAliases = map[string]bool{
	"md":       true,
	"markdown": true,
	"myst":     true,
}

// Normalize maps a configured value to a Language. Matching is
// case-insensitive; md, markdown and myst are markdown and every other
// non-empty value is restructuredtext. ok is false for a blank value.
func Normalize(value string) (Language, bool) {
	v := strings.ToLower(strings.TrimSpace(value))
	if v == "" {
		return Unknown, false
	}
	if markdownAliases[v] {
		return Markdown, true
	}
	return RestructuredText, true
}

// Level names a step of the cascade.
type Level string

const (
	LevelOverride Level = "override"
	LevelGlobal   Level = "global"
	LevelContext  Level = "context"
)

// Choice is a selected language and the level that supplied it.
type Choice struct {
	Language Language `json:"language"`
	Level    Level    `json:"level"`
}

// Choose applies the cascade: a per-inclusion override, then the global
// default, then the including document's own language.
func Choose(override, global, context string) (Choice, error) {
	levels := []struct {
		level Level
		value string
	}{
		{LevelOverride, override},
		{LevelGlobal, global},
		{LevelContext, context},
	}
	for _, l := range levels {
		if lang, ok := Normalize(l.value); ok {
			return Choice{Language: lang, Level: l.level}, nil
		}
	}
	return Choice{}, errors.New(errors.UnknownMarkupLanguage,
		"no markup language given by the inclusion, the configuration or the document", nil)
}

// Select is Choose without the level.
func Select(override, global, context string) (Language, error) {
	c, err := Choose(override, global, context)
	return c.Language, err
}

// Extension returns the conventional file extension for l.
func (l Language) Extension() string {
	switch l {
	case Markdown:
		return ".md"
	case RestructuredText:
		return ".rst"
	default:
		return ""
	}
}

func (l Language) String() string {
	if l == Unknown {
		return "unknown"
	}
	return string(l)
}
