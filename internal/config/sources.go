package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	toml "github.com/pelletier/go-toml/v2"
)

// RootSource is one configured root module.
type RootSource struct {
	Name string `json:"name" toml:"name"`
	Path string `json:"path" toml:"path"`
}

type rootModuleKind int

const (
	rootModuleUnset rootModuleKind = iota
	rootModuleSingle
	rootModuleMultiple
)

// RootModuleConfig is either a single root module or several named ones.
// Construct it with Single, SingleFromPath or Multiple.
type RootModuleConfig struct {
	kind     rootModuleKind
	single   RootSource
	multiple []RootSource
}

// Single configures one root module with an explicit name.
func Single(name, path string) RootModuleConfig {
	return RootModuleConfig{kind: rootModuleSingle, single: RootSource{Name: name, Path: path}}
}

// SingleFromPath configures one root module named after the base of its
// absolute path.
func SingleFromPath(path string) RootModuleConfig {
	return RootModuleConfig{kind: rootModuleSingle, single: RootSource{Path: path}}
}

// Multiple configures several independent root modules.
func Multiple(sources ...RootSource) RootModuleConfig {
	return RootModuleConfig{kind: rootModuleMultiple, multiple: append([]RootSource(nil), sources...)}
}

// MultipleFromMap configures root modules from a name to path mapping.
func MultipleFromMap(m map[string]string) RootModuleConfig {
	sources := make([]RootSource, 0, len(m))
	for name, path := range m {
		sources = append(sources, RootSource{Name: name, Path: path})
	}
	return Multiple(sources...)
}

// IsZero reports whether no root module was configured.
func (c RootModuleConfig) IsZero() bool {
	return c.kind == rootModuleUnset
}

// IsSingle reports whether exactly one root module was configured as a single pair.
func (c RootModuleConfig) IsSingle() bool {
	return c.kind == rootModuleSingle
}

// Sources returns the root modules sorted by name. Names may be empty for
// SingleFromPath until paths are resolved; see Config.Sources.
func (c RootModuleConfig) Sources() []RootSource {
	switch c.kind {
	case rootModuleSingle:
		return []RootSource{c.single}
	case rootModuleMultiple:
		out := append([]RootSource(nil), c.multiple...)
		sort.SliceStable(out, func(i, j int) bool { return out[i].Name < out[j].Name })
		return out
	default:
		return nil
	}
}

// MarshalJSON writes the single form as a bare path when unnamed, and the
// multiple form as a name to path object.
func (c RootModuleConfig) MarshalJSON() ([]byte, error) {
	switch c.kind {
	case rootModuleSingle:
		if c.single.Name == "" {
			return json.Marshal(c.single.Path)
		}
		return json.Marshal(map[string]string{c.single.Name: c.single.Path})
	case rootModuleMultiple:
		m := make(map[string]string, len(c.multiple))
		for _, src := range c.multiple {
			m[src.Name] = src.Path
		}
		return json.Marshal(m)
	default:
		return []byte("null"), nil
	}
}

// ParseRootModuleConfig converts a decoded terraformSources value.
// Accepted shapes are a path string, a name to path mapping, or a list of
// {name, path} tables. A nil value yields the zero config.
//
// Mapping keys pass through viper, which lowercases them. Use tfdoc.toml
// when root names need uppercase letters.
func ParseRootModuleConfig(raw interface{}) (RootModuleConfig, error) {
	switch v := raw.(type) {
	case nil:
		return RootModuleConfig{}, nil
	case string:
		if v == "" {
			return RootModuleConfig{}, nil
		}
		return SingleFromPath(v), nil
	case map[string]string:
		return MultipleFromMap(v), nil
	case map[string]interface{}:
		m := make(map[string]string, len(v))
		for name, p := range v {
			s, ok := p.(string)
			if !ok {
				return RootModuleConfig{}, fmt.Errorf("path of root module %q must be a string, got %T", name, p)
			}
			m[name] = s
		}
		if len(m) == 1 {
			for name, p := range m {
				return Single(name, p), nil
			}
		}
		return MultipleFromMap(m), nil
	case []interface{}:
		sources := make([]RootSource, 0, len(v))
		for i, item := range v {
			entry, ok := item.(map[string]interface{})
			if !ok {
				return RootModuleConfig{}, fmt.Errorf("terraformSources[%d] must be a table, got %T", i, item)
			}
			name, _ := entry["name"].(string)
			path, _ := entry["path"].(string)
			if path == "" {
				return RootModuleConfig{}, fmt.Errorf("terraformSources[%d] has no path", i)
			}
			sources = append(sources, RootSource{Name: name, Path: path})
		}
		return Multiple(sources...), nil
	default:
		return RootModuleConfig{}, fmt.Errorf("unsupported terraformSources type %T", raw)
	}
}

// DeclarationFile is the root structure of tfdoc.toml
type DeclarationFile struct {
	// Version is the schema version
	Version int `toml:"version"`

	// Markup is the comment markup used when the config sets none
	Markup string `toml:"markup,omitempty"`

	// Sources is the list of declared root modules
	Sources []RootSource `toml:"source"`
}

// ParseDeclarationFile parses a tfdoc.toml file from the given path
func ParseDeclarationFile(filePath string) (*DeclarationFile, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", filepath.Base(filePath), err)
	}

	var decl DeclarationFile
	if err := toml.Unmarshal(data, &decl); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", filepath.Base(filePath), err)
	}

	if decl.Version == 0 {
		decl.Version = 1
	}
	if decl.Version != 1 {
		return nil, fmt.Errorf("unsupported %s version: %d", filepath.Base(filePath), decl.Version)
	}

	for i, src := range decl.Sources {
		if src.Path == "" {
			return nil, fmt.Errorf("source #%d has no path", i+1)
		}
	}
	return &decl, nil
}

// RootModuleConfig converts the declarations into a root module config.
func (d *DeclarationFile) RootModuleConfig() RootModuleConfig {
	switch len(d.Sources) {
	case 0:
		return RootModuleConfig{}
	case 1:
		if d.Sources[0].Name == "" {
			return SingleFromPath(d.Sources[0].Path)
		}
		return Single(d.Sources[0].Name, d.Sources[0].Path)
	default:
		return Multiple(d.Sources...)
	}
}
