// Package export writes the frozen registry of a build to files other
// tools consume: a JSON snapshot, a text overview and a SCIP index.
package export

// Snapshot is the serializable form of a build.
type Snapshot struct {
	Metadata Metadata `json:"metadata"`
	Modules  []Module `json:"modules"`
}

// Metadata describes the build a snapshot was taken from.
type Metadata struct {
	Tool            string `json:"tool"`
	Version         string `json:"version"`
	BuildID         string `json:"buildId"`
	Root            string `json:"root"`
	Generated       string `json:"generated"` // ISO 8601 timestamp
	DefinitionCount int    `json:"definitionCount"`
	FileCount       int    `json:"fileCount"`
	ModuleCount     int    `json:"moduleCount"`
}

// Module is one module of the tree, in pre-order.
type Module struct {
	Fullname string `json:"fullname"`
	Name     string `json:"name"`
	Parent   string `json:"parent,omitempty"`
	Origin   string `json:"origin"`
	// Path is relative to the snapshot root when possible.
	Path  string `json:"path"`
	Files []File `json:"files"`
}

// File is a source file and the definitions it holds in byte order.
type File struct {
	Name        string       `json:"name"`
	Path        string       `json:"path"`
	Definitions []Definition `json:"definitions"`
}

// Definition is one exported definition.
type Definition struct {
	Identifier  string            `json:"identifier"`
	Kind        string            `json:"kind"`
	Name        string            `json:"name"`
	DisplayName string            `json:"displayName"`
	Line        int               `json:"line"`
	EndLine     int               `json:"endLine"`
	Doc         string            `json:"doc,omitempty"`
	Markup      string            `json:"markup,omitempty"`
	Attributes  map[string]string `json:"attributes,omitempty"`
	// ReferencedBy lists the documents that referenced the definition,
	// when usage was supplied.
	ReferencedBy []string `json:"referencedBy,omitempty"`
}

// Options configures an export.
type Options struct {
	// Root is the directory paths are made relative to.
	Root string
	// Usage maps identifiers to referencing documents.
	Usage map[string][]string
	// Compress writes JSON through zstd.
	Compress bool
	// Undocumented keeps definitions without a doc comment.
	Undocumented bool
}
