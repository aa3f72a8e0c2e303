package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// FTSConfig configures the definitions search index.
type FTSConfig struct {
	// DefaultLimit caps Search when the caller passes no limit.
	DefaultLimit int
	// Weights are the bm25 column weights for name, doc and signature.
	Weights [3]float64
}

// DefaultFTSConfig favours names over doc text.
func DefaultFTSConfig() FTSConfig {
	return FTSConfig{
		DefaultLimit: 20,
		Weights:      [3]float64{1.0, 0.5, 0.3},
	}
}

// FTSManager maintains an external-content FTS5 index over the
// definitions table.
type FTSManager struct {
	db     *sql.DB
	config FTSConfig
}

// NewFTSManager creates a manager over db.
func NewFTSManager(db *sql.DB, config FTSConfig) *FTSManager {
	if config.DefaultLimit <= 0 {
		config.DefaultLimit = 20
	}
	return &FTSManager{db: db, config: config}
}

// Match types, in decreasing rank.
const (
	MatchExact     = "exact"
	MatchPrefix    = "prefix"
	MatchSubstring = "substring"
)

// SearchResult is one definition hit.
type SearchResult struct {
	Identifier string  `json:"identifier" yaml:"identifier"`
	Module     string  `json:"module" yaml:"module"`
	Kind       string  `json:"kind" yaml:"kind"`
	Name       string  `json:"name" yaml:"name"`
	Signature  string  `json:"signature" yaml:"signature"`
	FilePath   string  `json:"file" yaml:"file"`
	Line       int     `json:"line" yaml:"line"`
	Doc        string  `json:"doc,omitempty" yaml:"doc,omitempty"`
	Rank       float64 `json:"rank" yaml:"rank"`
	MatchType  string  `json:"matchType" yaml:"matchType"`
}

var ftsTriggers = []string{
	`CREATE TRIGGER IF NOT EXISTS definitions_ai AFTER INSERT ON definitions BEGIN
		INSERT INTO definitions_fts(rowid, name, doc, signature)
		VALUES (new.id, new.name, new.doc, new.signature);
	END`,
	`CREATE TRIGGER IF NOT EXISTS definitions_ad AFTER DELETE ON definitions BEGIN
		INSERT INTO definitions_fts(definitions_fts, rowid, name, doc, signature)
		VALUES ('delete', old.id, old.name, old.doc, old.signature);
	END`,
	`CREATE TRIGGER IF NOT EXISTS definitions_au AFTER UPDATE ON definitions BEGIN
		INSERT INTO definitions_fts(definitions_fts, rowid, name, doc, signature)
		VALUES ('delete', old.id, old.name, old.doc, old.signature);
		INSERT INTO definitions_fts(rowid, name, doc, signature)
		VALUES (new.id, new.name, new.doc, new.signature);
	END`,
}

// InitSchema creates the FTS5 table and its sync triggers. It is safe to
// call on an existing catalog.
func (m *FTSManager) InitSchema(ctx context.Context) error {
	_, err := m.db.ExecContext(ctx, `
		CREATE VIRTUAL TABLE IF NOT EXISTS definitions_fts USING fts5(
			name,
			doc,
			signature,
			content='definitions',
			content_rowid='id'
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create definitions_fts table: %w", err)
	}
	return m.createTriggers(ctx, m.db)
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (m *FTSManager) createTriggers(ctx context.Context, ex execer) error {
	for _, trigger := range ftsTriggers {
		if _, err := ex.ExecContext(ctx, trigger); err != nil {
			return fmt.Errorf("failed to create trigger: %w", err)
		}
	}
	return nil
}

func (m *FTSManager) dropTriggers(ctx context.Context, ex execer) error {
	for _, name := range []string{"definitions_ai", "definitions_ad", "definitions_au"} {
		if _, err := ex.ExecContext(ctx, "DROP TRIGGER IF EXISTS "+name); err != nil {
			return fmt.Errorf("failed to drop trigger %s: %w", name, err)
		}
	}
	return nil
}

// bulkReplace runs load with the sync triggers dropped, then rebuilds the
// index once and restores the triggers.
func (m *FTSManager) bulkReplace(ctx context.Context, tx *sql.Tx, load func() error) error {
	if err := m.dropTriggers(ctx, tx); err != nil {
		return err
	}
	if err := load(); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, "INSERT INTO definitions_fts(definitions_fts) VALUES('rebuild')"); err != nil {
		return fmt.Errorf("failed to rebuild search index: %w", err)
	}
	return m.createTriggers(ctx, tx)
}

// Search finds definitions by name, doc text or signature. Exact phrase
// hits come first, then prefix hits, then plain substring matches.
func (m *FTSManager) Search(ctx context.Context, query string, limit int) ([]SearchResult, error) {
	if limit <= 0 {
		limit = m.config.DefaultLimit
	}

	query = strings.TrimSpace(query)
	if query == "" {
		return nil, nil
	}

	var results []SearchResult
	seen := make(map[string]bool)
	add := func(batch []SearchResult) {
		for _, r := range batch {
			if len(results) >= limit {
				return
			}
			if !seen[r.Identifier] {
				seen[r.Identifier] = true
				results = append(results, r)
			}
		}
	}

	phrase := `"` + escapeFTS5Query(query) + `"`

	// A query FTS5 rejects only loses its tier; LIKE still runs.
	if exact, err := m.searchMatch(ctx, phrase, MatchExact, 1.0, limit); err == nil {
		add(exact)
	}

	if len(results) < limit {
		if prefix, err := m.searchMatch(ctx, phrase+"*", MatchPrefix, 0.8, limit); err == nil {
			add(prefix)
		}
	}

	if len(results) < limit {
		like, err := m.searchLike(ctx, query, limit)
		if err != nil {
			return nil, err
		}
		add(like)
	}

	return results, nil
}

const resultColumns = `d.identifier, d.module, d.kind, d.name, d.signature, d.file_path, d.start_line, d.doc`

func (m *FTSManager) searchMatch(ctx context.Context, ftsQuery, matchType string, rank float64, limit int) ([]SearchResult, error) {
	w := m.config.Weights
	rows, err := m.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT %s
		FROM definitions_fts f
		JOIN definitions d ON f.rowid = d.id
		WHERE definitions_fts MATCH ?
		ORDER BY bm25(definitions_fts, %g, %g, %g), d.id
		LIMIT ?
	`, resultColumns, w[0], w[1], w[2]), ftsQuery, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanResults(rows, matchType, rank)
}

func (m *FTSManager) searchLike(ctx context.Context, query string, limit int) ([]SearchResult, error) {
	pattern := "%" + escapeLike(query) + "%"
	rows, err := m.db.QueryContext(ctx, `
		SELECT `+resultColumns+`
		FROM definitions d
		WHERE d.name LIKE ? ESCAPE '\' OR d.doc LIKE ? ESCAPE '\' OR d.signature LIKE ? ESCAPE '\'
		ORDER BY d.id
		LIMIT ?
	`, pattern, pattern, pattern, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanResults(rows, MatchSubstring, 0.5)
}

func scanResults(rows *sql.Rows, matchType string, rank float64) ([]SearchResult, error) {
	var results []SearchResult
	for rows.Next() {
		var r SearchResult
		var doc sql.NullString
		if err := rows.Scan(&r.Identifier, &r.Module, &r.Kind, &r.Name, &r.Signature, &r.FilePath, &r.Line, &doc); err != nil {
			return nil, err
		}
		r.Doc = doc.String
		r.MatchType = matchType
		r.Rank = rank
		results = append(results, r)
	}
	return results, rows.Err()
}

// Rebuild regenerates the index from the definitions table.
func (m *FTSManager) Rebuild(ctx context.Context) error {
	_, err := m.db.ExecContext(ctx, "INSERT INTO definitions_fts(definitions_fts) VALUES('rebuild')")
	return err
}

// Optimize merges index segments.
func (m *FTSManager) Optimize(ctx context.Context) error {
	_, err := m.db.ExecContext(ctx, "INSERT INTO definitions_fts(definitions_fts) VALUES('optimize')")
	return err
}

// IntegrityCheck verifies the index against its content table.
func (m *FTSManager) IntegrityCheck(ctx context.Context) error {
	_, err := m.db.ExecContext(ctx, "INSERT INTO definitions_fts(definitions_fts) VALUES('integrity-check')")
	return err
}

// escapeFTS5Query makes query safe inside an FTS5 string literal.
func escapeFTS5Query(query string) string {
	return strings.ReplaceAll(query, `"`, `""`)
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
