package storage

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"
	"strings"
	"time"

	"tfdoc/internal/build"
	"tfdoc/internal/errors"
)

// BuildRecord describes a saved build.
type BuildRecord struct {
	BuildID      string    `json:"buildId" yaml:"buildId"`
	Started      time.Time `json:"started" yaml:"started"`
	DurationMs   int64     `json:"durationMs" yaml:"durationMs"`
	FilesScanned int       `json:"filesScanned" yaml:"filesScanned"`
	Failed       bool      `json:"failed" yaml:"failed"`
}

// ModuleRecord is a row of the modules table.
type ModuleRecord struct {
	Fullname  string `json:"fullname" yaml:"fullname"`
	Name      string `json:"name" yaml:"name"`
	Parent    string `json:"parent,omitempty" yaml:"parent,omitempty"`
	Origin    string `json:"origin" yaml:"origin"`
	Path      string `json:"path" yaml:"path"`
	FileCount int    `json:"fileCount" yaml:"fileCount"`
}

// DefinitionRecord is a row of the definitions table.
type DefinitionRecord struct {
	Identifier   string `json:"identifier" yaml:"identifier"`
	Module       string `json:"module" yaml:"module"`
	Kind         string `json:"kind" yaml:"kind"`
	Name         string `json:"name" yaml:"name"`
	DisplayName  string `json:"displayName" yaml:"displayName"`
	Signature    string `json:"signature" yaml:"signature"`
	FilePath     string `json:"file" yaml:"file"`
	StartLine    int    `json:"startLine" yaml:"startLine"`
	EndLine      int    `json:"endLine" yaml:"endLine"`
	Doc          string `json:"doc,omitempty" yaml:"doc,omitempty"`
	DocTruncated bool   `json:"docTruncated,omitempty" yaml:"docTruncated,omitempty"`
	Markup       string `json:"markup,omitempty" yaml:"markup,omitempty"`
}

// ProblemRecord is a diagnostic saved with a build.
type ProblemRecord struct {
	Category string `json:"category" yaml:"category"`
	Code     string `json:"code" yaml:"code"`
	Message  string `json:"message" yaml:"message"`
}

// Problem categories, matching the build result's lists.
const (
	ProblemModule     = "module"
	ProblemFile       = "file"
	ProblemWarning    = "warning"
	ProblemDefinition = "definition"
)

// DefinitionFilter narrows Definitions. Empty fields match everything.
type DefinitionFilter struct {
	Module string
	Kind   string
}

// SaveBuild replaces the catalog contents with res in one transaction.
// The build row and its problems are appended to the build history.
func (db *DB) SaveBuild(ctx context.Context, res *build.Result) error {
	if res == nil || res.Tree == nil || res.Registry == nil {
		return errors.New(errors.InternalError, "cannot save an incomplete build", nil)
	}
	if !res.Registry.Frozen() {
		return errors.New(errors.RegistryOpen, "cannot save a build whose registry is still open", nil)
	}

	err := db.WithTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO builds (build_id, started_at, duration_ms, files_scanned, failed)
			VALUES (?, ?, ?, ?, ?)
		`, res.BuildID, res.Started.UTC().Format(time.RFC3339Nano), res.Duration.Milliseconds(), res.FilesScanned, res.Failed())
		if err != nil {
			return fmt.Errorf("failed to insert build: %w", err)
		}

		if err := insertProblems(ctx, tx, res); err != nil {
			return err
		}

		return db.fts.bulkReplace(ctx, tx, func() error {
			return replaceContents(ctx, tx, res)
		})
	})
	if err != nil {
		return err
	}

	db.logger.Info("Catalog saved",
		"build_id", res.BuildID,
		"modules", res.Tree.Len(),
		"definitions", res.Registry.Len(),
		"path", db.dbPath,
	)
	return nil
}

func insertProblems(ctx context.Context, tx *sql.Tx, res *build.Result) error {
	stmt, err := tx.PrepareContext(ctx, "INSERT INTO problems (build_id, category, code, message) VALUES (?, ?, ?, ?)")
	if err != nil {
		return fmt.Errorf("failed to prepare problem insert: %w", err)
	}
	defer stmt.Close()

	lists := []struct {
		category string
		problems []*errors.TfdocError
	}{
		{ProblemModule, res.ModuleProblems},
		{ProblemFile, res.FileErrors},
		{ProblemWarning, res.Warnings},
		{ProblemDefinition, res.DefinitionErrors},
	}
	for _, l := range lists {
		for _, p := range l.problems {
			if _, err := stmt.ExecContext(ctx, res.BuildID, l.category, string(p.Code), p.Message); err != nil {
				return fmt.Errorf("failed to insert problem: %w", err)
			}
		}
	}
	return nil
}

func replaceContents(ctx context.Context, tx *sql.Tx, res *build.Result) error {
	if _, err := tx.ExecContext(ctx, "DELETE FROM definitions"); err != nil {
		return fmt.Errorf("failed to clear definitions: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM modules"); err != nil {
		return fmt.Errorf("failed to clear modules: %w", err)
	}

	modStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO modules (fullname, name, parent, origin, path, file_count, position)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare module insert: %w", err)
	}
	defer modStmt.Close()

	for i, m := range res.Tree.All() {
		var parent sql.NullString
		if m.Parent != nil {
			parent = sql.NullString{String: m.Parent.Fullname, Valid: true}
		}
		if _, err := modStmt.ExecContext(ctx, m.Fullname, m.Name, parent, string(m.Origin), m.Path, len(m.Files), i); err != nil {
			return fmt.Errorf("failed to insert module %s: %w", m.Fullname, err)
		}
	}

	defStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO definitions (
			identifier, module, kind, name, display_name, signature,
			file_path, start_line, end_line, doc, doc_truncated, markup
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare definition insert: %w", err)
	}
	defer defStmt.Close()

	for _, d := range res.Registry.All() {
		var doc, markup sql.NullString
		if d.DocText != "" {
			doc = sql.NullString{String: d.DocText, Valid: true}
		}
		if d.Markup != "" {
			markup = sql.NullString{String: string(d.Markup), Valid: true}
		}
		_, err := defStmt.ExecContext(ctx,
			d.Identifier(), d.ModuleName(), string(d.Kind), d.Name(), d.DisplayName(), d.Signature(),
			d.SourceFile, d.Range.StartLine, d.Range.EndLine, doc, d.DocTruncated, markup,
		)
		if err != nil {
			return fmt.Errorf("failed to insert definition %s: %w", d.Identifier(), err)
		}
	}
	return nil
}

// LastBuild returns the most recently saved build, or nil for an empty catalog.
func (db *DB) LastBuild(ctx context.Context) (*BuildRecord, error) {
	var rec BuildRecord
	var started string
	err := db.QueryRow(ctx, `
		SELECT build_id, started_at, duration_ms, files_scanned, failed
		FROM builds
		ORDER BY saved_at DESC, rowid DESC
		LIMIT 1
	`).Scan(&rec.BuildID, &started, &rec.DurationMs, &rec.FilesScanned, &rec.Failed)
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read last build: %w", err)
	}
	rec.Started, err = time.Parse(time.RFC3339Nano, started)
	if err != nil {
		return nil, fmt.Errorf("invalid build timestamp %q: %w", started, err)
	}
	return &rec, nil
}

// Problems returns the diagnostics saved with buildID.
func (db *DB) Problems(ctx context.Context, buildID string) ([]ProblemRecord, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT category, code, message FROM problems WHERE build_id = ? ORDER BY rowid
	`, buildID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ProblemRecord
	for rows.Next() {
		var p ProblemRecord
		if err := rows.Scan(&p.Category, &p.Code, &p.Message); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// Modules returns the catalog's modules in tree order.
func (db *DB) Modules(ctx context.Context) ([]ModuleRecord, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT fullname, name, parent, origin, path, file_count FROM modules ORDER BY position
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ModuleRecord
	for rows.Next() {
		var m ModuleRecord
		var parent sql.NullString
		if err := rows.Scan(&m.Fullname, &m.Name, &parent, &m.Origin, &m.Path, &m.FileCount); err != nil {
			return nil, err
		}
		m.Parent = parent.String
		out = append(out, m)
	}
	return out, rows.Err()
}

// Definitions returns definitions in registration order.
func (db *DB) Definitions(ctx context.Context, f DefinitionFilter) ([]DefinitionRecord, error) {
	var where []string
	var args []any
	if f.Module != "" {
		where = append(where, "module = ?")
		args = append(args, f.Module)
	}
	if f.Kind != "" {
		where = append(where, "kind = ?")
		args = append(args, f.Kind)
	}

	query := `SELECT identifier, module, kind, name, display_name, signature,
		file_path, start_line, end_line, doc, doc_truncated, markup
		FROM definitions`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY id"

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []DefinitionRecord
	for rows.Next() {
		var d DefinitionRecord
		var doc, markup sql.NullString
		if err := rows.Scan(&d.Identifier, &d.Module, &d.Kind, &d.Name, &d.DisplayName, &d.Signature,
			&d.FilePath, &d.StartLine, &d.EndLine, &doc, &d.DocTruncated, &markup); err != nil {
			return nil, err
		}
		d.Doc = doc.String
		d.Markup = markup.String
		out = append(out, d)
	}
	return out, rows.Err()
}

// Search queries the full-text index.
func (db *DB) Search(ctx context.Context, query string, limit int) ([]SearchResult, error) {
	return db.fts.Search(ctx, query, limit)
}
