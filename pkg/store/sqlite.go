package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/matzehuels/flowmerge/pkg/errors"
	"github.com/matzehuels/flowmerge/pkg/workflow"
)

// SQLiteStore keeps documents in three tables: workflows, workflow_nodes
// and workflow_edges. Node bodies are stored as JSON next to the columns
// used for listing.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) the database at path. Use ":memory:"
// for a throwaway database.
func NewSQLiteStore(ctx context.Context, path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeStorage, err, "open sqlite %s", path)
	}
	// One connection serializes writers and keeps ":memory:" databases alive.
	db.SetMaxOpenConns(1)

	s := &SQLiteStore{db: db}
	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) migrate(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS workflows (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		version INTEGER NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS workflow_nodes (
		workflow_id TEXT NOT NULL,
		id TEXT NOT NULL,
		seq INTEGER NOT NULL,
		kind TEXT NOT NULL,
		name TEXT NOT NULL,
		draft INTEGER NOT NULL DEFAULT 0,
		body TEXT NOT NULL,
		PRIMARY KEY (workflow_id, id)
	);

	CREATE TABLE IF NOT EXISTS workflow_edges (
		workflow_id TEXT NOT NULL,
		id TEXT NOT NULL,
		seq INTEGER NOT NULL,
		source TEXT NOT NULL,
		target TEXT NOT NULL,
		source_handle TEXT NOT NULL DEFAULT '',
		target_handle TEXT NOT NULL DEFAULT '',
		label TEXT NOT NULL DEFAULT '',
		PRIMARY KEY (workflow_id, id)
	);

	CREATE INDEX IF NOT EXISTS idx_workflow_edges_source ON workflow_edges(workflow_id, source);
	CREATE INDEX IF NOT EXISTS idx_workflow_edges_target ON workflow_edges(workflow_id, target);
	`
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return errors.Wrap(errors.ErrCodeStorage, err, "migrate sqlite schema")
	}
	return nil
}

func (s *SQLiteStore) Get(ctx context.Context, id string) (*workflow.Document, error) {
	doc := &workflow.Document{ID: id, Nodes: []workflow.Node{}, Edges: []workflow.Edge{}}
	var updated string
	err := s.db.QueryRowContext(ctx,
		"SELECT name, description, version, updated_at FROM workflows WHERE id = ?", id,
	).Scan(&doc.Name, &doc.Description, &doc.Version, &updated)
	if err == sql.ErrNoRows {
		return nil, notFound(id)
	}
	if err != nil {
		return nil, storageErr(err, "load workflow %q", id)
	}
	if doc.UpdatedAt, err = time.Parse(time.RFC3339Nano, updated); err != nil {
		return nil, storageErr(err, "parse updated_at of %q", id)
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT body FROM workflow_nodes WHERE workflow_id = ? ORDER BY seq", id)
	if err != nil {
		return nil, storageErr(err, "load nodes of %q", id)
	}
	defer rows.Close()
	for rows.Next() {
		var body string
		if err := rows.Scan(&body); err != nil {
			return nil, storageErr(err, "scan node of %q", id)
		}
		var n workflow.Node
		if err := json.Unmarshal([]byte(body), &n); err != nil {
			return nil, storageErr(err, "decode node of %q", id)
		}
		doc.Nodes = append(doc.Nodes, n)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr(err, "load nodes of %q", id)
	}

	edges, err := s.db.QueryContext(ctx, `
		SELECT id, source, target, source_handle, target_handle, label
		FROM workflow_edges WHERE workflow_id = ? ORDER BY seq`, id)
	if err != nil {
		return nil, storageErr(err, "load edges of %q", id)
	}
	defer edges.Close()
	for edges.Next() {
		var e workflow.Edge
		if err := edges.Scan(&e.ID, &e.Source, &e.Target, &e.SourceHandle, &e.TargetHandle, &e.Label); err != nil {
			return nil, storageErr(err, "scan edge of %q", id)
		}
		doc.Edges = append(doc.Edges, e)
	}
	if err := edges.Err(); err != nil {
		return nil, storageErr(err, "load edges of %q", id)
	}
	return doc, nil
}

func (s *SQLiteStore) Save(ctx context.Context, doc *workflow.Document) error {
	if err := prepare(doc); err != nil {
		return err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return storageErr(err, "begin save of %q", doc.ID)
	}
	defer tx.Rollback()

	var stored int64
	err = tx.QueryRowContext(ctx, "SELECT version FROM workflows WHERE id = ?", doc.ID).Scan(&stored)
	exists := err == nil
	if err != nil && err != sql.ErrNoRows {
		return storageErr(err, "read version of %q", doc.ID)
	}
	if err := checkVersion(doc, exists, stored); err != nil {
		return err
	}

	version, at := next(doc)
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO workflows (id, name, description, version, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			description = excluded.description,
			version = excluded.version,
			updated_at = excluded.updated_at`,
		doc.ID, doc.Name, doc.Description, version, at.Format(time.RFC3339Nano),
	); err != nil {
		return storageErr(err, "write workflow %q", doc.ID)
	}
	if err := deleteChildren(ctx, tx, doc.ID); err != nil {
		return err
	}
	for i, n := range doc.Nodes {
		draft := 0
		if n.IsDraft() {
			draft = 1
		}
		body, err := json.Marshal(n)
		if err != nil {
			return storageErr(err, "encode node %q", n.ID)
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO workflow_nodes (workflow_id, id, seq, kind, name, draft, body)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			doc.ID, n.ID, i, string(n.Kind), n.Name, draft, string(body),
		); err != nil {
			return storageErr(err, "write node %q", n.ID)
		}
	}
	for i, e := range doc.Edges {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO workflow_edges (workflow_id, id, seq, source, target, source_handle, target_handle, label)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			doc.ID, e.ID, i, e.Source, e.Target, e.SourceHandle, e.TargetHandle, e.Label,
		); err != nil {
			return storageErr(err, "write edge %q", e.ID)
		}
	}
	if err := tx.Commit(); err != nil {
		return storageErr(err, "commit workflow %q", doc.ID)
	}
	doc.Version, doc.UpdatedAt = version, at
	return nil
}

func deleteChildren(ctx context.Context, tx *sql.Tx, id string) error {
	for _, table := range []string{"workflow_nodes", "workflow_edges"} {
		if _, err := tx.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s WHERE workflow_id = ?", table), id); err != nil {
			return storageErr(err, "clear %s of %q", table, id)
		}
	}
	return nil
}

func (s *SQLiteStore) SaveStructure(ctx context.Context, id string, st Structure) (*workflow.Document, error) {
	return saveStructure(ctx, s, id, st)
}

func (s *SQLiteStore) List(ctx context.Context) ([]Summary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT w.id, w.name, w.description, w.version, w.updated_at,
			(SELECT COUNT(*) FROM workflow_nodes n WHERE n.workflow_id = w.id),
			(SELECT COUNT(*) FROM workflow_edges e WHERE e.workflow_id = w.id),
			(SELECT COUNT(*) FROM workflow_nodes n WHERE n.workflow_id = w.id AND n.draft = 1)
		FROM workflows w
		ORDER BY w.id`)
	if err != nil {
		return nil, storageErr(err, "list workflows")
	}
	defer rows.Close()

	out := []Summary{}
	for rows.Next() {
		var sum Summary
		var updated string
		if err := rows.Scan(&sum.ID, &sum.Name, &sum.Description, &sum.Version, &updated,
			&sum.Nodes, &sum.Edges, &sum.Drafts); err != nil {
			return nil, storageErr(err, "scan workflow summary")
		}
		sum.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updated)
		out = append(out, sum)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr(err, "list workflows")
	}
	return out, nil
}

func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return storageErr(err, "begin delete of %q", id)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, "DELETE FROM workflows WHERE id = ?", id)
	if err != nil {
		return storageErr(err, "delete workflow %q", id)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return notFound(id)
	}
	if err := deleteChildren(ctx, tx, id); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return storageErr(err, "commit delete of %q", id)
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

var _ Store = (*SQLiteStore)(nil)
