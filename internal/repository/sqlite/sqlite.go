package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"scopecfg/internal/repository"

	_ "modernc.org/sqlite"
)

// Repository implements repository.Repository using SQLite
type Repository struct {
	db *sql.DB
}

// New creates a new SQLite repository
func New(dbPath string) (*Repository, error) {
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	repo := &Repository{db: db}
	if err := repo.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return repo, nil
}

func (r *Repository) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS documents (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		kind TEXT NOT NULL,
		name TEXT NOT NULL,
		format TEXT NOT NULL,
		data TEXT NOT NULL,
		active INTEGER NOT NULL DEFAULT 0,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_documents_kind_name ON documents(kind, name);
	CREATE UNIQUE INDEX IF NOT EXISTS idx_documents_active
		ON documents(kind, name) WHERE active = 1;
	`

	_, err := r.db.Exec(schema)
	return err
}

// SaveRevision stores a new revision and makes it active.
func (r *Repository) SaveRevision(ctx context.Context, kind repository.Kind, name, format string, data []byte) (*repository.Revision, error) {
	if !kind.Valid() {
		return nil, fmt.Errorf("invalid document kind %q", kind)
	}
	if name == "" {
		return nil, fmt.Errorf("document name is required")
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		UPDATE documents SET active = 0 WHERE kind = ? AND name = ? AND active = 1
	`, kind, name); err != nil {
		return nil, fmt.Errorf("failed to deactivate previous revision: %w", err)
	}

	now := time.Now().UTC()
	res, err := tx.ExecContext(ctx, `
		INSERT INTO documents (kind, name, format, data, active, created_at)
		VALUES (?, ?, ?, ?, 1, ?)
	`, kind, name, format, string(data), now)
	if err != nil {
		return nil, fmt.Errorf("failed to insert revision: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to get revision id: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit revision: %w", err)
	}

	return &repository.Revision{
		ID:        id,
		Kind:      kind,
		Name:      name,
		Format:    format,
		Active:    true,
		CreatedAt: now,
	}, nil
}

// GetActive returns the active revision and its payload.
func (r *Repository) GetActive(ctx context.Context, kind repository.Kind, name string) (*repository.Revision, []byte, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, kind, name, format, data, active, created_at
		FROM documents
		WHERE kind = ? AND name = ? AND active = 1
	`, kind, name)
	return scanRevision(row)
}

// GetRevision returns a specific revision by ID.
func (r *Repository) GetRevision(ctx context.Context, id int64) (*repository.Revision, []byte, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, kind, name, format, data, active, created_at
		FROM documents
		WHERE id = ?
	`, id)
	return scanRevision(row)
}

// ListRevisions returns all revisions of a document, newest first.
func (r *Repository) ListRevisions(ctx context.Context, kind repository.Kind, name string) ([]repository.Revision, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, kind, name, format, active, created_at
		FROM documents
		WHERE kind = ? AND name = ?
		ORDER BY id DESC
	`, kind, name)
	if err != nil {
		return nil, fmt.Errorf("failed to query revisions: %w", err)
	}
	defer rows.Close()

	var revisions []repository.Revision
	for rows.Next() {
		var (
			rev    repository.Revision
			active int
		)
		if err := rows.Scan(&rev.ID, &rev.Kind, &rev.Name, &rev.Format, &active, &rev.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan revision: %w", err)
		}
		rev.Active = active != 0
		revisions = append(revisions, rev)
	}
	return revisions, rows.Err()
}

// ListNames returns the document names stored for a kind.
func (r *Repository) ListNames(ctx context.Context, kind repository.Kind) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT DISTINCT name FROM documents WHERE kind = ? ORDER BY name
	`, kind)
	if err != nil {
		return nil, fmt.Errorf("failed to query names: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan name: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// Activate makes an older revision active again.
func (r *Repository) Activate(ctx context.Context, id int64) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var (
		kind repository.Kind
		name string
	)
	err = tx.QueryRowContext(ctx, `
		SELECT kind, name FROM documents WHERE id = ?
	`, id).Scan(&kind, &name)
	if err == sql.ErrNoRows {
		return repository.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to look up revision %d: %w", id, err)
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE documents SET active = 0 WHERE kind = ? AND name = ? AND active = 1
	`, kind, name); err != nil {
		return fmt.Errorf("failed to deactivate revision: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `
		UPDATE documents SET active = 1 WHERE id = ?
	`, id); err != nil {
		return fmt.Errorf("failed to activate revision %d: %w", id, err)
	}

	return tx.Commit()
}

// Close releases database resources.
func (r *Repository) Close() error {
	return r.db.Close()
}

func scanRevision(row *sql.Row) (*repository.Revision, []byte, error) {
	var (
		rev    repository.Revision
		data   string
		active int
	)
	err := row.Scan(&rev.ID, &rev.Kind, &rev.Name, &rev.Format, &data, &active, &rev.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to scan revision: %w", err)
	}
	rev.Active = active != 0
	return &rev, []byte(data), nil
}
