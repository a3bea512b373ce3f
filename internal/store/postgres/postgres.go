// Package postgres implements the document store on a single JSONB table,
// for self-hosted deployments that do not use Firestore.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/crtiers/crtiers/internal/store"
)

// Config holds PostgreSQL connection configuration.
type Config struct {
	Host           string `yaml:"host"`
	Port           int    `yaml:"port"`
	User           string `yaml:"user"`
	Password       string `yaml:"password"`
	Database       string `yaml:"database"`
	SSLMode        string `yaml:"ssl_mode"`
	MaxConnections int    `yaml:"max_connections"`
	MinConnections int    `yaml:"min_connections"`
}

// ConnectionString returns the PostgreSQL connection string.
func (c *Config) ConnectionString() string {
	sslMode := c.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Database, sslMode,
	)
}

// Store keeps every collection in one documents table keyed by
// (collection, id), with the document body in a JSONB column.
type Store struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// New opens a connection pool and ensures the schema exists.
func New(ctx context.Context, cfg *Config, logger *slog.Logger) (*Store, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.ConnectionString())
	if err != nil {
		return nil, fmt.Errorf("parsing connection string: %w", err)
	}
	if cfg.MaxConnections > 0 {
		poolConfig.MaxConns = int32(cfg.MaxConnections)
	}
	if cfg.MinConnections > 0 {
		poolConfig.MinConns = int32(cfg.MinConnections)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	s := &Store{pool: pool, logger: logger}
	if err := s.migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) migrate(ctx context.Context) error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS documents (
			collection VARCHAR(64) NOT NULL,
			id VARCHAR(64) NOT NULL,
			data JSONB NOT NULL,
			PRIMARY KEY (collection, id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_documents_collection ON documents(collection)`,
	}
	for _, migration := range migrations {
		if _, err := s.pool.Exec(ctx, migration); err != nil {
			return fmt.Errorf("executing migration: %w", err)
		}
	}
	s.logger.Info("database migrations completed")
	return nil
}

// Close closes the connection pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

// Get fetches one document by id.
func (s *Store) Get(ctx context.Context, collection, id string) (store.Doc, error) {
	var raw []byte
	err := s.pool.QueryRow(ctx,
		`SELECT data FROM documents WHERE collection = $1 AND id = $2`,
		collection, id,
	).Scan(&raw)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return store.Doc{}, store.ErrDocNotFound
		}
		return store.Doc{}, fmt.Errorf("getting document: %w", err)
	}
	return decodeDoc(id, raw)
}

// List returns every document in the collection.
func (s *Store) List(ctx context.Context, collection string) ([]store.Doc, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, data FROM documents WHERE collection = $1 ORDER BY id`,
		collection,
	)
	if err != nil {
		return nil, fmt.Errorf("listing documents: %w", err)
	}
	defer rows.Close()
	return scanDocs(rows)
}

// Query returns documents matching all conditions.
func (s *Store) Query(ctx context.Context, collection string, conds ...store.Cond) ([]store.Doc, error) {
	sql, args := buildWhere(
		`SELECT id, data FROM documents WHERE collection = $1`, collection, conds)
	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("querying documents: %w", err)
	}
	defer rows.Close()
	return scanDocs(rows)
}

// Count returns the number of documents matching all conditions.
func (s *Store) Count(ctx context.Context, collection string, conds ...store.Cond) (int64, error) {
	sql, args := buildWhere(
		`SELECT COUNT(*) FROM documents WHERE collection = $1`, collection, conds)
	var count int64
	if err := s.pool.QueryRow(ctx, sql, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("counting documents: %w", err)
	}
	return count, nil
}

// OrderByLimit returns up to n documents ordered by field. Ordering uses
// JSONB value comparison, so numbers sort numerically and strings
// lexicographically, matching the other drivers.
func (s *Store) OrderByLimit(ctx context.Context, collection, field string, descending bool, n int) ([]store.Doc, error) {
	direction := "ASC"
	if descending {
		direction = "DESC"
	}
	sql := fmt.Sprintf(
		`SELECT id, data FROM documents WHERE collection = $1
		 ORDER BY data #> $2::text[] %s NULLS LAST LIMIT $3`, direction)
	rows, err := s.pool.Query(ctx, sql, collection, jsonPath(field), n)
	if err != nil {
		return nil, fmt.Errorf("ordered query: %w", err)
	}
	defer rows.Close()
	return scanDocs(rows)
}

// Add inserts a document under a generated id.
func (s *Store) Add(ctx context.Context, collection string, data map[string]any) (string, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return "", fmt.Errorf("marshaling document: %w", err)
	}
	id := uuid.New().String()
	_, err = s.pool.Exec(ctx,
		`INSERT INTO documents (collection, id, data) VALUES ($1, $2, $3)`,
		collection, id, raw,
	)
	if err != nil {
		return "", fmt.Errorf("adding document: %w", err)
	}
	return id, nil
}

// UpdateFields applies a path-scoped partial update via chained jsonb_set.
func (s *Store) UpdateFields(ctx context.Context, collection, id string, fields map[string]any) error {
	sql, args, err := buildUpdate(collection, id, fields, "")
	if err != nil {
		return err
	}
	tag, err := s.pool.Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("updating document: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrDocNotFound
	}
	return nil
}

// UpdateFieldsIf applies the update only while versionField equals expected.
func (s *Store) UpdateFieldsIf(ctx context.Context, collection, id string, fields map[string]any, versionField string, expected int64) error {
	versionCond := fmt.Sprintf(
		" AND (data #>> '%s'::text[])::numeric = %d", textArrayLiteral(versionField), expected)
	sql, args, err := buildUpdate(collection, id, fields, versionCond)
	if err != nil {
		return err
	}
	tag, err := s.pool.Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("conditional update: %w", err)
	}
	if tag.RowsAffected() > 0 {
		return nil
	}

	// Zero rows: distinguish a missing document from a stale version.
	var exists bool
	err = s.pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM documents WHERE collection = $1 AND id = $2)`,
		collection, id,
	).Scan(&exists)
	if err != nil {
		return fmt.Errorf("checking document existence: %w", err)
	}
	if !exists {
		return store.ErrDocNotFound
	}
	return store.ErrPreconditionFailed
}

// Delete removes a document; deleting an absent one is a no-op.
func (s *Store) Delete(ctx context.Context, collection, id string) error {
	_, err := s.pool.Exec(ctx,
		`DELETE FROM documents WHERE collection = $1 AND id = $2`,
		collection, id,
	)
	if err != nil {
		return fmt.Errorf("deleting document: %w", err)
	}
	return nil
}

func buildUpdate(collection, id string, fields map[string]any, extraCond string) (string, []any, error) {
	expr := "data"
	args := []any{collection, id}
	for path, value := range fields {
		raw, err := json.Marshal(value)
		if err != nil {
			return "", nil, fmt.Errorf("marshaling field %s: %w", path, err)
		}
		args = append(args, jsonPath(path), string(raw))
		expr = fmt.Sprintf("jsonb_set(%s, $%d::text[], $%d::jsonb, true)",
			expr, len(args)-1, len(args))
	}
	sql := fmt.Sprintf(
		`UPDATE documents SET data = %s WHERE collection = $1 AND id = $2%s`,
		expr, extraCond)
	return sql, args, nil
}

func buildWhere(base, collection string, conds []store.Cond) (string, []any) {
	var sb strings.Builder
	sb.WriteString(base)
	args := []any{collection}
	for _, cond := range conds {
		op := "="
		if cond.Op == store.OpGreater {
			op = ">"
		}
		if isNumber(cond.Value) {
			args = append(args, cond.Value)
			fmt.Fprintf(&sb, " AND (data #>> '%s'::text[])::numeric %s $%d",
				textArrayLiteral(cond.Field), op, len(args))
		} else {
			args = append(args, cond.Value)
			fmt.Fprintf(&sb, " AND data #>> '%s'::text[] %s $%d",
				textArrayLiteral(cond.Field), op, len(args))
		}
	}
	return sb.String(), args
}

// jsonPath converts a dot path to a Postgres text[] parameter value.
func jsonPath(field string) []string {
	return strings.Split(field, ".")
}

// textArrayLiteral renders a dot path as a text[] literal for inlining.
func textArrayLiteral(field string) string {
	return "{" + strings.Join(strings.Split(field, "."), ",") + "}"
}

func isNumber(v any) bool {
	switch v.(type) {
	case int, int64, float64, float32:
		return true
	}
	return false
}

type pgxRows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}

func scanDocs(rows pgxRows) ([]store.Doc, error) {
	var docs []store.Doc
	for rows.Next() {
		var id string
		var raw []byte
		if err := rows.Scan(&id, &raw); err != nil {
			return nil, fmt.Errorf("scanning document: %w", err)
		}
		doc, err := decodeDoc(id, raw)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating documents: %w", err)
	}
	return docs, nil
}

func decodeDoc(id string, raw []byte) (store.Doc, error) {
	data := make(map[string]any)
	if err := json.Unmarshal(raw, &data); err != nil {
		return store.Doc{}, fmt.Errorf("decoding document %s: %w", id, err)
	}
	return store.Doc{ID: id, Data: data}, nil
}
