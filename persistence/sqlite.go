package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

// SQLiteStore persists records in a SQLite database so the stub service
// survives restarts.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens/creates the database at dbPath.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		return nil, err
	}
	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		return nil, err
	}
	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS plans (
		kind TEXT NOT NULL,
		plan_date TEXT NOT NULL,
		content TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		PRIMARY KEY (kind, plan_date)
	);
	CREATE TABLE IF NOT EXISTS records (
		id TEXT PRIMARY KEY,
		resource TEXT NOT NULL,
		record_date TEXT NOT NULL DEFAULT '',
		body TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_records_resource_date ON records(resource, record_date);
	CREATE TABLE IF NOT EXISTS singletons (
		name TEXT PRIMARY KEY,
		body TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Close releases the underlying database handle.
func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Apply applies one canonical payload.
func (s *SQLiteStore) Apply(ctx context.Context, payload map[string]interface{}) (string, error) {
	if err := ctxGuard(ctx); err != nil {
		return "", err
	}
	m, err := decodePayload(payload)
	if err != nil {
		return "", err
	}
	now := timestamp()

	switch m.kind {
	case mutateMergeSingleton:
		err = s.mergeSingleton(m.resource, m.object, now)
	case mutateUpsertItems:
		err = s.saveItems(m.resource, m.items, false, now)
	case mutateCreateItem:
		err = s.saveItems(m.resource, m.items, true, now)
	case mutatePatchItem:
		err = s.patchItem(m.resource, m.ids[0], m.object, now)
	case mutateDeleteItems:
		err = s.deleteItems(m.resource, m.ids)
	case mutateUpsertByDate:
		err = s.upsertByDate(m.resource, m.date, m.object, now)
	case mutateDeleteByDate:
		_, err = s.db.Exec(`DELETE FROM records WHERE resource = ? AND record_date = ?`, m.resource, m.date)
	case mutateSetPlan:
		content, _ := m.object["content"].(string)
		_, err = s.db.Exec(`
			INSERT INTO plans (kind, plan_date, content, updated_at) VALUES (?, ?, ?, ?)
			ON CONFLICT(kind, plan_date) DO UPDATE SET
				content=excluded.content,
				updated_at=excluded.updated_at`,
			m.planKind, m.date, content, now)
	case mutateDeletePlan:
		_, err = s.db.Exec(`DELETE FROM plans WHERE kind = ? AND plan_date = ?`, m.planKind, m.date)
	default:
		err = fmt.Errorf("unhandled mutation kind %d", m.kind)
	}
	if err != nil {
		return "", err
	}
	return m.summary, nil
}

func (s *SQLiteStore) mergeSingleton(name string, patch map[string]interface{}, now string) error {
	doc := make(map[string]interface{})
	var body string
	err := s.db.QueryRow(`SELECT body FROM singletons WHERE name = ?`, name).Scan(&body)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return err
	}
	if body != "" {
		if err := json.Unmarshal([]byte(body), &doc); err != nil {
			doc = make(map[string]interface{})
		}
	}
	for k, v := range patch {
		doc[k] = v
	}
	doc["updated_at"] = now
	merged, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(`
		INSERT INTO singletons (name, body, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			body=excluded.body,
			updated_at=excluded.updated_at`,
		name, string(merged), now)
	return err
}

func (s *SQLiteStore) saveItems(resource string, items []map[string]interface{}, mintIDs bool, now string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	stmt, err := tx.Prepare(`INSERT OR REPLACE INTO records (id, resource, record_date, body, updated_at)
		VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		tx.Rollback()
		return err
	}
	defer stmt.Close()
	for _, item := range items {
		id, _ := item["id"].(string)
		if mintIDs || id == "" {
			id = uuid.NewString()
		}
		body, err := encodeBody(item, id, now)
		if err != nil {
			tx.Rollback()
			return err
		}
		if _, err := stmt.Exec(id, resource, itemDate(item), body, now); err != nil {
			tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

func (s *SQLiteStore) patchItem(resource, id string, patch map[string]interface{}, now string) error {
	var body string
	err := s.db.QueryRow(`SELECT body FROM records WHERE resource = ? AND id = ?`, resource, id).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s %s not found", resource, id)
	}
	if err != nil {
		return err
	}
	doc := make(map[string]interface{})
	if err := json.Unmarshal([]byte(body), &doc); err != nil {
		doc = make(map[string]interface{})
	}
	for k, v := range patch {
		doc[k] = v
	}
	merged, err := encodeBody(doc, id, now)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(`UPDATE records SET record_date = ?, body = ?, updated_at = ? WHERE resource = ? AND id = ?`,
		itemDate(doc), merged, now, resource, id)
	return err
}

func (s *SQLiteStore) deleteItems(resource string, ids []string) error {
	args := make([]interface{}, 0, len(ids)+1)
	args = append(args, resource)
	for _, id := range ids {
		args = append(args, id)
	}
	query := fmt.Sprintf(`DELETE FROM records WHERE resource = ? AND id IN (%s)`, placeholders(len(ids)))
	_, err := s.db.Exec(query, args...)
	return err
}

func (s *SQLiteStore) upsertByDate(resource, date string, object map[string]interface{}, now string) error {
	var id string
	err := s.db.QueryRow(`SELECT id FROM records WHERE resource = ? AND record_date = ?`, resource, date).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		id = uuid.NewString()
	} else if err != nil {
		return err
	}
	item := cloneMap(object)
	item["record_date"] = date
	body, err := encodeBody(item, id, now)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(`INSERT OR REPLACE INTO records (id, resource, record_date, body, updated_at)
		VALUES (?, ?, ?, ?, ?)`, id, resource, date, body, now)
	return err
}

// List returns one bounded page of a resource, newest first.
func (s *SQLiteStore) List(ctx context.Context, resource string, opts ListOptions) ([]map[string]interface{}, error) {
	if err := ctxGuard(ctx); err != nil {
		return nil, err
	}
	limit := normalizeLimit(opts.Limit)

	if kind, ok := planKinds[resource]; ok {
		return s.listPlans(kind, opts, limit)
	}
	if itemResources[resource] {
		return s.listRecords(resource, opts, limit)
	}
	if singletonResources[resource] {
		return s.listSingleton(resource)
	}
	return nil, fmt.Errorf("%w %q", ErrUnsupportedResource, resource)
}

func (s *SQLiteStore) listPlans(kind string, opts ListOptions, limit int) ([]map[string]interface{}, error) {
	query := `SELECT plan_date, content, updated_at FROM plans WHERE kind = ?`
	args := []interface{}{kind}
	query, args = appendDateFilters(query, args, "plan_date", opts)
	query += fmt.Sprintf(` ORDER BY plan_date DESC LIMIT %d`, limit)

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	results := make([]map[string]interface{}, 0)
	for rows.Next() {
		var date, content, updated string
		if err := rows.Scan(&date, &content, &updated); err != nil {
			return nil, err
		}
		results = append(results, map[string]interface{}{
			"plan_date":  date,
			"content":    content,
			"updated_at": updated,
		})
	}
	return results, rows.Err()
}

func (s *SQLiteStore) listRecords(resource string, opts ListOptions, limit int) ([]map[string]interface{}, error) {
	query := `SELECT body FROM records WHERE resource = ?`
	args := []interface{}{resource}
	query, args = appendDateFilters(query, args, "record_date", opts)
	query += fmt.Sprintf(` ORDER BY record_date DESC, updated_at DESC LIMIT %d`, limit)

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	results := make([]map[string]interface{}, 0)
	for rows.Next() {
		var body string
		if err := rows.Scan(&body); err != nil {
			return nil, err
		}
		doc := make(map[string]interface{})
		if err := json.Unmarshal([]byte(body), &doc); err != nil {
			continue
		}
		results = append(results, doc)
	}
	return results, rows.Err()
}

func (s *SQLiteStore) listSingleton(name string) ([]map[string]interface{}, error) {
	var body string
	err := s.db.QueryRow(`SELECT body FROM singletons WHERE name = ?`, name).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return []map[string]interface{}{}, nil
	}
	if err != nil {
		return nil, err
	}
	doc := make(map[string]interface{})
	if err := json.Unmarshal([]byte(body), &doc); err != nil {
		return nil, err
	}
	return []map[string]interface{}{doc}, nil
}

func appendDateFilters(query string, args []interface{}, column string, opts ListOptions) (string, []interface{}) {
	if opts.Date != "" {
		query += ` AND ` + column + ` = ?`
		args = append(args, opts.Date)
	}
	if opts.From != "" {
		query += ` AND ` + column + ` >= ?`
		args = append(args, opts.From)
	}
	if opts.To != "" {
		query += ` AND ` + column + ` <= ?`
		args = append(args, opts.To)
	}
	return query, args
}

func encodeBody(item map[string]interface{}, id, now string) (string, error) {
	body := cloneMap(item)
	body["id"] = id
	body["updated_at"] = now
	encoded, err := json.Marshal(body)
	if err != nil {
		return "", err
	}
	return string(encoded), nil
}

func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	parts := make([]string, n)
	for i := range parts {
		parts[i] = "?"
	}
	return strings.Join(parts, ",")
}
