package folio

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/pkg/errors"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/eringen/folio/content"
)

// ErrNotFound is returned when a requested record or asset does not exist.
var ErrNotFound = sql.ErrNoRows

// timeLayout is fixed width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// Store wraps a SQLite database holding every collection in one records
// table, keyed by (kind, slug), plus uploaded asset metadata.
type Store struct {
	db *sql.DB
}

// NewStore opens (or creates) the SQLite database at path, ensures the data
// directory exists, and runs schema migrations.
func NewStore(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// WAL lets readers proceed during writes; busy_timeout makes writers wait
	// instead of failing with SQLITE_BUSY.
	if _, err := db.Exec(`
		PRAGMA journal_mode=WAL;
		PRAGMA busy_timeout=5000;
		PRAGMA synchronous=NORMAL;
		PRAGMA cache_size=-8000;
	`); err != nil {
		db.Close()
		return nil, err
	}
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(4)
	s := &Store{db: db}
	if err := s.ensureSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) ensureSchema() error {
	_, err := s.db.Exec(`
CREATE TABLE IF NOT EXISTS records (
    id TEXT PRIMARY KEY,
    kind TEXT NOT NULL,
    slug TEXT NOT NULL,
    title TEXT NOT NULL,
    status TEXT NOT NULL DEFAULT 'draft',
    publish_date TEXT,
    category TEXT NOT NULL DEFAULT '',
    tags TEXT NOT NULL DEFAULT ',',
    data TEXT NOT NULL,
    created_at TEXT NOT NULL,
    updated_at TEXT NOT NULL
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_records_kind_slug ON records(kind, slug);
CREATE INDEX IF NOT EXISTS idx_records_kind_status ON records(kind, status, publish_date);

CREATE TABLE IF NOT EXISTS assets (
    filename TEXT PRIMARY KEY,
    original_name TEXT NOT NULL,
    width INTEGER NOT NULL,
    height INTEGER NOT NULL,
    size INTEGER NOT NULL,
    uploaded_at TEXT NOT NULL
);
`)
	return err
}

// storedRecord is one row of the records table. Data holds the full entity as
// JSON; the other columns are copies used for lookups and ordering.
type storedRecord struct {
	Record content.Record
	Data   []byte
}

// ListQuery filters and paginates a collection listing.
type ListQuery struct {
	Status   content.Status // empty matches every status
	Tag      string
	Category string
	Page     int // 1-based
	Limit    int // <= 0 returns everything
}

// SlugExists reports whether another record of kind uses slug. excludeID is
// the record being updated, or empty on create.
func (s *Store) SlugExists(ctx context.Context, kind Kind, slug, excludeID string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM records WHERE kind = ? AND slug = ? AND id != ?`,
		string(kind), slug, excludeID).Scan(&n)
	if err != nil {
		return false, content.Unavailable("slug exists", err)
	}
	return n > 0, nil
}

func (s *Store) insertRecord(ctx context.Context, kind Kind, r storedRecord) error {
	_, err := s.db.ExecContext(ctx, `
INSERT INTO records (id, kind, slug, title, status, publish_date, category, tags, data, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.Record.ID, string(kind), r.Record.Slug, r.Record.Title, string(r.Record.Status),
		formatTimePtr(r.Record.PublishDate), r.Record.Category, joinTags(r.Record.Tags),
		string(r.Data), formatTime(r.Record.CreatedAt), formatTime(r.Record.UpdatedAt))
	return writeError("insert record", err)
}

func (s *Store) updateRecord(ctx context.Context, kind Kind, r storedRecord) error {
	res, err := s.db.ExecContext(ctx, `
UPDATE records SET slug = ?, title = ?, status = ?, publish_date = ?, category = ?, tags = ?, data = ?, updated_at = ?
WHERE id = ? AND kind = ?`,
		r.Record.Slug, r.Record.Title, string(r.Record.Status), formatTimePtr(r.Record.PublishDate),
		r.Record.Category, joinTags(r.Record.Tags), string(r.Data), formatTime(r.Record.UpdatedAt),
		r.Record.ID, string(kind))
	if err != nil {
		return writeError("update record", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return content.Unavailable("update record", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) recordData(ctx context.Context, kind Kind, id string) ([]byte, error) {
	var data string
	err := s.db.QueryRowContext(ctx, `SELECT data FROM records WHERE kind = ? AND id = ?`, string(kind), id).Scan(&data)
	if err != nil {
		return nil, readError("get record", err)
	}
	return []byte(data), nil
}

func (s *Store) recordDataBySlug(ctx context.Context, kind Kind, slug string, status content.Status) ([]byte, error) {
	query := `SELECT data FROM records WHERE kind = ? AND slug = ?`
	args := []any{string(kind), slug}
	if status != "" {
		query += ` AND status = ?`
		args = append(args, string(status))
	}
	var data string
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&data); err != nil {
		return nil, readError("get record by slug", err)
	}
	return []byte(data), nil
}

// listRecordData returns the JSON of matching records, newest publication
// first, and the total match count ignoring pagination.
func (s *Store) listRecordData(ctx context.Context, kind Kind, q ListQuery) ([][]byte, int, error) {
	where := []string{"kind = ?"}
	args := []any{string(kind)}
	if q.Status != "" {
		where = append(where, "status = ?")
		args = append(args, string(q.Status))
	}
	if tag := normalizeTag(q.Tag); tag != "" {
		where = append(where, "instr(tags, ',' || ? || ',') > 0")
		args = append(args, tag)
	}
	if cat := strings.TrimSpace(q.Category); cat != "" {
		where = append(where, "lower(category) = lower(?)")
		args = append(args, cat)
	}
	cond := strings.Join(where, " AND ")

	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM records WHERE `+cond, args...).Scan(&total); err != nil {
		return nil, 0, content.Unavailable("count records", err)
	}

	query := `SELECT data FROM records WHERE ` + cond + ` ORDER BY COALESCE(publish_date, created_at) DESC, created_at DESC`
	if q.Limit > 0 {
		page := q.Page
		if page < 1 {
			page = 1
		}
		query += ` LIMIT ? OFFSET ?`
		args = append(args, q.Limit, (page-1)*q.Limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, content.Unavailable("list records", err)
	}
	defer rows.Close()

	var out [][]byte
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, 0, content.Unavailable("list records", errors.Wrap(err, "scan"))
		}
		out = append(out, []byte(data))
	}
	if err := rows.Err(); err != nil {
		return nil, 0, content.Unavailable("list records", err)
	}
	return out, total, nil
}

// deleteRecord removes a record and returns its JSON so the caller can
// release what it referenced.
func (s *Store) deleteRecord(ctx context.Context, kind Kind, id string) ([]byte, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, content.Unavailable("delete record", err)
	}
	defer tx.Rollback()

	var data string
	if err := tx.QueryRowContext(ctx, `SELECT data FROM records WHERE kind = ? AND id = ?`, string(kind), id).Scan(&data); err != nil {
		return nil, readError("delete record", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM records WHERE kind = ? AND id = ?`, string(kind), id); err != nil {
		return nil, content.Unavailable("delete record", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, content.Unavailable("delete record", errors.Wrap(err, "commit"))
	}
	return []byte(data), nil
}

// ListTags returns a sorted, deduplicated slice of the tags used by
// published records of kind.
func (s *Store) ListTags(ctx context.Context, kind Kind) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT tags FROM records WHERE kind = ? AND status = ?`, string(kind), string(content.Published))
	if err != nil {
		return nil, content.Unavailable("list tags", err)
	}
	defer rows.Close()

	set := make(map[string]struct{})
	for rows.Next() {
		var tags string
		if err := rows.Scan(&tags); err != nil {
			return nil, content.Unavailable("list tags", err)
		}
		for _, t := range ParseTags(tags) {
			set[t] = struct{}{}
		}
	}
	if err := rows.Err(); err != nil {
		return nil, content.Unavailable("list tags", err)
	}
	result := make([]string, 0, len(set))
	for t := range set {
		result = append(result, t)
	}
	sort.Strings(result)
	return result, nil
}

// SaveAsset records metadata for an uploaded file. It returns ErrAssetExists
// if filename is already recorded.
func (s *Store) SaveAsset(ctx context.Context, a Asset) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO assets (filename, original_name, width, height, size, uploaded_at) VALUES (?, ?, ?, ?, ?, ?)`,
		a.Filename, a.OriginalName, a.Width, a.Height, a.Size, a.UploadedAt)
	if err != nil && isUniqueViolation(err, "assets.filename") {
		return ErrAssetExists
	}
	return content.Unavailable("save asset", err)
}

// AssetExists reports whether filename is already recorded.
func (s *Store) AssetExists(ctx context.Context, filename string) (bool, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM assets WHERE filename = ?`, filename).Scan(&n); err != nil {
		return false, content.Unavailable("asset exists", err)
	}
	return n > 0, nil
}

// ListAssets returns every uploaded asset, newest first.
func (s *Store) ListAssets(ctx context.Context) ([]Asset, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT filename, original_name, width, height, size, uploaded_at FROM assets ORDER BY uploaded_at DESC`)
	if err != nil {
		return nil, content.Unavailable("list assets", err)
	}
	defer rows.Close()

	var assets []Asset
	for rows.Next() {
		var a Asset
		if err := rows.Scan(&a.Filename, &a.OriginalName, &a.Width, &a.Height, &a.Size, &a.UploadedAt); err != nil {
			return nil, content.Unavailable("list assets", err)
		}
		assets = append(assets, a)
	}
	if err := rows.Err(); err != nil {
		return nil, content.Unavailable("list assets", err)
	}
	return assets, nil
}

// AssetInUse reports whether any record's data holds ref as a complete JSON
// string value, e.g. "/uploads/photo.jpg".
func (s *Store) AssetInUse(ctx context.Context, ref string) (bool, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM records WHERE instr(data, '"' || ? || '"') > 0`, ref).Scan(&n); err != nil {
		return false, content.Unavailable("asset in use", err)
	}
	return n > 0, nil
}

// DeleteAsset removes asset metadata. Deleting a missing asset is not an error.
func (s *Store) DeleteAsset(ctx context.Context, filename string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM assets WHERE filename = ?`, filename)
	return content.Unavailable("delete asset", err)
}

func readError(op string, err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return content.Unavailable(op, err)
}

// writeError maps a unique index violation on slug to content.ErrSlugTaken.
func writeError(op string, err error) error {
	if err == nil {
		return nil
	}
	if isSlugConflict(err) {
		return content.ErrSlugTaken
	}
	return content.Unavailable(op, err)
}

func isSlugConflict(err error) bool {
	return isUniqueViolation(err, "records.slug")
}

// isUniqueViolation reports whether err is a unique constraint failure on
// column, given as table.column.
func isUniqueViolation(err error, column string) bool {
	msg := err.Error()
	var se *sqlite.Error
	if errors.As(err, &se) && se.Code() != sqlite3.SQLITE_CONSTRAINT_UNIQUE && se.Code() != sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY {
		return false
	}
	return strings.Contains(msg, "constraint failed") && strings.Contains(msg, column)
}

// joinTags normalizes tags into the ",a,b," form used for instr() lookups.
func joinTags(tags []string) string {
	return "," + strings.Join(normalizeTags(tags), ",") + ","
}

// normalizeTags lowercases, trims and deduplicates tags, keeping order.
func normalizeTags(tags []string) []string {
	seen := make(map[string]struct{}, len(tags))
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		t = normalizeTag(t)
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}

// normalizeTag drops commas, which delimit the stored tag column.
func normalizeTag(t string) string {
	return strings.ToLower(strings.TrimSpace(strings.ReplaceAll(t, ",", "")))
}

// ParseTags splits a comma-delimited tag string (e.g. ",go,web,") into a slice.
func ParseTags(tagString string) []string {
	tagString = strings.Trim(tagString, ",")
	if tagString == "" {
		return nil
	}
	parts := strings.Split(tagString, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func formatTimePtr(t *time.Time) any {
	if t == nil {
		return nil
	}
	return formatTime(*t)
}
