package storage

import (
	"database/sql"
	"embed"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strings"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/kalambet/tweaks/internal/tweak"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Extension is the file extension of partitioned archives.
const Extension = "db"

// FormatTag identifies the partition layout. Archives carrying a different
// tag are not read. Partition names are the kind tags and must not change
// without bumping this tag.
const FormatTag = "tweaks.partitioned.v1"

// ErrFormatMismatch is returned when a file is a database but not an
// archive of the expected format.
var ErrFormatMismatch = errors.New("archive format mismatch")

const colorPayloadSize = 16

// Archive stores a tweak cache in a SQLite file, partitioned by kind so that
// every value is read back as the kind it was written as.
type Archive struct {
	path   string
	logger *slog.Logger
}

// New returns an Archive at path. The parent directory must exist before Save.
func New(path string, logger *slog.Logger) *Archive {
	if logger == nil {
		logger = slog.Default()
	}
	return &Archive{path: path, logger: logger}
}

// Path returns the archive file.
func (a *Archive) Path() string { return a.path }

// Load reads every partition. A missing file yields an empty cache without
// creating it. Rows whose payload does not fit their partition's kind are
// skipped individually.
func (a *Archive) Load() (tweak.Cache, error) {
	if _, err := os.Stat(a.path); os.IsNotExist(err) {
		return tweak.Cache{}, nil
	}

	db, err := openDB(a.path)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	if err := checkFormat(db); err != nil {
		return nil, err
	}

	cache := tweak.Cache{}
	for _, kind := range tweak.Kinds() {
		if err := a.loadPartition(db, kind, cache); err != nil {
			return nil, fmt.Errorf("reading %s partition: %w", kind.Tag(), err)
		}
	}
	return cache, nil
}

func (a *Archive) loadPartition(db *sql.DB, kind tweak.Kind, cache tweak.Cache) error {
	rows, err := db.Query("SELECT entry_id, payload FROM partitions WHERE kind = ? ORDER BY entry_id", kind.Tag())
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var id string
		var payload any
		if err := rows.Scan(&id, &payload); err != nil {
			return err
		}
		v, ok := decodePayload(kind, payload)
		if !ok {
			a.logger.Debug("skipping malformed archive entry", "id", id, "kind", kind.Tag(), "payload_type", fmt.Sprintf("%T", payload))
			continue
		}
		cache[tweak.ID(id)] = v
	}
	return rows.Err()
}

// Save writes the cache to a fresh database next to the target and renames
// it over the target, so readers never see a partially written archive.
func (a *Archive) Save(cache tweak.Cache) error {
	tmp := filepath.Join(filepath.Dir(a.path), "."+filepath.Base(a.path)+"."+uuid.New().String()+".tmp")
	if err := writeArchive(tmp, cache); err != nil {
		removeDB(tmp)
		return err
	}
	if err := os.Rename(tmp, a.path); err != nil {
		removeDB(tmp)
		return fmt.Errorf("replacing %s: %w", a.path, err)
	}
	return nil
}

func writeArchive(path string, cache tweak.Cache) error {
	db, err := openDB(path)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := migrate(db); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	if _, err := tx.Exec("INSERT INTO archive_meta (key, value) VALUES ('format', ?)", FormatTag); err != nil {
		tx.Rollback()
		return fmt.Errorf("writing format tag: %w", err)
	}

	stmt, err := tx.Prepare("INSERT INTO partitions (kind, entry_id, payload) VALUES (?, ?, ?)")
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	ids := make([]string, 0, len(cache))
	for id := range cache {
		ids = append(ids, string(id))
	}
	sort.Strings(ids)

	for _, id := range ids {
		v := cache[tweak.ID(id)]
		payload, ok := encodePayload(v)
		if !ok {
			continue
		}
		if _, err := stmt.Exec(v.Kind().Tag(), id, payload); err != nil {
			tx.Rollback()
			return fmt.Errorf("writing %s: %w", id, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing archive: %w", err)
	}
	return nil
}

func openDB(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening archive: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging archive: %w", err)
	}

	// Limit to single connection to avoid "database is locked" errors.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}
	return db, nil
}

func removeDB(path string) {
	os.Remove(path)
	os.Remove(path + "-journal")
}

func checkFormat(db *sql.DB) error {
	versions, err := appliedMigrations(db)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrFormatMismatch, err)
	}
	if !slices.Contains(versions, 1) {
		return fmt.Errorf("%w: partition schema missing", ErrFormatMismatch)
	}

	var tag string
	if err := db.QueryRow("SELECT value FROM archive_meta WHERE key = 'format'").Scan(&tag); err != nil {
		return fmt.Errorf("%w: reading format tag: %v", ErrFormatMismatch, err)
	}
	if tag != FormatTag {
		return fmt.Errorf("%w: got %q, want %q", ErrFormatMismatch, tag, FormatTag)
	}
	return nil
}

// migrate reads embedded SQL migration files and applies any that haven't been run yet.
func migrate(db *sql.DB) error {
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY,
		applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)`); err != nil {
		return fmt.Errorf("creating schema_version table: %w", err)
	}

	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}

	// Sort by filename to guarantee ascending order.
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}

		version, err := parseMigrationVersion(entry.Name())
		if err != nil {
			return err
		}

		var exists int
		if err := db.QueryRow("SELECT COUNT(*) FROM schema_version WHERE version = ?", version).Scan(&exists); err != nil {
			return fmt.Errorf("checking migration %d: %w", version, err)
		}
		if exists > 0 {
			continue
		}

		content, err := migrationsFS.ReadFile("migrations/" + entry.Name())
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", entry.Name(), err)
		}

		tx, err := db.Begin()
		if err != nil {
			return fmt.Errorf("beginning transaction for migration %d: %w", version, err)
		}
		if _, err := tx.Exec(string(content)); err != nil {
			tx.Rollback()
			return fmt.Errorf("applying migration %d: %w", version, err)
		}
		if _, err := tx.Exec("INSERT INTO schema_version (version) VALUES (?)", version); err != nil {
			tx.Rollback()
			return fmt.Errorf("recording migration %d: %w", version, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("committing migration %d: %w", version, err)
		}
	}

	return nil
}

func parseMigrationVersion(filename string) (int, error) {
	var version int
	if _, err := fmt.Sscanf(filename, "%d_", &version); err != nil {
		return 0, fmt.Errorf("parsing migration version from %q: %w", filename, err)
	}
	return version, nil
}

// appliedMigrations returns the applied migration versions in ascending order.
func appliedMigrations(db *sql.DB) ([]int, error) {
	rows, err := db.Query("SELECT version FROM schema_version ORDER BY version ASC")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var versions []int
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		versions = append(versions, v)
	}
	return versions, rows.Err()
}

func encodePayload(v tweak.Value) (any, bool) {
	switch v.Kind() {
	case tweak.KindBool:
		b, _ := v.AsBool()
		if b {
			return int64(1), true
		}
		return int64(0), true
	case tweak.KindInt:
		i, _ := v.AsInt()
		return i, true
	case tweak.KindFloat32:
		f, _ := v.AsFloat32()
		return float64(f), true
	case tweak.KindFloat64:
		f, _ := v.AsFloat64()
		return f, true
	case tweak.KindColor:
		c, _ := v.AsColor()
		buf := make([]byte, colorPayloadSize)
		for i, ch := range []float32{c.R, c.G, c.B, c.A} {
			binary.BigEndian.PutUint32(buf[i*4:], math.Float32bits(ch))
		}
		return buf, true
	case tweak.KindString, tweak.KindStringOption:
		s, _ := v.AsString()
		return s, true
	default:
		return nil, false
	}
}

// decodePayload rebuilds a value of the partition's kind. The payload's
// storage class is only checked for compatibility, never used to pick the
// kind.
func decodePayload(kind tweak.Kind, payload any) (tweak.Value, bool) {
	switch kind {
	case tweak.KindBool:
		i, ok := payload.(int64)
		if !ok || (i != 0 && i != 1) {
			return tweak.Value{}, false
		}
		return tweak.Bool(i == 1), true
	case tweak.KindInt:
		i, ok := payload.(int64)
		if !ok {
			return tweak.Value{}, false
		}
		return tweak.Int(i), true
	case tweak.KindFloat32:
		f, ok := asFloat(payload)
		if !ok || math.Abs(f) > math.MaxFloat32 {
			return tweak.Value{}, false
		}
		return tweak.Float32(float32(f)), true
	case tweak.KindFloat64:
		f, ok := asFloat(payload)
		if !ok {
			return tweak.Value{}, false
		}
		return tweak.Float64(f), true
	case tweak.KindColor:
		b, ok := payload.([]byte)
		if !ok || len(b) != colorPayloadSize {
			return tweak.Value{}, false
		}
		ch := func(i int) float32 { return math.Float32frombits(binary.BigEndian.Uint32(b[i*4:])) }
		return tweak.ColorValue(tweak.Color{R: ch(0), G: ch(1), B: ch(2), A: ch(3)}), true
	case tweak.KindString:
		s, ok := payload.(string)
		if !ok {
			return tweak.Value{}, false
		}
		return tweak.String(s), true
	case tweak.KindStringOption:
		s, ok := payload.(string)
		if !ok {
			return tweak.Value{}, false
		}
		return tweak.StringOption(s, nil), true
	default:
		return tweak.Value{}, false
	}
}

func asFloat(payload any) (float64, bool) {
	switch p := payload.(type) {
	case float64:
		return p, true
	case int64:
		return float64(p), true
	default:
		return 0, false
	}
}
