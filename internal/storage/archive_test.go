package storage

import (
	"database/sql"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/kalambet/tweaks/internal/tweak"
)

func newTestArchive(t *testing.T) *Archive {
	t.Helper()
	return New(filepath.Join(t.TempDir(), "tweaks.db"), nil)
}

func sampleCache() tweak.Cache {
	return tweak.Cache{
		tweak.MustID("App", "Flags", "Enabled"):  tweak.Bool(true),
		tweak.MustID("App", "Flags", "Disabled"): tweak.Bool(false),
		tweak.MustID("App", "Layout", "Count"):   tweak.Int(1),
		tweak.MustID("App", "Layout", "Zero"):    tweak.Int(0),
		tweak.MustID("App", "Layout", "Big"):     tweak.Int(math.MinInt64),
		tweak.MustID("App", "Anim", "Duration"):  tweak.Float32(0.1),
		tweak.MustID("App", "Anim", "Whole"):     tweak.Float32(2),
		tweak.MustID("App", "Anim", "Damping"):   tweak.Float64(0.1),
		tweak.MustID("App", "Theme", "Tint"):     tweak.ColorValue(tweak.Color{R: 0.2, G: 0.4, B: 0.6, A: 1}),
		tweak.MustID("App", "Copy", "Title"):     tweak.String("Hello | world"),
		tweak.MustID("App", "Copy", "Empty"):     tweak.String(""),
	}
}

func assertCacheEqual(t *testing.T, got, want tweak.Cache) {
	t.Helper()
	if len(got) != len(want) {
		t.Errorf("len = %d, want %d (got %v)", len(got), len(want), got)
	}
	for id, w := range want {
		g, ok := got[id]
		if !ok {
			t.Errorf("%s missing", id)
			continue
		}
		if !g.Equal(w) {
			t.Errorf("%s = %v (%s), want %v (%s)", id, g, g.Kind(), w, w.Kind())
		}
	}
}

func TestArchiveRoundTrip(t *testing.T) {
	a := newTestArchive(t)

	want := sampleCache()
	if err := a.Save(want); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err := a.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	assertCacheEqual(t, got, want)
}

// TestArchiveKindFidelity checks that booleans and integers sharing the same
// numeric payload come back as the kind they were written as.
func TestArchiveKindFidelity(t *testing.T) {
	a := newTestArchive(t)

	b := tweak.MustID("c", "g", "bool")
	i := tweak.MustID("c", "g", "int")
	if err := a.Save(tweak.Cache{b: tweak.Bool(true), i: tweak.Int(1)}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err := a.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got[b].Kind() != tweak.KindBool || !got[b].Equal(tweak.Bool(true)) {
		t.Errorf("bool came back as %v (%s)", got[b], got[b].Kind())
	}
	if got[i].Kind() != tweak.KindInt || !got[i].Equal(tweak.Int(1)) {
		t.Errorf("int came back as %v (%s)", got[i], got[i].Kind())
	}
}

func TestArchiveStringOptionKeepsChoiceOnly(t *testing.T) {
	a := newTestArchive(t)
	id := tweak.MustID("c", "g", "speed")

	if err := a.Save(tweak.Cache{id: tweak.StringOption("fast", []string{"slow", "fast"})}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err := a.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	v := got[id]
	if v.Kind() != tweak.KindStringOption {
		t.Fatalf("kind = %s, want stringlist", v.Kind())
	}
	if s, _ := v.AsString(); s != "fast" {
		t.Errorf("choice = %q, want fast", s)
	}
	if len(v.Allowed()) != 0 {
		t.Errorf("allowed list must not be persisted, got %v", v.Allowed())
	}
}

func TestArchivePartitionsByTag(t *testing.T) {
	a := newTestArchive(t)
	if err := a.Save(sampleCache()); err != nil {
		t.Fatalf("Save: %v", err)
	}

	db := openRaw(t, a.Path())
	rows, err := db.Query("SELECT DISTINCT kind FROM partitions ORDER BY kind")
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	defer rows.Close()

	var kinds []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			t.Fatal(err)
		}
		kinds = append(kinds, k)
	}
	want := []string{"boolean", "cgfloat", "double", "integer", "string", "uicolor"}
	if len(kinds) != len(want) {
		t.Fatalf("partitions = %v, want %v", kinds, want)
	}
	for i := range want {
		if kinds[i] != want[i] {
			t.Errorf("partitions = %v, want %v", kinds, want)
			break
		}
	}
}

// TestArchiveMalformedEntryIsolation corrupts individual rows and checks the
// remaining entries decode untouched.
func TestArchiveMalformedEntryIsolation(t *testing.T) {
	a := newTestArchive(t)
	want := sampleCache()
	if err := a.Save(want); err != nil {
		t.Fatalf("Save: %v", err)
	}

	db := openRaw(t, a.Path())
	bad := []struct {
		kind, id string
		payload  any
	}{
		{"boolean", "c|g|seven", int64(7)},
		{"integer", "c|g|text", "eleven"},
		{"uicolor", "c|g|short", []byte{1, 2, 3}},
		{"cgfloat", "c|g|huge", 1e300},
		{"sparkles", "c|g|unknown", int64(1)},
	}
	for _, b := range bad {
		if _, err := db.Exec("INSERT INTO partitions (kind, entry_id, payload) VALUES (?, ?, ?)", b.kind, b.id, b.payload); err != nil {
			t.Fatalf("insert %s: %v", b.id, err)
		}
	}
	db.Close()

	got, err := a.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	assertCacheEqual(t, got, want)
}

func TestArchiveMissingFile(t *testing.T) {
	a := newTestArchive(t)

	got, err := a.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("got %d entries, want 0", len(got))
	}
	if _, err := os.Stat(a.Path()); !os.IsNotExist(err) {
		t.Errorf("Load must not create the archive, stat err = %v", err)
	}
}

func TestArchiveRejectsForeignFiles(t *testing.T) {
	a := newTestArchive(t)

	if err := os.WriteFile(a.Path(), []byte("definitely not sqlite"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := a.Load(); err == nil {
		t.Error("expected error for non-database file")
	}

	// A database without the partition schema.
	os.Remove(a.Path())
	db := openRaw(t, a.Path())
	if _, err := db.Exec("CREATE TABLE other (x INTEGER)"); err != nil {
		t.Fatal(err)
	}
	db.Close()
	if _, err := a.Load(); !errors.Is(err, ErrFormatMismatch) {
		t.Errorf("err = %v, want ErrFormatMismatch", err)
	}
}

func TestArchiveRejectsOtherFormatTag(t *testing.T) {
	a := newTestArchive(t)
	if err := a.Save(sampleCache()); err != nil {
		t.Fatalf("Save: %v", err)
	}

	db := openRaw(t, a.Path())
	if _, err := db.Exec("UPDATE archive_meta SET value = 'tweaks.partitioned.v0' WHERE key = 'format'"); err != nil {
		t.Fatal(err)
	}
	db.Close()

	if _, err := a.Load(); !errors.Is(err, ErrFormatMismatch) {
		t.Errorf("err = %v, want ErrFormatMismatch", err)
	}
}

func TestArchiveSaveReplacesCorruptFile(t *testing.T) {
	a := newTestArchive(t)
	if err := os.WriteFile(a.Path(), []byte("garbage"), 0o644); err != nil {
		t.Fatal(err)
	}

	want := tweak.Cache{tweak.MustID("c", "g", "n"): tweak.Int(3)}
	if err := a.Save(want); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err := a.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	assertCacheEqual(t, got, want)

	entries, err := os.ReadDir(filepath.Dir(a.Path()))
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		var names []string
		for _, e := range entries {
			names = append(names, e.Name())
		}
		t.Errorf("leftover files after save: %v", names)
	}
}

func TestArchiveSaveEmptyCache(t *testing.T) {
	a := newTestArchive(t)
	if err := a.Save(sampleCache()); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := a.Save(tweak.Cache{}); err != nil {
		t.Fatalf("Save(empty): %v", err)
	}
	got, err := a.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("got %d entries after saving empty cache", len(got))
	}
}

func TestMigrationsIdempotent(t *testing.T) {
	db := openRaw(t, filepath.Join(t.TempDir(), "m.db"))

	if err := migrate(db); err != nil {
		t.Fatalf("first migrate: %v", err)
	}
	v1, err := appliedMigrations(db)
	if err != nil {
		t.Fatalf("appliedMigrations: %v", err)
	}
	if err := migrate(db); err != nil {
		t.Fatalf("second migrate: %v", err)
	}
	v2, err := appliedMigrations(db)
	if err != nil {
		t.Fatalf("appliedMigrations: %v", err)
	}
	if len(v1) == 0 || len(v1) != len(v2) {
		t.Errorf("migration count changed: %d -> %d", len(v1), len(v2))
	}
}

func openRaw(t *testing.T, path string) *sql.DB {
	t.Helper()
	db, err := openDB(path)
	if err != nil {
		t.Fatalf("openDB: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}
