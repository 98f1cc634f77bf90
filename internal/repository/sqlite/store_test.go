package sqlite

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/jaakkos/sketchstore/internal/domain"
)

func newTestStore(t *testing.T, path string) *Store {
	t.Helper()
	repo, err := New(path)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	st := repo.(*Store)
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func TestStoreRoundtrip(t *testing.T) {
	store := newTestStore(t, filepath.Join(t.TempDir(), "state.sqlite"))

	now := time.Now()
	in := &domain.Snapshot{
		Data:      json.RawMessage(`{"shapes":[{"id":"1","type":"rectangle","x":100,"y":100}],"records":{"1":{"id":"1"}}}`),
		Revision:  3,
		VersionID: "ver-3",
		UpdatedAt: now,
	}
	if err := store.Save(in); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, err := store.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if string(loaded.Data) != string(in.Data) {
		t.Errorf("Data = %s, want %s", loaded.Data, in.Data)
	}
	if loaded.Revision != 3 || loaded.VersionID != "ver-3" {
		t.Errorf("Revision=%d VersionID=%q, want 3, ver-3", loaded.Revision, loaded.VersionID)
	}
	if !loaded.UpdatedAt.Equal(now) {
		t.Errorf("UpdatedAt = %v, want %v", loaded.UpdatedAt, now)
	}
}

func TestStoreInitialNull(t *testing.T) {
	store := newTestStore(t, filepath.Join(t.TempDir(), "empty.sqlite"))
	snap, err := store.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !snap.IsEmpty() || snap.Revision != 0 {
		t.Errorf("initial snapshot = %+v, want empty", snap)
	}
}

func TestStoreOverwriteAndClear(t *testing.T) {
	store := newTestStore(t, filepath.Join(t.TempDir(), "ow.sqlite"))
	for i := 1; i <= 3; i++ {
		if err := store.Save(&domain.Snapshot{Data: json.RawMessage(fmt.Sprintf(`{"step":%d}`, i)), Revision: int64(i)}); err != nil {
			t.Fatalf("Save %d: %v", i, err)
		}
	}
	snap, _ := store.Load()
	if string(snap.Data) != `{"step":3}` || snap.Revision != 3 {
		t.Errorf("after overwrites got %s rev %d", snap.Data, snap.Revision)
	}

	var rows int
	if err := store.db.QueryRow("SELECT COUNT(*) FROM snapshot").Scan(&rows); err != nil {
		t.Fatal(err)
	}
	if rows != 1 {
		t.Errorf("rows = %d, want a single snapshot row", rows)
	}

	if err := store.Clear(); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	snap, _ = store.Load()
	if !snap.IsEmpty() {
		t.Errorf("Data after Clear = %s, want null", snap.Data)
	}
}

func TestStorePersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "reopen.sqlite")
	first, err := New(path)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := first.Save(&domain.Snapshot{Data: json.RawMessage(`[1,2,3]`), Revision: 9}); err != nil {
		t.Fatal(err)
	}
	_ = first.(*Store).Close()

	second := newTestStore(t, path)
	snap, err := second.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if string(snap.Data) != `[1,2,3]` || snap.Revision != 9 {
		t.Errorf("reopened snapshot = %s rev %d", snap.Data, snap.Revision)
	}
}

func TestStoreInMemoryIsPrivate(t *testing.T) {
	a := newTestStore(t, "")
	b := newTestStore(t, "")
	if err := a.Save(&domain.Snapshot{Data: json.RawMessage(`"a"`), Revision: 1}); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(a.dsn, "mode=memory") {
		t.Errorf("dsn = %q, want in-memory", a.dsn)
	}
	snap, err := b.Load()
	if err != nil {
		t.Fatal(err)
	}
	if !snap.IsEmpty() {
		t.Errorf("second in-memory store sees %s, want isolation", snap.Data)
	}
	got, _ := a.Load()
	if string(got.Data) != `"a"` {
		t.Errorf("in-memory data lost: %s", got.Data)
	}
}

func TestStoreLargeSnapshot(t *testing.T) {
	store := newTestStore(t, filepath.Join(t.TempDir(), "large.sqlite"))
	var b strings.Builder
	b.WriteString(`{"shapes":[`)
	for i := 0; i < 10000; i++ {
		if i > 0 {
			b.WriteByte(',')
		}
		fmt.Fprintf(&b, `{"id":%d,"data":"%s"}`, i, strings.Repeat(fmt.Sprintf("large-data-%d", i), 100))
	}
	b.WriteString(`]}`)
	data := json.RawMessage(b.String())

	if err := store.Save(&domain.Snapshot{Data: data, Revision: 1}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	snap, err := store.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(snap.Data) != len(data) {
		t.Errorf("len(Data) = %d, want %d", len(snap.Data), len(data))
	}
}

func TestStoreClose(t *testing.T) {
	repo, err := New(filepath.Join(t.TempDir(), "closed.sqlite"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	st := repo.(*Store)
	if err := st.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}
	if st.db != nil {
		t.Error("Close should set db to nil")
	}
	// Second Close is no-op
	if err := st.Close(); err != nil {
		t.Errorf("Second Close: %v", err)
	}
	if _, err := st.Load(); err == nil {
		t.Error("Load after Close should error")
	}
}

func TestSaveNil(t *testing.T) {
	store := newTestStore(t, filepath.Join(t.TempDir(), "nil.sqlite"))
	if err := store.Save(nil); err == nil {
		t.Error("Save(nil) should error")
	}
}
