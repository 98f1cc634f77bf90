package client

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func runFileSync(t *testing.T, fs *FileSync) context.CancelFunc {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- fs.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		select {
		case err := <-done:
			if err != nil {
				t.Errorf("Run: %v", err)
			}
		case <-time.After(time.Second):
			t.Error("Run did not return after cancel")
		}
	})
	return cancel
}

func TestFileSync_SavesOnWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "snapshot.json")
	remote := newFakeRemote()
	b := NewBridge(remote, nil, WithDelay(20*time.Millisecond))
	runFileSync(t, NewFileSync(path, b, nil, WithSyncPollInterval(50*time.Millisecond)))

	time.Sleep(30 * time.Millisecond)
	if err := os.WriteFile(path, []byte(`{"shapes":["a"]}`), 0644); err != nil {
		t.Fatal(err)
	}
	remote.waitSave(t)
	if got := remote.savedValues(); len(got) != 1 || got[0] != `{"shapes":["a"]}` {
		t.Errorf("saves = %v", got)
	}
}

func TestFileSync_SkipsInvalidJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "snapshot.json")
	remote := newFakeRemote()
	b := NewBridge(remote, nil, WithDelay(10*time.Millisecond))
	fs := NewFileSync(path, b, nil, WithSyncPollInterval(time.Hour))

	if err := os.WriteFile(path, []byte(`{"partial":`), 0644); err != nil {
		t.Fatal(err)
	}
	fs.sync()
	if b.Pending() {
		t.Error("invalid JSON must not be sent")
	}

	if err := os.WriteFile(path, []byte(`{"partial":true}`), 0644); err != nil {
		t.Fatal(err)
	}
	fs.sync()
	fs.sync() // unchanged content is not re-sent
	remote.waitSave(t)
	time.Sleep(30 * time.Millisecond)
	if got := remote.savedValues(); len(got) != 1 {
		t.Errorf("saves = %v, want exactly one", got)
	}
}

func TestFileSync_PullFillsEmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "snapshot.json")
	remote := newFakeRemote()
	remote.data = json.RawMessage(`{"from":"server"}`)
	b := NewBridge(remote, nil, WithDelay(10*time.Millisecond))
	fs := NewFileSync(path, b, nil, WithPull(true))

	if err := fs.pullInitial(context.Background()); err != nil {
		t.Fatalf("pullInitial: %v", err)
	}
	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != `{"from":"server"}` {
		t.Errorf("file = %s", got)
	}

	// The pulled content must not bounce back as a save.
	fs.sync()
	if b.Pending() {
		t.Error("pulled content should not be re-saved")
	}
}

func TestFileSync_PullKeepsExistingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "snapshot.json")
	if err := os.WriteFile(path, []byte(`{"local":1}`), 0644); err != nil {
		t.Fatal(err)
	}
	remote := newFakeRemote()
	remote.data = json.RawMessage(`{"from":"server"}`)
	fs := NewFileSync(path, NewBridge(remote, nil), nil, WithPull(true))

	if err := fs.pullInitial(context.Background()); err != nil {
		t.Fatal(err)
	}
	got, _ := os.ReadFile(path)
	if string(got) != `{"local":1}` {
		t.Errorf("existing file overwritten: %s", got)
	}
}
