package app

import (
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"github.com/jaakkos/sketchstore/internal/domain"
)

type mockPolicy struct {
	signalPath string
}

func (p *mockPolicy) SignalFilePath() string    { return p.signalPath }
func (p *mockPolicy) IsToolEnabled(string) bool { return true }

type countingTrigger struct {
	mu sync.Mutex
	n  int
}

func (c *countingTrigger) Trigger() {
	c.mu.Lock()
	c.n++
	c.mu.Unlock()
}

type failingRepo struct {
	notifierTestRepo
	loadErr error
	saveErr error
}

func (r *failingRepo) Load() (*domain.Snapshot, error) {
	if r.loadErr != nil {
		return nil, r.loadErr
	}
	return r.notifierTestRepo.Load()
}

func (r *failingRepo) Save(s *domain.Snapshot) error {
	if r.saveErr != nil {
		return r.saveErr
	}
	return r.notifierTestRepo.Save(s)
}

func newTestService() (*EditorService, *notifierTestRepo) {
	repo := &notifierTestRepo{}
	return NewEditorService(repo, &mockPolicy{}, nil), repo
}

func TestEditorService_InitialNull(t *testing.T) {
	svc, _ := newTestService()
	got, err := svc.GetStoreData()
	if err != nil {
		t.Fatalf("GetStoreData: %v", err)
	}
	if string(got.Data) != "null" {
		t.Errorf("Data = %s, want null", got.Data)
	}
}

func TestEditorService_SaveAndGet(t *testing.T) {
	svc, _ := newTestService()
	data := json.RawMessage(`{"shapes":[],"records":{}}`)

	res, err := svc.SaveStoreData(data)
	if err != nil {
		t.Fatalf("SaveStoreData: %v", err)
	}
	if !res.Success || string(res.Data) != string(data) {
		t.Errorf("SaveResult = %+v, want success echoing data", res)
	}

	got, err := svc.GetStoreData()
	if err != nil {
		t.Fatalf("GetStoreData: %v", err)
	}
	if string(got.Data) != string(data) {
		t.Errorf("Data = %s, want %s", got.Data, data)
	}
}

func TestEditorService_Overwrite(t *testing.T) {
	svc, _ := newTestService()
	if _, err := svc.SaveStoreData(json.RawMessage(`{"shapes":["shape1"]}`)); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.SaveStoreData(json.RawMessage(`{"shapes":["shape2"]}`)); err != nil {
		t.Fatal(err)
	}
	got, _ := svc.GetStoreData()
	if string(got.Data) != `{"shapes":["shape2"]}` {
		t.Errorf("Data = %s, want second write", got.Data)
	}
}

func TestEditorService_RevisionAndVersion(t *testing.T) {
	svc, _ := newTestService()
	_, _ = svc.SaveStoreData(json.RawMessage(`1`))
	first, _ := svc.Snapshot()
	_, _ = svc.SaveStoreData(json.RawMessage(`2`))
	second, _ := svc.Snapshot()

	if first.Revision != 1 || second.Revision != 2 {
		t.Errorf("revisions = %d, %d, want 1, 2", first.Revision, second.Revision)
	}
	if first.VersionID == "" || first.VersionID == second.VersionID {
		t.Errorf("version IDs should be set and distinct: %q %q", first.VersionID, second.VersionID)
	}
	if second.UpdatedAt.IsZero() {
		t.Error("UpdatedAt should be set")
	}

	if _, err := svc.ClearStoreData(); err != nil {
		t.Fatalf("ClearStoreData: %v", err)
	}
	cleared, _ := svc.Snapshot()
	if cleared.Revision != 3 {
		t.Errorf("revision after clear = %d, want 3", cleared.Revision)
	}
	if !cleared.IsEmpty() || cleared.VersionID != "" {
		t.Errorf("cleared snapshot = %+v, want empty with no version", cleared)
	}
}

func TestEditorService_EmptyAndFalsyValues(t *testing.T) {
	svc, _ := newTestService()
	for _, v := range []string{`{}`, `[]`, `""`, `0`, `false`, `null`} {
		res, err := svc.SaveStoreData(json.RawMessage(v))
		if err != nil {
			t.Fatalf("SaveStoreData(%s): %v", v, err)
		}
		if !res.Success {
			t.Errorf("SaveStoreData(%s) not successful", v)
		}
		got, _ := svc.GetStoreData()
		if string(got.Data) != v {
			t.Errorf("GetStoreData after %s = %s", v, got.Data)
		}
	}
}

func TestEditorService_UndefinedBecomesNull(t *testing.T) {
	svc, _ := newTestService()
	res, err := svc.SaveStoreData(nil)
	if err != nil {
		t.Fatalf("SaveStoreData(nil): %v", err)
	}
	if string(res.Data) != "null" {
		t.Errorf("Data = %s, want null", res.Data)
	}
}

func TestEditorService_RejectsInvalidJSON(t *testing.T) {
	svc, repo := newTestService()
	if _, err := svc.SaveStoreData(json.RawMessage(`{"a":`)); err == nil {
		t.Fatal("expected error for malformed json")
	}
	if repo.snap != nil {
		t.Error("malformed input must not reach the repository")
	}
}

func TestEditorService_IntegrityAcrossOperations(t *testing.T) {
	svc, _ := newTestService()
	ops := []string{
		`{"step":1,"content":"first"}`,
		`{"step":2,"content":"second"}`,
		`null`,
		`{"step":3,"content":"third"}`,
	}
	for _, op := range ops {
		if _, err := svc.SaveStoreData(json.RawMessage(op)); err != nil {
			t.Fatal(err)
		}
		got, _ := svc.GetStoreData()
		if string(got.Data) != op {
			t.Errorf("after save %s got %s", op, got.Data)
		}
	}
}

func TestEditorService_ConcurrentSaves(t *testing.T) {
	svc, _ := newTestService()
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := svc.SaveStoreData(json.RawMessage(fmt.Sprintf(`{"concurrent":%d}`, i)))
			if err != nil || !res.Success {
				t.Errorf("save %d: %+v %v", i, res, err)
			}
		}(i)
	}
	wg.Wait()

	got, _ := svc.GetStoreData()
	var v struct {
		Concurrent *int `json:"concurrent"`
	}
	if err := json.Unmarshal(got.Data, &v); err != nil || v.Concurrent == nil {
		t.Fatalf("final data %s should hold a concurrent number (%v)", got.Data, err)
	}
	if *v.Concurrent < 0 || *v.Concurrent > 9 {
		t.Errorf("concurrent = %d, want one of the writers", *v.Concurrent)
	}
	snap, _ := svc.Snapshot()
	if snap.Revision != 10 {
		t.Errorf("Revision = %d, want 10 (every save applied)", snap.Revision)
	}
}

func TestEditorService_TouchesSignalAndTriggers(t *testing.T) {
	signalPath := filepath.Join(t.TempDir(), ".sketchstore-notify")
	repo := &notifierTestRepo{}
	svc := NewEditorService(repo, &mockPolicy{signalPath: signalPath}, nil)
	trig := &countingTrigger{}
	svc.SetNotifier(trig)

	if _, err := svc.SaveStoreData(json.RawMessage(`{"a":1}`)); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.ClearStoreData(); err != nil {
		t.Fatal(err)
	}
	if trig.n != 2 {
		t.Errorf("Trigger called %d times, want 2", trig.n)
	}
	if stamp := ReadNotifySignal(signalPath); stamp == "" {
		t.Error("signal file should be stamped after a write")
	}
}

func TestEditorService_LoadErrorBlocksWrite(t *testing.T) {
	loadErr := errors.New("disk gone")
	repo := &failingRepo{loadErr: loadErr}
	svc := NewEditorService(repo, &mockPolicy{}, nil)
	trig := &countingTrigger{}
	svc.SetNotifier(trig)

	if _, err := svc.SaveStoreData(json.RawMessage(`1`)); !errors.Is(err, loadErr) {
		t.Errorf("SaveStoreData error = %v, want wrapped load error", err)
	}
	if _, err := svc.GetStoreData(); !errors.Is(err, loadErr) {
		t.Errorf("GetStoreData error = %v, want wrapped load error", err)
	}
	if trig.n != 0 {
		t.Error("failed write must not trigger the notifier")
	}
}

func TestEditorService_SaveErrorSurfaces(t *testing.T) {
	saveErr := errors.New("read-only")
	repo := &failingRepo{saveErr: saveErr}
	svc := NewEditorService(repo, &mockPolicy{}, nil)
	if _, err := svc.SaveStoreData(json.RawMessage(`1`)); !errors.Is(err, saveErr) {
		t.Errorf("SaveStoreData error = %v, want wrapped save error", err)
	}
	if _, err := svc.ClearStoreData(); !errors.Is(err, saveErr) {
		t.Errorf("ClearStoreData error = %v, want wrapped save error", err)
	}
}
