package supervisor

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"proxyctl/internal/shared/types"
)

func TestRecord_SaveLoadRemove(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mihomo.pid")
	r := NewRecord(path)

	if _, ok, err := r.Load(); err != nil || ok {
		t.Fatalf("Load on empty dir = ok:%v err:%v, want none", ok, err)
	}

	if err := r.Save(4242); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "4242" {
		t.Fatalf("record content = %q, want exactly \"4242\"", data)
	}

	pid, ok, err := r.Load()
	if err != nil || !ok || pid != 4242 {
		t.Fatalf("Load = (%d, %v, %v), want (4242, true, nil)", pid, ok, err)
	}

	if err := r.Remove(); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	if err := r.Remove(); err != nil {
		t.Fatalf("second Remove should be a no-op, got %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("record still exists after Remove")
	}
}

func TestRecord_MalformedContentIsDiscarded(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mihomo.pid")
	if err := os.WriteFile(path, []byte("not-a-pid"), 0644); err != nil {
		t.Fatal(err)
	}

	_, ok, err := NewRecord(path).Load()
	if err != nil || ok {
		t.Fatalf("Load = ok:%v err:%v, want none", ok, err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("malformed record should have been removed")
	}
}

func TestRecord_SaveIntoMissingDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing", "mihomo.pid")
	err := NewRecord(path).Save(10)
	if !errors.Is(err, types.ErrPersistence) {
		t.Fatalf("Save error = %v, want persistence error", err)
	}
}
