package supervisor

import (
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"testing"

	"proxyctl/internal/shared/types"
)

// fakeTable is a scripted ProcessTable.
type fakeTable struct {
	mu           sync.Mutex
	alive        map[int]bool
	terminateErr error
	terminated   []int
	ignoreTerm   bool
	killed       []int
}

func newFakeTable(live ...int) *fakeTable {
	ft := &fakeTable{alive: make(map[int]bool)}
	for _, pid := range live {
		ft.alive[pid] = true
	}
	return ft
}

func (f *fakeTable) Alive(pid int) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.alive[pid]
}

func (f *fakeTable) Terminate(pid int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.terminated = append(f.terminated, pid)
	if f.terminateErr != nil {
		return f.terminateErr
	}
	if !f.ignoreTerm {
		delete(f.alive, pid)
	}
	return nil
}

func (f *fakeTable) Kill(pid int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.killed = append(f.killed, pid)
	delete(f.alive, pid)
	return nil
}

func writeRecord(t *testing.T, path string, pid int) {
	t.Helper()
	if err := os.WriteFile(path, []byte(strconv.Itoa(pid)), 0644); err != nil {
		t.Fatal(err)
	}
}

func assertNoRecord(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("expected no record at %s, stat err = %v", path, err)
	}
}

func TestStatus_StaleRecordIsRemoved(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mihomo.pid")
	writeRecord(t, path, 31337)
	s := New(path, WithProcessTable(newFakeTable()))

	if pid, ok, err := s.Status(); err != nil || ok {
		t.Fatalf("Status = (%d, %v, %v), want none", pid, ok, err)
	}
	assertNoRecord(t, path)

	// Idempotent: a second query still reports none.
	if _, ok, err := s.Status(); err != nil || ok {
		t.Fatalf("second Status = ok:%v err:%v, want none", ok, err)
	}
}

func TestStatus_LiveRecord(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mihomo.pid")
	writeRecord(t, path, 777)
	s := New(path, WithProcessTable(newFakeTable(777)))

	pid, ok, err := s.Status()
	if err != nil || !ok || pid != 777 {
		t.Fatalf("Status = (%d, %v, %v), want (777, true, nil)", pid, ok, err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("live record must be kept: %v", err)
	}
}

func TestStop_WithoutStartSucceeds(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mihomo.pid")
	s := New(path, WithProcessTable(newFakeTable()))

	if err := s.Stop(); err != nil {
		t.Fatalf("Stop with nothing running returned %v", err)
	}
	assertNoRecord(t, path)
}

func TestStop_StaleRecordSucceeds(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mihomo.pid")
	writeRecord(t, path, 4000)
	ft := newFakeTable()
	s := New(path, WithProcessTable(ft))

	if err := s.Stop(); err != nil {
		t.Fatalf("Stop with stale record returned %v", err)
	}
	if len(ft.terminated) != 0 {
		t.Fatalf("no termination should be sent to a dead pid, got %v", ft.terminated)
	}
	assertNoRecord(t, path)
}

func TestStop_TerminatesLiveProcess(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mihomo.pid")
	writeRecord(t, path, 4001)
	ft := newFakeTable(4001)
	s := New(path, WithProcessTable(ft))

	if err := s.Stop(); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	if len(ft.terminated) != 1 || ft.terminated[0] != 4001 {
		t.Fatalf("terminated = %v, want [4001]", ft.terminated)
	}
	assertNoRecord(t, path)
	if _, ok, _ := s.Status(); ok {
		t.Fatalf("Status after Stop must report none")
	}
}

func TestStop_PermissionDeniedIsStopError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mihomo.pid")
	writeRecord(t, path, 4002)
	ft := newFakeTable(4002)
	ft.terminateErr = os.ErrPermission
	s := New(path, WithProcessTable(ft))

	err := s.Stop()
	if !errors.Is(err, types.ErrStop) {
		t.Fatalf("Stop error = %v, want stop error", err)
	}
	if !errors.Is(err, os.ErrPermission) {
		t.Fatalf("Stop error should wrap the delivery failure, got %v", err)
	}
	// The record is removed even when termination could not be delivered.
	assertNoRecord(t, path)
}

func TestStop_ProcessGoneBeforeSignal(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mihomo.pid")
	writeRecord(t, path, 4003)
	ft := newFakeTable(4003)
	ft.terminateErr = os.ErrProcessDone
	s := New(path, WithProcessTable(ft))

	if err := s.Stop(); err != nil {
		t.Fatalf("Stop returned %v, want nil", err)
	}
	assertNoRecord(t, path)
}

func TestStop_EscalatesAfterGrace(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mihomo.pid")
	writeRecord(t, path, 4004)
	ft := newFakeTable(4004)
	ft.ignoreTerm = true
	s := New(path, WithProcessTable(ft), WithKillGrace(1))

	if err := s.Stop(); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	if len(ft.killed) != 1 || ft.killed[0] != 4004 {
		t.Fatalf("killed = %v, want [4004]", ft.killed)
	}
	assertNoRecord(t, path)
}

func TestStart_MissingExecutableIsLaunchError(t *testing.T) {
	dir := t.TempDir()
	s := New(filepath.Join(dir, "mihomo.pid"), WithProcessTable(newFakeTable()))

	_, err := s.Start(LaunchSpec{Path: filepath.Join(dir, "does-not-exist")})
	if !errors.Is(err, types.ErrLaunch) {
		t.Fatalf("Start error = %v, want launch error", err)
	}
	assertNoRecord(t, filepath.Join(dir, "mihomo.pid"))
}

func TestStart_EmptyPathIsLaunchError(t *testing.T) {
	s := New(filepath.Join(t.TempDir(), "mihomo.pid"), WithProcessTable(newFakeTable()))
	if _, err := s.Start(LaunchSpec{}); !errors.Is(err, types.ErrLaunch) {
		t.Fatalf("Start error = %v, want launch error", err)
	}
}
