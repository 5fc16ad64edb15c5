// Package supervisor starts, tracks and stops a single managed background
// process. Its identity survives across invocations of the tool through a pid
// record on disk; a record pointing at a dead process is treated as stale and
// removed the next time anything looks at it.
package supervisor

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"time"

	"proxyctl/internal/shared/logger"
	"proxyctl/internal/shared/types"
)

const defaultKillGrace = 10 * time.Second

// LaunchSpec describes how to start the managed process. Stdout and Stderr
// are file paths that get truncated on start; empty discards the stream.
type LaunchSpec struct {
	Path   string
	Args   []string
	Dir    string
	Stdout string
	Stderr string
}

// Supervisor owns the pid record and the start/stop/status semantics.
type Supervisor struct {
	name         string
	record       *Record
	table        ProcessTable
	killGrace    time.Duration
	pollInterval time.Duration
}

// Option configures a Supervisor.
type Option func(*Supervisor)

// WithProcessTable replaces the OS process table, mainly for tests.
func WithProcessTable(t ProcessTable) Option {
	return func(s *Supervisor) { s.table = t }
}

// WithKillGrace sets how long Stop waits after the termination request
// before escalating to a forced kill. Stop keeps waiting after escalating.
func WithKillGrace(d time.Duration) Option {
	return func(s *Supervisor) { s.killGrace = d }
}

// WithName sets the display name used in log messages.
func WithName(name string) Option {
	return func(s *Supervisor) { s.name = name }
}

// New creates a Supervisor whose record lives at recordPath.
func New(recordPath string, opts ...Option) *Supervisor {
	s := &Supervisor{
		name:         "process",
		record:       NewRecord(recordPath),
		table:        SystemProcessTable(),
		killGrace:    defaultKillGrace,
		pollInterval: defaultPollInterval,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// IsRunning returns the pid of the managed process if the record names a
// live process. A record naming a dead process is deleted.
func (s *Supervisor) IsRunning() (int, bool, error) {
	l := logger.WithComponent("Supervisor")

	pid, ok, err := s.record.Load()
	if err != nil || !ok {
		return 0, false, err
	}
	if s.table.Alive(pid) {
		return pid, true, nil
	}

	l.Debug().Int("pid", pid).Msg("Removing stale pid record.")
	if err := s.record.Remove(); err != nil {
		return 0, false, err
	}
	return 0, false, nil
}

// Status reports the running pid, with the same stale-record cleanup as IsRunning.
func (s *Supervisor) Status() (int, bool, error) {
	return s.IsRunning()
}

// Start launches the process described by spec and records its pid. A
// process that is already running is stopped first.
//
// If the pid cannot be persisted the child keeps running untracked and a
// launch error is returned together with its pid.
func (s *Supervisor) Start(spec LaunchSpec) (int, error) {
	l := logger.WithComponent("Supervisor")

	if pid, running, err := s.IsRunning(); err != nil {
		return 0, err
	} else if running {
		l.Info().Int("pid", pid).Msgf("%s is already running (pid: %d). Stopping it first...", s.name, pid)
		if err := s.Stop(); err != nil {
			return 0, err
		}
	}

	if spec.Path == "" {
		return 0, types.NewError(types.KindLaunch, "spawn "+s.name, errors.New("executable path is required"))
	}

	stdout, err := openSink(spec.Stdout)
	if err != nil {
		return 0, types.NewError(types.KindLaunch, "open stdout target", err)
	}
	stderr, err := openSink(spec.Stderr)
	if err != nil {
		closeSink(stdout)
		return 0, types.NewError(types.KindLaunch, "open stderr target", err)
	}

	cmd := exec.Command(spec.Path, spec.Args...)
	cmd.Dir = spec.Dir
	// Assigning a typed nil *os.File would make exec treat it as a real writer.
	if stdout != nil {
		cmd.Stdout = stdout
	}
	if stderr != nil {
		cmd.Stderr = stderr
	}
	detach(cmd)

	err = cmd.Start()
	// The child holds its own descriptors once started.
	closeSink(stdout)
	closeSink(stderr)
	if err != nil {
		return 0, types.NewError(types.KindLaunch, "spawn "+spec.Path, err)
	}

	pid := cmd.Process.Pid
	// Reap the child if it exits while this process is still alive.
	go cmd.Wait()

	if err := s.record.Save(pid); err != nil {
		l.Warn().Int("pid", pid).Err(err).Msgf("%s started but its pid could not be recorded; it will not be tracked.", s.name)
		return pid, types.NewError(types.KindLaunch, fmt.Sprintf("record pid %d", pid), err)
	}

	l.Info().Int("pid", pid).Msgf("%s started in the background!", s.name)
	return pid, nil
}

// Stop terminates the recorded process and waits for it to exit. Stopping
// when nothing is running succeeds. The record is removed in every case.
func (s *Supervisor) Stop() (err error) {
	l := logger.WithComponent("Supervisor")

	defer func() {
		if rmErr := s.record.Remove(); rmErr != nil && err == nil {
			err = rmErr
		}
	}()

	pid, ok, err := s.record.Load()
	if err != nil {
		return err
	}
	if !ok {
		l.Info().Msgf("%s is not running.", s.name)
		return nil
	}
	if !s.table.Alive(pid) {
		l.Warn().Int("pid", pid).Msgf("%s process not found.", s.name)
		return nil
	}

	if err := s.table.Terminate(pid); err != nil {
		if errors.Is(err, os.ErrProcessDone) {
			l.Warn().Int("pid", pid).Msgf("%s process exited before it could be stopped.", s.name)
			return nil
		}
		return types.NewError(types.KindStop, fmt.Sprintf("terminate pid %d", pid), err)
	}

	s.waitExit(pid)
	l.Info().Int("pid", pid).Msgf("%s stopped.", s.name)
	return nil
}

// waitExit blocks until pid is gone, escalating to a forced kill once the
// grace period has passed.
func (s *Supervisor) waitExit(pid int) {
	l := logger.WithComponent("Supervisor")

	deadline := time.Now().Add(s.killGrace)
	killed := false
	for s.table.Alive(pid) {
		if !killed && s.killGrace > 0 && time.Now().After(deadline) {
			l.Warn().Int("pid", pid).Dur("grace", s.killGrace).Msg("Process ignored termination request, killing it.")
			if err := s.table.Kill(pid); err != nil && !errors.Is(err, os.ErrProcessDone) {
				l.Error().Int("pid", pid).Err(err).Msg("Forced kill failed.")
			}
			killed = true
		}
		time.Sleep(s.pollInterval)
	}
}

func closeSink(f *os.File) {
	if f != nil {
		f.Close()
	}
}
