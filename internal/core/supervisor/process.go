package supervisor

import (
	"os"
	"time"
)

// ProcessTable is the view of the operating system's process table the
// supervisor needs. Terminate and Kill return os.ErrProcessDone when the
// process no longer exists.
type ProcessTable interface {
	Alive(pid int) bool
	Terminate(pid int) error
	Kill(pid int) error
}

// SystemProcessTable returns the ProcessTable backed by the host OS.
func SystemProcessTable() ProcessTable {
	return systemTable{}
}

// openSink opens a redirection target for the child's output. An empty path
// means the stream is discarded.
func openSink(path string) (*os.File, error) {
	if path == "" {
		return nil, nil
	}
	return os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
}

const defaultPollInterval = 50 * time.Millisecond
