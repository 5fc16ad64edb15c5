package supervisor

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"proxyctl/internal/shared/logger"
	"proxyctl/internal/shared/types"
)

// Record is the on-disk process-id record of the managed process.
// The file holds exactly the decimal pid and nothing else.
type Record struct {
	filePath string
	mu       sync.Mutex
}

// NewRecord 创建一个新的 Record 实例, 文件本身在第一次 Save 时写入。
func NewRecord(filePath string) *Record {
	return &Record{filePath: filePath}
}

// Path returns the location of the record file.
func (r *Record) Path() string {
	return r.filePath
}

// Load reads the persisted pid. A missing file is reported as ok=false.
// A file whose content is not a positive decimal pid is removed and also
// reported as ok=false.
func (r *Record) Load() (pid int, ok bool, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	l := logger.WithComponent("Supervisor/Record")

	data, err := os.ReadFile(r.filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, false, nil
		}
		return 0, false, types.NewError(types.KindPersistence, "read "+r.filePath, err)
	}

	pid, err = strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || pid <= 0 {
		l.Warn().Str("path", r.filePath).Str("content", string(data)).Msg("Discarding malformed pid record.")
		if rmErr := r.removeLocked(); rmErr != nil {
			return 0, false, rmErr
		}
		return 0, false, nil
	}
	return pid, true, nil
}

// Save writes pid atomically: temporary file in the same directory, then rename.
func (r *Record) Save(pid int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if pid <= 0 {
		return types.NewError(types.KindPersistence, "save record", fmt.Errorf("invalid pid %d", pid))
	}

	tmp, err := os.CreateTemp(filepath.Dir(r.filePath), filepath.Base(r.filePath)+".*.tmp")
	if err != nil {
		return types.NewError(types.KindPersistence, "create temporary record", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.WriteString(strconv.Itoa(pid)); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return types.NewError(types.KindPersistence, "write temporary record", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return types.NewError(types.KindPersistence, "close temporary record", err)
	}
	if err := os.Rename(tmpPath, r.filePath); err != nil {
		os.Remove(tmpPath)
		return types.NewError(types.KindPersistence, "rename record into place", err)
	}
	return nil
}

// Remove deletes the record. Removing an absent record is not an error.
func (r *Record) Remove() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.removeLocked()
}

func (r *Record) removeLocked() error {
	if err := os.Remove(r.filePath); err != nil && !os.IsNotExist(err) {
		return types.NewError(types.KindPersistence, "remove "+r.filePath, err)
	}
	return nil
}
