// Package retained provides drivers for the retained memory region the
// clock state survives deep sleep in. On real hardware the region is a few
// dozen bytes of RTC RAM; on a host it is modeled as a small file.
package retained

import (
	"errors"
	"os"
	"path/filepath"
)

var errNoRegion = errors.New("retained region is empty")

// FileRegion stores the region in a file, replaced atomically on write so
// a read never observes a partial state.
type FileRegion struct {
	Path string
}

func (r *FileRegion) Load() ([]byte, error) {
	return os.ReadFile(r.Path)
}

func (r *FileRegion) Store(b []byte) error {
	dir := filepath.Dir(r.Path)
	f, err := os.CreateTemp(dir, ".retained-*")
	if err != nil {
		return err
	}
	tmp := f.Name()
	_, err = f.Write(b)
	if err == nil {
		// State must be durable before the device powers down; nothing
		// runs afterwards to retry a failed write.
		err = f.Sync()
	}
	cerr := f.Close()
	if err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, r.Path)
}

// MemRegion keeps the region in memory. It backs tests and cold-boot
// simulation; Load returns the backing slice, matching the in-place
// semantics of a real retained RAM window.
type MemRegion struct {
	buf []byte
}

func (r *MemRegion) Load() ([]byte, error) {
	if r.buf == nil {
		return nil, errNoRegion
	}
	return r.buf, nil
}

func (r *MemRegion) Store(b []byte) error {
	if cap(r.buf) < len(b) {
		r.buf = make([]byte, len(b))
	} else {
		r.buf = r.buf[:len(b)]
	}
	copy(r.buf, b)
	return nil
}

// Clear drops the region contents, simulating cold power loss.
func (r *MemRegion) Clear() {
	r.buf = nil
}
