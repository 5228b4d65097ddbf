package export

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// WriteFile atomically writes the output of render to path: tmp file, fsync,
// rename. A failed render leaves any existing file untouched. It returns the
// number of bytes written.
func WriteFile(path string, render func(io.Writer) error) (int64, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return 0, fmt.Errorf("export: mkdir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".sowilo-tmp-*")
	if err != nil {
		return 0, fmt.Errorf("export: create temp: %w", err)
	}
	tmpName := tmp.Name()

	// Clean up on any failure path.
	success := false
	defer func() {
		if !success {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	cw := &countingWriter{w: tmp}
	if err := render(cw); err != nil {
		return 0, err
	}
	if err := tmp.Sync(); err != nil {
		return 0, fmt.Errorf("export: fsync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return 0, fmt.Errorf("export: close temp: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return 0, fmt.Errorf("export: rename: %w", err)
	}
	success = true
	return cw.n, nil
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}
