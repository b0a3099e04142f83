package landofile

import (
	"fmt"
	"os"
	"path/filepath"
)

// Read parses the Landofile in dir.
func Read(dir string) (*File, error) {
	data, err := os.ReadFile(filepath.Join(dir, FileName))
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Write serializes f into dir, replacing the previous file atomically.
func Write(dir string, f *File) error {
	data, err := f.Bytes()
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, FileName+".*.tmp")
	if err != nil {
		return err
	}
	defer func() { _ = os.Remove(tmp.Name()) }()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), filepath.Join(dir, FileName))
}

// Editor reads and writes Landofiles on disk.
type Editor struct{}

// Edit applies fn to the Landofile in dir and writes the result. Nothing is
// written when fn fails.
func (Editor) Edit(dir string, fn func(*File) error) error {
	f, err := Read(dir)
	if err != nil {
		return fmt.Errorf("read %s: %w", FileName, err)
	}
	if err := fn(f); err != nil {
		return err
	}
	if err := Write(dir, f); err != nil {
		return fmt.Errorf("write %s: %w", FileName, err)
	}
	return nil
}

func (Editor) Write(dir string, f *File) error {
	return Write(dir, f)
}
