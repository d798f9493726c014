package repository

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/afero"
	"go.uber.org/zap"
)

// ImageDirectory is a flat directory of originals and their thumbnails.
// The listing is the only index.
type ImageDirectory interface {
	List() (map[string]struct{}, error)
	// Create opens name for writing and fails with os.ErrExist if it is already present.
	Create(name string) (io.WriteCloser, error)
	// Replace opens name for writing, truncating any existing file.
	Replace(name string) (io.WriteCloser, error)
	Open(name string) (io.ReadCloser, error)
	Remove(name string) error
	Path() string
}

type fsImageDirectory struct {
	fs   afero.Fs
	path string
	log  *zap.Logger
}

// NewImageDirectory roots an ImageDirectory at dir inside fs. Names outside
// dir are rejected by the underlying BasePathFs.
func NewImageDirectory(fs afero.Fs, dir string, log *zap.Logger) (ImageDirectory, error) {
	if err := fs.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create images directory %s: %w", dir, err)
	}
	return &fsImageDirectory{
		fs:   afero.NewBasePathFs(fs, dir),
		path: dir,
		log:  log,
	}, nil
}

func (d *fsImageDirectory) Path() string { return d.path }

func (d *fsImageDirectory) List() (map[string]struct{}, error) {
	entries, err := afero.ReadDir(d.fs, "/")
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", d.path, err)
	}

	names := make(map[string]struct{}, len(entries))
	for _, entry := range entries {
		names[entry.Name()] = struct{}{}
	}
	return names, nil
}

func (d *fsImageDirectory) Create(name string) (io.WriteCloser, error) {
	f, err := d.fs.OpenFile(name, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return nil, fmt.Errorf("create %s: %w", name, os.ErrExist)
		}
		return nil, fmt.Errorf("create %s: %w", name, err)
	}
	return f, nil
}

func (d *fsImageDirectory) Replace(name string) (io.WriteCloser, error) {
	f, err := d.fs.OpenFile(name, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", name, err)
	}
	return f, nil
}

func (d *fsImageDirectory) Open(name string) (io.ReadCloser, error) {
	f, err := d.fs.Open(name)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", name, err)
	}
	return f, nil
}

func (d *fsImageDirectory) Remove(name string) error {
	if err := d.fs.Remove(name); err != nil {
		return fmt.Errorf("remove %s: %w", name, err)
	}
	d.log.Info("File removed", zap.String("dir", d.path), zap.String("name", name))
	return nil
}

// WriteAll writes data through w and closes it, reporting the first error.
func WriteAll(w io.WriteCloser, data []byte) error {
	if _, err := w.Write(data); err != nil {
		w.Close()
		return err
	}
	return w.Close()
}
