// Package settings holds the runtime image-upload settings an administrator
// edits from the options page. They are persisted as YAML under an
// "img_upload" section so the file can be shared with other blog plugins.
package settings

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/spf13/afero"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"imgupload/internal/domain"
)

const (
	KeyImagesDirectory = "images_directory"
	KeyBaseURL         = "base_url"
	KeyThumbMaxWidth   = "thumb_max_width"
	KeyThumbMaxHeight  = "thumb_max_height"
)

// Keys lists the editable settings in form order.
var Keys = []string{KeyImagesDirectory, KeyBaseURL, KeyThumbMaxWidth, KeyThumbMaxHeight}

// errEmptyFile is reported for a zero-length file, which is what a watcher
// sees between truncate and write.
var errEmptyFile = errors.New("settings file is empty")

// Settings is passed by value into each upload.
type Settings struct {
	ImagesDirectory string `yaml:"images_directory"`
	BaseURL         string `yaml:"base_url"`
	ThumbMaxWidth   int    `yaml:"thumb_max_width"`
	ThumbMaxHeight  int    `yaml:"thumb_max_height"`
}

type document struct {
	ImgUpload Settings `yaml:"img_upload"`
}

// Store is safe for concurrent use.
type Store struct {
	fs   afero.Fs
	path string
	log  *zap.Logger

	mu      sync.RWMutex
	current Settings
}

// NewStore loads path from fs. A missing file leaves defaults in place until
// the first change is written.
func NewStore(fs afero.Fs, path string, defaults Settings, log *zap.Logger) (*Store, error) {
	s := &Store{
		fs:      fs,
		path:    filepath.Clean(path),
		log:     log,
		current: defaults,
	}

	loaded, err := s.read()
	switch {
	case errors.Is(err, os.ErrNotExist), errors.Is(err, errEmptyFile):
		log.Info("Settings file not found, using defaults", zap.String("path", s.path))
	case err != nil:
		return nil, err
	default:
		s.current = loaded
		log.Info("Settings loaded", zap.String("path", s.path))
	}

	return s, nil
}

func (s *Store) Path() string { return s.path }

func (s *Store) Get() Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// ChangeSingle validates and persists one setting. Any failure leaves the
// previous value in effect and wraps domain.ErrConfigWriteRejected.
func (s *Store) ChangeSingle(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.current
	if err := apply(&next, key, value); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrConfigWriteRejected, err)
	}
	if err := s.write(next); err != nil {
		s.log.Error("Failed to persist setting", zap.String("key", key), zap.Error(err))
		return fmt.Errorf("%w: %v", domain.ErrConfigWriteRejected, err)
	}

	s.current = next
	s.log.Info("Setting changed", zap.String("key", key), zap.String("value", value))
	return nil
}

// Reload re-reads the file. On error the last good settings stay in effect.
// The read happens under the write lock, so it never observes a file older
// than a concurrent ChangeSingle has already committed.
func (s *Store) Reload() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	loaded, err := s.read()
	if err != nil {
		return err
	}
	s.current = loaded
	return nil
}

func apply(st *Settings, key, value string) error {
	value = strings.TrimSpace(value)
	switch key {
	case KeyImagesDirectory:
		if !filepath.IsAbs(value) {
			return fmt.Errorf("%s must be an absolute path", key)
		}
		st.ImagesDirectory = filepath.Clean(value)
	case KeyBaseURL:
		if value == "" {
			return fmt.Errorf("%s must not be empty", key)
		}
		st.BaseURL = value
	case KeyThumbMaxWidth, KeyThumbMaxHeight:
		n, err := strconv.Atoi(value)
		if err != nil || n < 0 {
			return fmt.Errorf("%s must be a non-negative integer", key)
		}
		if key == KeyThumbMaxWidth {
			st.ThumbMaxWidth = n
		} else {
			st.ThumbMaxHeight = n
		}
	default:
		return fmt.Errorf("unknown setting %q", key)
	}
	return nil
}

func (s *Store) read() (Settings, error) {
	data, err := afero.ReadFile(s.fs, s.path)
	if err != nil {
		return Settings{}, fmt.Errorf("read settings file: %w", err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return Settings{}, errEmptyFile
	}

	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return Settings{}, fmt.Errorf("parse settings file: %w", err)
	}
	return doc.ImgUpload, nil
}

// write replaces the file through a temp file and rename so readers never
// see a partial document.
func (s *Store) write(st Settings) error {
	data, err := yaml.Marshal(document{ImgUpload: st})
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}

	if err := s.fs.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create settings directory: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := afero.WriteFile(s.fs, tmp, data, 0o644); err != nil {
		return fmt.Errorf("write settings file: %w", err)
	}
	if err := s.fs.Rename(tmp, s.path); err != nil {
		_ = s.fs.Remove(tmp)
		return fmt.Errorf("replace settings file: %w", err)
	}
	return nil
}
