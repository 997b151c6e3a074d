package store

import (
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/rileyhilliard/gpuwatch/internal/errors"
	"github.com/rileyhilliard/gpuwatch/internal/telemetry"
)

// fileDoc is the on-disk layout of a FileStore.
type fileDoc struct {
	Counter     int                `yaml:"counter"`
	Theme       Theme              `yaml:"theme,omitempty"`
	Connections []telemetry.Record `yaml:"connections"`
}

// FileStore keeps state in a single YAML file. Writes go to a temp file
// that is renamed into place.
type FileStore struct {
	path string
	mu   sync.Mutex
}

// NewFileStore returns a store backed by path. The file is created on first save.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Path returns the backing file.
func (s *FileStore) Path() string {
	return s.path
}

func (s *FileStore) Load() (State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.read()
	if err != nil {
		return State{}, err
	}
	return State{
		Connections: doc.Connections,
		Counter:     doc.Counter,
		Theme:       normalizeTheme(doc.Theme),
	}, nil
}

func (s *FileStore) SaveConnections(records []telemetry.Record, counter int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.read()
	if err != nil {
		return err
	}
	doc.Connections = records
	doc.Counter = counter
	return s.write(doc)
}

func (s *FileStore) SaveTheme(theme Theme) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.read()
	if err != nil {
		return err
	}
	doc.Theme = normalizeTheme(theme)
	return s.write(doc)
}

func (s *FileStore) Close() error {
	return nil
}

func (s *FileStore) read() (fileDoc, error) {
	var doc fileDoc
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return doc, nil
	}
	if err != nil {
		return doc, errors.WrapWithCode(err, errors.ErrStore,
			"Couldn't read saved connections from "+s.path,
			"Check the file permissions")
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return doc, errors.WrapWithCode(err, errors.ErrStore,
			"Saved state in "+s.path+" is not valid YAML",
			"Fix the file by hand or delete it to start over")
	}
	return doc, nil
}

func (s *FileStore) write(doc fileDoc) error {
	if doc.Connections == nil {
		doc.Connections = []telemetry.Record{}
	}
	data, err := yaml.Marshal(&doc)
	if err != nil {
		return errors.WrapWithCode(err, errors.ErrStore, "Couldn't encode saved state", "")
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return errors.WrapWithCode(err, errors.ErrStore,
			"Couldn't create "+dir,
			"Check the directory permissions or set store.path")
	}

	tmp, err := os.CreateTemp(dir, ".state-*.yaml")
	if err != nil {
		return errors.WrapWithCode(err, errors.ErrStore,
			"Couldn't write saved state to "+dir,
			"Check the directory permissions or set store.path")
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return errors.WrapWithCode(err, errors.ErrStore, "Couldn't write saved state", "")
	}
	if err := tmp.Close(); err != nil {
		return errors.WrapWithCode(err, errors.ErrStore, "Couldn't write saved state", "")
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return errors.WrapWithCode(err, errors.ErrStore,
			"Couldn't replace "+s.path,
			"Check the file permissions")
	}
	return nil
}
