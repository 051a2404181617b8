package repository

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"birr-rate-service/internal/domain/model"
	"birr-rate-service/pkg/logger"
	"birr-rate-service/pkg/utils"
)

var ErrUnknownFile = errors.New("no rate file configured")

// RateFiles manages the admin-maintained JSON rate files in the public
// directory. Each document maps a currency code to its quote object.
type RateFiles struct {
	dir   string
	files map[model.RateKind]string
	mutex sync.Mutex
	log   *logger.Logger
}

func NewRateFiles(dir string, files map[model.RateKind]string, log *logger.Logger) *RateFiles {
	return &RateFiles{
		dir:   dir,
		files: files,
		log:   log,
	}
}

func (s *RateFiles) path(kind model.RateKind) (string, error) {
	name, ok := s.files[kind]
	if !ok || name == "" {
		return "", fmt.Errorf("%w: %s", ErrUnknownFile, kind)
	}
	return utils.LocalPath(s.dir, name), nil
}

// Read returns the decoded document for kind, or nil when the file does not
// exist yet.
func (s *RateFiles) Read(kind model.RateKind) (map[string]json.RawMessage, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	return s.read(kind)
}

func (s *RateFiles) read(kind model.RateKind) (map[string]json.RawMessage, error) {
	path, err := s.path(kind)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	var doc map[string]json.RawMessage
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return doc, nil
}

// ReadAll returns every configured document keyed by kind. Missing or
// unreadable files map to nil.
func (s *RateFiles) ReadAll() map[model.RateKind]map[string]json.RawMessage {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	out := make(map[model.RateKind]map[string]json.RawMessage, len(s.files))
	for kind := range s.files {
		doc, err := s.read(kind)
		if err != nil {
			s.log.Warn("Failed to read rate file", "kind", kind, "error", err)
		}
		out[kind] = doc
	}
	return out
}

// Merge overlays updates onto the stored document at the currency level and
// writes the result atomically.
func (s *RateFiles) Merge(kind model.RateKind, updates map[string]any) (map[string]json.RawMessage, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	doc, err := s.read(kind)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		s.log.Info("Creating rate file", "kind", kind)
		doc = make(map[string]json.RawMessage, len(updates))
	}

	for code, value := range updates {
		raw, err := json.Marshal(value)
		if err != nil {
			return nil, fmt.Errorf("failed to encode %s: %w", code, err)
		}
		doc[code] = raw
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s rates: %w", kind, err)
	}

	path, _ := s.path(kind)
	if err := writeFileAtomic(path, append(data, '\n')); err != nil {
		return nil, err
	}

	s.log.Info("Updated rate file", "kind", kind, "path", path, "count", len(updates))
	return doc, nil
}

func writeFileAtomic(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create %s: %w", filepath.Dir(path), err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".rates-*.json")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write %s: %w", tmp.Name(), err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
