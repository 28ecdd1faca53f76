package local

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/bytedance/sonic"
	log "github.com/sirupsen/logrus"

	"task-board/domain"
)

// Key names the single value holding the board.
const Key = "task-board-tasks"

// Store keeps the whole board as one JSON document under Key inside a data
// directory. A Store without a directory has no durable storage: saves are
// dropped and loads find nothing.
type Store struct {
	dir string
	log *log.Logger
}

// New returns a store rooted at dir. An empty dir disables persistence.
func New(dir string, logger *log.Logger) *Store {
	if logger == nil {
		panic("local.New: logger is nil")
	}
	return &Store{dir: strings.TrimSpace(dir), log: logger}
}

// Enabled reports whether the store has somewhere to write.
func (s *Store) Enabled() bool {
	return s.dir != ""
}

// Path returns the file backing Key, or "" when persistence is disabled.
func (s *Store) Path() string {
	if !s.Enabled() {
		return ""
	}
	return filepath.Join(s.dir, Key+".json")
}

// Save replaces the stored board with tasks. Failures are logged.
func (s *Store) Save(tasks []domain.Task) {
	if !s.Enabled() {
		return
	}
	if tasks == nil {
		tasks = []domain.Task{}
	}
	data, err := sonic.Marshal(tasks)
	if err != nil {
		s.log.WithError(err).Error("local: encode board")
		return
	}
	if err := writeFile(s.Path(), data); err != nil {
		s.log.WithError(err).WithField("path", s.Path()).Error("local: save board")
		return
	}
	s.log.WithField("tasks", len(tasks)).Debug("local: board saved")
}

// Load returns the stored board. It reports false when nothing usable is
// stored, including when the stored text does not parse.
func (s *Store) Load() ([]domain.Task, bool) {
	if !s.Enabled() {
		return nil, false
	}
	data, err := os.ReadFile(s.Path())
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			s.log.WithError(err).WithField("path", s.Path()).Error("local: read board")
		}
		return nil, false
	}
	var raw []domain.Task
	if err := sonic.Unmarshal(data, &raw); err != nil {
		s.log.WithError(err).WithField("path", s.Path()).Warn("local: stored board does not parse")
		return nil, false
	}
	return sanitize(raw), true
}

// sanitize normalises decoded tasks and drops records without an id or a
// title. Only the first record of a duplicated id is kept.
func sanitize(raw []domain.Task) []domain.Task {
	seen := make(map[string]struct{}, len(raw))
	out := make([]domain.Task, 0, len(raw))
	for _, t := range raw {
		if t.ID == "" || strings.TrimSpace(t.Title) == "" {
			continue
		}
		if _, dup := seen[t.ID]; dup {
			continue
		}
		seen[t.ID] = struct{}{}
		out = append(out, t.Normalize())
	}
	return out
}

// writeFile atomically replaces path using a temp file, fsync and rename.
func writeFile(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating data dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, "."+Key+"-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("writing temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("syncing temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("renaming temp file: %w", err)
	}
	return nil
}
