// Package filestore хранит документы keywords как JSON-файлы в одной папке:
// <dir>/options.json и <dir>/ocr.json.
package filestore

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/EgorLis/autoreply/internal/keywords"
)

type Store struct {
	mu   sync.Mutex
	dir  string
	lock *os.File
}

// Open создаёт папку и берёт эксклюзивную блокировку <dir>/.lock, чтобы два
// процесса не писали в одни и те же файлы.
func Open(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	f, err := lockDir(dir)
	if err != nil {
		return nil, err
	}
	return &Store{dir: dir, lock: f}, nil
}

func (s *Store) Path(name string) string {
	return filepath.Join(s.dir, name+".json")
}

func (s *Store) Load(name string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, err := os.ReadFile(s.Path(name))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, keywords.ErrNoDocument
		}
		return nil, err
	}
	return b, nil
}

// Save перезаписывает файл целиком: сначала во временный, потом rename.
func (s *Store) Save(name string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	path := s.Path(name)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lock == nil {
		return nil
	}
	err := unlockDir(s.lock)
	s.lock = nil
	return err
}
