package keywords

import (
	"errors"
	"sync"
)

// Имена документов в Backend.
const (
	DocOptions = "options"
	DocOCR     = "ocr"
)

// ErrNoDocument: документа ещё нет (первый запуск).
var ErrNoDocument = errors.New("document does not exist")

// Backend хранит документы целиком: Save перезаписывает документ полностью.
type Backend interface {
	Load(name string) ([]byte, error)
	Save(name string, data []byte) error
}

// MemoryBackend: Backend в памяти, для тестов и dry-run.
type MemoryBackend struct {
	mu    sync.Mutex
	docs  map[string][]byte
	saves int
}

func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{docs: make(map[string][]byte)}
}

func (m *MemoryBackend) Load(name string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.docs[name]
	if !ok {
		return nil, ErrNoDocument
	}
	return append([]byte(nil), b...), nil
}

func (m *MemoryBackend) Save(name string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.docs[name] = append([]byte(nil), data...)
	m.saves++
	return nil
}

// Put кладёт документ без учёта в счётчике сохранений.
func (m *MemoryBackend) Put(name string, data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.docs[name] = append([]byte(nil), data...)
}

func (m *MemoryBackend) Saves() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves
}
