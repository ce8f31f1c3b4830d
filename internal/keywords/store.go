package keywords

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/EgorLis/autoreply/internal/logger"
)

type Store struct {
	mu      sync.Mutex
	backend Backend

	prefix string
	roleID string

	keys    []string          // порядок вставки, регистр как при добавлении
	entries map[string]Entry  // по сохранённому ключу
	index   map[string]string // lower(key) -> сохранённый ключ

	ocr []ocrTrigger

	savedAt time.Time
}

func New(b Backend) *Store {
	return &Store{
		backend: b,
		prefix:  DefaultPrefix,
		entries: make(map[string]Entry),
		index:   make(map[string]string),
	}
}

// Open создаёт стор и загружает документы из b.
func Open(b Backend) (*Store, error) {
	s := New(b)
	if err := s.Load(); err != nil {
		return nil, err
	}
	return s, nil
}

// Load читает оба документа. Если документа нет — записывает значения по
// умолчанию (как configStore.Load создаёт пустой файл).
func (s *Store) Load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := s.backend.Load(DocOptions)
	switch {
	case errors.Is(err, ErrNoDocument):
		s.reset(options{prefix: DefaultPrefix, entries: map[string]Entry{}})
		if err := s.saveOptions(); err != nil {
			return err
		}
	case err != nil:
		return fmt.Errorf("load %s: %w", DocOptions, err)
	default:
		opts, warnings, err := decodeOptions(data)
		if err != nil {
			return fmt.Errorf("parse %s: %w", DocOptions, err)
		}
		for _, w := range warnings {
			logger.Warn("options_load_warning", "warning", w)
		}
		s.reset(opts)
	}

	data, err = s.backend.Load(DocOCR)
	switch {
	case errors.Is(err, ErrNoDocument):
		s.ocr = nil
		if err := s.saveOCR(); err != nil {
			return err
		}
	case err != nil:
		return fmt.Errorf("load %s: %w", DocOCR, err)
	default:
		triggers, err := decodeOCR(data)
		if err != nil {
			return fmt.Errorf("parse %s: %w", DocOCR, err)
		}
		s.ocr = triggers
	}

	for _, problem := range s.checkLocked() {
		logger.Warn("keyword_invariant_broken", "problem", problem)
	}
	logger.Info("keywords_loaded", "keywords", len(s.keys), "ocr_triggers", len(s.ocr))
	return nil
}

func (s *Store) reset(opts options) {
	s.prefix = opts.prefix
	s.roleID = opts.roleID
	s.keys = append([]string(nil), opts.keys...)
	s.entries = make(map[string]Entry, len(opts.keys))
	s.index = make(map[string]string, len(opts.keys))
	for _, k := range opts.keys {
		s.entries[k] = opts.entries[k]
		s.index[strings.ToLower(k)] = k
	}
}

// checkLocked возвращает нарушения инвариантов в загруженных данных.
// Старые файлы могут содержать цепочки алиасов или висячие ссылки.
func (s *Store) checkLocked() []string {
	var problems []string
	for _, k := range s.keys {
		e := s.entries[k]
		if !e.IsAlias() {
			continue
		}
		target, ok := s.index[strings.ToLower(e.Target)]
		switch {
		case !ok:
			problems = append(problems, fmt.Sprintf("alias %q points to missing %q", k, e.Target))
		case !s.entries[target].IsCanonical():
			problems = append(problems, fmt.Sprintf("alias %q points to alias %q", k, e.Target))
		}
	}
	for _, t := range s.ocr {
		if _, e, ok := s.resolveLocked(t.Target, true); !ok || !e.IsCanonical() {
			problems = append(problems, fmt.Sprintf("ocr trigger %q points to missing %q", t.Trigger, t.Target))
		}
	}
	return problems
}

// Resolve ищет ключ без учёта регистра. При followAlias алиас заменяется его
// целью — ровно один переход. Возвращает сохранённый ключ и копию записи.
func (s *Store) Resolve(key string, followAlias bool) (string, Entry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k, e, ok := s.resolveLocked(key, followAlias)
	return k, e.clone(), ok
}

func (s *Store) resolveLocked(key string, followAlias bool) (string, Entry, bool) {
	stored, ok := s.index[strings.ToLower(key)]
	if !ok {
		return "", Entry{}, false
	}
	e := s.entries[stored]
	if followAlias && e.IsAlias() {
		target, ok := s.index[strings.ToLower(e.Target)]
		if !ok {
			return "", Entry{}, false
		}
		return target, s.entries[target], true
	}
	return stored, e, true
}

// canonicalLocked — как resolveLocked(key, true), но только для канонических.
func (s *Store) canonicalLocked(key string) (string, Entry, bool) {
	k, e, ok := s.resolveLocked(key, true)
	if !ok || !e.IsCanonical() {
		return "", Entry{}, false
	}
	return k, e, true
}

func (s *Store) Add(key, content string, files []Attachment, isMeme bool) error {
	if IsReserved(key) {
		return fmt.Errorf("add %q: %w", key, ErrReservedKey)
	}
	if key == "" {
		return ErrEmptyKey
	}
	if content == "" && len(files) == 0 {
		return fmt.Errorf("add %q: %w", key, ErrEmptyResponse)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, _, ok := s.resolveLocked(key, false); ok {
		return fmt.Errorf("add %q: %w", key, ErrAlreadyExists)
	}
	s.insertLocked(key, Entry{Kind: KindCanonical, Content: content, Files: files, IsMeme: isMeme})
	return s.saveOptions()
}

// Edit перезаписывает канонический ответ; через алиас правится его цель.
func (s *Store) Edit(key, content string, files []Attachment, isMeme bool) error {
	if content == "" && len(files) == 0 {
		return fmt.Errorf("edit %q: %w", key, ErrEmptyResponse)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	canon, e, ok := s.canonicalLocked(key)
	if !ok {
		return fmt.Errorf("edit %q: %w", key, ErrNotFound)
	}
	e.Content, e.Files, e.IsMeme = content, files, isMeme
	s.entries[canon] = e
	return s.saveOptions()
}

func (s *Store) SetMeme(key string, isMeme bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	canon, e, ok := s.canonicalLocked(key)
	if !ok {
		return fmt.Errorf("meme %q: %w", key, ErrNotFound)
	}
	if e.IsMeme == isMeme {
		return nil
	}
	e.IsMeme = isMeme
	s.entries[canon] = e
	return s.saveOptions()
}

// Remove удаляет ключ. Для канонического ответа вместе с ним уходят его
// алиасы и OCR-триггеры, для алиаса — только сам алиас.
func (s *Store) Remove(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, e, ok := s.resolveLocked(key, false)
	if !ok {
		return fmt.Errorf("remove %q: %w", key, ErrNotFound)
	}
	ocrChanged := false
	if e.IsCanonical() {
		ocrChanged = s.repointLocked(stored, "")
	}
	s.deleteLocked(stored)

	if err := s.saveOptions(); err != nil {
		return err
	}
	if ocrChanged {
		return s.saveOCR()
	}
	return nil
}

// Alias создаёт newKey, указывающий на канонический ответ existingKey.
// Если existingKey сам алиас — сохраняется его цель, цепочек не бывает.
func (s *Store) Alias(newKey, existingKey string) error {
	if IsReserved(newKey) || IsReserved(existingKey) {
		return fmt.Errorf("alias %q -> %q: %w", newKey, existingKey, ErrReservedKey)
	}
	if newKey == "" {
		return ErrEmptyKey
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, _, ok := s.resolveLocked(newKey, false); ok {
		return fmt.Errorf("alias %q: %w", newKey, ErrAlreadyExists)
	}
	canon, _, ok := s.canonicalLocked(existingKey)
	if !ok {
		return fmt.Errorf("alias target %q: %w", existingKey, ErrNotFound)
	}
	s.insertLocked(newKey, Entry{Kind: KindAlias, Target: canon})
	return s.saveOptions()
}

// Rename переносит запись на newKey и перенаправляет алиасы и OCR-триггеры.
// Разрешено менять только регистр того же ключа.
func (s *Store) Rename(currentKey, newKey string) error {
	if IsReserved(currentKey) || IsReserved(newKey) {
		return fmt.Errorf("rename %q -> %q: %w", currentKey, newKey, ErrReservedKey)
	}
	if newKey == "" {
		return ErrEmptyKey
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	stored, e, ok := s.resolveLocked(currentKey, false)
	if !ok {
		return fmt.Errorf("rename %q: %w", currentKey, ErrNotFound)
	}
	if other, _, ok := s.resolveLocked(newKey, false); ok && other != stored {
		return fmt.Errorf("rename to %q: %w", newKey, ErrAlreadyExists)
	}

	if e.IsCanonical() {
		s.repointLocked(stored, newKey)
	}
	s.deleteLocked(stored)
	s.insertLocked(newKey, e)

	if err := s.saveOptions(); err != nil {
		return err
	}
	return s.saveOCR()
}

// repointLocked — единый проход по алиасам и OCR-таблице: всё, что ссылается
// на oldKey, переводится на newKey, а при пустом newKey удаляется.
// Возвращает true, если изменилась OCR-таблица.
func (s *Store) repointLocked(oldKey, newKey string) bool {
	for _, k := range slices.Clone(s.keys) {
		e := s.entries[k]
		if !e.IsAlias() || !strings.EqualFold(e.Target, oldKey) {
			continue
		}
		if newKey == "" {
			s.deleteLocked(k)
			logger.Debug("alias_removed", "alias", k, "target", oldKey)
			continue
		}
		e.Target = newKey
		s.entries[k] = e
	}

	changed := false
	kept := s.ocr[:0]
	for _, t := range s.ocr {
		if strings.EqualFold(t.Target, oldKey) {
			changed = true
			if newKey == "" {
				continue
			}
			t.Target = newKey
		}
		kept = append(kept, t)
	}
	s.ocr = kept
	return changed
}

func (s *Store) insertLocked(key string, e Entry) {
	s.keys = append(s.keys, key)
	s.entries[key] = e
	s.index[strings.ToLower(key)] = key
}

func (s *Store) deleteLocked(stored string) {
	s.keys = slices.DeleteFunc(s.keys, func(k string) bool { return k == stored })
	delete(s.entries, stored)
	delete(s.index, strings.ToLower(stored))
}

func (s *Store) Prefix() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.prefix
}

func (s *Store) SetPrefix(prefix string) error {
	if prefix == "" {
		return fmt.Errorf("prefix: %w", ErrEmptyKey)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prefix = prefix
	return s.saveOptions()
}

func (s *Store) RoleID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.roleID
}

func (s *Store) SetRoleID(roleID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.roleID = roleID
	return s.saveOptions()
}

func (s *Store) optionsLocked() options {
	return options{prefix: s.prefix, roleID: s.roleID, keys: s.keys, entries: s.entries}
}

func (s *Store) saveOptions() error {
	data, err := encodeOptions(s.optionsLocked())
	if err != nil {
		return fmt.Errorf("encode %s: %w", DocOptions, err)
	}
	if err := s.backend.Save(DocOptions, data); err != nil {
		return fmt.Errorf("save %s: %w", DocOptions, err)
	}
	s.savedAt = time.Now()
	return nil
}

func (s *Store) saveOCR() error {
	data, err := encodeOCR(s.ocr)
	if err != nil {
		return fmt.Errorf("encode %s: %w", DocOCR, err)
	}
	if err := s.backend.Save(DocOCR, data); err != nil {
		return fmt.Errorf("save %s: %w", DocOCR, err)
	}
	s.savedAt = time.Now()
	return nil
}
