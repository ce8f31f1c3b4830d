package keywords

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// Groups группирует ключи по каноническому: сначала сам канонический ключ,
// потом его алиасы в порядке добавления. Группы отсортированы по ключу.
func (s *Store) Groups(filter Filter) [][]string {
	s.mu.Lock()
	defer s.mu.Unlock()

	groups := make(map[string][]string)
	for _, k := range s.keys {
		canon := k
		if e := s.entries[k]; e.IsAlias() {
			target, ok := s.index[strings.ToLower(e.Target)]
			if !ok {
				continue
			}
			canon = target
		}
		ce := s.entries[canon]
		if !ce.IsCanonical() || !filter.match(ce.IsMeme) {
			continue
		}
		if k == canon {
			groups[canon] = append([]string{k}, groups[canon]...)
		} else {
			groups[canon] = append(groups[canon], k)
		}
	}

	names := make([]string, 0, len(groups))
	for name := range groups {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([][]string, 0, len(names))
	for _, name := range names {
		out = append(out, groups[name])
	}
	return out
}

// List — по строке на группу, ключи группы через " | ".
func (s *Store) List(filter Filter) string {
	groups := s.Groups(filter)
	lines := make([]string, 0, len(groups))
	for _, g := range groups {
		lines = append(lines, strings.Join(g, " | "))
	}
	return strings.Join(lines, "\n")
}

type Stats struct {
	Keywords    int       `json:"keywords"`
	Aliases     int       `json:"aliases"`
	Memes       int       `json:"memes"`
	OCRTriggers int       `json:"ocr_triggers"`
	SavedAt     time.Time `json:"saved_at"`
}

func (s *Store) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := Stats{OCRTriggers: len(s.ocr), SavedAt: s.savedAt}
	for _, k := range s.keys {
		e := s.entries[k]
		if e.IsAlias() {
			st.Aliases++
			continue
		}
		st.Keywords++
		if e.IsMeme {
			st.Memes++
		}
	}
	return st
}

// Snapshot возвращает оба документа в том виде, в каком они сохраняются.
func (s *Store) Snapshot() (map[string][]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	opts, err := encodeOptions(s.optionsLocked())
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", DocOptions, err)
	}
	ocr, err := encodeOCR(s.ocr)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", DocOCR, err)
	}
	return map[string][]byte{DocOptions: opts, DocOCR: ocr}, nil
}
