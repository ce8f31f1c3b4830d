package keywords

import (
	"fmt"
	"strings"
)

// NormalizeTrigger приводит текст OCR-триггера к виду, в котором он хранится
// и сравнивается: нижний регистр, пробельные серии схлопнуты в один пробел.
func NormalizeTrigger(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// AddOCR привязывает подстроку распознанного текста к каноническому ответу.
// Возвращает канонический ключ, который был сохранён.
func (s *Store) AddOCR(trigger, targetKey string) (string, error) {
	trigger = NormalizeTrigger(trigger)
	if trigger == "" {
		return "", ErrEmptyTrigger
	}
	if IsReserved(targetKey) {
		return "", fmt.Errorf("ocr target %q: %w", targetKey, ErrReservedKey)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	canon, _, ok := s.canonicalLocked(targetKey)
	if !ok {
		return "", fmt.Errorf("ocr target %q: %w", targetKey, ErrNotFound)
	}
	for _, t := range s.ocr {
		if t.Trigger == trigger {
			return "", fmt.Errorf("ocr trigger %q: %w", trigger, ErrAlreadyExists)
		}
	}
	s.ocr = append(s.ocr, ocrTrigger{Trigger: trigger, Target: canon})
	return canon, s.saveOCR()
}

func (s *Store) RemoveOCR(trigger string) error {
	trigger = NormalizeTrigger(trigger)

	s.mu.Lock()
	defer s.mu.Unlock()
	for i, t := range s.ocr {
		if t.Trigger == trigger {
			s.ocr = append(s.ocr[:i], s.ocr[i+1:]...)
			return s.saveOCR()
		}
	}
	return fmt.Errorf("ocr trigger %q: %w", trigger, ErrNotFound)
}

// MatchOCR ищет первый (в порядке добавления) триггер, который содержится в
// тексте. Приоритетов и "самого длинного совпадения" нет. Текст
// нормализуется так же, как триггеры, поэтому переносы строк не мешают.
func (s *Store) MatchOCR(text string) (string, Entry, bool) {
	text = NormalizeTrigger(text)
	if text == "" {
		return "", Entry{}, false
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.ocr {
		if !strings.Contains(text, t.Trigger) {
			continue
		}
		if canon, e, ok := s.canonicalLocked(t.Target); ok {
			return canon, e.clone(), true
		}
	}
	return "", Entry{}, false
}

type OCRTrigger struct {
	Trigger string `json:"trigger"`
	Target  string `json:"target"`
}

func (s *Store) OCRTriggers() []OCRTrigger {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]OCRTrigger, 0, len(s.ocr))
	for _, t := range s.ocr {
		out = append(out, OCRTrigger{Trigger: t.Trigger, Target: t.Target})
	}
	return out
}

// OCRList — по строке на триггер: `trigger` -> keyword.
func (s *Store) OCRList() string {
	triggers := s.OCRTriggers()
	lines := make([]string, 0, len(triggers))
	for _, t := range triggers {
		lines = append(lines, fmt.Sprintf("`%s` -> %s", t.Trigger, t.Target))
	}
	return strings.Join(lines, "\n")
}
