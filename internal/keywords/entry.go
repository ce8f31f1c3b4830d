// Package keywords хранит авто-ответы: ключ -> канонический ответ или алиас,
// плюс таблицу OCR-триггеров. Все изменения сразу сохраняются через Backend.
//
// Инварианты:
//   - алиас указывает ровно на один канонический ключ (без цепочек);
//   - удаление канонического ответа удаляет его алиасы и OCR-триггеры,
//     переименование переносит их на новый ключ;
//   - prefix и roleID — настройки, а не ключи.
package keywords

import (
	"errors"
	"strings"
)

var (
	ErrNotFound      = errors.New("keyword not found")
	ErrAlreadyExists = errors.New("keyword already exists")
	ErrReservedKey   = errors.New("reserved keyword")
	ErrEmptyKey      = errors.New("empty keyword")
	ErrEmptyResponse = errors.New("response needs content or files")
	ErrEmptyTrigger  = errors.New("empty ocr trigger")
)

const (
	KeyPrefix = "prefix"
	KeyRoleID = "roleID"

	DefaultPrefix = "."
)

type Kind uint8

const (
	KindCanonical Kind = iota + 1
	KindAlias
)

func (k Kind) String() string {
	switch k {
	case KindCanonical:
		return "canonical"
	case KindAlias:
		return "alias"
	default:
		return "unknown"
	}
}

type Attachment struct {
	URL  string `json:"attachment"`
	Name string `json:"name,omitempty"`
}

// Entry — либо канонический ответ (Content/Files/IsMeme), либо алиас (Target).
type Entry struct {
	Kind    Kind
	Content string
	Files   []Attachment
	IsMeme  bool
	Target  string
}

func (e Entry) IsCanonical() bool { return e.Kind == KindCanonical }

func (e Entry) IsAlias() bool { return e.Kind == KindAlias }

func (e Entry) clone() Entry {
	if e.Files != nil {
		e.Files = append([]Attachment(nil), e.Files...)
	}
	return e
}

// Filter для List.
type Filter int

const (
	FilterAll Filter = iota
	FilterMeme
	FilterNonMeme
)

func (f Filter) match(isMeme bool) bool {
	switch f {
	case FilterMeme:
		return isMeme
	case FilterNonMeme:
		return !isMeme
	default:
		return true
	}
}

// ParseFilter принимает all|meme|non-meme.
func ParseFilter(s string) (Filter, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "all":
		return FilterAll, true
	case "meme", "memes":
		return FilterMeme, true
	case "non-meme", "nonmeme":
		return FilterNonMeme, true
	default:
		return FilterAll, false
	}
}

func IsReserved(key string) bool {
	return strings.EqualFold(key, KeyPrefix) || strings.EqualFold(key, KeyRoleID)
}
