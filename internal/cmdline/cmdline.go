// Package cmdline разбирает аргументы чат-команд: ключевое слово (одно слово
// или фраза в кавычках) и остаток сообщения, который становится ответом.
package cmdline

import (
	"errors"
	"regexp"
	"slices"
	"strings"
)

// ErrMissingQuote — открывающая кавычка без закрывающей.
var ErrMissingQuote = errors.New("missing closing quote")

// <@!123> (мобильный клиент) -> <@123> (десктоп)
var reMention = regexp.MustCompile(`<@!(\d+)>`)

type Args struct {
	Keyword   string
	Remainder string
}

// SplitCommand отделяет имя команды от аргументов. Разделитель — любой
// пробельный символ, включая перевод строки.
func SplitCommand(text string) (cmd, rest string) {
	text = strings.TrimLeft(text, " \t\r\n")
	i := strings.IndexAny(text, " \t\r\n")
	if i < 0 {
		return text, ""
	}
	return text[:i], strings.TrimLeft(text[i:], " \t\r\n")
}

// Parse вытаскивает ключевое слово и остаток из текста после префикса и имени
// команды. Переводы строк не режут токены: многострочный ответ не должен
// попасть в ключ.
func Parse(text string) (Args, error) {
	tokens := splitSpaces(text)
	if len(tokens) == 0 {
		return Args{}, nil
	}

	var keyword, tail string
	rest := tokens[1:]

	if q := tokens[0][0]; q == '"' || q == '\'' {
		end, cut := closingToken(tokens, q)
		if end < 0 {
			return Args{}, ErrMissingQuote
		}
		last := tokens[end]
		tail = last[cut:]
		head := append(slices.Clone(tokens[:end]), last[:cut])
		joined := strings.Join(head, " ")
		joined = strings.NewReplacer(`\'`, `'`, `\"`, `"`).Replace(joined)
		keyword = joined[1 : len(joined)-1]
		rest = tokens[end+1:]
	} else {
		keyword = tokens[0]
	}

	remainder := strings.Join(rest, " ")
	// перевод строки сразу после закрывающей кавычки
	if tail != "" {
		if remainder != "" {
			remainder = tail + " " + remainder
		} else {
			remainder = tail
		}
	}

	if i := strings.IndexByte(keyword, '\n'); i >= 0 {
		tail := keyword[i+1:]
		keyword = strings.TrimRight(keyword[:i], "\r")
		if remainder != "" {
			remainder = tail + " " + remainder
		} else {
			remainder = tail
		}
	}

	return Args{
		Keyword:   reMention.ReplaceAllString(keyword, "<@$1>"),
		Remainder: strings.TrimLeft(remainder, " \t\r\n"),
	}, nil
}

func splitSpaces(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool { return r == ' ' || r == '\t' })
}

// closingToken ищет первый токен с неэкранированной закрывающей кавычкой q и
// возвращает его индекс и позицию сразу за кавычкой. Кавычка проверяется в
// конце первой строки токена, а затем в конце всего токена: после неё может
// сразу идти перевод строки и многострочный ответ.
// Первый токен подходит, только если кавычка в нём не единственная.
func closingToken(tokens []string, q byte) (int, int) {
	for i, t := range tokens {
		line := t
		if j := strings.IndexByte(t, '\n'); j >= 0 {
			line = strings.TrimRight(t[:j], "\r")
		}
		if closes(line, q, i == 0) {
			return i, len(line)
		}
		if len(line) != len(t) && closes(t, q, i == 0) {
			return i, len(t)
		}
	}
	return -1, 0
}

func closes(s string, q byte, first bool) bool {
	n := len(s)
	if n == 0 || (first && n < 2) {
		return false
	}
	if s[n-1] != q {
		return false
	}
	return n < 2 || s[n-2] != '\\'
}
