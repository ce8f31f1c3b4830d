package bot

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/EgorLis/autoreply/internal/cmdline"
	"github.com/EgorLis/autoreply/internal/keywords"
)

// лимит длины сообщения в чате
const maxMessageLen = 2000

const (
	msgSlowDown   = "Slow down! You're triggering auto-replies too fast."
	msgSaveFailed = "Couldn't save the change. The bot is shutting down, please tell an admin."
)

func msgRecentlySent(key string) string {
	return fmt.Sprintf("A reply for `%s` was just sent, scroll up.", key)
}

func msgWrongChannel(channels []string) string {
	refs := make([]string, 0, len(channels))
	for _, c := range channels {
		refs = append(refs, "<#"+c+">")
	}
	return "Any commands should be run on " + strings.Join(refs, ", ")
}

// replyError: ошибка, которую надо показать пользователю как есть.
type replyError struct{ msg string }

func (e replyError) Error() string { return e.msg }

func replyf(format string, args ...any) error {
	return replyError{msg: fmt.Sprintf(format, args...)}
}

func usage(prefix, form string) error {
	return replyf("Correct Usage: %s%s.", prefix, form)
}

// explain превращает ошибки хранилища и токенизатора в ответ пользователю.
// Остальные ошибки (сбой сохранения) возвращаются без изменений.
func explain(err error, key string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, keywords.ErrNotFound):
		return replyf("Auto-reply for `%s` doesn't exist.", key)
	case errors.Is(err, keywords.ErrAlreadyExists):
		return replyf("Auto-reply for `%s` already exists.", key)
	case errors.Is(err, keywords.ErrReservedKey):
		return replyf("`%s` and `%s` are settings, not keywords.", keywords.KeyPrefix, keywords.KeyRoleID)
	case errors.Is(err, keywords.ErrEmptyKey):
		return replyf("The keyword can't be empty.")
	case errors.Is(err, keywords.ErrEmptyResponse):
		return replyf("The response needs text or an attachment.")
	case errors.Is(err, keywords.ErrEmptyTrigger):
		return replyf("The OCR text can't be empty.")
	case errors.Is(err, cmdline.ErrMissingQuote):
		return replyf("Missing closing quote around the keyword.")
	}
	return err
}

// bulletList: заголовок и по пункту "- " на строку.
func bulletList(header, lines string) string {
	return header + "\n- " + strings.ReplaceAll(lines, "\n", "\n- ")
}

// splitMessage режет текст по строкам на куски не длиннее max символов.
// Пустой текст даёт один пустой кусок (ответ из одних вложений). Пустые строки
// сохраняются, в том числе в начале куска; куски из одних пробелов не шлются.
func splitMessage(text string, max int) []string {
	if utf8.RuneCountInString(text) <= max {
		return []string{text}
	}
	var parts []string
	var cur strings.Builder
	curLen := 0
	started := false
	flush := func() {
		if started && strings.TrimSpace(cur.String()) != "" {
			parts = append(parts, cur.String())
		}
		cur.Reset()
		curLen = 0
		started = false
	}
	for _, line := range strings.Split(text, "\n") {
		for utf8.RuneCountInString(line) > max {
			flush()
			r := []rune(line)
			parts = append(parts, string(r[:max]))
			line = string(r[max:])
		}
		n := utf8.RuneCountInString(line)
		if started && curLen+1+n > max {
			flush()
		}
		if started {
			cur.WriteByte('\n')
			curLen++
		}
		cur.WriteString(line)
		curLen += n
		started = true
	}
	flush()
	return parts
}
