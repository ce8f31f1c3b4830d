package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/EgorLis/autoreply/internal/cmdline"
	"github.com/EgorLis/autoreply/internal/gateway"
	"github.com/EgorLis/autoreply/internal/keywords"
	"github.com/EgorLis/autoreply/internal/logger"
)

type command struct {
	name   string
	usage  string
	public bool // доступна всем и проходит через троттлинг
}

var commands = []command{
	{name: "add", usage: "add command response"},
	{name: "addMeme", usage: "addMeme command response"},
	{name: "edit", usage: "edit command newResponse"},
	{name: "meme", usage: "meme command on|off"},
	{name: "remove", usage: "remove command"},
	{name: "alias", usage: "alias newAlias existingCommand"},
	{name: "rename", usage: "rename currentName newName"},
	{name: "addOcr", usage: "addOcr command text on the image"},
	{name: "removeOcr", usage: "removeOcr text on the image"},
	{name: "prefix", usage: "prefix newPrefix"},
	{name: "setRole", usage: "setRole roleID"},
	{name: "stats", usage: "stats"},
	{name: "list", usage: "list", public: true},
	{name: "memeList", usage: "memeList", public: true},
	{name: "ocrList", usage: "ocrList", public: true},
	{name: "help", usage: "help", public: true},
}

// lookupCommand ищет команду без учёта регистра.
func lookupCommand(name string) (command, bool) {
	for _, c := range commands {
		if strings.EqualFold(c.name, name) {
			return c, true
		}
	}
	return command{}, false
}

// runCommand выполняет команду и отвечает автору. Изменяющие команды без
// прав молча игнорируются и лимитом не считаются.
func (b *Bot) runCommand(ctx context.Context, m *gateway.Message, cmd command, args string, allowed bool) {
	if !cmd.public && !b.privileged(m) {
		logger.Debug("command_denied", "command", cmd.name, "author", m.AuthorID)
		b.metrics.Command(cmd.name, errors.New("denied"))
		return
	}

	say := func(s string) { b.reply(ctx, m, s, nil) }

	if !allowed {
		say(msgWrongChannel(b.channels))
		return
	}

	run := func() {
		text, err := b.execute(m, cmd, args)
		b.metrics.Command(cmd.name, err)

		var re replyError
		switch {
		case err == nil:
			say(text)
		case errors.As(err, &re):
			say(re.msg)
		default:
			say(msgSaveFailed)
			b.fatal(fmt.Errorf("%s: %w", cmd.name, err))
		}
	}

	if cmd.public {
		b.throttled(ctx, m, commandBucket+strings.ToLower(cmd.name), cmd.name, run)
		return
	}
	run()
}

func (b *Bot) execute(m *gateway.Message, cmd command, args string) (string, error) {
	p := b.store.Prefix()

	switch cmd.name {

	// ---------- ответы ----------
	case "add", "addMeme":
		a, err := cmdline.Parse(args)
		if err != nil {
			return "", explain(err, "")
		}
		files := fromAttachments(m.Attachments)
		if a.Keyword == "" || (a.Remainder == "" && len(files) == 0) {
			return "", usage(p, cmd.usage)
		}
		if err := b.store.Add(a.Keyword, a.Remainder, files, cmd.name == "addMeme"); err != nil {
			return "", explain(err, a.Keyword)
		}
		logger.Info("keyword_added", "keyword", a.Keyword, "meme", cmd.name == "addMeme", "author", m.AuthorID)
		if a.Remainder == "" {
			return fmt.Sprintf("Added auto-reply: `%s`, with %d attachment(s).", a.Keyword, len(files)), nil
		}
		return fmt.Sprintf("Added auto-reply: `%s`, with the response: \n> %s.", a.Keyword, a.Remainder), nil

	case "edit":
		a, err := cmdline.Parse(args)
		if err != nil {
			return "", explain(err, "")
		}
		files := fromAttachments(m.Attachments)
		if a.Keyword == "" || (a.Remainder == "" && len(files) == 0) {
			return "", usage(p, cmd.usage)
		}
		_, cur, ok := b.store.Resolve(a.Keyword, true)
		if !ok {
			return "", explain(keywords.ErrNotFound, a.Keyword)
		}
		if err := b.store.Edit(a.Keyword, a.Remainder, files, cur.IsMeme); err != nil {
			return "", explain(err, a.Keyword)
		}
		logger.Info("keyword_edited", "keyword", a.Keyword, "author", m.AuthorID)
		return fmt.Sprintf("Modified response for `%s`.", a.Keyword), nil

	case "meme":
		a, err := cmdline.Parse(args)
		if err != nil {
			return "", explain(err, "")
		}
		on, ok := parseSwitch(a.Remainder)
		if a.Keyword == "" || !ok {
			return "", usage(p, cmd.usage)
		}
		if err := b.store.SetMeme(a.Keyword, on); err != nil {
			return "", explain(err, a.Keyword)
		}
		if on {
			return fmt.Sprintf("`%s` is now a meme.", a.Keyword), nil
		}
		return fmt.Sprintf("`%s` is no longer a meme.", a.Keyword), nil

	case "remove":
		a, err := cmdline.Parse(args)
		if err != nil {
			return "", explain(err, "")
		}
		if a.Keyword == "" {
			return "", usage(p, cmd.usage)
		}
		if err := b.store.Remove(a.Keyword); err != nil {
			return "", explain(err, a.Keyword)
		}
		logger.Info("keyword_removed", "keyword", a.Keyword, "author", m.AuthorID)
		return fmt.Sprintf("Deleted auto-reply for `%s`", a.Keyword), nil

	case "alias", "rename":
		first, second, err := twoKeys(args)
		if err != nil {
			return "", explain(err, "")
		}
		if first == "" || second == "" {
			return "", usage(p, cmd.usage)
		}
		if cmd.name == "alias" {
			return b.alias(first, second)
		}
		return b.rename(first, second)

	// ---------- OCR ----------
	case "addOcr":
		a, err := cmdline.Parse(args)
		if err != nil {
			return "", explain(err, "")
		}
		if a.Keyword == "" || a.Remainder == "" {
			return "", usage(p, cmd.usage)
		}
		trigger := keywords.NormalizeTrigger(a.Remainder)
		canon, err := b.store.AddOCR(trigger, a.Keyword)
		switch {
		case errors.Is(err, keywords.ErrAlreadyExists):
			return "", replyf("OCR trigger `%s` already exists.", trigger)
		case err != nil:
			return "", explain(err, a.Keyword)
		}
		logger.Info("ocr_trigger_added", "trigger", trigger, "keyword", canon, "author", m.AuthorID)
		return fmt.Sprintf("Added OCR trigger `%s` for `%s`.", trigger, canon), nil

	case "removeOcr":
		trigger := keywords.NormalizeTrigger(args)
		if trigger == "" {
			return "", usage(p, cmd.usage)
		}
		if err := b.store.RemoveOCR(trigger); err != nil {
			if errors.Is(err, keywords.ErrNotFound) {
				return "", replyf("OCR trigger `%s` doesn't exist.", trigger)
			}
			return "", explain(err, trigger)
		}
		logger.Info("ocr_trigger_removed", "trigger", trigger, "author", m.AuthorID)
		return fmt.Sprintf("Removed OCR trigger `%s`.", trigger), nil

	// ---------- списки ----------
	case "list":
		if s := b.store.List(keywords.FilterAll); s != "" {
			return bulletList("Here's a list of available auto-response keywords:", s), nil
		}
		return "There are no auto-response keywords yet.", nil

	case "memeList":
		if s := b.store.List(keywords.FilterMeme); s != "" {
			return bulletList("Here's a list of available meme keywords:", s), nil
		}
		return "There are no meme keywords yet.", nil

	case "ocrList":
		if s := b.store.OCRList(); s != "" {
			return bulletList("Here's a list of OCR triggers:", s), nil
		}
		return "There are no OCR triggers yet.", nil

	// ---------- настройки ----------
	case "prefix":
		fields := strings.Fields(args)
		if len(fields) == 0 {
			return "", usage(p, cmd.usage)
		}
		if err := b.store.SetPrefix(fields[0]); err != nil {
			return "", err
		}
		logger.Info("prefix_changed", "from", p, "to", fields[0], "author", m.AuthorID)
		return fmt.Sprintf("Changed prefix from %s to %s", p, fields[0]), nil

	case "setRole":
		fields := strings.Fields(args)
		if len(fields) == 0 {
			return "", usage(p, cmd.usage)
		}
		role := strings.Trim(fields[0], "<@&>")
		if err := b.store.SetRoleID(role); err != nil {
			return "", err
		}
		logger.Info("role_changed", "role", role, "author", m.AuthorID)
		return fmt.Sprintf("Changed roleID to %s", role), nil

	case "stats":
		st := b.store.Stats()
		saved := "never"
		if !st.SavedAt.IsZero() {
			saved = humanize.Time(st.SavedAt)
		}
		return fmt.Sprintf("Keywords: %s, aliases: %s, memes: %s, OCR triggers: %s. Last saved %s.",
			humanize.Comma(int64(st.Keywords)), humanize.Comma(int64(st.Aliases)),
			humanize.Comma(int64(st.Memes)), humanize.Comma(int64(st.OCRTriggers)), saved), nil

	case "help":
		lines := make([]string, 0, len(commands))
		for _, c := range commands {
			lines = append(lines, p+c.usage)
		}
		return bulletList("Available commands:", strings.Join(lines, "\n")), nil
	}

	return "", fmt.Errorf("unhandled command %q", cmd.name)
}

func (b *Bot) alias(newKey, existingKey string) (string, error) {
	err := b.store.Alias(newKey, existingKey)
	switch {
	case errors.Is(err, keywords.ErrAlreadyExists):
		return "", explain(err, newKey)
	case err != nil:
		return "", explain(err, existingKey)
	}
	canon, _, _ := b.store.Resolve(newKey, true)
	logger.Info("alias_added", "alias", newKey, "keyword", canon)
	return fmt.Sprintf("Added alias `%s` for `%s`.", newKey, canon), nil
}

func (b *Bot) rename(currentKey, newKey string) (string, error) {
	err := b.store.Rename(currentKey, newKey)
	switch {
	case errors.Is(err, keywords.ErrAlreadyExists):
		return "", explain(err, newKey)
	case err != nil:
		return "", explain(err, currentKey)
	}
	logger.Info("keyword_renamed", "from", currentKey, "to", newKey)
	return fmt.Sprintf("Renamed `%s` to `%s`.", currentKey, newKey), nil
}

// twoKeys разбирает два ключа подряд, каждый может быть в кавычках.
func twoKeys(args string) (string, string, error) {
	a, err := cmdline.Parse(args)
	if err != nil {
		return "", "", err
	}
	b, err := cmdline.Parse(a.Remainder)
	if err != nil {
		return "", "", err
	}
	return a.Keyword, b.Keyword, nil
}

func parseSwitch(s string) (on, ok bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "on", "yes", "true", "1":
		return true, true
	case "off", "no", "false", "0":
		return false, true
	}
	return false, false
}
