package bot

import (
	"context"
	"errors"
	"slices"
	"strings"
	"sync"

	"github.com/EgorLis/autoreply/internal/cmdline"
	"github.com/EgorLis/autoreply/internal/gateway"
	"github.com/EgorLis/autoreply/internal/keywords"
	"github.com/EgorLis/autoreply/internal/logger"
	"github.com/EgorLis/autoreply/internal/metrics"
	"github.com/EgorLis/autoreply/internal/ocr"
	"github.com/EgorLis/autoreply/internal/throttle"
)

// Chat — исходящая сторона чата; *gateway.Client подходит как есть.
type Chat interface {
	Reply(ctx context.Context, channelID, messageID, content string, files []gateway.File) error
	React(ctx context.Context, channelID, messageID, emoji string) error
	SendMessage(ctx context.Context, channelID, content string) error
}

// Extractor распознаёт текст на картинке по ссылке.
type Extractor interface {
	Extract(ctx context.Context, imageURL string) (string, error)
}

type Reactions struct {
	Success string
	Mute    string
}

type Options struct {
	Store     *keywords.Store
	Gate      *throttle.Gate
	Chat      Chat
	Gateway   *gateway.Client // для Start; если Chat пуст, он же служит Chat
	OCR       Extractor
	Metrics   *metrics.Metrics
	Channels  []string // пусто — все каналы
	Reactions Reactions
}

type Bot struct {
	store     *keywords.Store
	gate      *throttle.Gate
	chat      Chat
	gw        *gateway.Client
	ocr       Extractor
	metrics   *metrics.Metrics
	channels  []string
	reactions Reactions

	errOnce sync.Once
	errCh   chan error

	stopCh chan struct{}
	wg     sync.WaitGroup
	mu     sync.Mutex
}

func New(opts Options) *Bot {
	b := &Bot{
		store:     opts.Store,
		gate:      opts.Gate,
		chat:      opts.Chat,
		gw:        opts.Gateway,
		ocr:       opts.OCR,
		metrics:   opts.Metrics,
		channels:  opts.Channels,
		reactions: opts.Reactions,
		errCh:     make(chan error, 1),
	}
	if b.chat == nil && b.gw != nil {
		b.chat = b.gw
	}
	if b.gate == nil {
		b.gate = throttle.New(throttle.DefaultConfig(), nil)
	}
	if b.reactions.Success == "" {
		b.reactions.Success = "✅"
	}
	if b.reactions.Mute == "" {
		b.reactions.Mute = "🤐"
	}
	return b
}

// Err отдаёт первую фатальную ошибку (сбой сохранения). После неё бот
// продолжать не должен.
func (b *Bot) Err() <-chan error {
	return b.errCh
}

func (b *Bot) fatal(err error) {
	logger.Error("fatal_error", "err", err)
	b.errOnce.Do(func() { b.errCh <- err })
}

// Start подключается к шлюзу и передаёт ему обработку сообщений.
func (b *Bot) Start(ctx context.Context) error {
	if b.gw == nil {
		return errors.New("gateway is not configured")
	}
	b.mu.Lock()
	if b.stopCh != nil {
		b.mu.Unlock()
		return errors.New("already running")
	}
	b.stopCh = make(chan struct{})
	stopCh := b.stopCh
	b.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	b.gw.OnConnecting = func() { logger.Info("gateway_connecting") }
	b.gw.OnConnected = func() {
		logger.Info("gateway_connected")
		b.metrics.Gateway("connected")
	}
	b.gw.OnDisconnected = func() {
		logger.Warn("gateway_disconnected")
		b.metrics.Gateway("disconnected")
	}
	b.gw.OnError = func(err error) {
		logger.Warn("gateway_error", "err", err)
		b.metrics.Gateway("error")
	}
	b.gw.OnMessage = func(m *gateway.Message) { b.HandleMessage(ctx, m) }

	if err := b.gw.Connect(ctx); err != nil {
		cancel()
		b.mu.Lock()
		b.stopCh = nil
		b.mu.Unlock()
		return err
	}

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		select {
		case <-stopCh:
		case <-ctx.Done():
		}
		cancel()
		b.gw.Disconnect()
		b.gate.Stop()
	}()
	return nil
}

func (b *Bot) Stop() {
	b.mu.Lock()
	ch := b.stopCh
	b.stopCh = nil
	b.mu.Unlock()

	if ch != nil {
		close(ch)
		b.wg.Wait()
	}
}

// HandleMessage обрабатывает одно входящее сообщение целиком.
func (b *Bot) HandleMessage(ctx context.Context, m *gateway.Message) {
	if m == nil || m.AuthorBot {
		b.metrics.Message("ignored")
		return
	}
	allowed := b.channelAllowed(m.ChannelID)
	content := strings.TrimSpace(m.Content)

	// сообщение целиком совпадает с ключом
	if allowed && content != "" {
		if key, e, ok := b.lookup(content); ok {
			b.metrics.Message("direct")
			b.respond(ctx, m, key, e)
			return
		}
	}

	prefix := b.store.Prefix()
	if strings.HasPrefix(content, prefix) {
		body := strings.TrimSpace(content[len(prefix):])
		name, args := cmdline.SplitCommand(body)
		if cmd, ok := lookupCommand(name); ok {
			b.metrics.Message("command")
			b.runCommand(ctx, m, cmd, args, allowed)
			return
		}
		if allowed && body != "" {
			if a, err := cmdline.Parse(body); err == nil {
				if key, e, ok := b.lookup(a.Keyword); ok {
					b.metrics.Message("prefixed")
					b.respond(ctx, m, key, e)
					return
				}
			}
		}
	}

	if allowed && b.ocr != nil && b.matchImages(ctx, m) {
		b.metrics.Message("ocr")
		return
	}
	b.metrics.Message("ignored")
}

// lookup возвращает канонический ответ по ключу или алиасу.
func (b *Bot) lookup(key string) (string, keywords.Entry, bool) {
	canon, e, ok := b.store.Resolve(key, true)
	if !ok || !e.IsCanonical() {
		return "", keywords.Entry{}, false
	}
	return canon, e, true
}

func (b *Bot) matchImages(ctx context.Context, m *gateway.Message) bool {
	for _, a := range m.Attachments {
		if !ocr.IsImage(a.ContentType, a.Name) {
			continue
		}
		text, err := b.ocr.Extract(ctx, a.URL)
		if err != nil {
			b.metrics.OCR("error")
			logger.Warn("ocr_failed", "url", a.URL, "err", err)
			continue
		}
		key, e, ok := b.store.MatchOCR(text)
		if !ok {
			b.metrics.OCR("miss")
			continue
		}
		b.metrics.OCR("match")
		logger.Info("ocr_matched", "keyword", key, "message", m.ID)
		b.respond(ctx, m, key, e)
		return true
	}
	return false
}

// respond отвечает записью key с учётом троттлинга.
func (b *Bot) respond(ctx context.Context, m *gateway.Message, key string, e keywords.Entry) {
	b.throttled(ctx, m, strings.ToLower(key), key, func() {
		b.react(ctx, m, b.reactions.Success)
		b.reply(ctx, m, e.Content, toFiles(e.Files))
	})
}

// Команды считаются в гейте отдельно от ключевых слов: ключ "list" и команда
// list не мешают друг другу. Ключ не может содержать перевод строки, поэтому
// с корзиной команды он не совпадёт.
const commandBucket = "cmd\n"

// throttled проверяет гейт по корзине bucket и вызывает send только при Allow.
// label показывается пользователю в предупреждении.
func (b *Bot) throttled(ctx context.Context, m *gateway.Message, bucket, label string, send func()) {
	verdict, scope := b.gate.Evaluate(bucket, m.AuthorID)
	b.metrics.Verdict(verdict.String())
	switch verdict {
	case throttle.Allow:
		send()
	case throttle.Warn:
		if scope == throttle.ScopeCommand {
			b.reply(ctx, m, msgRecentlySent(label), nil)
		} else {
			b.reply(ctx, m, msgSlowDown, nil)
		}
	case throttle.Mute:
		b.react(ctx, m, b.reactions.Mute)
	}
}

func (b *Bot) reply(ctx context.Context, m *gateway.Message, content string, files []gateway.File) {
	if content == "" && len(files) == 0 {
		return
	}
	for i, part := range splitMessage(content, maxMessageLen) {
		var f []gateway.File
		if i == 0 {
			f = files
		}
		if err := b.chat.Reply(ctx, m.ChannelID, m.ID, part, f); err != nil {
			logger.Warn("reply_failed", "channel", m.ChannelID, "err", err)
			return
		}
	}
}

func (b *Bot) react(ctx context.Context, m *gateway.Message, emoji string) {
	if emoji == "" {
		return
	}
	if err := b.chat.React(ctx, m.ChannelID, m.ID, emoji); err != nil {
		logger.Warn("react_failed", "channel", m.ChannelID, "err", err)
	}
}

func (b *Bot) channelAllowed(id string) bool {
	return len(b.channels) == 0 || slices.Contains(b.channels, id)
}

// privileged — владелец сервера или участник с ролью roleID.
func (b *Bot) privileged(m *gateway.Message) bool {
	if m.AuthorOwner {
		return true
	}
	role := b.store.RoleID()
	return role != "" && slices.Contains(m.AuthorRoles, role)
}

func toFiles(atts []keywords.Attachment) []gateway.File {
	if len(atts) == 0 {
		return nil
	}
	out := make([]gateway.File, 0, len(atts))
	for _, a := range atts {
		out = append(out, gateway.File{URL: a.URL, Name: a.Name})
	}
	return out
}

func fromAttachments(atts []gateway.Attachment) []keywords.Attachment {
	if len(atts) == 0 {
		return nil
	}
	out := make([]keywords.Attachment, 0, len(atts))
	for _, a := range atts {
		out = append(out, keywords.Attachment{URL: a.URL, Name: a.Name})
	}
	return out
}

// Wait блокируется до фатальной ошибки или отмены ctx.
func (b *Bot) Wait(ctx context.Context) error {
	select {
	case err := <-b.errCh:
		return err
	case <-ctx.Done():
		return nil
	}
}

var _ Chat = (*gateway.Client)(nil)
