// Package throttle ограничивает частоту авто-ответов: счётчик на команду и
// счётчик на автора, каждый со своим таймером сброса. Любое новое касание
// счётчика переносит сброс (скользящее окно).
package throttle

import (
	"sync"
	"time"

	"github.com/EgorLis/autoreply/internal/logger"
)

type Verdict uint8

const (
	Allow Verdict = iota
	Warn
	Mute
)

func (v Verdict) String() string {
	switch v {
	case Allow:
		return "allow"
	case Warn:
		return "warn"
	case Mute:
		return "mute"
	default:
		return "unknown"
	}
}

// Scope — какой лимит сработал.
type Scope uint8

const (
	ScopeNone Scope = iota
	ScopeCommand
	ScopeAuthor
)

// Timer — то, что возвращает Scheduler; *time.Timer подходит как есть.
type Timer interface {
	Stop() bool
}

type Scheduler interface {
	AfterFunc(d time.Duration, f func()) Timer
}

type realScheduler struct{}

func (realScheduler) AfterFunc(d time.Duration, f func()) Timer { return time.AfterFunc(d, f) }

// RealScheduler использует time.AfterFunc.
var RealScheduler Scheduler = realScheduler{}

type Config struct {
	Window       time.Duration
	CommandLimit int // сколько раз команда отвечает за окно
	AuthorLimit  int // сколько ответов автору за окно
	MuteAfter    int // выше этого — только реакция
}

func DefaultConfig() Config {
	return Config{
		Window:       3 * time.Second,
		CommandLimit: 1,
		AuthorLimit:  2,
		MuteAfter:    3,
	}
}

type counter struct {
	n     int
	gen   uint64
	timer Timer
}

type Gate struct {
	mu    sync.Mutex
	cfg   Config
	sched Scheduler

	commands map[string]*counter
	authors  map[string]*counter
	gen      uint64
	stopped  bool
}

func New(cfg Config, sched Scheduler) *Gate {
	if sched == nil {
		sched = RealScheduler
	}
	return &Gate{
		cfg:      cfg,
		sched:    sched,
		commands: make(map[string]*counter),
		authors:  make(map[string]*counter),
	}
}

// Check учитывает одно срабатывание команды от автора.
//
// Лимит команды проверяется первым: если команда уже отвечала в окне,
// счётчик автора не трогается. В конце каждому ненулевому счётчику из двух
// назначается сброс через Window от текущего момента, так что счётчик без
// таймера остаться не может.
func (g *Gate) Check(command, authorID string) Verdict {
	v, _ := g.Evaluate(command, authorID)
	return v
}

// Evaluate — как Check, но ещё сообщает, какой из лимитов сработал.
func (g *Gate) Evaluate(command, authorID string) (Verdict, Scope) {
	g.mu.Lock()
	defer g.mu.Unlock()

	cmd := g.touch(g.commands, command)
	author := g.touch(g.authors, authorID)

	verdict, scope := Allow, ScopeNone
	cmd.n++
	if cmd.n > g.cfg.CommandLimit {
		verdict, scope = g.over(cmd.n), ScopeCommand
	} else {
		author.n++
		if author.n > g.cfg.AuthorLimit {
			verdict, scope = g.over(author.n), ScopeAuthor
		}
	}

	g.schedule(g.commands, command, cmd)
	g.schedule(g.authors, authorID, author)

	if verdict != Allow {
		logger.Debug("throttled", "command", command, "author", authorID,
			"verdict", verdict.String(), "command_hits", cmd.n, "author_hits", author.n)
	}
	return verdict, scope
}

func (g *Gate) over(n int) Verdict {
	if n > g.cfg.MuteAfter {
		return Mute
	}
	return Warn
}

// touch возвращает счётчик и отменяет его отложенный сброс.
func (g *Gate) touch(m map[string]*counter, key string) *counter {
	c, ok := m[key]
	if !ok {
		c = &counter{}
		m[key] = c
	}
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	return c
}

func (g *Gate) schedule(m map[string]*counter, key string, c *counter) {
	if c.n == 0 {
		delete(m, key)
		return
	}
	if g.stopped {
		return
	}
	g.gen++
	gen := g.gen
	c.gen = gen
	c.timer = g.sched.AfterFunc(g.cfg.Window, func() { g.reset(m, key, gen) })
}

// reset обнуляет счётчик, если с момента постановки таймера его не трогали.
func (g *Gate) reset(m map[string]*counter, key string, gen uint64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if c, ok := m[key]; ok && c.gen == gen {
		delete(m, key)
	}
}

// Hits возвращает текущие значения счётчиков (0, если счётчика нет).
func (g *Gate) Hits(command, authorID string) (commandHits, authorHits int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if c, ok := g.commands[command]; ok {
		commandHits = c.n
	}
	if c, ok := g.authors[authorID]; ok {
		authorHits = c.n
	}
	return commandHits, authorHits
}

// Stop отменяет все отложенные сбросы. После Stop таймеры не ставятся.
func (g *Gate) Stop() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.stopped = true
	for _, m := range []map[string]*counter{g.commands, g.authors} {
		for _, c := range m {
			if c.timer != nil {
				c.timer.Stop()
				c.timer = nil
			}
		}
	}
}
