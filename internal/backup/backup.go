// Package backup по расписанию cron сохраняет копии документов хранилища
// в каталог и держит только последние keep копий каждого документа.
package backup

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/adhocore/gronx"

	"github.com/EgorLis/autoreply/internal/logger"
)

// формат сортируется как строка
const stampLayout = "20060102T150405.000Z"

// Source: то, что умеет отдать снимок документов (keywords.Store).
type Source interface {
	Snapshot() (map[string][]byte, error)
}

type Conf struct {
	Cron string // пусто: расписания нет, работает только RunOnce
	Dir  string
	Keep int
}

type Scheduler struct {
	src  Source
	conf Conf
	now  func() time.Time

	mu     sync.Mutex
	stopCh chan struct{}
	wg     sync.WaitGroup
}

func New(src Source, conf Conf) (*Scheduler, error) {
	if conf.Cron != "" && !gronx.IsValid(conf.Cron) {
		return nil, fmt.Errorf("invalid backup cron expression: %s", conf.Cron)
	}
	if conf.Dir == "" {
		return nil, errors.New("backup dir is empty")
	}
	if conf.Keep <= 0 {
		conf.Keep = 1
	}
	return &Scheduler{src: src, conf: conf, now: time.Now}, nil
}

// RunOnce пишет по файлу на документ и чистит старые копии.
// Возвращает пути записанных файлов.
func (s *Scheduler) RunOnce() ([]string, error) {
	docs, err := s.src.Snapshot()
	if err != nil {
		return nil, fmt.Errorf("snapshot: %w", err)
	}
	if err := os.MkdirAll(s.conf.Dir, 0o755); err != nil {
		return nil, err
	}

	stamp := s.now().UTC().Format(stampLayout)
	names := make([]string, 0, len(docs))
	for name := range docs {
		names = append(names, name)
	}
	sort.Strings(names)

	var written []string
	for _, name := range names {
		path := filepath.Join(s.conf.Dir, name+"-"+stamp+".json")
		if err := os.WriteFile(path, docs[name], 0o644); err != nil {
			return written, fmt.Errorf("write backup %s: %w", path, err)
		}
		written = append(written, path)
		if err := s.prune(name); err != nil {
			return written, err
		}
	}
	logger.Info("backup_written", "dir", s.conf.Dir, "files", len(written))
	return written, nil
}

// List: копии документа name, от старой к новой.
func (s *Scheduler) List(name string) ([]string, error) {
	entries, err := os.ReadDir(s.conf.Dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	var out []string
	for _, e := range entries {
		n := e.Name()
		if e.IsDir() || !strings.HasPrefix(n, name+"-") || !strings.HasSuffix(n, ".json") {
			continue
		}
		out = append(out, filepath.Join(s.conf.Dir, n))
	}
	sort.Strings(out)
	return out, nil
}

func (s *Scheduler) prune(name string) error {
	files, err := s.List(name)
	if err != nil {
		return err
	}
	for len(files) > s.conf.Keep {
		if err := os.Remove(files[0]); err != nil {
			return fmt.Errorf("prune backup: %w", err)
		}
		logger.Debug("backup_pruned", "path", files[0])
		files = files[1:]
	}
	return nil
}

// Start запускает фоновый цикл по cron. Без cron ничего не делает.
func (s *Scheduler) Start(ctx context.Context) error {
	if s.conf.Cron == "" {
		logger.Info("backup_disabled")
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopCh != nil {
		return errors.New("already running")
	}
	s.stopCh = make(chan struct{})

	s.wg.Add(1)
	go s.loop(ctx, s.stopCh)
	logger.Info("backup_scheduler_started", "cron", s.conf.Cron, "dir", s.conf.Dir)
	return nil
}

func (s *Scheduler) Stop() {
	s.mu.Lock()
	ch := s.stopCh
	s.stopCh = nil
	s.mu.Unlock()

	if ch != nil {
		close(ch)
		s.wg.Wait()
	}
}

func (s *Scheduler) loop(ctx context.Context, stopCh <-chan struct{}) {
	defer s.wg.Done()
	for {
		next, err := gronx.NextTickAfter(s.conf.Cron, s.now().UTC(), false)
		wait := time.Until(next)
		if err != nil {
			logger.Error("backup_nexttick_failed", "cron", s.conf.Cron, "err", err)
			wait = 30 * time.Second
		}

		t := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			t.Stop()
			return
		case <-stopCh:
			t.Stop()
			return
		case <-t.C:
		}
		if err != nil {
			continue
		}
		if _, err := s.RunOnce(); err != nil {
			logger.Error("backup_failed", "err", err)
		}
	}
}
