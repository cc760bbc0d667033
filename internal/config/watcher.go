package config

import (
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/aatumaykin/cmsjobs/internal/logger"
)

// ReloadCallback получает новую конфигурацию после успешной перезагрузки
type ReloadCallback func(*Config)

// Watcher следит за файлом конфигурации и перечитывает его при изменении.
// Невалидная конфигурация логируется и не передаётся подписчикам.
type Watcher struct {
	path      string
	watcher   *fsnotify.Watcher
	logger    *logger.Logger
	debounce  time.Duration
	callbacks []ReloadCallback

	mu    sync.Mutex
	timer *time.Timer
	done  chan struct{}
}

// NewWatcher создаёт watcher. Следим за каталогом, а не за файлом:
// редакторы часто заменяют файл через rename.
func NewWatcher(path string, log *logger.Logger) (*Watcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve config path: %w", err)
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}
	if err := fw.Add(filepath.Dir(abs)); err != nil {
		fw.Close()
		return nil, fmt.Errorf("failed to watch config directory %s: %w", filepath.Dir(abs), err)
	}

	return &Watcher{
		path:     abs,
		watcher:  fw,
		logger:   log.Component("config_watcher"),
		debounce: 250 * time.Millisecond,
		done:     make(chan struct{}),
	}, nil
}

// OnReload регистрирует callback. Вызывать до Start.
func (w *Watcher) OnReload(cb ReloadCallback) {
	w.callbacks = append(w.callbacks, cb)
}

// Start запускает обработку событий
func (w *Watcher) Start() {
	go w.watchLoop()
}

// Stop останавливает watcher
func (w *Watcher) Stop() error {
	w.mu.Lock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.mu.Unlock()

	err := w.watcher.Close()
	<-w.done
	return err
}

func (w *Watcher) watchLoop() {
	defer close(w.done)
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename) {
				w.logger.Debug("config file changed",
					logger.Field{Key: "op", Value: event.Op.String()})
				w.scheduleReload()
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("config watcher error", logger.Field{Key: "error", Value: err.Error()})
		}
	}
}

// scheduleReload склеивает серию быстрых изменений в одну перезагрузку
func (w *Watcher) scheduleReload() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, w.reload)
}

func (w *Watcher) reload() {
	cfg, err := Load(w.path)
	if err != nil {
		w.logger.Error("config reload failed", err)
		return
	}
	if errs := cfg.Validate(); len(errs) > 0 {
		for _, e := range errs {
			w.logger.Error("reloaded config is invalid", e)
		}
		return
	}

	w.logger.Info("config reloaded", logger.Field{Key: "path", Value: w.path})
	for _, cb := range w.callbacks {
		cb(cfg)
	}
}
