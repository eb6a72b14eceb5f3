// Package settings persists the user's preferences (OCR language and
// indicator visibility) in a small YAML file and publishes changes.
package settings

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

const (
	KeyLanguage      = "language"
	KeyShowIndicator = "show-indicator"
)

var ErrUnknownLanguage = errors.New("unknown language")

type Settings struct {
	Language      string `yaml:"language"`
	ShowIndicator bool   `yaml:"show-indicator"`
}

func Defaults() Settings {
	return Settings{Language: DefaultLanguage, ShowIndicator: true}
}

// Change is published for every key whose value differs after a reload or write.
type Change struct {
	Key      string
	Settings Settings
}

// Store is safe for concurrent use.
type Store struct {
	path string
	log  zerolog.Logger

	mu      sync.RWMutex
	current Settings
	subs    map[int]chan Change
	nextSub int
}

// Open loads path, creating it with defaults when absent. A stored language
// outside the catalog is reset to the default and written back.
func Open(path string, log zerolog.Logger) (*Store, error) {
	s := &Store{path: path, log: log, subs: make(map[int]chan Change)}

	loaded, err := readFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		loaded = Defaults()
		if err := writeFile(path, loaded); err != nil {
			return nil, err
		}
	case err != nil:
		return nil, err
	}

	if _, ok := LookupLanguage(loaded.Language); !ok {
		log.Warn().Str("language", loaded.Language).Msg("stored language unknown, resetting to default")
		loaded.Language = DefaultLanguage
		if err := writeFile(path, loaded); err != nil {
			return nil, err
		}
	}

	s.current = loaded
	return s, nil
}

func (s *Store) Path() string { return s.path }

func (s *Store) Get() Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Language returns the selected OCR language code.
func (s *Store) Language() string { return s.Get().Language }

func (s *Store) SetLanguage(code string) error {
	if _, ok := LookupLanguage(code); !ok {
		return fmt.Errorf("%w: %q", ErrUnknownLanguage, code)
	}
	return s.update(func(st *Settings) { st.Language = code })
}

func (s *Store) SetShowIndicator(show bool) error {
	return s.update(func(st *Settings) { st.ShowIndicator = show })
}

func (s *Store) update(mutate func(*Settings)) error {
	s.mu.Lock()
	next := s.current
	mutate(&next)
	if next == s.current {
		s.mu.Unlock()
		return nil
	}
	if err := writeFile(s.path, next); err != nil {
		s.mu.Unlock()
		return err
	}
	prev := s.current
	s.current = next
	s.mu.Unlock()

	s.publish(prev, next)
	return nil
}

// Subscribe returns a channel of changes and a function that ends the subscription.
func (s *Store) Subscribe() (<-chan Change, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextSub
	s.nextSub++
	ch := make(chan Change, 8)
	s.subs[id] = ch
	return ch, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if c, ok := s.subs[id]; ok {
			delete(s.subs, id)
			close(c)
		}
	}
}

func (s *Store) publish(prev, next Settings) {
	var changes []Change
	if prev.Language != next.Language {
		changes = append(changes, Change{Key: KeyLanguage, Settings: next})
	}
	if prev.ShowIndicator != next.ShowIndicator {
		changes = append(changes, Change{Key: KeyShowIndicator, Settings: next})
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, c := range changes {
		for _, ch := range s.subs {
			select {
			case ch <- c:
			default:
				s.log.Warn().Str("key", c.Key).Msg("settings subscriber slow, change dropped")
			}
		}
	}
}

// Watch reloads the file whenever another process (the CLI, an editor)
// writes it, until ctx is done.
func (s *Store) Watch(ctx context.Context) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("settings watcher: %w", err)
	}
	defer w.Close()

	// Editors replace files atomically, so watch the directory.
	if err := w.Add(filepath.Dir(s.path)); err != nil {
		return fmt.Errorf("watch %s: %w", filepath.Dir(s.path), err)
	}

	target := filepath.Clean(s.path)
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != target || !(ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create)) {
				continue
			}
			s.reload()
		case werr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			s.log.Warn().Err(werr).Msg("settings watcher error")
		}
	}
}

func (s *Store) reload() {
	loaded, err := readFile(s.path)
	if err != nil {
		s.log.Debug().Err(err).Msg("settings reload skipped")
		return
	}
	if _, ok := LookupLanguage(loaded.Language); !ok {
		s.log.Warn().Str("language", loaded.Language).Msg("ignoring unknown language from settings file")
		loaded.Language = s.Get().Language
	}

	s.mu.Lock()
	prev := s.current
	s.current = loaded
	s.mu.Unlock()
	s.publish(prev, loaded)
}

func readFile(path string) (Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Settings{}, err
	}
	st := Defaults()
	if err := yaml.Unmarshal(data, &st); err != nil {
		return Settings{}, fmt.Errorf("parse %s: %w", path, err)
	}
	return st, nil
}

func writeFile(path string, st Settings) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create settings dir: %w", err)
	}
	data, err := yaml.Marshal(st)
	if err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("replace settings: %w", err)
	}
	return nil
}
