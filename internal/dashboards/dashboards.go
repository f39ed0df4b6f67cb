// Package dashboards loads the dashboards.yaml shortcut file: saved
// questions with a preferred chart type. Shortcuts make repeated
// dashboard questions render with a stable chart instead of whatever
// the backend ranks first on a given day.
package dashboards

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"
)

// Shortcut is one saved dashboard question.
type Shortcut struct {
	Name      string `yaml:"name"`
	Question  string `yaml:"question"`
	ChartType string `yaml:"chart_type"`
}

type fileFormat struct {
	Dashboards []Shortcut `yaml:"dashboards"`
}

// Shortcuts is an immutable snapshot of the shortcut file. Lookups are
// by exact question text after whitespace normalization.
type Shortcuts struct {
	byQuestion map[string]Shortcut
	list       []Shortcut
}

// Load parses a dashboards.yaml. A missing file yields an empty, usable
// snapshot; shortcuts are optional.
func Load(path string) (*Shortcuts, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return &Shortcuts{byQuestion: map[string]Shortcut{}}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	var f fileFormat
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	s := &Shortcuts{byQuestion: make(map[string]Shortcut, len(f.Dashboards))}
	for _, sc := range f.Dashboards {
		if strings.TrimSpace(sc.Question) == "" {
			continue
		}
		s.byQuestion[normalize(sc.Question)] = sc
		s.list = append(s.list, sc)
	}
	return s, nil
}

// List returns the shortcuts in file order.
func (s *Shortcuts) List() []Shortcut {
	return append([]Shortcut(nil), s.list...)
}

// PreferredChartFor returns the saved chart type for a question, or "".
func (s *Shortcuts) PreferredChartFor(question string) string {
	if s == nil {
		return ""
	}
	sc, ok := s.byQuestion[normalize(question)]
	if !ok {
		return ""
	}
	return sc.ChartType
}

// Question returns the saved question for a shortcut name, or "".
func (s *Shortcuts) Question(name string) string {
	if s == nil {
		return ""
	}
	for _, sc := range s.list {
		if sc.Name == name {
			return sc.Question
		}
	}
	return ""
}

func normalize(q string) string {
	return strings.Join(strings.Fields(q), " ")
}

// Reloader serves a hot-swappable snapshot. Watch re-loads the file on
// write events so a running server picks up shortcut edits without a
// restart.
type Reloader struct {
	mu     sync.RWMutex
	path   string
	cur    *Shortcuts
	logger *slog.Logger
}

// NewReloader loads the initial snapshot. A nil logger discards.
func NewReloader(path string, logger *slog.Logger) (*Reloader, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	s, err := Load(path)
	if err != nil {
		return nil, err
	}
	return &Reloader{path: path, cur: s, logger: logger}, nil
}

// Current returns the latest snapshot.
func (r *Reloader) Current() *Shortcuts {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.cur
}

// PreferredChartFor looks up against the latest snapshot.
func (r *Reloader) PreferredChartFor(question string) string {
	return r.Current().PreferredChartFor(question)
}

// Watch blocks until ctx is done, reloading on file changes. Editors
// replace files with rename+create, so the parent directory is watched
// rather than the file itself. A parse error keeps the previous
// snapshot.
func (r *Reloader) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer watcher.Close()

	dir := filepath.Dir(r.path)
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}

	target := filepath.Clean(r.path)
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != target {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			s, err := Load(r.path)
			if err != nil {
				r.logger.Warn("dashboards reload failed, keeping previous shortcuts", "err", err)
				continue
			}
			r.mu.Lock()
			r.cur = s
			r.mu.Unlock()
			r.logger.Info("dashboards reloaded", "path", r.path, "shortcuts", len(s.list))
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			r.logger.Warn("dashboards watcher error", "err", err)
		}
	}
}
