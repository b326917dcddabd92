package control

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

const watchDebounce = 50 * time.Millisecond

// FileWatcher applies a YAML duty file of the form
//
//	ch0: 0.5
//	fan: 0.25
//
// on start and every time the file is written or replaced. Entries that fail
// (unknown channel, out of range) are logged and skipped.
type FileWatcher struct {
	path   string
	target DutySetter
	log    zerolog.Logger
}

func NewFileWatcher(path string, target DutySetter, log zerolog.Logger) *FileWatcher {
	return &FileWatcher{
		path:   path,
		target: target,
		log:    log.With().Str("duty_file", path).Logger(),
	}
}

// Run watches until ctx is done. The parent directory is watched rather than
// the file so that editors which save via rename keep working.
func (w *FileWatcher) Run(ctx context.Context) error {
	dir := filepath.Dir(w.path)
	file := filepath.Base(w.path)

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("control: watcher init: %w", err)
	}
	defer fw.Close()
	if err := fw.Add(dir); err != nil {
		return fmt.Errorf("control: watch %s: %w", dir, err)
	}

	if _, err := w.Apply(); err != nil && !errors.Is(err, os.ErrNotExist) {
		w.log.Warn().Err(err).Msg("initial duty file load failed")
	}

	var debounce <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if filepath.Base(ev.Name) != file {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create) != 0 {
				debounce = time.After(watchDebounce)
			}
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.log.Warn().Err(err).Msg("duty file watch error")
		case <-debounce:
			debounce = nil
			if _, err := w.Apply(); err != nil {
				w.log.Warn().Err(err).Msg("duty file reload failed")
			}
		}
	}
}

// Apply reads the file once and writes every entry. It returns the number of
// entries applied.
func (w *FileWatcher) Apply() (int, error) {
	b, err := os.ReadFile(w.path)
	if err != nil {
		return 0, err
	}
	var duties map[string]float64
	if err := yaml.Unmarshal(b, &duties); err != nil {
		return 0, fmt.Errorf("control: parse %s: %w", w.path, err)
	}

	names := make([]string, 0, len(duties))
	for name := range duties {
		names = append(names, name)
	}
	sort.Strings(names)

	applied := 0
	for _, name := range names {
		if err := w.target.SetDuty(name, duties[name]); err != nil {
			w.log.Warn().Err(err).Str("channel", name).Msg("duty file entry rejected")
			continue
		}
		applied++
	}
	w.log.Info().Int("applied", applied).Int("entries", len(names)).Msg("duty file applied")
	return applied, nil
}
