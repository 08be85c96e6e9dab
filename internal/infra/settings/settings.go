// Package settings persists user preferences (volume and artwork layout) in
// a small YAML file and keeps it in step with the store.
package settings

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/fsnotify/fsnotify"
	"github.com/go-playground/validator/v10"
	zlog "github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"

	"github.com/osa030/tome/internal/app/state"
)

// file is the on-disk layout. Pointers let defaults tell absent from zero.
type file struct {
	Volume      *float64 `yaml:"volume" default:"0.8" validate:"gte=0,lte=1"`
	ArtExpanded *bool    `yaml:"art_expanded" default:"true"`
}

// Values are the persisted preferences.
type Values struct {
	Volume      float64
	ArtExpanded bool
}

// Defaults returns the preferences used when nothing is stored.
func Defaults() Values {
	return Values{Volume: 0.8, ArtExpanded: true}
}

// Initial converts v into the store's starting values.
func (v Values) Initial() state.Initial {
	return state.Initial{Volume: v.Volume, ArtExpanded: v.ArtExpanded}
}

// File reads and writes the preferences file.
type File struct {
	path string

	mu   sync.Mutex
	last Values // Last values read or written

	applying atomic.Bool // Set while a reload writes to the store
}

// Open returns the preferences file at path. Nothing is read yet.
func Open(path string) *File {
	return &File{path: path, last: Defaults()}
}

// Path returns the file path.
func (f *File) Path() string {
	return f.path
}

// Load reads the file. A missing or invalid file yields the defaults.
func (f *File) Load() Values {
	v, err := f.read()
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			zlog.Debug().Msgf("settings: no preferences file, using defaults: path=%s", f.path)
		} else {
			zlog.Warn().Err(err).Msgf("settings: invalid preferences file, using defaults: path=%s", f.path)
		}
		v = Defaults()
	}

	f.mu.Lock()
	f.last = v
	f.mu.Unlock()
	return v
}

func (f *File) read() (Values, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		return Values{}, err
	}

	var raw file
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return Values{}, errors.Wrap(err, "failed to parse preferences")
	}
	if err := defaults.Set(&raw); err != nil {
		return Values{}, errors.Wrap(err, "failed to set defaults")
	}
	if err := validator.New().Struct(&raw); err != nil {
		return Values{}, errors.Wrap(err, "invalid preferences")
	}
	return Values{Volume: *raw.Volume, ArtExpanded: *raw.ArtExpanded}, nil
}

// Save writes v unless it matches what was last read or written.
func (f *File) Save(v Values) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if v == f.last {
		return nil
	}

	data, err := yaml.Marshal(file{Volume: &v.Volume, ArtExpanded: &v.ArtExpanded})
	if err != nil {
		return errors.Wrap(err, "failed to encode preferences")
	}
	if err := writeAtomic(f.path, data); err != nil {
		return err
	}
	f.last = v
	return nil
}

func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrapf(err, "failed to create %s", dir)
	}
	tmp, err := os.CreateTemp(dir, ".settings-*.yaml")
	if err != nil {
		return errors.Wrap(err, "failed to create temp file")
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return errors.Wrap(err, "failed to write preferences")
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrap(err, "failed to write preferences")
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return errors.Wrapf(err, "failed to replace %s", path)
	}
	return nil
}

// Bind saves the preferences whenever the volume or art-expanded cells
// change. The returned function removes the subscriptions.
func (f *File) Bind(store *state.Store) func() {
	save := func() {
		if f.applying.Load() {
			return
		}
		v := Values{Volume: store.Volume.Get(), ArtExpanded: store.ArtExpanded.Get()}
		if err := f.Save(v); err != nil {
			zlog.Warn().Err(err).Msgf("settings: failed to save preferences: path=%s", f.path)
		}
	}

	unsubVolume := store.Volume.Subscribe(func(float64) { save() })
	unsubArt := store.ArtExpanded.Subscribe(func(bool) { save() })
	return func() {
		unsubVolume()
		unsubArt()
	}
}

// Watch reloads the file into store when it is changed by someone else,
// until ctx is done.
func (f *File) Watch(ctx context.Context, store *state.Store) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.Wrap(err, "failed to create watcher")
	}
	defer watcher.Close()

	// Watch the directory: saves replace the file by rename.
	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrapf(err, "failed to create %s", dir)
	}
	if err := watcher.Add(dir); err != nil {
		return errors.Wrapf(err, "failed to watch %s", dir)
	}

	zlog.Debug().Msgf("settings: watching preferences: path=%s", f.path)

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			f.handleFileEvent(event, store)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			zlog.Warn().Err(err).Msg("settings: watcher error")
		}
	}
}

func (f *File) handleFileEvent(event fsnotify.Event, store *state.Store) {
	if filepath.Clean(event.Name) != filepath.Clean(f.path) {
		return
	}
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
		return
	}

	v, err := f.read()
	if err != nil {
		// Editors often write in several steps; keep the current values.
		zlog.Debug().Err(err).Msgf("settings: ignoring unreadable preferences: path=%s", f.path)
		return
	}

	f.mu.Lock()
	changed := v != f.last
	f.last = v
	f.mu.Unlock()
	if !changed {
		return
	}

	zlog.Info().Msgf("settings: preferences reloaded: volume=%.2f art_expanded=%v", v.Volume, v.ArtExpanded)
	f.applying.Store(true)
	defer f.applying.Store(false)
	if store.Volume.Get() != v.Volume {
		store.Volume.Set(v.Volume)
	}
	if store.ArtExpanded.Get() != v.ArtExpanded {
		store.ArtExpanded.Set(v.ArtExpanded)
	}
}
