package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/pelletier/go-toml/v2"

	"parcelscape/engine/core"
)

type WindowConfig struct {
	Title  string `toml:"title"`
	X      int16  `toml:"x"`
	Y      int16  `toml:"y"`
	Width  uint32 `toml:"width"`
	Height uint32 `toml:"height"`
}

type DataConfig struct {
	BaseURL string `toml:"base_url"`
	// BBox is west, south, east, north in degrees.
	BBox           [4]float64 `toml:"bbox"`
	Limit          int        `toml:"limit"`
	TimeoutSeconds int        `toml:"timeout_seconds"`
	RefLat         float64    `toml:"ref_lat"`
	// Query is the filter text the F key applies, e.g. "under $500k".
	Query string `toml:"query"`
}

type ProjectsConfig struct {
	Dir      string `toml:"dir"`
	Username string `toml:"username"`
}

type LogConfig struct {
	Level string `toml:"level"`
}

type Config struct {
	Window   WindowConfig   `toml:"window"`
	Data     DataConfig     `toml:"data"`
	Projects ProjectsConfig `toml:"projects"`
	Log      LogConfig      `toml:"log"`
}

func Default() *Config {
	return &Config{
		Window: WindowConfig{
			Title:  "ParcelScape",
			X:      100,
			Y:      100,
			Width:  1280,
			Height: 720,
		},
		Data: DataConfig{
			BaseURL:        "http://localhost:5000",
			BBox:           [4]float64{-114.08, 51.04, -114.05, 51.06},
			Limit:          1200,
			TimeoutSeconds: 20,
			RefLat:         51.0447,
		},
		Projects: ProjectsConfig{
			Dir:      "projects",
			Username: "default",
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads the TOML file at path. A missing file is not an error;
// the defaults are returned instead.
func Load(path string) (*Config, error) {
	cfg := Default()

	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("func Load - failed to read %s: %w", path, err)
	}

	if err := toml.Unmarshal(raw, cfg); err != nil {
		return nil, fmt.Errorf("func Load - failed to parse %s: %w", path, err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Window.Width == 0 || c.Window.Height == 0 {
		return fmt.Errorf("func validate - window size must be non-zero")
	}
	if c.Data.Limit <= 0 {
		return fmt.Errorf("func validate - data limit must be positive")
	}
	w, s, e, n := c.Data.BBox[0], c.Data.BBox[1], c.Data.BBox[2], c.Data.BBox[3]
	if w >= e || s >= n {
		return fmt.Errorf("func validate - bbox must be west,south,east,north with west<east and south<north")
	}
	return nil
}

// Watcher reloads the config file whenever it changes on disk and hands
// the fresh copy to the registered callback.
type Watcher struct {
	path     string
	onChange func(*Config)

	mutex sync.Mutex

	done     chan struct{}
	fsnotify *fsnotify.Watcher
	isClosed bool
}

func NewWatcher(path string, onChange func(*Config)) (*Watcher, error) {
	fsWatch, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		path:     path,
		onChange: onChange,
		fsnotify: fsWatch,
		done:     make(chan struct{}),
	}

	// Watch the directory, not the file. Editors often replace the file
	// on save, which drops a watch pinned to the old inode.
	dir := filepath.Dir(path)
	if err := fsWatch.Add(dir); err != nil {
		fsWatch.Close()
		return nil, fmt.Errorf("func NewWatcher - failed to watch %s: %w", dir, err)
	}

	go w.start()
	return w, nil
}

func (w *Watcher) start() {
	for {
		select {

		case e := <-w.fsnotify.Events:
			if filepath.Clean(e.Name) != filepath.Clean(w.path) {
				continue
			}
			if e.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) != 0 {
				cfg, err := Load(w.path)
				if err != nil {
					core.LogError("config reload failed: %s", err.Error())
					continue
				}
				core.LogInfo("config reloaded from %s", w.path)
				w.onChange(cfg)
			}

		case e := <-w.fsnotify.Errors:
			core.LogError(e.Error())

		case <-w.done:
			w.fsnotify.Close()
			return
		}
	}
}

func (w *Watcher) Close() {
	w.mutex.Lock()
	defer w.mutex.Unlock()
	if w.isClosed {
		return
	}
	w.isClosed = true
	close(w.done)
}
