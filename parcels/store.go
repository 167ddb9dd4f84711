package parcels

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/google/uuid"
	"github.com/pelletier/go-toml/v2"

	"parcelscape/engine/core"
)

// Project is a saved viewing session: the query the user typed, the
// filters it parsed to and the bounding box it ran against.
type Project struct {
	ID        string     `toml:"id"`
	Username  string     `toml:"username"`
	Name      string     `toml:"name"`
	Query     string     `toml:"query"`
	Filters   []Filter   `toml:"filters"`
	BBox      [4]float64 `toml:"bbox"`
	Limit     int        `toml:"limit"`
	UpdatedAt time.Time  `toml:"updated_at"`
}

type projectKey struct {
	username string
	name     string
}

// Store keeps projects as one TOML file each under a directory and
// refreshes itself when files change on disk.
type Store struct {
	dir string

	mutex    sync.RWMutex
	projects map[projectKey]*Project

	done     chan struct{}
	fsnotify *fsnotify.Watcher
	isClosed bool
}

func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("func NewStore - failed to create %s: %w", dir, err)
	}
	fsWatch, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fsWatch.Add(dir); err != nil {
		fsWatch.Close()
		return nil, fmt.Errorf("func NewStore - failed to watch %s: %w", dir, err)
	}

	s := &Store{
		dir:      dir,
		projects: make(map[projectKey]*Project),
		fsnotify: fsWatch,
		done:     make(chan struct{}),
	}
	if err := s.loadAll(); err != nil {
		fsWatch.Close()
		return nil, err
	}

	go s.start()
	return s, nil
}

func (s *Store) loadAll() error {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return fmt.Errorf("func loadAll - %w", err)
	}
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".toml") {
			continue
		}
		s.loadFile(filepath.Join(s.dir, e.Name()))
	}
	return nil
}

func (s *Store) loadFile(path string) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return
	}
	var p Project
	if err := toml.Unmarshal(raw, &p); err != nil {
		core.LogWarn("skipping malformed project file %s: %s", path, err.Error())
		return
	}
	if p.Username == "" || p.Name == "" {
		return
	}
	s.mutex.Lock()
	s.projects[projectKey{p.Username, p.Name}] = &p
	s.mutex.Unlock()
}

func (s *Store) start() {
	for {
		select {

		case e := <-s.fsnotify.Events:
			if !strings.HasSuffix(e.Name, ".toml") {
				continue
			}
			if e.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) != 0 {
				s.loadFile(e.Name)
			}

		case e := <-s.fsnotify.Errors:
			core.LogError(e.Error())

		case <-s.done:
			s.fsnotify.Close()
			return
		}
	}
}

var reUnsafePath = regexp.MustCompile(`[^a-z0-9-]+`)

func projectFileName(username, name string) string {
	slug := func(s string) string {
		return reUnsafePath.ReplaceAllString(strings.ToLower(s), "_")
	}
	return slug(username) + "--" + slug(name) + ".toml"
}

// Save upserts a project keyed by username and name. An existing project
// keeps its id; a new one gets a fresh one. The file is written to a
// temporary name and renamed into place.
func (s *Store) Save(p *Project) error {
	if p.Username == "" || p.Name == "" {
		return fmt.Errorf("func Save - username and name are required")
	}

	key := projectKey{p.Username, p.Name}

	s.mutex.Lock()
	if existing, ok := s.projects[key]; ok {
		p.ID = existing.ID
	}
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	p.UpdatedAt = time.Now()

	stored := *p
	s.projects[key] = &stored
	s.mutex.Unlock()

	raw, err := toml.Marshal(p)
	if err != nil {
		return fmt.Errorf("func Save - %w", err)
	}

	path := filepath.Join(s.dir, projectFileName(p.Username, p.Name))
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return fmt.Errorf("func Save - %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("func Save - %w", err)
	}
	return nil
}

// List returns the user's projects, most recently updated first.
func (s *Store) List(username string) []*Project {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	var out []*Project
	for key, p := range s.projects {
		if key.username != username {
			continue
		}
		cp := *p
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].UpdatedAt.After(out[j].UpdatedAt)
	})
	return out
}

// Load fetches one project by its username and name key.
func (s *Store) Load(username, name string) (*Project, bool) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	p, ok := s.projects[projectKey{username, name}]
	if !ok {
		return nil, false
	}
	cp := *p
	return &cp, true
}

func (s *Store) Close() {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if s.isClosed {
		return
	}
	s.isClosed = true
	close(s.done)
}
