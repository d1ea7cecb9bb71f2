package policy

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"mercator-hq/docguard/pkg/model"
)

// Provider returns the active policy set for an id.
type Provider interface {
	Get(ctx context.Context, id string) (*PolicySet, error)
}

// MemoryProvider serves policy sets held in memory.
type MemoryProvider struct {
	mu   sync.RWMutex
	sets map[string]*PolicySet
}

// NewMemoryProvider creates a provider holding the given sets. The built-in
// default set is added when no set uses DefaultSetID.
func NewMemoryProvider(sets ...*PolicySet) (*MemoryProvider, error) {
	p := &MemoryProvider{sets: make(map[string]*PolicySet)}
	for _, s := range sets {
		if err := p.Put(s); err != nil {
			return nil, err
		}
	}
	if _, ok := p.sets[DefaultSetID]; !ok {
		p.sets[DefaultSetID] = Default()
	}
	return p, nil
}

// Put validates and stores a set, replacing any set with the same id.
func (p *MemoryProvider) Put(set *PolicySet) error {
	if err := set.Validate(); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sets[set.ID] = set.Clone()
	return nil
}

// Get implements Provider.
func (p *MemoryProvider) Get(_ context.Context, id string) (*PolicySet, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	set, ok := p.sets[id]
	if !ok {
		return nil, fmt.Errorf("policy set %q: %w", id, model.ErrNotFound)
	}
	return set.Clone(), nil
}

// FileProvider serves the policy files of a directory.
type FileProvider struct {
	dir    string
	logger *slog.Logger

	mu      sync.RWMutex
	sets    map[string]*PolicySet
	sources map[string]string
	loaded  time.Time

	// OnReload, if set, is called after every reload triggered by Watch.
	OnReload func(err error)
}

// NewFileProvider loads every policy file in dir.
func NewFileProvider(dir string, logger *slog.Logger) (*FileProvider, error) {
	if logger == nil {
		logger = slog.Default()
	}
	p := &FileProvider{
		dir:    dir,
		logger: logger.With("component", "policy.provider"),
	}
	if err := p.Reload(); err != nil {
		return nil, err
	}
	return p, nil
}

// Reload re-reads the directory. The new sets replace the old ones only
// when every file loads; on error the previous sets stay active.
func (p *FileProvider) Reload() error {
	entries, err := os.ReadDir(p.dir)
	if err != nil {
		return &LoadError{FilePath: p.dir, Message: "failed to read policy directory", Cause: err}
	}

	sets := make(map[string]*PolicySet)
	sources := make(map[string]string)
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || strings.HasPrefix(name, ".") || !isPolicyFile(name) {
			continue
		}
		path := filepath.Join(p.dir, name)
		set, err := LoadFile(path)
		if err != nil {
			return err
		}
		if prev, dup := sources[set.ID]; dup {
			return &LoadError{FilePath: path, Message: fmt.Sprintf("policy set %q already defined in %s", set.ID, prev)}
		}
		sets[set.ID] = set
		sources[set.ID] = path
	}
	if _, ok := sets[DefaultSetID]; !ok {
		sets[DefaultSetID] = Default()
	}

	p.mu.Lock()
	p.sets = sets
	p.sources = sources
	p.loaded = time.Now()
	p.mu.Unlock()

	p.logger.Info("policy sets loaded", "dir", p.dir, "count", len(sets))
	return nil
}

// Get implements Provider.
func (p *FileProvider) Get(_ context.Context, id string) (*PolicySet, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	set, ok := p.sets[id]
	if !ok {
		return nil, fmt.Errorf("policy set %q: %w", id, model.ErrNotFound)
	}
	return set.Clone(), nil
}

// IDs lists the loaded set ids in sorted order.
func (p *FileProvider) IDs() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	ids := make([]string, 0, len(p.sets))
	for id := range p.sets {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Watch reloads the directory whenever a policy file changes. It blocks
// until ctx is cancelled.
func (p *FileProvider) Watch(ctx context.Context, debounce time.Duration) error {
	cfg := DefaultFileWatcherConfig()
	cfg.Path = p.dir
	if debounce > 0 {
		cfg.DebounceInterval = debounce
	}

	w, err := NewFileWatcher(cfg, p.logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := w.Stop(); err != nil {
			p.logger.Warn("failed to stop policy watcher", "error", err)
		}
	}()

	return w.Watch(ctx, func() error {
		err := p.Reload()
		if p.OnReload != nil {
			p.OnReload(err)
		}
		return err
	})
}
