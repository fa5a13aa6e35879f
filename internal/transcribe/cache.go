package transcribe

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"

	"golang.org/x/sync/singleflight"
)

// ErrUnknownModel is returned for models outside the cache allowlist.
var ErrUnknownModel = errors.New("unknown model")

// NewFunc creates the transcriber for a model.
type NewFunc func(ctx context.Context, model string) (Transcriber, error)

// Cache keeps one Transcriber per model name. Entries are created on first
// use and kept for the life of the process.
type Cache struct {
	newFunc      NewFunc
	defaultModel string
	allowed      []string

	mu    sync.RWMutex
	items map[string]Transcriber
	group singleflight.Group
}

// NewCache returns a cache that only creates models listed in allowed. An
// empty allowlist admits only defaultModel.
func NewCache(newFunc NewFunc, defaultModel string, allowed []string) *Cache {
	if len(allowed) == 0 {
		allowed = []string{defaultModel}
	}
	allowed = slices.Clone(allowed)
	slices.Sort(allowed)

	return &Cache{
		newFunc:      newFunc,
		defaultModel: defaultModel,
		allowed:      slices.Compact(allowed),
		items:        make(map[string]Transcriber),
	}
}

// Get returns the transcriber for model, creating it if needed. An empty
// name selects the default model.
func (c *Cache) Get(ctx context.Context, model string) (Transcriber, error) {
	model = strings.TrimSpace(model)
	if model == "" {
		model = c.defaultModel
	}
	if _, ok := slices.BinarySearch(c.allowed, model); !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownModel, model)
	}

	if t, ok := c.lookup(model); ok {
		return t, nil
	}

	v, err, _ := c.group.Do(model, func() (any, error) {
		if t, ok := c.lookup(model); ok {
			return t, nil
		}
		t, err := c.newFunc(ctx, model)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.items[model] = t
		c.mu.Unlock()
		return t, nil
	})
	if err != nil {
		return nil, fmt.Errorf("load model %s: %w", model, err)
	}
	return v.(Transcriber), nil
}

func (c *Cache) lookup(model string) (Transcriber, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	t, ok := c.items[model]
	return t, ok
}

// Len reports how many models have been loaded.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

// Models returns the allowlist in sorted order.
func (c *Cache) Models() []string {
	return slices.Clone(c.allowed)
}

// DefaultModel returns the model used for empty requests.
func (c *Cache) DefaultModel() string {
	return c.defaultModel
}
