package session

import (
	"sync"

	"github.com/Changplay12345/flight-animation/pkg/core"
)

// Context holds the currently loaded dataset. Components that report or
// log against "the active replay" read it from here instead of threading
// it through every call.
type Context struct {
	mu      sync.RWMutex
	dataset core.DatasetInfo
	loaded  bool
}

// NewContext creates a Context with no dataset loaded.
func NewContext() *Context {
	return &Context{}
}

// Dataset returns the active dataset and whether one is loaded.
func (c *Context) Dataset() (core.DatasetInfo, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.dataset, c.loaded
}

// SetDataset marks a dataset as the active replay.
func (c *Context) SetDataset(info core.DatasetInfo) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.dataset = info
	c.loaded = true
}

// Clear unloads the active dataset.
func (c *Context) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.dataset = core.DatasetInfo{}
	c.loaded = false
}
