// Package musiccache is a tiny append-only key/value file. The lyrics
// provider uses it to remember what a raw media title resolved to, so the
// LLM is asked once per title.
package musiccache

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

const sep = " => "

type Cache struct {
	path string
	mu   sync.RWMutex
	m    map[string]string
}

// Open loads path, creating it (and its directory) when missing.
func Open(path string) (*Cache, error) {
	c := &Cache{path: path, m: make(map[string]string)}

	f, err := os.Open(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("create cache dir: %w", err)
		}
		return c, nil
	case err != nil:
		return nil, fmt.Errorf("open cache %s: %w", path, err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		key, value, ok := strings.Cut(scanner.Text(), sep)
		if !ok {
			continue
		}
		c.m[key] = value
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read cache %s: %w", path, err)
	}
	return c, nil
}

func (c *Cache) Get(key string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.m[key]
	return v, ok
}

// Add stores key once; later values for the same key are ignored.
// Keys and values must be single-line.
func (c *Cache) Add(key, value string) error {
	if strings.ContainsAny(key+value, "\r\n") || strings.Contains(key, sep) {
		return fmt.Errorf("invalid cache entry %q", key)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.m[key]; ok {
		return nil
	}

	f, err := os.OpenFile(c.path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("open cache %s: %w", c.path, err)
	}
	defer f.Close()

	if _, err := f.WriteString(key + sep + value + "\n"); err != nil {
		return fmt.Errorf("append cache %s: %w", c.path, err)
	}
	c.m[key] = value
	return nil
}

func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.m)
}
