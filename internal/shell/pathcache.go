package shell

import (
	"os"
	"path/filepath"
	"strings"
)

// PathCache resolves command names along PATH and remembers the answers.
// The cache is dropped whenever PATH changes.
type PathCache struct {
	dirs     []string
	hits     map[string]string
	lookPath func(dir, name string) bool
	resets   int
}

func newPathCache(lookPath func(dir, name string) bool) *PathCache {
	return &PathCache{hits: make(map[string]string), lookPath: lookPath}
}

// Reset installs a new PATH value and forgets every cached lookup.
func (c *PathCache) Reset(path string) {
	c.dirs = filepath.SplitList(path)
	clear(c.hits)
	c.resets++
}

// Dirs returns the directories searched, in order.
func (c *PathCache) Dirs() []string {
	out := make([]string, len(c.dirs))
	copy(out, c.dirs)
	return out
}

// Resets counts how many times the cache has been rebuilt.
func (c *PathCache) Resets() int { return c.resets }

// Lookup returns the full path of cmd. Names containing a slash are returned
// as given.
func (c *PathCache) Lookup(cmd string) (string, bool) {
	if cmd == "" {
		return "", false
	}
	if strings.ContainsRune(cmd, '/') {
		return cmd, true
	}
	if p, ok := c.hits[cmd]; ok {
		return p, true
	}
	for _, dir := range c.dirs {
		if dir == "" {
			dir = "."
		}
		if c.lookPath(dir, cmd) {
			p := filepath.Join(dir, cmd)
			c.hits[cmd] = p
			return p, true
		}
	}
	return "", false
}

func isExecutable(dir, name string) bool {
	fi, err := os.Stat(filepath.Join(dir, name))
	if err != nil {
		return false
	}
	return fi.Mode().IsRegular() && fi.Mode().Perm()&0o111 != 0
}
