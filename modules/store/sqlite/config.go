package sqlite

import (
	"errors"
	"fmt"
	"path/filepath"
	"time"
)

const (
	defaultBusyTimeout = 5 * time.Second
	defaultDBFile      = "aura.db"
)

// Config is the "store.sqlite" module section.
type Config struct {
	// Path of the database file. Relative paths are taken from the data
	// directory; empty means {data_dir}/aura.db.
	Path string `yaml:"path"`

	// WAL lets the gateway read sessions while a turn is being written.
	// On unless set to false.
	WAL *bool `yaml:"wal"`

	// BusyTimeout bounds the wait for a locked database, e.g. "5s".
	BusyTimeout time.Duration `yaml:"busy_timeout"`
}

func (c *Config) defaults() {
	if c.WAL == nil {
		on := true
		c.WAL = &on
	}
	if c.BusyTimeout == 0 {
		c.BusyTimeout = defaultBusyTimeout
	}
}

// resolvePath anchors the database file in dataDir.
func (c *Config) resolvePath(dataDir string) {
	switch {
	case c.Path == "":
		c.Path = filepath.Join(dataDir, defaultDBFile)
	case !filepath.IsAbs(c.Path) && dataDir != "":
		c.Path = filepath.Join(dataDir, c.Path)
	}
}

func (c *Config) walEnabled() bool {
	return c.WAL == nil || *c.WAL
}

// pragmas run on the single pooled connection right after open.
func (c *Config) pragmas() []string {
	p := []string{
		"PRAGMA foreign_keys=ON",
		fmt.Sprintf("PRAGMA busy_timeout=%d", c.BusyTimeout.Milliseconds()),
	}
	if c.walEnabled() {
		p = append(p, "PRAGMA journal_mode=WAL", "PRAGMA synchronous=NORMAL")
	}
	return p
}

func (c *Config) validate() error {
	if c.BusyTimeout < 0 {
		return fmt.Errorf("sqlite: busy_timeout must not be negative, got %v", c.BusyTimeout)
	}
	if c.BusyTimeout > 0 && c.BusyTimeout < time.Millisecond {
		return errors.New("sqlite: busy_timeout below 1ms")
	}
	return nil
}
