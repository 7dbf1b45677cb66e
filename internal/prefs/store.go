// Package prefs persists process-wide user preferences, currently the UI
// theme identifier. An unavailable store degrades to defaults and no-ops
// rather than failing callers.
package prefs

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"pkt.systems/pslog"
	"pkt.systems/termrun/schema"
)

// ThemeKey is the preference key holding the theme identifier.
const ThemeKey = "theme"

const fileName = "prefs.json"

// Store persists preference key/value pairs as JSON under a state directory.
type Store struct {
	path string
	log  pslog.Logger

	mu sync.Mutex
}

// NewStore constructs a preference store rooted at dir.
func NewStore(dir string, logger pslog.Logger) (*Store, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, errors.New("state directory is required")
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, err
	}
	if logger != nil {
		logger = logger.With("state_dir", dir)
	}
	return &Store{path: filepath.Join(dir, fileName), log: logger}, nil
}

// ThemeID returns the stored theme identifier, or the default theme when the
// store is missing, unreadable, or holds an unsupported name.
func (s *Store) ThemeID() schema.ThemeName {
	if s == nil {
		return schema.DefaultTheme
	}
	values, err := s.load()
	if err != nil {
		if s.log != nil {
			s.log.Warn("prefs load failed", "err", err)
		}
		return schema.DefaultTheme
	}
	name, ok := schema.NormalizeThemeName(values[ThemeKey])
	if !ok {
		return schema.DefaultTheme
	}
	return name
}

// SetTheme stores the theme identifier.
func (s *Store) SetTheme(name schema.ThemeName) error {
	return s.Set(ThemeKey, string(name))
}

// Set stores a preference value under key.
func (s *Store) Set(key, value string) error {
	if s == nil {
		return nil
	}
	if strings.TrimSpace(key) == "" {
		return errors.New("preference key is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	values, err := s.load()
	if err != nil {
		if s.log != nil {
			s.log.Warn("prefs load failed", "err", err)
		}
		values = map[string]string{}
	}
	values[key] = value
	data, err := json.MarshalIndent(values, "", "  ")
	if err != nil {
		return err
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		if s.log != nil {
			s.log.Warn("prefs save failed", "key", key, "err", err)
		}
		return err
	}
	if err := os.Rename(tmp, s.path); err != nil {
		if s.log != nil {
			s.log.Warn("prefs save failed", "key", key, "err", err)
		}
		return err
	}
	if s.log != nil {
		s.log.Debug("prefs saved", "key", key)
	}
	return nil
}

func (s *Store) load() (map[string]string, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return map[string]string{}, nil
		}
		return nil, err
	}
	values := map[string]string{}
	if err := json.Unmarshal(data, &values); err != nil {
		return nil, err
	}
	return values, nil
}
