package assets

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// ErrAssetMissing is returned when a requested asset was not found at load
// time. Missing assets are never fatal; pages degrade to a visible warning.
var ErrAssetMissing = errors.New("asset missing")

// Store holds the optional static assets displayed verbatim by the
// dashboard: page images and the pre-rendered trip map HTML. Everything is
// read once at startup; absence is recorded per asset instead of failing.
type Store struct {
	mu       sync.RWMutex
	images   map[string][]byte
	mapHTML  string
	warnings []string
}

// NewStore loads the named image files and the map HTML file from dir. Each
// missing or unreadable asset adds a warning and the store stays usable.
func NewStore(dir, mapFile string, imageFiles []string) *Store {
	s := &Store{images: make(map[string][]byte)}
	for _, name := range imageFiles {
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			s.warnings = append(s.warnings, fmt.Sprintf("image %s: %v", name, err))
			continue
		}
		s.images[name] = data
	}
	if mapFile != "" {
		data, err := os.ReadFile(filepath.Join(dir, mapFile))
		if err != nil {
			s.warnings = append(s.warnings, fmt.Sprintf("map %s: %v", mapFile, err))
		} else {
			s.mapHTML = string(data)
		}
	}
	return s
}

// Image returns the raw bytes of a loaded image by file name.
func (s *Store) Image(name string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.images[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrAssetMissing, name)
	}
	return data, nil
}

// MapHTML returns the pre-rendered trip map document.
func (s *Store) MapHTML() (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.mapHTML == "" {
		return "", fmt.Errorf("%w: trip map", ErrAssetMissing)
	}
	return s.mapHTML, nil
}

// Warnings lists the assets that failed to load, for logging and health detail.
func (s *Store) Warnings() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.warnings...)
}

// ContentType guesses the MIME type for an image asset from its extension.
func ContentType(name string) string {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".png":
		return "image/png"
	case ".gif":
		return "image/gif"
	case ".svg":
		return "image/svg+xml"
	case ".webp":
		return "image/webp"
	default:
		return "image/jpeg"
	}
}
