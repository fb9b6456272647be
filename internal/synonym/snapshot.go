package synonym

import (
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"slices"
	"strings"
	"time"
)

var spacesRe = regexp.MustCompile(`[ \t]+`)

// Snapshot is an immutable term -> synonyms table. A new Snapshot is built
// on every refresh and swapped in whole.
type Snapshot struct {
	Version  uint64
	LoadedAt time.Time
	entries  map[string][]string
}

// NewSnapshot normalizes a decoded synonym object. Keys are lowercased and
// whitespace-collapsed; a bare string value becomes a one-element list and
// values of any other shape are ignored.
func NewSnapshot(raw map[string]any, version uint64) *Snapshot {
	entries := make(map[string][]string, len(raw))
	for k, v := range raw {
		key := normalizeKey(k)
		if key == "" {
			continue
		}
		switch val := v.(type) {
		case string:
			entries[key] = []string{val}
		case []string:
			entries[key] = slices.Clone(val)
		case []any:
			list := make([]string, 0, len(val))
			for _, item := range val {
				if s, ok := item.(string); ok {
					list = append(list, s)
				}
			}
			entries[key] = list
		}
	}
	return &Snapshot{Version: version, LoadedAt: time.Now(), entries: entries}
}

// LoadFile reads a synonym JSON file into a version-1 snapshot
func LoadFile(path string) (*Snapshot, error) {
	raw, err := readJSONObject(path)
	if err != nil {
		return nil, err
	}
	return NewSnapshot(raw, 1), nil
}

// Len returns the number of terms
func (s *Snapshot) Len() int {
	return len(s.entries)
}

// Lookup returns up to topN synonyms of term, or an empty list on miss.
// topN <= 0 returns every synonym.
func (s *Snapshot) Lookup(term string, topN int) []string {
	list, ok := s.entries[normalizeKey(term)]
	if !ok {
		return []string{}
	}
	if topN > 0 && len(list) > topN {
		list = list[:topN]
	}
	return slices.Clone(list)
}

func normalizeKey(term string) string {
	return strings.ToLower(spacesRe.ReplaceAllString(strings.TrimSpace(term), " "))
}

func readJSONObject(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read synonym file: %w", err)
	}
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse synonym file %s: %w", path, err)
	}
	return raw, nil
}
