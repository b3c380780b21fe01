// Package layout loads external keyboard layout maps.
package layout

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/verte-zerg/typegrade/internal/model"
)

// File is the TOML shape of one layout map. Keys map physical keys to
// the characters they produce; the core never hard-codes these tables.
type File struct {
	Name string              `toml:"name"`
	Lang string              `toml:"lang"`
	Keys map[string]KeyEntry `toml:"keys"`
}

// KeyEntry resolves one physical key.
type KeyEntry struct {
	Normal string `toml:"normal"`
	Shift  string `toml:"shift"`
}

// Load reads a layout map from a TOML file.
func Load(path string) (model.LayoutMap, error) {
	var file File
	if _, err := toml.DecodeFile(path, &file); err != nil {
		return nil, fmt.Errorf("failed to decode layout %s: %w", path, err)
	}
	if len(file.Keys) == 0 {
		return nil, fmt.Errorf("layout %s defines no keys", path)
	}
	layout := make(model.LayoutMap, len(file.Keys))
	for key, entry := range file.Keys {
		if entry.Normal == "" {
			return nil, fmt.Errorf("layout %s: key %q has no normal character", path, key)
		}
		layout[key] = model.KeyMapping{Normal: entry.Normal, Shift: entry.Shift}
	}
	return layout, nil
}

// Resolve looks up one key event in a layout map and returns the
// character to insert. The second return is false for unmapped keys.
func Resolve(layout model.LayoutMap, ev model.KeyEvent) (string, bool) {
	mapping, ok := layout[ev.Key]
	if !ok {
		return "", false
	}
	if ev.Shift && mapping.Shift != "" {
		return mapping.Shift, true
	}
	return mapping.Normal, true
}

// List returns the layout names available in a directory, one TOML file
// per layout.
func List(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read layout directory: %w", err)
	}
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".toml") {
			continue
		}
		names = append(names, strings.TrimSuffix(entry.Name(), ".toml"))
	}
	return names, nil
}

// PathFor builds the layout file path for a layout name.
func PathFor(dir, name string) string {
	return filepath.Join(dir, name+".toml")
}
