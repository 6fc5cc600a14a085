// Package resource loads static game data: the cosmetics catalog shipped
// with the server, optionally overridden by a file in a data directory.
package resource

import (
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/ventwave/ventboard/model"
)

// CatalogFile is the catalog's file name, both embedded and on disk.
const CatalogFile = "store_items.json"

//go:embed data/store_items.json
var builtin embed.FS

// Loader reads catalog data. An empty DataPath, or a DataPath without a
// catalog file, falls back to the built-in catalog.
type Loader struct {
	DataPath string
	Items    []model.StoreItem
	Source   string
}

// NewLoader creates a Loader for the given data directory.
func NewLoader(dataPath string) *Loader {
	return &Loader{DataPath: dataPath}
}

// Load reads and validates the catalog. Position follows file order.
func (rl *Loader) Load() error {
	data, src, err := rl.read()
	if err != nil {
		return err
	}
	items, err := parseCatalog(data, src)
	if err != nil {
		return err
	}
	rl.Items, rl.Source = items, src
	return nil
}

func (rl *Loader) read() ([]byte, string, error) {
	if rl.DataPath != "" {
		p := filepath.Join(rl.DataPath, CatalogFile)
		data, err := os.ReadFile(p)
		if err == nil {
			return data, p, nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, "", fmt.Errorf("resource: read %s: %w", p, err)
		}
	}
	data, err := builtin.ReadFile("data/" + CatalogFile)
	if err != nil {
		return nil, "", fmt.Errorf("resource: read builtin catalog: %w", err)
	}
	return data, "builtin", nil
}

func parseCatalog(data []byte, src string) ([]model.StoreItem, error) {
	var items []model.StoreItem
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("resource: parse %s: %w", src, err)
	}
	seen := make(map[string]bool, len(items))
	for i := range items {
		it := &items[i]
		switch {
		case it.Key == "":
			return nil, fmt.Errorf("resource: %s: item %d has no key", src, i)
		case seen[it.Key]:
			return nil, fmt.Errorf("resource: %s: duplicate key %q", src, it.Key)
		case !it.Type.Valid():
			return nil, fmt.Errorf("resource: %s: %q has unknown type %q", src, it.Key, it.Type)
		case it.PriceVE < 0:
			return nil, fmt.Errorf("resource: %s: %q has negative price", src, it.Key)
		}
		seen[it.Key] = true
		if it.Rarity == "" {
			it.Rarity = model.RarityCommon
		}
		it.Position = i
	}
	// Every slot must offer its free default.
	for _, slot := range model.Slots {
		if !seen[model.DefaultItemKey(slot)] {
			return nil, fmt.Errorf("resource: %s: missing default item %q", src, model.DefaultItemKey(slot))
		}
	}
	return items, nil
}
