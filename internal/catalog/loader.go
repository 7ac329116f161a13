// Package catalog loads collection documents into the catalog model.
package catalog

import (
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/user/soldprice-service/internal/entity"
)

// ErrNoCollections is returned when no catalog document was given.
var ErrNoCollections = errors.New("catalog: no collection files configured")

// Decode reads one collection document. YAML and JSON are both accepted;
// unknown fields are rejected.
func Decode(r io.Reader) (*entity.Collection, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var col entity.Collection
	if err := dec.Decode(&col); err != nil {
		return nil, fmt.Errorf("decode collection: %w", err)
	}
	if err := col.Validate(); err != nil {
		return nil, err
	}
	return &col, nil
}

// LoadFile reads and validates the collection document at path.
func LoadFile(path string) (*entity.Collection, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open collection file: %w", err)
	}
	defer f.Close()

	col, err := Decode(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return col, nil
}

// Load builds a catalog from paths, keeping their order.
func Load(paths []string) (*entity.Catalog, error) {
	if len(paths) == 0 {
		return nil, ErrNoCollections
	}

	type seqKey struct {
		name string
		seq  float64
	}
	seen := make(map[seqKey]string, len(paths))

	cat := &entity.Catalog{}
	for _, p := range paths {
		col, err := LoadFile(p)
		if err != nil {
			return nil, err
		}
		k := seqKey{col.Name, col.Sequence}
		if prev, dup := seen[k]; dup {
			return nil, fmt.Errorf("%s: collection %s %v already loaded from %s", p, col.Name, col.Sequence, prev)
		}
		seen[k] = p
		cat.Collections = append(cat.Collections, *col)
	}
	return cat, nil
}
