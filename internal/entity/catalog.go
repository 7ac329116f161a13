package entity

import (
	"fmt"
	"strconv"
	"strings"
)

// Variant is the finish class a listing is matched against.
type Variant int

const (
	VariantRegular Variant = iota + 1
	VariantReverseHolo
	VariantFoil
)

// String returns the stored name of the variant.
func (v Variant) String() string {
	switch v {
	case VariantRegular:
		return "Regular"
	case VariantReverseHolo:
		return "Reverse Holo"
	case VariantFoil:
		return "Holo"
	default:
		return "Variant(" + strconv.Itoa(int(v)) + ")"
	}
}

// Slug returns the URL path form of the variant.
func (v Variant) Slug() string {
	switch v {
	case VariantRegular:
		return "regular"
	case VariantReverseHolo:
		return "reverse-holo"
	case VariantFoil:
		return "holo"
	default:
		return ""
	}
}

// ParseVariant accepts stored names, catalog document names and URL slugs.
func ParseVariant(s string) (Variant, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "regular":
		return VariantRegular, nil
	case "reverse holo", "reverseholo", "reverse-holo", "parallel":
		return VariantReverseHolo, nil
	case "holo", "foil":
		return VariantFoil, nil
	default:
		return 0, fmt.Errorf("unknown variant %q", s)
	}
}

func (v Variant) MarshalText() ([]byte, error) {
	if v.Slug() == "" {
		return nil, fmt.Errorf("invalid variant %d", int(v))
	}
	return []byte(v.String()), nil
}

func (v *Variant) UnmarshalText(b []byte) error {
	parsed, err := ParseVariant(string(b))
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

// Rarity is the printed rarity tier of an item.
type Rarity string

var rarities = map[string]Rarity{
	"common":                  "Common",
	"uncommon":                "Uncommon",
	"rare":                    "Rare",
	"doublerare":              "Double Rare",
	"acespecrare":             "Ace Spec Rare",
	"illustrationrare":        "Illustration Rare",
	"ultrarare":               "Ultra Rare",
	"specialillustrationrare": "Special Illustration Rare",
	"hyperrare":               "Hyper Rare",
}

// ParseRarity accepts either "DoubleRare" or "Double Rare" spellings.
func ParseRarity(s string) (Rarity, error) {
	key := strings.ToLower(strings.ReplaceAll(strings.TrimSpace(s), " ", ""))
	r, ok := rarities[key]
	if !ok {
		return "", fmt.Errorf("unknown rarity %q", s)
	}
	return r, nil
}

func (r *Rarity) UnmarshalText(b []byte) error {
	parsed, err := ParseRarity(string(b))
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

// ItemKey is the natural key of one item-variant.
type ItemKey struct {
	CollectionName     string  `json:"collection_name"`
	CollectionSequence float64 `json:"collection_sequence"`
	ItemSequence       int     `json:"item_sequence"`
	Variant            Variant `json:"variant"`
}

func (k ItemKey) String() string {
	return fmt.Sprintf("%s/%s/%03d/%s", k.CollectionName,
		strconv.FormatFloat(k.CollectionSequence, 'f', -1, 64), k.ItemSequence, k.Variant.Slug())
}

// Item is one entry of a collection document.
type Item struct {
	DisplayName string    `yaml:"name" json:"name"`
	Sequence    int       `yaml:"number" json:"number"`
	Rarity      Rarity    `yaml:"rarity" json:"rarity"`
	Variants    []Variant `yaml:"variants" json:"variants"`
}

// Collection is an ordered list of items released together.
type Collection struct {
	Name           string  `yaml:"set_name" json:"set_name"`
	DisplayName    string  `yaml:"expansion_name" json:"expansion_name"`
	Sequence       float64 `yaml:"expansion_number" json:"expansion_number"`
	TotalItemCount int     `yaml:"expansion_total" json:"expansion_total"`
	Items          []Item  `yaml:"cards" json:"cards"`
}

// Validate checks the invariants the scraper relies on.
func (c *Collection) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return fmt.Errorf("collection: empty set_name")
	}
	if c.TotalItemCount <= 0 {
		return fmt.Errorf("collection %s: expansion_total must be positive", c.Name)
	}
	seen := make(map[int]struct{}, len(c.Items))
	for _, it := range c.Items {
		if strings.TrimSpace(it.DisplayName) == "" {
			return fmt.Errorf("collection %s: item %d has no name", c.Name, it.Sequence)
		}
		if _, dup := seen[it.Sequence]; dup {
			return fmt.Errorf("collection %s: duplicate item number %d", c.Name, it.Sequence)
		}
		seen[it.Sequence] = struct{}{}
		if len(it.Variants) == 0 {
			return fmt.Errorf("collection %s: item %d has no variants", c.Name, it.Sequence)
		}
		variants := make(map[Variant]struct{}, len(it.Variants))
		for _, v := range it.Variants {
			if _, dup := variants[v]; dup {
				return fmt.Errorf("collection %s: item %d lists variant %s twice", c.Name, it.Sequence, v)
			}
			variants[v] = struct{}{}
		}
	}
	return nil
}

// CatalogItem is one trackable item-variant.
type CatalogItem struct {
	CollectionName        string  `json:"collection_name"`
	CollectionDisplayName string  `json:"collection_display_name,omitempty"`
	CollectionSequence    float64 `json:"collection_sequence"`
	CollectionTotal       int     `json:"collection_total,omitempty"`
	ItemSequence          int     `json:"item_sequence"`
	Variant               Variant `json:"variant"`
	DisplayName           string  `json:"display_name"`
	Rarity                Rarity  `json:"rarity"`
}

// Key returns the natural key of the item-variant.
func (ci CatalogItem) Key() ItemKey {
	return ItemKey{
		CollectionName:     ci.CollectionName,
		CollectionSequence: ci.CollectionSequence,
		ItemSequence:       ci.ItemSequence,
		Variant:            ci.Variant,
	}
}

// SearchText is the query typed into the marketplace search box,
// e.g. "Pikachu 025/191".
func (ci CatalogItem) SearchText() string {
	return fmt.Sprintf("%s %03d/%d", ci.DisplayName, ci.ItemSequence, ci.CollectionTotal)
}

// Catalog is the ordered set of collections to sweep.
type Catalog struct {
	Collections []Collection
}

// Units expands the catalog into item-variants in sweep order.
func (c *Catalog) Units() []CatalogItem {
	var units []CatalogItem
	for _, col := range c.Collections {
		for _, it := range col.Items {
			for _, v := range it.Variants {
				units = append(units, CatalogItem{
					CollectionName:        col.Name,
					CollectionDisplayName: col.DisplayName,
					CollectionSequence:    col.Sequence,
					CollectionTotal:       col.TotalItemCount,
					ItemSequence:          it.Sequence,
					Variant:               v,
					DisplayName:           it.DisplayName,
					Rarity:                it.Rarity,
				})
			}
		}
	}
	return units
}

// ResumeIndex returns the position in units to start a sweep from. A nil
// checkpoint, or one naming a unit the catalog no longer contains, starts
// from the beginning.
func ResumeIndex(units []CatalogItem, cp *Checkpoint) (int, bool) {
	if cp == nil {
		return 0, true
	}
	for i, u := range units {
		if u.Key() == cp.Key() {
			return i + 1, true
		}
	}
	return 0, false
}
