package entity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleCatalog() *Catalog {
	return &Catalog{Collections: []Collection{
		{
			Name: "Scarlet & Violet", DisplayName: "Surging Sparks", Sequence: 8, TotalItemCount: 191,
			Items: []Item{
				{DisplayName: "Pikachu ex", Sequence: 57, Rarity: "Double Rare", Variants: []Variant{VariantFoil}},
				{DisplayName: "Pikachu", Sequence: 63, Rarity: "Common", Variants: []Variant{VariantRegular, VariantReverseHolo}},
			},
		},
		{
			Name: "Scarlet & Violet", DisplayName: "151", Sequence: 3.5, TotalItemCount: 165,
			Items: []Item{
				{DisplayName: "Mew ex", Sequence: 151, Rarity: "Double Rare", Variants: []Variant{VariantFoil}},
			},
		},
	}}
}

func TestUnitsExpandVariantsInOrder(t *testing.T) {
	units := sampleCatalog().Units()
	require.Len(t, units, 4)

	assert.Equal(t, "Pikachu ex", units[0].DisplayName)
	assert.Equal(t, VariantRegular, units[1].Variant)
	assert.Equal(t, VariantReverseHolo, units[2].Variant)
	assert.Equal(t, 63, units[2].ItemSequence)
	assert.Equal(t, 3.5, units[3].CollectionSequence)
	assert.Equal(t, 165, units[3].CollectionTotal)
}

func TestSearchText(t *testing.T) {
	units := sampleCatalog().Units()
	assert.Equal(t, "Pikachu ex 057/191", units[0].SearchText())
	assert.Equal(t, "Mew ex 151/165", units[3].SearchText())
}

func TestResumeIndex(t *testing.T) {
	units := sampleCatalog().Units()

	idx, ok := ResumeIndex(units, nil)
	assert.True(t, ok)
	assert.Equal(t, 0, idx)

	cp := &Checkpoint{CollectionName: "Scarlet & Violet", CollectionSequence: 8, ItemSequence: 63, Variant: VariantRegular}
	idx, ok = ResumeIndex(units, cp)
	assert.True(t, ok)
	assert.Equal(t, 2, idx)

	last := &Checkpoint{CollectionName: "Scarlet & Violet", CollectionSequence: 3.5, ItemSequence: 151, Variant: VariantFoil}
	idx, ok = ResumeIndex(units, last)
	assert.True(t, ok)
	assert.Equal(t, len(units), idx)

	stale := &Checkpoint{CollectionName: "Sword & Shield", CollectionSequence: 1, ItemSequence: 5, Variant: VariantRegular}
	idx, ok = ResumeIndex(units, stale)
	assert.False(t, ok)
	assert.Equal(t, 0, idx)
}

func TestParseVariant(t *testing.T) {
	cases := map[string]Variant{
		"Regular":      VariantRegular,
		"Parallel":     VariantReverseHolo,
		"Reverse Holo": VariantReverseHolo,
		"reverse-holo": VariantReverseHolo,
		"Foil":         VariantFoil,
		"holo":         VariantFoil,
	}
	for in, want := range cases {
		got, err := ParseVariant(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseVariant("gold")
	assert.Error(t, err)

	assert.Equal(t, "Reverse Holo", VariantReverseHolo.String())
	assert.Equal(t, "holo", VariantFoil.Slug())
}

func TestParseRarity(t *testing.T) {
	r, err := ParseRarity("SpecialIllustrationRare")
	require.NoError(t, err)
	assert.Equal(t, Rarity("Special Illustration Rare"), r)

	r, err = ParseRarity("Double Rare")
	require.NoError(t, err)
	assert.Equal(t, Rarity("Double Rare"), r)

	_, err = ParseRarity("Mythic")
	assert.Error(t, err)
}

func TestCollectionValidate(t *testing.T) {
	c := sampleCatalog().Collections[0]
	require.NoError(t, c.Validate())

	dup := c
	dup.Items = append([]Item{}, c.Items...)
	dup.Items = append(dup.Items, Item{DisplayName: "Raichu", Sequence: 63, Variants: []Variant{VariantRegular}})
	assert.ErrorContains(t, dup.Validate(), "duplicate item number 63")

	noVariants := c
	noVariants.Items = []Item{{DisplayName: "Raichu", Sequence: 64}}
	assert.ErrorContains(t, noVariants.Validate(), "no variants")

	dupVariant := c
	dupVariant.Items = []Item{{DisplayName: "Pikachu", Sequence: 63, Variants: []Variant{VariantRegular, VariantReverseHolo, VariantRegular}}}
	assert.ErrorContains(t, dupVariant.Validate(), "item 63 lists variant")

	noTotal := c
	noTotal.TotalItemCount = 0
	assert.Error(t, noTotal.Validate())
}

func TestItemKeyString(t *testing.T) {
	k := ItemKey{CollectionName: "Scarlet & Violet", CollectionSequence: 3.5, ItemSequence: 7, Variant: VariantReverseHolo}
	assert.Equal(t, "Scarlet & Violet/3.5/007/reverse-holo", k.String())
}
