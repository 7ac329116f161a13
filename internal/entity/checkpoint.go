package entity

import "time"

// Checkpoint records the last item-variant a sweep committed.
type Checkpoint struct {
	CollectionName     string
	CollectionSequence float64
	ItemSequence       int
	Variant            Variant
	UpdatedAt          time.Time
}

// Key returns the item-variant the checkpoint points at.
func (c Checkpoint) Key() ItemKey {
	return ItemKey{
		CollectionName:     c.CollectionName,
		CollectionSequence: c.CollectionSequence,
		ItemSequence:       c.ItemSequence,
		Variant:            c.Variant,
	}
}
