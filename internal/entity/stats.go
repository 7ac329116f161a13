package entity

// PricePoint is one listing price attributed to an item-variant.
type PricePoint struct {
	Key   ItemKey
	Minor int64
}

// AggregateStats summarises the outlier-filtered prices of one item-variant.
// MeanMinor is nil when no listing survives filtering.
type AggregateStats struct {
	Key       ItemKey `json:"key"`
	Currency  string  `json:"currency"`
	Total     int     `json:"total"`
	Retained  int     `json:"retained"`
	MeanMinor *int64  `json:"mean_minor"`
	Mean      string  `json:"mean,omitempty"`
	Q1Minor   int64   `json:"q1_minor"`
	Q3Minor   int64   `json:"q3_minor"`
}
