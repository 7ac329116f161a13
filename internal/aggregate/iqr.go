// Package aggregate computes outlier-filtered price statistics.
//
// Quartiles use a simplified median: the element at index len/2 of each
// half, for odd and even lengths alike. Reported figures depend on this rule,
// so it must not be replaced with the averaged textbook median.
package aggregate

import (
	"sort"

	"github.com/user/soldprice-service/internal/entity"
)

// Stats is the result of filtering one set of prices.
type Stats struct {
	Total    int
	Retained []int64
	Q1       int64
	Q3       int64
	Mean     int64
	HasData  bool
}

// median returns xs[len/2]; ok is false for an empty slice.
func median(xs []int64) (int64, bool) {
	if len(xs) == 0 {
		return 0, false
	}
	return xs[len(xs)/2], true
}

// Filter returns the prices within [Q1-1.5*IQR, Q3+1.5*IQR] in input order.
// Bounds are compared after doubling so no fractional arithmetic is needed.
func Filter(prices []int64) (kept []int64, q1, q3 int64, ok bool) {
	sorted := append([]int64(nil), prices...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	n := len(sorted) / 2
	q1, ok1 := median(sorted[:n])
	q3, ok3 := median(sorted[n:])
	if !ok1 || !ok3 {
		return nil, 0, 0, false
	}

	iqr := q3 - q1
	lower2 := 2*q1 - 3*iqr
	upper2 := 2*q3 + 3*iqr

	for _, p := range prices {
		if 2*p >= lower2 && 2*p <= upper2 {
			kept = append(kept, p)
		}
	}
	return kept, q1, q3, true
}

// Summarize filters prices and reports the truncated integer mean of the
// retained set.
func Summarize(prices []int64) Stats {
	st := Stats{Total: len(prices)}
	kept, q1, q3, ok := Filter(prices)
	if !ok || len(kept) == 0 {
		return st
	}

	var sum int64
	for _, p := range kept {
		sum += p
	}
	st.Retained = kept
	st.Q1, st.Q3 = q1, q3
	st.Mean = sum / int64(len(kept))
	st.HasData = true
	return st
}

// GroupAndSummarize summarises each item-variant of a cross-section. Keys
// appear in the result in first-seen order.
func GroupAndSummarize(points []entity.PricePoint) ([]entity.ItemKey, map[entity.ItemKey]Stats) {
	var order []entity.ItemKey
	grouped := make(map[entity.ItemKey][]int64)
	for _, p := range points {
		if _, seen := grouped[p.Key]; !seen {
			order = append(order, p.Key)
		}
		grouped[p.Key] = append(grouped[p.Key], p.Minor)
	}

	out := make(map[entity.ItemKey]Stats, len(grouped))
	for k, prices := range grouped {
		out[k] = Summarize(prices)
	}
	return order, out
}
