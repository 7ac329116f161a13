package handler

import (
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/user/soldprice-service/internal/entity"
	"github.com/user/soldprice-service/internal/usecase"
)

// maxRecent bounds the cross-section window.
const maxRecent = 1000

type itemRef struct {
	collection    string
	collectionSeq float64
	itemSeq       int
}

func parseItemRef(r *http.Request) (itemRef, error) {
	collection, err := url.PathUnescape(chi.URLParam(r, "collection"))
	if err != nil || collection == "" {
		return itemRef{}, fmt.Errorf("invalid collection %q", chi.URLParam(r, "collection"))
	}
	seq, err := strconv.ParseFloat(chi.URLParam(r, "collectionSeq"), 64)
	if err != nil {
		return itemRef{}, fmt.Errorf("invalid collection number %q", chi.URLParam(r, "collectionSeq"))
	}
	itemSeq, err := strconv.Atoi(chi.URLParam(r, "itemSeq"))
	if err != nil || itemSeq < 0 {
		return itemRef{}, fmt.Errorf("invalid item number %q", chi.URLParam(r, "itemSeq"))
	}
	return itemRef{collection: collection, collectionSeq: seq, itemSeq: itemSeq}, nil
}

func parseItemKey(r *http.Request) (entity.ItemKey, error) {
	ref, err := parseItemRef(r)
	if err != nil {
		return entity.ItemKey{}, err
	}
	variant, err := entity.ParseVariant(chi.URLParam(r, "variant"))
	if err != nil {
		return entity.ItemKey{}, err
	}
	return entity.ItemKey{
		CollectionName:     ref.collection,
		CollectionSequence: ref.collectionSeq,
		ItemSequence:       ref.itemSeq,
		Variant:            variant,
	}, nil
}

// parseSince reads the optional ?since=YYYY-MM-DD filter.
func parseSince(r *http.Request) (*time.Time, error) {
	raw := r.URL.Query().Get("since")
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse(time.DateOnly, raw)
	if err != nil {
		return nil, fmt.Errorf("since must be YYYY-MM-DD, got %q", raw)
	}
	return &t, nil
}

func parseRecent(r *http.Request) (int, error) {
	raw := r.URL.Query().Get("recent")
	if raw == "" {
		return usecase.DefaultRecentListings, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 || n > maxRecent {
		return 0, fmt.Errorf("recent must be between 1 and %d, got %q", maxRecent, raw)
	}
	return n, nil
}
