package utils

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// HashKey creates a SHA256 hash of a string.
// This is useful for creating consistent, safe keys for Redis.
func HashKey(s string) string {
	h := sha256.New()
	h.Write([]byte(s))
	return hex.EncodeToString(h.Sum(nil))
}

// ToAbsoluteURL converts a relative URL to an absolute URL given a base URL.
func ToAbsoluteURL(base *url.URL, relative string) (string, error) {
	relURL, err := url.Parse(relative)
	if err != nil {
		return "", err
	}
	return base.ResolveReference(relURL).String(), nil
}

// ParseListingID extracts the numeric item id from a listing link such as
// "https://www.ebay.co.uk/itm/123456789?hash=abc".
func ParseListingID(href string) (int64, error) {
	path, _, _ := strings.Cut(href, "?")
	path = strings.TrimRight(path, "/")
	idx := strings.LastIndex(path, "/")
	if idx < 0 {
		return 0, fmt.Errorf("listing link %q has no path segment", href)
	}
	id, err := strconv.ParseInt(path[idx+1:], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("listing link %q: %w", href, err)
	}
	return id, nil
}
