package cache

import (
	"fmt"
	"hash/fnv"
	"sort"
)

// Key derives the deterministic cache key for a request from its method,
// path, and query parameters using FNV-1a. Query parameters are written in
// sorted order so the same inputs always hash to the same key regardless of
// map iteration order.
func Key(method, path string, query map[string]string) string {
	h := fnv.New64a()

	_, _ = h.Write([]byte(method))
	_, _ = h.Write([]byte("|"))
	_, _ = h.Write([]byte(path))
	_, _ = h.Write([]byte("|"))

	if len(query) > 0 {
		names := make([]string, 0, len(query))
		for name := range query {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			_, _ = h.Write([]byte(name))
			_, _ = h.Write([]byte("="))
			_, _ = h.Write([]byte(query[name]))
			_, _ = h.Write([]byte("&"))
		}
	}

	return fmt.Sprintf("%016x", h.Sum64())
}
