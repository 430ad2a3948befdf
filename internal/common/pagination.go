package common

import (
	"net/http"
	"strconv"
)

func positiveQueryInt(r *http.Request, name string) (int, bool) {
	n, err := strconv.Atoi(r.URL.Query().Get(name))
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}

// ParsePagination reads the page and limit query parameters, falling back to
// page 1 and defaultPerPage when absent or invalid.
func ParsePagination(r *http.Request, defaultPerPage int) (page, perPage int) {
	page, perPage = 1, defaultPerPage
	if n, ok := positiveQueryInt(r, "page"); ok {
		page = n
	}
	if n, ok := positiveQueryInt(r, "limit"); ok {
		perPage = n
	}
	return page, perPage
}
