package httpx

import (
	"net/http"
	"strconv"
)

// pageBounds bounds the limit/offset query parameters of a list endpoint.
type pageBounds struct {
	Default int
	Max     int
}

// parse reads limit and offset from r. Garbage falls back to the defaults and
// out-of-range values are clamped rather than rejected.
func (b pageBounds) parse(r *http.Request) (limit, offset int) {
	q := r.URL.Query()
	limit = queryInt(q.Get("limit"), b.Default)
	offset = queryInt(q.Get("offset"), 0)
	return min(max(limit, 1), max(b.Max, 1)), max(offset, 0)
}

func queryInt(raw string, def int) int {
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return n
}
