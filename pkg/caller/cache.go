package caller

import (
	"net/http"
	"strconv"
	"strings"
	"time"
)

// CachedResponse is the body of a successful echo response and when it was stored.
type CachedResponse struct {
	Body     []byte
	CachedAt time.Time
}

// cacheTTL decides how long a response may be reused. ok is false when the
// response must not be stored, including an explicit max-age=0; ttl == 0
// means no lifetime was given and the cache default applies.
func cacheTTL(header http.Header) (ttl time.Duration, ok bool) {
	cc := header.Get("Cache-Control")
	if hasDirective(cc, "no-store") || hasDirective(cc, "no-cache") {
		return 0, false
	}
	maxAge, found := parseMaxAge(cc)
	if !found {
		return 0, true
	}
	if maxAge <= 0 {
		return 0, false
	}
	return time.Duration(maxAge) * time.Second, true
}

func hasDirective(cacheControl, name string) bool {
	for _, directive := range strings.Split(strings.ToLower(cacheControl), ",") {
		if strings.TrimSpace(directive) == name {
			return true
		}
	}
	return false
}

// parseMaxAge extracts the max-age or s-maxage value from Cache-Control header.
// found is false when neither directive carries a valid number.
func parseMaxAge(cacheControl string) (maxAge int, found bool) {
	cacheControl = strings.ToLower(cacheControl)
	directives := strings.Split(cacheControl, ",")

	for _, directive := range directives {
		directive = strings.TrimSpace(directive)

		for _, prefix := range []string{"s-maxage=", "max-age="} {
			if strings.HasPrefix(directive, prefix) {
				if n, err := strconv.Atoi(strings.TrimPrefix(directive, prefix)); err == nil && n >= 0 {
					return n, true
				}
			}
		}
	}

	return 0, false
}
