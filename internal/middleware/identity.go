package middleware

// identity.go provides helpers for reading the authenticated user out
// of the Echo context after JWTAuth has run. Handlers use these
// instead of type-asserting the raw claims themselves.

import (
	"strconv"

	"github.com/labstack/echo/v4"
)

// UserID returns the authenticated user's numeric ID. The "sub" claim
// round-trips through JSON, so it arrives as a float64; the helper
// also accepts string and integer forms for safety.
func UserID(c echo.Context) (uint64, bool) {
	switch v := c.Get("user_id").(type) {
	case float64:
		if v > 0 {
			return uint64(v), true
		}
	case uint64:
		if v > 0 {
			return v, true
		}
	case int64:
		if v > 0 {
			return uint64(v), true
		}
	case string:
		if n, err := strconv.ParseUint(v, 10, 64); err == nil && n > 0 {
			return n, true
		}
	}
	return 0, false
}

// Username returns the authenticated username, or "" when absent.
func Username(c echo.Context) string {
	if v, ok := c.Get("username").(string); ok {
		return v
	}
	return ""
}
