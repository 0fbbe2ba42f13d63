package middleware

import (
	"strconv"

	"github.com/labstack/echo/v4"
)

// actor identifies the caller for rate limiting and request logs: the
// staff user id when JWTAuth ran, "guest" otherwise.
func actor(c echo.Context) string {
	if uid, ok := c.Get(CtxUserID).(uint64); ok && uid != 0 {
		return strconv.FormatUint(uid, 10)
	}
	return "guest"
}
