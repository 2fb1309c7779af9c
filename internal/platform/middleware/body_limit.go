package middleware

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/gommon/bytes"
)

const defaultBodyLimit = 1 << 20

// BodyLimit caps request bodies at limit, written like "64K" or "1MB". An
// unparsable limit falls back to 1MB. A declared Content-Length over the
// limit is refused before the handler runs; an undeclared one fails on the
// read that crosses it. Both answer 413.
func BodyLimit(limit string) echo.MiddlewareFunc {
	max := parseLimit(limit)
	tooLarge := echo.NewHTTPError(http.StatusRequestEntityTooLarge,
		fmt.Sprintf("request body exceeds %s", bytes.Format(max)))

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			if req.Body == nil || req.Body == http.NoBody {
				return next(c)
			}
			if req.ContentLength > max {
				return tooLarge
			}

			req.Body = http.MaxBytesReader(c.Response(), req.Body, max)
			err := next(c)

			var mbe *http.MaxBytesError
			if errors.As(err, &mbe) {
				return tooLarge
			}
			return err
		}
	}
}

func parseLimit(s string) int64 {
	n, err := bytes.Parse(s)
	if err != nil || n <= 0 {
		return defaultBodyLimit
	}
	return n
}
