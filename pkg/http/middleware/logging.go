package middleware

import (
	"log"
	"time"

	"github.com/labstack/echo/v4"
)

// RequestLogging writes one access log line per request.
func RequestLogging() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()

			err := next(c)

			req := c.Request()
			log.Printf("%s %s %d %s %s",
				req.Method,
				req.RequestURI,
				c.Response().Status,
				time.Since(start),
				req.RemoteAddr,
			)

			return err
		}
	}
}
