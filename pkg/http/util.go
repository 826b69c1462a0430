package http

import (
	"time"

	xutil "SignalPilot/pkg/util"

	"github.com/labstack/echo/v4"
)

// ParseIntDefault parses string to int or returns default if empty/invalid.
func ParseIntDefault(s string, def int) int { return xutil.ParseIntDefault(s, def) }

// ParseTime tries RFC3339 and unix seconds or milliseconds.
func ParseTime(s string) (time.Time, bool) { return xutil.ParseTime(s) }

// QueryLimit reads ?limit, falling back to def and clamping to [1, max].
func QueryLimit(c echo.Context, def, max int) int {
	return xutil.ClampInt(xutil.ParseIntDefault(c.QueryParam("limit"), def), 1, max)
}
