package handler

import (
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"
)

// HTTPErrorHandler renders error.html for every failed request and logs
// everything except 404s.
func HTTPErrorHandler(log *slog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}
		code := http.StatusInternalServerError
		message := http.StatusText(code)
		if he, ok := err.(*echo.HTTPError); ok {
			code = he.Code
			if m, ok := he.Message.(string); ok {
				message = m
			} else {
				message = http.StatusText(code)
			}
		}
		if code != http.StatusNotFound {
			log.Error("Request failed", "error", err, "path", c.Path(), "status", code)
		}
		data := struct {
			Code    int
			Message string
		}{code, message}
		if err := c.Render(code, "error.html", data); err != nil {
			log.Error("Error page failed", "error", err)
		}
	}
}
