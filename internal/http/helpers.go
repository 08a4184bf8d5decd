package http

import (
	"html/template"
	"net/http"
	"strconv"
	"strings"

	"smartexpense/internal/core"
)

// sanitizeInput removes control characters other than tab and newlines, and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	result := strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
	return result
}

// isHTMX reports whether the request was issued by htmx.
func isHTMX(r *http.Request) bool {
	return r.Header.Get("HX-Request") == "true"
}

// parseExpenseID reads the {id} path segment.
func parseExpenseID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

func orDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}

var templateFuncs = template.FuncMap{
	"currency": core.FormatCurrency,
	"date":     core.FormatDate,
	"orDash":   orDash,
	"barWidth": core.BarWidth,
}
