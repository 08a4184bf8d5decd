package core

import (
	"fmt"

	"github.com/dustin/go-humanize"
)

// FormatCurrency formats an amount as euros with thousands separators, e.g. "€1,234.56".
func FormatCurrency(m Money) string {
	cents := m.Cents
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return fmt.Sprintf("%s€%s.%02d", sign, humanize.Comma(cents/100), cents%100)
}

// FormatDate formats a date for display, e.g. "Jan 2, 2006".
func FormatDate(d Date) string {
	if d.IsZero() {
		return ""
	}
	return d.Format("Jan 2, 2006")
}
