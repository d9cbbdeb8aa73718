package handlers

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Figures are rendered in Brazilian notation: 1.234,56.
var printer = message.NewPrinter(language.BrazilianPortuguese)

func formatMoney(v float64) string {
	return printer.Sprintf("R$ %.2f", v)
}

func formatPct(v float64) string {
	return printer.Sprintf("%.1f%%", v)
}
