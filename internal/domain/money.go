package domain

import (
	"fmt"
	"math"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var germanPrinter = message.NewPrinter(language.German)

// FormatAmount renders euro cents as a decimal string with a dot separator
// and exactly two fraction digits, the form the payment gateway expects:
// 3370 -> "33.70".
func FormatAmount(cents int64) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return fmt.Sprintf("%s%d.%02d", sign, cents/100, cents%100)
}

// FormatAmountValue normalises a loosely typed amount into the gateway
// string form. Integral values above 1000 are treated as cents and divided
// by 100; everything else is taken as euros. The output always carries two
// fraction digits: 3370 -> "33.70", 12.5 -> "12.50".
func FormatAmountValue(v float64) string {
	if v == math.Trunc(v) && v > 1000 {
		v = v / 100
	}
	return fmt.Sprintf("%.2f", v)
}

// FormatEuro renders cents in the German display form used in confirmation
// emails: 3370 -> "33,70 €".
func FormatEuro(cents int64) string {
	return germanPrinter.Sprintf("%.2f €", float64(cents)/100)
}
