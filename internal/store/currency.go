package store

import (
	"fmt"
	"strings"
)

// Currency describes how a wallet currency is written.
type Currency struct {
	Code           string
	Symbol         string
	SymbolIsPrefix bool
	// Separator goes between the symbol and the number.
	Separator     string
	DecimalSymbol string
	WholeUnits    bool
}

// Currencies lists the wallet currencies the store prices in.
var Currencies = map[string]Currency{
	"USD": {Code: "USD", Symbol: "$", SymbolIsPrefix: true, DecimalSymbol: "."},
	"GBP": {Code: "GBP", Symbol: "£", SymbolIsPrefix: true, DecimalSymbol: "."},
	"EUR": {Code: "EUR", Symbol: "€", DecimalSymbol: ","},
	"CHF": {Code: "CHF", Symbol: "CHF", SymbolIsPrefix: true, Separator: " ", DecimalSymbol: "."},
	"RUB": {Code: "RUB", Symbol: "руб.", Separator: " ", DecimalSymbol: ",", WholeUnits: true},
	"PLN": {Code: "PLN", Symbol: "zł", DecimalSymbol: ","},
	"BRL": {Code: "BRL", Symbol: "R$", SymbolIsPrefix: true, Separator: " ", DecimalSymbol: ","},
	"JPY": {Code: "JPY", Symbol: "¥", SymbolIsPrefix: true, Separator: " ", DecimalSymbol: ".", WholeUnits: true},
	"NOK": {Code: "NOK", Symbol: "kr", Separator: " ", DecimalSymbol: ","},
	"IDR": {Code: "IDR", Symbol: "Rp", SymbolIsPrefix: true, Separator: " ", DecimalSymbol: ".", WholeUnits: true},
	"PHP": {Code: "PHP", Symbol: "₱", SymbolIsPrefix: true, DecimalSymbol: "."},
	"SGD": {Code: "SGD", Symbol: "S$", SymbolIsPrefix: true, DecimalSymbol: "."},
	"THB": {Code: "THB", Symbol: "฿", SymbolIsPrefix: true, DecimalSymbol: "."},
	"KRW": {Code: "KRW", Symbol: "₩", SymbolIsPrefix: true, Separator: " ", DecimalSymbol: ".", WholeUnits: true},
	"TRY": {Code: "TRY", Symbol: "TL", Separator: " ", DecimalSymbol: ","},
	"UAH": {Code: "UAH", Symbol: "₴", DecimalSymbol: ",", WholeUnits: true},
	"MXN": {Code: "MXN", Symbol: "Mex$", SymbolIsPrefix: true, Separator: " ", DecimalSymbol: "."},
	"CAD": {Code: "CAD", Symbol: "CDN$", SymbolIsPrefix: true, Separator: " ", DecimalSymbol: "."},
	"AUD": {Code: "AUD", Symbol: "A$", SymbolIsPrefix: true, Separator: " ", DecimalSymbol: "."},
	"NZD": {Code: "NZD", Symbol: "NZ$", SymbolIsPrefix: true, Separator: " ", DecimalSymbol: "."},
	"CNY": {Code: "CNY", Symbol: "¥", SymbolIsPrefix: true, Separator: " ", DecimalSymbol: "."},
	"INR": {Code: "INR", Symbol: "₹", SymbolIsPrefix: true, Separator: " ", DecimalSymbol: ".", WholeUnits: true},
	"HKD": {Code: "HKD", Symbol: "HK$", SymbolIsPrefix: true, Separator: " ", DecimalSymbol: "."},
	"TWD": {Code: "TWD", Symbol: "NT$", SymbolIsPrefix: true, Separator: " ", DecimalSymbol: ".", WholeUnits: true},
	"ZAR": {Code: "ZAR", Symbol: "R", SymbolIsPrefix: true, Separator: " ", DecimalSymbol: "."},
	"KZT": {Code: "KZT", Symbol: "₸", DecimalSymbol: ",", WholeUnits: true},
}

// Formatter writes prices in one wallet currency.
type Formatter struct {
	currency Currency
	country  string
}

// NewFormatter returns a formatter for the currency code. country is the
// wallet country; dollar prices outside the US are suffixed with "USD".
func NewFormatter(code, country string) (*Formatter, error) {
	c, ok := Currencies[strings.ToUpper(code)]
	if !ok {
		return nil, fmt.Errorf("invalid wallet currency: %s", code)
	}
	return &Formatter{currency: c, country: strings.ToUpper(country)}, nil
}

// Code returns the currency code.
func (f *Formatter) Code() string { return f.currency.Code }

// FormatCurrency formats an amount in cents.
func (f *Formatter) FormatCurrency(cents int64) string {
	c := f.currency
	sign := ""
	if cents < 0 {
		sign, cents = "-", -cents
	}
	s := fmt.Sprintf("%s%d.%02d", sign, cents/100, cents%100)
	if c.WholeUnits {
		s = strings.Replace(s, ".00", "", 1)
	}
	if c.DecimalSymbol != "." {
		s = strings.Replace(s, ".", c.DecimalSymbol, 1)
	}

	var out string
	if c.SymbolIsPrefix {
		out = c.Symbol + c.Separator + s
	} else {
		out = s + c.Separator + c.Symbol
	}

	switch {
	case c.Code == "USD" && f.country != "" && f.country != "US":
		return out + " USD"
	case c.Code == "EUR":
		return strings.Replace(out, ",00", ",--", 1)
	}
	return out
}
