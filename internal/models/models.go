package models

import "time"

// Currency is a reference entry from the currency metadata store.
// CredParityRate is expressed as units of this currency per one CRED.
type Currency struct {
	CountryCode    string  `json:"countryCode"`
	CountryName    string  `json:"countryName"`
	CurrencyCode   string  `json:"currencyCode"`
	CurrencyName   string  `json:"currencyName"`
	CurrencySymbol string  `json:"currencySymbol"`
	FlagEmoji      string  `json:"flagEmoji"`
	CredParityRate float64 `json:"credParityRate"`
}

// PairCode returns the display pair identifier, e.g. "USD-CRED".
// It is always derived from the currency code, never stored.
func (c Currency) PairCode() string {
	return c.CurrencyCode + "-CRED"
}

// ConversionResult captures a single computed conversion. Rate is the
// multiplier actually applied for this conversion, Timestamp is the capture
// time and is informational only.
type ConversionResult struct {
	FromAmount   float64   `json:"fromAmount"`
	ToAmount     float64   `json:"toAmount"`
	FromCurrency string    `json:"fromCurrency"`
	ToCurrency   string    `json:"toCurrency"`
	Rate         float64   `json:"rate"`
	Timestamp    time.Time `json:"timestamp"`
}

// CurrenciesResponse is the wire shape of the currencies listing endpoint.
type CurrenciesResponse struct {
	Currencies []Currency `json:"currencies"`
	Total      int        `json:"total"`
	Timestamp  time.Time  `json:"timestamp"`
}

// ConvertRequest is the body of a conversion request.
type ConvertRequest struct {
	Amount       float64 `json:"amount"`
	FromCurrency string  `json:"fromCurrency"`
	ToCurrency   string  `json:"toCurrency"`
}

// ConvertResponse wraps a successful conversion.
type ConvertResponse struct {
	Conversion ConversionResult `json:"conversion"`
}

// ErrorResponse is the wire shape of every error body.
type ErrorResponse struct {
	Error string `json:"error"`
}

// HealthCheck is the health endpoint response.
type HealthCheck struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Version   string    `json:"version"`
	Uptime    string    `json:"uptime"`
}
