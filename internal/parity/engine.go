package parity

import (
	"context"
	"time"

	"github.com/heavenslive/cred-parity-service/internal/logger"
	"github.com/heavenslive/cred-parity-service/internal/models"
)

// Engine converts amounts between currencies by routing every conversion
// through the CRED pivot, using the rates held by the parity cache.
type Engine struct {
	cache  *Cache
	logger *logger.Logger
}

// NewEngine creates a conversion engine over the given cache.
func NewEngine(cache *Cache, logger *logger.Logger) *Engine {
	return &Engine{
		cache:  cache,
		logger: logger,
	}
}

// ConvertToPivot converts amount of fromCode into CRED. The reported rate is
// the currency's stored parity rate.
func (engine *Engine) ConvertToPivot(ctx context.Context, amount float64, fromCode string) (models.ConversionResult, error) {
	if amount <= 0 {
		return models.ConversionResult{}, invalidAmountError("amount must be greater than zero")
	}

	currency, found, lookupError := engine.cache.GetCurrency(ctx, fromCode)
	if lookupError != nil {
		return models.ConversionResult{}, lookupError
	}
	if !found {
		return models.ConversionResult{}, unsupportedCurrencyError(fromCode)
	}

	return models.ConversionResult{
		FromAmount:   amount,
		ToAmount:     amount / currency.CredParityRate,
		FromCurrency: fromCode,
		ToCurrency:   PivotCode,
		Rate:         currency.CredParityRate,
		Timestamp:    time.Now(),
	}, nil
}

// ConvertFromPivot converts pivotAmount of CRED into toCode. The reported
// rate is the currency's stored parity rate.
func (engine *Engine) ConvertFromPivot(ctx context.Context, pivotAmount float64, toCode string) (models.ConversionResult, error) {
	if pivotAmount <= 0 {
		return models.ConversionResult{}, invalidAmountError("amount must be greater than zero")
	}

	currency, found, lookupError := engine.cache.GetCurrency(ctx, toCode)
	if lookupError != nil {
		return models.ConversionResult{}, lookupError
	}
	if !found {
		return models.ConversionResult{}, unsupportedCurrencyError(toCode)
	}

	return models.ConversionResult{
		FromAmount:   pivotAmount,
		ToAmount:     pivotAmount * currency.CredParityRate,
		FromCurrency: PivotCode,
		ToCurrency:   toCode,
		Rate:         currency.CredParityRate,
		Timestamp:    time.Now(),
	}, nil
}

// Convert converts amount from fromCode to toCode through the pivot. The
// reported rate is always the realized ratio toAmount/fromAmount, so it
// reconciles against the before/after amounts. Identical codes short-circuit
// with rate 1 and no cache interaction, avoiding floating-point round-trip
// error.
func (engine *Engine) Convert(ctx context.Context, amount float64, fromCode, toCode string) (models.ConversionResult, error) {
	if amount <= 0 {
		return models.ConversionResult{}, invalidAmountError("amount must be greater than zero")
	}

	if fromCode == toCode {
		return models.ConversionResult{
			FromAmount:   amount,
			ToAmount:     amount,
			FromCurrency: fromCode,
			ToCurrency:   toCode,
			Rate:         1,
			Timestamp:    time.Now(),
		}, nil
	}

	pivotAmount := amount
	if fromCode != PivotCode {
		toPivot, convertError := engine.ConvertToPivot(ctx, amount, fromCode)
		if convertError != nil {
			return models.ConversionResult{}, convertError
		}
		pivotAmount = toPivot.ToAmount
	}

	toAmount := pivotAmount
	if toCode != PivotCode {
		fromPivot, convertError := engine.ConvertFromPivot(ctx, pivotAmount, toCode)
		if convertError != nil {
			return models.ConversionResult{}, convertError
		}
		toAmount = fromPivot.ToAmount
	}

	return models.ConversionResult{
		FromAmount:   amount,
		ToAmount:     toAmount,
		FromCurrency: fromCode,
		ToCurrency:   toCode,
		Rate:         toAmount / amount,
		Timestamp:    time.Now(),
	}, nil
}
