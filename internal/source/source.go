package source

import (
	"context"

	"github.com/heavenslive/cred-parity-service/internal/models"
)

// CurrencySource supplies the full set of active currencies from the currency
// metadata store of record. Implementations are expected to return rows
// ordered by country name.
type CurrencySource interface {
	FetchCurrencies(ctx context.Context) ([]models.Currency, error)
}
