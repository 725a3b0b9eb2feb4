package source

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/heavenslive/cred-parity-service/internal/models"
)

const listActiveCurrenciesQuery = `
	SELECT country_code, country_name, currency_code, currency_name, currency_symbol, flag_emoji, cred_parity_rate
	FROM currencies
	WHERE is_active = true
	ORDER BY country_name;
`

// PostgresSource reads currency metadata from the platform's currencies table.
type PostgresSource struct {
	pool    *pgxpool.Pool
	timeout time.Duration
}

// NewPostgresSource creates a currency source backed by the given pool. Every
// fetch is bounded by timeout when it is positive.
func NewPostgresSource(pool *pgxpool.Pool, timeout time.Duration) *PostgresSource {
	return &PostgresSource{
		pool:    pool,
		timeout: timeout,
	}
}

// Ensure implementation matches interface
var _ CurrencySource = (*PostgresSource)(nil)

// FetchCurrencies returns all active currencies ordered by country name.
func (s *PostgresSource) FetchCurrencies(ctx context.Context) ([]models.Currency, error) {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	rows, err := s.pool.Query(ctx, listActiveCurrenciesQuery)
	if err != nil {
		return nil, fmt.Errorf("failed to query currencies: %w", err)
	}
	defer rows.Close()

	currencies, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.Currency, error) {
		var currency models.Currency
		err := row.Scan(
			&currency.CountryCode,
			&currency.CountryName,
			&currency.CurrencyCode,
			&currency.CurrencyName,
			&currency.CurrencySymbol,
			&currency.FlagEmoji,
			&currency.CredParityRate,
		)
		return currency, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan currencies: %w", err)
	}

	return currencies, nil
}
