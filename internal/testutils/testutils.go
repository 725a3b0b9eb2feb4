package testutils

import (
	"context"
	"sync"
	"time"

	"github.com/heavenslive/cred-parity-service/internal/config"
	"github.com/heavenslive/cred-parity-service/internal/logger"
	"github.com/heavenslive/cred-parity-service/internal/models"
)

// MockLogger creates a quiet logger for testing
func MockLogger() *logger.Logger {
	return logger.New("error")
}

// MockConfig creates a mock configuration for testing
func MockConfig() *config.Config {
	return &config.Config{
		Port:              "8081",
		LogLevel:          "debug",
		DatabaseURL:       "postgres://localhost:5432/heavenslive_test?sslmode=disable",
		SourceTimeout:     5 * time.Second,
		ParityCacheTTL:    5 * time.Minute,
		RateLimitEnabled:  true,
		RateLimitRequests: 100,
		RateLimitWindow:   time.Minute,
		RateLimitBurst:    10,
	}
}

// MockCurrencies returns a small fixed set of currencies with parity rates
// expressed as units per CRED.
func MockCurrencies() []models.Currency {
	return []models.Currency{
		{
			CountryCode:    "US",
			CountryName:    "United States",
			CurrencyCode:   "USD",
			CurrencyName:   "US Dollar",
			CurrencySymbol: "$",
			FlagEmoji:      "\U0001F1FA\U0001F1F8",
			CredParityRate: 1.0,
		},
		{
			CountryCode:    "DE",
			CountryName:    "Germany",
			CurrencyCode:   "EUR",
			CurrencyName:   "Euro",
			CurrencySymbol: "€",
			FlagEmoji:      "\U0001F1E9\U0001F1EA",
			CredParityRate: 0.92,
		},
		{
			CountryCode:    "JP",
			CountryName:    "Japan",
			CurrencyCode:   "JPY",
			CurrencyName:   "Japanese Yen",
			CurrencySymbol: "¥",
			FlagEmoji:      "\U0001F1EF\U0001F1F5",
			CredParityRate: 110.0,
		},
	}
}

// MockSource is a scriptable in-memory currency source that records how many
// times it has been queried.
type MockSource struct {
	mu         sync.Mutex
	currencies []models.Currency
	fetchError error
	fetchCount int
	fetchDelay time.Duration
}

// NewMockSource creates a mock source serving the given currencies.
func NewMockSource(currencies []models.Currency) *MockSource {
	return &MockSource{currencies: currencies}
}

// FetchCurrencies returns the scripted currencies or error, honoring an
// optional artificial delay so tests can hold a fetch in flight.
func (mockSource *MockSource) FetchCurrencies(ctx context.Context) ([]models.Currency, error) {
	mockSource.mu.Lock()
	mockSource.fetchCount++
	currencies := append([]models.Currency(nil), mockSource.currencies...)
	fetchError := mockSource.fetchError
	fetchDelay := mockSource.fetchDelay
	mockSource.mu.Unlock()

	if fetchDelay > 0 {
		select {
		case <-time.After(fetchDelay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if fetchError != nil {
		return nil, fetchError
	}
	return currencies, nil
}

// FetchCount reports how many times FetchCurrencies has been called.
func (mockSource *MockSource) FetchCount() int {
	mockSource.mu.Lock()
	defer mockSource.mu.Unlock()
	return mockSource.fetchCount
}

// SetCurrencies replaces the scripted currencies.
func (mockSource *MockSource) SetCurrencies(currencies []models.Currency) {
	mockSource.mu.Lock()
	mockSource.currencies = currencies
	mockSource.mu.Unlock()
}

// SetError makes every subsequent fetch fail with fetchError.
func (mockSource *MockSource) SetError(fetchError error) {
	mockSource.mu.Lock()
	mockSource.fetchError = fetchError
	mockSource.mu.Unlock()
}

// SetDelay makes every subsequent fetch take at least fetchDelay.
func (mockSource *MockSource) SetDelay(fetchDelay time.Duration) {
	mockSource.mu.Lock()
	mockSource.fetchDelay = fetchDelay
	mockSource.mu.Unlock()
}
