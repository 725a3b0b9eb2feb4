package parity

import (
	"context"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/heavenslive/cred-parity-service/internal/logger"
	"github.com/heavenslive/cred-parity-service/internal/models"
	"github.com/heavenslive/cred-parity-service/internal/source"
)

// PivotCode is the internal pivot currency every conversion is routed through.
const PivotCode = "CRED"

// DefaultTTL is the maximum age of the cache before reads trigger a reload.
const DefaultTTL = 5 * time.Minute

// Cache maintains the latest known mapping from currency code to its metadata
// and parity rate, with bounded staleness. The whole map is replaced on every
// reload, so readers always observe a single data vintage.
type Cache struct {
	src    source.CurrencySource
	logger *logger.Logger
	ttl    time.Duration

	cacheMutex sync.RWMutex
	currencies map[string]models.Currency
	lastUpdate time.Time

	reloadGroup singleflight.Group
}

// NewCache creates a parity cache over the given source. A non-positive ttl
// falls back to DefaultTTL.
func NewCache(src source.CurrencySource, logger *logger.Logger, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache{
		src:        src,
		logger:     logger,
		ttl:        ttl,
		currencies: make(map[string]models.Currency),
	}
}

// LoadCurrencies fetches all active currencies from the source and replaces
// the in-memory map atomically. On fetch failure the previous contents are
// left untouched and a DataSource error is returned. Rows carrying a
// non-positive parity rate are skipped with a warning.
func (cache *Cache) LoadCurrencies(ctx context.Context) error {
	rows, fetchError := cache.src.FetchCurrencies(ctx)
	if fetchError != nil {
		return dataSourceError("failed to load currencies", fetchError)
	}

	next := make(map[string]models.Currency, len(rows))
	for _, currency := range rows {
		if currency.CredParityRate <= 0 {
			cache.logger.Warnf("Skipping currency %s with non-positive parity rate %v",
				currency.CurrencyCode, currency.CredParityRate)
			continue
		}
		next[currency.CurrencyCode] = currency
	}

	cache.cacheMutex.Lock()
	cache.currencies = next
	cache.lastUpdate = time.Now()
	cache.cacheMutex.Unlock()

	cache.logger.Debugf("Parity cache reloaded with %d currencies", len(next))
	return nil
}

// Stale reports whether the cache has never been loaded or its last load is
// older than the TTL. A successful load of zero rows still counts as loaded,
// so an empty table does not cause a reload on every access.
func (cache *Cache) Stale() bool {
	cache.cacheMutex.RLock()
	defer cache.cacheMutex.RUnlock()
	return cache.lastUpdate.IsZero() || time.Since(cache.lastUpdate) > cache.ttl
}

// EnsureFresh reloads the cache if it is stale. Concurrent callers collapse
// into a single in-flight reload.
func (cache *Cache) EnsureFresh(ctx context.Context) error {
	if !cache.Stale() {
		return nil
	}

	_, reloadError, _ := cache.reloadGroup.Do("reload", func() (interface{}, error) {
		// Late arrivals may land after the winning call already reloaded.
		if !cache.Stale() {
			return nil, nil
		}
		return nil, cache.LoadCurrencies(ctx)
	})
	return reloadError
}

// Snapshot returns the currently cached currencies ordered by country name,
// without consulting the source.
func (cache *Cache) Snapshot() []models.Currency {
	cache.cacheMutex.RLock()
	currencies := make([]models.Currency, 0, len(cache.currencies))
	for _, currency := range cache.currencies {
		currencies = append(currencies, currency)
	}
	cache.cacheMutex.RUnlock()

	sort.Slice(currencies, func(i, j int) bool {
		return currencies[i].CountryName < currencies[j].CountryName
	})
	return currencies
}

// GetAllCurrencies returns every cached currency, reloading first when the
// cache is stale. When the source is unavailable and a previous vintage
// exists, the stale snapshot is served instead of the error.
func (cache *Cache) GetAllCurrencies(ctx context.Context) ([]models.Currency, error) {
	if refreshError := cache.refresh(ctx); refreshError != nil {
		return nil, refreshError
	}
	return cache.Snapshot(), nil
}

// GetCurrency returns the cached currency for code, with the same staleness
// and reload behavior as GetAllCurrencies. A missing code is not an error.
func (cache *Cache) GetCurrency(ctx context.Context, code string) (models.Currency, bool, error) {
	if refreshError := cache.refresh(ctx); refreshError != nil {
		return models.Currency{}, false, refreshError
	}

	cache.cacheMutex.RLock()
	currency, found := cache.currencies[code]
	cache.cacheMutex.RUnlock()
	return currency, found, nil
}

// refresh applies the composed read policy: reload when stale, serve the
// previous vintage when the source is down and one exists, propagate the
// failure only on a cold cache.
func (cache *Cache) refresh(ctx context.Context) error {
	refreshError := cache.EnsureFresh(ctx)
	if refreshError == nil {
		return nil
	}

	cache.cacheMutex.RLock()
	warm := !cache.lastUpdate.IsZero()
	cache.cacheMutex.RUnlock()

	if warm {
		cache.logger.Warnf("Serving stale parity data: %v", refreshError)
		return nil
	}
	return refreshError
}
