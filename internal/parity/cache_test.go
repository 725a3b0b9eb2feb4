package parity

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/heavenslive/cred-parity-service/internal/models"
	"github.com/heavenslive/cred-parity-service/internal/testutils"
)

func newTestCache() (*Cache, *testutils.MockSource) {
	mockSource := testutils.NewMockSource(testutils.MockCurrencies())
	return NewCache(mockSource, testutils.MockLogger(), 0), mockSource
}

// expire rewinds the last load so the next read sees a stale cache.
func expire(cache *Cache) {
	cache.cacheMutex.Lock()
	cache.lastUpdate = time.Now().Add(-10 * time.Minute)
	cache.cacheMutex.Unlock()
}

func TestCache_LoadCurrencies(t *testing.T) {
	cache, mockSource := newTestCache()

	if err := cache.LoadCurrencies(context.Background()); err != nil {
		t.Fatalf("LoadCurrencies() error = %v", err)
	}

	if mockSource.FetchCount() != 1 {
		t.Errorf("LoadCurrencies() fetch count = %d, want 1", mockSource.FetchCount())
	}

	currencies := cache.Snapshot()
	if len(currencies) != 3 {
		t.Fatalf("Snapshot() length = %d, want 3", len(currencies))
	}
	// Cosmetic ordering by country name
	if currencies[0].CountryName != "Germany" || currencies[2].CountryName != "United States" {
		t.Errorf("Snapshot() not ordered by country name: %s, %s, %s",
			currencies[0].CountryName, currencies[1].CountryName, currencies[2].CountryName)
	}
}

func TestCache_LoadCurrencies_SkipsNonPositiveRates(t *testing.T) {
	cache, mockSource := newTestCache()
	mockSource.SetCurrencies([]models.Currency{
		{CurrencyCode: "USD", CountryName: "United States", CredParityRate: 1.0},
		{CurrencyCode: "BAD", CountryName: "Nowhere", CredParityRate: 0},
		{CurrencyCode: "NEG", CountryName: "Nowhere Else", CredParityRate: -3},
	})

	if err := cache.LoadCurrencies(context.Background()); err != nil {
		t.Fatalf("LoadCurrencies() error = %v", err)
	}

	if len(cache.Snapshot()) != 1 {
		t.Errorf("Snapshot() length = %d, want 1 (invalid rates skipped)", len(cache.Snapshot()))
	}
	if _, found, _ := cache.GetCurrency(context.Background(), "BAD"); found {
		t.Error("GetCurrency(BAD) found a currency with zero parity rate")
	}
}

func TestCache_LoadCurrencies_FailureKeepsPreviousVintage(t *testing.T) {
	cache, mockSource := newTestCache()

	if err := cache.LoadCurrencies(context.Background()); err != nil {
		t.Fatalf("LoadCurrencies() error = %v", err)
	}

	mockSource.SetError(errors.New("connection refused"))
	err := cache.LoadCurrencies(context.Background())
	if err == nil {
		t.Fatal("LoadCurrencies() expected error, got nil")
	}
	parityError, ok := AsError(err)
	if !ok || parityError.Type != ErrorTypeDataSource {
		t.Errorf("LoadCurrencies() error = %v, want ErrorTypeDataSource", err)
	}

	// Previous contents untouched
	if len(cache.Snapshot()) != 3 {
		t.Errorf("Snapshot() after failed reload length = %d, want 3", len(cache.Snapshot()))
	}
}

func TestCache_GetCurrency(t *testing.T) {
	cache, _ := newTestCache()

	currency, found, err := cache.GetCurrency(context.Background(), "EUR")
	if err != nil {
		t.Fatalf("GetCurrency() error = %v", err)
	}
	if !found {
		t.Fatal("GetCurrency(EUR) not found")
	}
	if currency.CredParityRate != 0.92 {
		t.Errorf("GetCurrency(EUR) rate = %v, want 0.92", currency.CredParityRate)
	}
	if currency.PairCode() != "EUR-CRED" {
		t.Errorf("PairCode() = %s, want EUR-CRED", currency.PairCode())
	}

	// Missing code is not an error
	_, found, err = cache.GetCurrency(context.Background(), "ZZZ")
	if err != nil {
		t.Fatalf("GetCurrency(ZZZ) error = %v", err)
	}
	if found {
		t.Error("GetCurrency(ZZZ) found = true, want false")
	}
}

func TestCache_TTL(t *testing.T) {
	cache, mockSource := newTestCache()
	ctx := context.Background()

	// First read loads the cache
	if _, err := cache.GetAllCurrencies(ctx); err != nil {
		t.Fatalf("GetAllCurrencies() error = %v", err)
	}
	if mockSource.FetchCount() != 1 {
		t.Fatalf("fetch count after first read = %d, want 1", mockSource.FetchCount())
	}

	// Reads within the TTL do not touch the source
	for i := 0; i < 5; i++ {
		if _, err := cache.GetAllCurrencies(ctx); err != nil {
			t.Fatalf("GetAllCurrencies() error = %v", err)
		}
		if _, _, err := cache.GetCurrency(ctx, "USD"); err != nil {
			t.Fatalf("GetCurrency() error = %v", err)
		}
	}
	if mockSource.FetchCount() != 1 {
		t.Errorf("fetch count within TTL = %d, want 1", mockSource.FetchCount())
	}

	// A read after the TTL triggers exactly one reload
	expire(cache)
	if _, err := cache.GetAllCurrencies(ctx); err != nil {
		t.Fatalf("GetAllCurrencies() error = %v", err)
	}
	if mockSource.FetchCount() != 2 {
		t.Errorf("fetch count after staleness event = %d, want 2", mockSource.FetchCount())
	}
}

func TestCache_EmptyLoadSuppressesReloads(t *testing.T) {
	cache, mockSource := newTestCache()
	mockSource.SetCurrencies(nil)
	ctx := context.Background()

	currencies, err := cache.GetAllCurrencies(ctx)
	if err != nil {
		t.Fatalf("GetAllCurrencies() error = %v", err)
	}
	if len(currencies) != 0 {
		t.Fatalf("GetAllCurrencies() length = %d, want 0", len(currencies))
	}

	// A successful zero-row load still stamps the vintage, so further reads
	// inside the TTL must not hammer the source.
	for i := 0; i < 5; i++ {
		if _, err := cache.GetAllCurrencies(ctx); err != nil {
			t.Fatalf("GetAllCurrencies() error = %v", err)
		}
	}
	if mockSource.FetchCount() != 1 {
		t.Errorf("fetch count after empty load = %d, want 1", mockSource.FetchCount())
	}
}

func TestCache_ServesStaleOnSourceFailure(t *testing.T) {
	cache, mockSource := newTestCache()
	ctx := context.Background()

	if _, err := cache.GetAllCurrencies(ctx); err != nil {
		t.Fatalf("GetAllCurrencies() error = %v", err)
	}

	mockSource.SetError(errors.New("connection refused"))
	expire(cache)

	// Staleness is preferable to unavailability: the previous vintage serves
	currencies, err := cache.GetAllCurrencies(ctx)
	if err != nil {
		t.Fatalf("GetAllCurrencies() with failing source error = %v, want stale data", err)
	}
	if len(currencies) != 3 {
		t.Errorf("stale GetAllCurrencies() length = %d, want 3", len(currencies))
	}

	if _, found, err := cache.GetCurrency(ctx, "EUR"); err != nil || !found {
		t.Errorf("stale GetCurrency(EUR) = (found=%v, err=%v), want found", found, err)
	}
}

func TestCache_ColdCacheSourceFailurePropagates(t *testing.T) {
	cache, mockSource := newTestCache()
	mockSource.SetError(errors.New("connection refused"))

	_, err := cache.GetAllCurrencies(context.Background())
	if err == nil {
		t.Fatal("GetAllCurrencies() on cold cache with failing source expected error")
	}
	parityError, ok := AsError(err)
	if !ok || parityError.Type != ErrorTypeDataSource {
		t.Errorf("GetAllCurrencies() error = %v, want ErrorTypeDataSource", err)
	}
}

func TestCache_SingleFlightReload(t *testing.T) {
	cache, mockSource := newTestCache()
	ctx := context.Background()

	if _, err := cache.GetAllCurrencies(ctx); err != nil {
		t.Fatalf("GetAllCurrencies() error = %v", err)
	}

	// Hold the next fetch in flight and hammer the stale cache concurrently;
	// all callers must collapse into one reload.
	mockSource.SetDelay(50 * time.Millisecond)
	expire(cache)

	const readers = 20
	var wg sync.WaitGroup
	for i := 0; i < readers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := cache.GetAllCurrencies(ctx); err != nil {
				t.Errorf("concurrent GetAllCurrencies() error = %v", err)
			}
		}()
	}
	wg.Wait()

	if mockSource.FetchCount() != 2 {
		t.Errorf("fetch count after concurrent staleness = %d, want 2", mockSource.FetchCount())
	}
}

func TestCache_ConcurrentReadsSeeConsistentSnapshots(t *testing.T) {
	cache, mockSource := newTestCache()
	ctx := context.Background()

	if err := cache.LoadCurrencies(ctx); err != nil {
		t.Fatalf("LoadCurrencies() error = %v", err)
	}

	done := make(chan struct{})
	var wg sync.WaitGroup

	// Writer keeps swapping vintages
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-done:
				return
			default:
				if err := cache.LoadCurrencies(ctx); err != nil {
					t.Errorf("LoadCurrencies() error = %v", err)
					return
				}
			}
		}
	}()

	// Readers must always observe a complete vintage, never a partial map
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				currencies := cache.Snapshot()
				if len(currencies) != 3 {
					t.Errorf("Snapshot() length = %d, want 3 (torn snapshot)", len(currencies))
					return
				}
			}
		}()
	}

	time.Sleep(20 * time.Millisecond)
	close(done)
	wg.Wait()

	if mockSource.FetchCount() == 0 {
		t.Error("writer never reloaded")
	}
}
