package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/heavenslive/cred-parity-service/internal/models"
	"github.com/heavenslive/cred-parity-service/internal/parity"
	"github.com/heavenslive/cred-parity-service/internal/testutils"
)

// TestConcurrentConversions drives the full router from many goroutines while
// the cache is forced through reloads, checking for races and torn responses.
func TestConcurrentConversions(t *testing.T) {
	mockSource := testutils.NewMockSource(testutils.MockCurrencies())
	logger := testutils.MockLogger()

	// Tiny TTL so reloads happen during the test
	cache := parity.NewCache(mockSource, logger, 10*time.Millisecond)
	engine := parity.NewEngine(cache, logger)
	handlers := NewHandlers(HandlerConfig{
		Logger: logger,
		Cache:  cache,
		Engine: engine,
	})

	gin.SetMode(gin.TestMode)
	server := httptest.NewServer(handlers.SetupRoutes())
	defer server.Close()

	requestBody, _ := json.Marshal(models.ConvertRequest{
		Amount:       100,
		FromCurrency: "USD",
		ToCurrency:   "EUR",
	})

	const numGoroutines = 20
	const requestsPerGoroutine = 10

	var wg sync.WaitGroup
	var mu sync.Mutex
	successCount := 0

	for i := 0; i < numGoroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			client := &http.Client{Timeout: 5 * time.Second}
			for j := 0; j < requestsPerGoroutine; j++ {
				resp, err := client.Post(server.URL+"/api/v1/convert", "application/json", bytes.NewReader(requestBody))
				if err != nil {
					t.Errorf("request failed: %v", err)
					return
				}

				var response models.ConvertResponse
				decodeError := json.NewDecoder(resp.Body).Decode(&response)
				resp.Body.Close()

				if resp.StatusCode != http.StatusOK {
					t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusOK)
					return
				}
				if decodeError != nil {
					t.Errorf("decode failed: %v", decodeError)
					return
				}
				if response.Conversion.ToAmount != 92.0 {
					t.Errorf("toAmount = %v, want 92", response.Conversion.ToAmount)
					return
				}

				mu.Lock()
				successCount++
				mu.Unlock()
			}
		}()
	}

	wg.Wait()

	if successCount != numGoroutines*requestsPerGoroutine {
		t.Errorf("successful requests = %d, want %d", successCount, numGoroutines*requestsPerGoroutine)
	}
	if mockSource.FetchCount() == 0 {
		t.Error("cache never loaded from the source")
	}
}
