package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"sort"
	"sync"
	"time"
)

// LoadTestConfig holds configuration for load testing the convert endpoint
type LoadTestConfig struct {
	URL             string
	FromCurrency    string
	ToCurrency      string
	Amount          float64
	ConcurrentUsers int
	RequestsPerUser int
	Timeout         time.Duration
	TestDuration    time.Duration
	RampUpDuration  time.Duration
	ThinkTime       time.Duration
}

// LoadTestResult holds the result of a single request
type LoadTestResult struct {
	UserID     int
	RequestID  int
	StatusCode int
	Duration   time.Duration
	Success    bool
	Error      error
	Timestamp  time.Time
}

// LoadTestSummary holds the summary of load test results
type LoadTestSummary struct {
	TotalRequests       int
	SuccessfulRequests  int
	FailedRequests      int
	TotalDuration       time.Duration
	AverageResponseTime time.Duration
	MinResponseTime     time.Duration
	MaxResponseTime     time.Duration
	RequestsPerSecond   float64
	ErrorRate           float64
	ResponseTime95th    time.Duration
	ResponseTime99th    time.Duration
}

func main() {
	var config LoadTestConfig

	flag.StringVar(&config.URL, "url", "http://localhost:8081/api/v1/convert", "Target URL to test")
	flag.StringVar(&config.FromCurrency, "from", "USD", "Source currency code")
	flag.StringVar(&config.ToCurrency, "to", "EUR", "Target currency code")
	flag.Float64Var(&config.Amount, "amount", 100, "Amount to convert")
	flag.IntVar(&config.ConcurrentUsers, "users", 10, "Number of concurrent users")
	flag.IntVar(&config.RequestsPerUser, "requests", 100, "Number of requests per user")
	flag.DurationVar(&config.Timeout, "timeout", 30*time.Second, "Request timeout")
	flag.DurationVar(&config.TestDuration, "duration", 0, "Test duration (0 = run until all requests complete)")
	flag.DurationVar(&config.RampUpDuration, "rampup", 5*time.Second, "Ramp-up duration")
	flag.DurationVar(&config.ThinkTime, "think", 100*time.Millisecond, "Think time between requests")
	flag.Parse()

	fmt.Printf("Starting load test...\n")
	fmt.Printf("URL: %s\n", config.URL)
	fmt.Printf("Conversion: %v %s -> %s\n", config.Amount, config.FromCurrency, config.ToCurrency)
	fmt.Printf("Concurrent Users: %d\n", config.ConcurrentUsers)
	fmt.Printf("Requests per User: %d\n", config.RequestsPerUser)
	fmt.Printf("Timeout: %v\n", config.Timeout)
	fmt.Printf("Ramp-up Duration: %v\n", config.RampUpDuration)
	fmt.Printf("Think Time: %v\n", config.ThinkTime)
	fmt.Printf("Test Duration: %v\n", config.TestDuration)
	fmt.Println()

	summary := runLoadTest(config)
	printSummary(summary)
}

func runLoadTest(config LoadTestConfig) LoadTestSummary {
	results := make(chan LoadTestResult, config.ConcurrentUsers*config.RequestsPerUser)

	// Create HTTP client with timeout
	client := &http.Client{
		Timeout: config.Timeout,
	}

	// Pre-build the request body, it is the same for every request
	requestBody, err := json.Marshal(map[string]interface{}{
		"amount":       config.Amount,
		"fromCurrency": config.FromCurrency,
		"toCurrency":   config.ToCurrency,
	})
	if err != nil {
		fmt.Printf("Failed to build request body: %v\n", err)
		return LoadTestSummary{}
	}

	startTime := time.Now()

	var ctx context.Context
	var cancel context.CancelFunc

	if config.TestDuration > 0 {
		ctx, cancel = context.WithTimeout(context.Background(), config.TestDuration)
		defer cancel()
	} else {
		ctx = context.Background()
	}

	// Launch user goroutines
	var wg sync.WaitGroup
	rampUpDelay := config.RampUpDuration / time.Duration(config.ConcurrentUsers)

	for userID := 0; userID < config.ConcurrentUsers; userID++ {
		wg.Add(1)
		go func(uid int) {
			defer wg.Done()

			// Ramp-up delay
			time.Sleep(time.Duration(uid) * rampUpDelay)

			for reqID := 0; reqID < config.RequestsPerUser; reqID++ {
				select {
				case <-ctx.Done():
					return
				default:
				}

				results <- makeRequest(client, config.URL, requestBody, uid, reqID)

				if config.ThinkTime > 0 {
					time.Sleep(config.ThinkTime)
				}
			}
		}(userID)
	}

	wg.Wait()
	close(results)

	return processResults(results, time.Since(startTime))
}

func makeRequest(client *http.Client, url string, body []byte, userID, requestID int) LoadTestResult {
	start := time.Now()

	resp, err := client.Post(url, "application/json", bytes.NewReader(body))
	duration := time.Since(start)

	result := LoadTestResult{
		UserID:    userID,
		RequestID: requestID,
		Duration:  duration,
		Timestamp: start,
		Error:     err,
	}

	if err != nil {
		result.Success = false
		result.StatusCode = 0
		return result
	}

	result.StatusCode = resp.StatusCode
	result.Success = resp.StatusCode >= 200 && resp.StatusCode < 300

	if resp.Body != nil {
		resp.Body.Close()
	}

	return result
}

func processResults(results <-chan LoadTestResult, totalDuration time.Duration) LoadTestSummary {
	var summary LoadTestSummary
	var responseTimes []time.Duration

	summary.TotalDuration = totalDuration

	for result := range results {
		summary.TotalRequests++
		responseTimes = append(responseTimes, result.Duration)

		if result.Success {
			summary.SuccessfulRequests++
		} else {
			summary.FailedRequests++
		}
	}

	if summary.TotalRequests == 0 {
		return summary
	}

	summary.ErrorRate = float64(summary.FailedRequests) / float64(summary.TotalRequests) * 100
	summary.RequestsPerSecond = float64(summary.TotalRequests) / totalDuration.Seconds()

	if len(responseTimes) > 0 {
		var totalResponseTime time.Duration
		summary.MinResponseTime = responseTimes[0]
		summary.MaxResponseTime = responseTimes[0]

		for _, rt := range responseTimes {
			totalResponseTime += rt
			if rt < summary.MinResponseTime {
				summary.MinResponseTime = rt
			}
			if rt > summary.MaxResponseTime {
				summary.MaxResponseTime = rt
			}
		}

		summary.AverageResponseTime = totalResponseTime / time.Duration(len(responseTimes))
		summary.ResponseTime95th = calculatePercentile(responseTimes, 95)
		summary.ResponseTime99th = calculatePercentile(responseTimes, 99)
	}

	return summary
}

func calculatePercentile(times []time.Duration, percentile int) time.Duration {
	if len(times) == 0 {
		return 0
	}

	sorted := append([]time.Duration(nil), times...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	index := (percentile * len(sorted)) / 100
	if index >= len(sorted) {
		index = len(sorted) - 1
	}
	return sorted[index]
}

func printSummary(summary LoadTestSummary) {
	fmt.Println("Load test complete")
	fmt.Printf("Total Requests: %d\n", summary.TotalRequests)
	fmt.Printf("Successful: %d\n", summary.SuccessfulRequests)
	fmt.Printf("Failed: %d\n", summary.FailedRequests)
	fmt.Printf("Error Rate: %.2f%%\n", summary.ErrorRate)
	fmt.Printf("Total Duration: %v\n", summary.TotalDuration)
	fmt.Printf("Requests/sec: %.2f\n", summary.RequestsPerSecond)
	fmt.Printf("Avg Response Time: %v\n", summary.AverageResponseTime)
	fmt.Printf("Min Response Time: %v\n", summary.MinResponseTime)
	fmt.Printf("Max Response Time: %v\n", summary.MaxResponseTime)
	fmt.Printf("95th Percentile: %v\n", summary.ResponseTime95th)
	fmt.Printf("99th Percentile: %v\n", summary.ResponseTime99th)
}
