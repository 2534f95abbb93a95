package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

var (
	requestCount  int64
	successCount  int64
	failCount     int64
	totalLatency  int64 // nanoseconds
	minLatency    int64 = 1 << 62
	maxLatency    int64
	latencies     []int64
	latenciesLock sync.Mutex
	statusCounts  = map[int]int64{}
)

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: go run tools/loadtest.go <base-url> [samples|refresh|mixed] [workers] [duration] [users]")
		fmt.Println("Example: go run tools/loadtest.go http://localhost:8080 mixed 50 30s 10")
		os.Exit(1)
	}

	baseURL := strings.TrimRight(os.Args[1], "/")
	mode := "samples"
	workers := 50
	duration := 30 * time.Second
	users := 10

	if len(os.Args) > 2 {
		mode = os.Args[2]
	}
	if len(os.Args) > 3 {
		fmt.Sscanf(os.Args[3], "%d", &workers)
	}
	if len(os.Args) > 4 {
		if d, err := time.ParseDuration(os.Args[4]); err == nil {
			duration = d
		}
	}
	if len(os.Args) > 5 {
		fmt.Sscanf(os.Args[5], "%d", &users)
	}
	if workers < 1 {
		workers = 1
	}
	if users < 1 {
		users = 1
	}
	switch mode {
	case "samples", "refresh", "mixed":
	default:
		fmt.Printf("unknown mode %q\n", mode)
		os.Exit(1)
	}

	fmt.Printf("Load Test Configuration:\n")
	fmt.Printf("  Base URL: %s\n", baseURL)
	fmt.Printf("  Mode:     %s\n", mode)
	fmt.Printf("  Workers:  %d\n", workers)
	fmt.Printf("  Users:    %d\n", users)
	fmt.Printf("  Duration: %v\n\n", duration)

	latencies = make([]int64, 0, 10000)
	startTime := time.Now()
	endTime := startTime.Add(duration)

	client := &http.Client{
		Timeout: 10 * time.Second,
		Transport: &http.Transport{
			MaxIdleConns:        workers,
			MaxIdleConnsPerHost: workers,
			IdleConnTimeout:     90 * time.Second,
		},
	}

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			worker(client, baseURL, mode, id, users, endTime)
		}(w)
	}

	wg.Wait()
	printResults(time.Since(startTime))
}

func worker(client *http.Client, baseURL, mode string, id, users int, endTime time.Time) {
	for i := 0; time.Now().Before(endTime); i++ {
		refresh := mode == "refresh" || (mode == "mixed" && i%10 == 9)
		if refresh {
			user := fmt.Sprintf("user-%d", (id+i)%users)
			sendRequest(client, baseURL+"/api/v1/refresh", map[string]any{"user_id": user})
			continue
		}
		sendRequest(client, baseURL+"/api/v1/samples", map[string]any{"samples": syntheticSamples()})
	}
}

// syntheticSamples returns one heart-rate reading and one step interval
// ending now.
func syntheticSamples() []map[string]any {
	now := time.Now().UTC()
	n := now.UnixNano()
	return []map[string]any{
		{
			"metric":     "heart_rate",
			"value":      60 + n%40,
			"start_time": now.Format(time.RFC3339Nano),
		},
		{
			"metric":     "steps",
			"value":      n % 200,
			"start_time": now.Add(-time.Minute).Format(time.RFC3339Nano),
			"end_time":   now.Format(time.RFC3339Nano),
		},
	}
}

func sendRequest(client *http.Client, url string, body any) {
	jsonData, _ := json.Marshal(body)
	req, _ := http.NewRequest(http.MethodPost, url, bytes.NewBuffer(jsonData))
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := client.Do(req)
	latency := time.Since(start)

	atomic.AddInt64(&requestCount, 1)

	status := 0
	if resp != nil {
		status = resp.StatusCode
		resp.Body.Close()
	}
	latenciesLock.Lock()
	statusCounts[status]++
	latenciesLock.Unlock()

	// 409 means a refresh for the user was already running; the service
	// answered correctly.
	if err != nil || (status >= 300 && status != http.StatusConflict) {
		atomic.AddInt64(&failCount, 1)
		return
	}

	atomic.AddInt64(&successCount, 1)

	latencyNs := latency.Nanoseconds()
	atomic.AddInt64(&totalLatency, latencyNs)

	for {
		oldMin := atomic.LoadInt64(&minLatency)
		if latencyNs >= oldMin {
			break
		}
		if atomic.CompareAndSwapInt64(&minLatency, oldMin, latencyNs) {
			break
		}
	}

	for {
		oldMax := atomic.LoadInt64(&maxLatency)
		if latencyNs <= oldMax {
			break
		}
		if atomic.CompareAndSwapInt64(&maxLatency, oldMax, latencyNs) {
			break
		}
	}

	latenciesLock.Lock()
	latencies = append(latencies, latencyNs)
	latenciesLock.Unlock()
}

func percentile(sorted []int64, p int) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	idx := len(sorted) * p / 100
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return time.Duration(sorted[idx])
}

func printResults(duration time.Duration) {
	total := atomic.LoadInt64(&requestCount)
	success := atomic.LoadInt64(&successCount)
	failed := atomic.LoadInt64(&failCount)
	totalLat := atomic.LoadInt64(&totalLatency)
	minLat := atomic.LoadInt64(&minLatency)
	maxLat := atomic.LoadInt64(&maxLatency)

	avgLatency := time.Duration(0)
	if success > 0 {
		avgLatency = time.Duration(totalLat / success)
	} else {
		minLat = 0
	}

	latenciesLock.Lock()
	sorted := make([]int64, len(latencies))
	copy(sorted, latencies)
	codes := make([]int, 0, len(statusCounts))
	for code := range statusCounts {
		codes = append(codes, code)
	}
	counts := make(map[int]int64, len(statusCounts))
	for code, n := range statusCounts {
		counts[code] = n
	}
	latenciesLock.Unlock()

	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	sort.Ints(codes)

	successRate := 0.0
	if total > 0 {
		successRate = float64(success) / float64(total) * 100
	}

	fmt.Println("\n==========================================")
	fmt.Println("Load Test Results")
	fmt.Println("==========================================")
	fmt.Printf("Duration:       %v\n", duration)
	fmt.Printf("Total Requests: %d\n", total)
	fmt.Printf("Successful:     %d\n", success)
	fmt.Printf("Failed:         %d\n", failed)
	fmt.Printf("Success Rate:   %.2f%%\n", successRate)
	fmt.Printf("Requests/sec:   %.2f\n", float64(total)/duration.Seconds())
	fmt.Println("\nStatus Codes:")
	for _, code := range codes {
		label := fmt.Sprintf("%d", code)
		if code == 0 {
			label = "error"
		}
		fmt.Printf("  %-6s %d\n", label, counts[code])
	}
	fmt.Println("\nLatency Statistics:")
	fmt.Printf("  Min:          %v\n", time.Duration(minLat))
	fmt.Printf("  Max:          %v\n", time.Duration(maxLat))
	fmt.Printf("  Average:      %v\n", avgLatency)
	fmt.Printf("  p50:          %v\n", percentile(sorted, 50))
	fmt.Printf("  p95:          %v\n", percentile(sorted, 95))
	fmt.Printf("  p99:          %v\n", percentile(sorted, 99))
	fmt.Println("==========================================")
}
