package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// Config is the load test configuration
type Config struct {
	Target      string
	Concurrency int
	Duration    time.Duration
	RampUp      time.Duration
	Assets      []uint32
	Amount      string
	TraderCount int
}

// Results are the collected measurements
type Results struct {
	TotalRequests     int64
	SuccessRequests   int64
	FailedRequests    int64
	TotalLatency      int64 // microseconds
	MinLatency        int64
	MaxLatency        int64
	Latencies         []int64
	Outcomes          map[string]int64
	StartTime         time.Time
	EndTime           time.Time
	RequestsPerSecond float64
	mu                sync.Mutex
}

// Trader submits sells on behalf of the load test. Prepare runs once before
// the workers start and returns the accounts workers trade from.
type Trader interface {
	Prepare(ctx context.Context, count int, assets []uint32) ([]string, error)
	Sell(ctx context.Context, who string, assetIn, assetOut uint32, amount string) (outcome string, err error)
}

// LoadTester fires random sells between the configured assets
type LoadTester struct {
	config  *Config
	trader  Trader
	out     io.Writer
	results *Results
	wg      sync.WaitGroup
	stopCh  chan struct{}
}

// NewLoadTester creates a load tester writing its report to out
func NewLoadTester(config *Config, trader Trader, out io.Writer) *LoadTester {
	return &LoadTester{
		config:  config,
		trader:  trader,
		out:     out,
		results: newResults(),
		stopCh:  make(chan struct{}),
	}
}

func newResults() *Results {
	return &Results{
		MinLatency: int64(^uint64(0) >> 1), // Max int64
		Outcomes:   make(map[string]int64),
		Latencies:  make([]int64, 0),
	}
}

// Run prepares the traders and runs the workers for the configured duration
func (lt *LoadTester) Run(ctx context.Context) error {
	if len(lt.config.Assets) < 2 {
		return fmt.Errorf("at least two assets are required, got %d", len(lt.config.Assets))
	}
	if lt.config.Concurrency <= 0 {
		return fmt.Errorf("concurrency must be positive")
	}

	fmt.Fprintf(lt.out, "Configuration:\n")
	fmt.Fprintf(lt.out, "  Target:       %s\n", lt.config.Target)
	fmt.Fprintf(lt.out, "  Concurrency:  %d workers\n", lt.config.Concurrency)
	fmt.Fprintf(lt.out, "  Duration:     %v\n", lt.config.Duration)
	fmt.Fprintf(lt.out, "  Assets:       %v\n", lt.config.Assets)
	fmt.Fprintf(lt.out, "  Sell amount:  %s\n", lt.config.Amount)
	fmt.Fprintln(lt.out)

	fmt.Fprint(lt.out, "Preparing traders... ")
	traders, err := lt.trader.Prepare(ctx, lt.config.TraderCount, lt.config.Assets)
	if err != nil {
		fmt.Fprintln(lt.out, "FAILED")
		return err
	}
	fmt.Fprintf(lt.out, "%d ready\n", len(traders))

	lt.results.StartTime = time.Now()

	// Ramp-up workers
	workersPerInterval := lt.config.Concurrency / 10
	if workersPerInterval < 1 {
		workersPerInterval = 1
	}
	rampUpInterval := lt.config.RampUp / 10

	deadline := time.After(lt.config.Duration)
	started := 0
	for started < lt.config.Concurrency {
		toAdd := min(workersPerInterval, lt.config.Concurrency-started)
		for i := 0; i < toAdd; i++ {
			lt.wg.Add(1)
			go lt.worker(ctx, started+i, traders)
		}
		started += toAdd
		if started < lt.config.Concurrency && rampUpInterval > 0 {
			time.Sleep(rampUpInterval)
		}
	}

	go lt.reportProgress()

	select {
	case <-deadline:
	case <-ctx.Done():
	}
	close(lt.stopCh)
	lt.wg.Wait()

	lt.results.EndTime = time.Now()
	lt.calculateMetrics()
	lt.printResults()
	return nil
}

func (lt *LoadTester) worker(ctx context.Context, id int, traders []string) {
	defer lt.wg.Done()
	rng := rand.New(rand.NewSource(time.Now().UnixNano() + int64(id)))

	for {
		select {
		case <-lt.stopCh:
			return
		default:
		}

		who := traders[rng.Intn(len(traders))]
		in, out := pickPair(rng, lt.config.Assets)

		start := time.Now()
		outcome, err := lt.trader.Sell(ctx, who, in, out, lt.config.Amount)
		latency := time.Since(start).Microseconds()
		if err != nil {
			outcome = "error: " + err.Error()
		}
		lt.recordLatency(latency, err == nil && outcome == outcomeOK, outcome)
	}
}

// pickPair returns two distinct assets
func pickPair(rng *rand.Rand, assets []uint32) (uint32, uint32) {
	i := rng.Intn(len(assets))
	j := rng.Intn(len(assets) - 1)
	if j >= i {
		j++
	}
	return assets[i], assets[j]
}

const outcomeOK = "ok"

func (lt *LoadTester) recordLatency(latency int64, success bool, outcome string) {
	atomic.AddInt64(&lt.results.TotalRequests, 1)
	atomic.AddInt64(&lt.results.TotalLatency, latency)

	if success {
		atomic.AddInt64(&lt.results.SuccessRequests, 1)
	} else {
		atomic.AddInt64(&lt.results.FailedRequests, 1)
	}

	lt.results.mu.Lock()
	defer lt.results.mu.Unlock()
	lt.results.Latencies = append(lt.results.Latencies, latency)
	if latency < lt.results.MinLatency {
		lt.results.MinLatency = latency
	}
	if latency > lt.results.MaxLatency {
		lt.results.MaxLatency = latency
	}
	lt.results.Outcomes[outcome]++
}

func (lt *LoadTester) reportProgress() {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-lt.stopCh:
			return
		case <-ticker.C:
			total := atomic.LoadInt64(&lt.results.TotalRequests)
			success := atomic.LoadInt64(&lt.results.SuccessRequests)
			failed := atomic.LoadInt64(&lt.results.FailedRequests)
			elapsed := time.Since(lt.results.StartTime).Seconds()

			fmt.Fprintf(lt.out, "\r  Progress: %d sells (%.0f/s), Success: %d, Failed: %d",
				total, float64(total)/elapsed, success, failed)
		}
	}
}

func (lt *LoadTester) calculateMetrics() {
	elapsed := lt.results.EndTime.Sub(lt.results.StartTime).Seconds()
	if elapsed > 0 {
		lt.results.RequestsPerSecond = float64(lt.results.TotalRequests) / elapsed
	}
	sort.Slice(lt.results.Latencies, func(i, j int) bool {
		return lt.results.Latencies[i] < lt.results.Latencies[j]
	})
}

// percentile returns the p-th latency in ms. Latencies must be sorted.
func (r *Results) percentile(p float64) float64 {
	if len(r.Latencies) == 0 {
		return 0
	}
	index := int(float64(len(r.Latencies)) * p)
	if index >= len(r.Latencies) {
		index = len(r.Latencies) - 1
	}
	return float64(r.Latencies[index]) / 1000
}

func (r *Results) averageMs() float64 {
	if r.TotalRequests == 0 {
		return 0
	}
	return float64(r.TotalLatency) / float64(r.TotalRequests) / 1000
}

func (r *Results) successRate() float64 {
	if r.TotalRequests == 0 {
		return 0
	}
	return float64(r.SuccessRequests) / float64(r.TotalRequests) * 100
}

func (lt *LoadTester) printResults() {
	r := lt.results
	fmt.Fprintln(lt.out)
	fmt.Fprintln(lt.out)
	fmt.Fprintf(lt.out, "Test Duration:        %v\n", r.EndTime.Sub(r.StartTime).Round(time.Millisecond))
	fmt.Fprintln(lt.out)

	fmt.Fprintln(lt.out, "── Sell Statistics ────────────────────────────────────────────")
	fmt.Fprintf(lt.out, "  Total:              %d\n", r.TotalRequests)
	fmt.Fprintf(lt.out, "  Successful:         %d (%.2f%%)\n", r.SuccessRequests, r.successRate())
	fmt.Fprintf(lt.out, "  Failed:             %d\n", r.FailedRequests)
	fmt.Fprintf(lt.out, "  Sells/Second:       %.2f\n", r.RequestsPerSecond)
	fmt.Fprintln(lt.out)

	fmt.Fprintln(lt.out, "── Latency Statistics (ms) ────────────────────────────────────")
	if r.TotalRequests > 0 {
		fmt.Fprintf(lt.out, "  Min:                %.2f ms\n", float64(r.MinLatency)/1000)
		fmt.Fprintf(lt.out, "  Max:                %.2f ms\n", float64(r.MaxLatency)/1000)
	}
	fmt.Fprintf(lt.out, "  Average:            %.2f ms\n", r.averageMs())
	fmt.Fprintf(lt.out, "  P50 (Median):       %.2f ms\n", r.percentile(0.50))
	fmt.Fprintf(lt.out, "  P90:                %.2f ms\n", r.percentile(0.90))
	fmt.Fprintf(lt.out, "  P99:                %.2f ms\n", r.percentile(0.99))
	fmt.Fprintln(lt.out)

	fmt.Fprintln(lt.out, "── Outcomes ───────────────────────────────────────────────────")
	outcomes := make([]string, 0, len(r.Outcomes))
	for outcome := range r.Outcomes {
		outcomes = append(outcomes, outcome)
	}
	sort.Strings(outcomes)
	for _, outcome := range outcomes {
		fmt.Fprintf(lt.out, "  %-40s %d\n", outcome, r.Outcomes[outcome])
	}
	fmt.Fprintln(lt.out)
}

// SaveReport writes the results as JSON
func (lt *LoadTester) SaveReport(filename string) error {
	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	r := lt.results
	report := map[string]interface{}{
		"test_config": map[string]interface{}{
			"target":       lt.config.Target,
			"concurrency":  lt.config.Concurrency,
			"duration":     lt.config.Duration.String(),
			"assets":       lt.config.Assets,
			"amount":       lt.config.Amount,
			"trader_count": lt.config.TraderCount,
		},
		"summary": map[string]interface{}{
			"test_duration":    r.EndTime.Sub(r.StartTime).String(),
			"total_sells":      r.TotalRequests,
			"success_sells":    r.SuccessRequests,
			"failed_sells":     r.FailedRequests,
			"success_rate":     fmt.Sprintf("%.2f%%", r.successRate()),
			"sells_per_second": r.RequestsPerSecond,
		},
		"latency": map[string]interface{}{
			"avg_ms": r.averageMs(),
			"p50_ms": r.percentile(0.50),
			"p90_ms": r.percentile(0.90),
			"p99_ms": r.percentile(0.99),
		},
		"outcomes":  r.Outcomes,
		"timestamp": time.Now().Format(time.RFC3339),
	}

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	return encoder.Encode(report)
}
