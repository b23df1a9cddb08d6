package main

import (
	"bytes"
	"context"
	"encoding/json"
	"math/rand"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"cosmossdk.io/log"
	"github.com/stretchr/testify/require"

	"github.com/openalpha/omnipool/api"
)

func TestParseAssets(t *testing.T) {
	ids, err := parseAssets("0, 2,1000")
	require.NoError(t, err)
	require.Equal(t, []uint32{0, 2, 1000}, ids)

	_, err = parseAssets("0")
	require.Error(t, err)
	_, err = parseAssets("0,x")
	require.Error(t, err)
	_, err = parseAssets("2,2")
	require.Error(t, err)
}

func TestPickPairIsDistinct(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	assets := []uint32{0, 2, 1000}
	for i := 0; i < 200; i++ {
		in, out := pickPair(rng, assets)
		require.NotEqual(t, in, out)
	}
}

func TestPercentile(t *testing.T) {
	r := newResults()
	require.Zero(t, r.percentile(0.5))

	r.Latencies = []int64{1000, 2000, 3000, 4000}
	require.Equal(t, 3.0, r.percentile(0.5))
	require.Equal(t, 4.0, r.percentile(0.99))
}

func TestRunAgainstSandbox(t *testing.T) {
	cfg := api.DefaultConfig()
	cfg.DisableRateLimit = true
	cfg.Seed.Assets = []api.SeedAsset{{Name: "DOT", Price: "0.65", Amount: "2000000000000000"}}
	server, err := api.NewServer(cfg, log.NewNopLogger())
	require.NoError(t, err)
	ts := httptest.NewServer(server.Handler())
	defer ts.Close()

	var out bytes.Buffer
	tester := NewLoadTester(&Config{
		Target:      ts.URL,
		Concurrency: 2,
		Duration:    300 * time.Millisecond,
		Assets:      []uint32{0, 2, server.AssetIDs()["DOT"]},
		Amount:      "1000000000",
		TraderCount: 3,
	}, newHTTPTrader(ts.URL, "1000000000000000"), &out)

	require.NoError(t, tester.Run(context.Background()))
	require.Positive(t, tester.results.TotalRequests)
	require.Positive(t, tester.results.SuccessRequests)
	require.Contains(t, out.String(), "Sell Statistics")

	report := filepath.Join(t.TempDir(), "report.json")
	require.NoError(t, tester.SaveReport(report))
	bz, err := os.ReadFile(report)
	require.NoError(t, err)
	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(bz, &decoded))
	require.Contains(t, decoded, "latency")
}

func TestRunNeedsTwoAssets(t *testing.T) {
	tester := NewLoadTester(&Config{Concurrency: 1, Assets: []uint32{0}}, newHTTPTrader("http://127.0.0.1:1", "1"), &bytes.Buffer{})
	require.Error(t, tester.Run(context.Background()))
}
