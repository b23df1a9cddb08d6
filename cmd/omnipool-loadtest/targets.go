package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cosmos/cosmos-sdk/crypto/keys/secp256k1"
	sdk "github.com/cosmos/cosmos-sdk/types"

	"github.com/openalpha/omnipool/api/types"
	"github.com/openalpha/omnipool/pkg/grpcclient"
	omnipooltypes "github.com/openalpha/omnipool/x/omnipool/types"
)

// httpTrader sells through the sandbox API. Traders are fresh accounts funded
// through the faucet.
type httpTrader struct {
	baseURL string
	fund    string
	client  *http.Client
}

func newHTTPTrader(baseURL, fund string) *httpTrader {
	return &httpTrader{
		baseURL: baseURL,
		fund:    fund,
		client: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				MaxIdleConns:        1000,
				MaxIdleConnsPerHost: 100,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
}

func (t *httpTrader) Prepare(ctx context.Context, count int, assets []uint32) ([]string, error) {
	if err := t.checkHealth(ctx); err != nil {
		return nil, fmt.Errorf("sandbox API is not healthy: %w", err)
	}
	if count <= 0 {
		count = 1
	}
	traders := make([]string, count)
	for i := range traders {
		traders[i] = sdk.AccAddress(secp256k1.GenPrivKey().PubKey().Address()).String()
		for _, asset := range assets {
			status, body, err := t.post(ctx, "/faucet", &types.FaucetRequest{Who: traders[i], AssetID: asset, Amount: t.fund})
			if err != nil {
				return nil, err
			}
			if status != http.StatusOK {
				return nil, fmt.Errorf("faucet asset %d: HTTP %d: %s", asset, status, body)
			}
		}
	}
	return traders, nil
}

func (t *httpTrader) Sell(ctx context.Context, who string, assetIn, assetOut uint32, amount string) (string, error) {
	status, body, err := t.post(ctx, "/sell", &omnipooltypes.MsgSell{
		Who:          who,
		AssetIn:      assetIn,
		AssetOut:     assetOut,
		Amount:       amount,
		MinBuyAmount: "0",
	})
	if err != nil {
		return "", err
	}
	if status == http.StatusOK {
		return outcomeOK, nil
	}
	var apiErr struct {
		Error string `json:"error"`
	}
	json.Unmarshal(body, &apiErr)
	return fmt.Sprintf("HTTP %d %s", status, apiErr.Error), nil
}

func (t *httpTrader) checkHealth(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.baseURL+"/health", nil)
	if err != nil {
		return err
	}
	resp, err := t.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unhealthy status: %d", resp.StatusCode)
	}
	return nil
}

func (t *httpTrader) post(ctx context.Context, path string, payload interface{}) (int, []byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return 0, nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()
	respBody, err := io.ReadAll(resp.Body)
	return resp.StatusCode, respBody, err
}

// grpcTrader signs sells with one funded key and broadcasts them to a node
type grpcTrader struct {
	client *grpcclient.Client
}

func (t *grpcTrader) Prepare(ctx context.Context, _ int, _ []uint32) ([]string, error) {
	if err := t.client.Sync(ctx); err != nil {
		return nil, err
	}
	return []string{t.client.Address()}, nil
}

func (t *grpcTrader) Sell(ctx context.Context, _ string, assetIn, assetOut uint32, amount string) (string, error) {
	res := t.client.Sell(ctx, assetIn, assetOut, amount, "0")
	if res.Error != nil {
		if res.Code != 0 {
			return fmt.Sprintf("code %d", res.Code), nil
		}
		return "", res.Error
	}
	return outcomeOK, nil
}
