// Package grpcclient signs omnipool transactions in memory and broadcasts them
// to a node over gRPC.
package grpcclient

import (
	"context"
	"encoding/hex"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cosmos/cosmos-sdk/client"
	"github.com/cosmos/cosmos-sdk/client/tx"
	"github.com/cosmos/cosmos-sdk/crypto/keys/secp256k1"
	cryptotypes "github.com/cosmos/cosmos-sdk/crypto/types"
	sdk "github.com/cosmos/cosmos-sdk/types"
	txtypes "github.com/cosmos/cosmos-sdk/types/tx"
	"github.com/cosmos/cosmos-sdk/types/tx/signing"
	authsigning "github.com/cosmos/cosmos-sdk/x/auth/signing"
	authtypes "github.com/cosmos/cosmos-sdk/x/auth/types"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	dcatypes "github.com/openalpha/omnipool/x/dca/types"
	omnipooltypes "github.com/openalpha/omnipool/x/omnipool/types"
)

// Config holds gRPC client configuration
type Config struct {
	GRPCAddr  string
	ChainID   string
	GasLimit  uint64
	Fees      string        // e.g. "1000stake", empty for no fee
	PoolSize  int           // Connection pool size
	Timeout   time.Duration // Request timeout
	BatchSize int           // Max messages per transaction
	Mode      txtypes.BroadcastMode
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		GRPCAddr:  "localhost:9090",
		ChainID:   "omnipool-1",
		GasLimit:  300000,
		PoolSize:  4,
		Timeout:   5 * time.Second,
		BatchSize: 50,
		Mode:      txtypes.BroadcastMode_BROADCAST_MODE_SYNC,
	}
}

// Client broadcasts transactions for one signer over a pool of connections
type Client struct {
	config    *Config
	pool      []*grpc.ClientConn
	poolIndex uint64

	txConfig client.TxConfig
	privKey  cryptotypes.PrivKey
	address  sdk.AccAddress

	accountNumber uint64
	sequence      uint64
	seqMu         sync.Mutex

	// Metrics
	txCount      uint64
	successCount uint64
	failCount    uint64
	totalLatency int64
}

// NewClient dials the node. Connections are established lazily.
func NewClient(config *Config, txConfig client.TxConfig, privKey cryptotypes.PrivKey) (*Client, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if config.PoolSize <= 0 {
		config.PoolSize = 1
	}

	c := &Client{
		config:   config,
		pool:     make([]*grpc.ClientConn, config.PoolSize),
		txConfig: txConfig,
		privKey:  privKey,
		address:  sdk.AccAddress(privKey.PubKey().Address()),
	}

	for i := 0; i < config.PoolSize; i++ {
		conn, err := grpc.Dial(
			config.GRPCAddr,
			grpc.WithTransportCredentials(insecure.NewCredentials()),
			grpc.WithDefaultCallOptions(
				grpc.MaxCallRecvMsgSize(1024*1024*10), // 10MB
				grpc.MaxCallSendMsgSize(1024*1024*10),
			),
		)
		if err != nil {
			c.Close()
			return nil, fmt.Errorf("connect to gRPC: %w", err)
		}
		c.pool[i] = conn
	}
	return c, nil
}

// NewClientFromHex creates a client for a hex encoded secp256k1 key
func NewClientFromHex(config *Config, txConfig client.TxConfig, privKeyHex string) (*Client, error) {
	privKeyBytes, err := hex.DecodeString(privKeyHex)
	if err != nil {
		return nil, fmt.Errorf("decode private key: %w", err)
	}
	if len(privKeyBytes) != secp256k1.PrivKeySize {
		return nil, fmt.Errorf("private key must be %d bytes, got %d", secp256k1.PrivKeySize, len(privKeyBytes))
	}
	return NewClient(config, txConfig, &secp256k1.PrivKey{Key: privKeyBytes})
}

// Address returns the signer address
func (c *Client) Address() string {
	return c.address.String()
}

// getConn returns a connection from the pool (round-robin)
func (c *Client) getConn() *grpc.ClientConn {
	idx := atomic.AddUint64(&c.poolIndex, 1) % uint64(len(c.pool))
	return c.pool[idx]
}

// Sync loads the account number and sequence of the signer from the node
func (c *Client) Sync(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	res, err := authtypes.NewQueryClient(c.getConn()).AccountInfo(ctx, &authtypes.QueryAccountInfoRequest{
		Address: c.Address(),
	})
	if err != nil {
		return fmt.Errorf("query account %s: %w", c.Address(), err)
	}

	c.seqMu.Lock()
	defer c.seqMu.Unlock()
	c.accountNumber = res.Info.AccountNumber
	c.sequence = res.Info.Sequence
	return nil
}

// nextSequence returns the sequence for the next transaction and advances it
func (c *Client) nextSequence() (accountNumber, sequence uint64) {
	c.seqMu.Lock()
	defer c.seqMu.Unlock()
	sequence = c.sequence
	c.sequence++
	return c.accountNumber, sequence
}

// rewindSequence hands a sequence back after a transaction failed to reach the mempool
func (c *Client) rewindSequence(sequence uint64) {
	c.seqMu.Lock()
	defer c.seqMu.Unlock()
	if c.sequence == sequence+1 {
		c.sequence = sequence
	}
}

// Result contains the result of a broadcast
type Result struct {
	TxHash  string
	Code    uint32
	RawLog  string
	Success bool
	Latency time.Duration
	Error   error
}

// ============ Omnipool ============

// Sell sells amount of assetIn for at least minBuy of assetOut
func (c *Client) Sell(ctx context.Context, assetIn, assetOut uint32, amount, minBuy string) *Result {
	return c.Broadcast(ctx, &omnipooltypes.MsgSell{
		Who:          c.Address(),
		AssetIn:      assetIn,
		AssetOut:     assetOut,
		Amount:       amount,
		MinBuyAmount: minBuy,
	})
}

// Buy buys amount of assetOut for at most maxSell of assetIn
func (c *Client) Buy(ctx context.Context, assetOut, assetIn uint32, amount, maxSell string) *Result {
	return c.Broadcast(ctx, &omnipooltypes.MsgBuy{
		Who:           c.Address(),
		AssetOut:      assetOut,
		AssetIn:       assetIn,
		Amount:        amount,
		MaxSellAmount: maxSell,
	})
}

// AddLiquidity deposits amount of asset into the pool
func (c *Client) AddLiquidity(ctx context.Context, asset uint32, amount string) *Result {
	return c.Broadcast(ctx, &omnipooltypes.MsgAddLiquidity{
		Who:     c.Address(),
		AssetID: asset,
		Amount:  amount,
	})
}

// RemoveLiquidity burns shares of a position
func (c *Client) RemoveLiquidity(ctx context.Context, positionID uint64, shares string) *Result {
	return c.Broadcast(ctx, &omnipooltypes.MsgRemoveLiquidity{
		Who:        c.Address(),
		PositionID: positionID,
		Shares:     shares,
	})
}

// ============ DCA ============

// Schedule submits a DCA schedule owned by the signer
func (c *Client) Schedule(ctx context.Context, msg dcatypes.MsgSchedule) *Result {
	msg.Owner = c.Address()
	return c.Broadcast(ctx, &msg)
}

// Terminate stops a schedule of the signer
func (c *Client) Terminate(ctx context.Context, scheduleID uint64) *Result {
	return c.Broadcast(ctx, &dcatypes.MsgTerminate{
		Caller:     c.Address(),
		ScheduleID: scheduleID,
	})
}

// ============ Broadcasting ============

type validatable interface {
	ValidateBasic() error
}

// Broadcast signs msgs into one transaction and broadcasts it
func (c *Client) Broadcast(ctx context.Context, msgs ...sdk.Msg) *Result {
	start := time.Now()
	result := &Result{}

	switch {
	case len(msgs) == 0:
		result.Error = fmt.Errorf("no messages to broadcast")
		return result
	case c.config.BatchSize > 0 && len(msgs) > c.config.BatchSize:
		result.Error = fmt.Errorf("batch size %d exceeds max %d", len(msgs), c.config.BatchSize)
		return result
	}
	for _, msg := range msgs {
		if v, ok := msg.(validatable); ok {
			if err := v.ValidateBasic(); err != nil {
				result.Error = err
				return result
			}
		}
	}

	atomic.AddUint64(&c.txCount, 1)

	accountNumber, seq := c.nextSequence()
	txBytes, err := c.buildSignedTx(ctx, msgs, accountNumber, seq)
	if err != nil {
		c.rewindSequence(seq)
		return c.fail(result, start, err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()
	resp, err := txtypes.NewServiceClient(c.getConn()).BroadcastTx(ctx, &txtypes.BroadcastTxRequest{
		TxBytes: txBytes,
		Mode:    c.config.Mode,
	})
	if err != nil {
		c.rewindSequence(seq)
		return c.fail(result, start, err)
	}

	result.TxHash = resp.TxResponse.TxHash
	result.Code = resp.TxResponse.Code
	result.RawLog = resp.TxResponse.RawLog
	if result.Code != 0 {
		// the ante handler rejected it, so the sequence was not consumed
		c.rewindSequence(seq)
		return c.fail(result, start, fmt.Errorf("tx failed with code %d: %s", result.Code, result.RawLog))
	}

	result.Success = true
	result.Latency = time.Since(start)
	atomic.AddInt64(&c.totalLatency, int64(result.Latency))
	atomic.AddUint64(&c.successCount, 1)
	return result
}

func (c *Client) fail(result *Result, start time.Time, err error) *Result {
	result.Error = err
	result.Latency = time.Since(start)
	atomic.AddUint64(&c.failCount, 1)
	return result
}

// buildSignedTx builds and signs a transaction in memory with SIGN_MODE_DIRECT
func (c *Client) buildSignedTx(ctx context.Context, msgs []sdk.Msg, accountNumber, sequence uint64) ([]byte, error) {
	if c.txConfig == nil {
		return nil, fmt.Errorf("client has no tx config")
	}
	txBuilder := c.txConfig.NewTxBuilder()
	if err := txBuilder.SetMsgs(msgs...); err != nil {
		return nil, err
	}
	if c.config.Fees != "" {
		fees, err := sdk.ParseCoinsNormalized(c.config.Fees)
		if err != nil {
			return nil, fmt.Errorf("parse fees: %w", err)
		}
		txBuilder.SetFeeAmount(fees)
	}
	txBuilder.SetGasLimit(c.config.GasLimit)

	// The signer infos must be set before the sign bytes are computed.
	empty := signing.SignatureV2{
		PubKey: c.privKey.PubKey(),
		Data: &signing.SingleSignatureData{
			SignMode:  signing.SignMode_SIGN_MODE_DIRECT,
			Signature: nil,
		},
		Sequence: sequence,
	}
	if err := txBuilder.SetSignatures(empty); err != nil {
		return nil, err
	}

	signerData := authsigning.SignerData{
		Address:       c.Address(),
		ChainID:       c.config.ChainID,
		AccountNumber: accountNumber,
		Sequence:      sequence,
		PubKey:        c.privKey.PubKey(),
	}
	sig, err := tx.SignWithPrivKey(ctx, signing.SignMode_SIGN_MODE_DIRECT, signerData,
		txBuilder, c.privKey, c.txConfig, sequence)
	if err != nil {
		return nil, err
	}
	if err := txBuilder.SetSignatures(sig); err != nil {
		return nil, err
	}

	return c.txConfig.TxEncoder()(txBuilder.GetTx())
}

// Stats are the client counters
type Stats struct {
	Transactions uint64
	Succeeded    uint64
	Failed       uint64
	AvgLatency   time.Duration
}

// GetMetrics returns current client metrics
func (c *Client) GetMetrics() Stats {
	stats := Stats{
		Transactions: atomic.LoadUint64(&c.txCount),
		Succeeded:    atomic.LoadUint64(&c.successCount),
		Failed:       atomic.LoadUint64(&c.failCount),
	}
	if stats.Succeeded > 0 {
		stats.AvgLatency = time.Duration(atomic.LoadInt64(&c.totalLatency) / int64(stats.Succeeded))
	}
	return stats
}

// ResetMetrics resets all metrics
func (c *Client) ResetMetrics() {
	atomic.StoreUint64(&c.txCount, 0)
	atomic.StoreUint64(&c.successCount, 0)
	atomic.StoreUint64(&c.failCount, 0)
	atomic.StoreInt64(&c.totalLatency, 0)
}

// Close closes all connections in the pool
func (c *Client) Close() error {
	for _, conn := range c.pool {
		if conn == nil {
			continue
		}
		if err := conn.Close(); err != nil {
			return err
		}
	}
	return nil
}
