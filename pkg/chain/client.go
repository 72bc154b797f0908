// Package chain provides the blockchain RPC collaborator. It wraps a
// go-ethereum client behind a small backend interface so wallet analysis
// can run against fakes in tests and degrade gracefully without a node.
package chain

import (
	"context"
	"fmt"
	"log"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
)

// weiPerEther as a big.Float constant for balance conversion
var weiPerEther = new(big.Float).SetFloat64(1e18)

// WalletStats aggregates recent on-chain activity for a single address.
// All monetary values are denominated in ether.
type WalletStats struct {
	Address            string    `json:"address"`
	Balance            float64   `json:"balance"`
	TxCount            int       `json:"tx_count"`
	IncomingCount      int       `json:"incoming_count"`
	OutgoingCount      int       `json:"outgoing_count"`
	UniqueAddressCount int       `json:"unique_address_count"`
	AvgTimeBetweenTx   float64   `json:"avg_time_between_tx_seconds"`
	Amounts            []float64 `json:"amounts"`
}

// rpcBackend is the subset of ethclient.Client the collector needs.
// Tests substitute a canned implementation.
type rpcBackend interface {
	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
	BlockNumber(ctx context.Context) (uint64, error)
	BlockByNumber(ctx context.Context, number *big.Int) (*types.Block, error)
}

// Client reads wallet activity from a JSON-RPC node
type Client struct {
	backend  rpcBackend
	scanSpan uint64
	closer   func()
}

// NewClient dials the given JSON-RPC endpoint. scanSpan controls how many
// recent blocks CollectStats inspects for transactions.
func NewClient(ctx context.Context, rpcURL string, scanSpan uint64) (*Client, error) {
	if rpcURL == "" {
		return nil, fmt.Errorf("rpc url is empty")
	}
	ec, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", rpcURL, err)
	}
	if scanSpan == 0 {
		scanSpan = 50
	}
	return &Client{backend: ec, scanSpan: scanSpan, closer: ec.Close}, nil
}

// newClientWithBackend wires a fake backend (tests only)
func newClientWithBackend(b rpcBackend, scanSpan uint64) *Client {
	return &Client{backend: b, scanSpan: scanSpan, closer: func() {}}
}

// Close releases the underlying RPC connection
func (c *Client) Close() {
	if c.closer != nil {
		c.closer()
	}
}

// ValidAddress reports whether s is a well-formed hex address
func ValidAddress(s string) bool {
	return common.IsHexAddress(s)
}

// Checksum returns the EIP-55 checksummed form of a hex address
func Checksum(s string) string {
	return common.HexToAddress(s).Hex()
}

// WeiToEther converts a wei amount to ether as a float64
func WeiToEther(wei *big.Int) float64 {
	if wei == nil {
		return 0
	}
	f, _ := new(big.Float).Quo(new(big.Float).SetInt(wei), weiPerEther).Float64()
	return f
}

// CollectStats fetches the current balance and scans the most recent blocks
// for transactions touching the address, producing a WalletStats summary.
// A block that fails to load is skipped with a warning rather than failing
// the whole collection.
func (c *Client) CollectStats(ctx context.Context, address string) (*WalletStats, error) {
	if !ValidAddress(address) {
		return nil, fmt.Errorf("invalid address: %q", address)
	}
	account := common.HexToAddress(address)

	balanceWei, err := c.backend.BalanceAt(ctx, account, nil)
	if err != nil {
		return nil, fmt.Errorf("balance lookup for %s: %w", account.Hex(), err)
	}

	head, err := c.backend.BlockNumber(ctx)
	if err != nil {
		return nil, fmt.Errorf("head block lookup: %w", err)
	}

	stats := &WalletStats{
		Address: account.Hex(),
		Balance: WeiToEther(balanceWei),
	}

	var (
		counterparties = make(map[common.Address]struct{})
		timestamps     []uint64
	)

	start := uint64(0)
	if head >= c.scanSpan {
		start = head - c.scanSpan + 1
	}

	for n := start; n <= head; n++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		block, err := c.backend.BlockByNumber(ctx, new(big.Int).SetUint64(n))
		if err != nil {
			log.Printf("[WARN] Skipping block %d: %v", n, err)
			continue
		}

		for _, tx := range block.Transactions() {
			to := tx.To()
			from, ferr := types.Sender(types.LatestSignerForChainID(tx.ChainId()), tx)

			incoming := to != nil && *to == account
			outgoing := ferr == nil && from == account
			if !incoming && !outgoing {
				continue
			}

			stats.TxCount++
			timestamps = append(timestamps, block.Time())
			stats.Amounts = append(stats.Amounts, WeiToEther(tx.Value()))

			if incoming {
				stats.IncomingCount++
				if ferr == nil {
					counterparties[from] = struct{}{}
				}
			}
			if outgoing {
				stats.OutgoingCount++
				if to != nil {
					counterparties[*to] = struct{}{}
				}
			}
		}
	}

	stats.UniqueAddressCount = len(counterparties)
	stats.AvgTimeBetweenTx = averageGap(timestamps)
	return stats, nil
}

// averageGap returns the mean spacing in seconds between consecutive
// timestamps. Fewer than two observations yields 0.
func averageGap(timestamps []uint64) float64 {
	if len(timestamps) < 2 {
		return 0
	}
	var total uint64
	for i := 1; i < len(timestamps); i++ {
		if timestamps[i] >= timestamps[i-1] {
			total += timestamps[i] - timestamps[i-1]
		} else {
			total += timestamps[i-1] - timestamps[i]
		}
	}
	return float64(total) / float64(len(timestamps)-1)
}
