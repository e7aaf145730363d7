// Package onchain implements the chain-facing ports — NftPositionManager,
// SwapRouter, GasOracle, TokenBalances — over go-ethereum, grounded on the
// teacher's MergeClient: ABI-init parsing, cached gas pricing, and an
// approval-check-then-send transaction lifecycle, retargeted from the CTF
// merge contract to a Uniswap V3-style position manager and swap router.
package onchain

import (
	"context"
	"crypto/ecdsa"
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"golang.org/x/time/rate"
)

// rpcRateLimit caps outgoing RPC calls per second, guarding the gas-oracle
// and nonce polling a rebalance's withdraw/swap/mint sequence does in quick
// succession from hammering the node.
const rpcRateLimit = 10

// gasPriceUpdateInterval bounds how often Client re-queries the RPC node
// for a suggested gas price between cached reads.
const gasPriceUpdateInterval = 30 * time.Second

// receiptPollInterval is how often waitForReceipt re-polls for a mined
// transaction.
const receiptPollInterval = 3 * time.Second

// Client is the shared chain connection and signing key behind every
// onchain adapter (NftManager, SwapRouter, GasOracle, Balances).
type Client struct {
	eth        *ethclient.Client
	chainID    *big.Int
	privateKey *ecdsa.PrivateKey
	address    common.Address

	mu           sync.Mutex
	cachedGasWei *big.Int
	gasUpdatedAt time.Time

	limiter *rate.Limiter
}

// NewClient dials rpcURL and derives the signing address from
// privateKeyHex (with or without a 0x prefix).
func NewClient(ctx context.Context, rpcURL, privateKeyHex string) (*Client, error) {
	pkBytes, err := hex.DecodeString(strings.TrimPrefix(privateKeyHex, "0x"))
	if err != nil {
		return nil, fmt.Errorf("onchain: decode private key: %w", err)
	}
	privKey, err := crypto.ToECDSA(pkBytes)
	if err != nil {
		return nil, fmt.Errorf("onchain: invalid private key: %w", err)
	}

	eth, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("onchain: dial rpc %s: %w", rpcURL, err)
	}

	chainID, err := eth.ChainID(ctx)
	if err != nil {
		eth.Close()
		return nil, fmt.Errorf("onchain: fetch chain id: %w", err)
	}

	return &Client{
		eth:        eth,
		chainID:    chainID,
		privateKey: privKey,
		address:    crypto.PubkeyToAddress(privKey.PublicKey),
		limiter:    rate.NewLimiter(rate.Limit(rpcRateLimit), rpcRateLimit),
	}, nil
}

// Close releases the underlying RPC connection.
func (c *Client) Close() {
	c.eth.Close()
}

// Address is the wallet address derived from the configured private key.
func (c *Client) Address() common.Address {
	return c.address
}

// gasPrice returns the current suggested gas price, caching it for
// gasPriceUpdateInterval to avoid hammering the RPC node between
// back-to-back transactions of the same rebalance.
func (c *Client) gasPrice(ctx context.Context) (*big.Int, error) {
	c.mu.Lock()
	cached := c.cachedGasWei
	updatedAt := c.gasUpdatedAt
	c.mu.Unlock()

	if cached != nil && time.Since(updatedAt) < gasPriceUpdateInterval {
		return cached, nil
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("onchain: rate limit: %w", err)
	}
	price, err := c.eth.SuggestGasPrice(ctx)
	if err != nil {
		if cached != nil {
			return cached, nil
		}
		return nil, fmt.Errorf("onchain: suggest gas price: %w", err)
	}

	c.mu.Lock()
	c.cachedGasWei = price
	c.gasUpdatedAt = time.Now()
	c.mu.Unlock()

	return price, nil
}

// call issues an eth_call against target with the given ABI-packed data.
func (c *Client) call(ctx context.Context, target common.Address, data []byte) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("onchain: rate limit: %w", err)
	}
	return c.eth.CallContract(ctx, ethereum.CallMsg{From: c.address, To: &target, Data: data}, nil)
}

// sendAndWait signs, sends, and blocks for the receipt of a transaction
// calling target with data, using a fixed gasLimit ceiling and the
// client's cached gas price. It returns the mined receipt or an error that
// wraps whichever stage failed.
func (c *Client) sendAndWait(ctx context.Context, target common.Address, data []byte, gasLimit uint64) (*types.Receipt, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("onchain: rate limit: %w", err)
	}
	nonce, err := c.eth.PendingNonceAt(ctx, c.address)
	if err != nil {
		return nil, fmt.Errorf("onchain: nonce: %w", err)
	}
	gasPrice, err := c.gasPrice(ctx)
	if err != nil {
		return nil, fmt.Errorf("onchain: gas price: %w", err)
	}

	tx := types.NewTransaction(nonce, target, big.NewInt(0), gasLimit, gasPrice, data)
	signed, err := types.SignTx(tx, types.NewEIP155Signer(c.chainID), c.privateKey)
	if err != nil {
		return nil, fmt.Errorf("onchain: sign tx: %w", err)
	}

	if err := c.eth.SendTransaction(ctx, signed); err != nil {
		return nil, fmt.Errorf("onchain: send tx: %w", err)
	}

	receiptCtx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	receipt, err := c.waitForReceipt(receiptCtx, signed.Hash())
	if err != nil {
		return nil, fmt.Errorf("onchain: tx %s sent but receipt unconfirmed: %w", signed.Hash().Hex(), err)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return receipt, fmt.Errorf("onchain: tx %s reverted", signed.Hash().Hex())
	}
	return receipt, nil
}

// waitForReceipt polls for a transaction receipt until confirmed or ctx is
// done.
func (c *Client) waitForReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	ticker := time.NewTicker(receiptPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
			receipt, err := c.eth.TransactionReceipt(ctx, txHash)
			if err != nil {
				continue
			}
			return receipt, nil
		}
	}
}

// ensureErc20Allowance approves spender for token if the current allowance
// is below minAmount, mirroring the teacher's check-then-send pattern.
func (c *Client) ensureErc20Allowance(ctx context.Context, token, spender common.Address, minAmount *big.Int) error {
	callData, err := erc20ABI.Pack("allowance", c.address, spender)
	if err != nil {
		return fmt.Errorf("onchain: pack allowance: %w", err)
	}
	result, err := c.call(ctx, token, callData)
	if err != nil {
		return fmt.Errorf("onchain: call allowance: %w", err)
	}
	vals, err := erc20ABI.Unpack("allowance", result)
	if err != nil || len(vals) == 0 {
		return fmt.Errorf("onchain: unpack allowance: %w", err)
	}
	allowance := vals[0].(*big.Int)
	if allowance.Cmp(minAmount) >= 0 {
		return nil
	}

	maxUint256 := new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))
	approveData, err := erc20ABI.Pack("approve", spender, maxUint256)
	if err != nil {
		return fmt.Errorf("onchain: pack approve: %w", err)
	}
	if _, err := c.sendAndWait(ctx, token, approveData, approvalGasLimit); err != nil {
		return fmt.Errorf("onchain: approve %s for %s: %w", token.Hex(), spender.Hex(), err)
	}
	return nil
}
