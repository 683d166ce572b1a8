package bridge

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/nexchain-labs/asset-gateway/pkg/ledger"
)

// Verifier checks a claimed transaction directly on its source chain
type Verifier interface {
	VerifyTransaction(ctx context.Context, txHash string) (*ledger.Verification, error)
}

// EVMVerifier verifies transactions against an EVM RPC endpoint
type EVMVerifier struct {
	client *ethclient.Client
	logger *zap.Logger
}

// NewEVMVerifier connects to an EVM RPC endpoint
func NewEVMVerifier(rpcURL string, logger *zap.Logger) (*EVMVerifier, error) {
	client, err := ethclient.Dial(rpcURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to EVM RPC: %w", err)
	}

	return &EVMVerifier{
		client: client,
		logger: logger,
	}, nil
}

// Close closes the underlying RPC connection
func (v *EVMVerifier) Close() {
	v.client.Close()
}

// VerifyTransaction fetches the transaction and its receipt. A transaction
// still in the mempool is reported unverified, not an error, so the claim
// fails cleanly instead of falling back to the generic verifier.
func (v *EVMVerifier) VerifyTransaction(ctx context.Context, txHash string) (*ledger.Verification, error) {
	hash := common.HexToHash(txHash)

	tx, isPending, err := v.client.TransactionByHash(ctx, hash)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch transaction: %w", err)
	}
	if isPending {
		return &ledger.Verification{Verified: false}, nil
	}

	receipt, err := v.client.TransactionReceipt(ctx, hash)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch receipt: %w", err)
	}

	to := ""
	if tx.To() != nil {
		to = tx.To().Hex()
	}
	from := ""
	if sender, err := types.Sender(types.LatestSignerForChainID(tx.ChainId()), tx); err == nil {
		from = sender.Hex()
	}

	return &ledger.Verification{
		Verified: receipt.Status == types.ReceiptStatusSuccessful,
		Transaction: &ledger.ChainTx{
			Hash: hash.Hex(),
			From: from,
			To:   to,
			// Wei to whole-token units; the wrapped asset keeps 18 decimals.
			Value: decimal.NewFromBigInt(tx.Value(), -18),
		},
	}, nil
}

// BuildVerifiers creates a dedicated verifier for every configured RPC
// endpoint. Chains whose endpoint cannot be dialed are skipped and fall back
// to the generic backend verification.
func BuildVerifiers(rpcs map[string]string, logger *zap.Logger) map[string]Verifier {
	verifiers := make(map[string]Verifier, len(rpcs))
	for chain, rpcURL := range rpcs {
		verifier, err := NewEVMVerifier(rpcURL, logger)
		if err != nil {
			logger.Warn("Skipping dedicated verifier",
				zap.String("chain", chain),
				zap.String("rpc_url", rpcURL),
				zap.Error(err))
			continue
		}
		logger.Info("Dedicated chain verifier registered",
			zap.String("chain", chain))
		verifiers[chain] = verifier
	}
	return verifiers
}
