package ledger

import (
	"time"

	"github.com/shopspring/decimal"
)

// Transaction is a transfer recorded by the ledger service
type Transaction struct {
	Hash      string          `json:"hash"`
	From      string          `json:"from"`
	To        string          `json:"to"`
	Amount    decimal.Decimal `json:"amount"`
	Memo      string          `json:"memo,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
	Status    string          `json:"status,omitempty"`
}

// HistoryEntry is a single row of an address's transaction history.
// Data carries the memo the transaction was sent with; consumers must
// tolerate it being absent.
type HistoryEntry struct {
	From      string          `json:"from"`
	To        string          `json:"to"`
	Amount    decimal.Decimal `json:"amount"`
	Timestamp time.Time       `json:"timestamp"`
	Data      string          `json:"data,omitempty"`
}

// Block is a single block of the ledger chain snapshot
type Block struct {
	Index        int64         `json:"index"`
	Hash         string        `json:"hash"`
	PreviousHash string        `json:"previousHash"`
	Transactions []Transaction `json:"transactions"`
}

// BlockchainInfo is a snapshot of the ledger chain
type BlockchainInfo struct {
	Chain       []Block `json:"chain"`
	ChainLength int     `json:"chainLength"`
}

// MintResult reports a successful mint
type MintResult struct {
	TransactionHash string `json:"transactionHash"`
}

// ChainTx describes a transaction observed on an external chain
type ChainTx struct {
	Hash  string          `json:"hash,omitempty"`
	From  string          `json:"from,omitempty"`
	To    string          `json:"to,omitempty"`
	Value decimal.Decimal `json:"value"`
}

// Verification is the outcome of checking a claimed external-chain transaction
type Verification struct {
	Verified    bool     `json:"verified"`
	Transaction *ChainTx `json:"transaction,omitempty"`
}

// SendRequest describes a transfer to submit to the ledger service.
// The ledger applies the debit atomically; a concurrent overdraft attempt
// fails there even when an earlier balance check passed.
type SendRequest struct {
	From       string          `json:"from"`
	To         string          `json:"to"`
	Amount     decimal.Decimal `json:"amount"`
	SigningKey string          `json:"signingKey"`
	Memo       string          `json:"memo,omitempty"`
}

// VerifyRequest asks the ledger service to verify a claimed deposit on an
// external chain
type VerifyRequest struct {
	Chain     string          `json:"chain"`
	TxHash    string          `json:"txHash"`
	Amount    decimal.Decimal `json:"amount,omitempty"`
	Recipient string          `json:"recipient,omitempty"`
}
