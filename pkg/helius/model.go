package helius

import (
	"encoding/json"
	"time"
)

// Timestamps above this are taken to be milliseconds and scaled down once.
const msEpochThreshold = 1_600_000_000_000

// TokenTransfer is one SPL token leg of a parsed transaction.
// TokenAmount is already a UI amount (decimals applied by Helius).
type TokenTransfer struct {
	Mint            string  `json:"mint"`
	FromUserAccount string  `json:"fromUserAccount"`
	ToUserAccount   string  `json:"toUserAccount"`
	TokenAmount     float64 `json:"tokenAmount"`
}

// NativeTransfer is a SOL movement. Amount is in lamports.
type NativeTransfer struct {
	FromUserAccount string `json:"fromUserAccount"`
	ToUserAccount   string `json:"toUserAccount"`
	Amount          int64  `json:"amount"`
}

// Transaction is a Helius enhanced-API transaction. Immutable once fetched;
// cached verbatim.
type Transaction struct {
	Signature        string           `json:"signature"`
	Timestamp        int64            `json:"timestamp"`
	Type             string           `json:"type"`
	Source           string           `json:"source"`
	Description      string           `json:"description"`
	FeePayer         string           `json:"feePayer"`
	TransactionError json.RawMessage  `json:"transactionError,omitempty"`
	TokenTransfers   []TokenTransfer  `json:"tokenTransfers"`
	NativeTransfers  []NativeTransfer `json:"nativeTransfers"`
}

// NormalizeTimestamp scales a millisecond timestamp down to seconds.
// Idempotent: a value already in seconds is left alone.
func (t *Transaction) NormalizeTimestamp() {
	if t.Timestamp > msEpochThreshold {
		t.Timestamp /= 1000
	}
}

func (t *Transaction) Time() time.Time {
	return time.Unix(t.Timestamp, 0)
}

func (t *Transaction) Failed() bool {
	return len(t.TransactionError) > 0 && string(t.TransactionError) != "null"
}

// IsSwap reports whether Helius classified the transaction as a swap.
func (t *Transaction) IsSwap() bool {
	return t.Type == "SWAP"
}

// NativeTotal sums all SOL legs, in SOL.
func (t *Transaction) NativeTotal() float64 {
	var lamports int64
	for _, nt := range t.NativeTransfers {
		lamports += nt.Amount
	}
	return float64(lamports) / 1e9
}
