package nats

import (
	"time"

	"github.com/brojonat/tipgate/service/ledger"
)

// RelayEvent represents a relayed-transaction event published to NATS.
// This is published to the subject "relay.txns.{status}" in JetStream.
type RelayEvent struct {
	// Record identifiers
	RecordID  string `json:"record_id"`
	Signature string `json:"signature,omitempty"`

	// Transfer details
	FromAddress string `json:"from_address"`
	ToAddress   string `json:"to_address"`
	Amount      uint64 `json:"amount"` // lamports
	Memo        string `json:"memo,omitempty"`

	// Lifecycle
	Status    string     `json:"status"` // pending, confirmed, failed
	CreatedAt time.Time  `json:"created_at"`
	BlockTime *time.Time `json:"block_time,omitempty"`

	// Metadata
	PublishedAt time.Time `json:"published_at"`
}

// FromRecord converts a ledger record to a RelayEvent for publishing.
func FromRecord(rec ledger.Record) *RelayEvent {
	return &RelayEvent{
		RecordID:    rec.ID,
		Signature:   rec.Signature,
		FromAddress: rec.FromAddress,
		ToAddress:   rec.ToAddress,
		Amount:      rec.Amount,
		Memo:        rec.Memo,
		Status:      string(rec.Status),
		CreatedAt:   rec.CreatedAt,
		BlockTime:   rec.BlockTime,
		PublishedAt: time.Now().UTC(),
	}
}
